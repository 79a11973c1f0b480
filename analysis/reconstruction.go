package analysis

import (
	"math"
)

// Reconstruction compares a clip with its sparse approximation from the
// learned dictionary. Both signals are assumed to be sample aligned.
type Reconstruction struct {
	SampleRate int `json:"sample_rate"`
	Frames     int `json:"frames"`

	TimeRMSE       float64 `json:"time_rmse"`
	SNRDB          float64 `json:"snr_db"`
	EnvelopeRMSEDB float64 `json:"envelope_rmse_db"`
	SpectralRMSEDB float64 `json:"spectral_rmse_db"`

	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
}

// CompareReconstruction returns error metrics and a combined score in [0,1]
// where 0 means a perfect reconstruction.
func CompareReconstruction(original, reconstructed []float64, sampleRate int) Reconstruction {
	m := Reconstruction{SampleRate: sampleRate}
	n := min(len(original), len(reconstructed))
	m.Frames = n
	if sampleRate <= 0 || n == 0 {
		m.Score = 1
		return m
	}
	orig := original[:n]
	rec := reconstructed[:n]

	m.TimeRMSE = rmse(orig, rec)
	m.SNRDB = snrDB(orig, rec)

	origEnv := rmsEnvelope(orig, 256, 128)
	recEnv := rmsEnvelope(rec, 256, 128)
	if len(origEnv) > 0 {
		diff := make([]float64, len(origEnv))
		for i := range origEnv {
			diff[i] = linToDB(origEnv[i]) - linToDB(recEnv[i])
		}
		m.EnvelopeRMSEDB = rms1(diff)
	}

	if sa, _, err := averageSpectrum(orig); err == nil {
		if sb, _, err := averageSpectrum(rec); err == nil {
			m.SpectralRMSEDB = spectralRMSEDB(sa, sb)
		}
	}

	timeNorm := clamp01(m.TimeRMSE / 0.25)
	envNorm := clamp01(m.EnvelopeRMSEDB / 30.0)
	specNorm := clamp01(m.SpectralRMSEDB / 30.0)
	m.Score = clamp01(0.4*timeNorm + 0.3*envNorm + 0.3*specNorm)
	m.Similarity = clamp01(math.Exp(-4.0 * m.Score))
	return m
}

func rmse(a, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(n))
}

// snrDB caps at 120 dB for exact reconstructions.
func snrDB(ref, est []float64) float64 {
	var sig, noise float64
	for i := range ref {
		sig += ref[i] * ref[i]
		d := ref[i] - est[i]
		noise += d * d
	}
	switch {
	case sig == 0:
		return 0
	case noise == 0:
		return 120
	}
	return math.Min(120, 10*math.Log10(sig/noise))
}

func rmsEnvelope(x []float64, frame, hop int) []float64 {
	if frame <= 0 || hop <= 0 || len(x) < frame {
		return nil
	}
	n := 1 + (len(x)-frame)/hop
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i * hop
		out[i] = rms1(x[start : start+frame])
	}
	return out
}

// spectralRMSEDB skips the DC bin.
func spectralRMSEDB(a, b []float64) float64 {
	bins := min(len(a), len(b))
	if bins < 2 {
		return 0
	}
	var sum float64
	for k := 1; k < bins; k++ {
		d := linToDB(a[k]) - linToDB(b[k])
		sum += d * d
	}
	return math.Sqrt(sum / float64(bins-1))
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
