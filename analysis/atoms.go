package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
	"gonum.org/v1/gonum/mat"
)

const (
	minSpectrumSize = 16
	maxSpectrumSize = 2048
)

// AtomMetrics describes one learned atom in the time and frequency domain.
type AtomMetrics struct {
	Index      int `json:"index"`
	Samples    int `json:"samples"`
	SampleRate int `json:"sample_rate"`

	RMS              float64 `json:"rms"`
	Peak             float64 `json:"peak"`
	CrestFactorDB    float64 `json:"crest_factor_db"`
	ZeroCrossingRate float64 `json:"zero_crossing_rate_hz"`
	EnergyCentroidS  float64 `json:"energy_centroid_s"`

	SpectralCentroidHz float64 `json:"spectral_centroid_hz"`
	PeakFrequencyHz    float64 `json:"peak_frequency_hz"`
	SpectrumFrames     int     `json:"spectrum_frames"`
}

// DescribeAll returns metrics for every row of atoms.
func DescribeAll(atoms mat.Matrix, sampleRate int) ([]AtomMetrics, error) {
	rows, _ := atoms.Dims()
	out := make([]AtomMetrics, rows)
	for i := 0; i < rows; i++ {
		m, err := Describe(mat.Row(nil, i, atoms), sampleRate)
		if err != nil {
			return nil, fmt.Errorf("atom %d: %w", i, err)
		}
		m.Index = i
		out[i] = m
	}
	return out, nil
}

// Describe computes level, zero crossing and spectral statistics of x.
func Describe(x []float64, sampleRate int) (AtomMetrics, error) {
	m := AtomMetrics{
		Samples:    len(x),
		SampleRate: sampleRate,
	}
	if sampleRate <= 0 {
		return m, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}
	if len(x) == 0 {
		return m, nil
	}

	m.RMS = rms1(x)
	for _, v := range x {
		m.Peak = math.Max(m.Peak, math.Abs(v))
	}
	if m.RMS > 0 {
		m.CrestFactorDB = linToDB(m.Peak) - linToDB(m.RMS)
	}
	m.ZeroCrossingRate = float64(zeroCrossings(x)) * float64(sampleRate) / float64(len(x))
	m.EnergyCentroidS = energyCentroid(x) / float64(sampleRate)

	mag, frames, err := averageSpectrum(x)
	if err != nil {
		return m, err
	}
	m.SpectrumFrames = frames
	binHz := float64(sampleRate) / float64(2*(len(mag)-1))
	var num, den, best float64
	for k := 1; k < len(mag); k++ {
		f := float64(k) * binHz
		num += f * mag[k]
		den += mag[k]
		if mag[k] > best {
			best = mag[k]
			m.PeakFrequencyHz = f
		}
	}
	if den > 0 {
		m.SpectralCentroidHz = num / den
	}
	if !isFinite(m.SpectralCentroidHz) {
		m.SpectralCentroidHz = 0
	}
	return m, nil
}

// averageSpectrum returns the frame-averaged Hann-windowed magnitude spectrum.
// Signals shorter than one frame are analysed as a single zero-padded frame.
func averageSpectrum(x []float64) ([]float64, int, error) {
	fftSize := spectrumSize(len(x))
	hop := fftSize / 2
	plan, err := algofft.NewPlanReal64(fftSize)
	if err != nil {
		return nil, 0, fmt.Errorf("fft plan: %w", err)
	}

	hann := make([]float64, fftSize)
	for i := range hann {
		hann[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(fftSize))
	}
	buf := make([]float64, fftSize)
	spec := make([]complex128, fftSize/2+1)
	avg := make([]float64, fftSize/2+1)

	frames := 0
	for pos := 0; pos == 0 || pos+fftSize <= len(x); pos += hop {
		for i := 0; i < fftSize; i++ {
			if pos+i < len(x) {
				buf[i] = x[pos+i] * hann[i]
			} else {
				buf[i] = 0
			}
		}
		if err := plan.Forward(spec, buf); err != nil {
			return nil, 0, fmt.Errorf("fft frame %d: %w", frames, err)
		}
		for k := range spec {
			avg[k] += cmplx.Abs(spec[k])
		}
		frames++
	}
	scale := 1.0 / float64(frames)
	for k := range avg {
		avg[k] *= scale
	}
	return avg, frames, nil
}

func spectrumSize(n int) int {
	size := minSpectrumSize
	for size < n && size < maxSpectrumSize {
		size <<= 1
	}
	return size
}

func zeroCrossings(x []float64) int {
	count := 0
	for i := 1; i < len(x); i++ {
		if (x[i-1] >= 0) != (x[i] >= 0) {
			count++
		}
	}
	return count
}

// energyCentroid returns the energy-weighted mean sample index.
func energyCentroid(x []float64) float64 {
	var num, den float64
	for i, v := range x {
		e := v * v
		num += float64(i) * e
		den += e
	}
	if den == 0 {
		return 0
	}
	return num / den
}

func rms1(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func linToDB(x float64) float64 {
	if x < 1e-12 {
		x = 1e-12
	}
	return 20.0 * math.Log10(x)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
