package dsp

import (
	"math"

	"github.com/cwbudde/algo-approx"
)

// Interval is a half-open sample range [Start, End).
type Interval struct {
	Start int
	End   int
}

// Len returns the number of samples in the interval.
func (iv Interval) Len() int {
	return iv.End - iv.Start
}

// powerFloor bounds frame power from below before taking ratios (-100 dB).
const powerFloor = 1e-10

// FrameRMS returns the RMS of centred frames. The signal is zero padded by
// frameLength/2 on both ends and framed with the given hop.
func FrameRMS(x []float64, frameLength, hop int) []float64 {
	if len(x) == 0 || frameLength <= 0 || hop <= 0 {
		return nil
	}
	pad := frameLength / 2
	span := len(x) + 2*pad - frameLength
	if span < 0 {
		return nil
	}
	n := 1 + span/hop
	out := make([]float64, n)
	for f := 0; f < n; f++ {
		start := f*hop - pad
		lo := max(start, 0)
		hi := min(start+frameLength, len(x))
		var sum float64
		for i := lo; i < hi; i++ {
			sum += x[i] * x[i]
		}
		out[f] = math.Sqrt(sum / float64(frameLength))
	}
	return out
}

// NonSilentIntervals returns the runs of frames whose power lies within topDB
// of the loudest frame, converted to sample intervals in temporal order.
// A signal without energy has no non-silent interval.
func NonSilentIntervals(x []float64, topDB float64, frameLength, hop int) []Interval {
	rms := FrameRMS(x, frameLength, hop)
	if len(rms) == 0 {
		return nil
	}
	peak := 0.0
	for _, r := range rms {
		peak = math.Max(peak, r*r)
	}
	if peak <= 0 {
		return nil
	}
	threshold := math.Max(peak, powerFloor) * dbToPowerRatio(-topDB)

	var out []Interval
	runStart := -1
	for f, r := range rms {
		loud := math.Max(r*r, powerFloor) > threshold
		switch {
		case loud && runStart < 0:
			runStart = f
		case !loud && runStart >= 0:
			out = append(out, frameRunToInterval(runStart, f, hop, len(x)))
			runStart = -1
		}
	}
	if runStart >= 0 {
		out = append(out, frameRunToInterval(runStart, len(rms), hop, len(x)))
	}
	return out
}

func frameRunToInterval(startFrame, endFrame, hop, n int) Interval {
	return Interval{
		Start: min(startFrame*hop, n),
		End:   min(endFrame*hop, n),
	}
}

// TrimSilence concatenates the non-silent intervals of x, dropping the gaps.
// The result is empty (not nil) when nothing is loud enough.
func TrimSilence(x []float64, topDB float64, frameLength, hop int) []float64 {
	intervals := NonSilentIntervals(x, topDB, frameLength, hop)
	total := 0
	for _, iv := range intervals {
		total += iv.Len()
	}
	out := make([]float64, 0, total)
	for _, iv := range intervals {
		out = append(out, x[iv.Start:iv.End]...)
	}
	return out
}

func dbToPowerRatio(db float64) float64 {
	const ln10 = 2.30258509299404568402
	return float64(approx.FastExp(float32(db / 10.0 * ln10)))
}
