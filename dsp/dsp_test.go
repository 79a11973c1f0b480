package dsp

import (
	"math"
	"math/rand"
	"testing"
)

func noise(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64()*2 - 1
	}
	return out
}

func tone(n int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*440*float64(i)/22050)
	}
	return out
}

func TestHannWindowIsPeriodic(t *testing.T) {
	w := HannWindow(8)
	if w[0] != 0 {
		t.Fatalf("expected w[0]=0, got %f", w[0])
	}
	if math.Abs(w[4]-1) > 1e-12 {
		t.Fatalf("expected w[n/2]=1, got %f", w[4])
	}
	if math.Abs(w[1]-w[7]) > 1e-12 {
		t.Fatalf("expected symmetry around n/2: %f vs %f", w[1], w[7])
	}
}

func TestNewSTFTValidates(t *testing.T) {
	if _, err := NewSTFT(1, 1); err == nil {
		t.Fatalf("expected error for fft size 1")
	}
	if _, err := NewSTFT(1023, 1); err == nil {
		t.Fatalf("expected error for odd fft size")
	}
	if _, err := NewSTFT(1024, 0); err == nil {
		t.Fatalf("expected error for zero hop")
	}
	if _, err := NewSTFT(1024, 2048); err == nil {
		t.Fatalf("expected error for hop > fft size")
	}
}

func TestSTFTForwardShape(t *testing.T) {
	s, err := NewSTFT(2048, 512)
	if err != nil {
		t.Fatalf("NewSTFT: %v", err)
	}
	frames, err := s.Forward(noise(5000, 1))
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if len(frames) != 1+5000/512 {
		t.Fatalf("unexpected frame count: %d", len(frames))
	}
	for i, f := range frames {
		if len(f) != 1025 {
			t.Fatalf("frame %d has %d bins", i, len(f))
		}
	}
}

func TestSTFTRoundTripIsNearIdentity(t *testing.T) {
	s, err := NewSTFT(2048, 512)
	if err != nil {
		t.Fatalf("NewSTFT: %v", err)
	}
	x := noise(22050, 3)
	y, err := s.RoundTrip(x)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if want := 512 * (len(x) / 512); len(y) != want {
		t.Fatalf("unexpected output length: got=%d want=%d", len(y), want)
	}
	for i := range y {
		if math.Abs(y[i]-x[i]) > 1e-8 {
			t.Fatalf("sample %d differs: got=%g want=%g", i, y[i], x[i])
		}
	}
}

func TestSTFTRoundTripShortAndEmpty(t *testing.T) {
	s, err := NewSTFT(2048, 512)
	if err != nil {
		t.Fatalf("NewSTFT: %v", err)
	}
	if y, err := s.RoundTrip(nil); err != nil || y == nil || len(y) != 0 {
		t.Fatalf("expected empty output for empty input, got %d samples (err=%v)", len(y), err)
	}
	if y, err := s.RoundTrip(noise(300, 5)); err != nil || len(y) != 0 {
		t.Fatalf("expected input shorter than a hop to vanish, got %d samples (err=%v)", len(y), err)
	}
}

func TestSTFTInverseIgnoresEdgeBinPhase(t *testing.T) {
	s, err := NewSTFT(16, 4)
	if err != nil {
		t.Fatalf("NewSTFT: %v", err)
	}
	frames, err := s.Forward(noise(64, 7))
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	want, err := s.Inverse(frames)
	if err != nil {
		t.Fatalf("Inverse: %v", err)
	}
	for _, f := range frames {
		f[0] += 0.5i
		f[len(f)-1] -= 0.25i
	}
	got, err := s.Inverse(frames)
	if err != nil {
		t.Fatalf("Inverse with complex edge bins: %v", err)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatalf("sample %d changed: got=%g want=%g", i, got[i], want[i])
		}
	}
}

func TestSTFTInverseRejectsWrongBinCount(t *testing.T) {
	s, err := NewSTFT(16, 4)
	if err != nil {
		t.Fatalf("NewSTFT: %v", err)
	}
	if _, err := s.Inverse([][]complex128{make([]complex128, 8)}); err == nil {
		t.Fatalf("expected error for short frame")
	}
}

func TestFrameRMSConstantSignal(t *testing.T) {
	x := make([]float64, 4096)
	for i := range x {
		x[i] = 0.5
	}
	rms := FrameRMS(x, 1024, 256)
	if len(rms) != 1+4096/256 {
		t.Fatalf("unexpected frame count: %d", len(rms))
	}
	// Frames fully inside the signal see the constant level.
	if math.Abs(rms[8]-0.5) > 1e-12 {
		t.Fatalf("unexpected interior rms: %f", rms[8])
	}
	// The first frame is half padding.
	if math.Abs(rms[0]-0.5*math.Sqrt(0.5)) > 1e-12 {
		t.Fatalf("unexpected edge rms: %f", rms[0])
	}
}

func TestNonSilentIntervalsFindsBursts(t *testing.T) {
	const block = 8192
	var x []float64
	x = append(x, make([]float64, block)...)
	x = append(x, tone(block, 0.5)...)
	x = append(x, make([]float64, block)...)
	x = append(x, tone(block, 0.5)...)
	x = append(x, make([]float64, block)...)

	intervals := NonSilentIntervals(x, 30, 2048, 512)
	if len(intervals) != 2 {
		t.Fatalf("expected 2 intervals, got %v", intervals)
	}
	first, second := intervals[0], intervals[1]
	if first.Start < block-1536 || first.Start > block {
		t.Fatalf("unexpected first start: %d", first.Start)
	}
	if first.End < 2*block || first.End > 2*block+1536 {
		t.Fatalf("unexpected first end: %d", first.End)
	}
	if second.Start <= first.End {
		t.Fatalf("intervals overlap or are out of order: %v", intervals)
	}

	trimmed := TrimSilence(x, 30, 2048, 512)
	if len(trimmed) != first.Len()+second.Len() {
		t.Fatalf("trimmed length %d does not match intervals %v", len(trimmed), intervals)
	}
	if len(trimmed) < 2*block || len(trimmed) >= len(x) {
		t.Fatalf("unexpected trimmed length: %d", len(trimmed))
	}
}

func TestNonSilentIntervalsLoudSignalIsWhole(t *testing.T) {
	x := tone(10000, 0.8)
	intervals := NonSilentIntervals(x, 30, 2048, 512)
	if len(intervals) != 1 || intervals[0].Start != 0 || intervals[0].End != len(x) {
		t.Fatalf("expected one full interval, got %v", intervals)
	}
}

func TestTrimSilenceAllZeroIsEmpty(t *testing.T) {
	out := TrimSilence(make([]float64, 5000), 30, 2048, 512)
	if out == nil || len(out) != 0 {
		t.Fatalf("expected empty non-nil output, got %d samples", len(out))
	}
	if iv := NonSilentIntervals(nil, 30, 2048, 512); iv != nil {
		t.Fatalf("expected no intervals for empty input, got %v", iv)
	}
}

func TestDBToPowerRatio(t *testing.T) {
	got := dbToPowerRatio(-30)
	if math.Abs(got-1e-3)/1e-3 > 0.1 {
		t.Fatalf("unexpected ratio for -30 dB: %g", got)
	}
}

func BenchmarkSTFTRoundTrip(b *testing.B) {
	s, err := NewSTFT(2048, 512)
	if err != nil {
		b.Fatalf("NewSTFT: %v", err)
	}
	x := noise(5*22050, 11)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.RoundTrip(x)
	}
}
