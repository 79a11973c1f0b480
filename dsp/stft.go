package dsp

import (
	"fmt"
	"math"

	algofft "github.com/cwbudde/algo-fft"
)

// HannWindow returns a periodic Hann window of length n (the DFT-even form).
func HannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// STFT is a centred short-time Fourier transform with a Hann window.
// Frames are zero padded by FFTSize/2 on both ends of the signal.
type STFT struct {
	fftSize int
	hop     int
	window  []float64
	plan    *algofft.PlanRealT[float64, complex128]
}

// NewSTFT creates a transform with the given frame size and hop (both in samples).
func NewSTFT(fftSize, hop int) (*STFT, error) {
	if fftSize < 2 || fftSize%2 != 0 {
		return nil, fmt.Errorf("fft size must be even and >= 2, got %d", fftSize)
	}
	if hop < 1 || hop > fftSize {
		return nil, fmt.Errorf("hop must be in [1, %d], got %d", fftSize, hop)
	}
	plan, err := algofft.NewPlanReal64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("fft plan: %w", err)
	}
	return &STFT{
		fftSize: fftSize,
		hop:     hop,
		window:  HannWindow(fftSize),
		plan:    plan,
	}, nil
}

func (s *STFT) FFTSize() int { return s.fftSize }

func (s *STFT) Hop() int { return s.hop }

// Bins returns the number of spectrum bins per frame.
func (s *STFT) Bins() int { return s.fftSize/2 + 1 }

// FrameCount returns the number of frames Forward produces for n samples.
func (s *STFT) FrameCount(n int) int {
	if n <= 0 {
		return 0
	}
	return 1 + n/s.hop
}

// Forward returns one spectrum of Bins() coefficients per frame.
func (s *STFT) Forward(x []float64) ([][]complex128, error) {
	nFrames := s.FrameCount(len(x))
	if nFrames == 0 {
		return nil, nil
	}
	pad := s.fftSize / 2
	buf := make([]float64, s.fftSize)
	frames := make([][]complex128, nFrames)
	for f := 0; f < nFrames; f++ {
		start := f*s.hop - pad
		for i := 0; i < s.fftSize; i++ {
			j := start + i
			if j < 0 || j >= len(x) {
				buf[i] = 0
				continue
			}
			buf[i] = x[j] * s.window[i]
		}
		frames[f] = make([]complex128, s.Bins())
		if err := s.plan.Forward(frames[f], buf); err != nil {
			return nil, fmt.Errorf("stft frame %d: %w", f, err)
		}
	}
	return frames, nil
}

// Inverse overlap-adds the windowed inverse frames, divides by the summed
// squared window and drops the centring pad. The result holds
// Hop()*(len(frames)-1) samples. The imaginary parts of the DC and Nyquist
// bins are ignored.
func (s *STFT) Inverse(frames [][]complex128) ([]float64, error) {
	if len(frames) == 0 {
		return []float64{}, nil
	}
	bins := s.Bins()
	full := s.fftSize + s.hop*(len(frames)-1)
	acc := make([]float64, full)
	wsum := make([]float64, full)
	seq := make([]float64, s.fftSize)
	bin := make([]complex128, bins)

	for f, spec := range frames {
		if len(spec) != bins {
			return nil, fmt.Errorf("stft frame %d has %d bins, want %d", f, len(spec), bins)
		}
		copy(bin, spec)
		bin[0] = complex(real(bin[0]), 0)
		bin[bins-1] = complex(real(bin[bins-1]), 0)
		if err := s.plan.Inverse(seq, bin); err != nil {
			return nil, fmt.Errorf("istft frame %d: %w", f, err)
		}
		start := f * s.hop
		for i := 0; i < s.fftSize; i++ {
			w := s.window[i]
			acc[start+i] += seq[i] * w
			wsum[start+i] += w * w
		}
	}

	const tiny = 1e-10
	for i := range acc {
		if wsum[i] > tiny {
			acc[i] /= wsum[i]
		}
	}

	pad := s.fftSize / 2
	out := make([]float64, full-2*pad)
	copy(out, acc[pad:full-pad])
	return out, nil
}

// RoundTrip runs Forward followed by Inverse.
func (s *STFT) RoundTrip(x []float64) ([]float64, error) {
	frames, err := s.Forward(x)
	if err != nil {
		return nil, err
	}
	return s.Inverse(frames)
}
