// Package normalize turns decoded audio into fixed-length, silence-trimmed,
// peak-normalized clips ready for dictionary learning.
package normalize

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-atoms/clip"
	"github.com/cwbudde/algo-atoms/dsp"
	"github.com/cwbudde/algo-atoms/internal/audiofile"
)

// ErrDecode is returned (wrapped) when a source file cannot be decoded.
var ErrDecode = audiofile.ErrDecode

// Config controls the preprocessing stages.
type Config struct {
	SampleRate     int
	TargetDuration float64 // seconds
	TopDB          float64 // silence threshold below the loudest frame
	FrameLength    int     // silence detection frame
	HopLength      int
	FFTSize        int

	// HighpassHz enables a DC-blocking highpass before silence detection.
	// Zero disables it.
	HighpassHz float64
	// LowpassHz band-limits the clip before silence detection. Zero disables it.
	LowpassHz float64
}

func DefaultConfig() Config {
	return Config{
		SampleRate:     22050,
		TargetDuration: 5,
		TopDB:          30,
		FrameLength:    2048,
		HopLength:      512,
		FFTSize:        2048,
	}
}

func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be > 0, got %d", c.SampleRate)
	}
	if c.TargetDuration <= 0 || math.IsNaN(c.TargetDuration) || math.IsInf(c.TargetDuration, 0) {
		return fmt.Errorf("target duration must be > 0")
	}
	if c.TargetLength() < 1 {
		return fmt.Errorf("target duration %.6fs is shorter than one sample", c.TargetDuration)
	}
	if c.TopDB <= 0 {
		return fmt.Errorf("top dB must be > 0")
	}
	if c.FrameLength < 1 {
		return fmt.Errorf("frame length must be >= 1")
	}
	if c.FFTSize < 2 || c.FFTSize%2 != 0 {
		return fmt.Errorf("fft size must be even and >= 2")
	}
	if c.HopLength < 1 || c.HopLength > c.FFTSize {
		return fmt.Errorf("hop length must be in [1, fft size]")
	}
	if c.HighpassHz < 0 || c.HighpassHz >= float64(c.SampleRate)/2 || math.IsNaN(c.HighpassHz) {
		return fmt.Errorf("highpass must be in [0, sample rate / 2)")
	}
	if c.LowpassHz < 0 || c.LowpassHz >= float64(c.SampleRate)/2 || math.IsNaN(c.LowpassHz) {
		return fmt.Errorf("lowpass must be in [0, sample rate / 2)")
	}
	if c.HighpassHz > 0 && c.LowpassHz > 0 && c.LowpassHz <= c.HighpassHz {
		return fmt.Errorf("lowpass %.1f Hz must be above highpass %.1f Hz", c.LowpassHz, c.HighpassHz)
	}
	return nil
}

// TargetLength is the output length in samples, rounded down.
func (c *Config) TargetLength() int {
	return int(c.TargetDuration * float64(c.SampleRate))
}

// Normalizer applies the preprocessing stages. It holds no per-clip state.
type Normalizer struct {
	cfg  Config
	stft *dsp.STFT
}

func New(cfg Config) (*Normalizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stft, err := dsp.NewSTFT(cfg.FFTSize, cfg.HopLength)
	if err != nil {
		return nil, err
	}
	return &Normalizer{cfg: cfg, stft: stft}, nil
}

func (n *Normalizer) Config() Config {
	return n.cfg
}

// Load decodes path to mono at the configured sample rate.
func (n *Normalizer) Load(path string) ([]float64, error) {
	return audiofile.Load(path, n.cfg.SampleRate)
}

// Preprocess loads path and runs every stage on it.
func (n *Normalizer) Preprocess(path string) (clip.Clip, error) {
	samples, err := n.Load(path)
	if err != nil {
		return clip.Clip{}, err
	}
	c, err := n.Process(samples)
	if err != nil {
		return clip.Clip{}, err
	}
	c.Source = path
	return c, nil
}

// Process runs silence removal, the spectral round-trip, length
// normalization and peak normalization on an already loaded waveform.
func (n *Normalizer) Process(samples []float64) (clip.Clip, error) {
	if n.cfg.HighpassHz > 0 {
		samples = dsp.NewHighpass(n.cfg.HighpassHz, n.cfg.SampleRate, math.Sqrt2/2).ProcessBlock(samples)
	}
	if n.cfg.LowpassHz > 0 {
		samples = dsp.NewLowpass(n.cfg.LowpassHz, n.cfg.SampleRate, math.Sqrt2/2).ProcessBlock(samples)
	}
	x := dsp.TrimSilence(samples, n.cfg.TopDB, n.cfg.FrameLength, n.cfg.HopLength)
	x, err := n.stft.RoundTrip(x)
	if err != nil {
		return clip.Clip{}, fmt.Errorf("spectral round trip: %w", err)
	}
	x = FixLength(x, n.cfg.TargetLength())
	x = PeakNormalize(x)
	return clip.Clip{Samples: x, SampleRate: n.cfg.SampleRate}, nil
}

// FixLength truncates x to its first size samples or right-pads it with zeros.
// The result never aliases x.
func FixLength(x []float64, size int) []float64 {
	if size < 0 {
		size = 0
	}
	out := make([]float64, size)
	copy(out, x)
	return out
}

// PeakNormalize scales x so its largest absolute value is 1. A silent
// (all-zero) input is returned as zeros.
func PeakNormalize(x []float64) []float64 {
	peak := 0.0
	for _, v := range x {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	out := make([]float64, len(x))
	if peak == 0 || math.IsNaN(peak) || math.IsInf(peak, 0) {
		copy(out, x)
		return out
	}
	for i, v := range x {
		out[i] = v / peak
	}
	return out
}
