package clip

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrShapeMismatch indicates clips of different length or rate reached the stacking step.
	ErrShapeMismatch = errors.New("clip: clips must share length and sample rate")
	// ErrEmptySet indicates there is nothing to stack.
	ErrEmptySet = errors.New("clip: empty clip set")
)

// Clip is a mono waveform at a fixed sample rate.
type Clip struct {
	Samples    []float64
	SampleRate int
	Source     string
}

// Len returns the number of samples.
func (c Clip) Len() int {
	return len(c.Samples)
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Peak returns the maximum absolute sample value.
func (c Clip) Peak() float64 {
	peak := 0.0
	for _, v := range c.Samples {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}

// Set is an ordered batch of clips, one row each once stacked.
type Set []Clip

// Matrix stacks the clips into a rows x samples matrix.
func (s Set) Matrix() (*mat.Dense, error) {
	if len(s) == 0 {
		return nil, ErrEmptySet
	}
	cols := s[0].Len()
	rate := s[0].SampleRate
	if cols == 0 {
		return nil, fmt.Errorf("%w: clip 0 (%s) has no samples", ErrShapeMismatch, s[0].Source)
	}
	for i, c := range s {
		if c.Len() != cols {
			return nil, fmt.Errorf("%w: clip %d (%s) has %d samples, want %d", ErrShapeMismatch, i, c.Source, c.Len(), cols)
		}
		if c.SampleRate != rate {
			return nil, fmt.Errorf("%w: clip %d (%s) is %d Hz, want %d", ErrShapeMismatch, i, c.Source, c.SampleRate, rate)
		}
	}

	m := mat.NewDense(len(s), cols, nil)
	for i, c := range s {
		m.SetRow(i, c.Samples)
	}
	return m, nil
}

// SampleRate returns the common sample rate, or 0 for an empty set.
func (s Set) SampleRate() int {
	if len(s) == 0 {
		return 0
	}
	return s[0].SampleRate
}
