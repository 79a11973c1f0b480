package dsp

import "math"

// Biquad is a second-order IIR filter in direct form I.
type Biquad struct {
	b0, b1, b2 float64
	a1, a2     float64

	x1, x2 float64
	y1, y2 float64
}

// NewBiquad creates a filter from coefficients already normalized by a0.
func NewBiquad(b0, b1, b2, a1, a2 float64) *Biquad {
	return &Biquad{b0: b0, b1: b1, b2: b2, a1: a1, a2: a2}
}

// NewHighpass returns an RBJ cookbook highpass.
func NewHighpass(cutoff float64, sampleRate int, q float64) *Biquad {
	w0 := 2.0 * math.Pi * cutoff / float64(sampleRate)
	alpha := math.Sin(w0) / (2.0 * q)
	cosw0 := math.Cos(w0)
	a0 := 1.0 + alpha
	return NewBiquad(
		(1.0+cosw0)/2.0/a0,
		-(1.0+cosw0)/a0,
		(1.0+cosw0)/2.0/a0,
		-2.0*cosw0/a0,
		(1.0-alpha)/a0,
	)
}

// NewLowpass returns an RBJ cookbook lowpass.
func NewLowpass(cutoff float64, sampleRate int, q float64) *Biquad {
	w0 := 2.0 * math.Pi * cutoff / float64(sampleRate)
	alpha := math.Sin(w0) / (2.0 * q)
	cosw0 := math.Cos(w0)
	a0 := 1.0 + alpha
	return NewBiquad(
		(1.0-cosw0)/2.0/a0,
		(1.0-cosw0)/a0,
		(1.0-cosw0)/2.0/a0,
		-2.0*cosw0/a0,
		(1.0-alpha)/a0,
	)
}

// Process filters one sample.
func (b *Biquad) Process(input float64) float64 {
	output := b.b0*input + b.b1*b.x1 + b.b2*b.x2 - b.a1*b.y1 - b.a2*b.y2
	b.x2 = b.x1
	b.x1 = input
	b.y2 = b.y1
	b.y1 = output
	return output
}

// ProcessBlock filters x into a new slice, continuing from the current state.
func (b *Biquad) ProcessBlock(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = b.Process(v)
	}
	return out
}
