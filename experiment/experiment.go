package experiment

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/cwbudde/algo-atoms/clip"
	"github.com/cwbudde/algo-atoms/pipeline"
	"gonum.org/v1/gonum/mat"
)

// Fitter learns a dictionary from a rows x samples matrix and returns the
// atoms as a components x samples matrix.
type Fitter interface {
	Fit(x *mat.Dense) (*mat.Dense, error)
}

// Result bundles the preprocessed batch with the learned atoms.
type Result struct {
	Clips      clip.Set
	Skipped    []pipeline.Skip
	Atoms      *mat.Dense
	SampleRate int
	Training   time.Duration
}

// AtomCount returns the number of learned atoms.
func (r *Result) AtomCount() int {
	if r.Atoms == nil {
		return 0
	}
	n, _ := r.Atoms.Dims()
	return n
}

// Atom returns a copy of atom i.
func (r *Result) Atom(i int) []float64 {
	return mat.Row(nil, i, r.Atoms)
}

// Run preprocesses a sampled batch and fits the dictionary on it.
func Run(p *pipeline.Pipeline, fitter Fitter, rng *rand.Rand) (*Result, error) {
	batch, err := p.Run(rng)
	if err != nil {
		return nil, err
	}
	return Fit(batch, fitter, p.Config().Normalize.SampleRate)
}

// Fit stacks a pipeline result and hands it to fitter.
func Fit(batch *pipeline.Result, fitter Fitter, sampleRate int) (*Result, error) {
	x, err := batch.Matrix()
	if err != nil {
		return nil, fmt.Errorf("stack clips: %w", err)
	}
	start := time.Now()
	atoms, err := fitter.Fit(x)
	if err != nil {
		return nil, fmt.Errorf("fit dictionary: %w", err)
	}
	elapsed := time.Since(start)
	if atoms == nil || atoms.IsEmpty() {
		return nil, fmt.Errorf("fit dictionary: fitter returned no atoms")
	}

	_, want := x.Dims()
	if _, got := atoms.Dims(); got != want {
		return nil, fmt.Errorf("%w: fitter returned atoms of %d samples, want %d", clip.ErrShapeMismatch, got, want)
	}
	return &Result{
		Clips:      batch.Clips,
		Skipped:    batch.Skipped,
		Atoms:      atoms,
		SampleRate: sampleRate,
		Training:   elapsed,
	}, nil
}
