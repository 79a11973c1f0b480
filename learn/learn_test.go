package learn

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/cwbudde/algo-atoms/clip"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// mixtures builds rows that are random combinations of two orthogonal atoms.
func mixtures(rows, features int, seed int64) *mat.Dense {
	a1 := make([]float64, features)
	a2 := make([]float64, features)
	for i := 0; i < features; i++ {
		a1[i] = math.Sin(2 * math.Pi * 3 * float64(i) / float64(features))
		a2[i] = math.Cos(2 * math.Pi * 7 * float64(i) / float64(features))
	}
	floats.Scale(1/floats.Norm(a1, 2), a1)
	floats.Scale(1/floats.Norm(a2, 2), a2)

	rng := rand.New(rand.NewSource(seed))
	x := mat.NewDense(rows, features, nil)
	row := make([]float64, features)
	for r := 0; r < rows; r++ {
		c1 := rng.Float64()*2 - 1
		c2 := rng.Float64()*2 - 1
		for i := range row {
			row[i] = c1*a1[i] + c2*a2[i]
		}
		x.SetRow(r, row)
	}
	return x
}

func meanSquare(x *mat.Dense) float64 {
	r, c := x.Dims()
	f := mat.Norm(x, 2)
	return f * f / float64(r*c)
}

func TestConfigValidate(t *testing.T) {
	mutations := map[string]func(*Config){
		"components": func(c *Config) { c.Components = 0 },
		"alpha":      func(c *Config) { c.Alpha = -1 },
		"nan alpha":  func(c *Config) { c.Alpha = math.NaN() },
		"max iter":   func(c *Config) { c.MaxIter = 0 },
		"batch":      func(c *Config) { c.BatchSize = 0 },
		"coding":     func(c *Config) { c.CodingIter = 0 },
	}
	for name, mutate := range mutations {
		cfg := DefaultConfig()
		mutate(&cfg)
		if _, err := NewMiniBatch(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}

func TestFitReturnsUnitNormAtoms(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Components = 4
	cfg.MaxIter = 3
	mb, err := NewMiniBatch(cfg)
	if err != nil {
		t.Fatalf("NewMiniBatch: %v", err)
	}
	x := mixtures(12, 64, 1)
	atoms, err := mb.Fit(x)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	r, c := atoms.Dims()
	if r != 4 || c != 64 {
		t.Fatalf("unexpected atom matrix: %dx%d", r, c)
	}
	for i := 0; i < r; i++ {
		if n := floats.Norm(atoms.RawRowView(i), 2); math.Abs(n-1) > 1e-9 {
			t.Fatalf("atom %d has norm %f", i, n)
		}
	}
	if mb.Batches() != 3*4 {
		t.Fatalf("expected 12 mini-batches, got %d", mb.Batches())
	}

	// The returned matrix is a copy.
	atoms.Set(0, 0, 123)
	if mb.Components().At(0, 0) == 123 {
		t.Fatalf("Fit result aliases internal components")
	}
}

func TestFitExplainsLowRankData(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Components = 2
	cfg.Alpha = 0.01
	cfg.MaxIter = 20
	cfg.CodingIter = 500
	mb, err := NewMiniBatch(cfg)
	if err != nil {
		t.Fatalf("NewMiniBatch: %v", err)
	}
	x := mixtures(30, 64, 2)
	if _, err := mb.Fit(x); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	score, err := mb.Score(x)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if base := meanSquare(x); score > 0.1*base {
		t.Fatalf("reconstruction error %g too large relative to signal power %g", score, base)
	}
}

func TestFitMoreAtomsThanSamples(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Components = 5
	cfg.MaxIter = 2
	mb, err := NewMiniBatch(cfg)
	if err != nil {
		t.Fatalf("NewMiniBatch: %v", err)
	}
	atoms, err := mb.Fit(mixtures(2, 32, 3))
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if r, _ := atoms.Dims(); r != 5 {
		t.Fatalf("expected 5 atoms, got %d", r)
	}
}

func TestFitDeterministicForSeed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Components = 3
	cfg.MaxIter = 2
	x := mixtures(9, 32, 4)

	run := func() *mat.Dense {
		mb, err := NewMiniBatch(cfg)
		if err != nil {
			t.Fatalf("NewMiniBatch: %v", err)
		}
		atoms, err := mb.Fit(x)
		if err != nil {
			t.Fatalf("Fit: %v", err)
		}
		return atoms
	}
	if !mat.Equal(run(), run()) {
		t.Fatalf("expected identical dictionaries for identical seeds")
	}
}

func TestTransformLargeAlphaIsAllZero(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Components = 2
	cfg.MaxIter = 1
	mb, err := NewMiniBatch(cfg)
	if err != nil {
		t.Fatalf("NewMiniBatch: %v", err)
	}
	x := mixtures(6, 32, 5)
	if _, err := mb.Fit(x); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	mb.cfg.Alpha = 1e6
	codes, err := mb.Transform(x)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if mat.Norm(codes, 2) != 0 {
		t.Fatalf("expected all-zero codes for huge alpha")
	}
}

func TestTransformErrors(t *testing.T) {
	mb, err := NewMiniBatch(DefaultConfig())
	if err != nil {
		t.Fatalf("NewMiniBatch: %v", err)
	}
	if _, err := mb.Transform(mixtures(2, 8, 6)); err == nil {
		t.Fatalf("expected error before Fit")
	}
	if _, err := mb.Fit(mixtures(4, 8, 6)); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if _, err := mb.Transform(mixtures(2, 16, 6)); !errors.Is(err, clip.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
	if _, err := mb.Fit(nil); !errors.Is(err, clip.ErrEmptySet) {
		t.Fatalf("expected ErrEmptySet, got %v", err)
	}
}

func TestReconstructionErrorZeroCodes(t *testing.T) {
	x := mixtures(3, 16, 7)
	codes := mat.NewDense(3, 2, nil)
	dict := mat.NewDense(2, 16, nil)
	if got, want := ReconstructionError(x, codes, dict), meanSquare(x); math.Abs(got-want) > 1e-12 {
		t.Fatalf("got %g, want %g", got, want)
	}
}

func TestSoftThreshold(t *testing.T) {
	if softThreshold(3, 1) != 2 || softThreshold(-3, 1) != -2 || softThreshold(0.5, 1) != 0 {
		t.Fatalf("unexpected soft threshold values")
	}
}
