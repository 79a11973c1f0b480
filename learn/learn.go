// Package learn implements online mini-batch dictionary learning.
//
// Each mini-batch is sparse coded against the current dictionary by FISTA on
// the lasso objective 0.5*||x - a*D||^2 + Alpha*||a||_1, the code statistics
// are accumulated, and every atom is updated by block coordinate descent with
// projection onto the unit ball (Mairal et al., "Online dictionary learning
// for sparse coding", 2009).
package learn

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-atoms/clip"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrInvalidConfig is returned for unusable learner settings.
var ErrInvalidConfig = errors.New("learn: invalid configuration")

type Config struct {
	Components int     `json:"n_components"` // number of atoms
	Alpha      float64 `json:"alpha"`        // sparsity weight
	MaxIter    int     `json:"max_iter"`     // passes over the data
	BatchSize  int     `json:"batch_size"`
	CodingIter int     `json:"coding_iter"` // FISTA iterations per sparse coding call
	Seed       int64   `json:"seed"`
}

func DefaultConfig() Config {
	return Config{
		Components: 10,
		Alpha:      1.0,
		MaxIter:    10,
		BatchSize:  3,
		CodingIter: 100,
		Seed:       1,
	}
}

func (c *Config) Validate() error {
	switch {
	case c.Components < 1:
		return fmt.Errorf("%w: components must be >= 1, got %d", ErrInvalidConfig, c.Components)
	case c.Alpha < 0 || math.IsNaN(c.Alpha) || math.IsInf(c.Alpha, 0):
		return fmt.Errorf("%w: alpha must be a finite value >= 0", ErrInvalidConfig)
	case c.MaxIter < 1:
		return fmt.Errorf("%w: max iterations must be >= 1, got %d", ErrInvalidConfig, c.MaxIter)
	case c.BatchSize < 1:
		return fmt.Errorf("%w: batch size must be >= 1, got %d", ErrInvalidConfig, c.BatchSize)
	case c.CodingIter < 1:
		return fmt.Errorf("%w: coding iterations must be >= 1, got %d", ErrInvalidConfig, c.CodingIter)
	}
	return nil
}

// MiniBatch learns a dictionary of Components atoms (rows).
type MiniBatch struct {
	cfg        Config
	components *mat.Dense
	batches    int
}

func NewMiniBatch(cfg Config) (*MiniBatch, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &MiniBatch{cfg: cfg}, nil
}

func (m *MiniBatch) Config() Config {
	return m.cfg
}

// Components returns the learned atoms, or nil before Fit.
func (m *MiniBatch) Components() *mat.Dense {
	return m.components
}

// Batches returns the number of mini-batch updates performed by the last Fit.
func (m *MiniBatch) Batches() int {
	return m.batches
}

// Fit learns the dictionary from x (one sample per row) and returns it as a
// Components x Features matrix of unit-norm atoms.
func (m *MiniBatch) Fit(x *mat.Dense) (*mat.Dense, error) {
	if x == nil || x.IsEmpty() {
		return nil, clip.ErrEmptySet
	}
	n, p := x.Dims()
	k := m.cfg.Components
	rng := rand.New(rand.NewSource(m.cfg.Seed))

	d := initDictionary(x, k, rng)
	a := mat.NewDense(k, k, nil)
	b := mat.NewDense(k, p, nil)
	residual := make([]float64, p)
	m.batches = 0

	for epoch := 0; epoch < m.cfg.MaxIter; epoch++ {
		order := rng.Perm(n)
		for start := 0; start < n; start += m.cfg.BatchSize {
			end := min(start+m.cfg.BatchSize, n)
			xb := gatherRows(x, order[start:end])
			codes := m.code(xb, d)

			var da, db mat.Dense
			da.Mul(codes.T(), codes)
			db.Mul(codes.T(), xb)
			a.Add(a, &da)
			b.Add(b, &db)

			updateDictionary(d, a, b, residual)
			m.batches++
		}
	}

	for j := 0; j < k; j++ {
		row := d.RawRowView(j)
		if nrm := floats.Norm(row, 2); nrm > 0 {
			floats.Scale(1/nrm, row)
		}
	}
	m.components = d
	return mat.DenseCopyOf(d), nil
}

// Transform sparse codes x against the learned dictionary. The result has one
// row per sample and one column per atom.
func (m *MiniBatch) Transform(x *mat.Dense) (*mat.Dense, error) {
	if m.components == nil {
		return nil, fmt.Errorf("learn: transform before fit")
	}
	if x == nil || x.IsEmpty() {
		return nil, clip.ErrEmptySet
	}
	_, p := x.Dims()
	if _, dp := m.components.Dims(); dp != p {
		return nil, fmt.Errorf("%w: %d features, dictionary has %d", clip.ErrShapeMismatch, p, dp)
	}
	return m.code(x, m.components), nil
}

// Score returns the mean squared reconstruction error of x under the learned
// dictionary.
func (m *MiniBatch) Score(x *mat.Dense) (float64, error) {
	codes, err := m.Transform(x)
	if err != nil {
		return 0, err
	}
	return ReconstructionError(x, codes, m.components), nil
}

// ReconstructionError returns ||x - codes*dict||^2 / (rows*cols).
func ReconstructionError(x, codes, dict mat.Matrix) float64 {
	r, c := x.Dims()
	var rec mat.Dense
	rec.Mul(codes, dict)
	rec.Sub(x, &rec)
	fro := mat.Norm(&rec, 2)
	return fro * fro / float64(r*c)
}

// code runs FISTA for every row of xb at once.
func (m *MiniBatch) code(xb mat.Matrix, d *mat.Dense) *mat.Dense {
	rows, _ := xb.Dims()
	k, _ := d.Dims()
	codes := mat.NewDense(rows, k, nil)

	var gram, corr mat.Dense
	gram.Mul(d, d.T())
	corr.Mul(xb, d.T())
	lip := maxEigenvalue(&gram)
	if lip <= 0 {
		return codes
	}
	thresh := m.cfg.Alpha / lip

	y := mat.NewDense(rows, k, nil)
	prev := mat.NewDense(rows, k, nil)
	var grad mat.Dense
	t := 1.0
	for it := 0; it < m.cfg.CodingIter; it++ {
		grad.Mul(y, &gram)
		grad.Sub(&grad, &corr)
		prev.Copy(codes)
		for i := 0; i < rows; i++ {
			for j := 0; j < k; j++ {
				codes.Set(i, j, softThreshold(y.At(i, j)-grad.At(i, j)/lip, thresh))
			}
		}
		tNext := (1 + math.Sqrt(1+4*t*t)) / 2
		momentum := (t - 1) / tNext
		for i := 0; i < rows; i++ {
			for j := 0; j < k; j++ {
				c := codes.At(i, j)
				y.Set(i, j, c+momentum*(c-prev.At(i, j)))
			}
		}
		t = tNext
	}
	return codes
}

// updateDictionary performs one block coordinate pass over the atoms.
// Atoms that no code has used yet are left alone.
func updateDictionary(d, a, b *mat.Dense, residual []float64) {
	k, _ := d.Dims()
	for j := 0; j < k; j++ {
		ajj := a.At(j, j)
		if ajj < 1e-12 {
			continue
		}
		copy(residual, b.RawRowView(j))
		for l := 0; l < k; l++ {
			if w := a.At(j, l); w != 0 {
				floats.AddScaled(residual, -w, d.RawRowView(l))
			}
		}
		atom := d.RawRowView(j)
		floats.AddScaled(atom, 1/ajj, residual)
		if nrm := floats.Norm(atom, 2); nrm > 1 {
			floats.Scale(1/nrm, atom)
		}
	}
}

// initDictionary seeds atoms with randomly chosen data rows. Extra or silent
// atoms fall back to Gaussian noise. Every atom has unit norm.
func initDictionary(x *mat.Dense, k int, rng *rand.Rand) *mat.Dense {
	n, p := x.Dims()
	d := mat.NewDense(k, p, nil)
	perm := rng.Perm(n)
	for j := 0; j < k; j++ {
		atom := d.RawRowView(j)
		if j < n {
			copy(atom, x.RawRowView(perm[j]))
		}
		if floats.Norm(atom, 2) == 0 {
			for i := range atom {
				atom[i] = rng.NormFloat64()
			}
		}
		floats.Scale(1/floats.Norm(atom, 2), atom)
	}
	return d
}

func gatherRows(x *mat.Dense, idx []int) *mat.Dense {
	_, p := x.Dims()
	out := mat.NewDense(len(idx), p, nil)
	for i, r := range idx {
		out.SetRow(i, x.RawRowView(r))
	}
	return out
}

func maxEigenvalue(g *mat.Dense) float64 {
	k, _ := g.Dims()
	sym := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			sym.SetSym(i, j, 0.5*(g.At(i, j)+g.At(j, i)))
		}
	}
	var eig mat.EigenSym
	if !eig.Factorize(sym, false) {
		// The trace bounds the largest eigenvalue of a PSD matrix.
		return mat.Trace(g)
	}
	vals := eig.Values(nil)
	best := 0.0
	for _, v := range vals {
		best = math.Max(best, v)
	}
	return best
}

func softThreshold(v, t float64) float64 {
	switch {
	case v > t:
		return v - t
	case v < -t:
		return v + t
	default:
		return 0
	}
}
