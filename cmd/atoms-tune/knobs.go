package main

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-atoms/internal/runcommon"
	"github.com/cwbudde/algo-atoms/learn"
)

type knobDef struct {
	Name  string
	Min   float64
	Max   float64
	IsInt bool
	Log   bool // search log-uniformly between Min and Max
}

type candidate struct {
	Vals []float64
}

// learnerKnobs returns the searched learner settings. The component count is
// capped by the number of training clips.
func learnerKnobs(maxAlpha float64, maxComponents int) ([]knobDef, error) {
	if maxAlpha <= 1e-3 {
		return nil, fmt.Errorf("max alpha must be > 0.001, got %g", maxAlpha)
	}
	if maxComponents < 1 {
		return nil, fmt.Errorf("max components must be >= 1, got %d", maxComponents)
	}
	return []knobDef{
		{Name: "alpha", Min: 1e-3, Max: maxAlpha, Log: true},
		{Name: "n_components", Min: 1, Max: float64(maxComponents), IsInt: true},
	}, nil
}

func initCandidate(base learn.Config, defs []knobDef) candidate {
	vals := make([]float64, len(defs))
	for i, d := range defs {
		switch d.Name {
		case "alpha":
			vals[i] = base.Alpha
		case "n_components":
			vals[i] = float64(base.Components)
		}
		vals[i] = runcommon.Clamp(vals[i], d.Min, d.Max)
		if d.IsInt {
			vals[i] = math.Round(vals[i])
		}
	}
	return candidate{Vals: vals}
}

func applyCandidate(base learn.Config, defs []knobDef, c candidate) learn.Config {
	cfg := base
	for i, d := range defs {
		switch d.Name {
		case "alpha":
			cfg.Alpha = c.Vals[i]
		case "n_components":
			cfg.Components = int(c.Vals[i])
		}
	}
	return cfg
}

func fromNormalized(pos []float64, defs []knobDef) candidate {
	vals := make([]float64, len(defs))
	for i := range defs {
		x := 0.0
		if i < len(pos) {
			x = runcommon.Clamp(pos[i], 0, 1)
		}
		var v float64
		if defs[i].Log {
			lo, hi := math.Log(defs[i].Min), math.Log(defs[i].Max)
			v = math.Exp(lo + x*(hi-lo))
		} else {
			v = defs[i].Min + x*(defs[i].Max-defs[i].Min)
		}
		if defs[i].IsInt {
			v = math.Round(v)
		}
		vals[i] = runcommon.Clamp(v, defs[i].Min, defs[i].Max)
	}
	return candidate{Vals: vals}
}

func knobMap(defs []knobDef, c candidate) map[string]float64 {
	out := make(map[string]float64, len(defs))
	for i, d := range defs {
		out[d.Name] = c.Vals[i]
	}
	return out
}

func cloneCandidate(c candidate) candidate {
	out := candidate{Vals: make([]float64, len(c.Vals))}
	copy(out.Vals, c.Vals)
	return out
}
