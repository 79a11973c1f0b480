package main

import (
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwbudde/algo-atoms/learn"
	"github.com/cwbudde/mayfly"
	"gonum.org/v1/gonum/mat"
)

type optimizationConfig struct {
	train, test      *mat.Dense
	base             learn.Config
	defs             []knobDef
	seed             int64
	timeBudget       float64
	maxEvals         int
	reportEvery      int
	mayflyVariant    string
	mayflyPop        int
	mayflyRoundEvals int
	workers          int
}

type optimizationResult struct {
	baseline  float64
	best      candidate
	bestScore float64
	evals     int
	rounds    int
	elapsed   float64
}

type optimizationState struct {
	mu        sync.Mutex
	best      candidate
	bestScore float64
}

// evaluate fits a dictionary on the training clips and returns the mean
// squared reconstruction error of the held-out clips.
func evaluate(cfg learn.Config, train, test *mat.Dense) (float64, error) {
	mb, err := learn.NewMiniBatch(cfg)
	if err != nil {
		return 0, err
	}
	if _, err := mb.Fit(train); err != nil {
		return 0, err
	}
	return mb.Score(test)
}

func runOptimization(cfg *optimizationConfig) (*optimizationResult, error) {
	start := time.Now()
	deadline := start.Add(time.Duration(cfg.timeBudget * float64(time.Second)))
	variant := strings.ToLower(cfg.mayflyVariant)

	initial := initCandidate(cfg.base, cfg.defs)
	baseline, err := evaluate(applyCandidate(cfg.base, cfg.defs, initial), cfg.train, cfg.test)
	if err != nil {
		return nil, fmt.Errorf("initial evaluation failed: %w", err)
	}
	fmt.Printf("Start score=%.6f knobs=%v\n", baseline, knobMap(cfg.defs, initial))

	state := &optimizationState{best: initial, bestScore: baseline}
	var evals int64 = 1
	var rounds int64
	var improves int64

	workers := cfg.workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if time.Now().After(deadline) {
					return
				}
				remaining := cfg.maxEvals - int(atomic.LoadInt64(&evals))
				if remaining <= 0 {
					return
				}
				round := int(atomic.AddInt64(&rounds, 1))
				budget := min(cfg.mayflyRoundEvals, remaining)
				iters := max(1, budget/(2*cfg.mayflyPop))

				mayflyConfig, err := newMayflyConfig(variant, cfg.mayflyPop, len(cfg.defs), iters)
				if err != nil {
					fmt.Fprintf(os.Stderr, "mayfly round %d setup failed: %v\n", round, err)
					return
				}
				mayflyConfig.Rand = rand.New(rand.NewSource(cfg.seed + int64(round)*7919))
				mayflyConfig.ObjectiveFunc = func(pos []float64) float64 {
					if time.Now().After(deadline) {
						return currentBestScore(state) + 1.0
					}
					evalNum, ok := reserveEval(&evals, cfg.maxEvals)
					if !ok {
						return currentBestScore(state) + 1.0
					}

					cand := fromNormalized(pos, cfg.defs)
					score, err := evaluate(applyCandidate(cfg.base, cfg.defs, cand), cfg.train, cfg.test)
					if err != nil {
						return currentBestScore(state) + 0.8
					}

					state.mu.Lock()
					if score < state.bestScore {
						state.best = cloneCandidate(cand)
						state.bestScore = score
						n := atomic.AddInt64(&improves, 1)
						fmt.Printf("Improved #%d eval=%d score=%.6f knobs=%v\n", n, evalNum, score, knobMap(cfg.defs, cand))
					}
					best := state.bestScore
					state.mu.Unlock()

					if cfg.reportEvery > 0 && evalNum%int64(cfg.reportEvery) == 0 {
						fmt.Printf("Progress round=%d eval=%d elapsed=%.1fs best=%.6f\n", round, evalNum, time.Since(start).Seconds(), best)
					}
					return score
				}

				if _, err := runMayfly(mayflyConfig); err != nil {
					fmt.Fprintf(os.Stderr, "mayfly round %d failed: %v\n", round, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	state.mu.Lock()
	defer state.mu.Unlock()
	return &optimizationResult{
		baseline:  baseline,
		best:      cloneCandidate(state.best),
		bestScore: state.bestScore,
		evals:     int(atomic.LoadInt64(&evals)),
		rounds:    int(atomic.LoadInt64(&rounds)),
		elapsed:   time.Since(start).Seconds(),
	}, nil
}

func newMayflyConfig(variant string, pop int, dims int, iters int) (*mayfly.Config, error) {
	var cfg *mayfly.Config
	switch variant {
	case "ma":
		cfg = mayfly.NewDefaultConfig()
	case "desma":
		cfg = mayfly.NewDESMAConfig()
	case "olce":
		cfg = mayfly.NewOLCEConfig()
	case "eobbma":
		cfg = mayfly.NewEOBBMAConfig()
	case "gsasma":
		cfg = mayfly.NewGSASMAConfig()
	case "mpma":
		cfg = mayfly.NewMPMAConfig()
	case "aoblmoa":
		cfg = mayfly.NewAOBLMOAConfig()
	default:
		return nil, fmt.Errorf("unsupported variant %q", variant)
	}
	cfg.ProblemSize = dims
	cfg.LowerBound = 0.0
	cfg.UpperBound = 1.0
	cfg.MaxIterations = iters
	cfg.NPop = pop
	cfg.NPopF = pop
	// Parent pairs are drawn from both populations.
	cfg.NC = 2 * pop
	cfg.NM = max(1, pop/20)
	return cfg, nil
}

func runMayfly(cfg *mayfly.Config) (_ *mayfly.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mayfly panic: %v", r)
		}
	}()
	return mayfly.Optimize(cfg)
}

func reserveEval(evals *int64, maxEvals int) (int64, bool) {
	for {
		cur := atomic.LoadInt64(evals)
		if cur >= int64(maxEvals) {
			return 0, false
		}
		if atomic.CompareAndSwapInt64(evals, cur, cur+1) {
			return cur + 1, true
		}
	}
}

func currentBestScore(state *optimizationState) float64 {
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.bestScore
}
