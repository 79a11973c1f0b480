package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/cwbudde/algo-atoms/config"
	"github.com/cwbudde/algo-atoms/internal/runcommon"
	"github.com/cwbudde/algo-atoms/learn"
	"github.com/cwbudde/algo-atoms/pipeline"
	"github.com/cwbudde/algo-atoms/split"
	"gonum.org/v1/gonum/mat"
)

type runReport struct {
	BaseDir        string             `json:"base_dir"`
	Seed           int64              `json:"seed"`
	SampleRate     int                `json:"sample_rate"`
	TrainClips     int                `json:"train_clips"`
	TestClips      int                `json:"test_clips"`
	DurationSec    float64            `json:"elapsed_seconds"`
	Evaluations    int                `json:"evaluations"`
	Rounds         int                `json:"rounds"`
	MayflyVariant  string             `json:"mayfly_variant"`
	BaselineScore  float64            `json:"baseline_score"`
	BestScore      float64            `json:"best_score"`
	BestKnobs      map[string]float64 `json:"best_knobs"`
	OutputConfig   string             `json:"output_config,omitempty"`
	SkippedDecodes []string           `json:"skipped,omitempty"`
}

func main() {
	pf := runcommon.NewPipelineFlags(flag.CommandLine)
	lf := runcommon.NewLearnFlags(flag.CommandLine)
	baseDir := flag.String("base", "", "Split directory holding train_set and test_set (default: -dir)")
	testSamples := flag.Int("test-samples", 0, "Clips sampled from test_set (0 = same as -num-samples)")
	maxAlpha := flag.Float64("max-alpha", 10.0, "Upper bound of the alpha search range")
	maxComponents := flag.Int("max-components", 32, "Upper bound of the component search range")
	timeBudget := flag.Float64("time-budget", 300.0, "Optimization time budget in seconds")
	maxEvals := flag.Int("evals", 40, "Maximum objective evaluations")
	reportEvery := flag.Int("report-every", 5, "Print progress every N evaluations")
	workersFlag := flag.String("workers", "1", "Parallel Mayfly rounds (integer >= 1 or 'auto')")
	reportPath := flag.String("report", "", "Optional report JSON path (default: <base>/tune.report.json)")
	outputConfig := flag.String("output-config", "", "Optional path to write the best learner settings as experiment JSON")

	mayflyVariant := flag.String("mayfly-variant", "desma", "Mayfly variant: ma|desma|olce|eobbma|gsasma|mpma|aoblmoa")
	mayflyPop := flag.Int("mayfly-pop", 6, "Male and female population size per Mayfly run")
	mayflyRoundEvals := flag.Int("mayfly-round-evals", 24, "Target eval budget per Mayfly round")
	flag.Parse()

	if *maxEvals < 1 {
		die("evals must be >= 1")
	}
	if *timeBudget <= 0 {
		die("time-budget must be > 0")
	}
	if *mayflyPop < 2 {
		*mayflyPop = 2
	}
	if *mayflyRoundEvals < *mayflyPop*2 {
		*mayflyRoundEvals = *mayflyPop * 2
	}
	workers, err := runcommon.ParseWorkers(*workersFlag)
	if err != nil {
		die("invalid workers value: %v", err)
	}

	exp, err := pf.Experiment(lf)
	if err != nil {
		die("invalid configuration: %v", err)
	}
	base := firstNonEmpty(*baseDir, exp.Split.BaseDir, exp.Pipeline.Directory)
	if base == "" {
		die("-base is required")
	}
	exp.Split.BaseDir = base
	rng, seed := runcommon.SeededRand(exp.Seed)

	trainCfg := exp.Pipeline
	trainCfg.Directory = exp.Split.TrainDir()
	testCfg := exp.Pipeline
	testCfg.Directory = exp.Split.TestDir()
	if *testSamples > 0 {
		testCfg.NumSamples = *testSamples
	}

	train, trainRes := loadMatrix(trainCfg, rng)
	test, testRes := loadMatrix(testCfg, rng)
	fmt.Printf("Loaded train=%d test=%d clips of %s\n",
		len(trainRes.Clips), len(testRes.Clips), runcommon.DescribeNormalize(exp.Pipeline.Normalize))

	defs, err := learnerKnobs(*maxAlpha, *maxComponents)
	if err != nil {
		die("invalid search range: %v", err)
	}
	exp.Learn.Seed = seed
	res, err := runOptimization(&optimizationConfig{
		train:            train,
		test:             test,
		base:             exp.Learn,
		defs:             defs,
		seed:             seed,
		timeBudget:       *timeBudget,
		maxEvals:         *maxEvals,
		reportEvery:      *reportEvery,
		mayflyVariant:    *mayflyVariant,
		mayflyPop:        *mayflyPop,
		mayflyRoundEvals: *mayflyRoundEvals,
		workers:          workers,
	})
	if err != nil {
		die("optimization failed: %v", err)
	}

	rep := runReport{
		BaseDir:       base,
		Seed:          seed,
		SampleRate:    exp.Pipeline.Normalize.SampleRate,
		TrainClips:    len(trainRes.Clips),
		TestClips:     len(testRes.Clips),
		DurationSec:   res.elapsed,
		Evaluations:   res.evals,
		Rounds:        res.rounds,
		MayflyVariant: strings.ToLower(*mayflyVariant),
		BaselineScore: res.baseline,
		BestScore:     res.bestScore,
		BestKnobs:     knobMap(defs, res.best),
	}
	for _, r := range []*pipeline.Result{trainRes, testRes} {
		for _, s := range r.Skipped {
			rep.SkippedDecodes = append(rep.SkippedDecodes, fmt.Sprintf("%s: %v", s.Path, s.Err))
		}
	}

	if *outputConfig != "" {
		absBase, err := filepath.Abs(base)
		if err != nil {
			die("failed to resolve %s: %v", base, err)
		}
		best := applyCandidate(exp.Learn, defs, res.best)
		if err := runcommon.WriteJSON(*outputConfig, bestConfigFile(exp, absBase, best)); err != nil {
			die("failed to write config: %v", err)
		}
		rep.OutputConfig = *outputConfig
	}
	if *reportPath == "" {
		*reportPath = filepath.Join(base, "tune.report.json")
	}
	if err := runcommon.WriteJSON(*reportPath, rep); err != nil {
		die("failed to write report: %v", err)
	}
	fmt.Printf("Done evals=%d elapsed=%.1fs baseline=%.6f best=%.6f knobs=%v variant=%s\n",
		res.evals, res.elapsed, res.baseline, res.bestScore, rep.BestKnobs, rep.MayflyVariant)
}

func loadMatrix(cfg pipeline.Config, rng *rand.Rand) (*mat.Dense, *pipeline.Result) {
	p, err := pipeline.New(cfg)
	if err != nil {
		die("invalid pipeline configuration: %v", err)
	}
	res, err := p.Run(rng)
	if err != nil {
		die("preprocessing %s failed: %v", cfg.Directory, err)
	}
	x, err := res.Matrix()
	if err != nil {
		die("no usable clips in %s: %v", cfg.Directory, err)
	}
	return x, res
}

// bestConfigFile renders tuned learner settings as an experiment file that
// atoms-learn can load with -config. base must be absolute.
func bestConfigFile(exp *config.Experiment, base string, best learn.Config) *config.File {
	n := exp.Pipeline.Normalize
	return &config.File{
		Directory:      filepath.Join(base, split.TrainDirName),
		BaseDir:        base,
		Extension:      exp.Pipeline.Extension,
		NumSamples:     &exp.Pipeline.NumSamples,
		SampleRate:     &n.SampleRate,
		TargetDuration: &n.TargetDuration,
		TopDB:          &n.TopDB,
		HighpassHz:     &n.HighpassHz,
		LowpassHz:      &n.LowpassHz,
		Learner: &config.LearnerSetting{
			Components: &best.Components,
			Alpha:      &best.Alpha,
			MaxIter:    &best.MaxIter,
			BatchSize:  &best.BatchSize,
			CodingIter: &best.CodingIter,
		},
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
