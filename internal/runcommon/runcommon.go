// Package runcommon holds the flag and output plumbing shared by the atoms
// commands.
package runcommon

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cwbudde/algo-atoms/config"
	"github.com/cwbudde/algo-atoms/learn"
	"github.com/cwbudde/algo-atoms/normalize"
	"github.com/cwbudde/algo-atoms/pipeline"
)

// PipelineFlags binds the preprocessing flags shared by every command that
// samples and normalizes clips.
type PipelineFlags struct {
	fs *flag.FlagSet

	Config       *string
	Dir          *string
	Ext          *string
	NumSamples   *int
	Duration     *float64
	SampleRate   *int
	TopDB        *float64
	Highpass     *float64
	Lowpass      *float64
	SkipFailures *bool
	Seed         *int64
}

func NewPipelineFlags(fs *flag.FlagSet) *PipelineFlags {
	p := pipeline.DefaultConfig()
	return &PipelineFlags{
		fs:           fs,
		Config:       fs.String("config", "", "Optional experiment JSON file (explicit flags override it)"),
		Dir:          fs.String("dir", "", "Directory holding the audio files"),
		Ext:          fs.String("ext", p.Extension, "File extension to include"),
		NumSamples:   fs.Int("num-samples", p.NumSamples, "Number of files to sample"),
		Duration:     fs.Float64("duration", p.Normalize.TargetDuration, "Clip duration in seconds"),
		SampleRate:   fs.Int("sample-rate", p.Normalize.SampleRate, "Target sample rate"),
		TopDB:        fs.Float64("top-db", p.Normalize.TopDB, "Silence threshold in dB below peak"),
		Highpass:     fs.Float64("highpass", p.Normalize.HighpassHz, "DC-blocking highpass cutoff in Hz (0 = off)"),
		Lowpass:      fs.Float64("lowpass", p.Normalize.LowpassHz, "Band-limiting lowpass cutoff in Hz (0 = off)"),
		SkipFailures: fs.Bool("skip-failures", p.SkipFailures, "Skip undecodable files instead of aborting"),
		Seed:         fs.Int64("seed", 0, "Random seed (0 = time-based)"),
	}
}

// LearnFlags binds the dictionary learner flags.
type LearnFlags struct {
	Components *int
	Alpha      *float64
	MaxIter    *int
	BatchSize  *int
	CodingIter *int
}

func NewLearnFlags(fs *flag.FlagSet) *LearnFlags {
	d := learn.DefaultConfig()
	return &LearnFlags{
		Components: fs.Int("components", d.Components, "Number of dictionary atoms"),
		Alpha:      fs.Float64("alpha", d.Alpha, "Sparsity weight"),
		MaxIter:    fs.Int("max-iter", d.MaxIter, "Passes over the training batch"),
		BatchSize:  fs.Int("batch-size", d.BatchSize, "Clips per mini-batch"),
		CodingIter: fs.Int("coding-iter", d.CodingIter, "Sparse coding iterations per mini-batch"),
	}
}

// Experiment loads the optional config file and applies every flag that
// was set explicitly. Without a config file all flags apply.
func (p *PipelineFlags) Experiment(lf *LearnFlags) (*config.Experiment, error) {
	exp := config.Default()
	if *p.Config != "" {
		loaded, err := config.LoadJSON(*p.Config)
		if err != nil {
			return nil, err
		}
		exp = loaded
	}

	set := make(map[string]bool)
	p.fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	use := func(name string) bool { return *p.Config == "" || set[name] }

	pc := &exp.Pipeline
	if use("dir") {
		pc.Directory = *p.Dir
	}
	if use("ext") {
		pc.Extension = *p.Ext
		exp.Split.Extension = *p.Ext
	}
	if use("num-samples") {
		pc.NumSamples = *p.NumSamples
	}
	if use("duration") {
		pc.Normalize.TargetDuration = *p.Duration
	}
	if use("sample-rate") {
		pc.Normalize.SampleRate = *p.SampleRate
	}
	if use("top-db") {
		pc.Normalize.TopDB = *p.TopDB
	}
	if use("highpass") {
		pc.Normalize.HighpassHz = *p.Highpass
	}
	if use("lowpass") {
		pc.Normalize.LowpassHz = *p.Lowpass
	}
	if use("skip-failures") {
		pc.SkipFailures = *p.SkipFailures
	}
	if use("seed") {
		exp.Seed = *p.Seed
	}

	if lf != nil {
		lc := &exp.Learn
		if use("components") {
			lc.Components = *lf.Components
		}
		if use("alpha") {
			lc.Alpha = *lf.Alpha
		}
		if use("max-iter") {
			lc.MaxIter = *lf.MaxIter
		}
		if use("batch-size") {
			lc.BatchSize = *lf.BatchSize
		}
		if use("coding-iter") {
			lc.CodingIter = *lf.CodingIter
		}
		if err := lc.Validate(); err != nil {
			return nil, err
		}
	}
	if err := pc.Normalize.Validate(); err != nil {
		return nil, err
	}
	return exp, nil
}

// SeededRand returns a generator for seed and the seed actually used.
// Seed 0 is replaced by the current time.
func SeededRand(seed int64) (*rand.Rand, int64) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed)), seed
}

// ClipFileName names preprocessed clip i after its source file.
func ClipFileName(i int, source string) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("clip_%03d_%s.wav", i, base)
}

// DescribeNormalize renders the clip geometry for progress output.
func DescribeNormalize(c normalize.Config) string {
	return fmt.Sprintf("%d samples (%.2fs at %d Hz)", c.TargetLength(), c.TargetDuration, c.SampleRate)
}

func WriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o644)
}

func ParseWorkers(raw string) (int, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return 0, fmt.Errorf("empty value (use integer >= 1 or 'auto')")
	}
	if v == "auto" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%q (use integer >= 1 or 'auto')", raw)
	}
	if n < 1 {
		return 0, fmt.Errorf("%d (must be >= 1 or 'auto')", n)
	}
	return n, nil
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
