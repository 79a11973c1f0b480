package pipeline

import (
	"fmt"
	"math/rand"

	"github.com/cwbudde/algo-atoms/catalog"
	"github.com/cwbudde/algo-atoms/clip"
	"github.com/cwbudde/algo-atoms/normalize"
	"gonum.org/v1/gonum/mat"
)

// Config selects and preprocesses a batch of clips.
type Config struct {
	Directory  string
	Extension  string
	NumSamples int
	Normalize  normalize.Config

	// SkipFailures records per-file failures in Result.Skipped instead of
	// aborting the whole batch on the first one.
	SkipFailures bool
}

func DefaultConfig() Config {
	return Config{
		Extension:  catalog.DefaultExtension,
		NumSamples: 10,
		Normalize:  normalize.DefaultConfig(),
	}
}

func (c *Config) Validate() error {
	if c.Directory == "" {
		return fmt.Errorf("directory must not be empty")
	}
	if c.NumSamples < 0 {
		return fmt.Errorf("num samples must be >= 0, got %d", c.NumSamples)
	}
	return c.Normalize.Validate()
}

// Skip records a file that could not be preprocessed.
type Skip struct {
	Path string
	Err  error
}

// Result is the output of one pipeline run.
type Result struct {
	Selected []string
	Clips    clip.Set
	Skipped  []Skip
}

// Matrix stacks the clips one per row for the fitter.
func (r *Result) Matrix() (*mat.Dense, error) {
	return r.Clips.Matrix()
}

type Pipeline struct {
	cfg        Config
	normalizer *normalize.Normalizer
}

func New(cfg Config) (*Pipeline, error) {
	if cfg.Extension == "" {
		cfg.Extension = catalog.DefaultExtension
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n, err := normalize.New(cfg.Normalize)
	if err != nil {
		return nil, err
	}
	return &Pipeline{cfg: cfg, normalizer: n}, nil
}

func (p *Pipeline) Config() Config {
	return p.cfg
}

// Run samples up to NumSamples files and preprocesses them in sampled order.
func (p *Pipeline) Run(rng *rand.Rand) (*Result, error) {
	candidates, err := catalog.ListCandidates(p.cfg.Directory, p.cfg.Extension)
	if err != nil {
		return nil, err
	}
	selected := catalog.Sample(rng, candidates, p.cfg.NumSamples)
	return p.Process(selected)
}

// Process preprocesses the given paths in order.
func (p *Pipeline) Process(paths []string) (*Result, error) {
	res := &Result{
		Selected: paths,
		Clips:    make(clip.Set, 0, len(paths)),
	}
	for _, path := range paths {
		c, err := p.normalizer.Preprocess(path)
		if err != nil {
			if !p.cfg.SkipFailures {
				return nil, fmt.Errorf("preprocess %s: %w", path, err)
			}
			res.Skipped = append(res.Skipped, Skip{Path: path, Err: err})
			continue
		}
		res.Clips = append(res.Clips, c)
	}
	return res, nil
}
