// Package config loads JSON experiment files on top of the package defaults.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/cwbudde/algo-atoms/learn"
	"github.com/cwbudde/algo-atoms/pipeline"
	"github.com/cwbudde/algo-atoms/split"
)

// File is the JSON schema for experiment files. Unset fields keep their
// defaults.
type File struct {
	Directory      string          `json:"directory"`
	BaseDir        string          `json:"base_dir"`
	Extension      string          `json:"extension"`
	NumSamples     *int            `json:"num_samples"`
	SampleRate     *int            `json:"sample_rate"`
	TargetDuration *float64        `json:"target_duration"`
	TopDB          *float64        `json:"top_db"`
	HighpassHz     *float64        `json:"highpass_hz"`
	LowpassHz      *float64        `json:"lowpass_hz"`
	SkipFailures   *bool           `json:"skip_failures"`
	TrainRatio     *float64        `json:"train_ratio"`
	Seed           *int64          `json:"seed"`
	Learner        *LearnerSetting `json:"learner"`
}

// LearnerSetting is a partial dictionary learner override.
type LearnerSetting struct {
	Components *int     `json:"n_components"`
	Alpha      *float64 `json:"alpha"`
	MaxIter    *int     `json:"max_iter"`
	BatchSize  *int     `json:"batch_size"`
	CodingIter *int     `json:"coding_iter"`
}

// Experiment collects every tunable of a preprocessing and learning run.
type Experiment struct {
	Pipeline pipeline.Config
	Split    split.Config
	Learn    learn.Config
	Seed     int64 // 0 selects a time-based seed
}

func Default() *Experiment {
	return &Experiment{
		Pipeline: pipeline.DefaultConfig(),
		Split:    split.DefaultConfig(),
		Learn:    learn.DefaultConfig(),
	}
}

// LoadJSON loads an experiment file and applies it on top of the defaults.
// Relative directories are resolved against the file's directory.
func LoadJSON(path string) (*Experiment, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	e := Default()
	if err := ApplyFile(e, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	base := filepath.Dir(path)
	e.Pipeline.Directory = resolve(base, e.Pipeline.Directory)
	e.Split.BaseDir = resolve(base, e.Split.BaseDir)
	return e, nil
}

// ApplyFile applies a parsed experiment file onto an existing experiment.
func ApplyFile(dst *Experiment, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination experiment")
	}
	if f == nil {
		return nil
	}

	if d := strings.TrimSpace(f.Directory); d != "" {
		dst.Pipeline.Directory = d
	}
	if d := strings.TrimSpace(f.BaseDir); d != "" {
		dst.Split.BaseDir = d
	}
	if ext := strings.TrimSpace(f.Extension); ext != "" {
		dst.Pipeline.Extension = ext
		dst.Split.Extension = ext
	}
	if f.NumSamples != nil {
		if *f.NumSamples < 0 {
			return fmt.Errorf("num_samples must be >= 0")
		}
		dst.Pipeline.NumSamples = *f.NumSamples
	}
	if f.SampleRate != nil {
		if *f.SampleRate <= 0 {
			return fmt.Errorf("sample_rate must be > 0")
		}
		dst.Pipeline.Normalize.SampleRate = *f.SampleRate
	}
	if f.TargetDuration != nil {
		if !positive(*f.TargetDuration) {
			return fmt.Errorf("target_duration must be > 0")
		}
		dst.Pipeline.Normalize.TargetDuration = *f.TargetDuration
	}
	if f.TopDB != nil {
		if !positive(*f.TopDB) {
			return fmt.Errorf("top_db must be > 0")
		}
		dst.Pipeline.Normalize.TopDB = *f.TopDB
	}
	if f.HighpassHz != nil {
		if hz := *f.HighpassHz; hz < 0 || math.IsNaN(hz) || math.IsInf(hz, 0) {
			return fmt.Errorf("highpass_hz must be >= 0")
		}
		dst.Pipeline.Normalize.HighpassHz = *f.HighpassHz
	}
	if f.LowpassHz != nil {
		if hz := *f.LowpassHz; hz < 0 || math.IsNaN(hz) || math.IsInf(hz, 0) {
			return fmt.Errorf("lowpass_hz must be >= 0")
		}
		dst.Pipeline.Normalize.LowpassHz = *f.LowpassHz
	}
	if f.SkipFailures != nil {
		dst.Pipeline.SkipFailures = *f.SkipFailures
	}
	if f.TrainRatio != nil {
		if r := *f.TrainRatio; math.IsNaN(r) || r < 0 || r > 1 {
			return fmt.Errorf("train_ratio must be in [0,1]")
		}
		dst.Split.TrainRatio = *f.TrainRatio
	}
	if f.Seed != nil {
		dst.Seed = *f.Seed
	}

	if f.Learner == nil {
		return nil
	}
	l := f.Learner
	if l.Components != nil {
		dst.Learn.Components = *l.Components
	}
	if l.Alpha != nil {
		dst.Learn.Alpha = *l.Alpha
	}
	if l.MaxIter != nil {
		dst.Learn.MaxIter = *l.MaxIter
	}
	if l.BatchSize != nil {
		dst.Learn.BatchSize = *l.BatchSize
	}
	if l.CodingIter != nil {
		dst.Learn.CodingIter = *l.CodingIter
	}
	if err := dst.Learn.Validate(); err != nil {
		return fmt.Errorf("learner: %w", err)
	}
	return nil
}

func resolve(base, dir string) string {
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Clean(filepath.Join(base, dir))
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
