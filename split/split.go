package split

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"syscall"

	"github.com/cwbudde/algo-atoms/catalog"
)

const (
	TrainDirName = "train_set"
	TestDirName  = "test_set"
)

// ErrPartialSplit indicates a move failed after the split had started.
var ErrPartialSplit = errors.New("split: move failed, split is incomplete")

// PartialSplitError reports which files were relocated before a move failed.
// Nothing is rolled back.
type PartialSplitError struct {
	Moved  []string // destination paths of completed moves
	Failed string   // source path of the failed move
	Err    error
}

func (e *PartialSplitError) Error() string {
	return fmt.Sprintf("split: moved %d files before failing on %s: %v", len(e.Moved), e.Failed, e.Err)
}

func (e *PartialSplitError) Unwrap() error {
	return e.Err
}

func (e *PartialSplitError) Is(target error) bool {
	return target == ErrPartialSplit
}

// Config describes a train/test split of a flat directory.
type Config struct {
	BaseDir    string
	TrainRatio float64
	Extension  string
}

func DefaultConfig() Config {
	return Config{
		TrainRatio: 0.8,
		Extension:  catalog.DefaultExtension,
	}
}

func (c *Config) Validate() error {
	if c.BaseDir == "" {
		return fmt.Errorf("base directory must not be empty")
	}
	if math.IsNaN(c.TrainRatio) || c.TrainRatio < 0 || c.TrainRatio > 1 {
		return fmt.Errorf("train ratio must be in [0, 1], got %v", c.TrainRatio)
	}
	return nil
}

func (c *Config) TrainDir() string {
	return filepath.Join(c.BaseDir, TrainDirName)
}

func (c *Config) TestDir() string {
	return filepath.Join(c.BaseDir, TestDirName)
}

// Result lists the destination paths of every relocated file.
type Result struct {
	Train []string
	Test  []string
}

// TrainCount returns floor(n * ratio).
func TrainCount(n int, ratio float64) int {
	return int(math.Floor(float64(n) * ratio))
}

// Split moves the eligible files directly under cfg.BaseDir into the train and
// test directories. Files already inside either destination are not touched.
func Split(cfg Config, rng *rand.Rand) (*Result, error) {
	if cfg.Extension == "" {
		cfg.Extension = catalog.DefaultExtension
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	trainDir, testDir := cfg.TrainDir(), cfg.TestDir()
	if err := os.MkdirAll(trainDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(testDir, 0o755); err != nil {
		return nil, err
	}

	files, err := catalog.ListCandidates(cfg.BaseDir, cfg.Extension)
	if err != nil {
		return nil, err
	}
	rng.Shuffle(len(files), func(i, j int) {
		files[i], files[j] = files[j], files[i]
	})
	trainCount := TrainCount(len(files), cfg.TrainRatio)

	res := &Result{
		Train: make([]string, 0, trainCount),
		Test:  make([]string, 0, len(files)-trainCount),
	}
	moved := make([]string, 0, len(files))
	for i, src := range files {
		destDir := testDir
		if i < trainCount {
			destDir = trainDir
		}
		dst := filepath.Join(destDir, filepath.Base(src))
		if err := MoveFile(src, dst); err != nil {
			return res, &PartialSplitError{Moved: moved, Failed: src, Err: err}
		}
		moved = append(moved, dst)
		if i < trainCount {
			res.Train = append(res.Train, dst)
		} else {
			res.Test = append(res.Test, dst)
		}
	}
	return res, nil
}

// MoveFile relocates src to dst. It renames when possible and falls back to
// copy and remove across filesystems. An existing dst is never overwritten.
func MoveFile(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("destination already exists: %s", dst)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	return copyAndRemove(src, dst)
}

func copyAndRemove(src, dst string) (err error) {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			out.Close()
			os.Remove(dst)
		}
	}()
	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	if err = out.Sync(); err != nil {
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	in.Close()
	return os.Remove(src)
}
