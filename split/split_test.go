package split

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func makeFiles(t *testing.T, dir string, n int) []string {
	t.Helper()
	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = fmt.Sprintf("track%02d.mp3", i)
		if err := os.WriteFile(filepath.Join(dir, names[i]), []byte(names[i]), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return names
}

func listNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out
}

func TestSplitEightyTwenty(t *testing.T) {
	base := t.TempDir()
	names := makeFiles(t, base, 10)
	if err := os.WriteFile(filepath.Join(base, "readme.txt"), []byte("keep"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg := DefaultConfig()
	cfg.BaseDir = base
	res, err := Split(cfg, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	train := listNames(t, cfg.TrainDir())
	test := listNames(t, cfg.TestDir())
	if len(train) != 8 || len(test) != 2 || len(res.Train) != 8 || len(res.Test) != 2 {
		t.Fatalf("unexpected sizes: train=%d test=%d", len(train), len(test))
	}

	seen := map[string]int{}
	for _, n := range append(append([]string{}, train...), test...) {
		seen[n]++
	}
	for _, n := range names {
		if seen[n] != 1 {
			t.Fatalf("file %s appears %d times across destinations", n, seen[n])
		}
	}
	if left := listNames(t, base); len(left) != 1 || left[0] != "readme.txt" {
		t.Fatalf("unexpected files left in base: %v", left)
	}
}

func TestSplitPartitionProperty(t *testing.T) {
	for _, n := range []int{0, 1, 7, 10} {
		for _, ratio := range []float64{0, 0.25, 0.5, 0.8, 1} {
			base := t.TempDir()
			names := makeFiles(t, base, n)
			cfg := Config{BaseDir: base, TrainRatio: ratio, Extension: ".mp3"}
			if _, err := Split(cfg, rand.New(rand.NewSource(int64(n)))); err != nil {
				t.Fatalf("n=%d ratio=%v: %v", n, ratio, err)
			}
			train := listNames(t, cfg.TrainDir())
			test := listNames(t, cfg.TestDir())
			if len(train) != TrainCount(n, ratio) {
				t.Fatalf("n=%d ratio=%v: train=%d want %d", n, ratio, len(train), TrainCount(n, ratio))
			}
			union := append(append([]string{}, train...), test...)
			sort.Strings(union)
			if len(union) != len(names) {
				t.Fatalf("n=%d ratio=%v: union has %d files, want %d", n, ratio, len(union), len(names))
			}
			for i := range names {
				if union[i] != names[i] {
					t.Fatalf("n=%d ratio=%v: union mismatch %v vs %v", n, ratio, union, names)
				}
			}
		}
	}
}

func TestSplitLeavesExistingDestinationFiles(t *testing.T) {
	base := t.TempDir()
	cfg := DefaultConfig()
	cfg.BaseDir = base
	if err := os.MkdirAll(cfg.TrainDir(), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	old := filepath.Join(cfg.TrainDir(), "old.mp3")
	if err := os.WriteFile(old, []byte("old"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	makeFiles(t, base, 5)

	res, err := Split(cfg, rand.New(rand.NewSource(2)))
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(res.Train) != 4 || len(res.Test) != 1 {
		t.Fatalf("pre-existing file must not be re-considered: train=%d test=%d", len(res.Train), len(res.Test))
	}
	if b, err := os.ReadFile(old); err != nil || string(b) != "old" {
		t.Fatalf("pre-existing file changed: %q %v", b, err)
	}

	// A second run finds nothing new and still succeeds.
	res, err = Split(cfg, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("second Split: %v", err)
	}
	if len(res.Train)+len(res.Test) != 0 {
		t.Fatalf("expected nothing to move on second run: %+v", res)
	}
}

func TestSplitRejectsInvalidRatio(t *testing.T) {
	for _, ratio := range []float64{-0.1, 1.5} {
		cfg := Config{BaseDir: t.TempDir(), TrainRatio: ratio}
		if _, err := Split(cfg, rand.New(rand.NewSource(1))); err == nil {
			t.Fatalf("expected error for ratio %v", ratio)
		}
	}
}

func TestSplitReportsPartialFailure(t *testing.T) {
	base := t.TempDir()
	cfg := DefaultConfig()
	cfg.BaseDir = base
	makeFiles(t, base, 6)
	for _, dir := range []string{cfg.TrainDir(), cfg.TestDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		// Same name in both destinations, so its move collides wherever it lands.
		if err := os.WriteFile(filepath.Join(dir, "track03.mp3"), []byte("taken"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	_, err := Split(cfg, rand.New(rand.NewSource(4)))
	if !errors.Is(err, ErrPartialSplit) {
		t.Fatalf("expected ErrPartialSplit, got %v", err)
	}
	var perr *PartialSplitError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *PartialSplitError, got %T", err)
	}
	if perr.Failed != filepath.Join(base, "track03.mp3") {
		t.Fatalf("unexpected failed path: %s", perr.Failed)
	}
	if _, err := os.Stat(perr.Failed); err != nil {
		t.Fatalf("failed source must stay in place: %v", err)
	}
	moved := len(listNames(t, cfg.TrainDir())) + len(listNames(t, cfg.TestDir())) - 2
	if moved != len(perr.Moved) {
		t.Fatalf("moved list has %d entries, destinations gained %d files", len(perr.Moved), moved)
	}
}

func TestMoveFileRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.mp3")
	dst := filepath.Join(dir, "b.mp3")
	for _, p := range []string{src, dst} {
		if err := os.WriteFile(p, []byte(p), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := MoveFile(src, dst); err == nil {
		t.Fatalf("expected error when destination exists")
	}
	if b, _ := os.ReadFile(dst); string(b) != dst {
		t.Fatalf("destination was overwritten")
	}
}

func TestCopyAndRemove(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.mp3")
	dst := filepath.Join(dir, "sub", "a.mp3")
	if err := os.WriteFile(src, []byte("payload"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := copyAndRemove(src, dst); err != nil {
		t.Fatalf("copyAndRemove: %v", err)
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("source still present: %v", err)
	}
	if b, err := os.ReadFile(dst); err != nil || string(b) != "payload" {
		t.Fatalf("unexpected destination content: %q %v", b, err)
	}
}
