package catalog

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtension is the file suffix selected when none is configured.
const DefaultExtension = ".mp3"

// ErrDirectoryNotFound indicates the source directory is missing or unreadable.
var ErrDirectoryNotFound = errors.New("catalog: directory not found or unreadable")

// ListCandidates returns the files directly under dir whose name ends with ext.
// Subdirectories are skipped. The match is a literal, case-sensitive suffix.
func ListCandidates(dir string, ext string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDirectoryNotFound, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDirectoryNotFound, dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDirectoryNotFound, dir, err)
	}

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}

// Sample draws min(n, len(candidates)) distinct paths uniformly at random.
// The input slice is left untouched.
func Sample(rng *rand.Rand, candidates []string, n int) []string {
	if n <= 0 || len(candidates) == 0 {
		return []string{}
	}
	if n > len(candidates) {
		n = len(candidates)
	}
	perm := rng.Perm(len(candidates))
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = candidates[perm[i]]
	}
	return out
}
