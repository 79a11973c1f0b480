package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/cwbudde/algo-atoms/config"
	"github.com/cwbudde/algo-atoms/internal/runcommon"
	"github.com/cwbudde/algo-atoms/split"
)

func main() {
	baseDir := flag.String("base", "", "Directory holding the audio files to split")
	trainRatio := flag.Float64("train-ratio", 0.8, "Fraction of files moved to train_set")
	ext := flag.String("ext", ".mp3", "File extension to include")
	seed := flag.Int64("seed", 0, "Shuffle seed (0 = time-based)")
	configPath := flag.String("config", "", "Optional experiment JSON file")
	flag.Parse()

	exp := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadJSON(*configPath)
		if err != nil {
			die("failed to load config: %v", err)
		}
		exp = loaded
	}
	set := visitedFlags()
	use := func(name string) bool { return *configPath == "" || set[name] }
	if use("base") {
		exp.Split.BaseDir = *baseDir
	}
	if use("train-ratio") {
		exp.Split.TrainRatio = *trainRatio
	}
	if use("ext") {
		exp.Split.Extension = *ext
	}
	if use("seed") {
		exp.Seed = *seed
	}
	if exp.Split.BaseDir == "" {
		die("-base is required")
	}

	rng, effSeed := runcommon.SeededRand(exp.Seed)

	res, err := split.Split(exp.Split, rng)
	if err != nil {
		var partial *split.PartialSplitError
		if errors.As(err, &partial) {
			fmt.Fprintf(os.Stderr, "moved %d files before failure:\n", len(partial.Moved))
			for _, p := range partial.Moved {
				fmt.Fprintf(os.Stderr, "  %s\n", p)
			}
		}
		die("split failed: %v", err)
	}

	fmt.Printf("Split %d files seed=%d: train=%d (%s) test=%d (%s)\n",
		len(res.Train)+len(res.Test), effSeed,
		len(res.Train), exp.Split.TrainDir(),
		len(res.Test), exp.Split.TestDir())
}

func visitedFlags() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
