package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cwbudde/algo-atoms/internal/audiofile"
	"github.com/cwbudde/algo-atoms/internal/runcommon"
	"github.com/cwbudde/algo-atoms/pipeline"
)

type clipEntry struct {
	Source string  `json:"source"`
	Output string  `json:"output"`
	Peak   float64 `json:"peak"`
}

type skipEntry struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type runReport struct {
	Directory   string      `json:"directory"`
	Seed        int64       `json:"seed"`
	SampleRate  int         `json:"sample_rate"`
	ClipSamples int         `json:"clip_samples"`
	Selected    int         `json:"selected"`
	Clips       []clipEntry `json:"clips"`
	Skipped     []skipEntry `json:"skipped,omitempty"`
}

func main() {
	pf := runcommon.NewPipelineFlags(flag.CommandLine)
	outDir := flag.String("out", "clips", "Directory for the normalized clip WAV files")
	reportPath := flag.String("report", "", "Optional report JSON path (default: <out>/report.json)")
	flag.Parse()

	exp, err := pf.Experiment(nil)
	if err != nil {
		die("invalid configuration: %v", err)
	}
	if exp.Pipeline.Directory == "" {
		die("-dir is required")
	}
	rng, seed := runcommon.SeededRand(exp.Seed)

	p, err := pipeline.New(exp.Pipeline)
	if err != nil {
		die("invalid pipeline configuration: %v", err)
	}
	fmt.Printf("Preprocessing up to %d files from %s into %s\n",
		exp.Pipeline.NumSamples, exp.Pipeline.Directory, runcommon.DescribeNormalize(exp.Pipeline.Normalize))

	res, err := p.Run(rng)
	if err != nil {
		die("preprocessing failed: %v", err)
	}

	rep := runReport{
		Directory:   exp.Pipeline.Directory,
		Seed:        seed,
		SampleRate:  exp.Pipeline.Normalize.SampleRate,
		ClipSamples: exp.Pipeline.Normalize.TargetLength(),
		Selected:    len(res.Selected),
	}
	for i, c := range res.Clips {
		out := filepath.Join(*outDir, runcommon.ClipFileName(i, c.Source))
		if err := audiofile.WriteMonoWAV(out, audiofile.ToFloat32(c.Samples), c.SampleRate); err != nil {
			die("failed to write %s: %v", out, err)
		}
		rep.Clips = append(rep.Clips, clipEntry{Source: c.Source, Output: out, Peak: c.Peak()})
		fmt.Printf("Wrote %s (source %s)\n", out, c.Source)
	}
	for _, s := range res.Skipped {
		fmt.Fprintf(os.Stderr, "skipped %s: %v\n", s.Path, s.Err)
		rep.Skipped = append(rep.Skipped, skipEntry{Path: s.Path, Error: s.Err.Error()})
	}

	if *reportPath == "" {
		*reportPath = filepath.Join(*outDir, "report.json")
	}
	if err := runcommon.WriteJSON(*reportPath, rep); err != nil {
		die("failed to write report: %v", err)
	}
	fmt.Printf("Done clips=%d skipped=%d seed=%d report=%s\n", len(res.Clips), len(res.Skipped), seed, *reportPath)
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
