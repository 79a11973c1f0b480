package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cwbudde/algo-atoms/analysis"
	"github.com/cwbudde/algo-atoms/atomviz"
	"github.com/cwbudde/algo-atoms/experiment"
	"github.com/cwbudde/algo-atoms/internal/runcommon"
	"github.com/cwbudde/algo-atoms/learn"
	"github.com/cwbudde/algo-atoms/pipeline"
)

func main() {
	pf := runcommon.NewPipelineFlags(flag.CommandLine)
	lf := runcommon.NewLearnFlags(flag.CommandLine)
	outDir := flag.String("out", "atoms", "Directory for atom WAV files, plots and report")
	plots := flag.Bool("plots", true, "Write a PNG waveform plot per atom")
	reportPath := flag.String("report", "", "Optional report JSON path (default: <out>/report.json)")
	flag.Parse()

	exp, err := pf.Experiment(lf)
	if err != nil {
		die("invalid configuration: %v", err)
	}
	if exp.Pipeline.Directory == "" {
		die("-dir is required")
	}
	rng, seed := runcommon.SeededRand(exp.Seed)
	exp.Learn.Seed = seed

	p, err := pipeline.New(exp.Pipeline)
	if err != nil {
		die("invalid pipeline configuration: %v", err)
	}
	mb, err := learn.NewMiniBatch(exp.Learn)
	if err != nil {
		die("invalid learner configuration: %v", err)
	}
	fmt.Printf("Learning %d atoms from up to %d clips of %s\n",
		exp.Learn.Components, exp.Pipeline.NumSamples, runcommon.DescribeNormalize(exp.Pipeline.Normalize))

	res, err := experiment.Run(p, mb, rng)
	if err != nil {
		die("experiment failed: %v", err)
	}
	for _, s := range res.Skipped {
		fmt.Fprintf(os.Stderr, "skipped %s: %v\n", s.Path, s.Err)
	}
	fmt.Printf("Training Time: %.3fs (%d clips, %d mini-batches)\n", res.Training.Seconds(), len(res.Clips), mb.Batches())

	var files atomviz.Files
	if *plots {
		files, err = atomviz.ExportAll(*outDir, res.Atoms, res.SampleRate)
	} else {
		files.WAV, err = atomviz.WriteWAVs(*outDir, res.Atoms, res.SampleRate)
	}
	if err != nil {
		die("failed to export atoms: %v", err)
	}

	atoms, err := analysis.DescribeAll(res.Atoms, res.SampleRate)
	if err != nil {
		die("failed to analyse atoms: %v", err)
	}
	recs, err := reconstructClips(mb, res)
	if err != nil {
		die("failed to reconstruct clips: %v", err)
	}

	rep := newReport(exp, seed, res, mb, files, atoms, recs)
	if *reportPath == "" {
		*reportPath = filepath.Join(*outDir, "report.json")
	}
	if err := runcommon.WriteJSON(*reportPath, rep); err != nil {
		die("failed to write report: %v", err)
	}
	for _, a := range atoms {
		fmt.Printf("Atom %d rms=%.4f centroid=%.1fHz peak_freq=%.1fHz\n", a.Index, a.RMS, a.SpectralCentroidHz, a.PeakFrequencyHz)
	}
	fmt.Printf("Done atoms=%d mse=%.6f mean_similarity=%.2f%% report=%s\n",
		res.AtomCount(), rep.ReconstructionMSE, rep.MeanSimilarity*100.0, *reportPath)
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
