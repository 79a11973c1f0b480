package main

import (
	"fmt"

	"github.com/cwbudde/algo-atoms/analysis"
	"github.com/cwbudde/algo-atoms/atomviz"
	"github.com/cwbudde/algo-atoms/config"
	"github.com/cwbudde/algo-atoms/experiment"
	"github.com/cwbudde/algo-atoms/learn"
	"gonum.org/v1/gonum/mat"
)

type clipReport struct {
	Source         string                  `json:"source"`
	ActiveAtoms    int                     `json:"active_atoms"`
	Reconstruction analysis.Reconstruction `json:"reconstruction"`
}

type runReport struct {
	Directory         string                 `json:"directory"`
	Seed              int64                  `json:"seed"`
	SampleRate        int                    `json:"sample_rate"`
	ClipSamples       int                    `json:"clip_samples"`
	Learner           learn.Config           `json:"learner"`
	TrainingSeconds   float64                `json:"training_seconds"`
	MiniBatches       int                    `json:"mini_batches"`
	ReconstructionMSE float64                `json:"reconstruction_mse"`
	MeanSimilarity    float64                `json:"mean_similarity"`
	Files             atomviz.Files          `json:"files"`
	Atoms             []analysis.AtomMetrics `json:"atoms"`
	Clips             []clipReport           `json:"clips"`
	Skipped           []string               `json:"skipped,omitempty"`
}

// clipReconstruction pairs a clip's sparse code support with its error metrics.
type clipReconstruction struct {
	active  int
	metrics analysis.Reconstruction
}

// reconstructClips sparse codes every training clip against the learned atoms
// and compares the approximation with the clip.
func reconstructClips(mb *learn.MiniBatch, res *experiment.Result) ([]clipReconstruction, error) {
	x, err := res.Clips.Matrix()
	if err != nil {
		return nil, err
	}
	codes, err := mb.Transform(x)
	if err != nil {
		return nil, err
	}
	var rec mat.Dense
	rec.Mul(codes, res.Atoms)

	rows, k := codes.Dims()
	out := make([]clipReconstruction, rows)
	for i := 0; i < rows; i++ {
		active := 0
		for j := 0; j < k; j++ {
			if codes.At(i, j) != 0 {
				active++
			}
		}
		out[i] = clipReconstruction{
			active:  active,
			metrics: analysis.CompareReconstruction(x.RawRowView(i), rec.RawRowView(i), res.SampleRate),
		}
	}
	return out, nil
}

func newReport(
	exp *config.Experiment,
	seed int64,
	res *experiment.Result,
	mb *learn.MiniBatch,
	files atomviz.Files,
	atoms []analysis.AtomMetrics,
	recs []clipReconstruction,
) runReport {
	rep := runReport{
		Directory:       exp.Pipeline.Directory,
		Seed:            seed,
		SampleRate:      res.SampleRate,
		ClipSamples:     exp.Pipeline.Normalize.TargetLength(),
		Learner:         mb.Config(),
		TrainingSeconds: res.Training.Seconds(),
		MiniBatches:     mb.Batches(),
		Files:           files,
		Atoms:           atoms,
	}
	var sumSq, sumSim float64
	for i, r := range recs {
		rep.Clips = append(rep.Clips, clipReport{
			Source:         res.Clips[i].Source,
			ActiveAtoms:    r.active,
			Reconstruction: r.metrics,
		})
		sumSq += r.metrics.TimeRMSE * r.metrics.TimeRMSE
		sumSim += r.metrics.Similarity
	}
	if len(recs) > 0 {
		rep.ReconstructionMSE = sumSq / float64(len(recs))
		rep.MeanSimilarity = sumSim / float64(len(recs))
	}
	for _, s := range res.Skipped {
		rep.Skipped = append(rep.Skipped, fmt.Sprintf("%s: %v", s.Path, s.Err))
	}
	return rep
}
