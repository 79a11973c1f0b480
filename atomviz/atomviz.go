// Package atomviz exports learned atoms as audio files and waveform plots.
package atomviz

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/cwbudde/algo-atoms/internal/audiofile"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	plotWidth  = 12 * vg.Inch
	plotHeight = 4 * vg.Inch
)

// Files lists what ExportAll wrote, in atom order.
type Files struct {
	WAV []string `json:"wav"`
	PNG []string `json:"png"`
}

// AtomName returns the base file name used for atom i.
func AtomName(i int) string {
	return fmt.Sprintf("atom_%03d", i)
}

// ExportAll writes one WAV file and one PNG waveform plot per atom into dir.
func ExportAll(dir string, atoms mat.Matrix, sampleRate int) (Files, error) {
	wavs, err := WriteWAVs(dir, atoms, sampleRate)
	if err != nil {
		return Files{}, err
	}
	rows, _ := atoms.Dims()
	files := Files{WAV: wavs, PNG: make([]string, 0, rows)}
	for i := 0; i < rows; i++ {
		path := filepath.Join(dir, AtomName(i)+".png")
		if err := PlotPNG(path, mat.Row(nil, i, atoms), i); err != nil {
			return files, fmt.Errorf("plot atom %d: %w", i, err)
		}
		files.PNG = append(files.PNG, path)
	}
	return files, nil
}

// WriteWAVs writes every atom peak-normalized to a mono 16-bit WAV file.
func WriteWAVs(dir string, atoms mat.Matrix, sampleRate int) ([]string, error) {
	rows, _ := atoms.Dims()
	paths := make([]string, 0, rows)
	for i := 0; i < rows; i++ {
		path := filepath.Join(dir, AtomName(i)+".wav")
		data := audiofile.ToFloat32(peakNormalized(mat.Row(nil, i, atoms)))
		if err := audiofile.WriteMonoWAV(path, data, sampleRate); err != nil {
			return paths, fmt.Errorf("write atom %d: %w", i, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// PlotPNG renders the waveform of one atom against its sample index.
func PlotPNG(path string, atom []float64, index int) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Atom %d", index)
	p.X.Label.Text = "Samples"
	p.Y.Label.Text = "Amplitude"

	pts := make(plotter.XYs, len(atom))
	for i, v := range atom {
		pts[i].X = float64(i)
		pts[i].Y = v
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	p.Add(line)
	return p.Save(plotWidth, plotHeight, path)
}

func peakNormalized(x []float64) []float64 {
	peak := 0.0
	for _, v := range x {
		peak = math.Max(peak, math.Abs(v))
	}
	if peak == 0 || math.IsNaN(peak) || math.IsInf(peak, 0) {
		return x
	}
	for i := range x {
		x[i] /= peak
	}
	return x
}
