package audiofile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
	"github.com/hajimehoshi/go-mp3"
)

// ErrDecode indicates an unreadable, corrupt or unsupported audio file.
var ErrDecode = errors.New("audiofile: cannot decode audio")

// Load decodes path to mono and resamples it to sampleRate.
func Load(path string, sampleRate int) ([]float64, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid target sample rate: %d", sampleRate)
	}
	samples, rate, err := ReadMono(path)
	if err != nil {
		return nil, err
	}
	out, err := ResampleIfNeeded(samples, rate, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: resample %d->%d Hz: %v", ErrDecode, path, rate, sampleRate, err)
	}
	return out, nil
}

// ReadMono decodes a WAV or MP3 file into a mono waveform in [-1, 1],
// averaging channels. The decoder is chosen by file extension.
func ReadMono(path string) ([]float64, int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return ReadWAVMono(path)
	case ".mp3":
		return ReadMP3Mono(path)
	default:
		return nil, 0, fmt.Errorf("%w: %s: unsupported format", ErrDecode, path)
	}
}

func ReadWAVMono(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: invalid wav file: %s", ErrDecode, path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.SampleRate <= 0 {
		return nil, 0, fmt.Errorf("%w: invalid wav buffer: %s", ErrDecode, path)
	}
	ch := buf.Format.NumChannels
	frames := len(buf.Data) / ch
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < ch; c++ {
			sum += float64(buf.Data[i*ch+c])
		}
		out[i] = sum / float64(ch)
	}
	return out, buf.Format.SampleRate, nil
}

// ReadMP3Mono decodes an MP3 file. go-mp3 always yields 16-bit little-endian
// interleaved stereo.
func ReadMP3Mono(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	defer f.Close()
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	return stereoPCM16ToMono(raw), dec.SampleRate(), nil
}

func stereoPCM16ToMono(raw []byte) []float64 {
	const frameBytes = 4
	frames := len(raw) / frameBytes
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		b := raw[i*frameBytes:]
		l := int16(uint16(b[0]) | uint16(b[1])<<8)
		r := int16(uint16(b[2]) | uint16(b[3])<<8)
		out[i] = 0.5 * (float64(l) + float64(r)) / 32768.0
	}
	return out
}

func ResampleIfNeeded(in []float64, fromRate int, toRate int) ([]float64, error) {
	if fromRate == toRate || len(in) == 0 {
		return in, nil
	}
	r, err := dspresample.NewForRates(
		float64(fromRate),
		float64(toRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, err
	}
	return r.Process(in), nil
}

func WriteMonoWAV(path string, data []float32, sampleRate int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	defer enc.Close()

	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: 1,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	return enc.Write(buf)
}

// ToFloat32 converts samples for the WAV writer.
func ToFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
