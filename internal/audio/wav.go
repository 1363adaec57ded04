// Package audio handles the waveform side of the pipeline: transcoding
// browser uploads to mono 16 kHz WAV and reading/writing WAV files.
package audio

import (
	"errors"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// TargetSampleRate is the rate the recognizers expect.
const TargetSampleRate = 16000

// WriteWAVFile writes mono PCM16 samples as a WAV file.
func WriteWAVFile(path string, samples []int, sampleRate int) error {
	if sampleRate <= 0 {
		sampleRate = TargetSampleRate
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("finalize wav: %w", err)
	}
	if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

// Clip is a decoded mono waveform.
type Clip struct {
	Samples    []float32
	SampleRate int
}

// Seconds reports the clip duration.
func (c Clip) Seconds() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

var ErrInvalidWAV = errors.New("invalid wav file")

// ReadWAVFile decodes a WAV file into float32 samples in [-1, 1],
// down-mixing to mono when needed.
func ReadWAVFile(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Clip{}, ErrInvalidWAV
	}
	pb, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("decode wav: %w", err)
	}
	if pb == nil || pb.Format == nil {
		return Clip{}, ErrInvalidWAV
	}

	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = 16
	}
	channels := pb.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}
	scale := 1.0 / float64(int64(1)<<(depth-1))
	frames := len(pb.Data) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(pb.Data[i*channels+ch]) * scale
		}
		out[i] = float32(sum / float64(channels))
	}
	return Clip{Samples: out, SampleRate: pb.Format.SampleRate}, nil
}
