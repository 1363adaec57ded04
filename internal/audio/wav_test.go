package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestWAVRoundTripKeepsDurationAndRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	samples := make([]int, TargetSampleRate/2)
	for i := range samples {
		samples[i] = int(8000 * math.Sin(float64(i)/10))
	}
	if err := WriteWAVFile(path, samples, TargetSampleRate); err != nil {
		t.Fatalf("WriteWAVFile() error = %v", err)
	}

	clip, err := ReadWAVFile(path)
	if err != nil {
		t.Fatalf("ReadWAVFile() error = %v", err)
	}
	if clip.SampleRate != TargetSampleRate {
		t.Fatalf("SampleRate = %d, want %d", clip.SampleRate, TargetSampleRate)
	}
	if len(clip.Samples) != len(samples) {
		t.Fatalf("len(Samples) = %d, want %d", len(clip.Samples), len(samples))
	}
	if got := clip.Seconds(); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("Seconds() = %v, want 0.5", got)
	}
	for i, s := range clip.Samples {
		if s < -1 || s > 1 {
			t.Fatalf("Samples[%d] = %v, want within [-1,1]", i, s)
		}
	}
}

func TestReadWAVFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := os.WriteFile(path, []byte("definitely not riff"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadWAVFile(path); err == nil {
		t.Fatalf("ReadWAVFile() expected error for garbage input")
	}
}
