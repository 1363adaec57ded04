package asr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ent0n29/speakwell/internal/audio"
)

// Transcript is the pipeline output. Text is empty when nothing was heard.
type Transcript struct {
	Text         string
	AudioSeconds float64
}

// Pipeline stores an upload in a temp file, transcodes it to mono 16 kHz
// WAV and runs the recognizer. Temp files never outlive a call.
type Pipeline struct {
	tmpDir     string
	transcoder audio.Transcoder
	recognizer Recognizer
	log        logrus.FieldLogger
}

func NewPipeline(tmpDir string, transcoder audio.Transcoder, recognizer Recognizer, log logrus.FieldLogger) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{
		tmpDir:     tmpDir,
		transcoder: transcoder,
		recognizer: recognizer,
		log:        log.WithField("component", "asr"),
	}
}

// Transcribe consumes src. ext is the upload's file extension (".webm" when empty).
func (p *Pipeline) Transcribe(ctx context.Context, src io.Reader, ext string) (Transcript, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		ext = ".webm"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if err := os.MkdirAll(p.tmpDir, 0o755); err != nil {
		return Transcript{}, fmt.Errorf("create tmp dir: %w", err)
	}

	base := filepath.Join(p.tmpDir, strings.ReplaceAll(uuid.NewString(), "-", ""))
	inPath := base + ext
	wavPath := base + ".wav"
	if inPath == wavPath {
		inPath = base + ".upload.wav"
	}
	defer removeQuietly(p.log, inPath)
	defer removeQuietly(p.log, wavPath)

	if err := writeUpload(inPath, src); err != nil {
		return Transcript{}, fmt.Errorf("store upload: %w", err)
	}
	if err := p.transcoder.ToWAV(ctx, inPath, wavPath); err != nil {
		return Transcript{}, fmt.Errorf("transcode upload: %w", err)
	}

	var out Transcript
	if clip, err := audio.ReadWAVFile(wavPath); err == nil {
		out.AudioSeconds = clip.Seconds()
		if len(clip.Samples) == 0 {
			return out, nil
		}
	} else {
		p.log.WithError(err).Debug("waveform inspection skipped")
	}

	text, err := p.recognizer.Transcribe(ctx, wavPath)
	switch {
	case errors.Is(err, ErrNoSpeech):
		return out, nil
	case err != nil:
		return Transcript{}, fmt.Errorf("speech recognition error: %w", err)
	}
	out.Text = strings.TrimSpace(text)
	return out, nil
}

func writeUpload(path string, src io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func removeQuietly(log logrus.FieldLogger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).WithField("path", path).Warn("temp file cleanup failed")
	}
}
