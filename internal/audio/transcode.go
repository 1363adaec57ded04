package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Transcoder converts an uploaded container into mono 16 kHz WAV.
type Transcoder interface {
	ToWAV(ctx context.Context, inPath, outPath string) error
}

// FFmpeg shells out to the ffmpeg binary.
type FFmpeg struct {
	bin string
}

// NewFFmpeg resolves bin on PATH ("ffmpeg" when empty).
func NewFFmpeg(bin string) (*FFmpeg, error) {
	bin = strings.TrimSpace(bin)
	if bin == "" {
		bin = "ffmpeg"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found on PATH (%s): install ffmpeg", bin)
	}
	return &FFmpeg{bin: path}, nil
}

func (f *FFmpeg) Path() string { return f.bin }

func (f *FFmpeg) ToWAV(ctx context.Context, inPath, outPath string) error {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-y",
		"-i", inPath,
		"-ac", "1",
		"-ar", strconv.Itoa(TargetSampleRate),
		outPath,
	}
	cmd := exec.CommandContext(ctx, f.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 4<<10 {
			detail = strings.TrimSpace(detail[len(detail)-(4<<10):])
		}
		if detail == "" {
			detail = err.Error()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("ffmpeg exited with %d: %s", exitErr.ExitCode(), detail)
		}
		return fmt.Errorf("ffmpeg failed: %s", detail)
	}
	return nil
}
