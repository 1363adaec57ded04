package audio

import (
	"context"
	"io"
	"os"
)

// Passthrough copies the upload unchanged. It stands in for ffmpeg when the
// recognizer does not read the waveform (mock mode, tests).
type Passthrough struct{}

func (Passthrough) ToWAV(ctx context.Context, inPath, outPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	in, err := os.Open(inPath)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
