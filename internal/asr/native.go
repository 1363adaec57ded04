//go:build whisper

// The native recognizer links against libwhisper through the whisper.cpp Go
// bindings. Build with -tags whisper and LIBRARY_PATH / C_INCLUDE_PATH
// pointing at a whisper.cpp build.

package asr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/ent0n29/speakwell/internal/audio"
)

// NativeAvailable reports whether the binary was built with native whisper support.
const NativeAvailable = true

// Native keeps one loaded model and creates a fresh context per call;
// contexts are not safe for concurrent use, the model is.
type Native struct {
	mu       sync.Mutex
	model    whisperlib.Model
	language string
}

func NewNative(modelPath, language string) (*Native, error) {
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	if strings.TrimSpace(language) == "" {
		language = "en"
	}
	return &Native{model: model, language: language}, nil
}

func (n *Native) Transcribe(ctx context.Context, wavPath string) (string, error) {
	clip, err := audio.ReadWAVFile(wavPath)
	if err != nil {
		return "", err
	}
	if len(clip.Samples) == 0 {
		return "", ErrNoSpeech
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	wctx, err := n.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(n.language); err != nil {
		return "", fmt.Errorf("whisper: set language %q: %w", n.language, err)
	}
	if err := wctx.Process(clip.Samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" && !isBlankMarker(text) {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", ErrNoSpeech
	}
	return strings.Join(parts, " "), nil
}

func (n *Native) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.model == nil {
		return nil
	}
	err := n.model.Close()
	n.model = nil
	return err
}
