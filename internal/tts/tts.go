// Package tts turns assistant replies into playable mp3 files.
package tts

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MaxReplyWords caps how much of a reply is spoken.
const MaxReplyWords = 150

const truncationMarker = "..."

// Synthesizer writes mp3 audio for text to w.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, w io.Writer) error
}

// CapWords keeps the first MaxReplyWords words and appends "..." when text
// is longer. Shorter text is returned unchanged.
func CapWords(text string) string {
	words := strings.Fields(text)
	if len(words) <= MaxReplyWords {
		return text
	}
	return strings.Join(words[:MaxReplyWords], " ") + truncationMarker
}

// SynthesizeToFile caps text, creates the parent directories of path and
// writes the audio there. A partially written file is removed on failure.
func SynthesizeToFile(ctx context.Context, s Synthesizer, text, path string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create audio dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create audio file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	bw := bufio.NewWriter(f)
	if err := s.Synthesize(ctx, CapWords(text), bw); err != nil {
		_ = f.Close()
		return fmt.Errorf("synthesize speech: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

var errEmptyAudio = errors.New("tts backend returned no audio")

type Config struct {
	Provider string
	Language string
	TLD      string

	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string
	ElevenLabsVoiceID string
	ElevenLabsModelID string
}

// New builds the configured backend. "auto" prefers ElevenLabs when a key
// is present and falls back to Google Translate TTS.
func New(cfg Config) (Synthesizer, error) {
	gtts := NewGoogleTranslate(GoogleTranslateConfig{Language: cfg.Language, TLD: cfg.TLD})
	eleven := func() *ElevenLabs {
		return NewElevenLabs(ElevenLabsConfig{
			APIKey:  cfg.ElevenLabsAPIKey,
			BaseURL: cfg.ElevenLabsBaseURL,
			VoiceID: cfg.ElevenLabsVoiceID,
			ModelID: cfg.ElevenLabsModelID,
		})
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "gtts":
		return gtts, nil
	case "elevenlabs":
		if strings.TrimSpace(cfg.ElevenLabsAPIKey) == "" {
			return nil, errors.New("tts: ELEVENLABS_API_KEY is required for the elevenlabs provider")
		}
		return eleven(), nil
	case "auto":
		if strings.TrimSpace(cfg.ElevenLabsAPIKey) == "" {
			return gtts, nil
		}
		return NewFailover(eleven(), gtts), nil
	case "mock":
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("tts: unsupported provider %q", cfg.Provider)
	}
}
