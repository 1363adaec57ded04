package asr

import (
	"context"
	"strings"
)

// MockRecognizer returns a fixed transcript for every file. An empty Text
// behaves like silence.
type MockRecognizer struct {
	Text string
}

func NewMockRecognizer(text string) *MockRecognizer {
	return &MockRecognizer{Text: text}
}

func (m *MockRecognizer) Transcribe(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(m.Text) == "" {
		return "", ErrNoSpeech
	}
	return m.Text, nil
}
