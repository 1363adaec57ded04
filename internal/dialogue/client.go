// Package dialogue turns a conversation transcript into an assistant reply
// through a remote text generation API.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ent0n29/speakwell/internal/conversation"
)

// Client produces the next assistant reply for turns, oldest first.
type Client interface {
	Reply(ctx context.Context, turns []conversation.Turn) (string, error)
}

type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	// Timeout bounds each HTTP attempt.
	Timeout  time.Duration
	Attempts int
	Backoff  time.Duration
}

func New(cfg Config) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "gemini":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("dialogue: GOOGLE_API_KEY is required for the gemini provider")
		}
		return NewGemini(GeminiConfig{
			APIKey:   cfg.APIKey,
			Model:    cfg.Model,
			BaseURL:  cfg.BaseURL,
			Timeout:  cfg.Timeout,
			Attempts: cfg.Attempts,
			Backoff:  cfg.Backoff,
		}), nil
	case "mock":
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("dialogue: unsupported provider %q", cfg.Provider)
	}
}

// FormatPrompt renders each turn as "<Role>: <text>" and ends with an
// "Assistant:" cue line.
func FormatPrompt(turns []conversation.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(speaker(t.Author))
		b.WriteString(": ")
		b.WriteString(t.Text)
		b.WriteByte('\n')
	}
	b.WriteString("Assistant:")
	return b.String()
}

func speaker(role conversation.Role) string {
	switch role {
	case conversation.RoleSystem:
		return "System"
	case conversation.RoleUser:
		return "User"
	default:
		return "Assistant"
	}
}
