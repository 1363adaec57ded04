package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ent0n29/speakwell/internal/conversation"
	"github.com/ent0n29/speakwell/internal/reliability"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel   = "gemini-2.0-flash"
)

var ErrNoCandidates = errors.New("no response from Gemini API")

type GeminiConfig struct {
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
	Attempts int
	Backoff  time.Duration
}

// Gemini calls the generateContent endpoint. Each Reply makes up to
// Attempts requests; 503s and transport failures back off exponentially.
type Gemini struct {
	endpoint string
	client   *http.Client
	policy   reliability.Policy
}

func NewGemini(cfg GeminiConfig) *Gemini {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultGeminiBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultGeminiModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}
	return &Gemini{
		endpoint: fmt.Sprintf("%s/models/%s:generateContent?key=%s", base, url.PathEscape(model), url.QueryEscape(cfg.APIKey)),
		client:   &http.Client{Timeout: timeout},
		policy:   reliability.Policy{Attempts: attempts, Base: backoff},
	}
}

// SetSleeper replaces the backoff sleep.
func (g *Gemini) SetSleeper(s reliability.Sleeper) { g.policy.Sleep = s }

// SetRetryHook observes each scheduled retry.
func (g *Gemini) SetRetryHook(fn func(attempt int, delay time.Duration, err error)) {
	g.policy.OnRetry = fn
}

func (g *Gemini) Reply(ctx context.Context, turns []conversation.Turn) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Contents: []requestContent{{Parts: []requestPart{{Text: FormatPrompt(turns)}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var reply string
	err = reliability.Retry(ctx, g.policy, reliability.UnavailableOnly, func(ctx context.Context, _ int) error {
		text, err := g.generate(ctx, payload)
		if err != nil {
			return err
		}
		reply = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}

func (g *Gemini) generate(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", stripURL(err))
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", &reliability.StatusError{Code: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return parseResponse(body)
}

type generateRequest struct {
	Contents []requestContent `json:"contents"`
}

type requestContent struct {
	Parts []requestPart `json:"parts"`
}

type requestPart struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content json.RawMessage `json:"content"`
	} `json:"candidates"`
}

// parseResponse takes the first candidate. Its content yields the direct
// "text" field when present, else the concatenated text of its parts, else
// the content rendered as a string.
func parseResponse(body []byte) (string, error) {
	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", ErrNoCandidates
	}
	raw := resp.Candidates[0].Content

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil && obj != nil {
		if text, ok := obj["text"]; ok {
			return stringify(text), nil
		}
		var parts []map[string]any
		if p, ok := obj["parts"]; ok {
			_ = json.Unmarshal(p, &parts)
		}
		var b strings.Builder
		for _, part := range parts {
			if s, ok := part["text"].(string); ok {
				b.WriteString(s)
			}
		}
		return b.String(), nil
	}
	return stringify(raw), nil
}

func stringify(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}
	return trimmed
}

// url.Error embeds the request URL, which carries the API key.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}
