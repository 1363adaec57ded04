package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ent0n29/speakwell/internal/reliability"
)

type ElevenLabsConfig struct {
	APIKey       string
	BaseURL      string
	VoiceID      string
	ModelID      string
	OutputFormat string
	Stability    float64
	Similarity   float64
}

// ElevenLabs uses the non-streaming text-to-speech REST endpoint.
type ElevenLabs struct {
	cfg    ElevenLabsConfig
	client *http.Client
	policy reliability.Policy
}

func NewElevenLabs(cfg ElevenLabsConfig) *ElevenLabs {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if strings.TrimSpace(cfg.VoiceID) == "" {
		// "Rachel", a stock voice available on every account.
		cfg.VoiceID = "21m00Tcm4TlvDq8ikWAM"
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = "eleven_multilingual_v2"
	}
	if strings.TrimSpace(cfg.OutputFormat) == "" {
		cfg.OutputFormat = "mp3_44100_128"
	}
	cfg.Stability = clamp01(cfg.Stability, 0.42)
	cfg.Similarity = clamp01(cfg.Similarity, 0.85)
	return &ElevenLabs{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		policy: reliability.Policy{Attempts: 2, Base: 500 * time.Millisecond, Cap: 2 * time.Second},
	}
}

func clamp01(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	if v > 1 {
		return 1
	}
	return v
}

func (e *ElevenLabs) Synthesize(ctx context.Context, text string, w io.Writer) error {
	u, err := url.Parse(e.cfg.BaseURL + "/v1/text-to-speech/" + url.PathEscape(e.cfg.VoiceID))
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("output_format", e.cfg.OutputFormat)
	u.RawQuery = q.Encode()

	payload, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": e.cfg.ModelID,
		"voice_settings": map[string]any{
			"stability":        e.cfg.Stability,
			"similarity_boost": e.cfg.Similarity,
		},
	})
	if err != nil {
		return err
	}

	var audio []byte
	err = reliability.Retry(ctx, e.policy, reliability.TransientHTTP, func(ctx context.Context, _ int) error {
		b, err := e.post(ctx, u.String(), payload)
		if err != nil {
			return err
		}
		audio = b
		return nil
	})
	if err != nil {
		return fmt.Errorf("elevenlabs: %w", err)
	}
	_, err = w.Write(audio)
	return err
}

func (e *ElevenLabs) post(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", e.cfg.APIKey)

	res, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, &reliability.StatusError{Code: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, errEmptyAudio
	}
	return b, nil
}
