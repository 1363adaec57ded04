package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ent0n29/speakwell/internal/reliability"
)

// Google Translate accepts at most this many characters per request.
const gttsMaxChars = 100

type GoogleTranslateConfig struct {
	// BaseURL overrides https://translate.google.<tld>.
	BaseURL  string
	Language string
	TLD      string
	Timeout  time.Duration
}

// GoogleTranslate speaks through the public translate_tts endpoint, one
// request per chunk, concatenating the mp3 frames.
type GoogleTranslate struct {
	baseURL string
	lang    string
	client  *http.Client
}

func NewGoogleTranslate(cfg GoogleTranslateConfig) *GoogleTranslate {
	tld := strings.TrimSpace(cfg.TLD)
	if tld == "" {
		tld = "com"
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "https://translate.google." + tld
	}
	lang := strings.TrimSpace(cfg.Language)
	if lang == "" {
		lang = "en"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GoogleTranslate{
		baseURL: base,
		lang:    lang,
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *GoogleTranslate) Synthesize(ctx context.Context, text string, w io.Writer) error {
	chunks := splitChunks(text, gttsMaxChars)
	if len(chunks) == 0 {
		return fmt.Errorf("no text to speak")
	}
	for i, chunk := range chunks {
		if err := g.fetch(ctx, chunk, i, len(chunks), w); err != nil {
			return fmt.Errorf("gtts chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

func (g *GoogleTranslate) fetch(ctx context.Context, chunk string, idx, total int, w io.Writer) error {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", g.lang)
	q.Set("q", chunk)
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(len([]rune(chunk))))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/translate_tts?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Referer", g.baseURL+"/")

	res, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<10))
		return &reliability.StatusError{Code: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	n, err := io.Copy(w, res.Body)
	if err != nil {
		return err
	}
	if n == 0 {
		return errEmptyAudio
	}
	return nil
}
