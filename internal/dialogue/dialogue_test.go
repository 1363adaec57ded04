package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ent0n29/speakwell/internal/conversation"
	"github.com/ent0n29/speakwell/internal/reliability"
)

func TestFormatPrompt(t *testing.T) {
	turns := []conversation.Turn{
		{Author: conversation.RoleSystem, Text: "Be brief."},
		{Author: conversation.RoleUser, Text: "Hello"},
		{Author: conversation.RoleAssistant, Text: "Hi!"},
		{Author: "", Text: "odd"},
	}
	want := "System: Be brief.\nUser: Hello\nAssistant: Hi!\nAssistant: odd\nAssistant:"
	if got := FormatPrompt(turns); got != want {
		t.Fatalf("FormatPrompt() = %q, want %q", got, want)
	}
	if got := FormatPrompt(nil); got != "Assistant:" {
		t.Fatalf("FormatPrompt(nil) = %q", got)
	}
}

func TestParseResponseVariants(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"parts", `{"candidates":[{"content":{"parts":[{"text":"Hello "},{"inlineData":{}},{"text":"there"}]}}]}`, "Hello there"},
		{"direct text", `{"candidates":[{"content":{"text":"direct","parts":[{"text":"ignored"}]}}]}`, "direct"},
		{"string content", `{"candidates":[{"content":"plain"}]}`, "plain"},
		{"list content", `{"candidates":[{"content":["a","b"]}]}`, `["a","b"]`},
		{"first candidate wins", `{"candidates":[{"content":{"parts":[{"text":"one"}]}},{"content":{"parts":[{"text":"two"}]}}]}`, "one"},
	}
	for _, tc := range cases {
		got, err := parseResponse([]byte(tc.body))
		if err != nil {
			t.Fatalf("%s: parseResponse() error = %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: parseResponse() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestParseResponseNoCandidates(t *testing.T) {
	for _, body := range []string{`{}`, `{"candidates":[]}`} {
		if _, err := parseResponse([]byte(body)); !errors.Is(err, ErrNoCandidates) {
			t.Fatalf("parseResponse(%s) error = %v, want ErrNoCandidates", body, err)
		}
	}
}

type countingSleeper struct {
	delays []time.Duration
}

func (c *countingSleeper) sleep(_ context.Context, d time.Duration) error {
	c.delays = append(c.delays, d)
	return nil
}

func newTestGemini(t *testing.T, h http.HandlerFunc) (*Gemini, *countingSleeper) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	g := NewGemini(GeminiConfig{APIKey: "test-key", BaseURL: srv.URL})
	s := &countingSleeper{}
	g.SetSleeper(s.sleep)
	return g, s
}

func TestGeminiRetriesUnavailableThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	var gotPrompt, gotKey, gotPath string
	g, sleeper := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		gotKey = r.URL.Query().Get("key")
		gotPath = r.URL.Path
		var req generateRequest
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		if len(req.Contents) == 1 && len(req.Contents[0].Parts) == 1 {
			gotPrompt = req.Contents[0].Parts[0].Text
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Nice to meet you."}]}}]}`))
	})

	reply, err := g.Reply(context.Background(), []conversation.Turn{{Author: conversation.RoleUser, Text: "hi"}})
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	if reply != "Nice to meet you." {
		t.Fatalf("Reply() = %q", reply)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
	if len(sleeper.delays) != 2 || sleeper.delays[0] != time.Second || sleeper.delays[1] != 2*time.Second {
		t.Fatalf("sleeps = %v, want [1s 2s]", sleeper.delays)
	}
	if gotKey != "test-key" {
		t.Fatalf("key = %q", gotKey)
	}
	if gotPath != "/models/gemini-2.0-flash:generateContent" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotPrompt != "User: hi\nAssistant:" {
		t.Fatalf("prompt = %q", gotPrompt)
	}
}

func TestGeminiFailsFastOnClientError(t *testing.T) {
	var calls atomic.Int32
	g, sleeper := newTestGemini(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"API key not valid"}`, http.StatusBadRequest)
	})

	_, err := g.Reply(context.Background(), nil)
	if reliability.HTTPStatus(err) != http.StatusBadRequest {
		t.Fatalf("Reply() error = %v, want HTTP 400", err)
	}
	if calls.Load() != 1 || len(sleeper.delays) != 0 {
		t.Fatalf("calls = %d sleeps = %d, want 1 and 0", calls.Load(), len(sleeper.delays))
	}
}

func TestGeminiExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	g, sleeper := newTestGemini(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := g.Reply(context.Background(), nil)
	if reliability.HTTPStatus(err) != http.StatusServiceUnavailable {
		t.Fatalf("Reply() error = %v, want HTTP 503", err)
	}
	if calls.Load() != 3 || len(sleeper.delays) != 2 {
		t.Fatalf("calls = %d sleeps = %d, want 3 and 2", calls.Load(), len(sleeper.delays))
	}
}

func TestGeminiRetriesEmptyCandidates(t *testing.T) {
	var calls atomic.Int32
	g, _ := newTestGemini(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"candidates":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"text":"second time"}}]}`))
	})

	reply, err := g.Reply(context.Background(), nil)
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	if reply != "second time" {
		t.Fatalf("Reply() = %q", reply)
	}
}

func TestGeminiTransportErrorHidesKey(t *testing.T) {
	g := NewGemini(GeminiConfig{APIKey: "super-secret", BaseURL: "http://127.0.0.1:1", Attempts: 1})
	_, err := g.Reply(context.Background(), nil)
	if err == nil {
		t.Fatalf("Reply() expected transport error")
	}
	if strings.Contains(err.Error(), "super-secret") {
		t.Fatalf("error leaks key: %v", err)
	}
}

func TestNewRequiresKeyForGemini(t *testing.T) {
	if _, err := New(Config{Provider: "gemini"}); err == nil {
		t.Fatalf("New() expected missing key error")
	}
	c, err := New(Config{Provider: "mock"})
	if err != nil {
		t.Fatalf("New(mock) error = %v", err)
	}
	reply, err := c.Reply(context.Background(), []conversation.Turn{{Author: conversation.RoleUser, Text: "good morning"}})
	if err != nil || reply != "I heard you say: good morning" {
		t.Fatalf("mock Reply() = %q, %v", reply, err)
	}
}
