package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ent0n29/speakwell/internal/config"
)

func TestBuildWithMockProviders(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		MetricsNamespace:         "speakwell_build_test",
		SessionInactivityTimeout: time.Minute,
		StaticDir:                dir,
		AudioDir:                 filepath.Join(dir, "audio"),
		TmpDir:                   dir,
		ASRBackend:               "mock",
		DialogueProvider:         "mock",
		TTSProvider:              "mock",
		AudioRetention:           time.Minute,
	}
	log := logrus.New()
	log.SetOutput(io.Discard)

	built, err := Build(context.Background(), cfg, log)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	t.Cleanup(func() { _ = built.Cleanup() })

	if built.Speech != "mock" {
		t.Fatalf("Speech = %q, want mock", built.Speech)
	}
	rec := httptest.NewRecorder()
	built.API.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestBuildRejectsMissingContentFile(t *testing.T) {
	cfg := config.Config{
		MetricsNamespace: "speakwell_build_missing_content",
		ContentFile:      filepath.Join(t.TempDir(), "absent.yaml"),
		ASRBackend:       "mock",
		DialogueProvider: "mock",
		TTSProvider:      "mock",
	}
	if _, err := Build(context.Background(), cfg, nil); err == nil {
		t.Fatalf("Build() expected content file error")
	}
}
