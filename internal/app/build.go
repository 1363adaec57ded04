package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ent0n29/speakwell/internal/auth"
	"github.com/ent0n29/speakwell/internal/companion"
	"github.com/ent0n29/speakwell/internal/config"
	"github.com/ent0n29/speakwell/internal/content"
	"github.com/ent0n29/speakwell/internal/httpapi"
	"github.com/ent0n29/speakwell/internal/observability"
	"github.com/ent0n29/speakwell/internal/practice"
	"github.com/ent0n29/speakwell/internal/session"
	"github.com/ent0n29/speakwell/internal/store"
)

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Sessions *session.Manager
	Sweeper  *companion.Sweeper
	Metrics  *observability.Metrics
	Speech   string

	// Cleanup should be called on shutdown to release external resources (DB, model, etc).
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace, nil)

	catalog, err := loadCatalog(cfg.ContentFile)
	if err != nil {
		return nil, err
	}

	st := store.NewStore(ctx, cfg.DatabaseURL, log)
	if tiered, ok := st.(*store.Tiered); ok {
		tiered.OnRemoteError = func(op string, _ error) {
			metrics.StoreFallbacks.WithLabelValues(op).Inc()
		}
	}

	authSvc := auth.NewService(st, log)
	adminEmail, adminPassword := cfg.AdminEmail, cfg.AdminPassword
	if adminEmail == "" {
		adminEmail = auth.DefaultAdminEmail
	}
	if adminPassword == "" {
		adminPassword = auth.DefaultAdminPassword
	}
	if err := authSvc.Bootstrap(ctx, adminEmail, adminPassword); err != nil {
		_ = st.Close()
		return nil, err
	}

	speech, err := resolveSpeech(cfg, log)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("speech pipeline init failed: %w", err)
	}
	dlg, err := resolveDialogue(cfg, metrics, log)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("dialogue client init failed: %w", err)
	}
	synth, err := resolveSynth(cfg)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("speech synthesis init failed: %w", err)
	}

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	practiceSvc := practice.NewService(catalog, speech.pipeline, st, metrics, log)
	companionSvc := companion.NewService(companion.Config{
		AudioDir:     cfg.AudioDir,
		SystemPrompt: cfg.SystemPrompt,
	}, speech.pipeline, sessions, dlg, synth, metrics, log)

	sweeper := companion.NewSweeper(cfg.AudioDir, cfg.AudioRetention, log)
	sweeper.OnSwept = func(n int) { metrics.SweptFiles.Add(float64(n)) }

	api := httpapi.New(cfg, httpapi.Deps{
		Sessions:  sessions,
		Auth:      authSvc,
		Practice:  practiceSvc,
		Companion: companionSvc,
		Metrics:   metrics,
		Log:       log,
	})

	cleanup := func() error {
		return errors.Join(speech.recognizer.Close(), st.Close())
	}

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Sessions: sessions,
		Sweeper:  sweeper,
		Metrics:  metrics,
		Speech:   speech.detail,
		Cleanup:  cleanup,
	}, nil
}

func loadCatalog(path string) (*content.Catalog, error) {
	if path == "" {
		return content.Default()
	}
	c, err := content.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load content catalog %s: %w", path, err)
	}
	return c, nil
}
