package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ent0n29/speakwell/internal/auth"
	"github.com/ent0n29/speakwell/internal/companion"
	"github.com/ent0n29/speakwell/internal/config"
	"github.com/ent0n29/speakwell/internal/logging"
	"github.com/ent0n29/speakwell/internal/observability"
	"github.com/ent0n29/speakwell/internal/practice"
	"github.com/ent0n29/speakwell/internal/session"
)

// maxUploadBytes bounds a single multipart recording upload.
const maxUploadBytes = 32 << 20

// Deps are the services behind the HTTP surface. Companion and Ready may be nil.
type Deps struct {
	Sessions  *session.Manager
	Auth      *auth.Service
	Practice  *practice.Service
	Companion *companion.Service
	Metrics   *observability.Metrics
	Log       logrus.FieldLogger
	Ready     func(ctx context.Context) error
}

type Server struct {
	cfg       config.Config
	sessions  *session.Manager
	auth      *auth.Service
	practice  *practice.Service
	companion *companion.Service
	metrics   *observability.Metrics
	log       logrus.FieldLogger
	ready     func(ctx context.Context) error
	cookies   cookieCodec
	upgrader  websocket.Upgrader
	static    http.Handler
}

func New(cfg config.Config, deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		cfg:       cfg,
		sessions:  deps.Sessions,
		auth:      deps.Auth,
		practice:  deps.Practice,
		companion: deps.Companion,
		metrics:   deps.Metrics,
		log:       log.WithField("component", "httpapi"),
		ready:     deps.Ready,
		cookies:   newCookieCodec(cfg.SecretKey),
		static:    newStaticHandler(cfg.StaticDir),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browsers may drive a signed-in companion session.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.metrics.Handler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)
	r.Handle("/static/*", http.StripPrefix("/static/", s.static))

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/logout", s.handleLogout)
	r.Get("/content", s.handleContent)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/me", s.handleMe)
		r.Post("/transcribe", s.handleTranscribe)
		r.Get("/dashboard", s.handleDashboard)

		r.Route("/aicompanion", func(r chi.Router) {
			r.Post("/process_audio", s.handleProcessAudio)
			r.Post("/cleanup_audio", s.handleCleanupAudio)
			r.Get("/ws", s.handleCompanionWS)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "not_found", "Not found.")
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"active_sessions":   s.sessions.ActiveCount(),
		"companion_enabled": s.companion != nil,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, "not_ready", err.Error())
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
