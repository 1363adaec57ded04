package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline stage names shared by the practice and companion flows.
const (
	StageTranscribe = "transcribe"
	StageDialogue   = "dialogue"
	StageSynthesize = "synthesize"
	StageTotal      = "total"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions  prometheus.Gauge
	SessionEvents   *prometheus.CounterVec
	Transcriptions  *prometheus.CounterVec
	DialogueRetries prometheus.Counter
	ProviderErrors  *prometheus.CounterVec
	StoreFallbacks  *prometheus.CounterVec
	SweptFiles      prometheus.Counter
	Scores          prometheus.Histogram
	StageLatency    *prometheus.HistogramVec
	WSMessages      *prometheus.CounterVec
	Stages          *StageWindow
	handler         http.Handler
}

// NewMetrics registers on reg, or on the default registry when reg is nil.
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	handler := promhttp.Handler()
	if reg != nil {
		registerer = reg
		handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}
	f := promauto.With(registerer)

	return &Metrics{
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of signed-in sessions.",
		}),
		SessionEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		Transcriptions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Recordings processed by flow and outcome.",
		}, []string{"flow", "outcome"}),
		DialogueRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialogue_retries_total",
			Help:      "Dialogue API calls retried after a transient failure.",
		}),
		ProviderErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by provider and code.",
		}, []string{"provider", "code"}),
		StoreFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_fallbacks_total",
			Help:      "Remote store failures absorbed by the local tier, by operation.",
		}, []string{"op"}),
		SweptFiles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reply_audio_swept_total",
			Help:      "Expired reply audio files removed by the sweeper.",
		}),
		Scores: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "similarity_score",
			Help:      "Pronunciation similarity scores (0-100).",
			Buckets:   []float64{10, 25, 40, 50, 60, 70, 80, 90, 95, 100},
		}),
		StageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_latency_ms",
			Help:      "Pipeline stage latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2000, 4000, 8000, 15000},
		}, []string{"stage"}),
		WSMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		Stages:  NewStageWindow(256),
		handler: handler,
	}
}

// ObserveStage records d in both the histogram and the in-process window.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	ms := float64(d.Microseconds()) / 1000
	m.StageLatency.WithLabelValues(stage).Observe(ms)
	m.Stages.Observe(stage, ms)
}

// ProviderError counts a failure from provider; code is the HTTP status or 0.
func (m *Metrics) ProviderError(provider string, code int) {
	label := "transport"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	m.ProviderErrors.WithLabelValues(provider, label).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return m.handler
}
