package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the pronunciation service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	SessionJanitorInterval   time.Duration
	MetricsNamespace         string
	LogLevel                 string
	LogFormat                string
	SecretKey                string
	AllowAnyOrigin           bool

	StaticDir   string
	AudioDir    string
	TmpDir      string
	ContentFile string

	ASRBackend      string
	WhisperModel    string
	WhisperCacheDir string
	WhisperCLI      string
	WhisperLanguage string
	WhisperThreads  int
	FFmpegBin       string

	DialogueProvider string
	GoogleAPIKey     string
	GeminiModel      string
	GeminiBaseURL    string
	GeminiTimeout    time.Duration
	GeminiAttempts   int
	GeminiBackoff    time.Duration
	SystemPrompt     string

	TTSProvider       string
	TTSLanguage       string
	TTSTLD            string
	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string
	ElevenLabsModelID string

	AudioRetention     time.Duration
	AudioSweepInterval time.Duration

	DatabaseURL string

	AdminEmail    string
	AdminPassword string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:           envOrDefault("APP_ADDR", ":8080"),
		MetricsNamespace:   envOrDefault("APP_METRICS_NAMESPACE", "speakwell"),
		LogLevel:           envOrDefault("APP_LOG_LEVEL", "info"),
		LogFormat:          envOrDefault("APP_LOG_FORMAT", "text"),
		SecretKey:          firstNonEmpty("APP_SECRET_KEY", "FLASK_SECRET_KEY"),
		StaticDir:          envOrDefault("APP_STATIC_DIR", "static"),
		TmpDir:             envOrDefault("APP_TMP_DIR", os.TempDir()),
		ContentFile:        stringsTrimSpace("APP_CONTENT_FILE"),
		ASRBackend:         strings.ToLower(envOrDefault("ASR_BACKEND", "cli")),
		WhisperModel:       envOrDefault("WHISPER_MODEL", "base"),
		WhisperCacheDir:    envOrDefault("WHISPER_CACHE_DIR", "models"),
		WhisperCLI:         envOrDefault("WHISPER_CLI", "whisper-cli"),
		WhisperLanguage:    envOrDefault("WHISPER_LANGUAGE", "en"),
		FFmpegBin:          envOrDefault("FFMPEG_BIN", "ffmpeg"),
		DialogueProvider:   strings.ToLower(envOrDefault("DIALOGUE_PROVIDER", "gemini")),
		GoogleAPIKey:       stringsTrimSpace("GOOGLE_API_KEY"),
		GeminiModel:        envOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiBaseURL:      stringsTrimSpace("GEMINI_BASE_URL"),
		GeminiTimeout:      15 * time.Second,
		GeminiAttempts:     3,
		GeminiBackoff:      time.Second,
		SystemPrompt:       stringsTrimSpace("AI_SYSTEM_PROMPT"),
		TTSProvider:        strings.ToLower(envOrDefault("TTS_PROVIDER", "gtts")),
		TTSLanguage:        envOrDefault("TTS_LANGUAGE", "en"),
		TTSTLD:             envOrDefault("TTS_TLD", "com"),
		ElevenLabsAPIKey:   stringsTrimSpace("ELEVENLABS_API_KEY"),
		ElevenLabsVoiceID:  stringsTrimSpace("ELEVENLABS_TTS_VOICE_ID"),
		ElevenLabsModelID:  stringsTrimSpace("ELEVENLABS_TTS_MODEL_ID"),
		DatabaseURL:        stringsTrimSpace("DATABASE_URL"),
		AdminEmail:         firstNonEmpty("APP_ADMIN_EMAIL", "APP_DEFAULT_EMAIL", "APP_DEFAULT_USER"),
		AdminPassword:      firstNonEmpty("APP_ADMIN_PASSWORD", "APP_DEFAULT_PASSWORD"),
		ShutdownTimeout:    15 * time.Second,
		AudioRetention:     10 * time.Minute,
		AudioSweepInterval: time.Minute,

		SessionInactivityTimeout: 24 * time.Hour,
		SessionJanitorInterval:   time.Minute,
	}
	cfg.AudioDir = envOrDefault("APP_AUDIO_DIR", cfg.StaticDir+"/audio")

	var err error
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"APP_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
		{"APP_SESSION_INACTIVITY_TIMEOUT", &cfg.SessionInactivityTimeout},
		{"APP_SESSION_JANITOR_INTERVAL", &cfg.SessionJanitorInterval},
		{"GEMINI_TIMEOUT", &cfg.GeminiTimeout},
		{"GEMINI_BACKOFF", &cfg.GeminiBackoff},
		{"AI_AUDIO_RETENTION", &cfg.AudioRetention},
		{"AI_AUDIO_SWEEP_INTERVAL", &cfg.AudioSweepInterval},
	}
	for _, d := range durations {
		*d.dst, err = durationFromEnv(d.key, *d.dst)
		if err != nil {
			return Config{}, err
		}
	}
	cfg.GeminiAttempts, err = intFromEnv("GEMINI_ATTEMPTS", cfg.GeminiAttempts)
	if err != nil {
		return Config{}, err
	}
	// 0 means "auto" (picked based on CPU count).
	cfg.WhisperThreads, err = intFromEnv("WHISPER_THREADS", 0)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.DialogueProvider {
	case "gemini":
		if c.GoogleAPIKey == "" {
			return fmt.Errorf("GOOGLE_API_KEY must be set (or DIALOGUE_PROVIDER=mock)")
		}
	case "mock":
	default:
		return fmt.Errorf("DIALOGUE_PROVIDER must be one of gemini, mock")
	}
	switch c.ASRBackend {
	case "cli", "native", "mock":
	default:
		return fmt.Errorf("ASR_BACKEND must be one of cli, native, mock")
	}
	switch c.TTSProvider {
	case "gtts", "elevenlabs", "auto", "mock":
	default:
		return fmt.Errorf("TTS_PROVIDER must be one of gtts, elevenlabs, auto, mock")
	}
	if c.TTSProvider == "elevenlabs" && c.ElevenLabsAPIKey == "" {
		return fmt.Errorf("ELEVENLABS_API_KEY must be set when TTS_PROVIDER=elevenlabs")
	}
	if c.SessionInactivityTimeout < 5*time.Second {
		return fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if c.SessionJanitorInterval <= 0 {
		return fmt.Errorf("APP_SESSION_JANITOR_INTERVAL must be positive")
	}
	if c.GeminiAttempts <= 0 {
		return fmt.Errorf("GEMINI_ATTEMPTS must be positive")
	}
	if c.GeminiTimeout <= 0 {
		return fmt.Errorf("GEMINI_TIMEOUT must be positive")
	}
	if c.AudioRetention <= 0 || c.AudioSweepInterval <= 0 {
		return fmt.Errorf("AI_AUDIO_RETENTION and AI_AUDIO_SWEEP_INTERVAL must be positive")
	}
	if c.WhisperThreads < 0 {
		return fmt.Errorf("WHISPER_THREADS must be >= 0")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback
	}
	return v
}

func firstNonEmpty(keys ...string) string {
	for _, key := range keys {
		if v := stringsTrimSpace(key); v != "" {
			return v
		}
	}
	return ""
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
