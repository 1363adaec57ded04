package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ent0n29/speakwell/internal/asr"
	"github.com/ent0n29/speakwell/internal/audio"
	"github.com/ent0n29/speakwell/internal/config"
	"github.com/ent0n29/speakwell/internal/dialogue"
	"github.com/ent0n29/speakwell/internal/observability"
	"github.com/ent0n29/speakwell/internal/tts"
)

type speechSetup struct {
	pipeline   *asr.Pipeline
	recognizer *asr.Lazy
	detail     string
}

// resolveSpeech picks the transcoder and recognizer for ASR_BACKEND. The
// whisper model is fetched and loaded on the first recording, not at boot.
func resolveSpeech(cfg config.Config, log logrus.FieldLogger) (speechSetup, error) {
	tmpDir := filepath.Join(cfg.TmpDir, "speakwell-uploads")

	if cfg.ASRBackend == "mock" {
		rec := asr.NewLazy(func() (asr.Recognizer, error) {
			return asr.NewMockRecognizer("she sells seashells by the seashore"), nil
		})
		return speechSetup{
			pipeline:   asr.NewPipeline(tmpDir, audio.Passthrough{}, rec, log),
			recognizer: rec,
			detail:     "mock",
		}, nil
	}

	ffmpeg, err := audio.NewFFmpeg(cfg.FFmpegBin)
	if err != nil {
		return speechSetup{}, err
	}
	modelPath, err := asr.ModelPath(cfg.WhisperModel, cfg.WhisperCacheDir)
	if err != nil {
		return speechSetup{}, fmt.Errorf("resolve whisper model: %w", err)
	}

	var build func() (asr.Recognizer, error)
	switch cfg.ASRBackend {
	case "native":
		if !asr.NativeAvailable {
			return speechSetup{}, fmt.Errorf("ASR_BACKEND=native requires a build with -tags whisper")
		}
		build = func() (asr.Recognizer, error) {
			if err := asr.EnsureModel(context.Background(), modelPath); err != nil {
				return nil, err
			}
			n, err := asr.NewNative(modelPath, cfg.WhisperLanguage)
			if err != nil {
				return nil, err
			}
			return n, nil
		}
	default:
		build = func() (asr.Recognizer, error) {
			if err := asr.EnsureModel(context.Background(), modelPath); err != nil {
				return nil, err
			}
			c, err := asr.NewWhisperCLI(asr.WhisperCLIConfig{
				CLI:       cfg.WhisperCLI,
				ModelPath: modelPath,
				Language:  cfg.WhisperLanguage,
				Threads:   cfg.WhisperThreads,
			})
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}

	rec := asr.NewLazy(build)
	return speechSetup{
		pipeline:   asr.NewPipeline(tmpDir, ffmpeg, rec, log),
		recognizer: rec,
		detail:     fmt.Sprintf("%s (%s, ffmpeg %s)", cfg.ASRBackend, filepath.Base(modelPath), ffmpeg.Path()),
	}, nil
}

func resolveDialogue(cfg config.Config, metrics *observability.Metrics, log logrus.FieldLogger) (dialogue.Client, error) {
	client, err := dialogue.New(dialogue.Config{
		Provider: cfg.DialogueProvider,
		APIKey:   cfg.GoogleAPIKey,
		Model:    cfg.GeminiModel,
		BaseURL:  cfg.GeminiBaseURL,
		Timeout:  cfg.GeminiTimeout,
		Attempts: cfg.GeminiAttempts,
		Backoff:  cfg.GeminiBackoff,
	})
	if err != nil {
		return nil, err
	}
	if g, ok := client.(*dialogue.Gemini); ok {
		g.SetRetryHook(func(attempt int, delay time.Duration, err error) {
			metrics.DialogueRetries.Inc()
			log.WithError(err).WithFields(logrus.Fields{
				"attempt":  attempt,
				"delay_ms": delay.Milliseconds(),
			}).Warn("dialogue call retrying")
		})
	}
	return client, nil
}

func resolveSynth(cfg config.Config) (tts.Synthesizer, error) {
	return tts.New(tts.Config{
		Provider:          cfg.TTSProvider,
		Language:          cfg.TTSLanguage,
		TLD:               cfg.TTSTLD,
		ElevenLabsAPIKey:  cfg.ElevenLabsAPIKey,
		ElevenLabsVoiceID: cfg.ElevenLabsVoiceID,
		ElevenLabsModelID: cfg.ElevenLabsModelID,
	})
}
