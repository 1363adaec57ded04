// Package companion runs the voice chat loop: recording in, spoken reply
// out, with the conversation kept on the caller's session.
package companion

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ent0n29/speakwell/internal/asr"
	"github.com/ent0n29/speakwell/internal/conversation"
	"github.com/ent0n29/speakwell/internal/dialogue"
	"github.com/ent0n29/speakwell/internal/observability"
	"github.com/ent0n29/speakwell/internal/reliability"
	"github.com/ent0n29/speakwell/internal/tts"
)

const (
	AudioURLPrefix = "/static/audio/"
	LoopVideoURL   = "/static/video/demo.mp4"
	replyPrefix    = "resp_"
	replyExt       = ".mp3"
)

type Transcriber interface {
	Transcribe(ctx context.Context, src io.Reader, ext string) (asr.Transcript, error)
}

// History is the per-session transcript store.
type History interface {
	AppendTurn(sessionID string, turn conversation.Turn) ([]conversation.Turn, error)
}

type Config struct {
	AudioDir     string
	SystemPrompt string
}

// Reply is the JSON body returned for each processed utterance.
type Reply struct {
	Transcript    string `json:"transcript"`
	ResponseText  string `json:"response_text"`
	AudioURL      string `json:"audio_url"`
	AudioFilename string `json:"audio_filename"`
	LoopVideoURL  string `json:"loop_video_url"`
}

type Service struct {
	cfg         Config
	transcriber Transcriber
	history     History
	dialogue    dialogue.Client
	synth       tts.Synthesizer
	metrics     *observability.Metrics
	log         logrus.FieldLogger
}

func NewService(cfg Config, transcriber Transcriber, history History, dlg dialogue.Client, synth tts.Synthesizer, metrics *observability.Metrics, log logrus.FieldLogger) *Service {
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = conversation.DefaultSystemPrompt
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		cfg:         cfg,
		transcriber: transcriber,
		history:     history,
		dialogue:    dlg,
		synth:       synth,
		metrics:     metrics,
		log:         log.WithField("component", "companion"),
	}
}

func (s *Service) AudioDir() string { return s.cfg.AudioDir }

// ProcessAudio transcribes the utterance, records it on the session,
// asks the dialogue model for a reply and speaks it into a new mp3.
// The user turn is kept even when a later step fails.
func (s *Service) ProcessAudio(ctx context.Context, sessionID string, src io.Reader, ext string) (Reply, error) {
	started := time.Now()

	stage := time.Now()
	tr, err := s.transcriber.Transcribe(ctx, src, ext)
	if err != nil {
		s.count("error")
		return Reply{}, err
	}
	s.observe(observability.StageTranscribe, stage)

	history, err := s.history.AppendTurn(sessionID, conversation.Turn{Author: conversation.RoleUser, Text: tr.Text})
	if err != nil {
		s.count("error")
		return Reply{}, fmt.Errorf("record user turn: %w", err)
	}

	stage = time.Now()
	raw, err := s.dialogue.Reply(ctx, conversation.Prepare(s.cfg.SystemPrompt, history))
	if err != nil {
		s.count("error")
		if s.metrics != nil {
			s.metrics.ProviderError("dialogue", reliability.HTTPStatus(err))
		}
		return Reply{}, err
	}
	s.observe(observability.StageDialogue, stage)
	reply := strings.ReplaceAll(raw, "*", "")

	if _, err := s.history.AppendTurn(sessionID, conversation.Turn{Author: conversation.RoleAssistant, Text: reply}); err != nil {
		s.count("error")
		return Reply{}, fmt.Errorf("record assistant turn: %w", err)
	}

	name := replyPrefix + strings.ReplaceAll(uuid.NewString(), "-", "") + replyExt
	stage = time.Now()
	if err := tts.SynthesizeToFile(ctx, s.synth, reply, filepath.Join(s.cfg.AudioDir, name)); err != nil {
		s.count("error")
		if s.metrics != nil {
			s.metrics.ProviderError("tts", reliability.HTTPStatus(err))
		}
		return Reply{}, err
	}
	s.observe(observability.StageSynthesize, stage)
	s.observe(observability.StageTotal, started)
	s.count("ok")

	s.log.WithFields(logrus.Fields{
		"transcript_words": len(strings.Fields(tr.Text)),
		"reply_words":      len(strings.Fields(reply)),
		"audio_file":       name,
	}).Debug("companion turn complete")

	return Reply{
		Transcript:    tr.Text,
		ResponseText:  reply,
		AudioURL:      AudioURLPrefix + name,
		AudioFilename: name,
		LoopVideoURL:  LoopVideoURL,
	}, nil
}

func (s *Service) observe(stage string, since time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveStage(stage, time.Since(since))
	}
}

func (s *Service) count(outcome string) {
	if s.metrics != nil {
		s.metrics.Transcriptions.WithLabelValues("companion", outcome).Inc()
	}
}
