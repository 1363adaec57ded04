// Package practice scores read-aloud attempts against the content catalog
// and keeps each learner's progress.
package practice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ent0n29/speakwell/internal/asr"
	"github.com/ent0n29/speakwell/internal/content"
	"github.com/ent0n29/speakwell/internal/observability"
	"github.com/ent0n29/speakwell/internal/policy"
	"github.com/ent0n29/speakwell/internal/scoring"
	"github.com/ent0n29/speakwell/internal/store"
)

var (
	ErrInvalidContentType = errors.New("invalid content type")
	ErrMissingContentID   = errors.New("content identifier missing")
	ErrInvalidContentID   = errors.New("content identifier must be an integer")
)

// NotFoundError reports a content id absent from the catalog.
type NotFoundError struct {
	Kind content.Kind
	ID   int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// Message is the user-facing text, e.g. "Sentence not found.".
func (e *NotFoundError) Message() string {
	label := string(e.Kind)
	if label == "" {
		return "Not found."
	}
	return strings.ToUpper(label[:1]) + label[1:] + " not found."
}

// Transcriber turns an uploaded recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, src io.Reader, ext string) (asr.Transcript, error)
}

type Request struct {
	UserID      string
	ContentType string
	ContentID   string
	Audio       io.Reader
	// Ext is the upload's file extension, used to pick the demuxer.
	Ext string
}

type Result struct {
	Transcript  string         `json:"transcript"`
	Target      string         `json:"target"`
	Score       float64        `json:"score"`
	ContentType content.Kind   `json:"contentType"`
	Words       []scoring.Word `json:"words"`
}

type Service struct {
	catalog     *content.Catalog
	transcriber Transcriber
	progress    store.ProgressStore
	metrics     *observability.Metrics
	log         logrus.FieldLogger
	now         func() time.Time
}

func NewService(catalog *content.Catalog, transcriber Transcriber, progress store.ProgressStore, metrics *observability.Metrics, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		catalog:     catalog,
		transcriber: transcriber,
		progress:    progress,
		metrics:     metrics,
		log:         log.WithField("component", "practice"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Catalog() *content.Catalog { return s.catalog }

// Resolve validates the content selection before any audio is processed.
func (s *Service) Resolve(contentType, contentID string) (content.Kind, content.Item, error) {
	kind, ok := content.ParseKind(contentType)
	if !ok {
		return "", content.Item{}, ErrInvalidContentType
	}
	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return "", content.Item{}, ErrMissingContentID
	}
	id, err := strconv.Atoi(contentID)
	if err != nil {
		return "", content.Item{}, ErrInvalidContentID
	}
	item, ok := s.catalog.Find(kind, id)
	if !ok {
		return "", content.Item{}, &NotFoundError{Kind: kind, ID: id}
	}
	return kind, item, nil
}

// Transcribe scores one attempt. Progress is recorded for signed-in users;
// a failed save is logged and does not fail the request.
func (s *Service) Transcribe(ctx context.Context, req Request) (Result, error) {
	kind, item, err := s.Resolve(req.ContentType, req.ContentID)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	tr, err := s.transcriber.Transcribe(ctx, req.Audio, req.Ext)
	if err != nil {
		s.count("error")
		return Result{}, err
	}
	if s.metrics != nil {
		s.metrics.ObserveStage(observability.StageTranscribe, time.Since(start))
	}

	score := scoring.Similarity(item.Text, tr.Text)
	res := Result{
		Transcript:  tr.Text,
		Target:      item.Text,
		Score:       score,
		ContentType: kind,
		Words:       scoring.WordFeedback(item.Text, tr.Text),
	}
	s.count("ok")
	if s.metrics != nil {
		s.metrics.Scores.Observe(score)
	}

	if strings.TrimSpace(req.UserID) != "" && s.progress != nil {
		entry := store.ProgressEntry{
			UserID:      req.UserID,
			ContentID:   item.ID,
			ContentType: string(kind),
			Target:      item.Text,
			Transcript:  tr.Text,
			Score:       score,
			CreatedAt:   s.now(),
		}
		if err := s.progress.AppendProgress(ctx, entry); err != nil {
			s.log.WithError(err).WithField("user", policy.MaskEmail(req.UserID)).Warn("failed to record practice session")
		}
	}
	return res, nil
}

func (s *Service) count(outcome string) {
	if s.metrics != nil {
		s.metrics.Transcriptions.WithLabelValues("practice", outcome).Inc()
	}
}
