package practice

import (
	"context"
	"time"

	"github.com/ent0n29/speakwell/internal/store"
)

const DefaultProgressLimit = 50

// IST is the display zone for practice history.
var IST = time.FixedZone("IST", 5*60*60+30*60)

type Summary struct {
	TotalSessions int        `json:"total_sessions"`
	AverageScore  *float64   `json:"average_score"`
	BestScore     *float64   `json:"best_score"`
	LastScore     *float64   `json:"last_score"`
	LastPracticed *time.Time `json:"last_practiced"`
}

type Dashboard struct {
	Progress Summary               `json:"progress"`
	Entries  []store.ProgressEntry `json:"entries"`
}

// Progress loads the newest entries for userID with timestamps in IST.
func (s *Service) Progress(ctx context.Context, userID string, limit int) (Dashboard, error) {
	if limit <= 0 {
		limit = DefaultProgressLimit
	}
	entries, err := s.progress.RecentProgress(ctx, userID, limit)
	if err != nil {
		return Dashboard{}, err
	}
	for i := range entries {
		entries[i].CreatedAt = entries[i].CreatedAt.In(IST)
	}
	if entries == nil {
		entries = []store.ProgressEntry{}
	}
	return Dashboard{Progress: Summarise(entries), Entries: entries}, nil
}

// Summarise expects entries newest first. All pointer fields are nil for
// an empty history.
func Summarise(entries []store.ProgressEntry) Summary {
	if len(entries) == 0 {
		return Summary{}
	}
	sum := 0.0
	best := entries[0].Score
	for _, e := range entries {
		sum += e.Score
		if e.Score > best {
			best = e.Score
		}
	}
	avg := sum / float64(len(entries))
	last := entries[0].Score
	when := entries[0].CreatedAt.In(IST)
	return Summary{
		TotalSessions: len(entries),
		AverageScore:  &avg,
		BestScore:     &best,
		LastScore:     &last,
		LastPracticed: &when,
	}
}
