package companion

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
)

// Sweeper deletes reply files the browser never asked to clean up.
type Sweeper struct {
	dir       string
	retention time.Duration
	scheduler *gocron.Scheduler
	log       logrus.FieldLogger
	now       func() time.Time
	// OnSwept observes how many files each run removed.
	OnSwept func(n int)
}

func NewSweeper(dir string, retention time.Duration, log logrus.FieldLogger) *Sweeper {
	if retention <= 0 {
		retention = 10 * time.Minute
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sweeper{
		dir:       dir,
		retention: retention,
		scheduler: gocron.NewScheduler(time.UTC),
		log:       log.WithField("component", "reply_sweeper"),
		now:       time.Now,
	}
}

// Start runs a sweep every interval in the background.
func (s *Sweeper) Start(interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	if _, err := s.scheduler.Every(interval).Do(s.run); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	return nil
}

func (s *Sweeper) Stop() {
	s.scheduler.Stop()
}

func (s *Sweeper) run() {
	n, err := s.Sweep()
	if err != nil {
		s.log.WithError(err).Warn("reply audio sweep failed")
	}
	if n > 0 {
		s.log.WithField("removed", n).Debug("reply audio swept")
	}
	if s.OnSwept != nil {
		s.OnSwept(n)
	}
}

// Sweep removes resp_*.mp3 files older than the retention window.
func (s *Sweeper) Sweep() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-s.retention)
	removed := 0
	var errs []error
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, replyPrefix) || !strings.HasSuffix(name, replyExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
