package store

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

// NewStore returns the in-memory tier alone when databaseURL is empty and
// a Tiered store over PostgreSQL otherwise. An unreachable database is
// logged and the service runs on the local tier.
func NewStore(ctx context.Context, databaseURL string, log logrus.FieldLogger) Store {
	local := NewInMemoryStore()
	if strings.TrimSpace(databaseURL) == "" {
		return local
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	remote, err := NewPostgresStore(ctx, databaseURL)
	if err != nil {
		log.WithError(err).Warn("postgres unavailable; progress is kept in memory only")
		return local
	}
	return NewTiered(remote, local, log)
}
