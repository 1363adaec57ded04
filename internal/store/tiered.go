package store

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/ent0n29/speakwell/internal/policy"
)

// Tiered composes a durable remote tier with the local in-memory tier.
//
// Writes go to remote first; a remote failure is logged and the local
// write still happens. User reads prefer local and back-fill misses from
// remote. Progress reads prefer remote and fall back to local when remote
// errors or has nothing. Only local errors are returned to callers.
type Tiered struct {
	remote Store
	local  *InMemoryStore
	log    logrus.FieldLogger
	// OnRemoteError observes each swallowed remote failure.
	OnRemoteError func(op string, err error)
}

func NewTiered(remote Store, local *InMemoryStore, log logrus.FieldLogger) *Tiered {
	if local == nil {
		local = NewInMemoryStore()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Tiered{remote: remote, local: local, log: log.WithField("component", "store")}
}

func (t *Tiered) remoteFailed(op string, err error) {
	t.log.WithError(errors.New(policy.Redact(err.Error()))).WithField("op", op).Warn("remote store unavailable; using local tier")
	if t.OnRemoteError != nil {
		t.OnRemoteError(op, err)
	}
}

func (t *Tiered) GetUser(ctx context.Context, email string) (User, error) {
	if u, err := t.local.GetUser(ctx, email); err == nil {
		return u, nil
	}
	if t.remote == nil {
		return User{}, ErrNotFound
	}
	u, err := t.remote.GetUser(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		return User{}, ErrNotFound
	case err != nil:
		t.remoteFailed("get_user", err)
		return User{}, ErrNotFound
	}
	_ = t.local.PutUser(ctx, u)
	return u, nil
}

func (t *Tiered) PutUser(ctx context.Context, user User) error {
	if t.remote != nil {
		if err := t.remote.PutUser(ctx, user); err != nil {
			t.remoteFailed("put_user", err)
		}
	}
	return t.local.PutUser(ctx, user)
}

func (t *Tiered) DeleteUser(ctx context.Context, email string) error {
	remoteDeleted := false
	if t.remote != nil {
		err := t.remote.DeleteUser(ctx, email)
		switch {
		case err == nil:
			remoteDeleted = true
		case !errors.Is(err, ErrNotFound):
			t.remoteFailed("delete_user", err)
		}
	}
	err := t.local.DeleteUser(ctx, email)
	if errors.Is(err, ErrNotFound) && remoteDeleted {
		return nil
	}
	return err
}

// ListUsers refreshes the local tier from remote, then lists local.
func (t *Tiered) ListUsers(ctx context.Context) ([]User, error) {
	if t.remote != nil {
		users, err := t.remote.ListUsers(ctx)
		if err != nil {
			t.remoteFailed("list_users", err)
		}
		for _, u := range users {
			_ = t.local.PutUser(ctx, u)
		}
	}
	return t.local.ListUsers(ctx)
}

func (t *Tiered) AppendProgress(ctx context.Context, entry ProgressEntry) error {
	if entry.ID == "" {
		entry.ID = newEntryID()
	}
	if t.remote != nil {
		if err := t.remote.AppendProgress(ctx, entry); err != nil {
			t.remoteFailed("append_progress", err)
		}
	}
	return t.local.AppendProgress(ctx, entry)
}

func (t *Tiered) RecentProgress(ctx context.Context, userID string, limit int) ([]ProgressEntry, error) {
	if t.remote != nil {
		entries, err := t.remote.RecentProgress(ctx, userID, limit)
		if err != nil {
			t.remoteFailed("recent_progress", err)
		} else if len(entries) > 0 {
			return entries, nil
		}
	}
	return t.local.RecentProgress(ctx, userID, limit)
}

func (t *Tiered) Close() error {
	if t.remote != nil {
		return t.remote.Close()
	}
	return nil
}
