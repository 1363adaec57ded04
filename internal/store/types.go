// Package store persists accounts and practice progress. A process-local
// tier is always present; a PostgreSQL tier is layered in front of it when
// DATABASE_URL is set.
package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("store: not found")

// MaxLocalProgress is how many entries per user the in-memory tier keeps.
const MaxLocalProgress = 100

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type User struct {
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProgressEntry is one scored attempt. Entries are append-only.
type ProgressEntry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"-"`
	ContentID   int       `json:"content_id"`
	ContentType string    `json:"content_type"`
	Target      string    `json:"target"`
	Transcript  string    `json:"transcript"`
	Score       float64   `json:"score"`
	CreatedAt   time.Time `json:"created_at"`
}

type UserStore interface {
	GetUser(ctx context.Context, email string) (User, error)
	PutUser(ctx context.Context, user User) error
	DeleteUser(ctx context.Context, email string) error
	ListUsers(ctx context.Context) ([]User, error)
}

type ProgressStore interface {
	AppendProgress(ctx context.Context, entry ProgressEntry) error
	// RecentProgress returns up to limit entries, newest first.
	RecentProgress(ctx context.Context, userID string, limit int) ([]ProgressEntry, error)
}

type Store interface {
	UserStore
	ProgressStore
	Close() error
}

// NormalizeEmail is the key form for users.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
