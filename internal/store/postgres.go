package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps users and the full progress history in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			email TEXT PRIMARY KEY,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS progress_entries (
			id TEXT PRIMARY KEY,
			user_email TEXT NOT NULL,
			content_id INTEGER NOT NULL,
			content_type TEXT NOT NULL,
			target TEXT NOT NULL,
			transcript TEXT NOT NULL,
			score DOUBLE PRECISION NOT NULL CHECK (score >= 0 AND score <= 100),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_progress_user_created ON progress_entries (user_email, created_at DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, email string) (User, error) {
	var u User
	var role string
	err := s.pool.QueryRow(ctx,
		`SELECT email, password_hash, role, updated_at FROM users WHERE email=$1`,
		NormalizeEmail(email),
	).Scan(&u.Email, &u.PasswordHash, &role, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	u.Role = Role(role)
	return u, nil
}

func (s *PostgresStore) PutUser(ctx context.Context, user User) error {
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (email, password_hash, role, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (email) DO UPDATE
		 SET password_hash = EXCLUDED.password_hash, role = EXCLUDED.role, updated_at = EXCLUDED.updated_at`,
		NormalizeEmail(user.Email),
		user.PasswordHash,
		string(user.Role),
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, email string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE email=$1`, NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `SELECT email, password_hash, role, updated_at FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		var role string
		if err := rows.Scan(&u.Email, &u.PasswordHash, &role, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		u.Role = Role(role)
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) AppendProgress(ctx context.Context, entry ProgressEntry) error {
	if entry.ID == "" {
		entry.ID = newEntryID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO progress_entries (id, user_email, content_id, content_type, target, transcript, score, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID,
		NormalizeEmail(entry.UserID),
		entry.ContentID,
		entry.ContentType,
		entry.Target,
		entry.Transcript,
		entry.Score,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append progress: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentProgress(ctx context.Context, userID string, limit int) ([]ProgressEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_email, content_id, content_type, target, transcript, score, created_at
		 FROM progress_entries WHERE user_email=$1 ORDER BY created_at DESC LIMIT $2`,
		NormalizeEmail(userID),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	items := make([]ProgressEntry, 0, limit)
	for rows.Next() {
		var e ProgressEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.ContentID, &e.ContentType, &e.Target, &e.Transcript, &e.Score, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan progress row: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress rows: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
