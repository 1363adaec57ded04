package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore keeps users and a bounded progress history per user.
type InMemoryStore struct {
	mu          sync.RWMutex
	users       map[string]User
	progress    map[string][]ProgressEntry
	maxProgress int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:       make(map[string]User),
		progress:    make(map[string][]ProgressEntry),
		maxProgress: MaxLocalProgress,
	}
}

func (s *InMemoryStore) GetUser(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[NormalizeEmail(email)]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *InMemoryStore) PutUser(_ context.Context, user User) error {
	user.Email = NormalizeEmail(user.Email)
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.Email] = user
	return nil
}

func (s *InMemoryStore) DeleteUser(_ context.Context, email string) error {
	key := NormalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[key]; !ok {
		return ErrNotFound
	}
	delete(s.users, key)
	delete(s.progress, key)
	return nil
}

// ListUsers is sorted by email.
func (s *InMemoryStore) ListUsers(_ context.Context) ([]User, error) {
	s.mu.RLock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *InMemoryStore) AppendProgress(_ context.Context, entry ProgressEntry) error {
	if entry.ID == "" {
		entry.ID = newEntryID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	key := NormalizeEmail(entry.UserID)
	entry.UserID = key

	s.mu.Lock()
	defer s.mu.Unlock()
	arr := append(s.progress[key], entry)
	if over := len(arr) - s.maxProgress; over > 0 {
		arr = append([]ProgressEntry(nil), arr[over:]...)
	}
	s.progress[key] = arr
	return nil
}

func (s *InMemoryStore) RecentProgress(_ context.Context, userID string, limit int) ([]ProgressEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.progress[NormalizeEmail(userID)]
	if len(arr) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]ProgressEntry, 0, limit)
	for i := len(arr) - 1; i >= len(arr)-limit; i-- {
		out = append(out, arr[i])
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }

func newEntryID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
