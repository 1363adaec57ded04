package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/speakwell/internal/conversation"
)

var ErrNotFound = errors.New("session not found")

// DefaultMaxTurns bounds the history a session retains. The dialogue word
// budget trims further before each call.
const DefaultMaxTurns = 200

// Session is a signed-in browser. History is the companion transcript,
// oldest first.
type Session struct {
	ID             string              `json:"session_id"`
	UserID         string              `json:"user_id"`
	Role           string              `json:"role"`
	History        []conversation.Turn `json:"history,omitempty"`
	StartedAt      time.Time           `json:"started_at"`
	LastActivityAt time.Time           `json:"last_activity_at"`
}

type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	inactivityTimeout time.Duration
	maxTurns          int
	onExpire          func(*Session)
	now               func() time.Time
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 24 * time.Hour
	}
	return &Manager{
		sessions:          make(map[string]*Session),
		inactivityTimeout: inactivityTimeout,
		maxTurns:          DefaultMaxTurns,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

func (m *Manager) Create(userID, role string) *Session {
	now := m.now()
	s := &Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		Role:           role,
		StartedAt:      now,
		LastActivityAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return clone(s)
}

// Get returns a copy of the session and refreshes its activity time.
// Sessions past the inactivity timeout are treated as gone.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	now := m.now()
	if now.Sub(s.LastActivityAt) >= m.inactivityTimeout {
		delete(m.sessions, sessionID)
		return nil, ErrNotFound
	}
	s.LastActivityAt = now
	return clone(s), nil
}

// History returns a copy of the session transcript.
func (m *Manager) History(sessionID string) ([]conversation.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]conversation.Turn(nil), s.History...), nil
}

// AppendTurn adds a turn and returns the updated transcript copy.
func (m *Manager) AppendTurn(sessionID string, turn conversation.Turn) ([]conversation.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	s.History = append(s.History, turn)
	if over := len(s.History) - m.maxTurns; over > 0 {
		s.History = append([]conversation.Turn(nil), s.History[over:]...)
	}
	s.LastActivityAt = m.now()
	return append([]conversation.Turn(nil), s.History...), nil
}

// ResetHistory clears the transcript but keeps the session signed in.
func (m *Manager) ResetHistory(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.History = nil
	s.LastActivityAt = m.now()
	return nil
}

// End removes the session and its history.
func (m *Manager) End(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.sessions, sessionID)
	return clone(s), nil
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) expireInactive() {
	now := m.now()
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if now.Sub(s.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		expired = append(expired, clone(s))
		delete(m.sessions, id)
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func clone(s *Session) *Session {
	c := *s
	c.History = append([]conversation.Turn(nil), s.History...)
	return &c
}
