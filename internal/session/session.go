// Package session keeps a short per-user conversation history, cached in
// memory and written through to the sessions table.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"feishu-assistant/internal/model"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	DefaultMaxHistory = 20
	DefaultIdleTTL    = 24 * time.Hour
)

// Turn is one message of the history.
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Session is a snapshot of one user's conversation.
type Session struct {
	UserID    string
	History   []Turn
	State     map[string]string
	UpdatedAt time.Time
}

// Manager owns all sessions. A nil store keeps sessions in memory only.
type Manager struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	store      model.SessionsModel
	maxHistory int
	idleTTL    time.Duration
	now        func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

func WithMaxHistory(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxHistory = n
		}
	}
}

func WithIdleTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.idleTTL = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewManager(store model.SessionsModel, opts ...Option) *Manager {
	m := &Manager{
		sessions:   make(map[string]*Session),
		store:      store,
		maxHistory: DefaultMaxHistory,
		idleTTL:    DefaultIdleTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a copy of the user's session, loading it from the store on the
// first access. Idle sessions come back empty.
func (m *Manager) Get(ctx context.Context, userID string) Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(ctx, userID).clone()
}

// History returns the user's turns, oldest first.
func (m *Manager) History(ctx context.Context, userID string) []Turn {
	return m.Get(ctx, userID).History
}

// Append adds a turn, dropping the oldest turns beyond the history cap.
func (m *Manager) Append(ctx context.Context, userID, role, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.load(ctx, userID)
	now := m.now()
	s.History = append(s.History, Turn{Role: role, Content: content, At: now})
	if over := len(s.History) - m.maxHistory; over > 0 {
		s.History = append([]Turn(nil), s.History[over:]...)
	}
	s.UpdatedAt = now
	m.persist(ctx, s)
}

// SetState stores a key in the session's state blob.
func (m *Manager) SetState(ctx context.Context, userID, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.load(ctx, userID)
	if s.State == nil {
		s.State = make(map[string]string)
	}
	s.State[key] = value
	s.UpdatedAt = m.now()
	m.persist(ctx, s)
}

// Clear drops the user's history and state.
func (m *Manager) Clear(ctx context.Context, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	if m.store == nil {
		return
	}
	if err := m.store.Delete(ctx, userID); err != nil {
		logx.WithContext(ctx).Errorf("session: clear %s: %v", userID, err)
	}
}

// Sweep removes sessions idle for longer than the idle TTL and returns how
// many in-memory sessions were dropped.
func (m *Manager) Sweep(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-m.idleTTL)
	n := 0
	for id, s := range m.sessions {
		if s.UpdatedAt.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	if m.store != nil {
		removed, err := m.store.DeleteIdle(ctx, cutoff.UnixMilli())
		if err != nil {
			logx.WithContext(ctx).Errorf("session: sweep store: %v", err)
		} else if removed > 0 {
			logx.WithContext(ctx).Infof("session: swept %d idle stored sessions", removed)
		}
	}
	return n
}

// Len reports the number of sessions held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) load(ctx context.Context, userID string) *Session {
	cutoff := m.now().Add(-m.idleTTL)
	if s, ok := m.sessions[userID]; ok {
		if !s.UpdatedAt.Before(cutoff) {
			return s
		}
		delete(m.sessions, userID)
	}
	s := &Session{UserID: userID, UpdatedAt: m.now()}
	if m.store != nil {
		if row, err := m.store.FindOne(ctx, userID); err == nil {
			if restored, ok := decode(ctx, row); ok && !restored.UpdatedAt.Before(cutoff) {
				s = restored
			}
		} else if !errors.Is(err, model.ErrNotFound) {
			logx.WithContext(ctx).Errorf("session: load %s: %v", userID, err)
		}
	}
	m.sessions[userID] = s
	return s
}

func (m *Manager) persist(ctx context.Context, s *Session) {
	if m.store == nil {
		return
	}
	history, err := json.Marshal(s.History)
	if err != nil {
		logx.WithContext(ctx).Errorf("session: encode history %s: %v", s.UserID, err)
		return
	}
	state, err := json.Marshal(s.State)
	if err != nil {
		logx.WithContext(ctx).Errorf("session: encode state %s: %v", s.UserID, err)
		return
	}
	row := &model.Sessions{UserID: s.UserID, History: string(history), State: string(state), UpdatedAtMs: s.UpdatedAt.UnixMilli()}
	if err := m.store.Upsert(ctx, row); err != nil {
		logx.WithContext(ctx).Errorf("session: save %s: %v", s.UserID, err)
	}
}

func decode(ctx context.Context, row *model.Sessions) (*Session, bool) {
	s := &Session{UserID: row.UserID, UpdatedAt: time.UnixMilli(row.UpdatedAtMs)}
	if err := json.Unmarshal([]byte(row.History), &s.History); err != nil {
		logx.WithContext(ctx).Errorf("session: decode history %s: %v", row.UserID, err)
		return nil, false
	}
	if row.State != "" && row.State != "null" {
		if err := json.Unmarshal([]byte(row.State), &s.State); err != nil {
			logx.WithContext(ctx).Errorf("session: decode state %s: %v", row.UserID, err)
		}
	}
	return s, true
}

func (s *Session) clone() Session {
	out := Session{UserID: s.UserID, UpdatedAt: s.UpdatedAt}
	out.History = append([]Turn(nil), s.History...)
	if s.State != nil {
		out.State = make(map[string]string, len(s.State))
		for k, v := range s.State {
			out.State[k] = v
		}
	}
	return out
}
