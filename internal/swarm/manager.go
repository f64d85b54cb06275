package swarm

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ghost-swarm/ghost_swarm/internal/earning"
	"github.com/ghost-swarm/ghost_swarm/internal/logging"
)

// Manager owns one Session per user.
type Manager struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewManager validates deps and returns an empty manager. Zero timing fields take
// their production defaults.
func NewManager(deps Deps) (*Manager, error) {
	if deps.Wallets == nil {
		return nil, errors.New("swarm: wallet service is required")
	}
	if deps.Ledger == nil {
		return nil, errors.New("swarm: ledger is required")
	}
	if deps.Generator == nil {
		deps.Generator = earning.NewGenerator(1)
	}
	deps.Logger = logging.Component(deps.Logger, "swarm")
	deps.Timing = deps.Timing.withDefaults()
	return &Manager{deps: deps, sessions: make(map[string]*Session)}, nil
}

// Session returns the user's running session, loading it on first use. A session
// whose wallet cannot be loaded is not cached, so the next call retries.
func (m *Manager) Session(ctx context.Context, userID string) (*Session, error) {
	if s, ok := m.Lookup(userID); ok {
		return s, nil
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrSessionClosed
	}
	m.mu.Unlock()

	s := newSession(userID, m.deps)
	if err := s.load(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrSessionClosed
	}
	if existing, ok := m.sessions[userID]; ok {
		return existing, nil
	}
	s.start()
	m.sessions[userID] = s
	m.deps.Logger.Info("session started", slog.String("user_id", userID), slog.Int("agents", s.roster.Len()))
	return s, nil
}

// Lookup returns the user's session without loading one.
func (m *Manager) Lookup(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// Drop stops and forgets the user's session.
func (m *Manager) Drop(userID string) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()
	if ok {
		s.Close()
		m.deps.Logger.Info("session stopped", slog.String("user_id", userID))
	}
}

// Close stops every session. Sessions requested afterwards fail with ErrSessionClosed.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Close()
		}(s)
	}
	wg.Wait()
}

// Generator exposes the shared earning generator.
func (m *Manager) Generator() *earning.Generator { return m.deps.Generator }
