package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kapjain-rh/error-resolver/internal/common/logger"
	"github.com/kapjain-rh/error-resolver/internal/events/bus"
)

// ErrSessionNotFound is returned when a session ID is unknown.
var ErrSessionNotFound = fmt.Errorf("session not found")

// Manager owns all live sessions, keyed by session ID. Lifecycle events are
// published on the bus.
type Manager struct {
	logger   *logger.Logger
	bus      bus.EventBus
	defaults Config

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session manager. defaults seeds every created
// session; callers may override fields per session.
func NewManager(defaults Config, eventBus bus.EventBus, log *logger.Logger) *Manager {
	return &Manager{
		logger:   log.WithFields(zap.String("component", "session-manager")),
		bus:      eventBus,
		defaults: defaults,
		sessions: make(map[string]*Session),
	}
}

// Create spawns a new session. Zero-valued override fields keep the
// manager's defaults.
func (m *Manager) Create(ctx context.Context, override Config) (*Session, error) {
	cfg := m.defaults
	if override.Command != "" {
		cfg.Command = override.Command
		cfg.Args = override.Args
	}
	if override.WorkDir != "" {
		cfg.WorkDir = override.WorkDir
	}
	if override.UsePTY {
		cfg.UsePTY = true
	}
	if override.Cols > 0 {
		cfg.Cols = override.Cols
	}
	if override.Rows > 0 {
		cfg.Rows = override.Rows
	}

	s, err := NewSession(cfg, m.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.publish(ctx, bus.SubjectSessionStarted, s, map[string]interface{}{
		"session_id": s.ID,
		"shell":      s.Shell(),
	})

	// Reap the entry and surface the exit when the shell ends.
	go func() {
		<-s.Done()

		m.mu.Lock()
		delete(m.sessions, s.ID)
		m.mu.Unlock()

		m.publish(context.Background(), bus.SubjectSessionExited, s, map[string]interface{}{
			"session_id": s.ID,
			"exit_code":  s.ExitCode(),
		})
	}()

	return s, nil
}

// Get returns the session with the given ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// List returns all live sessions.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Stop tears down one session.
func (m *Manager) Stop(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	return s.Stop()
}

// StopAll tears down every live session, used on shutdown.
func (m *Manager) StopAll() {
	for _, s := range m.List() {
		if err := s.Stop(); err != nil {
			m.logger.Warn("failed to stop session",
				zap.String("session_id", s.ID), zap.Error(err))
		}
	}
}

func (m *Manager) publish(ctx context.Context, subject string, s *Session, data map[string]interface{}) {
	if m.bus == nil {
		return
	}
	ev := bus.NewEvent(subject, "session-manager", data)
	if err := m.bus.Publish(ctx, subject, ev); err != nil {
		m.logger.Warn("failed to publish session event",
			zap.String("subject", subject),
			zap.String("session_id", s.ID),
			zap.Error(err))
	}
}
