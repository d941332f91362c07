package agent

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"agentgate/internal/domain"
)

// Backend describes the declared capabilities of one connecting backend.
type Backend struct {
	ID               string
	DeclaredTools    []string
	ExtendedProtocol bool
}

// Manager owns the live sessions. Sessions are cheap: they share the tool
// registry and audit sink and differ only in identity and capability set.
type Manager struct {
	registry    ToolRegistry
	auditLogger domain.AuditLogger
	auditLog    bool
	logger      *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(registry ToolRegistry, auditLogger domain.AuditLogger, auditLog bool, logger *slog.Logger) *Manager {
	return &Manager{
		registry:    registry,
		auditLogger: auditLogger,
		auditLog:    auditLog,
		logger:      logger,
		sessions:    make(map[string]*Session),
	}
}

// Open starts a session for one backend and returns it.
func (m *Manager) Open(backend Backend) *Session {
	s := &Session{
		ID:          uuid.NewString(),
		caps:        NewCapabilitySet(backend.DeclaredTools, backend.ExtendedProtocol),
		registry:    m.registry,
		auditLogger: m.auditLogger,
		auditLog:    m.auditLog,
		logger:      m.logger,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info("session opened",
		"session", s.ID,
		"backend", backend.ID,
		"extended", backend.ExtendedProtocol,
	)
	return s
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("unknown session: %s", id)
	}
	delete(m.sessions, id)
	m.logger.Info("session closed", "session", id)
	return nil
}
