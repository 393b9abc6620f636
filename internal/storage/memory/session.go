package memory

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/shieldops/backend/internal/models"
	"github.com/shieldops/backend/internal/storage"
)

// SessionManager is an in-memory SessionStore. It mirrors the postgres
// implementation's semantics (single active session per user, lazy expiry,
// last-rotate-wins) and is used by unit tests and local development.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]models.Session),
	}
}

var _ storage.SessionStore = (*SessionManager)(nil)

func (m *SessionManager) CreateSession(_ context.Context, session models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.sessions {
		if s.UserID == session.UserID && s.IsActive {
			s.IsActive = false
			m.sessions[id] = s
		}
	}
	m.sessions[session.SessionID] = session
	return nil
}

func (m *SessionManager) GetSession(_ context.Context, sessionID string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, storage.ErrSessionInvalid
	}
	return &s, nil
}

func (m *SessionManager) ValidateAndTouch(_ context.Context, sessionID, fingerprint string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok || !s.IsActive {
		return nil, storage.ErrSessionInvalid
	}
	if !s.ExpiresAt.After(time.Now()) {
		s.IsActive = false
		m.sessions[sessionID] = s
		return nil, storage.ErrSessionExpired
	}
	if subtle.ConstantTimeCompare([]byte(s.RefreshFingerprint), []byte(fingerprint)) != 1 {
		return nil, storage.ErrRefreshMismatch
	}

	s.LastActivityAt = time.Now()
	m.sessions[sessionID] = s
	return &s, nil
}

func (m *SessionManager) RotateAccessToken(_ context.Context, sessionID, accessTokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok || !s.IsActive {
		return nil
	}
	s.ActiveAccessTokenID = accessTokenID
	m.sessions[sessionID] = s
	return nil
}

func (m *SessionManager) Deactivate(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	s.IsActive = false
	m.sessions[sessionID] = s
	return nil
}
