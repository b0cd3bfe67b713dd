// Package authsession implements the Session Manager (spec §4.5): an
// in-memory registry of live authenticated connections, TTL sweeping, and
// bulk invalidation by token. Grounded on the teacher's SessionManager
// concurrency shape (internal/session/session.go: RWMutex-guarded map,
// atomic id counter, periodic sweep ticker) — the domain here is an
// authenticated-connection record, not a PTY session, so the type itself is
// new, but the concurrency idiom is the same.
package authsession

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Session is a live, authenticated connection tracked for TTL and bulk
// invalidation (spec §3).
type Session struct {
	SessionID    string    `json:"sessionId"`
	Token        string    `json:"-"` // owning combined token or device id; never serialized
	UserAgent    string    `json:"userAgent"`
	StartedAt    time.Time `json:"startedAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// RedactedSession is the externally-visible projection of Session returned
// by ListAll: no owning token.
type RedactedSession struct {
	SessionID string `json:"sessionId"`
	UserAgent string `json:"userAgent"`
	StartedAt string `json:"startedAt"`
	Age       string `json:"age"`
}

// Manager owns the Session map.
type Manager struct {
	mu            sync.RWMutex
	sessions      map[string]*Session
	ttl           time.Duration
	sweepInterval time.Duration
}

// New builds a Session Manager with the given TTL and sweep period.
func New(ttl, sweepInterval time.Duration) *Manager {
	return &Manager{
		sessions:      make(map[string]*Session),
		ttl:           ttl,
		sweepInterval: sweepInterval,
	}
}

// Create registers a new session for tokenOrDeviceID.
func (m *Manager) Create(tokenOrDeviceID, userAgent string) *Session {
	now := time.Now().UTC()
	s := &Session{
		SessionID:    newSessionID(),
		Token:        tokenOrDeviceID,
		UserAgent:    userAgent,
		StartedAt:    now,
		LastActivity: now,
	}
	m.mu.Lock()
	m.sessions[s.SessionID] = s
	m.mu.Unlock()
	return s
}

// UpdateActivity bumps last-activity for id, if it exists.
func (m *Manager) UpdateActivity(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.LastActivity = time.Now().UTC()
	}
}

// End removes a session by id.
func (m *Manager) End(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// EndSessionsForToken ends every session whose owning token equals token —
// used both by passphrase rotation (bulk-invalidate) and, per the resolved
// Open Question in spec §9, by device-token revocation.
func (m *Manager) EndSessionsForToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.Token == token {
			delete(m.sessions, id)
		}
	}
}

// ActiveCount returns the number of live sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ListAll returns redacted entries for every live session.
func (m *Manager) ListAll() []RedactedSession {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RedactedSession, 0, len(m.sessions))
	now := time.Now().UTC()
	for _, s := range m.sessions {
		out = append(out, RedactedSession{
			SessionID: s.SessionID,
			UserAgent: s.UserAgent,
			StartedAt: s.StartedAt.Format(time.RFC3339),
			Age:       humanize.RelTime(s.StartedAt, now, "ago", ""),
		})
	}
	return out
}

// Sweep deletes sessions with now - last_activity > TTL.
func (m *Manager) Sweep() {
	cutoff := time.Now().UTC().Add(-m.ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.LastActivity.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
}

// Run starts the periodic sweeper. It blocks until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
			slog.Debug("authsession: swept expired sessions", "active", m.ActiveCount())
		}
	}
}

func newSessionID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	return hex.EncodeToString(buf)
}
