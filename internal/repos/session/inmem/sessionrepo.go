// Package inmem provides a session repository that holds the session data in-memory
package inmem

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/tbrandt/encore/internal/models"
	"github.com/tbrandt/encore/internal/repos"
)

const (
	// How long does a session last after the last update?
	expireMinutes = 60
)

// SessionRepo is a session repository that stores the session data in-memory
type SessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

// New creates a new session repository instance
func New() *SessionRepo {
	repo := &SessionRepo{
		sessions: map[string]*models.Session{},
	}
	// Purge expired sessions about once a minute
	go repo.purgeLoop()
	return repo
}

// newSessionID creates a random session token
func newSessionID() string {
	buf := make([]byte, 32)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}

func (r *SessionRepo) purgeLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		r.mu.Lock()
		for key, sess := range r.sessions {
			if sess.Expired() {
				delete(r.sessions, key)
			}
		}
		r.mu.Unlock()
	}
}

// CreateFor creates a new session for the given user ID
func (r *SessionRepo) CreateFor(userID uint) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess := models.Session{
		ID:        newSessionID(),
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Minute * expireMinutes),
	}
	r.sessions[sess.ID] = &sess
	ret := sess
	return &ret, nil
}

// GetByID returns the session associated with the given session ID and extends it's expiry if requested
func (r *SessionRepo) GetByID(sessionID string, extend bool) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[sessionID]
	if !ok {
		return nil, repos.ErrEntityNotExisting
	}
	if sess.Expired() {
		delete(r.sessions, sessionID)
		return nil, repos.ErrEntityNotExisting
	}
	if extend {
		sess.ExpiresAt = time.Now().Add(time.Minute * expireMinutes)
	}
	ret := *sess
	return &ret, nil
}

// Delete removes a session from the session storage
func (r *SessionRepo) Delete(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}
