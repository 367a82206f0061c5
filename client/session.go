package client

import (
	"sync"

	"visaconnect/internal/models"
)

// Session is the explicit per-user context constructed once at sign-in and
// passed to whichever components need it. It replaces ambient global state:
// reads and updates go through this object, and Clear ends the lifecycle.
type Session struct {
	mu         sync.RWMutex
	token      string
	userID     string
	profile    *models.User
	completion int
}

// NewSession starts a session from a bearer token and the identity's user
// id.
func NewSession(token, userID string) *Session {
	return &Session{token: token, userID: userID}
}

// Token returns the bearer credential.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// UserID returns the signed-in user id.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// SetProfile stores the fetched profile and its derived completion
// percentage.
func (s *Session) SetProfile(profile models.User, completionPercent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := profile
	s.profile = &p
	s.completion = completionPercent
}

// Profile returns the stored profile, or nil before the first fetch.
func (s *Session) Profile() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil
	}
	p := *s.profile
	return &p
}

// CompletionPercent returns the profile-completion percentage last fetched.
func (s *Session) CompletionPercent() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completion
}

// Clear ends the session. A cleared session holds no credential and no
// profile.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.userID = ""
	s.profile = nil
	s.completion = 0
}
