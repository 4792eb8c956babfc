// Package session keeps server-side sessions in Redis. A session carries the
// identity gateway grant of the signed-in user and queued flash messages.
package session

import (
	"github.com/google/uuid"

	"taskweb/domain"
)

// Flash levels.
const (
	LevelSuccess = "success"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Flash is a one-time message shown on the next rendered page.
type Flash struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Session is the server-side state of one browser session.
type Session struct {
	ID          string           `json:"-"`
	AccessToken string           `json:"accessToken,omitempty"`
	User        *domain.Identity `json:"user,omitempty"`
	Flashes     []Flash          `json:"flashes,omitempty"`

	persisted bool
	dirty     bool
	stale     string
}

func newSession() *Session {
	return &Session{ID: uuid.NewString()}
}

// Authenticated reports whether an access token is present.
func (s *Session) Authenticated() bool {
	return s != nil && s.AccessToken != ""
}

// Email returns the email of the stored identity or "".
func (s *Session) Email() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.Email
}

// Principal copies the session identity for a service call.
func (s *Session) Principal() domain.Principal {
	if !s.Authenticated() || s.User == nil {
		return domain.Principal{}
	}
	return domain.Principal{AccessToken: s.AccessToken, User: *s.User}
}

// SignIn stores the grant and rotates the session id.
func (s *Session) SignIn(accessToken string, user domain.Identity) {
	s.rotate()
	s.AccessToken = accessToken
	s.User = &user
	s.dirty = true
}

// Flush drops all session data, including pending flashes, and rotates the id.
func (s *Session) Flush() {
	s.rotate()
	s.AccessToken = ""
	s.User = nil
	s.Flashes = nil
	s.dirty = true
}

func (s *Session) rotate() {
	if s.persisted && s.stale == "" {
		s.stale = s.ID
	}
	s.ID = uuid.NewString()
	s.persisted = false
}

// AddFlash queues a message for the next rendered page.
func (s *Session) AddFlash(level, message string) {
	s.Flashes = append(s.Flashes, Flash{Level: level, Message: message})
	s.dirty = true
}

// PopFlashes returns and clears the queued messages.
func (s *Session) PopFlashes() []Flash {
	if len(s.Flashes) == 0 {
		return nil
	}
	out := s.Flashes
	s.Flashes = nil
	s.dirty = true
	return out
}

// Empty reports whether there is nothing worth persisting.
func (s *Session) Empty() bool {
	return s.AccessToken == "" && s.User == nil && len(s.Flashes) == 0
}

// Persisted reports whether the session currently exists in the store under ID.
func (s *Session) Persisted() bool {
	return s.persisted
}

// Modified reports whether the session changed since it was loaded or saved.
func (s *Session) Modified() bool {
	return s.dirty || s.stale != ""
}
