// Package session keeps the server-side login state of a browser. Sessions are
// typed structs serialized as JSON into a Store (Redis in production) and
// referenced by an opaque id in a cookie.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kerm1977/plantilla1/internal/model"
	"github.com/kerm1977/plantilla1/internal/policy"
)

const (
	DefaultTheme = "light"
	DefaultLang  = "es"
)

// ErrNotFound is returned by a Store for unknown or expired ids.
var ErrNotFound = errors.New("session not found")

// Flash categories used by handlers.
const (
	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashWarning = "warning"
	FlashDanger  = "danger"
)

type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Session is the typed session context.
type Session struct {
	ID        string     `json:"-"`
	LoggedIn  bool       `json:"logged_in"`
	UserID    uuid.UUID  `json:"user_id"`
	Username  string     `json:"username"`
	Role      model.Role `json:"role"`
	Theme     string     `json:"theme"`
	Lang      string     `json:"lang"`
	Remember  bool       `json:"remember"`
	Flashes   []Flash    `json:"flashes,omitempty"`
	ExpiresAt time.Time  `json:"expires_at"`

	// dirty marks changes that must be written back at the end of the request.
	dirty bool
}

func newSession(lang string) *Session {
	return &Session{ID: uuid.NewString(), Theme: DefaultTheme, Lang: lang}
}

// Subject converts the session into the caller seen by the access policy.
func (s *Session) Subject() policy.Subject {
	if s == nil || !s.LoggedIn {
		return policy.Anonymous
	}
	return policy.Subject{Authenticated: true, Role: s.Role, UserID: s.UserID}
}

// Store persists sessions by id.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}
