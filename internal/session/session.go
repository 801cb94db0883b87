// Package session keeps admin session state server-side. The browser only
// holds a signed token naming the session.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a session id has no stored state.
var ErrNotFound = errors.New("session not found")

// Session is the server-side state of one browser session.
type Session struct {
	ID            string `json:"-"`
	Authenticated bool   `json:"admin_authenticated,omitempty"`
	LastActive    int64  `json:"admin_last_active,omitempty"`
	LoginIP       string `json:"admin_login_ip,omitempty"`
	CSRFToken     string `json:"csrf_token,omitempty"`

	isNew bool
}

// New returns an empty session with a fresh id.
func New() *Session {
	return &Session{ID: uuid.New().String(), isNew: true}
}

// IsNew reports whether the session was created during this request.
func (s *Session) IsNew() bool { return s.isNew }

// LastActiveTime returns LastActive as a time.
func (s *Session) LastActiveTime() time.Time {
	if s.LastActive == 0 {
		return time.Time{}
	}
	return time.Unix(s.LastActive, 0).UTC()
}

// Touch records t as the last activity.
func (s *Session) Touch(t time.Time) { s.LastActive = t.Unix() }

// ClearAuth drops the authentication flags, leaving other state intact.
func (s *Session) ClearAuth() {
	s.Authenticated = false
	s.LastActive = 0
	s.LoginIP = ""
}

// Values returns the session contents as a generic map, for fingerprinting.
// An empty session yields nil.
func (s *Session) Values() map[string]any {
	if s == nil {
		return nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil || len(out) == 0 {
		return nil
	}
	return out
}

// Store persists sessions by id.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

func encode(s *Session) (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decode(id, raw string) (*Session, error) {
	s := &Session{}
	if err := json.Unmarshal([]byte(raw), s); err != nil {
		return nil, err
	}
	s.ID = id
	return s, nil
}
