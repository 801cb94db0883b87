package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/decoyworks/honeypot/internal/logger"
)

// CookieName is the name of the session cookie.
const CookieName = "honeypot_session"

// Manager binds the cookie, the signer and the store together.
type Manager struct {
	store  Store
	signer *Signer
	ttl    time.Duration
	secure bool
}

// NewManager returns a manager whose sessions live for ttl after the last save.
func NewManager(store Store, signer *Signer, ttl time.Duration, secure bool) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{store: store, signer: signer, ttl: ttl, secure: secure}
}

// Load returns the session named by the request cookie, or a new empty
// session when the cookie is missing, invalid or expired. The second return
// reports whether an existing session was found.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return New(), false
	}
	id, err := m.signer.Parse(c.Value)
	if err != nil {
		return New(), false
	}
	s, err := m.store.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Component("session").WithError(err).Warn("session load failed")
		}
		return New(), false
	}
	return s, true
}

// Save persists s and writes the cookie.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if err := m.store.Save(ctx, s, m.ttl); err != nil {
		return err
	}
	token, err := m.signer.Sign(s.ID, m.ttl)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.isNew = false
	return nil
}

// Destroy deletes s and expires the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, s *Session) error {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return m.store.Delete(ctx, s.ID)
}
