package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/decoyworks/honeypot/internal/services"
	"github.com/decoyworks/honeypot/internal/session"
)

const (
	sessionKey      = "session"
	sessionFoundKey = "sessionFound"

	// CSRFHeader carries the token issued by the csrf-token endpoint.
	CSRFHeader = "X-CSRF-Token"
)

// LoadSession attaches the cookie session (or a fresh one) to the context.
func LoadSession(m *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, found := m.Load(c.Request.Context(), c.Request)
		c.Set(sessionKey, s)
		c.Set(sessionFoundKey, found)
		c.Next()
	}
}

// GetSession returns the session set by LoadSession, or nil.
func GetSession(c *gin.Context) *session.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(*session.Session); ok {
			return s
		}
	}
	return nil
}

// SessionValues returns the contents of an existing session, for
// fingerprinting. Visitors without a session cookie yield nil.
func SessionValues(c *gin.Context) map[string]any {
	if !c.GetBool(sessionFoundKey) {
		return nil
	}
	return GetSession(c).Values()
}

// RequireAdmin admits only authenticated, non-idle admin sessions and
// persists the refreshed activity time.
func RequireAdmin(guard *services.AdminGuard, m *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := GetSession(c)
		if s == nil || !c.GetBool(sessionFoundKey) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		ok := guard.CheckSession(s)
		if err := m.Save(c.Request.Context(), c.Writer, s); err != nil {
			GetRequestLogger(c).WithError(err).Warn("failed to save session")
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		c.Next()
	}
}

// CSRF enforces the double-submit token on state-changing requests. The
// token lives in the session and must be echoed in the X-CSRF-Token header.
func CSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		s := GetSession(c)
		sent := c.GetHeader(CSRFHeader)
		if s == nil || s.CSRFToken == "" || sent == "" ||
			subtle.ConstantTimeCompare([]byte(s.CSRFToken), []byte(sent)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "CSRF token validation failed"})
			return
		}
		c.Next()
	}
}

// EnsureCSRFToken returns the session's CSRF token, creating one if needed.
func EnsureCSRFToken(s *session.Session) (string, error) {
	if s.CSRFToken != "" {
		return s.CSRFToken, nil
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s.CSRFToken = hex.EncodeToString(b)
	return s.CSRFToken, nil
}
