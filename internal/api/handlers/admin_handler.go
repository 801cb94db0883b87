package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/decoyworks/honeypot/internal/api/middleware"
	"github.com/decoyworks/honeypot/internal/services"
	"github.com/decoyworks/honeypot/internal/session"
)

type AdminHandler struct {
	guard    *services.AdminGuard
	sessions *session.Manager
}

func NewAdminHandler(guard *services.AdminGuard, sessions *session.Manager) *AdminHandler {
	return &AdminHandler{guard: guard, sessions: sessions}
}

type adminLoginRequest struct {
	AdminKey string `json:"adminKey"`
}

// CSRFToken issues the double-submit token bound to the caller's session.
func (h *AdminHandler) CSRFToken(c *gin.Context) {
	s := middleware.GetSession(c)
	token, err := middleware.EnsureCSRFToken(s)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue CSRF token"})
		return
	}
	if err := h.sessions.Save(c.Request.Context(), c.Writer, s); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue CSRF token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"csrf_token": token})
}

// Login checks the admin key with per-IP lockout.
func (h *AdminHandler) Login(c *gin.Context) {
	var body adminLoginRequest
	// A malformed body is an empty key: it still counts as a failed attempt.
	_ = c.ShouldBindJSON(&body)

	ip := c.ClientIP()
	res := h.guard.CheckLogin(c.Request.Context(), ip, body.AdminKey, middleware.GetRequestID(c))

	switch res.Outcome {
	case services.LoginSuccess:
		s := middleware.GetSession(c)
		h.guard.Authenticate(s, ip)
		if err := h.sessions.Save(c.Request.Context(), c.Writer, s); err != nil {
			middleware.GetRequestLogger(c).WithError(err).Error("failed to save admin session")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	case services.LoginLocked:
		c.Header("Retry-After", fmt.Sprint(res.RetryAfterMinutes*60))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Too many failed login attempts. Try again in %d minutes.", res.RetryAfterMinutes),
		})
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid admin credentials"})
	}
}

// Logout drops the admin flags and the session.
func (h *AdminHandler) Logout(c *gin.Context) {
	s := middleware.GetSession(c)
	h.guard.Logout(s)
	if err := h.sessions.Destroy(c.Request.Context(), c.Writer, s); err != nil {
		middleware.GetRequestLogger(c).WithError(err).Warn("failed to delete session")
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Status reports whether the caller holds an active admin session.
func (h *AdminHandler) Status(c *gin.Context) {
	s := middleware.GetSession(c)
	authenticated := h.guard.CheckSession(s)
	if !s.IsNew() {
		if err := h.sessions.Save(c.Request.Context(), c.Writer, s); err != nil {
			middleware.GetRequestLogger(c).WithError(err).Warn("failed to save session")
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": authenticated,
		"configured":    h.guard.Configured(),
	})
}
