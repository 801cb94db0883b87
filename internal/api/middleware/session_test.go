package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decoyworks/honeypot/internal/config"
	"github.com/decoyworks/honeypot/internal/services"
	"github.com/decoyworks/honeypot/internal/session"
)

func newTestManager() *session.Manager {
	return session.NewManager(session.NewMemoryStore(time.Minute), session.NewSigner("test-secret"), time.Hour, false)
}

// cookieFor saves s and returns its session cookie.
func cookieFor(t *testing.T, m *session.Manager, s *session.Session) *http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	require.NoError(t, m.Save(t.Context(), w, s))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestLoadSession_ExistingAndNew(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newTestManager()

	router := gin.New()
	router.Use(LoadSession(m))
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"values": SessionValues(c), "new": GetSession(c).IsNew()})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.JSONEq(t, `{"values":null,"new":true}`, w.Body.String())

	s := session.New()
	s.CSRFToken = "tok"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookieFor(t, m, s))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.JSONEq(t, `{"values":{"csrf_token":"tok"},"new":false}`, w.Body.String())
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newTestManager()
	guard := services.NewAdminGuard(nil, config.DefaultAdminConfig(), time.Second)

	router := gin.New()
	router.Use(LoadSession(m))
	router.GET("/secure", RequireAdmin(guard, m), func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/secure", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	s := session.New()
	guard.Authenticate(s, "192.0.2.1")
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.AddCookie(cookieFor(t, m, s))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	idle := session.New()
	guard.Authenticate(idle, "192.0.2.1")
	idle.Touch(time.Now().Add(-2 * time.Hour))
	req = httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.AddCookie(cookieFor(t, m, idle))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCSRF(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newTestManager()

	router := gin.New()
	router.Use(LoadSession(m), CSRF())
	router.GET("/form", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.POST("/form", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	s := session.New()
	token, err := EnsureCSRFToken(s)
	require.NoError(t, err)
	again, err := EnsureCSRFToken(s)
	require.NoError(t, err)
	assert.Equal(t, token, again)
	cookie := cookieFor(t, m, s)

	tests := []struct {
		name   string
		method string
		token  string
		cookie bool
		want   int
	}{
		{"safe method passes", http.MethodGet, "", false, http.StatusOK},
		{"missing session", http.MethodPost, token, false, http.StatusForbidden},
		{"missing header", http.MethodPost, "", true, http.StatusForbidden},
		{"wrong token", http.MethodPost, "nope", true, http.StatusForbidden},
		{"matching token", http.MethodPost, token, true, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/form", nil)
			if tt.token != "" {
				req.Header.Set(CSRFHeader, tt.token)
			}
			if tt.cookie {
				req.AddCookie(cookie)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusForbidden {
				assert.Contains(t, w.Body.String(), "CSRF token validation failed")
			}
		})
	}
}
