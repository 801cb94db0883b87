package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decoyworks/honeypot/internal/models"
)

func TestAdminHandler_CSRFTokenIsStable(t *testing.T) {
	env := newTestEnv(t)
	cookie, token := env.csrfSession(t)

	w := env.do(call{method: http.MethodGet, path: "/honeypot/admin/csrf-token", cookie: cookie})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, token, decodeJSON(t, w)["csrf_token"])
}

func TestAdminHandler_LoginRequiresCSRF(t *testing.T) {
	env := newTestEnv(t)
	cookie, _ := env.csrfSession(t)

	w := env.do(call{
		method: http.MethodPost,
		path:   "/honeypot/admin/login",
		body:   `{"adminKey":"` + testAdminKey + `"}`,
		cookie: cookie,
		csrf:   "forged",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "CSRF token validation failed", decodeJSON(t, w)["error"])
}

func TestAdminHandler_LoginAndStatus(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(call{method: http.MethodGet, path: "/honeypot/admin/status"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	assert.Equal(t, false, body["authenticated"])
	assert.Equal(t, true, body["configured"])

	cookie, _ := env.login(t)
	w = env.do(call{method: http.MethodGet, path: "/honeypot/admin/status", cookie: cookie})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeJSON(t, w)["authenticated"])

	var audits []models.AuditLog
	require.NoError(t, env.db.Find(&audits).Error)
	require.Len(t, audits, 1)
	assert.True(t, audits[0].Success)
}

func TestAdminHandler_WrongKey(t *testing.T) {
	env := newTestEnv(t)
	cookie, token := env.csrfSession(t)

	w := env.do(call{
		method: http.MethodPost,
		path:   "/honeypot/admin/login",
		body:   `{"adminKey":"guess"}`,
		cookie: cookie,
		csrf:   token,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Invalid admin credentials", decodeJSON(t, w)["error"])
}

func TestAdminHandler_Lockout(t *testing.T) {
	env := newTestEnv(t)
	cookie, token := env.csrfSession(t)
	attempt := func(key string) int {
		w := env.do(call{
			method: http.MethodPost,
			path:   "/honeypot/admin/login",
			body:   `{"adminKey":"` + key + `"}`,
			cookie: cookie,
			csrf:   token,
		})
		if w.Code == http.StatusTooManyRequests {
			assert.Equal(t, "300", w.Header().Get("Retry-After"))
			assert.Equal(t, "Too many failed login attempts. Try again in 5 minutes.", decodeJSON(t, w)["error"])
		}
		return w.Code
	}

	for i := 0; i < 4; i++ {
		assert.Equal(t, http.StatusForbidden, attempt("wrong"))
	}
	assert.Equal(t, http.StatusTooManyRequests, attempt("wrong"))
	// the right key is refused while locked out
	assert.Equal(t, http.StatusTooManyRequests, attempt(testAdminKey))
}

func TestAdminHandler_MalformedBodyCountsAsFailure(t *testing.T) {
	env := newTestEnv(t)
	cookie, token := env.csrfSession(t)

	w := env.do(call{method: http.MethodPost, path: "/honeypot/admin/login", body: `{not json`, cookie: cookie, csrf: token})
	assert.Equal(t, http.StatusForbidden, w.Code)

	var attempt models.AdminLoginAttempt
	require.NoError(t, env.db.First(&attempt).Error)
	assert.Equal(t, 1, attempt.Attempts)
}

func TestAdminHandler_Logout(t *testing.T) {
	env := newTestEnv(t)
	cookie, token := env.login(t)

	w := env.do(call{method: http.MethodPost, path: "/honeypot/admin/logout", cookie: cookie, csrf: token})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(call{method: http.MethodGet, path: "/honeypot/analytics", cookie: cookie})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
