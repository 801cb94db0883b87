package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecoyHandler_RendersByPath(t *testing.T) {
	tests := []struct {
		path       string
		wantStatus int
		wantServer string
		wantBody   string
	}{
		{"/wp-login.php", http.StatusOK, "Apache", "WordPress"},
		{"/admin", http.StatusOK, "nginx/1.20.1", "<form"},
		{"/user/login", http.StatusOK, "Apache/2.4.41 (Ubuntu)", "<form"},
		{"/shell.php", http.StatusForbidden, "Apache/2.4.41 (Ubuntu)", "Access denied"},
		{"/backup.sql", http.StatusNotFound, "Apache/2.4.41 (Ubuntu)", "Not Found"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.do(call{method: http.MethodGet, path: tt.path, ua: firefoxUA})

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantServer, w.Header().Get("Server"))
			assert.Contains(t, w.Body.String(), tt.wantBody)
			assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		})
	}
}

func TestDecoyHandler_WordPressPoweredBy(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(call{method: http.MethodGet, path: "/wp-admin", ua: firefoxUA})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PHP/7.4.3", w.Header().Get("X-Powered-By"))
}

func TestDecoyHandler_RateLimited(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 4; i++ {
		w := env.do(call{method: http.MethodGet, path: "/", ua: firefoxUA})
		assert.Equal(t, http.StatusNotFound, w.Code)
	}
	w := env.do(call{method: http.MethodGet, path: "/", ua: firefoxUA})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, "Apache/2.4.41 (Ubuntu)", w.Header().Get("Server"))
	assert.Contains(t, w.Body.String(), "Too Many Requests")
}

func TestDecoyHandler_BlocksScanner(t *testing.T) {
	env := newTestEnv(t)
	const sqlmap = "sqlmap/1.7-dev (https://sqlmap.org)"

	var code int
	for i := 0; i < 5; i++ {
		code = env.do(call{method: http.MethodGet, path: "/nmap", ua: sqlmap}).Code
	}
	assert.Equal(t, http.StatusForbidden, code)

	// the block covers the address too, so a browser from there is denied
	w := env.do(call{method: http.MethodGet, path: "/wp-login.php", ua: firefoxUA})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "nginx/1.18.0 (Ubuntu)", w.Header().Get("Server"))
	assert.Contains(t, w.Body.String(), "Access Denied")
}

func TestDecoyHandler_PostBody(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(call{method: http.MethodPost, path: "/wp-login.php", ua: firefoxUA, body: `{"log":"admin","pwd":"admin"}`})

	assert.Equal(t, http.StatusOK, w.Code)

	var count int64
	env.db.Table("scan_attempts").Where("method = ?", http.MethodPost).Count(&count)
	assert.Equal(t, int64(1), count)
}
