package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/decoyworks/honeypot/internal/api/middleware"
	"github.com/decoyworks/honeypot/internal/config"
	"github.com/decoyworks/honeypot/internal/models"
	"github.com/decoyworks/honeypot/internal/services"
	"github.com/decoyworks/honeypot/internal/session"
)

const (
	testAdminKey = "s3cret-admin-key"
	firefoxUA    = "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0"
)

// openTestDB creates a SQLite in-memory DB unique per test.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

type testEnv struct {
	db         *gorm.DB
	router     *gin.Engine
	escalation *services.EscalationService
}

// newTestEnv mounts every handler the way the production router does.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := openTestDB(t)

	hp := config.DefaultHoneypotConfig()
	hp.StoreTimeout = time.Second
	adminCfg := config.DefaultAdminConfig()
	adminCfg.Password = testAdminKey

	scans := services.NewScanLogger(db, nil, hp, config.DefaultSignatures())
	scorer := services.NewThreatScorer(db, hp)
	escalation := services.NewEscalationService(db, hp, nil)
	honeypot := services.NewHoneypot(scans, services.NewRateLimiter(db, hp), scorer, escalation)
	guard := services.NewAdminGuard(db, adminCfg, hp.StoreTimeout)
	interactions := services.NewInteractionService(db, nil, hp.StoreTimeout)
	sessions := session.NewManager(session.NewMemoryStore(time.Minute), session.NewSigner("test-secret"), time.Hour, false)

	admin := NewAdminHandler(guard, sessions)
	analytics := NewAnalyticsHandler(services.NewAnalyticsService(db), scorer, escalation, interactions)
	decoy := NewDecoyHandler(honeypot)

	r := gin.New()
	r.Use(middleware.RequestID())

	api := r.Group("/honeypot", middleware.LoadSession(sessions))
	adminGroup := api.Group("/admin", middleware.CSRF())
	adminGroup.GET("/csrf-token", admin.CSRFToken)
	adminGroup.POST("/login", admin.Login)
	adminGroup.POST("/logout", admin.Logout)
	adminGroup.GET("/status", admin.Status)

	protected := api.Group("", middleware.RequireAdmin(guard, sessions), middleware.CSRF())
	protected.GET("/analytics", analytics.Summary)
	protected.GET("/clients/:fingerprint", analytics.Client)
	protected.GET("/interactions", analytics.Interactions)
	protected.GET("/blocklist", analytics.Blocklist)
	protected.DELETE("/blocklist/:key", analytics.Unblock)

	api.POST("/log-interaction", NewInteractionHandler(interactions).Log)

	r.NoRoute(middleware.MarkDecoy(), middleware.LoadSession(sessions), decoy.Handle)

	return &testEnv{db: db, router: r, escalation: escalation}
}

type call struct {
	method string
	path   string
	body   string
	ua     string
	cookie *http.Cookie
	csrf   string
}

func (e *testEnv) do(c call) *httptest.ResponseRecorder {
	var body *bytes.Reader
	if c.body != "" {
		body = bytes.NewReader([]byte(c.body))
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.ua != "" {
		req.Header.Set("User-Agent", c.ua)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	if c.csrf != "" {
		req.Header.Set(middleware.CSRFHeader, c.csrf)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatalf("response carries no %s cookie", session.CookieName)
	return nil
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// csrfSession starts a session and returns its cookie and token.
func (e *testEnv) csrfSession(t *testing.T) (*http.Cookie, string) {
	t.Helper()
	w := e.do(call{method: http.MethodGet, path: "/honeypot/admin/csrf-token"})
	require.Equal(t, http.StatusOK, w.Code)
	token, _ := decodeJSON(t, w)["csrf_token"].(string)
	require.NotEmpty(t, token)
	return sessionCookie(t, w), token
}

// login returns an authenticated session cookie and its CSRF token.
func (e *testEnv) login(t *testing.T) (*http.Cookie, string) {
	t.Helper()
	cookie, token := e.csrfSession(t)
	w := e.do(call{
		method: http.MethodPost,
		path:   "/honeypot/admin/login",
		body:   `{"adminKey":"` + testAdminKey + `"}`,
		cookie: cookie,
		csrf:   token,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return sessionCookie(t, w), token
}
