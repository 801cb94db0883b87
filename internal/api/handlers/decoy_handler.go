package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/decoyworks/honeypot/internal/api/middleware"
	"github.com/decoyworks/honeypot/internal/fingerprint"
	"github.com/decoyworks/honeypot/internal/services"
)

// DecoyPaths are the scanner targets served by dedicated routes. Anything
// else reaches the same handler through NoRoute.
var DecoyPaths = []string{
	"/wp-admin",
	"/wp-login.php",
	"/wordpress/wp-admin",
	"/xmlrpc.php",
	"/admin",
	"/administrator",
	"/admin/login",
	"/admin/dashboard",
	"/adminpanel",
	"/phpmyadmin",
	"/pma",
	"/mysql",
	"/db/phpmyadmin",
	"/cpanel",
	"/cPanel",
	"/cp",
	"/ecommerce",
	"/shop/admin",
	"/store/admin",
	"/woocommerce/admin",
	"/typo3",
	"/joomla/administrator",
	"/drupal/admin",
	"/craft/admin",
	"/cms/admin",
	"/forum/admin",
	"/phpbb/admin",
	"/vbulletin/admincp",
	"/xenforo/admin",
	"/community/admin",
	"/.env",
	"/.git/config",
	"/config.php",
	"/server-status",
	"/actuator/env",
	"/shell.php",
	"/backup.sql",
}

const (
	loginPage     = "<html><head><title>Login</title></head><body><form method='post'><input type='text' name='username'><input type='password' name='password'><input type='submit' value='Login'></form></body></html>"
	wordpressPage = "<html><head><title>Log In &lsaquo; WordPress</title></head><body class='login'><form name='loginform' id='loginform' action='/wp-login.php' method='post'><input type='text' name='log' id='user_login'><input type='password' name='pwd' id='user_pass'><input type='submit' name='wp-submit' value='Log In'></form></body></html>"
	phpDenial     = "<?php // Access denied ?>"
	notFoundPage  = "<html><head><title>Not Found</title></head><body><h1>Not Found</h1><p>The requested URL was not found on this server.</p></body></html>"
	deniedPage    = "<html><body><h1>Access Denied</h1></body></html>"
	tooManyPage   = "<html><body><h1>Too Many Requests</h1></body></html>"
	htmlType      = "text/html; charset=utf-8"
)

// DecoyHandler answers scanner traffic through the honeypot pipeline.
type DecoyHandler struct {
	honeypot *services.Honeypot
}

func NewDecoyHandler(hp *services.Honeypot) *DecoyHandler {
	return &DecoyHandler{honeypot: hp}
}

// Handle runs the pipeline and renders a decoy or a denial.
func (h *DecoyHandler) Handle(c *gin.Context) {
	req := fingerprint.FromHTTPRequest(c.Request, middleware.SessionValues(c))
	d := h.honeypot.Handle(c.Request.Context(), req)

	if d.Action == services.ActionDeny {
		if d.StatusHint == http.StatusTooManyRequests {
			c.Header("Server", "Apache/2.4.41 (Ubuntu)")
			c.Header("Retry-After", strconv.Itoa(int(d.RetryAfter.Seconds())))
			c.Data(http.StatusTooManyRequests, htmlType, []byte(tooManyPage))
			return
		}
		c.Header("Server", "nginx/1.18.0 (Ubuntu)")
		c.Data(http.StatusForbidden, htmlType, []byte(deniedPage))
		return
	}

	status, body := renderDecoy(req.Path)
	setDecoyHeaders(c, req.Path)
	c.Data(status, htmlType, []byte(body))
}

// NotFound renders the generic 404 decoy. Used when a decoy request panics.
func NotFound(c *gin.Context) {
	c.Header("Server", "Apache/2.4.41 (Ubuntu)")
	c.Data(http.StatusNotFound, htmlType, []byte(notFoundPage))
}

func renderDecoy(path string) (int, string) {
	p := strings.ToLower(path)
	switch {
	case strings.Contains(p, "wp-"):
		return http.StatusOK, wordpressPage
	case strings.Contains(p, "login"), strings.Contains(p, "admin"):
		return http.StatusOK, loginPage
	case strings.Contains(p, ".php"):
		return http.StatusForbidden, phpDenial
	default:
		return http.StatusNotFound, notFoundPage
	}
}

func setDecoyHeaders(c *gin.Context, path string) {
	switch {
	case strings.Contains(path, "wp-"):
		c.Header("Server", "Apache")
		c.Header("X-Powered-By", "PHP/7.4.3")
	case strings.Contains(path, "admin"):
		c.Header("Server", "nginx/1.20.1")
	default:
		c.Header("Server", "Apache/2.4.41 (Ubuntu)")
	}
}
