package middleware

import (
	"net/http"
	"strings"

	"github.com/decoyworks/honeypot/internal/session"
	"github.com/decoyworks/honeypot/internal/util"
)

const maxLogValue = 200

// Credentials and session material stay out of the application log. Scan
// records keep the raw headers as evidence.
var redactedHeaders = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"x-access-token":      true,
	"x-forwarded-for":     true,
	"x-csrf-token":        true,
}

// SanitizeHeaders flattens h into one log-safe value per header.
func SanitizeHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, vals := range h {
		if redactedHeaders[strings.ToLower(k)] {
			out[k] = "<redacted>"
			continue
		}
		out[k] = util.Truncate(util.SanitizeForLog(strings.Join(vals, ", ")), maxLogValue)
	}
	return out
}

// SanitizePath drops the query string and control characters from p.
func SanitizePath(p string) string {
	p, _, _ = strings.Cut(p, "?")
	return util.Truncate(util.SanitizeForLog(p), maxLogValue)
}

// hasSessionCookie reports whether the request carries an admin session
// cookie, without exposing its value.
func hasSessionCookie(r *http.Request) bool {
	_, err := r.Cookie(session.CookieName)
	return err == nil
}
