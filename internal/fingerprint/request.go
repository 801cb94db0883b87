package fingerprint

import (
	"encoding/json"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// UnknownIP is the sentinel used when no client address can be determined.
const UnknownIP = "unknown_ip"

// maxBodyBytes bounds how much of a request body is captured.
const maxBodyBytes = 64 << 10

// RequestSummary is the typed view of an inbound request the pipeline works on.
// It is built once at the HTTP boundary; malformed inputs degrade to empty values.
type RequestSummary struct {
	Method     string
	Path       string
	Headers    http.Header
	Query      url.Values
	Form       url.Values
	JSON       any
	Cookies    map[string]string
	ClientIP   string
	PeerIP     string
	Session    map[string]any
	ReceivedAt time.Time
}

// Header returns the first value of the named header.
func (r RequestSummary) Header(name string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get(name)
}

// UserAgent returns the User-Agent header.
func (r RequestSummary) UserAgent() string {
	return r.Header("User-Agent")
}

// HasForwardedFor reports whether the request carried X-Forwarded-For.
func (r RequestSummary) HasForwardedFor() bool {
	return r.Header("X-Forwarded-For") != ""
}

// FromHTTPRequest builds a RequestSummary from r. session may be nil.
// The request body is consumed.
func FromHTTPRequest(r *http.Request, session map[string]any) RequestSummary {
	peer := peerIP(r.RemoteAddr)
	s := RequestSummary{
		Method:     r.Method,
		Path:       r.URL.Path,
		Headers:    r.Header.Clone(),
		Query:      r.URL.Query(),
		Cookies:    map[string]string{},
		ClientIP:   RealIP(r.Header.Get("X-Forwarded-For"), peer),
		PeerIP:     peer,
		Session:    session,
		ReceivedAt: time.Now().UTC(),
	}
	for _, c := range r.Cookies() {
		s.Cookies[c.Name] = c.Value
	}

	if r.Body == nil || r.Body == http.NoBody {
		return s
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil || len(body) == 0 {
		return s
	}

	switch mediaType {
	case "application/x-www-form-urlencoded":
		if form, err := url.ParseQuery(string(body)); err == nil {
			s.Form = form
		}
	case "application/json":
		var payload any
		if err := json.Unmarshal(body, &payload); err == nil {
			s.JSON = payload
		}
	}
	return s
}

// RealIP returns the first hop of a forwarded-for chain, else the peer
// address, else UnknownIP.
func RealIP(forwardedFor, peer string) string {
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if peer != "" {
		return peer
	}
	return UnknownIP
}

func peerIP(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
