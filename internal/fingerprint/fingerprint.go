// Package fingerprint derives a stable client identifier from request
// attributes so clients can be tracked without cookies.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/decoyworks/honeypot/internal/util"
)

const (
	unknownAgent     = "unknown_agent"
	userAgentLimit   = 100
	acceptLimit      = 50
	extraHeaderLimit = 20
	sessionHashLen   = 12
)

// extraHeaders contribute "name:value" factors when present, in this order.
var extraHeaders = []string{"X-Requested-With", "DNT", "Referer", "Origin"}

// Compute returns the hex SHA-256 of the request's identifying factors.
// It has no side effects.
func Compute(r RequestSummary) string {
	return hash(Factors(r))
}

// Factors returns the non-empty identifying factors of r in hashing order.
func Factors(r RequestSummary) []string {
	ip := r.ClientIP
	if ip == "" {
		ip = UnknownIP
	}

	ua := util.Truncate(r.UserAgent(), userAgentLimit)
	if ua == "" {
		ua = unknownAgent
	}

	factors := []string{
		ip,
		ua,
		util.Truncate(r.Header("Accept")+r.Header("Accept-Language")+r.Header("Accept-Encoding"), acceptLimit),
		r.Header("Connection"),
	}

	for _, name := range extraHeaders {
		if v := r.Header(name); v != "" {
			factors = append(factors, name+":"+util.Truncate(v, extraHeaderLimit))
		}
	}

	if len(r.Session) > 0 {
		if digest := sessionDigest(r.Session); digest != "" {
			factors = append(factors, digest)
		}
	}

	out := factors[:0]
	for _, f := range factors {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// sessionDigest hashes the canonical JSON of the session. encoding/json sorts
// map keys, so equal contents give equal digests.
func sessionDigest(session map[string]any) string {
	raw, err := json.Marshal(session)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:sessionHashLen]
}

func hash(factors []string) string {
	sum := sha256.Sum256([]byte(strings.Join(factors, "|")))
	return hex.EncodeToString(sum[:])
}
