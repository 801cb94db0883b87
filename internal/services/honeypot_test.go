package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decoyworks/honeypot/internal/config"
)

type pipeline struct {
	hp         *Honeypot
	escalation *EscalationService
	clock      *fixedClock
}

func newTestPipeline(t *testing.T) *pipeline {
	t.Helper()
	db := openTestDB(t)
	cfg := testHoneypotConfig()
	clock := newClock()

	scans := NewScanLogger(db, nil, cfg, config.DefaultSignatures())
	scans.now = clock.Now
	limiter := NewRateLimiter(db, cfg)
	limiter.now = clock.Now
	scorer := NewThreatScorer(db, cfg)
	scorer.now = clock.Now
	escalation := NewEscalationService(db, cfg, nil)
	escalation.now = clock.Now

	return &pipeline{
		hp:         NewHoneypot(scans, limiter, scorer, escalation),
		escalation: escalation,
		clock:      clock,
	}
}

func TestHoneypot_ServesDecoyUnderLimit(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		d := p.hp.Handle(ctx, scannerRequest("203.0.113.50", "/admin"))
		assert.Equal(t, ActionServeDecoy, d.Action)
		assert.Equal(t, http.StatusOK, d.StatusHint)
		assert.NotEmpty(t, d.Fingerprint)
	}
}

func TestHoneypot_RateLimitedBelowThreshold(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	req := scannerRequest("203.0.113.51", "/")

	var d Decision
	for i := 0; i < 5; i++ {
		d = p.hp.Handle(ctx, req)
	}
	// count 5 -> 10, severity 5 -> 15, last hour 10
	assert.Equal(t, ActionDeny, d.Action)
	assert.Equal(t, http.StatusTooManyRequests, d.StatusHint)
	assert.Equal(t, 35, d.ThreatScore)
	assert.Equal(t, time.Minute, d.RetryAfter)
	assert.Nil(t, d.Block)
	assert.False(t, p.escalation.IsBlocked(ctx, d.Fingerprint, "203.0.113.51"))
}

func TestHoneypot_EscalatesAboveThreshold(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	req := scannerRequest("203.0.113.52", "/nmap")
	req.Headers.Set("User-Agent", "sqlmap/1.7-dev (https://sqlmap.org)")

	var d Decision
	for i := 0; i < 5; i++ {
		d = p.hp.Handle(ctx, req)
	}
	// count 5 -> 10, severity capped at 50, last hour 10
	assert.Equal(t, ActionDeny, d.Action)
	assert.Equal(t, http.StatusForbidden, d.StatusHint)
	assert.Equal(t, 70, d.ThreatScore)
	require.NotNil(t, d.Block)
	assert.Equal(t, "medium", d.Block.Tier)
	assert.Equal(t, "Medium threat score (70), suspicious scanning activity.", d.Reason)
	assert.True(t, p.escalation.IsBlocked(ctx, d.Fingerprint, ""))

	// while blocked every request is denied without scoring
	p.clock.Advance(10 * time.Minute)
	d = p.hp.Handle(ctx, req)
	assert.Equal(t, ActionDeny, d.Action)
	assert.Equal(t, http.StatusForbidden, d.StatusHint)
	assert.Equal(t, "active block", d.Reason)

	// another client from the blocked address is denied too
	other := scannerRequest("203.0.113.52", "/")
	other.Headers.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0")
	d = p.hp.Handle(ctx, other)
	assert.Equal(t, http.StatusForbidden, d.StatusHint)

	p.clock.Advance(24 * time.Hour)
	d = p.hp.Handle(ctx, other)
	assert.Equal(t, ActionServeDecoy, d.Action)
}

func TestHoneypot_StorageFailureServesDecoy(t *testing.T) {
	db := openTestDB(t)
	cfg := testHoneypotConfig()
	hp := NewHoneypot(
		NewScanLogger(db, nil, cfg, config.DefaultSignatures()),
		NewRateLimiter(db, cfg),
		NewThreatScorer(db, cfg),
		NewEscalationService(db, cfg, nil),
	)
	breakDB(t, db)

	d := hp.Handle(context.Background(), scannerRequest("203.0.113.53", "/wp-admin"))
	assert.Equal(t, ActionServeDecoy, d.Action)
	assert.Equal(t, http.StatusOK, d.StatusHint)
}
