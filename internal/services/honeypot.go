package services

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/decoyworks/honeypot/internal/fingerprint"
	"github.com/decoyworks/honeypot/internal/logger"
	"github.com/decoyworks/honeypot/internal/metrics"
	"github.com/decoyworks/honeypot/internal/util"
)

// Action is what the decoy layer should do with a request.
type Action string

const (
	ActionServeDecoy Action = "SERVE_DECOY"
	ActionDeny       Action = "DENY"
)

// Decision is the pipeline verdict for one request.
type Decision struct {
	Action      Action
	StatusHint  int
	Fingerprint string
	ThreatScore int
	Reason      string
	RetryAfter  time.Duration
	Block       *BlockDecision
}

// Honeypot wires the scan logger, rate limiter, scorer and escalation
// engine into one decision per request.
type Honeypot struct {
	scans      *ScanLogger
	limiter    *RateLimiter
	scorer     *ThreatScorer
	escalation *EscalationService
}

// NewHoneypot returns the decision pipeline.
func NewHoneypot(scans *ScanLogger, limiter *RateLimiter, scorer *ThreatScorer, escalation *EscalationService) *Honeypot {
	return &Honeypot{scans: scans, limiter: limiter, scorer: scorer, escalation: escalation}
}

// Handle logs req and decides how to answer it. Storage failures degrade to
// serving the decoy; Handle never fails.
func (h *Honeypot) Handle(ctx context.Context, req fingerprint.RequestSummary) Decision {
	start := time.Now()
	fp, ok := h.scans.Log(ctx, req)
	d := Decision{Action: ActionServeDecoy, StatusHint: http.StatusOK, Fingerprint: fp}

	if ok {
		d = h.decide(ctx, req, fp)
	}

	if d.Action == ActionDeny {
		metrics.IncDenied(strconv.Itoa(d.StatusHint))
	}
	logger.Component("honeypot").WithFields(logrus.Fields{
		"method":      req.Method,
		"path":        util.SanitizeForLog(req.Path),
		"ip":          util.SanitizeForLog(req.ClientIP),
		"fingerprint": fp,
		"action":      d.Action,
		"status":      d.StatusHint,
		"score":       d.ThreatScore,
		"logged":      ok,
		"latency":     time.Since(start).String(),
	}).Info("honeypot request")
	return d
}

func (h *Honeypot) decide(ctx context.Context, req fingerprint.RequestSummary, fp string) Decision {
	d := Decision{Action: ActionServeDecoy, StatusHint: http.StatusOK, Fingerprint: fp}

	if h.escalation.IsBlocked(ctx, fp, req.ClientIP) {
		d.Action = ActionDeny
		d.StatusHint = http.StatusForbidden
		d.Reason = "active block"
		return d
	}

	if !h.limiter.IsRateLimited(ctx, fp) {
		return d
	}
	metrics.IncRateLimited()

	d.ThreatScore = h.scorer.Score(ctx, fp)
	d.Action = ActionDeny
	if d.ThreatScore >= h.escalation.LowestThreshold() {
		block := h.escalation.Escalate(ctx, fp, d.ThreatScore, req.ClientIP)
		d.Block = &block
		d.StatusHint = http.StatusForbidden
		d.Reason = block.Reason
		return d
	}

	d.StatusHint = http.StatusTooManyRequests
	d.RetryAfter = h.limiter.Window()
	d.Reason = "rate limited"
	return d
}
