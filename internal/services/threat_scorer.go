package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/decoyworks/honeypot/internal/config"
	"github.com/decoyworks/honeypot/internal/logger"
	"github.com/decoyworks/honeypot/internal/models"
)

// ScoreBreakdown itemises a threat score.
type ScoreBreakdown struct {
	Frequency int `json:"frequency"`
	Severity  int `json:"severity"`
	Recency   int `json:"recency"`
	Diversity int `json:"diversity"`
	History   int `json:"history"`
	Total     int `json:"total"`
}

// ThreatScorer turns a fingerprint's watch-list state into a 0..100 score.
type ThreatScorer struct {
	db      *gorm.DB
	weights config.ScoringConfig
	timeout time.Duration
	now     func() time.Time
}

// NewThreatScorer returns a scorer using cfg.Scoring weights.
func NewThreatScorer(db *gorm.DB, cfg config.HoneypotConfig) *ThreatScorer {
	weights := cfg.Scoring
	if weights.Max == 0 {
		weights = config.DefaultScoringConfig()
	}
	return &ThreatScorer{db: db, weights: weights, timeout: cfg.StoreTimeout, now: utcNow}
}

// Score returns the threat score of fp. Unknown fingerprints and store
// failures score 0.
func (s *ThreatScorer) Score(ctx context.Context, fp string) int {
	b, err := s.Breakdown(ctx, fp)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Component("threat_scorer").WithError(err).WithField("fingerprint", fp).Warn("threat score unavailable")
		}
		return 0
	}
	return b.Total
}

// Breakdown returns the score components for fp. It returns
// gorm.ErrRecordNotFound when fp has no watch entry.
func (s *ThreatScorer) Breakdown(ctx context.Context, fp string) (ScoreBreakdown, error) {
	sctx, cancel := storeCtx(ctx, s.timeout)
	defer cancel()
	db := s.db.WithContext(sctx)
	w := s.weights

	var entry models.WatchEntry
	if err := db.Where("fingerprint = ?", fp).First(&entry).Error; err != nil {
		return ScoreBreakdown{}, err
	}

	var distinctPaths int64
	if err := db.Model(&models.WatchPath{}).Where("fingerprint = ?", fp).Distinct("path").Count(&distinctPaths).Error; err != nil {
		return ScoreBreakdown{}, err
	}

	var blocks int64
	if err := db.Model(&models.BlockRecord{}).Where("fingerprint = ?", fp).Count(&blocks).Error; err != nil {
		return ScoreBreakdown{}, err
	}

	b := ScoreBreakdown{
		Frequency: min(int(entry.Count)*w.CountWeight, w.CountCap),
		Severity:  min(int(entry.SeverityScore)*w.SeverityWeight, w.SeverityCap),
	}

	since := s.now().Sub(entry.LastSeen)
	switch {
	case since < time.Hour:
		b.Recency = w.RecentHourBonus
	case since < 24*time.Hour:
		b.Recency = w.RecentDayBonus
	}
	if distinctPaths > int64(w.DiversityThreshold) {
		b.Diversity = w.DiversityBonus
	}
	if blocks > 0 {
		b.History = w.BlockHistoryBonus
	}

	b.Total = min(b.Frequency+b.Severity+b.Recency+b.Diversity+b.History, w.Max)
	return b, nil
}
