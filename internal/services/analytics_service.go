package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/decoyworks/honeypot/internal/models"
)

// CountByKey is one row of a grouped count.
type CountByKey struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// ScanStats summarises scan events.
type ScanStats struct {
	TotalAttempts  int64              `json:"total_attempts"`
	UniqueIPs      int64              `json:"unique_ips"`
	UniqueClients  int64              `json:"unique_clients"`
	TopPaths       []CountByKey       `json:"top_paths"`
	TopIPs         []CountByKey       `json:"top_ips"`
	TopCategories  []CountByKey       `json:"top_categories"`
	RecentActivity []models.ScanEvent `json:"recent_activity"`
}

// Analytics is the operator dashboard payload.
type Analytics struct {
	ScanStats    ScanStats           `json:"scan_attempts_stats"`
	Watchlist    []models.WatchEntry `json:"watchlist_summary"`
	ActiveBlocks int64               `json:"active_blocks"`
	GeneratedAt  time.Time           `json:"generated_at"`
}

// AnalyticsService aggregates stored activity for operators.
type AnalyticsService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAnalyticsService returns an AnalyticsService.
func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{db: db, now: utcNow}
}

// Summary returns totals, top paths/ips/categories, the most recent events
// and the highest-severity watch entries.
func (s *AnalyticsService) Summary(ctx context.Context, topN, recentN int) (*Analytics, error) {
	if topN <= 0 {
		topN = 10
	}
	if recentN <= 0 {
		recentN = 20
	}
	db := s.db.WithContext(ctx)
	out := &Analytics{GeneratedAt: s.now()}
	stats := &out.ScanStats

	if err := db.Model(&models.ScanEvent{}).Count(&stats.TotalAttempts).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.ScanEvent{}).Distinct("ip").Count(&stats.UniqueIPs).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.ScanEvent{}).Distinct("fingerprint").Count(&stats.UniqueClients).Error; err != nil {
		return nil, err
	}

	var err error
	if stats.TopPaths, err = s.topBy(db, "path", topN); err != nil {
		return nil, err
	}
	if stats.TopIPs, err = s.topBy(db, "ip", topN); err != nil {
		return nil, err
	}
	if stats.TopCategories, err = s.topBy(db.Where("category <> ''"), "category", topN); err != nil {
		return nil, err
	}

	if err := db.Omit("headers", "cookies", "form", "body").
		Order("timestamp desc").
		Limit(recentN).
		Find(&stats.RecentActivity).Error; err != nil {
		return nil, err
	}

	if err := db.Order("severity_score desc").Limit(topN).Find(&out.Watchlist).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.BlockRecord{}).Where("block_until > ?", s.now()).Count(&out.ActiveBlocks).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *AnalyticsService) topBy(db *gorm.DB, column string, n int) ([]CountByKey, error) {
	var rows []CountByKey
	err := db.Model(&models.ScanEvent{}).
		Select(column + " AS `key`, COUNT(*) AS count").
		Group(column).
		Order("count desc").
		Limit(n).
		Scan(&rows).Error
	return rows, err
}

// ClientProfile is the watch entry of a fingerprint with its recent paths and score.
type ClientProfile struct {
	Entry models.WatchEntry `json:"entry"`
	Score ScoreBreakdown    `json:"score"`
}

// Profile returns the watch entry for fp with its recent paths.
func (s *AnalyticsService) Profile(ctx context.Context, scorer *ThreatScorer, fp string) (*ClientProfile, error) {
	var entry models.WatchEntry
	err := s.db.WithContext(ctx).
		Preload("RecentPaths", func(tx *gorm.DB) *gorm.DB { return tx.Order("id desc") }).
		Where("fingerprint = ?", fp).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	b, err := scorer.Breakdown(ctx, fp)
	if err != nil {
		return nil, err
	}
	return &ClientProfile{Entry: entry, Score: b}, nil
}
