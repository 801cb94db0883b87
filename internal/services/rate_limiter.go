package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/decoyworks/honeypot/internal/config"
	"github.com/decoyworks/honeypot/internal/logger"
	"github.com/decoyworks/honeypot/internal/models"
)

// RateLimiter decides whether a fingerprint exceeded its request budget by
// counting its recent scan events. Concurrent requests may both pass before
// either is counted; admission is best-effort.
type RateLimiter struct {
	db      *gorm.DB
	limit   int
	window  time.Duration
	timeout time.Duration
	now     func() time.Time
}

// NewRateLimiter returns a limiter using the configured limit and period.
func NewRateLimiter(db *gorm.DB, cfg config.HoneypotConfig) *RateLimiter {
	return &RateLimiter{
		db:      db,
		limit:   cfg.RateLimit,
		window:  cfg.RatePeriod,
		timeout: cfg.StoreTimeout,
		now:     utcNow,
	}
}

// Window returns the counting window, also used as the Retry-After hint.
func (r *RateLimiter) Window() time.Duration { return r.window }

// IsRateLimited reports whether fp logged at least limit events within the
// window. Store failures report false.
func (r *RateLimiter) IsRateLimited(ctx context.Context, fp string) bool {
	count, err := r.RecentCount(ctx, fp)
	if err != nil {
		logger.Component("rate_limiter").WithError(err).WithField("fingerprint", fp).Warn("rate limit check failed")
		return false
	}
	return count >= int64(r.limit)
}

// RecentCount returns the number of events fp logged within the window.
func (r *RateLimiter) RecentCount(ctx context.Context, fp string) (int64, error) {
	sctx, cancel := storeCtx(ctx, r.timeout)
	defer cancel()

	var count int64
	err := r.db.WithContext(sctx).
		Model(&models.ScanEvent{}).
		Where("fingerprint = ? AND timestamp >= ?", fp, r.now().Add(-r.window)).
		Count(&count).Error
	return count, err
}
