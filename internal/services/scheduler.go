package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/decoyworks/honeypot/internal/geoip"
	"github.com/decoyworks/honeypot/internal/logger"
	"github.com/decoyworks/honeypot/internal/metrics"
	"github.com/decoyworks/honeypot/internal/models"
)

const (
	activeBlocksSpec   = "@every 1m"
	loginPurgeSpec     = "@hourly"
	loginAttemptMaxAge = 7 * 24 * time.Hour
	jobTimeout         = 2 * time.Minute
)

// Scheduler runs periodic maintenance: proxy list refresh, the active-block
// gauge and purging of stale admin login attempts.
type Scheduler struct {
	Cron       *cron.Cron
	db         *gorm.DB
	escalation *EscalationService
	proxies    *geoip.ProxyDetector
	now        func() time.Time
}

// NewScheduler registers the maintenance jobs. proxies may be nil; the
// refresh job is only added when a schedule is given. Call Start to run them.
func NewScheduler(db *gorm.DB, escalation *EscalationService, proxies *geoip.ProxyDetector, proxyRefreshSpec string) (*Scheduler, error) {
	s := &Scheduler{
		Cron:       cron.New(),
		db:         db,
		escalation: escalation,
		proxies:    proxies,
		now:        utcNow,
	}

	if _, err := s.Cron.AddFunc(activeBlocksSpec, s.RefreshActiveBlocks); err != nil {
		return nil, err
	}
	if _, err := s.Cron.AddFunc(loginPurgeSpec, func() { _, _ = s.PurgeLoginAttempts() }); err != nil {
		return nil, err
	}
	if proxies != nil && proxyRefreshSpec != "" {
		if _, err := s.Cron.AddFunc(proxyRefreshSpec, s.RefreshProxies); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.Cron.Start()
}

// Stop halts scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
}

// RefreshActiveBlocks updates the active block gauge.
func (s *Scheduler) RefreshActiveBlocks() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	n, err := s.escalation.CountActive(ctx)
	if err != nil {
		logger.Component("scheduler").WithError(err).Warn("failed to count active blocks")
		return
	}
	metrics.SetActiveBlocks(n)
}

// PurgeLoginAttempts deletes login attempt rows that are not locked and have
// been idle for a week.
func (s *Scheduler) PurgeLoginAttempts() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	now := s.now()
	res := s.db.WithContext(ctx).
		Where("last_attempt < ?", now.Add(-loginAttemptMaxAge)).
		Where("block_until IS NULL OR block_until < ?", now).
		Delete(&models.AdminLoginAttempt{})
	if res.Error != nil {
		logger.Component("scheduler").WithError(res.Error).Warn("failed to purge login attempts")
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		logger.Component("scheduler").WithField("rows", res.RowsAffected).Info("purged stale login attempts")
	}
	return res.RowsAffected, nil
}

// RefreshProxies downloads and reloads the proxy/Tor list.
func (s *Scheduler) RefreshProxies() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if err := s.proxies.Refresh(ctx); err != nil {
		logger.Component("scheduler").WithError(err).Warn("proxy list refresh failed")
		return
	}
	logger.Component("scheduler").WithField("entries", s.proxies.Size()).Info("proxy list refreshed")
}
