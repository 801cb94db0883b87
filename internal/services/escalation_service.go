package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/decoyworks/honeypot/internal/config"
	"github.com/decoyworks/honeypot/internal/fingerprint"
	"github.com/decoyworks/honeypot/internal/logger"
	"github.com/decoyworks/honeypot/internal/metrics"
	"github.com/decoyworks/honeypot/internal/models"
)

const notifyTimeout = 30 * time.Second

// BlockDecision is the outcome of an escalation.
type BlockDecision struct {
	Blocked    bool          `json:"blocked"`
	Tier       string        `json:"tier,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	BlockUntil time.Time     `json:"block_until,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	Score      int           `json:"score"`
}

// EscalationService converts threat scores into time-bounded blocks.
type EscalationService struct {
	db        *gorm.DB
	tiers     []config.EscalationTier
	blockByIP bool
	timeout   time.Duration
	notifier  Notifier
	now       func() time.Time
}

// NewEscalationService returns a service using cfg tiers. notifier may be nil.
func NewEscalationService(db *gorm.DB, cfg config.HoneypotConfig, notifier Notifier) *EscalationService {
	tiers := cfg.SortedTiers()
	if len(tiers) == 0 {
		tiers = config.DefaultTiers()
	}
	return &EscalationService{
		db:        db,
		tiers:     tiers,
		blockByIP: cfg.BlockByIP,
		timeout:   cfg.StoreTimeout,
		notifier:  notifier,
		now:       utcNow,
	}
}

// LowestThreshold returns the minimum score that triggers a block.
func (e *EscalationService) LowestThreshold() int {
	return e.tiers[len(e.tiers)-1].MinScore
}

// Tier returns the highest tier score reaches.
func (e *EscalationService) Tier(score int) (config.EscalationTier, bool) {
	for _, t := range e.tiers {
		if score >= t.MinScore {
			return t, true
		}
	}
	return config.EscalationTier{}, false
}

// Escalate writes or refreshes the block for fp (and ip when IP blocking is
// enabled) if score reaches a tier. Persistence failures are logged; the
// returned decision still reports the computed block.
func (e *EscalationService) Escalate(ctx context.Context, fp string, score int, ip string) BlockDecision {
	tier, ok := e.Tier(score)
	if !ok {
		return BlockDecision{Score: score}
	}

	now := e.now()
	d := BlockDecision{
		Blocked:    true,
		Tier:       tier.Name,
		Duration:   tier.Duration,
		BlockUntil: now.Add(tier.Duration),
		Reason:     blockReason(tier.Name, score),
		Score:      score,
	}

	log := logger.Component("escalation").WithField("fingerprint", fp).WithField("ip", ip)
	if err := e.upsert(ctx, fp, models.BlockKeyFingerprint, fp, ip, d, now); err != nil {
		log.WithError(err).Error("failed to persist fingerprint block")
	}
	if e.blockByIP && ip != "" && ip != fingerprint.UnknownIP {
		if err := e.upsert(ctx, ip, models.BlockKeyIP, fp, ip, d, now); err != nil {
			log.WithError(err).Error("failed to persist ip block")
		}
	}

	metrics.IncBlock(tier.Name)
	log.WithField("tier", tier.Name).WithField("block_until", d.BlockUntil).Warn(d.Reason)

	if e.notifier != nil {
		ev := EscalationEvent{Fingerprint: fp, IP: ip, Tier: tier.Name, Score: score, Reason: d.Reason, BlockUntil: d.BlockUntil}
		go func() {
			nctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			e.notifier.Notify(nctx, ev)
		}()
	}
	return d
}

func blockReason(tier string, score int) string {
	switch tier {
	case "high":
		return fmt.Sprintf("High threat score (%d), persistent scanning activity.", score)
	case "medium":
		return fmt.Sprintf("Medium threat score (%d), suspicious scanning activity.", score)
	default:
		return fmt.Sprintf("Threat score (%d) reached the %s tier.", score, tier)
	}
}

// upsert inserts the block or overwrites its window and reason. created_at
// keeps its first value.
func (e *EscalationService) upsert(ctx context.Context, key, keyType, fp, ip string, d BlockDecision, now time.Time) error {
	sctx, cancel := storeCtx(ctx, e.timeout)
	defer cancel()

	rec := models.BlockRecord{
		Key:         key,
		KeyType:     keyType,
		Fingerprint: fp,
		IP:          ip,
		BlockUntil:  d.BlockUntil,
		Reason:      d.Reason,
		ThreatScore: d.Score,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return e.db.WithContext(sctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "block_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"key_type", "fingerprint", "ip", "block_until", "reason", "threat_score", "updated_at"}),
	}).Create(&rec).Error
}

// ActiveBlock returns the longest-running active block on fp or ip, or nil.
func (e *EscalationService) ActiveBlock(ctx context.Context, fp, ip string) (*models.BlockRecord, error) {
	keys := []string{fp}
	if ip != "" && ip != fingerprint.UnknownIP {
		keys = append(keys, ip)
	}

	sctx, cancel := storeCtx(ctx, e.timeout)
	defer cancel()

	var rec models.BlockRecord
	err := e.db.WithContext(sctx).
		Where("block_key IN ? AND block_until > ?", keys, e.now()).
		Order("block_until desc").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// IsBlocked reports whether fp or ip holds an active block. Store failures report false.
func (e *EscalationService) IsBlocked(ctx context.Context, fp, ip string) bool {
	rec, err := e.ActiveBlock(ctx, fp, ip)
	if err != nil {
		logger.Component("escalation").WithError(err).Warn("block check failed")
		return false
	}
	return rec != nil
}

// Unblock removes every block keyed by key and returns how many were removed.
func (e *EscalationService) Unblock(ctx context.Context, key string) (int64, error) {
	sctx, cancel := storeCtx(ctx, e.timeout)
	defer cancel()

	res := e.db.WithContext(sctx).Where("block_key = ?", key).Delete(&models.BlockRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("unblock %s: %w", key, res.Error)
	}
	return res.RowsAffected, nil
}

// ListActive returns active blocks, latest expiry first.
func (e *EscalationService) ListActive(ctx context.Context, limit int) ([]models.BlockRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	sctx, cancel := storeCtx(ctx, e.timeout)
	defer cancel()

	var recs []models.BlockRecord
	err := e.db.WithContext(sctx).
		Where("block_until > ?", e.now()).
		Order("block_until desc").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

// CountActive returns the number of active blocks.
func (e *EscalationService) CountActive(ctx context.Context) (int64, error) {
	sctx, cancel := storeCtx(ctx, e.timeout)
	defer cancel()

	var n int64
	err := e.db.WithContext(sctx).Model(&models.BlockRecord{}).Where("block_until > ?", e.now()).Count(&n).Error
	return n, err
}
