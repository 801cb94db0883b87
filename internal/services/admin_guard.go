package services

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"math"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/decoyworks/honeypot/internal/config"
	"github.com/decoyworks/honeypot/internal/logger"
	"github.com/decoyworks/honeypot/internal/metrics"
	"github.com/decoyworks/honeypot/internal/models"
	"github.com/decoyworks/honeypot/internal/session"
	"github.com/decoyworks/honeypot/internal/util"
)

// LoginOutcome is the result class of an admin login attempt.
type LoginOutcome string

const (
	LoginSuccess LoginOutcome = "SUCCESS"
	LoginFailure LoginOutcome = "FAILURE"
	LoginLocked  LoginOutcome = "LOCKED"
)

const (
	maxAdminKeyBytes = 256

	auditIPBlocked   = "IP blocked"
	auditInvalidKey  = "Invalid admin password"
	auditLockedOut   = "Blocked due to too many attempts"
	auditStoreFailed = "Login state unavailable"
)

var (
	ErrAdminKeyEmpty        = errors.New("admin key is empty")
	ErrAdminKeyTooLong      = errors.New("admin key exceeds maximum length")
	ErrAdminKeyControlChars = errors.New("admin key contains control characters")
)

// LoginResult is returned by CheckLogin.
type LoginResult struct {
	Outcome           LoginOutcome
	RetryAfterMinutes int
}

// AdminGuard authenticates operators and throttles failed logins per IP with
// exponential backoff.
type AdminGuard struct {
	db      *gorm.DB
	cfg     config.AdminConfig
	timeout time.Duration
	now     func() time.Time
}

// NewAdminGuard returns a guard for cfg.
func NewAdminGuard(db *gorm.DB, cfg config.AdminConfig, storeTimeout time.Duration) *AdminGuard {
	defaults := config.DefaultAdminConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = defaults.BaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaults.MaxBackoff
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = defaults.SessionTimeout
	}
	return &AdminGuard{db: db, cfg: cfg, timeout: storeTimeout, now: utcNow}
}

// Configured reports whether an admin secret is set.
func (g *AdminGuard) Configured() bool {
	return g.cfg.Password != "" || g.cfg.PasswordHash != ""
}

// SanitizeAdminKey trims the submitted key and validates its shape. The
// returned errors are recorded but never shown to the client.
func SanitizeAdminKey(raw string) (string, []error) {
	key := strings.TrimSpace(raw)
	var errs []error
	if key == "" {
		errs = append(errs, ErrAdminKeyEmpty)
	}
	if len(key) > maxAdminKeyBytes {
		errs = append(errs, ErrAdminKeyTooLong)
	}
	if util.HasControlChars(key) {
		errs = append(errs, ErrAdminKeyControlChars)
	}
	if len(errs) > 0 {
		return "", errs
	}
	return key, nil
}

// verifyKey compares key against the configured secret in constant time.
func (g *AdminGuard) verifyKey(key string) bool {
	if key == "" {
		return false
	}
	if g.cfg.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(g.cfg.PasswordHash), []byte(key)) == nil
	}
	if g.cfg.Password == "" {
		return false
	}
	want := sha256.Sum256([]byte(g.cfg.Password))
	got := sha256.Sum256([]byte(key))
	return subtle.ConstantTimeCompare(want[:], got[:]) == 1
}

// BackoffMinutes returns the lockout length after the given number of failed
// attempts: base doubled per attempt past the threshold, capped at max.
func (g *AdminGuard) BackoffMinutes(attempts int) int {
	if attempts < g.cfg.MaxAttempts {
		return 0
	}
	base := g.cfg.BaseBackoff.Minutes()
	capMinutes := g.cfg.MaxBackoff.Minutes()
	exp := attempts - g.cfg.MaxAttempts
	if exp > 30 {
		return int(capMinutes)
	}
	return int(math.Min(capMinutes, base*math.Pow(2, float64(exp))))
}

// CheckLogin runs one login attempt from ip. Store failures fail closed.
func (g *AdminGuard) CheckLogin(ctx context.Context, ip, submittedKey, requestID string) LoginResult {
	log := logger.Component("admin_guard").WithField("ip", util.SanitizeForLog(ip)).WithField("request_id", requestID)
	now := g.now()

	attempt, err := g.loadAttempt(ctx, ip)
	if err != nil {
		log.WithError(err).Error("failed to load login attempts")
		g.audit(ctx, ip, false, auditStoreFailed, requestID, nil)
		metrics.IncAdminLogin(string(LoginFailure))
		return LoginResult{Outcome: LoginFailure}
	}

	if attempt != nil && attempt.BlockUntil != nil && attempt.BlockUntil.After(now) {
		minutes := int(math.Ceil(attempt.BlockUntil.Sub(now).Minutes()))
		g.audit(ctx, ip, false, auditIPBlocked, requestID, nil)
		metrics.IncAdminLogin(string(LoginLocked))
		return LoginResult{Outcome: LoginLocked, RetryAfterMinutes: minutes}
	}

	key, validationErrs := SanitizeAdminKey(submittedKey)
	if len(validationErrs) == 0 && g.verifyKey(key) {
		if err := g.clearAttempts(ctx, ip); err != nil {
			log.WithError(err).Warn("failed to clear login attempts")
		}
		g.audit(ctx, ip, true, "", requestID, nil)
		metrics.IncAdminLogin(string(LoginSuccess))
		log.Info("admin login succeeded")
		return LoginResult{Outcome: LoginSuccess}
	}

	messages := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		messages = append(messages, e.Error())
	}
	details := map[string]any{"key_errors": messages, "total_error_count": len(messages)}

	attempts, blockUntil, err := g.recordFailure(ctx, ip, now, messages)
	if err != nil {
		log.WithError(err).Error("failed to record login failure")
		g.audit(ctx, ip, false, auditInvalidKey, requestID, details)
		metrics.IncAdminLogin(string(LoginFailure))
		return LoginResult{Outcome: LoginFailure}
	}

	if blockUntil != nil {
		minutes := g.BackoffMinutes(attempts)
		details["attempts"] = attempts
		g.audit(ctx, ip, false, auditLockedOut, requestID, details)
		metrics.IncAdminLogin(string(LoginLocked))
		log.WithField("attempts", attempts).Warn("admin login locked out")
		return LoginResult{Outcome: LoginLocked, RetryAfterMinutes: minutes}
	}

	g.audit(ctx, ip, false, auditInvalidKey, requestID, details)
	metrics.IncAdminLogin(string(LoginFailure))
	return LoginResult{Outcome: LoginFailure}
}

func (g *AdminGuard) loadAttempt(ctx context.Context, ip string) (*models.AdminLoginAttempt, error) {
	sctx, cancel := storeCtx(ctx, g.timeout)
	defer cancel()

	var a models.AdminLoginAttempt
	err := g.db.WithContext(sctx).Where("ip = ?", ip).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (g *AdminGuard) clearAttempts(ctx context.Context, ip string) error {
	sctx, cancel := storeCtx(ctx, g.timeout)
	defer cancel()
	return g.db.WithContext(sctx).Where("ip = ?", ip).Delete(&models.AdminLoginAttempt{}).Error
}

// recordFailure increments the attempt counter atomically and, past the
// threshold, extends block_until. block_until never moves backward.
func (g *AdminGuard) recordFailure(ctx context.Context, ip string, now time.Time, validationErrs []string) (int, *time.Time, error) {
	sctx, cancel := storeCtx(ctx, g.timeout)
	defer cancel()

	var (
		attempts   int
		blockUntil *time.Time
	)
	err := g.db.WithContext(sctx).Transaction(func(tx *gorm.DB) error {
		row := models.AdminLoginAttempt{
			IP:               ip,
			Attempts:         1,
			LastAttempt:      now,
			ValidationErrors: jsonColumn(validationErrs),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "ip"}},
			DoUpdates: clause.Assignments(map[string]any{
				"attempts":          gorm.Expr("admin_login_attempts.attempts + ?", 1),
				"last_attempt":      now,
				"validation_errors": jsonColumn(validationErrs),
			}),
		}).Create(&row).Error; err != nil {
			return err
		}

		var current models.AdminLoginAttempt
		if err := tx.Where("ip = ?", ip).First(&current).Error; err != nil {
			return err
		}
		attempts = current.Attempts

		minutes := g.BackoffMinutes(attempts)
		if minutes == 0 {
			return nil
		}
		until := now.Add(time.Duration(minutes) * time.Minute)
		if current.BlockUntil != nil && current.BlockUntil.After(until) {
			until = *current.BlockUntil
		}
		blockUntil = &until
		return tx.Model(&models.AdminLoginAttempt{}).Where("ip = ?", ip).Update("block_until", until).Error
	})
	return attempts, blockUntil, err
}

func (g *AdminGuard) audit(ctx context.Context, ip string, success bool, reason, requestID string, details map[string]any) {
	sctx, cancel := storeCtx(ctx, g.timeout)
	defer cancel()

	entry := &models.AuditLog{
		Timestamp:  g.now(),
		IP:         ip,
		Success:    success,
		Reason:     reason,
		AdminLogin: true,
		RequestID:  requestID,
	}
	if details != nil {
		entry.Details = jsonColumn(details)
	}
	if err := g.db.WithContext(sctx).Create(entry).Error; err != nil {
		logger.Component("admin_guard").WithError(err).Warn("failed to write audit log")
	}
}

// Authenticate marks s as an authenticated admin session.
func (g *AdminGuard) Authenticate(s *session.Session, ip string) {
	s.Authenticated = true
	s.LoginIP = ip
	s.Touch(g.now())
}

// CheckSession reports whether s is an authenticated, non-idle admin
// session. Idle sessions lose their authentication; active ones are refreshed.
func (g *AdminGuard) CheckSession(s *session.Session) bool {
	if s == nil || !s.Authenticated {
		return false
	}
	now := g.now()
	last := s.LastActiveTime()
	if last.IsZero() || now.Sub(last) > g.cfg.SessionTimeout {
		s.ClearAuth()
		return false
	}
	s.Touch(now)
	return true
}

// Logout clears the authentication flags of s.
func (g *AdminGuard) Logout(s *session.Session) {
	if s != nil {
		s.ClearAuth()
	}
}

// HashAdminKey returns a bcrypt hash suitable for HONEYPOT_ADMIN_PASSWORD_HASH.
func HashAdminKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
