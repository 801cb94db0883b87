package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mssola/useragent"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/decoyworks/honeypot/internal/config"
	"github.com/decoyworks/honeypot/internal/fingerprint"
	"github.com/decoyworks/honeypot/internal/geoip"
	"github.com/decoyworks/honeypot/internal/logger"
	"github.com/decoyworks/honeypot/internal/metrics"
	"github.com/decoyworks/honeypot/internal/models"
	"github.com/decoyworks/honeypot/internal/util"
)

const (
	noteProxy           = "Possible proxy/spoofing detected (XFF present)"
	noteSuspiciousQuery = "Suspicious keywords found in query parameters"
	shortUserAgent      = "Short or missing user agent"
	parsedBot           = "Parsed user agent identifies a bot"

	minUserAgentLen    = 10
	lastUserAgentLimit = 200
	reverseDNSTimeout  = time.Second
)

// Resolver performs reverse DNS lookups. *net.Resolver satisfies it.
type Resolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// Analysis is the heuristic verdict on a single request.
type Analysis struct {
	BotIndicators       []string
	IsTorOrProxy        bool
	IsPortScan          bool
	IsScanner           bool
	HasSuspiciousParams bool
	Notes               []string
}

// Severity returns the watch-list severity increment for the analysed request.
func (a Analysis) Severity() int {
	severity := 1
	if len(a.BotIndicators) > 0 {
		severity++
	}
	if a.IsTorOrProxy {
		severity++
	}
	severity += len(a.Notes)
	if a.IsPortScan {
		severity += 2
	}
	if a.IsScanner {
		severity += 3
	}
	if a.HasSuspiciousParams {
		severity += 2
	}
	return severity
}

// Analyze applies the signature heuristics to req. It has no side effects.
func Analyze(req fingerprint.RequestSummary, sigs config.Signatures, isTorOrProxy bool) Analysis {
	ua := req.UserAgent()
	a := Analysis{IsTorOrProxy: isTorOrProxy}

	uaLower := strings.ToLower(ua)
	for _, s := range sigs.BotStrings {
		if strings.Contains(uaLower, s) {
			a.BotIndicators = append(a.BotIndicators, fmt.Sprintf("UA contains '%s'", s))
		}
	}
	if len(ua) < minUserAgentLen {
		a.BotIndicators = append(a.BotIndicators, shortUserAgent)
	} else if len(a.BotIndicators) == 0 && useragent.New(ua).Bot() {
		a.BotIndicators = append(a.BotIndicators, parsedBot)
	}

	_, a.IsPortScan = config.MatchAny(req.Path, sigs.PortScanKeywords)
	_, a.IsScanner = config.MatchAny(ua, sigs.ScannerSignatures)

	var joined strings.Builder
	for _, values := range req.Query {
		for _, v := range values {
			if !a.HasSuspiciousParams {
				_, a.HasSuspiciousParams = config.MatchAny(v, sigs.SuspiciousParams)
			}
			joined.WriteString(v)
		}
	}

	if req.HasForwardedFor() && req.ClientIP != req.PeerIP {
		a.Notes = append(a.Notes, noteProxy)
	}
	if _, ok := config.MatchAny(joined.String(), sigs.SuspiciousQueryKeywords); ok {
		a.Notes = append(a.Notes, noteSuspiciousQuery)
	}
	return a
}

// ScanLogger records every decoy request and maintains the watch list.
type ScanLogger struct {
	db              *gorm.DB
	geo             geoip.Lookup
	sigs            config.Signatures
	resolver        Resolver
	storeTimeout    time.Duration
	lookupTimeout   time.Duration
	recentPathLimit int
	now             func() time.Time
}

// NewScanLogger returns a ScanLogger. geo may be nil.
func NewScanLogger(db *gorm.DB, geo geoip.Lookup, cfg config.HoneypotConfig, sigs config.Signatures) *ScanLogger {
	limit := cfg.RecentPathLimit
	if limit <= 0 {
		limit = 10
	}
	return &ScanLogger{
		db:              db,
		geo:             geo,
		sigs:            sigs,
		storeTimeout:    cfg.StoreTimeout,
		lookupTimeout:   cfg.LookupTimeout,
		recentPathLimit: limit,
		now:             utcNow,
	}
}

// WithResolver enables reverse DNS capture.
func (l *ScanLogger) WithResolver(r Resolver) *ScanLogger {
	l.resolver = r
	return l
}

// Log persists the request and updates the watch list. It never panics and
// never returns an error: on failure it logs and reports ok=false.
func (l *ScanLogger) Log(ctx context.Context, req fingerprint.RequestSummary) (fp string, ok bool) {
	fp = fingerprint.Compute(req)
	log := logger.Component("scan_logger").WithField("fingerprint", fp)

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("scan logging panicked")
			metrics.IncScanLogFailure()
			ok = false
		}
	}()

	now := l.now()
	ip := req.ClientIP

	geo := geoip.Info{ASN: "Unknown", Org: "Unknown", Country: "Unknown"}
	if l.geo != nil {
		lctx, cancel := context.WithTimeout(ctx, l.lookupTimeoutOrDefault())
		geo = l.geo.Lookup(lctx, ip)
		cancel()
	}

	analysis := Analyze(req, l.sigs, geo.IsTorOrProxy)
	severity := analysis.Severity()
	event := l.buildEvent(req, fp, now, geo, analysis)
	event.Hostname = l.reverseDNS(ctx, ip)

	if err := l.insertEvent(ctx, event); err != nil {
		log.WithError(err).Error("failed to insert scan event")
		metrics.IncScanLogFailure()
		return fp, false
	}
	if err := l.upsertWatch(ctx, fp, ip, req, now, severity); err != nil {
		log.WithError(err).Error("failed to update watch list")
		metrics.IncScanLogFailure()
		return fp, false
	}
	if err := l.pushRecentPath(ctx, fp, req.Path, now); err != nil {
		log.WithError(err).Error("failed to record recent path")
		metrics.IncScanLogFailure()
		return fp, false
	}

	metrics.IncScanEvent()
	log.WithFields(logrus.Fields{
		"ip":       util.SanitizeForLog(ip),
		"path":     util.SanitizeForLog(req.Path),
		"severity": severity,
		"category": event.Category,
	}).Debug("scan event recorded")
	return fp, true
}

func (l *ScanLogger) lookupTimeoutOrDefault() time.Duration {
	if l.lookupTimeout <= 0 {
		return 2 * time.Second
	}
	return l.lookupTimeout
}

func (l *ScanLogger) buildEvent(req fingerprint.RequestSummary, fp string, now time.Time, geo geoip.Info, a Analysis) *models.ScanEvent {
	ua := req.UserAgent()
	event := &models.ScanEvent{
		Fingerprint:         fp,
		IP:                  req.ClientIP,
		Path:                req.Path,
		Method:              req.Method,
		Category:            CategorizePath(req.Path),
		Timestamp:           now,
		UserAgent:           ua,
		ASN:                 geo.ASN,
		Org:                 geo.Org,
		Country:             geo.Country,
		Headers:             jsonColumn(flattenHeaders(req)),
		Query:               jsonColumn(map[string][]string(req.Query)),
		Form:                jsonColumn(map[string][]string(req.Form)),
		Cookies:             jsonColumn(req.Cookies),
		Notes:               jsonColumn(a.Notes),
		Bot:                 jsonColumn(a.BotIndicators),
		IsTorOrProxy:        a.IsTorOrProxy,
		IsPortScan:          a.IsPortScan,
		IsScanner:           a.IsScanner,
		HasSuspiciousParams: a.HasSuspiciousParams,
		SeverityDelta:       a.Severity(),
	}
	if req.JSON != nil {
		event.Body = jsonColumn(req.JSON)
	}

	if ua != "" {
		parsed := useragent.New(ua)
		name, version := parsed.Browser()
		event.Browser = strings.TrimSpace(name + " " + version)
		event.OS = parsed.OS()
		event.ParsedAsBot = parsed.Bot()
		switch {
		case parsed.Bot():
			event.Device = "bot"
		case parsed.Mobile():
			event.Device = "mobile"
		default:
			event.Device = "desktop"
		}
	}
	return event
}

func flattenHeaders(req fingerprint.RequestSummary) map[string]string {
	out := make(map[string]string, len(req.Headers))
	for k, v := range req.Headers {
		out[k] = strings.Join(v, ", ")
	}
	return out
}

func (l *ScanLogger) reverseDNS(ctx context.Context, ip string) string {
	if l.resolver == nil || ip == "" || ip == fingerprint.UnknownIP {
		return ""
	}
	rctx, cancel := context.WithTimeout(ctx, reverseDNSTimeout)
	defer cancel()
	names, err := l.resolver.LookupAddr(rctx, ip)
	if err != nil || len(names) == 0 {
		return "Resolution failed"
	}
	return strings.TrimSuffix(names[0], ".")
}

func (l *ScanLogger) insertEvent(ctx context.Context, event *models.ScanEvent) error {
	sctx, cancel := storeCtx(ctx, l.storeTimeout)
	defer cancel()
	return l.db.WithContext(sctx).Create(event).Error
}

// upsertWatch creates or increments the watch entry in one statement.
func (l *ScanLogger) upsertWatch(ctx context.Context, fp, ip string, req fingerprint.RequestSummary, now time.Time, severity int) error {
	sctx, cancel := storeCtx(ctx, l.storeTimeout)
	defer cancel()

	ua := util.Truncate(req.UserAgent(), lastUserAgentLimit)
	entry := models.WatchEntry{
		Fingerprint:   fp,
		IP:            ip,
		LastSeen:      now,
		LastPath:      req.Path,
		LastUserAgent: ua,
		Count:         1,
		SeverityScore: int64(severity),
		CreatedAt:     now,
	}
	return l.db.WithContext(sctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "fingerprint"}},
		DoUpdates: clause.Assignments(map[string]any{
			"count":           gorm.Expr("watch_list.count + ?", 1),
			"severity_score":  gorm.Expr("watch_list.severity_score + ?", severity),
			"ip":              ip,
			"last_seen":       now,
			"last_path":       req.Path,
			"last_user_agent": ua,
		}),
	}).Create(&entry).Error
}

// pushRecentPath appends path and trims the fingerprint's list to the newest entries.
func (l *ScanLogger) pushRecentPath(ctx context.Context, fp, path string, now time.Time) error {
	sctx, cancel := storeCtx(ctx, l.storeTimeout)
	defer cancel()

	db := l.db.WithContext(sctx)
	if err := db.Create(&models.WatchPath{Fingerprint: fp, Path: path, CreatedAt: now}).Error; err != nil {
		return err
	}

	var stale []uint
	if err := db.Model(&models.WatchPath{}).
		Where("fingerprint = ?", fp).
		Order("id desc").
		Offset(l.recentPathLimit).
		Limit(1000).
		Pluck("id", &stale).Error; err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}
	return db.Where("id IN ?", stale).Delete(&models.WatchPath{}).Error
}
