package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	scanEventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "honeypot_scan_events_total",
		Help: "Total number of requests logged by decoy endpoints",
	})
	scanLogFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "honeypot_scan_log_failures_total",
		Help: "Total number of scan events that could not be persisted",
	})
	rateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "honeypot_rate_limited_total",
		Help: "Total number of decoy requests answered as rate limited",
	})
	blocksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "honeypot_blocks_total",
		Help: "Total number of block records written, by tier",
	}, []string{"tier"})
	deniedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "honeypot_denied_total",
		Help: "Total number of decoy requests denied, by status",
	}, []string{"status"})
	adminLoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "honeypot_admin_logins_total",
		Help: "Admin login attempts by outcome",
	}, []string{"outcome"})
	geoCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "honeypot_geoip_cache_total",
		Help: "Geo/reputation cache lookups by result",
	}, []string{"result"})
	activeBlocks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "honeypot_active_blocks",
		Help: "Number of block records whose window has not elapsed",
	})
)

// Register registers Prometheus collectors. Call once per registry.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(
		scanEventsTotal,
		scanLogFailuresTotal,
		rateLimitedTotal,
		blocksTotal,
		deniedTotal,
		adminLoginsTotal,
		geoCacheTotal,
		activeBlocks,
	)
}

// IncScanEvent increments the logged scan events counter.
func IncScanEvent() { scanEventsTotal.Inc() }

// IncScanLogFailure increments the failed scan persistence counter.
func IncScanLogFailure() { scanLogFailuresTotal.Inc() }

// IncRateLimited increments the rate limited counter.
func IncRateLimited() { rateLimitedTotal.Inc() }

// IncBlock increments the block counter for a tier ("high", "medium").
func IncBlock(tier string) { blocksTotal.WithLabelValues(tier).Inc() }

// IncDenied increments the denied counter for a status code label.
func IncDenied(status string) { deniedTotal.WithLabelValues(status).Inc() }

// IncAdminLogin increments the admin login counter for an outcome.
func IncAdminLogin(outcome string) { adminLoginsTotal.WithLabelValues(outcome).Inc() }

// IncGeoCacheHit records a geo cache hit.
func IncGeoCacheHit() { geoCacheTotal.WithLabelValues("hit").Inc() }

// IncGeoCacheMiss records a geo cache miss.
func IncGeoCacheMiss() { geoCacheTotal.WithLabelValues("miss").Inc() }

// SetActiveBlocks sets the active block gauge.
func SetActiveBlocks(n int64) { activeBlocks.Set(float64(n)) }
