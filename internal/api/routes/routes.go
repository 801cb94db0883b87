package routes

import (
	"fmt"
	"net"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/decoyworks/honeypot/internal/api/handlers"
	"github.com/decoyworks/honeypot/internal/api/middleware"
	"github.com/decoyworks/honeypot/internal/config"
	"github.com/decoyworks/honeypot/internal/database"
	"github.com/decoyworks/honeypot/internal/geoip"
	"github.com/decoyworks/honeypot/internal/logger"
	"github.com/decoyworks/honeypot/internal/services"
	"github.com/decoyworks/honeypot/internal/session"
)

// Options carries the long-lived collaborators built by the caller.
// Every field is optional.
type Options struct {
	Geo      geoip.Lookup
	Proxies  *geoip.ProxyDetector
	Notifier services.Notifier
	Sessions session.Store
	Gatherer prometheus.Gatherer
}

// Register wires services, handlers and routes onto the router. The returned
// func stops the background jobs started here.
func Register(router *gin.Engine, db *gorm.DB, cfg config.Config, opts Options) (func(), error) {
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	hp := cfg.Honeypot
	scans := services.NewScanLogger(db, opts.Geo, hp, cfg.Signatures)
	if hp.ReverseDNS {
		scans.WithResolver(net.DefaultResolver)
	}
	limiter := services.NewRateLimiter(db, hp)
	scorer := services.NewThreatScorer(db, hp)
	escalation := services.NewEscalationService(db, hp, opts.Notifier)
	honeypot := services.NewHoneypot(scans, limiter, scorer, escalation)
	guard := services.NewAdminGuard(db, cfg.Admin, hp.StoreTimeout)
	analytics := services.NewAnalyticsService(db)
	interactions := services.NewInteractionService(db, opts.Geo, hp.StoreTimeout)

	store := opts.Sessions
	if store == nil {
		store = session.NewMemoryStore(10 * time.Minute)
	}
	sessions := session.NewManager(store, session.NewSigner(cfg.SecretKey), cfg.Admin.SessionTimeout, cfg.IsProduction())

	scheduler, err := services.NewScheduler(db, escalation, opts.Proxies, cfg.GeoIP.ProxyListRefresh)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	scheduler.Start()

	interactionLimit := middleware.NewIPRateLimiter(middleware.DefaultInteractionRateLimit())

	decoy := handlers.NewDecoyHandler(honeypot)
	adminHandler := handlers.NewAdminHandler(guard, sessions)
	analyticsHandler := handlers.NewAnalyticsHandler(analytics, scorer, escalation, interactions)
	interactionHandler := handlers.NewInteractionHandler(interactions)

	router.GET("/health", handlers.NewHealthHandler(db).Check)
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/honeypot")
	api.Use(middleware.SecurityHeaders(!cfg.IsProduction()))
	api.Use(middleware.LoadSession(sessions))

	admin := api.Group("/admin")
	admin.Use(middleware.CSRF())
	{
		admin.GET("/csrf-token", adminHandler.CSRFToken)
		admin.POST("/login", adminHandler.Login)
		admin.POST("/logout", adminHandler.Logout)
		admin.GET("/status", adminHandler.Status)
	}

	protected := api.Group("")
	protected.Use(middleware.RequireAdmin(guard, sessions))
	protected.Use(middleware.CSRF())
	{
		protected.GET("/analytics", analyticsHandler.Summary)
		protected.GET("/clients/:fingerprint", analyticsHandler.Client)
		protected.GET("/interactions", analyticsHandler.Interactions)
		protected.GET("/blocklist", analyticsHandler.Blocklist)
		protected.DELETE("/blocklist/:key", analyticsHandler.Unblock)
	}

	api.POST("/log-interaction", interactionLimit.Middleware(), interactionHandler.Log)

	trap := router.Group("")
	trap.Use(middleware.MarkDecoy(), middleware.LoadSession(sessions))
	for _, p := range handlers.DecoyPaths {
		trap.GET(p, decoy.Handle)
		trap.POST(p, decoy.Handle)
	}
	router.NoRoute(middleware.MarkDecoy(), middleware.LoadSession(sessions), decoy.Handle)

	logger.Log().WithField("decoy_paths", len(handlers.DecoyPaths)).Info("routes registered")

	return func() {
		scheduler.Stop()
		interactionLimit.Close()
	}, nil
}
