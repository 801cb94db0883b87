package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/decoyworks/honeypot/internal/api/routes"
	"github.com/decoyworks/honeypot/internal/database"
	"github.com/decoyworks/honeypot/internal/geoip"
	"github.com/decoyworks/honeypot/internal/logger"
	"github.com/decoyworks/honeypot/internal/metrics"
	"github.com/decoyworks/honeypot/internal/server"
	"github.com/decoyworks/honeypot/internal/services"
	"github.com/decoyworks/honeypot/internal/session"
	"github.com/decoyworks/honeypot/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the decoy and admin HTTP server (default)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := logger.Log()
	log.WithField("version", version.Full()).Infof("starting %s", version.Name)

	if cfg.SecretKeyGenerated {
		log.Warn("SECRET_KEY not set, generated a random key; admin sessions end on restart")
	}
	if cfg.Admin.Password == "" && cfg.Admin.PasswordHash == "" {
		log.Warn("no admin secret configured, admin login is disabled")
	}

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts routes.Options

	proxies := geoip.NewProxyDetector(cfg.GeoIP.ProxyListPath, cfg.GeoIP.ProxyListURL)
	if err := proxies.Load(); err != nil {
		log.WithError(err).Warn("proxy list not loaded")
	}
	if cfg.GeoIP.ProxyListURL != "" {
		go func() {
			if err := proxies.Refresh(ctx); err != nil {
				log.WithError(err).Warn("initial proxy list refresh failed")
			}
		}()
	}
	opts.Proxies = proxies

	geo, err := geoip.Open(cfg.GeoIP.Directory, proxies, cfg.GeoIP.CacheTTL)
	if err != nil {
		log.WithError(err).Warn("geo databases unavailable, lookups disabled")
	} else {
		defer geo.Close()
		opts.Geo = geo
	}

	if n := services.NewChannelNotifier(cfg.Notify); n != nil {
		opts.Notifier = n
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.WithError(err).Warn("redis unavailable, using in-memory sessions")
		} else {
			opts.Sessions = session.NewRedisStore(rdb)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.Register(reg)
	opts.Gatherer = reg

	srv, err := server.New(db, cfg, opts)
	if err != nil {
		return err
	}
	defer srv.Close()

	log.WithField("port", cfg.HTTPPort).Info("listening")
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info("shutdown complete")
	return nil
}
