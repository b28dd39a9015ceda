// Package main is the entry point for the tripwatch daemon. It loads
// configuration, starts the per-target monitors, serves the health, metrics,
// and admin endpoints, and handles graceful shutdown. When a target with the
// shutdown action trips, main terminates the process — the monitors only
// ever report the decision.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dskow/tripwatch/internal/admin"
	"github.com/dskow/tripwatch/internal/auth"
	"github.com/dskow/tripwatch/internal/config"
	"github.com/dskow/tripwatch/internal/health"
	"github.com/dskow/tripwatch/internal/metrics"
	"github.com/dskow/tripwatch/internal/middleware"
	"github.com/dskow/tripwatch/internal/monitor"
	"github.com/dskow/tripwatch/internal/tlsutil"

	tlog "github.com/dskow/tripwatch/internal/logging"
)

func main() {
	configPath := flag.String("config", "configs/tripwatch.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, closer, err := buildLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}

	for _, w := range cfg.Warnings {
		logger.Warn("config warning", "message", w)
	}

	logger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"targets", len(cfg.Targets),
		"admin_enabled", cfg.Admin.Enabled,
		"metrics_enabled", cfg.Metrics.IsEnabled(),
		"metrics_path", cfg.Metrics.Path,
	)

	if cfg.Metrics.IsEnabled() {
		metrics.Init()
	}

	// Build the monitors. Each target gets its own brake; construction
	// fails fast on an invalid window or threshold.
	manager, err := monitor.NewManager(cfg, logger)
	if err != nil {
		logger.Error("failed to build monitors", "error", err)
		os.Exit(1)
	}

	// Config reloader with hot monitor rebuild.
	reloader := config.NewReloader(*configPath, cfg, logger)
	reloader.Start()
	defer reloader.Stop()
	reloader.OnReload(func(newCfg *config.Config) {
		if err := manager.Apply(newCfg); err != nil {
			logger.Error("reload produced invalid monitors, keeping current set", "error", err)
		}
	})

	// HTTP surface: health, metrics, and the admin API.
	mux := http.NewServeMux()
	health.New(manager, logger).RegisterRoutes(mux)

	if cfg.Metrics.IsEnabled() {
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
		logger.Info("metrics endpoint registered", "path", cfg.Metrics.Path)
	}

	if cfg.Admin.Enabled {
		var verifier *auth.Verifier
		if cfg.Admin.Auth.Enabled {
			verifier = auth.New(cfg.Admin.Auth)
		}
		admin.New(reloader, manager, verifier, cfg.Admin.IPAllowlist, logger).RegisterRoutes(mux)
		logger.Info("admin endpoints registered", "auth_enabled", cfg.Admin.Auth.Enabled)
	}

	var handler http.Handler = mux
	handler = middleware.SecurityHeaders()(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Recovery(logger)(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	if cfg.Server.TLS.Enabled {
		certLoader, err := tlsutil.New(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile, logger)
		if err != nil {
			logger.Error("failed to load TLS certificate", "error", err)
			os.Exit(1)
		}
		defer certLoader.Stop()

		srv.TLSConfig = &tls.Config{
			GetCertificate: certLoader.GetCertificate,
			MinVersion:     tlsutil.MinVersion(cfg.Server.TLS.MinVersion),
		}
		go func() {
			logger.Info("starting tripwatch", "addr", srv.Addr, "tls", true)
			serveErr <- srv.ListenAndServeTLS("", "")
		}()
	} else {
		go func() {
			logger.Info("starting tripwatch", "addr", srv.Addr)
			serveErr <- srv.ListenAndServe()
		}()
	}

	manager.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", "signal", sig.String())
	case trip := <-manager.Trips():
		logger.Error("target tripped with shutdown action, terminating",
			"target", trip.Target,
			"failures", trip.Failures,
			"threshold", trip.Threshold,
		)
		exitCode = 1
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			exitCode = 1
		}
	}

	manager.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	logger.Info("draining in-flight requests", "timeout", cfg.Server.ShutdownTimeout)
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
		exitCode = 1
	}

	logger.Info("tripwatch stopped", "exit_code", exitCode)
	if closer != nil {
		closer.Close()
	}
	os.Exit(exitCode)
}

// buildLogger constructs the slog JSON logger per the logging config. The
// returned closer is non-nil when output goes to a rotating file.
func buildLogger(cfg config.LoggingConfig) (*slog.Logger, io.Closer, error) {
	var out io.Writer
	var closer io.Closer

	switch cfg.Output {
	case "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		rw, err := tlog.NewRotatingWriter(cfg.Output, cfg.MaxSizeMB, cfg.MaxBackups)
		if err != nil {
			return nil, nil, err
		}
		out = rw
		closer = rw
	}

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})), closer, nil
}
