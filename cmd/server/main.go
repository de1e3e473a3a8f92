// ScamCheck - risk scoring for wallet addresses and social links
package main

import (
	"context"
	"os"

	"github.com/scamcheck/scamcheck/internal/config"
	"github.com/scamcheck/scamcheck/internal/logging"
	"github.com/scamcheck/scamcheck/internal/server"
	"github.com/scamcheck/scamcheck/internal/traces"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "text").Error("failed to load config", "error", err)
		os.Exit(1)
	}

	format := "json"
	if cfg.IsDevelopment() {
		format = "text"
	}
	logger := logging.New(cfg.LogLevel, format)

	logger.Info("starting scamcheck",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
		"env", cfg.Env,
	)

	ctx := context.Background()

	shutdownTracing, err := traces.Init(ctx, cfg.OTLPEndpoint, logger)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("tracing shutdown error", "error", err)
		}
	}()

	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
