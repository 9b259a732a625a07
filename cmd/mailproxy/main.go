// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Command mailproxy runs the local admission proxy that mediates an
// autonomous agent's access to a single Gmail/Calendar account. It
// terminates HTTP from the agent, enforces policy, and shells out to a
// provider CLI holding the real OAuth credentials.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oxbowsec/mailproxy/internal/audit"
	"github.com/oxbowsec/mailproxy/internal/config"
	"github.com/oxbowsec/mailproxy/internal/httpapi"
	"github.com/oxbowsec/mailproxy/internal/provider"
	"github.com/oxbowsec/mailproxy/internal/quota"
	"github.com/oxbowsec/mailproxy/internal/ratelimit"
	"github.com/oxbowsec/mailproxy/internal/replay"
	"github.com/oxbowsec/mailproxy/internal/secretbuf"
)

const buildVersion = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var dataDir string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "path to the JSONC policy file (required)")
	flag.StringVar(&dataDir, "data-dir", "", "writable directory for audit log, replay markers, and quota counters (required)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("mailproxy %s\n", buildVersion)
		return nil
	}

	if configPath == "" {
		return fmt.Errorf("-config is required")
	}
	if dataDir == "" {
		return fmt.Errorf("-data-dir is required")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	cfg.DataDir = dataDir

	paths := config.ResolvePaths(dataDir)
	if err := config.EnsureDataDirs(paths); err != nil {
		return fmt.Errorf("preparing data directories: %w", err)
	}

	logger.Info("starting mailproxy",
		"version", buildVersion,
		"bindAddress", cfg.Server.BindAddress,
		"port", cfg.Server.Port,
		"replyOnlyDefault", cfg.Outbound.ReplyOnlyDefault,
		"calendarWriteEnabled", cfg.CalendarWrite.Enabled,
	)

	apiKey, err := secretbuf.NewFromString(cfg.Token.APIKey)
	if err != nil {
		return fmt.Errorf("loading api key: %w", err)
	}
	defer apiKey.Close()

	signingKey, err := secretbuf.NewFromString(cfg.Token.SigningKey)
	if err != nil {
		return fmt.Errorf("loading signing key: %w", err)
	}
	defer signingKey.Close()

	var previousKey *secretbuf.Buffer
	if cfg.Token.PreviousKey != "" {
		previousKey, err = secretbuf.NewFromString(cfg.Token.PreviousKey)
		if err != nil {
			return fmt.Errorf("loading previous signing key: %w", err)
		}
		defer previousKey.Close()
	}

	auditLogger, err := audit.Open(paths.AuditLog)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer auditLogger.Close()

	replayStore, err := replay.Open(paths.ReplayDir)
	if err != nil {
		return fmt.Errorf("opening replay store: %w", err)
	}

	sendCounter, err := quota.Open(paths.SendCounters)
	if err != nil {
		return fmt.Errorf("opening send quota counter: %w", err)
	}
	calendarCounter, err := quota.Open(paths.CalendarCounters)
	if err != nil {
		return fmt.Errorf("opening calendar quota counter: %w", err)
	}

	providerBinary := cfg.Server.ProviderBinaryPath
	if providerBinary == "" {
		providerBinary = "gmail-provider"
	}
	adapter := provider.New(providerBinary, cfg.GmailAccount, 1)
	if !adapter.Ready() {
		logger.Warn("provider binary not found or not executable at startup",
			"binary", providerBinary)
	}

	server := httpapi.New(httpapi.Dependencies{
		Config:        cfg,
		Logger:        logger,
		Audit:         auditLogger,
		Provider:      adapter,
		APIKey:        apiKey,
		SigningKey:    signingKey,
		PreviousKey:   previousKey,
		ReplayStore:   replayStore,
		Limiter:       ratelimit.New(cfg.Server.RequestsPerMinute),
		SendCounter:   sendCounter,
		CalendarQuota: calendarCounter,
	})

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	stopSweep := startReplaySweeper(replayStore)
	defer close(stopSweep)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// startReplaySweeper periodically sweeps expired replay markers off disk
// so the marker directory doesn't grow without bound. Returns a channel
// the caller closes to stop the goroutine.
func startReplaySweeper(store *replay.Store) chan struct{} {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				store.MaybeSweep(time.Now())
			case <-stop:
				return
			}
		}
	}()
	return stop
}
