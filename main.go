// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/danielhkuo/circle-sketch/circle"
	"github.com/danielhkuo/circle-sketch/cliparse"
	"github.com/danielhkuo/circle-sketch/coordinator"
	"github.com/danielhkuo/circle-sketch/gallery"
	"github.com/danielhkuo/circle-sketch/messenger"
	"github.com/danielhkuo/circle-sketch/rounds"
	"github.com/danielhkuo/circle-sketch/router"
	"github.com/danielhkuo/circle-sketch/store"
)

func main() {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg))

	if err := run(cfg); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg cliparse.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open database (ping + schema)
	dialect, err := store.DialectFor(cfg.DatabaseType)
	if err != nil {
		return err
	}
	st, err := store.Open(ctx, dialect, cfg.DatabaseURL, cfg.ScopeID)
	if err != nil {
		return err
	}
	defer st.Close()
	slog.Info("Database schema ready", "type", dialect.Name, "scope", cfg.ScopeID)

	// Game services
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return err
	}
	closeAt, err := rounds.ParseDaily(cfg.ScheduleTime, loc)
	if err != nil {
		return err
	}
	pool, err := rounds.LoadPool(cfg.PromptsFile)
	if err != nil {
		return err
	}
	slog.Info("prompt pool loaded", "themes", pool.Len(), "file", cfg.PromptsFile)

	machine := rounds.NewMachine(st, pool, closeAt)
	roster := circle.NewManager(st, cfg.CircleLimit)

	renderer, err := gallery.NewRenderer()
	if err != nil {
		return err
	}
	artifacts, err := gallery.NewArtifacts(cfg.ArtifactDir)
	if err != nil {
		return err
	}

	var msg messenger.Messenger = messenger.Log{}
	if cfg.BridgeURL != "" {
		msg = messenger.NewWebhook(cfg.BridgeURL, cfg.BridgeSecret, cfg.DMRate)
	} else {
		slog.Warn("no bridge URL configured, outbound messages are only logged")
	}

	var guard coordinator.FireGuard = coordinator.NewMemoryGuard()
	if cfg.RedisAddr != "" {
		rg, err := coordinator.NewRedisGuard(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer rg.Close()
		guard = rg
	}

	coord := coordinator.New(machine, roster, msg, renderer, artifacts, guard, coordinator.Config{
		ChannelID: cfg.ChannelID,
		CloseAt:   closeAt,
		OpenDelay: cfg.OpenDelay,
	})

	// Create server
	mux := router.NewRouter(router.Deps{Machine: machine, Roster: roster, Coordinator: coord}, cfg)
	server := http.Server{
		Handler:           mux,
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	schedErr := make(chan error, 1)
	go func() {
		schedErr <- coord.Run(ctx)
	}()

	schedDone := false
	select {
	case err = <-serverErr:
	case err = <-schedErr:
		schedDone = true
	case <-ctx.Done():
	}
	stop()

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutErr := server.Shutdown(shutdownCtx); shutErr != nil {
		slog.Error("server shutdown failed", "error", shutErr)
	}

	// Run returns after in-flight notifications have been delivered
	if !schedDone {
		if runErr := <-schedErr; runErr != nil && err == nil {
			err = runErr
		}
	}
	coord.Wait()
	slog.Info("Server closed")
	return err
}

func newLogger(cfg cliparse.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
