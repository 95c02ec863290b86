package main

import (
	"context"
	"errors"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	rediscache "github.com/vncsmyrnk/awards/internal/adapters/cache/redis"
	"github.com/vncsmyrnk/awards/internal/adapters/handler/http"
	"github.com/vncsmyrnk/awards/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/awards/internal/config"
	"github.com/vncsmyrnk/awards/internal/core/ports"
	"github.com/vncsmyrnk/awards/internal/core/services"
)

func main() {
	cfg, err := config.Load(os.Args[0], os.Args[1:])
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := cfg.ConnectionProvider(logger)
	if err != nil {
		logger.Error("failed to build connection provider", "error", err)
		os.Exit(1)
	}

	var cache ports.PopularityCache
	if cfg.Redis.Enabled() {
		client, err := rediscache.NewClient(ctx, rediscache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn("popularity cache disabled", "error", err)
		} else {
			defer client.Close()
			cache = rediscache.NewPopularityCache(client, cfg.Redis.TTL)
		}
	}

	// Initialize Services
	voteService := services.NewVoteService(provider, postgres.NewVoterRepository(), postgres.NewVoteLedger(logger), cfg.AttemptTimeout, logger)
	popularityService := services.NewPopularityService(provider, postgres.NewPopularityRepository(), cache, logger)
	settingsService := services.NewSettingsService(cfg.VotingPageOpen, logger)

	handler := http.NewHandler(
		http.NewVoteHandler(voteService, logger),
		http.NewPopularityHandler(popularityService, logger),
		http.NewSettingsHandler(settingsService, cfg.Operators()),
	)
	server := &stdhttp.Server{Addr: cfg.HTTPAddr, Handler: handler}

	go func() {
		logger.Info("server listening", "addr", cfg.HTTPAddr, "tunnel", cfg.SSH.Enabled(), "cache", cache != nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("gracefully shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
		os.Exit(1)
	}
}
