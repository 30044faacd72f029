package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devconnecthq/devconnect/account"
	"github.com/devconnecthq/devconnect/api"
	"github.com/devconnecthq/devconnect/api/validator"
	"github.com/devconnecthq/devconnect/auth"
	"github.com/devconnecthq/devconnect/config"
	"github.com/devconnecthq/devconnect/feed"
	"github.com/devconnecthq/devconnect/postgres"
	"github.com/devconnecthq/devconnect/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := newLogger(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pg, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Error("Could not connect to Postgres", "error", err.Error())
		os.Exit(1)
	}
	cache, err := redis.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("Could not connect to Redis", "error", err.Error())
		os.Exit(1)
	}

	authn := auth.New(cfg.JWTSecret, cfg.TokenTTL)
	accounts := &account.Service{Store: pg, Tokens: authn}
	engine := &feed.Engine{Store: pg, Directory: accounts, Logger: logger}

	a := &api.API{
		Logger:   logger,
		Auth:     authn,
		Engine:   engine,
		Accounts: accounts,
		Cache:    cache,
		Val:      validator.New(),
	}

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: a,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown error", "error", err.Error())
		}
	}()

	logger.Info("Server listening", "addr", cfg.Addr, "env", cfg.Env)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err.Error())
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.Env == "local" {
		return slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
