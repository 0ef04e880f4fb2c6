package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rental-service/internal/config"
	"rental-service/internal/events"
	natspub "rental-service/internal/events/nats"
	"rental-service/internal/http-server/router"
	"rental-service/internal/lock"
	"rental-service/internal/metrics"
	"rental-service/internal/recurrence"
	svc "rental-service/internal/service"
	"rental-service/internal/storage/memory"
	"rental-service/internal/storage/postgres"
	slogpretty "rental-service/pkg/handlers/slogPretty"
	"rental-service/pkg/sl"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

type storage interface {
	svc.Store
	io.Closer
}

type locker interface {
	lock.Locker
	io.Closer
}

func main() {

	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting API", slog.String("env", cfg.Env), slog.String("storage", cfg.Storage))
	log.Debug("Debug messages are enabled")

	store, err := setupStorage(cfg)
	if err != nil {
		log.Error("Failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	locks, err := setupLocker(cfg)
	if err != nil {
		log.Error("Failed to init locker", sl.Err(err))
		os.Exit(1)
	}

	var publisher events.Publisher = events.NopPublisher{}
	var natsPublisher *natspub.Publisher
	if cfg.NATS.URL != "" {
		natsPublisher, err = natspub.NewPublisher(cfg.NATS.URL, cfg.NATS.ConnectTimeout, log)
		if err != nil {
			log.Error("Failed to connect to NATS", sl.Err(err))
			os.Exit(1)
		}
		publisher = natsPublisher
	} else {
		log.Warn("NATS url is empty, domain events are disabled")
	}

	m := metrics.New()

	expander := recurrence.NewExpander(cfg.Location(), recurrence.Options{
		MaxOccurrences: cfg.Recurrence.MaxOccurrences,
		MaxSpanDays:    cfg.Recurrence.MaxSpanDays,
	})

	service := svc.NewService(log, store, locks, expander, publisher, m, cfg.LockTTL)

	serv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router.New(log, service, m),
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErrCh := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", slog.String("addr", cfg.Address))
		if err := serv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serverErrCh:
		if err != nil {
			log.Error("HTTP server stopped unexpectedly", sl.Err(err))
		} else {
			log.Info("HTTP server stopped gracefully")
		}
	}

	shutdownTimeout := cfg.HTTPServer.ShutdownTimeout

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("Shutting down HTTP server", slog.String("timeout", shutdownTimeout.String()))

	if err := serv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", sl.Err(err))
	} else {
		log.Info("Server shutdown complete")
	}

	if natsPublisher != nil {
		if err := natsPublisher.Close(); err != nil {
			log.Error("Failed to drain NATS connection", sl.Err(err))
		}
	}

	if err := store.Close(); err != nil {
		log.Error("Failed to close storage", sl.Err(err))
	} else {
		log.Info("Storage closed")
	}

	if err := locks.Close(); err != nil {
		log.Error("Failed to close locker", sl.Err(err))
	} else {
		log.Info("Locker closed")
	}

	log.Info("Shutdown finished, server stopped")

}

func setupStorage(cfg *config.Config) (storage, error) {
	if cfg.Storage == "memory" {
		return memory.New(), nil
	}

	pg, err := postgres.New(cfg.StoragePath)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := pg.Migrate(ctx); err != nil {
		_ = pg.Close()
		return nil, err
	}

	return pg, nil
}

func setupLocker(cfg *config.Config) (locker, error) {
	if cfg.RedisAddr == "" {
		return lock.NewMemoryLock(), nil
	}

	return lock.NewRedisLock(cfg.RedisAddr)
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
