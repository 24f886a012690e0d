package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/coordinate-system/meeting-system/internal/app"
	"github.com/coordinate-system/meeting-system/internal/config"
	"github.com/coordinate-system/meeting-system/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("Application error", logger.Error(err))
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envPath := config.EnvFile()
	cfg, err := config.LoadWithFile(envPath)
	if err != nil {
		log.Error("Failed to load infrastructure config", logger.Error(err), logger.Path(envPath))
		return err
	}
	features, err := config.LoadFeatureConfigOrDefault(cfg.ConfigPath)
	if err != nil {
		log.Error("Failed to load feature config", logger.Error(err), logger.Path(cfg.ConfigPath))
		return err
	}

	a := app.New(cfg, features, log)
	if err := a.Initialize(ctx); err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("Failed to close resources", logger.Error(err))
		}
	}()

	router, err := a.Router()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", logger.F("ADDR", cfg.HTTPAddr), logger.Driver(cfg.DBDriver))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down", logger.Status("stopping"))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
