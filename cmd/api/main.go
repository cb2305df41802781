package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvloznov/voice-ledger/internal/api"
	"github.com/dvloznov/voice-ledger/internal/app"
	"github.com/dvloznov/voice-ledger/internal/config"
	"github.com/dvloznov/voice-ledger/internal/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("LEDGER_CONFIG"), "Path to TOML config (or set LEDGER_CONFIG)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.New().Fatal().Err(err).Msg("Failed to load config")
	}
	log := app.NewLogger(cfg.Log)

	ctx := logger.WithContext(context.Background(), log)
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize assistant")
	}

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	if err := a.StartJobs(workerCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start backup worker")
	}

	srv := &api.Server{
		Assistant:  a.Service,
		OperatorID: cfg.Operator.ID,
		Origins:    cfg.Server.AllowedOrigins,
		Log:        log,
	}
	if a.Jobs != nil {
		srv.Jobs = a.Jobs
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", cfg.Server.Addr).
			Str("backend", cfg.Ledger.Backend).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	cancelWorker()
	if err := a.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error releasing resources")
	}

	log.Info().Msg("Server exited")
}
