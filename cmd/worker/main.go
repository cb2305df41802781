package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvloznov/voice-ledger/internal/app"
	"github.com/dvloznov/voice-ledger/internal/assistant"
	"github.com/dvloznov/voice-ledger/internal/config"
	"github.com/dvloznov/voice-ledger/internal/logger"
)

type backuper interface {
	Backup(ctx context.Context, userID int64) (assistant.Reply, error)
}

func main() {
	configPath := flag.String("config", os.Getenv("LEDGER_CONFIG"), "Path to TOML config (or set LEDGER_CONFIG)")
	every := flag.Duration("every", 24*time.Hour, "Interval between scheduled backups")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.New().Fatal().Err(err).Msg("Failed to load config")
	}
	log := app.NewLogger(cfg.Log)

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize assistant")
	}
	if err := a.StartJobs(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Dur("every", *every).Str("bucket", cfg.Backup.Bucket).Msg("Backup worker started")
	go runSchedule(ctx, a.Service, cfg.Operator.ID, time.NewTicker(*every).C)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down backup worker...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Msg("Backup worker exited")
}

// runSchedule takes one backup immediately and one per tick until ctx ends.
// A failed backup is logged; the next tick tries again.
func runSchedule(ctx context.Context, svc backuper, userID int64, tick <-chan time.Time) int {
	log := logger.FromContext(ctx)
	taken := 0
	for {
		reply, err := svc.Backup(ctx, userID)
		if err != nil {
			log.Error().Err(err).Msg("Scheduled backup failed")
		} else {
			taken++
			ev := log.Info().Str("file", reply.Backup.FileName).Int("records", reply.Backup.Records)
			if reply.Backup.JobID != "" {
				ev = ev.Str("job_id", reply.Backup.JobID)
			}
			ev.Msg("Scheduled backup written")
		}

		select {
		case <-ctx.Done():
			return taken
		case <-tick:
		}
	}
}
