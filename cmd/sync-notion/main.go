package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvloznov/voice-ledger/internal/app"
	"github.com/dvloznov/voice-ledger/internal/config"
	"github.com/dvloznov/voice-ledger/internal/logger"
	"github.com/dvloznov/voice-ledger/internal/notionsync"
)

func main() {
	configPath := flag.String("config", os.Getenv("LEDGER_CONFIG"), "Path to TOML config (or set LEDGER_CONFIG)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.New().Fatal().Err(err).Msg("Failed to load config")
	}
	log := app.NewLogger(cfg.Log)

	if cfg.Notion.Token == "" || cfg.Notion.DatabaseID == "" {
		log.Fatal().Msg("Error: notion.token and notion.database_id are required (or NOTION_TOKEN, NOTION_DATABASE_ID)")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	l, closeLedger, err := app.OpenLedger(ctx, cfg.Ledger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger")
	}
	defer closeLedger()

	syncer := &notionsync.Syncer{
		Ledger:     l,
		Notion:     notionsync.NewNotionClient(cfg.Notion.Token),
		DatabaseID: cfg.Notion.DatabaseID,
		DryRun:     *dryRun,
	}
	res, err := syncer.Sync(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d rows, %d created, %d archived, %d unchanged, %d failed.\n",
		res.Rows, res.Created, res.Archived, res.Skipped, res.Failed)
}
