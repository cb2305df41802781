package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvloznov/voice-ledger/internal/app"
	"github.com/dvloznov/voice-ledger/internal/assistant"
	"github.com/dvloznov/voice-ledger/internal/config"
	"github.com/dvloznov/voice-ledger/internal/logger"
)

// Stats counts the outcome of a bulk ingest.
type Stats struct {
	Lines     int
	Recorded  int
	Pending   int
	Skipped   int
	Failed    int
	Confirmed int
}

type recorder interface {
	HandleText(ctx context.Context, userID int64, utterance string) (assistant.Reply, error)
	Confirm(ctx context.Context, userID int64) (assistant.Reply, error)
}

func main() {
	configPath := flag.String("config", os.Getenv("LEDGER_CONFIG"), "Path to TOML config (or set LEDGER_CONFIG)")
	file := flag.String("file", "-", "File with one utterance per line; - reads stdin")
	autoConfirm := flag.Bool("confirm", false, "Record low-confidence results without asking")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.New().Fatal().Err(err).Msg("Failed to load config")
	}
	log := app.NewLogger(cfg.Log)

	in := os.Stdin
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			log.Fatal().Err(err).Str("file", *file).Msg("Error: cannot open input")
		}
		defer f.Close()
		in = f
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize assistant")
	}
	defer a.Close()

	log.Info().Str("file", *file).Bool("auto_confirm", *autoConfirm).Msg("Starting ingestion")

	stats, err := ingest(ctx, a.Service, cfg.Operator.ID, in, *autoConfirm)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	log.Info().
		Int("lines", stats.Lines).
		Int("recorded", stats.Recorded).
		Int("confirmed", stats.Confirmed).
		Int("pending", stats.Pending).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("Ingestion completed")
	fmt.Printf("Ingestion completed: %d recorded, %d skipped, %d failed.\n", stats.Recorded+stats.Confirmed, stats.Skipped, stats.Failed)
}

// ingest feeds each non-empty line of r to the assistant as a typed message.
// Lines starting with # are comments. Per-line failures are logged and
// counted; only a read error aborts the run.
func ingest(ctx context.Context, svc recorder, userID int64, r io.Reader, autoConfirm bool) (Stats, error) {
	log := logger.FromContext(ctx)
	var stats Stats

	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		stats.Lines++

		reply, err := svc.HandleText(ctx, userID, line)
		if err != nil {
			stats.Failed++
			log.Error().Err(err).Int("line", lineNo).Str("text", line).Msg("Line failed")
			continue
		}

		switch reply.Kind {
		case assistant.KindRecorded:
			stats.Recorded++
		case assistant.KindConfirm:
			if !autoConfirm {
				stats.Pending++
				log.Warn().Int("line", lineNo).Str("text", line).Msg("Low confidence, not recorded")
				continue
			}
			if _, err := svc.Confirm(ctx, userID); err != nil {
				stats.Failed++
				log.Error().Err(err).Int("line", lineNo).Msg("Confirm failed")
				continue
			}
			stats.Confirmed++
		default:
			stats.Skipped++
			log.Info().Int("line", lineNo).Str("kind", string(reply.Kind)).Msg("Not a ledger operation, skipped")
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("reading input: %w", err)
	}
	return stats, nil
}
