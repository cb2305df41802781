// Package app assembles the assistant and its collaborators from config.
// Every command under cmd/ builds its runtime through here.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/dvloznov/voice-ledger/internal/assistant"
	"github.com/dvloznov/voice-ledger/internal/backup"
	"github.com/dvloznov/voice-ledger/internal/classifier"
	"github.com/dvloznov/voice-ledger/internal/config"
	"github.com/dvloznov/voice-ledger/internal/contextstore"
	"github.com/dvloznov/voice-ledger/internal/events"
	"github.com/dvloznov/voice-ledger/internal/extract"
	"github.com/dvloznov/voice-ledger/internal/gcsuploader"
	infraBQ "github.com/dvloznov/voice-ledger/internal/infra/bigquery"
	"github.com/dvloznov/voice-ledger/internal/intent"
	"github.com/dvloznov/voice-ledger/internal/jobs"
	"github.com/dvloznov/voice-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/voice-ledger/internal/ledger"
	"github.com/dvloznov/voice-ledger/internal/ledger/sheets"
	"github.com/dvloznov/voice-ledger/internal/ledger/sqlite"
	"github.com/dvloznov/voice-ledger/internal/logger"
	"github.com/dvloznov/voice-ledger/internal/transcribe"
)

// JobQueueSize is the buffer of the in-memory backup queue.
const JobQueueSize = 100

// App is a fully wired runtime.
type App struct {
	Config  *config.Config
	Log     zerolog.Logger
	Ledger  ledger.Ledger
	Service *assistant.Service

	// Jobs and Queue are nil when no backup bucket is configured.
	Jobs  *inmemory.Store
	Queue *inmemory.Queue

	remote  *gcsuploader.BackupStore
	closers []func() error
}

// NewLogger builds the process logger from the [log] section.
func NewLogger(cfg config.LogConfig) zerolog.Logger {
	return logger.NewWithOptions(logger.Options{Level: cfg.Level, Format: logger.Format(cfg.Format)})
}

// OpenLedger opens the configured backend wrapped with metrics and append
// retries. The returned func releases it.
func OpenLedger(ctx context.Context, cfg config.LedgerConfig) (ledger.Ledger, func() error, error) {
	var (
		base   ledger.Ledger
		closer = func() error { return nil }
	)
	switch cfg.Backend {
	case config.BackendSheets:
		var opts []option.ClientOption
		if cfg.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		l, err := sheets.New(ctx, cfg.SpreadsheetID, cfg.SheetName, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("OpenLedger: %w", err)
		}
		base = l
	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("OpenLedger: %w", err)
		}
		base, closer = db, db.Close
	case config.BackendBigQuery:
		repo, err := infraBQ.NewLedgerRepository(ctx, cfg.BigQueryProject, cfg.BigQueryDataset, cfg.BigQueryTable)
		if err != nil {
			return nil, nil, fmt.Errorf("OpenLedger: %w", err)
		}
		base, closer = repo, repo.Close
	default:
		return nil, nil, fmt.Errorf("OpenLedger: unknown backend %q", cfg.Backend)
	}

	l := ledger.WithRetry(ledger.WithMetrics(base, cfg.Backend), cfg.RetryAttempts, cfg.RetryBackoff)
	return l, closer, nil
}

// New wires the assistant from cfg. Optional integrations (model, backup
// bucket, RabbitMQ) are skipped when not configured.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	l, closeLedger, err := OpenLedger(ctx, cfg.Ledger)
	if err != nil {
		return nil, err
	}
	a.Ledger = l
	a.closers = append(a.closers, closeLedger)

	normalizer := extract.NewTableNormalizer()
	var (
		model       classifier.Strategy
		transcriber transcribe.Transcriber
	)
	if !cfg.Model.Disabled {
		client, err := classifier.NewGeminiClient(ctx, cfg.Model.APIKey)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("app.New: %w", err)
		}
		model = classifier.NewGeminiStrategy(client.Models, cfg.Model.Name)
		transcriber = transcribe.NewGemini(client.Models, cfg.Model.TranscribeModel)
	} else {
		log.Warn().Msg("model disabled, classifying with rules only")
	}
	router := intent.NewRouter()
	hybrid := classifier.NewHybrid(
		classifier.NewCommandClassifier(router),
		classifier.NewExtractionClassifier(model, classifier.NewRuleStrategy(normalizer), cfg.Model.Timeout),
	)

	var publisher events.Publisher = events.Nop{}
	if cfg.Events.RabbitURL != "" {
		rp, err := events.NewRabbitPublisher(cfg.Events.RabbitURL, cfg.Events.Exchange)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("app.New: %w", err)
		}
		publisher = rp
		a.closers = append(a.closers, rp.Close)
	}

	var (
		jobPublisher jobs.Publisher
		remote       backup.Loader
	)
	if cfg.Backup.Bucket != "" {
		store, err := gcsuploader.NewBackupStore(ctx, cfg.Backup.Bucket, cfg.Backup.Prefix)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("app.New: %w", err)
		}
		a.remote = store
		a.closers = append(a.closers, store.Close)
		a.Jobs = inmemory.NewStore()
		a.Queue = inmemory.NewQueue(JobQueueSize, a.Jobs)
		jobPublisher, remote = a.Queue, store
	}

	a.Service = assistant.New(assistant.Deps{
		Ledger:      l,
		Classifier:  hybrid,
		Extractor:   newExtractor(normalizer, router),
		Contexts:    contextstore.New(),
		Transcriber: transcriber,
		Events:      publisher,
		Backups:     backup.LocalStore{Dir: cfg.Backup.Dir},
		Jobs:        jobPublisher,
		Remote:      remote,
		UndoWindow:  cfg.Operator.UndoWindow,
	})
	return a, nil
}

// newExtractor builds the parameter extractor so that words the router
// reacts to ("Топ", "Платили") are never taken for names.
func newExtractor(normalizer extract.NameNormalizer, router *intent.Router) *extract.Extractor {
	return extract.New(normalizer, router.Keywords()...)
}

// StartJobs launches the backup upload workers; they stop when ctx is done
// or on Shutdown. It is a no-op without a configured bucket.
func (a *App) StartJobs(ctx context.Context) error {
	if a.Queue == nil {
		return nil
	}
	a.Log.Info().Str("bucket", a.Config.Backup.Bucket).Msg("Starting backup upload worker")
	if err := a.Queue.Start(logger.WithContext(ctx, a.Log), jobs.UploadHandler(a.remote)); err != nil {
		return fmt.Errorf("StartJobs: %w", err)
	}
	return nil
}

// Shutdown drains the job queue and releases every resource.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.Queue != nil {
		if err := a.Queue.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop job queue: %w", err))
		}
		if err := a.Queue.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close job queue: %w", err))
		}
	}
	if err := a.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close releases clients in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
