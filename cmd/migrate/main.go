package main

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	_ "modernc.org/sqlite"

	"github.com/dvloznov/voice-ledger/internal/app"
	"github.com/dvloznov/voice-ledger/internal/config"
	infraBQ "github.com/dvloznov/voice-ledger/internal/infra/bigquery"
	"github.com/dvloznov/voice-ledger/internal/ledger/sheets"
	"github.com/dvloznov/voice-ledger/internal/ledger/sqlite"
)

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

var (
	configPath = flag.String("config", os.Getenv("LEDGER_CONFIG"), "Path to TOML config (or set LEDGER_CONFIG)")
	appliedBy  = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}
	log := app.NewLogger(cfg.Log)
	ctx := context.Background()

	if err := prepare(ctx, cfg.Ledger, log); err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Ledger.Backend).Msg("Migration failed")
	}
}

// prepare brings the configured backend to the current schema.
func prepare(ctx context.Context, cfg config.LedgerConfig, log zerolog.Logger) error {
	switch cfg.Backend {
	case config.BackendSQLite:
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("opening %s: %w", cfg.SQLitePath, err)
		}
		defer db.Close()
		n, err := migrateSQLite(ctx, db, sqlite.Migrations(), *appliedBy, log)
		if err != nil {
			return err
		}
		if n == 0 {
			log.Info().Msg("No new migrations to apply. Database is up to date.")
		} else {
			log.Info().Int("applied", n).Msg("Successfully applied migrations")
		}
		return nil

	case config.BackendBigQuery:
		repo, err := infraBQ.NewLedgerRepository(ctx, cfg.BigQueryProject, cfg.BigQueryDataset, cfg.BigQueryTable)
		if err != nil {
			return err
		}
		defer repo.Close()
		if err := repo.EnsureTable(ctx); err != nil {
			return err
		}
		log.Info().Str("project", cfg.BigQueryProject).Str("dataset", cfg.BigQueryDataset).Msg("Ledger table ready")
		return nil

	case config.BackendSheets:
		var opts []option.ClientOption
		if cfg.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		l, err := sheets.New(ctx, cfg.SpreadsheetID, cfg.SheetName, opts...)
		if err != nil {
			return err
		}
		if err := l.EnsureHeader(ctx); err != nil {
			return err
		}
		log.Info().Str("spreadsheet", cfg.SpreadsheetID).Msg("Header row ready")
		return nil
	}
	return fmt.Errorf("unknown backend %q", cfg.Backend)
}

// migrateSQLite applies the migrations not yet recorded in schema_migrations
// and returns how many ran. A recorded migration whose checksum changed is
// reported and left alone.
func migrateSQLite(ctx context.Context, db *sql.DB, migrations []sqlite.Migration, by string, log zerolog.Logger) (int, error) {
	if err := ensureSchemaMigrationsTable(ctx, db); err != nil {
		return 0, fmt.Errorf("ensuring schema_migrations: %w", err)
	}
	applied, err := getAppliedMigrations(ctx, db)
	if err != nil {
		return 0, err
	}
	log.Info().Int("found", len(migrations)).Int("applied", len(applied)).Msg("Read migrations")

	byVersion := make(map[int]AppliedMigration, len(applied))
	for _, am := range applied {
		byVersion[am.Version] = am
	}

	count := 0
	for _, m := range migrations {
		sum := checksum(m.SQL)
		if am, ok := byVersion[m.Version]; ok {
			if am.Checksum != sum {
				log.Warn().Int("version", m.Version).Str("name", m.Name).Msg("Applied migration changed since it ran")
			}
			log.Debug().Msgf("[SKIP] %04d_%s (already applied)", m.Version, m.Name)
			continue
		}

		log.Info().Msgf("[RUN]  %04d_%s", m.Version, m.Name)
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return count, err
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return count, fmt.Errorf("executing %04d_%s: %w", m.Version, m.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name, applied_at, checksum, applied_by) VALUES (?, ?, ?, ?, ?)`,
			m.Version, m.Name, time.Now().UTC().Format(time.RFC3339), sum, by,
		); err != nil {
			tx.Rollback()
			return count, fmt.Errorf("recording %04d_%s: %w", m.Version, m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func ensureSchemaMigrationsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TEXT NOT NULL,
		checksum   TEXT,
		applied_by TEXT
	)`)
	return err
}

func getAppliedMigrations(ctx context.Context, db *sql.DB) ([]AppliedMigration, error) {
	rows, err := db.QueryContext(ctx, `SELECT version, name, applied_at, checksum, applied_by FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			am                  AppliedMigration
			appliedAt           string
			sum, appliedByValue sql.NullString
		)
		if err := rows.Scan(&am.Version, &am.Name, &appliedAt, &sum, &appliedByValue); err != nil {
			return nil, fmt.Errorf("scanning applied migration: %w", err)
		}
		am.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt)
		am.Checksum = sum.String
		am.AppliedBy = appliedByValue.String
		applied = append(applied, am)
	}
	return applied, rows.Err()
}

func checksum(stmt string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(stmt)))
}
