// Package config loads runtime settings from a TOML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Ledger backends.
const (
	BackendSheets   = "sheets"
	BackendSQLite   = "sqlite"
	BackendBigQuery = "bigquery"
)

// Config holds all settings.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Operator OperatorConfig `toml:"operator"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Model    ModelConfig    `toml:"model"`
	Backup   BackupConfig   `toml:"backup"`
	Events   EventsConfig   `toml:"events"`
	Notion   NotionConfig   `toml:"notion"`
	Log      LogConfig      `toml:"log"`
}

type ServerConfig struct {
	Addr            string        `toml:"addr"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
	// AllowedOrigins feeds the CORS middleware; "*" allows any.
	AllowedOrigins []string `toml:"allowed_origins"`
}

// OperatorConfig names the single user allowed to act on the ledger.
type OperatorConfig struct {
	ID         int64         `toml:"id"`
	UndoWindow time.Duration `toml:"undo_window"`
}

type LedgerConfig struct {
	Backend       string        `toml:"backend"`
	RetryAttempts int           `toml:"retry_attempts"`
	RetryBackoff  time.Duration `toml:"retry_backoff"`

	SpreadsheetID   string `toml:"spreadsheet_id"`
	SheetName       string `toml:"sheet_name"`
	CredentialsFile string `toml:"credentials_file"`

	SQLitePath string `toml:"sqlite_path"`

	BigQueryProject string `toml:"bigquery_project"`
	BigQueryDataset string `toml:"bigquery_dataset"`
	BigQueryTable   string `toml:"bigquery_table"`
}

type ModelConfig struct {
	APIKey          string        `toml:"api_key"`
	Name            string        `toml:"name"`
	TranscribeModel string        `toml:"transcribe_model"`
	Timeout         time.Duration `toml:"timeout"`
	// Disabled runs the classifier on rules only.
	Disabled bool `toml:"disabled"`
}

type BackupConfig struct {
	Dir    string `toml:"dir"`
	Bucket string `toml:"bucket"`
	Prefix string `toml:"prefix"`
}

// EventsConfig enables ledger change events when RabbitURL is set.
type EventsConfig struct {
	RabbitURL string `toml:"rabbit_url"`
	Exchange  string `toml:"exchange"`
}

type NotionConfig struct {
	Token      string `toml:"token"`
	DatabaseID string `toml:"database_id"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Operator: OperatorConfig{UndoWindow: time.Hour},
		Ledger: LedgerConfig{
			Backend:       BackendSQLite,
			RetryAttempts: 3,
			RetryBackoff:  500 * time.Millisecond,
			SheetName:     "Финансы",
			SQLitePath:    "ledger.db",
			BigQueryTable: "ledger_rows",
		},
		Model: ModelConfig{
			Name:            "gemini-2.5-flash",
			TranscribeModel: "gemini-2.5-flash",
			Timeout:         30 * time.Second,
		},
		Backup: BackupConfig{Dir: "backups", Prefix: "backups"},
		Events: EventsConfig{Exchange: "voice-ledger.events"},
		Log:    LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config.Load: decoding %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Addr = getEnv("HTTP_ADDR", c.Server.Addr)

	c.Ledger.Backend = getEnv("LEDGER_BACKEND", c.Ledger.Backend)
	c.Ledger.SpreadsheetID = getEnv("SPREADSHEET_ID", c.Ledger.SpreadsheetID)
	c.Ledger.SheetName = getEnv("SHEET_NAME", c.Ledger.SheetName)
	c.Ledger.CredentialsFile = getEnv("GOOGLE_APPLICATION_CREDENTIALS", c.Ledger.CredentialsFile)
	c.Ledger.SQLitePath = getEnv("SQLITE_PATH", c.Ledger.SQLitePath)
	c.Ledger.BigQueryProject = getEnv("BIGQUERY_PROJECT", c.Ledger.BigQueryProject)
	c.Ledger.BigQueryDataset = getEnv("BIGQUERY_DATASET", c.Ledger.BigQueryDataset)

	c.Model.APIKey = getEnv("GEMINI_API_KEY", c.Model.APIKey)
	c.Model.Name = getEnv("GEMINI_MODEL", c.Model.Name)

	c.Backup.Dir = getEnv("BACKUP_DIR", c.Backup.Dir)
	c.Backup.Bucket = getEnv("BACKUP_BUCKET", c.Backup.Bucket)

	c.Events.RabbitURL = getEnv("RABBITMQ_URL", c.Events.RabbitURL)
	c.Events.Exchange = getEnv("RABBITMQ_EXCHANGE", c.Events.Exchange)

	c.Notion.Token = getEnv("NOTION_TOKEN", c.Notion.Token)
	c.Notion.DatabaseID = getEnv("NOTION_DATABASE_ID", c.Notion.DatabaseID)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	if v := os.Getenv("OPERATOR_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("OPERATOR_ID: %w", err)
		}
		c.Operator.ID = id
	}
	if v := os.Getenv("MODEL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("MODEL_TIMEOUT: %w", err)
		}
		c.Model.Timeout = d
	}
	return nil
}

// Validate checks that the selected backend has what it needs.
func (c *Config) Validate() error {
	var errs []error
	if c.Operator.ID == 0 {
		errs = append(errs, errors.New("operator.id is required"))
	}
	if c.Operator.UndoWindow <= 0 {
		errs = append(errs, errors.New("operator.undo_window must be positive"))
	}

	switch c.Ledger.Backend {
	case BackendSheets:
		if c.Ledger.SpreadsheetID == "" {
			errs = append(errs, errors.New("ledger.spreadsheet_id is required for the sheets backend"))
		}
	case BackendSQLite:
		if c.Ledger.SQLitePath == "" {
			errs = append(errs, errors.New("ledger.sqlite_path is required for the sqlite backend"))
		}
	case BackendBigQuery:
		if c.Ledger.BigQueryProject == "" || c.Ledger.BigQueryDataset == "" {
			errs = append(errs, errors.New("ledger.bigquery_project and ledger.bigquery_dataset are required for the bigquery backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ledger.backend %q", c.Ledger.Backend))
	}

	if !c.Model.Disabled && c.Model.Timeout <= 0 {
		errs = append(errs, errors.New("model.timeout must be positive"))
	}
	if (c.Notion.Token == "") != (c.Notion.DatabaseID == "") {
		errs = append(errs, errors.New("notion.token and notion.database_id must be set together"))
	}
	return errors.Join(errs...)
}

// getEnv retrieves an environment variable or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
