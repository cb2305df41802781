// Package sqlite is a local ledger backend on an embedded SQLite file.
// Row indexes are positional: the first data row is row 2, as on a sheet.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/ledger"
)

// Migration is one versioned schema statement.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrations returns the schema in version order. Every statement is
// idempotent, so Migrate may run on each Open.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_ledger_rows", SQL: `CREATE TABLE IF NOT EXISTS ledger_rows (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			date           TEXT NOT NULL,
			operation_type TEXT NOT NULL,
			category       TEXT NOT NULL,
			description    TEXT NOT NULL,
			amount         TEXT NOT NULL,
			comment        TEXT NOT NULL DEFAULT '',
			created_at     TEXT NOT NULL DEFAULT (datetime('now'))
		)`},
		{Version: 2, Name: "index_ledger_rows_category", SQL: `CREATE INDEX IF NOT EXISTS ledger_rows_category ON ledger_rows (category)`},
	}
}

// DB is a ledger stored in one SQLite table.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Open: %w", err)
	}
	// One writer keeps positional row indexes stable between statements.
	db.SetMaxOpenConns(1)

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.Open: %w", err)
	}
	return &DB{db: db}, nil
}

// Migrate applies every statement from Migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, m := range Migrations() {
		if _, err := db.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("migration %04d_%s: %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// Close releases the database handle.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Append(ctx context.Context, t domain.Transaction) (int, error) {
	if err := t.Validate(); err != nil {
		return 0, fmt.Errorf("sqlite.Append: %w", err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite.Append: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_rows (date, operation_type, category, description, amount, comment)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.Date, string(t.OperationType), t.Category, t.Description, t.Amount.String(), t.Comment); err != nil {
		return 0, fmt.Errorf("sqlite.Append: insert: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_rows`).Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite.Append: count: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite.Append: commit: %w", err)
	}
	return count + 1, nil
}

func (d *DB) Delete(ctx context.Context, row int) error {
	if row < 2 {
		return fmt.Errorf("sqlite.Delete: row %d is not a data row", row)
	}
	res, err := d.db.ExecContext(ctx, `
		DELETE FROM ledger_rows
		WHERE id = (SELECT id FROM ledger_rows ORDER BY id LIMIT 1 OFFSET ?)
	`, row-2)
	if err != nil {
		return fmt.Errorf("sqlite.Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sqlite.Delete: row %d not found", row)
	}
	return nil
}

func (d *DB) ReadAll(ctx context.Context) ([]ledger.Entry, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT date, operation_type, category, description, amount, comment
		FROM ledger_rows ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite.ReadAll: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite.ReadAll: %w", err)
		}
		entries = append(entries, ledger.Entry{Row: len(entries) + 2, Transaction: t})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite.ReadAll: %w", err)
	}
	return entries, nil
}

func (d *DB) Tail(ctx context.Context) (ledger.Entry, bool, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT date, operation_type, category, description, amount, comment,
		       (SELECT COUNT(*) FROM ledger_rows)
		FROM ledger_rows ORDER BY id DESC LIMIT 1
	`)
	var (
		t      domain.Transaction
		op     string
		amount string
		count  int
	)
	err := row.Scan(&t.Date, &op, &t.Category, &t.Description, &amount, &t.Comment, &count)
	if err == sql.ErrNoRows {
		return ledger.Entry{}, false, nil
	}
	if err != nil {
		return ledger.Entry{}, false, fmt.Errorf("sqlite.Tail: %w", err)
	}
	t.OperationType = domain.OperationType(op)
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return ledger.Entry{}, false, fmt.Errorf("sqlite.Tail: amount %q: %w", amount, err)
	}
	return ledger.Entry{Row: count + 1, Transaction: t}, true, nil
}

func (d *DB) Reset(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM ledger_rows`); err != nil {
		return fmt.Errorf("sqlite.Reset: %w", err)
	}
	return nil
}

func scanTransaction(rows *sql.Rows) (domain.Transaction, error) {
	var (
		t      domain.Transaction
		op     string
		amount string
	)
	if err := rows.Scan(&t.Date, &op, &t.Category, &t.Description, &amount, &t.Comment); err != nil {
		return domain.Transaction{}, err
	}
	t.OperationType = domain.OperationType(op)
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("amount %q: %w", amount, err)
	}
	t.Amount = d
	return t, nil
}

var (
	_ ledger.Ledger = (*DB)(nil)
	_ ledger.Tailer = (*DB)(nil)
)
