package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/ledger"
)

// LedgerRepository is the BigQuery ledger backend. It holds a shared client
// to avoid creating a new connection for each operation.
type LedgerRepository struct {
	client *bigquery.Client
	table  Table
}

// NewLedgerRepository creates a client for projectID. An empty tableID
// selects DefaultLedgerTable.
func NewLedgerRepository(ctx context.Context, projectID, datasetID, tableID string) (*LedgerRepository, error) {
	if projectID == "" || datasetID == "" {
		return nil, fmt.Errorf("NewLedgerRepository: project and dataset are required")
	}
	if tableID == "" {
		tableID = DefaultLedgerTable
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewLedgerRepository: creating client: %w", err)
	}
	return &LedgerRepository{
		client: client,
		table:  Table{ProjectID: projectID, DatasetID: datasetID, TableID: tableID},
	}, nil
}

// Close closes the BigQuery client connection.
func (r *LedgerRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// EnsureTable creates the ledger table if needed.
func (r *LedgerRepository) EnsureTable(ctx context.Context) error {
	return EnsureLedgerTableWithClient(ctx, r.client, r.table)
}

func (r *LedgerRepository) Append(ctx context.Context, t domain.Transaction) (int, error) {
	if err := t.Validate(); err != nil {
		return 0, fmt.Errorf("LedgerRepository.Append: %w", err)
	}
	rowNo, err := NextRowNoWithClient(ctx, r.client, r.table)
	if err != nil {
		return 0, fmt.Errorf("LedgerRepository.Append: %w", err)
	}
	row, err := NewLedgerRow(uuid.NewString(), rowNo, t, nowUTC())
	if err != nil {
		return 0, fmt.Errorf("LedgerRepository.Append: %w", err)
	}
	if err := InsertLedgerRowWithClient(ctx, r.client, r.table, row); err != nil {
		return 0, fmt.Errorf("LedgerRepository.Append: %w", err)
	}
	return rowNo, nil
}

func (r *LedgerRepository) Delete(ctx context.Context, row int) error {
	if row < 2 {
		return fmt.Errorf("LedgerRepository.Delete: row %d is not a data row", row)
	}
	return DeleteLedgerRowWithClient(ctx, r.client, r.table, row)
}

func (r *LedgerRepository) ReadAll(ctx context.Context) ([]ledger.Entry, error) {
	rows, err := ListLedgerRowsWithClient(ctx, r.client, r.table)
	if err != nil {
		return nil, fmt.Errorf("LedgerRepository.ReadAll: %w", err)
	}
	return entriesFromRows(rows), nil
}

func (r *LedgerRepository) Tail(ctx context.Context) (ledger.Entry, bool, error) {
	row, err := LastLedgerRowWithClient(ctx, r.client, r.table)
	if err != nil {
		return ledger.Entry{}, false, fmt.Errorf("LedgerRepository.Tail: %w", err)
	}
	if row == nil {
		return ledger.Entry{}, false, nil
	}
	return ledger.Entry{Row: int(row.RowNo), Transaction: row.Transaction()}, true, nil
}

func (r *LedgerRepository) Reset(ctx context.Context) error {
	return TruncateLedgerWithClient(ctx, r.client, r.table)
}

func entriesFromRows(rows []*LedgerRow) []ledger.Entry {
	entries := make([]ledger.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, ledger.Entry{Row: int(row.RowNo), Transaction: row.Transaction()})
	}
	return entries
}

var (
	_ ledger.Ledger = (*LedgerRepository)(nil)
	_ ledger.Tailer = (*LedgerRepository)(nil)
)
