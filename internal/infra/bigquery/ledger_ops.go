package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// DefaultLedgerTable is the table name used when none is configured.
const DefaultLedgerTable = "ledger_rows"

// Table identifies the ledger table.
type Table struct {
	ProjectID string
	DatasetID string
	TableID   string
}

func (t Table) ref() string {
	return "`" + t.ProjectID + "." + t.DatasetID + "." + t.TableID + "`"
}

// EnsureLedgerTableWithClient creates the ledger table when it does not exist.
func EnsureLedgerTableWithClient(ctx context.Context, client *bigquery.Client, t Table) error {
	schema, err := bigquery.InferSchema(LedgerRow{})
	if err != nil {
		return fmt.Errorf("EnsureLedgerTable: inferring schema: %w", err)
	}
	table := client.DatasetInProject(t.ProjectID, t.DatasetID).Table(t.TableID)
	err = table.Create(ctx, &bigquery.TableMetadata{Schema: schema})
	if err != nil {
		if apiErr, ok := err.(*googleapi.Error); ok && apiErr.Code == 409 {
			return nil
		}
		return fmt.Errorf("EnsureLedgerTable: creating table: %w", err)
	}
	return nil
}

// NextRowNoWithClient returns the row index the next append will take.
func NextRowNoWithClient(ctx context.Context, client *bigquery.Client, t Table) (int, error) {
	q := client.Query(`SELECT COALESCE(MAX(row_no), 1) + 1 AS next FROM ` + t.ref())
	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("NextRowNo: query read: %w", err)
	}
	var out struct {
		Next int64 `bigquery:"next"`
	}
	if err := it.Next(&out); err != nil {
		return 0, fmt.Errorf("NextRowNo: iter next: %w", err)
	}
	return int(out.Next), nil
}

// InsertLedgerRowWithClient writes one row with a DML insert so it is
// visible to the next query immediately (streaming inserts are not).
func InsertLedgerRowWithClient(ctx context.Context, client *bigquery.Client, t Table, row *LedgerRow) error {
	q := client.Query(`
		INSERT ` + t.ref() + ` (
			entry_id,
			row_no,
			operation_date,
			operation_type,
			category,
			description,
			amount,
			comment,
			created_ts
		)
		VALUES (
			@entry_id,
			@row_no,
			@operation_date,
			@operation_type,
			@category,
			@description,
			@amount,
			@comment,
			@created_ts
		)
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "entry_id", Value: row.EntryID},
		{Name: "row_no", Value: row.RowNo},
		{Name: "operation_date", Value: row.OperationDate},
		{Name: "operation_type", Value: row.OperationType},
		{Name: "category", Value: row.Category},
		{Name: "description", Value: row.Description},
		{Name: "amount", Value: row.Amount},
		{Name: "comment", Value: row.Comment},
		{Name: "created_ts", Value: row.CreatedTS},
	}
	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertLedgerRow: %w", err)
	}
	return nil
}

// ListLedgerRowsWithClient reads every row in row order.
func ListLedgerRowsWithClient(ctx context.Context, client *bigquery.Client, t Table) ([]*LedgerRow, error) {
	return queryLedgerRows(ctx, client, `
		SELECT entry_id, row_no, operation_date, operation_type, category,
		       description, amount, comment, created_ts
		FROM `+t.ref()+`
		ORDER BY row_no
	`)
}

// LastLedgerRowWithClient reads the row with the highest index, or nil.
func LastLedgerRowWithClient(ctx context.Context, client *bigquery.Client, t Table) (*LedgerRow, error) {
	rows, err := queryLedgerRows(ctx, client, `
		SELECT entry_id, row_no, operation_date, operation_type, category,
		       description, amount, comment, created_ts
		FROM `+t.ref()+`
		ORDER BY row_no DESC
		LIMIT 1
	`)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func queryLedgerRows(ctx context.Context, client *bigquery.Client, sql string) ([]*LedgerRow, error) {
	it, err := client.Query(sql).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("queryLedgerRows: query read: %w", err)
	}

	var rows []*LedgerRow
	for {
		var r LedgerRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("queryLedgerRows: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}

// DeleteLedgerRowWithClient removes the row at rowNo and shifts later rows
// up by one, matching a spreadsheet row deletion.
func DeleteLedgerRowWithClient(ctx context.Context, client *bigquery.Client, t Table, rowNo int) error {
	del := client.Query(`DELETE FROM ` + t.ref() + ` WHERE row_no = @row_no`)
	del.Parameters = []bigquery.QueryParameter{{Name: "row_no", Value: int64(rowNo)}}
	if err := runDML(ctx, del); err != nil {
		return fmt.Errorf("DeleteLedgerRow: deleting: %w", err)
	}

	shift := client.Query(`UPDATE ` + t.ref() + ` SET row_no = row_no - 1 WHERE row_no > @row_no`)
	shift.Parameters = []bigquery.QueryParameter{{Name: "row_no", Value: int64(rowNo)}}
	if err := runDML(ctx, shift); err != nil {
		return fmt.Errorf("DeleteLedgerRow: renumbering: %w", err)
	}
	return nil
}

// TruncateLedgerWithClient removes every row.
func TruncateLedgerWithClient(ctx context.Context, client *bigquery.Client, t Table) error {
	if err := runDML(ctx, client.Query(`DELETE FROM `+t.ref()+` WHERE TRUE`)); err != nil {
		return fmt.Errorf("TruncateLedger: %w", err)
	}
	return nil
}

func runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
