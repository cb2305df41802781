package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

// LedgerRow mirrors one row of the ledger table. RowNo is the positional
// index the sheet backend would report (the header is row 1).
type LedgerRow struct {
	EntryID string `bigquery:"entry_id"` // REQUIRED
	RowNo   int64  `bigquery:"row_no"`   // REQUIRED

	OperationDate civil.Date `bigquery:"operation_date"` // REQUIRED
	OperationType string     `bigquery:"operation_type"` // REQUIRED
	Category      string     `bigquery:"category"`       // REQUIRED
	Description   string     `bigquery:"description"`    // REQUIRED
	Amount        *big.Rat   `bigquery:"amount"`         // REQUIRED NUMERIC

	Comment bigquery.NullString `bigquery:"comment"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// NewLedgerRow converts a validated transaction.
func NewLedgerRow(entryID string, rowNo int, t domain.Transaction, now time.Time) (*LedgerRow, error) {
	date, err := t.ParsedDate()
	if err != nil {
		return nil, fmt.Errorf("NewLedgerRow: %w", err)
	}
	row := &LedgerRow{
		EntryID:       entryID,
		RowNo:         int64(rowNo),
		OperationDate: civil.DateOf(date),
		OperationType: string(t.OperationType),
		Category:      t.Category,
		Description:   t.Description,
		Amount:        t.Amount.Rat(),
		CreatedTS:     now,
	}
	if t.Comment != "" {
		row.Comment = bigquery.NullString{StringVal: t.Comment, Valid: true}
	}
	return row, nil
}

// Transaction converts the row back to the domain shape.
func (r *LedgerRow) Transaction() domain.Transaction {
	var amount decimal.Decimal
	if r.Amount != nil {
		amount = decimal.NewFromBigRat(r.Amount, 2)
	}
	return domain.Transaction{
		Date:          r.OperationDate.In(domain.Moscow()).Format(domain.DateLayout),
		OperationType: domain.OperationType(r.OperationType),
		Category:      r.Category,
		Description:   r.Description,
		Amount:        amount,
		Comment:       r.Comment.StringVal,
	}
}
