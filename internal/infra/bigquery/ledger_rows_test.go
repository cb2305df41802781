package bigquery

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

func TestLedgerRowRoundTrip(t *testing.T) {
	tx := domain.Transaction{
		Date:          "05.12.2024",
		OperationType: domain.OperationExpense,
		Category:      domain.CategorySupplier,
		Description:   "Балтика",
		Amount:        decimal.RequireFromString("-15000.50"),
		Comment:       "поставка",
	}

	row, err := NewLedgerRow("id-1", 7, tx, time.Date(2024, 12, 5, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewLedgerRow() error: %v", err)
	}
	if row.OperationDate != (civil.Date{Year: 2024, Month: time.December, Day: 5}) {
		t.Errorf("OperationDate = %v", row.OperationDate)
	}
	if row.RowNo != 7 || !row.Comment.Valid {
		t.Errorf("row = %+v", row)
	}

	got := row.Transaction()
	if got.Date != tx.Date || got.Description != tx.Description || got.Comment != tx.Comment {
		t.Errorf("Transaction() = %+v, want %+v", got, tx)
	}
	if !got.Amount.Equal(tx.Amount) {
		t.Errorf("Amount = %s, want %s", got.Amount, tx.Amount)
	}
}

func TestNewLedgerRow_EmptyComment(t *testing.T) {
	tx := domain.Transaction{
		Date:          "01.01.2025",
		OperationType: domain.OperationIncome,
		Category:      domain.CategoryNone,
		Description:   "Пополнение",
		Amount:        decimal.NewFromInt(1000),
	}
	row, err := NewLedgerRow("id-2", 2, tx, time.Now())
	if err != nil {
		t.Fatalf("NewLedgerRow() error: %v", err)
	}
	if row.Comment.Valid {
		t.Error("empty comment should be NULL")
	}
}

func TestNewLedgerRow_BadDate(t *testing.T) {
	_, err := NewLedgerRow("id-3", 2, domain.Transaction{Date: "yesterday"}, time.Now())
	if err == nil {
		t.Fatal("expected error for unparseable date")
	}
}

func TestTableRef(t *testing.T) {
	got := Table{ProjectID: "p", DatasetID: "d", TableID: "t"}.ref()
	if got != "`p.d.t`" {
		t.Errorf("ref() = %s", got)
	}
}
