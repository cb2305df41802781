// Package ledger defines the append-only transaction store and the row
// shape shared by every backend.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

// Header is the literal first row of the ledger.
var Header = []string{"Дата", "Тип операции", "Категория", "Описание/Получатель", "Сумма", "Комментарий"}

// Entry is a stored transaction and its row index. Row 1 is the header.
type Entry struct {
	Row         int
	Transaction domain.Transaction
}

// Ledger is the persistent store of transaction rows.
type Ledger interface {
	// Append writes t as the last row and returns its row index.
	Append(ctx context.Context, t domain.Transaction) (int, error)
	// Delete removes one row.
	Delete(ctx context.Context, row int) error
	// ReadAll returns every data row in ledger order.
	ReadAll(ctx context.Context) ([]Entry, error)
	// Reset removes all data rows, leaving only the header.
	Reset(ctx context.Context) error
}

// Tailer is implemented by backends that can read the last row cheaply.
type Tailer interface {
	Tail(ctx context.Context) (Entry, bool, error)
}

// Transactions strips row indexes.
func Transactions(entries []Entry) []domain.Transaction {
	out := make([]domain.Transaction, len(entries))
	for i, e := range entries {
		out[i] = e.Transaction
	}
	return out
}

// EncodeRow renders t in column order. The amount is a plain number.
func EncodeRow(t domain.Transaction) []interface{} {
	amount, _ := t.Amount.Float64()
	return []interface{}{t.Date, string(t.OperationType), t.Category, t.Description, amount, t.Comment}
}

// DecodeRow reads a row written by EncodeRow or edited by hand. Missing
// trailing cells read as empty; an unparseable amount is an error.
func DecodeRow(cells []interface{}) (domain.Transaction, error) {
	cell := func(i int) string {
		if i >= len(cells) || cells[i] == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(cells[i]))
	}

	var amount decimal.Decimal
	if len(cells) > 4 && cells[4] != nil {
		var err error
		amount, err = ParseAmount(cells[4])
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("DecodeRow: %w", err)
		}
	}

	return domain.Transaction{
		Date:          cell(0),
		OperationType: domain.OperationType(cell(1)),
		Category:      cell(2),
		Description:   cell(3),
		Amount:        amount,
		Comment:       cell(5),
	}, nil
}

// ParseAmount accepts the numeric forms a spreadsheet cell may hold:
// numbers, "-40000", "-40 000", "-40,000", "−1 500,50".
func ParseAmount(v interface{}) (decimal.Decimal, error) {
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val), nil
	case int64:
		return decimal.NewFromInt(val), nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case json.Number:
		return decimal.NewFromString(val.String())
	case decimal.Decimal:
		return val, nil
	case string:
		s := strings.NewReplacer(" ", "", "\u00a0", "", "₽", "", "\u2212", "-").Replace(strings.TrimSpace(val))
		if s == "" {
			return decimal.Decimal{}, nil
		}
		// "1,500.50" uses commas for thousands; "1500,50" uses one for the fraction.
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ",", "")
		} else if strings.Count(s, ",") == 1 && len(s)-strings.Index(s, ",") != 4 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("ParseAmount: %q: %w", val, err)
		}
		return d, nil
	default:
		return decimal.Decimal{}, fmt.Errorf("ParseAmount: unsupported cell type %T", v)
	}
}

// SameTransaction compares two transactions field by field.
func SameTransaction(a, b domain.Transaction) bool {
	return a.Date == b.Date &&
		a.OperationType == b.OperationType &&
		a.Category == b.Category &&
		a.Description == b.Description &&
		a.Amount.Equal(b.Amount) &&
		a.Comment == b.Comment
}
