package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
)

// OperationType is the ledger's "Тип операции" column.
type OperationType string

const (
	OperationIncome  OperationType = "Пополнение"
	OperationExpense OperationType = "Расход"
)

const (
	// DateLayout is the ledger's date column format (DD.MM.YYYY).
	DateLayout = "02.01.2006"
	// TimestampLayout is used for backup stamps (DD.MM.YYYY HH:MM).
	TimestampLayout = "02.01.2006 15:04"
)

var moscow = loadMoscow()

func loadMoscow() *time.Location {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}

// Moscow returns the display timezone used for stamping records.
func Moscow() *time.Location {
	return moscow
}

// Transaction is one ledger row. Amount is signed: positive for income,
// negative for expense.
type Transaction struct {
	Date          string
	OperationType OperationType
	Category      string
	Description   string
	Amount        decimal.Decimal
	Comment       string
}

// ParsedDate parses Date with DateLayout in the Moscow zone.
func (t Transaction) ParsedDate() (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(t.Date), moscow)
	if err != nil {
		return time.Time{}, fmt.Errorf("ParsedDate: %q: %w", t.Date, err)
	}
	return d, nil
}

// IsExpense reports whether the row moved money out.
func (t Transaction) IsExpense() bool {
	return t.Amount.IsNegative()
}

// Validate checks the invariants every written row must satisfy.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Date) == "" {
		return fmt.Errorf("%w: empty date", ErrInvalidRecord)
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("%w: empty description", ErrInvalidRecord)
	}
	if !IsKnownCategory(t.Category) {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidRecord, t.Category)
	}
	switch t.OperationType {
	case OperationIncome:
		if !t.Amount.IsPositive() {
			return fmt.Errorf("%w: income amount must be positive, got %s", ErrInvalidRecord, t.Amount)
		}
	case OperationExpense:
		if !t.Amount.IsNegative() {
			return fmt.Errorf("%w: expense amount must be negative, got %s", ErrInvalidRecord, t.Amount)
		}
	default:
		return fmt.Errorf("%w: unknown operation type %q", ErrInvalidRecord, t.OperationType)
	}
	return nil
}

type transactionJSON struct {
	Date          string        `json:"date"`
	OperationType OperationType `json:"operation_type"`
	Category      string        `json:"category"`
	Description   string        `json:"description"`
	Amount        json.Number   `json:"amount"`
	Comment       string        `json:"comment"`
}

// MarshalJSON renders the amount as a JSON number.
func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(transactionJSON{
		Date:          t.Date,
		OperationType: t.OperationType,
		Category:      t.Category,
		Description:   t.Description,
		Amount:        json.Number(t.Amount.String()),
		Comment:       t.Comment,
	})
}

// UnmarshalJSON accepts the amount as a number or a numeric string.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var raw struct {
		Date          string          `json:"date"`
		OperationType OperationType   `json:"operation_type"`
		Category      string          `json:"category"`
		Description   string          `json:"description"`
		Amount        decimal.Decimal `json:"amount"`
		Comment       string          `json:"comment"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Transaction(raw)
	return nil
}

// FormatAmount renders an amount rounded to whole units with "," thousands
// separators, e.g. -40,000.
func FormatAmount(d decimal.Decimal) string {
	s := d.Round(0).StringFixed(0)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String()
}
