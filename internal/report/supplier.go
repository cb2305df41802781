package report

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

// SupplierRecent is how many of the latest payments a history lists.
const SupplierRecent = 5

// History is the payment record of one supplier.
type History struct {
	Name    string
	Count   int
	Total   decimal.Decimal
	Average decimal.Decimal
	// Recent holds up to SupplierRecent payments, oldest first.
	Recent []domain.Transaction
	// PerMonth is the payment frequency; zero when all payments share a date.
	PerMonth float64
}

// SupplierHistory collects supplier payments whose description contains
// name, case-insensitively.
func SupplierHistory(records []domain.Transaction, name string) History {
	needle := strings.ToLower(strings.TrimSpace(name))
	h := History{Name: name}

	var matched []domain.Transaction
	for _, rec := range records {
		if rec.Category == domain.CategorySupplier && strings.Contains(strings.ToLower(rec.Description), needle) {
			matched = append(matched, rec)
		}
	}
	if len(matched) == 0 {
		return h
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return dateOrZero(matched[i]).Before(dateOrZero(matched[j]))
	})

	for _, rec := range matched {
		h.Total = h.Total.Add(rec.Amount.Abs())
	}
	h.Count = len(matched)
	h.Average = h.Total.Div(decimal.NewFromInt(int64(h.Count)))

	start := len(matched) - SupplierRecent
	if start < 0 {
		start = 0
	}
	h.Recent = matched[start:]

	if h.Count > 1 {
		first, errFirst := matched[0].ParsedDate()
		last, errLast := matched[len(matched)-1].ParsedDate()
		if errFirst == nil && errLast == nil {
			if days := last.Sub(first).Hours() / 24; days >= 1 {
				h.PerMonth = float64(h.Count) / (days / 30)
			}
		}
	}
	return h
}
