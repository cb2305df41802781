package report

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/query"
)

// OverviewDays is the span of the analytics overview.
const OverviewDays = 30

// Share is a keyed amount with its share of a total. Amount keeps the
// ledger sign.
type Share struct {
	Key     string
	Amount  decimal.Decimal
	Percent float64
}

// OverviewReport summarizes the trailing OverviewDays.
type OverviewReport struct {
	Income  decimal.Decimal
	Expense decimal.Decimal // negative or zero
	Net     decimal.Decimal
	Count   int
	// Categories are expense totals, largest outflow first.
	Categories []Share
	// Salaries are absolute payouts per employee, largest first.
	Salaries     []Share
	AverageDaily decimal.Decimal
	TopCategory  string
}

// Overview computes the 30-day analytics summary. Rows with an unparseable
// date are skipped.
func Overview(records []domain.Transaction, now time.Time) OverviewReport {
	var rep OverviewReport
	categories := map[string]decimal.Decimal{}
	salaries := map[string]decimal.Decimal{}

	for _, rec := range records {
		d, err := rec.ParsedDate()
		if err != nil || !query.Month.Contains(d, now) {
			continue
		}
		rep.Count++
		switch {
		case rec.Amount.IsPositive():
			rep.Income = rep.Income.Add(rec.Amount)
		case rec.Amount.IsNegative():
			rep.Expense = rep.Expense.Add(rec.Amount)
			categories[rec.Category] = categories[rec.Category].Add(rec.Amount)
		}
		if rec.Category == domain.CategorySalaries {
			person := strings.TrimSpace(rec.Description)
			if person == "" {
				person = "Неизвестно"
			}
			salaries[person] = salaries[person].Add(rec.Amount.Abs())
		}
	}
	rep.Net = rep.Income.Add(rep.Expense)

	for cat, amount := range categories {
		rep.Categories = append(rep.Categories, Share{Key: cat, Amount: amount, Percent: percent(amount.Abs(), rep.Expense.Abs())})
	}
	// Most negative first.
	sort.Slice(rep.Categories, func(i, j int) bool {
		if c := rep.Categories[i].Amount.Cmp(rep.Categories[j].Amount); c != 0 {
			return c < 0
		}
		return rep.Categories[i].Key < rep.Categories[j].Key
	})
	if len(rep.Categories) > 0 {
		rep.TopCategory = rep.Categories[0].Key
	}

	for person, amount := range salaries {
		rep.Salaries = append(rep.Salaries, Share{Key: person, Amount: amount})
	}
	sort.Slice(rep.Salaries, func(i, j int) bool {
		if c := rep.Salaries[i].Amount.Cmp(rep.Salaries[j].Amount); c != 0 {
			return c > 0
		}
		return rep.Salaries[i].Key < rep.Salaries[j].Key
	})

	rep.AverageDaily = rep.Expense.Abs().Div(decimal.NewFromInt(OverviewDays))
	return rep
}

// Summary totals an arbitrary set of rows, e.g. search results.
type Summary struct {
	Count   int
	Total   decimal.Decimal
	Income  decimal.Decimal
	Expense decimal.Decimal
	// TopCategory is set only when more than one category occurs.
	TopCategory       string
	TopCategoryAmount decimal.Decimal
}

// Summarize totals records without any date handling.
func Summarize(records []domain.Transaction) Summary {
	s := Summary{Count: len(records)}
	byCategory := map[string]decimal.Decimal{}
	for _, rec := range records {
		s.Total = s.Total.Add(rec.Amount)
		if rec.Amount.IsPositive() {
			s.Income = s.Income.Add(rec.Amount)
		} else {
			s.Expense = s.Expense.Add(rec.Amount)
		}
		byCategory[rec.Category] = byCategory[rec.Category].Add(rec.Amount.Abs())
	}
	if len(byCategory) > 1 {
		s.TopCategory = mainCategory(byCategory)
		s.TopCategoryAmount = byCategory[s.TopCategory]
	}
	return s
}

// SortByDateDesc orders rows newest first. Rows with an unparseable date
// sort as the oldest.
func SortByDateDesc(records []domain.Transaction) []domain.Transaction {
	out := append([]domain.Transaction(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		return dateOrZero(out[i]).After(dateOrZero(out[j]))
	})
	return out
}

func dateOrZero(t domain.Transaction) time.Time {
	d, err := t.ParsedDate()
	if err != nil {
		return time.Time{}
	}
	return d
}
