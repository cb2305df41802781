// Package report rolls ledger rows up into category, recipient and supplier
// breakdowns.
package report

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/query"
)

// RecipientTopN is how many recipients a recipient report lists by name.
const RecipientTopN = 10

// DimensionKind selects the grouping key.
type DimensionKind int

const (
	ByCategoryKind DimensionKind = iota + 1
	ByRecipientKind
	BySupplierKind
)

// Dimension is a grouping key plus, for suppliers, the name to match.
type Dimension struct {
	Kind DimensionKind
	Name string
}

var (
	ByCategory  = Dimension{Kind: ByCategoryKind}
	ByRecipient = Dimension{Kind: ByRecipientKind}
)

// BySupplier groups supplier payments whose description contains name.
func BySupplier(name string) Dimension {
	return Dimension{Kind: BySupplierKind, Name: strings.ToLower(strings.TrimSpace(name))}
}

// Window is the trailing time range a report covers.
type Window int

const (
	WindowAll Window = iota
	WindowWeek
	WindowMonth
)

// WindowFromPeriod maps an extracted period onto a window. Only trailing
// week and month periods narrow the report.
func WindowFromPeriod(p *query.Period) Window {
	if p == nil {
		return WindowAll
	}
	switch p.Kind {
	case query.PeriodWeek:
		return WindowWeek
	case query.PeriodMonth:
		return WindowMonth
	}
	return WindowAll
}

func (w Window) period() *query.Period {
	switch w {
	case WindowWeek:
		return &query.Week
	case WindowMonth:
		return &query.Month
	}
	return nil
}

// Group is one row of a breakdown. Sum is an absolute value.
type Group struct {
	Key          string
	Sum          decimal.Decimal
	Count        int
	Percent      float64
	Average      decimal.Decimal
	MainCategory string

	byCategory map[string]decimal.Decimal
}

// Rollup summarizes the groups cut from the top-N listing.
type Rollup struct {
	Groups int
	Total  decimal.Decimal
}

// CategoryAverage is the mean per-operation payment within a category,
// averaged across recipients.
type CategoryAverage struct {
	Category string
	Average  decimal.Decimal
}

// Report is the result of Aggregate.
type Report struct {
	Dimension Dimension
	Window    Window
	Total     decimal.Decimal
	// Groups holds every group, ranked by Sum descending.
	Groups []Group
	Top    []Group
	Rest   Rollup
	// Top3Share is the percentage of Total taken by the first three groups.
	Top3Share        float64
	CategoryAverages []CategoryAverage
}

// IsEmpty reports whether nothing matched.
func (r Report) IsEmpty() bool { return len(r.Groups) == 0 }

// Aggregate groups expense rows along dim within window w as seen at now.
// Rows with an unparseable date are skipped when a window applies.
func Aggregate(records []domain.Transaction, dim Dimension, w Window, now time.Time) Report {
	rep := Report{Dimension: dim, Window: w}
	period := w.period()

	groups := map[string]*Group{}
	for _, rec := range records {
		if period != nil {
			d, err := rec.ParsedDate()
			if err != nil || !period.Contains(d, now) {
				continue
			}
		}
		if !rec.IsExpense() {
			continue
		}
		key, ok := groupKey(rec, dim)
		if !ok {
			continue
		}

		amount := rec.Amount.Abs()
		g, exists := groups[key]
		if !exists {
			g = &Group{Key: key, byCategory: map[string]decimal.Decimal{}}
			groups[key] = g
		}
		g.Sum = g.Sum.Add(amount)
		g.Count++
		g.byCategory[rec.Category] = g.byCategory[rec.Category].Add(amount)
		rep.Total = rep.Total.Add(amount)
	}

	for _, g := range groups {
		g.Average = g.Sum.Div(decimal.NewFromInt(int64(g.Count)))
		g.Percent = percent(g.Sum, rep.Total)
		g.MainCategory = mainCategory(g.byCategory)
		rep.Groups = append(rep.Groups, *g)
	}
	sort.Slice(rep.Groups, func(i, j int) bool {
		a, b := rep.Groups[i], rep.Groups[j]
		if c := a.Sum.Cmp(b.Sum); c != 0 {
			return c > 0
		}
		return a.Key < b.Key
	})

	n := len(rep.Groups)
	if dim.Kind == ByRecipientKind && n > RecipientTopN {
		n = RecipientTopN
	}
	rep.Top = rep.Groups[:n]
	for _, g := range rep.Groups[n:] {
		rep.Rest.Groups++
		rep.Rest.Total = rep.Rest.Total.Add(g.Sum)
	}

	var top3 decimal.Decimal
	for i := 0; i < len(rep.Groups) && i < 3; i++ {
		top3 = top3.Add(rep.Groups[i].Sum)
	}
	rep.Top3Share = percent(top3, rep.Total)

	if dim.Kind == ByRecipientKind {
		rep.CategoryAverages = categoryAverages(rep.Groups)
	}
	return rep
}

func groupKey(rec domain.Transaction, dim Dimension) (string, bool) {
	switch dim.Kind {
	case ByCategoryKind:
		return rec.Category, true
	case ByRecipientKind:
		key := strings.TrimSpace(rec.Description)
		return key, key != ""
	case BySupplierKind:
		if rec.Category != domain.CategorySupplier {
			return "", false
		}
		key := strings.TrimSpace(rec.Description)
		return key, strings.Contains(strings.ToLower(key), dim.Name)
	}
	return "", false
}

func mainCategory(byCategory map[string]decimal.Decimal) string {
	var (
		best    string
		bestSum decimal.Decimal
	)
	for cat, sum := range byCategory {
		if best == "" || sum.GreaterThan(bestSum) || (sum.Equal(bestSum) && cat < best) {
			best, bestSum = cat, sum
		}
	}
	return best
}

func categoryAverages(groups []Group) []CategoryAverage {
	perCategory := map[string][]decimal.Decimal{}
	for _, g := range groups {
		count := decimal.NewFromInt(int64(g.Count))
		for cat, sum := range g.byCategory {
			perCategory[cat] = append(perCategory[cat], sum.Div(count))
		}
	}

	out := make([]CategoryAverage, 0, len(perCategory))
	for cat, values := range perCategory {
		out = append(out, CategoryAverage{
			Category: cat,
			Average:  decimal.Avg(values[0], values[1:]...),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

func percent(part, total decimal.Decimal) float64 {
	if total.IsZero() {
		return 0
	}
	return part.Div(total).Mul(decimal.NewFromInt(100)).InexactFloat64()
}
