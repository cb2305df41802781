package query

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

// Predicate is a compiled query. Every set field is an independent
// constraint; the zero Predicate matches every record.
type Predicate struct {
	TextTerms   []string
	Categories  []string
	AmountMin   *decimal.Decimal
	AmountMax   *decimal.Decimal
	AmountExact *decimal.Decimal
	Period      *Period

	also []Predicate
}

// IsEmpty reports whether the predicate has no constraints.
func (p Predicate) IsEmpty() bool {
	return len(p.TextTerms) == 0 && len(p.Categories) == 0 &&
		p.AmountMin == nil && p.AmountMax == nil && p.AmountExact == nil &&
		p.Period == nil && len(p.also) == 0
}

// And returns a predicate matching exactly the records matched by both.
func (p Predicate) And(other Predicate) Predicate {
	out := p
	out.also = append(append([]Predicate(nil), p.also...), other)
	return out
}

// Matches tests one record. A record whose date cannot be parsed never
// matches a predicate with a period.
func (p Predicate) Matches(t domain.Transaction, now time.Time) bool {
	if len(p.TextTerms) > 0 {
		haystack := strings.ToLower(t.Description) + " " + strings.ToLower(t.Category)
		for _, term := range p.TextTerms {
			if !strings.Contains(haystack, term) {
				return false
			}
		}
	}

	if len(p.Categories) > 0 && !containsString(p.Categories, t.Category) {
		return false
	}

	amount := t.Amount.Abs()
	if p.AmountMin != nil && amount.LessThan(*p.AmountMin) {
		return false
	}
	if p.AmountMax != nil && amount.GreaterThan(*p.AmountMax) {
		return false
	}
	if p.AmountExact != nil && !amount.Equal(*p.AmountExact) {
		return false
	}

	if p.Period != nil {
		date, err := t.ParsedDate()
		if err != nil {
			return false
		}
		if !p.Period.Contains(date, now) {
			return false
		}
	}

	for _, other := range p.also {
		if !other.Matches(t, now) {
			return false
		}
	}
	return true
}

// Filter returns the records matching p, preserving order.
func Filter(records []domain.Transaction, p Predicate, now time.Time) []domain.Transaction {
	var out []domain.Transaction
	for _, r := range records {
		if p.Matches(r, now) {
			out = append(out, r)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
