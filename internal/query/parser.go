// Package query compiles short free-text search queries into record filters.
package query

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

// categoryTokens maps a whole search token to its canonical category.
var categoryTokens = buildCategoryTokens(map[string][]string{
	domain.CategorySalaries:     {"зарплат", "зарплаты", "зарплата", "зарплату", "зарплатам"},
	domain.CategorySupplier:     {"поставщик", "поставщику", "поставщиков", "поставщики", "поставщика"},
	domain.CategoryMaterials:    {"материал", "материалы", "материалов"},
	domain.CategoryTaxi:         {"такси"},
	domain.CategoryTransport:    {"транспорт", "транспорта"},
	domain.CategoryConnectivity: {"связь", "связи"},
	domain.CategoryCharity:      {"благотворительность", "сво"},
	domain.CategoryHousehold:    {"общественн", "общественные", "хоз", "хозяйственные"},
	domain.CategoryFounders:     {"учредител", "учредители", "учредителям", "лично"},
})

func buildCategoryTokens(byCategory map[string][]string) map[string]string {
	out := make(map[string]string)
	for category, tokens := range byCategory {
		for _, tok := range tokens {
			out[tok] = category
		}
	}
	return out
}

// CategoryForToken resolves a lowercase search token to a category.
func CategoryForToken(token string) (string, bool) {
	c, ok := categoryTokens[token]
	return c, ok
}

// Parse compiles query into a Predicate. Each whitespace-separated token
// feeds exactly one field; the first applicable rule wins:
//
//  1. ">N"           amount lower bound
//  2. "<N"           amount upper bound
//  3. digits only    exact amount (last wins)
//  4. category word  appended to the category set
//  5. period word    week, month, month name or year (last wins)
//  6. anything else  text term
//
// A bare "2024" is digits and so reads as an amount; month names must be
// spelled out in full (see MonthFromName).
func Parse(query string) Predicate {
	var p Predicate
	for _, raw := range strings.Fields(strings.ToLower(query)) {
		tok := strings.TrimFunc(raw, isEdgePunct)
		if tok == "" {
			continue
		}

		if v, ok := boundValue(tok, '>'); ok {
			p.AmountMin = &v
			continue
		}
		if v, ok := boundValue(tok, '<'); ok {
			p.AmountMax = &v
			continue
		}
		if isDigits(tok) {
			v, err := decimal.NewFromString(tok)
			if err == nil {
				p.AmountExact = &v
				continue
			}
		}
		if c, ok := CategoryForToken(tok); ok {
			p.Categories = append(p.Categories, c)
			continue
		}
		if period, ok := PeriodFromWord(tok); ok {
			p.Period = &period
			continue
		}
		p.TextTerms = append(p.TextTerms, tok)
	}
	return p
}

func boundValue(tok string, prefix byte) (decimal.Decimal, bool) {
	if len(tok) < 2 || tok[0] != prefix {
		return decimal.Decimal{}, false
	}
	rest := strings.ReplaceAll(tok[1:], ",", ".")
	if !isNumber(rest) {
		return decimal.Decimal{}, false
	}
	v, err := decimal.NewFromString(rest)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return v, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// isNumber accepts digits with at most one decimal point.
func isNumber(s string) bool {
	whole, frac, found := strings.Cut(s, ".")
	if !isDigits(whole) {
		return false
	}
	return !found || isDigits(frac)
}

func isEdgePunct(r rune) bool {
	if r == '>' || r == '<' {
		return false
	}
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}
