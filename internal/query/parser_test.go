package query

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Predicate
	}{
		{
			name:  "name and month",
			query: "Петров декабрь",
			want:  Predicate{TextTerms: []string{"петров"}, Period: &Period{Kind: PeriodCalendarMonth, Month: time.December}},
		},
		{
			name:  "supplier over bound",
			query: "поставщик >100000",
			want:  Predicate{Categories: []string{domain.CategorySupplier}, AmountMin: dec("100000")},
		},
		{
			name:  "both bounds",
			query: ">1000 <5000.5",
			want:  Predicate{AmountMin: dec("1000"), AmountMax: dec("5000.5")},
		},
		{
			name:  "exact last wins",
			query: "100 200",
			want:  Predicate{AmountExact: dec("200")},
		},
		{
			name:  "unparseable bound is text",
			query: ">abc",
			want:  Predicate{TextTerms: []string{">abc"}},
		},
		{
			name:  "categories accumulate",
			query: "такси связь",
			want:  Predicate{Categories: []string{domain.CategoryTaxi, domain.CategoryConnectivity}},
		},
		{
			name:  "bare year reads as amount",
			query: "зарплаты 2024",
			want:  Predicate{Categories: []string{domain.CategorySalaries}, AmountExact: dec("2024")},
		},
		{
			name:  "words sharing a month prefix are text",
			query: "маяк майка июнев",
			want:  Predicate{TextTerms: []string{"маяк", "майка", "июнев"}},
		},
		{
			name:  "inflected month name",
			query: "такси мае",
			want:  Predicate{Categories: []string{domain.CategoryTaxi}, Period: &Period{Kind: PeriodCalendarMonth, Month: time.May}},
		},
		{
			name:  "period last wins",
			query: "неделю месяц",
			want:  Predicate{Period: &Period{Kind: PeriodMonth}},
		},
		{
			name:  "founder payout",
			query: "Таня лично",
			want:  Predicate{TextTerms: []string{"таня"}, Categories: []string{domain.CategoryFounders}},
		},
		{
			name:  "edge punctuation trimmed",
			query: "«Балтика», сво!",
			want:  Predicate{TextTerms: []string{"балтика"}, Categories: []string{domain.CategoryCharity}},
		},
		{
			name:  "empty",
			query: "   ",
			want:  Predicate{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.query))
		})
	}
}

func TestPeriodFromWord(t *testing.T) {
	tests := []struct {
		word string
		want Period
		ok   bool
	}{
		{"неделя", Week, true},
		{"неделю", Week, true},
		{"месяц", Month, true},
		{"декабре", CalendarMonth(time.December), true},
		{"мая", CalendarMonth(time.May), true},
		{"марта", CalendarMonth(time.March), true},
		{"материалы", Period{}, false},
		{"2025", Year(2025), true},
		{"петров", Period{}, false},
		{"маяк", Period{}, false},
		{"майка", Period{}, false},
		{"июнев", Period{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			got, ok := PeriodFromWord(tt.word)
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMonthFromWord_AcceptsLooseForms(t *testing.T) {
	m, ok := MonthFromWord("мартом")
	require.True(t, ok)
	assert.Equal(t, time.March, m)

	_, ok = MonthFromName("мартом")
	assert.False(t, ok)
}

func TestPeriod_String(t *testing.T) {
	assert.Equal(t, "декабрь", CalendarMonth(time.December).String())
	assert.Equal(t, "неделя", Week.String())
	assert.Equal(t, "2024", Year(2024).String())
}
