package query

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

var testNow = time.Date(2024, 12, 20, 12, 0, 0, 0, domain.Moscow())

func rec(date, category, description string, amount int64) domain.Transaction {
	op := domain.OperationExpense
	if amount > 0 {
		op = domain.OperationIncome
	}
	return domain.Transaction{
		Date:          date,
		OperationType: op,
		Category:      category,
		Description:   description,
		Amount:        decimal.NewFromInt(amount),
	}
}

func TestMatches_NameAndMonth(t *testing.T) {
	p := Parse("Петров декабрь")

	assert.True(t, p.Matches(rec("05.12.2024", domain.CategorySalaries, "Петров", -40000), testNow))
	assert.True(t, p.Matches(rec("05.12.2023", domain.CategoryTaxi, "Петров", -100), testNow), "calendar month matches any year")
	assert.False(t, p.Matches(rec("05.11.2024", domain.CategorySalaries, "Петров", -40000), testNow))
	assert.False(t, p.Matches(rec("05.12.2024", domain.CategorySalaries, "Сидоров", -40000), testNow))
}

func TestMatches_SupplierOverBound(t *testing.T) {
	p := Parse("поставщик >100000")

	assert.True(t, p.Matches(rec("01.12.2024", domain.CategorySupplier, "Интигам", -150000), testNow))
	assert.False(t, p.Matches(rec("01.12.2024", domain.CategorySupplier, "Интигам", -50000), testNow))
	assert.False(t, p.Matches(rec("01.12.2024", domain.CategoryMaterials, "Интигам", -150000), testNow))
}

func TestMatches_UnparseableDateFailsClosed(t *testing.T) {
	r := rec("вчера", domain.CategoryTaxi, "Такси", -500)

	assert.False(t, Parse("такси неделя").Matches(r, testNow))
	assert.True(t, Parse("такси").Matches(r, testNow), "no period, date is not consulted")
}

func TestMatches_TrailingWindows(t *testing.T) {
	week := Parse("неделя")
	month := Parse("месяц")

	recent := rec("15.12.2024", domain.CategoryTaxi, "Такси", -500)
	older := rec("01.12.2024", domain.CategoryTaxi, "Такси", -500)
	ancient := rec("01.10.2024", domain.CategoryTaxi, "Такси", -500)

	assert.True(t, week.Matches(recent, testNow))
	assert.False(t, week.Matches(older, testNow))
	assert.True(t, month.Matches(older, testNow))
	assert.False(t, month.Matches(ancient, testNow))
}

func TestMatches_TextSearchesCategoryToo(t *testing.T) {
	p := Predicate{TextTerms: []string{"сотрудникам"}}
	assert.True(t, p.Matches(rec("01.12.2024", domain.CategorySalaries, "Петров", -1), testNow))
}

func TestMatches_AbsoluteAmount(t *testing.T) {
	p := Parse("5000")
	assert.True(t, p.Matches(rec("01.12.2024", domain.CategoryTaxi, "Такси", -5000), testNow))
	assert.True(t, p.Matches(rec("01.12.2024", domain.CategoryNone, "Касса", 5000), testNow))
	assert.False(t, p.Matches(rec("01.12.2024", domain.CategoryTaxi, "Такси", -5001), testNow))
}

func TestEmptyPredicateMatchesEverything(t *testing.T) {
	var p Predicate
	assert.True(t, p.IsEmpty())
	assert.True(t, p.Matches(rec("мусор", "", "", 0), testNow))
}

// Predicates compiled from disjoint token sets compose as logical AND.
func TestAnd_IsConjunction(t *testing.T) {
	queries := []string{"петров", "декабрь", "зарплаты", ">30000", "<45000", "40000", "неделя", "2024", "такси"}
	records := []domain.Transaction{
		rec("05.12.2024", domain.CategorySalaries, "Петров", -40000),
		rec("18.12.2024", domain.CategoryTaxi, "Такси Петров", -300),
		rec("05.11.2024", domain.CategorySalaries, "Петров", -40000),
		rec("05.12.2023", domain.CategorySalaries, "Сидоров", -35000),
		rec("плохая дата", domain.CategorySalaries, "Петров", -40000),
	}

	for _, q1 := range queries {
		for _, q2 := range queries {
			if q1 == q2 {
				continue
			}
			p1, p2 := Parse(q1), Parse(q2)
			both := p1.And(p2)
			for _, r := range records {
				want := p1.Matches(r, testNow) && p2.Matches(r, testNow)
				if got := both.Matches(r, testNow); got != want {
					t.Errorf("(%q AND %q).Matches(%v) = %v, want %v", q1, q2, r, got, want)
				}
			}
		}
	}
}

func TestFilter_RoundTripOwnFields(t *testing.T) {
	r := rec("10.12.2024", domain.CategoryConnectivity, "Мегафон", -1200)
	records := []domain.Transaction{r, rec("10.12.2024", domain.CategoryTaxi, "Яндекс", -300)}

	got := Filter(records, Parse("мегафон связь 1200"), testNow)
	assert.Equal(t, []domain.Transaction{r}, got)
}
