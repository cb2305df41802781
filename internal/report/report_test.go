package report

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/query"
)

var now = time.Date(2024, time.December, 20, 12, 0, 0, 0, domain.Moscow())

func rec(date, category, desc string, amount int64) domain.Transaction {
	op := domain.OperationExpense
	if amount > 0 {
		op = domain.OperationIncome
	}
	return domain.Transaction{
		Date:          date,
		OperationType: op,
		Category:      category,
		Description:   desc,
		Amount:        decimal.NewFromInt(amount),
	}
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestAggregate_ByCategory(t *testing.T) {
	records := []domain.Transaction{
		rec("18.12.2024", domain.CategorySalaries, "Петров", -40000),
		rec("17.12.2024", domain.CategorySalaries, "Рустам", -20000),
		rec("16.12.2024", domain.CategoryTaxi, "Такси", -1000),
		rec("15.12.2024", domain.CategorySupplier, "Балтика", -39000),
		rec("15.12.2024", domain.CategoryNone, "Пополнение", 100000),
	}

	rep := Aggregate(records, ByCategory, WindowAll, now)

	require.Len(t, rep.Groups, 3)
	assert.True(t, rep.Total.Equal(dec(100000)))
	assert.Equal(t, domain.CategorySalaries, rep.Groups[0].Key)
	assert.True(t, rep.Groups[0].Sum.Equal(dec(60000)))
	assert.Equal(t, 2, rep.Groups[0].Count)
	assert.InDelta(t, 60.0, rep.Groups[0].Percent, 1e-9)
	assert.True(t, rep.Groups[0].Average.Equal(dec(30000)))
	assert.Equal(t, domain.CategorySupplier, rep.Groups[1].Key)
	assert.Len(t, rep.Top, 3, "categories are never cut")
	assert.Zero(t, rep.Rest.Groups)
	assert.InDelta(t, 100.0, rep.Top3Share, 1e-9)
	assert.Empty(t, rep.CategoryAverages)
}

func TestAggregate_WindowExcludesOldAndBadDates(t *testing.T) {
	records := []domain.Transaction{
		rec("18.12.2024", domain.CategoryTaxi, "Такси", -100),
		rec("01.12.2024", domain.CategoryTaxi, "Такси", -200),
		rec("вчера", domain.CategoryTaxi, "Такси", -400),
	}

	week := Aggregate(records, ByCategory, WindowWeek, now)
	assert.True(t, week.Total.Equal(dec(100)))

	month := Aggregate(records, ByCategory, WindowMonth, now)
	assert.True(t, month.Total.Equal(dec(300)))

	all := Aggregate(records, ByCategory, WindowAll, now)
	assert.True(t, all.Total.Equal(dec(700)), "bad dates only matter when a window applies")
}

func TestAggregate_ByRecipientTopTen(t *testing.T) {
	var records []domain.Transaction
	for i := 1; i <= 12; i++ {
		records = append(records, rec("10.12.2024", domain.CategorySalaries, fmt.Sprintf("Сотрудник %02d", i), -int64(i*1000)))
	}
	records = append(records,
		rec("10.12.2024", domain.CategoryTaxi, "Сотрудник 12", -2000),
		rec("10.12.2024", domain.CategoryTaxi, "  ", -5000),
	)

	rep := Aggregate(records, ByRecipient, WindowAll, now)

	require.Len(t, rep.Groups, 12, "blank descriptions are not recipients")
	require.Len(t, rep.Top, RecipientTopN)
	assert.Equal(t, "Сотрудник 12", rep.Top[0].Key)
	assert.True(t, rep.Top[0].Sum.Equal(dec(14000)))
	assert.Equal(t, 2, rep.Top[0].Count)
	assert.Equal(t, domain.CategorySalaries, rep.Top[0].MainCategory)

	assert.Equal(t, 2, rep.Rest.Groups)
	assert.True(t, rep.Rest.Total.Equal(dec(3000)), "rest = Сотрудник 01 + 02")

	total := rep.Total.InexactFloat64()
	assert.InDelta(t, (14000.0+11000+10000)/total*100, rep.Top3Share, 1e-9)

	require.Len(t, rep.CategoryAverages, 2)
	assert.Equal(t, domain.CategoryTaxi, rep.CategoryAverages[1].Category)
	assert.True(t, rep.CategoryAverages[1].Average.Equal(dec(1000)), "2000 over 2 operations")
}

func TestAggregate_RankingTiesByKey(t *testing.T) {
	records := []domain.Transaction{
		rec("10.12.2024", domain.CategoryTaxi, "Б", -100),
		rec("10.12.2024", domain.CategoryTaxi, "А", -100),
	}
	rep := Aggregate(records, ByRecipient, WindowAll, now)
	require.Len(t, rep.Groups, 2)
	assert.Equal(t, "А", rep.Groups[0].Key)
}

func TestAggregate_BySupplier(t *testing.T) {
	records := []domain.Transaction{
		rec("10.12.2024", domain.CategorySupplier, "ООО Балтика", -5000),
		rec("11.12.2024", domain.CategorySupplier, "Балтика", -3000),
		rec("11.12.2024", domain.CategoryGoods, "Балтика", -9000),
		rec("11.12.2024", domain.CategorySupplier, "Интигам", -1000),
	}
	rep := Aggregate(records, BySupplier("БАЛТИКА"), WindowAll, now)
	require.Len(t, rep.Groups, 2)
	assert.True(t, rep.Total.Equal(dec(8000)))
}

func TestAggregate_Empty(t *testing.T) {
	rep := Aggregate(nil, ByCategory, WindowMonth, now)
	assert.True(t, rep.IsEmpty())
	assert.Zero(t, rep.Top3Share)
}

func TestWindowFromPeriod(t *testing.T) {
	y := query.Year(2024)
	assert.Equal(t, WindowAll, WindowFromPeriod(nil))
	assert.Equal(t, WindowWeek, WindowFromPeriod(&query.Week))
	assert.Equal(t, WindowMonth, WindowFromPeriod(&query.Month))
	assert.Equal(t, WindowAll, WindowFromPeriod(&y))
}

func TestOverview(t *testing.T) {
	records := []domain.Transaction{
		rec("18.12.2024", domain.CategoryNone, "Пополнение", 90000),
		rec("18.12.2024", domain.CategorySalaries, "Петров", -40000),
		rec("17.12.2024", domain.CategorySalaries, "Рустам", -10000),
		rec("16.12.2024", domain.CategoryTaxi, "Такси", -10000),
		rec("01.10.2024", domain.CategoryTaxi, "Такси", -99999),
		rec("??", domain.CategoryTaxi, "Такси", -1),
	}

	rep := Overview(records, now)

	assert.Equal(t, 4, rep.Count)
	assert.True(t, rep.Income.Equal(dec(90000)))
	assert.True(t, rep.Expense.Equal(dec(-60000)))
	assert.True(t, rep.Net.Equal(dec(30000)))
	assert.True(t, rep.AverageDaily.Equal(dec(2000)))
	assert.Equal(t, domain.CategorySalaries, rep.TopCategory)

	require.Len(t, rep.Categories, 2)
	assert.InDelta(t, 83.333, rep.Categories[0].Percent, 0.001)

	require.Len(t, rep.Salaries, 2)
	assert.Equal(t, "Петров", rep.Salaries[0].Key)
	assert.True(t, rep.Salaries[0].Amount.Equal(dec(40000)))
}

func TestSummarize(t *testing.T) {
	s := Summarize([]domain.Transaction{
		rec("18.12.2024", domain.CategoryNone, "Пополнение", 1000),
		rec("18.12.2024", domain.CategoryTaxi, "Такси", -300),
		rec("18.12.2024", domain.CategoryTaxi, "Такси", -900),
	})
	assert.Equal(t, 3, s.Count)
	assert.True(t, s.Total.Equal(dec(-200)))
	assert.True(t, s.Income.Equal(dec(1000)))
	assert.True(t, s.Expense.Equal(dec(-1200)))
	assert.Equal(t, domain.CategoryTaxi, s.TopCategory)
	assert.True(t, s.TopCategoryAmount.Equal(dec(1200)))

	single := Summarize([]domain.Transaction{rec("18.12.2024", domain.CategoryTaxi, "Такси", -1)})
	assert.Empty(t, single.TopCategory)
}

func TestSortByDateDesc(t *testing.T) {
	in := []domain.Transaction{
		rec("01.12.2024", domain.CategoryTaxi, "a", -1),
		rec("bad", domain.CategoryTaxi, "b", -1),
		rec("05.12.2024", domain.CategoryTaxi, "c", -1),
	}
	out := SortByDateDesc(in)
	assert.Equal(t, "c", out[0].Description)
	assert.Equal(t, "a", out[1].Description)
	assert.Equal(t, "b", out[2].Description)
	assert.Equal(t, "a", in[0].Description, "input is not reordered")
}

func TestSupplierHistory(t *testing.T) {
	records := []domain.Transaction{
		rec("31.12.2024", domain.CategorySupplier, "Интигам", -6000),
		rec("01.12.2024", domain.CategorySupplier, "Интигам", -1000),
		rec("10.12.2024", domain.CategorySupplier, "интигам опт", -2000),
		rec("12.12.2024", domain.CategorySalaries, "Интигам", -9999),
		rec("12.12.2024", domain.CategorySupplier, "Балтика", -9999),
	}

	h := SupplierHistory(records, "Интигам")

	assert.Equal(t, 3, h.Count)
	assert.True(t, h.Total.Equal(dec(9000)))
	assert.True(t, h.Average.Equal(dec(3000)))
	require.Len(t, h.Recent, 3)
	assert.Equal(t, "01.12.2024", h.Recent[0].Date)
	assert.Equal(t, "31.12.2024", h.Recent[2].Date)
	assert.InDelta(t, 3.0, h.PerMonth, 1e-9, "3 payments over 30 days")
}

func TestSupplierHistory_RecentIsCapped(t *testing.T) {
	var records []domain.Transaction
	for day := 1; day <= 8; day++ {
		records = append(records, rec(fmt.Sprintf("%02d.12.2024", day), domain.CategorySupplier, "Балтика", -100))
	}
	h := SupplierHistory(records, "балтика")
	require.Len(t, h.Recent, SupplierRecent)
	assert.Equal(t, "04.12.2024", h.Recent[0].Date)
}

func TestSupplierHistory_NoMatch(t *testing.T) {
	h := SupplierHistory(nil, "никто")
	assert.Zero(t, h.Count)
	assert.Empty(t, h.Recent)
}
