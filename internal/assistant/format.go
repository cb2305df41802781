package assistant

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/report"
)

const (
	barWidth       = 20
	searchShown    = 15
	findShown      = 10
	historyContext = 5
	historyLedger  = 3
)

func money(d decimal.Decimal) string {
	return domain.FormatAmount(d) + " ₽"
}

func trendEmoji(d decimal.Decimal) string {
	if d.IsPositive() {
		return "📈"
	}
	return "📉"
}

// bar draws one block per 5% on a 20-cell scale.
func bar(percent float64) string {
	n := int(percent / 5)
	if n < 0 {
		n = 0
	}
	if n > barWidth {
		n = barWidth
	}
	return strings.Repeat("█", n) + strings.Repeat("░", barWidth-n)
}

func windowName(w report.Window) string {
	switch w {
	case report.WindowWeek:
		return "неделю"
	case report.WindowMonth:
		return "месяц"
	}
	return "все время"
}

func formatRecorded(t domain.Transaction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Финансовая операция записана:\n\n", trendEmoji(t.Amount))
	fmt.Fprintf(&b, "📅 Дата: %s\n", t.Date)
	fmt.Fprintf(&b, "🔄 Тип: %s\n", t.OperationType)
	fmt.Fprintf(&b, "📂 Категория: %s\n", t.Category)
	fmt.Fprintf(&b, "📝 Описание: %s\n", t.Description)
	fmt.Fprintf(&b, "💰 Сумма: %s\n", money(t.Amount))
	return b.String()
}

func formatConfirm(f *domain.FinanceResult) string {
	var b strings.Builder
	b.WriteString("❓ Проверьте правильность:\n\n")
	fmt.Fprintf(&b, "🔄 Тип: %s\n", f.OperationType)
	fmt.Fprintf(&b, "📂 Категория: %s\n", f.Category)
	fmt.Fprintf(&b, "📝 Описание: %s\n", f.Description)
	fmt.Fprintf(&b, "💰 Сумма: %s\n\n", money(f.Amount))
	b.WriteString("✅ Записать? Или уточните что не так.")
	return b.String()
}

func formatClarification(c *domain.ClarificationResult) string {
	msg := c.Message
	if msg == "" {
		msg = "Не понял ваше сообщение."
	}
	var b strings.Builder
	b.WriteString("❓ " + msg)
	if len(c.Suggestions) > 0 {
		b.WriteString("\n\n💡 Возможно, вы имели в виду:\n")
		for i, s := range c.Suggestions {
			if i == 3 {
				break
			}
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
	}
	return b.String()
}

func formatCategories(rep report.Report) string {
	if rep.IsEmpty() {
		return "📊 Нет данных о расходах за выбранный период."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Анализ расходов за %s\n\n", windowName(rep.Window))
	fmt.Fprintf(&b, "💰 Общие расходы: %s\n\n", money(rep.Total))
	for i, g := range rep.Top {
		fmt.Fprintf(&b, "%d. %s %s\n", i+1, domain.CategoryEmoji(g.Key), g.Key)
		fmt.Fprintf(&b, "   💰 %s (%.1f%%)\n", money(g.Sum), g.Percent)
		fmt.Fprintf(&b, "   %s\n\n", bar(g.Percent))
	}
	if len(rep.Groups) >= 3 {
		fmt.Fprintf(&b, "🔝 Топ-3 категории: %.1f%% от всех трат", rep.Top3Share)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatRecipients(rep report.Report) string {
	if rep.IsEmpty() {
		return "👥 Нет данных о получателях за выбранный период."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "👥 Анализ трат по получателям за %s\n\n", windowName(rep.Window))
	fmt.Fprintf(&b, "💰 Общие расходы: %s\n", money(rep.Total))
	fmt.Fprintf(&b, "👤 Уникальных получателей: %d\n\n", len(rep.Groups))
	b.WriteString("🔝 Топ получателей:\n")
	for i, g := range rep.Top {
		fmt.Fprintf(&b, "%d. %s %s\n", i+1, domain.CategoryEmoji(g.MainCategory), g.Key)
		fmt.Fprintf(&b, "   💰 %s (%.1f%%)\n", money(g.Sum), g.Percent)
		fmt.Fprintf(&b, "   📊 %d операций, ~%s за раз\n", g.Count, money(g.Average))
		fmt.Fprintf(&b, "   📂 Основная категория: %s\n\n", g.MainCategory)
	}
	if rep.Rest.Groups > 0 {
		fmt.Fprintf(&b, "... и ещё %d получателей на %s\n\n", rep.Rest.Groups, money(rep.Rest.Total))
	}
	if len(rep.Groups) >= 3 {
		fmt.Fprintf(&b, "📈 Топ-3 получателя: %.1f%% от всех трат\n", rep.Top3Share)
	}
	if len(rep.CategoryAverages) > 0 {
		b.WriteString("\n💳 Средний чек по типам:\n")
		for _, avg := range rep.CategoryAverages {
			fmt.Fprintf(&b, "• %s: %s\n", avg.Category, money(avg.Average))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatOverview(rep report.OverviewReport) string {
	if rep.Count == 0 {
		return "📊 Недостаточно данных для аналитики."
	}
	var b strings.Builder
	b.WriteString("📊 Умная аналитика за 30 дней\n\n")
	b.WriteString("💰 Общие итоги:\n")
	fmt.Fprintf(&b, "📈 Доходы: +%s\n", money(rep.Income))
	fmt.Fprintf(&b, "📉 Расходы: %s\n", money(rep.Expense))
	fmt.Fprintf(&b, "💼 Чистый результат: %s\n", money(rep.Net))
	fmt.Fprintf(&b, "📊 Операций: %d\n", rep.Count)

	if len(rep.Categories) > 0 {
		b.WriteString("\n💸 Расходы по категориям:\n")
		for _, c := range rep.Categories {
			fmt.Fprintf(&b, "• %s: %s (%.1f%%)\n", c.Key, money(c.Amount), c.Percent)
		}
	}
	if len(rep.Salaries) > 0 {
		b.WriteString("\n👥 Зарплаты сотрудникам:\n")
		for _, s := range rep.Salaries {
			fmt.Fprintf(&b, "• %s: %s\n", s.Key, money(s.Amount))
		}
	}
	fmt.Fprintf(&b, "\n📈 Средние траты в день: %s", money(rep.AverageDaily))
	if rep.TopCategory != "" {
		fmt.Fprintf(&b, "\n🔝 Больше всего тратите на: %s", rep.TopCategory)
	}
	return b.String()
}

func formatSupplier(h report.History) string {
	if h.Count == 0 {
		return fmt.Sprintf("❌ Операции с поставщиком '%s' не найдены.", h.Name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🏭 Анализ поставщика: %s\n\n", h.Name)
	fmt.Fprintf(&b, "📊 Всего операций: %d\n", h.Count)
	fmt.Fprintf(&b, "💰 Общая сумма: %s\n\n", money(h.Total))
	fmt.Fprintf(&b, "📈 Средняя оплата: %s\n", money(h.Average))
	b.WriteString("\n📋 Последние операции:\n")
	for _, t := range h.Recent {
		fmt.Fprintf(&b, "• %s: %s\n", t.Date, money(t.Amount.Abs()))
	}
	if h.PerMonth > 0 {
		fmt.Fprintf(&b, "\n📅 Частота: %.1f операций в месяц", h.PerMonth)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSearch(q string, found []domain.Transaction) string {
	if len(found) == 0 {
		return fmt.Sprintf("❌ По запросу '%s' ничего не найдено.", q)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 Найдено: %d операций\n", len(found))
	fmt.Fprintf(&b, "📊 Запрос: %s\n\n", q)

	shown := found
	if len(found) > searchShown {
		fmt.Fprintf(&b, "📋 Последние %d операций:\n", searchShown)
		shown = found[:searchShown]
	}
	for _, t := range shown {
		fmt.Fprintf(&b, "%s %s: %s - %s (%s)\n", trendEmoji(t.Amount), t.Date, t.Description, money(t.Amount), t.Category)
	}
	if len(found) > searchShown {
		fmt.Fprintf(&b, "\n... и ещё %d операций", len(found)-searchShown)
	}

	sum := report.Summarize(found)
	b.WriteString("\n\n📊 Итоги поиска:\n")
	fmt.Fprintf(&b, "💰 Общая сумма: %s\n", money(sum.Total))
	if sum.Income.IsPositive() {
		fmt.Fprintf(&b, "📈 Доходы: +%s\n", money(sum.Income))
	}
	if sum.Expense.IsNegative() {
		fmt.Fprintf(&b, "📉 Расходы: %s\n", money(sum.Expense))
	}
	if sum.TopCategory != "" {
		fmt.Fprintf(&b, "🔝 Топ категория: %s (%s)", sum.TopCategory, money(sum.TopCategoryAmount))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatFind(term string, found []domain.Transaction) string {
	if len(found) == 0 {
		return fmt.Sprintf("❌ Операции с '%s' не найдены.", term)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 Найдено операций с '%s': %d\n\n", term, len(found))
	start := 0
	if len(found) > findShown {
		start = len(found) - findShown
	}
	for _, t := range found[start:] {
		fmt.Fprintf(&b, "%s %s: %s - %s\n", trendEmoji(t.Amount), t.Date, t.Description, money(t.Amount))
	}
	if start > 0 {
		fmt.Fprintf(&b, "\n... и ещё %d операций", start)
	}
	fmt.Fprintf(&b, "\n\n💰 Общая сумма: %s", money(report.Summarize(found).Total))
	return b.String()
}

func formatHistory(recent []string, tail []domain.Transaction) string {
	var b strings.Builder
	if len(recent) > 0 {
		b.WriteString("🧠 Контекст последних операций:\n\n")
		for i := range recent {
			fmt.Fprintf(&b, "%d. %s\n", i+1, recent[len(recent)-1-i])
		}
	} else {
		b.WriteString("📊 Контекст пуст - начните добавлять операции!\n")
	}
	if len(tail) > 0 {
		b.WriteString("\n💰 Последние финансовые операции:\n")
		for i := len(tail) - 1; i >= 0; i-- {
			t := tail[i]
			fmt.Fprintf(&b, "%s %s: %s\n", trendEmoji(t.Amount), t.Description, money(t.Amount))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

const searchHelp = `🔍 Голосовой поиск

Попробуйте сказать:
• 'Найди Петрова'
• 'Покажи операции за неделю'
• 'Когда платили Интигаму'`

const supplierHelp = "🏭 Назовите поставщика для анализа.\nНапример: 'Анализ поставщика Интигам'"
