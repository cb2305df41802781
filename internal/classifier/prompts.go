package classifier

import (
	"strings"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

// buildSystemPrompt returns the fixed extraction instructions. The rules
// mirror RuleStrategy so both strategies agree on categories and amounts.
func buildSystemPrompt() string {
	var b strings.Builder
	b.WriteString("Ты помощник бухгалтера. Разбери русскую фразу о финансовой операции.\n\n")

	b.WriteString("Категории расходов (используй ТОЧНО одно из названий):\n")
	for _, c := range domain.Categories {
		b.WriteString("- " + c + "\n")
	}
	b.WriteString("Для поступлений денег категория \"-\".\n\n")

	b.WriteString("ПРАВИЛА КАТЕГОРИЙ (по приоритету):\n")
	b.WriteString("1. \"<имя> лично\" (Таня лично, Игорь лично, Антон лично) -> \"Выплаты учредителям\".\n")
	b.WriteString("2. зарплата, аванс, премия -> \"Зарплаты сотрудникам\".\n")
	b.WriteString("3. поставщик -> \"Оплата поставщику\"; процент -> \"Процент\"; материалы, закупка, товары -> \"Материалы\".\n")
	b.WriteString("4. такси, убер, яндекс -> \"Такси\".\n")
	b.WriteString("5. транспорт, бензин, авто, Герасимов -> \"Транспорт\".\n")
	b.WriteString("6. связь, интернет, телефон -> \"Связь\".\n")
	b.WriteString("7. благотворительность, донат, помощь, СВО -> \"Благотворительность\".\n")
	b.WriteString("8. хоз расходы, хозяйственные, офис, канцелярия -> \"Общественные расходы\".\n")
	b.WriteString("9. Заплатил/дал человеку без других признаков -> \"Зарплаты сотрудникам\".\n\n")

	b.WriteString("ТИП ОПЕРАЦИИ:\n")
	b.WriteString("- пополнил, снял, взял наличку, получил деньги -> \"Пополнение\", сумма положительная, категория \"-\".\n")
	b.WriteString("- заплатил, потратил, дал, купил, оплатил, зарплата -> \"Расход\", сумма отрицательная.\n\n")

	b.WriteString("ОПИСАНИЕ: убери слова заплатил, дал, потратил, купил, оплатил, лично. ")
	b.WriteString("Оставь только получателя или назначение, имя в именительном падеже, с заглавной буквы.\n\n")

	b.WriteString("КОНТЕКСТ: \"такая же сумма\", \"столько же\" бери из самой последней подходящей операции контекста; ")
	b.WriteString("\"тому же\", \"ему же\" означает того же получателя.\n\n")

	b.WriteString("УВЕРЕННОСТЬ: если во фразе есть число, confidence = 0.9 и НИКОГДА не отвечай clarification. ")
	b.WriteString("Если числа нет и смысл неясен, отвечай clarification.\n\n")

	b.WriteString("Ответ: СТРОГО один JSON-объект без Markdown и без ```.\n")
	b.WriteString("Операция: {\"type\":\"finance\",\"operation_type\":\"Расход\"|\"Пополнение\",\"amount\":число,")
	b.WriteString("\"category\":строка,\"description\":строка,\"comment\":строка,\"confidence\":число от 0 до 1}\n")
	b.WriteString("Уточнение: {\"type\":\"clarification\",\"message\":строка,\"suggestions\":[до 3 строк]}\n")
	return b.String()
}

// buildUserPrompt wraps the utterance with the recent-operations block.
func buildUserPrompt(req Request) string {
	var b strings.Builder
	if len(req.Context) > 0 {
		b.WriteString("Последние операции:\n")
		for _, line := range req.Context {
			b.WriteString("- " + line + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("Фраза: " + req.Utterance)
	return b.String()
}
