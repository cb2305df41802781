package domain

// Ledger categories. The set is closed; CategoryNone marks incoming funds.
const (
	CategorySalaries     = "Зарплаты сотрудникам"
	CategoryFounders     = "Выплаты учредителям"
	CategorySupplier     = "Оплата поставщику"
	CategoryInterest     = "Процент"
	CategoryGoods        = "Закупка товара"
	CategoryMaterials    = "Материалы"
	CategoryTransport    = "Транспорт"
	CategoryConnectivity = "Связь"
	CategoryTaxi         = "Такси"
	CategoryHousehold    = "Общественные расходы"
	CategoryCharity      = "Благотворительность"

	CategoryNone = "-"
)

// Categories lists the expense categories in display order.
var Categories = []string{
	CategorySalaries,
	CategoryFounders,
	CategorySupplier,
	CategoryInterest,
	CategoryGoods,
	CategoryMaterials,
	CategoryTransport,
	CategoryConnectivity,
	CategoryTaxi,
	CategoryHousehold,
	CategoryCharity,
}

// IsKnownCategory reports whether c is one of Categories or CategoryNone.
func IsKnownCategory(c string) bool {
	if c == CategoryNone {
		return true
	}
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

var categoryEmoji = map[string]string{
	CategorySalaries:     "💼",
	CategoryFounders:     "👤",
	CategorySupplier:     "🏭",
	CategoryInterest:     "📈",
	CategoryGoods:        "📦",
	CategoryMaterials:    "🧱",
	CategoryTransport:    "🚗",
	CategoryConnectivity: "📱",
	CategoryTaxi:         "🚕",
	CategoryHousehold:    "🏢",
	CategoryCharity:      "❤️",
}

// CategoryEmoji returns the marker shown next to a category in reports.
func CategoryEmoji(c string) string {
	if e, ok := categoryEmoji[c]; ok {
		return e
	}
	return "📊"
}
