package classifier

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/voice-ledger/internal/contextstore"
	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/extract"
)

// CategoryRule assigns Category when any prefix starts a word of the
// utterance (or, for multi-word prefixes, appears in it) or any word matches
// exactly.
type CategoryRule struct {
	Category string
	Prefixes []string
	Words    []string
}

// DefaultCategoryRules is the category priority table, highest first. An
// expense matching none of them keeps the category of a payee resolved from
// context, else goes to salaries when a payee name is present and to
// household expenses otherwise.
var DefaultCategoryRules = []CategoryRule{
	{Category: domain.CategoryFounders, Words: []string{"лично"}},
	{Category: domain.CategorySalaries, Prefixes: []string{"зарплат", "аванс", "преми"}},
	{Category: domain.CategorySupplier, Prefixes: []string{"поставщик"}},
	{Category: domain.CategoryInterest, Prefixes: []string{"процент"}},
	{Category: domain.CategoryMaterials, Prefixes: []string{"материал", "закупк", "товар"}},
	{Category: domain.CategoryTaxi, Prefixes: []string{"такси", "убер", "яндекс"}},
	{Category: domain.CategoryTransport, Prefixes: []string{"транспорт", "бензин", "авто", "герасимов"}},
	{Category: domain.CategoryConnectivity, Prefixes: []string{"связь", "связи", "интернет", "телефон"}},
	{Category: domain.CategoryCharity, Prefixes: []string{"благотворительн", "донат", "помощь"}, Words: []string{"сво"}},
	{Category: domain.CategoryHousehold, Prefixes: []string{"хоз расход", "хозяйствен", "офис", "канцеляр"}},
}

var (
	incomePrefixes = []string{"пополнил", "снял", "получил", "поступил", "поступлени"}
	incomePhrases  = []string{"взял наличку", "взяла наличку"}

	// payVerbs introduce the payee in "Дал Петрову ...".
	payVerbs = []string{"дал", "дала", "заплатил", "заплатила", "оплатил", "оплатила", "перевел", "перевёл", "перевела", "отдал", "отдала"}

	// dropWords never reach the description.
	dropWords = []string{
		"дал", "дала", "заплатил", "заплатила", "потратил", "потратила", "купил", "купила",
		"оплатил", "оплатила", "перевел", "перевёл", "перевела", "отдал", "отдала", "лично",
		"пополнил", "пополнила", "получил", "получила", "снял", "сняла", "взял", "взяла", "наличку",
		"руб", "рубль", "рубля", "рублей", "р", "₽", "тыс", "тысяч", "тысячи", "тысяча",
		"поставщику", "поставщика", "поставщик",
		"такая", "такую", "такой", "же", "сумма", "сумму", "суммой", "столько",
		"тому", "ему", "ей", "той", "тот", "та", "ту",
	}

	leadingPrepositions = []string{"за", "на", "в", "для"}

	sameAmountPhrases = []string{"такая же сумма", "такую же сумму", "такой же суммой", "ту же сумму", "та же сумма", "столько же"}
	samePayeePhrases  = []string{"тому же", "ему же", "ей же", "той же", "тот же", "такому же"}
)

// amountRe captures an amount with optional thousands grouping, fraction and
// multiplier ("40 000", "1500,50", "40к", "3 тысячи", "1.5 млн").
var amountRe = regexp.MustCompile(
	`(\d{1,3}(?:[ \x{00a0}]\d{3})+|\d+)(?:[.,](\d+))?(?:\s*(тыс[а-яё]*\.?|млн|миллион[а-яё]*|к)(?:[^а-яёa-z]|$))?`)

var defaultSuggestions = []string{"Дал Петрову 40000 за работу", "Такси 500", "Пополнил кассу 100000"}

// RuleStrategy is the deterministic extractor. It yields a finance result
// whenever an amount is present or resolvable from context.
type RuleStrategy struct {
	normalizer extract.NameNormalizer
	rules      []CategoryRule
	drop       map[string]bool
}

// NewRuleStrategy builds a rule strategy with DefaultCategoryRules.
func NewRuleStrategy(normalizer extract.NameNormalizer) *RuleStrategy {
	if normalizer == nil {
		normalizer = extract.NewTableNormalizer()
	}
	drop := make(map[string]bool, len(dropWords))
	for _, w := range dropWords {
		drop[w] = true
	}
	return &RuleStrategy{normalizer: normalizer, rules: DefaultCategoryRules, drop: drop}
}

type token struct {
	text  string
	lower string
}

func (s *RuleStrategy) Extract(_ context.Context, req Request) (domain.Result, error) {
	text := strings.TrimSpace(req.Utterance)
	lower := strings.ToLower(text)
	recent := latestSummary(req.Context)

	amount, found := parseAmount(text)
	if !found && containsAny(lower, sameAmountPhrases) && recent != nil {
		amount, found = recent.Amount.Abs(), true
	}
	if !found {
		return &domain.ClarificationResult{
			Message:     MissingAmountMessage,
			Suggestions: suggestions(req.Context),
		}, nil
	}
	if amount.IsZero() {
		return &domain.ClarificationResult{Message: ZeroAmountMessage, Suggestions: []string{}}, nil
	}

	words := tokenize(amountRe.ReplaceAllString(text, " "))
	payee, payeeIdx := s.findPayee(words)
	fallbackCategory := ""
	if payee == "" && containsAny(lower, samePayeePhrases) && recent != nil {
		payee = recent.Description
		fallbackCategory = recent.Category
	}

	result := &domain.FinanceResult{Confidence: AmountConfidence}
	if isIncome(lower, words) {
		result.OperationType = domain.OperationIncome
		result.Amount = amount
		result.Category = domain.CategoryNone
	} else {
		result.OperationType = domain.OperationExpense
		result.Amount = amount.Neg()
		result.Category = s.category(lower, words, payee != "", fallbackCategory)
	}
	result.Description = s.description(words, payee, payeeIdx, result.Category)
	return result, nil
}

// isZeroAmount reports whether res is the rules' rejection of a zero amount.
func isZeroAmount(res domain.Result) bool {
	c, ok := res.(*domain.ClarificationResult)
	return ok && c.Message == ZeroAmountMessage
}

func parseAmount(text string) (decimal.Decimal, bool) {
	m := amountRe.FindStringSubmatch(text)
	if m == nil {
		return decimal.Decimal{}, false
	}
	digits := strings.NewReplacer(" ", "", "\u00a0", "").Replace(m[1])
	if m[2] != "" {
		digits += "." + m[2]
	}
	v, err := decimal.NewFromString(digits)
	if err != nil {
		return decimal.Decimal{}, false
	}
	switch mult := strings.ToLower(m[3]); {
	case mult == "к" || strings.HasPrefix(mult, "тыс"):
		v = v.Mul(decimal.NewFromInt(1000))
	case mult == "млн" || strings.HasPrefix(mult, "миллион"):
		v = v.Mul(decimal.NewFromInt(1000000))
	}
	return v, true
}

func tokenize(text string) []token {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '₽' && r != '-'
	})
	out := make([]token, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "-")
		if f == "" {
			continue
		}
		out = append(out, token{text: f, lower: strings.ToLower(f)})
	}
	return out
}

// findPayee returns the normalised payee name and its word index, or -1.
// A payee is a capitalised or known name after a pay verb, or any other
// capitalised word that is not merely sentence-initial.
func (s *RuleStrategy) findPayee(words []token) (string, int) {
	for i, w := range words {
		if i+1 < len(words) && containsString(payVerbs, w.lower) {
			next := words[i+1]
			if s.drop[next.lower] || containsString(leadingPrepositions, next.lower) || !isLetters(next.text) {
				continue
			}
			if _, known := extract.DefaultNameTable[next.lower]; known || isCapitalized(next.text) {
				return capitalize(s.normalizer.Normalize(next.text)), i + 1
			}
		}
	}
	for i, w := range words {
		if s.drop[w.lower] || !isCapitalized(w.text) {
			continue
		}
		if i == 0 && !s.looksInflected(w) {
			continue
		}
		return capitalize(s.normalizer.Normalize(w.text)), i
	}
	return "", -1
}

// looksInflected reports whether a sentence-initial word is probably a name
// in an oblique case rather than an ordinary capitalised noun.
func (s *RuleStrategy) looksInflected(w token) bool {
	if _, ok := extract.DefaultNameTable[w.lower]; ok {
		return true
	}
	return strings.HasSuffix(w.lower, "у")
}

func (s *RuleStrategy) category(lower string, words []token, hasPayee bool, fallback string) string {
	for _, rule := range s.rules {
		if ruleMatches(rule, lower, words) {
			return rule.Category
		}
	}
	if fallback != "" && fallback != domain.CategoryNone && domain.IsKnownCategory(fallback) {
		return fallback
	}
	if hasPayee {
		return domain.CategorySalaries
	}
	return domain.CategoryHousehold
}

func ruleMatches(rule CategoryRule, lower string, words []token) bool {
	for _, p := range rule.Prefixes {
		if strings.Contains(p, " ") {
			if strings.Contains(lower, p) {
				return true
			}
			continue
		}
		for _, w := range words {
			if strings.HasPrefix(w.lower, p) {
				return true
			}
		}
	}
	for _, exact := range rule.Words {
		for _, w := range words {
			if w.lower == exact {
				return true
			}
		}
	}
	return false
}

func isIncome(lower string, words []token) bool {
	if containsAny(lower, incomePhrases) {
		return true
	}
	for _, w := range words {
		for _, p := range incomePrefixes {
			if strings.HasPrefix(w.lower, p) {
				return true
			}
		}
	}
	return false
}

func (s *RuleStrategy) description(words []token, payee string, payeeIdx int, category string) string {
	var parts []string
	usedPayee := false
	for i, w := range words {
		if i == payeeIdx {
			parts = append(parts, payee)
			usedPayee = true
			continue
		}
		if s.drop[w.lower] {
			continue
		}
		if len(parts) == 0 && containsString(leadingPrepositions, w.lower) {
			continue
		}
		parts = append(parts, w.text)
	}
	if !usedPayee && payee != "" {
		parts = append([]string{payee}, parts...)
	}

	desc := strings.Join(parts, " ")
	if desc == "" {
		if category == domain.CategoryNone {
			return "Пополнение"
		}
		return category
	}
	return capitalize(desc)
}

func latestSummary(lines []string) *contextstore.ParsedSummary {
	for i := len(lines) - 1; i >= 0; i-- {
		if p, ok := contextstore.ParseSummary(lines[i]); ok {
			return &p
		}
	}
	return nil
}

func suggestions(lines []string) []string {
	var out []string
	seen := make(map[string]bool)
	for i := len(lines) - 1; i >= 0 && len(out) < MaxSuggestions; i-- {
		p, ok := contextstore.ParseSummary(lines[i])
		if !ok || seen[p.Description] {
			continue
		}
		seen[p.Description] = true
		out = append(out, p.Description+" "+p.Amount.Abs().String())
	}
	if len(out) == 0 {
		return append([]string(nil), defaultSuggestions...)
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func isCapitalized(w string) bool {
	for _, r := range w {
		return unicode.IsUpper(r)
	}
	return false
}

func isLetters(w string) bool {
	for _, r := range w {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return w != ""
}

func capitalize(s string) string {
	for i, r := range s {
		return string(unicode.ToUpper(r)) + s[i+len(string(r)):]
	}
	return s
}

var _ Strategy = (*RuleStrategy)(nil)
