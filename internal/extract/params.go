// Package extract pulls names, periods and category hints out of analytic
// utterances.
package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/query"
)

// CategoryHint pre-fills command arguments; it is not a ledger category.
type CategoryHint string

const (
	HintSalary     CategoryHint = "зарплаты"
	HintSupplier   CategoryHint = "поставщик"
	HintPercentage CategoryHint = "процент"
)

// Params are the arguments extracted for an analytic command.
type Params struct {
	Name     string
	Period   *query.Period
	Category CategoryHint
}

// supplierTriggers are tried in order; the first capture wins.
var supplierTriggers = []string{`поставщика`, `поставщику`, `история\s+с`, `по`, `анализ`}

const properName = `([А-ЯЁ][а-яё]+(?:\s+[А-ЯЁ][а-яё]+)?)`

var (
	strictSupplier = compileTriggers(`(?:^|\s)(?i:%s)\s+` + properName)
	looseSupplier  = compileTriggers(`(?:^|\s)(?i:%s)\s+((?i:[а-яё]+))`)
)

func compileTriggers(format string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(supplierTriggers))
	for _, trig := range supplierTriggers {
		out = append(out, regexp.MustCompile(strings.Replace(format, "%s", trig, 1)))
	}
	return out
}

// stopWords are capitalised only by sentence position or are command words;
// the generic name scan skips them.
var stopWords = []string{
	"покажи", "найди", "найти", "дай", "выведи", "сделай", "сколько", "кому", "когда",
	"что", "за", "по", "с", "в", "на", "и", "история", "анализ", "аналитика", "отчет",
	"отчёт", "поиск", "последние", "операции", "траты", "расходы", "категории",
	"поставщик", "поставщика", "поставщику", "бэкап", "неделю", "неделя", "месяц",
}

// Extractor implements parameter extraction for routed commands.
type Extractor struct {
	normalizer NameNormalizer
	skip       map[string]bool
}

// New returns an extractor. extraSkip adds words (typically the router's
// keywords) that must never be read as names.
func New(normalizer NameNormalizer, extraSkip ...string) *Extractor {
	if normalizer == nil {
		normalizer = NewTableNormalizer()
	}
	skip := make(map[string]bool)
	for _, w := range stopWords {
		skip[w] = true
	}
	for _, phrase := range extraSkip {
		for _, w := range strings.Fields(strings.ToLower(phrase)) {
			skip[w] = true
		}
	}
	return &Extractor{normalizer: normalizer, skip: skip}
}

// Extract returns the parameters found in utterance for cmd.
func (e *Extractor) Extract(utterance string, cmd domain.Command) Params {
	var p Params
	if cmd == domain.CommandSuppliers {
		p.Name = e.supplierName(utterance)
	}
	if p.Name == "" {
		p.Name = e.firstProperName(utterance)
	}
	if p.Name != "" {
		p.Name = capitalize(e.normalizer.Normalize(p.Name))
	}
	p.Period = extractPeriod(utterance)
	p.Category = extractHint(utterance)
	return p
}

func (e *Extractor) supplierName(text string) string {
	for _, re := range strictSupplier {
		if m := re.FindStringSubmatch(text); m != nil && !e.skip[strings.ToLower(firstWord(m[1]))] {
			return m[1]
		}
	}
	for _, re := range looseSupplier {
		if m := re.FindStringSubmatch(text); m != nil && !e.skip[strings.ToLower(m[1])] {
			return m[1]
		}
	}
	return ""
}

// firstProperName returns the first capitalised word not in the skip set,
// joined with the following word when that one is capitalised too.
func (e *Extractor) firstProperName(text string) string {
	words := strings.FieldsFunc(text, func(r rune) bool { return !unicode.IsLetter(r) })
	for i, w := range words {
		if !isCapitalizedCyrillic(w) || e.skip[strings.ToLower(w)] {
			continue
		}
		if i+1 < len(words) && isCapitalizedCyrillic(words[i+1]) && !e.skip[strings.ToLower(words[i+1])] {
			return w + " " + words[i+1]
		}
		return w
	}
	return ""
}

func extractPeriod(text string) *query.Period {
	lower := strings.ToLower(text)
	words := strings.FieldsFunc(lower, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
	for _, w := range words {
		if w == "неделя" || w == "неделю" {
			p := query.Week
			return &p
		}
	}
	if strings.Contains(lower, "месяц") {
		p := query.Month
		return &p
	}
	for _, w := range words {
		if m, ok := query.MonthFromWord(w); ok {
			p := query.CalendarMonth(m)
			return &p
		}
	}
	return nil
}

func extractHint(text string) CategoryHint {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "зарплат"):
		return HintSalary
	case strings.Contains(lower, "поставщик"):
		return HintSupplier
	case strings.Contains(lower, "процент"):
		return HintPercentage
	}
	return ""
}

func isCapitalizedCyrillic(w string) bool {
	for _, r := range w {
		return unicode.IsUpper(r) && unicode.Is(unicode.Cyrillic, r)
	}
	return false
}

func firstWord(s string) string {
	if i := strings.IndexFunc(s, unicode.IsSpace); i >= 0 {
		return s[:i]
	}
	return s
}

func capitalize(s string) string {
	for i, r := range s {
		return string(unicode.ToUpper(r)) + s[i+len(string(r)):]
	}
	return s
}
