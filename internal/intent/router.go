// Package intent routes utterances to analytic commands by keyword.
package intent

import (
	"strings"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

// Rule maps a keyword group to a command. An utterance matches the rule when
// its lowercased text contains any of the keywords.
type Rule struct {
	Command  domain.Command
	Keywords []string
}

// DefaultRules is the routing priority, highest first. Groups overlap, so
// order matters: "поставщик" must be tested before the generic "анализ",
// and recipient phrases before both.
var DefaultRules = []Rule{
	{domain.CommandRecipients, []string{"кому платили", "анализ получателей", "по получателям", "кому больше", "топ получателей"}},
	{domain.CommandSuppliers, []string{"анализ поставщика", "по поставщику", "история с", "поставщик"}},
	{domain.CommandAnalytics, []string{"анализ", "аналитика", "отчет", "отчёт", "покажи траты", "сколько потратили"}},
	{domain.CommandSearch, []string{"найди", "найти", "поиск", "покажи операции", "когда платили"}},
	{domain.CommandCategories, []string{"по категориям", "категории", "расходы по"}},
	{domain.CommandHistory, []string{"история", "последние операции", "что было"}},
	{domain.CommandBackup, []string{"бэкап", "резервная копия", "сохрани", "backup"}},
}

// Match is a routed utterance. Params carries the original text.
type Match struct {
	Command domain.Command
	Params  string
}

// Router evaluates an ordered rule list in a single pass.
type Router struct {
	rules []Rule
}

// NewRouter returns a router over rules, or DefaultRules when rules is empty.
func NewRouter(rules ...Rule) *Router {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Router{rules: rules}
}

// Classify returns the first matching rule's command. ok is false when the
// utterance should be treated as a transaction instead.
func (r *Router) Classify(utterance string) (Match, bool) {
	text := strings.ToLower(utterance)
	for _, rule := range r.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) {
				return Match{Command: rule.Command, Params: utterance}, true
			}
		}
	}
	return Match{}, false
}

// Keywords returns every keyword known to the router, used by the entity
// extractor to skip command words when scanning for names.
func (r *Router) Keywords() []string {
	var out []string
	for _, rule := range r.rules {
		out = append(out, rule.Keywords...)
	}
	return out
}
