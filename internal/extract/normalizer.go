package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// NameNormalizer maps an inflected proper name to its nominative form.
type NameNormalizer interface {
	Normalize(name string) string
}

// DefaultNameTable holds known inflected forms, keyed lowercase.
var DefaultNameTable = map[string]string{
	"интигаму":  "Интигам",
	"интигама":  "Интигам",
	"интигамом": "Интигам",
	"балтики":   "Балтика",
	"балтике":   "Балтика",
	"балтику":   "Балтика",
	"балтикой":  "Балтика",
	"петрову":   "Петров",
	"петрова":   "Петров",
	"петровым":  "Петров",
	"рустаму":   "Рустам",
	"рустама":   "Рустам",
	"рустамом":  "Рустам",
}

// minStemRunes keeps the fallback from reducing short names to stubs.
const minStemRunes = 3

// TableNormalizer resolves names through a lookup table and otherwise drops
// one trailing у, а or е. The fallback approximates the nominative case; it
// is not a morphological analysis and truncates names whose nominative form
// ends in one of those letters ("Анна" becomes "Анн").
type TableNormalizer struct {
	Table map[string]string
	// Fallback disables suffix stripping when false.
	Fallback bool
}

// NewTableNormalizer returns a normalizer over DefaultNameTable with the
// suffix fallback enabled.
func NewTableNormalizer() *TableNormalizer {
	return &TableNormalizer{Table: DefaultNameTable, Fallback: true}
}

func (n *TableNormalizer) Normalize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if canonical, ok := n.Table[strings.ToLower(name)]; ok {
		return canonical
	}
	if !n.Fallback {
		return name
	}
	last, size := utf8.DecodeLastRuneInString(name)
	switch unicode.ToLower(last) {
	case 'у', 'а', 'е':
		stem := name[:len(name)-size]
		if utf8.RuneCountInString(lastWord(stem)) >= minStemRunes {
			return stem
		}
	}
	return name
}

func lastWord(s string) string {
	if i := strings.LastIndexFunc(s, unicode.IsSpace); i >= 0 {
		return s[i+1:]
	}
	return s
}

var _ NameNormalizer = (*TableNormalizer)(nil)
