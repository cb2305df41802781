package query

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// PeriodKind selects how a Period constrains a date.
type PeriodKind int

const (
	PeriodWeek PeriodKind = iota + 1
	PeriodMonth
	PeriodYear
	PeriodCalendarMonth
)

const (
	weekSpan  = 7 * 24 * time.Hour
	monthSpan = 30 * 24 * time.Hour
)

// Period is a time constraint: a trailing window (7 or 30 days), a calendar
// year, or a calendar month of any year.
type Period struct {
	Kind  PeriodKind
	Year  int
	Month time.Month
}

var (
	Week  = Period{Kind: PeriodWeek}
	Month = Period{Kind: PeriodMonth}
)

// Year returns a calendar-year period.
func Year(y int) Period { return Period{Kind: PeriodYear, Year: y} }

// CalendarMonth returns a period matching month m of any year.
func CalendarMonth(m time.Month) Period { return Period{Kind: PeriodCalendarMonth, Month: m} }

// Contains reports whether date falls in the period as seen at now.
func (p Period) Contains(date, now time.Time) bool {
	switch p.Kind {
	case PeriodWeek:
		return !date.Before(now.Add(-weekSpan))
	case PeriodMonth:
		return !date.Before(now.Add(-monthSpan))
	case PeriodYear:
		return date.Year() == p.Year
	case PeriodCalendarMonth:
		return date.Month() == p.Month
	}
	return true
}

// String renders the period the way the operator says it.
func (p Period) String() string {
	switch p.Kind {
	case PeriodWeek:
		return "неделя"
	case PeriodMonth:
		return "месяц"
	case PeriodYear:
		return strconv.Itoa(p.Year)
	case PeriodCalendarMonth:
		return monthNames[p.Month-1]
	}
	return ""
}

var monthNames = [12]string{
	"январь", "февраль", "март", "апрель", "май", "июнь",
	"июль", "август", "сентябрь", "октябрь", "ноябрь", "декабрь",
}

// monthStems are matched as word prefixes so inflected forms resolve too
// ("декабре", "марта"). May is listed by its full forms since "ма" is too short.
var monthStems = [12][]string{
	{"январ"}, {"феврал"}, {"март"}, {"апрел"}, {"май", "мая", "мае"}, {"июн"},
	{"июл"}, {"август"}, {"сентябр"}, {"октябр"}, {"ноябр"}, {"декабр"},
}

// YearTokens are the literal tokens recognised as calendar years.
var YearTokens = map[string]int{
	"2024": 2024,
	"2025": 2025,
}

// monthForms lists the spelled-out forms accepted by MonthFromName:
// nominative, genitive and prepositional.
var monthForms = map[string]time.Month{
	"январь": time.January, "января": time.January, "январе": time.January,
	"февраль": time.February, "февраля": time.February, "феврале": time.February,
	"март": time.March, "марта": time.March, "марте": time.March,
	"апрель": time.April, "апреля": time.April, "апреле": time.April,
	"май": time.May, "мая": time.May, "мае": time.May,
	"июнь": time.June, "июня": time.June, "июне": time.June,
	"июль": time.July, "июля": time.July, "июле": time.July,
	"август": time.August, "августа": time.August, "августе": time.August,
	"сентябрь": time.September, "сентября": time.September, "сентябре": time.September,
	"октябрь": time.October, "октября": time.October, "октябре": time.October,
	"ноябрь": time.November, "ноября": time.November, "ноябре": time.November,
	"декабрь": time.December, "декабря": time.December, "декабре": time.December,
}

// MonthFromName resolves a word that is exactly a month name or one of its
// case forms. Unlike MonthFromWord it never matches "маяк" or "июнев".
func MonthFromName(word string) (time.Month, bool) {
	m, ok := monthForms[strings.ToLower(word)]
	return m, ok
}

// MonthFromWord resolves a lowercase word to a calendar month by stem, so
// it also accepts forms such as "мартом". It is meant for free phrases
// where a near miss is cheap; search tokens go through MonthFromName.
func MonthFromWord(word string) (time.Month, bool) {
	word = strings.ToLower(word)
	for i, stems := range monthStems {
		for _, stem := range stems {
			if !strings.HasPrefix(word, stem) {
				continue
			}
			// allow at most a two-letter case ending
			if utf8.RuneCountInString(word)-utf8.RuneCountInString(stem) <= 2 {
				return time.Month(i + 1), true
			}
		}
	}
	return 0, false
}

// PeriodFromWord resolves a single lowercase word to a period: неделя/неделю,
// месяц, a month name or a year token.
func PeriodFromWord(word string) (Period, bool) {
	word = strings.ToLower(word)
	switch word {
	case "неделя", "неделю":
		return Week, true
	case "месяц":
		return Month, true
	}
	if y, ok := YearTokens[word]; ok {
		return Year(y), true
	}
	if m, ok := MonthFromName(word); ok {
		return CalendarMonth(m), true
	}
	return Period{}, false
}
