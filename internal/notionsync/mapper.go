package notionsync

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/ledger"
)

// Database property names. They follow the ledger header, plus a key column
// the exporter uses to match pages to rows.
const (
	PropDescription = "Описание/Получатель"
	PropDate        = "Дата"
	PropType        = "Тип операции"
	PropCategory    = "Категория"
	PropAmount      = "Сумма"
	PropComment     = "Комментарий"
	PropKey         = "Ключ"
)

// Keys returns a stable key per entry. Row indexes shift on delete, so the
// key is a hash of the row's content; identical rows get an occurrence suffix.
func Keys(entries []ledger.Entry) []string {
	keys := make([]string, len(entries))
	seen := make(map[string]int)
	for i, e := range entries {
		base := contentHash(e.Transaction)
		seen[base]++
		keys[i] = fmt.Sprintf("%s-%d", base, seen[base])
	}
	return keys
}

func contentHash(t domain.Transaction) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		t.Date, string(t.OperationType), t.Category, t.Description, t.Amount.String(), t.Comment,
	}, "\x1f")))
	return hex.EncodeToString(sum[:8])
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}}}
}

// TransactionToProperties maps one ledger row to database properties.
func TransactionToProperties(t domain.Transaction, key string) notionapi.Properties {
	amount, _ := t.Amount.Float64()
	props := notionapi.Properties{
		PropDescription: notionapi.TitleProperty{Title: richText(t.Description)},
		PropType:        notionapi.SelectProperty{Select: notionapi.Option{Name: string(t.OperationType)}},
		PropCategory:    notionapi.SelectProperty{Select: notionapi.Option{Name: t.Category}},
		PropAmount:      notionapi.NumberProperty{Number: amount},
		PropKey:         notionapi.RichTextProperty{RichText: richText(key)},
	}

	if d, err := t.ParsedDate(); err == nil {
		start := notionapi.Date(d)
		props[PropDate] = notionapi.DateProperty{Date: &notionapi.DateObject{Start: &start}}
	}
	if t.Comment != "" {
		props[PropComment] = notionapi.RichTextProperty{RichText: richText(t.Comment)}
	}
	return props
}

// pageKey reads the key column of a page; "" when absent.
func pageKey(page notionapi.Page) string {
	prop, ok := page.Properties[PropKey]
	if !ok {
		return ""
	}
	rt, ok := prop.(*notionapi.RichTextProperty)
	if !ok || len(rt.RichText) == 0 {
		return ""
	}
	if rt.RichText[0].PlainText != "" {
		return rt.RichText[0].PlainText
	}
	if rt.RichText[0].Text != nil {
		return rt.RichText[0].Text.Content
	}
	return ""
}
