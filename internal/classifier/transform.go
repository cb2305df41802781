package classifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

// decodeModelResult converts the model's JSON object into a result,
// enforcing the record invariants the ledger relies on.
func decodeModelResult(raw map[string]interface{}) (domain.Result, error) {
	typ, err := getStringField(raw, "type", true)
	if err != nil {
		return nil, fmt.Errorf("decodeModelResult: %w", err)
	}

	switch domain.ResultType(typ) {
	case domain.ResultFinance:
		return decodeFinance(raw)
	case domain.ResultClarification:
		return decodeClarification(raw)
	default:
		return nil, fmt.Errorf("decodeModelResult: unknown type %q", typ)
	}
}

func decodeFinance(raw map[string]interface{}) (*domain.FinanceResult, error) {
	opType, err := getStringField(raw, "operation_type", true)
	if err != nil {
		return nil, fmt.Errorf("decodeFinance: %w", err)
	}
	amount, err := getDecimalField(raw, "amount")
	if err != nil {
		return nil, fmt.Errorf("decodeFinance: %w", err)
	}
	category, err := getStringField(raw, "category", true)
	if err != nil {
		return nil, fmt.Errorf("decodeFinance: %w", err)
	}
	desc, err := getStringField(raw, "description", true)
	if err != nil {
		return nil, fmt.Errorf("decodeFinance: %w", err)
	}
	comment, err := getOptionalStringField(raw, "comment")
	if err != nil {
		return nil, fmt.Errorf("decodeFinance: %w", err)
	}
	confidence, err := getOptionalFloat64Field(raw, "confidence")
	if err != nil {
		return nil, fmt.Errorf("decodeFinance: %w", err)
	}

	f := &domain.FinanceResult{
		OperationType: domain.OperationType(strings.TrimSpace(opType)),
		Amount:        amount,
		Category:      strings.TrimSpace(category),
		Description:   capitalize(strings.TrimSpace(desc)),
		Confidence:    1,
	}
	if comment != nil {
		f.Comment = *comment
	}
	if confidence != nil {
		f.Confidence = clamp01(*confidence)
	}

	// Sign follows the operation type even when the model forgets it.
	switch f.OperationType {
	case domain.OperationExpense:
		f.Amount = f.Amount.Abs().Neg()
	case domain.OperationIncome:
		f.Amount = f.Amount.Abs()
		f.Category = domain.CategoryNone
	}

	candidate := domain.Transaction{
		Date:          "01.01.2000",
		OperationType: f.OperationType,
		Category:      f.Category,
		Description:   f.Description,
		Amount:        f.Amount,
	}
	if err := candidate.Validate(); err != nil {
		return nil, fmt.Errorf("decodeFinance: %w", err)
	}
	return f, nil
}

func decodeClarification(raw map[string]interface{}) (*domain.ClarificationResult, error) {
	msg, err := getStringField(raw, "message", true)
	if err != nil {
		return nil, fmt.Errorf("decodeClarification: %w", err)
	}
	suggestions, err := getStringSliceField(raw, "suggestions")
	if err != nil {
		return nil, fmt.Errorf("decodeClarification: %w", err)
	}
	if len(suggestions) > MaxSuggestions {
		suggestions = suggestions[:MaxSuggestions]
	}
	return &domain.ClarificationResult{Message: msg, Suggestions: suggestions}, nil
}

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	switch val := v.(type) {
	case string:
		if required && strings.TrimSpace(val) == "" {
			return "", fmt.Errorf("required field %q is empty", key)
		}
		return val, nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

func getOptionalStringField(m map[string]interface{}, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want string or null", key, v)
	}
}

// getDecimalField reads a JSON number (decoded with UseNumber) or a numeric string.
func getDecimalField(m map[string]interface{}, key string) (decimal.Decimal, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return decimal.Decimal{}, fmt.Errorf("missing required field %q", key)
	}
	var s string
	switch val := v.(type) {
	case json.Number:
		s = val.String()
	case float64:
		return decimal.NewFromFloat(val), nil
	case string:
		s = strings.NewReplacer(" ", "", ",", ".").Replace(val)
	default:
		return decimal.Decimal{}, fmt.Errorf("field %q has type %T, want number", key, v)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("field %q: %w", key, err)
	}
	return d, nil
}

func getOptionalFloat64Field(m map[string]interface{}, key string) (*float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		return &f, nil
	case float64:
		f := val
		return &f, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want number or null", key, v)
	}
}

func getStringSliceField(m map[string]interface{}, key string) ([]string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return []string{}, nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("field %q has type %T, want array", key, v)
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("field %q element %d has type %T, want string", key, i, item)
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
