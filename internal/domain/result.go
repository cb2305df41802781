package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ResultType tags the classifier's JSON contracts.
type ResultType string

const (
	ResultFinance       ResultType = "finance"
	ResultClarification ResultType = "clarification"
	ResultVoiceCommand  ResultType = "voice_command"
)

// Command is the analytic action carried by a voice_command result.
type Command string

const (
	CommandRecipients Command = "recipients"
	CommandSuppliers  Command = "suppliers"
	CommandAnalytics  Command = "analytics"
	CommandSearch     Command = "search"
	CommandCategories Command = "categories"
	CommandHistory    Command = "history"
	CommandBackup     Command = "backup"
)

// ConfirmThreshold is the confidence below which a finance result needs
// explicit confirmation before it is written.
const ConfirmThreshold = 0.7

// Result is one of *FinanceResult, *ClarificationResult or *VoiceCommandResult.
type Result interface {
	ResultType() ResultType
}

// FinanceResult is a transaction extracted from an utterance.
type FinanceResult struct {
	OperationType OperationType
	Amount        decimal.Decimal
	Category      string
	Description   string
	Comment       string
	Confidence    float64
}

func (*FinanceResult) ResultType() ResultType { return ResultFinance }

// NeedsConfirmation reports whether the result falls under ConfirmThreshold.
func (f *FinanceResult) NeedsConfirmation() bool {
	return f.Confidence < ConfirmThreshold
}

// Transaction stamps the result with today's Moscow date.
func (f *FinanceResult) Transaction(now time.Time) Transaction {
	return Transaction{
		Date:          now.In(moscow).Format(DateLayout),
		OperationType: f.OperationType,
		Category:      f.Category,
		Description:   f.Description,
		Amount:        f.Amount,
		Comment:       f.Comment,
	}
}

func (f *FinanceResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type          ResultType    `json:"type"`
		OperationType OperationType `json:"operation_type"`
		Amount        json.Number   `json:"amount"`
		Category      string        `json:"category"`
		Description   string        `json:"description"`
		Comment       string        `json:"comment"`
		Confidence    float64       `json:"confidence"`
	}{ResultFinance, f.OperationType, json.Number(f.Amount.String()), f.Category, f.Description, f.Comment, f.Confidence})
}

// ClarificationResult asks the operator to rephrase.
type ClarificationResult struct {
	Message     string
	Suggestions []string
}

func (*ClarificationResult) ResultType() ResultType { return ResultClarification }

func (c *ClarificationResult) MarshalJSON() ([]byte, error) {
	suggestions := c.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	return json.Marshal(struct {
		Type        ResultType `json:"type"`
		Message     string     `json:"message"`
		Suggestions []string   `json:"suggestions"`
	}{ResultClarification, c.Message, suggestions})
}

// VoiceCommandResult routes an utterance to an analytic command. Params is
// the raw utterance.
type VoiceCommandResult struct {
	Command Command
	Params  string
}

func (*VoiceCommandResult) ResultType() ResultType { return ResultVoiceCommand }

func (v *VoiceCommandResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ResultType `json:"type"`
		Command Command    `json:"command"`
		Params  string     `json:"params"`
	}{ResultVoiceCommand, v.Command, v.Params})
}
