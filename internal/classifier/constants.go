package classifier

import "time"

const (
	// DefaultModelName is the Gemini model used for structured extraction.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultModelTemperature keeps extraction close to deterministic.
	DefaultModelTemperature = 0.1

	// DefaultModelTimeout bounds a single extraction call.
	DefaultModelTimeout = 30 * time.Second

	// ContextLines is how many recent summaries are shown to the extractor.
	ContextLines = 5

	// AmountConfidence is forced on every result whose utterance carries an amount.
	AmountConfidence = 0.9

	// MaxSuggestions caps clarification suggestions.
	MaxSuggestions = 3

	// ApologyMessage is returned whenever extraction fails without an amount.
	ApologyMessage = "Извините, произошла ошибка. Попробуйте переформулировать."

	// MissingAmountMessage asks for the amount when none could be found.
	MissingAmountMessage = "Не удалось определить сумму. Уточните, сколько и кому?"

	// ZeroAmountMessage rejects an utterance whose only amount is zero.
	ZeroAmountMessage = "Сумма операции не может быть нулевой. Укажите сумму больше нуля."
)
