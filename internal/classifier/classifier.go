// Package classifier turns utterances into analytic commands, transactions
// or clarification requests.
package classifier

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/voice-ledger/internal/contextstore"
	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/intent"
	"github.com/dvloznov/voice-ledger/internal/logger"
)

// Classifier maps an utterance plus the user's context to a result.
type Classifier interface {
	Classify(ctx context.Context, utterance string, uc contextstore.UserContext) domain.Result
}

// Request is the input handed to an extraction strategy.
type Request struct {
	Utterance string
	// Context holds recent summaries, oldest first.
	Context []string
}

// Strategy extracts transaction fields from a recording utterance. It
// returns a *domain.FinanceResult or a *domain.ClarificationResult.
type Strategy interface {
	Extract(ctx context.Context, req Request) (domain.Result, error)
}

// CommandClassifier is the deterministic variant: it only recognises
// analytic commands and returns nil for everything else.
type CommandClassifier struct {
	router *intent.Router
}

func NewCommandClassifier(router *intent.Router) *CommandClassifier {
	if router == nil {
		router = intent.NewRouter()
	}
	return &CommandClassifier{router: router}
}

func (c *CommandClassifier) Classify(_ context.Context, utterance string, _ contextstore.UserContext) domain.Result {
	m, ok := c.router.Classify(utterance)
	if !ok {
		return nil
	}
	return &domain.VoiceCommandResult{Command: m.Command, Params: m.Params}
}

// ExtractionClassifier is the structured-extraction variant. The model
// strategy is optional; the rule strategy backs it up and decides whether
// the utterance carries an amount.
type ExtractionClassifier struct {
	model   Strategy
	rules   *RuleStrategy
	timeout time.Duration
}

func NewExtractionClassifier(model Strategy, rules *RuleStrategy, timeout time.Duration) *ExtractionClassifier {
	if rules == nil {
		rules = NewRuleStrategy(nil)
	}
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}
	return &ExtractionClassifier{model: model, rules: rules, timeout: timeout}
}

// Classify never returns nil and never fails: every error path resolves to
// a clarification.
func (e *ExtractionClassifier) Classify(ctx context.Context, utterance string, uc contextstore.UserContext) (result domain.Result) {
	log := logger.FromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("extraction panicked")
			result = Apology()
		}
	}()

	req := Request{Utterance: utterance, Context: uc.Tail(ContextLines)}

	ruled, err := e.rules.Extract(ctx, req)
	if err != nil {
		log.Warn().Err(err).Msg("rule extraction failed")
		ruled = nil
	}
	ruledFinance, hasAmount := ruled.(*domain.FinanceResult)
	if isZeroAmount(ruled) {
		return ruled
	}

	if e.model == nil {
		if ruled == nil {
			return Apology()
		}
		return ruled
	}

	mctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res, err := e.model.Extract(mctx, req)
	if err != nil {
		log.Warn().Err(err).Bool("has_amount", hasAmount).Msg("model extraction failed")
		if hasAmount {
			return ruledFinance
		}
		return Apology()
	}

	switch r := res.(type) {
	case *domain.FinanceResult:
		if hasAmount {
			r.Confidence = AmountConfidence
		}
		return r
	case *domain.ClarificationResult:
		if hasAmount {
			log.Debug().Msg("model asked for clarification despite an amount, using rules")
			return ruledFinance
		}
		if len(r.Suggestions) > MaxSuggestions {
			r.Suggestions = r.Suggestions[:MaxSuggestions]
		}
		return r
	default:
		log.Warn().Str("type", fmt.Sprintf("%T", res)).Msg("model returned unexpected result")
		if hasAmount {
			return ruledFinance
		}
		return Apology()
	}
}

// Hybrid routes commands first and extracts transactions otherwise.
type Hybrid struct {
	commands   *CommandClassifier
	extraction *ExtractionClassifier
}

func NewHybrid(commands *CommandClassifier, extraction *ExtractionClassifier) *Hybrid {
	if commands == nil {
		commands = NewCommandClassifier(nil)
	}
	if extraction == nil {
		extraction = NewExtractionClassifier(nil, nil, 0)
	}
	return &Hybrid{commands: commands, extraction: extraction}
}

func (h *Hybrid) Classify(ctx context.Context, utterance string, uc contextstore.UserContext) domain.Result {
	if r := h.commands.Classify(ctx, utterance, uc); r != nil {
		return r
	}
	return h.extraction.Classify(ctx, utterance, uc)
}

// Apology is the fixed clarification returned on extraction failure.
func Apology() *domain.ClarificationResult {
	return &domain.ClarificationResult{Message: ApologyMessage, Suggestions: []string{}}
}

var (
	_ Classifier = (*CommandClassifier)(nil)
	_ Classifier = (*ExtractionClassifier)(nil)
	_ Classifier = (*Hybrid)(nil)
)
