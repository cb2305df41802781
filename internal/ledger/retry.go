package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/logger"
)

const (
	DefaultRetryAttempts = 3
	DefaultRetryBackoff  = 500 * time.Millisecond
)

// RetryingLedger retries failed appends with exponential backoff. Before
// the first attempt it notes the tail row; before each retry it reads the
// tail again, and a row past that baseline holding the same transaction
// means the failed attempt landed, so that row is returned instead of
// writing a duplicate. When the baseline cannot be read, retries always
// append. Backends without Tail are read in full. Deletes are never
// retried; deleting by index is not idempotent.
type RetryingLedger struct {
	Ledger
	attempts int
	backoff  time.Duration
}

// WithRetry wraps l. attempts counts the first call.
func WithRetry(l Ledger, attempts int, backoff time.Duration) *RetryingLedger {
	if attempts < 1 {
		attempts = DefaultRetryAttempts
	}
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}
	return &RetryingLedger{Ledger: l, attempts: attempts, backoff: backoff}
}

func (r *RetryingLedger) Append(ctx context.Context, t domain.Transaction) (int, error) {
	log := logger.FromContext(ctx)
	baseline, known := r.tailRow(ctx)
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 && known {
			if row, ok := r.landed(ctx, t, baseline); ok {
				log.Info().Int("row", row).Int("attempt", attempt).Msg("append landed before failing, not retrying")
				return row, nil
			}
		}
		if attempt > 0 {
			delay := r.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return 0, fmt.Errorf("RetryingLedger.Append: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		row, err := r.Ledger.Append(ctx, t)
		if err == nil {
			return row, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt+1).Int("max_attempts", r.attempts).Msg("ledger append failed")
	}
	return 0, fmt.Errorf("RetryingLedger.Append: %w", lastErr)
}

// tailRow returns the row index of the current last row, 1 (the header)
// for an empty ledger. ok is false when the tail cannot be read.
func (r *RetryingLedger) tailRow(ctx context.Context) (int, bool) {
	last, ok, err := r.Tail(ctx)
	if err != nil {
		return 0, false
	}
	if !ok {
		return 1, true
	}
	return last.Row, true
}

func (r *RetryingLedger) landed(ctx context.Context, t domain.Transaction, baseline int) (int, bool) {
	last, ok, err := r.Tail(ctx)
	if err != nil || !ok {
		return 0, false
	}
	if last.Row > baseline && SameTransaction(last.Transaction, t) {
		return last.Row, true
	}
	return 0, false
}

func retryable(err error) bool {
	return !errors.Is(err, domain.ErrInvalidRecord) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// Tail forwards to the wrapped ledger when it supports tail reads.
func (r *RetryingLedger) Tail(ctx context.Context) (Entry, bool, error) {
	if tailer, ok := r.Ledger.(Tailer); ok {
		return tailer.Tail(ctx)
	}
	return TailOf(ctx, r.Ledger)
}

// TailOf reads the last entry through ReadAll.
func TailOf(ctx context.Context, l Ledger) (Entry, bool, error) {
	entries, err := l.ReadAll(ctx)
	if err != nil {
		return Entry{}, false, err
	}
	if len(entries) == 0 {
		return Entry{}, false, nil
	}
	return entries[len(entries)-1], true, nil
}

var (
	_ Ledger = (*RetryingLedger)(nil)
	_ Tailer = (*RetryingLedger)(nil)
)
