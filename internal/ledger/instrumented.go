package ledger

import (
	"context"
	"time"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/metrics"
)

// InstrumentedLedger records call latency per backend.
type InstrumentedLedger struct {
	Ledger
	backend string
}

// WithMetrics wraps l; backend labels the observations.
func WithMetrics(l Ledger, backend string) *InstrumentedLedger {
	return &InstrumentedLedger{Ledger: l, backend: backend}
}

func (m *InstrumentedLedger) observe(op string, start time.Time, err error) {
	metrics.LedgerDuration.WithLabelValues(m.backend, op, metrics.Status(err)).Observe(time.Since(start).Seconds())
}

func (m *InstrumentedLedger) Append(ctx context.Context, t domain.Transaction) (row int, err error) {
	defer func(start time.Time) { m.observe("append", start, err) }(time.Now())
	return m.Ledger.Append(ctx, t)
}

func (m *InstrumentedLedger) Delete(ctx context.Context, row int) (err error) {
	defer func(start time.Time) { m.observe("delete", start, err) }(time.Now())
	return m.Ledger.Delete(ctx, row)
}

func (m *InstrumentedLedger) ReadAll(ctx context.Context) (entries []Entry, err error) {
	defer func(start time.Time) { m.observe("read_all", start, err) }(time.Now())
	return m.Ledger.ReadAll(ctx)
}

func (m *InstrumentedLedger) Reset(ctx context.Context) (err error) {
	defer func(start time.Time) { m.observe("reset", start, err) }(time.Now())
	return m.Ledger.Reset(ctx)
}

func (m *InstrumentedLedger) Tail(ctx context.Context) (e Entry, ok bool, err error) {
	defer func(start time.Time) { m.observe("tail", start, err) }(time.Now())
	if tailer, isTailer := m.Ledger.(Tailer); isTailer {
		return tailer.Tail(ctx)
	}
	return TailOf(ctx, m.Ledger)
}

var (
	_ Ledger = (*InstrumentedLedger)(nil)
	_ Tailer = (*InstrumentedLedger)(nil)
)
