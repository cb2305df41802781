// Package contextstore keeps the per-user rolling history of recent
// operations used for follow-up disambiguation and undo.
package contextstore

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

// MaxRecent bounds the summary history per user.
const MaxRecent = 10

// LastOperation is the most recent committed transaction and where it landed.
type LastOperation struct {
	Transaction domain.Transaction
	Row         int
	CreatedAt   time.Time
}

// UserContext is a snapshot of one user's state. Recent is oldest first.
type UserContext struct {
	Recent  []string
	Last    *LastOperation
	Pending *domain.FinanceResult
}

// Tail returns up to n most recent summaries, oldest first.
func (uc UserContext) Tail(n int) []string {
	if len(uc.Recent) <= n {
		return uc.Recent
	}
	return uc.Recent[len(uc.Recent)-n:]
}

func (uc UserContext) clone() UserContext {
	out := UserContext{Recent: append([]string(nil), uc.Recent...)}
	if uc.Last != nil {
		last := *uc.Last
		out.Last = &last
	}
	if uc.Pending != nil {
		pending := *uc.Pending
		out.Pending = &pending
	}
	return out
}

type entry struct {
	mu  sync.Mutex
	ctx UserContext
}

// Store holds contexts for all users. Each user has its own lock; Do holds
// it across a whole unit of work.
type Store struct {
	mu    sync.Mutex
	users map[int64]*entry
}

// New creates an empty store.
func New() *Store {
	return &Store{users: make(map[int64]*entry)}
}

func (s *Store) entry(userID int64, create bool) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.users[userID]
	if !ok && create {
		e = &entry{}
		s.users[userID] = e
	}
	return e
}

// Do runs fn while holding userID's lock. The Tx is only valid inside fn.
func (s *Store) Do(userID int64, fn func(tx *Tx) error) error {
	e := s.entry(userID, true)
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(&Tx{e: e})
}

// Record appends a committed operation for userID.
func (s *Store) Record(userID int64, op LastOperation) {
	_ = s.Do(userID, func(tx *Tx) error {
		tx.Record(op)
		return nil
	})
}

// Get returns a copy of userID's context; unknown users get an empty one.
func (s *Store) Get(userID int64) UserContext {
	e := s.entry(userID, false)
	if e == nil {
		return UserContext{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctx.clone()
}

// Clear drops all state for userID, including the undo pointer.
func (s *Store) Clear(userID int64) {
	_ = s.Do(userID, func(tx *Tx) error {
		tx.Clear()
		return nil
	})
}

// Tx exposes one user's context while its lock is held.
type Tx struct {
	e *entry
}

// Context returns a copy of the locked context.
func (tx *Tx) Context() UserContext {
	return tx.e.ctx.clone()
}

// Record appends the operation's summary, evicting the oldest beyond
// MaxRecent, and makes it the undo target.
func (tx *Tx) Record(op LastOperation) {
	ctx := &tx.e.ctx
	ctx.Recent = append(ctx.Recent, Summary(op.Transaction))
	if over := len(ctx.Recent) - MaxRecent; over > 0 {
		ctx.Recent = append([]string(nil), ctx.Recent[over:]...)
	}
	last := op
	ctx.Last = &last
}

// Last returns the undo target or nil.
func (tx *Tx) Last() *LastOperation {
	if tx.e.ctx.Last == nil {
		return nil
	}
	last := *tx.e.ctx.Last
	return &last
}

// ClearLast forgets the undo target.
func (tx *Tx) ClearLast() {
	tx.e.ctx.Last = nil
}

// SetPending stores a result awaiting confirmation, replacing any previous one.
func (tx *Tx) SetPending(f *domain.FinanceResult) {
	if f == nil {
		tx.e.ctx.Pending = nil
		return
	}
	pending := *f
	tx.e.ctx.Pending = &pending
}

// TakePending returns and clears the pending result.
func (tx *Tx) TakePending() *domain.FinanceResult {
	p := tx.e.ctx.Pending
	tx.e.ctx.Pending = nil
	return p
}

// Clear resets the context to empty.
func (tx *Tx) Clear() {
	tx.e.ctx = UserContext{}
}

// Summary renders t as "description: amount ₽ (category)".
func Summary(t domain.Transaction) string {
	return fmt.Sprintf("%s: %s ₽ (%s)", t.Description, domain.FormatAmount(t.Amount), t.Category)
}

var summaryRe = regexp.MustCompile(`^(.*): (-?[\d,]+) ₽ \((.*)\)$`)

// ParsedSummary is a summary line read back.
type ParsedSummary struct {
	Description string
	Amount      decimal.Decimal
	Category    string
}

// ParseSummary reverses Summary.
func ParseSummary(line string) (ParsedSummary, bool) {
	m := summaryRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return ParsedSummary{}, false
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(m[2], ",", ""))
	if err != nil {
		return ParsedSummary{}, false
	}
	return ParsedSummary{Description: m[1], Amount: amount, Category: m[3]}, true
}
