// Package events announces ledger changes on a RabbitMQ topic exchange.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

// Type is the routing key of an event.
type Type string

const (
	TypeRecorded Type = "ledger.recorded"
	TypeUndone   Type = "ledger.undone"
	TypeReset    Type = "ledger.reset"
)

// Event describes one ledger change.
type Event struct {
	EventID     string              `json:"event_id"`
	Type        Type                `json:"type"`
	Timestamp   string              `json:"timestamp"`
	UserID      int64               `json:"user_id"`
	Row         int                 `json:"row,omitempty"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
}

// New stamps an event with a fresh id and the current time.
func New(typ Type, userID int64, row int, t *domain.Transaction) Event {
	return Event{
		EventID:     uuid.NewString(),
		Type:        typ,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		UserID:      userID,
		Row:         row,
		Transaction: t,
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

var _ Publisher = Nop{}
