package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType names the kind of change recorded for a transaction.
type EventType string

const (
	EventTransactionCreated      EventType = "transaction.created"
	EventTransactionStateChanged EventType = "transaction.state_changed"
)

// TransactionEvent is published after a transaction change commits and stored in the audit trail.
type TransactionEvent struct {
	EventID       string           `json:"event_id" bson:"event_id"`
	Type          EventType        `json:"type" bson:"type"`
	TransactionID int64            `json:"transaction_id" bson:"transaction_id"`
	FromAccountID int64            `json:"from_account_id" bson:"from_account_id"`
	ToAccountID   int64            `json:"to_account_id" bson:"to_account_id"`
	Amount        string           `json:"amount" bson:"amount"`
	FromState     TransactionState `json:"from_state,omitempty" bson:"from_state,omitempty"`
	ToState       TransactionState `json:"to_state" bson:"to_state"`
	OccurredAt    time.Time        `json:"occurred_at" bson:"occurred_at"`
}

// NewTransactionEvent builds an event with a fresh id for the given transaction.
func NewTransactionEvent(eventType EventType, tx *Transaction, from TransactionState) *TransactionEvent {
	return &TransactionEvent{
		EventID:       uuid.New().String(),
		Type:          eventType,
		TransactionID: tx.ID,
		FromAccountID: tx.FromAccountID,
		ToAccountID:   tx.ToAccountID,
		Amount:        tx.Amount.StringFixed(2),
		FromState:     from,
		ToState:       tx.State,
		OccurredAt:    time.Now().UTC(),
	}
}
