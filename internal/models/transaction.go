package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionState is the lifecycle state of a transaction.
type TransactionState string

const (
	// Sent is the state every transaction starts in
	Sent TransactionState = "sent"

	// Received indicates the beneficiary acknowledged the transfer
	Received TransactionState = "received"

	// Paid indicates the transfer is settled
	Paid TransactionState = "paid"
)

// TransactionStates lists the valid states in lifecycle order.
var TransactionStates = []TransactionState{Sent, Received, Paid}

// ParseTransactionState converts a raw value into a TransactionState.
func ParseTransactionState(s string) (TransactionState, error) {
	for _, st := range TransactionStates {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid transaction state %q", s)
}

// Valid reports whether s is one of the enumerated states.
func (s TransactionState) Valid() bool {
	_, err := ParseTransactionState(string(s))
	return err == nil
}

// StateValues returns the allowed states joined for error messages.
func StateValues() string {
	vals := make([]string, len(TransactionStates))
	for i, st := range TransactionStates {
		vals[i] = string(st)
	}
	return strings.Join(vals, ", ")
}

// TransactionType is the enumerated description tag of a transaction.
type TransactionType string

const (
	CardPayment    TransactionType = "Card Payments"
	Transfer       TransactionType = "Transaction"
	OnlineTransfer TransactionType = "Online transfer"
)

// TransactionTypes lists the valid transaction types.
var TransactionTypes = []TransactionType{CardPayment, Transfer, OnlineTransfer}

// DefaultTransactionType is used when a request omits the description.
const DefaultTransactionType = Transfer

// ParseTransactionType converts a raw value into a TransactionType.
func ParseTransactionType(s string) (TransactionType, error) {
	for _, t := range TransactionTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", s)
}

// TypeValues returns the allowed types joined for error messages.
func TypeValues() string {
	vals := make([]string, len(TransactionTypes))
	for i, t := range TransactionTypes {
		vals[i] = string(t)
	}
	return strings.Join(vals, ", ")
}

// Transaction is a directed, timestamped transfer between two accounts.
// Beneficiary is not stored: it is projected from the destination account's name on read.
type Transaction struct {
	ID            int64            `json:"id" db:"id"`
	Date          time.Time        `json:"date" db:"date"`
	Amount        decimal.Decimal  `json:"amount" db:"amount"`
	FromAccountID int64            `json:"from_account_id" db:"from_account_id"`
	ToAccountID   int64            `json:"to_account_id" db:"to_account_id"`
	Beneficiary   string           `json:"beneficiary" db:"beneficiary"`
	State         TransactionState `json:"state" db:"state"`
	Description   TransactionType  `json:"description" db:"description"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}

// CreateTransactionRequest is the body of POST /api/transactions.
// Beneficiary is accepted for compatibility but the stored value is always derived.
type CreateTransactionRequest struct {
	FromAccountID int64            `json:"from_account_id" validate:"required,gt=0"`
	ToAccountID   int64            `json:"to_account_id" validate:"required,gt=0"`
	Amount        *decimal.Decimal `json:"amount" validate:"required,money2dp"`
	Beneficiary   *string          `json:"beneficiary,omitempty" validate:"omitempty,min=1,max=100"`
	Description   string           `json:"description,omitempty" validate:"omitempty,txtype"`
	Date          *time.Time       `json:"date,omitempty"`
}

// UpdateTransactionRequest is the body of PATCH /api/transactions/{id}.
type UpdateTransactionRequest struct {
	State string `json:"state" validate:"required,txstate"`
}

// TransactionResponse is the API representation of a transaction.
type TransactionResponse struct {
	ID            int64            `json:"id"`
	Date          time.Time        `json:"date"`
	Amount        string           `json:"amount"`
	FromAccountID int64            `json:"from_account_id"`
	ToAccountID   int64            `json:"to_account_id"`
	Beneficiary   string           `json:"beneficiary"`
	State         TransactionState `json:"state"`
	Description   TransactionType  `json:"description"`
}

// TransactionSearchResult is the trimmed transaction shape returned by the search endpoint.
type TransactionSearchResult struct {
	ID          int64           `json:"id"`
	Date        time.Time       `json:"date"`
	Amount      string          `json:"amount"`
	Beneficiary string          `json:"beneficiary"`
	Description TransactionType `json:"description"`
	Type        string          `json:"type"`
}

func NewTransactionResponse(tx *Transaction) TransactionResponse {
	return TransactionResponse{
		ID:            tx.ID,
		Date:          tx.Date.UTC(),
		Amount:        tx.Amount.StringFixed(2),
		FromAccountID: tx.FromAccountID,
		ToAccountID:   tx.ToAccountID,
		Beneficiary:   tx.Beneficiary,
		State:         tx.State,
		Description:   tx.Description,
	}
}

func NewTransactionSearchResult(tx *Transaction) TransactionSearchResult {
	return TransactionSearchResult{
		ID:          tx.ID,
		Date:        tx.Date.UTC(),
		Amount:      tx.Amount.StringFixed(2),
		Beneficiary: tx.Beneficiary,
		Description: tx.Description,
		Type:        "transaction",
	}
}
