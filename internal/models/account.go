package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is applied to accounts created without an explicit currency.
const DefaultCurrency = "USD"

// Account is a numbered ledger entity that transactions debit and credit.
type Account struct {
	ID            int64           `json:"id" db:"id"`
	AccountNumber string          `json:"account_number" db:"account_number"`
	AccountName   string          `json:"account_name" db:"account_name"`
	Balance       decimal.Decimal `json:"balance" db:"balance"`
	Currency      string          `json:"currency" db:"currency"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// AccountResponse is the API representation of an account.
type AccountResponse struct {
	ID            int64     `json:"id"`
	AccountNumber string    `json:"account_number"`
	AccountName   string    `json:"account_name"`
	Balance       string    `json:"balance"`
	Currency      string    `json:"currency"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AccountSearchResult is the trimmed account shape returned by the search endpoint.
type AccountSearchResult struct {
	ID            int64  `json:"id"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	Type          string `json:"type"`
}

// NewAccountResponse formats an account for the API, money as a 2dp string.
func NewAccountResponse(a *Account) AccountResponse {
	return AccountResponse{
		ID:            a.ID,
		AccountNumber: a.AccountNumber,
		AccountName:   a.AccountName,
		Balance:       a.Balance.StringFixed(2),
		Currency:      a.Currency,
		CreatedAt:     a.CreatedAt.UTC(),
		UpdatedAt:     a.UpdatedAt.UTC(),
	}
}

func NewAccountSearchResult(a *Account) AccountSearchResult {
	return AccountSearchResult{
		ID:            a.ID,
		AccountNumber: a.AccountNumber,
		AccountName:   a.AccountName,
		Type:          "account",
	}
}
