package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/abkawan/peachtree-bank/internal/models"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicateAccountNumber is returned when an account number is already taken
	ErrDuplicateAccountNumber = errors.New("account number already exists")
)

// Store is the persistence contract for accounts and transactions. Reads always hit the
// backing store; nothing is cached between calls.
type Store interface {
	GetAccount(ctx context.Context, id int64) (*models.Account, error)
	ListAccounts(ctx context.Context, params models.ListParams) ([]*models.Account, error)
	SearchAccounts(ctx context.Context, query string, limit, offset int) ([]*models.Account, error)
	CreateAccount(ctx context.Context, account *models.Account) (*models.Account, error)
	CountAccounts(ctx context.Context) (int64, error)

	GetTransaction(ctx context.Context, id int64) (*models.Transaction, error)
	ListTransactions(ctx context.Context, params models.ListParams) ([]*models.Transaction, error)
	SearchTransactions(ctx context.Context, query string, limit, offset int) ([]*models.Transaction, error)

	// WithTx runs fn in a single unit of work. It commits when fn returns nil and rolls
	// back otherwise, returning fn's error unchanged.
	WithTx(ctx context.Context, fn func(Tx) error) error

	Ping(ctx context.Context) error
	Close() error
}

// Tx is the set of operations available inside a unit of work.
type Tx interface {
	// LockAccounts loads the given accounts and holds them until the unit of work ends.
	// Missing ids are absent from the result.
	LockAccounts(ctx context.Context, ids ...int64) (map[int64]*models.Account, error)
	UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error
	InsertTransaction(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	GetTransactionForUpdate(ctx context.Context, id int64) (*models.Transaction, error)
	UpdateTransactionState(ctx context.Context, id int64, state models.TransactionState, at time.Time) error
}

// matches reports whether s contains the search term, ignoring case.
func matches(s, term string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(term))
}

// escapeLike escapes LIKE metacharacters so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
