package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/abkawan/peachtree-bank/internal/db"
	"github.com/abkawan/peachtree-bank/internal/logging"
	"github.com/abkawan/peachtree-bank/internal/models"
	"github.com/abkawan/peachtree-bank/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AccountNames are the fixture account holders.
var AccountNames = []string{
	"John Doe Checking",
	"Jane Smith Savings",
	"Michael Johnson Business",
	"Sarah Williams Personal",
	"Robert Brown Investment",
}

// Options controls the generated fixture.
type Options struct {
	Transactions   int
	OpeningBalance decimal.Decimal
	MaxDaysAgo     int
}

func DefaultOptions() Options {
	return Options{
		Transactions:   10,
		OpeningBalance: decimal.NewFromInt(10000),
		MaxDaysAgo:     30,
	}
}

// Seeder creates fixture accounts and moves money between them through the engine,
// so seeded balances always reconcile with the seeded transactions.
type Seeder struct {
	accounts     *service.AccountService
	transactions *service.TransactionService
	rng          *rand.Rand
	now          func() time.Time
	logger       *logging.Logger
}

func NewSeeder(accounts *service.AccountService, transactions *service.TransactionService, rng *rand.Rand, logger *logging.Logger) *Seeder {
	return &Seeder{
		accounts:     accounts,
		transactions: transactions,
		rng:          rng,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       logger.Named("seed"),
	}
}

// Run seeds an empty store. It reports false without touching anything when accounts exist.
func (s *Seeder) Run(ctx context.Context, opts Options) (bool, error) {
	n, err := s.accounts.CountAccounts(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		s.logger.Info("store already contains data, skipping seed", zap.Int64("accounts", n))
		return false, nil
	}

	ids := make([]int64, 0, len(AccountNames))
	for _, name := range AccountNames {
		account, err := s.createAccount(ctx, name, opts.OpeningBalance)
		if err != nil {
			return false, err
		}
		ids = append(ids, account.ID)
	}
	s.logger.Info("accounts created", zap.Int("count", len(ids)))

	states := []models.TransactionState{models.Sent, models.Received, models.Paid}
	weights := []float64{0.4, 0.3, 0.3}

	for i := 0; i < opts.Transactions; i++ {
		from := ids[s.rng.Intn(len(ids))]
		to := from
		for to == from {
			to = ids[s.rng.Intn(len(ids))]
		}
		date := s.now().AddDate(0, 0, -s.rng.Intn(opts.MaxDaysAgo+1))

		tx, err := s.transactions.Create(ctx, service.CreateTransactionInput{
			FromAccountID: from,
			ToAccountID:   to,
			Amount:        s.amount(),
			Description:   models.TransactionTypes[s.rng.Intn(len(models.TransactionTypes))],
			Date:          &date,
		})
		if err != nil {
			return false, fmt.Errorf("failed to seed transaction %d: %w", i+1, err)
		}

		if state := weighted(s.rng, states, weights); state != models.Sent {
			if _, err := s.transactions.UpdateState(ctx, tx.ID, string(state)); err != nil {
				return false, fmt.Errorf("failed to set state of transaction %d: %w", tx.ID, err)
			}
		}
	}
	s.logger.Info("transactions created", zap.Int("count", opts.Transactions))

	return true, nil
}

func (s *Seeder) createAccount(ctx context.Context, name string, balance decimal.Decimal) (*models.Account, error) {
	for attempt := 0; attempt < 5; attempt++ {
		account, err := s.accounts.CreateAccount(ctx, &models.Account{
			AccountNumber: s.accountNumber(),
			AccountName:   name,
			Balance:       balance,
			Currency:      models.DefaultCurrency,
		})
		if errors.Is(err, db.ErrDuplicateAccountNumber) {
			continue
		}
		return account, err
	}
	return nil, fmt.Errorf("could not allocate a unique account number for %q", name)
}

func (s *Seeder) accountNumber() string {
	var b strings.Builder
	for i := 0; i < 10; i++ {
		b.WriteByte(byte('0' + s.rng.Intn(10)))
	}
	return b.String()
}

// amount is uniform between 10.00 and 500.00
func (s *Seeder) amount() decimal.Decimal {
	cents := 1000 + s.rng.Int63n(49001)
	return decimal.New(cents, -2)
}

func weighted[T any](rng *rand.Rand, items []T, weights []float64) T {
	r := rng.Float64()
	for i, w := range weights {
		if r < w {
			return items[i]
		}
		r -= w
	}
	return items[len(items)-1]
}
