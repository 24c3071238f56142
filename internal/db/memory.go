package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/abkawan/peachtree-bank/internal/models"
	"github.com/shopspring/decimal"
)

// Op names a unit-of-work step that can be made to fail in the memory store.
type Op string

const (
	OpLockAccounts  Op = "lock_accounts"
	OpUpdateBalance Op = "update_balance"
	OpInsertTx      Op = "insert_transaction"
	OpUpdateState   Op = "update_state"
	OpCommit        Op = "commit"
)

// Memory is an in-process Store. Units of work are serialized by the write lock and only
// become visible when they commit.
type Memory struct {
	mu           sync.RWMutex
	accounts     map[int64]*models.Account
	transactions map[int64]*models.Transaction
	nextAccount  int64
	nextTx       int64
	faults       map[Op]error
	now          func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		accounts:     make(map[int64]*models.Account),
		transactions: make(map[int64]*models.Transaction),
		faults:       make(map[Op]error),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// FailOn makes every later unit of work fail with err when it reaches op.
// Passing a nil error clears the fault.
func (m *Memory) FailOn(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.faults, op)
		return
	}
	m.faults[op] = err
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) CreateAccount(_ context.Context, account *models.Account) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.accounts {
		if a.AccountNumber == account.AccountNumber {
			return nil, fmt.Errorf("failed to create account %s: %w", account.AccountNumber, ErrDuplicateAccountNumber)
		}
	}

	m.nextAccount++
	now := m.now()
	created := *account
	created.ID = m.nextAccount
	created.Balance = account.Balance.Round(2)
	if created.Currency == "" {
		created.Currency = models.DefaultCurrency
	}
	created.CreatedAt = now
	created.UpdatedAt = now
	m.accounts[created.ID] = &created

	out := created
	return &out, nil
}

func (m *Memory) CountAccounts(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.accounts)), nil
}

func (m *Memory) GetAccount(_ context.Context, id int64) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *a
	return &out, nil
}

func (m *Memory) ListAccounts(_ context.Context, params models.ListParams) ([]*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Account
	for _, a := range m.accounts {
		if params.Search != "" && !matches(a.AccountName, params.Search) && !matches(a.AccountNumber, params.Search) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}

	less := accountLess(params.SortBy)
	sort.Slice(out, func(i, j int) bool {
		if params.SortOrder == models.Descending {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return page(out, params.Limit, params.Offset), nil
}

func (m *Memory) SearchAccounts(_ context.Context, query string, limit, offset int) ([]*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Account
	for _, a := range m.accounts {
		if matches(a.AccountName, query) || matches(a.AccountNumber, query) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, offset), nil
}

func (m *Memory) GetTransaction(_ context.Context, id int64) (*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.project(t, m.accounts), nil
}

func (m *Memory) ListTransactions(_ context.Context, params models.ListParams) ([]*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Transaction
	for _, t := range m.transactions {
		p := m.project(t, m.accounts)
		if params.Search != "" && !matches(p.Beneficiary, params.Search) && !matches(string(p.Description), params.Search) {
			continue
		}
		out = append(out, p)
	}

	less := transactionLess(params.SortBy)
	sort.Slice(out, func(i, j int) bool {
		if params.SortOrder == models.Descending {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return page(out, params.Limit, params.Offset), nil
}

func (m *Memory) SearchTransactions(ctx context.Context, query string, limit, offset int) ([]*models.Transaction, error) {
	return m.ListTransactions(ctx, models.ListParams{
		Limit:     limit,
		Offset:    offset,
		SortBy:    "date",
		SortOrder: models.Descending,
		Search:    query,
	})
}

// project copies t and fills in the beneficiary from the destination account.
func (m *Memory) project(t *models.Transaction, accounts map[int64]*models.Account) *models.Transaction {
	out := *t
	if to, ok := accounts[t.ToAccountID]; ok {
		out.Beneficiary = to.AccountName
	}
	return &out
}

func (m *Memory) WithTx(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		m:            m,
		accounts:     make(map[int64]*models.Account),
		transactions: make(map[int64]*models.Transaction),
		nextTx:       m.nextTx,
	}

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	if err := m.faults[OpCommit]; err != nil {
		return err
	}

	for id, a := range tx.accounts {
		m.accounts[id] = a
	}
	for id, t := range tx.transactions {
		m.transactions[id] = t
	}
	m.nextTx = tx.nextTx
	return nil
}

// memoryTx stages writes until the unit of work commits. The store's write lock is held
// for its whole lifetime.
type memoryTx struct {
	m            *Memory
	accounts     map[int64]*models.Account
	transactions map[int64]*models.Transaction
	nextTx       int64
}

func (tx *memoryTx) account(id int64) (*models.Account, bool) {
	if a, ok := tx.accounts[id]; ok {
		return a, true
	}
	a, ok := tx.m.accounts[id]
	return a, ok
}

func (tx *memoryTx) transaction(id int64) (*models.Transaction, bool) {
	if t, ok := tx.transactions[id]; ok {
		return t, true
	}
	t, ok := tx.m.transactions[id]
	return t, ok
}

func (tx *memoryTx) LockAccounts(_ context.Context, ids ...int64) (map[int64]*models.Account, error) {
	if err := tx.m.faults[OpLockAccounts]; err != nil {
		return nil, err
	}

	out := make(map[int64]*models.Account, len(ids))
	for _, id := range ids {
		if a, ok := tx.account(id); ok {
			cp := *a
			out[id] = &cp
		}
	}
	return out, nil
}

func (tx *memoryTx) UpdateBalance(_ context.Context, id int64, balance decimal.Decimal) error {
	if err := tx.m.faults[OpUpdateBalance]; err != nil {
		return err
	}

	a, ok := tx.account(id)
	if !ok {
		return ErrNotFound
	}
	if balance.IsNegative() {
		return fmt.Errorf("balance of account %d would be negative", id)
	}
	cp := *a
	cp.Balance = balance.Round(2)
	cp.UpdatedAt = tx.m.now()
	tx.accounts[id] = &cp
	return nil
}

func (tx *memoryTx) InsertTransaction(_ context.Context, t *models.Transaction) (*models.Transaction, error) {
	if err := tx.m.faults[OpInsertTx]; err != nil {
		return nil, err
	}

	if _, ok := tx.account(t.FromAccountID); !ok {
		return nil, fmt.Errorf("source account %d: %w", t.FromAccountID, ErrNotFound)
	}
	if _, ok := tx.account(t.ToAccountID); !ok {
		return nil, fmt.Errorf("destination account %d: %w", t.ToAccountID, ErrNotFound)
	}

	tx.nextTx++
	now := tx.m.now()
	row := *t
	row.ID = tx.nextTx
	row.Amount = t.Amount.Round(2)
	row.Beneficiary = ""
	row.CreatedAt = now
	row.UpdatedAt = now
	tx.transactions[row.ID] = &row

	out := row
	return &out, nil
}

func (tx *memoryTx) GetTransactionForUpdate(_ context.Context, id int64) (*models.Transaction, error) {
	t, ok := tx.transaction(id)
	if !ok {
		return nil, ErrNotFound
	}
	out := *t
	return &out, nil
}

func (tx *memoryTx) UpdateTransactionState(_ context.Context, id int64, state models.TransactionState, at time.Time) error {
	if err := tx.m.faults[OpUpdateState]; err != nil {
		return err
	}

	t, ok := tx.transaction(id)
	if !ok {
		return ErrNotFound
	}
	cp := *t
	cp.State = state
	cp.UpdatedAt = at
	tx.transactions[id] = &cp
	return nil
}

func accountLess(sortBy string) func(a, b *models.Account) bool {
	return func(a, b *models.Account) bool {
		switch sortBy {
		case "account_name":
			if a.AccountName != b.AccountName {
				return a.AccountName < b.AccountName
			}
		case "created_at":
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		default:
			if a.AccountNumber != b.AccountNumber {
				return a.AccountNumber < b.AccountNumber
			}
		}
		return a.ID < b.ID
	}
}

func transactionLess(sortBy string) func(a, b *models.Transaction) bool {
	return func(a, b *models.Transaction) bool {
		switch sortBy {
		case "amount":
			if !a.Amount.Equal(b.Amount) {
				return a.Amount.LessThan(b.Amount)
			}
		case "beneficiary":
			if a.Beneficiary != b.Beneficiary {
				return a.Beneficiary < b.Beneficiary
			}
		default:
			if !a.Date.Equal(b.Date) {
				return a.Date.Before(b.Date)
			}
		}
		return a.ID < b.ID
	}
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
