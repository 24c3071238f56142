package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/abkawan/peachtree-bank/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// PostgresConfig holds connection and pool settings.
type PostgresConfig struct {
	URI             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPostgresConfig returns pool settings suitable for a single API instance.
func DefaultPostgresConfig(uri string) PostgresConfig {
	return PostgresConfig{
		URI:             uri,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// Postgres handles PostgreSQL database operations
type Postgres struct {
	db *sql.DB
}

// creates a new Postgres instance
func NewPostgres(cfg PostgresConfig) (*Postgres, error) {
	db, err := sql.Open("postgres", cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

// closes the database connection
func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// initialize the database schema
func (p *Postgres) InitSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS accounts (
		id BIGSERIAL PRIMARY KEY,
		account_number VARCHAR(10) NOT NULL UNIQUE CHECK (account_number ~ '^[0-9]{10}$'),
		account_name VARCHAR(100) NOT NULL,
		balance NUMERIC(12, 2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		currency CHAR(3) NOT NULL DEFAULT 'USD',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id BIGSERIAL PRIMARY KEY,
		date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		amount NUMERIC(12, 2) NOT NULL CHECK (amount > 0),
		from_account_id BIGINT NOT NULL REFERENCES accounts(id),
		to_account_id BIGINT NOT NULL REFERENCES accounts(id),
		state VARCHAR(16) NOT NULL DEFAULT 'sent' CHECK (state IN ('sent', 'received', 'paid')),
		description VARCHAR(32) NOT NULL DEFAULT 'Transaction',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (from_account_id <> to_account_id)
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions (date DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_from_account ON transactions (from_account_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_to_account ON transactions (to_account_id);`

	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

const accountColumns = `id, account_number, account_name, balance, currency, created_at, updated_at`

const transactionSelect = `
	SELECT t.id, t.date, t.amount, t.from_account_id, t.to_account_id, to_acc.account_name,
		t.state, t.description, t.created_at, t.updated_at
	FROM transactions t
	JOIN accounts to_acc ON to_acc.id = t.to_account_id`

var accountSortColumns = map[string]string{
	"account_number": "account_number",
	"account_name":   "account_name",
	"created_at":     "created_at",
}

var transactionSortColumns = map[string]string{
	"date":        "t.date",
	"amount":      "t.amount",
	"beneficiary": "to_acc.account_name",
}

// orderBy builds an ORDER BY clause from allow-listed columns only.
func orderBy(columns map[string]string, sortBy, fallback, idColumn string, order models.SortOrder) string {
	column, ok := columns[sortBy]
	if !ok {
		column = columns[fallback]
	}
	dir := "ASC"
	if order == models.Descending {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, %s %s", column, dir, idColumn, dir)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	if err := row.Scan(&a.ID, &a.AccountNumber, &a.AccountName, &a.Balance, &a.Currency, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	if err := row.Scan(&t.ID, &t.Date, &t.Amount, &t.FromAccountID, &t.ToAccountID, &t.Beneficiary,
		&t.State, &t.Description, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// creates a new account
func (p *Postgres) CreateAccount(ctx context.Context, account *models.Account) (*models.Account, error) {
	currency := account.Currency
	if currency == "" {
		currency = models.DefaultCurrency
	}

	query := `
	INSERT INTO accounts (account_number, account_name, balance, currency)
	VALUES ($1, $2, $3, $4)
	RETURNING ` + accountColumns

	created, err := scanAccount(p.db.QueryRowContext(ctx, query,
		account.AccountNumber, account.AccountName, account.Balance.Round(2), currency))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, fmt.Errorf("failed to create account %s: %w", account.AccountNumber, ErrDuplicateAccountNumber)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return created, nil
}

func (p *Postgres) CountAccounts(ctx context.Context) (int64, error) {
	var n int64
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return n, nil
}

// retrieves an account by ID
func (p *Postgres) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(p.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func (p *Postgres) ListAccounts(ctx context.Context, params models.ListParams) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	args := []any{}
	if params.Search != "" {
		args = append(args, "%"+escapeLike(params.Search)+"%")
		query += ` WHERE account_name ILIKE $1 ESCAPE '\' OR account_number ILIKE $1 ESCAPE '\'`
	}
	query += orderBy(accountSortColumns, params.SortBy, "account_number", "id", params.SortOrder)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, params.Limit, params.Offset)

	return p.queryAccounts(ctx, query, args...)
}

func (p *Postgres) SearchAccounts(ctx context.Context, q string, limit, offset int) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
	WHERE account_name ILIKE $1 ESCAPE '\' OR account_number ILIKE $1 ESCAPE '\'
	ORDER BY id LIMIT $2 OFFSET $3`

	return p.queryAccounts(ctx, query, "%"+escapeLike(q)+"%", limit, offset)
}

func (p *Postgres) queryAccounts(ctx context.Context, query string, args ...any) ([]*models.Account, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	accounts := []*models.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

// retrieves a transaction by ID with its beneficiary resolved
func (p *Postgres) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	t, err := scanTransaction(p.db.QueryRowContext(ctx, transactionSelect+` WHERE t.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

func (p *Postgres) ListTransactions(ctx context.Context, params models.ListParams) ([]*models.Transaction, error) {
	query := transactionSelect
	args := []any{}
	if params.Search != "" {
		args = append(args, "%"+escapeLike(params.Search)+"%")
		query += ` WHERE to_acc.account_name ILIKE $1 ESCAPE '\' OR t.description ILIKE $1 ESCAPE '\'`
	}
	query += orderBy(transactionSortColumns, params.SortBy, "date", "t.id", params.SortOrder)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, params.Limit, params.Offset)

	return p.queryTransactions(ctx, query, args...)
}

func (p *Postgres) SearchTransactions(ctx context.Context, q string, limit, offset int) ([]*models.Transaction, error) {
	return p.ListTransactions(ctx, models.ListParams{
		Limit:     limit,
		Offset:    offset,
		SortBy:    "date",
		SortOrder: models.Descending,
		Search:    q,
	})
}

func (p *Postgres) queryTransactions(ctx context.Context, query string, args ...any) ([]*models.Transaction, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	txs := []*models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txs, nil
}

// WithTx runs fn inside a database transaction
func (p *Postgres) WithTx(ctx context.Context, fn func(Tx) error) (err error) {
	sqlTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("failed to roll back: %w", rbErr))
			}
		}
	}()

	if err = fn(&postgresTx{tx: sqlTx}); err != nil {
		return err
	}

	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type postgresTx struct {
	tx *sql.Tx
}

// LockAccounts takes row locks in ascending id order so concurrent transfers cannot deadlock
func (t *postgresTx) LockAccounts(ctx context.Context, ids ...int64) (map[int64]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	rows, err := t.tx.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to lock accounts: %w", err)
	}
	defer rows.Close()

	accounts := make(map[int64]*models.Account, len(ids))
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

// updates the account balance
func (t *postgresTx) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE accounts SET balance = $1, updated_at = NOW() WHERE id = $2`,
		balance.Round(2), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *postgresTx) InsertTransaction(ctx context.Context, in *models.Transaction) (*models.Transaction, error) {
	query := `
	INSERT INTO transactions (date, amount, from_account_id, to_account_id, state, description)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id, date, amount, from_account_id, to_account_id, state, description, created_at, updated_at`

	var out models.Transaction
	err := t.tx.QueryRowContext(ctx, query,
		in.Date, in.Amount.Round(2), in.FromAccountID, in.ToAccountID, in.State, in.Description,
	).Scan(&out.ID, &out.Date, &out.Amount, &out.FromAccountID, &out.ToAccountID,
		&out.State, &out.Description, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return &out, nil
}

func (t *postgresTx) GetTransactionForUpdate(ctx context.Context, id int64) (*models.Transaction, error) {
	row := t.tx.QueryRowContext(ctx, transactionSelect+` WHERE t.id = $1 FOR UPDATE OF t`, id)
	out, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return out, nil
}

func (t *postgresTx) UpdateTransactionState(ctx context.Context, id int64, state models.TransactionState, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE transactions SET state = $1, updated_at = $2 WHERE id = $3`,
		state, at, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
