package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/abkawan/peachtree-bank/internal/apperrors"
	"github.com/abkawan/peachtree-bank/internal/db"
	"github.com/abkawan/peachtree-bank/internal/models"
)

// handles account operations
type AccountService struct {
	store db.Store
}

// creates a new Account Service
func NewAccountService(store db.Store) *AccountService {
	return &AccountService{
		store: store,
	}
}

// creates a new account; used by fixtures, not exposed over HTTP
func (s *AccountService) CreateAccount(ctx context.Context, account *models.Account) (*models.Account, error) {
	if account.Balance.IsNegative() {
		return nil, apperrors.Validation("Initial balance cannot be negative", map[string][]string{
			"balance": {"Must be zero or greater"},
		})
	}

	created, err := s.store.CreateAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return created, nil
}

// retrieves an account by ID
func (s *AccountService) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperrors.NotFound("Account with ID %d not found", id)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// ListAccounts returns a page of accounts
func (s *AccountService) ListAccounts(ctx context.Context, params models.ListParams) ([]*models.Account, error) {
	accounts, err := s.store.ListAccounts(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// CountAccounts reports how many accounts exist
func (s *AccountService) CountAccounts(ctx context.Context) (int64, error) {
	n, err := s.store.CountAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return n, nil
}
