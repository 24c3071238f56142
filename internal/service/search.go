package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/abkawan/peachtree-bank/internal/apperrors"
	"github.com/abkawan/peachtree-bank/internal/db"
	"github.com/abkawan/peachtree-bank/internal/models"
	"github.com/abkawan/peachtree-bank/internal/validation"
)

// SearchResult groups matches from both entities.
type SearchResult struct {
	Accounts     []*models.Account
	Transactions []*models.Transaction
}

// SearchService runs a free-text query across accounts and transactions.
type SearchService struct {
	store db.Store
}

func NewSearchService(store db.Store) *SearchService {
	return &SearchService{store: store}
}

// Search matches accounts by name or number and transactions by beneficiary or description.
func (s *SearchService) Search(ctx context.Context, query string, limit, offset int) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.Validation(validation.MsgSearchRequired, map[string][]string{
			"q": {validation.MsgSearchRequired},
		})
	}
	if len(query) > models.MaxSearchLength {
		return nil, apperrors.Validation(validation.MsgRequestInvalid, map[string][]string{
			"q": {fmt.Sprintf("Length must be at most %d", models.MaxSearchLength)},
		})
	}

	accounts, err := s.store.SearchAccounts(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to search accounts: %w", err)
	}
	txs, err := s.store.SearchTransactions(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to search transactions: %w", err)
	}

	return &SearchResult{Accounts: accounts, Transactions: txs}, nil
}
