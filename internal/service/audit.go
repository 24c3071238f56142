package service

import (
	"context"
	"fmt"

	"github.com/abkawan/peachtree-bank/internal/db"
	"github.com/abkawan/peachtree-bank/internal/models"
)

// AuditService reads the event history recorded for transactions.
type AuditService struct {
	transactions *TransactionService
	events       db.AuditStore
}

func NewAuditService(transactions *TransactionService, events db.AuditStore) *AuditService {
	return &AuditService{transactions: transactions, events: events}
}

// History returns the events of an existing transaction, oldest first.
func (s *AuditService) History(ctx context.Context, id int64) ([]*models.TransactionEvent, error) {
	if _, err := s.transactions.GetTransaction(ctx, id); err != nil {
		return nil, err
	}

	events, err := s.events.ListEvents(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for transaction %d: %w", id, err)
	}
	return events, nil
}
