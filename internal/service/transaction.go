package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abkawan/peachtree-bank/internal/apperrors"
	"github.com/abkawan/peachtree-bank/internal/db"
	"github.com/abkawan/peachtree-bank/internal/logging"
	"github.com/abkawan/peachtree-bank/internal/metrics"
	"github.com/abkawan/peachtree-bank/internal/models"
	"github.com/abkawan/peachtree-bank/internal/queue"
	"github.com/abkawan/peachtree-bank/internal/validation"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateTransactionInput is what the engine needs to move money between two accounts.
type CreateTransactionInput struct {
	FromAccountID int64
	ToAccountID   int64
	Amount        decimal.Decimal
	Description   models.TransactionType
	Date          *time.Time
}

// handles transaction operations
type TransactionService struct {
	store     db.Store
	publisher queue.Publisher
	metrics   metrics.Recorder
	logger    *logging.Logger
	policy    TransitionPolicy
	now       func() time.Time
}

// Option customizes a TransactionService.
type Option func(*TransactionService)

func WithPublisher(p queue.Publisher) Option {
	return func(s *TransactionService) { s.publisher = p }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *TransactionService) { s.metrics = r }
}

func WithTransitionPolicy(p TransitionPolicy) Option {
	return func(s *TransactionService) { s.policy = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *TransactionService) { s.now = now }
}

// creates a new TransactionService
func NewTransactionService(store db.Store, logger *logging.Logger, opts ...Option) *TransactionService {
	s := &TransactionService{
		store:     store,
		publisher: queue.NoopPublisher{},
		metrics:   metrics.NoOpRecorder{},
		logger:    logger.Named("transactions"),
		policy:    PermissiveTransitions,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create moves amount from the source to the destination account and records the transfer.
// The row and both balance updates commit together or not at all.
func (s *TransactionService) Create(ctx context.Context, in CreateTransactionInput) (*models.Transaction, error) {
	if msg := validation.CheckAmount(in.Amount); msg != "" {
		s.metrics.RecordTransactionRejected("invalid_amount")
		return nil, apperrors.Validation(msg, map[string][]string{"amount": {msg}})
	}
	if in.FromAccountID == in.ToAccountID {
		s.metrics.RecordTransactionRejected("same_account")
		return nil, apperrors.Validation(validation.MsgSameAccount, map[string][]string{
			"to_account_id": {validation.MsgSameAccount},
		})
	}

	description := in.Description
	if description == "" {
		description = models.DefaultTransactionType
	}
	if _, err := models.ParseTransactionType(string(description)); err != nil {
		return nil, apperrors.Validation(validation.MsgRequestInvalid, map[string][]string{
			"description": {"Description must be one of: " + models.TypeValues()},
		})
	}

	date := s.now()
	if in.Date != nil {
		date = in.Date.UTC()
	}
	amount := in.Amount.Round(2)

	var created *models.Transaction
	err := s.store.WithTx(ctx, func(tx db.Tx) error {
		accounts, err := tx.LockAccounts(ctx, in.FromAccountID, in.ToAccountID)
		if err != nil {
			return err
		}

		from, ok := accounts[in.FromAccountID]
		if !ok {
			return apperrors.NotFound("Account with ID %d not found", in.FromAccountID)
		}
		to, ok := accounts[in.ToAccountID]
		if !ok {
			return apperrors.NotFound("Account with ID %d not found", in.ToAccountID)
		}

		if from.Balance.LessThan(amount) {
			return apperrors.Validation(validation.MsgInsufficient, map[string][]string{
				"amount": {"Insufficient funds in source account"},
			})
		}

		if err := tx.UpdateBalance(ctx, from.ID, from.Balance.Sub(amount)); err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, to.ID, to.Balance.Add(amount)); err != nil {
			return err
		}

		created, err = tx.InsertTransaction(ctx, &models.Transaction{
			Date:          date,
			Amount:        amount,
			FromAccountID: from.ID,
			ToAccountID:   to.ID,
			State:         models.Sent,
			Description:   description,
		})
		if err != nil {
			return err
		}
		created.Beneficiary = to.AccountName
		return nil
	})
	if err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			s.metrics.RecordTransactionRejected(rejectReason(appErr))
			return nil, appErr
		}
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	amountF, _ := amount.Float64()
	s.metrics.RecordTransactionCreated(string(description), amountF)
	s.logger.Info("transaction created",
		zap.Int64("transaction_id", created.ID),
		zap.Int64("from_account_id", created.FromAccountID),
		zap.Int64("to_account_id", created.ToAccountID),
		zap.String("amount", amount.StringFixed(2)),
	)

	s.publish(ctx, models.NewTransactionEvent(models.EventTransactionCreated, created, ""))
	return created, nil
}

// UpdateState overwrites a transaction's state. Balances are never touched.
func (s *TransactionService) UpdateState(ctx context.Context, id int64, raw string) (*models.Transaction, error) {
	state, err := models.ParseTransactionState(raw)
	if err != nil {
		msg := "State must be one of: " + models.StateValues()
		return nil, apperrors.Validation(msg, map[string][]string{"state": {msg}})
	}

	var previous models.TransactionState
	err = s.store.WithTx(ctx, func(tx db.Tx) error {
		current, err := tx.GetTransactionForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return apperrors.NotFound("Transaction with ID %d not found", id)
			}
			return err
		}
		if err := s.policy(current.State, state); err != nil {
			return err
		}
		previous = current.State
		return tx.UpdateTransactionState(ctx, id, state, s.now())
	})
	if err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, fmt.Errorf("failed to update transaction %d: %w", id, err)
	}

	s.metrics.RecordStateChange(string(previous), string(state))
	s.logger.Info("transaction state changed",
		zap.Int64("transaction_id", id),
		zap.String("from", string(previous)),
		zap.String("to", string(state)),
	)

	result, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload transaction %d: %w", id, err)
	}
	s.publish(ctx, models.NewTransactionEvent(models.EventTransactionStateChanged, result, previous))
	return result, nil
}

// GetTransaction retrieves a transaction by ID
func (s *TransactionService) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperrors.NotFound("Transaction with ID %d not found", id)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// ListTransactions returns a page of transactions, optionally filtered by search
func (s *TransactionService) ListTransactions(ctx context.Context, params models.ListParams) ([]*models.Transaction, error) {
	txs, err := s.store.ListTransactions(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	return txs, nil
}

// publish is best-effort: the transaction is already committed.
func (s *TransactionService) publish(ctx context.Context, event *models.TransactionEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("event_id", event.EventID),
			zap.String("type", string(event.Type)),
			zap.Int64("transaction_id", event.TransactionID),
			zap.Error(err),
		)
	}
}

func rejectReason(err *apperrors.Error) string {
	switch {
	case err.Kind == apperrors.KindNotFound:
		return "account_not_found"
	case err.Message == validation.MsgInsufficient:
		return "insufficient_funds"
	default:
		return "invalid"
	}
}
