package service

import (
	"context"
	"errors"
	"testing"

	"github.com/abkawan/peachtree-bank/internal/apperrors"
	"github.com/abkawan/peachtree-bank/internal/models"
)

type fakeAuditStore struct {
	events map[int64][]*models.TransactionEvent
	err    error
}

func (f *fakeAuditStore) InsertEvent(_ context.Context, e *models.TransactionEvent) error {
	f.events[e.TransactionID] = append(f.events[e.TransactionID], e)
	return nil
}

func (f *fakeAuditStore) ListEvents(_ context.Context, id int64) ([]*models.TransactionEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.events[id], nil
}

func TestAccountServiceGetAccount(t *testing.T) {
	_, store, _ := setupEngine(t, "500")
	svc := NewAccountService(store)

	a, err := svc.GetAccount(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if a.AccountName != "John Doe Checking" {
		t.Errorf("account name = %q", a.AccountName)
	}

	_, err = svc.GetAccount(context.Background(), 99999)
	expectKind(t, err, apperrors.KindNotFound, "Account with ID 99999 not found")
}

func TestAccountServiceCreateRejectsNegative(t *testing.T) {
	_, store, _ := setupEngine(t)
	svc := NewAccountService(store)

	_, err := svc.CreateAccount(context.Background(), &models.Account{AccountNumber: "1234567890", AccountName: "X", Balance: dec("-1")})
	expectKind(t, err, apperrors.KindValidation, "")

	n, _ := svc.CountAccounts(context.Background())
	if n != 0 {
		t.Errorf("count = %d, want 0", n)
	}
}

func TestSearch(t *testing.T) {
	engine, store, _ := setupEngine(t, "500", "100", "0")
	ctx := context.Background()
	if _, err := engine.Create(ctx, CreateTransactionInput{FromAccountID: 1, ToAccountID: 3, Amount: dec("10")}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := engine.Create(ctx, CreateTransactionInput{FromAccountID: 1, ToAccountID: 2, Amount: dec("10"), Description: models.CardPayment}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	svc := NewSearchService(store)

	res, err := svc.Search(ctx, "  michael ", 100, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Accounts) != 1 || res.Accounts[0].ID != 3 {
		t.Errorf("accounts = %+v", res.Accounts)
	}
	if len(res.Transactions) != 1 || res.Transactions[0].Beneficiary != "Michael Johnson Business" {
		t.Errorf("transactions = %+v", res.Transactions)
	}

	res, _ = svc.Search(ctx, "card", 100, 0)
	if len(res.Transactions) != 1 || res.Transactions[0].Description != models.CardPayment {
		t.Errorf("description search = %+v", res.Transactions)
	}

	res, _ = svc.Search(ctx, "nobody", 100, 0)
	if len(res.Accounts) != 0 || len(res.Transactions) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}

	_, err = svc.Search(ctx, "   ", 100, 0)
	expectKind(t, err, apperrors.KindValidation, "Search query is required")
}

func TestAuditHistory(t *testing.T) {
	engine, _, pub := setupEngine(t, "500", "100")
	ctx := context.Background()
	tx, _ := engine.Create(ctx, CreateTransactionInput{FromAccountID: 1, ToAccountID: 2, Amount: dec("10")})

	audit := &fakeAuditStore{events: map[int64][]*models.TransactionEvent{}}
	for _, e := range pub.events {
		audit.InsertEvent(ctx, e)
	}
	svc := NewAuditService(engine, audit)

	events, err := svc.History(ctx, tx.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(events) != 1 || events[0].Type != models.EventTransactionCreated {
		t.Errorf("events = %+v", events)
	}

	_, err = svc.History(ctx, 99999)
	expectKind(t, err, apperrors.KindNotFound, "")

	audit.err = errors.New("mongo down")
	if _, err := svc.History(ctx, tx.ID); !errors.Is(err, audit.err) {
		t.Errorf("expected audit store error, got %v", err)
	}
}
