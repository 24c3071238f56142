package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/abkawan/peachtree-bank/internal/config"
	"github.com/abkawan/peachtree-bank/internal/db"
	"github.com/abkawan/peachtree-bank/internal/logging"
	"github.com/abkawan/peachtree-bank/internal/models"
	"github.com/abkawan/peachtree-bank/internal/ratelimit"
	"github.com/abkawan/peachtree-bank/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/ulule/limiter/v3"
)

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type memoryAudit struct {
	events []*models.TransactionEvent
}

func (m *memoryAudit) Publish(_ context.Context, e *models.TransactionEvent) error {
	m.events = append(m.events, e)
	return nil
}

func (m *memoryAudit) InsertEvent(_ context.Context, e *models.TransactionEvent) error {
	m.events = append(m.events, e)
	return nil
}

func (m *memoryAudit) ListEvents(_ context.Context, id int64) ([]*models.TransactionEvent, error) {
	out := []*models.TransactionEvent{}
	for _, e := range m.events {
		if e.TransactionID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

type testServer struct {
	handler http.Handler
	store   *db.Memory
}

func newTestDeps(t *testing.T) (Dependencies, *db.Memory) {
	t.Helper()
	store := db.NewMemory()
	ctx := context.Background()
	accounts := []struct {
		number, name, balance string
	}{
		{"1000000001", "John Doe Checking", "500.00"},
		{"1000000002", "Jane Smith Savings", "100.00"},
	}
	for _, a := range accounts {
		if _, err := store.CreateAccount(ctx, &models.Account{
			AccountNumber: a.number, AccountName: a.name, Balance: decimal.RequireFromString(a.balance),
		}); err != nil {
			t.Fatalf("CreateAccount: %v", err)
		}
	}

	logger := logging.NewNoOpLogger()
	audit := &memoryAudit{}
	transactions := service.NewTransactionService(store, logger, service.WithPublisher(audit))

	return Dependencies{
		Accounts:     service.NewAccountService(store),
		Transactions: transactions,
		Search:       service.NewSearchService(store),
		Audit:        service.NewAuditService(transactions, audit),
		Store:        store,
		Gatherer:     prometheus.NewRegistry(),
		Logger:       logger,
	}, store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	deps, store := newTestDeps(t)
	return &testServer{handler: NewRouter(deps), store: store}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/health", "")
	expectStatus(t, rec, http.StatusOK)

	if got := decode[map[string]string](t, rec); got["status"] != "healthy" {
		t.Errorf("status = %q", got["status"])
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("missing request id header")
	}
}

func TestHealthUnhealthy(t *testing.T) {
	deps, _ := newTestDeps(t)
	deps.Store = failingPinger{}
	rec := httptest.NewRecorder()
	NewRouter(deps).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	expectStatus(t, rec, http.StatusServiceUnavailable)
	if got := decode[map[string]string](t, rec); got["status"] != "unhealthy" {
		t.Errorf("status = %q", got["status"])
	}
}

func TestCreateTransactionScenario(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/transactions", `{"from_account_id":1,"to_account_id":2,"amount":100.00,"description":"Online transfer"}`)
	expectStatus(t, rec, http.StatusCreated)

	tx := decode[models.TransactionResponse](t, rec)
	if tx.Amount != "100.00" || tx.State != models.Sent || tx.Beneficiary != "Jane Smith Savings" || tx.Description != models.OnlineTransfer {
		t.Errorf("unexpected transaction %+v", tx)
	}

	from := decode[models.AccountResponse](t, s.do(t, http.MethodGet, "/api/accounts/1", ""))
	to := decode[models.AccountResponse](t, s.do(t, http.MethodGet, "/api/accounts/2", ""))
	if from.Balance != "400.00" || to.Balance != "200.00" {
		t.Errorf("balances = %s / %s, want 400.00 / 200.00", from.Balance, to.Balance)
	}

	list := decode[[]models.TransactionResponse](t, s.do(t, http.MethodGet, "/api/transactions", ""))
	if len(list) != 1 || list[0].ID != tx.ID {
		t.Errorf("list = %+v", list)
	}
}

func TestCreateTransactionRejections(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		kind    string
		message string
	}{
		{"insufficient funds", `{"from_account_id":2,"to_account_id":1,"amount":"1000.00"}`, 400, "ValidationError", "Insufficient funds"},
		{"same account", `{"from_account_id":1,"to_account_id":1,"amount":10}`, 400, "ValidationError", "Source and destination accounts must be different"},
		{"zero amount", `{"from_account_id":1,"to_account_id":2,"amount":"0.00"}`, 400, "ValidationError", "Amount must be greater than zero"},
		{"three decimal places", `{"from_account_id":1,"to_account_id":2,"amount":"1.005"}`, 400, "ValidationError", "Amount must have at most 2 decimal places"},
		{"zero amount and missing account", `{"from_account_id":1,"amount":"0.00"}`, 400, "ValidationError", "Request validation failed"},
		{"missing account", `{"from_account_id":1,"to_account_id":99999,"amount":10}`, 404, "ResourceNotFoundError", "Account with ID 99999 not found"},
		{"empty body", ``, 400, "ValidationError", "No JSON data provided"},
		{"malformed", `{"from_account_id":`, 400, "ValidationError", "Invalid JSON payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			rec := s.do(t, http.MethodPost, "/api/transactions", tt.body)
			expectStatus(t, rec, tt.status)

			body := decode[ErrorResponse](t, rec)
			if body.Error != tt.kind || body.Message != tt.message {
				t.Errorf("error = %s %q, want %s %q", body.Error, body.Message, tt.kind, tt.message)
			}

			from := decode[models.AccountResponse](t, s.do(t, http.MethodGet, "/api/accounts/1", ""))
			if from.Balance != "500.00" {
				t.Errorf("rejected request changed balance to %s", from.Balance)
			}
		})
	}
}

func TestZeroAmountDetails(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/transactions", `{"from_account_id":1,"to_account_id":2,"amount":0}`)
	body := decode[ErrorResponse](t, rec)

	if got := body.Details["amount"]; len(got) != 1 || got[0] != "Amount must be greater than zero" {
		t.Errorf("details = %v", body.Details)
	}
}

func TestUpdateTransactionState(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodPost, "/api/transactions", `{"from_account_id":1,"to_account_id":2,"amount":25}`), http.StatusCreated)

	rec := s.do(t, http.MethodPatch, "/api/transactions/1", `{"state":"paid"}`)
	expectStatus(t, rec, http.StatusOK)
	if tx := decode[models.TransactionResponse](t, rec); tx.State != models.Paid || tx.Amount != "25.00" {
		t.Errorf("unexpected transaction %+v", tx)
	}

	rec = s.do(t, http.MethodPatch, "/api/transactions/1", `{"state":"cancelled"}`)
	expectStatus(t, rec, http.StatusBadRequest)
	body := decode[ErrorResponse](t, rec)
	if got := body.Details["state"]; len(got) != 1 || got[0] != "State must be one of: sent, received, paid" {
		t.Errorf("details = %v", body.Details)
	}

	expectStatus(t, s.do(t, http.MethodPatch, "/api/transactions/99999", `{"state":"paid"}`), http.StatusNotFound)

	events := decode[[]models.TransactionEvent](t, s.do(t, http.MethodGet, "/api/transactions/1/events", ""))
	if len(events) != 2 || events[1].ToState != models.Paid {
		t.Errorf("events = %+v", events)
	}
}

func TestGetNotFoundAndBadID(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/transactions/99999", "")
	expectStatus(t, rec, http.StatusNotFound)
	if body := decode[ErrorResponse](t, rec); body.Message != "Transaction with ID 99999 not found" {
		t.Errorf("message = %q", body.Message)
	}

	expectStatus(t, s.do(t, http.MethodGet, "/api/accounts/99999", ""), http.StatusNotFound)
	expectStatus(t, s.do(t, http.MethodGet, "/api/accounts/abc", ""), http.StatusBadRequest)
}

func TestListAccounts(t *testing.T) {
	s := newTestServer(t)

	accounts := decode[[]models.AccountResponse](t, s.do(t, http.MethodGet, "/api/accounts?sort_by=account_name&sort_order=desc", ""))
	if len(accounts) != 2 || accounts[0].AccountName != "John Doe Checking" {
		t.Errorf("accounts = %+v", accounts)
	}
	if accounts[0].Balance != "500.00" || accounts[0].Currency != "USD" {
		t.Errorf("account = %+v", accounts[0])
	}

	expectStatus(t, s.do(t, http.MethodGet, "/api/accounts?limit=0", ""), http.StatusBadRequest)
	expectStatus(t, s.do(t, http.MethodGet, "/api/accounts?limit=1000", ""), http.StatusOK)
}

func TestSearch(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodPost, "/api/transactions", `{"from_account_id":1,"to_account_id":2,"amount":5}`), http.StatusCreated)

	rec := s.do(t, http.MethodGet, "/api/search?q=jane", "")
	expectStatus(t, rec, http.StatusOK)
	res := decode[SearchResponse](t, rec)
	if len(res.Accounts) != 1 || res.Accounts[0].Type != "account" {
		t.Errorf("accounts = %+v", res.Accounts)
	}
	if len(res.Transactions) != 1 || res.Transactions[0].Type != "transaction" || res.Transactions[0].Amount != "5.00" {
		t.Errorf("transactions = %+v", res.Transactions)
	}

	rec = s.do(t, http.MethodGet, "/api/search", "")
	expectStatus(t, rec, http.StatusBadRequest)
	if body := decode[ErrorResponse](t, rec); body.Message != "Search query is required" {
		t.Errorf("message = %q", body.Message)
	}

	empty := s.do(t, http.MethodGet, "/api/search?q=zzz", "")
	if !strings.Contains(empty.Body.String(), `"accounts":[]`) {
		t.Errorf("empty results should be arrays, got %s", empty.Body.String())
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/nope", "")
	expectStatus(t, rec, http.StatusNotFound)
	if body := decode[ErrorResponse](t, rec); body.Error != "NotFound" {
		t.Errorf("error = %q", body.Error)
	}

	wrongMethods := []struct {
		method, path string
	}{
		{http.MethodDelete, "/api/transactions/1"},
		{http.MethodDelete, "/api/transactions"},
		{http.MethodPut, "/api/accounts/1"},
		{http.MethodPost, "/api/health"},
		{http.MethodPost, "/api/search"},
	}
	for _, tt := range wrongMethods {
		rec = s.do(t, tt.method, tt.path, "")
		expectStatus(t, rec, http.StatusMethodNotAllowed)
		if body := decode[ErrorResponse](t, rec); body.Error != "MethodNotAllowed" {
			t.Errorf("%s %s: error = %q", tt.method, tt.path, body.Error)
		}
	}
}

func TestIndexAndMetrics(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodGet, "/", ""), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodGet, "/metrics", ""), http.StatusOK)
}

func rateLimited(t *testing.T, rl *ratelimit.Limiter) http.Handler {
	t.Helper()
	deps, _ := newTestDeps(t)
	deps.Limiter = rl
	deps.RateLimit = config.RateLimitConfig{Enabled: true}

	var err error
	if deps.RateLimit.Default, err = ratelimit.ParseRates("100-H"); err != nil {
		t.Fatal(err)
	}
	if deps.RateLimit.Health, err = ratelimit.ParseRates("2-M"); err != nil {
		t.Fatal(err)
	}
	if deps.RateLimit.Transactions, err = ratelimit.ParseRates("1-M"); err != nil {
		t.Fatal(err)
	}
	return NewRouter(deps)
}

func TestRateLimit(t *testing.T) {
	handler := rateLimited(t, ratelimit.NewLimiter(ratelimit.NewMemoryStore()))

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	expectStatus(t, get("/api/health"), http.StatusOK)
	expectStatus(t, get("/api/health"), http.StatusOK)

	rec := get("/api/health")
	expectStatus(t, rec, http.StatusTooManyRequests)
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	if body := decode[ErrorResponse](t, rec); body.Error != "RateLimitExceeded" {
		t.Errorf("error = %q", body.Error)
	}

	// transaction reads use the transactions budget
	expectStatus(t, get("/api/transactions"), http.StatusOK)
	expectStatus(t, get("/api/transactions"), http.StatusTooManyRequests)

	// other routes keep their own budget and / is exempt
	expectStatus(t, get("/api/accounts"), http.StatusOK)
	expectStatus(t, get("/api/accounts"), http.StatusOK)
	for i := 0; i < 5; i++ {
		expectStatus(t, get("/"), http.StatusOK)
	}
}

type unreachableLimitStore struct {
	limiter.Store
}

func (unreachableLimitStore) Get(context.Context, string, limiter.Rate) (limiter.Context, error) {
	return limiter.Context{}, errors.New("connection refused")
}

func TestRateLimitFailsOpen(t *testing.T) {
	handler := rateLimited(t, ratelimit.NewLimiter(unreachableLimitStore{}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		expectStatus(t, rec, http.StatusOK)
	}
}

func TestPanicRecovery(t *testing.T) {
	handler := recoverer(logging.NewNoOpLogger(), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	expectStatus(t, rec, http.StatusInternalServerError)
	if body := decode[ErrorResponse](t, rec); body.Message != "An unexpected error occurred" {
		t.Errorf("message = %q", body.Message)
	}
}
