package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/abkawan/peachtree-bank/internal/apperrors"
	"github.com/abkawan/peachtree-bank/internal/logging"
	"github.com/abkawan/peachtree-bank/internal/models"
	"github.com/abkawan/peachtree-bank/internal/service"
	"github.com/abkawan/peachtree-bank/internal/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler is for handling api requests
type Handler struct {
	accounts     *service.AccountService
	transactions *service.TransactionService
	search       *service.SearchService
	audit        *service.AuditService
	store        Pinger
	logger       *logging.Logger
}

func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		accounts:     deps.Accounts,
		transactions: deps.Transactions,
		search:       deps.Search,
		audit:        deps.Audit,
		store:        deps.Store,
		logger:       deps.Logger.Named("api"),
	}
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Message string              `json:"message"`
	Details map[string][]string `json:"details,omitempty"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError maps err to its status and error body. Unexpected errors are logged and
// reported with a generic message.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.As(err)
	if appErr.Kind == apperrors.KindInternal {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.Error(err),
		)
	}
	respondJSON(w, appErr.Status(), ErrorResponse{
		Error:   string(appErr.Kind),
		Message: appErr.Message,
		Details: appErr.Details,
	})
}

// Index lists the available endpoints
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "Peachtree Bank API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":       "/api/health",
			"accounts":     "/api/accounts",
			"transactions": "/api/transactions",
			"search":       "/api/search?q=",
			"metrics":      "/metrics",
		},
	})
}

// handles health check
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ListAccounts handles account list retrieval
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	params, err := validation.ParseListParams(r.URL.Query(), validation.Accounts)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	accounts, err := h.accounts.ListAccounts(r.Context(), params)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	response := make([]models.AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		response = append(response, models.NewAccountResponse(a))
	}
	respondJSON(w, http.StatusOK, response)
}

// handles account retrieval
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ParseID(mux.Vars(r)["id"], "account")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	account, err := h.accounts.GetAccount(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.NewAccountResponse(account))
}

// ListTransactions handles transaction list retrieval
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	params, err := validation.ParseListParams(r.URL.Query(), validation.Transactions)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	txs, err := h.transactions.ListTransactions(r.Context(), params)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	response := make([]models.TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		response = append(response, models.NewTransactionResponse(tx))
	}
	respondJSON(w, http.StatusOK, response)
}

// GetTransaction handles transaction retrieval
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ParseID(mux.Vars(r)["id"], "transaction")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	tx, err := h.transactions.GetTransaction(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.NewTransactionResponse(tx))
}

// handles transaction creation
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTransactionRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	tx, err := h.transactions.Create(r.Context(), service.CreateTransactionInput{
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        *req.Amount,
		Description:   models.TransactionType(req.Description),
		Date:          req.Date,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, models.NewTransactionResponse(tx))
}

// UpdateTransaction handles state changes
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ParseID(mux.Vars(r)["id"], "transaction")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req models.UpdateTransactionRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	tx, err := h.transactions.UpdateState(r.Context(), id, req.State)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.NewTransactionResponse(tx))
}

// TransactionEvents returns the audit trail of a transaction
func (h *Handler) TransactionEvents(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ParseID(mux.Vars(r)["id"], "transaction")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	events, err := h.audit.History(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

// SearchResponse groups search matches by entity
type SearchResponse struct {
	Accounts     []models.AccountSearchResult     `json:"accounts"`
	Transactions []models.TransactionSearchResult `json:"transactions"`
}

// Search handles free-text search across accounts and transactions
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := validation.ParsePage(r.URL.Query())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.search.Search(r.Context(), r.URL.Query().Get("q"), limit, offset)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	response := SearchResponse{
		Accounts:     make([]models.AccountSearchResult, 0, len(result.Accounts)),
		Transactions: make([]models.TransactionSearchResult, 0, len(result.Transactions)),
	}
	for _, a := range result.Accounts {
		response.Accounts = append(response.Accounts, models.NewAccountSearchResult(a))
	}
	for _, tx := range result.Transactions {
		response.Transactions = append(response.Transactions, models.NewTransactionSearchResult(tx))
	}
	respondJSON(w, http.StatusOK, response)
}

// NotFound renders unknown routes as JSON
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusNotFound, ErrorResponse{
		Error:   "NotFound",
		Message: "The requested resource doesn't exist",
	})
}

// MethodNotAllowed renders unsupported methods as JSON
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		Error:   "MethodNotAllowed",
		Message: "The method is not allowed for the requested URL",
	})
}
