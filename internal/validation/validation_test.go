package validation

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/abkawan/peachtree-bank/internal/apperrors"
	"github.com/abkawan/peachtree-bank/internal/models"
	"github.com/shopspring/decimal"
)

func detailsOf(t *testing.T, err error) map[string][]string {
	t.Helper()
	if err == nil {
		t.Fatal("expected a validation error, got nil")
	}
	appErr := apperrors.As(err)
	if appErr.Kind != apperrors.KindValidation {
		t.Fatalf("expected ValidationError, got %s (%v)", appErr.Kind, err)
	}
	return appErr.Details
}

func TestCheckAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"100", ""},
		{"0.01", ""},
		{"100.500", ""},
		{"9999999999.99", ""},
		{"0", MsgAmountPositive},
		{"-5", MsgAmountPositive},
		{"10.555", MsgAmountPlaces},
		{"10000000000.00", "Amount must not exceed 9999999999.99"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := CheckAmount(decimal.RequireFromString(tt.in)); got != tt.want {
				t.Errorf("CheckAmount(%s) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidateCreateTransaction(t *testing.T) {
	amount := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}

	tests := []struct {
		name      string
		req       models.CreateTransactionRequest
		wantField string
		wantMsg   string
		wantTop   string
	}{
		{
			name:      "zero amount",
			req:       models.CreateTransactionRequest{FromAccountID: 1, ToAccountID: 2, Amount: amount("0")},
			wantField: "amount",
			wantMsg:   MsgAmountPositive,
			wantTop:   MsgAmountPositive,
		},
		{
			name:      "three decimals",
			req:       models.CreateTransactionRequest{FromAccountID: 1, ToAccountID: 2, Amount: amount("1.234")},
			wantField: "amount",
			wantMsg:   MsgAmountPlaces,
			wantTop:   MsgAmountPlaces,
		},
		{
			name:      "zero amount and missing destination",
			req:       models.CreateTransactionRequest{FromAccountID: 1, Amount: amount("0")},
			wantField: "amount",
			wantMsg:   MsgAmountPositive,
			wantTop:   MsgRequestInvalid,
		},
		{
			name:      "missing amount",
			req:       models.CreateTransactionRequest{FromAccountID: 1, ToAccountID: 2},
			wantField: "amount",
			wantMsg:   "This field is required",
			wantTop:   MsgRequestInvalid,
		},
		{
			name:      "missing source",
			req:       models.CreateTransactionRequest{ToAccountID: 2, Amount: amount("5")},
			wantField: "from_account_id",
			wantMsg:   "This field is required",
			wantTop:   MsgRequestInvalid,
		},
		{
			name:      "unknown description",
			req:       models.CreateTransactionRequest{FromAccountID: 1, ToAccountID: 2, Amount: amount("5"), Description: "Gift"},
			wantField: "description",
			wantMsg:   "Description must be one of: Card Payments, Transaction, Online transfer",
			wantTop:   MsgRequestInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.req)
			details := detailsOf(t, err)
			msgs := details[tt.wantField]
			if len(msgs) != 1 || msgs[0] != tt.wantMsg {
				t.Errorf("details[%s] = %v, want [%q]", tt.wantField, msgs, tt.wantMsg)
			}
			if appErr := apperrors.As(err); appErr.Message != tt.wantTop {
				t.Errorf("message = %q, want %q", appErr.Message, tt.wantTop)
			}
		})
	}
}

func TestValidateAcceptsValidRequest(t *testing.T) {
	d := decimal.RequireFromString("100.00")
	req := models.CreateTransactionRequest{
		FromAccountID: 1,
		ToAccountID:   2,
		Amount:        &d,
		Description:   string(models.OnlineTransfer),
	}
	if err := Validate(&req); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateState(t *testing.T) {
	details := detailsOf(t, Validate(&models.UpdateTransactionRequest{State: "cancelled"}))
	if got := details["state"]; len(got) != 1 || got[0] != "State must be one of: sent, received, paid" {
		t.Errorf("details[state] = %v", got)
	}
	if err := Validate(&models.UpdateTransactionRequest{State: "paid"}); err != nil {
		t.Errorf("paid should be valid: %v", err)
	}
}

func TestParseListParams(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		entity  Entity
		want    models.ListParams
		wantErr string
	}{
		{
			name:   "defaults transactions",
			query:  "",
			entity: Transactions,
			want:   models.ListParams{Limit: 100, SortBy: "date", SortOrder: models.Descending},
		},
		{
			name:   "defaults accounts",
			query:  "",
			entity: Accounts,
			want:   models.ListParams{Limit: 100, SortBy: "account_number", SortOrder: models.Ascending},
		},
		{
			name:   "clamps limit",
			query:  "limit=1000&offset=5",
			entity: Transactions,
			want:   models.ListParams{Limit: 100, Offset: 5, SortBy: "date", SortOrder: models.Descending},
		},
		{
			name:   "sort and search",
			query:  "sort_by=amount&sort_order=ASC&search=+john+",
			entity: Transactions,
			want:   models.ListParams{Limit: 100, SortBy: "amount", SortOrder: models.Ascending, Search: "john"},
		},
		{name: "zero limit", query: "limit=0", entity: Transactions, wantErr: "limit"},
		{name: "negative limit", query: "limit=-3", entity: Transactions, wantErr: "limit"},
		{name: "text limit", query: "limit=ten", entity: Transactions, wantErr: "limit"},
		{name: "negative offset", query: "offset=-1", entity: Transactions, wantErr: "offset"},
		{name: "bad sort field", query: "sort_by=balance", entity: Transactions, wantErr: "sort_by"},
		{name: "bad sort order", query: "sort_order=up", entity: Accounts, wantErr: "sort_order"},
		{name: "long search", query: "search=" + strings.Repeat("x", 101), entity: Transactions, wantErr: "search"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatalf("ParseQuery: %v", err)
			}
			got, err := ParseListParams(values, tt.entity)
			if tt.wantErr != "" {
				if _, ok := detailsOf(t, err)[tt.wantErr]; !ok {
					t.Errorf("expected detail for %s, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseListParams: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseID(t *testing.T) {
	if id, err := ParseID("42", "transaction"); err != nil || id != 42 {
		t.Fatalf("ParseID(42) = %d, %v", id, err)
	}
	for _, raw := range []string{"abc", "0", "-1", "1.5"} {
		if _, err := ParseID(raw, "transaction"); !apperrors.IsKind(err, apperrors.KindValidation) {
			t.Errorf("ParseID(%q) should be a validation error, got %v", raw, err)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Run("empty body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(""))
		var req models.UpdateTransactionRequest
		err := DecodeJSON(r, &req)
		if appErr := apperrors.As(err); appErr.Message != MsgNoJSON {
			t.Errorf("message = %q, want %q", appErr.Message, MsgNoJSON)
		}
	})

	t.Run("unknown field", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{"state":"paid","extra":1}`))
		var req models.UpdateTransactionRequest
		detailsOf(t, DecodeJSON(r, &req))
	})

	t.Run("string amount", func(t *testing.T) {
		body := `{"from_account_id":1,"to_account_id":2,"amount":"25.50"}`
		r := httptest.NewRequest("POST", "/", strings.NewReader(body))
		var req models.CreateTransactionRequest
		if err := DecodeJSON(r, &req); err != nil {
			t.Fatalf("DecodeJSON: %v", err)
		}
		if req.Amount.StringFixed(2) != "25.50" {
			t.Errorf("amount = %s", req.Amount)
		}
	})

	t.Run("wrong type", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{"state":5}`))
		var req models.UpdateTransactionRequest
		if _, ok := detailsOf(t, DecodeJSON(r, &req))["state"]; !ok {
			t.Error("expected detail for state")
		}
	})
}
