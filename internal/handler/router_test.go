package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/finbook/finbook/internal/domain"
	"github.com/finbook/finbook/internal/handler"
	"github.com/finbook/finbook/internal/infra/cache"
	"github.com/finbook/finbook/internal/infra/memory"
	"github.com/finbook/finbook/internal/infra/observability"
	"github.com/finbook/finbook/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	store := memory.New()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	auth := service.NewAuthorizer()
	accountCache := cache.New[*domain.FinanceAccount](time.Minute)

	ledger := service.NewLedger(store, auth, service.DefaultLedgerOptions(), accountCache, metrics, logger)
	svcs := handler.Services{
		Ledger:        ledger,
		Accounts:      service.NewAccounts(store, auth, accountCache, metrics, logger),
		Catalog:       service.NewCatalog(store, logger),
		Subscriptions: service.NewSubscriptions(store, auth, ledger, logger),
	}
	return handler.NewRouter(svcs, store, metrics, testSecret, logger)
}

func signToken(t *testing.T, sub, org string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if org != "" {
		claims["org_id"] = org
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func doJSON(t *testing.T, srv http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestAuth_RejectsBadTokens(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"garbage token", "not-a-jwt"},
		{"wrong secret", func() string {
			tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"}).SignedString([]byte("other"))
			return tok
		}()},
		{"no subject", func() string {
			tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"org_id": "acme"}).SignedString([]byte(testSecret))
			return tok
		}()},
		{"expired", func() string {
			tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"sub": "alice",
				"exp": time.Now().Add(-time.Hour).Unix(),
			}).SignedString([]byte(testSecret))
			return tok
		}()},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodGet, "/v1/accounts", tc.token, nil)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestOperationalEndpointsAreOpen(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/ping", "/healthz", "/readyz", "/metrics", "/v1/metrics/ledger"} {
		rec := doJSON(t, srv, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestTransactionLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, "alice", "")

	rec := doJSON(t, srv, http.MethodPost, "/v1/accounts", token, map[string]any{
		"name":            "Checking",
		"initial_balance": "100",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create account: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	acct := decodeBody[domain.FinanceAccount](t, rec)

	rec = doJSON(t, srv, http.MethodPost, "/v1/transactions", token, map[string]any{
		"type":       "EXPENSE",
		"amount":     "30",
		"fee_amount": "2.50",
		"account_id": acct.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create transaction: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	tx := decodeBody[domain.Transaction](t, rec)
	if tx.Status != domain.StatusCompleted {
		t.Errorf("expected default status completed, got %s", tx.Status)
	}

	rec = doJSON(t, srv, http.MethodGet, "/v1/accounts/"+acct.ID+"/balance", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("balance: expected 200, got %d", rec.Code)
	}
	balance := decodeBody[map[string]any](t, rec)
	if got, ok := balance["balance"].(string); !ok || !decimal.RequireFromString(got).Equal(decimal.RequireFromString("67.5")) {
		t.Errorf("expected balance 67.5, got %v", balance["balance"])
	}

	rec = doJSON(t, srv, http.MethodGet, "/v1/transactions/"+tx.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get transaction: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPut, "/v1/transactions/"+tx.ID, token, map[string]any{
		"amount": "10",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodDelete, "/v1/transactions/"+tx.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/v1/accounts/"+acct.ID+"/balance", token, nil)
	balance = decodeBody[map[string]any](t, rec)
	if got, ok := balance["balance"].(string); !ok || !decimal.RequireFromString(got).Equal(decimal.RequireFromString("100")) {
		t.Errorf("expected balance restored to 100, got %v", balance["balance"])
	}
}

func TestErrorStatusMapping(t *testing.T) {
	srv := newTestServer(t)
	alice := signToken(t, "alice", "")
	bob := signToken(t, "bob", "")

	rec := doJSON(t, srv, http.MethodPost, "/v1/accounts", alice, map[string]any{
		"name":            "Checking",
		"initial_balance": "10",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create account: %d", rec.Code)
	}
	acct := decodeBody[domain.FinanceAccount](t, rec)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{
			name: "validation error", method: http.MethodPost, path: "/v1/transactions", token: alice,
			body: map[string]any{"type": "WIRE", "amount": "5", "account_id": acct.ID},
			want: http.StatusBadRequest,
		},
		{
			name: "malformed body", method: http.MethodPost, path: "/v1/transactions", token: alice,
			body: "not-an-object",
			want: http.StatusBadRequest,
		},
		{
			name: "insufficient balance", method: http.MethodPost, path: "/v1/transactions", token: alice,
			body: map[string]any{"type": "EXPENSE", "amount": "500", "account_id": acct.ID},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "unknown account", method: http.MethodPost, path: "/v1/transactions", token: alice,
			body: map[string]any{"type": "EXPENSE", "amount": "5", "account_id": "missing"},
			want: http.StatusNotFound,
		},
		{
			name: "foreign account", method: http.MethodPost, path: "/v1/transactions", token: bob,
			body: map[string]any{"type": "EXPENSE", "amount": "5", "account_id": acct.ID},
			want: http.StatusForbidden,
		},
		{
			name: "unknown transaction", method: http.MethodGet, path: "/v1/transactions/missing", token: alice,
			want: http.StatusNotFound,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, srv, tc.method, tc.path, tc.token, tc.body)
			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
			body := decodeBody[map[string]any](t, rec)
			if _, ok := body["error"]; !ok {
				t.Errorf("expected error payload, got %v", body)
			}
		})
	}
}

func TestOrgScopeFromToken(t *testing.T) {
	srv := newTestServer(t)
	aliceAtAcme := signToken(t, "alice", "acme")
	bobAtAcme := signToken(t, "bob", "acme")

	rec := doJSON(t, srv, http.MethodPost, "/v1/accounts", aliceAtAcme, map[string]any{
		"name":      "Ops",
		"org_owned": true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create org account: %d: %s", rec.Code, rec.Body.String())
	}
	acct := decodeBody[domain.FinanceAccount](t, rec)
	if acct.OrganizationID != "acme" {
		t.Fatalf("expected org account, got %+v", acct)
	}

	// Another member of the same org can use it.
	rec = doJSON(t, srv, http.MethodPost, "/v1/transactions", bobAtAcme, map[string]any{
		"type":       "INCOME",
		"amount":     "50",
		"account_id": acct.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Errorf("org member expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// The same user without org context cannot.
	rec = doJSON(t, srv, http.MethodGet, "/v1/accounts/"+acct.ID, signToken(t, "alice", ""), nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("personal context expected 403, got %d", rec.Code)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, "alice", "")

	rec := doJSON(t, srv, http.MethodPost, "/v1/categories", token, map[string]any{"name": "Food"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category: %d: %s", rec.Code, rec.Body.String())
	}
	cat := decodeBody[domain.Category](t, rec)

	rec = doJSON(t, srv, http.MethodGet, "/v1/categories", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list categories: %d", rec.Code)
	}
	list := decodeBody[map[string][]domain.Category](t, rec)
	if len(list["categories"]) != 1 {
		t.Errorf("expected 1 category, got %v", list)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/v1/categories/"+cat.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete category: expected 204, got %d", rec.Code)
	}
}

func TestLedgerMetricsSnapshot(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, "alice", "")

	rec := doJSON(t, srv, http.MethodPost, "/v1/accounts", token, map[string]any{"name": "Checking"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create account: %d", rec.Code)
	}
	acct := decodeBody[domain.FinanceAccount](t, rec)

	rec = doJSON(t, srv, http.MethodPost, "/v1/transactions", token, map[string]any{
		"type": "INCOME", "amount": "10", "account_id": acct.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create transaction: %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodPost, "/v1/transactions", token, map[string]any{
		"type": "EXPENSE", "amount": "999", "account_id": acct.ID,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/v1/metrics/ledger", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("snapshot: %d", rec.Code)
	}
	snap := decodeBody[domain.LedgerMetrics](t, rec)
	if snap.CreatedTotal != 1 {
		t.Errorf("expected 1 created, got %d", snap.CreatedTotal)
	}
	if snap.FailedTotal != 1 {
		t.Errorf("expected 1 failed, got %d", snap.FailedTotal)
	}
	if snap.InsufficientBalanceHits != 1 {
		t.Errorf("expected 1 insufficient hit, got %d", snap.InsufficientBalanceHits)
	}
}
