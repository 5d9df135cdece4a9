package handler

import (
	"encoding/json"
	"net/http"

	"github.com/finbook/finbook/internal/domain"
	"github.com/finbook/finbook/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Accounts — /v1/accounts
// ============================================================

func createAccountHandler(accounts *service.Accounts, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts")
		defer span.End()

		var req domain.CreateAccountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		acct, err := accounts.CreateAccount(ctx, ScopeFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, acct)
	}
}

func listAccountsHandler(accounts *service.Accounts, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts")
		defer span.End()

		list, err := accounts.ListAccounts(ctx, ScopeFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"accounts": list})
	}
}

func getAccountHandler(accounts *service.Accounts, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{accountId}")
		defer span.End()

		accountID := chi.URLParam(r, "accountId")
		acct, err := accounts.GetAccount(ctx, ScopeFromContext(ctx), accountID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, acct)
	}
}

func getBalanceHandler(accounts *service.Accounts, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{accountId}/balance")
		defer span.End()

		accountID := chi.URLParam(r, "accountId")
		acct, err := accounts.GetAccount(ctx, ScopeFromContext(ctx), accountID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"account_id": acct.ID,
			"balance":    acct.CurrentBalance,
			"currency":   acct.Currency,
			"as_of":      acct.UpdatedAt,
		})
	}
}
