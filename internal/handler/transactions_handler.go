package handler

import (
	"encoding/json"
	"net/http"

	"github.com/finbook/finbook/internal/domain"
	"github.com/finbook/finbook/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Ledger engine — /v1/transactions
// ============================================================

func createTransactionHandler(ledger *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions")
		defer span.End()

		var req domain.CreateTransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(attribute.String("transaction.type", string(req.Type)))

		tx, err := ledger.CreateTransaction(ctx, ScopeFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, tx)
	}
}

func getTransactionHandler(ledger *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions/{transactionId}")
		defer span.End()

		id := chi.URLParam(r, "transactionId")
		tx, err := ledger.GetTransaction(ctx, ScopeFromContext(ctx), id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	}
}

func listTransactionsHandler(ledger *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions")
		defer span.End()

		page, pageSize := parsePagination(r)
		filter := domain.ListTransactionsFilter{
			AccountID:  r.URL.Query().Get("account_id"),
			CategoryID: r.URL.Query().Get("category_id"),
			Page:       page,
			PageSize:   pageSize,
		}

		txs, err := ledger.ListTransactions(ctx, ScopeFromContext(ctx), filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
	}
}

func updateTransactionHandler(ledger *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/transactions/{transactionId}")
		defer span.End()

		id := chi.URLParam(r, "transactionId")
		span.SetAttributes(attribute.String("transaction.id", id))

		var req domain.UpdateTransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		tx, err := ledger.UpdateTransaction(ctx, ScopeFromContext(ctx), id, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	}
}

func deleteTransactionHandler(ledger *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/transactions/{transactionId}")
		defer span.End()

		id := chi.URLParam(r, "transactionId")
		if err := ledger.DeleteTransaction(ctx, ScopeFromContext(ctx), id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
