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
// Subscriptions — /v1/subscriptions
// ============================================================

func createSubscriptionHandler(subs *service.Subscriptions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/subscriptions")
		defer span.End()

		var req domain.CreateSubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sub, err := subs.CreateSubscription(ctx, ScopeFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	}
}

func listSubscriptionsHandler(subs *service.Subscriptions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/subscriptions")
		defer span.End()

		list, err := subs.ListSubscriptions(ctx, ScopeFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"subscriptions": list})
	}
}

func deleteSubscriptionHandler(subs *service.Subscriptions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/subscriptions/{subscriptionId}")
		defer span.End()

		if err := subs.DeleteSubscription(ctx, ScopeFromContext(ctx), chi.URLParam(r, "subscriptionId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
