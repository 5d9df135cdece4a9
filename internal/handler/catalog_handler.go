package handler

import (
	"encoding/json"
	"net/http"

	"github.com/finbook/finbook/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Catalog — /v1/categories, /v1/payees, /v1/tags
// ============================================================

type nameRequest struct {
	Name string `json:"name"`
}

func decodeName(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	return req.Name, true
}

func createCategoryHandler(catalog *service.Catalog, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/categories")
		defer span.End()

		name, ok := decodeName(w, r)
		if !ok {
			return
		}
		cat, err := catalog.CreateCategory(ctx, ScopeFromContext(ctx), name)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, cat)
	}
}

func listCategoriesHandler(catalog *service.Catalog, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/categories")
		defer span.End()

		list, err := catalog.ListCategories(ctx, ScopeFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"categories": list})
	}
}

func deleteCategoryHandler(catalog *service.Catalog, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/categories/{categoryId}")
		defer span.End()

		if err := catalog.DeleteCategory(ctx, ScopeFromContext(ctx), chi.URLParam(r, "categoryId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func createPayeeHandler(catalog *service.Catalog, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/payees")
		defer span.End()

		name, ok := decodeName(w, r)
		if !ok {
			return
		}
		p, err := catalog.CreatePayee(ctx, ScopeFromContext(ctx), name)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func listPayeesHandler(catalog *service.Catalog, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/payees")
		defer span.End()

		list, err := catalog.ListPayees(ctx, ScopeFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"payees": list})
	}
}

func deletePayeeHandler(catalog *service.Catalog, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/payees/{payeeId}")
		defer span.End()

		if err := catalog.DeletePayee(ctx, ScopeFromContext(ctx), chi.URLParam(r, "payeeId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func createTagHandler(catalog *service.Catalog, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/tags")
		defer span.End()

		name, ok := decodeName(w, r)
		if !ok {
			return
		}
		t, err := catalog.CreateTag(ctx, ScopeFromContext(ctx), name)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, t)
	}
}

func listTagsHandler(catalog *service.Catalog, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/tags")
		defer span.End()

		list, err := catalog.ListTags(ctx, ScopeFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tags": list})
	}
}

func deleteTagHandler(catalog *service.Catalog, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/tags/{tagId}")
		defer span.End()

		if err := catalog.DeleteTag(ctx, ScopeFromContext(ctx), chi.URLParam(r, "tagId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
