package service

import (
	"context"
	"strings"
	"time"

	"github.com/finbook/finbook/internal/domain"
	"github.com/finbook/finbook/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var catalogTracer = otel.Tracer("service/catalog")

// Catalog manages the associative entities the ledger references by id:
// categories, payees and tags. Low-risk CRUD; the ledger never validates
// these beyond storing their ids.
type Catalog struct {
	store  port.Store
	logger *zap.Logger
}

// NewCatalog creates the catalog service.
func NewCatalog(store port.Store, logger *zap.Logger) *Catalog {
	return &Catalog{store: store, logger: logger}
}

func scopedName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &domain.ErrValidation{Field: "name", Message: "required"}
	}
	return name, nil
}

// ownerFields assigns the owner scope the way accounts do: organization
// context wins when present.
func ownerFields(scope domain.CallerScope) (userID, orgID string) {
	if scope.OrganizationID != "" {
		return "", scope.OrganizationID
	}
	return scope.UserID, ""
}

// ============================================================
// Categories
// ============================================================

func (c *Catalog) CreateCategory(ctx context.Context, scope domain.CallerScope, name string) (*domain.Category, error) {
	ctx, span := catalogTracer.Start(ctx, "Catalog.CreateCategory")
	defer span.End()

	name, err := scopedName(name)
	if err != nil {
		return nil, err
	}
	userID, orgID := ownerFields(scope)
	cat := &domain.Category{
		ID:             uuid.New().String(),
		Name:           name,
		UserID:         userID,
		OrganizationID: orgID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := c.store.CreateCategory(ctx, cat); err != nil {
		return nil, err
	}
	c.logger.Info("category created", zap.String("category_id", cat.ID), zap.String("name", name))
	return cat, nil
}

func (c *Catalog) ListCategories(ctx context.Context, scope domain.CallerScope) ([]domain.Category, error) {
	ctx, span := catalogTracer.Start(ctx, "Catalog.ListCategories")
	defer span.End()
	return c.store.ListCategories(ctx, scope)
}

func (c *Catalog) DeleteCategory(ctx context.Context, scope domain.CallerScope, id string) error {
	ctx, span := catalogTracer.Start(ctx, "Catalog.DeleteCategory")
	defer span.End()
	return c.store.DeleteCategory(ctx, scope, id)
}

// ============================================================
// Payees
// ============================================================

func (c *Catalog) CreatePayee(ctx context.Context, scope domain.CallerScope, name string) (*domain.Payee, error) {
	ctx, span := catalogTracer.Start(ctx, "Catalog.CreatePayee")
	defer span.End()

	name, err := scopedName(name)
	if err != nil {
		return nil, err
	}
	userID, orgID := ownerFields(scope)
	p := &domain.Payee{
		ID:             uuid.New().String(),
		Name:           name,
		UserID:         userID,
		OrganizationID: orgID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := c.store.CreatePayee(ctx, p); err != nil {
		return nil, err
	}
	c.logger.Info("payee created", zap.String("payee_id", p.ID), zap.String("name", name))
	return p, nil
}

func (c *Catalog) ListPayees(ctx context.Context, scope domain.CallerScope) ([]domain.Payee, error) {
	ctx, span := catalogTracer.Start(ctx, "Catalog.ListPayees")
	defer span.End()
	return c.store.ListPayees(ctx, scope)
}

func (c *Catalog) DeletePayee(ctx context.Context, scope domain.CallerScope, id string) error {
	ctx, span := catalogTracer.Start(ctx, "Catalog.DeletePayee")
	defer span.End()
	return c.store.DeletePayee(ctx, scope, id)
}

// ============================================================
// Tags
// ============================================================

func (c *Catalog) CreateTag(ctx context.Context, scope domain.CallerScope, name string) (*domain.Tag, error) {
	ctx, span := catalogTracer.Start(ctx, "Catalog.CreateTag")
	defer span.End()

	name, err := scopedName(name)
	if err != nil {
		return nil, err
	}
	userID, orgID := ownerFields(scope)
	t := &domain.Tag{
		ID:             uuid.New().String(),
		Name:           name,
		UserID:         userID,
		OrganizationID: orgID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := c.store.CreateTag(ctx, t); err != nil {
		return nil, err
	}
	c.logger.Info("tag created", zap.String("tag_id", t.ID), zap.String("name", name))
	return t, nil
}

func (c *Catalog) ListTags(ctx context.Context, scope domain.CallerScope) ([]domain.Tag, error) {
	ctx, span := catalogTracer.Start(ctx, "Catalog.ListTags")
	defer span.End()
	return c.store.ListTags(ctx, scope)
}

func (c *Catalog) DeleteTag(ctx context.Context, scope domain.CallerScope, id string) error {
	ctx, span := catalogTracer.Start(ctx, "Catalog.DeleteTag")
	defer span.End()
	return c.store.DeleteTag(ctx, scope, id)
}
