package service

import (
	"context"
	"strings"
	"time"

	"github.com/finbook/finbook/internal/domain"
	"github.com/finbook/finbook/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var subsTracer = otel.Tracer("service/subscriptions")

// Subscriptions manages recurring charges. Registration is plain CRUD; the
// actual charging happens in the worker, which posts an EXPENSE through the
// ledger engine and advances the next charge date.
type Subscriptions struct {
	store  port.Store
	auth   *Authorizer
	ledger *Ledger
	logger *zap.Logger
}

// NewSubscriptions creates the subscriptions service.
func NewSubscriptions(store port.Store, auth *Authorizer, ledger *Ledger, logger *zap.Logger) *Subscriptions {
	return &Subscriptions{store: store, auth: auth, ledger: ledger, logger: logger}
}

// CreateSubscription registers a recurring charge against one of the
// caller's accounts.
func (s *Subscriptions) CreateSubscription(ctx context.Context, scope domain.CallerScope, req *domain.CreateSubscriptionRequest) (*domain.Subscription, error) {
	ctx, span := subsTracer.Start(ctx, "Subscriptions.CreateSubscription")
	defer span.End()

	if strings.TrimSpace(req.Name) == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	if !req.Amount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	if req.FeeAmount.IsNegative() {
		return nil, &domain.ErrValidation{Field: "fee_amount", Message: "must not be negative"}
	}
	if !req.Cadence.Valid() {
		return nil, &domain.ErrValidation{Field: "cadence", Message: "must be weekly, monthly or yearly"}
	}

	acct, err := s.store.GetAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Authorize(acct, scope); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	userID, orgID := ownerFields(scope)
	sub := &domain.Subscription{
		ID:             uuid.New().String(),
		Name:           strings.TrimSpace(req.Name),
		Amount:         req.Amount,
		FeeAmount:      req.FeeAmount,
		AccountID:      req.AccountID,
		CategoryID:     req.CategoryID,
		PayeeID:        req.PayeeID,
		Cadence:        req.Cadence,
		NextChargeAt:   req.NextChargeAt,
		Active:         true,
		UserID:         userID,
		OrganizationID: orgID,
		CreatedAt:      now,
	}
	if sub.NextChargeAt.IsZero() {
		sub.NextChargeAt = sub.Cadence.NextAfter(now)
	}

	if err := s.store.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	s.logger.Info("subscription created",
		zap.String("subscription_id", sub.ID),
		zap.String("account_id", sub.AccountID),
		zap.String("cadence", string(sub.Cadence)),
	)
	return sub, nil
}

// ListSubscriptions returns the caller's subscriptions.
func (s *Subscriptions) ListSubscriptions(ctx context.Context, scope domain.CallerScope) ([]domain.Subscription, error) {
	ctx, span := subsTracer.Start(ctx, "Subscriptions.ListSubscriptions")
	defer span.End()
	return s.store.ListSubscriptions(ctx, scope)
}

// DeleteSubscription removes a subscription; past charges stay on the ledger.
func (s *Subscriptions) DeleteSubscription(ctx context.Context, scope domain.CallerScope, id string) error {
	ctx, span := subsTracer.Start(ctx, "Subscriptions.DeleteSubscription")
	defer span.End()
	return s.store.DeleteSubscription(ctx, scope, id)
}

// ChargeDue posts a ledger expense for every due subscription and advances
// its next charge date. Called by the worker on its tick. Returns the number
// of charges posted; individual failures are logged and skipped so one
// underfunded account cannot stall the rest.
func (s *Subscriptions) ChargeDue(ctx context.Context, now time.Time, limit int) (int, error) {
	ctx, span := subsTracer.Start(ctx, "Subscriptions.ChargeDue")
	defer span.End()

	due, err := s.store.ListDueSubscriptions(ctx, now, limit)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int("subscriptions.due", len(due)))

	posted := 0
	for i := range due {
		sub := &due[i]
		scope := domain.CallerScope{UserID: sub.UserID, OrganizationID: sub.OrganizationID}
		_, err := s.ledger.CreateTransaction(ctx, scope, &domain.CreateTransactionRequest{
			Type:           domain.TypeExpense,
			Amount:         sub.Amount,
			FeeAmount:      sub.FeeAmount,
			AccountID:      sub.AccountID,
			CategoryID:     sub.CategoryID,
			PayeeID:        sub.PayeeID,
			SubscriptionID: sub.ID,
			Description:    sub.Name,
			Date:           sub.NextChargeAt,
		})
		if err != nil {
			s.logger.Warn("subscription charge failed",
				zap.String("subscription_id", sub.ID),
				zap.Error(err),
			)
			continue
		}
		next := sub.Cadence.NextAfter(sub.NextChargeAt)
		if err := s.store.AdvanceSubscription(ctx, sub.ID, next); err != nil {
			s.logger.Error("failed to advance subscription",
				zap.String("subscription_id", sub.ID),
				zap.Error(err),
			)
			continue
		}
		posted++
	}
	return posted, nil
}
