package worker

import (
	"context"
	"testing"
	"time"

	"github.com/finbook/finbook/internal/domain"
	"github.com/finbook/finbook/internal/infra/memory"
	"github.com/finbook/finbook/internal/infra/observability"
	"github.com/finbook/finbook/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func newTestWorker(t *testing.T, interval time.Duration) (*SubscriptionWorker, *memory.Store) {
	t.Helper()
	store := memory.New()
	auth := service.NewAuthorizer()
	ledger := service.NewLedger(store, auth, service.DefaultLedgerOptions(), nil, observability.NewMetrics(), zap.NewNop())
	subs := service.NewSubscriptions(store, auth, ledger, zap.NewNop())
	return NewSubscriptionWorker(subs, interval, 10, zap.NewNop()), store
}

func TestTick_ChargesDueSubscriptions(t *testing.T) {
	w, store := newTestWorker(t, time.Minute)
	now := time.Now().UTC()

	err := store.CreateAccount(context.Background(), &domain.FinanceAccount{
		ID:             "acct-1",
		Name:           "Checking",
		Currency:       "USD",
		CurrentBalance: decimal.NewFromInt(100),
		UserID:         "alice",
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	err = store.CreateSubscription(context.Background(), &domain.Subscription{
		ID:           "sub-1",
		Name:         "Gym",
		Amount:       decimal.NewFromInt(25),
		AccountID:    "acct-1",
		Cadence:      domain.CadenceMonthly,
		NextChargeAt: now.Add(-time.Hour),
		Active:       true,
		UserID:       "alice",
		CreatedAt:    now,
	})
	if err != nil {
		t.Fatalf("seed subscription: %v", err)
	}

	w.tick(context.Background(), now)

	acct, err := store.GetAccount(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if !acct.CurrentBalance.Equal(decimal.NewFromInt(75)) {
		t.Errorf("expected balance 75 after charge, got %s", acct.CurrentBalance)
	}

	// A second pass finds nothing due and changes nothing.
	w.tick(context.Background(), now)
	acct, err = store.GetAccount(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if !acct.CurrentBalance.Equal(decimal.NewFromInt(75)) {
		t.Errorf("expected balance unchanged at 75, got %s", acct.CurrentBalance)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	w, _ := newTestWorker(t, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
