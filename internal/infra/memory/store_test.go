package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/finbook/finbook/internal/domain"
	"github.com/finbook/finbook/internal/infra/memory"
	"github.com/finbook/finbook/internal/port"

	"github.com/shopspring/decimal"
)

func seedAccount(t *testing.T, s *memory.Store, id string, balance int64) {
	t.Helper()
	now := time.Now().UTC()
	err := s.CreateAccount(context.Background(), &domain.FinanceAccount{
		ID:             id,
		Name:           id,
		Currency:       "USD",
		CurrentBalance: decimal.NewFromInt(balance),
		UserID:         "alice",
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func balance(t *testing.T, s *memory.Store, id string) decimal.Decimal {
	t.Helper()
	acct, err := s.GetAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return acct.CurrentBalance
}

func TestInTx_RollsBackOnError(t *testing.T) {
	s := memory.New()
	seedAccount(t, s, "acct-1", 100)

	sentinel := errors.New("boom")
	err := s.InTx(context.Background(), func(tx port.LedgerTx) error {
		if err := tx.ApplyBalanceDelta(context.Background(), "acct-1", decimal.NewFromInt(-40)); err != nil {
			return err
		}
		if err := tx.InsertTransaction(context.Background(), &domain.Transaction{
			ID:        "tx-1",
			Type:      domain.TypeExpense,
			Amount:    decimal.NewFromInt(40),
			AccountID: "acct-1",
		}); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	if got := balance(t, s, "acct-1"); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected balance restored to 100, got %s", got)
	}
	if _, err := s.GetTransaction(context.Background(), "tx-1"); err == nil {
		t.Error("expected inserted transaction to be rolled back")
	}
}

func TestInTx_CommitsOnSuccess(t *testing.T) {
	s := memory.New()
	seedAccount(t, s, "acct-1", 100)

	err := s.InTx(context.Background(), func(tx port.LedgerTx) error {
		if err := tx.DeductBalance(context.Background(), "acct-1", decimal.NewFromInt(30)); err != nil {
			return err
		}
		return tx.InsertTransaction(context.Background(), &domain.Transaction{
			ID:        "tx-1",
			Type:      domain.TypeExpense,
			Amount:    decimal.NewFromInt(30),
			AccountID: "acct-1",
		})
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	if got := balance(t, s, "acct-1"); !got.Equal(decimal.NewFromInt(70)) {
		t.Errorf("expected 70, got %s", got)
	}
	if _, err := s.GetTransaction(context.Background(), "tx-1"); err != nil {
		t.Errorf("expected committed transaction, got %v", err)
	}
}

func TestDeductBalance_FloorCheck(t *testing.T) {
	s := memory.New()
	seedAccount(t, s, "acct-1", 50)

	err := s.InTx(context.Background(), func(tx port.LedgerTx) error {
		return tx.DeductBalance(context.Background(), "acct-1", decimal.NewFromInt(60))
	})
	var insufficient *domain.ErrInsufficientBalance
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if !insufficient.Available.Equal(decimal.NewFromInt(50)) || !insufficient.Required.Equal(decimal.NewFromInt(60)) {
		t.Errorf("unexpected amounts: available=%s required=%s", insufficient.Available, insufficient.Required)
	}
	if got := balance(t, s, "acct-1"); !got.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected balance untouched, got %s", got)
	}
}

func TestInTx_CancelledContext(t *testing.T) {
	s := memory.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Cancellation must win deterministically even though the lock is free.
	for i := 0; i < 50; i++ {
		ran := false
		err := s.InTx(ctx, func(tx port.LedgerTx) error {
			ran = true
			return nil
		})
		var storage *domain.ErrStorage
		if !errors.As(err, &storage) {
			t.Fatalf("expected ErrStorage, got %v", err)
		}
		if ran {
			t.Fatal("unit executed under a cancelled context")
		}
	}
}

func TestListTransactions_FiltersAndPaginates(t *testing.T) {
	s := memory.New()
	seedAccount(t, s, "acct-1", 0)
	seedAccount(t, s, "acct-2", 0)

	base := time.Now().UTC()
	insert := func(id, acctID, categoryID string, offset time.Duration) {
		t.Helper()
		err := s.InTx(context.Background(), func(tx port.LedgerTx) error {
			return tx.InsertTransaction(context.Background(), &domain.Transaction{
				ID:         id,
				Type:       domain.TypeIncome,
				Amount:     decimal.NewFromInt(1),
				AccountID:  acctID,
				CategoryID: categoryID,
				Date:       base.Add(offset),
				CreatedAt:  base.Add(offset),
			})
		})
		if err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	insert("tx-old", "acct-1", "food", -2*time.Hour)
	insert("tx-mid", "acct-1", "rent", -time.Hour)
	insert("tx-new", "acct-2", "food", 0)

	scope := domain.CallerScope{UserID: "alice"}

	all, err := s.ListTransactions(context.Background(), scope, domain.ListTransactionsFilter{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != "tx-new" || all[2].ID != "tx-old" {
		t.Errorf("expected newest first, got %+v", all)
	}

	byAccount, err := s.ListTransactions(context.Background(), scope, domain.ListTransactionsFilter{AccountID: "acct-1", Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list by account: %v", err)
	}
	if len(byAccount) != 2 {
		t.Errorf("expected 2 for acct-1, got %d", len(byAccount))
	}

	byCategory, err := s.ListTransactions(context.Background(), scope, domain.ListTransactionsFilter{CategoryID: "food", Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list by category: %v", err)
	}
	if len(byCategory) != 2 {
		t.Errorf("expected 2 for food, got %d", len(byCategory))
	}

	page2, err := s.ListTransactions(context.Background(), scope, domain.ListTransactionsFilter{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page2) != 1 || page2[0].ID != "tx-old" {
		t.Errorf("expected last page with tx-old, got %+v", page2)
	}

	if _, err := s.ListTransactions(context.Background(), domain.CallerScope{UserID: "bob"}, domain.ListTransactionsFilter{Page: 1, PageSize: 10}); err != nil {
		t.Fatalf("foreign scope: %v", err)
	}
}

func TestDueSubscriptions(t *testing.T) {
	s := memory.New()
	now := time.Now().UTC()

	add := func(id string, next time.Time, active bool) {
		t.Helper()
		err := s.CreateSubscription(context.Background(), &domain.Subscription{
			ID:           id,
			Name:         id,
			Amount:       decimal.NewFromInt(5),
			AccountID:    "acct-1",
			Cadence:      domain.CadenceMonthly,
			NextChargeAt: next,
			Active:       active,
			UserID:       "alice",
		})
		if err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	add("due-early", now.Add(-2*time.Hour), true)
	add("due-late", now.Add(-time.Hour), true)
	add("inactive", now.Add(-3*time.Hour), false)
	add("future", now.Add(time.Hour), true)

	due, err := s.ListDueSubscriptions(context.Background(), now, 10)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 2 || due[0].ID != "due-early" || due[1].ID != "due-late" {
		t.Errorf("expected [due-early due-late], got %+v", due)
	}

	limited, err := s.ListDueSubscriptions(context.Background(), now, 1)
	if err != nil {
		t.Fatalf("list due limited: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "due-early" {
		t.Errorf("expected oldest due first under limit, got %+v", limited)
	}

	if err := s.AdvanceSubscription(context.Background(), "due-early", now.Add(30*24*time.Hour)); err != nil {
		t.Fatalf("advance: %v", err)
	}
	due, err = s.ListDueSubscriptions(context.Background(), now, 10)
	if err != nil {
		t.Fatalf("list due after advance: %v", err)
	}
	if len(due) != 1 || due[0].ID != "due-late" {
		t.Errorf("expected only due-late after advance, got %+v", due)
	}
}
