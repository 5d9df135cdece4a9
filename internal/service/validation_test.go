package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/finbook/finbook/internal/domain"
	"github.com/finbook/finbook/internal/service"

	"github.com/shopspring/decimal"
)

func TestCreateTransaction_PayloadValidation(t *testing.T) {
	ledger, store := newTestLedger(t, service.DefaultLedgerOptions())
	seedAccount(t, store, "acct-1", "alice", "", "100")

	tests := []struct {
		name string
		req  domain.CreateTransactionRequest
	}{
		{
			name: "unknown type",
			req:  domain.CreateTransactionRequest{Type: "WIRE", Amount: decimal.NewFromInt(10), AccountID: "acct-1"},
		},
		{
			name: "unknown status",
			req:  domain.CreateTransactionRequest{Type: domain.TypeIncome, Status: "archived", Amount: decimal.NewFromInt(10), AccountID: "acct-1"},
		},
		{
			name: "zero amount",
			req:  domain.CreateTransactionRequest{Type: domain.TypeIncome, AccountID: "acct-1"},
		},
		{
			name: "negative amount",
			req:  domain.CreateTransactionRequest{Type: domain.TypeIncome, Amount: decimal.NewFromInt(-5), AccountID: "acct-1"},
		},
		{
			name: "negative fee",
			req:  domain.CreateTransactionRequest{Type: domain.TypeIncome, Amount: decimal.NewFromInt(10), FeeAmount: decimal.NewFromInt(-1), AccountID: "acct-1"},
		},
		{
			name: "missing account",
			req:  domain.CreateTransactionRequest{Type: domain.TypeIncome, Amount: decimal.NewFromInt(10)},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ledger.CreateTransaction(context.Background(), aliceScope, &tc.req)
			var validation *domain.ErrValidation
			if !errors.As(err, &validation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			assertBalance(t, store, "acct-1", "100")
		})
	}
}

func TestUpdateTransaction_MergedResultIsValidated(t *testing.T) {
	ledger, store := newTestLedger(t, service.DefaultLedgerOptions())
	seedAccount(t, store, "acct-1", "alice", "", "100")

	tx, err := ledger.CreateTransaction(context.Background(), aliceScope, &domain.CreateTransactionRequest{
		Type:      domain.TypeExpense,
		Amount:    decimal.NewFromInt(10),
		AccountID: "acct-1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Flipping to TRANSFER without supplying a destination leaves the merged
	// record without one.
	transfer := domain.TypeTransfer
	_, err = ledger.UpdateTransaction(context.Background(), aliceScope, tx.ID, &domain.UpdateTransactionRequest{
		Type: &transfer,
	})
	var invalidTransfer *domain.ErrInvalidTransfer
	if !errors.As(err, &invalidTransfer) {
		t.Fatalf("expected ErrInvalidTransfer, got %v", err)
	}
	assertBalance(t, store, "acct-1", "90")

	neg := decimal.NewFromInt(-3)
	_, err = ledger.UpdateTransaction(context.Background(), aliceScope, tx.ID, &domain.UpdateTransactionRequest{
		Amount: &neg,
	})
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	assertBalance(t, store, "acct-1", "90")
}
