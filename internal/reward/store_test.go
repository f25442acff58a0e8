package reward

import (
	"context"
	"errors"
	"math"
	"testing"
)

// TestInMemoryBalanceStore_BulkCredit verifies credits are applied to the
// right balances.
func TestInMemoryBalanceStore_BulkCredit(t *testing.T) {
	store := NewInMemoryBalanceStore()
	store.SetBalance("u1", 10)
	store.SetBalance("u2", 0)

	err := store.BulkCredit(context.Background(), Ledger{"u1": 1.5, "u2": 2.0})
	if err != nil {
		t.Fatalf("BulkCredit() error = %v", err)
	}

	if got := store.Balance("u1"); math.Abs(got-11.5) > 1e-9 {
		t.Errorf("u1 balance = %f, want 11.5", got)
	}
	if got := store.Balance("u2"); math.Abs(got-2.0) > 1e-9 {
		t.Errorf("u2 balance = %f, want 2.0", got)
	}
}

// TestInMemoryBalanceStore_AtomicRollback verifies a mid-batch failure leaves
// every balance at its pre-batch value.
func TestInMemoryBalanceStore_AtomicRollback(t *testing.T) {
	store := NewInMemoryBalanceStore()
	store.SetBalance("u1", 10)
	store.SetBalance("u2", 20)
	store.SetBalance("u3", 30)
	store.FailAfter = 1

	err := store.BulkCredit(context.Background(), Ledger{"u1": 1, "u2": 2, "u3": 3})
	if !errors.Is(err, ErrCommitFailed) {
		t.Fatalf("error = %v, want ErrCommitFailed", err)
	}

	// No partial credit for any author.
	if got := store.Balance("u1"); got != 10 {
		t.Errorf("u1 balance = %f, want pre-batch 10", got)
	}
	if got := store.Balance("u2"); got != 20 {
		t.Errorf("u2 balance = %f, want pre-batch 20", got)
	}
	if got := store.Balance("u3"); got != 30 {
		t.Errorf("u3 balance = %f, want pre-batch 30", got)
	}
}

// TestInMemoryBalanceStore_EmptyLedger verifies committing an empty ledger is
// a no-op.
func TestInMemoryBalanceStore_EmptyLedger(t *testing.T) {
	store := NewInMemoryBalanceStore()
	store.SetBalance("u1", 5)

	if err := store.BulkCredit(context.Background(), Ledger{}); err != nil {
		t.Fatalf("BulkCredit() error = %v", err)
	}
	if got := store.Balance("u1"); got != 5 {
		t.Errorf("u1 balance = %f, want untouched 5", got)
	}
}

// TestInMemoryBalanceStore_Credit verifies single credits accumulate.
func TestInMemoryBalanceStore_Credit(t *testing.T) {
	store := NewInMemoryBalanceStore()

	if err := store.Credit(context.Background(), "u1", 100); err != nil {
		t.Fatalf("Credit() error = %v", err)
	}
	if err := store.Credit(context.Background(), "u1", 50); err != nil {
		t.Fatalf("Credit() error = %v", err)
	}
	if got := store.Balance("u1"); got != 150 {
		t.Errorf("u1 balance = %f, want 150", got)
	}
}
