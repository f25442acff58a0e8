//go:build integration

package reward

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"math"
	"os"
	"testing"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// setupTestDB creates a test database connection and ensures the users table
// exists with seeded balances.
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	if _, err := db.Exec(`DELETE FROM users WHERE id LIKE 'reward-test-%'`); err != nil {
		t.Fatalf("failed to clean users table: %v", err)
	}

	seed := `INSERT INTO users (id, voice_balance) VALUES ($1, $2)`
	for id, balance := range map[string]float64{
		"reward-test-u1": 10,
		"reward-test-u2": 0,
	} {
		if _, err := db.Exec(seed, id, balance); err != nil {
			t.Fatalf("failed to seed user %s: %v", id, err)
		}
	}

	cleanup := func() {
		_, _ = db.Exec(`DELETE FROM users WHERE id LIKE 'reward-test-%'`)
		db.Close()
	}
	return db, cleanup
}

func balanceOf(t *testing.T, db *sql.DB, id string) float64 {
	t.Helper()
	var balance float64
	if err := db.QueryRow(`SELECT voice_balance FROM users WHERE id = $1`, id).Scan(&balance); err != nil {
		t.Fatalf("failed to read balance of %s: %v", id, err)
	}
	return balance
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestPostgresBalanceStore_BulkCredit verifies the ledger lands on the right
// rows in one transaction.
func TestPostgresBalanceStore_BulkCredit(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPostgresBalanceStore(db, newTestLogger())
	err := store.BulkCredit(context.Background(), Ledger{
		"reward-test-u1": 1.5,
		"reward-test-u2": 2.0,
	})
	if err != nil {
		t.Fatalf("BulkCredit() error = %v", err)
	}

	if got := balanceOf(t, db, "reward-test-u1"); math.Abs(got-11.5) > 1e-9 {
		t.Errorf("u1 balance = %f, want 11.5", got)
	}
	if got := balanceOf(t, db, "reward-test-u2"); math.Abs(got-2.0) > 1e-9 {
		t.Errorf("u2 balance = %f, want 2.0", got)
	}
}

// TestPostgresBalanceStore_UnknownAuthor verifies crediting an unknown user
// updates nothing but does not fail the batch; the UPDATE simply matches no
// rows.
func TestPostgresBalanceStore_UnknownAuthor(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPostgresBalanceStore(db, newTestLogger())
	err := store.BulkCredit(context.Background(), Ledger{
		"reward-test-u1":      1.0,
		"reward-test-missing": 5.0,
	})
	if err != nil {
		t.Fatalf("BulkCredit() error = %v", err)
	}

	if got := balanceOf(t, db, "reward-test-u1"); math.Abs(got-11.0) > 1e-9 {
		t.Errorf("u1 balance = %f, want 11.0", got)
	}
}

// TestPostgresBalanceStore_RollbackOnCancel verifies a context cancelled
// mid-batch rolls the whole transaction back.
func TestPostgresBalanceStore_RollbackOnCancel(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewPostgresBalanceStore(db, newTestLogger())
	err := store.BulkCredit(ctx, Ledger{"reward-test-u1": 1.0})
	if err == nil {
		t.Fatal("expected an error from a cancelled context")
	}

	if got := balanceOf(t, db, "reward-test-u1"); got != 10 {
		t.Errorf("u1 balance = %f, want pre-batch 10", got)
	}
}
