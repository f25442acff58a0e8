package reward

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrCommitFailed is returned when a reward batch cannot be committed. The
// transaction is rolled back; no author keeps partial credit. The ledger is
// discarded by the caller, not retried here.
var ErrCommitFailed = errors.New("reward commit failed")

// BalanceStore applies voice credits to user balances.
type BalanceStore interface {
	// BulkCredit applies every entry of the ledger in one transaction.
	// All-or-nothing: on failure every balance is left at its pre-batch
	// value.
	BulkCredit(ctx context.Context, ledger Ledger) error

	// Credit applies a single credit to one user.
	Credit(ctx context.Context, userID string, amount float64) error
}

// PostgresBalanceStore implements BalanceStore on the users table.
type PostgresBalanceStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresBalanceStore creates a PostgresBalanceStore.
func NewPostgresBalanceStore(db *sql.DB, logger *slog.Logger) *PostgresBalanceStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresBalanceStore{
		db:     db,
		logger: logger,
	}
}

// BulkCredit applies the ledger inside a single transaction, one UPDATE per
// author. The store's transaction isolation is what prevents lost updates
// when two batches credit the same author concurrently; there is no
// application-level locking.
func (s *PostgresBalanceStore) BulkCredit(ctx context.Context, ledger Ledger) error {
	if len(ledger) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		s.logger.Error("failed to begin reward transaction",
			slog.String("error", err.Error()),
			slog.Int("authors", len(ledger)))
		return fmt.Errorf("%w: begin: %v", ErrCommitFailed, err)
	}

	// Always attempt rollback on function exit (no-op after successful commit)
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			s.logger.Warn("failed to rollback reward transaction",
				slog.String("error", err.Error()))
		}
	}()

	const creditQuery = `
		UPDATE users SET voice_balance = voice_balance + $1
		WHERE id = $2
	`
	for authorID, amount := range ledger {
		if _, err := tx.ExecContext(ctx, creditQuery, amount, authorID); err != nil {
			s.logger.Error("failed to credit author",
				slog.String("error", err.Error()),
				slog.String("author_id", authorID))
			return fmt.Errorf("%w: credit %s: %v", ErrCommitFailed, authorID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("failed to commit reward transaction",
			slog.String("error", err.Error()),
			slog.Int("authors", len(ledger)))
		return fmt.Errorf("%w: commit: %v", ErrCommitFailed, err)
	}

	s.logger.Info("reward batch committed",
		slog.Int("authors", len(ledger)),
		slog.Float64("total", ledger.Total()))
	return nil
}

// Credit applies a single voice credit to one user.
func (s *PostgresBalanceStore) Credit(ctx context.Context, userID string, amount float64) error {
	const query = `
		UPDATE users SET voice_balance = voice_balance + $1
		WHERE id = $2
	`
	if _, err := s.db.ExecContext(ctx, query, amount, userID); err != nil {
		return fmt.Errorf("%w: credit %s: %v", ErrCommitFailed, userID, err)
	}
	return nil
}

// InMemoryBalanceStore is an in-memory implementation of BalanceStore for
// testing. Thread-safe via Mutex. FailAfter simulates a mid-batch failure:
// when >= 0, BulkCredit fails after applying that many entries and rolls the
// batch back.
type InMemoryBalanceStore struct {
	mu        sync.Mutex
	balances  map[string]float64
	FailAfter int
}

// NewInMemoryBalanceStore creates a new in-memory balance store.
func NewInMemoryBalanceStore() *InMemoryBalanceStore {
	return &InMemoryBalanceStore{
		balances:  make(map[string]float64),
		FailAfter: -1,
	}
}

// SetBalance seeds a user's balance.
func (s *InMemoryBalanceStore) SetBalance(userID string, balance float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[userID] = balance
}

// Balance returns a user's current balance.
func (s *InMemoryBalanceStore) Balance(userID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[userID]
}

// BulkCredit applies the ledger atomically: on simulated failure, every
// balance is restored to its pre-batch value.
func (s *InMemoryBalanceStore) BulkCredit(ctx context.Context, ledger Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Snapshot for rollback
	snapshot := make(map[string]float64, len(s.balances))
	for k, v := range s.balances {
		snapshot[k] = v
	}

	applied := 0
	for authorID, amount := range ledger {
		if s.FailAfter >= 0 && applied >= s.FailAfter {
			s.balances = snapshot
			return fmt.Errorf("%w: simulated failure after %d credits", ErrCommitFailed, applied)
		}
		s.balances[authorID] += amount
		applied++
	}
	return nil
}

// Credit applies a single credit.
func (s *InMemoryBalanceStore) Credit(ctx context.Context, userID string, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[userID] += amount
	return nil
}
