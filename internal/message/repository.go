// Package message tracks which user authored which stored message, and the
// per-user voice balance the reward engine credits.
package message

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
)

// Common errors for message operations.
var (
	ErrUserNotFound = errors.New("user not found")
)

// Repository defines ownership and dashboard lookups for messages.
type Repository interface {
	// Create records that userID authored the message with messageID.
	Create(ctx context.Context, userID, messageID string) error

	// AuthorsFor resolves message IDs to author IDs. Messages without an
	// ownership record are simply absent from the result.
	AuthorsFor(ctx context.Context, messageIDs []string) (map[string]string, error)

	// UserDashboard returns a user's voice balance and the IDs of the
	// messages they authored.
	UserDashboard(ctx context.Context, userID string) (balance float64, messageIDs []string, err error)
}

// PostgresRepository implements Repository on the users and messages tables.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{
		db:     db,
		logger: logger,
	}
}

// Create records message ownership.
func (r *PostgresRepository) Create(ctx context.Context, userID, messageID string) error {
	const query = `
		INSERT INTO messages (id, user_id, created_at)
		VALUES ($1, $2, NOW())
	`
	if _, err := r.db.ExecContext(ctx, query, messageID, userID); err != nil {
		return fmt.Errorf("failed to create message record: %w", err)
	}
	return nil
}

// AuthorsFor resolves message IDs to author IDs in one query.
func (r *PostgresRepository) AuthorsFor(ctx context.Context, messageIDs []string) (map[string]string, error) {
	if len(messageIDs) == 0 {
		return map[string]string{}, nil
	}

	const query = `
		SELECT id, user_id FROM messages
		WHERE id = ANY($1)
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(messageIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve message authors: %w", err)
	}
	defer rows.Close()

	authors := make(map[string]string, len(messageIDs))
	for rows.Next() {
		var messageID, userID string
		if err := rows.Scan(&messageID, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan message author: %w", err)
		}
		authors[messageID] = userID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message authors: %w", err)
	}
	return authors, nil
}

// UserDashboard returns the user's voice balance and authored message IDs.
func (r *PostgresRepository) UserDashboard(ctx context.Context, userID string) (float64, []string, error) {
	const balanceQuery = `SELECT voice_balance FROM users WHERE id = $1`
	var balance float64
	if err := r.db.QueryRowContext(ctx, balanceQuery, userID).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return 0, nil, fmt.Errorf("failed to read voice balance: %w", err)
	}

	const messagesQuery = `
		SELECT id FROM messages
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, messagesQuery, userID)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to list user messages: %w", err)
	}
	defer rows.Close()

	var messageIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, nil, fmt.Errorf("failed to scan message id: %w", err)
		}
		messageIDs = append(messageIDs, id)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("failed to iterate user messages: %w", err)
	}
	return balance, messageIDs, nil
}
