package message

import (
	"context"
	"fmt"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository for
// testing. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu       sync.RWMutex
	owners   map[string]string   // messageID -> userID
	messages map[string][]string // userID -> messageIDs, insertion order
	balances map[string]float64  // userID -> voice balance
}

// NewInMemoryRepository creates a new in-memory message repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		owners:   make(map[string]string),
		messages: make(map[string][]string),
		balances: make(map[string]float64),
	}
}

// AddUser seeds a user with a voice balance.
func (r *InMemoryRepository) AddUser(userID string, balance float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[userID] = balance
}

// Create records message ownership.
func (r *InMemoryRepository) Create(ctx context.Context, userID, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.owners[messageID]; exists {
		return fmt.Errorf("message %s already recorded", messageID)
	}
	r.owners[messageID] = userID
	r.messages[userID] = append(r.messages[userID], messageID)
	return nil
}

// AuthorsFor resolves message IDs to author IDs; unknown IDs are omitted.
func (r *InMemoryRepository) AuthorsFor(ctx context.Context, messageIDs []string) (map[string]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	authors := make(map[string]string, len(messageIDs))
	for _, id := range messageIDs {
		if userID, ok := r.owners[id]; ok {
			authors[id] = userID
		}
	}
	return authors, nil
}

// UserDashboard returns the user's balance and authored message IDs.
func (r *InMemoryRepository) UserDashboard(ctx context.Context, userID string) (float64, []string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	balance, ok := r.balances[userID]
	if !ok {
		return 0, nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	ids := make([]string, len(r.messages[userID]))
	copy(ids, r.messages[userID])
	return balance, ids, nil
}
