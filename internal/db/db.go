// Package db provides database utilities and schema documentation for the
// resonance engine.
package db

// The engine expects two tables. Schema management is handled outside this
// service; these queries let tooling and tests verify the tables exist.
const (
	// UsersTableQuery checks for the users table holding voice balances.
	UsersTableQuery = `SELECT column_name FROM information_schema.columns
		WHERE table_name = 'users' AND column_name IN ('id', 'voice_balance')`

	// MessagesTableQuery checks for the messages ownership table.
	MessagesTableQuery = `SELECT column_name FROM information_schema.columns
		WHERE table_name = 'messages' AND column_name IN ('id', 'user_id', 'created_at')`
)
