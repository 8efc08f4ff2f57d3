// User credit balance operations.
// Implements domain.UserStore.
//
// Every balance mutation is a single atomic UPDATE with RETURNING —
// the payment core and the content-generation collaborator interleave
// on the same credits column, so read-modify-write in Go is not safe.
package sqlite

import (
	"database/sql"

	"github.com/louise36-g/mysticoracle/internal/domain"
)

// ─── User Operations ────────────────────────────────────────────────────────

// CreateUser inserts a user row with a zero balance.
// Creating an existing user is a no-op.
func (db *DB) CreateUser(userID string) error {
	_, err := db.db.Exec(`
		INSERT OR IGNORE INTO users (id, credits) VALUES (?, 0)
	`, userID)
	return err
}

// Credits returns a user's current balance.
func (db *DB) Credits(userID string) (int64, error) {
	var credits int64
	err := db.db.QueryRow(`SELECT credits FROM users WHERE id = ?`, userID).Scan(&credits)
	if err == sql.ErrNoRows {
		return 0, domain.ErrUserNotFound
	}
	return credits, err
}

// AddCredits atomically adjusts a user's balance by delta and returns
// the new balance. Delta may be negative (refunds); the balance going
// negative is accepted.
func (db *DB) AddCredits(userID string, delta int64) (int64, error) {
	var balance int64
	err := db.db.QueryRow(`
		UPDATE users SET credits = credits + ? WHERE id = ? RETURNING credits
	`, delta, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, domain.ErrUserNotFound
	}
	return balance, err
}

// DeductCredits atomically decrements the balance only when it covers
// the amount. Returns domain.ErrInsufficientCredits otherwise.
func (db *DB) DeductCredits(userID string, amount int64) (int64, error) {
	var balance int64
	err := db.db.QueryRow(`
		UPDATE users SET credits = credits - ?
		WHERE id = ? AND credits >= ?
		RETURNING credits
	`, amount, userID, amount).Scan(&balance)
	if err == sql.ErrNoRows {
		// Distinguish a missing user from an insufficient balance.
		if _, cerr := db.Credits(userID); cerr != nil {
			return 0, cerr
		}
		return 0, domain.ErrInsufficientCredits
	}
	return balance, err
}
