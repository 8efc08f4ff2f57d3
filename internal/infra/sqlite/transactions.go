// Transaction store operations.
// Implements domain.TransactionStore.
package sqlite

import (
	"database/sql"
	"time"

	"github.com/louise36-g/mysticoracle/internal/domain"
)

// ─── Transaction Operations ─────────────────────────────────────────────────

// CreateTransaction inserts a new transaction row.
// Returns domain.ErrDuplicateTransaction if a row with the same
// (provider, payment id, type) already exists.
func (db *DB) CreateTransaction(tx domain.Transaction) error {
	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := db.db.Exec(`
		INSERT INTO transactions (id, user_id, type, amount, payment_id, payment_provider, payment_status, payment_amount, currency, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tx.ID, tx.UserID, string(tx.Type), tx.Amount, tx.PaymentID, string(tx.Provider),
		string(tx.Status), tx.PaymentAmount, tx.Currency, tx.Description,
		createdAt.Format(time.RFC3339))
	return mapConstraintErr(err)
}

// FindByPaymentIDAndStatus returns the transaction matching the payment
// id and status, or (nil, nil) when none exists.
func (db *DB) FindByPaymentIDAndStatus(provider domain.Provider, paymentID string, status domain.PaymentStatus) (*domain.Transaction, error) {
	return db.findTransaction(`
		SELECT id, user_id, type, amount, payment_id, payment_provider, payment_status, payment_amount, currency, description, created_at
		FROM transactions
		WHERE payment_provider = ? AND payment_id = ? AND payment_status = ?
		ORDER BY created_at LIMIT 1
	`, string(provider), paymentID, string(status))
}

// FindByPaymentIDAndType returns the transaction matching the payment
// id and type, or (nil, nil) when none exists.
func (db *DB) FindByPaymentIDAndType(provider domain.Provider, paymentID string, txType domain.TransactionType) (*domain.Transaction, error) {
	return db.findTransaction(`
		SELECT id, user_id, type, amount, payment_id, payment_provider, payment_status, payment_amount, currency, description, created_at
		FROM transactions
		WHERE payment_provider = ? AND payment_id = ? AND type = ?
		ORDER BY created_at LIMIT 1
	`, string(provider), paymentID, string(txType))
}

// findTransaction runs a single-row transaction query.
// A miss is a soft result: (nil, nil).
func (db *DB) findTransaction(query string, args ...any) (*domain.Transaction, error) {
	var tx domain.Transaction
	var createdStr string
	err := db.db.QueryRow(query, args...).Scan(
		&tx.ID, &tx.UserID, &tx.Type, &tx.Amount, &tx.PaymentID,
		&tx.Provider, &tx.Status, &tx.PaymentAmount, &tx.Currency,
		&tx.Description, &createdStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	tx.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	return &tx, nil
}

// UpdateStatusByPaymentID transitions the PURCHASE transaction for a
// payment id to the given status. Updating to the current status is a
// no-op success; a COMPLETED or FAILED row never regresses.
// Returns false when no matching transaction exists.
func (db *DB) UpdateStatusByPaymentID(provider domain.Provider, paymentID string, status domain.PaymentStatus) (bool, error) {
	// The WHERE clause encodes domain.CanTransition: the row must be
	// PENDING or already in the target status.
	res, err := db.db.Exec(`
		UPDATE transactions SET payment_status = ?
		WHERE payment_provider = ? AND payment_id = ? AND type = 'PURCHASE'
		  AND payment_status IN (?, 'PENDING')
	`, string(status), string(provider), paymentID, string(status))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	// Nothing matched: either the row is missing (false) or the
	// transition would regress a terminal status (error).
	existing, err := db.findTransaction(`
		SELECT id, user_id, type, amount, payment_id, payment_provider, payment_status, payment_amount, currency, description, created_at
		FROM transactions
		WHERE payment_provider = ? AND payment_id = ? AND type = 'PURCHASE'
		LIMIT 1
	`, string(provider), paymentID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	return false, domain.ErrStatusRegression
}

// ─── Reporting Queries ──────────────────────────────────────────────────────
// Used by analytics collaborators and the report command, not by the
// payment control flow.

// SumCompletedPurchases returns total credits sold and total revenue
// (minor units) across all completed purchases.
func (db *DB) SumCompletedPurchases() (credits int64, revenue int64, err error) {
	err = db.db.QueryRow(`
		SELECT COALESCE(SUM(amount), 0), COALESCE(SUM(payment_amount), 0)
		FROM transactions
		WHERE type = 'PURCHASE' AND payment_status = 'COMPLETED'
	`).Scan(&credits, &revenue)
	return
}

// RevenueByProvider returns completed-purchase revenue grouped by
// payment provider.
func (db *DB) RevenueByProvider() (map[domain.Provider]int64, error) {
	rows, err := db.db.Query(`
		SELECT payment_provider, COALESCE(SUM(payment_amount), 0)
		FROM transactions
		WHERE type = 'PURCHASE' AND payment_status = 'COMPLETED'
		GROUP BY payment_provider
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[domain.Provider]int64)
	for rows.Next() {
		var provider string
		var revenue int64
		if err := rows.Scan(&provider, &revenue); err != nil {
			return nil, err
		}
		result[domain.Provider(provider)] = revenue
	}
	return result, rows.Err()
}

// ListUserTransactions returns a user's transactions, newest first.
func (db *DB) ListUserTransactions(userID string, limit int) ([]domain.Transaction, error) {
	rows, err := db.db.Query(`
		SELECT id, user_id, type, amount, payment_id, payment_provider, payment_status, payment_amount, currency, description, created_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var createdStr string
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Type, &tx.Amount, &tx.PaymentID,
			&tx.Provider, &tx.Status, &tx.PaymentAmount, &tx.Currency,
			&tx.Description, &createdStr); err != nil {
			return nil, err
		}
		tx.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
		result = append(result, tx)
	}
	return result, rows.Err()
}
