// Package sqlite provides persistent storage for the payment core:
// the transaction ledger and user credit balances.
//
// SQLite is the single source of truth. The schema carries the
// uniqueness constraint on (payment_provider, payment_id, type) that
// the idempotency design relies on — a lost check-then-act race
// surfaces as domain.ErrDuplicateTransaction, never a double-credit.
package sqlite

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/louise36-g/mysticoracle/internal/domain"
)

// DB wraps the SQLite database handle.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database under the given directory and
// applies all migrations.
func Open(dir string) (*DB, error) {
	path := filepath.Join(dir, "mystic.db")

	// WAL for concurrent webhook deliveries; busy_timeout so a held
	// write lock blocks instead of failing.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db := &DB{db: sqldb}
	if err := db.migrate(); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the underlying database handle.
func (db *DB) Close() error {
	return db.db.Close()
}

// Migrations returns the schema migration statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		// User credit balances
		`CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			credits    INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		// Credit-affecting transactions
		`CREATE TABLE IF NOT EXISTS transactions (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL,
			type             TEXT NOT NULL,
			amount           INTEGER NOT NULL,
			payment_id       TEXT NOT NULL DEFAULT '',
			payment_provider TEXT NOT NULL DEFAULT '',
			payment_status   TEXT NOT NULL DEFAULT 'PENDING',
			payment_amount   INTEGER NOT NULL DEFAULT 0,
			currency         TEXT NOT NULL DEFAULT '',
			description      TEXT NOT NULL DEFAULT '',
			created_at       TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_user ON transactions(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_payment ON transactions(payment_provider, payment_id)`,

		// Idempotency anchor: at most one PURCHASE and one REFUND row
		// per (provider, payment id). Achievement/adjustment rows have
		// no payment id and are exempt.
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_tx_payment_type
			ON transactions(payment_provider, payment_id, type)
			WHERE payment_id != '' AND type IN ('PURCHASE', 'REFUND')`,
	}
}

// migrate applies all schema migrations.
func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// mapConstraintErr converts a SQLite unique-constraint violation into
// the domain sentinel so use cases can treat a lost insert race as the
// idempotent no-op path.
func mapConstraintErr(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return domain.ErrDuplicateTransaction
	}
	return err
}
