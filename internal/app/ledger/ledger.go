// Package ledger is the sole owner of credit balance mutation and
// transaction status transitions. Every balance change is paired with a
// transaction record or a status update in the same logical operation.
//
// Idempotency model: every grant and refund is anchored on
// (provider, payment id, type). The store's uniqueness constraint turns
// a lost check-then-act race into domain.ErrDuplicateTransaction, which
// this package absorbs as the idempotent no-op path — a duplicate
// webhook delivery can never double-credit.
package ledger

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/louise36-g/mysticoracle/internal/domain"
	"github.com/louise36-g/mysticoracle/internal/infra/observability"
)

// Ledger mutates balances and transaction records through the store
// interfaces.
type Ledger struct {
	txs   domain.TransactionStore
	users domain.UserStore
}

// New creates a credit ledger over the given stores.
func New(txs domain.TransactionStore, users domain.UserStore) *Ledger {
	return &Ledger{txs: txs, users: users}
}

// ─── Grants ─────────────────────────────────────────────────────────────────

// Grant describes a credit grant to record.
type Grant struct {
	UserID        string
	Credits       int64
	Type          domain.TransactionType
	Provider      domain.Provider
	PaymentID     string
	PaymentAmount int64 // monetary amount in minor units
	Currency      string
	Description   string
}

// GrantResult reports the outcome of a balance-affecting operation.
type GrantResult struct {
	NewBalance    int64
	TransactionID string
	Duplicate     bool // the operation was already applied; nothing changed
}

// AddCredits creates a new COMPLETED transaction record and increments
// the balance. Used when no placeholder transaction exists for the
// event (webhook-first completion, achievements, adjustments).
//
// The insert happens before the increment: if a concurrent delivery
// wins the insert race, this call observes the duplicate and skips the
// increment entirely.
func (l *Ledger) AddCredits(g Grant) (*GrantResult, error) {
	tx := domain.Transaction{
		ID:            uuid.NewString(),
		UserID:        g.UserID,
		Type:          g.Type,
		Amount:        g.Credits,
		PaymentID:     g.PaymentID,
		Provider:      g.Provider,
		Status:        domain.StatusCompleted,
		PaymentAmount: g.PaymentAmount,
		Currency:      g.Currency,
		Description:   g.Description,
		CreatedAt:     time.Now().UTC(),
	}
	if err := l.txs.CreateTransaction(tx); err != nil {
		if err == domain.ErrDuplicateTransaction {
			log.Printf("[ledger] duplicate grant for %s/%s — skipping", g.Provider, g.PaymentID)
			balance, _ := l.users.Credits(g.UserID)
			return &GrantResult{NewBalance: balance, Duplicate: true}, nil
		}
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	balance, err := l.users.AddCredits(g.UserID, g.Credits)
	if err != nil {
		return nil, fmt.Errorf("add credits: %w", err)
	}
	observability.CreditsGranted.WithLabelValues(string(g.Provider)).Add(float64(g.Credits))
	return &GrantResult{NewBalance: balance, TransactionID: tx.ID}, nil
}

// AddCreditsToUser increments the balance without creating a
// transaction record. Callers on this path already hold a PENDING
// transaction and must persist its status transition in the same
// request.
func (l *Ledger) AddCreditsToUser(userID string, amount int64) (int64, error) {
	return l.users.AddCredits(userID, amount)
}

// UpdateTransactionStatus transitions an existing transaction's payment
// status. Transitioning to the same status is a no-op success.
func (l *Ledger) UpdateTransactionStatus(provider domain.Provider, paymentID string, status domain.PaymentStatus) (bool, error) {
	return l.txs.UpdateStatusByPaymentID(provider, paymentID, status)
}

// ApplyGrant applies a confirmed payment to the ledger exactly once,
// whatever the upstream history:
//
//   - a COMPLETED transaction already exists → idempotent no-op
//   - a PENDING placeholder exists → credit the balance and flip it
//     to COMPLETED
//   - no transaction exists → create a COMPLETED record and credit
//     the balance (webhook arrived before the checkout record)
//
// This is the single grant path both the capture flow and the webhook
// flow converge on.
func (l *Ledger) ApplyGrant(g Grant) (*GrantResult, error) {
	completed, err := l.txs.FindByPaymentIDAndStatus(g.Provider, g.PaymentID, domain.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("lookup completed transaction: %w", err)
	}
	if completed != nil {
		return &GrantResult{TransactionID: completed.ID, Duplicate: true}, nil
	}

	pending, err := l.txs.FindByPaymentIDAndStatus(g.Provider, g.PaymentID, domain.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("lookup pending transaction: %w", err)
	}
	if pending == nil {
		return l.AddCredits(g)
	}

	// Credit first, status flip last: a crash in between leaves the
	// balance correct and a PENDING row for manual reconciliation.
	balance, err := l.users.AddCredits(pending.UserID, g.Credits)
	if err != nil {
		return nil, fmt.Errorf("add credits: %w", err)
	}
	if _, err := l.txs.UpdateStatusByPaymentID(g.Provider, g.PaymentID, domain.StatusCompleted); err != nil {
		return nil, fmt.Errorf("update transaction status: %w", err)
	}
	observability.CreditsGranted.WithLabelValues(string(g.Provider)).Add(float64(g.Credits))
	return &GrantResult{NewBalance: balance, TransactionID: pending.ID}, nil
}

// ─── Refunds ────────────────────────────────────────────────────────────────

// ProcessRefund decrements the balance by amount and records a REFUND
// transaction referencing the original payment id. The balance may go
// negative — an accepted business decision, not an error.
//
// At most one REFUND exists per payment id; a duplicate delivery is
// absorbed as a no-op.
func (l *Ledger) ProcessRefund(userID string, amount int64, paymentID string, provider domain.Provider) (*GrantResult, error) {
	tx := domain.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        domain.TxRefund,
		Amount:      amount,
		PaymentID:   paymentID,
		Provider:    provider,
		Status:      domain.StatusCompleted,
		Description: "refund of purchase " + paymentID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := l.txs.CreateTransaction(tx); err != nil {
		if err == domain.ErrDuplicateTransaction {
			log.Printf("[ledger] duplicate refund for %s/%s — skipping", provider, paymentID)
			balance, _ := l.users.Credits(userID)
			return &GrantResult{NewBalance: balance, Duplicate: true}, nil
		}
		return nil, fmt.Errorf("create refund transaction: %w", err)
	}

	balance, err := l.users.AddCredits(userID, -amount)
	if err != nil {
		return nil, fmt.Errorf("reverse credits: %w", err)
	}
	observability.RefundsTotal.WithLabelValues(string(provider)).Inc()
	return &GrantResult{NewBalance: balance, TransactionID: tx.ID}, nil
}

// ─── Checkout Placeholder ───────────────────────────────────────────────────

// CreatePendingPurchase records the PENDING placeholder when a checkout
// session is created. The webhook or capture path completes it later.
func (l *Ledger) CreatePendingPurchase(g Grant) (string, error) {
	tx := domain.Transaction{
		ID:            uuid.NewString(),
		UserID:        g.UserID,
		Type:          domain.TxPurchase,
		Amount:        g.Credits,
		PaymentID:     g.PaymentID,
		Provider:      g.Provider,
		Status:        domain.StatusPending,
		PaymentAmount: g.PaymentAmount,
		Currency:      g.Currency,
		Description:   g.Description,
		CreatedAt:     time.Now().UTC(),
	}
	if err := l.txs.CreateTransaction(tx); err != nil {
		return "", err
	}
	return tx.ID, nil
}

// ─── Content-Generation Surface ─────────────────────────────────────────────
// The generation collaborator spends from the same balance the payment
// core grants to; both go through the store's atomic update primitive.

// CheckSufficientCredits reports whether the user can afford amount.
func (l *Ledger) CheckSufficientCredits(userID string, amount int64) (bool, error) {
	balance, err := l.users.Credits(userID)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

// DeductCredits spends credits and records the spend as an ADJUSTMENT
// transaction so no balance mutation goes untraced.
func (l *Ledger) DeductCredits(userID string, amount int64, description string) (int64, error) {
	balance, err := l.users.DeductCredits(userID, amount)
	if err != nil {
		return 0, err
	}
	tx := domain.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        domain.TxAdjustment,
		Amount:      -amount,
		Status:      domain.StatusCompleted,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := l.txs.CreateTransaction(tx); err != nil {
		return 0, fmt.Errorf("record deduction: %w", err)
	}
	return balance, nil
}

// GrantAchievement awards bonus credits outside any payment flow.
func (l *Ledger) GrantAchievement(userID string, credits int64, description string) (*GrantResult, error) {
	return l.AddCredits(Grant{
		UserID:      userID,
		Credits:     credits,
		Type:        domain.TxAchievement,
		Description: description,
	})
}

// Balance returns the user's current credit balance.
func (l *Ledger) Balance(userID string) (int64, error) {
	return l.users.Credits(userID)
}
