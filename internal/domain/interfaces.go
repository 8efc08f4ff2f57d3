package domain

// ─── Store Interfaces ───────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// TransactionStore abstracts persistent transaction records.
// Implementations must enforce a uniqueness constraint on
// (provider, payment_id, type) for PURCHASE and REFUND rows so a lost
// check-then-act race degrades to ErrDuplicateTransaction instead of a
// silent double-credit.
type TransactionStore interface {
	CreateTransaction(tx Transaction) error
	FindByPaymentIDAndStatus(provider Provider, paymentID string, status PaymentStatus) (*Transaction, error)
	FindByPaymentIDAndType(provider Provider, paymentID string, txType TransactionType) (*Transaction, error)

	// UpdateStatusByPaymentID transitions a transaction's payment status.
	// Returns false when no transaction matches; same-status updates are
	// no-op successes.
	UpdateStatusByPaymentID(provider Provider, paymentID string, status PaymentStatus) (bool, error)

	// Reporting queries, used by analytics collaborators.
	SumCompletedPurchases() (credits int64, revenue int64, err error)
	RevenueByProvider() (map[Provider]int64, error)
}

// UserStore abstracts the user credit balance.
// Balance mutation must be atomic at the storage layer: the
// content-generation collaborator deducts from the same field the
// payment core grants to.
type UserStore interface {
	CreateUser(userID string) error
	Credits(userID string) (int64, error)

	// AddCredits atomically increments the balance. Delta may be
	// negative for refunds; the balance going negative is an accepted
	// business decision, not an error.
	AddCredits(userID string, delta int64) (newBalance int64, err error)

	// DeductCredits atomically decrements only if the balance covers
	// the amount; returns ErrInsufficientCredits otherwise.
	DeductCredits(userID string, amount int64) (newBalance int64, err error)
}
