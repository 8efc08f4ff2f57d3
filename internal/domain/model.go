// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ─── Providers ──────────────────────────────────────────────────────────────

// Provider identifies which payment gateway produced a transaction.
type Provider string

const (
	ProviderStripe Provider = "stripe"
	ProviderPayPal Provider = "paypal"
)

// ParseProvider validates a provider name from untrusted input
// (URL path segments, webhook routing).
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderStripe, ProviderPayPal:
		return Provider(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
}

// ─── Transaction Types ──────────────────────────────────────────────────────

// TransactionType represents the business reason for a credit operation.
type TransactionType string

const (
	TxPurchase    TransactionType = "PURCHASE"
	TxRefund      TransactionType = "REFUND"
	TxAchievement TransactionType = "ACHIEVEMENT"
	TxAdjustment  TransactionType = "ADJUSTMENT"
)

// PaymentStatus drives the transaction state machine.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "PENDING"
	StatusCompleted PaymentStatus = "COMPLETED"
	StatusFailed    PaymentStatus = "FAILED"
)

// CanTransition reports whether a payment status change is allowed.
// Transitioning to the same status is a valid no-op; a status never
// regresses out of COMPLETED or FAILED.
func CanTransition(from, to PaymentStatus) bool {
	if from == to {
		return true
	}
	return from == StatusPending && (to == StatusCompleted || to == StatusFailed)
}

// ─── Transaction ────────────────────────────────────────────────────────────

// Transaction is a single credit-affecting event in the ledger.
// Exactly one COMPLETED PURCHASE may exist per (Provider, PaymentID) —
// that pair is the idempotency anchor for webhook redelivery.
type Transaction struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Type          TransactionType `json:"type"`
	Amount        int64           `json:"amount"` // credits; magnitude for refunds
	PaymentID     string          `json:"payment_id"`
	Provider      Provider        `json:"payment_provider"`
	Status        PaymentStatus   `json:"payment_status"`
	PaymentAmount int64           `json:"payment_amount"` // monetary amount in minor units
	Currency      string          `json:"currency"`
	Description   string          `json:"description,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ─── Webhook Events ─────────────────────────────────────────────────────────

// WebhookEventType classifies an asynchronous provider notification.
type WebhookEventType string

const (
	EventPaymentCompleted WebhookEventType = "payment.completed"
	EventPaymentFailed    WebhookEventType = "payment.failed"
	EventPaymentRefunded  WebhookEventType = "payment.refunded"
	EventSessionExpired   WebhookEventType = "session.expired"
)

// WebhookEvent is a verified, provider-neutral payment notification.
// Gateways translate their wire format into this before the webhook
// use case ever sees it.
type WebhookEvent struct {
	Type      WebhookEventType `json:"type"`
	EventID   string           `json:"event_id"` // provider's notification id
	PaymentID string           `json:"payment_id"`
	UserID    string           `json:"user_id"`
	Amount    int64            `json:"amount"`  // monetary amount reported by the provider
	Credits   int64            `json:"credits"` // credit count reported by the provider
	Currency  string           `json:"currency"`
	Raw       json.RawMessage  `json:"-"` // original payload, kept for the event archive
}

// ─── Capture ────────────────────────────────────────────────────────────────

// CaptureResult is the gateway's answer to a capture call on an
// authorize-then-capture provider.
type CaptureResult struct {
	Success   bool
	Credits   int64
	CaptureID string
	Err       string // provider-reported failure reason, if any
}

// ─── Checkout ───────────────────────────────────────────────────────────────

// CheckoutInput describes a credit pack purchase to start.
type CheckoutInput struct {
	UserID     string
	Credits    int64
	Amount     int64 // monetary amount in minor units
	Currency   string
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is a provider-hosted payment session. Its PaymentID
// seeds the PENDING placeholder transaction.
type CheckoutSession struct {
	PaymentID string `json:"payment_id"`
	URL       string `json:"url"`
}
