// Package webhook verifies and dispatches asynchronous provider
// notifications into ledger mutations.
//
// Delivery is at-least-once and may arrive concurrently. Every
// mutating path is anchored on (provider, payment id): a lookup
// answers the common duplicate, and the store's uniqueness constraint
// catches the race the lookup can lose. Idempotent no-ops report
// success so redeliveries never generate alerting noise.
package webhook

import (
	"context"
	"errors"
	"log"

	"github.com/louise36-g/mysticoracle/internal/app/ledger"
	"github.com/louise36-g/mysticoracle/internal/domain"
	"github.com/louise36-g/mysticoracle/internal/gateway"
	"github.com/louise36-g/mysticoracle/internal/infra/eventlog"
	"github.com/louise36-g/mysticoracle/internal/infra/observability"
)

// Ledger is the slice of the credit ledger this use case needs.
type Ledger interface {
	ApplyGrant(g ledger.Grant) (*ledger.GrantResult, error)
	UpdateTransactionStatus(provider domain.Provider, paymentID string, status domain.PaymentStatus) (bool, error)
	ProcessRefund(userID string, amount int64, paymentID string, provider domain.Provider) (*ledger.GrantResult, error)
}

// UseCase processes inbound provider notifications.
type UseCase struct {
	gateways *gateway.Registry
	txs      domain.TransactionStore
	ledger   Ledger
	archive  *eventlog.Log // optional raw-delivery archive
}

// New creates the webhook use case. The archive may be nil.
func New(gateways *gateway.Registry, txs domain.TransactionStore, l Ledger, archive *eventlog.Log) *UseCase {
	return &UseCase{gateways: gateways, txs: txs, ledger: l, archive: archive}
}

// Input is one raw webhook delivery.
type Input struct {
	Provider  string
	Payload   []byte
	Signature string
	Headers   map[string]string
}

// Result reports the processing outcome to the transport layer.
// Code classifies failures so the transport can pick a status without
// matching error strings.
type Result struct {
	Success   bool                    `json:"success"`
	Processed bool                    `json:"processed"`
	EventType domain.WebhookEventType `json:"event_type,omitempty"`
	Err       string                  `json:"error,omitempty"`
	Code      domain.ErrorCode        `json:"error_code,omitempty"`
}

// Process verifies the delivery and applies the resulting ledger
// mutation exactly once.
func (u *UseCase) Process(ctx context.Context, in Input) *Result {
	gw, err := u.gateways.Resolve(in.Provider)
	if err != nil {
		return &Result{Err: "Unknown payment provider", Code: domain.CodeUnknownProvider}
	}
	if !gw.Configured() {
		return &Result{Err: "payment provider is not configured", Code: domain.CodeProviderNotConfigured}
	}

	event, err := gw.VerifyWebhook(in.Payload, in.Signature, in.Headers)
	if err != nil {
		// Verification itself failed to run; surface the literal
		// message for triage.
		return &Result{Err: err.Error(), Code: domain.CodeInternalError}
	}
	if event == nil {
		// Security boundary rejection: by construction no store read
		// or write has happened yet.
		log.Printf("[webhook] %s delivery rejected: invalid signature", in.Provider)
		observability.WebhooksRejected.WithLabelValues(in.Provider).Inc()
		u.record(eventlog.Entry{
			Provider:  in.Provider,
			EventID:   in.Headers["Webhook-Delivery-Id"],
			EventType: "unknown",
			Payload:   in.Payload,
		})
		return &Result{Err: "Invalid webhook signature", Code: domain.CodeInvalidSignature}
	}

	observability.WebhooksReceived.WithLabelValues(in.Provider, string(event.Type)).Inc()
	u.record(eventlog.Entry{
		Provider:       in.Provider,
		EventID:        event.EventID,
		EventType:      string(event.Type),
		SignatureValid: true,
		Payload:        event.Raw,
	})

	result := u.dispatch(gw.Name(), event)
	result.EventType = event.Type
	if u.archive != nil && event.EventID != "" {
		u.archive.MarkProcessed(in.Provider, event.EventID, result.Err)
	}
	return result
}

// dispatch routes a verified event to its ledger mutation.
func (u *UseCase) dispatch(provider domain.Provider, event *domain.WebhookEvent) *Result {
	switch event.Type {
	case domain.EventPaymentCompleted:
		return u.handleCompleted(provider, event)
	case domain.EventPaymentFailed, domain.EventSessionExpired:
		return u.handleFailed(provider, event)
	case domain.EventPaymentRefunded:
		return u.handleRefunded(provider, event)
	}
	// Gateways only emit the four known types; anything else is a
	// gateway bug worth seeing in logs.
	log.Printf("[webhook] %s emitted unhandled event type %q", provider, event.Type)
	return &Result{Success: true, Processed: false}
}

// handleCompleted applies a successful payment exactly once.
func (u *UseCase) handleCompleted(provider domain.Provider, event *domain.WebhookEvent) *Result {
	completed, err := u.txs.FindByPaymentIDAndStatus(provider, event.PaymentID, domain.StatusCompleted)
	if err != nil {
		return &Result{Err: err.Error()}
	}
	if completed != nil {
		// Duplicate delivery — already handled.
		observability.WebhookDuplicates.WithLabelValues(string(provider)).Inc()
		return &Result{Success: true, Processed: true}
	}

	pending, err := u.txs.FindByPaymentIDAndStatus(provider, event.PaymentID, domain.StatusPending)
	if err != nil {
		return &Result{Err: err.Error()}
	}
	if pending == nil {
		// No matching session. The checkout may have been abandoned
		// through another path — logged, not escalated.
		log.Printf("[webhook] %s payment.completed for %s with no matching transaction", provider, event.PaymentID)
		return &Result{Success: true, Processed: true}
	}

	grant, err := u.ledger.ApplyGrant(ledger.Grant{
		UserID:        pending.UserID,
		Credits:       event.Credits,
		Type:          domain.TxPurchase,
		Provider:      provider,
		PaymentID:     event.PaymentID,
		PaymentAmount: event.Amount,
		Currency:      event.Currency,
	})
	if err != nil {
		return &Result{Err: err.Error()}
	}
	if grant.Duplicate {
		observability.WebhookDuplicates.WithLabelValues(string(provider)).Inc()
	}
	return &Result{Success: true, Processed: true}
}

// handleFailed marks the transaction FAILED; a no-op if it is missing
// or already terminal.
func (u *UseCase) handleFailed(provider domain.Provider, event *domain.WebhookEvent) *Result {
	if _, err := u.ledger.UpdateTransactionStatus(provider, event.PaymentID, domain.StatusFailed); err != nil {
		if errors.Is(err, domain.ErrStatusRegression) {
			// Late failure notice for a payment that already completed.
			// The no-regression invariant blocked the mutation; that is
			// the expected outcome, so acknowledge the delivery.
			log.Printf("[webhook] %s %s for completed payment %s — ignored", provider, event.Type, event.PaymentID)
			observability.WebhookDuplicates.WithLabelValues(string(provider)).Inc()
			return &Result{Success: true, Processed: true}
		}
		return &Result{Err: err.Error()}
	}
	return &Result{Success: true, Processed: true}
}

// handleRefunded reverses the originally granted credits exactly once.
func (u *UseCase) handleRefunded(provider domain.Provider, event *domain.WebhookEvent) *Result {
	refund, err := u.txs.FindByPaymentIDAndType(provider, event.PaymentID, domain.TxRefund)
	if err != nil {
		return &Result{Err: err.Error()}
	}
	if refund != nil {
		// Duplicate refund delivery — already reversed.
		observability.WebhookDuplicates.WithLabelValues(string(provider)).Inc()
		return &Result{Success: true, Processed: true}
	}

	original, err := u.txs.FindByPaymentIDAndStatus(provider, event.PaymentID, domain.StatusCompleted)
	if err != nil {
		return &Result{Err: err.Error()}
	}
	if original == nil {
		// Cannot refund what was never completed.
		log.Printf("[webhook] %s refund for %s with no completed purchase", provider, event.PaymentID)
		return &Result{Success: true, Processed: true}
	}

	// Always reverse the originally recorded credit amount, not the
	// amount the provider reports — partial monetary refunds still
	// revoke the full grant.
	if _, err := u.ledger.ProcessRefund(original.UserID, original.Amount, event.PaymentID, provider); err != nil {
		return &Result{Err: err.Error()}
	}
	return &Result{Success: true, Processed: true}
}

// record archives a delivery when the archive is enabled.
func (u *UseCase) record(e eventlog.Entry) {
	if u.archive == nil || e.EventID == "" {
		return
	}
	if _, err := u.archive.Record(e); err != nil {
		log.Printf("[webhook] archive write failed: %v", err)
	}
}
