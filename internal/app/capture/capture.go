// Package capture drives the two-phase payment flow for providers that
// authorize before capturing. Credits are never granted before the
// gateway confirms funds; the status flip happens last so a crash in
// between leaves the balance correct and the record reconcilable.
package capture

import (
	"context"
	"log"

	"github.com/louise36-g/mysticoracle/internal/app/ledger"
	"github.com/louise36-g/mysticoracle/internal/domain"
	"github.com/louise36-g/mysticoracle/internal/gateway"
	"github.com/louise36-g/mysticoracle/internal/infra/observability"
)

// Ledger is the slice of the credit ledger this use case needs.
type Ledger interface {
	ApplyGrant(g ledger.Grant) (*ledger.GrantResult, error)
}

// UseCase executes client-triggered capture calls.
type UseCase struct {
	gateways *gateway.Registry
	txs      domain.TransactionStore
	ledger   Ledger
}

// New creates the capture use case.
func New(gateways *gateway.Registry, txs domain.TransactionStore, l Ledger) *UseCase {
	return &UseCase{gateways: gateways, txs: txs, ledger: l}
}

// Input identifies the order to capture.
type Input struct {
	UserID   string
	OrderID  string
	Provider string
}

// Result is the capture outcome surfaced to the transport layer.
type Result struct {
	Success    bool             `json:"success"`
	Credits    int64            `json:"credits,omitempty"`
	CaptureID  string           `json:"capture_id,omitempty"`
	NewBalance int64            `json:"new_balance,omitempty"`
	Err        string           `json:"error,omitempty"`
	Code       domain.ErrorCode `json:"error_code,omitempty"`
}

func failure(code domain.ErrorCode, msg string) *Result {
	return &Result{Err: msg, Code: code}
}

// Capture runs the two-phase completion: confirm funds with the
// gateway, then apply the grant to the ledger exactly once.
func (u *UseCase) Capture(ctx context.Context, in Input) *Result {
	// Resolve the gateway and require configuration before any other
	// gateway operation.
	gw, err := u.gateways.Resolve(in.Provider)
	if err != nil || !gw.Configured() {
		observability.CapturesTotal.WithLabelValues(in.Provider, "not_configured").Inc()
		return failure(domain.CodeProviderNotConfigured, "payment provider is not configured")
	}

	// Capability gate: calling capture against a one-phase provider is
	// a caller mistake, not a capture failure at the provider.
	cg, ok := gw.(gateway.CaptureGateway)
	if !ok {
		observability.CapturesTotal.WithLabelValues(in.Provider, "no_capability").Inc()
		return failure(domain.CodeCaptureFailed, "this payment provider does not require capture")
	}

	captured, err := cg.CapturePayment(ctx, in.OrderID, in.UserID)
	if err != nil {
		// Transport-level failure: surface the literal message for triage.
		observability.CapturesTotal.WithLabelValues(in.Provider, "error").Inc()
		msg := err.Error()
		if msg == "" {
			msg = "Failed to capture payment"
		}
		return failure(domain.CodeInternalError, msg)
	}
	if !captured.Success {
		observability.CapturesTotal.WithLabelValues(in.Provider, "declined").Inc()
		msg := captured.Err
		if msg == "" {
			msg = "Payment capture failed"
		}
		return failure(domain.CodeCaptureFailed, msg)
	}

	provider := gw.Name()

	// Idempotency check: a retried capture for an already-completed
	// order returns success without touching the ledger again.
	completed, err := u.txs.FindByPaymentIDAndStatus(provider, in.OrderID, domain.StatusCompleted)
	if err != nil {
		return failure(domain.CodeInternalError, err.Error())
	}
	if completed != nil {
		log.Printf("[capture] order %s already completed — no-op", in.OrderID)
		observability.CapturesTotal.WithLabelValues(in.Provider, "duplicate").Inc()
		return &Result{Success: true, Credits: captured.Credits, CaptureID: captured.CaptureID}
	}

	// The checkout step must have recorded a placeholder. Its absence
	// after a confirmed capture is a support escalation, never a
	// silent retry.
	pending, err := u.txs.FindByPaymentIDAndStatus(provider, in.OrderID, domain.StatusPending)
	if err != nil {
		return failure(domain.CodeInternalError, err.Error())
	}
	if pending == nil {
		observability.CapturesTotal.WithLabelValues(in.Provider, "no_pending").Inc()
		return failure(domain.CodeInternalError, "No pending transaction found - please contact support")
	}

	credits := captured.Credits
	if credits == 0 {
		credits = pending.Amount
	}

	grant, err := u.ledger.ApplyGrant(ledger.Grant{
		UserID:    pending.UserID,
		Credits:   credits,
		Type:      domain.TxPurchase,
		Provider:  provider,
		PaymentID: in.OrderID,
	})
	if err != nil {
		// Gateway already confirmed funds; this must never be
		// swallowed silently.
		log.Printf("[capture] ledger grant failed for order %s: %v", in.OrderID, err)
		observability.CapturesTotal.WithLabelValues(in.Provider, "ledger_error").Inc()
		return failure(domain.CodeInternalError, "Failed to add credits")
	}

	observability.CapturesTotal.WithLabelValues(in.Provider, "success").Inc()
	return &Result{
		Success:    true,
		Credits:    credits,
		CaptureID:  captured.CaptureID,
		NewBalance: grant.NewBalance,
	}
}
