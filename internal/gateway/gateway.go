// Package gateway abstracts external payment providers behind a
// capability-gated interface. One implementation per provider; the
// registry resolves a provider name to its gateway and optional
// capabilities are discovered by interface assertion, never by
// type-switching on concrete adapters.
package gateway

import (
	"context"
	"sort"
	"sync"

	"github.com/louise36-g/mysticoracle/internal/domain"
)

// ─── Gateway Interface ──────────────────────────────────────────────────────

// Gateway is the contract every payment provider adapter implements.
type Gateway interface {
	// Name returns the provider this gateway fronts.
	Name() domain.Provider

	// Configured reports whether required credentials are present.
	// Callers must check this before any other operation.
	Configured() bool

	// CreateCheckoutSession starts a provider-hosted payment session.
	// The session's PaymentID seeds the PENDING placeholder transaction.
	CreateCheckoutSession(ctx context.Context, in domain.CheckoutInput) (*domain.CheckoutSession, error)

	// VerifyWebhook validates an inbound notification payload.
	// An invalid signature is a normal negative result, not an
	// exceptional one: it returns (nil, nil). A non-nil error means the
	// verification itself could not run.
	VerifyWebhook(payload []byte, signature string, headers map[string]string) (*domain.WebhookEvent, error)
}

// CaptureGateway is implemented by order-based providers that authorize
// first and transfer funds on an explicit capture call.
type CaptureGateway interface {
	Gateway
	CapturePayment(ctx context.Context, orderID, userID string) (*domain.CaptureResult, error)
}

// RefundGateway is implemented by providers that let us initiate
// refunds through their API. The payment core only consumes the
// resulting webhook; this exists for operator tooling.
type RefundGateway interface {
	Gateway
	RefundPayment(ctx context.Context, paymentID string, amount int64) error
}

// ─── Registry ───────────────────────────────────────────────────────────────

// Registry maps provider identifiers to gateway implementations.
type Registry struct {
	mu       sync.RWMutex
	gateways map[domain.Provider]Gateway
}

// NewRegistry creates an empty gateway registry.
func NewRegistry() *Registry {
	return &Registry{gateways: make(map[domain.Provider]Gateway)}
}

// Register adds a gateway. Later registrations for the same provider
// replace earlier ones.
func (r *Registry) Register(g Gateway) {
	r.mu.Lock()
	r.gateways[g.Name()] = g
	r.mu.Unlock()
}

// Resolve returns the gateway for a provider name.
// Returns domain.ErrUnknownProvider when no gateway is registered.
func (r *Registry) Resolve(name string) (Gateway, error) {
	provider, err := domain.ParseProvider(name)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	g, ok := r.gateways[provider]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrUnknownProvider
	}
	return g, nil
}

// Providers returns the registered provider names, sorted.
func (r *Registry) Providers() []domain.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Provider, 0, len(r.gateways))
	for p := range r.gateways {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
