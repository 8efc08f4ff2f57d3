package gateway

import (
	"errors"
	"testing"

	"github.com/louise36-g/mysticoracle/internal/domain"
)

func newTestRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewStripe(StripeConfig{SecretKey: "sk_test", WebhookSecret: "whsec_test"}))
	r.Register(NewPayPal(PayPalConfig{ClientID: "client", Secret: "secret", WebhookSecret: "whsec_test"}))
	return r
}

func TestRegistryResolve(t *testing.T) {
	r := newTestRegistry()

	gw, err := r.Resolve("stripe")
	if err != nil {
		t.Fatalf("Resolve(stripe) error: %v", err)
	}
	if gw.Name() != domain.ProviderStripe {
		t.Errorf("Name() = %q, want stripe", gw.Name())
	}

	if _, err := r.Resolve("bitcoin"); !errors.Is(err, domain.ErrUnknownProvider) {
		t.Errorf("Resolve(bitcoin) error = %v, want ErrUnknownProvider", err)
	}
}

func TestRegistryResolve_Unregistered(t *testing.T) {
	r := NewRegistry()
	r.Register(NewStripe(StripeConfig{}))

	// paypal parses but is not registered.
	if _, err := r.Resolve("paypal"); !errors.Is(err, domain.ErrUnknownProvider) {
		t.Errorf("Resolve(paypal) error = %v, want ErrUnknownProvider", err)
	}
}

func TestRegistryProviders(t *testing.T) {
	r := newTestRegistry()

	got := r.Providers()
	want := []domain.Provider{domain.ProviderPayPal, domain.ProviderStripe}
	if len(got) != len(want) {
		t.Fatalf("Providers() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Providers()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// Capabilities are discovered by interface assertion; make sure each
// adapter exposes exactly what its provider supports.
func TestGatewayCapabilities(t *testing.T) {
	r := newTestRegistry()

	stripe, _ := r.Resolve("stripe")
	if _, ok := stripe.(CaptureGateway); ok {
		t.Error("stripe must not expose the capture capability")
	}
	if _, ok := stripe.(RefundGateway); !ok {
		t.Error("stripe should expose the refund capability")
	}

	paypal, _ := r.Resolve("paypal")
	if _, ok := paypal.(CaptureGateway); !ok {
		t.Error("paypal should expose the capture capability")
	}
	if _, ok := paypal.(RefundGateway); ok {
		t.Error("paypal must not expose the refund capability")
	}
}
