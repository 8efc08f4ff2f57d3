package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/louise36-g/mysticoracle/internal/app/capture"
	"github.com/louise36-g/mysticoracle/internal/app/ledger"
	"github.com/louise36-g/mysticoracle/internal/app/webhook"
	"github.com/louise36-g/mysticoracle/internal/domain"
	"github.com/louise36-g/mysticoracle/internal/gateway"
	"github.com/louise36-g/mysticoracle/internal/infra/sqlite"
)

type fixture struct {
	srv    *httptest.Server
	db     *sqlite.DB
	led    *ledger.Ledger
	stripe *gateway.Stripe
}

// newFixture stands up the full API over a fresh database. Provider
// base URLs point at the given test server when non-empty.
func newFixture(t *testing.T, providerURL string) *fixture {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.CreateUser("user-1"); err != nil {
		t.Fatal(err)
	}

	stripe := gateway.NewStripe(gateway.StripeConfig{
		SecretKey:     "sk_test",
		WebhookSecret: "whsec_test",
		BaseURL:       providerURL,
	})
	paypal := gateway.NewPayPal(gateway.PayPalConfig{
		ClientID:      "client",
		Secret:        "secret",
		WebhookSecret: "whsec_test",
		BaseURL:       providerURL,
	})

	registry := gateway.NewRegistry()
	registry.Register(stripe)
	registry.Register(paypal)

	led := ledger.New(db, db)
	server := NewServer(registry, led, capture.New(registry, db, led), webhook.New(registry, db, led, nil), db)

	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, db: db, led: led, stripe: stripe}
}

func (f *fixture) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(f.srv.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, "")

	resp, err := http.Get(f.srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

// ─── Webhook Endpoint ───────────────────────────────────────────────────────

func TestWebhookEndpoint_CompletedPayment(t *testing.T) {
	f := newFixture(t, "")
	f.led.CreatePendingPurchase(ledger.Grant{
		UserID: "user-1", Credits: 50, Provider: domain.ProviderStripe, PaymentID: "cs_1",
	})

	payload := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_1",
			"client_reference_id": "user-1",
			"amount_total": 500,
			"currency": "usd",
			"metadata": {"credits": "50"}
		}}
	}`)

	req, _ := http.NewRequest(http.MethodPost, f.srv.URL+"/api/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", f.stripe.SignPayload(payload, time.Now()))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	balance, _ := f.led.Balance("user-1")
	if balance != 50 {
		t.Errorf("balance = %d, want 50", balance)
	}
}

func TestWebhookEndpoint_BadSignature(t *testing.T) {
	f := newFixture(t, "")

	req, _ := http.NewRequest(http.MethodPost, f.srv.URL+"/api/webhooks/stripe", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=bogus")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWebhookEndpoint_UnconfiguredProvider(t *testing.T) {
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	registry := gateway.NewRegistry()
	registry.Register(gateway.NewStripe(gateway.StripeConfig{})) // no credentials
	led := ledger.New(db, db)
	server := NewServer(registry, led, capture.New(registry, db, led), webhook.New(registry, db, led, nil), db)
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/api/webhooks/stripe", "application/json", bytes.NewReader([]byte(`{}`)))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	// Configuration errors are operator-facing, not retryable faults.
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestWebhookEndpoint_UnknownProvider(t *testing.T) {
	f := newFixture(t, "")

	resp := f.postJSON(t, "/api/webhooks/bitcoin", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

// ─── Checkout Endpoint ──────────────────────────────────────────────────────

func TestCheckoutEndpoint(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "cs_new", "url": "https://checkout.example/cs_new"}`))
	}))
	defer provider.Close()
	f := newFixture(t, provider.URL)

	resp := f.postJSON(t, "/api/payments/checkout", map[string]any{
		"user_id":  "user-1",
		"provider": "stripe",
		"credits":  50,
		"amount":   500,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var session domain.CheckoutSession
	decode(t, resp, &session)
	if session.PaymentID != "cs_new" {
		t.Errorf("PaymentID = %q, want cs_new", session.PaymentID)
	}

	// The PENDING placeholder must exist for the webhook to complete.
	pending, _ := f.db.FindByPaymentIDAndStatus(domain.ProviderStripe, "cs_new", domain.StatusPending)
	if pending == nil {
		t.Fatal("no pending transaction recorded")
	}
	if pending.Amount != 50 {
		t.Errorf("pending credits = %d, want 50", pending.Amount)
	}
}

func TestCheckoutEndpoint_Validation(t *testing.T) {
	f := newFixture(t, "")

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"missing user", map[string]any{"provider": "stripe", "credits": 50, "amount": 500}, http.StatusBadRequest},
		{"zero credits", map[string]any{"user_id": "u", "provider": "stripe", "credits": 0, "amount": 500}, http.StatusBadRequest},
		{"unknown provider", map[string]any{"user_id": "u", "provider": "venmo", "credits": 50, "amount": 500}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.postJSON(t, "/api/payments/checkout", tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestCheckoutEndpoint_UnconfiguredProvider(t *testing.T) {
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	registry := gateway.NewRegistry()
	registry.Register(gateway.NewStripe(gateway.StripeConfig{})) // no credentials
	led := ledger.New(db, db)
	server := NewServer(registry, led, capture.New(registry, db, led), webhook.New(registry, db, led, nil), db)
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)

	body, _ := json.Marshal(map[string]any{"user_id": "u", "provider": "stripe", "credits": 50, "amount": 500})
	resp, err := http.Post(srv.URL+"/api/payments/checkout", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

// ─── Capture Endpoint ───────────────────────────────────────────────────────

func TestCaptureEndpoint(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"status": "COMPLETED",
			"purchase_units": [{
				"custom_id": "user-1:50",
				"payments": {"captures": [{"id": "CAP-1", "status": "COMPLETED"}]}
			}]
		}`))
	}))
	defer provider.Close()
	f := newFixture(t, provider.URL)

	f.led.GrantAchievement("user-1", 25, "signup bonus")
	f.led.CreatePendingPurchase(ledger.Grant{
		UserID: "user-1", Credits: 50, Provider: domain.ProviderPayPal, PaymentID: "ORDER-456",
	})

	resp := f.postJSON(t, "/api/payments/capture", map[string]string{
		"user_id": "user-1", "order_id": "ORDER-456", "provider": "paypal",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var result capture.Result
	decode(t, resp, &result)
	if !result.Success || result.Credits != 50 || result.NewBalance != 75 {
		t.Errorf("result = %+v, want success with 50 credits, balance 75", result)
	}
}

func TestCaptureEndpoint_WrongCapabilityIs400(t *testing.T) {
	f := newFixture(t, "")

	resp := f.postJSON(t, "/api/payments/capture", map[string]string{
		"user_id": "user-1", "order_id": "cs_1", "provider": "stripe",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCaptureEndpoint_Validation(t *testing.T) {
	f := newFixture(t, "")

	resp := f.postJSON(t, "/api/payments/capture", map[string]string{"user_id": "user-1"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

// ─── Balance & Reporting Endpoints ──────────────────────────────────────────

func TestCreditsEndpoint(t *testing.T) {
	f := newFixture(t, "")
	f.led.GrantAchievement("user-1", 30, "bonus")

	resp, err := http.Get(f.srv.URL + "/api/users/user-1/credits")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		UserID  string `json:"user_id"`
		Credits int64  `json:"credits"`
	}
	decode(t, resp, &body)
	if body.Credits != 30 {
		t.Errorf("credits = %d, want 30", body.Credits)
	}
}

func TestCreditsEndpoint_UnknownUser(t *testing.T) {
	f := newFixture(t, "")

	resp, err := http.Get(f.srv.URL + "/api/users/ghost/credits")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestTransactionsEndpoint(t *testing.T) {
	f := newFixture(t, "")
	f.led.GrantAchievement("user-1", 10, "bonus")
	f.led.GrantAchievement("user-1", 20, "streak")

	resp, err := http.Get(f.srv.URL + "/api/users/user-1/transactions")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Transactions []domain.Transaction `json:"transactions"`
	}
	decode(t, resp, &body)
	if len(body.Transactions) != 2 {
		t.Errorf("len = %d, want 2", len(body.Transactions))
	}
}

func TestRevenueEndpoint(t *testing.T) {
	f := newFixture(t, "")
	f.led.ApplyGrant(ledger.Grant{
		UserID: "user-1", Credits: 50, Type: domain.TxPurchase,
		Provider: domain.ProviderStripe, PaymentID: "cs_1", PaymentAmount: 500, Currency: "usd",
	})

	resp, err := http.Get(f.srv.URL + "/api/admin/revenue")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		CreditsSold int64 `json:"credits_sold"`
		Revenue     int64 `json:"revenue"`
	}
	decode(t, resp, &body)
	if body.CreditsSold != 50 {
		t.Errorf("credits_sold = %d, want 50", body.CreditsSold)
	}
	if body.Revenue != 500 {
		t.Errorf("revenue = %d, want 500", body.Revenue)
	}
}
