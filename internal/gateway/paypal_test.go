package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/louise36-g/mysticoracle/internal/domain"
)

func newTestPayPal(baseURL string) *PayPal {
	return NewPayPal(PayPalConfig{
		ClientID:      "client",
		Secret:        "secret",
		WebhookSecret: "whsec_test",
		BaseURL:       baseURL,
	})
}

func TestPayPalConfigured(t *testing.T) {
	if NewPayPal(PayPalConfig{ClientID: "c", Secret: "s"}).Configured() {
		t.Error("missing webhook secret should not be configured")
	}
	if !newTestPayPal("").Configured() {
		t.Error("full credentials should be configured")
	}
}

// ─── Capture Tests ──────────────────────────────────────────────────────────

func TestPayPalCapturePayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/checkout/orders/ORDER-456/capture" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "client" || pass != "secret" {
			t.Error("missing basic auth credentials")
		}
		w.Write([]byte(`{
			"status": "COMPLETED",
			"purchase_units": [{
				"custom_id": "user-1:50",
				"payments": {"captures": [{"id": "CAP-1", "status": "COMPLETED"}]}
			}]
		}`))
	}))
	defer srv.Close()

	result, err := newTestPayPal(srv.URL).CapturePayment(context.Background(), "ORDER-456", "user-1")
	if err != nil {
		t.Fatalf("CapturePayment() error: %v", err)
	}
	if !result.Success {
		t.Fatalf("CapturePayment() = %+v, want success", result)
	}
	if result.CaptureID != "CAP-1" {
		t.Errorf("CaptureID = %q, want CAP-1", result.CaptureID)
	}
	if result.Credits != 50 {
		t.Errorf("Credits = %d, want 50", result.Credits)
	}
}

func TestPayPalCapturePayment_NotCompleted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "PENDING", "purchase_units": []}`))
	}))
	defer srv.Close()

	result, err := newTestPayPal(srv.URL).CapturePayment(context.Background(), "ORDER-456", "user-1")
	if err != nil {
		t.Fatalf("CapturePayment() error: %v", err)
	}
	if result.Success {
		t.Fatal("non-COMPLETED order reported success")
	}
	if !strings.Contains(result.Err, "PENDING") {
		t.Errorf("Err = %q, want order status in message", result.Err)
	}
}

func TestPayPalCapturePayment_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"name": "UNPROCESSABLE_ENTITY", "message": "INSTRUMENT_DECLINED"}`))
	}))
	defer srv.Close()

	_, err := newTestPayPal(srv.URL).CapturePayment(context.Background(), "ORDER-456", "user-1")
	if err == nil {
		t.Fatal("want error")
	}
	if err.Error() != "INSTRUMENT_DECLINED" {
		t.Errorf("error = %q, want PayPal's literal message", err.Error())
	}
}

// ─── Webhook Tests ──────────────────────────────────────────────────────────

const paypalCapturePayload = `{
	"id": "WH-1",
	"event_type": "PAYMENT.CAPTURE.COMPLETED",
	"resource": {
		"id": "CAP-1",
		"order_id": "ORDER-456",
		"custom_id": "user-1:50",
		"amount": {"currency_code": "USD", "value": "5.00"}
	}
}`

func TestPayPalVerifyWebhook(t *testing.T) {
	p := newTestPayPal("")
	payload := []byte(paypalCapturePayload)
	sig := p.SignPayload(payload, "txn-1")
	headers := map[string]string{"Paypal-Transmission-Id": "txn-1"}

	event, err := p.VerifyWebhook(payload, sig, headers)
	if err != nil {
		t.Fatalf("VerifyWebhook() error: %v", err)
	}
	if event == nil {
		t.Fatal("VerifyWebhook() = nil, want event")
	}
	if event.Type != domain.EventPaymentCompleted {
		t.Errorf("Type = %q, want payment.completed", event.Type)
	}
	if event.PaymentID != "ORDER-456" {
		t.Errorf("PaymentID = %q, want order id, not capture id", event.PaymentID)
	}
	if event.UserID != "user-1" || event.Credits != 50 {
		t.Errorf("custom_id parsed as %q/%d, want user-1/50", event.UserID, event.Credits)
	}
	if event.Amount != 500 {
		t.Errorf("Amount = %d, want 500", event.Amount)
	}
}

func TestPayPalVerifyWebhook_Rejections(t *testing.T) {
	p := newTestPayPal("")
	payload := []byte(paypalCapturePayload)
	valid := p.SignPayload(payload, "txn-1")

	tests := []struct {
		name    string
		sig     string
		headers map[string]string
	}{
		{"no transmission id", valid, nil},
		{"empty signature", "", map[string]string{"Paypal-Transmission-Id": "txn-1"}},
		{"wrong transmission id", valid, map[string]string{"Paypal-Transmission-Id": "txn-2"}},
		{"wrong secret", NewPayPal(PayPalConfig{WebhookSecret: "other"}).SignPayload(payload, "txn-1"),
			map[string]string{"Paypal-Transmission-Id": "txn-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := p.VerifyWebhook(payload, tt.sig, tt.headers)
			if err != nil {
				t.Fatalf("VerifyWebhook() error: %v", err)
			}
			if event != nil {
				t.Errorf("VerifyWebhook() = %+v, want nil", event)
			}
		})
	}
}

func TestPayPalParseEvent_Mapping(t *testing.T) {
	tests := []struct {
		paypalType string
		want       domain.WebhookEventType
	}{
		{"PAYMENT.CAPTURE.COMPLETED", domain.EventPaymentCompleted},
		{"CHECKOUT.ORDER.COMPLETED", domain.EventPaymentCompleted},
		{"PAYMENT.CAPTURE.DENIED", domain.EventPaymentFailed},
		{"PAYMENT.CAPTURE.REFUNDED", domain.EventPaymentRefunded},
		{"CHECKOUT.ORDER.VOIDED", domain.EventSessionExpired},
	}

	p := newTestPayPal("")
	for _, tt := range tests {
		t.Run(tt.paypalType, func(t *testing.T) {
			payload := []byte(`{"id":"WH","event_type":"` + tt.paypalType + `","resource":{"id":"CAP-1"}}`)
			event, err := p.parseEvent(payload)
			if err != nil {
				t.Fatalf("parseEvent() error: %v", err)
			}
			if event == nil || event.Type != tt.want {
				t.Errorf("parseEvent(%s) = %+v, want type %q", tt.paypalType, event, tt.want)
			}
		})
	}

	// Unconsumed types yield (nil, nil).
	event, err := p.parseEvent([]byte(`{"id":"WH","event_type":"BILLING.PLAN.CREATED","resource":{}}`))
	if err != nil || event != nil {
		t.Errorf("unconsumed type = %+v, %v, want nil, nil", event, err)
	}
}

// ─── Amount Helpers ─────────────────────────────────────────────────────────

func TestSplitCustomID(t *testing.T) {
	tests := []struct {
		input   string
		userID  string
		credits int64
		ok      bool
	}{
		{"user-1:50", "user-1", 50, true},
		{"uuid:with:colons:25", "uuid:with:colons", 25, true},
		{"no-colon", "", 0, false},
		{"user-1:", "", 0, false},
		{"user-1:abc", "", 0, false},
		{"", "", 0, false},
	}

	for _, tt := range tests {
		userID, credits, ok := splitCustomID(tt.input)
		if userID != tt.userID || credits != tt.credits || ok != tt.ok {
			t.Errorf("splitCustomID(%q) = %q, %d, %v, want %q, %d, %v",
				tt.input, userID, credits, ok, tt.userID, tt.credits, tt.ok)
		}
	}
}

func TestAmountConversions(t *testing.T) {
	if got := minorToDecimal(500); got != "5.00" {
		t.Errorf("minorToDecimal(500) = %q, want 5.00", got)
	}
	if got := minorToDecimal(1234); got != "12.34" {
		t.Errorf("minorToDecimal(1234) = %q, want 12.34", got)
	}

	tests := []struct {
		input string
		want  int64
	}{
		{"5.00", 500},
		{"12.34", 1234},
		{"12.3", 1230}, // fraction is positional, not an integer
		{"5", 500},
		{"0.07", 7},
		{"-3.50", -350},
		{"garbage", 0},
		{"1.xx", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := decimalToMinor(tt.input); got != tt.want {
			t.Errorf("decimalToMinor(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
