package domain

import (
	"errors"
	"testing"
)

// ─── Status Transition Tests ────────────────────────────────────────────────

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from PaymentStatus
		to   PaymentStatus
		want bool
	}{
		{"pending to completed", StatusPending, StatusCompleted, true},
		{"pending to failed", StatusPending, StatusFailed, true},
		{"same status is no-op", StatusCompleted, StatusCompleted, true},
		{"pending to pending", StatusPending, StatusPending, true},
		{"completed never regresses", StatusCompleted, StatusPending, false},
		{"completed to failed", StatusCompleted, StatusFailed, false},
		{"failed is terminal", StatusFailed, StatusCompleted, false},
		{"failed to pending", StatusFailed, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

// ─── Provider Tests ─────────────────────────────────────────────────────────

func TestParseProvider(t *testing.T) {
	tests := []struct {
		input   string
		want    Provider
		wantErr bool
	}{
		{"stripe", ProviderStripe, false},
		{"paypal", ProviderPayPal, false},
		{"", "", true},
		{"STRIPE", "", true},
		{"bitcoin", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseProvider(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseProvider(%q) error = nil, want error", tt.input)
				}
				if !errors.Is(err, ErrUnknownProvider) {
					t.Errorf("ParseProvider(%q) error = %v, want ErrUnknownProvider", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseProvider(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseProvider(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
