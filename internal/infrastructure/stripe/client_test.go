package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"finbridge/internal/domain/payment"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient()
	if err := c.Initialize(map[string]string{"api_key": "sk_test_123", "api_base": srv.URL}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return c
}

func TestInitialize_RequiresAPIKey(t *testing.T) {
	c := NewClient()
	err := c.Initialize(map[string]string{})

	var cfgErr *payment.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigError, got %v", err)
	}
}

func TestCreatePayment_SendsMinorUnits(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payment_intents" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk_test_123" {
			t.Errorf("Missing bearer auth, got %q", r.Header.Get("Authorization"))
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm failed: %v", err)
		}
		if got := r.PostForm.Get("amount"); got != "2550" {
			t.Errorf("Expected amount 2550 cents, got %s", got)
		}
		if got := r.PostForm.Get("currency"); got != "usd" {
			t.Errorf("Expected lowercase currency, got %s", got)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"pi_123","status":"requires_payment_method","amount":2550,"currency":"usd"}`)
	})

	resp, err := c.CreatePayment(context.Background(), payment.Request{
		Amount:   decimal.NewFromFloat(25.50),
		Currency: "USD",
	})
	if err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}

	if resp.ExternalID != "pi_123" {
		t.Errorf("Expected pi_123, got %s", resp.ExternalID)
	}
	if resp.Status != payment.StatusPending {
		t.Errorf("Expected pending, got %s", resp.Status)
	}
	if !resp.Amount.Equal(decimal.NewFromFloat(25.50)) {
		t.Errorf("Expected amount 25.50, got %s", resp.Amount)
	}
	if resp.Currency != "USD" {
		t.Errorf("Expected USD, got %s", resp.Currency)
	}
}

func TestGetPayment_StatusMapping(t *testing.T) {
	tests := []struct {
		railStatus string
		want       payment.Status
	}{
		{"requires_payment_method", payment.StatusPending},
		{"requires_confirmation", payment.StatusPending},
		{"requires_action", payment.StatusPending},
		{"processing", payment.StatusProcessing},
		{"requires_capture", payment.StatusProcessing},
		{"succeeded", payment.StatusCompleted},
		{"canceled", payment.StatusCanceled},
		{"something_new", payment.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.railStatus, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintf(w, `{"id":"pi_123","status":"%s","amount":1000,"currency":"usd"}`, tt.railStatus)
			})

			resp, err := c.GetPayment(context.Background(), "pi_123")
			if err != nil {
				t.Fatalf("GetPayment failed: %v", err)
			}
			if resp.Status != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, resp.Status)
			}
		})
	}
}

func TestCancelPayment_PostsToCancelEndpoint(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/payment_intents/pi_123/cancel" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		fmt.Fprint(w, `{"id":"pi_123","status":"canceled","amount":1000,"currency":"usd"}`)
	})

	resp, err := c.CancelPayment(context.Background(), "pi_123")
	if err != nil {
		t.Fatalf("CancelPayment failed: %v", err)
	}
	if resp.Status != payment.StatusCanceled {
		t.Errorf("Expected canceled, got %s", resp.Status)
	}
}

func TestRefundPayment_PartialAmount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/refunds" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm failed: %v", err)
		}
		if got := r.PostForm.Get("payment_intent"); got != "pi_123" {
			t.Errorf("Expected payment_intent pi_123, got %s", got)
		}
		if got := r.PostForm.Get("amount"); got != "500" {
			t.Errorf("Expected amount 500 cents, got %s", got)
		}
		fmt.Fprint(w, `{"id":"re_1","status":"succeeded","amount":500,"currency":"usd"}`)
	})

	amount := decimal.NewFromInt(5)
	resp, err := c.RefundPayment(context.Background(), "pi_123", &amount)
	if err != nil {
		t.Fatalf("RefundPayment failed: %v", err)
	}

	if resp.ExternalID != "re_1" {
		t.Errorf("Expected refund id re_1, got %s", resp.ExternalID)
	}
	if resp.Status != payment.StatusRefunded {
		t.Errorf("Expected refunded, got %s", resp.Status)
	}
}

func TestDo_APIErrorBecomesProviderError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		fmt.Fprint(w, `{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`)
	})

	_, err := c.GetPayment(context.Background(), "pi_123")

	var provErr *payment.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("Expected ProviderError, got %v", err)
	}
	if provErr.Code != "card_declined" {
		t.Errorf("Expected code card_declined, got %s", provErr.Code)
	}
}
