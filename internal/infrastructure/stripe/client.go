// Package stripe implements the card-rail payment adapter on top of the
// payment-intents REST API.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finbridge/internal/domain/payment"
)

const (
	defaultBaseURL = "https://api.stripe.com"
	defaultTimeout = 30 * time.Second
)

// Client is the card-rail adapter. Amounts cross the wire in the
// currency's minor unit (cents).
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

var _ payment.Adapter = (*Client)(nil)

// NewClient creates an uninitialized card-rail adapter.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
	}
}

// Provider returns the rail identity.
func (c *Client) Provider() payment.Provider {
	return payment.ProviderStripe
}

// Initialize validates credentials. Required key: api_key. Optional:
// api_base to redirect traffic at a test server.
func (c *Client) Initialize(config map[string]string) error {
	key := config["api_key"]
	if key == "" {
		return &payment.ConfigError{Provider: payment.ProviderStripe, Reason: "api_key is required"}
	}
	c.apiKey = key
	if base := config["api_base"]; base != "" {
		c.baseURL = base
	}
	return nil
}

// paymentIntent is the rail-native payment object, reduced to the fields
// the adapter reads.
type paymentIntent struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type refundObject struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type errorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do sends a form-encoded request with bearer auth and decodes into out.
func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return payment.NewProviderError(payment.ProviderStripe, "failed to create request", "", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return payment.NewProviderError(payment.ProviderStripe, "request failed", "", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return payment.NewProviderError(payment.ProviderStripe, "failed to read response", "", err)
	}

	if resp.StatusCode >= 400 {
		var envelope errorEnvelope
		if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
			return payment.NewProviderError(payment.ProviderStripe, envelope.Error.Message, envelope.Error.Code, nil)
		}
		return payment.NewProviderError(payment.ProviderStripe,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), "", nil)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return payment.NewProviderError(payment.ProviderStripe, "failed to decode response", "", err)
	}
	return nil
}

// mapStatus translates the rail's intent statuses to the normalized
// vocabulary. Unrecognized statuses are failed, never silently pending.
func mapStatus(s string) payment.Status {
	switch s {
	case "requires_payment_method", "requires_confirmation", "requires_action":
		return payment.StatusPending
	case "processing", "requires_capture":
		return payment.StatusProcessing
	case "succeeded":
		return payment.StatusCompleted
	case "canceled":
		return payment.StatusCanceled
	default:
		return payment.StatusFailed
	}
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func fromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}

func (c *Client) response(pi *paymentIntent) *payment.Response {
	raw := map[string]any{
		"id":       pi.ID,
		"status":   pi.Status,
		"amount":   pi.Amount,
		"currency": pi.Currency,
	}
	return &payment.Response{
		ExternalID: pi.ID,
		Status:     mapStatus(pi.Status),
		Amount:     fromMinorUnits(pi.Amount),
		Currency:   strings.ToUpper(pi.Currency),
		Provider:   payment.ProviderStripe,
		Raw:        raw,
	}
}

// CreatePayment opens a payment intent for the requested amount.
func (c *Client) CreatePayment(ctx context.Context, req payment.Request) (*payment.Response, error) {
	form := url.Values{}
	form.Set("amount", fmt.Sprintf("%d", toMinorUnits(req.Amount)))
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("automatic_payment_methods[enabled]", "true")
	if req.Description != "" {
		form.Set("description", req.Description)
	}
	for k, v := range req.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	var pi paymentIntent
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents", form, &pi); err != nil {
		return nil, err
	}
	return c.response(&pi), nil
}

// GetPayment fetches the intent's current remote state.
func (c *Client) GetPayment(ctx context.Context, externalID string) (*payment.Response, error) {
	var pi paymentIntent
	if err := c.do(ctx, http.MethodGet, "/v1/payment_intents/"+externalID, nil, &pi); err != nil {
		return nil, err
	}
	return c.response(&pi), nil
}

// CancelPayment cancels an intent the rail still considers cancellable.
func (c *Client) CancelPayment(ctx context.Context, externalID string) (*payment.Response, error) {
	var pi paymentIntent
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents/"+externalID+"/cancel", url.Values{}, &pi); err != nil {
		return nil, err
	}
	return c.response(&pi), nil
}

// RefundPayment refunds the captured intent, partially when amount is set.
func (c *Client) RefundPayment(ctx context.Context, externalID string, amount *decimal.Decimal) (*payment.Response, error) {
	form := url.Values{}
	form.Set("payment_intent", externalID)
	if amount != nil {
		form.Set("amount", fmt.Sprintf("%d", toMinorUnits(*amount)))
	}

	var ref refundObject
	if err := c.do(ctx, http.MethodPost, "/v1/refunds", form, &ref); err != nil {
		return nil, err
	}

	return &payment.Response{
		ExternalID: ref.ID,
		Status:     payment.StatusRefunded,
		Amount:     fromMinorUnits(ref.Amount),
		Currency:   strings.ToUpper(ref.Currency),
		Provider:   payment.ProviderStripe,
		Raw: map[string]any{
			"id":       ref.ID,
			"status":   ref.Status,
			"amount":   ref.Amount,
			"currency": ref.Currency,
		},
	}, nil
}
