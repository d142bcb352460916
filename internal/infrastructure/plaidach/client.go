// Package plaidach implements the bank-transfer payment adapter on top of
// the aggregation rail's payment-initiation API.
package plaidach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"finbridge/internal/domain/payment"
)

const (
	sandboxURL     = "https://sandbox.plaid.com"
	developmentURL = "https://development.plaid.com"
	productionURL  = "https://production.plaid.com"

	defaultTimeout = 30 * time.Second
)

// Client is the bank-transfer adapter. Transfers require a pre-registered
// recipient; callers pass its id in the request metadata under
// recipient_id.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
}

var _ payment.Adapter = (*Client)(nil)

// NewClient creates an uninitialized bank-transfer adapter.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    sandboxURL,
	}
}

// Provider returns the rail identity.
func (c *Client) Provider() payment.Provider {
	return payment.ProviderPlaid
}

// Initialize validates credentials. Required keys: client_id and secret.
// Optional: environment (sandbox, development, production) and api_base.
func (c *Client) Initialize(config map[string]string) error {
	c.clientID = config["client_id"]
	c.secret = config["secret"]
	if c.clientID == "" || c.secret == "" {
		return &payment.ConfigError{Provider: payment.ProviderPlaid, Reason: "client_id and secret are required"}
	}
	switch config["environment"] {
	case "production":
		c.baseURL = productionURL
	case "development":
		c.baseURL = developmentURL
	}
	if base := config["api_base"]; base != "" {
		c.baseURL = base
	}
	return nil
}

type initiatedPayment struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Amount    struct {
		Currency string  `json:"currency"`
		Value    float64 `json:"value"`
	} `json:"amount"`
}

type apiError struct {
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// post sends a JSON body with credentials injected and decodes into out.
func (c *Client) post(ctx context.Context, path string, body map[string]any, out any) error {
	body["client_id"] = c.clientID
	body["secret"] = c.secret

	payload, err := json.Marshal(body)
	if err != nil {
		return payment.NewProviderError(payment.ProviderPlaid, "failed to marshal request", "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return payment.NewProviderError(payment.ProviderPlaid, "failed to create request", "", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return payment.NewProviderError(payment.ProviderPlaid, "request failed", "", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return payment.NewProviderError(payment.ProviderPlaid, "failed to read response", "", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.ErrorCode != "" {
			return payment.NewProviderError(payment.ProviderPlaid, apiErr.ErrorMessage, apiErr.ErrorCode, nil)
		}
		return payment.NewProviderError(payment.ProviderPlaid,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), "", nil)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return payment.NewProviderError(payment.ProviderPlaid, "failed to decode response", "", err)
	}
	return nil
}

// mapStatus translates payment-initiation statuses to the normalized
// vocabulary.
func mapStatus(s string) payment.Status {
	switch s {
	case "PAYMENT_STATUS_INPUT_NEEDED":
		return payment.StatusPending
	case "PAYMENT_STATUS_PROCESSING", "PAYMENT_STATUS_INITIATED":
		return payment.StatusProcessing
	case "PAYMENT_STATUS_COMPLETED", "PAYMENT_STATUS_EXECUTED":
		return payment.StatusCompleted
	case "PAYMENT_STATUS_CANCELLED":
		return payment.StatusCanceled
	case "PAYMENT_STATUS_REJECTED", "PAYMENT_STATUS_FAILED":
		return payment.StatusFailed
	default:
		return payment.StatusFailed
	}
}

func (c *Client) response(p *initiatedPayment) *payment.Response {
	return &payment.Response{
		ExternalID: p.PaymentID,
		Status:     mapStatus(p.Status),
		Amount:     decimal.NewFromFloat(p.Amount.Value),
		Currency:   p.Amount.Currency,
		Provider:   payment.ProviderPlaid,
		Raw: map[string]any{
			"payment_id": p.PaymentID,
			"status":     p.Status,
			"amount":     p.Amount.Value,
			"currency":   p.Amount.Currency,
		},
	}
}

// CreatePayment initiates a bank transfer to the recipient named in
// metadata. A missing recipient_id is a caller mistake, not a rail
// failure.
func (c *Client) CreatePayment(ctx context.Context, req payment.Request) (*payment.Response, error) {
	recipientID := req.Metadata["recipient_id"]
	if recipientID == "" {
		return nil, payment.NewRuleError("recipient_id is required for bank transfers")
	}

	reference := req.Description
	if reference == "" {
		reference = "Payment"
	}
	if len(reference) > 35 {
		reference = reference[:35]
	}

	amount, _ := req.Amount.Float64()
	body := map[string]any{
		"recipient_id": recipientID,
		"reference":    reference,
		"amount": map[string]any{
			"currency": req.Currency,
			"value":    amount,
		},
	}

	var created struct {
		PaymentID string `json:"payment_id"`
		Status    string `json:"status"`
	}
	if err := c.post(ctx, "/payment_initiation/payment/create", body, &created); err != nil {
		return nil, err
	}

	return &payment.Response{
		ExternalID: created.PaymentID,
		Status:     mapStatus(created.Status),
		Amount:     req.Amount,
		Currency:   req.Currency,
		Provider:   payment.ProviderPlaid,
		Raw: map[string]any{
			"payment_id": created.PaymentID,
			"status":     created.Status,
		},
	}, nil
}

// GetPayment fetches the transfer's current remote state.
func (c *Client) GetPayment(ctx context.Context, externalID string) (*payment.Response, error) {
	var p initiatedPayment
	if err := c.post(ctx, "/payment_initiation/payment/get", map[string]any{"payment_id": externalID}, &p); err != nil {
		return nil, err
	}
	return c.response(&p), nil
}

// CancelPayment reports the current state, unchanged, for transfers that
// have not settled. The rail has no cancel primitive; a settled transfer is
// a precondition failure.
func (c *Client) CancelPayment(ctx context.Context, externalID string) (*payment.Response, error) {
	resp, err := c.GetPayment(ctx, externalID)
	if err != nil {
		return nil, err
	}

	switch resp.Status {
	case payment.StatusPending, payment.StatusProcessing:
		return resp, nil
	default:
		return nil, payment.NewProviderError(payment.ProviderPlaid,
			fmt.Sprintf("transfer %s cannot be canceled in status %s", externalID, resp.Status), "TRANSFER_NOT_CANCELLABLE", nil)
	}
}

// RefundPayment reverses a settled transfer. The rail exposes no refund
// primitive, so the reversal is ledger-level: the transfer must be
// completed remotely, and the result is reported as refunded.
func (c *Client) RefundPayment(ctx context.Context, externalID string, amount *decimal.Decimal) (*payment.Response, error) {
	resp, err := c.GetPayment(ctx, externalID)
	if err != nil {
		return nil, err
	}

	if resp.Status != payment.StatusCompleted {
		return nil, payment.NewProviderError(payment.ProviderPlaid,
			fmt.Sprintf("transfer %s cannot be refunded in status %s", externalID, resp.Status), "TRANSFER_NOT_REFUNDABLE", nil)
	}

	resp.Status = payment.StatusRefunded
	if amount != nil {
		resp.Amount = *amount
	}
	return resp, nil
}
