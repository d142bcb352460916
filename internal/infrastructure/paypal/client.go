// Package paypal implements the wallet-rail payment adapter on top of the
// checkout-orders REST API.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"finbridge/internal/domain/payment"
)

const (
	sandboxURL = "https://api-m.sandbox.paypal.com"
	liveURL    = "https://api-m.paypal.com"

	defaultTimeout = 30 * time.Second

	// tokenLeeway forces a refresh slightly before the advertised expiry
	// so in-flight requests never race the cutoff.
	tokenLeeway = 60 * time.Second
)

// Client is the wallet-rail adapter. It manages its own OAuth
// client-credentials session, refreshing the bearer token lazily.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

var _ payment.Adapter = (*Client)(nil)

// NewClient creates an uninitialized wallet-rail adapter.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    sandboxURL,
	}
}

// Provider returns the rail identity.
func (c *Client) Provider() payment.Provider {
	return payment.ProviderPayPal
}

// Initialize validates credentials. Required keys: client_id and
// client_secret. Optional: mode (sandbox or live) and api_base.
func (c *Client) Initialize(config map[string]string) error {
	c.clientID = config["client_id"]
	c.clientSecret = config["client_secret"]
	if c.clientID == "" || c.clientSecret == "" {
		return &payment.ConfigError{Provider: payment.ProviderPayPal, Reason: "client_id and client_secret are required"}
	}
	if config["mode"] == "live" {
		c.baseURL = liveURL
	}
	if base := config["api_base"]; base != "" {
		c.baseURL = base
	}
	return nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a valid bearer token, fetching a new one when the cached
// token is absent or within the expiry leeway.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Add(tokenLeeway).Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", payment.NewProviderError(payment.ProviderPayPal, "failed to create token request", "", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", payment.NewProviderError(payment.ProviderPayPal, "token request failed", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", payment.NewProviderError(payment.ProviderPayPal,
			fmt.Sprintf("token request failed with status %d: %s", resp.StatusCode, string(raw)), "AUTH_FAILED", nil)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", payment.NewProviderError(payment.ProviderPayPal, "failed to decode token response", "", err)
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

type amountValue struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type capture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type purchaseUnit struct {
	Amount      amountValue `json:"amount"`
	Description string      `json:"description,omitempty"`
	Payments    *struct {
		Captures []capture `json:"captures"`
	} `json:"payments,omitempty"`
}

type order struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
}

type apiError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// do sends an authenticated JSON request and decodes into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return payment.NewProviderError(payment.ProviderPayPal, "failed to marshal request", "", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return payment.NewProviderError(payment.ProviderPayPal, "failed to create request", "", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return payment.NewProviderError(payment.ProviderPayPal, "request failed", "", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return payment.NewProviderError(payment.ProviderPayPal, "failed to read response", "", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Message != "" {
			return payment.NewProviderError(payment.ProviderPayPal, apiErr.Message, apiErr.Name, nil)
		}
		return payment.NewProviderError(payment.ProviderPayPal,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), "", nil)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return payment.NewProviderError(payment.ProviderPayPal, "failed to decode response", "", err)
	}
	return nil
}

// mapStatus translates order statuses to the normalized vocabulary.
func mapStatus(s string) payment.Status {
	switch s {
	case "CREATED", "SAVED", "PAYER_ACTION_REQUIRED":
		return payment.StatusPending
	case "APPROVED":
		return payment.StatusProcessing
	case "COMPLETED":
		return payment.StatusCompleted
	case "VOIDED":
		return payment.StatusCanceled
	default:
		return payment.StatusFailed
	}
}

func (c *Client) response(o *order) *payment.Response {
	resp := &payment.Response{
		ExternalID: o.ID,
		Status:     mapStatus(o.Status),
		Provider:   payment.ProviderPayPal,
		Raw: map[string]any{
			"id":     o.ID,
			"status": o.Status,
		},
	}
	if len(o.PurchaseUnits) > 0 {
		unit := o.PurchaseUnits[0]
		resp.Currency = unit.Amount.CurrencyCode
		if amount, err := decimal.NewFromString(unit.Amount.Value); err == nil {
			resp.Amount = amount
		}
	}
	return resp
}

// CreatePayment opens a capture-intent order for the requested amount.
// Metadata keys return_url and cancel_url, when present, steer the
// approval redirect.
func (c *Client) CreatePayment(ctx context.Context, req payment.Request) (*payment.Response, error) {
	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"amount": amountValue{
				CurrencyCode: strings.ToUpper(req.Currency),
				Value:        req.Amount.StringFixed(2),
			},
			"description": req.Description,
		}},
	}

	appCtx := map[string]string{}
	if v := req.Metadata["return_url"]; v != "" {
		appCtx["return_url"] = v
	}
	if v := req.Metadata["cancel_url"]; v != "" {
		appCtx["cancel_url"] = v
	}
	if len(appCtx) > 0 {
		body["application_context"] = appCtx
	}

	var o order
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", body, &o); err != nil {
		return nil, err
	}
	return c.response(&o), nil
}

// GetPayment fetches the order's current remote state.
func (c *Client) GetPayment(ctx context.Context, externalID string) (*payment.Response, error) {
	var o order
	if err := c.do(ctx, http.MethodGet, "/v2/checkout/orders/"+externalID, nil, &o); err != nil {
		return nil, err
	}
	return c.response(&o), nil
}

// CancelPayment verifies the order is still cancellable. The rail has no
// cancel primitive; orders expire server-side, so only unapproved orders may
// be abandoned, and the rail's current state is returned unchanged.
func (c *Client) CancelPayment(ctx context.Context, externalID string) (*payment.Response, error) {
	resp, err := c.GetPayment(ctx, externalID)
	if err != nil {
		return nil, err
	}

	if resp.Status != payment.StatusPending {
		return nil, payment.NewProviderError(payment.ProviderPayPal,
			fmt.Sprintf("order %s cannot be canceled in status %s", externalID, resp.Status), "ORDER_NOT_CANCELLABLE", nil)
	}

	return resp, nil
}

// RefundPayment refunds the order's capture, partially when amount is set.
func (c *Client) RefundPayment(ctx context.Context, externalID string, amount *decimal.Decimal) (*payment.Response, error) {
	var o order
	if err := c.do(ctx, http.MethodGet, "/v2/checkout/orders/"+externalID, nil, &o); err != nil {
		return nil, err
	}

	captureID := ""
	currency := ""
	if len(o.PurchaseUnits) > 0 {
		currency = o.PurchaseUnits[0].Amount.CurrencyCode
		if p := o.PurchaseUnits[0].Payments; p != nil && len(p.Captures) > 0 {
			captureID = p.Captures[0].ID
		}
	}
	if captureID == "" {
		return nil, payment.NewProviderError(payment.ProviderPayPal,
			fmt.Sprintf("order %s has no capture to refund", externalID), "NO_CAPTURE", nil)
	}

	body := map[string]any{}
	if amount != nil {
		body["amount"] = amountValue{
			CurrencyCode: currency,
			Value:        amount.StringFixed(2),
		}
	}

	var refund struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/payments/captures/"+captureID+"/refund", body, &refund); err != nil {
		return nil, err
	}

	resp := &payment.Response{
		ExternalID: refund.ID,
		Status:     payment.StatusRefunded,
		Currency:   currency,
		Provider:   payment.ProviderPayPal,
		Raw: map[string]any{
			"id":         refund.ID,
			"status":     refund.Status,
			"capture_id": captureID,
			"order_id":   o.ID,
		},
	}
	if amount != nil {
		resp.Amount = *amount
	} else if a, err := decimal.NewFromString(o.PurchaseUnits[0].Amount.Value); err == nil {
		resp.Amount = a
	}
	return resp, nil
}
