// Package plaid implements the HTTP client for the banking aggregation
// rail: link-token issuance, public-token exchange, account and
// transaction pulls, institution lookup and item removal.
package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	sandboxURL     = "https://sandbox.plaid.com"
	developmentURL = "https://development.plaid.com"
	productionURL  = "https://production.plaid.com"

	defaultTimeout = 60 * time.Second
)

// Config holds credentials and environment for the aggregation client.
type Config struct {
	ClientID     string
	Secret       string
	Environment  string // sandbox, development or production
	WebhookURL   string
	ClientName   string
	Products     []string
	CountryCodes []string
	Language     string
}

// Client talks to the aggregation rail's REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cfg        Config
}

var _ ClientInterface = (*Client)(nil)

// NewClient creates an aggregation client for the configured environment.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.Secret == "" {
		return nil, fmt.Errorf("plaid client_id and secret are required")
	}
	if cfg.ClientName == "" {
		cfg.ClientName = "Finbridge"
	}
	if len(cfg.Products) == 0 {
		cfg.Products = []string{"transactions", "auth"}
	}
	if len(cfg.CountryCodes) == 0 {
		cfg.CountryCodes = []string{"US"}
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}

	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    environmentURL(cfg.Environment),
		cfg:        cfg,
	}, nil
}

func environmentURL(env string) string {
	switch env {
	case "production":
		return productionURL
	case "development":
		return developmentURL
	default:
		return sandboxURL
	}
}

// LinkTokenResponse is the result of a link-token create call.
type LinkTokenResponse struct {
	LinkToken  string `json:"link_token"`
	Expiration string `json:"expiration"`
}

// ExchangeResponse is the result of a public-token exchange.
type ExchangeResponse struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
}

// Balances carries an account's balance fields.
type Balances struct {
	Available       *float64 `json:"available"`
	Current         *float64 `json:"current"`
	Limit           *float64 `json:"limit"`
	ISOCurrencyCode string   `json:"iso_currency_code"`
}

// Account is one account as reported by the rail.
type Account struct {
	AccountID     string   `json:"account_id"`
	Name          string   `json:"name"`
	Mask          string   `json:"mask"`
	OfficialName  string   `json:"official_name"`
	Type          string   `json:"type"`
	Subtype       string   `json:"subtype"`
	InstitutionID string   `json:"institution_id,omitempty"`
	Balances      Balances `json:"balances"`
}

// Transaction is one ledger entry as reported by the rail.
type Transaction struct {
	TransactionID   string         `json:"transaction_id"`
	AccountID       string         `json:"account_id"`
	Amount          float64        `json:"amount"`
	Date            string         `json:"date"` // YYYY-MM-DD
	Name            string         `json:"name"`
	MerchantName    string         `json:"merchant_name"`
	PaymentChannel  string         `json:"payment_channel"`
	Category        []string       `json:"category"`
	CategoryID      string         `json:"category_id"`
	Location        map[string]any `json:"location"`
	PaymentMeta     map[string]any `json:"payment_meta"`
	ISOCurrencyCode string         `json:"iso_currency_code"`
	Pending         bool           `json:"pending"`
}

// TransactionsResponse is the result of a windowed transaction pull.
type TransactionsResponse struct {
	Accounts          []Account     `json:"accounts"`
	Transactions      []Transaction `json:"transactions"`
	TotalTransactions int           `json:"total_transactions"`
}

// Institution describes a financial institution.
type Institution struct {
	InstitutionID string `json:"institution_id"`
	Name          string `json:"name"`
}

type apiError struct {
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// post sends a JSON body with credentials injected and decodes the reply
// into out.
func (c *Client) post(ctx context.Context, path string, body map[string]any, out any) error {
	body["client_id"] = c.cfg.ClientID
	body["secret"] = c.cfg.Secret

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if err := json.Unmarshal(raw, &apiErr); err != nil || apiErr.ErrorCode == "" {
			return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(raw))
		}
		return fmt.Errorf("API error (status %d): %s - %s", resp.StatusCode, apiErr.ErrorCode, apiErr.ErrorMessage)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// CreateLinkToken issues a link token for starting the link flow.
func (c *Client) CreateLinkToken(ctx context.Context, clientUserID, redirectURI string) (*LinkTokenResponse, error) {
	body := map[string]any{
		"user":          map[string]string{"client_user_id": clientUserID},
		"client_name":   c.cfg.ClientName,
		"products":      c.cfg.Products,
		"country_codes": c.cfg.CountryCodes,
		"language":      c.cfg.Language,
	}
	if c.cfg.WebhookURL != "" {
		body["webhook"] = c.cfg.WebhookURL
	}
	if redirectURI != "" {
		body["redirect_uri"] = redirectURI
	}

	var out LinkTokenResponse
	if err := c.post(ctx, "/link/token/create", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExchangePublicToken trades a public token for a persistent access token
// and the rail item id.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResponse, error) {
	var out ExchangeResponse
	if err := c.post(ctx, "/item/public_token/exchange", map[string]any{"public_token": publicToken}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAccounts fetches the full current account list for an access token.
func (c *Client) GetAccounts(ctx context.Context, accessToken string) ([]Account, error) {
	var out struct {
		Accounts []Account `json:"accounts"`
	}
	if err := c.post(ctx, "/accounts/get", map[string]any{"access_token": accessToken}, &out); err != nil {
		return nil, err
	}
	return out.Accounts, nil
}

// GetTransactions fetches transactions in [startDate, endDate], paging
// through the rail's offset windowing until all are collected.
func (c *Client) GetTransactions(ctx context.Context, accessToken, startDate, endDate string) (*TransactionsResponse, error) {
	const pageSize = 100

	var result TransactionsResponse
	offset := 0
	for {
		var page TransactionsResponse
		body := map[string]any{
			"access_token": accessToken,
			"start_date":   startDate,
			"end_date":     endDate,
			"options":      map[string]any{"count": pageSize, "offset": offset},
		}
		if err := c.post(ctx, "/transactions/get", body, &page); err != nil {
			return nil, err
		}

		if offset == 0 {
			result.Accounts = page.Accounts
			result.TotalTransactions = page.TotalTransactions
		}
		result.Transactions = append(result.Transactions, page.Transactions...)

		offset += len(page.Transactions)
		if offset >= page.TotalTransactions || len(page.Transactions) == 0 {
			break
		}
	}
	return &result, nil
}

// GetInstitution looks up institution details by id.
func (c *Client) GetInstitution(ctx context.Context, institutionID string) (*Institution, error) {
	var out struct {
		Institution Institution `json:"institution"`
	}
	body := map[string]any{
		"institution_id": institutionID,
		"country_codes":  c.cfg.CountryCodes,
	}
	if err := c.post(ctx, "/institutions/get_by_id", body, &out); err != nil {
		return nil, err
	}
	return &out.Institution, nil
}

// RemoveItem invalidates the access token at the rail.
func (c *Client) RemoveItem(ctx context.Context, accessToken string) error {
	return c.post(ctx, "/item/remove", map[string]any{"access_token": accessToken}, nil)
}
