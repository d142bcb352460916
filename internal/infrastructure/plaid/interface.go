package plaid

import (
	"context"
)

// ClientInterface defines the methods required from the banking
// aggregation API client. Implementations may be the real HTTP client or
// stubs for testing.
type ClientInterface interface {
	CreateLinkToken(ctx context.Context, clientUserID, redirectURI string) (*LinkTokenResponse, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResponse, error)
	GetAccounts(ctx context.Context, accessToken string) ([]Account, error)
	GetTransactions(ctx context.Context, accessToken, startDate, endDate string) (*TransactionsResponse, error)
	GetInstitution(ctx context.Context, institutionID string) (*Institution, error)
	RemoveItem(ctx context.Context, accessToken string) error
}
