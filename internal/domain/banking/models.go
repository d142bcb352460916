// Package banking provides the bank-link and sync domain: items, accounts
// and transactions pulled from the aggregation rail, plus webhook-driven
// reconciliation.
package banking

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrItemNotFound is returned when an item id resolves to nothing.
	ErrItemNotFound = errors.New("item not found")
	// ErrAccountNotFound is returned when an account id resolves to nothing.
	ErrAccountNotFound = errors.New("account not found")
	// ErrNotOwner is returned when the requester does not own the item.
	ErrNotOwner = errors.New("item does not belong to requester")
)

// Item is one authorized connection to a financial institution for one
// user. One item can carry multiple accounts (e.g. checking + credit card
// from the same bank). ProviderItemID is unique system-wide.
//
// AccessToken is sensitive; the repository encrypts it at rest.
type Item struct {
	ID              uuid.UUID      `json:"id"`
	UserID          uuid.UUID      `json:"userId"`
	ProviderItemID  string         `json:"itemId"`
	AccessToken     string         `json:"-"`
	InstitutionID   string         `json:"institutionId,omitempty"`
	InstitutionName string         `json:"institutionName,omitempty"`
	IsActive        bool           `json:"isActive"`
	Error           map[string]any `json:"error,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	LastSyncAt      *time.Time     `json:"lastSyncAt,omitempty"`
}

// Account is one financial account under an item, keyed by the rail's
// account id so repeated syncs upsert instead of duplicate.
type Account struct {
	ID                uuid.UUID        `json:"id"`
	ItemID            uuid.UUID        `json:"itemId"`
	ProviderAccountID string           `json:"accountId"`
	Name              string           `json:"name"`
	Mask              string           `json:"mask,omitempty"`
	OfficialName      string           `json:"officialName,omitempty"`
	Type              string           `json:"type"`
	Subtype           string           `json:"subtype,omitempty"`
	AvailableBalance  *decimal.Decimal `json:"availableBalance,omitempty"`
	CurrentBalance    *decimal.Decimal `json:"currentBalance,omitempty"`
	CreditLimit       *decimal.Decimal `json:"creditLimit,omitempty"`
	CurrencyCode      string           `json:"currencyCode,omitempty"`
	IsActive          bool             `json:"isActive"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
	LastBalanceUpdate *time.Time       `json:"lastBalanceUpdate,omitempty"`
}

// Transaction is one ledger entry under an account, keyed by the rail's
// transaction id.
type Transaction struct {
	ID                    uuid.UUID       `json:"id"`
	AccountID             uuid.UUID       `json:"accountId"`
	ProviderTransactionID string          `json:"transactionId"`
	Amount                decimal.Decimal `json:"amount"`
	Date                  time.Time       `json:"date"`
	Name                  string          `json:"name"`
	MerchantName          string          `json:"merchantName,omitempty"`
	PaymentChannel        string          `json:"paymentChannel,omitempty"`
	PrimaryCategory       string          `json:"primaryCategory,omitempty"`
	DetailedCategory      string          `json:"detailedCategory,omitempty"`
	Location              map[string]any  `json:"location,omitempty"`
	PaymentMeta           map[string]any  `json:"paymentMeta,omitempty"`
	CurrencyCode          string          `json:"currencyCode,omitempty"`
	Pending               bool            `json:"pending"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
}

// LinkResult reports the outcome of a link attempt. Re-linking an already
// linked item yields Success=false with the existing item id, not an error.
type LinkResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ItemID  string `json:"itemId,omitempty"`
}

// SyncResult aggregates counters for one account or transaction sync.
type SyncResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Found   int      `json:"found"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}
