// Package payment provides the provider-agnostic payment core: the adapter
// contract, the provider registry, and the reconciliation service that owns
// Payment, Refund and PaymentMethod records.
package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the internal payment status shared by all providers.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
	StatusCanceled   Status = "canceled"
)

// Provider identifies a payment rail.
type Provider string

const (
	ProviderStripe Provider = "stripe"
	ProviderPayPal Provider = "paypal"
	ProviderPlaid  Provider = "plaid"
	ProviderACH    Provider = "ach"
)

// MethodType classifies a stored payment instrument.
type MethodType string

const (
	MethodCreditCard    MethodType = "credit_card"
	MethodDebitCard     MethodType = "debit_card"
	MethodBankTransfer  MethodType = "bank_transfer"
	MethodDigitalWallet MethodType = "digital_wallet"
	MethodOther         MethodType = "other"
)

// Payment is one attempted movement of funds through a specific provider.
// ExternalID is the provider-assigned id and is immutable once set.
type Payment struct {
	ID               uuid.UUID       `json:"id"`
	ExternalID       string          `json:"externalId"`
	UserID           uuid.UUID       `json:"userId"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           Status          `json:"status"`
	Provider         Provider        `json:"provider"`
	Method           *MethodType     `json:"method,omitempty"`
	Description      string          `json:"description,omitempty"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
	ProviderResponse map[string]any  `json:"providerResponse,omitempty"`
	ErrorMessage     string          `json:"errorMessage,omitempty"`
	ErrorCode        string          `json:"errorCode,omitempty"`
	IsTest           bool            `json:"isTest"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Cancellable reports whether the payment may still be canceled locally.
func (p *Payment) Cancellable() bool {
	return p.Status == StatusPending || p.Status == StatusProcessing
}

// Refund is a reduction against exactly one completed payment.
// Currency is always inherited from the parent payment.
type Refund struct {
	ID               uuid.UUID       `json:"id"`
	PaymentID        uuid.UUID       `json:"paymentId"`
	ExternalID       string          `json:"externalId"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           Status          `json:"status"`
	Reason           string          `json:"reason,omitempty"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
	ProviderResponse map[string]any  `json:"providerResponse,omitempty"`
	ErrorMessage     string          `json:"errorMessage,omitempty"`
	ErrorCode        string          `json:"errorCode,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Method is a tokenized, reusable instrument owned by a user for one
// provider. Deletion is always a soft delete via IsActive.
type Method struct {
	ID               uuid.UUID      `json:"id"`
	UserID           uuid.UUID      `json:"userId"`
	Provider         Provider       `json:"provider"`
	Type             MethodType     `json:"type"`
	Token            string         `json:"-"`
	LastFour         string         `json:"lastFour,omitempty"`
	ExpiryMonth      string         `json:"expiryMonth,omitempty"`
	ExpiryYear       string         `json:"expiryYear,omitempty"`
	IsDefault        bool           `json:"isDefault"`
	IsActive         bool           `json:"isActive"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	ProviderResponse map[string]any `json:"-"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// CreatePaymentParams carries caller input for a new payment.
type CreatePaymentParams struct {
	Amount      decimal.Decimal
	Currency    string
	Provider    Provider
	Method      *MethodType
	Description string
	Metadata    map[string]any
	ReturnURL   string
	CancelURL   string
	IsTest      bool
}

// CreateRefundParams carries caller input for a new refund.
// A nil Amount means a full refund of the parent payment's amount.
type CreateRefundParams struct {
	PaymentID uuid.UUID
	Amount    *decimal.Decimal
	Reason    string
	Metadata  map[string]any
}

// CreateMethodParams carries caller input for a new stored instrument.
type CreateMethodParams struct {
	Provider    Provider
	Type        MethodType
	Token       string
	LastFour    string
	ExpiryMonth string
	ExpiryYear  string
	IsDefault   bool
	Metadata    map[string]any
}
