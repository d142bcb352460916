package payment

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// Request is the provider-neutral input for creating a payment.
type Request struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	Metadata    map[string]string
}

// Response is the provider-neutral result of any adapter operation.
// Raw retains the unmodified provider payload for audit and debugging.
type Response struct {
	ExternalID string
	Status     Status
	Amount     decimal.Decimal
	Currency   string
	Provider   Provider
	Raw        map[string]any
}

// Adapter is the capability contract every payment rail implements.
// Each adapter exclusively owns the mapping from its rail's native status
// vocabulary to Status, and its own credential/session lifecycle.
//
// Any remote failure is surfaced as a *ProviderError; adapters must not
// leak rail-specific error types.
type Adapter interface {
	// Provider returns the rail identity this adapter serves.
	Provider() Provider

	// Initialize validates credentials and establishes any session state
	// needed for subsequent calls. A missing credential is a *ConfigError.
	Initialize(config map[string]string) error

	// CreatePayment submits the request to the rail and returns the
	// provider-assigned external id with a normalized status.
	CreatePayment(ctx context.Context, req Request) (*Response, error)

	// GetPayment re-fetches the current remote state of a payment.
	GetPayment(ctx context.Context, externalID string) (*Response, error)

	// CancelPayment cancels a payment that the rail still reports as
	// cancellable. Rails without a cancel primitive return the current
	// state unchanged for pending payments and a precondition error for
	// already-advanced ones.
	CancelPayment(ctx context.Context, externalID string) (*Response, error)

	// RefundPayment refunds a captured payment, partially when amount is
	// non-nil. On success the returned status is always StatusRefunded.
	RefundPayment(ctx context.Context, externalID string, amount *decimal.Decimal) (*Response, error)
}

// Registry routes operations to registered adapters. It is a pure routing
// facade: no persistence, no business-state validation, no retries.
type Registry struct {
	mu          sync.RWMutex
	adapters    map[Provider]Adapter
	defaultRail Provider
	hasDefault  bool
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[Provider]Adapter)}
}

// Register initializes the adapter with config and adds it to the registry.
// The first registered adapter becomes the default unless a later
// registration asks for default status explicitly.
func (r *Registry) Register(providerType Provider, adapter Adapter, config map[string]string, setAsDefault bool) error {
	if err := adapter.Initialize(config); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.adapters[providerType] = adapter
	if setAsDefault || !r.hasDefault {
		r.defaultRail = providerType
		r.hasDefault = true
	}
	return nil
}

// Get returns the adapter for providerType, or the default adapter when
// providerType is empty. An unregistered provider is a *ConfigError, not a
// runtime fallback.
func (r *Registry) Get(providerType Provider) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if providerType == "" {
		if !r.hasDefault {
			return nil, &ConfigError{Reason: "no default payment provider configured"}
		}
		providerType = r.defaultRail
	}

	adapter, ok := r.adapters[providerType]
	if !ok {
		return nil, &ConfigError{Provider: providerType, Reason: "provider not registered"}
	}
	return adapter, nil
}

// Default returns the default provider tag, if one is configured.
func (r *Registry) Default() (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultRail, r.hasDefault
}

// CreatePayment routes a create to the named (or default) provider.
func (r *Registry) CreatePayment(ctx context.Context, req Request, providerType Provider) (*Response, error) {
	adapter, err := r.Get(providerType)
	if err != nil {
		return nil, err
	}
	return adapter.CreatePayment(ctx, req)
}

// GetPayment routes a status fetch to the named (or default) provider.
func (r *Registry) GetPayment(ctx context.Context, externalID string, providerType Provider) (*Response, error) {
	adapter, err := r.Get(providerType)
	if err != nil {
		return nil, err
	}
	return adapter.GetPayment(ctx, externalID)
}

// CancelPayment routes a cancel to the named (or default) provider.
func (r *Registry) CancelPayment(ctx context.Context, externalID string, providerType Provider) (*Response, error) {
	adapter, err := r.Get(providerType)
	if err != nil {
		return nil, err
	}
	return adapter.CancelPayment(ctx, externalID)
}

// RefundPayment routes a refund to the named (or default) provider.
func (r *Registry) RefundPayment(ctx context.Context, externalID string, amount *decimal.Decimal, providerType Provider) (*Response, error) {
	adapter, err := r.Get(providerType)
	if err != nil {
		return nil, err
	}
	return adapter.RefundPayment(ctx, externalID, amount)
}
