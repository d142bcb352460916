package payment

import (
	"errors"
	"fmt"
)

var (
	// ErrPaymentNotFound is returned when a payment id resolves to nothing.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrRefundNotFound is returned when a refund id resolves to nothing.
	ErrRefundNotFound = errors.New("refund not found")
	// ErrMethodNotFound is returned when a payment method id resolves to nothing.
	ErrMethodNotFound = errors.New("payment method not found")
	// ErrNotOwner is returned when the requester does not own the record.
	ErrNotOwner = errors.New("record does not belong to requester")
)

// RuleError is a business-rule violation (e.g. canceling a completed
// payment). The HTTP layer maps it to 400.
type RuleError struct {
	Reason string
}

func (e *RuleError) Error() string {
	return e.Reason
}

// NewRuleError builds a RuleError with a formatted reason.
func NewRuleError(format string, args ...any) *RuleError {
	return &RuleError{Reason: fmt.Sprintf(format, args...)}
}

// ConfigError reports missing or invalid adapter credentials. It is fatal
// at registration time and never retried.
type ConfigError struct {
	Provider Provider
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s configuration error: %s", e.Provider, e.Reason)
}

// ProviderError wraps any transport-level or remote-API failure from a
// rail. Adapters never let rail-specific error types cross this boundary.
type ProviderError struct {
	Provider Provider
	Message  string
	Code     string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s error: %s (code: %s)", e.Provider, e.Message, e.Code)
	}
	return fmt.Sprintf("%s error: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err into a ProviderError for the given rail.
func NewProviderError(provider Provider, message, code string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Message: message, Code: code, Err: err}
}

// IsProviderError reports whether err is (or wraps) a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
