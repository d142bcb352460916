// Package http exposes the REST surface: payment operations, banking
// links and sync, and the provider webhook endpoint.
package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"finbridge/internal/domain/banking"
	"finbridge/internal/domain/payment"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses. Unknown errors are
// logged and reported as a generic 500 so internals never leak.
func writeError(w http.ResponseWriter, err error) {
	var ruleErr *payment.RuleError
	var configErr *payment.ConfigError
	var providerErr *payment.ProviderError

	switch {
	case errors.Is(err, payment.ErrPaymentNotFound),
		errors.Is(err, payment.ErrRefundNotFound),
		errors.Is(err, payment.ErrMethodNotFound),
		errors.Is(err, banking.ErrItemNotFound),
		errors.Is(err, banking.ErrAccountNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, payment.ErrNotOwner), errors.Is(err, banking.ErrNotOwner):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.As(err, &ruleErr), errors.As(err, &configErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &providerErr):
		http.Error(w, providerErr.Error(), http.StatusBadGateway)
	default:
		log.Printf("Unhandled error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
