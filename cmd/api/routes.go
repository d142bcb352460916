package main

import (
	"log"
	"net/http"

	httphandlers "finbridge/internal/interfaces/http"
	"finbridge/internal/shared/config"
	"finbridge/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", httphandlers.HandleHealth)

	// Provider webhooks are server-to-server and unauthenticated
	mux.HandleFunc("/api/banking/webhook", deps.BankingHandler.HandleWebhook)

	// Protected routes
	authMiddleware := middleware.Auth(deps.JWT)

	// Payments
	mux.Handle("/api/payments", authMiddleware(http.HandlerFunc(deps.PaymentHandler.HandlePayments)))
	mux.Handle("/api/payments/{id}", authMiddleware(http.HandlerFunc(deps.PaymentHandler.HandlePayment)))
	mux.Handle("/api/payments/{id}/sync", authMiddleware(http.HandlerFunc(deps.PaymentHandler.HandleSyncPayment)))
	mux.Handle("/api/payments/{id}/cancel", authMiddleware(http.HandlerFunc(deps.PaymentHandler.HandleCancelPayment)))
	mux.Handle("/api/payments/{id}/refunds", authMiddleware(http.HandlerFunc(deps.PaymentHandler.HandleRefunds)))

	// Payment methods
	mux.Handle("/api/payment-methods", authMiddleware(http.HandlerFunc(deps.PaymentHandler.HandleMethods)))
	mux.Handle("/api/payment-methods/default", authMiddleware(http.HandlerFunc(deps.PaymentHandler.HandleDefaultMethod)))
	mux.Handle("/api/payment-methods/{id}", authMiddleware(http.HandlerFunc(deps.PaymentHandler.HandleMethod)))
	mux.Handle("/api/payment-methods/{id}/default", authMiddleware(http.HandlerFunc(deps.PaymentHandler.HandleSetDefaultMethod)))

	// Banking
	mux.Handle("/api/banking/link/token", authMiddleware(http.HandlerFunc(deps.BankingHandler.HandleCreateLinkToken)))
	mux.Handle("/api/banking/link/exchange", authMiddleware(http.HandlerFunc(deps.BankingHandler.HandleExchangeToken)))
	mux.Handle("/api/banking/items", authMiddleware(http.HandlerFunc(deps.BankingHandler.HandleItems)))
	mux.Handle("/api/banking/items/{id}", authMiddleware(http.HandlerFunc(deps.BankingHandler.HandleItem)))
	mux.Handle("/api/banking/items/{id}/accounts", authMiddleware(http.HandlerFunc(deps.BankingHandler.HandleItemAccounts)))
	mux.Handle("/api/banking/items/{id}/sync", authMiddleware(http.HandlerFunc(deps.BankingHandler.HandleSyncAccounts)))
	mux.Handle("/api/banking/items/{id}/transactions/sync", authMiddleware(http.HandlerFunc(deps.BankingHandler.HandleSyncTransactions)))
	mux.Handle("/api/banking/accounts/{id}/transactions", authMiddleware(http.HandlerFunc(deps.BankingHandler.HandleAccountTransactions)))

	// Push notification device tokens
	mux.Handle("/api/devices", authMiddleware(http.HandlerFunc(deps.DeviceHandler.HandleDevices)))

	// Apply global middleware
	handler := middleware.Logging(middleware.CORS(cfg.Server.AllowedHosts)(mux))

	// Instrument requests when the collector is configured
	if cfg.Telemetry.Enabled {
		handler = middleware.Telemetry(handler)
	}

	// Apply security middleware when TLS is enabled
	if cfg.TLS.Enabled {
		handler = middleware.HSTS(middleware.SecureCookies(handler))
		log.Println("TLS security middleware enabled (HSTS + SecureCookies)")
	}

	return handler
}
