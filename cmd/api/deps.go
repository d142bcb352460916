package main

import (
	"context"
	"log"

	"finbridge/internal/domain/banking"
	"finbridge/internal/domain/notification"
	"finbridge/internal/domain/payment"
	"finbridge/internal/infrastructure/crypto"
	"finbridge/internal/infrastructure/firebase"
	"finbridge/internal/infrastructure/paypal"
	"finbridge/internal/infrastructure/plaid"
	"finbridge/internal/infrastructure/plaidach"
	"finbridge/internal/infrastructure/postgres"
	"finbridge/internal/infrastructure/stripe"
	httphandlers "finbridge/internal/interfaces/http"
	"finbridge/internal/shared/auth"
	"finbridge/internal/shared/config"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	// Handlers
	PaymentHandler *httphandlers.PaymentHandler
	BankingHandler *httphandlers.BankingHandler
	DeviceHandler  *httphandlers.DeviceHandler

	// Auth
	JWT *auth.JWT

	// For the scheduler job provider
	BankingService *banking.Service
	ItemRepo       *postgres.ItemRepository
}

// NewDependencies initializes all application dependencies.
func NewDependencies(cfg *config.Config) (*Dependencies, error) {
	ctx := context.Background()

	// Connect to database
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	log.Println("Connected to database")

	// Initialize encryptor
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	paymentRepo := postgres.NewPaymentRepository(db)
	methodRepo := postgres.NewPaymentMethodRepository(db)
	itemRepo := postgres.NewItemRepository(db, encryptor)
	accountRepo := postgres.NewAccountRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	deviceRepo := postgres.NewDeviceTokenRepository(db)

	// Initialize push notifications if configured. Failed tokens are
	// pruned from the device registry.
	var notifier *notification.Service
	if cfg.Firebase.CredentialsFile != "" {
		messenger, err := firebase.NewClient(ctx, cfg.Firebase.CredentialsFile, deviceRepo.Remove)
		if err != nil {
			log.Printf("Warning: Failed to initialize Firebase messaging: %v", err)
		} else {
			notifier = notification.NewService(messenger, deviceRepo)
		}
	} else {
		log.Println("Firebase messaging not configured, push notifications disabled")
	}

	// Initialize banking aggregation client and service
	plaidClient, err := plaid.NewClient(plaid.Config{
		ClientID:    cfg.Plaid.ClientID,
		Secret:      cfg.Plaid.Secret,
		Environment: cfg.Plaid.Environment,
		WebhookURL:  cfg.Plaid.WebhookURL,
	})
	if err != nil {
		return nil, err
	}
	bankingService := banking.NewService(plaidClient, itemRepo, accountRepo, transactionRepo, notifier)

	// Initialize payment provider registry
	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}
	paymentService := payment.NewService(registry, paymentRepo, methodRepo)

	return &Dependencies{
		DB:             db,
		PaymentHandler: httphandlers.NewPaymentHandler(paymentService),
		BankingHandler: httphandlers.NewBankingHandler(bankingService),
		DeviceHandler:  httphandlers.NewDeviceHandler(deviceRepo),
		JWT:            auth.NewJWT(cfg.JWT.Secret),
		BankingService: bankingService,
		ItemRepo:       itemRepo,
	}, nil
}

// buildRegistry registers every configured payment provider. Stripe is
// the default when present. The ACH adapter answers to both the "ach"
// and "plaid" provider names.
func buildRegistry(cfg *config.Config) (*payment.Registry, error) {
	registry := payment.NewRegistry()

	if cfg.Stripe.APIKey != "" {
		err := registry.Register(payment.ProviderStripe, stripe.NewClient(), map[string]string{
			"api_key": cfg.Stripe.APIKey,
		}, true)
		if err != nil {
			return nil, err
		}
		log.Println("Registered payment provider: stripe (default)")
	}

	if cfg.PayPal.ClientID != "" && cfg.PayPal.ClientSecret != "" {
		err := registry.Register(payment.ProviderPayPal, paypal.NewClient(), map[string]string{
			"client_id":     cfg.PayPal.ClientID,
			"client_secret": cfg.PayPal.ClientSecret,
			"mode":          cfg.PayPal.Mode,
		}, false)
		if err != nil {
			return nil, err
		}
		log.Println("Registered payment provider: paypal")
	}

	if cfg.Plaid.ClientID != "" && cfg.Plaid.Secret != "" {
		achConfig := map[string]string{
			"client_id":   cfg.Plaid.ClientID,
			"secret":      cfg.Plaid.Secret,
			"environment": cfg.Plaid.Environment,
		}
		achClient := plaidach.NewClient()
		if err := registry.Register(payment.ProviderACH, achClient, achConfig, false); err != nil {
			return nil, err
		}
		if err := registry.Register(payment.ProviderPlaid, achClient, achConfig, false); err != nil {
			return nil, err
		}
		log.Println("Registered payment provider: ach")
	}

	return registry, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
