package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"finbridge/internal/domain/banking"
	"finbridge/internal/domain/payment"
	"finbridge/internal/infrastructure/crypto"
	"finbridge/internal/infrastructure/paypal"
	"finbridge/internal/infrastructure/plaid"
	"finbridge/internal/infrastructure/plaidach"
	"finbridge/internal/infrastructure/postgres"
	"finbridge/internal/infrastructure/stripe"
	"finbridge/internal/shared/config"
)

const usage = `Finbridge Admin CLI - Management commands for the Finbridge API

Usage:
  admin <command> [options]

Commands:
  reconcile-payments   Re-sync non-terminal payments against their providers
  sync-items           Sync accounts and transactions for linked bank items

Examples:
  # Reconcile up to 500 pending/processing payments
  admin reconcile-payments --limit=500

  # Reconcile with higher concurrency
  admin reconcile-payments --limit=500 --workers=8

  # Sync every active item
  admin sync-items --all

  # Sync a single item with a 90 day transaction window
  admin sync-items --item-id=<uuid> --days=90

  # Run with timeout
  admin sync-items --all --timeout=1h
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "reconcile-payments":
		runReconcilePayments(os.Args[2:])
	case "sync-items":
		runSyncItems(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage)
		os.Exit(1)
	}
}

func runReconcilePayments(args []string) {
	fs := flag.NewFlagSet("reconcile-payments", flag.ExitOnError)

	limit := fs.Int("limit", 200, "Maximum number of payments to reconcile")
	workers := fs.Int("workers", 4, "Number of concurrent workers")
	timeoutStr := fs.String("timeout", "30m", "Timeout for the operation (e.g., 5m, 1h)")

	fs.Usage = func() {
		fmt.Println("Usage: admin reconcile-payments [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Println("  admin reconcile-payments")
		fmt.Println("  admin reconcile-payments --limit=500 --workers=8 --timeout=1h")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database")

	paymentRepo := postgres.NewPaymentRepository(db)
	methodRepo := postgres.NewPaymentMethodRepository(db)

	registry, err := buildRegistry(cfg)
	if err != nil {
		log.Fatalf("Failed to build provider registry: %v", err)
	}
	service := payment.NewService(registry, paymentRepo, methodRepo)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pending, err := paymentRepo.ListPaymentsByStatus(ctx, []payment.Status{
		payment.StatusPending, payment.StatusProcessing,
	}, *limit)
	if err != nil {
		log.Fatalf("Failed to list payments: %v", err)
	}

	if len(pending) == 0 {
		log.Println("No payments to reconcile")
		return
	}

	log.Printf("Reconciling %d payment(s) with %d workers", len(pending), *workers)
	startTime := time.Now()

	var mu sync.Mutex
	var synced, changed, failed int

	jobs := make(chan *payment.Payment)
	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				before := p.Status
				updated, err := service.SyncPaymentStatus(ctx, p.ID)
				mu.Lock()
				if err != nil {
					failed++
					log.Printf("Payment %s: sync failed: %v", p.ID, err)
				} else {
					synced++
					if updated.Status != before {
						changed++
						log.Printf("Payment %s: %s -> %s", p.ID, before, updated.Status)
					}
				}
				mu.Unlock()
			}
		}()
	}

	for _, p := range pending {
		select {
		case <-ctx.Done():
			log.Printf("Timeout reached, stopping submission")
		case jobs <- p:
			continue
		}
		break
	}
	close(jobs)
	wg.Wait()

	fmt.Printf("\n=== Reconciliation result ===\n")
	fmt.Printf("  Payments synced:   %d\n", synced)
	fmt.Printf("  Statuses changed:  %d\n", changed)
	fmt.Printf("  Failures:          %d\n", failed)

	log.Printf("Reconciliation completed in %v", time.Since(startTime))
}

func runSyncItems(args []string) {
	fs := flag.NewFlagSet("sync-items", flag.ExitOnError)

	itemIDStr := fs.String("item-id", "", "Item ID to sync")
	allItems := fs.Bool("all", false, "Sync all active items")
	days := fs.Int("days", 30, "Transaction window in days")
	workers := fs.Int("workers", 4, "Number of concurrent workers")
	timeoutStr := fs.String("timeout", "30m", "Timeout for the operation (e.g., 5m, 1h)")

	fs.Usage = func() {
		fmt.Println("Usage: admin sync-items [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Println("  admin sync-items --item-id=<uuid>")
		fmt.Println("  admin sync-items --all --days=90 --workers=8")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *itemIDStr == "" && !*allItems {
		fmt.Println("Error: must specify --item-id or --all")
		fs.Usage()
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database")

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		log.Fatalf("Failed to create encryptor: %v", err)
	}

	itemRepo := postgres.NewItemRepository(db, encryptor)
	accountRepo := postgres.NewAccountRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)

	plaidClient, err := plaid.NewClient(plaid.Config{
		ClientID:    cfg.Plaid.ClientID,
		Secret:      cfg.Plaid.Secret,
		Environment: cfg.Plaid.Environment,
		WebhookURL:  cfg.Plaid.WebhookURL,
	})
	if err != nil {
		log.Fatalf("Failed to create banking client: %v", err)
	}
	service := banking.NewService(plaidClient, itemRepo, accountRepo, transactionRepo, nil)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var items []*banking.Item
	if *allItems {
		items, err = itemRepo.ListActive(ctx)
		if err != nil {
			log.Fatalf("Failed to list active items: %v", err)
		}
		log.Printf("Found %d active item(s)", len(items))
	} else {
		id, err := uuid.Parse(*itemIDStr)
		if err != nil {
			log.Fatalf("Invalid item ID %q: %v", *itemIDStr, err)
		}
		item, err := itemRepo.GetByID(ctx, id)
		if err != nil {
			log.Fatalf("Failed to load item: %v", err)
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		log.Println("No items to sync")
		return
	}

	log.Printf("Syncing %d item(s) with %d workers", len(items), *workers)
	startTime := time.Now()

	jobs := make(chan *banking.Item)
	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				syncItem(ctx, service, item, *days)
			}
		}()
	}

	for _, item := range items {
		select {
		case <-ctx.Done():
			log.Printf("Timeout reached, stopping submission")
		case jobs <- item:
			continue
		}
		break
	}
	close(jobs)
	wg.Wait()

	log.Printf("Item sync completed in %v", time.Since(startTime))
}

func syncItem(ctx context.Context, service *banking.Service, item *banking.Item, days int) {
	accounts, err := service.SyncAccounts(ctx, item.ID)
	if err != nil {
		log.Printf("Item %s: account sync failed: %v", item.ID, err)
		return
	}
	log.Printf("Item %s: %s", item.ID, accounts.Message)

	transactions, err := service.SyncTransactions(ctx, item.ID, days)
	if err != nil {
		log.Printf("Item %s: transaction sync failed: %v", item.ID, err)
		return
	}
	log.Printf("Item %s: %s", item.ID, transactions.Message)
}

// buildRegistry mirrors the API server's provider registration.
func buildRegistry(cfg *config.Config) (*payment.Registry, error) {
	registry := payment.NewRegistry()

	if cfg.Stripe.APIKey != "" {
		err := registry.Register(payment.ProviderStripe, stripe.NewClient(), map[string]string{
			"api_key": cfg.Stripe.APIKey,
		}, true)
		if err != nil {
			return nil, err
		}
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
	}

	return registry, nil
}
