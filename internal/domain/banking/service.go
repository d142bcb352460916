package banking

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finbridge/internal/domain/notification"
	"finbridge/internal/infrastructure/plaid"
)

const defaultSyncWindowDays = 30

// Service coordinates linking, syncing and webhook-driven reconciliation
// between the aggregation rail and local persistence.
type Service struct {
	client       plaid.ClientInterface
	items        ItemRepository
	accounts     AccountRepository
	transactions TransactionRepository
	notifier     *notification.Service
}

// NewService creates the banking service. notifier may be nil; user
// notifications are then skipped.
func NewService(client plaid.ClientInterface, items ItemRepository, accounts AccountRepository, transactions TransactionRepository, notifier *notification.Service) *Service {
	return &Service{
		client:       client,
		items:        items,
		accounts:     accounts,
		transactions: transactions,
		notifier:     notifier,
	}
}

// CreateLinkToken issues a short-lived token to start the link flow on a
// client device.
func (s *Service) CreateLinkToken(ctx context.Context, userID uuid.UUID, redirectURI string) (*plaid.LinkTokenResponse, error) {
	token, err := s.client.CreateLinkToken(ctx, userID.String(), redirectURI)
	if err != nil {
		return nil, fmt.Errorf("failed to create link token: %w", err)
	}
	return token, nil
}

// LinkAccount exchanges a public token for a persistent access token and
// registers the institution connection. Linking the same institution
// connection twice is not an error: the existing item is reported back
// with Success=false.
func (s *Service) LinkAccount(ctx context.Context, userID uuid.UUID, publicToken string) (*LinkResult, error) {
	exchange, err := s.client.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange public token: %w", err)
	}

	existing, err := s.items.GetByProviderItemID(ctx, exchange.ItemID)
	if err == nil && existing != nil {
		log.Printf("User %s: item %s already linked", userID, exchange.ItemID)
		return &LinkResult{
			Success: false,
			Message: "This account is already linked",
			ItemID:  existing.ProviderItemID,
		}, nil
	}

	item := &Item{
		ID:             uuid.New(),
		UserID:         userID,
		ProviderItemID: exchange.ItemID,
		AccessToken:    exchange.AccessToken,
		IsActive:       true,
	}

	// Institution details are cosmetic; failures here must not block the
	// link.
	s.enrichInstitution(ctx, item)

	if err := s.items.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to persist item: %w", err)
	}

	if _, err := s.SyncAccounts(ctx, item.ID); err != nil {
		log.Printf("User %s: initial account sync for item %s failed: %v", userID, item.ProviderItemID, err)
	}

	log.Printf("User %s: linked item %s (%s)", userID, item.ProviderItemID, item.InstitutionName)
	return &LinkResult{
		Success: true,
		Message: "Account linked successfully",
		ItemID:  item.ProviderItemID,
	}, nil
}

func (s *Service) enrichInstitution(ctx context.Context, item *Item) {
	accounts, err := s.client.GetAccounts(ctx, item.AccessToken)
	if err != nil || len(accounts) == 0 {
		if err != nil {
			log.Printf("Item %s: institution lookup skipped, account fetch failed: %v", item.ProviderItemID, err)
		}
		return
	}

	institutionID := accounts[0].InstitutionID
	if institutionID == "" {
		return
	}
	item.InstitutionID = institutionID

	inst, err := s.client.GetInstitution(ctx, institutionID)
	if err != nil {
		log.Printf("Item %s: failed to fetch institution %s: %v", item.ProviderItemID, institutionID, err)
		return
	}
	item.InstitutionName = inst.Name
}

// GetItem returns one item after verifying ownership.
func (s *Service) GetItem(ctx context.Context, userID, itemID uuid.UUID) (*Item, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.UserID != userID {
		return nil, ErrNotOwner
	}
	return item, nil
}

// ListUserItems returns every item the user has linked.
func (s *Service) ListUserItems(ctx context.Context, userID uuid.UUID) ([]*Item, error) {
	return s.items.ListByUserID(ctx, userID)
}

// ListItemAccounts returns the accounts under one of the user's items.
func (s *Service) ListItemAccounts(ctx context.Context, userID, itemID uuid.UUID) ([]*Account, error) {
	item, err := s.GetItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	return s.accounts.ListByItemID(ctx, item.ID)
}

// ListAccountTransactions returns stored transactions for an account the
// user owns, newest first.
func (s *Service) ListAccountTransactions(ctx context.Context, userID, accountID uuid.UUID, limit int) ([]*Transaction, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	item, err := s.items.GetByID(ctx, account.ItemID)
	if err != nil {
		return nil, err
	}
	if item.UserID != userID {
		return nil, ErrNotOwner
	}
	return s.transactions.ListByAccountID(ctx, accountID, limit)
}

// SyncAccounts pulls the current account list from the rail and upserts
// it. An institution reporting zero accounts is a valid sync, not a
// failure. LastSyncAt is updated on every successful pull.
func (s *Service) SyncAccounts(ctx context.Context, itemID uuid.UUID) (*SyncResult, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	remote, err := s.client.GetAccounts(ctx, item.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch accounts for item %s: %w", item.ProviderItemID, err)
	}

	result := &SyncResult{Success: true, Found: len(remote)}
	now := time.Now().UTC()

	for _, ra := range remote {
		account := accountFromRemote(item.ID, ra, now)
		created, err := s.accounts.Upsert(ctx, account)
		if err != nil {
			log.Printf("Item %s: failed to upsert account %s: %v", item.ProviderItemID, ra.AccountID, err)
			result.Errors = append(result.Errors, fmt.Sprintf("account %s: %v", ra.AccountID, err))
			result.Skipped++
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	item.LastSyncAt = &now
	if err := s.items.Update(ctx, item); err != nil {
		log.Printf("Item %s: failed to record sync time: %v", item.ProviderItemID, err)
	}

	result.Message = fmt.Sprintf("Synced %d accounts (%d created, %d updated)", result.Found, result.Created, result.Updated)
	log.Printf("Item %s: %s", item.ProviderItemID, result.Message)
	return result, nil
}

func accountFromRemote(itemID uuid.UUID, ra plaid.Account, now time.Time) *Account {
	account := &Account{
		ItemID:            itemID,
		ProviderAccountID: ra.AccountID,
		Name:              ra.Name,
		Mask:              ra.Mask,
		OfficialName:      ra.OfficialName,
		Type:              ra.Type,
		Subtype:           ra.Subtype,
		CurrencyCode:      ra.Balances.ISOCurrencyCode,
		IsActive:          true,
		LastBalanceUpdate: &now,
	}
	if ra.Balances.Available != nil {
		v := decimal.NewFromFloat(*ra.Balances.Available)
		account.AvailableBalance = &v
	}
	if ra.Balances.Current != nil {
		v := decimal.NewFromFloat(*ra.Balances.Current)
		account.CurrentBalance = &v
	}
	if ra.Balances.Limit != nil {
		v := decimal.NewFromFloat(*ra.Balances.Limit)
		account.CreditLimit = &v
	}
	return account
}

// SyncTransactions pulls transactions for the trailing window and upserts
// them. days <= 0 defaults to 30. Transactions whose account was never
// synced locally are skipped with a warning rather than failing the run.
func (s *Service) SyncTransactions(ctx context.Context, itemID uuid.UUID, days int) (*SyncResult, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if days <= 0 {
		days = defaultSyncWindowDays
	}
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)

	remote, err := s.client.GetTransactions(ctx, item.AccessToken, start.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions for item %s: %w", item.ProviderItemID, err)
	}

	result := &SyncResult{Success: true, Found: len(remote.Transactions)}

	// Resolve rail account ids to local rows once per run.
	accountIDs := make(map[string]uuid.UUID)
	local, err := s.accounts.ListByItemID(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts for item %s: %w", item.ProviderItemID, err)
	}
	for _, a := range local {
		accountIDs[a.ProviderAccountID] = a.ID
	}

	for _, rt := range remote.Transactions {
		accountID, ok := accountIDs[rt.AccountID]
		if !ok {
			log.Printf("Item %s: skipping transaction %s, account %s not synced", item.ProviderItemID, rt.TransactionID, rt.AccountID)
			result.Skipped++
			continue
		}

		tx, err := transactionFromRemote(accountID, rt)
		if err != nil {
			log.Printf("Item %s: skipping transaction %s: %v", item.ProviderItemID, rt.TransactionID, err)
			result.Errors = append(result.Errors, fmt.Sprintf("transaction %s: %v", rt.TransactionID, err))
			result.Skipped++
			continue
		}

		created, err := s.transactions.Upsert(ctx, tx)
		if err != nil {
			log.Printf("Item %s: failed to upsert transaction %s: %v", item.ProviderItemID, rt.TransactionID, err)
			result.Errors = append(result.Errors, fmt.Sprintf("transaction %s: %v", rt.TransactionID, err))
			result.Skipped++
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	now := end
	item.LastSyncAt = &now
	if err := s.items.Update(ctx, item); err != nil {
		log.Printf("Item %s: failed to record sync time: %v", item.ProviderItemID, err)
	}

	result.Message = fmt.Sprintf("Synced %d transactions (%d created, %d updated, %d skipped)", result.Found, result.Created, result.Updated, result.Skipped)
	log.Printf("Item %s: %s", item.ProviderItemID, result.Message)
	return result, nil
}

func transactionFromRemote(accountID uuid.UUID, rt plaid.Transaction) (*Transaction, error) {
	date, err := time.Parse("2006-01-02", rt.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", rt.Date, err)
	}

	tx := &Transaction{
		AccountID:             accountID,
		ProviderTransactionID: rt.TransactionID,
		Amount:                decimal.NewFromFloat(rt.Amount),
		Date:                  date,
		Name:                  rt.Name,
		MerchantName:          rt.MerchantName,
		PaymentChannel:        rt.PaymentChannel,
		Location:              rt.Location,
		PaymentMeta:           rt.PaymentMeta,
		CurrencyCode:          rt.ISOCurrencyCode,
		Pending:               rt.Pending,
	}
	if len(rt.Category) > 0 {
		tx.PrimaryCategory = rt.Category[0]
	}
	if len(rt.Category) > 1 {
		tx.DetailedCategory = rt.Category[len(rt.Category)-1]
	}
	return tx, nil
}

// DeleteItem removes an item and everything under it. The rail-side
// token revocation is best effort; local deletion proceeds regardless.
func (s *Service) DeleteItem(ctx context.Context, userID, itemID uuid.UUID) error {
	item, err := s.GetItem(ctx, userID, itemID)
	if err != nil {
		return err
	}

	if err := s.client.RemoveItem(ctx, item.AccessToken); err != nil {
		log.Printf("Item %s: remote removal failed, deleting locally anyway: %v", item.ProviderItemID, err)
	}

	if err := s.items.Delete(ctx, item.ID); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	log.Printf("User %s: deleted item %s", userID, item.ProviderItemID)
	return nil
}

// reauthErrorCodes are the rail error codes that mean the user must go
// through the link flow again before the item can sync.
var reauthErrorCodes = map[string]bool{
	"ITEM_LOGIN_REQUIRED": true,
	"INVALID_CREDENTIALS": true,
}

// UpdateItemError records a rail-reported error on the item. Errors that
// require re-authentication also deactivate the item.
func (s *Service) UpdateItemError(ctx context.Context, providerItemID string, itemError map[string]any) error {
	item, err := s.items.GetByProviderItemID(ctx, providerItemID)
	if err != nil {
		return err
	}

	item.Error = itemError
	code, _ := itemError["error_code"].(string)
	if reauthErrorCodes[code] {
		item.IsActive = false
		log.Printf("Item %s: deactivated, re-authentication required (%s)", providerItemID, code)
	}

	return s.items.Update(ctx, item)
}

// ProcessWebhook classifies and dispatches one rail webhook. Dispatch
// failures are logged but never returned: the rail expects an
// acknowledgement regardless, and retrying on our side is the sync
// schedule's job.
func (s *Service) ProcessWebhook(ctx context.Context, payload WebhookPayload) (*Classification, error) {
	c, err := ClassifyWebhook(payload)
	if err != nil {
		return nil, err
	}

	log.Printf("Webhook %s/%s for item %s (action=%s)", c.WebhookType, c.WebhookCode, c.ItemID, c.Action)
	if !c.RequiresAction {
		return &c, nil
	}

	if err := s.dispatch(ctx, c); err != nil {
		log.Printf("Webhook %s/%s for item %s: dispatch failed: %v", c.WebhookType, c.WebhookCode, c.ItemID, err)
	}
	return &c, nil
}

func (s *Service) dispatch(ctx context.Context, c Classification) error {
	switch c.Action {
	case ActionSyncTransactions:
		item, err := s.items.GetByProviderItemID(ctx, c.ItemID)
		if err != nil {
			return err
		}
		_, err = s.SyncTransactions(ctx, item.ID, defaultSyncWindowDays)
		return err

	case ActionUpdateItemError:
		return s.UpdateItemError(ctx, c.ItemID, c.Error)

	case ActionRemoveItem:
		item, err := s.items.GetByProviderItemID(ctx, c.ItemID)
		if err != nil {
			return err
		}
		return s.DeleteItem(ctx, item.UserID, item.ID)

	case ActionUpdateAccountStatus:
		item, err := s.items.GetByProviderItemID(ctx, c.ItemID)
		if err != nil {
			return err
		}
		return s.accounts.SetActiveByItemID(ctx, item.ID, true)

	case ActionNotifyUser:
		item, err := s.items.GetByProviderItemID(ctx, c.ItemID)
		if err != nil {
			return err
		}
		s.notifier.NotifyUser(ctx, item.UserID, "Action required", c.Message, map[string]string{
			"item_id":      item.ID.String(),
			"webhook_code": c.WebhookCode,
		})
		return nil
	}
	return nil
}
