package scheduler

import (
	"context"
	"fmt"
	"log"

	"finbridge/internal/domain/banking"
)

// ItemSyncJob refreshes one linked institution connection: accounts and
// balances first, then the recent transaction window.
type ItemSyncJob struct {
	item     *banking.Item
	service  *banking.Service
	syncDays int
}

// NewItemSyncJob creates a sync job for a single item.
func NewItemSyncJob(item *banking.Item, service *banking.Service, syncDays int) *ItemSyncJob {
	return &ItemSyncJob{
		item:     item,
		service:  service,
		syncDays: syncDays,
	}
}

// Execute syncs accounts and transactions for the item. A transaction
// sync failure is reported even when the account sync succeeded, so the
// worker pool records the job as failed.
func (j *ItemSyncJob) Execute(ctx context.Context) error {
	log.Printf("Starting sync for item %s (user %s)", j.item.ID, j.item.UserID)

	accounts, err := j.service.SyncAccounts(ctx, j.item.ID)
	if err != nil {
		return fmt.Errorf("failed to sync accounts for item %s: %w", j.item.ID, err)
	}
	log.Printf("Item %s: %s", j.item.ID, accounts.Message)

	transactions, err := j.service.SyncTransactions(ctx, j.item.ID, j.syncDays)
	if err != nil {
		return fmt.Errorf("failed to sync transactions for item %s: %w", j.item.ID, err)
	}
	log.Printf("Item %s: %s", j.item.ID, transactions.Message)

	return nil
}

// UserID returns the owner of the item being synced.
func (j *ItemSyncJob) UserID() string {
	return j.item.UserID.String()
}

// Description returns a human-readable description of the job.
func (j *ItemSyncJob) Description() string {
	name := j.item.InstitutionName
	if name == "" {
		name = j.item.ProviderItemID
	}
	return fmt.Sprintf("item sync (%s)", name)
}

// NewItemSyncJobProvider returns a job provider that enumerates every
// active item and wraps each in an ItemSyncJob. Wired into the
// scheduler so the periodic batch always reflects the current set of
// linked institutions.
func NewItemSyncJobProvider(items banking.ItemRepository, service *banking.Service, syncDays int) func(context.Context) ([]Job, error) {
	return func(ctx context.Context) ([]Job, error) {
		active, err := items.ListActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list active items: %w", err)
		}

		jobs := make([]Job, 0, len(active))
		for _, item := range active {
			jobs = append(jobs, NewItemSyncJob(item, service, syncDays))
		}
		return jobs, nil
	}
}
