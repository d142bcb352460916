package banking

import (
	"context"

	"github.com/google/uuid"
)

// ItemRepository defines persistence for items. Deleting an item cascades
// to its accounts and transactions.
type ItemRepository interface {
	Create(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	GetByProviderItemID(ctx context.Context, providerItemID string) (*Item, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*Item, error)
	ListActive(ctx context.Context) ([]*Item, error)
	Update(ctx context.Context, item *Item) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AccountRepository defines persistence for accounts. Upsert is keyed by
// the rail's account id.
type AccountRepository interface {
	Upsert(ctx context.Context, account *Account) (created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByProviderAccountID(ctx context.Context, providerAccountID string) (*Account, error)
	ListByItemID(ctx context.Context, itemID uuid.UUID) ([]*Account, error)
	SetActiveByItemID(ctx context.Context, itemID uuid.UUID, active bool) error
}

// TransactionRepository defines persistence for transactions. Upsert is
// keyed by the rail's transaction id.
type TransactionRepository interface {
	Upsert(ctx context.Context, tx *Transaction) (created bool, err error)
	GetByProviderTransactionID(ctx context.Context, providerTransactionID string) (*Transaction, error)
	ListByAccountID(ctx context.Context, accountID uuid.UUID, limit int) ([]*Transaction, error)
}
