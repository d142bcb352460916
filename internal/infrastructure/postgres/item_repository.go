package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"finbridge/internal/domain/banking"
	"finbridge/internal/infrastructure/crypto"
)

// ItemRepository persists institution connections. Access tokens are
// encrypted before they touch the database.
type ItemRepository struct {
	db        *DB
	encryptor *crypto.Encryptor
}

var _ banking.ItemRepository = (*ItemRepository)(nil)

func NewItemRepository(db *DB, encryptor *crypto.Encryptor) *ItemRepository {
	return &ItemRepository{db: db, encryptor: encryptor}
}

const itemColumns = `id, user_id, provider_item_id, access_token, institution_id, institution_name,
	       is_active, error, created_at, updated_at, last_sync_at`

func (r *ItemRepository) Create(ctx context.Context, item *banking.Item) error {
	token, err := r.encryptor.Encrypt(item.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	itemError, err := jsonbValue(item.Error)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO items (id, user_id, provider_item_id, access_token, institution_id,
		                   institution_name, is_active, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err = r.db.QueryRowContext(
		ctx, query,
		item.ID, item.UserID, item.ProviderItemID, token,
		item.InstitutionID, item.InstitutionName, item.IsActive, itemError,
	).Scan(&item.CreatedAt, &item.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

func (r *ItemRepository) scanItem(row rowScanner) (*banking.Item, error) {
	var item banking.Item
	var token string
	var institutionID, institutionName sql.NullString
	var itemError []byte
	var lastSyncAt sql.NullTime

	err := row.Scan(
		&item.ID, &item.UserID, &item.ProviderItemID, &token,
		&institutionID, &institutionName, &item.IsActive, &itemError,
		&item.CreatedAt, &item.UpdatedAt, &lastSyncAt,
	)
	if err != nil {
		return nil, err
	}

	item.AccessToken, err = r.encryptor.Decrypt(token)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	item.InstitutionID = institutionID.String
	item.InstitutionName = institutionName.String
	if lastSyncAt.Valid {
		item.LastSyncAt = &lastSyncAt.Time
	}
	if item.Error, err = jsonbScan(itemError); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *ItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*banking.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`

	item, err := r.scanItem(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, banking.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

func (r *ItemRepository) GetByProviderItemID(ctx context.Context, providerItemID string) (*banking.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE provider_item_id = $1`

	item, err := r.scanItem(r.db.QueryRowContext(ctx, query, providerItemID))
	if err == sql.ErrNoRows {
		return nil, banking.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

func (r *ItemRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*banking.Item, error) {
	query := `SELECT ` + itemColumns + `
		FROM items
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*banking.Item
	for rows.Next() {
		item, err := r.scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListActive returns every active item across all users. The scheduler
// uses this to build its periodic sync batch.
func (r *ItemRepository) ListActive(ctx context.Context) ([]*banking.Item, error) {
	query := `SELECT ` + itemColumns + `
		FROM items
		WHERE is_active
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active items: %w", err)
	}
	defer rows.Close()

	var items []*banking.Item
	for rows.Next() {
		item, err := r.scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *ItemRepository) Update(ctx context.Context, item *banking.Item) error {
	token, err := r.encryptor.Encrypt(item.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	itemError, err := jsonbValue(item.Error)
	if err != nil {
		return err
	}

	query := `
		UPDATE items
		SET access_token = $2, institution_id = $3, institution_name = $4,
		    is_active = $5, error = $6, last_sync_at = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err = r.db.QueryRowContext(
		ctx, query,
		item.ID, token, item.InstitutionID, item.InstitutionName,
		item.IsActive, itemError, item.LastSyncAt,
	).Scan(&item.UpdatedAt)

	if err == sql.ErrNoRows {
		return banking.ErrItemNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	return nil
}

// Delete removes the item; accounts and transactions go with it via
// ON DELETE CASCADE.
func (r *ItemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return banking.ErrItemNotFound
	}
	return nil
}
