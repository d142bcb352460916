package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"finbridge/internal/domain/banking"
)

type AccountRepository struct {
	db *DB
}

var _ banking.AccountRepository = (*AccountRepository)(nil)

func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, item_id, provider_account_id, name, mask, official_name, type, subtype,
	       available_balance, current_balance, credit_limit, currency_code, is_active,
	       created_at, updated_at, last_balance_update`

// Upsert inserts or refreshes an account keyed by provider_account_id.
// created reports whether a new row was inserted.
func (r *AccountRepository) Upsert(ctx context.Context, account *banking.Account) (bool, error) {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}

	query := `
		INSERT INTO accounts (id, item_id, provider_account_id, name, mask, official_name,
		                      type, subtype, available_balance, current_balance, credit_limit,
		                      currency_code, is_active, last_balance_update)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (provider_account_id) DO UPDATE SET
			name = EXCLUDED.name,
			mask = EXCLUDED.mask,
			official_name = EXCLUDED.official_name,
			type = EXCLUDED.type,
			subtype = EXCLUDED.subtype,
			available_balance = EXCLUDED.available_balance,
			current_balance = EXCLUDED.current_balance,
			credit_limit = EXCLUDED.credit_limit,
			currency_code = EXCLUDED.currency_code,
			is_active = EXCLUDED.is_active,
			last_balance_update = EXCLUDED.last_balance_update,
			updated_at = NOW()
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted
	`

	var created bool
	err := r.db.QueryRowContext(
		ctx, query,
		account.ID, account.ItemID, account.ProviderAccountID, account.Name, account.Mask,
		account.OfficialName, account.Type, account.Subtype,
		decimalValue(account.AvailableBalance), decimalValue(account.CurrentBalance),
		decimalValue(account.CreditLimit), account.CurrencyCode, account.IsActive,
		account.LastBalanceUpdate,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt, &created)

	if err != nil {
		return false, fmt.Errorf("failed to upsert account: %w", err)
	}
	return created, nil
}

func scanAccount(row rowScanner) (*banking.Account, error) {
	var account banking.Account
	var mask, officialName, subtype, currencyCode sql.NullString
	var available, current, limit sql.NullString
	var lastBalanceUpdate sql.NullTime

	err := row.Scan(
		&account.ID, &account.ItemID, &account.ProviderAccountID, &account.Name,
		&mask, &officialName, &account.Type, &subtype,
		&available, &current, &limit, &currencyCode, &account.IsActive,
		&account.CreatedAt, &account.UpdatedAt, &lastBalanceUpdate,
	)
	if err != nil {
		return nil, err
	}

	account.Mask = mask.String
	account.OfficialName = officialName.String
	account.Subtype = subtype.String
	account.CurrencyCode = currencyCode.String
	if lastBalanceUpdate.Valid {
		account.LastBalanceUpdate = &lastBalanceUpdate.Time
	}

	if account.AvailableBalance, err = nullDecimal(available); err != nil {
		return nil, err
	}
	if account.CurrentBalance, err = nullDecimal(current); err != nil {
		return nil, err
	}
	if account.CreditLimit, err = nullDecimal(limit); err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*banking.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, banking.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func (r *AccountRepository) GetByProviderAccountID(ctx context.Context, providerAccountID string) (*banking.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE provider_account_id = $1`

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, providerAccountID))
	if err == sql.ErrNoRows {
		return nil, banking.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func (r *AccountRepository) ListByItemID(ctx context.Context, itemID uuid.UUID) ([]*banking.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM accounts
		WHERE item_id = $1
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*banking.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (r *AccountRepository) SetActiveByItemID(ctx context.Context, itemID uuid.UUID, active bool) error {
	query := `UPDATE accounts SET is_active = $2, updated_at = NOW() WHERE item_id = $1`
	if _, err := r.db.ExecContext(ctx, query, itemID, active); err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}
	return nil
}
