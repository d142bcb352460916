package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"finbridge/internal/domain/banking"
)

type TransactionRepository struct {
	db *DB
}

var _ banking.TransactionRepository = (*TransactionRepository)(nil)

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `id, account_id, provider_transaction_id, amount, date, name,
	       merchant_name, payment_channel, primary_category, detailed_category,
	       location, payment_meta, currency_code, pending, created_at, updated_at`

// Upsert inserts or refreshes a transaction keyed by
// provider_transaction_id. created reports whether a new row was inserted.
func (r *TransactionRepository) Upsert(ctx context.Context, t *banking.Transaction) (bool, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	location, err := jsonbValue(t.Location)
	if err != nil {
		return false, err
	}
	paymentMeta, err := jsonbValue(t.PaymentMeta)
	if err != nil {
		return false, err
	}

	query := `
		INSERT INTO transactions (id, account_id, provider_transaction_id, amount, date, name,
		                          merchant_name, payment_channel, primary_category,
		                          detailed_category, location, payment_meta, currency_code, pending)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (provider_transaction_id) DO UPDATE SET
			amount = EXCLUDED.amount,
			date = EXCLUDED.date,
			name = EXCLUDED.name,
			merchant_name = EXCLUDED.merchant_name,
			payment_channel = EXCLUDED.payment_channel,
			primary_category = EXCLUDED.primary_category,
			detailed_category = EXCLUDED.detailed_category,
			location = EXCLUDED.location,
			payment_meta = EXCLUDED.payment_meta,
			currency_code = EXCLUDED.currency_code,
			pending = EXCLUDED.pending,
			updated_at = NOW()
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted
	`

	var created bool
	err = r.db.QueryRowContext(
		ctx, query,
		t.ID, t.AccountID, t.ProviderTransactionID, t.Amount.String(), t.Date, t.Name,
		t.MerchantName, t.PaymentChannel, t.PrimaryCategory, t.DetailedCategory,
		location, paymentMeta, t.CurrencyCode, t.Pending,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt, &created)

	if err != nil {
		return false, fmt.Errorf("failed to upsert transaction: %w", err)
	}
	return created, nil
}

func scanTransaction(row rowScanner) (*banking.Transaction, error) {
	var t banking.Transaction
	var amount string
	var merchantName, paymentChannel, primaryCategory, detailedCategory, currencyCode sql.NullString
	var location, paymentMeta []byte

	err := row.Scan(
		&t.ID, &t.AccountID, &t.ProviderTransactionID, &amount, &t.Date, &t.Name,
		&merchantName, &paymentChannel, &primaryCategory, &detailedCategory,
		&location, &paymentMeta, &currencyCode, &t.Pending, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := nullDecimal(sql.NullString{String: amount, Valid: true})
	if err != nil {
		return nil, err
	}
	t.Amount = *parsed
	t.MerchantName = merchantName.String
	t.PaymentChannel = paymentChannel.String
	t.PrimaryCategory = primaryCategory.String
	t.DetailedCategory = detailedCategory.String
	t.CurrencyCode = currencyCode.String

	if t.Location, err = jsonbScan(location); err != nil {
		return nil, err
	}
	if t.PaymentMeta, err = jsonbScan(paymentMeta); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepository) GetByProviderTransactionID(ctx context.Context, providerTransactionID string) (*banking.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE provider_transaction_id = $1`

	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, providerTransactionID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transaction %s not found", providerTransactionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

func (r *TransactionRepository) ListByAccountID(ctx context.Context, accountID uuid.UUID, limit int) ([]*banking.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1
		ORDER BY date DESC, created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*banking.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}
