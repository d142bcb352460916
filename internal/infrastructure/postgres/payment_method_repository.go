package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"finbridge/internal/domain/payment"
)

type PaymentMethodRepository struct {
	db *DB
}

var _ payment.MethodRepository = (*PaymentMethodRepository)(nil)

func NewPaymentMethodRepository(db *DB) *PaymentMethodRepository {
	return &PaymentMethodRepository{db: db}
}

const methodColumns = `id, user_id, provider, type, token, last_four, expiry_month, expiry_year,
	       is_default, is_active, metadata, provider_response, created_at, updated_at`

func (r *PaymentMethodRepository) Create(ctx context.Context, m *payment.Method) error {
	metadata, err := jsonbValue(m.Metadata)
	if err != nil {
		return err
	}
	providerResponse, err := jsonbValue(m.ProviderResponse)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO payment_methods (id, user_id, provider, type, token, last_four,
		                             expiry_month, expiry_year, is_default, is_active,
		                             metadata, provider_response)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`

	err = r.db.QueryRowContext(
		ctx, query,
		m.ID, m.UserID, m.Provider, m.Type, m.Token, m.LastFour,
		m.ExpiryMonth, m.ExpiryYear, m.IsDefault, m.IsActive,
		metadata, providerResponse,
	).Scan(&m.CreatedAt, &m.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create payment method: %w", err)
	}
	return nil
}

func scanMethod(row rowScanner) (*payment.Method, error) {
	var m payment.Method
	var lastFour, expiryMonth, expiryYear sql.NullString
	var metadata, providerResponse []byte

	err := row.Scan(
		&m.ID, &m.UserID, &m.Provider, &m.Type, &m.Token, &lastFour, &expiryMonth, &expiryYear,
		&m.IsDefault, &m.IsActive, &metadata, &providerResponse, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.LastFour = lastFour.String
	m.ExpiryMonth = expiryMonth.String
	m.ExpiryYear = expiryYear.String

	if m.Metadata, err = jsonbScan(metadata); err != nil {
		return nil, err
	}
	if m.ProviderResponse, err = jsonbScan(providerResponse); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *PaymentMethodRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Method, error) {
	query := `SELECT ` + methodColumns + ` FROM payment_methods WHERE id = $1`

	m, err := scanMethod(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, payment.ErrMethodNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment method: %w", err)
	}
	return m, nil
}

func (r *PaymentMethodRepository) ListByUser(ctx context.Context, userID uuid.UUID, provider payment.Provider, activeOnly bool) ([]*payment.Method, error) {
	query := `SELECT ` + methodColumns + `
		FROM payment_methods
		WHERE user_id = $1
		  AND ($2 = '' OR provider = $2)
		  AND (NOT $3 OR is_active)
		ORDER BY is_default DESC, created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID, string(provider), activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment methods: %w", err)
	}
	defer rows.Close()

	var methods []*payment.Method
	for rows.Next() {
		m, err := scanMethod(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment method: %w", err)
		}
		methods = append(methods, m)
	}
	return methods, rows.Err()
}

func (r *PaymentMethodRepository) GetDefault(ctx context.Context, userID uuid.UUID, provider payment.Provider, methodType payment.MethodType) (*payment.Method, error) {
	query := `SELECT ` + methodColumns + `
		FROM payment_methods
		WHERE user_id = $1 AND provider = $2 AND type = $3 AND is_default AND is_active`

	m, err := scanMethod(r.db.QueryRowContext(ctx, query, userID, provider, methodType))
	if err == sql.ErrNoRows {
		return nil, payment.ErrMethodNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default payment method: %w", err)
	}
	return m, nil
}

// setDefaultGroupLockQuery locks every method in the (user, provider, type)
// group, not just the promoted row. Locking only the promoted row lets two
// concurrent promotions of different methods lock disjoint rows and both
// commit with is_default set.
const setDefaultGroupLockQuery = `
	SELECT id
	FROM payment_methods
	WHERE user_id = $1 AND provider = $2 AND type = $3
	FOR UPDATE
`

// SetDefault promotes one method to default for its (user, provider, type)
// group. The group-wide lock serializes concurrent promotions so exactly one
// default survives.
func (r *PaymentMethodRepository) SetDefault(ctx context.Context, id uuid.UUID) (*payment.Method, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	groupQuery := `
		SELECT user_id, provider, type
		FROM payment_methods
		WHERE id = $1 AND is_active
	`
	var userID uuid.UUID
	var provider payment.Provider
	var methodType payment.MethodType
	err = tx.QueryRowContext(ctx, groupQuery, id).Scan(&userID, &provider, &methodType)
	if err == sql.ErrNoRows {
		return nil, payment.ErrMethodNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read payment method group: %w", err)
	}

	if _, err := tx.ExecContext(ctx, setDefaultGroupLockQuery, userID, provider, methodType); err != nil {
		return nil, fmt.Errorf("failed to lock payment method group: %w", err)
	}

	clearQuery := `
		UPDATE payment_methods
		SET is_default = FALSE, updated_at = NOW()
		WHERE user_id = $1 AND provider = $2 AND type = $3 AND is_default AND id <> $4
	`
	if _, err := tx.ExecContext(ctx, clearQuery, userID, provider, methodType, id); err != nil {
		return nil, fmt.Errorf("failed to clear previous default: %w", err)
	}

	promoteQuery := `
		UPDATE payment_methods
		SET is_default = TRUE, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + methodColumns

	m, err := scanMethod(tx.QueryRowContext(ctx, promoteQuery, id))
	if err != nil {
		return nil, fmt.Errorf("failed to promote payment method: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit default promotion: %w", err)
	}
	return m, nil
}

func (r *PaymentMethodRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE payment_methods
		SET is_active = FALSE, is_default = FALSE, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate payment method: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return payment.ErrMethodNotFound
	}
	return nil
}
