package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"finbridge/internal/domain/payment"
)

type PaymentRepository struct {
	db *DB
}

var _ payment.Repository = (*PaymentRepository)(nil)

func NewPaymentRepository(db *DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, external_id, user_id, amount, currency, status, provider, method,
	       description, metadata, provider_response, error_message, error_code, is_test,
	       created_at, updated_at`

func (r *PaymentRepository) CreatePayment(ctx context.Context, p *payment.Payment) error {
	metadata, err := jsonbValue(p.Metadata)
	if err != nil {
		return err
	}
	providerResponse, err := jsonbValue(p.ProviderResponse)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO payments (id, external_id, user_id, amount, currency, status, provider, method,
		                      description, metadata, provider_response, error_message, error_code, is_test)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`

	err = r.db.QueryRowContext(
		ctx, query,
		p.ID, p.ExternalID, p.UserID, p.Amount.String(), p.Currency, p.Status, p.Provider,
		methodValue(p.Method), p.Description, metadata, providerResponse,
		p.ErrorMessage, p.ErrorCode, p.IsTest,
	).Scan(&p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetPayment(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return r.scanPayment(r.db.QueryRowContext(ctx, query, id))
}

func (r *PaymentRepository) GetPaymentByExternalID(ctx context.Context, externalID string) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE external_id = $1`
	return r.scanPayment(r.db.QueryRowContext(ctx, query, externalID))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PaymentRepository) scanPayment(row rowScanner) (*payment.Payment, error) {
	var p payment.Payment
	var amount string
	var method, description, errorMessage, errorCode sql.NullString
	var metadata, providerResponse []byte

	err := row.Scan(
		&p.ID, &p.ExternalID, &p.UserID, &amount, &p.Currency, &p.Status, &p.Provider,
		&method, &description, &metadata, &providerResponse, &errorMessage, &errorCode,
		&p.IsTest, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, payment.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	if err := fillPayment(&p, amount, method, description, errorMessage, errorCode, metadata, providerResponse); err != nil {
		return nil, err
	}
	return &p, nil
}

func fillPayment(p *payment.Payment, amount string, method, description, errorMessage, errorCode sql.NullString, metadata, providerResponse []byte) error {
	parsed, err := nullDecimal(sql.NullString{String: amount, Valid: true})
	if err != nil {
		return err
	}
	p.Amount = *parsed

	if method.Valid {
		m := payment.MethodType(method.String)
		p.Method = &m
	}
	p.Description = description.String
	p.ErrorMessage = errorMessage.String
	p.ErrorCode = errorCode.String

	if p.Metadata, err = jsonbScan(metadata); err != nil {
		return err
	}
	if p.ProviderResponse, err = jsonbScan(providerResponse); err != nil {
		return err
	}
	return nil
}

func methodValue(m *payment.MethodType) any {
	if m == nil {
		return nil
	}
	return string(*m)
}

func (r *PaymentRepository) ListPaymentsByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*payment.Payment
	for rows.Next() {
		var p payment.Payment
		var amount string
		var method, description, errorMessage, errorCode sql.NullString
		var metadata, providerResponse []byte

		if err := rows.Scan(
			&p.ID, &p.ExternalID, &p.UserID, &amount, &p.Currency, &p.Status, &p.Provider,
			&method, &description, &metadata, &providerResponse, &errorMessage, &errorCode,
			&p.IsTest, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		if err := fillPayment(&p, amount, method, description, errorMessage, errorCode, metadata, providerResponse); err != nil {
			return nil, err
		}
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}

// ListPaymentsByStatus returns the oldest payments in any of the given
// statuses. The reconciliation sweep works oldest-first so stale payments
// are refreshed before recent ones.
func (r *PaymentRepository) ListPaymentsByStatus(ctx context.Context, statuses []payment.Status, limit int) ([]*payment.Payment, error) {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = ANY($1)
		ORDER BY created_at
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(values), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments by status: %w", err)
	}
	defer rows.Close()

	var payments []*payment.Payment
	for rows.Next() {
		var p payment.Payment
		var amount string
		var method, description, errorMessage, errorCode sql.NullString
		var metadata, providerResponse []byte

		if err := rows.Scan(
			&p.ID, &p.ExternalID, &p.UserID, &amount, &p.Currency, &p.Status, &p.Provider,
			&method, &description, &metadata, &providerResponse, &errorMessage, &errorCode,
			&p.IsTest, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		if err := fillPayment(&p, amount, method, description, errorMessage, errorCode, metadata, providerResponse); err != nil {
			return nil, err
		}
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}

func (r *PaymentRepository) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	metadata, err := jsonbValue(p.Metadata)
	if err != nil {
		return err
	}
	providerResponse, err := jsonbValue(p.ProviderResponse)
	if err != nil {
		return err
	}

	query := `
		UPDATE payments
		SET status = $2, metadata = $3, provider_response = $4,
		    error_message = $5, error_code = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err = r.db.QueryRowContext(
		ctx, query,
		p.ID, p.Status, metadata, providerResponse, p.ErrorMessage, p.ErrorCode,
	).Scan(&p.UpdatedAt)

	if err == sql.ErrNoRows {
		return payment.ErrPaymentNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	return nil
}

// CreateRefund inserts the refund row and flips the parent payment in one
// transaction.
func (r *PaymentRepository) CreateRefund(ctx context.Context, refund *payment.Refund, parent *payment.Payment) error {
	metadata, err := jsonbValue(refund.Metadata)
	if err != nil {
		return err
	}
	providerResponse, err := jsonbValue(refund.ProviderResponse)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertQuery := `
		INSERT INTO refunds (id, payment_id, external_id, amount, currency, status, reason,
		                     metadata, provider_response, error_message, error_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRowContext(
		ctx, insertQuery,
		refund.ID, refund.PaymentID, refund.ExternalID, refund.Amount.String(), refund.Currency,
		refund.Status, refund.Reason, metadata, providerResponse,
		refund.ErrorMessage, refund.ErrorCode,
	).Scan(&refund.CreatedAt, &refund.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create refund: %w", err)
	}

	updateQuery := `
		UPDATE payments SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err = tx.QueryRowContext(ctx, updateQuery, parent.ID, parent.Status).Scan(&parent.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update parent payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit refund: %w", err)
	}
	return nil
}

const refundColumns = `id, payment_id, external_id, amount, currency, status, reason,
	       metadata, provider_response, error_message, error_code, created_at, updated_at`

func (r *PaymentRepository) GetRefund(ctx context.Context, id uuid.UUID) (*payment.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE id = $1`

	refund, err := scanRefund(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, payment.ErrRefundNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get refund: %w", err)
	}
	return refund, nil
}

func scanRefund(row rowScanner) (*payment.Refund, error) {
	var refund payment.Refund
	var amount string
	var reason, errorMessage, errorCode sql.NullString
	var metadata, providerResponse []byte

	err := row.Scan(
		&refund.ID, &refund.PaymentID, &refund.ExternalID, &amount, &refund.Currency,
		&refund.Status, &reason, &metadata, &providerResponse,
		&errorMessage, &errorCode, &refund.CreatedAt, &refund.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := nullDecimal(sql.NullString{String: amount, Valid: true})
	if err != nil {
		return nil, err
	}
	refund.Amount = *parsed
	refund.Reason = reason.String
	refund.ErrorMessage = errorMessage.String
	refund.ErrorCode = errorCode.String

	if refund.Metadata, err = jsonbScan(metadata); err != nil {
		return nil, err
	}
	if refund.ProviderResponse, err = jsonbScan(providerResponse); err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *PaymentRepository) ListRefundsByPayment(ctx context.Context, paymentID uuid.UUID) ([]*payment.Refund, error) {
	query := `SELECT ` + refundColumns + `
		FROM refunds
		WHERE payment_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	defer rows.Close()

	var refunds []*payment.Refund
	for rows.Next() {
		refund, err := scanRefund(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan refund: %w", err)
		}
		refunds = append(refunds, refund)
	}
	return refunds, rows.Err()
}
