package payment

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence for payments and refunds.
// Implemented by the PostgreSQL repository in the infrastructure layer.
type Repository interface {
	CreatePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetPaymentByExternalID(ctx context.Context, externalID string) (*Payment, error)
	ListPaymentsByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*Payment, error)

	// ListPaymentsByStatus returns the oldest payments in any of the given
	// statuses, up to limit. Used by the reconciliation sweep.
	ListPaymentsByStatus(ctx context.Context, statuses []Status, limit int) ([]*Payment, error)
	UpdatePayment(ctx context.Context, p *Payment) error

	// CreateRefund persists the refund and flips the parent payment to
	// StatusRefunded in a single transaction. Both writes succeed or both
	// are rolled back.
	CreateRefund(ctx context.Context, r *Refund, parent *Payment) error
	GetRefund(ctx context.Context, id uuid.UUID) (*Refund, error)
	ListRefundsByPayment(ctx context.Context, paymentID uuid.UUID) ([]*Refund, error)
}

// MethodRepository defines persistence for stored payment instruments.
type MethodRepository interface {
	Create(ctx context.Context, m *Method) error
	GetByID(ctx context.Context, id uuid.UUID) (*Method, error)
	ListByUser(ctx context.Context, userID uuid.UUID, provider Provider, activeOnly bool) ([]*Method, error)
	GetDefault(ctx context.Context, userID uuid.UUID, provider Provider, methodType MethodType) (*Method, error)

	// SetDefault clears is_default on every other method sharing the
	// (user, provider, type) triple and sets it on id, serialized by a
	// lock on the whole triple so concurrent promotions cannot leave
	// two defaults.
	SetDefault(ctx context.Context, id uuid.UUID) (*Method, error)

	// Deactivate soft-deletes the method (is_active = false).
	Deactivate(ctx context.Context, id uuid.UUID) error
}
