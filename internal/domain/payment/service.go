package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service is the transaction reconciliation service. It owns persisted
// Payment, Refund and Method records and drives state transitions by
// combining local record state with adapter responses.
//
// State machine per payment:
//
//	pending -> processing -> completed -> refunded
//	pending|processing -> canceled
//	any -> failed (terminal)
type Service struct {
	registry *Registry
	repo     Repository
	methods  MethodRepository
}

// NewService creates a reconciliation service over the given registry and
// repositories.
func NewService(registry *Registry, repo Repository, methods MethodRepository) *Service {
	return &Service{
		registry: registry,
		repo:     repo,
		methods:  methods,
	}
}

// CreatePayment validates the request, submits it to the provider adapter
// and persists the resulting record. The local row is created only after
// the adapter confirms acceptance, so the external id is always known
// before persistence.
func (s *Service) CreatePayment(ctx context.Context, userID uuid.UUID, params CreatePaymentParams) (*Payment, error) {
	if !params.Amount.IsPositive() {
		return nil, NewRuleError("payment amount must be positive, got %s", params.Amount)
	}
	if len(params.Currency) != 3 {
		return nil, NewRuleError("currency must be a 3-letter ISO 4217 code, got %q", params.Currency)
	}

	metadata := map[string]string{
		"user_id": userID.String(),
	}
	for k, v := range params.Metadata {
		if sv, ok := v.(string); ok {
			metadata[k] = sv
		}
	}
	if params.ReturnURL != "" {
		metadata["return_url"] = params.ReturnURL
	}
	if params.CancelURL != "" {
		metadata["cancel_url"] = params.CancelURL
	}

	resp, err := s.registry.CreatePayment(ctx, Request{
		Amount:      params.Amount,
		Currency:    params.Currency,
		Description: params.Description,
		Metadata:    metadata,
	}, params.Provider)
	if err != nil {
		return nil, err
	}

	provider := params.Provider
	if provider == "" {
		provider = resp.Provider
	}

	now := time.Now().UTC()
	p := &Payment{
		ID:               uuid.New(),
		ExternalID:       resp.ExternalID,
		UserID:           userID,
		Amount:           resp.Amount,
		Currency:         resp.Currency,
		Status:           resp.Status,
		Provider:         provider,
		Method:           params.Method,
		Description:      params.Description,
		Metadata:         params.Metadata,
		ProviderResponse: resp.Raw,
		IsTest:           params.IsTest,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.CreatePayment(ctx, p); err != nil {
		// The external call succeeded but the local write did not; the
		// record is recoverable via the external id on the next sync.
		return nil, fmt.Errorf("failed to persist payment %s: %w", resp.ExternalID, err)
	}

	log.Printf("User %s: Created payment %s (%s %s, status=%s)", userID, p.ID, p.Amount, p.Currency, p.Status)
	return p, nil
}

// GetPayment returns a payment by internal id.
func (s *Service) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return s.repo.GetPayment(ctx, id)
}

// GetPaymentByExternalID returns a payment by provider-assigned id.
func (s *Service) GetPaymentByExternalID(ctx context.Context, externalID string) (*Payment, error) {
	return s.repo.GetPaymentByExternalID(ctx, externalID)
}

// ListUserPayments returns the user's payments, newest first.
func (s *Service) ListUserPayments(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.repo.ListPaymentsByUser(ctx, userID, offset, limit)
}

// SyncPaymentStatus re-fetches the payment from its provider and overwrites
// local status and provider response. Adapter errors are recorded on the
// record instead of propagated; the caller still gets the updated record
// for inspection.
func (s *Service) SyncPaymentStatus(ctx context.Context, id uuid.UUID) (*Payment, error) {
	p, err := s.repo.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}

	resp, err := s.registry.GetPayment(ctx, p.ExternalID, p.Provider)
	if err != nil {
		recordAdapterError(p, err)
		if uerr := s.repo.UpdatePayment(ctx, p); uerr != nil {
			return nil, fmt.Errorf("failed to record sync error: %w", uerr)
		}
		log.Printf("Payment %s: sync failed, error recorded: %v", p.ID, err)
		return p, nil
	}

	p.Status = resp.Status
	p.ProviderResponse = resp.Raw
	p.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update payment %s: %w", p.ID, err)
	}
	return p, nil
}

// CancelPayment cancels a payment that is still pending or processing.
// Unlike sync, an adapter failure here is recorded on the record and
// re-raised so the caller can report it.
func (s *Service) CancelPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	p, err := s.repo.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}

	if !p.Cancellable() {
		return nil, NewRuleError("cannot cancel payment in %s state", p.Status)
	}

	resp, err := s.registry.CancelPayment(ctx, p.ExternalID, p.Provider)
	if err != nil {
		recordAdapterError(p, err)
		if uerr := s.repo.UpdatePayment(ctx, p); uerr != nil {
			log.Printf("Payment %s: failed to record cancel error: %v", p.ID, uerr)
		}
		return nil, err
	}

	p.Status = StatusCanceled
	p.ProviderResponse = resp.Raw
	p.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update payment %s: %w", p.ID, err)
	}

	log.Printf("Payment %s: canceled", p.ID)
	return p, nil
}

// CreateRefund refunds a completed payment owned by userID. The refund row
// and the parent's transition to refunded are written atomically. On
// adapter failure the error is recorded on the parent and re-raised; no
// refund row is created.
func (s *Service) CreateRefund(ctx context.Context, userID uuid.UUID, params CreateRefundParams) (*Refund, error) {
	p, err := s.repo.GetPayment(ctx, params.PaymentID)
	if err != nil {
		return nil, err
	}

	if p.UserID != userID {
		return nil, ErrNotOwner
	}
	if p.Status != StatusCompleted {
		return nil, NewRuleError("cannot refund payment in %s state", p.Status)
	}

	amount := p.Amount
	if params.Amount != nil {
		if !params.Amount.IsPositive() {
			return nil, NewRuleError("refund amount must be positive, got %s", params.Amount)
		}
		if params.Amount.GreaterThan(p.Amount) {
			return nil, NewRuleError("refund amount %s exceeds payment amount %s", params.Amount, p.Amount)
		}
		amount = *params.Amount
	}

	var refundAmount *decimal.Decimal
	if params.Amount != nil {
		refundAmount = params.Amount
	}

	resp, err := s.registry.RefundPayment(ctx, p.ExternalID, refundAmount, p.Provider)
	if err != nil {
		recordAdapterError(p, err)
		if uerr := s.repo.UpdatePayment(ctx, p); uerr != nil {
			log.Printf("Payment %s: failed to record refund error: %v", p.ID, uerr)
		}
		return nil, err
	}

	now := time.Now().UTC()
	r := &Refund{
		ID:               uuid.New(),
		PaymentID:        p.ID,
		ExternalID:       resp.ExternalID, // some rails report the payment id here
		Amount:           amount,
		Currency:         p.Currency,
		Status:           StatusProcessing,
		Reason:           params.Reason,
		Metadata:         params.Metadata,
		ProviderResponse: resp.Raw,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	p.Status = StatusRefunded
	p.UpdatedAt = now

	if err := s.repo.CreateRefund(ctx, r, p); err != nil {
		return nil, fmt.Errorf("failed to persist refund for payment %s: %w", p.ID, err)
	}

	log.Printf("Payment %s: refunded %s %s (refund %s)", p.ID, r.Amount, r.Currency, r.ID)
	return r, nil
}

// GetRefund returns a refund by id.
func (s *Service) GetRefund(ctx context.Context, id uuid.UUID) (*Refund, error) {
	return s.repo.GetRefund(ctx, id)
}

// ListRefunds returns all refunds for a payment, newest first.
func (s *Service) ListRefunds(ctx context.Context, paymentID uuid.UUID) ([]*Refund, error) {
	return s.repo.ListRefundsByPayment(ctx, paymentID)
}

// CreatePaymentMethod stores a tokenized instrument. When IsDefault is set
// the repository clears any prior default for the same (user, provider,
// type) triple in the same transaction.
func (s *Service) CreatePaymentMethod(ctx context.Context, userID uuid.UUID, params CreateMethodParams) (*Method, error) {
	now := time.Now().UTC()
	m := &Method{
		ID:          uuid.New(),
		UserID:      userID,
		Provider:    params.Provider,
		Type:        params.Type,
		Token:       params.Token,
		LastFour:    params.LastFour,
		ExpiryMonth: params.ExpiryMonth,
		ExpiryYear:  params.ExpiryYear,
		IsDefault:   params.IsDefault,
		IsActive:    true,
		Metadata:    params.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.methods.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to create payment method: %w", err)
	}
	return m, nil
}

// ListPaymentMethods returns the user's active methods, defaults first.
// Pass an empty provider to list across providers.
func (s *Service) ListPaymentMethods(ctx context.Context, userID uuid.UUID, provider Provider) ([]*Method, error) {
	return s.methods.ListByUser(ctx, userID, provider, true)
}

// GetDefaultPaymentMethod returns the user's default method for a
// (provider, type) pair.
func (s *Service) GetDefaultPaymentMethod(ctx context.Context, userID uuid.UUID, provider Provider, methodType MethodType) (*Method, error) {
	return s.methods.GetDefault(ctx, userID, provider, methodType)
}

// SetDefaultPaymentMethod promotes the method to default after an
// ownership check. The repository serializes concurrent promotions for the
// same (user, provider, type) triple.
func (s *Service) SetDefaultPaymentMethod(ctx context.Context, methodID, userID uuid.UUID) (*Method, error) {
	m, err := s.methods.GetByID(ctx, methodID)
	if err != nil {
		return nil, err
	}
	if m.UserID != userID {
		return nil, ErrNotOwner
	}
	return s.methods.SetDefault(ctx, methodID)
}

// DeletePaymentMethod soft-deletes the method after an ownership check.
// The row remains queryable for audit.
func (s *Service) DeletePaymentMethod(ctx context.Context, methodID, userID uuid.UUID) error {
	m, err := s.methods.GetByID(ctx, methodID)
	if err != nil {
		return err
	}
	if m.UserID != userID {
		return ErrNotOwner
	}
	return s.methods.Deactivate(ctx, methodID)
}

// recordAdapterError copies provider error details onto the record.
func recordAdapterError(p *Payment, err error) {
	p.ErrorMessage = err.Error()
	var pe *ProviderError
	if errors.As(err, &pe) {
		p.ErrorCode = pe.Code
	}
	p.UpdatedAt = time.Now().UTC()
}
