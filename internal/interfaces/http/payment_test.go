package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finbridge/internal/domain/payment"
	"finbridge/internal/shared/middleware"
)

// MockPaymentRepo implements payment.Repository for testing
type MockPaymentRepo struct {
	CreatePaymentFunc          func(ctx context.Context, p *payment.Payment) error
	GetPaymentFunc             func(ctx context.Context, id uuid.UUID) (*payment.Payment, error)
	GetPaymentByExternalIDFunc func(ctx context.Context, externalID string) (*payment.Payment, error)
	ListPaymentsByUserFunc     func(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*payment.Payment, error)
	ListPaymentsByStatusFunc   func(ctx context.Context, statuses []payment.Status, limit int) ([]*payment.Payment, error)
	UpdatePaymentFunc          func(ctx context.Context, p *payment.Payment) error
	CreateRefundFunc           func(ctx context.Context, r *payment.Refund, parent *payment.Payment) error
	GetRefundFunc              func(ctx context.Context, id uuid.UUID) (*payment.Refund, error)
	ListRefundsByPaymentFunc   func(ctx context.Context, paymentID uuid.UUID) ([]*payment.Refund, error)
}

func (m *MockPaymentRepo) CreatePayment(ctx context.Context, p *payment.Payment) error {
	if m.CreatePaymentFunc != nil {
		return m.CreatePaymentFunc(ctx, p)
	}
	return nil
}

func (m *MockPaymentRepo) GetPayment(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	if m.GetPaymentFunc != nil {
		return m.GetPaymentFunc(ctx, id)
	}
	return nil, payment.ErrPaymentNotFound
}

func (m *MockPaymentRepo) GetPaymentByExternalID(ctx context.Context, externalID string) (*payment.Payment, error) {
	if m.GetPaymentByExternalIDFunc != nil {
		return m.GetPaymentByExternalIDFunc(ctx, externalID)
	}
	return nil, payment.ErrPaymentNotFound
}

func (m *MockPaymentRepo) ListPaymentsByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*payment.Payment, error) {
	if m.ListPaymentsByUserFunc != nil {
		return m.ListPaymentsByUserFunc(ctx, userID, offset, limit)
	}
	return nil, nil
}

func (m *MockPaymentRepo) ListPaymentsByStatus(ctx context.Context, statuses []payment.Status, limit int) ([]*payment.Payment, error) {
	if m.ListPaymentsByStatusFunc != nil {
		return m.ListPaymentsByStatusFunc(ctx, statuses, limit)
	}
	return nil, nil
}

func (m *MockPaymentRepo) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	if m.UpdatePaymentFunc != nil {
		return m.UpdatePaymentFunc(ctx, p)
	}
	return nil
}

func (m *MockPaymentRepo) CreateRefund(ctx context.Context, r *payment.Refund, parent *payment.Payment) error {
	if m.CreateRefundFunc != nil {
		return m.CreateRefundFunc(ctx, r, parent)
	}
	return nil
}

func (m *MockPaymentRepo) GetRefund(ctx context.Context, id uuid.UUID) (*payment.Refund, error) {
	if m.GetRefundFunc != nil {
		return m.GetRefundFunc(ctx, id)
	}
	return nil, payment.ErrRefundNotFound
}

func (m *MockPaymentRepo) ListRefundsByPayment(ctx context.Context, paymentID uuid.UUID) ([]*payment.Refund, error) {
	if m.ListRefundsByPaymentFunc != nil {
		return m.ListRefundsByPaymentFunc(ctx, paymentID)
	}
	return nil, nil
}

// MockMethodRepo implements payment.MethodRepository for testing
type MockMethodRepo struct {
	CreateFunc     func(ctx context.Context, m *payment.Method) error
	GetByIDFunc    func(ctx context.Context, id uuid.UUID) (*payment.Method, error)
	ListByUserFunc func(ctx context.Context, userID uuid.UUID, provider payment.Provider, activeOnly bool) ([]*payment.Method, error)
	GetDefaultFunc func(ctx context.Context, userID uuid.UUID, provider payment.Provider, methodType payment.MethodType) (*payment.Method, error)
	SetDefaultFunc func(ctx context.Context, id uuid.UUID) (*payment.Method, error)
	DeactivateFunc func(ctx context.Context, id uuid.UUID) error
}

func (m *MockMethodRepo) Create(ctx context.Context, method *payment.Method) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, method)
	}
	return nil
}

func (m *MockMethodRepo) GetByID(ctx context.Context, id uuid.UUID) (*payment.Method, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, payment.ErrMethodNotFound
}

func (m *MockMethodRepo) ListByUser(ctx context.Context, userID uuid.UUID, provider payment.Provider, activeOnly bool) ([]*payment.Method, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID, provider, activeOnly)
	}
	return nil, nil
}

func (m *MockMethodRepo) GetDefault(ctx context.Context, userID uuid.UUID, provider payment.Provider, methodType payment.MethodType) (*payment.Method, error) {
	if m.GetDefaultFunc != nil {
		return m.GetDefaultFunc(ctx, userID, provider, methodType)
	}
	return nil, payment.ErrMethodNotFound
}

func (m *MockMethodRepo) SetDefault(ctx context.Context, id uuid.UUID) (*payment.Method, error) {
	if m.SetDefaultFunc != nil {
		return m.SetDefaultFunc(ctx, id)
	}
	return nil, payment.ErrMethodNotFound
}

func (m *MockMethodRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	if m.DeactivateFunc != nil {
		return m.DeactivateFunc(ctx, id)
	}
	return nil
}

// MockAdapter implements payment.Adapter for testing
type MockAdapter struct {
	CreatePaymentFunc func(ctx context.Context, req payment.Request) (*payment.Response, error)
	GetPaymentFunc    func(ctx context.Context, externalID string) (*payment.Response, error)
	CancelPaymentFunc func(ctx context.Context, externalID string) (*payment.Response, error)
	RefundPaymentFunc func(ctx context.Context, externalID string, amount *decimal.Decimal) (*payment.Response, error)
}

func (m *MockAdapter) Provider() payment.Provider { return payment.ProviderStripe }

func (m *MockAdapter) Initialize(config map[string]string) error { return nil }

func (m *MockAdapter) CreatePayment(ctx context.Context, req payment.Request) (*payment.Response, error) {
	if m.CreatePaymentFunc != nil {
		return m.CreatePaymentFunc(ctx, req)
	}
	return &payment.Response{ExternalID: "ext-1", Status: payment.StatusPending, Amount: req.Amount, Currency: req.Currency}, nil
}

func (m *MockAdapter) GetPayment(ctx context.Context, externalID string) (*payment.Response, error) {
	if m.GetPaymentFunc != nil {
		return m.GetPaymentFunc(ctx, externalID)
	}
	return &payment.Response{ExternalID: externalID, Status: payment.StatusPending}, nil
}

func (m *MockAdapter) CancelPayment(ctx context.Context, externalID string) (*payment.Response, error) {
	if m.CancelPaymentFunc != nil {
		return m.CancelPaymentFunc(ctx, externalID)
	}
	return &payment.Response{ExternalID: externalID, Status: payment.StatusCanceled}, nil
}

func (m *MockAdapter) RefundPayment(ctx context.Context, externalID string, amount *decimal.Decimal) (*payment.Response, error) {
	if m.RefundPaymentFunc != nil {
		return m.RefundPaymentFunc(ctx, externalID, amount)
	}
	return &payment.Response{ExternalID: "re-1", Status: payment.StatusRefunded}, nil
}

func newPaymentHandler(t *testing.T, repo *MockPaymentRepo, methods *MockMethodRepo, adapter *MockAdapter) *PaymentHandler {
	t.Helper()
	registry := payment.NewRegistry()
	if err := registry.Register(payment.ProviderStripe, adapter, map[string]string{}, true); err != nil {
		t.Fatalf("Failed to register adapter: %v", err)
	}
	return NewPaymentHandler(payment.NewService(registry, repo, methods))
}

func authedRequest(method, target string, body string, userID uuid.UUID) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, userID)
	return req.WithContext(ctx)
}

func TestHandlePayments_Create(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name           string
		body           string
		adapter        *MockAdapter
		expectedStatus int
	}{
		{
			name:           "Success",
			body:           `{"amount":"25.50","currency":"USD"}`,
			adapter:        &MockAdapter{},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Invalid Body",
			body:           `{not json`,
			adapter:        &MockAdapter{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Rule Violation",
			body:           `{"amount":"-5","currency":"USD"}`,
			adapter:        &MockAdapter{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Provider Failure",
			body: `{"amount":"25.50","currency":"USD"}`,
			adapter: &MockAdapter{
				CreatePaymentFunc: func(ctx context.Context, req payment.Request) (*payment.Response, error) {
					return nil, payment.NewProviderError(payment.ProviderStripe, "card declined", "card_declined", nil)
				},
			},
			expectedStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newPaymentHandler(t, &MockPaymentRepo{}, &MockMethodRepo{}, tt.adapter)

			req := authedRequest(http.MethodPost, "/api/payments", tt.body, userID)
			rr := httptest.NewRecorder()
			handler.HandlePayments(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, tt.expectedStatus)
			}
		})
	}
}

func TestHandlePayments_RequiresAuth(t *testing.T) {
	handler := newPaymentHandler(t, &MockPaymentRepo{}, &MockMethodRepo{}, &MockAdapter{})

	req := httptest.NewRequest(http.MethodGet, "/api/payments", nil)
	rr := httptest.NewRecorder()
	handler.HandlePayments(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusUnauthorized)
	}
}

func TestHandlePayments_ListReturnsEmptyArray(t *testing.T) {
	handler := newPaymentHandler(t, &MockPaymentRepo{}, &MockMethodRepo{}, &MockAdapter{})

	req := authedRequest(http.MethodGet, "/api/payments", "", uuid.New())
	rr := httptest.NewRecorder()
	handler.HandlePayments(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	if body := strings.TrimSpace(rr.Body.String()); body != "[]" {
		t.Errorf("Expected empty JSON array, got %s", body)
	}
}

func TestHandlePayment_Ownership(t *testing.T) {
	owner := uuid.New()
	paymentID := uuid.New()

	tests := []struct {
		name           string
		caller         uuid.UUID
		admin          bool
		repo           *MockPaymentRepo
		expectedStatus int
	}{
		{
			name:   "Owner Reads Own Payment",
			caller: owner,
			repo: &MockPaymentRepo{
				GetPaymentFunc: func(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
					return &payment.Payment{ID: id, UserID: owner, Status: payment.StatusPending}, nil
				},
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "Other Caller Forbidden",
			caller: uuid.New(),
			repo: &MockPaymentRepo{
				GetPaymentFunc: func(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
					return &payment.Payment{ID: id, UserID: owner, Status: payment.StatusPending}, nil
				},
			},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:   "Admin Reads Any Payment",
			caller: uuid.New(),
			admin:  true,
			repo: &MockPaymentRepo{
				GetPaymentFunc: func(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
					return &payment.Payment{ID: id, UserID: owner, Status: payment.StatusPending}, nil
				},
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Not Found",
			caller:         owner,
			repo:           &MockPaymentRepo{},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newPaymentHandler(t, tt.repo, &MockMethodRepo{}, &MockAdapter{})

			req := authedRequest(http.MethodGet, "/api/payments/"+paymentID.String(), "", tt.caller)
			if tt.admin {
				req = req.WithContext(context.WithValue(req.Context(), middleware.IsAdminKey, true))
			}
			req.SetPathValue("id", paymentID.String())

			rr := httptest.NewRecorder()
			handler.HandlePayment(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, tt.expectedStatus)
			}
		})
	}
}

func TestHandlePayment_InvalidID(t *testing.T) {
	handler := newPaymentHandler(t, &MockPaymentRepo{}, &MockMethodRepo{}, &MockAdapter{})

	req := authedRequest(http.MethodGet, "/api/payments/not-a-uuid", "", uuid.New())
	req.SetPathValue("id", "not-a-uuid")

	rr := httptest.NewRecorder()
	handler.HandlePayment(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusBadRequest)
	}
}

func TestHandleCancelPayment_RuleViolation(t *testing.T) {
	userID := uuid.New()
	paymentID := uuid.New()
	repo := &MockPaymentRepo{
		GetPaymentFunc: func(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
			return &payment.Payment{ID: id, UserID: userID, Status: payment.StatusCompleted}, nil
		},
	}
	handler := newPaymentHandler(t, repo, &MockMethodRepo{}, &MockAdapter{})

	req := authedRequest(http.MethodPost, "/api/payments/"+paymentID.String()+"/cancel", "", userID)
	req.SetPathValue("id", paymentID.String())

	rr := httptest.NewRecorder()
	handler.HandleCancelPayment(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusBadRequest)
	}
}

func TestHandleRefunds_Create(t *testing.T) {
	userID := uuid.New()
	paymentID := uuid.New()
	repo := &MockPaymentRepo{
		GetPaymentFunc: func(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
			return &payment.Payment{
				ID:         id,
				UserID:     userID,
				ExternalID: "ext-1",
				Amount:     decimal.NewFromInt(100),
				Currency:   "USD",
				Status:     payment.StatusCompleted,
				Provider:   payment.ProviderStripe,
			}, nil
		},
	}
	handler := newPaymentHandler(t, repo, &MockMethodRepo{}, &MockAdapter{})

	req := authedRequest(http.MethodPost, "/api/payments/"+paymentID.String()+"/refunds",
		`{"reason":"requested_by_customer"}`, userID)
	req.SetPathValue("id", paymentID.String())

	rr := httptest.NewRecorder()
	handler.HandleRefunds(rr, req)

	if rr.Code != http.StatusCreated {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusCreated)
	}
}

func TestHandleMethods_CreateValidation(t *testing.T) {
	handler := newPaymentHandler(t, &MockPaymentRepo{}, &MockMethodRepo{}, &MockAdapter{})

	req := authedRequest(http.MethodPost, "/api/payment-methods", `{"provider":"stripe"}`, uuid.New())
	rr := httptest.NewRecorder()
	handler.HandleMethods(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusBadRequest)
	}
}

func TestHandleMethod_Delete(t *testing.T) {
	userID := uuid.New()
	methodID := uuid.New()
	methods := &MockMethodRepo{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*payment.Method, error) {
			return &payment.Method{ID: id, UserID: userID, IsActive: true}, nil
		},
	}
	handler := newPaymentHandler(t, &MockPaymentRepo{}, methods, &MockAdapter{})

	req := authedRequest(http.MethodDelete, "/api/payment-methods/"+methodID.String(), "", userID)
	req.SetPathValue("id", methodID.String())

	rr := httptest.NewRecorder()
	handler.HandleMethod(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusNoContent)
	}
}
