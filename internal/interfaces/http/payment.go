package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finbridge/internal/domain/payment"
	"finbridge/internal/shared/middleware"
)

type PaymentHandler struct {
	service *payment.Service
}

func NewPaymentHandler(service *payment.Service) *PaymentHandler {
	return &PaymentHandler{service: service}
}

type CreatePaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Provider    string          `json:"provider,omitempty"`
	Method      string          `json:"method,omitempty"`
	Description string          `json:"description,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	ReturnURL   string          `json:"returnUrl,omitempty"`
	CancelURL   string          `json:"cancelUrl,omitempty"`
	IsTest      bool            `json:"isTest,omitempty"`
}

type CreateRefundRequest struct {
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Reason   string           `json:"reason,omitempty"`
	Metadata map[string]any   `json:"metadata,omitempty"`
}

type CreateMethodRequest struct {
	Provider    string         `json:"provider"`
	Type        string         `json:"type"`
	Token       string         `json:"token"`
	LastFour    string         `json:"lastFour,omitempty"`
	ExpiryMonth string         `json:"expiryMonth,omitempty"`
	ExpiryYear  string         `json:"expiryYear,omitempty"`
	IsDefault   bool           `json:"isDefault,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// HandlePayments serves POST (create) and GET (list) on the payments
// collection.
func (h *PaymentHandler) HandlePayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req CreatePaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("Error decoding create payment request: %v", err)
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		params := payment.CreatePaymentParams{
			Amount:      req.Amount,
			Currency:    req.Currency,
			Provider:    payment.Provider(req.Provider),
			Description: req.Description,
			Metadata:    req.Metadata,
			ReturnURL:   req.ReturnURL,
			CancelURL:   req.CancelURL,
			IsTest:      req.IsTest,
		}
		if req.Method != "" {
			m := payment.MethodType(req.Method)
			params.Method = &m
		}

		p, err := h.service.CreatePayment(r.Context(), userID, params)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)

	case http.MethodGet:
		offset, limit := parsePaging(r)
		payments, err := h.service.ListUserPayments(r.Context(), userID, offset, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		if payments == nil {
			payments = []*payment.Payment{}
		}
		writeJSON(w, http.StatusOK, payments)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandlePayment serves GET on a single payment. Admin callers may read
// any payment; everyone else only their own.
func (h *PaymentHandler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	p, ok := h.ownedPayment(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleSyncPayment re-fetches the provider-side status and persists it.
func (h *PaymentHandler) HandleSyncPayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	p, ok := h.ownedPayment(w, r)
	if !ok {
		return
	}

	synced, err := h.service.SyncPaymentStatus(r.Context(), p.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, synced)
}

// HandleCancelPayment cancels a pending or processing payment.
func (h *PaymentHandler) HandleCancelPayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	p, ok := h.ownedPayment(w, r)
	if !ok {
		return
	}

	canceled, err := h.service.CancelPayment(r.Context(), p.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, canceled)
}

// HandleRefunds serves POST (create refund) and GET (list refunds) under
// a payment.
func (h *PaymentHandler) HandleRefunds(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid payment ID", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req CreateRefundRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("Error decoding create refund request: %v", err)
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		refund, err := h.service.CreateRefund(r.Context(), userID, payment.CreateRefundParams{
			PaymentID: paymentID,
			Amount:    req.Amount,
			Reason:    req.Reason,
			Metadata:  req.Metadata,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, refund)

	case http.MethodGet:
		if _, ok := h.checkOwnership(w, r, paymentID); !ok {
			return
		}
		refunds, err := h.service.ListRefunds(r.Context(), paymentID)
		if err != nil {
			writeError(w, err)
			return
		}
		if refunds == nil {
			refunds = []*payment.Refund{}
		}
		writeJSON(w, http.StatusOK, refunds)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMethods serves POST (create) and GET (list) on the stored payment
// instruments collection.
func (h *PaymentHandler) HandleMethods(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req CreateMethodRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("Error decoding create method request: %v", err)
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Provider == "" || req.Type == "" || req.Token == "" {
			http.Error(w, "provider, type, and token are required", http.StatusBadRequest)
			return
		}

		m, err := h.service.CreatePaymentMethod(r.Context(), userID, payment.CreateMethodParams{
			Provider:    payment.Provider(req.Provider),
			Type:        payment.MethodType(req.Type),
			Token:       req.Token,
			LastFour:    req.LastFour,
			ExpiryMonth: req.ExpiryMonth,
			ExpiryYear:  req.ExpiryYear,
			IsDefault:   req.IsDefault,
			Metadata:    req.Metadata,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, m)

	case http.MethodGet:
		provider := payment.Provider(r.URL.Query().Get("provider"))
		methods, err := h.service.ListPaymentMethods(r.Context(), userID, provider)
		if err != nil {
			writeError(w, err)
			return
		}
		if methods == nil {
			methods = []*payment.Method{}
		}
		writeJSON(w, http.StatusOK, methods)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleDefaultMethod returns the default instrument for a provider/type
// pair.
func (h *PaymentHandler) HandleDefaultMethod(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	provider := r.URL.Query().Get("provider")
	methodType := r.URL.Query().Get("type")
	if provider == "" || methodType == "" {
		http.Error(w, "provider and type are required", http.StatusBadRequest)
		return
	}

	m, err := h.service.GetDefaultPaymentMethod(r.Context(), userID,
		payment.Provider(provider), payment.MethodType(methodType))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandleMethod serves PUT .../default (promote) and DELETE (soft delete)
// on a single instrument.
func (h *PaymentHandler) HandleMethod(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	methodID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid method ID", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodDelete:
		if err := h.service.DeletePaymentMethod(r.Context(), methodID, userID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleSetDefaultMethod promotes one instrument to default.
func (h *PaymentHandler) HandleSetDefaultMethod(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	methodID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid method ID", http.StatusBadRequest)
		return
	}

	m, err := h.service.SetDefaultPaymentMethod(r.Context(), methodID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ownedPayment loads the payment from the path id and enforces ownership.
// Admin callers bypass the ownership check.
func (h *PaymentHandler) ownedPayment(w http.ResponseWriter, r *http.Request) (*payment.Payment, bool) {
	if _, ok := middleware.UserID(r.Context()); !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid payment ID", http.StatusBadRequest)
		return nil, false
	}
	return h.checkOwnership(w, r, id)
}

func (h *PaymentHandler) checkOwnership(w http.ResponseWriter, r *http.Request, id uuid.UUID) (*payment.Payment, bool) {
	userID, _ := middleware.UserID(r.Context())

	p, err := h.service.GetPayment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	if p.UserID != userID && !middleware.IsAdmin(r.Context()) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return nil, false
	}
	return p, true
}

func parsePaging(r *http.Request) (offset, limit int) {
	limit = 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return offset, limit
}
