package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"finbridge/internal/domain/banking"
	"finbridge/internal/shared/middleware"
)

type BankingHandler struct {
	service *banking.Service
}

func NewBankingHandler(service *banking.Service) *BankingHandler {
	return &BankingHandler{service: service}
}

type CreateLinkTokenRequest struct {
	RedirectURI string `json:"redirectUri,omitempty"`
}

type ExchangeTokenRequest struct {
	PublicToken string `json:"publicToken"`
}

// webhookAck is the body returned to the provider for every webhook, even
// malformed ones. The provider only cares about the 200.
type webhookAck struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HandleCreateLinkToken issues a link token to start the link flow.
func (h *BankingHandler) HandleCreateLinkToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateLinkTokenRequest
	if r.Body != nil {
		// Body is optional; a bare POST means no redirect override.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	token, err := h.service.CreateLinkToken(r.Context(), userID, req.RedirectURI)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

// HandleExchangeToken trades a public token for a linked item.
func (h *BankingHandler) HandleExchangeToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req ExchangeTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Error decoding exchange token request: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.PublicToken == "" {
		http.Error(w, "publicToken is required", http.StatusBadRequest)
		return
	}

	result, err := h.service.LinkAccount(r.Context(), userID, req.PublicToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleItems lists the caller's linked items.
func (h *BankingHandler) HandleItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	items, err := h.service.ListUserItems(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []*banking.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleItem serves GET (fetch) and DELETE (unlink) on a single item.
func (h *BankingHandler) HandleItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	itemID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid item ID", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		item, err := h.service.GetItem(r.Context(), userID, itemID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)

	case http.MethodDelete:
		if err := h.service.DeleteItem(r.Context(), userID, itemID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleItemAccounts lists the accounts under one item.
func (h *BankingHandler) HandleItemAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	itemID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid item ID", http.StatusBadRequest)
		return
	}

	accounts, err := h.service.ListItemAccounts(r.Context(), userID, itemID)
	if err != nil {
		writeError(w, err)
		return
	}
	if accounts == nil {
		accounts = []*banking.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

// HandleSyncAccounts triggers an account sync for one of the caller's
// items.
func (h *BankingHandler) HandleSyncAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	item, ok := h.ownedItem(w, r)
	if !ok {
		return
	}

	result, err := h.service.SyncAccounts(r.Context(), item.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleSyncTransactions triggers a transaction sync, windowed by the
// optional days query parameter.
func (h *BankingHandler) HandleSyncTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	item, ok := h.ownedItem(w, r)
	if !ok {
		return
	}

	days := 0
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		if parsed, err := strconv.Atoi(daysStr); err == nil && parsed > 0 {
			days = parsed
		}
	}

	result, err := h.service.SyncTransactions(r.Context(), item.ID, days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleAccountTransactions lists stored transactions for one account.
func (h *BankingHandler) HandleAccountTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	accountID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid account ID", http.StatusBadRequest)
		return
	}

	_, limit := parsePaging(r)
	transactions, err := h.service.ListAccountTransactions(r.Context(), userID, accountID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if transactions == nil {
		transactions = []*banking.Transaction{}
	}
	writeJSON(w, http.StatusOK, transactions)
}

// HandleWebhook ingests provider webhooks. The response is always 200:
// the provider retries on anything else, and a malformed or unknown
// payload will not get better on retry.
func (h *BankingHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload banking.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Printf("Error decoding webhook payload: %v", err)
		writeJSON(w, http.StatusOK, webhookAck{Success: false, Message: "invalid payload"})
		return
	}

	c, err := h.service.ProcessWebhook(r.Context(), payload)
	if err != nil {
		log.Printf("Webhook rejected: %v", err)
		writeJSON(w, http.StatusOK, webhookAck{Success: false, Message: err.Error()})
		return
	}

	message := c.Message
	if message == "" {
		message = "acknowledged"
	}
	writeJSON(w, http.StatusOK, webhookAck{Success: true, Message: message})
}

func (h *BankingHandler) ownedItem(w http.ResponseWriter, r *http.Request) (*banking.Item, bool) {
	userID, _ := middleware.UserID(r.Context())

	itemID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid item ID", http.StatusBadRequest)
		return nil, false
	}

	item, err := h.service.GetItem(r.Context(), userID, itemID)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return item, true
}
