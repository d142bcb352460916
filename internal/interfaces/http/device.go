package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"finbridge/internal/shared/middleware"
)

// DeviceRegistry manages push notification device tokens.
type DeviceRegistry interface {
	Register(ctx context.Context, userID uuid.UUID, token string) error
	Remove(ctx context.Context, token string) error
}

// DeviceHandler registers and removes push notification device tokens.
type DeviceHandler struct {
	devices DeviceRegistry
}

func NewDeviceHandler(devices DeviceRegistry) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

// RegisterDeviceRequest is the payload for registering a device token.
type RegisterDeviceRequest struct {
	Token string `json:"token"`
}

// HandleDevices registers (POST) or removes (DELETE) a device token for
// the authenticated user.
func (h *DeviceHandler) HandleDevices(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		http.Error(w, "token is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPost:
		if err := h.devices.Register(r.Context(), userID, req.Token); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
	case http.MethodDelete:
		if err := h.devices.Remove(r.Context(), req.Token); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
