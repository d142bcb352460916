// Package notification delivers user-facing push notifications for
// banking events (re-authentication required, consent expiring).
package notification

import (
	"context"
	"log"

	"github.com/google/uuid"
)

// DeviceRepository resolves a user's registered device tokens.
type DeviceRepository interface {
	ListTokensByUser(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// Service fans a message out to all of a user's devices. Delivery is
// best-effort: failures are logged, never propagated, because every caller
// is on a path (webhook handling, sync) that must not fail on cosmetics.
type Service struct {
	messenger Messenger
	devices   DeviceRepository
}

// NewService creates a notification service. A nil messenger disables
// delivery entirely.
func NewService(messenger Messenger, devices DeviceRepository) *Service {
	return &Service{messenger: messenger, devices: devices}
}

// NotifyUser sends title/body to every device the user has registered.
func (s *Service) NotifyUser(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) {
	if s == nil || s.messenger == nil || s.devices == nil {
		return
	}

	tokens, err := s.devices.ListTokensByUser(ctx, userID)
	if err != nil {
		log.Printf("User %s: failed to list device tokens: %v", userID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	if err := s.messenger.SendMulticast(ctx, tokens, title, body, data); err != nil {
		log.Printf("User %s: failed to send notification: %v", userID, err)
	}
}
