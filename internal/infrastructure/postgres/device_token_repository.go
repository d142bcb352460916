package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"finbridge/internal/domain/notification"
)

// DeviceTokenRepository persists push-notification device tokens.
type DeviceTokenRepository struct {
	db *DB
}

var _ notification.DeviceRepository = (*DeviceTokenRepository)(nil)

func NewDeviceTokenRepository(db *DB) *DeviceTokenRepository {
	return &DeviceTokenRepository{db: db}
}

// Register stores a token for the user, refreshing the timestamp when the
// token is already known.
func (r *DeviceTokenRepository) Register(ctx context.Context, userID uuid.UUID, token string) error {
	query := `
		INSERT INTO device_tokens (user_id, token)
		VALUES ($1, $2)
		ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, userID, token); err != nil {
		return fmt.Errorf("failed to register device token: %w", err)
	}
	return nil
}

// Remove deletes a token, typically after the push service reports it
// invalid.
func (r *DeviceTokenRepository) Remove(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM device_tokens WHERE token = $1`, token); err != nil {
		return fmt.Errorf("failed to remove device token: %w", err)
	}
	return nil
}

func (r *DeviceTokenRepository) ListTokensByUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT token FROM device_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}
