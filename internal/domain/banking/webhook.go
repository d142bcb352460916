package banking

import (
	"errors"
)

// Action is the normalized side effect a webhook asks for.
type Action string

const (
	ActionSyncTransactions    Action = "sync_transactions"
	ActionUpdateItemError     Action = "update_item_error"
	ActionRemoveItem          Action = "remove_item"
	ActionUpdateAccountStatus Action = "update_account_status"
	ActionNotifyUser          Action = "notify_user"
)

// WebhookPayload is the rail-native webhook body.
type WebhookPayload struct {
	WebhookType         string         `json:"webhook_type"`
	WebhookCode         string         `json:"webhook_code"`
	ItemID              string         `json:"item_id"`
	Error               map[string]any `json:"error,omitempty"`
	NewTransactions     int            `json:"new_transactions,omitempty"`
	RemovedTransactions []string       `json:"removed_transactions,omitempty"`
	ConsentExpiration   string         `json:"consent_expiration_time,omitempty"`
}

// Classification is the dispatcher's verdict for one payload. When
// RequiresAction is false the payload is acknowledged and dropped.
type Classification struct {
	WebhookType         string
	WebhookCode         string
	ItemID              string
	RequiresAction      bool
	Action              Action
	Message             string
	Error               map[string]any
	RemovedTransactions []string
}

// ErrInvalidWebhook is returned for payloads missing required fields.
var ErrInvalidWebhook = errors.New("invalid webhook: missing type, code or item id")

// ClassifyWebhook maps a rail-native (type, code) pair onto the action
// taxonomy. Unknown pairs classify as no-action; the dispatcher never
// guesses.
func ClassifyWebhook(p WebhookPayload) (Classification, error) {
	if p.WebhookType == "" || p.WebhookCode == "" || p.ItemID == "" {
		return Classification{}, ErrInvalidWebhook
	}

	c := Classification{
		WebhookType: p.WebhookType,
		WebhookCode: p.WebhookCode,
		ItemID:      p.ItemID,
	}

	switch p.WebhookType {
	case "TRANSACTIONS":
		classifyTransactions(p, &c)
	case "ITEM":
		classifyItem(p, &c)
	case "AUTH":
		classifyAuth(p, &c)
	default:
		// Unrecognized type: acknowledged, no action.
	}

	return c, nil
}

func classifyTransactions(p WebhookPayload, c *Classification) {
	switch p.WebhookCode {
	case "INITIAL_UPDATE":
		c.Message = "initial transaction pull finished"
		c.RequiresAction = true
		c.Action = ActionSyncTransactions
	case "HISTORICAL_UPDATE":
		c.Message = "historical transaction pull finished"
		c.RequiresAction = true
		c.Action = ActionSyncTransactions
	case "DEFAULT_UPDATE":
		c.Message = "new transactions available"
		c.RequiresAction = true
		c.Action = ActionSyncTransactions
	case "TRANSACTIONS_REMOVED":
		c.Message = "transactions removed"
		c.RequiresAction = true
		c.Action = ActionSyncTransactions
		c.RemovedTransactions = p.RemovedTransactions
	}
}

func classifyItem(p WebhookPayload, c *Classification) {
	switch p.WebhookCode {
	case "ERROR":
		c.Message = "item error occurred"
		c.RequiresAction = true
		c.Action = ActionUpdateItemError
		c.Error = p.Error
	case "PENDING_EXPIRATION":
		c.Message = "access token is expiring soon"
		c.RequiresAction = true
		c.Action = ActionNotifyUser
	case "USER_PERMISSION_REVOKED":
		c.Message = "user revoked access"
		c.RequiresAction = true
		c.Action = ActionRemoveItem
	}
}

func classifyAuth(p WebhookPayload, c *Classification) {
	switch p.WebhookCode {
	case "AUTOMATICALLY_VERIFIED":
		c.Message = "microdeposits automatically verified"
		c.RequiresAction = true
		c.Action = ActionUpdateAccountStatus
	case "VERIFICATION_EXPIRED":
		c.Message = "microdeposit verification expired"
		c.RequiresAction = true
		c.Action = ActionNotifyUser
	}
}
