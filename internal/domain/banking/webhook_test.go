package banking

import (
	"errors"
	"testing"
)

func TestClassifyWebhook(t *testing.T) {
	tests := []struct {
		name           string
		webhookType    string
		webhookCode    string
		requiresAction bool
		action         Action
	}{
		{"Initial Update", "TRANSACTIONS", "INITIAL_UPDATE", true, ActionSyncTransactions},
		{"Historical Update", "TRANSACTIONS", "HISTORICAL_UPDATE", true, ActionSyncTransactions},
		{"Default Update", "TRANSACTIONS", "DEFAULT_UPDATE", true, ActionSyncTransactions},
		{"Transactions Removed", "TRANSACTIONS", "TRANSACTIONS_REMOVED", true, ActionSyncTransactions},
		{"Unknown Transactions Code", "TRANSACTIONS", "SOMETHING_NEW", false, ""},
		{"Item Error", "ITEM", "ERROR", true, ActionUpdateItemError},
		{"Pending Expiration", "ITEM", "PENDING_EXPIRATION", true, ActionNotifyUser},
		{"Permission Revoked", "ITEM", "USER_PERMISSION_REVOKED", true, ActionRemoveItem},
		{"Auto Verified", "AUTH", "AUTOMATICALLY_VERIFIED", true, ActionUpdateAccountStatus},
		{"Verification Expired", "AUTH", "VERIFICATION_EXPIRED", true, ActionNotifyUser},
		{"Unknown Type", "ASSETS", "PRODUCT_READY", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ClassifyWebhook(WebhookPayload{
				WebhookType: tt.webhookType,
				WebhookCode: tt.webhookCode,
				ItemID:      "item-1",
			})
			if err != nil {
				t.Fatalf("ClassifyWebhook failed: %v", err)
			}
			if c.RequiresAction != tt.requiresAction {
				t.Errorf("Expected requiresAction=%v, got %v", tt.requiresAction, c.RequiresAction)
			}
			if c.Action != tt.action {
				t.Errorf("Expected action %q, got %q", tt.action, c.Action)
			}
		})
	}
}

func TestClassifyWebhook_MissingFields(t *testing.T) {
	_, err := ClassifyWebhook(WebhookPayload{WebhookType: "ITEM"})
	if !errors.Is(err, ErrInvalidWebhook) {
		t.Fatalf("Expected ErrInvalidWebhook, got %v", err)
	}
}

func TestClassifyWebhook_CarriesErrorAndRemovals(t *testing.T) {
	c, err := ClassifyWebhook(WebhookPayload{
		WebhookType: "ITEM",
		WebhookCode: "ERROR",
		ItemID:      "item-1",
		Error:       map[string]any{"error_code": "ITEM_LOGIN_REQUIRED"},
	})
	if err != nil {
		t.Fatalf("ClassifyWebhook failed: %v", err)
	}
	if c.Error["error_code"] != "ITEM_LOGIN_REQUIRED" {
		t.Errorf("Expected error payload to be carried, got %v", c.Error)
	}

	c, err = ClassifyWebhook(WebhookPayload{
		WebhookType:         "TRANSACTIONS",
		WebhookCode:         "TRANSACTIONS_REMOVED",
		ItemID:              "item-1",
		RemovedTransactions: []string{"tx-1", "tx-2"},
	})
	if err != nil {
		t.Fatalf("ClassifyWebhook failed: %v", err)
	}
	if len(c.RemovedTransactions) != 2 {
		t.Errorf("Expected 2 removed transactions, got %d", len(c.RemovedTransactions))
	}
}
