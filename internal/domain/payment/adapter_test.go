package payment

import (
	"context"
	"errors"
	"testing"
)

func TestRegistry_FirstRegisteredBecomesDefault(t *testing.T) {
	registry := NewRegistry()

	if err := registry.Register(ProviderStripe, &MockAdapter{ProviderValue: ProviderStripe}, nil, false); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := registry.Register(ProviderPayPal, &MockAdapter{ProviderValue: ProviderPayPal}, nil, false); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	def, ok := registry.Default()
	if !ok {
		t.Fatal("Expected a default provider")
	}
	if def != ProviderStripe {
		t.Errorf("Expected stripe as default, got %s", def)
	}
}

func TestRegistry_ExplicitDefaultWins(t *testing.T) {
	registry := NewRegistry()

	if err := registry.Register(ProviderStripe, &MockAdapter{ProviderValue: ProviderStripe}, nil, false); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := registry.Register(ProviderPayPal, &MockAdapter{ProviderValue: ProviderPayPal}, nil, true); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	def, _ := registry.Default()
	if def != ProviderPayPal {
		t.Errorf("Expected paypal as default, got %s", def)
	}
}

func TestRegistry_EmptyProviderRoutesToDefault(t *testing.T) {
	registry := NewRegistry()

	called := false
	adapter := &MockAdapter{
		ProviderValue: ProviderStripe,
		GetPaymentFunc: func(ctx context.Context, externalID string) (*Response, error) {
			called = true
			return &Response{ExternalID: externalID, Status: StatusCompleted}, nil
		},
	}
	if err := registry.Register(ProviderStripe, adapter, nil, true); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := registry.GetPayment(context.Background(), "pi_1", ""); err != nil {
		t.Fatalf("GetPayment failed: %v", err)
	}
	if !called {
		t.Error("Expected default adapter to be called")
	}
}

func TestRegistry_UnregisteredProvider(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Get(ProviderACH)

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigError, got %v", err)
	}
}

func TestRegistry_NoDefaultConfigured(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Get("")

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigError, got %v", err)
	}
}

func TestRegistry_InitializeFailureRejectsRegistration(t *testing.T) {
	registry := NewRegistry()

	adapter := &MockAdapter{
		InitializeFunc: func(config map[string]string) error {
			return &ConfigError{Provider: ProviderStripe, Reason: "api_key is required"}
		},
	}

	if err := registry.Register(ProviderStripe, adapter, nil, true); err == nil {
		t.Fatal("Expected registration to fail")
	}
	if _, ok := registry.Default(); ok {
		t.Error("Failed registration must not set a default")
	}
}
