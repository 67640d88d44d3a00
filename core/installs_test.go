package core

import (
	"context"
	"testing"
)

func TestService_HandleInstall_ExchangesCodeAndActivates(t *testing.T) {
	env := newTestService(t)

	installation, err := env.service.HandleInstall(context.Background(), InstallInput{
		SubaccountID:           "loc-1",
		CompanyID:              "company-1",
		AuthorizationCode:      "auth-code",
		ConversationProviderID: "provider-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.crm.exchangeCalls != 1 {
		t.Fatalf("expected one code exchange, got %d", env.crm.exchangeCalls)
	}
	if installation.Status != InstallationStatusActive {
		t.Fatalf("expected active installation, got %q", installation.Status)
	}
	if installation.AccessToken != "token-new" {
		t.Fatalf("expected exchanged token, got %q", installation.AccessToken)
	}
	if installation.GatewayInstanceName != "loc-1" {
		t.Fatalf("expected derived instance name, got %q", installation.GatewayInstanceName)
	}
}

func TestService_HandleInstall_ProvisionsMissingInstance(t *testing.T) {
	env := newTestService(t)
	env.gateway.defaultedState = InstanceStateMissing

	if _, err := env.service.HandleInstall(context.Background(), InstallInput{
		SubaccountID:        "loc-1",
		GatewayInstanceName: "instance-1",
		AccessToken:         "token-live",
		RefreshToken:        "refresh-live",
		ExpiresIn:           3600,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.gateway.stateCalls != 1 {
		t.Fatalf("expected one connection-state check, got %d", env.gateway.stateCalls)
	}
	if env.gateway.createCalls != 1 {
		t.Fatalf("expected instance creation, got %d", env.gateway.createCalls)
	}
}

func TestService_HandleInstall_SkipsProvisioningWhenInstanceExists(t *testing.T) {
	env := newTestService(t)
	env.gateway.defaultedState = InstanceStateOpen

	if _, err := env.service.HandleInstall(context.Background(), InstallInput{
		SubaccountID:        "loc-1",
		GatewayInstanceName: "instance-1",
		AccessToken:         "token-live",
		ExpiresIn:           3600,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.gateway.createCalls != 0 {
		t.Fatalf("existing instance must not be recreated, got %d creates", env.gateway.createCalls)
	}
}

func TestService_HandleInstall_WithoutTokenStaysPending(t *testing.T) {
	env := newTestService(t)

	installation, err := env.service.HandleInstall(context.Background(), InstallInput{
		SubaccountID: "loc-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if installation.Status != InstallationStatusPending {
		t.Fatalf("expected pending installation, got %q", installation.Status)
	}
}

func TestService_HandleInstall_RequiresIdentity(t *testing.T) {
	env := newTestService(t)
	if _, err := env.service.HandleInstall(context.Background(), InstallInput{}); err == nil {
		t.Fatalf("expected error for missing identity")
	}
}

func TestService_HandleUninstall_IsIdempotent(t *testing.T) {
	env := newTestService(t)
	env.store.put(activeInstallation(env.now))

	id := Identifier{SubaccountID: "loc-1"}
	if err := env.service.HandleUninstall(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	exists, err := env.store.Exists(context.Background(), "loc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Fatalf("installation should be gone")
	}

	// Repeating the uninstall for an absent tenant still succeeds.
	if err := env.service.HandleUninstall(context.Background(), id); err != nil {
		t.Fatalf("second uninstall must succeed: %v", err)
	}
}

func TestService_HandleUninstall_RequiresIdentifier(t *testing.T) {
	env := newTestService(t)
	if err := env.service.HandleUninstall(context.Background(), Identifier{}); err == nil {
		t.Fatalf("expected error for empty identifier")
	}
}
