package core

import (
	"context"
	"testing"
)

func TestService_ResolveInstallation_SubaccountWins(t *testing.T) {
	env := newTestService(t)
	env.store.put(activeInstallation(env.now))
	other := activeInstallation(env.now)
	other.SubaccountID = ""
	other.CompanyID = "company-2"
	other.GatewayInstanceName = "instance-2"
	env.store.put(other)

	installation, err := env.service.ResolveInstallation(context.Background(), Identifier{
		SubaccountID: "loc-1",
		CompanyID:    "company-2",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if installation.ResourceID() != "loc-1" {
		t.Fatalf("subaccount candidate should win, got %q", installation.ResourceID())
	}
}

func TestService_ResolveInstallation_FallsBackToCompany(t *testing.T) {
	env := newTestService(t)
	installation := activeInstallation(env.now)
	installation.SubaccountID = ""
	env.store.put(installation)

	resolved, err := env.service.ResolveInstallation(context.Background(), Identifier{
		SubaccountID: "loc-unknown",
		CompanyID:    "company-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.ResourceID() != "company-1" {
		t.Fatalf("expected company fallback, got %q", resolved.ResourceID())
	}
}

func TestService_ResolveInstallation_ByInstanceName(t *testing.T) {
	env := newTestService(t)
	env.store.put(activeInstallation(env.now))

	resolved, err := env.service.ResolveInstallation(context.Background(), Identifier{
		InstanceName: "instance-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.GatewayInstanceName != "instance-1" {
		t.Fatalf("expected instance lookup, got %q", resolved.GatewayInstanceName)
	}
}

func TestService_ResolveInstallation_EmptyIdentifierFails(t *testing.T) {
	env := newTestService(t)
	if _, err := env.service.ResolveInstallation(context.Background(), Identifier{}); err == nil {
		t.Fatalf("expected error for empty identifier")
	}
}

func TestService_ResolveInstallation_MissTurnsIntoNotFound(t *testing.T) {
	env := newTestService(t)
	_, err := env.service.ResolveInstallation(context.Background(), Identifier{SubaccountID: "ghost"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}
