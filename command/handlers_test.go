package command

import (
	"context"
	"fmt"
	"testing"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-whatsapp-bridge/core"
)

type stubMutatingService struct {
	installFn       func(ctx context.Context, in core.InstallInput) (core.Installation, error)
	uninstallFn     func(ctx context.Context, id core.Identifier) error
	refreshFn       func(ctx context.Context, resourceID string) (core.Installation, error)
	relayInboundFn  func(ctx context.Context, msg core.InboundMessage) (core.RelayOutcome, error)
	relayOutboundFn func(ctx context.Context, event core.OutboundMessageEvent) (core.RelayOutcome, error)
	relayDirectFn   func(ctx context.Context, msg core.DirectMessage) (core.RelayOutcome, error)
}

func (s stubMutatingService) HandleInstall(ctx context.Context, in core.InstallInput) (core.Installation, error) {
	if s.installFn == nil {
		return core.Installation{}, fmt.Errorf("unexpected install call")
	}
	return s.installFn(ctx, in)
}

func (s stubMutatingService) HandleUninstall(ctx context.Context, id core.Identifier) error {
	if s.uninstallFn == nil {
		return fmt.Errorf("unexpected uninstall call")
	}
	return s.uninstallFn(ctx, id)
}

func (s stubMutatingService) RefreshTenantToken(ctx context.Context, resourceID string) (core.Installation, error) {
	if s.refreshFn == nil {
		return core.Installation{}, fmt.Errorf("unexpected refresh call")
	}
	return s.refreshFn(ctx, resourceID)
}

func (s stubMutatingService) RelayInbound(ctx context.Context, msg core.InboundMessage) (core.RelayOutcome, error) {
	if s.relayInboundFn == nil {
		return core.RelayOutcome{}, fmt.Errorf("unexpected relay inbound call")
	}
	return s.relayInboundFn(ctx, msg)
}

func (s stubMutatingService) RelayOutbound(ctx context.Context, event core.OutboundMessageEvent) (core.RelayOutcome, error) {
	if s.relayOutboundFn == nil {
		return core.RelayOutcome{}, fmt.Errorf("unexpected relay outbound call")
	}
	return s.relayOutboundFn(ctx, event)
}

func (s stubMutatingService) RelayDirect(ctx context.Context, msg core.DirectMessage) (core.RelayOutcome, error) {
	if s.relayDirectFn == nil {
		return core.RelayOutcome{}, fmt.Errorf("unexpected relay direct call")
	}
	return s.relayDirectFn(ctx, msg)
}

func TestInstallCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	expected := core.Installation{SubaccountID: "loc-1", Status: core.InstallationStatusActive}
	called := false

	svc := stubMutatingService{
		installFn: func(_ context.Context, in core.InstallInput) (core.Installation, error) {
			called = true
			if in.SubaccountID != "loc-1" {
				t.Fatalf("expected subaccount loc-1, got %q", in.SubaccountID)
			}
			return expected, nil
		},
	}

	cmd := NewInstallCommand(svc)
	collector := gocmd.NewResult[core.Installation]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := cmd.Execute(ctx, InstallMessage{Input: core.InstallInput{SubaccountID: "loc-1"}}); err != nil {
		t.Fatalf("execute install: %v", err)
	}
	if !called {
		t.Fatal("expected install service invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatal("expected result to be stored")
	}
	if result.SubaccountID != expected.SubaccountID || result.Status != expected.Status {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestMutationCommands_DelegateToService(t *testing.T) {
	t.Run("uninstall", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			uninstallFn: func(_ context.Context, id core.Identifier) error {
				called = true
				if id.SubaccountID != "loc-1" {
					t.Fatalf("unexpected identifier: %+v", id)
				}
				return nil
			},
		}
		cmd := NewUninstallCommand(svc)
		if err := cmd.Execute(context.Background(), UninstallMessage{
			Identifier: core.Identifier{SubaccountID: "loc-1"},
		}); err != nil {
			t.Fatalf("execute uninstall: %v", err)
		}
		if !called {
			t.Fatal("expected uninstall service invocation")
		}
	})

	t.Run("refresh token", func(t *testing.T) {
		svc := stubMutatingService{
			refreshFn: func(_ context.Context, resourceID string) (core.Installation, error) {
				if resourceID != "loc-1" {
					t.Fatalf("unexpected resource id %q", resourceID)
				}
				return core.Installation{SubaccountID: "loc-1"}, nil
			},
		}
		cmd := NewRefreshTokenCommand(svc)
		if err := cmd.Execute(context.Background(), RefreshTokenMessage{ResourceID: "loc-1"}); err != nil {
			t.Fatalf("execute refresh: %v", err)
		}
	})

	t.Run("relay outbound stores outcome", func(t *testing.T) {
		svc := stubMutatingService{
			relayOutboundFn: func(_ context.Context, event core.OutboundMessageEvent) (core.RelayOutcome, error) {
				if event.MessageID != "crm-msg-1" {
					t.Fatalf("unexpected message id %q", event.MessageID)
				}
				return core.RelayOutcome{Delivered: true, MessageID: "wa-message-1"}, nil
			},
		}
		cmd := NewRelayOutboundCommand(svc)
		collector := gocmd.NewResult[core.RelayOutcome]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := cmd.Execute(ctx, RelayOutboundMessage{
			Event: core.OutboundMessageEvent{ResourceID: "loc-1", MessageID: "crm-msg-1"},
		}); err != nil {
			t.Fatalf("execute relay outbound: %v", err)
		}
		outcome, ok := collector.Load()
		if !ok || !outcome.Delivered || outcome.MessageID != "wa-message-1" {
			t.Fatalf("unexpected outcome: %#v ok=%v", outcome, ok)
		}
	})

	t.Run("relay inbound", func(t *testing.T) {
		svc := stubMutatingService{
			relayInboundFn: func(_ context.Context, msg core.InboundMessage) (core.RelayOutcome, error) {
				if msg.InstanceName != "instance-1" {
					t.Fatalf("unexpected instance %q", msg.InstanceName)
				}
				return core.RelayOutcome{Delivered: true}, nil
			},
		}
		cmd := NewRelayInboundCommand(svc)
		if err := cmd.Execute(context.Background(), RelayInboundMessage{Message: core.InboundMessage{
			InstanceName: "instance-1",
			SenderPhone:  "+15550001111",
			Body:         "hi",
		}}); err != nil {
			t.Fatalf("execute relay inbound: %v", err)
		}
	})

	t.Run("relay direct", func(t *testing.T) {
		svc := stubMutatingService{
			relayDirectFn: func(_ context.Context, msg core.DirectMessage) (core.RelayOutcome, error) {
				if msg.RecipientPhone != "+15550001111" {
					t.Fatalf("unexpected recipient %q", msg.RecipientPhone)
				}
				return core.RelayOutcome{Delivered: true}, nil
			},
		}
		cmd := NewRelayDirectCommand(svc)
		if err := cmd.Execute(context.Background(), RelayDirectMessage{Message: core.DirectMessage{
			InstanceName:   "instance-1",
			RecipientPhone: "+15550001111",
			Body:           "mirrored",
		}}); err != nil {
			t.Fatalf("execute relay direct: %v", err)
		}
	})
}

func TestCommandMessages_Validate(t *testing.T) {
	cases := []struct {
		name    string
		message interface{ Validate() error }
		wantErr bool
	}{
		{"install with identity", InstallMessage{Input: core.InstallInput{CompanyID: "company-1"}}, false},
		{"install without identity", InstallMessage{}, true},
		{"uninstall with identifier", UninstallMessage{Identifier: core.Identifier{SubaccountID: "loc-1"}}, false},
		{"uninstall without identifier", UninstallMessage{}, true},
		{"refresh with resource", RefreshTokenMessage{ResourceID: "loc-1"}, false},
		{"refresh without resource", RefreshTokenMessage{}, true},
		{"relay inbound missing body", RelayInboundMessage{Message: core.InboundMessage{
			InstanceName: "instance-1",
			SenderPhone:  "+15550001111",
		}}, true},
		{"relay outbound with resource", RelayOutboundMessage{Event: core.OutboundMessageEvent{ResourceID: "loc-1"}}, false},
		{"relay outbound without resource", RelayOutboundMessage{}, true},
		{"relay direct missing recipient", RelayDirectMessage{Message: core.DirectMessage{
			InstanceName: "instance-1",
			Body:         "mirrored",
		}}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.message.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestCommands_RequireService(t *testing.T) {
	if err := NewInstallCommand(nil).Execute(context.Background(), InstallMessage{}); err == nil {
		t.Fatal("expected dependency error")
	}
	if err := NewRelayOutboundCommand(nil).Execute(context.Background(), RelayOutboundMessage{}); err == nil {
		t.Fatal("expected dependency error")
	}
}
