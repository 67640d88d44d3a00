package core

import "testing"

func filterByName(t *testing.T, name string) LoopFilter {
	t.Helper()
	for _, filter := range DefaultLoopFilters() {
		if filter.Name == name {
			return filter
		}
	}
	t.Fatalf("filter %q not found", name)
	return LoopFilter{}
}

func TestLoopFilter_DirectionInbound(t *testing.T) {
	filter := filterByName(t, "direction_inbound")
	if !filter.Skip(OutboundMessageEvent{Direction: "inbound"}) {
		t.Fatalf("inbound direction must be skipped")
	}
	if !filter.Skip(OutboundMessageEvent{Direction: " Inbound "}) {
		t.Fatalf("direction match must be case and space insensitive")
	}
	if filter.Skip(OutboundMessageEvent{Direction: "outbound"}) {
		t.Fatalf("outbound direction must pass")
	}
}

func TestLoopFilter_SystemMarker(t *testing.T) {
	filter := filterByName(t, "system_marker")
	if !filter.Skip(OutboundMessageEvent{Body: SystemMessageMarker + "echo"}) {
		t.Fatalf("marker-prefixed body must be skipped")
	}
	if filter.Skip(OutboundMessageEvent{Body: "plain message"}) {
		t.Fatalf("plain body must pass")
	}
	if !filter.Skip(OutboundMessageEvent{Body: "middle " + SystemMessageMarker + " marker"}) {
		t.Fatalf("marker anywhere in the body must be skipped")
	}
}

func TestLoopFilter_NonAgentSource(t *testing.T) {
	filter := filterByName(t, "non_agent_source")
	for _, source := range []string{"", "app", "agent", "user", "manual", " App "} {
		if filter.Skip(OutboundMessageEvent{Source: source}) {
			t.Fatalf("source %q must pass", source)
		}
	}
	for _, source := range []string{"workflow", "api", "campaign", "bulk_action"} {
		if !filter.Skip(OutboundMessageEvent{Source: source}) {
			t.Fatalf("source %q must be skipped", source)
		}
	}
}

func TestService_FilterOutboundEvent_ReportsFirstMatch(t *testing.T) {
	env := newTestService(t)

	name, skipped := env.service.FilterOutboundEvent(OutboundMessageEvent{
		Direction: "inbound",
		Source:    "workflow",
	})
	if !skipped {
		t.Fatalf("expected event to be skipped")
	}
	if name != "direction_inbound" {
		t.Fatalf("expected first filter in chain to win, got %q", name)
	}

	if _, skipped = env.service.FilterOutboundEvent(OutboundMessageEvent{
		Direction: "outbound",
		Source:    "app",
		Body:      "hello",
	}); skipped {
		t.Fatalf("clean event must pass the chain")
	}
}

func TestService_FilterOutboundEvent_CustomChain(t *testing.T) {
	env := newTestService(t, WithLoopFilters(LoopFilter{
		Name: "everything",
		Skip: func(OutboundMessageEvent) bool { return true },
	}))

	name, skipped := env.service.FilterOutboundEvent(OutboundMessageEvent{Direction: "outbound"})
	if !skipped || name != "everything" {
		t.Fatalf("custom chain should apply, got skipped=%v name=%q", skipped, name)
	}
}
