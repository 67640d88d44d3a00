package core

import "strings"

// SystemMessageMarker prefixes every message body the bridge itself posts
// into the CRM conversation stream. The CRM echoes posted messages back out
// through its outbound webhook; the marker lets the loop filter drop them.
const SystemMessageMarker = "\u200e"

// OutboundMessageEvent is a CRM conversation event considered for relay
// toward the gateway.
type OutboundMessageEvent struct {
	ResourceID     string
	ConversationID string
	ContactID      string
	MessageID      string
	Phone          string
	Body           string
	Direction      string
	MessageType    string
	Source         string
	UserID         string
}

// LoopFilter names one reason to drop an outbound CRM event instead of
// relaying it. Skip returns true when the event must not reach the gateway.
type LoopFilter struct {
	Name string
	Skip func(event OutboundMessageEvent) bool
}

// DefaultLoopFilters returns the relay guard chain in evaluation order.
func DefaultLoopFilters() []LoopFilter {
	return []LoopFilter{
		{
			// Inbound events describe messages the bridge already relayed
			// into the CRM; sending them back out would echo forever.
			Name: "direction_inbound",
			Skip: func(event OutboundMessageEvent) bool {
				return strings.EqualFold(strings.TrimSpace(event.Direction), "inbound")
			},
		},
		{
			// The marker can survive edits or quoting anywhere in the body,
			// so containment is the test, not prefix placement.
			Name: "system_marker",
			Skip: func(event OutboundMessageEvent) bool {
				return strings.Contains(event.Body, SystemMessageMarker)
			},
		},
		{
			// Only operator-authored messages relay out. Workflow and API
			// sources have no human behind them and are loop-prone.
			Name: "non_agent_source",
			Skip: func(event OutboundMessageEvent) bool {
				source := strings.ToLower(strings.TrimSpace(event.Source))
				switch source {
				case "", "app", "agent", "user", "manual":
					return false
				}
				return true
			},
		},
	}
}

// FilterOutboundEvent runs the configured filter chain and reports the name
// of the first filter that drops the event.
func (s *Service) FilterOutboundEvent(event OutboundMessageEvent) (string, bool) {
	if s == nil {
		return "", false
	}
	filters := s.loopFilters
	if len(filters) == 0 {
		filters = DefaultLoopFilters()
	}
	for _, filter := range filters {
		if filter.Skip == nil {
			continue
		}
		if filter.Skip(event) {
			return filter.Name, true
		}
	}
	return "", false
}
