// Package webhooks classifies and handles inbound deliveries from both
// sides of the bridge: CRM app lifecycle and conversation events, and
// gateway message events. Handlers take a core.InboundRequest and return a
// core.InboundResult; the host app owns the HTTP layer.
package webhooks
