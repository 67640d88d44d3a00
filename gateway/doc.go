// Package gateway implements the REST client for the WhatsApp gateway:
// text delivery, instance connection state, and instance provisioning. It
// satisfies core.GatewayClient.
package gateway
