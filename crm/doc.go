// Package crm implements the REST client for the CRM conversation API:
// OAuth token exchange, contact and conversation lookup, message posting,
// and the permission probe. It satisfies core.CRMClient.
package crm
