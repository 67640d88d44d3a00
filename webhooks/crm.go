package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-whatsapp-bridge/core"
)

const (
	EventInstall         = "INSTALL"
	EventUninstall       = "UNINSTALL"
	EventOutboundMessage = "OutboundMessage"
)

type crmEnvelope struct {
	Type                   string `json:"type"`
	LocationID             string `json:"locationId"`
	CompanyID              string `json:"companyId"`
	AccessCode             string `json:"code"`
	ConversationProviderID string `json:"conversationProviderId"`
	InstanceName           string `json:"instanceName"`

	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	ContactID      string `json:"contactId"`
	Phone          string `json:"phone"`
	Body           string `json:"body"`
	Message        string `json:"message"`
	Direction      string `json:"direction"`
	MessageType    string `json:"messageType"`
	Source         string `json:"source"`
	UserID         string `json:"userId"`
}

func (e crmEnvelope) messageBody() string {
	if body := strings.TrimSpace(e.Body); body != "" {
		return body
	}
	return strings.TrimSpace(e.Message)
}

// CRMHandler processes CRM webhook deliveries: app lifecycle (INSTALL and
// UNINSTALL) and conversation events. Unknown event types are acknowledged
// and dropped.
type CRMHandler struct {
	service *core.Service
	logger  core.Logger
}

func NewCRMHandler(service *core.Service, logger core.Logger) *CRMHandler {
	return &CRMHandler{
		service: service,
		logger:  glog.Ensure(logger),
	}
}

func (h *CRMHandler) Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if h == nil || h.service == nil {
		return core.InboundResult{}, fmt.Errorf("webhooks: crm handler requires a service")
	}

	var envelope crmEnvelope
	if err := json.Unmarshal(req.Body, &envelope); err != nil {
		// UNINSTALL must succeed no matter how mangled the payload is: a
		// rejected uninstall strands the tenant in a half-removed state.
		if looksLikeUninstall(req.Body) {
			h.logger.Error("uninstall payload malformed, acknowledging anyway", "error", err.Error())
			return ignored("uninstall_unparseable", nil), nil
		}
		return core.InboundResult{
			Accepted:   false,
			StatusCode: http.StatusBadRequest,
			Metadata:   map[string]any{"reason": "malformed_payload"},
		}, fmt.Errorf("webhooks: decode crm payload: %w", err)
	}

	eventType := strings.TrimSpace(envelope.Type)
	switch {
	case strings.EqualFold(eventType, EventInstall):
		return h.handleInstall(ctx, envelope)
	case strings.EqualFold(eventType, EventUninstall):
		return h.handleUninstall(ctx, envelope)
	case strings.EqualFold(eventType, EventOutboundMessage):
		return h.handleOutboundMessage(ctx, envelope)
	default:
		return ignored("unhandled_event", map[string]any{"event": eventType}), nil
	}
}

func (h *CRMHandler) handleInstall(ctx context.Context, envelope crmEnvelope) (core.InboundResult, error) {
	installation, err := h.service.HandleInstall(ctx, core.InstallInput{
		SubaccountID:           envelope.LocationID,
		CompanyID:              envelope.CompanyID,
		AuthorizationCode:      envelope.AccessCode,
		ConversationProviderID: envelope.ConversationProviderID,
		GatewayInstanceName:    envelope.InstanceName,
	})
	if err != nil {
		return failure(err), err
	}
	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata: map[string]any{
			"event":       EventInstall,
			"resource_id": installation.ResourceID(),
			"status":      string(installation.Status),
		},
	}, nil
}

func (h *CRMHandler) handleUninstall(ctx context.Context, envelope crmEnvelope) (core.InboundResult, error) {
	id := core.Identifier{
		SubaccountID: envelope.LocationID,
		CompanyID:    envelope.CompanyID,
	}
	if id.Empty() {
		// No identifier means nothing to remove. Still a success.
		return ignored("uninstall_no_identifier", nil), nil
	}
	if err := h.service.HandleUninstall(ctx, id); err != nil {
		return failure(err), err
	}
	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata:   map[string]any{"event": EventUninstall},
	}, nil
}

func (h *CRMHandler) handleOutboundMessage(ctx context.Context, envelope crmEnvelope) (core.InboundResult, error) {
	resourceID := strings.TrimSpace(envelope.LocationID)
	if resourceID == "" {
		resourceID = strings.TrimSpace(envelope.CompanyID)
	}

	outcome, err := h.service.RelayOutbound(ctx, core.OutboundMessageEvent{
		ResourceID:     resourceID,
		ConversationID: envelope.ConversationID,
		ContactID:      envelope.ContactID,
		MessageID:      envelope.MessageID,
		Phone:          envelope.Phone,
		Body:           envelope.messageBody(),
		Direction:      envelope.Direction,
		MessageType:    envelope.MessageType,
		Source:         envelope.Source,
		UserID:         envelope.UserID,
	})
	if err != nil {
		return failure(err), err
	}
	if outcome.FilteredBy != "" {
		return ignored("filtered", map[string]any{"filtered_by": outcome.FilteredBy}), nil
	}
	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata: map[string]any{
			"event":      EventOutboundMessage,
			"message_id": outcome.MessageID,
		},
	}, nil
}

// looksLikeUninstall sniffs the raw payload for the uninstall event type
// without requiring the rest of the document to parse.
func looksLikeUninstall(body []byte) bool {
	return strings.Contains(strings.ToUpper(string(body)), `"TYPE":"UNINSTALL"`) ||
		strings.Contains(strings.ToUpper(string(body)), `"TYPE": "UNINSTALL"`)
}
