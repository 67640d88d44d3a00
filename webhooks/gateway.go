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

const EventMessagesUpsert = "messages.upsert"

type gatewayEnvelope struct {
	Event    string `json:"event"`
	Instance string `json:"instance"`
	Data     struct {
		Key struct {
			RemoteJid   string `json:"remoteJid"`
			FromMe      bool   `json:"fromMe"`
			ID          string `json:"id"`
			Participant string `json:"participant"`
		} `json:"key"`
		PushName         string                `json:"pushName"`
		Message          gatewayMessageContent `json:"message"`
		MessageTimestamp int64                 `json:"messageTimestamp"`
	} `json:"data"`
}

// GatewayHandler processes gateway webhook deliveries. Message events split
// on fromMe: customer messages relay into the CRM, the operator's own phone
// messages mirror through the direct channel after a dedup claim.
type GatewayHandler struct {
	service *core.Service
	logger  core.Logger
}

func NewGatewayHandler(service *core.Service, logger core.Logger) *GatewayHandler {
	return &GatewayHandler{
		service: service,
		logger:  glog.Ensure(logger),
	}
}

func (h *GatewayHandler) Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if h == nil || h.service == nil {
		return core.InboundResult{}, fmt.Errorf("webhooks: gateway handler requires a service")
	}

	var envelope gatewayEnvelope
	if err := json.Unmarshal(req.Body, &envelope); err != nil {
		return core.InboundResult{
			Accepted:   false,
			StatusCode: http.StatusBadRequest,
			Metadata:   map[string]any{"reason": "malformed_payload"},
		}, fmt.Errorf("webhooks: decode gateway payload: %w", err)
	}

	event := strings.TrimSpace(envelope.Event)
	if !strings.EqualFold(event, EventMessagesUpsert) {
		return ignored("unhandled_event", map[string]any{"event": event}), nil
	}

	instance := strings.TrimSpace(envelope.Instance)
	remoteJid := strings.TrimSpace(envelope.Data.Key.RemoteJid)
	if instance == "" || remoteJid == "" {
		return core.InboundResult{
			Accepted:   false,
			StatusCode: http.StatusBadRequest,
			Metadata:   map[string]any{"reason": "missing_routing_fields"},
		}, fmt.Errorf("webhooks: gateway event requires instance and remoteJid")
	}
	if isGroupJid(remoteJid) {
		return ignored("group_message", nil), nil
	}

	body, kind := messageBody(envelope.Data.Message)
	if body == "" {
		return ignored("empty_message", nil), nil
	}

	if envelope.Data.Key.FromMe {
		return h.handleDirect(ctx, envelope, instance, remoteJid, body, kind)
	}
	return h.handleInbound(ctx, envelope, instance, remoteJid, body, kind)
}

func (h *GatewayHandler) handleInbound(ctx context.Context, envelope gatewayEnvelope, instance, remoteJid, body, kind string) (core.InboundResult, error) {
	outcome, err := h.service.RelayInbound(ctx, core.InboundMessage{
		InstanceName: instance,
		SenderPhone:  remoteJid,
		PushName:     strings.TrimSpace(envelope.Data.PushName),
		Body:         body,
	})
	if err != nil {
		return failure(err), err
	}
	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata: map[string]any{
			"direction":    "inbound",
			"message_kind": kind,
			"message_id":   outcome.MessageID,
		},
	}, nil
}

func (h *GatewayHandler) handleDirect(ctx context.Context, envelope gatewayEnvelope, instance, remoteJid, body, kind string) (core.InboundResult, error) {
	fp := core.Fingerprint{
		MessageID: envelope.Data.Key.ID,
		Sender:    instance,
		Recipient: remoteJid,
		Timestamp: envelope.Data.MessageTimestamp,
	}
	admitted, err := h.service.ClaimFingerprint(ctx, fp)
	if err != nil {
		return failure(err), err
	}
	if !admitted {
		return ignored("deduped", map[string]any{"message_id": fp.MessageID}), nil
	}

	outcome, err := h.service.RelayDirect(ctx, core.DirectMessage{
		InstanceName:   instance,
		RecipientPhone: remoteJid,
		Body:           body,
	})
	if err != nil {
		return failure(err), err
	}
	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata: map[string]any{
			"direction":    "direct",
			"message_kind": kind,
			"message_id":   outcome.MessageID,
		},
	}, nil
}

func isGroupJid(jid string) bool {
	return strings.HasSuffix(strings.TrimSpace(jid), "@g.us")
}
