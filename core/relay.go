package core

import (
	"context"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// InboundMessage is a customer message received on a gateway instance that
// must surface inside the CRM conversation stream.
type InboundMessage struct {
	InstanceName string
	SenderPhone  string
	PushName     string
	Body         string
}

// DirectMessage is a message the tenant's operator sent from their own phone
// (fromMe) that must be mirrored into the CRM through the conversation
// provider channel.
type DirectMessage struct {
	InstanceName   string
	RecipientPhone string
	Body           string
}

// RelayOutcome reports what the relay did with one event.
type RelayOutcome struct {
	Delivered  bool
	FilteredBy string
	MessageID  string
}

// RelayInbound pushes a gateway message into the CRM: contact get-or-create
// by phone, conversation get-or-create, then an inbound message post.
func (s *Service) RelayInbound(ctx context.Context, msg InboundMessage) (outcome RelayOutcome, err error) {
	startedAt := s.clock()
	fields := map[string]any{
		"instance_name": msg.InstanceName,
		"direction":     "inbound",
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "relay_inbound", err, fields)
	}()

	if s == nil || s.crmClient == nil {
		err = fmt.Errorf("core: crm client is required")
		return RelayOutcome{}, err
	}
	phone := strings.TrimSpace(msg.SenderPhone)
	if phone == "" {
		err = s.mapError(newBridgeError("sender phone is required", goerrors.CategoryBadInput, BridgeErrorBadInput))
		return RelayOutcome{}, err
	}
	body := strings.TrimSpace(msg.Body)
	if body == "" {
		err = s.mapError(newBridgeError("message body is required", goerrors.CategoryBadInput, BridgeErrorBadInput))
		return RelayOutcome{}, err
	}

	installation, err := s.ResolveInstallation(ctx, Identifier{InstanceName: msg.InstanceName})
	if err != nil {
		return RelayOutcome{}, err
	}
	resourceID := installation.ResourceID()
	fields["resource_id"] = resourceID

	var messageID string
	err = s.WithValidToken(ctx, resourceID, func(ctx context.Context, accessToken string) error {
		contact, contactErr := s.ensureContact(ctx, accessToken, installation.SubaccountID, phone, msg.PushName)
		if contactErr != nil {
			return contactErr
		}
		conversation, conversationErr := s.ensureConversation(ctx, accessToken, installation.SubaccountID, contact.ID)
		if conversationErr != nil {
			return conversationErr
		}
		posted, postErr := s.crmClient.PostInboundMessage(ctx, accessToken, PostInboundMessageInput{
			SubaccountID:   installation.SubaccountID,
			ConversationID: conversation.ID,
			Body:           body,
		})
		if postErr != nil {
			return postErr
		}
		messageID = posted
		return nil
	})
	if err != nil {
		return RelayOutcome{}, err
	}

	s.touchLastSync(ctx, resourceID)
	outcome = RelayOutcome{Delivered: true, MessageID: messageID}
	return outcome, nil
}

// RelayOutbound pushes a CRM conversation message out through the tenant's
// gateway instance. The loop filter chain runs first; filtered events are a
// success with the filter name recorded, not an error.
func (s *Service) RelayOutbound(ctx context.Context, event OutboundMessageEvent) (outcome RelayOutcome, err error) {
	startedAt := s.clock()
	fields := map[string]any{
		"resource_id": event.ResourceID,
		"direction":   "outbound",
	}
	defer func() {
		if outcome.FilteredBy != "" {
			fields["filtered_by"] = outcome.FilteredBy
		}
		s.observeOperation(ctx, startedAt, "relay_outbound", err, fields)
	}()

	if s == nil || s.gatewayClient == nil || s.crmClient == nil {
		err = fmt.Errorf("core: crm and gateway clients are required")
		return RelayOutcome{}, err
	}

	if name, skipped := s.FilterOutboundEvent(event); skipped {
		outcome = RelayOutcome{FilteredBy: name}
		return outcome, nil
	}
	body := strings.TrimSpace(event.Body)
	if body == "" {
		outcome = RelayOutcome{FilteredBy: "empty_body"}
		return outcome, nil
	}

	installation, err := s.ResolveInstallation(ctx, Identifier{
		SubaccountID: event.ResourceID,
		CompanyID:    event.ResourceID,
	})
	if err != nil {
		return RelayOutcome{}, err
	}
	resourceID := installation.ResourceID()
	fields["resource_id"] = resourceID
	fields["instance_name"] = installation.GatewayInstanceName
	if strings.TrimSpace(installation.GatewayInstanceName) == "" {
		err = s.mapError(newBridgeError(
			fmt.Sprintf("tenant %q has no gateway instance configured", resourceID),
			goerrors.CategoryBadInput,
			BridgeErrorBadInput,
		))
		return RelayOutcome{}, err
	}

	phone := strings.TrimSpace(event.Phone)
	if phone == "" {
		lookupErr := s.WithValidToken(ctx, resourceID, func(ctx context.Context, accessToken string) error {
			contact, contactErr := s.crmClient.GetContact(ctx, accessToken, installation.SubaccountID, event.ContactID)
			if contactErr != nil {
				return contactErr
			}
			phone = strings.TrimSpace(contact.Phone)
			return nil
		})
		if lookupErr != nil {
			err = lookupErr
			return RelayOutcome{}, err
		}
	}
	if phone == "" {
		err = s.mapError(newBridgeError(
			fmt.Sprintf("contact %q has no phone number", event.ContactID),
			goerrors.CategoryBadInput,
			BridgeErrorBadInput,
		))
		return RelayOutcome{}, err
	}

	sent, sendErr := s.gatewayClient.SendText(ctx, installation.GatewayInstanceName, SendTextInput{
		Number: phone,
		Text:   body,
	})
	if sendErr != nil {
		s.updateMessageStatusAsync(resourceID, installation.SubaccountID, event.MessageID, MessageStatusFailed)
		err = s.mapError(goerrors.Wrap(sendErr, goerrors.CategoryExternal, "gateway send failed").
			WithTextCode(BridgeErrorRelayFailed))
		return RelayOutcome{}, err
	}

	s.updateMessageStatusAsync(resourceID, installation.SubaccountID, event.MessageID, MessageStatusDelivered)
	s.touchLastSync(ctx, resourceID)
	outcome = RelayOutcome{Delivered: true, MessageID: sent.MessageID}
	return outcome, nil
}

// RelayDirect mirrors an operator's own phone message (fromMe) into the CRM
// through the tenant's conversation provider channel. The posted body is
// marker-prefixed so the outbound filter drops the echo.
func (s *Service) RelayDirect(ctx context.Context, msg DirectMessage) (outcome RelayOutcome, err error) {
	startedAt := s.clock()
	fields := map[string]any{
		"instance_name": msg.InstanceName,
		"direction":     "direct",
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "relay_direct", err, fields)
	}()

	if s == nil || s.crmClient == nil {
		err = fmt.Errorf("core: crm client is required")
		return RelayOutcome{}, err
	}
	phone := strings.TrimSpace(msg.RecipientPhone)
	if phone == "" {
		err = s.mapError(newBridgeError("recipient phone is required", goerrors.CategoryBadInput, BridgeErrorBadInput))
		return RelayOutcome{}, err
	}
	body := strings.TrimSpace(msg.Body)
	if body == "" {
		err = s.mapError(newBridgeError("message body is required", goerrors.CategoryBadInput, BridgeErrorBadInput))
		return RelayOutcome{}, err
	}

	installation, err := s.ResolveInstallation(ctx, Identifier{InstanceName: msg.InstanceName})
	if err != nil {
		return RelayOutcome{}, err
	}
	resourceID := installation.ResourceID()
	fields["resource_id"] = resourceID
	if strings.TrimSpace(installation.ConversationProviderID) == "" {
		err = s.mapError(newBridgeError(
			fmt.Sprintf("tenant %q has no conversation provider configured", resourceID),
			goerrors.CategoryBadInput,
			BridgeErrorBadInput,
		))
		return RelayOutcome{}, err
	}

	var messageID string
	err = s.WithValidToken(ctx, resourceID, func(ctx context.Context, accessToken string) error {
		contact, contactErr := s.ensureContact(ctx, accessToken, installation.SubaccountID, phone, "")
		if contactErr != nil {
			return contactErr
		}
		posted, postErr := s.crmClient.PostProviderMessage(ctx, accessToken, PostProviderMessageInput{
			SubaccountID:           installation.SubaccountID,
			ContactID:              contact.ID,
			ConversationProviderID: installation.ConversationProviderID,
			Body:                   SystemMessageMarker + body,
		})
		if postErr != nil {
			return postErr
		}
		messageID = posted
		return nil
	})
	if err != nil {
		return RelayOutcome{}, err
	}

	s.touchLastSync(ctx, resourceID)
	outcome = RelayOutcome{Delivered: true, MessageID: messageID}
	return outcome, nil
}

// ClaimFingerprint admits a gateway event exactly once per TTL window.
func (s *Service) ClaimFingerprint(ctx context.Context, fp Fingerprint) (bool, error) {
	if s == nil || s.dedupCache == nil {
		return false, fmt.Errorf("core: dedup cache is required")
	}
	admitted, err := s.dedupCache.Claim(ctx, fp, s.config.DedupTTL())
	if err != nil {
		return false, s.mapError(err)
	}
	return admitted, nil
}

func (s *Service) ensureContact(ctx context.Context, accessToken, subaccountID, phone, name string) (Contact, error) {
	// Search then create: two concurrent first messages can race this and
	// produce duplicate contacts. The CRM tolerates it, so no guard.
	existing, err := s.crmClient.FindContactByPhone(ctx, accessToken, subaccountID, phone)
	if err != nil {
		return Contact{}, err
	}
	if existing != nil {
		return *existing, nil
	}
	return s.crmClient.CreateContact(ctx, accessToken, CreateContactInput{
		SubaccountID: subaccountID,
		Phone:        phone,
		Name:         strings.TrimSpace(name),
	})
}

func (s *Service) ensureConversation(ctx context.Context, accessToken, subaccountID, contactID string) (Conversation, error) {
	existing, err := s.crmClient.FindConversation(ctx, accessToken, subaccountID, contactID)
	if err != nil {
		return Conversation{}, err
	}
	if existing != nil {
		return *existing, nil
	}
	return s.crmClient.CreateConversation(ctx, accessToken, subaccountID, contactID)
}

// updateMessageStatusAsync reports delivery state back to the CRM without
// blocking or failing the relay. Errors are logged and dropped.
func (s *Service) updateMessageStatusAsync(resourceID, subaccountID, messageID string, status MessageStatus) {
	if s == nil || s.crmClient == nil || strings.TrimSpace(messageID) == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.CRMTimeout())
		defer cancel()
		err := s.WithValidToken(ctx, resourceID, func(ctx context.Context, accessToken string) error {
			return s.crmClient.UpdateMessageStatus(ctx, accessToken, subaccountID, messageID, status)
		})
		if err != nil {
			s.logError(ctx, "message status update failed", map[string]any{
				"resource_id": resourceID,
				"message_id":  messageID,
				"status":      string(status),
				"error":       err.Error(),
			})
		}
	}()
}

func (s *Service) touchLastSync(ctx context.Context, resourceID string) {
	if s == nil || s.installationStore == nil {
		return
	}
	if err := s.installationStore.UpdateLastSync(ctx, resourceID); err != nil {
		s.logError(ctx, "last sync update failed", map[string]any{
			"resource_id": resourceID,
			"error":       err.Error(),
		})
	}
}
