package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-whatsapp-bridge/core"
)

const defaultClientTimeout = 30 * time.Second
const defaultResponseBodyLimit int64 = 4 << 20

// APIVersion is sent on every request; the conversation API versions its
// payload shapes through this header.
const APIVersion = "2021-07-28"

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	BaseURL  string
	TokenURL string
	Timeout  time.Duration
}

type Option func(*Client)

func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

func WithLogger(logger core.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client talks to the CRM conversation API.
type Client struct {
	httpClient   HTTPDoer
	baseURL      string
	tokenURL     string
	logger       core.Logger
	maxBodyBytes int64
}

func New(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	tokenURL := strings.TrimSpace(cfg.TokenURL)
	if tokenURL == "" {
		tokenURL = baseURL + "/oauth/token"
	}

	client := &Client{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      baseURL,
		tokenURL:     tokenURL,
		logger:       glog.Ensure(nil),
		maxBodyBytes: defaultResponseBodyLimit,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: timeout}
	}
	client.logger = glog.Ensure(client.logger)
	return client
}

func (c *Client) ExchangeToken(ctx context.Context, req core.TokenRequest) (core.TokenPayload, error) {
	if c == nil {
		return core.TokenPayload{}, fmt.Errorf("crm: client is not configured")
	}
	form := url.Values{}
	form.Set("client_id", strings.TrimSpace(req.ClientID))
	form.Set("client_secret", strings.TrimSpace(req.ClientSecret))
	form.Set("grant_type", string(req.GrantType))
	switch req.GrantType {
	case core.GrantAuthorizationCode:
		form.Set("code", strings.TrimSpace(req.Code))
	case core.GrantRefreshToken:
		form.Set("refresh_token", strings.TrimSpace(req.RefreshToken))
	}
	if userType := strings.TrimSpace(req.UserType); userType != "" {
		form.Set("user_type", userType)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return core.TokenPayload{}, requestError("token_exchange", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	status, body, err := c.execute(httpReq)
	if err != nil {
		return core.TokenPayload{}, requestError("token_exchange", err)
	}
	if status != http.StatusOK {
		return core.TokenPayload{}, apiError("token_exchange", status, body)
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
		TokenType    string `json:"token_type"`
		Scope        string `json:"scope"`
		UserType     string `json:"userType"`
		LocationID   string `json:"locationId"`
		CompanyID    string `json:"companyId"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return core.TokenPayload{}, decodeError("token_exchange", err)
	}
	return core.TokenPayload{
		AccessToken:  strings.TrimSpace(payload.AccessToken),
		RefreshToken: strings.TrimSpace(payload.RefreshToken),
		ExpiresIn:    payload.ExpiresIn,
		TokenType:    strings.TrimSpace(payload.TokenType),
		Scope:        strings.TrimSpace(payload.Scope),
		UserType:     strings.TrimSpace(payload.UserType),
		SubaccountID: strings.TrimSpace(payload.LocationID),
		CompanyID:    strings.TrimSpace(payload.CompanyID),
	}, nil
}

// ProbeAccess checks that the token can read its own subaccount. A 401 or
// 403 here means the grant is unusable, not that the tenant is missing.
func (c *Client) ProbeAccess(ctx context.Context, accessToken, subaccountID string) error {
	status, body, err := c.getJSON(ctx, accessToken, "/locations/"+url.PathEscape(strings.TrimSpace(subaccountID)), nil)
	if err != nil {
		return requestError("permission_probe", err)
	}
	if status != http.StatusOK {
		return apiError("permission_probe", status, body)
	}
	return nil
}

func (c *Client) FindContactByPhone(ctx context.Context, accessToken, subaccountID, phone string) (*core.Contact, error) {
	query := url.Values{}
	query.Set("locationId", strings.TrimSpace(subaccountID))
	query.Set("phone", normalizePhone(phone))

	status, body, err := c.getJSON(ctx, accessToken, "/contacts/lookup", query)
	if err != nil {
		return nil, requestError("contact_lookup", err)
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, apiError("contact_lookup", status, body)
	}

	var payload struct {
		Contacts []contactRecord `json:"contacts"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, decodeError("contact_lookup", err)
	}
	if len(payload.Contacts) == 0 {
		return nil, nil
	}
	contact := payload.Contacts[0].toContact()
	return &contact, nil
}

func (c *Client) CreateContact(ctx context.Context, accessToken string, in core.CreateContactInput) (core.Contact, error) {
	request := map[string]any{
		"locationId": strings.TrimSpace(in.SubaccountID),
		"phone":      normalizePhone(in.Phone),
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		request["name"] = name
	}

	status, body, err := c.postJSON(ctx, accessToken, "/contacts/", request)
	if err != nil {
		return core.Contact{}, requestError("contact_create", err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return core.Contact{}, apiError("contact_create", status, body)
	}

	var payload struct {
		Contact contactRecord `json:"contact"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return core.Contact{}, decodeError("contact_create", err)
	}
	return payload.Contact.toContact(), nil
}

func (c *Client) GetContact(ctx context.Context, accessToken, subaccountID, contactID string) (core.Contact, error) {
	status, body, err := c.getJSON(ctx, accessToken, "/contacts/"+url.PathEscape(strings.TrimSpace(contactID)), nil)
	if err != nil {
		return core.Contact{}, requestError("contact_get", err)
	}
	if status != http.StatusOK {
		return core.Contact{}, apiError("contact_get", status, body)
	}

	var payload struct {
		Contact contactRecord `json:"contact"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return core.Contact{}, decodeError("contact_get", err)
	}
	return payload.Contact.toContact(), nil
}

func (c *Client) FindConversation(ctx context.Context, accessToken, subaccountID, contactID string) (*core.Conversation, error) {
	query := url.Values{}
	query.Set("locationId", strings.TrimSpace(subaccountID))
	query.Set("contactId", strings.TrimSpace(contactID))

	status, body, err := c.getJSON(ctx, accessToken, "/conversations/search", query)
	if err != nil {
		return nil, requestError("conversation_search", err)
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, apiError("conversation_search", status, body)
	}

	var payload struct {
		Conversations []struct {
			ID        string `json:"id"`
			ContactID string `json:"contactId"`
		} `json:"conversations"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, decodeError("conversation_search", err)
	}
	if len(payload.Conversations) == 0 {
		return nil, nil
	}
	return &core.Conversation{
		ID:        strings.TrimSpace(payload.Conversations[0].ID),
		ContactID: strings.TrimSpace(payload.Conversations[0].ContactID),
	}, nil
}

func (c *Client) CreateConversation(ctx context.Context, accessToken, subaccountID, contactID string) (core.Conversation, error) {
	status, body, err := c.postJSON(ctx, accessToken, "/conversations/", map[string]any{
		"locationId": strings.TrimSpace(subaccountID),
		"contactId":  strings.TrimSpace(contactID),
	})
	if err != nil {
		return core.Conversation{}, requestError("conversation_create", err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return core.Conversation{}, apiError("conversation_create", status, body)
	}

	var payload struct {
		Conversation struct {
			ID        string `json:"id"`
			ContactID string `json:"contactId"`
		} `json:"conversation"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return core.Conversation{}, decodeError("conversation_create", err)
	}
	return core.Conversation{
		ID:        strings.TrimSpace(payload.Conversation.ID),
		ContactID: strings.TrimSpace(payload.Conversation.ContactID),
	}, nil
}

func (c *Client) PostInboundMessage(ctx context.Context, accessToken string, in core.PostInboundMessageInput) (string, error) {
	status, body, err := c.postJSON(ctx, accessToken, "/conversations/messages/inbound", map[string]any{
		"type":           "SMS",
		"conversationId": strings.TrimSpace(in.ConversationID),
		"message":        in.Body,
	})
	if err != nil {
		return "", requestError("message_inbound", err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return "", apiError("message_inbound", status, body)
	}
	return decodeMessageID(body, "message_inbound")
}

func (c *Client) PostProviderMessage(ctx context.Context, accessToken string, in core.PostProviderMessageInput) (string, error) {
	status, body, err := c.postJSON(ctx, accessToken, "/conversations/messages", map[string]any{
		"type":                   "Custom",
		"locationId":             strings.TrimSpace(in.SubaccountID),
		"contactId":              strings.TrimSpace(in.ContactID),
		"conversationProviderId": strings.TrimSpace(in.ConversationProviderID),
		"message":                in.Body,
	})
	if err != nil {
		return "", requestError("message_provider", err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return "", apiError("message_provider", status, body)
	}
	return decodeMessageID(body, "message_provider")
}

func (c *Client) UpdateMessageStatus(ctx context.Context, accessToken, subaccountID, messageID string, status core.MessageStatus) error {
	payload := map[string]any{
		"status": string(status),
	}
	httpStatus, body, err := c.doJSON(ctx, http.MethodPut, accessToken,
		"/conversations/messages/"+url.PathEscape(strings.TrimSpace(messageID))+"/status", nil, payload)
	if err != nil {
		return requestError("message_status", err)
	}
	if httpStatus != http.StatusOK {
		return apiError("message_status", httpStatus, body)
	}
	return nil
}

type contactRecord struct {
	ID          string `json:"id"`
	Phone       string `json:"phone"`
	Name        string `json:"name"`
	ContactName string `json:"contactName"`
}

func (r contactRecord) toContact() core.Contact {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		name = strings.TrimSpace(r.ContactName)
	}
	return core.Contact{
		ID:    strings.TrimSpace(r.ID),
		Phone: strings.TrimSpace(r.Phone),
		Name:  name,
	}
}

func decodeMessageID(body []byte, operation string) (string, error) {
	var payload struct {
		MessageID string `json:"messageId"`
		ID        string `json:"id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", decodeError(operation, err)
	}
	if id := strings.TrimSpace(payload.MessageID); id != "" {
		return id, nil
	}
	return strings.TrimSpace(payload.ID), nil
}

// normalizePhone keeps digits and a single leading plus so lookups match
// regardless of how the gateway formats the number.
func normalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	var builder strings.Builder
	for i, r := range phone {
		if r == '+' && i == 0 {
			builder.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			builder.WriteRune(r)
		}
	}
	normalized := builder.String()
	if normalized != "" && !strings.HasPrefix(normalized, "+") {
		normalized = "+" + normalized
	}
	return normalized
}

func (c *Client) getJSON(ctx context.Context, accessToken, path string, query url.Values) (int, []byte, error) {
	return c.doJSON(ctx, http.MethodGet, accessToken, path, query, nil)
}

func (c *Client) postJSON(ctx context.Context, accessToken, path string, payload any) (int, []byte, error) {
	return c.doJSON(ctx, http.MethodPost, accessToken, path, nil, payload)
}

func (c *Client) doJSON(ctx context.Context, method, accessToken, path string, query url.Values, payload any) (int, []byte, error) {
	if c == nil || c.httpClient == nil {
		return 0, nil, fmt.Errorf("crm: client is not configured")
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reqBody = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return 0, nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+strings.TrimSpace(accessToken))
	httpReq.Header.Set("Version", APIVersion)
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return c.execute(httpReq)
}

func (c *Client) execute(req *http.Request) (int, []byte, error) {
	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("crm request failed", "method", req.Method, "path", req.URL.Path, "error", err.Error())
		return 0, nil, err
	}
	defer res.Body.Close()

	limit := c.maxBodyBytes
	if limit <= 0 {
		limit = defaultResponseBodyLimit
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, limit+1))
	if err != nil {
		return 0, nil, err
	}
	if int64(len(body)) > limit {
		return 0, nil, fmt.Errorf("crm: response body exceeds limit of %d bytes", limit)
	}
	return res.StatusCode, body, nil
}

var _ core.CRMClient = (*Client)(nil)
