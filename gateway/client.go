package gateway

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

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-whatsapp-bridge/core"
)

const defaultClientTimeout = 30 * time.Second
const defaultResponseBodyLimit int64 = 1 << 20

const defaultSendDelayMillis = 1200

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
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

// Client talks to the WhatsApp gateway API. Every request authenticates
// with the shared apikey header.
type Client struct {
	httpClient   HTTPDoer
	baseURL      string
	apiKey       string
	logger       core.Logger
	maxBodyBytes int64
}

func New(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	client := &Client{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:       strings.TrimSpace(cfg.APIKey),
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

func (c *Client) SendText(ctx context.Context, instanceName string, in core.SendTextInput) (core.SendTextResult, error) {
	if c == nil {
		return core.SendTextResult{}, fmt.Errorf("gateway: client is not configured")
	}
	instanceName = strings.TrimSpace(instanceName)
	if instanceName == "" {
		return core.SendTextResult{}, goerrors.New("gateway: instance name is required", goerrors.CategoryBadInput)
	}
	number := normalizeNumber(in.Number)
	if number == "" {
		return core.SendTextResult{}, goerrors.New("gateway: recipient number is required", goerrors.CategoryBadInput)
	}

	status, body, err := c.doJSON(ctx, http.MethodPost, "/message/sendText/"+url.PathEscape(instanceName), map[string]any{
		"number": number,
		"textMessage": map[string]any{
			"text": in.Text,
		},
		"options": map[string]any{
			"delay":       defaultSendDelayMillis,
			"presence":    "composing",
			"linkPreview": true,
		},
	})
	if err != nil {
		return core.SendTextResult{}, requestError("send_text", err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return core.SendTextResult{}, apiError("send_text", status, body)
	}

	var payload struct {
		Key struct {
			ID string `json:"id"`
		} `json:"key"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return core.SendTextResult{}, decodeError("send_text", err)
	}
	return core.SendTextResult{MessageID: strings.TrimSpace(payload.Key.ID)}, nil
}

// ConnectionState reports the instance's socket state. A 404 means the
// instance was never created, which callers treat as provisionable.
func (c *Client) ConnectionState(ctx context.Context, instanceName string) (core.InstanceState, error) {
	if c == nil {
		return "", fmt.Errorf("gateway: client is not configured")
	}
	instanceName = strings.TrimSpace(instanceName)
	if instanceName == "" {
		return "", goerrors.New("gateway: instance name is required", goerrors.CategoryBadInput)
	}

	status, body, err := c.doJSON(ctx, http.MethodGet, "/instance/connectionState/"+url.PathEscape(instanceName), nil)
	if err != nil {
		return "", requestError("connection_state", err)
	}
	if status == http.StatusNotFound {
		return core.InstanceStateMissing, nil
	}
	if status != http.StatusOK {
		return "", apiError("connection_state", status, body)
	}

	var payload struct {
		Instance struct {
			State string `json:"state"`
		} `json:"instance"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", decodeError("connection_state", err)
	}
	switch state := strings.ToLower(strings.TrimSpace(payload.Instance.State)); state {
	case "open":
		return core.InstanceStateOpen, nil
	case "connecting":
		return core.InstanceStateConnecting, nil
	case "close", "closed":
		return core.InstanceStateClosed, nil
	default:
		return core.InstanceStateMissing, nil
	}
}

func (c *Client) CreateInstance(ctx context.Context, instanceName string) error {
	if c == nil {
		return fmt.Errorf("gateway: client is not configured")
	}
	instanceName = strings.TrimSpace(instanceName)
	if instanceName == "" {
		return goerrors.New("gateway: instance name is required", goerrors.CategoryBadInput)
	}

	status, body, err := c.doJSON(ctx, http.MethodPost, "/instance/create", map[string]any{
		"instanceName": instanceName,
		"qrcode":       true,
	})
	if err != nil {
		return requestError("instance_create", err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return apiError("instance_create", status, body)
	}
	return nil
}

// normalizeNumber strips the WhatsApp JID suffix and anything that is not a
// digit; the gateway expects bare numbers.
func normalizeNumber(number string) string {
	number = strings.TrimSpace(number)
	if at := strings.IndexByte(number, '@'); at >= 0 {
		number = number[:at]
	}
	var builder strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	endpoint := c.baseURL + path

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
	httpReq.Header.Set("apikey", c.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("gateway request failed", "method", method, "path", path, "error", err.Error())
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
		return 0, nil, fmt.Errorf("gateway: response body exceeds limit of %d bytes", limit)
	}
	return res.StatusCode, body, nil
}

func apiError(operation string, statusCode int, body []byte) error {
	message := strings.TrimSpace(string(body))
	if len(message) > 512 {
		message = message[:512]
	}
	if message == "" {
		message = http.StatusText(statusCode)
	}

	category := goerrors.CategoryExternal
	switch {
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		category = goerrors.CategoryAuth
	case statusCode == http.StatusNotFound:
		category = goerrors.CategoryNotFound
	case statusCode == http.StatusTooManyRequests:
		category = goerrors.CategoryRateLimit
	case statusCode >= 400 && statusCode < 500:
		category = goerrors.CategoryBadInput
	}

	return goerrors.New(
		fmt.Sprintf("gateway: %s failed with status %d: %s", operation, statusCode, message),
		category,
	).WithCode(statusCode).WithMetadata(map[string]any{
		"operation":   operation,
		"status_code": statusCode,
	})
}

func requestError(operation string, err error) error {
	return goerrors.Wrap(err, goerrors.CategoryExternal, fmt.Sprintf("gateway: %s request failed", operation)).
		WithCode(http.StatusBadGateway).
		WithMetadata(map[string]any{"operation": operation})
}

func decodeError(operation string, err error) error {
	return goerrors.Wrap(err, goerrors.CategoryExternal, fmt.Sprintf("gateway: %s response decode failed", operation)).
		WithCode(http.StatusBadGateway).
		WithMetadata(map[string]any{"operation": operation})
}

var _ core.GatewayClient = (*Client)(nil)
