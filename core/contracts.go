package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// SaveInstallationInput carries a partial installation update. Save must
// coalesce: empty fields leave the stored value untouched so that a refresh
// never nulls out routing config and an install never wipes sync state.
type SaveInstallationInput struct {
	SubaccountID           string
	CompanyID              string
	AccessToken            string
	RefreshToken           string
	ExpiresIn              int64
	TokenType              string
	Scope                  string
	UserType               string
	ConversationProviderID string
	GatewayInstanceName    string
	Status                 InstallationStatus
	ClientID               string
	ClientSecret           string
}

type InstallationStore interface {
	Save(ctx context.Context, in SaveInstallationInput) (Installation, error)
	Get(ctx context.Context, resourceID string) (Installation, error)
	// Delete is idempotent: removing an absent record is success.
	Delete(ctx context.Context, resourceID string) error
	Exists(ctx context.Context, resourceID string) (bool, error)
	UpdateStatus(ctx context.Context, resourceID string, status InstallationStatus, reason string) error
	UpdateLastSync(ctx context.Context, resourceID string) error
	GetByInstanceName(ctx context.Context, name string) (Installation, error)
	ListActive(ctx context.Context) ([]Installation, error)
	ListAll(ctx context.Context) ([]Installation, error)
}

type TokenGrantType string

const (
	GrantAuthorizationCode TokenGrantType = "authorization_code"
	GrantRefreshToken      TokenGrantType = "refresh_token"
)

type TokenRequest struct {
	ClientID     string
	ClientSecret string
	GrantType    TokenGrantType
	Code         string
	RefreshToken string
	UserType     string
}

type TokenPayload struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	TokenType    string
	Scope        string
	UserType     string
	SubaccountID string
	CompanyID    string
}

type Contact struct {
	ID    string
	Phone string
	Name  string
}

type Conversation struct {
	ID        string
	ContactID string
}

type CreateContactInput struct {
	SubaccountID string
	Phone        string
	Name         string
}

type PostInboundMessageInput struct {
	SubaccountID   string
	ConversationID string
	Body           string
}

// PostProviderMessageInput posts through the tenant's opaque conversation
// provider channel; no pre-existing conversation is required.
type PostProviderMessageInput struct {
	SubaccountID           string
	ContactID              string
	ConversationProviderID string
	Body                   string
}

type MessageStatus string

const (
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusFailed    MessageStatus = "failed"
)

// CRMClient is the outbound surface toward the conversation API. Every call
// carries the tenant access token; 401/403/404 map to categorized errors.
type CRMClient interface {
	ExchangeToken(ctx context.Context, req TokenRequest) (TokenPayload, error)
	// ProbeAccess issues a lightweight permission check against a stable
	// endpoint; an auth failure means the token lacks required scope.
	ProbeAccess(ctx context.Context, accessToken, subaccountID string) error

	FindContactByPhone(ctx context.Context, accessToken, subaccountID, phone string) (*Contact, error)
	CreateContact(ctx context.Context, accessToken string, in CreateContactInput) (Contact, error)
	GetContact(ctx context.Context, accessToken, subaccountID, contactID string) (Contact, error)
	FindConversation(ctx context.Context, accessToken, subaccountID, contactID string) (*Conversation, error)
	CreateConversation(ctx context.Context, accessToken, subaccountID, contactID string) (Conversation, error)
	PostInboundMessage(ctx context.Context, accessToken string, in PostInboundMessageInput) (string, error)
	PostProviderMessage(ctx context.Context, accessToken string, in PostProviderMessageInput) (string, error)
	UpdateMessageStatus(ctx context.Context, accessToken, subaccountID, messageID string, status MessageStatus) error
}

type SendTextInput struct {
	Number string
	Text   string
}

type SendTextResult struct {
	MessageID string
}

type InstanceState string

const (
	InstanceStateOpen       InstanceState = "open"
	InstanceStateConnecting InstanceState = "connecting"
	InstanceStateClosed     InstanceState = "close"
	InstanceStateMissing    InstanceState = "missing"
)

// GatewayClient is the outbound surface toward the WhatsApp gateway.
type GatewayClient interface {
	SendText(ctx context.Context, instanceName string, in SendTextInput) (SendTextResult, error)
	ConnectionState(ctx context.Context, instanceName string) (InstanceState, error)
	CreateInstance(ctx context.Context, instanceName string) error
}

// DedupCache guards against redundant gateway deliveries. Claim is an atomic
// check-and-insert: true admits the event, false marks it a duplicate.
type DedupCache interface {
	Claim(ctx context.Context, fp Fingerprint, ttl time.Duration) (bool, error)
	PurgeExpired(ctx context.Context) (int, error)
}

type LockHandle interface {
	Unlock(ctx context.Context) error
}

// TenantLocker serializes token refreshes to at most one in flight per
// tenant; refresh tokens are single-use upstream.
type TenantLocker interface {
	Acquire(ctx context.Context, resourceID string, ttl time.Duration) (LockHandle, error)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// InboundRequest is a raw webhook delivery handed to the router by whatever
// HTTP layer the host app runs.
type InboundRequest struct {
	Surface  string
	Headers  map[string]string
	Body     []byte
	Metadata map[string]any
}

type InboundResult struct {
	Accepted   bool
	StatusCode int
	Metadata   map[string]any
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}
