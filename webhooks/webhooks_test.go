package webhooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-whatsapp-bridge/core"
)

type memoryStore struct {
	mu      sync.Mutex
	records map[string]core.Installation
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[string]core.Installation{}}
}

func (s *memoryStore) put(installation core.Installation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[installation.ResourceID()] = installation
}

func (s *memoryStore) Save(_ context.Context, in core.SaveInstallationInput) (core.Installation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resourceID := strings.TrimSpace(in.SubaccountID)
	if resourceID == "" {
		resourceID = strings.TrimSpace(in.CompanyID)
	}
	record := s.records[resourceID]
	record.SubaccountID = strings.TrimSpace(in.SubaccountID)
	record.CompanyID = strings.TrimSpace(in.CompanyID)
	if in.AccessToken != "" {
		record.AccessToken = in.AccessToken
	}
	if in.RefreshToken != "" {
		record.RefreshToken = in.RefreshToken
	}
	if in.ExpiresIn > 0 {
		record.ExpiresIn = in.ExpiresIn
	}
	if in.ConversationProviderID != "" {
		record.ConversationProviderID = in.ConversationProviderID
	}
	if in.GatewayInstanceName != "" {
		record.GatewayInstanceName = in.GatewayInstanceName
	}
	if in.Status != "" {
		record.Status = in.Status
	}
	record.UpdatedAt = time.Now().UTC()
	s.records[resourceID] = record
	return record, nil
}

func (s *memoryStore) Get(_ context.Context, resourceID string) (core.Installation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[strings.TrimSpace(resourceID)]
	if !ok {
		return core.Installation{}, fmt.Errorf("installation %q not found", resourceID)
	}
	return record, nil
}

func (s *memoryStore) Delete(_ context.Context, resourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, strings.TrimSpace(resourceID))
	return nil
}

func (s *memoryStore) Exists(_ context.Context, resourceID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[strings.TrimSpace(resourceID)]
	return ok, nil
}

func (s *memoryStore) UpdateStatus(_ context.Context, resourceID string, status core.InstallationStatus, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[strings.TrimSpace(resourceID)]
	if !ok {
		return fmt.Errorf("installation %q not found", resourceID)
	}
	record.Status = status
	s.records[strings.TrimSpace(resourceID)] = record
	return nil
}

func (s *memoryStore) UpdateLastSync(_ context.Context, resourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[strings.TrimSpace(resourceID)]
	if !ok {
		return fmt.Errorf("installation %q not found", resourceID)
	}
	now := time.Now().UTC()
	record.LastSyncAt = &now
	s.records[strings.TrimSpace(resourceID)] = record
	return nil
}

func (s *memoryStore) GetByInstanceName(_ context.Context, name string) (core.Installation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records {
		if record.GatewayInstanceName == strings.TrimSpace(name) {
			return record, nil
		}
	}
	return core.Installation{}, fmt.Errorf("installation for instance %q not found", name)
}

func (s *memoryStore) ListActive(_ context.Context) ([]core.Installation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Installation{}
	for _, record := range s.records {
		if record.Status == core.InstallationStatusActive {
			out = append(out, record)
		}
	}
	return out, nil
}

func (s *memoryStore) ListAll(_ context.Context) ([]core.Installation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Installation{}
	for _, record := range s.records {
		out = append(out, record)
	}
	return out, nil
}

type stubCRM struct {
	mu                sync.Mutex
	exchangeCalls     int
	postInboundCalls  int
	postProviderCalls int
	createContact     int
}

func (c *stubCRM) ExchangeToken(context.Context, core.TokenRequest) (core.TokenPayload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exchangeCalls++
	return core.TokenPayload{AccessToken: "token-new", RefreshToken: "refresh-new", ExpiresIn: 3600}, nil
}

func (c *stubCRM) ProbeAccess(context.Context, string, string) error { return nil }

func (c *stubCRM) FindContactByPhone(context.Context, string, string, string) (*core.Contact, error) {
	return nil, nil
}

func (c *stubCRM) CreateContact(_ context.Context, _ string, in core.CreateContactInput) (core.Contact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.createContact++
	return core.Contact{ID: "contact-1", Phone: in.Phone, Name: in.Name}, nil
}

func (c *stubCRM) GetContact(_ context.Context, _, _, contactID string) (core.Contact, error) {
	return core.Contact{ID: contactID, Phone: "15550001111"}, nil
}

func (c *stubCRM) FindConversation(context.Context, string, string, string) (*core.Conversation, error) {
	return nil, nil
}

func (c *stubCRM) CreateConversation(_ context.Context, _, _, contactID string) (core.Conversation, error) {
	return core.Conversation{ID: "conversation-1", ContactID: contactID}, nil
}

func (c *stubCRM) PostInboundMessage(context.Context, string, core.PostInboundMessageInput) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.postInboundCalls++
	return "message-1", nil
}

func (c *stubCRM) PostProviderMessage(context.Context, string, core.PostProviderMessageInput) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.postProviderCalls++
	return "message-2", nil
}

func (c *stubCRM) UpdateMessageStatus(context.Context, string, string, string, core.MessageStatus) error {
	return nil
}

type stubGateway struct {
	mu          sync.Mutex
	sendCalls   int
	stateCalls  int
	createCalls int
}

func (g *stubGateway) SendText(context.Context, string, core.SendTextInput) (core.SendTextResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sendCalls++
	return core.SendTextResult{MessageID: "wa-message-1"}, nil
}

func (g *stubGateway) ConnectionState(context.Context, string) (core.InstanceState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stateCalls++
	return core.InstanceStateOpen, nil
}

func (g *stubGateway) CreateInstance(context.Context, string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls++
	return nil
}

var (
	_ core.InstallationStore = (*memoryStore)(nil)
	_ core.CRMClient         = (*stubCRM)(nil)
	_ core.GatewayClient     = (*stubGateway)(nil)
)

type fixture struct {
	service *core.Service
	store   *memoryStore
	crm     *stubCRM
	gateway *stubGateway
	router  *Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   newMemoryStore(),
		crm:     &stubCRM{},
		gateway: &stubGateway{},
	}
	service, err := core.NewService(core.Config{},
		core.WithInstallationStore(f.store),
		core.WithCRMClient(f.crm),
		core.WithGatewayClient(f.gateway),
	)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	f.service = service
	f.router = NewRouter(service, nil)
	return f
}

func seededInstallation() core.Installation {
	return core.Installation{
		SubaccountID:           "loc-1",
		CompanyID:              "company-1",
		AccessToken:            "token-live",
		RefreshToken:           "refresh-live",
		ExpiresIn:              3600,
		ConversationProviderID: "provider-1",
		GatewayInstanceName:    "instance-1",
		Status:                 core.InstallationStatusActive,
		UpdatedAt:              time.Now().UTC(),
	}
}
