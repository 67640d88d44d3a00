package core

import (
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}

	cfg.ServiceName = "  "
	if err := cfg.Validate(); err == nil {
		t.Fatalf("blank service name must fail")
	}

	cfg = DefaultConfig()
	cfg.Dedup.SimilarityGateSeconds = 30
	cfg.Dedup.SimilarityScanSeconds = 10
	if err := cfg.Validate(); err == nil {
		t.Fatalf("gate wider than scan must fail")
	}

	cfg = DefaultConfig()
	cfg.Refresh.LeadSeconds = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("negative refresh lead must fail")
	}
}

func TestConfig_DurationHelpers(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.DedupTTL(); got != 120*time.Second {
		t.Fatalf("unexpected dedup ttl %v", got)
	}
	if got := cfg.RefreshLead(); got != 300*time.Second {
		t.Fatalf("unexpected refresh lead %v", got)
	}
	if got := cfg.CRMTimeout(); got != 30*time.Second {
		t.Fatalf("unexpected crm timeout %v", got)
	}

	cfg.Dedup.TTLSeconds = 0
	if got := cfg.DedupTTL(); got != 120*time.Second {
		t.Fatalf("zero ttl must fall back to default, got %v", got)
	}
	cfg.Gateway.TimeoutSeconds = 5
	if got := cfg.GatewayTimeout(); got != 5*time.Second {
		t.Fatalf("unexpected gateway timeout %v", got)
	}
	cfg.Refresh.LockTTLSeconds = 0
	if got := cfg.RefreshLockTTL(); got != 60*time.Second {
		t.Fatalf("zero lock ttl must fall back to default, got %v", got)
	}
}

func TestGoOptionsResolver_LayersRuntimeOverConfig(t *testing.T) {
	defaults := DefaultConfig()
	loaded := Config{
		ServiceName: "from-config",
		CRM:         CRMConfig{BaseURL: "http://crm.config"},
	}
	runtime := Config{
		CRM: CRMConfig{BaseURL: "http://crm.runtime"},
	}

	resolved, err := (GoOptionsResolver{}).Resolve(defaults, loaded, runtime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.ServiceName != "from-config" {
		t.Fatalf("config layer should supply service name, got %q", resolved.ServiceName)
	}
	if resolved.CRM.BaseURL != "http://crm.runtime" {
		t.Fatalf("runtime layer should win, got %q", resolved.CRM.BaseURL)
	}
	if resolved.Dedup.TTLSeconds != 120 {
		t.Fatalf("defaults should fill unset values, got %d", resolved.Dedup.TTLSeconds)
	}
}
