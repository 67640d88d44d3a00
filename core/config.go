package core

import (
	"fmt"
	"strings"
	"time"
)

type CRMConfig struct {
	BaseURL        string `koanf:"base_url" mapstructure:"base_url"`
	TokenURL       string `koanf:"token_url" mapstructure:"token_url"`
	ClientID       string `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret   string `koanf:"client_secret" mapstructure:"client_secret"`
	UserType       string `koanf:"user_type" mapstructure:"user_type"`
	TimeoutSeconds int    `koanf:"timeout_seconds" mapstructure:"timeout_seconds"`
}

type GatewayConfig struct {
	BaseURL        string `koanf:"base_url" mapstructure:"base_url"`
	APIKey         string `koanf:"api_key" mapstructure:"api_key"`
	TimeoutSeconds int    `koanf:"timeout_seconds" mapstructure:"timeout_seconds"`
}

type DedupConfig struct {
	TTLSeconds            int `koanf:"ttl_seconds" mapstructure:"ttl_seconds"`
	SimilarityGateSeconds int `koanf:"similarity_gate_seconds" mapstructure:"similarity_gate_seconds"`
	SimilarityScanSeconds int `koanf:"similarity_scan_seconds" mapstructure:"similarity_scan_seconds"`
	MaxEntries            int `koanf:"max_entries" mapstructure:"max_entries"`
}

type RefreshConfig struct {
	LeadSeconds    int `koanf:"lead_seconds" mapstructure:"lead_seconds"`
	LockTTLSeconds int `koanf:"lock_ttl_seconds" mapstructure:"lock_ttl_seconds"`
}

type Config struct {
	ServiceName string        `koanf:"service_name" mapstructure:"service_name"`
	CRM         CRMConfig     `koanf:"crm" mapstructure:"crm"`
	Gateway     GatewayConfig `koanf:"gateway" mapstructure:"gateway"`
	Dedup       DedupConfig   `koanf:"dedup" mapstructure:"dedup"`
	Refresh     RefreshConfig `koanf:"refresh" mapstructure:"refresh"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "whatsapp-bridge",
		CRM: CRMConfig{
			UserType:       "Location",
			TimeoutSeconds: 30,
		},
		Gateway: GatewayConfig{
			TimeoutSeconds: 30,
		},
		Dedup: DedupConfig{
			TTLSeconds:            120,
			SimilarityGateSeconds: 5,
			SimilarityScanSeconds: 10,
			MaxEntries:            10_000,
		},
		Refresh: RefreshConfig{
			LeadSeconds:    300,
			LockTTLSeconds: 60,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Dedup.TTLSeconds < 0 {
		return fmt.Errorf("core: dedup.ttl_seconds must not be negative")
	}
	if c.Dedup.SimilarityGateSeconds > c.Dedup.SimilarityScanSeconds {
		return fmt.Errorf("core: dedup.similarity_gate_seconds must not exceed dedup.similarity_scan_seconds")
	}
	if c.Refresh.LeadSeconds < 0 {
		return fmt.Errorf("core: refresh.lead_seconds must not be negative")
	}
	return nil
}

func (c Config) DedupTTL() time.Duration {
	if c.Dedup.TTLSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.Dedup.TTLSeconds) * time.Second
}

func (c Config) RefreshLead() time.Duration {
	return time.Duration(c.Refresh.LeadSeconds) * time.Second
}

func (c Config) RefreshLockTTL() time.Duration {
	if c.Refresh.LockTTLSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Refresh.LockTTLSeconds) * time.Second
}

func (c Config) CRMTimeout() time.Duration {
	if c.CRM.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.CRM.TimeoutSeconds) * time.Second
}

func (c Config) GatewayTimeout() time.Duration {
	if c.Gateway.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Gateway.TimeoutSeconds) * time.Second
}
