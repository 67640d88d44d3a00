package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig     Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorMapper       ErrorMapper
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	installationStore InstallationStore
	dedupCache        DedupCache
	tenantLocker      TenantLocker
	crmClient         CRMClient
	gatewayClient     GatewayClient
	loopFilters       []LoopFilter
	now               func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithInstallationStore(store InstallationStore) Option {
	return func(b *serviceBuilder) {
		b.installationStore = store
	}
}

func WithDedupCache(cache DedupCache) Option {
	return func(b *serviceBuilder) {
		b.dedupCache = cache
	}
}

func WithTenantLocker(locker TenantLocker) Option {
	return func(b *serviceBuilder) {
		b.tenantLocker = locker
	}
}

func WithCRMClient(client CRMClient) Option {
	return func(b *serviceBuilder) {
		b.crmClient = client
	}
}

func WithGatewayClient(client GatewayClient) Option {
	return func(b *serviceBuilder) {
		b.gatewayClient = client
	}
}

func WithLoopFilters(filters ...LoopFilter) Option {
	return func(b *serviceBuilder) {
		b.loopFilters = append([]LoopFilter(nil), filters...)
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("whatsapp-bridge", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		loopFilters:     DefaultLoopFilters(),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return bridgeErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	crm := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.CRM.BaseURL) != "" {
		crm["base_url"] = cfg.CRM.BaseURL
	}
	if includeZero || strings.TrimSpace(cfg.CRM.TokenURL) != "" {
		crm["token_url"] = cfg.CRM.TokenURL
	}
	if includeZero || strings.TrimSpace(cfg.CRM.ClientID) != "" {
		crm["client_id"] = cfg.CRM.ClientID
	}
	if includeZero || strings.TrimSpace(cfg.CRM.ClientSecret) != "" {
		crm["client_secret"] = cfg.CRM.ClientSecret
	}
	if includeZero || strings.TrimSpace(cfg.CRM.UserType) != "" {
		crm["user_type"] = cfg.CRM.UserType
	}
	if includeZero || cfg.CRM.TimeoutSeconds > 0 {
		crm["timeout_seconds"] = cfg.CRM.TimeoutSeconds
	}
	if len(crm) > 0 {
		layer["crm"] = crm
	}

	gateway := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Gateway.BaseURL) != "" {
		gateway["base_url"] = cfg.Gateway.BaseURL
	}
	if includeZero || strings.TrimSpace(cfg.Gateway.APIKey) != "" {
		gateway["api_key"] = cfg.Gateway.APIKey
	}
	if includeZero || cfg.Gateway.TimeoutSeconds > 0 {
		gateway["timeout_seconds"] = cfg.Gateway.TimeoutSeconds
	}
	if len(gateway) > 0 {
		layer["gateway"] = gateway
	}

	dedup := map[string]any{}
	if includeZero || cfg.Dedup.TTLSeconds > 0 {
		dedup["ttl_seconds"] = cfg.Dedup.TTLSeconds
	}
	if includeZero || cfg.Dedup.SimilarityGateSeconds > 0 {
		dedup["similarity_gate_seconds"] = cfg.Dedup.SimilarityGateSeconds
	}
	if includeZero || cfg.Dedup.SimilarityScanSeconds > 0 {
		dedup["similarity_scan_seconds"] = cfg.Dedup.SimilarityScanSeconds
	}
	if includeZero || cfg.Dedup.MaxEntries > 0 {
		dedup["max_entries"] = cfg.Dedup.MaxEntries
	}
	if len(dedup) > 0 {
		layer["dedup"] = dedup
	}

	refresh := map[string]any{}
	if includeZero || cfg.Refresh.LeadSeconds > 0 {
		refresh["lead_seconds"] = cfg.Refresh.LeadSeconds
	}
	if includeZero || cfg.Refresh.LockTTLSeconds > 0 {
		refresh["lock_ttl_seconds"] = cfg.Refresh.LockTTLSeconds
	}
	if len(refresh) > 0 {
		layer["refresh"] = refresh
	}

	return layer
}
