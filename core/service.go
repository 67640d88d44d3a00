package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Service orchestrates the bridge: tenant token lifecycle, webhook intake,
// and the bidirectional message relay between the CRM and the gateway.
type Service struct {
	config            Config
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

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorMapper       ErrorMapper
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	InstallationStore InstallationStore
	DedupCache        DedupCache
	TenantLocker      TenantLocker
	CRMClient         CRMClient
	GatewayClient     GatewayClient
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("whatsapp-bridge", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("whatsapp-bridge"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = func() time.Time {
			return time.Now().UTC()
		}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.tenantLocker == nil {
		builder.tenantLocker = NewMemoryTenantLocker()
	}
	if builder.dedupCache == nil {
		builder.dedupCache = NewMemoryDedupCache(MemoryDedupCacheConfig{
			SimilarityGate: time.Duration(finalConfig.Dedup.SimilarityGateSeconds) * time.Second,
			SimilarityScan: time.Duration(finalConfig.Dedup.SimilarityScanSeconds) * time.Second,
			MaxEntries:     finalConfig.Dedup.MaxEntries,
			Now:            builder.now,
		})
	}
	if len(builder.loopFilters) == 0 {
		builder.loopFilters = DefaultLoopFilters()
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorMapper:       builder.errorMapper,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		installationStore: builder.installationStore,
		dedupCache:        builder.dedupCache,
		tenantLocker:      builder.tenantLocker,
		crmClient:         builder.crmClient,
		gatewayClient:     builder.gatewayClient,
		loopFilters:       builder.loopFilters,
		now:               builder.now,
	}, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorMapper:       s.errorMapper,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		InstallationStore: s.installationStore,
		DedupCache:        s.dedupCache,
		TenantLocker:      s.tenantLocker,
		CRMClient:         s.crmClient,
		GatewayClient:     s.gatewayClient,
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) clock() time.Time {
	if s == nil || s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}
