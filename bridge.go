package bridge

import "github.com/goliatone/go-whatsapp-bridge/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type Installation = core.Installation
type InstallationStatus = core.InstallationStatus
type InstallationStore = core.InstallationStore
type Identifier = core.Identifier
type InstallInput = core.InstallInput
type CRMClient = core.CRMClient
type GatewayClient = core.GatewayClient
type DedupCache = core.DedupCache
type TenantLocker = core.TenantLocker
type LoopFilter = core.LoopFilter
type Fingerprint = core.Fingerprint

type InboundMessage = core.InboundMessage
type OutboundMessageEvent = core.OutboundMessageEvent
type DirectMessage = core.DirectMessage
type RelayOutcome = core.RelayOutcome

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorMapper       = core.WithErrorMapper
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithInstallationStore = core.WithInstallationStore
	WithDedupCache        = core.WithDedupCache
	WithTenantLocker      = core.WithTenantLocker
	WithCRMClient         = core.WithCRMClient
	WithGatewayClient     = core.WithGatewayClient
	WithLoopFilters       = core.WithLoopFilters
	WithClock             = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
