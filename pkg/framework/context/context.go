/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package context creates a framework Provider context, wiring the stores and protocol services of one agent
// instance, and provides simple accessor methods to those same services.
package context

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-connections-go/pkg/config"
	"github.com/hyperledger/aries-connections-go/pkg/crypto"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/didrotate"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/dispatcher/inbound"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/dispatcher/outbound"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/connection"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/didexchange"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/legacyconnection"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/outofband"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/trustping"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-connections-go/pkg/framework/aries/api"
	vdrapi "github.com/hyperledger/aries-connections-go/pkg/framework/aries/api/vdr"
	"github.com/hyperledger/aries-connections-go/pkg/kms"
	"github.com/hyperledger/aries-connections-go/pkg/kms/localkms"
	connectionstore "github.com/hyperledger/aries-connections-go/pkg/store/connection"
	didstore "github.com/hyperledger/aries-connections-go/pkg/store/did"
	"github.com/hyperledger/aries-connections-go/pkg/vdr"
	"github.com/hyperledger/aries-connections-go/pkg/vdr/key"
	"github.com/hyperledger/aries-connections-go/pkg/vdr/peer"
)

const (
	defaultGetConnectionMaxRetries = 3
	defaultGetConnectionBackOff    = time.Second
)

// Provider supplies the framework configuration to client objects.
type Provider struct {
	storeProvider         storage.Provider
	kms                   kms.KeyManager
	crypto                crypto.Crypto
	vdr                   vdrapi.Registry
	bus                   *event.Bus
	contextID             string
	connectionsConfig     *config.Connections
	outboundTransports    []transport.OutboundTransport
	messenger             connection.Messenger
	getConnMaxRetries     uint64
	getConnBackOff        time.Duration
	connectionStore       *connectionstore.Store
	didStore              *didstore.Store
	oob                   *outofband.Service
	connectionService     *connection.Service
	trustPing             *trustping.Service
	didRotate             *didrotate.Service
	services              []dispatcher.ProtocolService
	inboundMessageHandler *inbound.MessageHandler
}

// ProviderOption configures the framework.
type ProviderOption func(opts *Provider) error

// New instantiates a new context provider. Collaborators that are not given default to in-memory storage,
// the local KMS and a registry of the peer and key DID methods.
func New(opts ...ProviderOption) (*Provider, error) {
	ctxProvider := Provider{
		getConnMaxRetries: defaultGetConnectionMaxRetries,
		getConnBackOff:    defaultGetConnectionBackOff,
	}

	for _, opt := range opts {
		err := opt(&ctxProvider)
		if err != nil {
			return nil, fmt.Errorf("option failed: %w", err)
		}
	}

	if err := ctxProvider.setDefaults(); err != nil {
		return nil, err
	}

	if err := ctxProvider.initStores(); err != nil {
		return nil, err
	}

	p := &ctxProvider

	p.connectionService = connection.New(p)
	p.trustPing = trustping.New(p)
	p.didRotate = didrotate.New(p.connectionService)
	p.services = []dispatcher.ProtocolService{
		didexchange.New(p.connectionService),
		legacyconnection.New(p.connectionService),
		p.trustPing,
		p.didRotate,
	}

	if p.messenger == nil {
		p.messenger = outbound.NewOutbound(p)
	}

	p.inboundMessageHandler = inbound.NewInboundMessageHandler(p)

	return p, nil
}

func (p *Provider) setDefaults() error {
	if p.storeProvider == nil {
		p.storeProvider = mem.NewProvider()
	}

	if p.bus == nil {
		p.bus = event.NewBus()
	}

	if p.contextID == "" {
		p.contextID = uuid.New().String()
	}

	if p.connectionsConfig == nil {
		cfg := config.Default().Connections
		p.connectionsConfig = &cfg
	}

	if p.kms == nil || p.crypto == nil {
		k, err := localkms.New(p.storeProvider)
		if err != nil {
			return fmt.Errorf("create local kms: %w", err)
		}

		if p.kms == nil {
			p.kms = k
		}

		if p.crypto == nil {
			p.crypto = k
		}
	}

	if p.vdr == nil {
		peerVDR, err := peer.New(p.storeProvider)
		if err != nil {
			return fmt.Errorf("create peer vdr: %w", err)
		}

		p.vdr = vdr.New(vdr.WithVDR(peerVDR), vdr.WithVDR(key.New()),
			vdr.WithCacheSize(p.connectionsConfig.ResolverCacheSize))
	}

	return nil
}

func (p *Provider) initStores() error {
	var err error

	if p.connectionStore, err = connectionstore.New(p); err != nil {
		return fmt.Errorf("initialize connection store: %w", err)
	}

	if p.didStore, err = didstore.New(p); err != nil {
		return fmt.Errorf("initialize did store: %w", err)
	}

	if p.oob, err = outofband.New(p); err != nil {
		return fmt.Errorf("initialize out-of-band service: %w", err)
	}

	return nil
}

// Service return protocol service.
func (p *Provider) Service(id string) (interface{}, error) {
	for _, v := range p.services {
		if v.Name() == id {
			return v, nil
		}
	}

	return nil, api.ErrSvcNotFound
}

// AllServices returns a copy of the Provider's list of ProtocolServices.
func (p *Provider) AllServices() []dispatcher.ProtocolService {
	ret := make([]dispatcher.ProtocolService, len(p.services))

	copy(ret, p.services)

	return ret
}

// StorageProvider return a storage provider.
func (p *Provider) StorageProvider() storage.Provider {
	return p.storeProvider
}

// KMS returns a Key Management Service.
func (p *Provider) KMS() kms.KeyManager {
	return p.kms
}

// Crypto returns the Crypto service.
func (p *Provider) Crypto() crypto.Crypto {
	return p.crypto
}

// VDRegistry returns a vdr registry.
func (p *Provider) VDRegistry() vdrapi.Registry {
	return p.vdr
}

// EventBus returns the event bus.
func (p *Provider) EventBus() *event.Bus {
	return p.bus
}

// ContextID returns the context correlation id events of this agent are emitted with.
func (p *Provider) ContextID() string {
	return p.contextID
}

// ConnectionsConfig returns the connections configuration.
func (p *Provider) ConnectionsConfig() *config.Connections {
	return p.connectionsConfig
}

// ConnectionStore returns the connection record store.
func (p *Provider) ConnectionStore() *connectionstore.Store {
	return p.connectionStore
}

// DIDStore returns the DID record store.
func (p *Provider) DIDStore() *didstore.Store {
	return p.didStore
}

// OutOfBandService returns the out-of-band service.
func (p *Provider) OutOfBandService() *outofband.Service {
	return p.oob
}

// ConnectionService returns the connection service.
func (p *Provider) ConnectionService() *connection.Service {
	return p.connectionService
}

// TrustPingService returns the trust ping service.
func (p *Provider) TrustPingService() *trustping.Service {
	return p.trustPing
}

// DIDRotateService returns the did-rotate service.
func (p *Provider) DIDRotateService() *didrotate.Service {
	return p.didRotate
}

// OutboundTransports returns an outbound transports.
func (p *Provider) OutboundTransports() []transport.OutboundTransport {
	return p.outboundTransports
}

// Messenger returns the messenger replies and requests are sent with.
func (p *Provider) Messenger() connection.Messenger {
	return p.messenger
}

// InboundMessageHandler return an inbound message handler.
func (p *Provider) InboundMessageHandler() transport.InboundMessageHandler {
	return p.inboundMessageHandler.HandlerFunc()
}

// GetConnectionMaxRetries returns how often the connection of an inbound message is looked up.
func (p *Provider) GetConnectionMaxRetries() uint64 {
	return p.getConnMaxRetries
}

// GetConnectionBackOffDuration returns the wait between connection lookups of an inbound message.
func (p *Provider) GetConnectionBackOffDuration() time.Duration {
	return p.getConnBackOff
}

// WithOutboundTransports injects an outbound transports into the context.
func WithOutboundTransports(transports ...transport.OutboundTransport) ProviderOption {
	return func(opts *Provider) error {
		opts.outboundTransports = transports
		return nil
	}
}

// WithMessenger injects the messenger outbound messages are sent with, instead of the outbound dispatcher.
func WithMessenger(messenger connection.Messenger) ProviderOption {
	return func(opts *Provider) error {
		opts.messenger = messenger
		return nil
	}
}

// WithGetConnectionMaxRetries sets how often the connection of an inbound message is looked up.
func WithGetConnectionMaxRetries(retries uint64) ProviderOption {
	return func(opts *Provider) error {
		opts.getConnMaxRetries = retries
		return nil
	}
}

// WithGetConnectionBackOffDuration sets the wait between connection lookups of an inbound message.
func WithGetConnectionBackOffDuration(duration time.Duration) ProviderOption {
	return func(opts *Provider) error {
		opts.getConnBackOff = duration
		return nil
	}
}

// WithKMS injects a KMS service into the context.
func WithKMS(k kms.KeyManager) ProviderOption {
	return func(opts *Provider) error {
		opts.kms = k
		return nil
	}
}

// WithCrypto injects a Crypto service into the context.
func WithCrypto(c crypto.Crypto) ProviderOption {
	return func(opts *Provider) error {
		opts.crypto = c
		return nil
	}
}

// WithVDRegistry injects a vdr service into the context.
func WithVDRegistry(vdr vdrapi.Registry) ProviderOption {
	return func(opts *Provider) error {
		opts.vdr = vdr
		return nil
	}
}

// WithStorageProvider injects a storage provider into the context.
func WithStorageProvider(s storage.Provider) ProviderOption {
	return func(opts *Provider) error {
		opts.storeProvider = s
		return nil
	}
}

// WithEventBus injects the event bus, which may be shared by agent contexts.
func WithEventBus(bus *event.Bus) ProviderOption {
	return func(opts *Provider) error {
		opts.bus = bus
		return nil
	}
}

// WithContextID sets the context correlation id.
func WithContextID(id string) ProviderOption {
	return func(opts *Provider) error {
		opts.contextID = id
		return nil
	}
}

// WithConnectionsConfig sets the connections configuration.
func WithConnectionsConfig(cfg *config.Connections) ProviderOption {
	return func(opts *Provider) error {
		if cfg == nil {
			return fmt.Errorf("connections config is nil")
		}

		c := *cfg
		opts.connectionsConfig = &c

		return nil
	}
}
