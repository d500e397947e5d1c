/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package provider

import (
	"fmt"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-connections-go/pkg/config"
	"github.com/hyperledger/aries-connections-go/pkg/crypto"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/outofband"
	vdrapi "github.com/hyperledger/aries-connections-go/pkg/framework/aries/api/vdr"
	"github.com/hyperledger/aries-connections-go/pkg/kms"
	"github.com/hyperledger/aries-connections-go/pkg/kms/localkms"
	connectionstore "github.com/hyperledger/aries-connections-go/pkg/store/connection"
	didstore "github.com/hyperledger/aries-connections-go/pkg/store/did"
	"github.com/hyperledger/aries-connections-go/pkg/vdr"
	"github.com/hyperledger/aries-connections-go/pkg/vdr/key"
	"github.com/hyperledger/aries-connections-go/pkg/vdr/peer"
)

// Provider mocks the provider of the protocol services. Every Value field is returned as is.
type Provider struct {
	StorageProviderValue   storage.Provider
	ConnectionStoreValue   *connectionstore.Store
	DIDStoreValue          *didstore.Store
	OutOfBandServiceValue  *outofband.Service
	EventBusValue          *event.Bus
	ContextIDValue         string
	VDRegistryValue        vdrapi.Registry
	KMSValue               kms.KeyManager
	CryptoValue            crypto.Crypto
	ConnectionsConfigValue *config.Connections
}

// New returns a provider of working in-memory services for one agent context.
func New(contextID string, bus *event.Bus) (*Provider, error) {
	p := &Provider{
		StorageProviderValue: mem.NewProvider(),
		EventBusValue:        bus,
		ContextIDValue:       contextID,
	}

	cfg := config.Default().Connections
	cfg.Label = contextID
	cfg.Endpoints = []string{"https://" + contextID + ".example.com"}
	p.ConnectionsConfigValue = &cfg

	var err error

	if p.ConnectionStoreValue, err = connectionstore.New(p); err != nil {
		return nil, err
	}

	if p.DIDStoreValue, err = didstore.New(p); err != nil {
		return nil, err
	}

	if p.OutOfBandServiceValue, err = outofband.New(p); err != nil {
		return nil, err
	}

	peerVDR, err := peer.New(p.StorageProviderValue)
	if err != nil {
		return nil, fmt.Errorf("peer vdr: %w", err)
	}

	p.VDRegistryValue = vdr.New(vdr.WithVDR(peerVDR), vdr.WithVDR(key.New()))

	k, err := localkms.New(p.StorageProviderValue)
	if err != nil {
		return nil, err
	}

	p.KMSValue, p.CryptoValue = k, k

	return p, nil
}

// StorageProvider returns the storage provider.
func (p *Provider) StorageProvider() storage.Provider {
	return p.StorageProviderValue
}

// ConnectionStore returns the connection store.
func (p *Provider) ConnectionStore() *connectionstore.Store {
	return p.ConnectionStoreValue
}

// DIDStore returns the DID store.
func (p *Provider) DIDStore() *didstore.Store {
	return p.DIDStoreValue
}

// OutOfBandService returns the out-of-band service.
func (p *Provider) OutOfBandService() *outofband.Service {
	return p.OutOfBandServiceValue
}

// EventBus returns the event bus.
func (p *Provider) EventBus() *event.Bus {
	return p.EventBusValue
}

// ContextID returns the context correlation id.
func (p *Provider) ContextID() string {
	return p.ContextIDValue
}

// VDRegistry returns the DID registry.
func (p *Provider) VDRegistry() vdrapi.Registry {
	return p.VDRegistryValue
}

// KMS returns the key manager.
func (p *Provider) KMS() kms.KeyManager {
	return p.KMSValue
}

// Crypto returns the crypto service.
func (p *Provider) Crypto() crypto.Crypto {
	return p.CryptoValue
}

// ConnectionsConfig returns the connections configuration.
func (p *Provider) ConnectionsConfig() *config.Connections {
	return p.ConnectionsConfigValue
}
