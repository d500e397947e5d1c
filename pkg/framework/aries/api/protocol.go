/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package api

import (
	"errors"

	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-connections-go/pkg/config"
	"github.com/hyperledger/aries-connections-go/pkg/crypto"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/connection"
	didcommtransport "github.com/hyperledger/aries-connections-go/pkg/didcomm/transport"
	vdrapi "github.com/hyperledger/aries-connections-go/pkg/framework/aries/api/vdr"
	"github.com/hyperledger/aries-connections-go/pkg/kms"
)

// ErrSvcNotFound is returned when service not found.
var ErrSvcNotFound = errors.New("service not found")

// Provider interface for protocol ctx.
type Provider interface {
	Service(id string) (interface{}, error)
	StorageProvider() storage.Provider
	KMS() kms.KeyManager
	Crypto() crypto.Crypto
	VDRegistry() vdrapi.Registry
	EventBus() *event.Bus
	ContextID() string
	ConnectionsConfig() *config.Connections
	ConnectionService() *connection.Service
	Messenger() connection.Messenger
	InboundMessageHandler() didcommtransport.InboundMessageHandler
}
