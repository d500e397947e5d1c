/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"errors"
	"fmt"

	"github.com/hyperledger/aries-connections-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/outofband"
	connectionstore "github.com/hyperledger/aries-connections-go/pkg/store/connection"
)

// RequestOptions configure a handshake request.
type RequestOptions struct {
	Label string
	Alias string
	// OurDID is a created DID to connect with. Without it a DID is created from Routing.
	OurDID   string
	Routing  *Routing
	Goal     string
	GoalCode string
}

// Handshake is one of the connection handshake protocols.
type Handshake interface {
	Protocol() connectionstore.HandshakeProtocol
	// CreateRequest starts a connection from a received invitation. The record is left in request-sent.
	CreateRequest(oob *outofband.Record, opts *RequestOptions) (*service.OutboundMessage, *connectionstore.Record,
		error)
	// ProcessRequest creates a record in request-received for an invitation we sent.
	ProcessRequest(msgCtx *service.MessageContext, oob *outofband.Record) (*connectionstore.Record, error)
	// CreateResponse answers a request and moves the record to response-sent.
	CreateResponse(rec *connectionstore.Record, oob *outofband.Record, routing *Routing) (*service.OutboundMessage,
		error)
	// ProcessResponse authenticates the response and moves the record to response-received.
	ProcessResponse(msgCtx *service.MessageContext, oob *outofband.Record) (*connectionstore.Record, error)
}

// Register makes a handshake available under its protocol. A later registration replaces an earlier one.
func (s *Service) Register(h Handshake) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handshakes[h.Protocol()] = h
}

// Handshake returns the handshake registered for protocol.
func (s *Service) Handshake(protocol connectionstore.HandshakeProtocol) (Handshake, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.handshakes[protocol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandshake, protocol)
	}

	return h, nil
}

// AssertOutOfBand checks the role and state of the out-of-band record a handshake message belongs to.
func AssertOutOfBand(oob *outofband.Record, role outofband.Role, state outofband.State) error {
	if oob == nil {
		return errors.New("missing out-of-band record")
	}

	if oob.Role != role {
		return fmt.Errorf("out-of-band record %s has role %s, expected %s", oob.ID, oob.Role, role)
	}

	if oob.State != state {
		return fmt.Errorf("out-of-band record %s is in state %s, expected %s", oob.ID, oob.State, state)
	}

	return nil
}

// InlineRouting returns the routing of the first inline service of an invitation we sent. Responses use it
// when no routing is given.
func InlineRouting(oob *outofband.Record) (*Routing, error) {
	svc := oob.ResolvedService()
	if svc == nil || len(svc.RecipientKeys) == 0 || len(oob.InlineServiceKeys) == 0 {
		return nil, fmt.Errorf("no routing and no inline service in out-of-band record %s: %w", oob.ID,
			ErrMissingRouting)
	}

	kid, ok := oob.KeyHandle(svc.RecipientKeys[0])
	if !ok {
		return nil, fmt.Errorf("no key handle for inline service key %s", svc.RecipientKeys[0])
	}

	return &Routing{
		Endpoints:          []string{svc.ServiceEndpoint},
		RecipientKey:       svc.RecipientKeys[0],
		RecipientKeyHandle: kid,
		RoutingKeys:        svc.RoutingKeys,
		MediatorID:         oob.MediatorID,
	}, nil
}
