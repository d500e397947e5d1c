/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package trustping

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-connections-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/decorator"
)

var logger = log.New("aries-framework/trustping/service")

const (
	// TrustPing protocol name.
	TrustPing = "trustping"
	// PIURI is the trust ping protocol identifier.
	PIURI = "https://didcomm.org/trust_ping/1.0"
	// PingMsgType defines the trust ping message type.
	PingMsgType = PIURI + "/ping"
	// PingResponseMsgType defines the trust ping response message type.
	PingResponseMsgType = PIURI + "/ping_response"
)

// ErrMissingTheirDID is returned for a ping response on a connection without a counterparty DID.
var ErrMissingTheirDID = errors.New("connection has no their did")

// Provider contains dependencies for the trust ping service.
type Provider interface {
	EventBus() *event.Bus
	ContextID() string
}

// PingOptions configures a new ping.
type PingOptions struct {
	ResponseRequested bool
	Comment           string
}

// Service for the trust ping protocol.
type Service struct {
	bus       *event.Bus
	contextID string
}

// New returns the trust ping service.
func New(p Provider) *Service {
	return &Service{bus: p.EventBus(), contextID: p.ContextID()}
}

// Name is this service's name.
func (s *Service) Name() string {
	return TrustPing
}

// Accept reports whether the service handles the message type.
func (s *Service) Accept(msgType string) bool {
	return msgType == PingMsgType || msgType == PingResponseMsgType
}

// CreatePing returns a new ping message.
func CreatePing(opts PingOptions) *Ping {
	return &Ping{
		Type:              PingMsgType,
		ID:                uuid.New().String(),
		ResponseRequested: opts.ResponseRequested,
		Comment:           opts.Comment,
	}
}

// CreatePing returns a new ping message.
func (s *Service) CreatePing(opts PingOptions) *Ping {
	return CreatePing(opts)
}

// ProcessPing emits event.TrustPingReceived and, when the sender asked for one, returns a threaded response.
func (s *Service) ProcessPing(msgCtx *service.MessageContext) (*service.OutboundMessage, error) {
	conn, err := msgCtx.AssertReadyConnection()
	if err != nil {
		return nil, fmt.Errorf("process ping: %w", err)
	}

	var ping Ping

	if err = msgCtx.Message.Decode(&ping); err != nil {
		return nil, fmt.Errorf("decode ping: %w", err)
	}

	thid, err := msgCtx.Message.ThreadID()
	if err != nil {
		return nil, fmt.Errorf("process ping: %w", err)
	}

	s.bus.Emit(s.contextID, event.TrustPingReceived, &PingReceived{Message: &ping, Connection: conn.Clone()})

	if !ping.ResponseRequested {
		return nil, nil
	}

	msg, err := service.NewDIDCommMsgMap(&PingResponse{
		Type:   PingResponseMsgType,
		ID:     uuid.New().String(),
		Thread: &decorator.Thread{ID: thid},
	})
	if err != nil {
		return nil, err
	}

	logger.Debugf("responding to ping %s on connection %s", ping.ID, conn.ConnectionID)

	return &service.OutboundMessage{Message: msg, Connection: conn}, nil
}

// ProcessPingResponse emits event.TrustPingResponseReceived. The connection must be ready and have a
// counterparty DID.
func (s *Service) ProcessPingResponse(msgCtx *service.MessageContext) error {
	conn, err := msgCtx.AssertReadyConnection()
	if err != nil {
		return fmt.Errorf("process ping response: %w", err)
	}

	if conn.TheirDID == "" {
		return fmt.Errorf("process ping response on %s: %w", conn.ConnectionID, ErrMissingTheirDID)
	}

	var resp PingResponse

	if err = msgCtx.Message.Decode(&resp); err != nil {
		return fmt.Errorf("decode ping response: %w", err)
	}

	s.bus.Emit(s.contextID, event.TrustPingResponseReceived,
		&PingResponseReceived{Message: &resp, Connection: conn.Clone()})

	return nil
}
