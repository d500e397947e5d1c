/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-connections-go/pkg/config"
	"github.com/hyperledger/aries-connections-go/pkg/crypto"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/common/model"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/outofband"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/trustping"
	vdrapi "github.com/hyperledger/aries-connections-go/pkg/framework/aries/api/vdr"
	"github.com/hyperledger/aries-connections-go/pkg/kms"
	connectionstore "github.com/hyperledger/aries-connections-go/pkg/store/connection"
	didstore "github.com/hyperledger/aries-connections-go/pkg/store/did"
)

var logger = log.New("aries-framework/connection/service")

// Problem report codes shared by the handshake protocols.
const (
	ProblemCodeRequestNotAccepted      = "request_not_accepted"
	ProblemCodeRequestProcessingError  = "request_processing_error"
	ProblemCodeResponseNotAccepted     = "response_not_accepted"
	ProblemCodeResponseProcessingError = "response_processing_error"
	ProblemCodeCompleteRejected        = "complete_rejected"
)

var (
	// ErrMissingThreadID is returned when a record or message lacks the thread id an operation needs.
	ErrMissingThreadID = errors.New("missing thread id")
	// ErrMissingRouting is returned when neither a DID nor routing is available to build our DID document.
	ErrMissingRouting = errors.New("missing routing")
	// ErrUnknownHandshake is returned for a protocol without a registered handshake.
	ErrUnknownHandshake = errors.New("no handshake registered for protocol")
	// ErrMissingKeys is returned for a message that needs sender and recipient keys but was not authcrypted.
	ErrMissingKeys = errors.New("message has no sender or recipient key")
)

// Provider contains dependencies for the connection service.
type Provider interface {
	ConnectionStore() *connectionstore.Store
	DIDStore() *didstore.Store
	OutOfBandService() *outofband.Service
	EventBus() *event.Bus
	ContextID() string
	VDRegistry() vdrapi.Registry
	KMS() kms.KeyManager
	Crypto() crypto.Crypto
	ConnectionsConfig() *config.Connections
}

// Messenger delivers outbound messages.
type Messenger interface {
	Send(msg *service.OutboundMessage) error
}

// StateChanged is the payload of event.ConnectionStateChanged. PreviousState is empty for a new record.
type StateChanged struct {
	Record        *connectionstore.Record
	PreviousState connectionstore.State
}

// Service is the state and persistence layer shared by the handshake protocols.
type Service struct {
	connections *connectionstore.Store
	dids        *didstore.Store
	oob         *outofband.Service
	bus         *event.Bus
	contextID   string
	vdr         vdrapi.Registry
	kms         kms.KeyManager
	crypto      crypto.Crypto
	config      config.Connections

	mu         sync.RWMutex
	handshakes map[connectionstore.HandshakeProtocol]Handshake
}

// New returns the connection service.
func New(p Provider) *Service {
	cfg := config.Default().Connections
	if p.ConnectionsConfig() != nil {
		cfg = *p.ConnectionsConfig()
	}

	return &Service{
		connections: p.ConnectionStore(),
		dids:        p.DIDStore(),
		oob:         p.OutOfBandService(),
		bus:         p.EventBus(),
		contextID:   p.ContextID(),
		vdr:         p.VDRegistry(),
		kms:         p.KMS(),
		crypto:      p.Crypto(),
		config:      cfg,
		handshakes:  map[connectionstore.HandshakeProtocol]Handshake{},
	}
}

// Config returns the connections configuration.
func (s *Service) Config() config.Connections {
	return s.config
}

// DIDStore returns the DID record store.
func (s *Service) DIDStore() *didstore.Store {
	return s.dids
}

// OutOfBand returns the out-of-band service.
func (s *Service) OutOfBand() *outofband.Service {
	return s.oob
}

// VDR returns the DID registry.
func (s *Service) VDR() vdrapi.Registry {
	return s.vdr
}

// Crypto returns the crypto service.
func (s *Service) Crypto() crypto.Crypto {
	return s.crypto
}

// KMS returns the key manager.
func (s *Service) KMS() kms.KeyManager {
	return s.kms
}

// EventBus returns the event bus.
func (s *Service) EventBus() *event.Bus {
	return s.bus
}

// ContextID returns the context correlation id of the agent.
func (s *Service) ContextID() string {
	return s.contextID
}

// CreateParams are the initial fields of a new connection.
type CreateParams struct {
	Protocol        connectionstore.HandshakeProtocol
	Role            connectionstore.Role
	State           connectionstore.State
	DID             string
	TheirDID        string
	TheirLabel      string
	Alias           string
	ThreadID        string
	OutOfBandID     string
	InvitationDID   string
	MediatorID      string
	ConnectionTypes []string
}

// CreateConnection persists a new connection record. No event is emitted.
func (s *Service) CreateConnection(params *CreateParams) (*connectionstore.Record, error) {
	if params.Role != connectionstore.RoleRequester && params.Role != connectionstore.RoleResponder {
		return nil, fmt.Errorf("create connection: invalid role %q", params.Role)
	}

	state := params.State
	if state == "" {
		state = connectionstore.StateStart
	}

	rec := &connectionstore.Record{
		State:           state,
		Role:            params.Role,
		Protocol:        params.Protocol,
		DID:             params.DID,
		TheirDID:        params.TheirDID,
		TheirLabel:      params.TheirLabel,
		Alias:           params.Alias,
		ThreadID:        params.ThreadID,
		OutOfBandID:     params.OutOfBandID,
		InvitationDID:   params.InvitationDID,
		MediatorID:      params.MediatorID,
		ConnectionTypes: append([]string(nil), params.ConnectionTypes...),
	}

	if err := s.connections.Save(rec); err != nil {
		return nil, fmt.Errorf("create connection: %w", err)
	}

	logger.Debugf("created connection %s role=%s state=%s", rec.ConnectionID, rec.Role, rec.State)

	return rec, nil
}

// UpdateState moves the record to next, persists it and then emits event.ConnectionStateChanged. The record is
// left unchanged when the transition is not allowed or persisting fails.
func (s *Service) UpdateState(rec *connectionstore.Record, next connectionstore.State) error {
	if err := connectionstore.AssertTransition(rec, next); err != nil {
		return err
	}

	previous := rec.State
	rec.State = next

	if err := s.connections.Update(rec); err != nil {
		rec.State = previous

		return fmt.Errorf("update connection state: %w", err)
	}

	s.EmitStateChanged(rec, previous)

	return nil
}

// Update persists the record without emitting an event.
func (s *Service) Update(rec *connectionstore.Record) error {
	return s.connections.Update(rec)
}

// EmitStateChanged emits event.ConnectionStateChanged with a copy of the record.
func (s *Service) EmitStateChanged(rec *connectionstore.Record, previous connectionstore.State) {
	s.bus.Emit(s.contextID, event.ConnectionStateChanged, &StateChanged{Record: rec.Clone(), PreviousState: previous})
}

// CreateTrustPing completes a requester connection in response-received and returns the ping that tells the
// responder. On a completed connection only the ping is created.
func (s *Service) CreateTrustPing(rec *connectionstore.Record, opts trustping.PingOptions) (*service.OutboundMessage,
	error) {
	if err := connectionstore.AssertState(rec, connectionstore.StateResponseReceived,
		connectionstore.StateCompleted); err != nil {
		return nil, err
	}

	msg, err := service.NewDIDCommMsgMap(trustping.CreatePing(opts))
	if err != nil {
		return nil, err
	}

	if rec.State != connectionstore.StateCompleted {
		if err = s.UpdateState(rec, connectionstore.StateCompleted); err != nil {
			return nil, err
		}
	}

	return &service.OutboundMessage{Message: msg, Connection: rec}, nil
}

// ProcessAck completes a responder connection in response-sent when the requester sends its first message.
// Any other connection is returned unchanged.
func (s *Service) ProcessAck(msgCtx *service.MessageContext) (*connectionstore.Record, error) {
	rec := msgCtx.Connection
	if rec == nil {
		return nil, service.ErrNoConnection
	}

	if rec.State == connectionstore.StateResponseSent && rec.Role == connectionstore.RoleResponder {
		if err := s.UpdateState(rec, connectionstore.StateCompleted); err != nil {
			return nil, err
		}
	}

	return rec, nil
}

// ProcessProblemReport abandons the handshake the problem report is about. Problem reports carry no other proof,
// so the connection is found from the recipient key and the sender key must belong to the other party.
func (s *Service) ProcessProblemReport(msgCtx *service.MessageContext) (*connectionstore.Record, error) {
	if msgCtx.SenderKey == "" || msgCtx.RecipientKey == "" {
		return nil, fmt.Errorf("process problem report: %w", ErrMissingKeys)
	}

	var report model.ProblemReport

	if err := msgCtx.Message.Decode(&report); err != nil {
		return nil, fmt.Errorf("decode problem report: %w", err)
	}

	ours, err := s.dids.FindCreatedByRecipientKey(msgCtx.RecipientKey)
	if err != nil {
		return nil, fmt.Errorf("process problem report: %w", err)
	}

	rec, err := s.connections.FindSingleByQuery(&connectionstore.Query{DID: ours.DID})
	if err != nil {
		return nil, fmt.Errorf("process problem report: %w", err)
	}

	if rec == nil {
		return nil, fmt.Errorf("process problem report: no connection for did %s: %w", ours.DID,
			connectionstore.ErrNotFound)
	}

	if err = s.assertSenderOfConnection(rec, msgCtx.SenderKey); err != nil {
		return nil, fmt.Errorf("process problem report: %w", err)
	}

	rec.ErrorMessage = report.ErrorMessage()

	if rec.State.IsTerminal() {
		return rec, s.connections.Update(rec)
	}

	if err = s.UpdateState(rec, connectionstore.StateAbandoned); err != nil {
		return nil, err
	}

	logger.Infof("connection %s abandoned: %s", rec.ConnectionID, rec.ErrorMessage)

	return rec, nil
}

func (s *Service) assertSenderOfConnection(rec *connectionstore.Record, senderKey string) error {
	if rec.TheirDID != "" {
		theirs, err := s.dids.GetReceived(rec.TheirDID)
		if err != nil {
			return err
		}

		if !contains(theirs.RecipientKeyFingerprints, senderKey) &&
			(theirs.Doc == nil || !theirs.Doc.HasKeyFingerprint(senderKey)) {
			return fmt.Errorf("sender key %s does not belong to %s", senderKey, rec.TheirDID)
		}

		return nil
	}

	// before the response, the other party can only use the keys of its invitation
	if rec.OutOfBandID != "" {
		oob, err := s.oob.GetByID(rec.OutOfBandID)
		if err != nil {
			return err
		}

		if contains(oob.RecipientKeyFingerprints, senderKey) {
			return nil
		}

		for _, svc := range oob.Services {
			if contains(svc.RecipientKeys, senderKey) {
				return nil
			}
		}
	}

	return fmt.Errorf("sender key %s is not known for connection %s", senderKey, rec.ConnectionID)
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}

	return false
}
