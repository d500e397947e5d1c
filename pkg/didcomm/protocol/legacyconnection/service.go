/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package legacyconnection

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-connections-go/pkg/didcomm/common/model"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/connection"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/outofband"
	"github.com/hyperledger/aries-connections-go/pkg/doc/did"
	"github.com/hyperledger/aries-connections-go/pkg/doc/util/fingerprint"
	connectionstore "github.com/hyperledger/aries-connections-go/pkg/store/connection"
	didstore "github.com/hyperledger/aries-connections-go/pkg/store/did"
	"github.com/hyperledger/aries-connections-go/pkg/vdr/peer"
)

var logger = log.New("aries-framework/legacyconnection/service")

const (
	// LegacyConnection connection protocol.
	LegacyConnection = "legacyconnection"
	// PIURI is the connection protocol identifier URI.
	PIURI = "https://didcomm.org/connections/1.0"
	// RequestMsgType defines the legacy-connection request message type.
	RequestMsgType = PIURI + "/request"
	// ResponseMsgType defines the legacy-connection response message type.
	ResponseMsgType = PIURI + "/response"
	// ProblemReportMsgType defines the protocol problem-report message type.
	ProblemReportMsgType = PIURI + "/problem_report"
)

// Service is the Connections 1.0 handshake.
type Service struct {
	*connection.Service
}

// New returns the handshake on top of the connection service and registers it there.
func New(conn *connection.Service) *Service {
	s := &Service{Service: conn}

	conn.Register(s)

	return s
}

// Name is this handshake's name.
func (s *Service) Name() string {
	return LegacyConnection
}

// Protocol identifies the handshake on connection records.
func (s *Service) Protocol() connectionstore.HandshakeProtocol {
	return connectionstore.ProtocolConnections
}

// Accept reports whether the handshake handles the message type.
func (s *Service) Accept(msgType string) bool {
	return msgType == RequestMsgType || msgType == ResponseMsgType || msgType == ProblemReportMsgType
}

// CreateRequest builds a connection request for a received invitation. Our legacy document is registered as a
// did:peer:1 and the new record is left in request-sent.
func (s *Service) CreateRequest(oob *outofband.Record, opts *connection.RequestOptions) (*service.OutboundMessage,
	*connectionstore.Record, error) {
	if err := connection.AssertOutOfBand(oob, outofband.RoleReceiver, outofband.StatePrepareResponse); err != nil {
		return nil, nil, err
	}

	if opts == nil || opts.Routing == nil {
		return nil, nil, fmt.Errorf("create connection request: %w", connection.ErrMissingRouting)
	}

	legacyDoc, ours, err := s.createLegacyDID(opts.Routing, opts.Routing.RecipientKey, opts.Routing.RecipientKeyHandle)
	if err != nil {
		return nil, nil, fmt.Errorf("create connection request: %w", err)
	}

	label := opts.Label
	if label == "" {
		label = s.Config().Label
	}

	request := &Request{
		Type:       RequestMsgType,
		ID:         uuid.New().String(),
		Label:      label,
		Thread:     &decorator.Thread{PID: oob.InvitationID},
		Connection: &Connection{DID: legacyDoc.ID, DIDDoc: legacyDoc},
	}

	msg, err := service.NewDIDCommMsgMap(request)
	if err != nil {
		return nil, nil, err
	}

	var invitationDID string
	if len(oob.InvitationDIDs) > 0 {
		invitationDID = oob.InvitationDIDs[0]
	}

	rec, err := s.CreateConnection(&connection.CreateParams{
		Protocol:      connectionstore.ProtocolConnections,
		Role:          connectionstore.RoleRequester,
		State:         connectionstore.StateInvitationReceived,
		DID:           ours.DID,
		TheirLabel:    oob.Label,
		Alias:         opts.Alias,
		ThreadID:      request.ID,
		OutOfBandID:   oob.ID,
		InvitationDID: invitationDID,
		MediatorID:    opts.Routing.MediatorID,
	})
	if err != nil {
		return nil, nil, err
	}

	if err = s.UpdateState(rec, connectionstore.StateRequestSent); err != nil {
		return nil, nil, err
	}

	logger.Debugf("created connection request %s for invitation %s", request.ID, oob.InvitationID)

	return &service.OutboundMessage{
		Message:    msg,
		Connection: rec,
		Service:    oob.ResolvedService(),
		SenderKey:  opts.Routing.RecipientKey,
	}, rec, nil
}

// ProcessRequest stores the requester's document and creates a record in request-received for one of our
// invitations.
func (s *Service) ProcessRequest(msgCtx *service.MessageContext, oob *outofband.Record) (*connectionstore.Record,
	error) {
	if err := connection.AssertOutOfBand(oob, outofband.RoleSender, outofband.StateAwaitResponse); err != nil {
		return nil, err
	}

	request := &Request{}

	if err := msgCtx.Message.Decode(request); err != nil {
		return nil, model.NewProblemReportError(connection.ProblemCodeRequestProcessingError,
			"decode connection request: %w", err)
	}

	if request.Connection == nil || request.Connection.DIDDoc == nil {
		return nil, model.NewProblemReportError(connection.ProblemCodeRequestNotAccepted,
			"public DIDs are not supported")
	}

	theirs, err := s.storeLegacyDID(request.Connection.DIDDoc)
	if err != nil {
		return nil, model.NewProblemReportError(connection.ProblemCodeRequestProcessingError,
			"store requester did: %w", err)
	}

	rec, err := s.CreateConnection(&connection.CreateParams{
		Protocol:    connectionstore.ProtocolConnections,
		Role:        connectionstore.RoleResponder,
		State:       connectionstore.StateRequestReceived,
		TheirDID:    theirs.DID,
		TheirLabel:  request.Label,
		Alias:       oob.Alias,
		ThreadID:    request.ID,
		OutOfBandID: oob.ID,
		MediatorID:  oob.MediatorID,
	})
	if err != nil {
		return nil, err
	}

	s.EmitStateChanged(rec, "")

	return rec, nil
}

// CreateResponse answers a request with our document signed by the invitation key and moves the record to
// response-sent. Without routing our document reuses the invitation's inline service.
func (s *Service) CreateResponse(rec *connectionstore.Record, oob *outofband.Record,
	routing *connection.Routing) (*service.OutboundMessage, error) {
	if err := connectionstore.AssertState(rec, connectionstore.StateRequestReceived); err != nil {
		return nil, err
	}

	if err := connectionstore.AssertRole(rec, connectionstore.RoleResponder); err != nil {
		return nil, err
	}

	if rec.ThreadID == "" {
		return nil, fmt.Errorf("connection %s: %w", rec.ConnectionID, connection.ErrMissingThreadID)
	}

	signer, signerKID, err := s.InvitationKey(oob)
	if err != nil {
		return nil, fmt.Errorf("create connection response: %w", err)
	}

	if routing == nil {
		if routing, err = connection.InlineRouting(oob); err != nil {
			return nil, fmt.Errorf("create connection response: %w", err)
		}
	}

	legacyDoc, ours, err := s.createLegacyDID(routing, routing.RecipientKey, routing.RecipientKeyHandle)
	if err != nil {
		return nil, fmt.Errorf("create connection response: %w", err)
	}

	sig, err := signConnection(&Connection{DID: legacyDoc.ID, DIDDoc: legacyDoc}, signer, signerKID, s.Crypto())
	if err != nil {
		return nil, fmt.Errorf("create connection response: %w", err)
	}

	msg, err := service.NewDIDCommMsgMap(&Response{
		Type:                ResponseMsgType,
		ID:                  uuid.New().String(),
		ConnectionSignature: sig,
		Thread:              &decorator.Thread{ID: rec.ThreadID},
	})
	if err != nil {
		return nil, err
	}

	previousDID := rec.DID
	rec.DID = ours.DID

	if err = s.UpdateState(rec, connectionstore.StateResponseSent); err != nil {
		rec.DID = previousDID

		return nil, err
	}

	return &service.OutboundMessage{Message: msg, Connection: rec, SenderKey: signer}, nil
}

// ProcessResponse verifies the connection signature, which must come from the key of the invitation, and moves
// the record to response-received.
func (s *Service) ProcessResponse(msgCtx *service.MessageContext, oob *outofband.Record) (*connectionstore.Record,
	error) {
	if msgCtx.SenderKey == "" || msgCtx.RecipientKey == "" {
		return nil, fmt.Errorf("process connection response: %w", connection.ErrMissingKeys)
	}

	rec := msgCtx.Connection
	if rec == nil {
		return nil, service.ErrNoConnection
	}

	if err := connectionstore.AssertState(rec, connectionstore.StateRequestSent); err != nil {
		return nil, err
	}

	if err := connectionstore.AssertRole(rec, connectionstore.RoleRequester); err != nil {
		return nil, err
	}

	thid, err := msgCtx.Message.ThreadID()
	if err != nil {
		return nil, err
	}

	if thid != rec.ThreadID {
		return nil, fmt.Errorf("response thread %s does not match connection thread %s", thid, rec.ThreadID)
	}

	response := &Response{}

	if err = msgCtx.Message.Decode(response); err != nil {
		return nil, model.NewProblemReportError(connection.ProblemCodeResponseProcessingError,
			"decode connection response: %w", err)
	}

	conn, signer, err := verifyConnection(response.ConnectionSignature, s.Crypto())
	if err != nil {
		return nil, model.NewProblemReportError(connection.ProblemCodeResponseProcessingError, "%w", err)
	}

	if len(oob.RecipientKeyFingerprints) == 0 || signer != oob.RecipientKeyFingerprints[0] {
		return nil, model.NewProblemReportError(connection.ProblemCodeResponseNotAccepted,
			"connection response is not signed with the invitation key, received %s", signer)
	}

	if conn.DIDDoc == nil {
		return nil, model.NewProblemReportError(connection.ProblemCodeResponseProcessingError,
			"did document is missing")
	}

	theirs, err := s.storeLegacyDID(conn.DIDDoc)
	if err != nil {
		return nil, fmt.Errorf("process connection response: %w", err)
	}

	previousDID := rec.TheirDID
	rec.TheirDID = theirs.DID

	if err = s.UpdateState(rec, connectionstore.StateResponseReceived); err != nil {
		rec.TheirDID = previousDID

		return nil, err
	}

	return rec, nil
}

// CreateProblemReport turns a protocol failure into the problem report for the handshake thread.
func CreateProblemReport(prErr *model.ProblemReportError, thid string) (service.DIDCommMsgMap, error) {
	return service.NewDIDCommMsgMap(prErr.ToProblemReport(ProblemReportMsgType, thid, false))
}

// createLegacyDID builds the legacy document for the key and registers its did:peer:1 form as a created DID.
func (s *Service) createLegacyDID(routing *connection.Routing, recipientKey, keyHandle string) (*did.Doc,
	*didstore.Record, error) {
	pub, _, err := fingerprint.PubKeyFromFingerprint(recipientKey)
	if err != nil {
		return nil, nil, fmt.Errorf("recipient key: %w", err)
	}

	services := make([]did.LegacyService, 0, len(routing.Endpoints))
	for _, endpoint := range routing.Endpoints {
		services = append(services, did.LegacyService{ServiceEndpoint: endpoint, RoutingKeys: routing.RoutingKeys})
	}

	legacyDoc, err := did.BuildLegacyDoc(pub, services)
	if err != nil {
		return nil, nil, err
	}

	peerDoc, err := did.ConvertToPeerDoc(legacyDoc)
	if err != nil {
		return nil, nil, err
	}

	rec, err := s.CreateDID(peerDoc, keyHandle, peer.NumAlgo1)
	if err != nil {
		return nil, nil, err
	}

	rec.AlternativeDIDs = append(rec.AlternativeDIDs, legacyDoc.ID)

	if err = s.DIDStore().Update(rec); err != nil {
		return nil, nil, err
	}

	return legacyDoc, rec, nil
}

// storeLegacyDID stores the other party's legacy document under its did:peer:1 form.
func (s *Service) storeLegacyDID(legacyDoc *did.Doc) (*didstore.Record, error) {
	peerDoc, err := did.ConvertToPeerDoc(legacyDoc)
	if err != nil {
		return nil, err
	}

	if len(peerDoc.Service) == 0 {
		return nil, errors.New("did document has no DIDComm service")
	}

	if peerDoc.ID, err = peer.NumAlgo1DID(peerDoc); err != nil {
		return nil, err
	}

	return s.StoreReceivedDID(peerDoc, legacyDoc.ID)
}
