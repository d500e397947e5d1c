/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package didexchange

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-connections-go/pkg/didcomm/common/model"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/connection"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/outofband"
	"github.com/hyperledger/aries-connections-go/pkg/doc/did"
	connectionstore "github.com/hyperledger/aries-connections-go/pkg/store/connection"
	didstore "github.com/hyperledger/aries-connections-go/pkg/store/did"
	"github.com/hyperledger/aries-connections-go/pkg/vdr/peer"
)

var logger = log.New("aries-framework/didexchange/service")

const (
	// DIDExchange did exchange protocol.
	DIDExchange = "didexchange"
	// PIURI is the did-exchange protocol identifier URI.
	PIURI = "https://didcomm.org/didexchange/1.1"
	// RequestMsgType defines the did-exchange request message type.
	RequestMsgType = PIURI + "/request"
	// ResponseMsgType defines the did-exchange response message type.
	ResponseMsgType = PIURI + "/response"
	// CompleteMsgType defines the did-exchange complete message type.
	CompleteMsgType = PIURI + "/complete"
	// ProblemReportMsgType defines the did-exchange problem-report message type.
	ProblemReportMsgType = PIURI + "/problem_report"
)

// Service is the DID-Exchange handshake.
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
	return DIDExchange
}

// Protocol identifies the handshake on connection records.
func (s *Service) Protocol() connectionstore.HandshakeProtocol {
	return connectionstore.ProtocolDIDExchange
}

// Accept reports whether the handshake handles the message type.
func (s *Service) Accept(msgType string) bool {
	switch msgType {
	case RequestMsgType, ResponseMsgType, CompleteMsgType, ProblemReportMsgType:
		return true
	}

	return false
}

// CreateRequest builds an exchange request for a received invitation, either with one of our created DIDs or
// with a new did:peer for the routing. Only did:peer:1 requests attach the signed document.
func (s *Service) CreateRequest(oob *outofband.Record, opts *connection.RequestOptions) (*service.OutboundMessage,
	*connectionstore.Record, error) {
	if err := connection.AssertOutOfBand(oob, outofband.RoleReceiver, outofband.StatePrepareResponse); err != nil {
		return nil, nil, err
	}

	if opts == nil {
		opts = &connection.RequestOptions{}
	}

	ours, mediatorID, err := s.requestDID(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("create exchange request: %w", err)
	}

	label := opts.Label
	if label == "" {
		label = s.Config().Label
	}

	request := &Request{
		Type:     RequestMsgType,
		ID:       uuid.New().String(),
		Label:    label,
		Goal:     opts.Goal,
		GoalCode: opts.GoalCode,
		DID:      ours.DID,
		Thread:   &decorator.Thread{PID: oob.InvitationID},
	}

	if isNumAlgo(ours.DID, peer.NumAlgo1) {
		pub, kid, e := connection.SigningKey(ours)
		if e != nil {
			return nil, nil, fmt.Errorf("create exchange request: %w", e)
		}

		if request.DIDDoc, err = docAttachment(ours.Doc, pub, kid, s.Crypto()); err != nil {
			return nil, nil, fmt.Errorf("create exchange request: %w", err)
		}
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
		Protocol:      connectionstore.ProtocolDIDExchange,
		Role:          connectionstore.RoleRequester,
		State:         connectionstore.StateInvitationReceived,
		DID:           ours.DID,
		TheirLabel:    oob.Label,
		Alias:         opts.Alias,
		ThreadID:      request.ID,
		OutOfBandID:   oob.ID,
		InvitationDID: invitationDID,
		MediatorID:    mediatorID,
	})
	if err != nil {
		return nil, nil, err
	}

	if err = s.UpdateState(rec, connectionstore.StateRequestSent); err != nil {
		return nil, nil, err
	}

	logger.Debugf("created exchange request %s with %s for invitation %s", request.ID, ours.DID, oob.InvitationID)

	senderKey, err := firstRecipientKey(ours)
	if err != nil {
		return nil, nil, err
	}

	return &service.OutboundMessage{
		Message:    msg,
		Connection: rec,
		Service:    oob.ResolvedService(),
		SenderKey:  senderKey,
	}, rec, nil
}

// ProcessRequest resolves and stores the requester's DID and creates a record in request-received for one of
// our invitations, or for a request to one of our public DIDs.
func (s *Service) ProcessRequest(msgCtx *service.MessageContext, oob *outofband.Record) (*connectionstore.Record,
	error) {
	if err := connection.AssertOutOfBand(oob, outofband.RoleSender, outofband.StateAwaitResponse); err != nil {
		return nil, err
	}

	request := &Request{}

	if err := msgCtx.Message.Decode(request); err != nil {
		return nil, model.NewProblemReportError(connection.ProblemCodeRequestProcessingError,
			"decode exchange request: %w", err)
	}

	pthid := msgCtx.Message.ParentThreadID()
	if pthid == "" || (pthid != oob.InvitationID && !did.IsDID(pthid)) {
		return nil, model.NewProblemReportError(connection.ProblemCodeRequestNotAccepted,
			"missing reference to invitation")
	}

	theirDoc, err := s.requesterDoc(request)
	if err != nil {
		return nil, err
	}

	theirs, err := s.StoreReceivedDID(theirDoc)
	if err != nil {
		return nil, model.NewProblemReportError(connection.ProblemCodeRequestProcessingError,
			"store requester did: %w", err)
	}

	rec, err := s.CreateConnection(&connection.CreateParams{
		Protocol:    connectionstore.ProtocolDIDExchange,
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

// CreateResponse answers a request with a new did:peer of the requester's numalgo. A did:peer:1 response
// attaches the document, any other DID is sent in did_rotate~attach. Both are signed with the invitation key.
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

	if rec.TheirDID == "" {
		return nil, fmt.Errorf("connection %s has no their did", rec.ConnectionID)
	}

	signer, signerKID, err := s.InvitationKey(oob)
	if err != nil {
		return nil, fmt.Errorf("create exchange response: %w", err)
	}

	signerPub, err := publicKey(signer)
	if err != nil {
		return nil, fmt.Errorf("create exchange response: %w", err)
	}

	if routing == nil {
		if routing, err = connection.InlineRouting(oob); err != nil {
			return nil, fmt.Errorf("create exchange response: %w", err)
		}
	}

	numAlgo := peer.NumAlgo(s.Config().PeerNumAlgoForDIDExchangeRequests)
	if theirAlgo, e := peer.GetNumAlgo(rec.TheirDID); e == nil {
		numAlgo = theirAlgo
	}

	ours, err := s.CreatePeerDID(routing, numAlgo)
	if err != nil {
		return nil, fmt.Errorf("create exchange response: %w", err)
	}

	response := &Response{
		Type:   ResponseMsgType,
		ID:     uuid.New().String(),
		DID:    ours.DID,
		Thread: &decorator.Thread{ID: rec.ThreadID},
	}

	if numAlgo == peer.NumAlgo1 {
		response.DIDDoc, err = docAttachment(ours.Doc, signerPub, signerKID, s.Crypto())
	} else {
		response.DIDRotate, err = rotateAttachment(ours.DID, signerPub, signerKID, s.Crypto())
	}

	if err != nil {
		return nil, fmt.Errorf("create exchange response: %w", err)
	}

	msg, err := service.NewDIDCommMsgMap(response)
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

// ProcessResponse authenticates the responder's DID against the invitation keys and moves the record to
// response-received.
func (s *Service) ProcessResponse(msgCtx *service.MessageContext, oob *outofband.Record) (*connectionstore.Record,
	error) {
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
	if err != nil || thid != rec.ThreadID {
		return nil, model.NewProblemReportError(connection.ProblemCodeResponseNotAccepted,
			"invalid or missing thread id %q", thid)
	}

	response := &Response{}

	if err = msgCtx.Message.Decode(response); err != nil {
		return nil, model.NewProblemReportError(connection.ProblemCodeResponseProcessingError,
			"decode exchange response: %w", err)
	}

	if oob == nil {
		return nil, fmt.Errorf("connection %s: missing out-of-band record", rec.ConnectionID)
	}

	theirDoc, err := s.responderDoc(response, oob.RecipientKeyFingerprints)
	if err != nil {
		return nil, err
	}

	theirs, err := s.StoreReceivedDID(theirDoc)
	if err != nil {
		return nil, fmt.Errorf("process exchange response: %w", err)
	}

	previousDID := rec.TheirDID
	rec.TheirDID = theirs.DID

	if err = s.UpdateState(rec, connectionstore.StateResponseReceived); err != nil {
		rec.TheirDID = previousDID

		return nil, err
	}

	return rec, nil
}

// CreateComplete completes a requester connection in response-received and returns the complete message.
func (s *Service) CreateComplete(rec *connectionstore.Record, oob *outofband.Record) (*service.OutboundMessage,
	error) {
	if err := connectionstore.AssertState(rec, connectionstore.StateResponseReceived); err != nil {
		return nil, err
	}

	if err := connectionstore.AssertRole(rec, connectionstore.RoleRequester); err != nil {
		return nil, err
	}

	if rec.ThreadID == "" {
		return nil, fmt.Errorf("connection %s: %w", rec.ConnectionID, connection.ErrMissingThreadID)
	}

	if oob == nil || oob.InvitationID == "" {
		return nil, fmt.Errorf("connection %s: missing invitation id", rec.ConnectionID)
	}

	msg, err := service.NewDIDCommMsgMap(&Complete{
		Type:   CompleteMsgType,
		ID:     uuid.New().String(),
		Thread: &decorator.Thread{ID: rec.ThreadID, PID: oob.InvitationID},
	})
	if err != nil {
		return nil, err
	}

	if err = s.UpdateState(rec, connectionstore.StateCompleted); err != nil {
		return nil, err
	}

	return &service.OutboundMessage{Message: msg, Connection: rec}, nil
}

// ProcessComplete completes a responder connection in response-sent. The message must be on the connection's
// thread with the invitation as parent.
func (s *Service) ProcessComplete(msgCtx *service.MessageContext, oob *outofband.Record) (*connectionstore.Record,
	error) {
	rec := msgCtx.Connection
	if rec == nil {
		return nil, service.ErrNoConnection
	}

	if err := connectionstore.AssertState(rec, connectionstore.StateResponseSent); err != nil {
		return nil, err
	}

	if err := connectionstore.AssertRole(rec, connectionstore.RoleResponder); err != nil {
		return nil, err
	}

	thid, err := msgCtx.Message.ThreadID()
	if err != nil || thid != rec.ThreadID {
		return nil, model.NewProblemReportError(connection.ProblemCodeCompleteRejected,
			"invalid or missing thread id %q", thid)
	}

	pthid := msgCtx.Message.ParentThreadID()
	if oob == nil || pthid == "" || pthid != oob.InvitationID {
		return nil, model.NewProblemReportError(connection.ProblemCodeCompleteRejected,
			"invalid or missing parent thread id %q referencing the invitation", pthid)
	}

	if err = s.UpdateState(rec, connectionstore.StateCompleted); err != nil {
		return nil, err
	}

	return rec, nil
}

// CreateProblemReport turns a protocol failure into the problem report for the handshake thread.
func CreateProblemReport(prErr *model.ProblemReportError, thid string) (service.DIDCommMsgMap, error) {
	return service.NewDIDCommMsgMap(prErr.ToProblemReport(ProblemReportMsgType, thid, false))
}

// requestDID returns the created DID a request is made with and its mediator.
func (s *Service) requestDID(opts *connection.RequestOptions) (*didstore.Record, string, error) {
	if opts.OurDID != "" {
		ours, err := s.DIDStore().GetCreated(opts.OurDID)
		if err != nil {
			return nil, "", fmt.Errorf("our did %s: %w", opts.OurDID, err)
		}

		return ours, "", nil
	}

	if opts.Routing == nil {
		return nil, "", fmt.Errorf("routing must be given without our did: %w", connection.ErrMissingRouting)
	}

	ours, err := s.CreatePeerDID(opts.Routing, peer.NumAlgo(s.Config().PeerNumAlgoForDIDExchangeRequests))
	if err != nil {
		return nil, "", err
	}

	return ours, opts.Routing.MediatorID, nil
}

// requesterDoc returns the requester's document from the attachment of a did:peer:1, or by resolving the DID.
func (s *Service) requesterDoc(request *Request) (*did.Doc, error) {
	if isNumAlgo(request.DID, peer.NumAlgo1) {
		doc, err := attachedDoc(request.DID, request.DIDDoc, nil)
		if err != nil {
			return nil, model.NewProblemReportError(connection.ProblemCodeRequestNotAccepted, "%w", err)
		}

		return doc, nil
	}

	doc, err := s.ResolveDIDDoc(request.DID)
	if err != nil {
		return nil, model.NewProblemReportError(connection.ProblemCodeRequestNotAccepted,
			"resolve requester did %q: %w", request.DID, err)
	}

	return doc, nil
}

// responderDoc returns the responder's document once its attachment is proven to be signed by an invitation
// key. An attached document may also be signed by one of its own authentication keys.
func (s *Service) responderDoc(response *Response, invitationKeys []string) (*did.Doc, error) {
	if isNumAlgo(response.DID, peer.NumAlgo1) {
		doc, err := attachedDoc(response.DID, response.DIDDoc, invitationKeys)
		if err != nil {
			return nil, model.NewProblemReportError(connection.ProblemCodeResponseNotAccepted, "%w", err)
		}

		return doc, nil
	}

	if err := verifyRotateAttachment(response.DID, response.DIDRotate, invitationKeys); err != nil {
		return nil, model.NewProblemReportError(connection.ProblemCodeResponseNotAccepted, "%w", err)
	}

	doc, err := s.ResolveDIDDoc(response.DID)
	if err != nil {
		return nil, model.NewProblemReportError(connection.ProblemCodeResponseNotAccepted,
			"resolve responder did %q: %w", response.DID, err)
	}

	return doc, nil
}

func isNumAlgo(didID string, numAlgo peer.NumAlgo) bool {
	got, err := peer.GetNumAlgo(didID)

	return err == nil && got == numAlgo
}

func firstRecipientKey(rec *didstore.Record) (string, error) {
	if len(rec.RecipientKeyFingerprints) > 0 {
		return rec.RecipientKeyFingerprints[0], nil
	}

	if rec.Doc != nil {
		if fps := rec.Doc.AuthenticationFingerprints(); len(fps) > 0 {
			return fps[0], nil
		}
	}

	return "", fmt.Errorf("did %s has no recipient key", rec.DID)
}
