/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package didrotate

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/mitchellh/mapstructure"

	"github.com/hyperledger/aries-connections-go/pkg/didcomm/common/model"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/connection"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-connections-go/pkg/doc/did"
	connectionstore "github.com/hyperledger/aries-connections-go/pkg/store/connection"
	"github.com/hyperledger/aries-connections-go/pkg/vdr/peer"
)

var logger = log.New("aries-framework/didrotate/service")

const (
	// DIDRotate protocol name.
	DIDRotate = "didrotate"
	// PIURI is the did-rotate protocol identifier URI.
	PIURI = "https://didcomm.org/did-rotate/1.0"
	// RotateMsgType defines the rotate message type.
	RotateMsgType = PIURI + "/rotate"
	// AckMsgType defines the rotate acknowledgement message type.
	AckMsgType = PIURI + "/ack"
	// ProblemReportMsgType defines the did-rotate problem-report message type.
	ProblemReportMsgType = PIURI + "/problem-report"
	// HangupMsgType defines the hangup message type.
	HangupMsgType = PIURI + "/hangup"

	// MetadataKey is the connection metadata entry of a pending rotation.
	MetadataKey = "_internal/didRotate"

	ackStatusOK = "OK"
)

// Problem report codes of a rejected rotation.
const (
	ProblemCodeMethodUnsupported = "e.did.method_unsupported"
	ProblemCodeUnresolvable      = "e.did.unresolvable"
	ProblemCodeDocUnsupported    = "e.did.doc_unsupported"
)

var (
	// ErrRotationPending is returned when a connection already has a rotation waiting for its ack.
	ErrRotationPending = errors.New("a did rotation is already pending")
	// ErrNoPendingRotation is returned for an ack or problem report without a pending rotation.
	ErrNoPendingRotation = errors.New("no pending did rotation")
	// ErrThreadMismatch is returned for an ack on another thread than the pending rotation.
	ErrThreadMismatch = errors.New("ack thread does not match the pending rotation")
)

// RotateOptions selects the DID to rotate to: one of our created DIDs, or a new peer DID for Routing.
type RotateOptions struct {
	ToDID   string
	Routing *connection.Routing
}

// Service for the did-rotate protocol.
type Service struct {
	conn *connection.Service
}

// New returns the did-rotate service.
func New(conn *connection.Service) *Service {
	return &Service{conn: conn}
}

// Name is this service's name.
func (s *Service) Name() string {
	return DIDRotate
}

// Accept reports whether the service handles the message type.
func (s *Service) Accept(msgType string) bool {
	switch msgType {
	case RotateMsgType, AckMsgType, ProblemReportMsgType, HangupMsgType:
		return true
	}

	return false
}

// CreateRotate stages a rotation of our DID in the connection metadata and returns the rotate message. Our DID
// is only changed once the other party acknowledges.
func (s *Service) CreateRotate(rec *connectionstore.Record, opts RotateOptions) (*service.OutboundMessage, error) {
	if !rec.IsReady() {
		return nil, &connectionstore.StateError{
			ConnectionID:   rec.ConnectionID,
			CurrentState:   rec.State,
			ExpectedStates: []connectionstore.State{connectionstore.StateResponseSent, connectionstore.StateCompleted},
		}
	}

	if _, ok := rec.GetMetadata(MetadataKey); ok {
		return nil, fmt.Errorf("connection %s: %w", rec.ConnectionID, ErrRotationPending)
	}

	toDID, mediatorID, err := s.rotationTarget(opts)
	if err != nil {
		return nil, fmt.Errorf("create rotate: %w", err)
	}

	msg, err := service.NewDIDCommMsgMap(&Rotate{
		Type:  RotateMsgType,
		ID:    uuid.New().String(),
		ToDID: toDID,
	})
	if err != nil {
		return nil, err
	}

	rec.SetMetadata(MetadataKey, map[string]interface{}{
		"threadId":   msg.ID(),
		"did":        toDID,
		"mediatorId": mediatorID,
	})

	if err = s.conn.Update(rec); err != nil {
		rec.DeleteMetadata(MetadataKey)

		return nil, fmt.Errorf("create rotate: %w", err)
	}

	logger.Debugf("connection %s: proposed rotation to %s", rec.ConnectionID, toDID)

	return &service.OutboundMessage{Message: msg, Connection: rec}, nil
}

// ProcessRotate commits the other party's new DID and returns the ack, addressed with the connection as it
// was before the rotation. A DID that cannot be used is answered with a problem report and leaves the
// connection unchanged.
func (s *Service) ProcessRotate(msgCtx *service.MessageContext) (*service.OutboundMessage, error) {
	rec, err := msgCtx.AssertReadyConnection()
	if err != nil {
		return nil, fmt.Errorf("process rotate: %w", err)
	}

	rotate := &Rotate{}

	if err = msgCtx.Message.Decode(rotate); err != nil {
		return nil, fmt.Errorf("decode rotate: %w", err)
	}

	thid, err := msgCtx.Message.ThreadID()
	if err != nil {
		return nil, fmt.Errorf("process rotate: %w", err)
	}

	doc, prErr := s.rotationDoc(rotate.ToDID)
	if prErr != nil {
		logger.Warnf("connection %s: rejecting rotation to %s: %v", rec.ConnectionID, rotate.ToDID, prErr)

		return problemReport(prErr, thid, rec)
	}

	ackConn := rec.Clone()

	if _, err = s.conn.StoreReceivedDID(doc); err != nil {
		return nil, fmt.Errorf("process rotate: %w", err)
	}

	before := rec.Clone()

	if rec.TheirDID != "" {
		rec.PreviousTheirDIDs = append(rec.PreviousTheirDIDs, rec.TheirDID)
	}

	rec.TheirDID = rotate.ToDID

	if err = s.conn.Update(rec); err != nil {
		*rec = *before

		return nil, fmt.Errorf("process rotate: %w", err)
	}

	s.emit(rec, nil, &DIDChange{From: before.TheirDID, To: rec.TheirDID})

	msg, err := service.NewDIDCommMsgMap(&Ack{
		Type:   AckMsgType,
		ID:     uuid.New().String(),
		Status: ackStatusOK,
		Thread: &decorator.Thread{ID: thid},
	})
	if err != nil {
		return nil, err
	}

	return &service.OutboundMessage{Message: msg, Connection: ackConn}, nil
}

// ProcessRotateAck commits our pending rotation. The ack must be on the thread of the rotate message.
func (s *Service) ProcessRotateAck(msgCtx *service.MessageContext) (*connectionstore.Record, error) {
	rec, err := msgCtx.AssertReadyConnection()
	if err != nil {
		return nil, fmt.Errorf("process rotate ack: %w", err)
	}

	pending, err := pendingRotationOf(rec)
	if err != nil {
		return nil, err
	}

	thid, err := msgCtx.Message.ThreadID()
	if err != nil {
		return nil, fmt.Errorf("process rotate ack: %w", err)
	}

	if thid != pending.ThreadID {
		return nil, fmt.Errorf("connection %s: %w: %s != %s", rec.ConnectionID, ErrThreadMismatch, thid,
			pending.ThreadID)
	}

	before := rec.Clone()

	if rec.DID != "" {
		rec.PreviousDIDs = append(rec.PreviousDIDs, rec.DID)
	}

	rec.DID = pending.DID
	rec.MediatorID = pending.MediatorID
	rec.DeleteMetadata(MetadataKey)

	if err = s.conn.Update(rec); err != nil {
		*rec = *before

		return nil, fmt.Errorf("process rotate ack: %w", err)
	}

	s.emit(rec, &DIDChange{From: before.DID, To: rec.DID}, nil)

	return rec, nil
}

// ProcessProblemReport aborts our pending rotation.
func (s *Service) ProcessProblemReport(msgCtx *service.MessageContext) (*connectionstore.Record, error) {
	rec, err := msgCtx.AssertReadyConnection()
	if err != nil {
		return nil, fmt.Errorf("process rotate problem report: %w", err)
	}

	var report model.ProblemReport

	if err = msgCtx.Message.Decode(&report); err != nil {
		return nil, fmt.Errorf("decode rotate problem report: %w", err)
	}

	logger.Infof("connection %s: rotation rejected: %s", rec.ConnectionID, report.ErrorMessage())

	return rec, s.ClearDidRotationData(rec)
}

// ProcessHangup ends the connection from the other side: their DID is kept in the previous DIDs and cleared.
// No reply is sent.
func (s *Service) ProcessHangup(msgCtx *service.MessageContext) (*connectionstore.Record, error) {
	rec, err := msgCtx.AssertReadyConnection()
	if err != nil {
		return nil, fmt.Errorf("process hangup: %w", err)
	}

	before := rec.Clone()

	if rec.TheirDID != "" {
		rec.PreviousTheirDIDs = append(rec.PreviousTheirDIDs, rec.TheirDID)
	}

	rec.TheirDID = ""

	if err = s.conn.Update(rec); err != nil {
		*rec = *before

		return nil, fmt.Errorf("process hangup: %w", err)
	}

	s.emit(rec, nil, &DIDChange{From: before.TheirDID})

	return rec, nil
}

// CreateHangup ends the connection from our side: our DID is kept in the previous DIDs and cleared.
func (s *Service) CreateHangup(rec *connectionstore.Record) (*service.OutboundMessage, error) {
	msg, err := service.NewDIDCommMsgMap(&Hangup{Type: HangupMsgType, ID: uuid.New().String()})
	if err != nil {
		return nil, err
	}

	// the hangup still goes out with the DID being dropped
	out := &service.OutboundMessage{Message: msg, Connection: rec.Clone()}
	before := rec.Clone()

	if rec.DID != "" {
		rec.PreviousDIDs = append(rec.PreviousDIDs, rec.DID)
	}

	rec.DID = ""

	if err = s.conn.Update(rec); err != nil {
		*rec = *before

		return nil, fmt.Errorf("create hangup: %w", err)
	}

	return out, nil
}

// ClearDidRotationData drops the pending rotation of the connection.
func (s *Service) ClearDidRotationData(rec *connectionstore.Record) error {
	value, ok := rec.GetMetadata(MetadataKey)
	if !ok {
		return fmt.Errorf("connection %s: %w", rec.ConnectionID, ErrNoPendingRotation)
	}

	rec.DeleteMetadata(MetadataKey)

	if err := s.conn.Update(rec); err != nil {
		rec.SetMetadata(MetadataKey, value)

		return fmt.Errorf("clear did rotation data: %w", err)
	}

	return nil
}

func (s *Service) rotationTarget(opts RotateOptions) (string, string, error) {
	if opts.ToDID != "" {
		ours, err := s.conn.DIDStore().GetCreated(opts.ToDID)
		if err != nil {
			return "", "", fmt.Errorf("to did %s: %w", opts.ToDID, err)
		}

		if len(ours.Keys) == 0 {
			return "", "", fmt.Errorf("no key material for %s", opts.ToDID)
		}

		return ours.DID, "", nil
	}

	if opts.Routing == nil {
		return "", "", fmt.Errorf("routing must be given to rotate to a new peer did: %w",
			connection.ErrMissingRouting)
	}

	ours, err := s.conn.CreatePeerDID(opts.Routing, peer.NumAlgo(s.conn.Config().PeerNumAlgoForDIDRotation))
	if err != nil {
		return "", "", err
	}

	return ours.DID, opts.Routing.MediatorID, nil
}

// rotationDoc resolves the new DID of the other party. A did:peer:1 cannot be resolved without its
// document being sent along, so it is rejected.
func (s *Service) rotationDoc(toDID string) (*did.Doc, *model.ProblemReportError) {
	if numAlgo, err := peer.GetNumAlgo(toDID); err == nil && numAlgo == peer.NumAlgo1 {
		return nil, model.NewProblemReportError(ProblemCodeMethodUnsupported, "DID Method Unsupported")
	}

	doc, err := s.conn.ResolveDIDDoc(toDID)
	if err != nil {
		return nil, model.NewProblemReportError(ProblemCodeUnresolvable, "DID Unresolvable: %w", err)
	}

	if services, err := doc.DIDCommServices(); err != nil || len(services) == 0 {
		return nil, model.NewProblemReportError(ProblemCodeDocUnsupported, "DID Document Unsupported")
	}

	return doc, nil
}

func (s *Service) emit(rec *connectionstore.Record, ours, theirs *DIDChange) {
	s.conn.EventBus().Emit(s.conn.ContextID(), event.DidRotated, &DIDRotated{
		Record:   rec.Clone(),
		OurDID:   ours,
		TheirDID: theirs,
	})
}

func pendingRotationOf(rec *connectionstore.Record) (*pendingRotation, error) {
	value, ok := rec.GetMetadata(MetadataKey)
	if !ok {
		return nil, fmt.Errorf("connection %s: %w", rec.ConnectionID, ErrNoPendingRotation)
	}

	pending := &pendingRotation{}

	if err := mapstructure.Decode(value, pending); err != nil {
		return nil, fmt.Errorf("connection %s: decode pending rotation: %w", rec.ConnectionID, err)
	}

	return pending, nil
}

func problemReport(prErr *model.ProblemReportError, thid string,
	rec *connectionstore.Record) (*service.OutboundMessage, error) {
	msg, err := service.NewDIDCommMsgMap(prErr.ToProblemReport(ProblemReportMsgType, thid, true))
	if err != nil {
		return nil, err
	}

	return &service.OutboundMessage{Message: msg, Connection: rec}, nil
}
