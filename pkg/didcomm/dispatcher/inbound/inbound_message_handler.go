/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package inbound

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-connections-go/pkg/didcomm/common/model"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/didrotate"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/connection"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/outofband"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/trustping"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-connections-go/pkg/doc/did"
	"github.com/hyperledger/aries-connections-go/pkg/doc/util/fingerprint"
	connectionstore "github.com/hyperledger/aries-connections-go/pkg/store/connection"
)

var logger = log.New("aries-framework/dispatcher/inbound")

// handshake message names, the last segment of the message type.
const (
	requestMsg       = "request"
	responseMsg      = "response"
	completeMsg      = "complete"
	problemReportMsg = "problem_report"
)

// errNoConnectionYet makes the connection lookup retry.
var errNoConnectionYet = errors.New("no connection yet")

type completer interface {
	CreateComplete(rec *connectionstore.Record, oob *outofband.Record) (*service.OutboundMessage, error)
	ProcessComplete(msgCtx *service.MessageContext, oob *outofband.Record) (*connectionstore.Record, error)
}

type provider interface {
	ConnectionService() *connection.Service
	TrustPingService() *trustping.Service
	DIDRotateService() *didrotate.Service
	Messenger() connection.Messenger
	GetConnectionBackOffDuration() time.Duration
	GetConnectionMaxRetries() uint64
}

// MessageHandler handles inbound envelopes, processing then dispatching to a protocol service based on the
// message type. Replies are handed to the messenger.
type MessageHandler struct {
	conn                   *connection.Service
	trustPing              *trustping.Service
	didRotate              *didrotate.Service
	messenger              connection.Messenger
	getConnBackOffDuration time.Duration
	getConnMaxRetries      uint64
	autoAcceptConnections  bool
}

// NewInboundMessageHandler creates an inbound message handler, that processes inbound message Envelopes,
// and dispatches them to the appropriate protocol service.
func NewInboundMessageHandler(p provider) *MessageHandler {
	return &MessageHandler{
		conn:                   p.ConnectionService(),
		trustPing:              p.TrustPingService(),
		didRotate:              p.DIDRotateService(),
		messenger:              p.Messenger(),
		getConnBackOffDuration: p.GetConnectionBackOffDuration(),
		getConnMaxRetries:      p.GetConnectionMaxRetries(),
		autoAcceptConnections:  p.ConnectionService().Config().AutoAcceptConnections,
	}
}

// HandlerFunc returns the MessageHandler's transport.InboundMessageHandler function.
func (handler *MessageHandler) HandlerFunc() transport.InboundMessageHandler {
	return handler.HandleInboundEnvelope
}

// HandleInboundEnvelope handles an inbound envelope, dispatching it to the appropriate protocol service.
func (handler *MessageHandler) HandleInboundEnvelope(envelope *transport.Envelope) error {
	msg, err := service.ParseDIDCommMsgMap(envelope.Message)
	if err != nil {
		return err
	}

	msgCtx := &service.MessageContext{Message: msg}

	if msgCtx.SenderKey, err = fingerprintOf(envelope.FromKey); err != nil {
		return fmt.Errorf("sender key: %w", err)
	}

	if msgCtx.RecipientKey, err = fingerprintOf(envelope.ToKey); err != nil {
		return fmt.Errorf("recipient key: %w", err)
	}

	protocol, name := splitType(msg.Type())

	// perf: handshakes find their records by thread, not by keys
	if h, e := handler.conn.Handshake(connectionstore.HandshakeProtocol(protocol)); e == nil {
		return handler.handleHandshake(h, protocol, name, msgCtx)
	}

	if msgCtx.Connection, err = handler.getConnection(msgCtx); err != nil {
		return fmt.Errorf("inbound message handler: %w", err)
	}

	if msgCtx.Connection != nil {
		// the first message of the requester completes the responder side
		if _, err = handler.conn.ProcessAck(msgCtx); err != nil {
			return fmt.Errorf("inbound message handler: %w", err)
		}
	}

	switch {
	case handler.trustPing.Accept(msg.Type()):
		return handler.handleTrustPing(msgCtx)
	case handler.didRotate.Accept(msg.Type()):
		return handler.handleDIDRotate(msgCtx)
	}

	return fmt.Errorf("no message handlers found for the message type: %s", msg.Type())
}

func (handler *MessageHandler) handleHandshake(h connection.Handshake, protocol, name string,
	msgCtx *service.MessageContext) error {
	switch name {
	case requestMsg:
		return handler.handleRequest(h, msgCtx)
	case responseMsg:
		return handler.handleResponse(h, protocol, msgCtx)
	case completeMsg:
		return handler.handleComplete(h, msgCtx)
	case problemReportMsg:
		_, err := handler.conn.ProcessProblemReport(msgCtx)

		return err
	}

	return fmt.Errorf("no message handlers found for the message type: %s", msgCtx.Message.Type())
}

func (handler *MessageHandler) handleRequest(h connection.Handshake, msgCtx *service.MessageContext) error {
	oob, err := handler.invitationOf(msgCtx)
	if err != nil {
		return err
	}

	rec, err := h.ProcessRequest(msgCtx, oob)
	if err != nil {
		logger.Warnf("%s request %s rejected: %v", h.Protocol(), msgCtx.Message.ID(), err)

		return err
	}

	if !handler.autoAcceptConnections {
		return nil
	}

	response, err := h.CreateResponse(rec, oob, nil)
	if err != nil {
		return fmt.Errorf("auto accept %s: %w", rec.ConnectionID, err)
	}

	return handler.messenger.Send(response)
}

func (handler *MessageHandler) handleResponse(h connection.Handshake, protocol string,
	msgCtx *service.MessageContext) error {
	thid, err := msgCtx.Message.ThreadID()
	if err != nil {
		return err
	}

	if msgCtx.Connection, err = handler.conn.GetByRoleAndThreadID(connectionstore.RoleRequester, thid); err != nil {
		return fmt.Errorf("%s response: %w", h.Protocol(), err)
	}

	oob, err := handler.conn.OutOfBand().GetByID(msgCtx.Connection.OutOfBandID)
	if err != nil {
		return fmt.Errorf("%s response: %w", h.Protocol(), err)
	}

	rec, err := h.ProcessResponse(msgCtx, oob)
	if err != nil {
		handler.reportProblem(err, protocol, thid, msgCtx.Connection, oob)

		return err
	}

	var out *service.OutboundMessage

	if c, ok := h.(completer); ok {
		out, err = c.CreateComplete(rec, oob)
	} else {
		out, err = handler.conn.CreateTrustPing(rec, trustping.PingOptions{ResponseRequested: true})
	}

	if err != nil {
		return fmt.Errorf("complete %s: %w", rec.ConnectionID, err)
	}

	return handler.messenger.Send(out)
}

func (handler *MessageHandler) handleComplete(h connection.Handshake, msgCtx *service.MessageContext) error {
	c, ok := h.(completer)
	if !ok {
		return fmt.Errorf("no message handlers found for the message type: %s", msgCtx.Message.Type())
	}

	thid, err := msgCtx.Message.ThreadID()
	if err != nil {
		return err
	}

	if msgCtx.Connection, err = handler.conn.GetByRoleAndThreadID(connectionstore.RoleResponder, thid); err != nil {
		return fmt.Errorf("%s complete: %w", h.Protocol(), err)
	}

	oob, err := handler.conn.OutOfBand().GetByID(msgCtx.Connection.OutOfBandID)
	if err != nil {
		return fmt.Errorf("%s complete: %w", h.Protocol(), err)
	}

	_, err = c.ProcessComplete(msgCtx, oob)

	return err
}

func (handler *MessageHandler) handleTrustPing(msgCtx *service.MessageContext) error {
	if msgCtx.Message.Type() == trustping.PingResponseMsgType {
		return handler.trustPing.ProcessPingResponse(msgCtx)
	}

	out, err := handler.trustPing.ProcessPing(msgCtx)
	if err != nil || out == nil {
		return err
	}

	return handler.messenger.Send(out)
}

func (handler *MessageHandler) handleDIDRotate(msgCtx *service.MessageContext) error {
	var err error

	switch msgCtx.Message.Type() {
	case didrotate.RotateMsgType:
		var out *service.OutboundMessage

		if out, err = handler.didRotate.ProcessRotate(msgCtx); err == nil {
			err = handler.messenger.Send(out)
		}
	case didrotate.AckMsgType:
		_, err = handler.didRotate.ProcessRotateAck(msgCtx)
	case didrotate.ProblemReportMsgType:
		_, err = handler.didRotate.ProcessProblemReport(msgCtx)
	case didrotate.HangupMsgType:
		_, err = handler.didRotate.ProcessHangup(msgCtx)
	}

	return err
}

// invitationOf finds the invitation a request answers: by the invitation id or public DID in the parent
// thread, else by the key the request was sent to.
func (handler *MessageHandler) invitationOf(msgCtx *service.MessageContext) (*outofband.Record, error) {
	var (
		oob *outofband.Record
		err error
	)

	pthid := msgCtx.Message.ParentThreadID()

	switch {
	case did.IsDID(pthid):
		oob, err = handler.conn.OutOfBand().FindByInvitationDID(pthid)
	case pthid != "":
		oob, err = handler.conn.OutOfBand().FindByInvitationID(pthid, outofband.RoleSender)
	case msgCtx.RecipientKey != "":
		oob, err = handler.conn.OutOfBand().FindByRecipientKey(msgCtx.RecipientKey)
	}

	if err != nil {
		return nil, fmt.Errorf("find invitation of request %s: %w", msgCtx.Message.ID(), err)
	}

	if oob == nil {
		return nil, fmt.Errorf("no invitation for request %s: %w", msgCtx.Message.ID(), outofband.ErrNotFound)
	}

	return oob, nil
}

// getConnection finds the connection of an authcrypted message. The lookup is retried as the handshake that
// creates the connection may still be finishing.
func (handler *MessageHandler) getConnection(msgCtx *service.MessageContext) (*connectionstore.Record, error) {
	if msgCtx.SenderKey == "" || msgCtx.RecipientKey == "" {
		return nil, nil
	}

	var rec *connectionstore.Record

	err := backoff.Retry(func() error {
		var err error

		rec, err = handler.conn.FindByKeys(msgCtx.SenderKey, msgCtx.RecipientKey)
		if err != nil {
			return backoff.Permanent(err)
		}

		if rec == nil {
			return errNoConnectionYet
		}

		return nil
	}, backoff.WithMaxRetries(backoff.NewConstantBackOff(handler.getConnBackOffDuration), handler.getConnMaxRetries))
	if errors.Is(err, errNoConnectionYet) {
		logger.Debugf("no connection for sender key %s and recipient key %s", msgCtx.SenderKey, msgCtx.RecipientKey)

		return nil, nil
	}

	return rec, err
}

// reportProblem tells the other party why its handshake message was rejected. Failures that are not
// protocol errors are only logged.
func (handler *MessageHandler) reportProblem(err error, protocol, thid string, rec *connectionstore.Record,
	oob *outofband.Record) {
	prErr, ok := model.AsProblemReportError(err)
	if !ok {
		logger.Errorf("%s message on thread %s failed: %v", protocol, thid, err)

		return
	}

	msg, e := service.NewDIDCommMsgMap(prErr.ToProblemReport(protocol+"/"+problemReportMsg, thid, false))
	if e != nil {
		logger.Errorf("create problem report: %v", e)

		return
	}

	out := &service.OutboundMessage{Message: msg, Connection: rec}
	if oob != nil {
		out.Service = oob.ResolvedService()
	}

	if e = handler.messenger.Send(out); e != nil {
		logger.Warnf("send problem report on thread %s: %v", thid, e)
	}
}

func splitType(msgType string) (string, string) {
	i := strings.LastIndex(msgType, "/")
	if i < 0 {
		return "", msgType
	}

	return msgType[:i], msgType[i+1:]
}

func fingerprintOf(verKey string) (string, error) {
	if verKey == "" {
		return "", nil
	}

	return fingerprint.FromVerKey(verKey)
}
