/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"errors"
	"fmt"

	"github.com/hyperledger/aries-connections-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/outofband"
	"github.com/hyperledger/aries-connections-go/pkg/doc/did"
)

const serviceDecorator = "~service"

// ErrUnexpectedConnection is returned when a message arrives on another connection than expected.
var ErrUnexpectedConnection = errors.New("unexpected connection")

// ExchangeOptions describe the exchange an incoming message is expected to belong to.
type ExchangeOptions struct {
	LastSentMessage      service.DIDCommMsgMap
	LastReceivedMessage  service.DIDCommMsgMap
	ExpectedConnectionID string
}

// AssertConnectionOrOutOfBandExchange checks that an incoming message comes over a ready connection or, without
// one, that its keys match the services exchanged so far in a connection-less exchange.
func (s *Service) AssertConnectionOrOutOfBandExchange(msgCtx *service.MessageContext, opts *ExchangeOptions) error {
	if opts == nil {
		opts = &ExchangeOptions{}
	}

	if err := assertExpectedConnection(msgCtx, opts.ExpectedConnectionID); err != nil {
		return err
	}

	if msgCtx.Connection != nil {
		_, err := msgCtx.AssertReadyConnection()

		return err
	}

	logger.Debugf("processing connection-less message %s of type %s", msgCtx.Message.ID(), msgCtx.Message.Type())

	theirService, err := messageService(msgCtx.Message)
	if err != nil {
		return err
	}

	if theirService == nil {
		if theirService, err = messageService(opts.LastReceivedMessage); err != nil {
			return err
		}
	}

	ourService, err := messageService(opts.LastSentMessage)
	if err != nil {
		return err
	}

	thid, err := msgCtx.Message.ThreadID()
	if err != nil {
		return err
	}

	oob, err := s.oob.FindByRequestThreadID(thid, "", "")
	if err != nil {
		return err
	}

	if oob != nil {
		switch oob.Role {
		case outofband.RoleSender:
			ourService = oob.ResolvedService()
		case outofband.RoleReceiver:
			theirService = oob.ResolvedService()
		}
	}

	previous := opts.LastSentMessage != nil || opts.LastReceivedMessage != nil

	switch {
	case theirService == nil && oob == nil:
		return errors.New("no service for incoming connection-less message and no associated out-of-band record")
	case ourService == nil && previous:
		return errors.New("no service of ours for a connection-less exchange with previous messages")
	case (msgCtx.SenderKey == "" || msgCtx.RecipientKey == "") && previous:
		return fmt.Errorf("connection-less message after previous messages: %w", ErrMissingKeys)
	}

	if msgCtx.RecipientKey != "" && ourService != nil && !contains(ourService.RecipientKeys, msgCtx.RecipientKey) {
		return fmt.Errorf("recipient key %s not found in our service", msgCtx.RecipientKey)
	}

	if msgCtx.SenderKey != "" && theirService != nil && !contains(theirService.RecipientKeys, msgCtx.SenderKey) {
		return fmt.Errorf("sender key %s not found in their service", msgCtx.SenderKey)
	}

	return nil
}

// MatchIncomingMessageToRequestMessageInOutOfBandExchange checks that an incoming message answers a request
// attached to one of our single use invitations. The first answer moves the out-of-band record to done.
func (s *Service) MatchIncomingMessageToRequestMessageInOutOfBandExchange(msgCtx *service.MessageContext,
	expectedConnectionID string) error {
	if expectedConnectionID != "" &&
		(msgCtx.Connection == nil || msgCtx.Connection.ConnectionID != expectedConnectionID) {
		return fmt.Errorf("%w: expected %s", ErrUnexpectedConnection, expectedConnectionID)
	}

	thid, err := msgCtx.Message.ThreadID()
	if err != nil {
		return err
	}

	pthid := msgCtx.Message.ParentThreadID()

	oob, err := s.oob.FindByRequestThreadID(thid, pthid, outofband.RoleSender)
	if err != nil {
		return err
	}

	if oob == nil {
		return fmt.Errorf("no out-of-band record for thread %s, invitation %q and role %s",
			thid, pthid, outofband.RoleSender)
	}

	// a legacy connection-less invitation has no id to point back to
	if !oob.IsConnectionless() && oob.InvitationID != pthid {
		return errors.New("response to an out-of-band request must have the invitation id as parent thread id")
	}

	if oob.Reusable {
		return errors.New("responses to requests of reusable out-of-band invitations are not supported")
	}

	switch oob.State {
	case outofband.StateDone:
		if msgCtx.Connection == nil {
			return errors.New("no connection for a message answering a completed out-of-band invitation")
		}

		if msgCtx.Connection.OutOfBandID != oob.ID {
			return fmt.Errorf("connection %s was not created from out-of-band record %s",
				msgCtx.Connection.ConnectionID, oob.ID)
		}

		return nil
	case outofband.StateAwaitResponse:
		return s.oob.UpdateState(oob, outofband.StateDone)
	default:
		return fmt.Errorf("out-of-band record %s is in state %s", oob.ID, oob.State)
	}
}

func assertExpectedConnection(msgCtx *service.MessageContext, expected string) error {
	if expected == "" {
		return nil
	}

	if msgCtx.Connection == nil {
		return fmt.Errorf("%w: expected %s but the message has no connection", ErrUnexpectedConnection, expected)
	}

	if msgCtx.Connection.ConnectionID != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrUnexpectedConnection, expected,
			msgCtx.Connection.ConnectionID)
	}

	return nil
}

func messageService(msg service.DIDCommMsgMap) (*did.DIDCommService, error) {
	if msg == nil || msg[serviceDecorator] == nil {
		return nil, nil
	}

	var decorated struct {
		Service *decorator.Service `json:"~service"`
	}

	if err := msg.Decode(&decorated); err != nil {
		return nil, fmt.Errorf("decode service decorator: %w", err)
	}

	if decorated.Service == nil {
		return nil, nil
	}

	return decorated.Service.ResolvedService()
}
