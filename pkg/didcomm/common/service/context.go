/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

import (
	"errors"

	"github.com/hyperledger/aries-connections-go/pkg/doc/did"
	"github.com/hyperledger/aries-connections-go/pkg/store/connection"
)

// ErrNoConnection is returned when a message that requires a connection has none.
var ErrNoConnection = errors.New("no connection associated with incoming message")

// MessageContext is an inbound message after unpacking. SenderKey and RecipientKey are key fingerprints; an
// empty SenderKey means the message was anonymously packed.
type MessageContext struct {
	Message      DIDCommMsgMap
	Connection   *connection.Record
	SenderKey    string
	RecipientKey string
}

// AssertReadyConnection returns the message connection, which must be ready.
func (c *MessageContext) AssertReadyConnection() (*connection.Record, error) {
	if c.Connection == nil {
		return nil, ErrNoConnection
	}

	if !c.Connection.IsReady() {
		return nil, &connection.StateError{
			ConnectionID:   c.Connection.ConnectionID,
			CurrentState:   c.Connection.State,
			ExpectedStates: []connection.State{connection.StateResponseSent, connection.StateCompleted},
		}
	}

	return c.Connection, nil
}

// OutboundMessage is a reply for the transport to deliver, addressed by connection or, for connection-less
// messages, by service.
type OutboundMessage struct {
	Message    DIDCommMsgMap
	Connection *connection.Record
	Service    *did.DIDCommService
	SenderKey  string
}
