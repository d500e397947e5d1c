/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package transport

import "encoding/json"

// Envelope is a DIDComm message with the keys it was packed with. FromKey and ToKey are base58 Ed25519
// verkeys; FromKey is empty for an anonymously packed message.
type Envelope struct {
	Message json.RawMessage `json:"message"`
	FromKey string          `json:"fromKey,omitempty"`
	ToKey   string          `json:"toKey"`
}

// Destination is where an outbound envelope is delivered.
type Destination struct {
	ServiceEndpoint string
	RecipientKeys   []string
	RoutingKeys     []string
}

// OutboundTransport interface definition for transport layer
// This is the client side of the agent
type OutboundTransport interface {
	// Send sends a packed envelope to the endpoint.
	Send(data []byte, destination *Destination) error
	// Accept reports whether the transport can deliver to the url.
	Accept(url string) bool
}

// InboundMessageHandler handles the inbound requests. The transport will unpack the payload prior to the
// message handle invocation.
type InboundMessageHandler func(envelope *Envelope) error
