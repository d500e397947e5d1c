/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package trustping

import (
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/decorator"
	connectionstore "github.com/hyperledger/aries-connections-go/pkg/store/connection"
)

// Ping defines the trust ping message
// https://github.com/hyperledger/aries-rfcs/tree/main/features/0048-trust-ping
type Ping struct {
	Type              string            `json:"@type,omitempty"`
	ID                string            `json:"@id,omitempty"`
	ResponseRequested bool              `json:"response_requested"`
	Comment           string            `json:"comment,omitempty"`
	Thread            *decorator.Thread `json:"~thread,omitempty"`
}

// PingResponse defines the trust ping response message.
type PingResponse struct {
	Type    string            `json:"@type,omitempty"`
	ID      string            `json:"@id,omitempty"`
	Comment string            `json:"comment,omitempty"`
	Thread  *decorator.Thread `json:"~thread,omitempty"`
}

// PingReceived is the payload of event.TrustPingReceived.
type PingReceived struct {
	Message    *Ping
	Connection *connectionstore.Record
}

// PingResponseReceived is the payload of event.TrustPingResponseReceived.
type PingResponseReceived struct {
	Message    *PingResponse
	Connection *connectionstore.Record
}
