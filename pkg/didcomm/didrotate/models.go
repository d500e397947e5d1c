/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package didrotate

import (
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/decorator"
	connectionstore "github.com/hyperledger/aries-connections-go/pkg/store/connection"
)

// Rotate proposes a new DID for the sender's side of a connection
// https://github.com/hyperledger/aries-rfcs/tree/main/features/0794-did-rotate#rotate
type Rotate struct {
	Type  string `json:"@type,omitempty"`
	ID    string `json:"@id,omitempty"`
	ToDID string `json:"to_did"`
}

// Ack acknowledges a rotation, which the sender then commits.
type Ack struct {
	Type   string            `json:"@type,omitempty"`
	ID     string            `json:"@id,omitempty"`
	Status string            `json:"status,omitempty"`
	Thread *decorator.Thread `json:"~thread,omitempty"`
}

// Hangup ends a connection without reply.
type Hangup struct {
	Type string `json:"@type,omitempty"`
	ID   string `json:"@id,omitempty"`
}

// DIDChange is a DID moving from one value to another. To is empty after a hangup.
type DIDChange struct {
	From string
	To   string
}

// DIDRotated is the payload of event.DidRotated.
type DIDRotated struct {
	Record   *connectionstore.Record
	OurDID   *DIDChange
	TheirDID *DIDChange
}

// pendingRotation is the rotation staged in the connection metadata until it is acknowledged.
type pendingRotation struct {
	ThreadID   string `json:"threadId" mapstructure:"threadId"`
	DID        string `json:"did" mapstructure:"did"`
	MediatorID string `json:"mediatorId,omitempty" mapstructure:"mediatorId"`
}
