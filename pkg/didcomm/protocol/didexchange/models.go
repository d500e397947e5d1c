/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package didexchange

import (
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/decorator"
)

// Request defines a2a DID exchange request
// https://github.com/hyperledger/aries-rfcs/tree/main/features/0023-did-exchange#1-exchange-request
type Request struct {
	Type     string `json:"@type,omitempty"`
	ID       string `json:"@id,omitempty"`
	Label    string `json:"label,omitempty"`
	Goal     string `json:"goal,omitempty"`
	GoalCode string `json:"goal_code,omitempty"`
	DID      string `json:"did,omitempty"`
	// DIDDoc carries the signed genesis document of a did:peer:1.
	DIDDoc *decorator.Attachment `json:"did_doc~attach,omitempty"`
	Thread *decorator.Thread     `json:"~thread,omitempty"`
}

// Response defines a2a DID exchange response
// https://github.com/hyperledger/aries-rfcs/tree/main/features/0023-did-exchange#2-exchange-response
type Response struct {
	Type   string                `json:"@type,omitempty"`
	ID     string                `json:"@id,omitempty"`
	DID    string                `json:"did,omitempty"`
	DIDDoc *decorator.Attachment `json:"did_doc~attach,omitempty"`
	// DIDRotate is the DID signed by the invitation key, sent instead of a document for resolvable DIDs.
	DIDRotate *decorator.Attachment `json:"did_rotate~attach,omitempty"`
	Thread    *decorator.Thread     `json:"~thread,omitempty"`
}

// Complete defines a2a DID exchange complete message
// https://github.com/hyperledger/aries-rfcs/tree/main/features/0023-did-exchange#3-exchange-complete
type Complete struct {
	Type   string            `json:"@type,omitempty"`
	ID     string            `json:"@id,omitempty"`
	Thread *decorator.Thread `json:"~thread,omitempty"`
}
