/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"github.com/hyperledger/aries-connections-go/pkg/client/connection"
	connectionstore "github.com/hyperledger/aries-connections-go/pkg/store/connection"
)

// IDArgs model
//
// This is used for operations on a single connection.
type IDArgs struct {
	// The ID of the connection
	ID string `json:"id"`
}

// QueryConnectionResponse model
//
// This is used for returning a single connection record.
type QueryConnectionResponse struct {
	Result *connectionstore.Record `json:"result"`
}

// QueryConnectionsArgs model
//
// This is used for querying connections. Empty fields match everything.
type QueryConnectionsArgs struct {
	State       string `json:"state,omitempty"`
	Role        string `json:"role,omitempty"`
	DID         string `json:"did,omitempty"`
	TheirDID    string `json:"their_did,omitempty"`
	ThreadID    string `json:"thread_id,omitempty"`
	OutOfBandID string `json:"outofband_id,omitempty"`
}

// QueryConnectionsResponse model
//
// This is used for returning query connections results.
type QueryConnectionsResponse struct {
	Results []*connectionstore.Record `json:"results"`
}

// CreateInvitationArgs model
//
// This is used for creating an invitation other agents connect with.
type CreateInvitationArgs struct {
	Label              string   `json:"label,omitempty"`
	HandshakeProtocols []string `json:"handshake_protocols,omitempty"`
	Goal               string   `json:"goal,omitempty"`
	GoalCode           string   `json:"goal_code,omitempty"`
}

// CreateInvitationResponse model
//
// This is used for returning a created invitation.
type CreateInvitationResponse struct {
	Invitation *connection.Invitation `json:"invitation"`
}

// ReceiveInvitationResponse model
//
// This is used for returning the out-of-band id a received invitation is stored under.
type ReceiveInvitationResponse struct {
	OutOfBandID string `json:"outofband_id"`
}

// ConnectArgs model
//
// This is used for sending a handshake request for a received invitation.
type ConnectArgs struct {
	OutOfBandID string `json:"outofband_id"`
	Label       string `json:"label,omitempty"`
	Alias       string `json:"alias,omitempty"`
	OurDID      string `json:"our_did,omitempty"`
	Goal        string `json:"goal,omitempty"`
	GoalCode    string `json:"goal_code,omitempty"`
}

// ConnectResponse model
//
// This is used for returning the id of the connection a request was sent for.
type ConnectResponse struct {
	ConnectionID string `json:"id"`
}

// HangupArgs model
//
// This is used for ending a connection.
type HangupArgs struct {
	ID string `json:"id"`
	// Remove the connection record once the hangup is sent
	DeleteAfterHangup bool `json:"delete_after_hangup,omitempty"`
}

// RotateDIDArgs model
//
// This is used for rotating our DID of a connection. Without to_did a new peer DID is created.
type RotateDIDArgs struct {
	ID    string `json:"id"`
	ToDID string `json:"to_did,omitempty"`
}

// RotateDIDResponse model
//
// This is used for returning the DID the connection is rotated to.
type RotateDIDResponse struct {
	NewDID string `json:"new_did"`
}

// TrustPingArgs model
//
// This is used for sending a trust ping on a connection.
type TrustPingArgs struct {
	ID      string `json:"id"`
	Comment string `json:"comment,omitempty"`
}
