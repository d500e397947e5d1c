/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"github.com/hyperledger/aries-connections-go/pkg/controller/command/connection"
)

// queryConnectionsRequest model
//
// swagger:parameters queryConnections
type queryConnectionsRequest struct { // nolint: unused,deadcode
	// in: query
	connection.QueryConnectionsArgs
}

// queryConnectionsResponse model
//
// swagger:response queryConnectionsResponse
type queryConnectionsResponse struct { // nolint: unused,deadcode
	// in: body
	connection.QueryConnectionsResponse
}

// connectionIDRequest model
//
// This is used for the operations on a single connection
//
// swagger:parameters getConnection acceptRequest hangup removeConnection
type connectionIDRequest struct { // nolint: unused,deadcode
	// The ID of the connection
	//
	// in: path
	// required: true
	ID string `json:"id"`
}

// queryConnectionResponse model
//
// swagger:response queryConnectionResponse
type queryConnectionResponse struct { // nolint: unused,deadcode
	// in: body
	connection.QueryConnectionResponse
}

// createInvitationRequest model
//
// swagger:parameters createInvitation
type createInvitationRequest struct { // nolint: unused,deadcode
	// in: body
	Params connection.CreateInvitationArgs
}

// createInvitationResponse model
//
// swagger:response createInvitationResponse
type createInvitationResponse struct { // nolint: unused,deadcode
	// in: body
	connection.CreateInvitationResponse
}

// receiveInvitationResponse model
//
// swagger:response receiveInvitationResponse
type receiveInvitationResponse struct { // nolint: unused,deadcode
	// in: body
	connection.ReceiveInvitationResponse
}

// connectRequest model
//
// swagger:parameters connect
type connectRequest struct { // nolint: unused,deadcode
	// in: body
	Params connection.ConnectArgs
}

// connectResponse model
//
// swagger:response connectResponse
type connectResponse struct { // nolint: unused,deadcode
	// in: body
	connection.ConnectResponse
}

// rotateDIDRequest model
//
// swagger:parameters rotateDID
type rotateDIDRequest struct { // nolint: unused,deadcode
	// The ID of the connection record to rotate the DID of
	//
	// in: path
	// required: true
	ID string `json:"id"`

	// DID to rotate to, a new peer DID when empty.
	//
	// in: body
	ToDID string `json:"to_did"`
}

// rotateDIDResponse model
//
// swagger:response rotateDIDResponse
type rotateDIDResponse struct { // nolint: unused,deadcode
	// in: body
	connection.RotateDIDResponse
}

// trustPingRequest model
//
// swagger:parameters trustPing
type trustPingRequest struct { // nolint: unused,deadcode
	// in: path
	// required: true
	ID string `json:"id"`

	// in: body
	Comment string `json:"comment"`
}
