/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"github.com/hyperledger/aries-connections-go/pkg/controller/command"
	"github.com/hyperledger/aries-connections-go/pkg/controller/command/connection"
	"github.com/hyperledger/aries-connections-go/pkg/controller/rest"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/didrotate"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/event"
	protocol "github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/connection"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/outofband"
)

// constants for connection management endpoints.
const (
	OperationID           = "/connections"
	ConnectionByIDPath    = OperationID + "/{id}"
	CreateInvitationPath  = OperationID + "/create-invitation"
	ReceiveInvitationPath = OperationID + "/receive-invitation"
	ConnectPath           = OperationID + "/connect"
	AcceptRequestPath     = OperationID + "/{id}/accept-request"
	RotateDIDPath         = OperationID + "/{id}/rotate-did"
	HangupPath            = OperationID + "/{id}/hangup"
	TrustPingPath         = OperationID + "/{id}/trust-ping"
	RemoveConnectionPath  = OperationID + "/{id}/remove"
)

type provider interface {
	ConnectionService() *protocol.Service
	DIDRotateService() *didrotate.Service
	OutOfBandService() *outofband.Service
	Messenger() protocol.Messenger
	EventBus() *event.Bus
	ContextID() string
}

// Operation is the REST controller for connection management.
type Operation struct {
	command  *connection.Command
	handlers []rest.Handler
}

// New returns new connection management rest client protocol instance.
func New(p provider) *Operation {
	op := &Operation{
		command: connection.New(p),
	}

	op.registerHandler()

	return op
}

// GetRESTHandlers get all controller API handlers available for this service.
func (c *Operation) GetRESTHandlers() []rest.Handler {
	return c.handlers
}

// registerHandler register handlers to be exposed from this service as REST API endpoints.
func (c *Operation) registerHandler() {
	c.handlers = []rest.Handler{
		rest.NewHandler(OperationID, http.MethodGet, c.QueryConnections),
		rest.NewHandler(ConnectionByIDPath, http.MethodGet, c.GetConnection),
		rest.NewHandler(CreateInvitationPath, http.MethodPost, c.CreateInvitation),
		rest.NewHandler(ReceiveInvitationPath, http.MethodPost, c.ReceiveInvitation),
		rest.NewHandler(ConnectPath, http.MethodPost, c.Connect),
		rest.NewHandler(AcceptRequestPath, http.MethodPost, c.AcceptRequest),
		rest.NewHandler(RotateDIDPath, http.MethodPost, c.RotateDID),
		rest.NewHandler(HangupPath, http.MethodPost, c.Hangup),
		rest.NewHandler(TrustPingPath, http.MethodPost, c.SendTrustPing),
		rest.NewHandler(RemoveConnectionPath, http.MethodPost, c.RemoveConnection),
	}
}

// QueryConnections swagger:route GET /connections connections queryConnections
//
// query agent to agent connections.
//
// Responses:
//    default: genericError
//        200: queryConnectionsResponse
func (c *Operation) QueryConnections(rw http.ResponseWriter, req *http.Request) {
	reqBytes, err := queryValuesAsJSON(req.URL.Query())
	if err != nil {
		rest.SendHTTPStatusError(rw, http.StatusBadRequest, connection.InvalidRequestErrorCode, err)
		return
	}

	rest.Execute(c.command.QueryConnections, rw, bytes.NewReader(reqBytes))
}

// GetConnection swagger:route GET /connections/{id} connections getConnection
//
// Fetch a single connection record.
//
// Responses:
//    default: genericError
//        200: queryConnectionResponse
func (c *Operation) GetConnection(rw http.ResponseWriter, req *http.Request) {
	c.executeOnID(c.command.GetConnection, rw, req)
}

// CreateInvitation swagger:route POST /connections/create-invitation connections createInvitation
//
// Creates an invitation other agents can connect with.
//
// Responses:
//    default: genericError
//        200: createInvitationResponse
func (c *Operation) CreateInvitation(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(c.command.CreateInvitation, rw, req.Body)
}

// ReceiveInvitation swagger:route POST /connections/receive-invitation connections receiveInvitation
//
// Stores the invitation of another agent.
//
// Responses:
//    default: genericError
//        200: receiveInvitationResponse
func (c *Operation) ReceiveInvitation(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(c.command.ReceiveInvitation, rw, req.Body)
}

// Connect swagger:route POST /connections/connect connections connect
//
// Sends a handshake request for a received invitation.
//
// Responses:
//    default: genericError
//        200: connectResponse
func (c *Operation) Connect(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(c.command.Connect, rw, req.Body)
}

// AcceptRequest swagger:route POST /connections/{id}/accept-request connections acceptRequest
//
// Accepts a stored connection request.
//
// Responses:
//    default: genericError
func (c *Operation) AcceptRequest(rw http.ResponseWriter, req *http.Request) {
	c.executeOnID(c.command.AcceptRequest, rw, req)
}

// RotateDID swagger:route POST /connections/{id}/rotate-did connections rotateDID
//
// Rotates the agent's DID in the given connection.
//
// Responses:
//    default: genericError
//        200: rotateDIDResponse
func (c *Operation) RotateDID(rw http.ResponseWriter, req *http.Request) {
	c.executeOnID(c.command.RotateDID, rw, req)
}

// Hangup swagger:route POST /connections/{id}/hangup connections hangup
//
// Ends the given connection.
//
// Responses:
//    default: genericError
func (c *Operation) Hangup(rw http.ResponseWriter, req *http.Request) {
	c.executeOnID(c.command.Hangup, rw, req)
}

// SendTrustPing swagger:route POST /connections/{id}/trust-ping connections trustPing
//
// Sends a trust ping on the given connection.
//
// Responses:
//    default: genericError
func (c *Operation) SendTrustPing(rw http.ResponseWriter, req *http.Request) {
	c.executeOnID(c.command.SendTrustPing, rw, req)
}

// RemoveConnection swagger:route POST /connections/{id}/remove connections removeConnection
//
// Removes given connection record.
//
// Responses:
//    default: genericError
func (c *Operation) RemoveConnection(rw http.ResponseWriter, req *http.Request) {
	c.executeOnID(c.command.RemoveConnection, rw, req)
}

// executeOnID runs exec with the optional JSON body of the request, completed by the path id.
func (c *Operation) executeOnID(exec command.Exec, rw http.ResponseWriter, req *http.Request) {
	id, found := getIDFromRequest(rw, req)
	if !found {
		return
	}

	request, err := withID(id, req.Body)
	if err != nil {
		rest.SendHTTPStatusError(rw, http.StatusBadRequest, connection.InvalidRequestErrorCode, err)
		return
	}

	rest.Execute(exec, rw, bytes.NewReader(request))
}

func withID(id string, body io.Reader) ([]byte, error) {
	args := map[string]interface{}{}

	if body != nil {
		err := json.NewDecoder(body).Decode(&args)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("invalid request body: %w", err)
		}
	}

	args["id"] = id

	return json.Marshal(args)
}

func queryValuesAsJSON(vals url.Values) ([]byte, error) {
	// normalize all query string key/values
	args := make(map[string]string)

	for k, v := range vals {
		if len(v) > 0 {
			args[k] = v[0]
		}
	}

	return json.Marshal(args)
}

// getIDFromRequest returns ID from request.
func getIDFromRequest(rw http.ResponseWriter, req *http.Request) (string, bool) {
	id := mux.Vars(req)["id"]
	if id == "" {
		rest.SendHTTPStatusError(rw, http.StatusBadRequest, connection.InvalidRequestErrorCode,
			fmt.Errorf("empty connection ID"))
		return "", false
	}

	return id, true
}
