/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/hyperledger/aries-connections-go/pkg/client/connection"
	"github.com/hyperledger/aries-connections-go/pkg/controller/command"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/didrotate"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/event"
	protocol "github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/connection"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/outofband"
	connectionstore "github.com/hyperledger/aries-connections-go/pkg/store/connection"
)

var logger = command.NewLogger("aries-framework/controller/connection", CommandName)

// constants for connection management endpoints.
const (
	CommandName = "connection"

	GetConnectionCommandMethod     = "GetConnection"
	QueryConnectionsCommandMethod  = "QueryConnections"
	CreateInvitationCommandMethod  = "CreateInvitation"
	ReceiveInvitationCommandMethod = "ReceiveInvitation"
	ConnectCommandMethod           = "Connect"
	AcceptRequestCommandMethod     = "AcceptRequest"
	RotateDIDCommandMethod         = "RotateDID"
	HangupCommandMethod            = "Hangup"
	SendTrustPingCommandMethod     = "SendTrustPing"
	RemoveConnectionCommandMethod  = "RemoveConnection"

	errEmptyConnID      = "empty connection ID"
	errEmptyOutOfBandID = "empty out-of-band ID"

	// log keys.
	connectionIDKey = "connectionID"
	outOfBandIDKey  = "outOfBandID"
	newDIDKey       = "newDID"
)

const (
	// InvalidRequestErrorCode is typically a code for validation errors
	// for invalid connection controller requests.
	InvalidRequestErrorCode = command.Code(iota + command.Connection)

	// GetConnectionErrorCode is for failures in get connection command.
	GetConnectionErrorCode
	// QueryConnectionsErrorCode is for failures in query connections command.
	QueryConnectionsErrorCode
	// CreateInvitationErrorCode is for failures in create invitation command.
	CreateInvitationErrorCode
	// ReceiveInvitationErrorCode is for failures in receive invitation command.
	ReceiveInvitationErrorCode
	// ConnectErrorCode is for failures in connect command.
	ConnectErrorCode
	// AcceptRequestErrorCode is for failures in accept request command.
	AcceptRequestErrorCode
	// RotateDIDErrorCode is for failures in rotate DID command.
	RotateDIDErrorCode
	// HangupErrorCode is for failures in hangup command.
	HangupErrorCode
	// SendTrustPingErrorCode is for failures in send trust ping command.
	SendTrustPingErrorCode
	// RemoveConnectionErrorCode is for failures in remove connection command.
	RemoveConnectionErrorCode
)

type provider interface {
	ConnectionService() *protocol.Service
	DIDRotateService() *didrotate.Service
	OutOfBandService() *outofband.Service
	Messenger() protocol.Messenger
	EventBus() *event.Bus
	ContextID() string
}

// Command provides controller API for connection commands.
type Command struct {
	client *connection.Client
}

// New creates connection Command.
func New(prov provider) *Command {
	return &Command{client: connection.New(prov)}
}

// GetHandlers returns list of all commands supported by this controller command.
func (c *Command) GetHandlers() []command.Handler {
	return []command.Handler{
		command.NewHandler(CommandName, GetConnectionCommandMethod, c.GetConnection),
		command.NewHandler(CommandName, QueryConnectionsCommandMethod, c.QueryConnections),
		command.NewHandler(CommandName, CreateInvitationCommandMethod, c.CreateInvitation),
		command.NewHandler(CommandName, ReceiveInvitationCommandMethod, c.ReceiveInvitation),
		command.NewHandler(CommandName, ConnectCommandMethod, c.Connect),
		command.NewHandler(CommandName, AcceptRequestCommandMethod, c.AcceptRequest),
		command.NewHandler(CommandName, RotateDIDCommandMethod, c.RotateDID),
		command.NewHandler(CommandName, HangupCommandMethod, c.Hangup),
		command.NewHandler(CommandName, SendTrustPingCommandMethod, c.SendTrustPing),
		command.NewHandler(CommandName, RemoveConnectionCommandMethod, c.RemoveConnection),
	}
}

// GetConnection fetches a single connection record.
func (c *Command) GetConnection(rw io.Writer, req io.Reader) command.Error {
	request, cmdErr := decodeID(req, GetConnectionCommandMethod)
	if cmdErr != nil {
		return cmdErr
	}

	rec, err := c.client.GetConnection(request.ID)

	return respond(rw, GetConnectionCommandMethod, GetConnectionErrorCode, &QueryConnectionResponse{Result: rec}, err,
		connectionIDKey, request.ID)
}

// QueryConnections queries connection records matching the given fields.
func (c *Command) QueryConnections(rw io.Writer, req io.Reader) command.Error {
	var request QueryConnectionsArgs

	if cmdErr := decode(req, &request, QueryConnectionsCommandMethod); cmdErr != nil {
		return cmdErr
	}

	results, err := c.client.QueryConnections(&connectionstore.Query{
		State:       connectionstore.State(request.State),
		Role:        connectionstore.Role(request.Role),
		DID:         request.DID,
		TheirDID:    request.TheirDID,
		ThreadID:    request.ThreadID,
		OutOfBandID: request.OutOfBandID,
	})
	if results == nil {
		results = []*connectionstore.Record{}
	}

	return respond(rw, QueryConnectionsCommandMethod, QueryConnectionsErrorCode,
		&QueryConnectionsResponse{Results: results}, err)
}

// CreateInvitation creates an invitation other agents can connect with.
func (c *Command) CreateInvitation(rw io.Writer, req io.Reader) command.Error {
	var request CreateInvitationArgs

	if cmdErr := decode(req, &request, CreateInvitationCommandMethod); cmdErr != nil {
		return cmdErr
	}

	inv, err := c.client.CreateInvitation(connection.InvitationOptions{
		Label:              request.Label,
		HandshakeProtocols: request.HandshakeProtocols,
		Goal:               request.Goal,
		GoalCode:           request.GoalCode,
	})

	return respond(rw, CreateInvitationCommandMethod, CreateInvitationErrorCode,
		&CreateInvitationResponse{Invitation: inv}, err)
}

// ReceiveInvitation stores the invitation of another agent.
func (c *Command) ReceiveInvitation(rw io.Writer, req io.Reader) command.Error {
	var request connection.Invitation

	if cmdErr := decode(req, &request, ReceiveInvitationCommandMethod); cmdErr != nil {
		return cmdErr
	}

	oobID, err := c.client.ReceiveInvitation(&request)

	return respond(rw, ReceiveInvitationCommandMethod, ReceiveInvitationErrorCode,
		&ReceiveInvitationResponse{OutOfBandID: oobID}, err, outOfBandIDKey, oobID)
}

// Connect sends a handshake request for a received invitation.
func (c *Command) Connect(rw io.Writer, req io.Reader) command.Error {
	var request ConnectArgs

	if cmdErr := decode(req, &request, ConnectCommandMethod); cmdErr != nil {
		return cmdErr
	}

	if request.OutOfBandID == "" {
		return invalid(ConnectCommandMethod, errors.New(errEmptyOutOfBandID))
	}

	connID, err := c.client.Connect(request.OutOfBandID, &connection.ConnectOptions{
		Label:    request.Label,
		Alias:    request.Alias,
		OurDID:   request.OurDID,
		Goal:     request.Goal,
		GoalCode: request.GoalCode,
	})

	return respond(rw, ConnectCommandMethod, ConnectErrorCode, &ConnectResponse{ConnectionID: connID}, err,
		outOfBandIDKey, request.OutOfBandID, connectionIDKey, connID)
}

// AcceptRequest responds to a received handshake request.
func (c *Command) AcceptRequest(rw io.Writer, req io.Reader) command.Error {
	return c.onConnection(rw, req, AcceptRequestCommandMethod, AcceptRequestErrorCode, c.client.AcceptRequest)
}

// Hangup ends a connection, removing its record when delete_after_hangup is set.
func (c *Command) Hangup(rw io.Writer, req io.Reader) command.Error {
	var request HangupArgs

	if cmdErr := decode(req, &request, HangupCommandMethod); cmdErr != nil {
		return cmdErr
	}

	if request.ID == "" {
		return invalid(HangupCommandMethod, errors.New(errEmptyConnID))
	}

	var opts []connection.HangupOption
	if request.DeleteAfterHangup {
		opts = append(opts, connection.WithDeleteAfterHangup())
	}

	return respond(rw, HangupCommandMethod, HangupErrorCode, nil, c.client.Hangup(request.ID, opts...),
		connectionIDKey, request.ID)
}

// RemoveConnection removes a connection record.
func (c *Command) RemoveConnection(rw io.Writer, req io.Reader) command.Error {
	return c.onConnection(rw, req, RemoveConnectionCommandMethod, RemoveConnectionErrorCode,
		c.client.RemoveConnection)
}

// RotateDID rotates our DID of a connection.
func (c *Command) RotateDID(rw io.Writer, req io.Reader) command.Error {
	var request RotateDIDArgs

	if cmdErr := decode(req, &request, RotateDIDCommandMethod); cmdErr != nil {
		return cmdErr
	}

	if request.ID == "" {
		return invalid(RotateDIDCommandMethod, errors.New(errEmptyConnID))
	}

	newDID, err := c.client.RotateDID(request.ID, connection.RotateOptions{ToDID: request.ToDID})

	return respond(rw, RotateDIDCommandMethod, RotateDIDErrorCode, &RotateDIDResponse{NewDID: newDID}, err,
		connectionIDKey, request.ID, newDIDKey, newDID)
}

// SendTrustPing sends a trust ping on a ready connection.
func (c *Command) SendTrustPing(rw io.Writer, req io.Reader) command.Error {
	var request TrustPingArgs

	if cmdErr := decode(req, &request, SendTrustPingCommandMethod); cmdErr != nil {
		return cmdErr
	}

	if request.ID == "" {
		return invalid(SendTrustPingCommandMethod, errors.New(errEmptyConnID))
	}

	err := c.client.SendTrustPing(request.ID, request.Comment)

	return respond(rw, SendTrustPingCommandMethod, SendTrustPingErrorCode, nil, err, connectionIDKey, request.ID)
}

func (c *Command) onConnection(rw io.Writer, req io.Reader, method string, code command.Code,
	action func(connectionID string) error) command.Error {
	request, cmdErr := decodeID(req, method)
	if cmdErr != nil {
		return cmdErr
	}

	return respond(rw, method, code, nil, action(request.ID), connectionIDKey, request.ID)
}

// respond turns the outcome of a client call into the command result.
func respond(rw io.Writer, method string, code command.Code, result interface{}, err error,
	kv ...string) command.Error {
	if err != nil {
		logger.Failure(method, err, kv...)

		return command.NewExecuteError(code, err)
	}

	if err = command.WriteResponse(rw, result); err != nil {
		logger.Failure(method, err, kv...)
	}

	logger.Success(method, kv...)

	return nil
}

func decode(req io.Reader, v interface{}, method string) command.Error {
	if err := json.NewDecoder(req).Decode(v); err != nil {
		return invalid(method, err)
	}

	return nil
}

func decodeID(req io.Reader, method string) (*IDArgs, command.Error) {
	var request IDArgs

	if cmdErr := decode(req, &request, method); cmdErr != nil {
		return nil, cmdErr
	}

	if request.ID == "" {
		return nil, invalid(method, errors.New(errEmptyConnID))
	}

	return &request, nil
}

func invalid(method string, err error) command.Error {
	logger.Invalid(method, err)

	return command.NewValidationError(InvalidRequestErrorCode, err)
}
