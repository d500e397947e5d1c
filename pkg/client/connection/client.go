/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-connections-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/didrotate"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/connection"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/outofband"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/trustping"
	connectionstore "github.com/hyperledger/aries-connections-go/pkg/store/connection"
)

var logger = log.New("aries-framework/client/connection")

var (
	// ErrConnectionNotFound is returned when connection not found.
	ErrConnectionNotFound = errors.New("connection not found")
	// ErrInvitationNotFound is returned when the out-of-band record to connect with is unknown.
	ErrInvitationNotFound = errors.New("invitation not found")
	// ErrNoSupportedHandshake is returned when an invitation offers none of the registered handshakes.
	ErrNoSupportedHandshake = errors.New("invitation offers no supported handshake protocol")
)

// provider contains dependencies for the connection client and is typically created by using
// context.New().
type provider interface {
	ConnectionService() *connection.Service
	DIDRotateService() *didrotate.Service
	OutOfBandService() *outofband.Service
	Messenger() connection.Messenger
	EventBus() *event.Bus
	ContextID() string
}

// Client is a connection management SDK client.
type Client struct {
	conn      *connection.Service
	didRotate *didrotate.Service
	oob       *outofband.Service
	messenger connection.Messenger
	bus       *event.Bus
	contextID string
}

// ConnectOptions for Connect.
type ConnectOptions struct {
	Label    string
	Alias    string
	OurDID   string
	Goal     string
	GoalCode string
}

// RotateOptions for RotateDID. Without ToDID a new peer DID is created.
type RotateOptions struct {
	ToDID string
}

// New creates connection Client.
func New(prov provider) *Client {
	return &Client{
		conn:      prov.ConnectionService(),
		didRotate: prov.DIDRotateService(),
		oob:       prov.OutOfBandService(),
		messenger: prov.Messenger(),
		bus:       prov.EventBus(),
		contextID: prov.ContextID(),
	}
}

// Subscribe returns a subscription to events of this agent. Without types every event is delivered.
func (c *Client) Subscribe(types ...event.Type) *event.Subscription {
	return c.bus.Subscribe(c.contextID, types...)
}

// GetConnection fetches single connection record for given id.
func (c *Client) GetConnection(connectionID string) (*connectionstore.Record, error) {
	rec, err := c.conn.GetByID(connectionID)
	if errors.Is(err, connectionstore.ErrNotFound) {
		return nil, ErrConnectionNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("cannot fetch connection %s: %w", connectionID, err)
	}

	return rec, nil
}

// QueryConnections queries connections matching the non-empty fields of q.
func (c *Client) QueryConnections(q *connectionstore.Query) ([]*connectionstore.Record, error) {
	if q == nil {
		q = &connectionstore.Query{}
	}

	records, err := c.conn.FindAllByQuery(q)
	if err != nil {
		return nil, fmt.Errorf("failed query connections: %w", err)
	}

	return records, nil
}

// RemoveConnection removes connection record for given id.
func (c *Client) RemoveConnection(connectionID string) error {
	if _, err := c.GetConnection(connectionID); err != nil {
		return err
	}

	if err := c.conn.DeleteByID(connectionID); err != nil {
		return fmt.Errorf("cannot remove connection from the store: err=%w", err)
	}

	return nil
}

// Connect sends a handshake request for a received invitation and returns the id of the new connection. The
// first handshake protocol of the invitation that this agent supports is used.
func (c *Client) Connect(outOfBandID string, opts *ConnectOptions) (string, error) {
	if opts == nil {
		opts = &ConnectOptions{}
	}

	oob, err := c.oob.FindByID(outOfBandID)
	if err != nil {
		return "", fmt.Errorf("connect: %w", err)
	}

	if oob == nil {
		return "", fmt.Errorf("connect with %s: %w", outOfBandID, ErrInvitationNotFound)
	}

	h, err := c.handshakeOf(oob)
	if err != nil {
		return "", err
	}

	reqOpts := &connection.RequestOptions{
		Label:    opts.Label,
		Alias:    opts.Alias,
		OurDID:   opts.OurDID,
		Goal:     opts.Goal,
		GoalCode: opts.GoalCode,
	}

	if opts.OurDID == "" || h.Protocol() == connectionstore.ProtocolConnections {
		if reqOpts.Routing, err = c.conn.CreateRouting(); err != nil {
			return "", fmt.Errorf("connect: %w", err)
		}
	}

	request, rec, err := h.CreateRequest(oob, reqOpts)
	if err != nil {
		return "", fmt.Errorf("connect: %w", err)
	}

	if err = c.messenger.Send(request); err != nil {
		return "", fmt.Errorf("send request of connection %s: %w", rec.ConnectionID, err)
	}

	logger.Debugf("sent %s request for invitation %s", h.Protocol(), oob.InvitationID)

	return rec.ConnectionID, nil
}

// AcceptRequest responds to a received handshake request. This call is not needed when connections are
// accepted automatically.
func (c *Client) AcceptRequest(connectionID string) error {
	rec, err := c.GetConnection(connectionID)
	if err != nil {
		return err
	}

	if err = connectionstore.AssertState(rec, connectionstore.StateRequestReceived); err != nil {
		return err
	}

	h, err := c.conn.Handshake(rec.Protocol)
	if err != nil {
		return err
	}

	oob, err := c.oob.GetByID(rec.OutOfBandID)
	if err != nil {
		return fmt.Errorf("accept request of connection %s: %w", connectionID, err)
	}

	response, err := h.CreateResponse(rec, oob, nil)
	if err != nil {
		return fmt.Errorf("accept request of connection %s: %w", connectionID, err)
	}

	return c.messenger.Send(response)
}

// WaitForConnection blocks until the connection is completed, the timeout elapses or ctx is done.
func (c *Client) WaitForConnection(ctx context.Context, connectionID string,
	timeout time.Duration) (*connectionstore.Record, error) {
	return c.conn.ReturnWhenIsConnected(ctx, connectionID, timeout)
}

// RotateDID sends a rotation of our DID on the connection and returns the DID rotated to. The connection
// keeps the old DID until the other party acknowledges.
func (c *Client) RotateDID(connectionID string, opts RotateOptions) (string, error) {
	rec, err := c.GetConnection(connectionID)
	if err != nil {
		return "", err
	}

	rotateOpts := didrotate.RotateOptions{ToDID: opts.ToDID}

	if opts.ToDID == "" {
		if rotateOpts.Routing, err = c.conn.CreateRouting(); err != nil {
			return "", fmt.Errorf("rotate did: %w", err)
		}
	}

	msg, err := c.didRotate.CreateRotate(rec, rotateOpts)
	if err != nil {
		return "", fmt.Errorf("rotate did: %w", err)
	}

	rotate := &didrotate.Rotate{}
	if err = msg.Message.Decode(rotate); err != nil {
		return "", err
	}

	if err = c.messenger.Send(msg); err != nil {
		// the rotation cannot be acknowledged without being received
		if e := c.didRotate.ClearDidRotationData(rec); e != nil {
			logger.Warnf("clear rotation of connection %s: %v", connectionID, e)
		}

		return "", fmt.Errorf("send rotation of connection %s: %w", connectionID, err)
	}

	return rotate.ToDID, nil
}

// HangupOption configures Hangup.
type HangupOption func(*hangupOpts)

type hangupOpts struct {
	deleteAfterHangup bool
}

// WithDeleteAfterHangup removes the connection record once the hangup has been sent.
func WithDeleteAfterHangup() HangupOption {
	return func(o *hangupOpts) {
		o.deleteAfterHangup = true
	}
}

// Hangup ends the connection. Our DID is retired and the other party is told to stop using it.
func (c *Client) Hangup(connectionID string, opts ...HangupOption) error {
	options := &hangupOpts{}
	for _, opt := range opts {
		opt(options)
	}

	rec, err := c.GetConnection(connectionID)
	if err != nil {
		return err
	}

	msg, err := c.didRotate.CreateHangup(rec)
	if err != nil {
		return fmt.Errorf("hangup: %w", err)
	}

	if err = c.messenger.Send(msg); err != nil {
		return err
	}

	if options.deleteAfterHangup {
		return c.RemoveConnection(connectionID)
	}

	return nil
}

// AddConnectionType labels a connection with a type.
func (c *Client) AddConnectionType(connectionID, connectionType string) error {
	rec, err := c.GetConnection(connectionID)
	if err != nil {
		return err
	}

	return c.conn.AddConnectionType(rec, connectionType)
}

// RemoveConnectionType removes a type label from a connection.
func (c *Client) RemoveConnectionType(connectionID, connectionType string) error {
	rec, err := c.GetConnection(connectionID)
	if err != nil {
		return err
	}

	return c.conn.RemoveConnectionType(rec, connectionType)
}

// GetConnectionTypes returns the type labels of a connection.
func (c *Client) GetConnectionTypes(connectionID string) ([]string, error) {
	rec, err := c.GetConnection(connectionID)
	if err != nil {
		return nil, err
	}

	return c.conn.GetConnectionTypes(rec), nil
}

// SendTrustPing sends a ping on a ready connection, asking for a response.
func (c *Client) SendTrustPing(connectionID, comment string) error {
	rec, err := c.GetConnection(connectionID)
	if err != nil {
		return err
	}

	if !rec.IsReady() {
		return &connectionstore.StateError{
			ConnectionID:   rec.ConnectionID,
			CurrentState:   rec.State,
			ExpectedStates: []connectionstore.State{connectionstore.StateResponseSent, connectionstore.StateCompleted},
		}
	}

	msg, err := service.NewDIDCommMsgMap(trustping.CreatePing(trustping.PingOptions{
		ResponseRequested: true,
		Comment:           comment,
	}))
	if err != nil {
		return err
	}

	return c.messenger.Send(&service.OutboundMessage{Message: msg, Connection: rec})
}

func (c *Client) handshakeOf(oob *outofband.Record) (connection.Handshake, error) {
	protocols := oob.HandshakeProtocols
	if len(protocols) == 0 {
		protocols = []string{string(connectionstore.ProtocolDIDExchange)}
	}

	for _, p := range protocols {
		if h, err := c.conn.Handshake(connectionstore.HandshakeProtocol(p)); err == nil {
			return h, nil
		}
	}

	return nil, fmt.Errorf("connect with %s: %w", oob.ID, ErrNoSupportedHandshake)
}
