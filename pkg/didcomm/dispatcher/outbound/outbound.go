/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package outbound

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-connections-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/connection"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-connections-go/pkg/doc/util/fingerprint"
)

var logger = log.New("aries-framework/didcomm/dispatcher")

// ErrNoDestination is returned for a message that has neither a connection with a reachable DID nor a service.
var ErrNoDestination = errors.New("no destination for outbound message")

// provider interface for outbound ctx.
type provider interface {
	OutboundTransports() []transport.OutboundTransport
	ConnectionService() *connection.Service
}

// Dispatcher delivers outbound messages over the transport that accepts the destination endpoint.
type Dispatcher struct {
	outboundTransports []transport.OutboundTransport
	conn               *connection.Service
}

// NewOutbound return new dispatcher outbound instance.
func NewOutbound(prov provider) *Dispatcher {
	return &Dispatcher{
		outboundTransports: prov.OutboundTransports(),
		conn:               prov.ConnectionService(),
	}
}

// Send delivers the message to the other party of its connection, or to its service for connection-less
// messages.
func (o *Dispatcher) Send(msg *service.OutboundMessage) error {
	dest, err := o.destination(msg)
	if err != nil {
		return fmt.Errorf("outbound %s: %w", msg.Message.Type(), err)
	}

	senderKey, err := o.senderKey(msg)
	if err != nil {
		return fmt.Errorf("outbound %s: %w", msg.Message.Type(), err)
	}

	return o.send(msg.Message, senderKey, dest)
}

func (o *Dispatcher) send(msg service.DIDCommMsgMap, senderKey string, dest *transport.Destination) error {
	var outboundTransport transport.OutboundTransport

	for _, v := range o.outboundTransports {
		if v.Accept(dest.ServiceEndpoint) {
			outboundTransport = v

			break
		}
	}

	if outboundTransport == nil {
		return fmt.Errorf("outboundDispatcher.Send: no transport found for destination: %s", dest.ServiceEndpoint)
	}

	if len(dest.RoutingKeys) > 0 {
		logger.Debugf("delivering %s directly to %s, routing keys %v are not used", msg.Type(),
			dest.ServiceEndpoint, dest.RoutingKeys)
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed marshal to bytes: %w", err)
	}

	envelope := &transport.Envelope{Message: raw, ToKey: dest.RecipientKeys[0]}

	if senderKey != "" {
		if envelope.FromKey, err = fingerprint.ToVerKey(senderKey); err != nil {
			return fmt.Errorf("sender key: %w", err)
		}
	}

	if envelope.ToKey, err = fingerprint.ToVerKey(envelope.ToKey); err != nil {
		return fmt.Errorf("recipient key: %w", err)
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed marshal envelope: %w", err)
	}

	if err = outboundTransport.Send(data, dest); err != nil {
		return fmt.Errorf("outboundDispatcher.Send: failed to send msg using outbound transport: %w", err)
	}

	logger.Debugf("sent %s to %s", msg.Type(), dest.ServiceEndpoint)

	return nil
}

func (o *Dispatcher) destination(msg *service.OutboundMessage) (*transport.Destination, error) {
	if msg.Service != nil {
		return toDestination(msg.Service.ServiceEndpoint, msg.Service.RecipientKeys, msg.Service.RoutingKeys)
	}

	if msg.Connection == nil || msg.Connection.TheirDID == "" {
		return nil, ErrNoDestination
	}

	doc, err := o.conn.ResolveDIDDoc(msg.Connection.TheirDID)
	if err != nil {
		return nil, err
	}

	services, err := doc.DIDCommServices()
	if err != nil {
		return nil, err
	}

	if len(services) == 0 {
		return nil, fmt.Errorf("%s has no DIDComm service: %w", doc.ID, ErrNoDestination)
	}

	return toDestination(services[0].ServiceEndpoint, services[0].RecipientKeys, services[0].RoutingKeys)
}

// senderKey is the explicit sender key of the message, else the first key of our DID.
func (o *Dispatcher) senderKey(msg *service.OutboundMessage) (string, error) {
	if msg.SenderKey != "" || msg.Connection == nil || msg.Connection.DID == "" {
		return msg.SenderKey, nil
	}

	ours, err := o.conn.DIDStore().GetCreated(msg.Connection.DID)
	if err != nil {
		return "", err
	}

	if len(ours.RecipientKeyFingerprints) == 0 {
		return "", fmt.Errorf("%s has no recipient key", ours.DID)
	}

	return ours.RecipientKeyFingerprints[0], nil
}

func toDestination(endpoint string, recipientKeys, routingKeys []string) (*transport.Destination, error) {
	if endpoint == "" || len(recipientKeys) == 0 {
		return nil, ErrNoDestination
	}

	return &transport.Destination{
		ServiceEndpoint: endpoint,
		RecipientKeys:   recipientKeys,
		RoutingKeys:     routingKeys,
	}, nil
}
