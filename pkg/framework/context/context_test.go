/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package context

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-connections-go/pkg/config"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/didrotate"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/connection"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/didexchange"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/legacyconnection"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/outofband"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/trustping"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-connections-go/pkg/doc/did"
	"github.com/hyperledger/aries-connections-go/pkg/framework/aries/api"
	connectionstore "github.com/hyperledger/aries-connections-go/pkg/store/connection"
)

const waitTimeout = 5 * time.Second

func TestNewProvider(t *testing.T) {
	t.Run("test new with default", func(t *testing.T) {
		prov, err := New()
		require.NoError(t, err)
		require.Empty(t, prov.OutboundTransports())
		require.NotEmpty(t, prov.ContextID())
		require.NotNil(t, prov.StorageProvider())
		require.NotNil(t, prov.KMS())
		require.NotNil(t, prov.Crypto())
		require.NotNil(t, prov.VDRegistry())
		require.NotNil(t, prov.EventBus())
		require.NotNil(t, prov.ConnectionStore())
		require.NotNil(t, prov.DIDStore())
		require.NotNil(t, prov.OutOfBandService())
		require.NotNil(t, prov.InboundMessageHandler())
		require.Equal(t, config.Default().Connections, *prov.ConnectionsConfig())
		require.Equal(t, uint64(defaultGetConnectionMaxRetries), prov.GetConnectionMaxRetries())
		require.Equal(t, defaultGetConnectionBackOff, prov.GetConnectionBackOffDuration())
	})

	t.Run("test error return from options", func(t *testing.T) {
		_, err := New(func(opts *Provider) error {
			return errors.New("error creating the framework option")
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "error creating the framework option")
	})

	t.Run("test nil connections config", func(t *testing.T) {
		_, err := New(WithConnectionsConfig(nil))
		require.Error(t, err)
	})

	t.Run("test new with options", func(t *testing.T) {
		bus := event.NewBus()
		cfg := config.Default().Connections
		cfg.Label = "alice"

		prov, err := New(
			WithEventBus(bus),
			WithContextID("alice"),
			WithConnectionsConfig(&cfg),
			WithGetConnectionMaxRetries(7),
			WithGetConnectionBackOffDuration(time.Millisecond),
		)
		require.NoError(t, err)
		require.Same(t, bus, prov.EventBus())
		require.Equal(t, "alice", prov.ContextID())
		require.Equal(t, "alice", prov.ConnectionService().Config().Label)
		require.Equal(t, uint64(7), prov.GetConnectionMaxRetries())
		require.Equal(t, time.Millisecond, prov.GetConnectionBackOffDuration())

		// the config is copied
		cfg.Label = "changed"
		require.Equal(t, "alice", prov.ConnectionsConfig().Label)
	})

	t.Run("test new with messenger", func(t *testing.T) {
		m := &recordingMessenger{}

		prov, err := New(WithMessenger(m))
		require.NoError(t, err)
		require.Same(t, m, prov.Messenger())
	})
}

func TestProvider_Service(t *testing.T) {
	prov, err := New()
	require.NoError(t, err)

	for _, name := range []string{
		didexchange.DIDExchange, legacyconnection.LegacyConnection, trustping.TrustPing, didrotate.DIDRotate,
	} {
		svc, e := prov.Service(name)
		require.NoError(t, e, name)
		require.NotNil(t, svc)
	}

	_, err = prov.Service("introduce")
	require.ErrorIs(t, err, api.ErrSvcNotFound)

	all := prov.AllServices()
	require.Len(t, all, 4)

	// callers get a copy
	all[0] = nil
	require.NotNil(t, prov.AllServices()[0])

	for _, p := range []connectionstore.HandshakeProtocol{
		connectionstore.ProtocolDIDExchange, connectionstore.ProtocolConnections,
	} {
		_, err = prov.ConnectionService().Handshake(p)
		require.NoError(t, err)
	}
}

func TestProvider_InboundMessageHandler(t *testing.T) {
	m := &recordingMessenger{}

	prov, err := New(WithMessenger(m), WithGetConnectionMaxRetries(0))
	require.NoError(t, err)

	handle := prov.InboundMessageHandler()

	t.Run("invalid message", func(t *testing.T) {
		require.Error(t, handle(&transport.Envelope{Message: []byte("{")}))
	})

	t.Run("unknown message type", func(t *testing.T) {
		err := handle(&transport.Envelope{Message: []byte(`{"@id":"1","@type":"https://didcomm.org/introduce/0.1/x"}`)})
		require.Error(t, err)
		require.Contains(t, err.Error(), "no message handlers found")
	})

	t.Run("ping without a connection is rejected", func(t *testing.T) {
		ping, err := json.Marshal(prov.TrustPingService().CreatePing(trustping.PingOptions{ResponseRequested: true}))
		require.NoError(t, err)

		require.Error(t, handle(&transport.Envelope{Message: ping}))
		require.Empty(t, m.sent())
	})
}

func TestProvider_Connect(t *testing.T) {
	for _, protocol := range []connectionstore.HandshakeProtocol{
		connectionstore.ProtocolDIDExchange, connectionstore.ProtocolConnections,
	} {
		t.Run(string(protocol), func(t *testing.T) {
			net := newMemNetwork()
			alice := net.agent(t, "alice", false)
			bob := net.agent(t, "bob", true)

			aliceRec, bobRec := connect(t, protocol, alice, bob)
			require.Equal(t, bobRec.DID, aliceRec.TheirDID)
			require.Equal(t, aliceRec.DID, bobRec.TheirDID)
			require.Equal(t, protocol, aliceRec.Protocol)

			found, err := bob.ConnectionService().FindByDIDs(bobRec.DID, bobRec.TheirDID)
			require.NoError(t, err)
			require.Equal(t, bobRec.ConnectionID, found.ConnectionID)

			net.requireNoErrors(t)
		})
	}
}

func TestProvider_RotateAndHangup(t *testing.T) {
	net := newMemNetwork()
	alice := net.agent(t, "alice", false)
	bob := net.agent(t, "bob", true)

	aliceRec, bobRec := connect(t, connectionstore.ProtocolDIDExchange, alice, bob)

	aliceRotated := alice.EventBus().Subscribe(alice.ContextID(), event.DidRotated)
	defer aliceRotated.Unsubscribe()

	bobRotated := bob.EventBus().Subscribe(bob.ContextID(), event.DidRotated)
	defer bobRotated.Unsubscribe()

	routing, err := alice.ConnectionService().CreateRouting()
	require.NoError(t, err)

	rotate, err := alice.DIDRotateService().CreateRotate(aliceRec, didrotate.RotateOptions{Routing: routing})
	require.NoError(t, err)
	require.NoError(t, alice.Messenger().Send(rotate))

	theirs := requireRotated(t, bobRotated).TheirDID
	require.Equal(t, aliceRec.DID, theirs.From)

	ours := requireRotated(t, aliceRotated).OurDID
	require.Equal(t, aliceRec.DID, ours.From)
	require.Equal(t, theirs.To, ours.To)

	aliceRec, err = alice.ConnectionService().GetByID(aliceRec.ConnectionID)
	require.NoError(t, err)
	require.Equal(t, ours.To, aliceRec.DID)
	require.Contains(t, aliceRec.PreviousDIDs, ours.From)

	hangup, err := alice.DIDRotateService().CreateHangup(aliceRec)
	require.NoError(t, err)
	require.NoError(t, alice.Messenger().Send(hangup))

	require.Empty(t, requireRotated(t, bobRotated).TheirDID.To)

	bobRec, err = bob.ConnectionService().GetByID(bobRec.ConnectionID)
	require.NoError(t, err)
	require.Empty(t, bobRec.TheirDID)
	require.Contains(t, bobRec.PreviousTheirDIDs, ours.To)

	net.requireNoErrors(t)
}

// connect runs a handshake between the two agents and returns both completed records.
func connect(t *testing.T, protocol connectionstore.HandshakeProtocol, requester,
	responder *Provider) (*connectionstore.Record, *connectionstore.Record) {
	t.Helper()

	sent, received := invite(t, protocol, responder, requester)

	h, err := requester.ConnectionService().Handshake(protocol)
	require.NoError(t, err)

	routing, err := requester.ConnectionService().CreateRouting()
	require.NoError(t, err)

	request, rec, err := h.CreateRequest(received, &connection.RequestOptions{Routing: routing})
	require.NoError(t, err)
	require.NoError(t, requester.Messenger().Send(request))

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()

	requesterRec, err := requester.ConnectionService().ReturnWhenIsConnected(ctx, rec.ConnectionID, waitTimeout)
	require.NoError(t, err)

	var responderID string

	require.Eventually(t, func() bool {
		recs, e := responder.ConnectionService().FindAllByOutOfBandID(sent.ID)
		if e != nil || len(recs) == 0 {
			return false
		}

		responderID = recs[0].ConnectionID

		return true
	}, waitTimeout, 10*time.Millisecond)

	responderRec, err := responder.ConnectionService().ReturnWhenIsConnected(ctx, responderID, waitTimeout)
	require.NoError(t, err)

	return requesterRec, responderRec
}

// invite returns the sent invitation of inviter and the matching received one of invitee.
func invite(t *testing.T, protocol connectionstore.HandshakeProtocol, inviter,
	invitee *Provider) (*outofband.Record, *outofband.Record) {
	t.Helper()

	r, err := inviter.ConnectionService().CreateRouting()
	require.NoError(t, err)

	svc := did.DIDCommService{
		ID:              "#inline-0",
		ServiceEndpoint: r.Endpoints[0],
		RecipientKeys:   []string{r.RecipientKey},
	}
	invitationID := uuid.New().String()

	sent := &outofband.Record{
		Role:                     outofband.RoleSender,
		State:                    outofband.StateAwaitResponse,
		InvitationID:             invitationID,
		Label:                    inviter.ConnectionsConfig().Label,
		Services:                 []did.DIDCommService{svc},
		RecipientKeyFingerprints: []string{r.RecipientKey},
		InlineServiceKeys: []outofband.InlineServiceKey{
			{RecipientKeyFingerprint: r.RecipientKey, KeyHandle: r.RecipientKeyHandle},
		},
		HandshakeProtocols: []string{string(protocol)},
	}
	require.NoError(t, inviter.OutOfBandService().Save(sent))

	received := &outofband.Record{
		Role:                     outofband.RoleReceiver,
		State:                    outofband.StatePrepareResponse,
		InvitationID:             invitationID,
		Label:                    inviter.ConnectionsConfig().Label,
		Services:                 []did.DIDCommService{svc},
		RecipientKeyFingerprints: []string{r.RecipientKey},
		HandshakeProtocols:       []string{string(protocol)},
	}
	require.NoError(t, invitee.OutOfBandService().Save(received))

	return sent, received
}

func requireRotated(t *testing.T, sub *event.Subscription) *didrotate.DIDRotated {
	t.Helper()

	select {
	case e := <-sub.C:
		rotated, ok := e.Payload.(*didrotate.DIDRotated)
		require.True(t, ok)

		return rotated
	case <-time.After(waitTimeout):
		require.Fail(t, "no DidRotated event")
	}

	return nil
}

// memNetwork delivers envelopes between agents in this process. Each envelope is handled on its own
// goroutine as a real transport would.
type memNetwork struct {
	mu       sync.Mutex
	handlers map[string]transport.InboundMessageHandler
	errs     []error
}

func newMemNetwork() *memNetwork {
	return &memNetwork{handlers: map[string]transport.InboundMessageHandler{}}
}

func (n *memNetwork) agent(t *testing.T, name string, autoAccept bool) *Provider {
	t.Helper()

	cfg := config.Default().Connections
	cfg.Label = name
	cfg.Endpoints = []string{"mem://" + name}
	cfg.AutoAcceptConnections = autoAccept
	cfg.PeerNumAlgoForDIDExchangeRequests = 2

	p, err := New(
		WithContextID(name),
		WithConnectionsConfig(&cfg),
		WithOutboundTransports(&memTransport{net: n}),
		WithGetConnectionBackOffDuration(10*time.Millisecond),
	)
	require.NoError(t, err)

	n.mu.Lock()
	n.handlers[cfg.Endpoints[0]] = p.InboundMessageHandler()
	n.mu.Unlock()

	return p
}

func (n *memNetwork) requireNoErrors(t *testing.T) {
	t.Helper()

	n.mu.Lock()
	defer n.mu.Unlock()

	require.Empty(t, n.errs)
}

type memTransport struct {
	net *memNetwork
}

func (m *memTransport) Accept(url string) bool {
	return strings.HasPrefix(url, "mem://")
}

func (m *memTransport) Send(data []byte, dest *transport.Destination) error {
	m.net.mu.Lock()
	handle, ok := m.net.handlers[dest.ServiceEndpoint]
	m.net.mu.Unlock()

	if !ok {
		return fmt.Errorf("no agent at %s", dest.ServiceEndpoint)
	}

	envelope := &transport.Envelope{}
	if err := json.Unmarshal(data, envelope); err != nil {
		return err
	}

	go func() {
		if err := handle(envelope); err != nil {
			m.net.mu.Lock()
			m.net.errs = append(m.net.errs, err)
			m.net.mu.Unlock()
		}
	}()

	return nil
}

type recordingMessenger struct {
	mu   sync.Mutex
	msgs []*service.OutboundMessage
}

func (r *recordingMessenger) Send(msg *service.OutboundMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.msgs = append(r.msgs, msg)

	return nil
}

func (r *recordingMessenger) sent() []*service.OutboundMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]*service.OutboundMessage(nil), r.msgs...)
}
