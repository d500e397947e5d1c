/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package memnet connects agents of one test process through mem:// endpoints.
package memnet

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-connections-go/pkg/config"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/transport"
	fwcontext "github.com/hyperledger/aries-connections-go/pkg/framework/context"
)

const scheme = "mem://"

// Network delivers envelopes between agents in this process, each on its own goroutine.
type Network struct {
	mu       sync.Mutex
	handlers map[string]transport.InboundMessageHandler
	errs     []error
}

// New returns an empty network.
func New() *Network {
	return &Network{handlers: map[string]transport.InboundMessageHandler{}}
}

// Agent creates an agent reachable at mem://<name>.
func (n *Network) Agent(t *testing.T, name string, autoAccept bool) *fwcontext.Provider {
	t.Helper()

	cfg := config.Default().Connections
	cfg.Label = name
	cfg.Endpoints = []string{scheme + name}
	cfg.AutoAcceptConnections = autoAccept
	cfg.PeerNumAlgoForDIDExchangeRequests = 2

	p, err := fwcontext.New(
		fwcontext.WithContextID(name),
		fwcontext.WithConnectionsConfig(&cfg),
		fwcontext.WithOutboundTransports(&Transport{net: n}),
		fwcontext.WithGetConnectionBackOffDuration(10*time.Millisecond),
	)
	require.NoError(t, err)

	n.mu.Lock()
	n.handlers[cfg.Endpoints[0]] = p.InboundMessageHandler()
	n.mu.Unlock()

	return p
}

// RequireNoErrors fails the test if an agent failed to handle a delivered envelope.
func (n *Network) RequireNoErrors(t *testing.T) {
	t.Helper()

	n.mu.Lock()
	defer n.mu.Unlock()

	require.Empty(t, n.errs)
}

// Transport is the outbound transport of network agents.
type Transport struct {
	net *Network
}

// Accept url.
func (m *Transport) Accept(url string) bool {
	return strings.HasPrefix(url, scheme)
}

// Send data to the agent at the destination endpoint.
func (m *Transport) Send(data []byte, dest *transport.Destination) error {
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
