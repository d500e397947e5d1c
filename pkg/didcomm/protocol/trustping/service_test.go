/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package trustping

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-connections-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/event"
	connectionstore "github.com/hyperledger/aries-connections-go/pkg/store/connection"
)

type provider struct {
	bus *event.Bus
}

func (p *provider) EventBus() *event.Bus { return p.bus }
func (p *provider) ContextID() string    { return "agent" }

func readyConnection() *connectionstore.Record {
	return &connectionstore.Record{
		ConnectionID: "conn-1",
		State:        connectionstore.StateCompleted,
		Role:         connectionstore.RoleRequester,
		TheirDID:     "did:peer:1zQmtheir",
	}
}

func msgContext(t *testing.T, msg interface{}, conn *connectionstore.Record) *service.MessageContext {
	t.Helper()

	m, err := service.NewDIDCommMsgMap(msg)
	require.NoError(t, err)

	return &service.MessageContext{Message: m, Connection: conn}
}

func TestProcessPing(t *testing.T) {
	bus := event.NewBus()
	s := New(&provider{bus: bus})

	require.Equal(t, TrustPing, s.Name())
	require.True(t, s.Accept(PingMsgType))
	require.True(t, s.Accept(PingResponseMsgType))
	require.False(t, s.Accept("other"))

	sub := bus.Subscribe("agent", event.TrustPingReceived)
	defer sub.Unsubscribe()

	t.Run("response requested", func(t *testing.T) {
		ping := s.CreatePing(PingOptions{ResponseRequested: true, Comment: "hi"})

		out, err := s.ProcessPing(msgContext(t, ping, readyConnection()))
		require.NoError(t, err)
		require.NotNil(t, out)
		require.Equal(t, PingResponseMsgType, out.Message.Type())
		require.Equal(t, "conn-1", out.Connection.ConnectionID)

		thid, err := out.Message.ThreadID()
		require.NoError(t, err)
		require.Equal(t, ping.ID, thid)

		e := <-sub.C
		payload, ok := e.Payload.(*PingReceived)
		require.True(t, ok)
		require.Equal(t, "hi", payload.Message.Comment)
	})

	t.Run("no response requested", func(t *testing.T) {
		out, err := s.ProcessPing(msgContext(t, CreatePing(PingOptions{}), readyConnection()))
		require.NoError(t, err)
		require.Nil(t, out)

		<-sub.C
	})

	t.Run("connection not ready", func(t *testing.T) {
		conn := readyConnection()
		conn.State = connectionstore.StateRequestSent

		_, err := s.ProcessPing(msgContext(t, CreatePing(PingOptions{}), conn))
		require.Error(t, err)

		_, err = s.ProcessPing(msgContext(t, CreatePing(PingOptions{}), nil))
		require.ErrorIs(t, err, service.ErrNoConnection)
	})
}

func TestProcessPingResponse(t *testing.T) {
	bus := event.NewBus()
	s := New(&provider{bus: bus})

	sub := bus.Subscribe("agent", event.TrustPingResponseReceived)
	defer sub.Unsubscribe()

	resp := &PingResponse{Type: PingResponseMsgType, ID: "r1"}

	require.NoError(t, s.ProcessPingResponse(msgContext(t, resp, readyConnection())))

	e := <-sub.C
	payload, ok := e.Payload.(*PingResponseReceived)
	require.True(t, ok)
	require.Equal(t, "r1", payload.Message.ID)

	conn := readyConnection()
	conn.TheirDID = ""
	require.ErrorIs(t, s.ProcessPingResponse(msgContext(t, resp, conn)), ErrMissingTheirDID)

	conn = readyConnection()
	conn.State = connectionstore.StateAbandoned
	require.Error(t, s.ProcessPingResponse(msgContext(t, resp, conn)))
}
