/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-connections-go/pkg/didcomm/common/model"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/outofband"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/trustping"
	mockprovider "github.com/hyperledger/aries-connections-go/pkg/internal/mock/provider"
	connectionstore "github.com/hyperledger/aries-connections-go/pkg/store/connection"
	"github.com/hyperledger/aries-connections-go/pkg/vdr/peer"
)

func newService(t *testing.T) (*Service, *mockprovider.Provider) {
	t.Helper()

	p, err := mockprovider.New("agent-"+uuid.New().String()[:8], event.NewBus())
	require.NoError(t, err)

	return New(p), p
}

func subscribe(t *testing.T, s *Service) *event.Subscription {
	t.Helper()

	sub := s.EventBus().Subscribe(s.ContextID(), event.ConnectionStateChanged)
	t.Cleanup(sub.Unsubscribe)

	return sub
}

func requireStateChanged(t *testing.T, sub *event.Subscription, state, previous connectionstore.State) *StateChanged {
	t.Helper()

	select {
	case e := <-sub.C:
		changed, ok := e.Payload.(*StateChanged)
		require.True(t, ok)
		require.Equal(t, state, changed.Record.State)
		require.Equal(t, previous, changed.PreviousState)

		return changed
	default:
		require.Fail(t, "no state changed event")
	}

	return nil
}

func requireNoEvent(t *testing.T, sub *event.Subscription) {
	t.Helper()

	select {
	case e := <-sub.C:
		require.Failf(t, "unexpected event", "%s: %+v", e.Type, e.Payload)
	default:
	}
}

func createInState(t *testing.T, s *Service, role connectionstore.Role,
	state connectionstore.State) *connectionstore.Record {
	t.Helper()

	rec, err := s.CreateConnection(&CreateParams{
		Protocol: connectionstore.ProtocolDIDExchange,
		Role:     role,
		State:    state,
		ThreadID: uuid.New().String(),
	})
	require.NoError(t, err)

	return rec
}

func TestService_CreateConnection(t *testing.T) {
	s, _ := newService(t)
	sub := subscribe(t, s)

	t.Run("defaults to start", func(t *testing.T) {
		rec, err := s.CreateConnection(&CreateParams{Role: connectionstore.RoleRequester, Alias: "bob"})
		require.NoError(t, err)
		require.NotEmpty(t, rec.ConnectionID)
		require.Equal(t, connectionstore.StateStart, rec.State)
		require.Equal(t, 1, rec.Version)

		stored, err := s.GetByID(rec.ConnectionID)
		require.NoError(t, err)
		require.Equal(t, "bob", stored.Alias)
		requireNoEvent(t, sub)
	})

	t.Run("invalid role", func(t *testing.T) {
		_, err := s.CreateConnection(&CreateParams{Role: "mediator"})
		require.ErrorContains(t, err, "invalid role")
	})
}

func TestService_UpdateState(t *testing.T) {
	s, _ := newService(t)
	sub := subscribe(t, s)

	t.Run("persists then emits", func(t *testing.T) {
		rec := createInState(t, s, connectionstore.RoleRequester, connectionstore.StateInvitationReceived)

		require.NoError(t, s.UpdateState(rec, connectionstore.StateRequestSent))

		changed := requireStateChanged(t, sub, connectionstore.StateRequestSent, connectionstore.StateInvitationReceived)
		require.Equal(t, rec.ConnectionID, changed.Record.ConnectionID)

		stored, err := s.GetByID(rec.ConnectionID)
		require.NoError(t, err)
		require.Equal(t, connectionstore.StateRequestSent, stored.State)
		require.Equal(t, 2, stored.Version)
	})

	t.Run("event carries a copy", func(t *testing.T) {
		rec := createInState(t, s, connectionstore.RoleResponder, connectionstore.StateRequestReceived)

		require.NoError(t, s.UpdateState(rec, connectionstore.StateResponseSent))

		changed := requireStateChanged(t, sub, connectionstore.StateResponseSent, connectionstore.StateRequestReceived)
		rec.Alias = "changed later"
		require.Empty(t, changed.Record.Alias)
	})

	t.Run("invalid transition has no side effects", func(t *testing.T) {
		rec := createInState(t, s, connectionstore.RoleRequester, connectionstore.StateRequestSent)

		err := s.UpdateState(rec, connectionstore.StateResponseSent)

		var stateErr *connectionstore.StateError
		require.ErrorAs(t, err, &stateErr)
		require.Equal(t, connectionstore.StateRequestSent, rec.State)
		requireNoEvent(t, sub)

		stored, err := s.GetByID(rec.ConnectionID)
		require.NoError(t, err)
		require.Equal(t, 1, stored.Version)
	})

	t.Run("stale record is rejected", func(t *testing.T) {
		rec := createInState(t, s, connectionstore.RoleResponder, connectionstore.StateRequestReceived)
		stale := rec.Clone()

		require.NoError(t, s.UpdateState(rec, connectionstore.StateResponseSent))
		requireStateChanged(t, sub, connectionstore.StateResponseSent, connectionstore.StateRequestReceived)

		err := s.UpdateState(stale, connectionstore.StateAbandoned)
		require.ErrorIs(t, err, connectionstore.ErrVersionConflict)
		require.Equal(t, connectionstore.StateRequestReceived, stale.State)
		requireNoEvent(t, sub)
	})
}

func TestService_ProcessAck(t *testing.T) {
	s, _ := newService(t)
	sub := subscribe(t, s)

	t.Run("completes a responder in response-sent", func(t *testing.T) {
		rec := createInState(t, s, connectionstore.RoleResponder, connectionstore.StateResponseSent)

		got, err := s.ProcessAck(&service.MessageContext{Connection: rec})
		require.NoError(t, err)
		require.Equal(t, connectionstore.StateCompleted, got.State)
		requireStateChanged(t, sub, connectionstore.StateCompleted, connectionstore.StateResponseSent)
	})

	t.Run("completed connection is not written again", func(t *testing.T) {
		rec := createInState(t, s, connectionstore.RoleResponder, connectionstore.StateCompleted)

		got, err := s.ProcessAck(&service.MessageContext{Connection: rec})
		require.NoError(t, err)
		require.Equal(t, connectionstore.StateCompleted, got.State)
		requireNoEvent(t, sub)

		stored, err := s.GetByID(rec.ConnectionID)
		require.NoError(t, err)
		require.Equal(t, 1, stored.Version)
		require.Equal(t, rec.UpdatedAt, stored.UpdatedAt)
	})

	t.Run("requester is returned unchanged", func(t *testing.T) {
		rec := createInState(t, s, connectionstore.RoleRequester, connectionstore.StateResponseReceived)

		got, err := s.ProcessAck(&service.MessageContext{Connection: rec})
		require.NoError(t, err)
		require.Equal(t, connectionstore.StateResponseReceived, got.State)
		requireNoEvent(t, sub)
	})

	t.Run("no connection", func(t *testing.T) {
		_, err := s.ProcessAck(&service.MessageContext{})
		require.ErrorIs(t, err, service.ErrNoConnection)
	})
}

func TestService_CreateTrustPing(t *testing.T) {
	s, _ := newService(t)
	sub := subscribe(t, s)

	t.Run("completes a connection in response-received", func(t *testing.T) {
		rec := createInState(t, s, connectionstore.RoleRequester, connectionstore.StateResponseReceived)

		out, err := s.CreateTrustPing(rec, trustping.PingOptions{ResponseRequested: true})
		require.NoError(t, err)
		require.Equal(t, trustping.PingMsgType, out.Message.Type())
		require.Equal(t, true, out.Message["response_requested"])
		require.Equal(t, connectionstore.StateCompleted, out.Connection.State)
		requireStateChanged(t, sub, connectionstore.StateCompleted, connectionstore.StateResponseReceived)
	})

	t.Run("completed connection is idempotent", func(t *testing.T) {
		rec := createInState(t, s, connectionstore.RoleRequester, connectionstore.StateCompleted)

		out, err := s.CreateTrustPing(rec, trustping.PingOptions{})
		require.NoError(t, err)
		require.NotNil(t, out.Message)
		requireNoEvent(t, sub)

		stored, err := s.GetByID(rec.ConnectionID)
		require.NoError(t, err)
		require.Equal(t, 1, stored.Version)
	})

	t.Run("wrong state", func(t *testing.T) {
		rec := createInState(t, s, connectionstore.RoleRequester, connectionstore.StateRequestSent)

		_, err := s.CreateTrustPing(rec, trustping.PingOptions{})

		var stateErr *connectionstore.StateError
		require.ErrorAs(t, err, &stateErr)
		require.Contains(t, err.Error(), "expected response-received or completed")
		requireNoEvent(t, sub)
	})
}

func problemReportMessage(t *testing.T, code, en string) service.DIDCommMsgMap {
	t.Helper()

	msg, err := service.NewDIDCommMsgMap(&model.ProblemReport{
		Type:        "https://didcomm.org/didexchange/1.1/problem_report",
		ID:          uuid.New().String(),
		Description: model.Code{Code: code, En: en},
		Thread:      &decorator.Thread{ID: uuid.New().String()},
	})
	require.NoError(t, err)

	return msg
}

func TestService_ProcessProblemReport(t *testing.T) {
	s, _ := newService(t)
	sub := subscribe(t, s)

	ourRouting, err := s.CreateRouting()
	require.NoError(t, err)

	ours, err := s.CreatePeerDID(ourRouting, peer.NumAlgo2)
	require.NoError(t, err)

	theirRouting, err := s.CreateRouting()
	require.NoError(t, err)

	theirDoc, err := BuildPeerDoc(theirRouting)
	require.NoError(t, err)

	theirDoc.ID, err = peer.NumAlgo2DID(theirDoc)
	require.NoError(t, err)

	theirs, err := s.StoreReceivedDID(theirDoc)
	require.NoError(t, err)

	rec, err := s.CreateConnection(&CreateParams{
		Role:     connectionstore.RoleRequester,
		State:    connectionstore.StateResponseReceived,
		DID:      ours.DID,
		TheirDID: theirs.DID,
		ThreadID: uuid.New().String(),
	})
	require.NoError(t, err)

	t.Run("missing keys", func(t *testing.T) {
		_, err := s.ProcessProblemReport(&service.MessageContext{
			Message:      problemReportMessage(t, "request_not_accepted", "no"),
			RecipientKey: ourRouting.RecipientKey,
		})
		require.ErrorIs(t, err, ErrMissingKeys)
	})

	t.Run("unknown recipient key", func(t *testing.T) {
		other, err := s.CreateRouting()
		require.NoError(t, err)

		_, err = s.ProcessProblemReport(&service.MessageContext{
			Message:      problemReportMessage(t, "request_not_accepted", "no"),
			SenderKey:    theirRouting.RecipientKey,
			RecipientKey: other.RecipientKey,
		})
		require.Error(t, err)
	})

	t.Run("sender key of another party", func(t *testing.T) {
		other, err := s.CreateRouting()
		require.NoError(t, err)

		_, err = s.ProcessProblemReport(&service.MessageContext{
			Message:      problemReportMessage(t, "request_not_accepted", "no"),
			SenderKey:    other.RecipientKey,
			RecipientKey: ourRouting.RecipientKey,
		})
		require.ErrorContains(t, err, "does not belong to")
		requireNoEvent(t, sub)
	})

	t.Run("abandons the connection", func(t *testing.T) {
		got, err := s.ProcessProblemReport(&service.MessageContext{
			Message:      problemReportMessage(t, "response_not_accepted", "bad signature"),
			SenderKey:    theirRouting.RecipientKey,
			RecipientKey: ourRouting.RecipientKey,
		})
		require.NoError(t, err)
		require.Equal(t, rec.ConnectionID, got.ConnectionID)
		require.Equal(t, connectionstore.StateAbandoned, got.State)
		require.Equal(t, "response_not_accepted : bad signature", got.ErrorMessage)
		requireStateChanged(t, sub, connectionstore.StateAbandoned, connectionstore.StateResponseReceived)

		stored, err := s.GetByID(rec.ConnectionID)
		require.NoError(t, err)
		require.Equal(t, "response_not_accepted : bad signature", stored.ErrorMessage)
	})

	t.Run("terminal connection only records the message", func(t *testing.T) {
		got, err := s.ProcessProblemReport(&service.MessageContext{
			Message:      problemReportMessage(t, "e.other", "again"),
			SenderKey:    theirRouting.RecipientKey,
			RecipientKey: ourRouting.RecipientKey,
		})
		require.NoError(t, err)
		require.Equal(t, connectionstore.StateAbandoned, got.State)
		require.Equal(t, "e.other : again", got.ErrorMessage)
		requireNoEvent(t, sub)
	})
}

func TestService_ProcessProblemReport_BeforeResponse(t *testing.T) {
	s, p := newService(t)

	ourRouting, err := s.CreateRouting()
	require.NoError(t, err)

	ours, err := s.CreatePeerDID(ourRouting, peer.NumAlgo1)
	require.NoError(t, err)

	inviterKey, err := s.CreateRouting()
	require.NoError(t, err)

	oob := &outofband.Record{
		Role:                     outofband.RoleReceiver,
		State:                    outofband.StatePrepareResponse,
		InvitationID:             uuid.New().String(),
		RecipientKeyFingerprints: []string{inviterKey.RecipientKey},
	}
	require.NoError(t, p.OutOfBandService().Save(oob))

	rec, err := s.CreateConnection(&CreateParams{
		Role:        connectionstore.RoleRequester,
		State:       connectionstore.StateRequestSent,
		DID:         ours.DID,
		OutOfBandID: oob.ID,
		ThreadID:    uuid.New().String(),
	})
	require.NoError(t, err)

	got, err := s.ProcessProblemReport(&service.MessageContext{
		Message:      problemReportMessage(t, "request_not_accepted", "go away"),
		SenderKey:    inviterKey.RecipientKey,
		RecipientKey: ourRouting.RecipientKey,
	})
	require.NoError(t, err)
	require.Equal(t, rec.ConnectionID, got.ConnectionID)
	require.Equal(t, connectionstore.StateAbandoned, got.State)
}

type stubHandshake struct {
	Handshake
	protocol connectionstore.HandshakeProtocol
}

func (h *stubHandshake) Protocol() connectionstore.HandshakeProtocol {
	return h.protocol
}

func TestService_Handshake(t *testing.T) {
	s, _ := newService(t)

	_, err := s.Handshake(connectionstore.ProtocolConnections)
	require.ErrorIs(t, err, ErrUnknownHandshake)

	h := &stubHandshake{protocol: connectionstore.ProtocolConnections}
	s.Register(h)

	got, err := s.Handshake(connectionstore.ProtocolConnections)
	require.NoError(t, err)
	require.Equal(t, h, got)

	_, err = s.Handshake(connectionstore.ProtocolDIDExchange)
	require.True(t, errors.Is(err, ErrUnknownHandshake))
}
