/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package didrotate

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-connections-go/pkg/didcomm/common/model"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/connection"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/decorator"
	mockprovider "github.com/hyperledger/aries-connections-go/pkg/internal/mock/provider"
	connectionstore "github.com/hyperledger/aries-connections-go/pkg/store/connection"
	"github.com/hyperledger/aries-connections-go/pkg/vdr/peer"
)

type agent struct {
	p      *mockprovider.Provider
	conn   *connection.Service
	rotate *Service
	events *event.Subscription
}

func newAgent(t *testing.T, label string) *agent {
	t.Helper()

	bus := event.NewBus()

	p, err := mockprovider.New(label, bus)
	require.NoError(t, err)

	conn := connection.New(p)

	a := &agent{p: p, conn: conn, rotate: New(conn), events: bus.Subscribe(label, event.DidRotated)}
	t.Cleanup(a.events.Unsubscribe)

	return a
}

func (a *agent) routing(t *testing.T) *connection.Routing {
	t.Helper()

	r, err := a.conn.CreateRouting()
	require.NoError(t, err)

	return r
}

func (a *agent) peerDID(t *testing.T, numAlgo peer.NumAlgo) string {
	t.Helper()

	rec, err := a.conn.CreatePeerDID(a.routing(t), numAlgo)
	require.NoError(t, err)

	return rec.DID
}

func (a *agent) rotated(t *testing.T) *DIDRotated {
	t.Helper()

	select {
	case e := <-a.events.C:
		payload, ok := e.Payload.(*DIDRotated)
		require.True(t, ok)

		return payload
	default:
		require.Fail(t, "no DidRotated event")
	}

	return nil
}

func (a *agent) requireNotRotated(t *testing.T) {
	t.Helper()

	select {
	case e := <-a.events.C:
		require.Failf(t, "unexpected event", "%+v", e.Payload)
	default:
	}
}

// connect returns the completed records of a connection between alice and bob.
func connect(t *testing.T, alice, bob *agent) (*connectionstore.Record, *connectionstore.Record) {
	t.Helper()

	aliceDID := alice.peerDID(t, peer.NumAlgo2)
	bobDID := bob.peerDID(t, peer.NumAlgo2)
	thid := uuid.New().String()

	aliceRec, err := alice.conn.CreateConnection(&connection.CreateParams{
		Protocol: connectionstore.ProtocolDIDExchange,
		Role:     connectionstore.RoleRequester,
		State:    connectionstore.StateCompleted,
		DID:      aliceDID,
		TheirDID: bobDID,
		ThreadID: thid,
	})
	require.NoError(t, err)

	bobRec, err := bob.conn.CreateConnection(&connection.CreateParams{
		Protocol: connectionstore.ProtocolDIDExchange,
		Role:     connectionstore.RoleResponder,
		State:    connectionstore.StateCompleted,
		DID:      bobDID,
		TheirDID: aliceDID,
		ThreadID: thid,
	})
	require.NoError(t, err)

	return aliceRec, bobRec
}

func wire(t *testing.T, msg service.DIDCommMsgMap) service.DIDCommMsgMap {
	t.Helper()

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	parsed, err := service.ParseDIDCommMsgMap(raw)
	require.NoError(t, err)

	return parsed
}

func TestService_Accept(t *testing.T) {
	s := New(nil)

	require.Equal(t, DIDRotate, s.Name())

	for _, msgType := range []string{RotateMsgType, AckMsgType, ProblemReportMsgType, HangupMsgType} {
		require.True(t, s.Accept(msgType), msgType)
	}

	require.False(t, s.Accept("https://didcomm.org/trust_ping/1.0/ping"))
}

func TestService_Rotate(t *testing.T) {
	alice, bob := newAgent(t, "alice"), newAgent(t, "bob")
	aliceRec, bobRec := connect(t, alice, bob)
	oldAliceDID := aliceRec.DID

	routing := alice.routing(t)
	routing.MediatorID = "mediator-1"

	rotate, err := alice.rotate.CreateRotate(aliceRec, RotateOptions{Routing: routing})
	require.NoError(t, err)
	require.Equal(t, RotateMsgType, rotate.Message.Type())

	var msg Rotate
	require.NoError(t, rotate.Message.Decode(&msg))
	require.NotEqual(t, oldAliceDID, msg.ToDID)

	numAlgo, err := peer.GetNumAlgo(msg.ToDID)
	require.NoError(t, err)
	require.Equal(t, peer.NumAlgo(alice.conn.Config().PeerNumAlgoForDIDRotation), numAlgo)

	// our DID only changes with the ack
	require.Equal(t, oldAliceDID, aliceRec.DID)
	stored, err := alice.conn.GetByID(aliceRec.ConnectionID)
	require.NoError(t, err)
	require.Equal(t, oldAliceDID, stored.DID)
	_, pending := stored.GetMetadata(MetadataKey)
	require.True(t, pending)
	alice.requireNotRotated(t)

	ack, err := bob.rotate.ProcessRotate(&service.MessageContext{Message: wire(t, rotate.Message), Connection: bobRec})
	require.NoError(t, err)
	require.Equal(t, AckMsgType, ack.Message.Type())
	require.Equal(t, oldAliceDID, ack.Connection.TheirDID, "ack goes to the DID being rotated away from")

	thid, err := ack.Message.ThreadID()
	require.NoError(t, err)
	require.Equal(t, rotate.Message.ID(), thid)

	require.Equal(t, msg.ToDID, bobRec.TheirDID)
	require.Equal(t, []string{oldAliceDID}, bobRec.PreviousTheirDIDs)

	bobRotated := bob.rotated(t)
	require.Nil(t, bobRotated.OurDID)
	require.Equal(t, &DIDChange{From: oldAliceDID, To: msg.ToDID}, bobRotated.TheirDID)

	_, err = bob.conn.DIDStore().GetReceived(msg.ToDID)
	require.NoError(t, err)

	rec, err := alice.rotate.ProcessRotateAck(&service.MessageContext{Message: wire(t, ack.Message), Connection: aliceRec})
	require.NoError(t, err)
	require.Equal(t, msg.ToDID, rec.DID)
	require.Equal(t, []string{oldAliceDID}, rec.PreviousDIDs)
	require.Equal(t, "mediator-1", rec.MediatorID)
	_, pending = rec.GetMetadata(MetadataKey)
	require.False(t, pending)

	aliceRotated := alice.rotated(t)
	require.Equal(t, &DIDChange{From: oldAliceDID, To: msg.ToDID}, aliceRotated.OurDID)
	require.Nil(t, aliceRotated.TheirDID)

	found, err := bob.conn.FindByDIDs(bobRec.DID, msg.ToDID)
	require.NoError(t, err)
	require.Equal(t, bobRec.ConnectionID, found.ConnectionID)
}

func TestService_CreateRotate(t *testing.T) {
	t.Run("to one of our DIDs", func(t *testing.T) {
		alice, bob := newAgent(t, "alice"), newAgent(t, "bob")
		aliceRec, _ := connect(t, alice, bob)
		toDID := alice.peerDID(t, peer.NumAlgo4)

		out, err := alice.rotate.CreateRotate(aliceRec, RotateOptions{ToDID: toDID})
		require.NoError(t, err)

		var msg Rotate
		require.NoError(t, out.Message.Decode(&msg))
		require.Equal(t, toDID, msg.ToDID)
	})

	t.Run("unknown DID", func(t *testing.T) {
		alice, bob := newAgent(t, "alice"), newAgent(t, "bob")
		aliceRec, _ := connect(t, alice, bob)

		_, err := alice.rotate.CreateRotate(aliceRec, RotateOptions{ToDID: "did:peer:2.unknown"})
		require.Error(t, err)
		require.Empty(t, aliceRec.Metadata)
	})

	t.Run("no DID and no routing", func(t *testing.T) {
		alice, bob := newAgent(t, "alice"), newAgent(t, "bob")
		aliceRec, _ := connect(t, alice, bob)

		_, err := alice.rotate.CreateRotate(aliceRec, RotateOptions{})
		require.ErrorIs(t, err, connection.ErrMissingRouting)
	})

	t.Run("connection not ready", func(t *testing.T) {
		alice, bob := newAgent(t, "alice"), newAgent(t, "bob")
		aliceRec, _ := connect(t, alice, bob)
		aliceRec.State = connectionstore.StateRequestSent

		_, err := alice.rotate.CreateRotate(aliceRec, RotateOptions{Routing: alice.routing(t)})

		var stateErr *connectionstore.StateError
		require.ErrorAs(t, err, &stateErr)
	})

	t.Run("rotation already pending", func(t *testing.T) {
		alice, bob := newAgent(t, "alice"), newAgent(t, "bob")
		aliceRec, _ := connect(t, alice, bob)

		_, err := alice.rotate.CreateRotate(aliceRec, RotateOptions{Routing: alice.routing(t)})
		require.NoError(t, err)

		_, err = alice.rotate.CreateRotate(aliceRec, RotateOptions{Routing: alice.routing(t)})
		require.ErrorIs(t, err, ErrRotationPending)
	})

	t.Run("persist failure leaves nothing pending", func(t *testing.T) {
		alice, bob := newAgent(t, "alice"), newAgent(t, "bob")
		aliceRec, _ := connect(t, alice, bob)
		aliceRec.Version = 42

		_, err := alice.rotate.CreateRotate(aliceRec, RotateOptions{Routing: alice.routing(t)})
		require.ErrorIs(t, err, connectionstore.ErrVersionConflict)

		_, pending := aliceRec.GetMetadata(MetadataKey)
		require.False(t, pending)
	})
}

func TestService_ProcessRotate(t *testing.T) {
	rotateTo := func(t *testing.T, toDID string) service.DIDCommMsgMap {
		t.Helper()

		msg, err := service.NewDIDCommMsgMap(&Rotate{Type: RotateMsgType, ID: uuid.New().String(), ToDID: toDID})
		require.NoError(t, err)

		return wire(t, msg)
	}

	rejected := []struct {
		name  string
		toDID func(t *testing.T, alice *agent) string
		code  string
	}{
		{
			name:  "did:peer:1 needs its document",
			toDID: func(t *testing.T, alice *agent) string { return alice.peerDID(t, peer.NumAlgo1) },
			code:  ProblemCodeMethodUnsupported,
		},
		{
			name:  "unresolvable DID",
			toDID: func(*testing.T, *agent) string { return "did:example:123" },
			code:  ProblemCodeUnresolvable,
		},
		{
			name:  "document without DIDComm service",
			toDID: func(t *testing.T, alice *agent) string { return "did:key:" + alice.routing(t).RecipientKey },
			code:  ProblemCodeDocUnsupported,
		},
	}

	for _, tc := range rejected {
		t.Run(tc.name, func(t *testing.T) {
			alice, bob := newAgent(t, "alice"), newAgent(t, "bob")
			_, bobRec := connect(t, alice, bob)
			theirDID := bobRec.TheirDID
			msg := rotateTo(t, tc.toDID(t, alice))

			out, err := bob.rotate.ProcessRotate(&service.MessageContext{Message: msg, Connection: bobRec})
			require.NoError(t, err)
			require.Equal(t, ProblemReportMsgType, out.Message.Type())
			require.Equal(t, theirDID, out.Connection.TheirDID)
			require.Equal(t, msg.ID(), out.Message.ParentThreadID())

			var report model.ProblemReport
			require.NoError(t, out.Message.Decode(&report))
			require.Equal(t, tc.code, report.Description.Code)

			require.Equal(t, theirDID, bobRec.TheirDID)
			require.Empty(t, bobRec.PreviousTheirDIDs)
			bob.requireNotRotated(t)
		})
	}

	t.Run("persist failure keeps their DID", func(t *testing.T) {
		alice, bob := newAgent(t, "alice"), newAgent(t, "bob")
		_, bobRec := connect(t, alice, bob)
		theirDID := bobRec.TheirDID
		bobRec.Version = 42

		_, err := bob.rotate.ProcessRotate(&service.MessageContext{
			Message:    rotateTo(t, alice.peerDID(t, peer.NumAlgo2)),
			Connection: bobRec,
		})
		require.ErrorIs(t, err, connectionstore.ErrVersionConflict)
		require.Equal(t, theirDID, bobRec.TheirDID)
		require.Empty(t, bobRec.PreviousTheirDIDs)
		bob.requireNotRotated(t)
	})

	t.Run("no connection", func(t *testing.T) {
		bob := newAgent(t, "bob")

		_, err := bob.rotate.ProcessRotate(&service.MessageContext{Message: rotateTo(t, "did:example:123")})
		require.ErrorIs(t, err, service.ErrNoConnection)
	})
}

func TestService_ProcessRotateAck(t *testing.T) {
	ackOn := func(t *testing.T, thid string) service.DIDCommMsgMap {
		t.Helper()

		msg, err := service.NewDIDCommMsgMap(&Ack{
			Type:   AckMsgType,
			ID:     uuid.New().String(),
			Status: ackStatusOK,
			Thread: &decorator.Thread{ID: thid},
		})
		require.NoError(t, err)

		return wire(t, msg)
	}

	t.Run("other thread", func(t *testing.T) {
		alice, bob := newAgent(t, "alice"), newAgent(t, "bob")
		aliceRec, _ := connect(t, alice, bob)
		ourDID := aliceRec.DID

		_, err := alice.rotate.CreateRotate(aliceRec, RotateOptions{Routing: alice.routing(t)})
		require.NoError(t, err)

		_, err = alice.rotate.ProcessRotateAck(&service.MessageContext{
			Message:    ackOn(t, uuid.New().String()),
			Connection: aliceRec,
		})
		require.ErrorIs(t, err, ErrThreadMismatch)
		require.Equal(t, ourDID, aliceRec.DID)
		alice.requireNotRotated(t)
	})

	t.Run("nothing pending", func(t *testing.T) {
		alice, bob := newAgent(t, "alice"), newAgent(t, "bob")
		aliceRec, _ := connect(t, alice, bob)

		_, err := alice.rotate.ProcessRotateAck(&service.MessageContext{
			Message:    ackOn(t, uuid.New().String()),
			Connection: aliceRec,
		})
		require.ErrorIs(t, err, ErrNoPendingRotation)
	})

	t.Run("persist failure keeps our DID", func(t *testing.T) {
		alice, bob := newAgent(t, "alice"), newAgent(t, "bob")
		aliceRec, _ := connect(t, alice, bob)
		ourDID := aliceRec.DID

		rotate, err := alice.rotate.CreateRotate(aliceRec, RotateOptions{Routing: alice.routing(t)})
		require.NoError(t, err)

		aliceRec.Version = 42

		_, err = alice.rotate.ProcessRotateAck(&service.MessageContext{
			Message:    ackOn(t, rotate.Message.ID()),
			Connection: aliceRec,
		})
		require.ErrorIs(t, err, connectionstore.ErrVersionConflict)
		require.Equal(t, ourDID, aliceRec.DID)
		require.Empty(t, aliceRec.PreviousDIDs)

		_, pending := aliceRec.GetMetadata(MetadataKey)
		require.True(t, pending)
		alice.requireNotRotated(t)
	})
}

func TestService_ProcessProblemReport(t *testing.T) {
	alice, bob := newAgent(t, "alice"), newAgent(t, "bob")
	aliceRec, bobRec := connect(t, alice, bob)
	ourDID := aliceRec.DID

	rotate, err := alice.rotate.CreateRotate(aliceRec, RotateOptions{ToDID: alice.peerDID(t, peer.NumAlgo1)})
	require.NoError(t, err)

	report, err := bob.rotate.ProcessRotate(&service.MessageContext{Message: wire(t, rotate.Message), Connection: bobRec})
	require.NoError(t, err)
	require.Equal(t, ProblemReportMsgType, report.Message.Type())

	rec, err := alice.rotate.ProcessProblemReport(&service.MessageContext{
		Message:    wire(t, report.Message),
		Connection: aliceRec,
	})
	require.NoError(t, err)
	require.Equal(t, ourDID, rec.DID)

	_, pending := rec.GetMetadata(MetadataKey)
	require.False(t, pending)

	stored, err := alice.conn.GetByID(aliceRec.ConnectionID)
	require.NoError(t, err)
	_, pending = stored.GetMetadata(MetadataKey)
	require.False(t, pending)

	// a new rotation can be proposed
	_, err = alice.rotate.CreateRotate(aliceRec, RotateOptions{Routing: alice.routing(t)})
	require.NoError(t, err)
}

func TestService_Hangup(t *testing.T) {
	t.Run("received", func(t *testing.T) {
		bob := newAgent(t, "bob")

		rec, err := bob.conn.CreateConnection(&connection.CreateParams{
			Role:     connectionstore.RoleResponder,
			State:    connectionstore.StateCompleted,
			DID:      bob.peerDID(t, peer.NumAlgo2),
			TheirDID: "did:x:abc",
		})
		require.NoError(t, err)

		msg, err := service.NewDIDCommMsgMap(&Hangup{Type: HangupMsgType, ID: uuid.New().String()})
		require.NoError(t, err)

		rec, err = bob.rotate.ProcessHangup(&service.MessageContext{Message: wire(t, msg), Connection: rec})
		require.NoError(t, err)
		require.Empty(t, rec.TheirDID)
		require.Equal(t, []string{"did:x:abc"}, rec.PreviousTheirDIDs)

		stored, err := bob.conn.GetByID(rec.ConnectionID)
		require.NoError(t, err)
		require.Empty(t, stored.TheirDID)
		require.Equal(t, []string{"did:x:abc"}, stored.PreviousTheirDIDs)

		require.Equal(t, &DIDChange{From: "did:x:abc"}, bob.rotated(t).TheirDID)
	})

	t.Run("sent", func(t *testing.T) {
		alice, bob := newAgent(t, "alice"), newAgent(t, "bob")
		aliceRec, _ := connect(t, alice, bob)
		ourDID := aliceRec.DID

		out, err := alice.rotate.CreateHangup(aliceRec)
		require.NoError(t, err)
		require.Equal(t, HangupMsgType, out.Message.Type())
		require.Equal(t, ourDID, out.Connection.DID)

		require.Empty(t, aliceRec.DID)
		require.Equal(t, []string{ourDID}, aliceRec.PreviousDIDs)
	})
}
