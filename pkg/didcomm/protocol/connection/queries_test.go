/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	connectionstore "github.com/hyperledger/aries-connections-go/pkg/store/connection"
	didstore "github.com/hyperledger/aries-connections-go/pkg/store/did"
	"github.com/hyperledger/aries-connections-go/pkg/vdr/peer"
)

type pairwise struct {
	ourRouting, theirRouting *Routing
	ours, theirs             *didstore.Record
}

func newPairwise(t *testing.T, s *Service) *pairwise {
	t.Helper()

	pw := &pairwise{}

	var err error

	pw.ourRouting, err = s.CreateRouting()
	require.NoError(t, err)

	pw.ours, err = s.CreatePeerDID(pw.ourRouting, peer.NumAlgo2)
	require.NoError(t, err)

	pw.theirRouting, err = s.CreateRouting()
	require.NoError(t, err)

	theirDoc, err := BuildPeerDoc(pw.theirRouting)
	require.NoError(t, err)

	theirDoc.ID, err = peer.NumAlgo2DID(theirDoc)
	require.NoError(t, err)

	pw.theirs, err = s.StoreReceivedDID(theirDoc)
	require.NoError(t, err)

	return pw
}

func (pw *pairwise) connect(t *testing.T, s *Service, state connectionstore.State) *connectionstore.Record {
	t.Helper()

	rec, err := s.CreateConnection(&CreateParams{
		Protocol: connectionstore.ProtocolDIDExchange,
		Role:     connectionstore.RoleRequester,
		State:    state,
		DID:      pw.ours.DID,
		TheirDID: pw.theirs.DID,
		ThreadID: uuid.New().String(),
	})
	require.NoError(t, err)

	return rec
}

func TestService_FindByDIDs(t *testing.T) {
	s, _ := newService(t)
	pw := newPairwise(t, s)
	rec := pw.connect(t, s, connectionstore.StateCompleted)

	got, err := s.FindByDIDs(pw.ours.DID, pw.theirs.DID)
	require.NoError(t, err)
	require.Equal(t, rec.ConnectionID, got.ConnectionID)

	got, err = s.FindByDIDs(pw.ours.DID, "did:peer:unknown")
	require.NoError(t, err)
	require.Nil(t, got)

	t.Run("matches a DID the other party rotated away from", func(t *testing.T) {
		previous := "did:peer:1zQmPrevious"

		rec.PreviousTheirDIDs = append(rec.PreviousTheirDIDs, previous)
		require.NoError(t, s.Update(rec))

		got, err := s.FindByDIDs(pw.ours.DID, previous)
		require.NoError(t, err)
		require.Equal(t, rec.ConnectionID, got.ConnectionID)

		require.NoError(t, s.RemovePreviousDIDs(rec))
		require.Empty(t, rec.PreviousTheirDIDs)

		got, err = s.FindByDIDs(pw.ours.DID, previous)
		require.NoError(t, err)
		require.Nil(t, got)
	})
}

func TestService_FindByKeys(t *testing.T) {
	s, _ := newService(t)

	t.Run("ready connection", func(t *testing.T) {
		pw := newPairwise(t, s)
		rec := pw.connect(t, s, connectionstore.StateCompleted)

		got, err := s.FindByKeys(pw.theirRouting.RecipientKey, pw.ourRouting.RecipientKey)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, rec.ConnectionID, got.ConnectionID)
	})

	t.Run("connection not ready", func(t *testing.T) {
		for _, state := range []connectionstore.State{
			connectionstore.StateRequestSent, connectionstore.StateResponseReceived,
		} {
			pw := newPairwise(t, s)
			pw.connect(t, s, state)

			got, err := s.FindByKeys(pw.theirRouting.RecipientKey, pw.ourRouting.RecipientKey)
			require.NoError(t, err)
			require.Nil(t, got, state)
		}
	})

	t.Run("unknown keys", func(t *testing.T) {
		pw := newPairwise(t, s)
		pw.connect(t, s, connectionstore.StateCompleted)

		other, err := s.CreateRouting()
		require.NoError(t, err)

		got, err := s.FindByKeys(other.RecipientKey, pw.ourRouting.RecipientKey)
		require.NoError(t, err)
		require.Nil(t, got)

		got, err = s.FindByKeys(pw.theirRouting.RecipientKey, other.RecipientKey)
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("no connection between the DIDs", func(t *testing.T) {
		pw := newPairwise(t, s)

		got, err := s.FindByKeys(pw.theirRouting.RecipientKey, pw.ourRouting.RecipientKey)
		require.NoError(t, err)
		require.Nil(t, got)
	})
}

func TestService_Queries(t *testing.T) {
	s, _ := newService(t)

	pw := newPairwise(t, s)
	rec := pw.connect(t, s, connectionstore.StateCompleted)

	got, err := s.GetByThreadID(rec.ThreadID)
	require.NoError(t, err)
	require.Equal(t, rec.ConnectionID, got.ConnectionID)

	got, err = s.GetByRoleAndThreadID(connectionstore.RoleRequester, rec.ThreadID)
	require.NoError(t, err)
	require.Equal(t, rec.ConnectionID, got.ConnectionID)

	_, err = s.GetByRoleAndThreadID(connectionstore.RoleResponder, rec.ThreadID)
	require.ErrorIs(t, err, connectionstore.ErrNotFound)

	got, err = s.FindByTheirDID(pw.theirs.DID)
	require.NoError(t, err)
	require.Equal(t, rec.ConnectionID, got.ConnectionID)

	got, err = s.FindByOurDID(pw.ours.DID)
	require.NoError(t, err)
	require.Equal(t, rec.ConnectionID, got.ConnectionID)

	fromInvitation, err := s.CreateConnection(&CreateParams{
		Role:          connectionstore.RoleResponder,
		OutOfBandID:   "oob-1",
		InvitationDID: "did:peer:2.Ez6LSinvitation",
	})
	require.NoError(t, err)

	all, err := s.FindAllByOutOfBandID("oob-1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, fromInvitation.ConnectionID, all[0].ConnectionID)

	all, err = s.FindByInvitationDID("did:peer:2.Ez6LSinvitation")
	require.NoError(t, err)
	require.Len(t, all, 1)

	all, err = s.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, s.DeleteByID(fromInvitation.ConnectionID))

	missing, err := s.FindByID(fromInvitation.ConnectionID)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestService_ConnectionTypes(t *testing.T) {
	s, _ := newService(t)

	mediator := createInState(t, s, connectionstore.RoleRequester, connectionstore.StateCompleted)
	both := createInState(t, s, connectionstore.RoleRequester, connectionstore.StateCompleted)

	require.NoError(t, s.AddConnectionType(mediator, "mediator"))
	require.NoError(t, s.AddConnectionType(both, "mediator"))
	require.NoError(t, s.AddConnectionType(both, "issuer"))
	require.NoError(t, s.AddConnectionType(both, "issuer"))
	require.Equal(t, []string{"mediator", "issuer"}, s.GetConnectionTypes(both))

	all, err := s.FindAllByConnectionTypes("mediator")
	require.NoError(t, err)
	require.Len(t, all, 2)

	all, err = s.FindAllByConnectionTypes("mediator", "issuer")
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, both.ConnectionID, all[0].ConnectionID)

	require.NoError(t, s.RemoveConnectionType(both, "mediator"))
	require.NoError(t, s.RemoveConnectionType(both, "unknown"))
	require.Equal(t, []string{"issuer"}, both.ConnectionTypes)

	all, err = s.FindAllByConnectionTypes("mediator")
	require.NoError(t, err)
	require.Len(t, all, 1)

	t.Run("stale record is rolled back", func(t *testing.T) {
		stale := both.Clone()
		require.NoError(t, s.AddConnectionType(both, "holder"))

		require.Error(t, s.AddConnectionType(stale, "verifier"))
		require.Equal(t, []string{"issuer"}, stale.ConnectionTypes)

		require.Error(t, s.RemoveConnectionType(stale, "issuer"))
		require.Equal(t, []string{"issuer"}, stale.ConnectionTypes)
	})
}
