/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package did

import (
	"errors"
	"testing"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	mockstorage "github.com/hyperledger/aries-framework-go/component/storageutil/mock/storage"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/stretchr/testify/require"
)

const (
	fpA = "z6MkpTHR8VNsBxYAAWHut2Geadd9jSwuBV8xRoAnwWsdvktH"
	fpB = "z6MkiTBz1ymuepAQ4HEHYSF1H8quG5GLVVQR3djdX3mDooWp"
)

type storageProvider struct {
	p storage.Provider
}

func (s *storageProvider) StorageProvider() storage.Provider {
	return s.p
}

func newStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(&storageProvider{p: mem.NewProvider()})
	require.NoError(t, err)

	return s
}

func TestNew(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		require.NotNil(t, newStore(t))
	})

	t.Run("open store error", func(t *testing.T) {
		p := mockstorage.NewMockStoreProvider()
		p.ErrOpenStoreHandle = errors.New("open error")

		_, err := New(&storageProvider{p: p})
		require.ErrorContains(t, err, "open error")
	})
}

func TestSave(t *testing.T) {
	t.Run("created and received records", func(t *testing.T) {
		s := newStore(t)

		created := &Record{
			DID:                      "did:peer:1zQmcreated",
			Role:                     RoleCreated,
			Keys:                     []DocumentKey{{RelativeKeyID: "#key-1", KeyHandle: "kh1"}},
			RecipientKeyFingerprints: []string{fpA},
		}
		require.NoError(t, s.Save(created))
		require.NotEmpty(t, created.ID)
		require.False(t, created.CreatedAt.IsZero())

		received := &Record{
			DID:                      "did:peer:1zQmreceived",
			Role:                     RoleReceived,
			RecipientKeyFingerprints: []string{fpB},
			AlternativeDIDs:          []string{"did:peer:4zQmshort"},
		}
		require.NoError(t, s.Save(received))

		rec, err := s.GetCreated("did:peer:1zQmcreated")
		require.NoError(t, err)
		require.Equal(t, created.ID, rec.ID)

		kh, ok := rec.KeyHandle("#key-1")
		require.True(t, ok)
		require.Equal(t, "kh1", kh)

		_, ok = rec.KeyHandle("#key-2")
		require.False(t, ok)

		_, err = s.GetReceived("did:peer:1zQmcreated")
		require.ErrorIs(t, err, ErrNotFound)

		rec, err = s.GetReceived("did:peer:4zQmshort")
		require.NoError(t, err)
		require.Equal(t, received.ID, rec.ID)

		rec, err = s.FindCreatedByRecipientKey(fpA)
		require.NoError(t, err)
		require.Equal(t, "did:peer:1zQmcreated", rec.DID)

		_, err = s.FindCreatedByRecipientKey(fpB)
		require.ErrorIs(t, err, ErrNotFound)

		rec, err = s.FindReceivedByRecipientKey(fpB)
		require.NoError(t, err)
		require.Equal(t, "did:peer:1zQmreceived", rec.DID)

		all, err := s.GetAll("")
		require.NoError(t, err)
		require.Len(t, all, 2)

		all, err = s.GetAll(RoleCreated)
		require.NoError(t, err)
		require.Len(t, all, 1)

		all, err = s.FindAllByRecipientKey(fpA)
		require.NoError(t, err)
		require.Len(t, all, 1)
	})

	t.Run("created key already used by another created did", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Save(&Record{DID: "did:a", Role: RoleCreated, RecipientKeyFingerprints: []string{fpA}}))

		err := s.Save(&Record{DID: "did:b", Role: RoleCreated, RecipientKeyFingerprints: []string{fpA}})
		require.ErrorIs(t, err, ErrKeysInUse)

		require.NoError(t, s.Save(&Record{DID: "did:c", Role: RoleReceived, RecipientKeyFingerprints: []string{fpA}}))
	})

	t.Run("validation", func(t *testing.T) {
		s := newStore(t)

		require.ErrorContains(t, s.Save(&Record{Role: RoleCreated}), "did is mandatory")
		require.ErrorContains(t, s.Save(&Record{DID: "did:a", Role: "other"}), "invalid did record role")
		require.ErrorContains(t, s.Save(&Record{
			DID:  "did:a",
			Role: RoleReceived,
			Keys: []DocumentKey{{RelativeKeyID: "#1", KeyHandle: "kh"}},
		}), "keys can only be provided")
	})

	t.Run("put error", func(t *testing.T) {
		p := mockstorage.NewMockStoreProvider()
		p.Store.ErrPut = errors.New("put error")

		s, err := New(&storageProvider{p: p})
		require.NoError(t, err)

		require.ErrorContains(t, s.Save(&Record{DID: "did:a", Role: RoleReceived}), "put error")
	})
}

func TestUpdateAndDelete(t *testing.T) {
	s := newStore(t)

	rec := &Record{DID: "did:a", Role: RoleReceived, RecipientKeyFingerprints: []string{fpA}}
	require.NoError(t, s.Save(rec))

	rec.AlternativeDIDs = []string{"did:a-alt"}
	require.NoError(t, s.Update(rec))

	got, err := s.GetReceived("did:a-alt")
	require.NoError(t, err)
	require.Equal(t, rec.ID, got.ID)

	require.NoError(t, s.Delete(rec.ID))

	_, err = s.GetByID(rec.ID)
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, s.Update(rec), ErrNotFound)
}

func TestAmbiguous(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.Save(&Record{DID: "did:a", Role: RoleReceived, RecipientKeyFingerprints: []string{fpA}}))
	require.NoError(t, s.Save(&Record{DID: "did:b", Role: RoleReceived, RecipientKeyFingerprints: []string{fpA}}))

	_, err := s.FindReceivedByRecipientKey(fpA)
	require.ErrorIs(t, err, ErrAmbiguous)
}
