/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vdr

import (
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-connections-go/pkg/doc/did"
	vdrapi "github.com/hyperledger/aries-connections-go/pkg/framework/aries/api/vdr"
	mockvdr "github.com/hyperledger/aries-connections-go/pkg/internal/gomocks/framework/aries/api/vdr"
	"github.com/hyperledger/aries-connections-go/pkg/vdr/key"
	"github.com/hyperledger/aries-connections-go/pkg/vdr/peer"
)

const didKey = "did:key:z6MkpTHR8VNsBxYAAWHut2Geadd9jSwuBV8xRoAnwWsdvktH"

func exampleVDR(t *testing.T) *mockvdr.MockVDR {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	v := mockvdr.NewMockVDR(ctrl)
	v.EXPECT().Accept(gomock.Any()).DoAndReturn(func(method string) bool {
		return method == "example"
	}).AnyTimes()

	return v
}

func readsDoc(id string, _ ...vdrapi.DIDMethodOption) (*did.DocResolution, error) {
	return &did.DocResolution{DIDDocument: &did.Doc{ID: id}}, nil
}

func TestRegistry_Resolve(t *testing.T) {
	t.Run("dispatch by method", func(t *testing.T) {
		peerVDR, err := peer.New(mem.NewProvider())
		require.NoError(t, err)

		r := New(WithVDR(key.New()), WithVDR(peerVDR))

		res, err := r.Resolve(didKey)
		require.NoError(t, err)
		require.Equal(t, didKey, res.DIDDocument.ID)

		_, err = r.Resolve("did:peer:1zQmMissing")
		require.ErrorIs(t, err, vdrapi.ErrNotFound)

		_, err = r.Resolve("did:web:example.com")
		require.ErrorIs(t, err, vdrapi.ErrMethodNotSupported)

		_, err = r.Resolve("invalid")
		require.Error(t, err)

		require.NoError(t, r.Close())
	})

	t.Run("resolutions are cached", func(t *testing.T) {
		v := exampleVDR(t)
		v.EXPECT().Read("did:example:1").DoAndReturn(readsDoc).Times(1)

		r := New(WithVDR(v))

		for i := 0; i < 3; i++ {
			_, err := r.Resolve("did:example:1")
			require.NoError(t, err)
		}
	})

	t.Run("cache disabled", func(t *testing.T) {
		v := exampleVDR(t)
		v.EXPECT().Read("did:example:1").DoAndReturn(readsDoc).Times(2)

		r := New(WithVDR(v), WithCacheSize(0))

		for i := 0; i < 2; i++ {
			_, err := r.Resolve("did:example:1")
			require.NoError(t, err)
		}
	})

	t.Run("create invalidates the cached resolution", func(t *testing.T) {
		v := exampleVDR(t)
		v.EXPECT().Read("did:example:1").DoAndReturn(readsDoc).Times(2)
		v.EXPECT().Create(gomock.Any()).Return(&did.DocResolution{
			DIDDocument:      &did.Doc{ID: "did:example:2"},
			DocumentMetadata: &did.DocumentMetadata{EquivalentID: []string{"did:example:1"}},
		}, nil)

		r := New(WithVDR(v))

		_, err := r.Resolve("did:example:1")
		require.NoError(t, err)

		_, err = r.Create("example", &did.Doc{})
		require.NoError(t, err)

		_, err = r.Resolve("did:example:1")
		require.NoError(t, err)
	})

	t.Run("read failure is wrapped", func(t *testing.T) {
		v := exampleVDR(t)
		v.EXPECT().Read("did:example:1").Return(nil, errors.New("read error"))

		r := New(WithVDR(v))

		_, err := r.Resolve("did:example:1")
		require.Error(t, err)
		require.Contains(t, err.Error(), "did method read failed: read error")
	})
}

func TestRegistry_Create(t *testing.T) {
	v := exampleVDR(t)
	v.EXPECT().Create(gomock.Any()).Return(nil, errors.New("create not supported"))

	r := New(WithVDR(key.New()), WithVDR(v))

	vm := did.NewVerificationMethodFromBytes("#key-1", did.Ed25519VerificationKey2018, "",
		[]byte("abcdefghijklmnopqrstuvwxyz012345"))

	res, err := r.Create("key", &did.Doc{VerificationMethod: []did.VerificationMethod{*vm}})
	require.NoError(t, err)
	require.Contains(t, res.DIDDocument.ID, "did:key:z6Mk")

	_, err = r.Create("example", &did.Doc{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "create did:example")

	_, err = r.Create("unknown", &did.Doc{})
	require.ErrorIs(t, err, vdrapi.ErrMethodNotSupported)
}

func TestRegistry_Close(t *testing.T) {
	v := exampleVDR(t)
	v.EXPECT().Close().Return(errors.New("close error"))

	r := New(WithVDR(v))
	require.Error(t, r.Close())
}

func TestGetDidMethod(t *testing.T) {
	m, err := GetDidMethod(didKey)
	require.NoError(t, err)
	require.Equal(t, "key", m)

	_, err = GetDidMethod("did:key")
	require.Error(t, err)

	_, err = GetDidMethod("doc:key:abc")
	require.Error(t, err)
}
