/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package peer

import (
	"errors"
	"strings"
	"testing"

	"github.com/btcsuite/btcutil/base58"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	mockstorage "github.com/hyperledger/aries-framework-go/component/storageutil/mock/storage"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-connections-go/pkg/doc/did"
	vdrapi "github.com/hyperledger/aries-connections-go/pkg/framework/aries/api/vdr"
)

const (
	pubKeyBase58 = "B12NYF8RrR3h41TDCTJojY59usg3mbtbjnFs7Eud1Y6u"
	keyFP        = "z6MkpTHR8VNsBxYAAWHut2Geadd9jSwuBV8xRoAnwWsdvktH"
)

func genesisDoc() *did.Doc {
	vm := did.NewVerificationMethodFromBytes("#key-1", did.Ed25519VerificationKey2018, "", base58.Decode(pubKeyBase58))

	return &did.Doc{
		Context:            []string{did.ContextV1},
		VerificationMethod: []did.VerificationMethod{*vm},
		Authentication:     []did.Verification{*did.NewReferencedVerification(vm, did.Authentication)},
		Service: []did.Service{{
			ID:              "#inline-0",
			Type:            did.DIDCommServiceType,
			RecipientKeys:   []string{"did:key:" + keyFP + "#" + keyFP},
			ServiceEndpoint: "https://agent.example.com",
		}},
	}
}

func newVDR(t *testing.T) *VDR {
	t.Helper()

	v, err := New(mem.NewProvider())
	require.NoError(t, err)

	return v
}

func requireDIDCommService(t *testing.T, doc *did.Doc) {
	t.Helper()

	services, err := doc.DIDCommServices()
	require.NoError(t, err)
	require.Len(t, services, 1)
	require.Equal(t, "https://agent.example.com", services[0].ServiceEndpoint)
	require.Equal(t, []string{keyFP}, services[0].RecipientKeys)
}

func TestNew(t *testing.T) {
	_, err := New(&mockstorage.MockStoreProvider{ErrOpenStoreHandle: errors.New("open store failed")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "open store failed")

	v := newVDR(t)
	require.True(t, v.Accept("peer"))
	require.False(t, v.Accept("key"))
	require.NoError(t, v.Close())
}

func TestNumAlgo1(t *testing.T) {
	v := newVDR(t)

	res, err := v.Create(genesisDoc())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(res.DIDDocument.ID, "did:peer:1zQm"), res.DIDDocument.ID)

	id, err := NumAlgo1DID(genesisDoc())
	require.NoError(t, err)
	require.Equal(t, id, res.DIDDocument.ID)

	resolved, err := v.Read(id)
	require.NoError(t, err)
	require.Equal(t, id, resolved.DIDDocument.ID)
	requireDIDCommService(t, resolved.DIDDocument)

	t.Run("not stored", func(t *testing.T) {
		_, err := newVDR(t).Read(id)
		require.ErrorIs(t, err, vdrapi.ErrNotFound)
	})

	t.Run("store received document", func(t *testing.T) {
		other := newVDR(t)

		_, err := other.Create(resolved.DIDDocument, vdrapi.WithOption(StoreOption, true))
		require.NoError(t, err)

		again, err := other.Read(id)
		require.NoError(t, err)
		require.Equal(t, id, again.DIDDocument.ID)
	})
}

func TestNumAlgo2(t *testing.T) {
	v := newVDR(t)

	res, err := v.Create(genesisDoc(), vdrapi.WithOption(vdrapi.NumAlgoOption, 2))
	require.NoError(t, err)

	id := res.DIDDocument.ID
	require.True(t, strings.HasPrefix(id, "did:peer:2.V"+keyFP+".S"), id)
	requireDIDCommService(t, res.DIDDocument)
	require.Equal(t, []string{keyFP}, res.DIDDocument.AuthenticationFingerprints())

	// self resolving, no storage needed
	resolved, err := newVDR(t).Read(id)
	require.NoError(t, err)
	require.Equal(t, id, resolved.DIDDocument.ID)
	require.Equal(t, "#service", resolved.DIDDocument.Service[0].ID)
	requireDIDCommService(t, resolved.DIDDocument)

	t.Run("invalid elements", func(t *testing.T) {
		_, err := v.Read("did:peer:2.Xabc")
		require.ErrorIs(t, err, ErrInvalidPeerDID)

		_, err = v.Read("did:peer:2.Vz6Mk..S")
		require.ErrorIs(t, err, ErrInvalidPeerDID)

		_, err = v.Read("did:peer:2.V" + keyFP + ".S!!!")
		require.Error(t, err)
	})

	t.Run("requires an authentication key", func(t *testing.T) {
		_, err := NumAlgo2DID(&did.Doc{})
		require.Error(t, err)
	})
}

func TestNumAlgo4(t *testing.T) {
	v := newVDR(t)

	res, err := v.Create(genesisDoc(), vdrapi.WithOption(vdrapi.NumAlgoOption, NumAlgo4))
	require.NoError(t, err)

	long := res.DIDDocument.ID
	short := ShortFormOf(long)
	require.True(t, strings.HasPrefix(short, "did:peer:4zQm"), short)
	require.NotEqual(t, short, long)
	require.Equal(t, []string{short}, res.DocumentMetadata.EquivalentID)
	requireDIDCommService(t, res.DIDDocument)

	s, l, err := NumAlgo4DIDs(genesisDoc())
	require.NoError(t, err)
	require.Equal(t, short, s)
	require.Equal(t, long, l)

	t.Run("long form resolves without storage", func(t *testing.T) {
		resolved, err := newVDR(t).Read(long)
		require.NoError(t, err)
		require.Equal(t, []string{short}, resolved.DIDDocument.AlsoKnownAs)
	})

	t.Run("short form resolves from storage", func(t *testing.T) {
		resolved, err := v.Read(short)
		require.NoError(t, err)
		require.Equal(t, short, resolved.DIDDocument.ID)
		require.Equal(t, []string{long}, resolved.DocumentMetadata.EquivalentID)

		_, err = newVDR(t).Read(short)
		require.ErrorIs(t, err, vdrapi.ErrNotFound)
	})

	t.Run("received long form", func(t *testing.T) {
		other := newVDR(t)

		_, err := other.Create(&did.Doc{ID: long}, vdrapi.WithOption(StoreOption, true))
		require.NoError(t, err)

		_, err = other.Read(short)
		require.NoError(t, err)
	})

	t.Run("hash mismatch", func(t *testing.T) {
		other, _, err := NumAlgo4DIDs(&did.Doc{Context: []string{did.ContextV1}})
		require.NoError(t, err)

		_, err = v.Read(other + long[len(short):])
		require.ErrorIs(t, err, ErrInvalidPeerDID)
	})
}

func TestNumAlgo0(t *testing.T) {
	res, err := newVDR(t).Read("did:peer:0" + keyFP)
	require.NoError(t, err)
	require.Equal(t, []string{keyFP}, res.DIDDocument.AuthenticationFingerprints())

	_, err = newVDR(t).Read("did:peer:0zinvalid")
	require.ErrorIs(t, err, ErrInvalidPeerDID)
}

func TestGetNumAlgo(t *testing.T) {
	for _, d := range []string{"did:peer:", "did:peer:9abc", "did:key:" + keyFP} {
		_, err := GetNumAlgo(d)
		require.ErrorIs(t, err, ErrInvalidPeerDID, d)
	}

	n, err := GetNumAlgo("did:peer:2.V" + keyFP)
	require.NoError(t, err)
	require.Equal(t, NumAlgo2, n)
}

func TestCreateOptions(t *testing.T) {
	v := newVDR(t)

	_, err := v.Create(genesisDoc(), vdrapi.WithOption(vdrapi.NumAlgoOption, 3))
	require.Error(t, err)

	_, err = v.Create(genesisDoc(), vdrapi.WithOption(vdrapi.NumAlgoOption, struct{}{}))
	require.Error(t, err)

	res, err := v.Create(genesisDoc(), vdrapi.WithOption(vdrapi.NumAlgoOption, float64(2)))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(res.DIDDocument.ID, "did:peer:2"))

	_, err = v.Create(&did.Doc{ID: "did:example:1"}, vdrapi.WithOption(StoreOption, true))
	require.Error(t, err)
}
