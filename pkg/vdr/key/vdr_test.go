/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package key

import (
	"testing"

	"github.com/btcsuite/btcutil/base58"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-connections-go/pkg/doc/did"
)

const (
	pubKeyBase58 = "B12NYF8RrR3h41TDCTJojY59usg3mbtbjnFs7Eud1Y6u"
	didKey       = "did:key:z6MkpTHR8VNsBxYAAWHut2Geadd9jSwuBV8xRoAnwWsdvktH"
	keyID        = didKey + "#z6MkpTHR8VNsBxYAAWHut2Geadd9jSwuBV8xRoAnwWsdvktH"
)

func TestAccept(t *testing.T) {
	v := New()
	require.True(t, v.Accept("key"))
	require.False(t, v.Accept("peer"))
	require.NoError(t, v.Close())
}

func TestReadEd25519(t *testing.T) {
	v := New()

	docResolution, err := v.Read(didKey)
	require.NoError(t, err)

	doc := docResolution.DIDDocument
	require.Equal(t, didKey, doc.ID)
	require.Len(t, doc.VerificationMethod, 1)
	require.Equal(t, keyID, doc.VerificationMethod[0].ID)
	require.Equal(t, base58.Decode(pubKeyBase58), doc.VerificationMethod[0].Value)
	require.Len(t, doc.Authentication, 1)
	require.Equal(t, []string{"z6MkpTHR8VNsBxYAAWHut2Geadd9jSwuBV8xRoAnwWsdvktH"}, doc.AuthenticationFingerprints())
}

func TestReadInvalid(t *testing.T) {
	v := New()

	for _, d := range []string{"not-a-did", "did:peer:z6MkpTHR8VNsBxYAAWHut2Geadd9jSwuBV8xRoAnwWsdvktH", "did:key:invalid"} {
		_, err := v.Read(d)
		require.Error(t, err, d)
	}
}

func TestCreate(t *testing.T) {
	v := New()

	vm := did.NewVerificationMethodFromBytes("#key-1", did.Ed25519VerificationKey2018, "", base58.Decode(pubKeyBase58))

	docResolution, err := v.Create(&did.Doc{VerificationMethod: []did.VerificationMethod{*vm}})
	require.NoError(t, err)
	require.Equal(t, didKey, docResolution.DIDDocument.ID)

	_, err = v.Create(&did.Doc{})
	require.Error(t, err)

	_, err = v.Create(&did.Doc{VerificationMethod: []did.VerificationMethod{{Type: did.X25519KeyAgreementKey2019}}})
	require.Error(t, err)
}
