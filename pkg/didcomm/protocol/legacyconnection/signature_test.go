/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package legacyconnection

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-connections-go/pkg/doc/did"
	"github.com/hyperledger/aries-connections-go/pkg/doc/util/fingerprint"
)

func TestConnectionSignature(t *testing.T) {
	a := newAgent(t, "alice")
	r := a.routing(t)

	pub, _, err := fingerprint.PubKeyFromFingerprint(r.RecipientKey)
	require.NoError(t, err)

	doc, err := did.BuildLegacyDoc(pub, []did.LegacyService{{ServiceEndpoint: "https://alice.example.com"}})
	require.NoError(t, err)

	conn := &Connection{DID: doc.ID, DIDDoc: doc}

	t.Run("sign and verify", func(t *testing.T) {
		sig, err := signConnection(conn, r.RecipientKey, r.RecipientKeyHandle, a.p.Crypto())
		require.NoError(t, err)
		require.Equal(t, signatureType, sig.Type)

		verKey, err := fingerprint.ToVerKey(r.RecipientKey)
		require.NoError(t, err)
		require.Equal(t, verKey, sig.SignVerKey)

		got, signer, err := verifyConnection(sig, a.p.Crypto())
		require.NoError(t, err)
		require.Equal(t, r.RecipientKey, signer)
		require.Equal(t, doc.ID, got.DID)
		require.Equal(t, doc.ID, got.DIDDoc.ID)
		require.True(t, got.DIDDoc.HasKeyFingerprint(r.RecipientKey))
	})

	t.Run("unpadded encoding", func(t *testing.T) {
		sig, err := signConnection(conn, r.RecipientKey, r.RecipientKeyHandle, a.p.Crypto())
		require.NoError(t, err)

		raw, err := base64.URLEncoding.DecodeString(sig.SignedData)
		require.NoError(t, err)

		sig.SignedData = base64.RawURLEncoding.EncodeToString(raw)

		_, _, err = verifyConnection(sig, a.p.Crypto())
		require.NoError(t, err)
	})

	t.Run("other signer", func(t *testing.T) {
		other := a.routing(t)

		sig, err := signConnection(conn, r.RecipientKey, r.RecipientKeyHandle, a.p.Crypto())
		require.NoError(t, err)

		sig.SignVerKey, err = fingerprint.ToVerKey(other.RecipientKey)
		require.NoError(t, err)

		_, _, err = verifyConnection(sig, a.p.Crypto())
		require.ErrorContains(t, err, "verify signature")
	})

	t.Run("modified data", func(t *testing.T) {
		sig, err := signConnection(conn, r.RecipientKey, r.RecipientKeyHandle, a.p.Crypto())
		require.NoError(t, err)

		raw, err := base64.URLEncoding.DecodeString(sig.SignedData)
		require.NoError(t, err)

		raw[0] ^= 0xff
		sig.SignedData = base64.URLEncoding.EncodeToString(raw)

		_, _, err = verifyConnection(sig, a.p.Crypto())
		require.Error(t, err)
	})

	t.Run("malformed", func(t *testing.T) {
		_, _, err := verifyConnection(nil, a.p.Crypto())
		require.Error(t, err)

		_, _, err = verifyConnection(&ConnectionSignature{SignedData: "!!"}, a.p.Crypto())
		require.ErrorContains(t, err, "decode signature data")

		_, _, err = verifyConnection(&ConnectionSignature{
			SignedData: base64.URLEncoding.EncodeToString([]byte("1234")),
		}, a.p.Crypto())
		require.ErrorContains(t, err, "missing connection attribute")

		_, _, err = verifyConnection(&ConnectionSignature{
			SignedData: base64.URLEncoding.EncodeToString([]byte("0123456789")),
			Signature:  "AAAA",
			SignVerKey: "short",
		}, a.p.Crypto())
		require.ErrorContains(t, err, "invalid signer verkey")
	})

	t.Run("unknown signer key", func(t *testing.T) {
		_, err := signConnection(conn, "not-a-key", r.RecipientKeyHandle, a.p.Crypto())
		require.Error(t, err)
	})
}
