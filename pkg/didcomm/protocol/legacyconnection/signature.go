/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package legacyconnection

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcutil/base58"

	"github.com/hyperledger/aries-connections-go/pkg/crypto"
	"github.com/hyperledger/aries-connections-go/pkg/doc/util/fingerprint"
)

const (
	signatureType   = "https://didcomm.org/signature/1.0/ed25519Sha512_single"
	timestampLength = 8
)

// signConnection signs the connection attribute the way RFC 0160 responses carry it: the signed data is the
// big endian unix time followed by the connection JSON.
func signConnection(conn *Connection, signer string, kh interface{}, c crypto.Crypto) (*ConnectionSignature, error) {
	connBytes, err := json.Marshal(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal connection : %w", err)
	}

	verKey, err := fingerprint.ToVerKey(signer)
	if err != nil {
		return nil, fmt.Errorf("signer key : %w", err)
	}

	timestampBuf := make([]byte, timestampLength)
	binary.BigEndian.PutUint64(timestampBuf, uint64(time.Now().Unix()))

	sigData := append(timestampBuf, connBytes...)

	signature, err := c.Sign(sigData, kh)
	if err != nil {
		return nil, fmt.Errorf("signing data: %w", err)
	}

	return &ConnectionSignature{
		Type:       signatureType,
		SignedData: base64.URLEncoding.EncodeToString(sigData),
		SignVerKey: verKey,
		Signature:  base64.URLEncoding.EncodeToString(signature),
	}, nil
}

// verifyConnection checks the signature against its signer and returns the signed connection with the signer's
// fingerprint.
func verifyConnection(sig *ConnectionSignature, c crypto.Crypto) (*Connection, string, error) {
	if sig == nil {
		return nil, "", errors.New("missing connection signature")
	}

	sigData, err := decodeBase64URL(sig.SignedData)
	if err != nil {
		return nil, "", fmt.Errorf("decode signature data: %w", err)
	}

	if len(sigData) <= timestampLength {
		return nil, "", errors.New("missing connection attribute bytes")
	}

	signature, err := decodeBase64URL(sig.Signature)
	if err != nil {
		return nil, "", fmt.Errorf("decode signature: %w", err)
	}

	pub := base58.Decode(sig.SignVerKey)
	if len(pub) != ed25519.PublicKeySize {
		return nil, "", fmt.Errorf("invalid signer verkey %q", sig.SignVerKey)
	}

	if err = c.Verify(signature, sigData, ed25519.PublicKey(pub)); err != nil {
		return nil, "", fmt.Errorf("verify signature: %w", err)
	}

	conn := &Connection{}

	if err = json.Unmarshal(sigData[timestampLength:], conn); err != nil {
		return nil, "", fmt.Errorf("JSON unmarshalling of connection: %w", err)
	}

	return conn, fingerprint.Ed25519(pub), nil
}

// decodeBase64URL accepts padded and unpadded base64url.
func decodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
