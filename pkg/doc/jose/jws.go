/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jose

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-jose/go-jose/v3"

	"github.com/hyperledger/aries-connections-go/pkg/crypto"
	"github.com/hyperledger/aries-connections-go/pkg/doc/util/fingerprint"
)

// IANA registered JOSE headers (https://tools.ietf.org/html/rfc7515#section-4.1) used by signed attachments.
const (
	// HeaderAlgorithm identifies the cryptographic algorithm used to secure the JWS.
	HeaderAlgorithm = "alg"
	// HeaderJSONWebKey is the public key that corresponds to the key used to digitally sign the JWS.
	HeaderJSONWebKey = "jwk"
	// HeaderKeyID is a hint indicating which key was used to secure the JWS.
	HeaderKeyID = "kid"
)

const compactParts = 3

// ErrNoSignerKey is returned when a JWS carries neither a did:key kid nor an embedded jwk.
var ErrNoSignerKey = errors.New("jws: no signer key in headers")

// JWS is a flattened JSON serialized signature without its payload, as carried by DIDComm attachments.
type JWS struct {
	Header    map[string]interface{} `json:"header,omitempty"`
	Protected string                 `json:"protected,omitempty"`
	Signature string                 `json:"signature,omitempty"`
}

// KeyID returns the unprotected "kid" header.
func (j *JWS) KeyID() string {
	kid, _ := j.Header[HeaderKeyID].(string) //nolint:errcheck

	return kid
}

// opaqueSigner signs with a KMS held key so the private key never leaves crypto.Crypto.
type opaqueSigner struct {
	pub ed25519.PublicKey
	kh  interface{}
	c   crypto.Crypto
}

func (s *opaqueSigner) Public() *jose.JSONWebKey {
	return &jose.JSONWebKey{Key: s.pub, Algorithm: string(jose.EdDSA)}
}

func (s *opaqueSigner) Algs() []jose.SignatureAlgorithm {
	return []jose.SignatureAlgorithm{jose.EdDSA}
}

func (s *opaqueSigner) SignPayload(payload []byte, alg jose.SignatureAlgorithm) ([]byte, error) {
	if alg != jose.EdDSA {
		return nil, fmt.Errorf("jws: unsupported algorithm %s", alg)
	}

	return s.c.Sign(payload, s.kh)
}

// Sign creates an EdDSA JWS over payload. The protected header embeds the signer's jwk and the unprotected
// header names the signer as a did:key.
func Sign(payload []byte, pub ed25519.PublicKey, kh interface{}, c crypto.Crypto) (*JWS, error) {
	signer, err := jose.NewSigner(jose.SigningKey{
		Algorithm: jose.EdDSA,
		Key:       &opaqueSigner{pub: pub, kh: kh, c: c},
	}, &jose.SignerOptions{EmbedJWK: true})
	if err != nil {
		return nil, fmt.Errorf("jws: create signer: %w", err)
	}

	obj, err := signer.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("jws: sign: %w", err)
	}

	compact, err := obj.CompactSerialize()
	if err != nil {
		return nil, fmt.Errorf("jws: serialize: %w", err)
	}

	parts := strings.Split(compact, ".")
	if len(parts) != compactParts {
		return nil, errors.New("jws: invalid compact serialization")
	}

	didKey, _ := fingerprint.CreateDIDKey(pub)

	return &JWS{
		Header:    map[string]interface{}{HeaderKeyID: didKey},
		Protected: parts[0],
		Signature: parts[2],
	}, nil
}

// Verify checks the JWS over payload and returns the public key of the signer. The key is taken from the
// did:key "kid" header or, without one, from the embedded jwk.
func Verify(j *JWS, payload []byte) (ed25519.PublicKey, error) {
	if j == nil || j.Protected == "" || j.Signature == "" {
		return nil, errors.New("jws: missing protected header or signature")
	}

	full, err := json.Marshal(map[string]interface{}{
		"payload":   base64.RawURLEncoding.EncodeToString(payload),
		"protected": j.Protected,
		"header":    j.Header,
		"signature": j.Signature,
	})
	if err != nil {
		return nil, fmt.Errorf("jws: marshal: %w", err)
	}

	obj, err := jose.ParseSigned(string(full))
	if err != nil {
		return nil, fmt.Errorf("jws: parse: %w", err)
	}

	if len(obj.Signatures) != 1 {
		return nil, errors.New("jws: expected exactly one signature")
	}

	pub, err := signerKey(&obj.Signatures[0].Header)
	if err != nil {
		return nil, err
	}

	_, err = obj.Verify(pub)
	if err != nil {
		return nil, fmt.Errorf("jws: verify: %w", err)
	}

	return pub, nil
}

func signerKey(h *jose.Header) (ed25519.PublicKey, error) {
	if strings.HasPrefix(h.KeyID, "did:key:") {
		pub, err := fingerprint.PubKeyFromDIDKey(h.KeyID)
		if err != nil {
			return nil, fmt.Errorf("jws: kid: %w", err)
		}

		return pub, nil
	}

	if h.JSONWebKey != nil {
		pub, ok := h.JSONWebKey.Key.(ed25519.PublicKey)
		if !ok {
			return nil, fmt.Errorf("jws: unsupported jwk key %T", h.JSONWebKey.Key)
		}

		return pub, nil
	}

	return nil, ErrNoSignerKey
}
