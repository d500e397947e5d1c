/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package fingerprint

import (
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-varint"
)

const (
	// ED25519PubKeyMultiCodec for Ed25519 public keys.
	// source: https://github.com/multiformats/multicodec/blob/master/table.csv.
	ED25519PubKeyMultiCodec = 0xed
	// X25519PubKeyMultiCodec for Curve25519 public keys.
	X25519PubKeyMultiCodec = 0xec

	didKeyPrefix = "did:key:"
)

// CreateDIDKey creates a did:key ID using the multicodec key fingerprint following the did:key method draft at:
// https://w3c-ccg.github.io/did-method-key/#format.
func CreateDIDKey(pubKey []byte) (string, string) {
	return CreateDIDKeyByCode(ED25519PubKeyMultiCodec, pubKey)
}

// CreateDIDKeyByCode creates a did:key ID using the multicodec key fingerprint for the given key code.
func CreateDIDKeyByCode(code uint64, pubKey []byte) (string, string) {
	methodID := KeyFingerprint(code, pubKey)
	didKey := didKeyPrefix + methodID
	keyID := fmt.Sprintf("%s#%s", didKey, methodID)

	return didKey, keyID
}

// KeyFingerprint generates a multicode fingerprint for pubKeyValue (raw key []byte).
// It is mainly used as the controller ID (methodSpecification ID) of a did key.
func KeyFingerprint(code uint64, pubKeyValue []byte) string {
	prefix := varint.ToUvarint(code)

	buf := make([]byte, 0, len(prefix)+len(pubKeyValue))
	buf = append(buf, prefix...)
	buf = append(buf, pubKeyValue...)

	// base58btc never fails to encode.
	encoded, _ := multibase.Encode(multibase.Base58BTC, buf) //nolint:errcheck

	return encoded
}

// PubKeyFromFingerprint extracts the raw public key and its multicodec code from a did:key fingerprint.
func PubKeyFromFingerprint(fingerprint string) ([]byte, uint64, error) {
	encoding, mc, err := multibase.Decode(fingerprint)
	if err != nil {
		return nil, 0, fmt.Errorf("pubKeyFromFingerprint: decode multibase: %w", err)
	}

	if encoding != multibase.Base58BTC {
		return nil, 0, fmt.Errorf("pubKeyFromFingerprint: unsupported multibase encoding %q", rune(encoding))
	}

	code, n, err := varint.FromUvarint(mc)
	if err != nil {
		return nil, 0, fmt.Errorf("pubKeyFromFingerprint: read multicodec: %w", err)
	}

	switch code {
	case ED25519PubKeyMultiCodec, X25519PubKeyMultiCodec:
		if len(mc[n:]) != ed25519.PublicKeySize {
			return nil, 0, fmt.Errorf("pubKeyFromFingerprint: invalid key size %d", len(mc[n:]))
		}
	default:
		return nil, 0, fmt.Errorf("pubKeyFromFingerprint: not supported public key (multicodec code: %#x)", code)
	}

	return mc[n:], code, nil
}

// PubKeyFromDIDKey parses the did:key DID and returns the key's raw value.
// Note: for NIST P ECDSA keys, the raw value does not have the compression point.
func PubKeyFromDIDKey(didKey string) ([]byte, error) {
	methodID, err := MethodIDFromDIDKey(didKey)
	if err != nil {
		return nil, fmt.Errorf("pubKeyFromDIDKey: %w", err)
	}

	pubKey, code, err := PubKeyFromFingerprint(methodID)
	if err != nil {
		return nil, err
	}

	if code != ED25519PubKeyMultiCodec {
		return nil, fmt.Errorf("pubKeyFromDIDKey: unsupported key multicodec code [0x%x]", code)
	}

	return pubKey, nil
}

// MethodIDFromDIDKey parses the did:key DID and returns its method specific ID.
func MethodIDFromDIDKey(didKey string) (string, error) {
	if !strings.HasPrefix(didKey, didKeyPrefix) {
		return "", fmt.Errorf("not a did:key: %s", didKey)
	}

	methodID := strings.TrimPrefix(didKey, didKeyPrefix)

	// drop the fragment, if any
	if i := strings.Index(methodID, "#"); i >= 0 {
		methodID = methodID[:i]
	}

	if methodID == "" {
		return "", fmt.Errorf("missing method ID in did:key: %s", didKey)
	}

	return methodID, nil
}

// FromVerKey returns the Ed25519 fingerprint of a base58 encoded verkey.
func FromVerKey(verKey string) (string, error) {
	pubKey := base58.Decode(verKey)
	if len(pubKey) != ed25519.PublicKeySize {
		return "", fmt.Errorf("invalid verkey %q", verKey)
	}

	return KeyFingerprint(ED25519PubKeyMultiCodec, pubKey), nil
}

// ToVerKey returns the base58 verkey for an Ed25519 fingerprint.
func ToVerKey(fingerprint string) (string, error) {
	pubKey, code, err := PubKeyFromFingerprint(fingerprint)
	if err != nil {
		return "", err
	}

	if code != ED25519PubKeyMultiCodec {
		return "", fmt.Errorf("not an Ed25519 key fingerprint: %s", fingerprint)
	}

	return base58.Encode(pubKey), nil
}

// FromKeyReference returns the fingerprint for a recipient or routing key reference.
// References may be did:key values (with or without fragment), raw fingerprints or base58 verkeys.
func FromKeyReference(ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, didKeyPrefix):
		return MethodIDFromDIDKey(ref)
	case strings.HasPrefix(ref, "z"):
		if _, _, err := PubKeyFromFingerprint(ref); err == nil {
			return ref, nil
		}

		return FromVerKey(ref)
	default:
		return FromVerKey(ref)
	}
}

// Ed25519 returns the fingerprint for a raw Ed25519 public key.
func Ed25519(pubKey []byte) string {
	return KeyFingerprint(ED25519PubKeyMultiCodec, pubKey)
}
