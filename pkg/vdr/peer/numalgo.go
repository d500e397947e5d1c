/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package peer

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"
	"github.com/multiformats/go-varint"

	"github.com/hyperledger/aries-connections-go/pkg/doc/did"
	"github.com/hyperledger/aries-connections-go/pkg/doc/util/fingerprint"
)

// NumAlgo is the numeric algorithm of a did:peer.
type NumAlgo int

const (
	// NumAlgo0 is an inception key without doc, equivalent to did:key.
	NumAlgo0 NumAlgo = 0
	// NumAlgo1 is a genesis document hashed into the DID.
	NumAlgo1 NumAlgo = 1
	// NumAlgo2 encodes keys and services in the DID itself.
	NumAlgo2 NumAlgo = 2
	// NumAlgo4 has a short form hash and a long form carrying the encoded document.
	NumAlgo4 NumAlgo = 4
)

const (
	didPeerPrefix = "did:peer:"

	purposeVerification = ".V"
	purposeEncryption   = ".E"
	purposeService      = ".S"

	// multicodec of application/json.
	jsonMultiCodec = 0x0200
)

// ErrInvalidPeerDID is returned for malformed did:peer values.
var ErrInvalidPeerDID = errors.New("invalid did:peer")

var serviceAbbreviations = map[string]string{ //nolint:gochecknoglobals
	"type":            "t",
	"serviceEndpoint": "s",
	"routingKeys":     "r",
	"accept":          "a",
}

// GetNumAlgo returns the numeric algorithm of a did:peer.
func GetNumAlgo(didPeer string) (NumAlgo, error) {
	if !strings.HasPrefix(didPeer, didPeerPrefix) || len(didPeer) == len(didPeerPrefix) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPeerDID, didPeer)
	}

	switch didPeer[len(didPeerPrefix)] {
	case '0':
		return NumAlgo0, nil
	case '1':
		return NumAlgo1, nil
	case '2':
		return NumAlgo2, nil
	case '4':
		return NumAlgo4, nil
	}

	return 0, fmt.Errorf("%w: unsupported numalgo in %s", ErrInvalidPeerDID, didPeer)
}

// genesisBytes serializes the document without its id.
func genesisBytes(doc *did.Doc) ([]byte, error) {
	genesis := *doc
	genesis.ID = ""

	return genesis.JSONBytes()
}

func multihashB58(data []byte) (string, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("multihash: %w", err)
	}

	return mh.B58String(), nil
}

// NumAlgo1DID computes the did:peer:1 of a genesis document.
func NumAlgo1DID(doc *did.Doc) (string, error) {
	b, err := genesisBytes(doc)
	if err != nil {
		return "", err
	}

	hash, err := multihashB58(b)
	if err != nil {
		return "", err
	}

	return didPeerPrefix + "1z" + hash, nil
}

// NumAlgo4DIDs computes the short and long form did:peer:4 of a genesis document.
func NumAlgo4DIDs(doc *did.Doc) (string, string, error) {
	b, err := genesisBytes(doc)
	if err != nil {
		return "", "", err
	}

	encoded, err := multibase.Encode(multibase.Base58BTC, append(varint.ToUvarint(jsonMultiCodec), b...))
	if err != nil {
		return "", "", fmt.Errorf("encode did:peer:4 document: %w", err)
	}

	hash, err := multihashB58([]byte(encoded))
	if err != nil {
		return "", "", err
	}

	short := didPeerPrefix + "4z" + hash

	return short, short + ":" + encoded, nil
}

// ShortFormOf returns the short form of a long form did:peer:4 (or the value unchanged).
func ShortFormOf(didPeer string) string {
	if !strings.HasPrefix(didPeer, didPeerPrefix+"4") {
		return didPeer
	}

	if i := strings.LastIndex(didPeer, ":"); i > len(didPeerPrefix) {
		return didPeer[:i]
	}

	return didPeer
}

// NumAlgo2DID encodes the authentication keys, key agreement keys and services of doc in a did:peer:2.
func NumAlgo2DID(doc *did.Doc) (string, error) {
	var sb strings.Builder

	sb.WriteString(didPeerPrefix + "2")

	for i := range doc.KeyAgreement {
		vm := doc.KeyAgreement[i].VerificationMethod
		sb.WriteString(purposeEncryption + fingerprint.KeyFingerprint(fingerprint.X25519PubKeyMultiCodec, vm.Value))
	}

	for i := range doc.Authentication {
		vm := doc.Authentication[i].VerificationMethod
		sb.WriteString(purposeVerification + fingerprint.Ed25519(vm.Value))
	}

	if len(doc.Authentication) == 0 {
		return "", errors.New("did:peer:2 requires at least one authentication key")
	}

	for i := range doc.Service {
		encoded, err := abbreviateService(&doc.Service[i])
		if err != nil {
			return "", err
		}

		sb.WriteString(purposeService + encoded)
	}

	return sb.String(), nil
}

func abbreviateService(s *did.Service) (string, error) {
	raw := map[string]interface{}{
		"type":            s.Type,
		"serviceEndpoint": s.ServiceEndpoint,
	}

	if s.Type == did.DIDCommV2ServiceType {
		raw["type"] = "dm"
	} else {
		raw["priority"] = s.Priority
		raw["recipientKeys"] = s.RecipientKeys
	}

	if len(s.RoutingKeys) > 0 {
		raw["routingKeys"] = s.RoutingKeys
	}

	if len(s.Accept) > 0 {
		raw["accept"] = s.Accept
	}

	abbreviated := make(map[string]interface{}, len(raw))

	for k, v := range raw {
		if short, ok := serviceAbbreviations[k]; ok {
			k = short
		}

		abbreviated[k] = v
	}

	b, err := json.Marshal(abbreviated)
	if err != nil {
		return "", fmt.Errorf("marshal did:peer:2 service: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

func expandService(encoded string) (map[string]interface{}, error) {
	b, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode did:peer:2 service: %w", err)
	}

	var abbreviated map[string]interface{}

	if err = json.Unmarshal(b, &abbreviated); err != nil {
		return nil, fmt.Errorf("unmarshal did:peer:2 service: %w", err)
	}

	expanded := make(map[string]interface{}, len(abbreviated))

	for k, v := range abbreviated {
		for long, short := range serviceAbbreviations {
			if short == k {
				k = long

				break
			}
		}

		expanded[k] = v
	}

	if expanded["type"] == "dm" {
		expanded["type"] = did.DIDCommV2ServiceType
	}

	return expanded, nil
}
