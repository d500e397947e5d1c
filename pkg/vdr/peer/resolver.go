/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package peer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-varint"

	"github.com/hyperledger/aries-connections-go/pkg/doc/did"
	"github.com/hyperledger/aries-connections-go/pkg/doc/util/fingerprint"
	vdrapi "github.com/hyperledger/aries-connections-go/pkg/framework/aries/api/vdr"
)

// Read implements didresolver.DidMethod.Read interface (https://w3c-ccg.github.io/did-resolution/#resolving-input)
func (v *VDR) Read(didID string, _ ...vdrapi.DIDMethodOption) (*did.DocResolution, error) {
	numAlgo, err := GetNumAlgo(didID)
	if err != nil {
		return nil, err
	}

	switch numAlgo {
	case NumAlgo0:
		return resolveNumAlgo0(didID)
	case NumAlgo1:
		doc, err := v.get(didID)
		if err != nil {
			return nil, err
		}

		return &did.DocResolution{DIDDocument: doc}, nil
	case NumAlgo2:
		return resolveNumAlgo2(didID)
	default:
		return v.resolveNumAlgo4(didID)
	}
}

func resolveNumAlgo0(didID string) (*did.DocResolution, error) {
	fp := strings.TrimPrefix(didID, didPeerPrefix+"0")

	pub, code, err := fingerprint.PubKeyFromFingerprint(fp)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPeerDID, err)
	}

	if code != fingerprint.ED25519PubKeyMultiCodec {
		return nil, fmt.Errorf("%w: did:peer:0 must hold an Ed25519 key", ErrInvalidPeerDID)
	}

	vm := did.NewVerificationMethodFromBytes(didID+"#"+fp, did.Ed25519VerificationKey2018, didID, pub)

	return &did.DocResolution{DIDDocument: &did.Doc{
		Context:            []string{did.ContextV1},
		ID:                 didID,
		VerificationMethod: []did.VerificationMethod{*vm},
		Authentication:     []did.Verification{*did.NewReferencedVerification(vm, did.Authentication)},
	}}, nil
}

func resolveNumAlgo2(didID string) (*did.DocResolution, error) {
	elements := strings.Split(strings.TrimPrefix(didID, didPeerPrefix+"2"), ".")

	var (
		vms, auths, keyAgreements []interface{}
		services                  []interface{}
	)

	for _, e := range elements[1:] {
		if e == "" {
			return nil, fmt.Errorf("%w: empty element in %s", ErrInvalidPeerDID, didID)
		}

		value := e[1:]

		switch "." + e[:1] {
		case purposeVerification, purposeEncryption:
			keyID := fmt.Sprintf("#key-%d", len(vms)+1)
			keyType := did.Ed25519VerificationKey2020

			if "."+e[:1] == purposeEncryption {
				keyType = did.X25519KeyAgreementKey2019
				keyAgreements = append(keyAgreements, keyID)
			} else {
				auths = append(auths, keyID)
			}

			vms = append(vms, map[string]interface{}{
				"id":                 keyID,
				"type":               keyType,
				"controller":         didID,
				"publicKeyMultibase": value,
			})
		case purposeService:
			service, err := expandService(value)
			if err != nil {
				return nil, err
			}

			service["id"] = "#service"
			if len(services) > 0 {
				service["id"] = fmt.Sprintf("#service-%d", len(services))
			}

			services = append(services, service)
		default:
			return nil, fmt.Errorf("%w: unsupported purpose %q", ErrInvalidPeerDID, e[:1])
		}
	}

	raw := map[string]interface{}{
		"@context":           []string{did.ContextV1},
		"id":                 didID,
		"verificationMethod": vms,
		"authentication":     auths,
		"keyAgreement":       keyAgreements,
		"service":            services,
	}

	return parseRaw(raw, nil)
}

func (v *VDR) resolveNumAlgo4(didID string) (*did.DocResolution, error) {
	short := ShortFormOf(didID)
	if short == didID {
		doc, err := v.get(short)
		if err != nil {
			return nil, err
		}

		long := doc.ID
		doc.ID = short
		doc.AlsoKnownAs = []string{long}

		return &did.DocResolution{
			DIDDocument:      doc,
			DocumentMetadata: &did.DocumentMetadata{EquivalentID: []string{long}},
		}, nil
	}

	encoded := didID[len(short)+1:]

	hash, err := multihashB58([]byte(encoded))
	if err != nil {
		return nil, err
	}

	if didPeerPrefix+"4z"+hash != short {
		return nil, fmt.Errorf("%w: hash does not match encoded document", ErrInvalidPeerDID)
	}

	_, decoded, err := multibase.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPeerDID, err)
	}

	code, n, err := varint.FromUvarint(decoded)
	if err != nil || code != jsonMultiCodec {
		return nil, fmt.Errorf("%w: encoded document is not json", ErrInvalidPeerDID)
	}

	var raw map[string]interface{}

	if err = json.Unmarshal(decoded[n:], &raw); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPeerDID, err)
	}

	raw["id"] = didID
	raw["alsoKnownAs"] = []string{short}

	return parseRaw(raw, &did.DocumentMetadata{EquivalentID: []string{short}})
}

func parseRaw(raw map[string]interface{}, metadata *did.DocumentMetadata) (*did.DocResolution, error) {
	for k, v := range raw {
		if list, ok := v.([]interface{}); ok && len(list) == 0 {
			delete(raw, k)
		}
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal peer did document: %w", err)
	}

	doc, err := did.ParseDocument(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPeerDID, err)
	}

	return &did.DocResolution{DIDDocument: doc, DocumentMetadata: metadata}, nil
}
