/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package key

import (
	"fmt"
	"regexp"

	"github.com/hyperledger/aries-connections-go/pkg/doc/did"
	"github.com/hyperledger/aries-connections-go/pkg/doc/util/fingerprint"
	vdrapi "github.com/hyperledger/aries-connections-go/pkg/framework/aries/api/vdr"
)

var methodIDRegex = regexp.MustCompile(`^z[1-9a-km-zA-HJ-NP-Z]{46,}$`)

// Read expands did:key value to a DID document.
func (v *VDR) Read(didKey string, _ ...vdrapi.DIDMethodOption) (*did.DocResolution, error) {
	parsed, err := did.Parse(didKey)
	if err != nil {
		return nil, fmt.Errorf("pub:key vdr Read: failed to parse DID document: %w", err)
	}

	if parsed.Method != DIDMethod {
		return nil, fmt.Errorf("vdr Read: not a did:key: %s", didKey)
	}

	if !methodIDRegex.MatchString(parsed.MethodSpecificID) {
		return nil, fmt.Errorf("vdr Read: invalid did:key method ID: %s", parsed.MethodSpecificID)
	}

	pubKeyBytes, code, err := fingerprint.PubKeyFromFingerprint(parsed.MethodSpecificID)
	if err != nil {
		return nil, fmt.Errorf("pub:key vdr Read: failed to get key fingerPrint: %w", err)
	}

	if code != fingerprint.ED25519PubKeyMultiCodec {
		return nil, fmt.Errorf("unsupported key multicodec code [0x%x]", code)
	}

	return &did.DocResolution{DIDDocument: docFromFingerprint(parsed.MethodSpecificID, pubKeyBytes)}, nil
}

func docFromFingerprint(fp string, pubKeyBytes []byte) *did.Doc {
	didKey := "did:key:" + fp
	keyID := fmt.Sprintf("%s#%s", didKey, fp)

	publicKey := did.NewVerificationMethodFromBytes(keyID, did.Ed25519VerificationKey2018, didKey, pubKeyBytes)

	return &did.Doc{
		Context:            []string{did.ContextV1},
		ID:                 didKey,
		VerificationMethod: []did.VerificationMethod{*publicKey},
		Authentication:     []did.Verification{*did.NewReferencedVerification(publicKey, did.Authentication)},
	}
}
