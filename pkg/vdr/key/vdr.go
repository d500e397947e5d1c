/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package key

import (
	"errors"
	"fmt"

	"github.com/hyperledger/aries-connections-go/pkg/doc/did"
	"github.com/hyperledger/aries-connections-go/pkg/doc/util/fingerprint"
	vdrapi "github.com/hyperledger/aries-connections-go/pkg/framework/aries/api/vdr"
)

// DIDMethod did method.
const DIDMethod = "key"

// VDR implements did:key method support.
type VDR struct{}

// New returns new instance of VDR that works with did:key method.
func New() *VDR {
	return &VDR{}
}

// Accept accepts did:key method.
func (v *VDR) Accept(method string) bool {
	return method == DIDMethod
}

// Create builds the did:key document of the first verification method of didDoc.
func (v *VDR) Create(didDoc *did.Doc, _ ...vdrapi.DIDMethodOption) (*did.DocResolution, error) {
	if len(didDoc.VerificationMethod) == 0 {
		return nil, errors.New("create did:key: missing verification method")
	}

	vm := didDoc.VerificationMethod[0]

	switch vm.Type {
	case did.Ed25519VerificationKey2018, did.Ed25519VerificationKey2020, did.Multikey:
	default:
		return nil, fmt.Errorf("not supported public key type: %s", vm.Type)
	}

	return &did.DocResolution{DIDDocument: docFromFingerprint(fingerprint.Ed25519(vm.Value), vm.Value)}, nil
}

// Close frees resources being maintained by VDR.
func (v *VDR) Close() error {
	return nil
}
