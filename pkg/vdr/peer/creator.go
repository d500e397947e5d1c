/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package peer

import (
	"fmt"
	"strings"

	"github.com/hyperledger/aries-connections-go/pkg/doc/did"
	vdrapi "github.com/hyperledger/aries-connections-go/pkg/framework/aries/api/vdr"
)

// Create creates a did:peer from the genesis document didDoc. The numalgo option (1, 2 or 4, default 1)
// selects the algorithm. With the store option the document is kept under the id it already has.
func (v *VDR) Create(didDoc *did.Doc, opts ...vdrapi.DIDMethodOption) (*did.DocResolution, error) {
	docOpts := vdrapi.NewOpts(opts...)

	if store, ok := docOpts.Values[StoreOption].(bool); ok && store {
		return v.storeReceived(didDoc)
	}

	numAlgo, err := numAlgoOption(docOpts)
	if err != nil {
		return nil, err
	}

	switch numAlgo {
	case NumAlgo1:
		id, err := NumAlgo1DID(didDoc)
		if err != nil {
			return nil, fmt.Errorf("create peer DID : %w", err)
		}

		doc := *didDoc
		doc.ID = id

		if err = v.storeDID(&doc); err != nil {
			return nil, err
		}

		return &did.DocResolution{DIDDocument: &doc}, nil
	case NumAlgo2:
		id, err := NumAlgo2DID(didDoc)
		if err != nil {
			return nil, fmt.Errorf("create peer DID : %w", err)
		}

		return resolveNumAlgo2(id)
	case NumAlgo4:
		_, long, err := NumAlgo4DIDs(didDoc)
		if err != nil {
			return nil, fmt.Errorf("create peer DID : %w", err)
		}

		res, err := v.resolveNumAlgo4(long)
		if err != nil {
			return nil, err
		}

		if err = v.storeDID(res.DIDDocument, ShortFormOf(long)); err != nil {
			return nil, err
		}

		return res, nil
	default:
		return nil, fmt.Errorf("create peer DID : unsupported numalgo %d", numAlgo)
	}
}

func (v *VDR) storeReceived(didDoc *did.Doc) (*did.DocResolution, error) {
	numAlgo, err := GetNumAlgo(didDoc.ID)
	if err != nil {
		return nil, err
	}

	switch numAlgo {
	case NumAlgo1:
		// the hash depends on the sender's serialization, so the id is taken as given.
		if err = v.storeDID(didDoc); err != nil {
			return nil, err
		}

		return &did.DocResolution{DIDDocument: didDoc}, nil
	case NumAlgo4:
		// only the long form carries the document, resolving it checks the hash.
		res, err := v.resolveNumAlgo4(didDoc.ID)
		if err != nil {
			return nil, err
		}

		if err = v.storeDID(res.DIDDocument, ShortFormOf(didDoc.ID)); err != nil {
			return nil, err
		}

		return res, nil
	default:
		// numalgo 0 and 2 are self resolving.
		return v.Read(didDoc.ID)
	}
}

func numAlgoOption(docOpts *vdrapi.DIDMethodOpts) (NumAlgo, error) {
	switch n := docOpts.Values[vdrapi.NumAlgoOption].(type) {
	case nil:
		return NumAlgo1, nil
	case NumAlgo:
		return n, nil
	case int:
		return NumAlgo(n), nil
	case float64:
		return NumAlgo(n), nil
	case string:
		return GetNumAlgo(didPeerPrefix + strings.TrimSpace(n))
	default:
		return 0, fmt.Errorf("numalgo option has unsupported type %T", n)
	}
}
