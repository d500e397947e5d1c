/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package peer

import (
	"errors"
	"fmt"

	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-connections-go/pkg/doc/did"
	vdrapi "github.com/hyperledger/aries-connections-go/pkg/framework/aries/api/vdr"
)

const (
	// StoreNamespace store name space for DID Store.
	StoreNamespace = "peer"
	// DIDMethod did method.
	DIDMethod = "peer"
	// StoreOption makes Create persist a received document under its existing id instead of deriving a new DID.
	StoreOption = "store"
)

var logger = log.New("aries-framework/vdr/peer")

// VDR implements did:peer method support. Documents that cannot be expanded from the DID itself
// (numalgo 1 and short form numalgo 4) are kept in a storage.Store.
type VDR struct {
	store storage.Store
}

// New return new instance of peer vdr.
func New(p storage.Provider) (*VDR, error) {
	s, err := p.OpenStore(StoreNamespace)
	if err != nil {
		return nil, fmt.Errorf("open store : %w", err)
	}

	return &VDR{store: s}, nil
}

// Accept did method.
func (v *VDR) Accept(method string) bool {
	return method == DIDMethod
}

// Close frees resources being maintained by VDR.
func (v *VDR) Close() error {
	return nil
}

// storeDID saves the document under its id.
func (v *VDR) storeDID(doc *did.Doc, ids ...string) error {
	if doc == nil || doc.ID == "" {
		return errors.New("DID is mandatory")
	}

	docBytes, err := doc.JSONBytes()
	if err != nil {
		return fmt.Errorf("JSON marshalling of document failed: %w", err)
	}

	for _, id := range append([]string{doc.ID}, ids...) {
		if err = v.store.Put(id, docBytes); err != nil {
			return fmt.Errorf("put peer DID document: %w", err)
		}
	}

	logger.Debugf("stored did document %s", doc.ID)

	return nil
}

// get returns the stored document for the DID.
func (v *VDR) get(id string) (*did.Doc, error) {
	if id == "" {
		return nil, errors.New("ID is mandatory")
	}

	docBytes, err := v.store.Get(id)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, fmt.Errorf("peer DID %s: %w", id, vdrapi.ErrNotFound)
		}

		return nil, fmt.Errorf("get peer DID document: %w", err)
	}

	doc, err := did.ParseDocument(docBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing of stored did doc failed: %w", err)
	}

	return doc, nil
}
