/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vdr

import (
	"errors"

	"github.com/hyperledger/aries-connections-go/pkg/doc/did"
)

// ErrNotFound is returned when a DID resolver does not find the DID.
var ErrNotFound = errors.New("DID not found")

// ErrMethodNotSupported is returned when no VDR accepts a DID method.
var ErrMethodNotSupported = errors.New("did method not supported")

// NumAlgoOption selects the did:peer numeric algorithm on Create.
const NumAlgoOption = "numalgo"

// Registry vdr registry.
type Registry interface {
	Resolve(did string, opts ...DIDMethodOption) (*did.DocResolution, error)
	Create(method string, did *did.Doc, opts ...DIDMethodOption) (*did.DocResolution, error)
	Close() error
}

// VDR verifiable data registry interface.
type VDR interface {
	Read(did string, opts ...DIDMethodOption) (*did.DocResolution, error)
	Create(did *did.Doc, opts ...DIDMethodOption) (*did.DocResolution, error)
	Accept(method string) bool
	Close() error
}

// DIDMethodOpts did method opts.
type DIDMethodOpts struct {
	Values map[string]interface{}
}

// DIDMethodOption is a did method option.
type DIDMethodOption func(opts *DIDMethodOpts)

// WithOption add option for did method.
func WithOption(name string, value interface{}) DIDMethodOption {
	return func(didMethodOpts *DIDMethodOpts) {
		didMethodOpts.Values[name] = value
	}
}

// NewOpts applies opts on top of an empty option set.
func NewOpts(opts ...DIDMethodOption) *DIDMethodOpts {
	didMethodOpts := &DIDMethodOpts{Values: make(map[string]interface{})}

	for _, opt := range opts {
		opt(didMethodOpts)
	}

	return didMethodOpts
}
