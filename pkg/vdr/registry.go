/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vdr

import (
	"fmt"
	"strings"

	"github.com/bluele/gcache"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/pkg/errors"

	diddoc "github.com/hyperledger/aries-connections-go/pkg/doc/did"
	vdrapi "github.com/hyperledger/aries-connections-go/pkg/framework/aries/api/vdr"
)

const defaultCacheSize = 100

var logger = log.New("aries-framework/vdr")

// Option is a vdr instance option.
type Option func(opts *Registry)

// Registry vdr registry.
type Registry struct {
	vdr       []vdrapi.VDR
	cacheSize int
	// did:peer and did:key documents never change, so resolutions can be kept.
	cache gcache.Cache
}

// New return new instance of vdr.
func New(opts ...Option) *Registry {
	baseVDR := &Registry{cacheSize: defaultCacheSize}

	// Apply options
	for _, opt := range opts {
		opt(baseVDR)
	}

	if baseVDR.cacheSize > 0 {
		baseVDR.cache = gcache.New(baseVDR.cacheSize).LRU().Build()
	}

	return baseVDR
}

// Resolve did document.
func (r *Registry) Resolve(did string, opts ...vdrapi.DIDMethodOption) (*diddoc.DocResolution, error) {
	if r.cache != nil {
		if cached, err := r.cache.Get(did); err == nil {
			return cached.(*diddoc.DocResolution), nil
		}
	}

	didMethod, err := GetDidMethod(did)
	if err != nil {
		return nil, err
	}

	// resolve did method
	method, err := r.resolveVDR(didMethod)
	if err != nil {
		return nil, err
	}

	// Obtain the DID Document
	didDocResolution, err := method.Read(did, opts...)
	if err != nil {
		if errors.Is(err, vdrapi.ErrNotFound) {
			return nil, err
		}

		return nil, errors.Wrap(err, "did method read failed")
	}

	r.remember(did, didDocResolution)

	return didDocResolution, nil
}

// Create a new DID Document and store it in this registry.
func (r *Registry) Create(didMethod string, did *diddoc.Doc,
	opts ...vdrapi.DIDMethodOption) (*diddoc.DocResolution, error) {
	method, err := r.resolveVDR(didMethod)
	if err != nil {
		return nil, err
	}

	didDocResolution, err := method.Create(did, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "create did:%s", didMethod)
	}

	logger.Debugf("created %s", didDocResolution.DIDDocument.ID)

	r.forget(didDocResolution)

	return didDocResolution, nil
}

// Close frees resources being maintained by vdr.
func (r *Registry) Close() error {
	if r.cache != nil {
		r.cache.Purge()
	}

	for _, v := range r.vdr {
		if err := v.Close(); err != nil {
			return fmt.Errorf("close vdr: %w", err)
		}
	}

	return nil
}

func (r *Registry) remember(did string, res *diddoc.DocResolution) {
	if r.cache == nil {
		return
	}

	if err := r.cache.Set(did, res); err != nil {
		logger.Warnf("failed to cache resolution of %s: %s", did, err)
	}
}

// forget drops cached resolutions of a document that was just (re)stored.
func (r *Registry) forget(res *diddoc.DocResolution) {
	if r.cache == nil {
		return
	}

	r.cache.Remove(res.DIDDocument.ID)

	if res.DocumentMetadata != nil {
		for _, id := range res.DocumentMetadata.EquivalentID {
			r.cache.Remove(id)
		}
	}
}

func (r *Registry) resolveVDR(method string) (vdrapi.VDR, error) {
	for _, v := range r.vdr {
		if v.Accept(method) {
			return v, nil
		}
	}

	return nil, fmt.Errorf("did method %s not supported for vdr: %w", method, vdrapi.ErrMethodNotSupported)
}

// WithVDR adds did method implementation for store.
func WithVDR(method vdrapi.VDR) Option {
	return func(opts *Registry) {
		opts.vdr = append(opts.vdr, method)
	}
}

// WithCacheSize sets the number of resolutions kept in memory. Zero disables the cache.
func WithCacheSize(size int) Option {
	return func(opts *Registry) {
		opts.cacheSize = size
	}
}

// GetDidMethod get did method.
func GetDidMethod(didID string) (string, error) {
	const numPartsDID = 3

	didParts := strings.Split(didID, ":")
	if len(didParts) < numPartsDID || didParts[0] != "did" {
		return "", fmt.Errorf("wrong format did input: %s", didID)
	}

	return didParts[1], nil
}
