/*
 Copyright SecureKey Technologies Inc. All Rights Reserved.

 SPDX-License-Identifier: Apache-2.0
*/

package kms

import "errors"

// package kms contains the KeyManager interface to be used by the framework.
// it will be created via Options creation in pkg/framework/context.Provider

// KeyType represents a key type supported by the KMS.
type KeyType string

const (
	// ED25519Type key type value.
	ED25519Type = KeyType("ED25519")
)

// ErrKeyNotFound is returned when a key id is not known to the KMS.
var ErrKeyNotFound = errors.New("key not found")

// KeyManager manages keys and their storage for the aries framework.
type KeyManager interface {
	// Create a new key for the type kt.
	// Returns:
	//  - keyID of the key
	//  - handle instance (to private key)
	//  - error if failure
	Create(kt KeyType) (string, interface{}, error)
	// Get key handle for the given keyID.
	Get(keyID string) (interface{}, error)
	// ExportPubKeyBytes will fetch a key referenced by id then gets its public key in raw bytes and returns it.
	ExportPubKeyBytes(keyID string) ([]byte, KeyType, error)
	// CreateAndExportPubKeyBytes will create a key of type kt and export its public key in raw bytes.
	CreateAndExportPubKeyBytes(kt KeyType) (string, []byte, error)
}
