/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package crypto

// package crypto contains the Crypto interface to be used by the framework.
// it will be created via Options creation in pkg/framework/context.Provider

// Crypto interface provides the signing operations needed by the connection protocols.
type Crypto interface {
	// Sign will sign msg using the private key referenced by kh. kh is either a key handle returned by
	// kms.KeyManager.Get or the key id itself.
	// returns:
	// 		signature in []byte
	//		error in case of errors
	Sign(msg []byte, kh interface{}) ([]byte, error)
	// Verify will verify a signature for the given msg using the public key kh (raw Ed25519 key bytes).
	// returns:
	// 		error in case of errors or nil if signature verification was successful
	Verify(signature, msg []byte, kh interface{}) error
}
