/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package did

// DocResolution did resolution.
type DocResolution struct {
	DIDDocument      *Doc
	DocumentMetadata *DocumentMetadata
}

// DocumentMetadata document metadata.
type DocumentMetadata struct {
	// EquivalentID lists DIDs that identify the same document, such as the long form of a did:peer:4.
	EquivalentID []string
}
