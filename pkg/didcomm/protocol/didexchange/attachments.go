/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package didexchange

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hyperledger/aries-connections-go/pkg/crypto"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-connections-go/pkg/doc/did"
	"github.com/hyperledger/aries-connections-go/pkg/doc/util/fingerprint"
)

const jsonMimeType = "application/json"

// docAttachment attaches the document signed with the given key.
func docAttachment(doc *did.Doc, pub ed25519.PublicKey, kid string, c crypto.Crypto) (*decorator.Attachment, error) {
	docBytes, err := doc.JSONBytes()
	if err != nil {
		return nil, fmt.Errorf("marshaling did doc: %w", err)
	}

	attach := decorator.NewBase64Attachment(uuid.New().String(), jsonMimeType, docBytes)

	if err = attach.Data.Sign(pub, kid, c); err != nil {
		return nil, fmt.Errorf("signing did_doc~attach: %w", err)
	}

	return attach, nil
}

// rotateAttachment attaches the DID itself signed with the given key.
func rotateAttachment(didID string, pub ed25519.PublicKey, kid string, c crypto.Crypto) (*decorator.Attachment,
	error) {
	attach := decorator.NewBase64Attachment(uuid.New().String(), "", []byte(didID))

	if err := attach.Data.Sign(pub, kid, c); err != nil {
		return nil, fmt.Errorf("signing did_rotate~attach: %w", err)
	}

	return attach, nil
}

// attachedDoc verifies and parses the document of a did:peer:1. The signer must be one of the document's
// authentication keys or one of trustedKeys.
func attachedDoc(didID string, attach *decorator.Attachment, trustedKeys []string) (*did.Doc, error) {
	if attach == nil {
		return nil, errors.New("did document attachment is missing")
	}

	if attach.Data.JWS == nil {
		return nil, errors.New("did document signature is missing")
	}

	signer, err := attach.Data.Verify()
	if err != nil {
		return nil, fmt.Errorf("did document signature is invalid: %w", err)
	}

	docBytes, err := attach.Data.Fetch()
	if err != nil {
		return nil, err
	}

	doc, err := did.ParseDocument(docBytes)
	if err != nil {
		return nil, fmt.Errorf("parse attached did document: %w", err)
	}

	if doc.ID != didID {
		return nil, fmt.Errorf("attached did document %s does not belong to %s", doc.ID, didID)
	}

	signerFP := fingerprint.Ed25519(signer)

	if !contains(doc.AuthenticationFingerprints(), signerFP) && !contains(trustedKeys, signerFP) {
		return nil, fmt.Errorf("did document is signed by %s, which is neither an authentication nor an "+
			"invitation key", signerFP)
	}

	return doc, nil
}

// verifyRotateAttachment checks that the attachment carries didID signed by one of the invitation keys.
func verifyRotateAttachment(didID string, attach *decorator.Attachment, invitationKeys []string) error {
	if attach == nil {
		return errors.New("did rotate attachment is missing")
	}

	if attach.Data.JWS == nil {
		return errors.New("did rotate signature is missing")
	}

	signed, err := attach.Data.Fetch()
	if err != nil {
		return err
	}

	if string(signed) != didID {
		return fmt.Errorf("did rotate attachment carries %s instead of %s", signed, didID)
	}

	signer, err := attach.Data.Verify()
	if err != nil {
		return fmt.Errorf("did rotate signature is invalid: %w", err)
	}

	if signerFP := fingerprint.Ed25519(signer); !contains(invitationKeys, signerFP) {
		return fmt.Errorf("did rotate attachment is signed by %s, which is not an invitation key", signerFP)
	}

	return nil
}

func publicKey(fp string) (ed25519.PublicKey, error) {
	pub, code, err := fingerprint.PubKeyFromFingerprint(fp)
	if err != nil {
		return nil, err
	}

	if code != fingerprint.ED25519PubKeyMultiCodec {
		return nil, fmt.Errorf("%s is not an Ed25519 key", fp)
	}

	return pub, nil
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}

	return false
}
