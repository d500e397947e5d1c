/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package decorator

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"

	"github.com/hyperledger/aries-connections-go/pkg/crypto"
	"github.com/hyperledger/aries-connections-go/pkg/doc/did"
	"github.com/hyperledger/aries-connections-go/pkg/doc/jose"
	"github.com/hyperledger/aries-connections-go/pkg/doc/util/fingerprint"
)

const (
	// TransportReturnRouteAll return route option all.
	TransportReturnRouteAll = "all"
)

// Thread thread data.
type Thread struct {
	ID             string         `json:"thid,omitempty"`
	PID            string         `json:"pthid,omitempty"`
	SenderOrder    int            `json:"sender_order,omitempty"`
	ReceivedOrders map[string]int `json:"received_orders,omitempty"`
}

// Transport transport decorator
// https://github.com/hyperledger/aries-rfcs/tree/master/features/0092-transport-return-route
type Transport struct {
	ReturnRoute *ReturnRoute `json:"~transport,omitempty"`
}

// ReturnRoute works with Transport decorator. Acceptable values - "none", "all" or "thread".
type ReturnRoute struct {
	Value string `json:"~return_route,omitempty"`
}

// Attachment is intended to provide the possibility to include files, links or even JSON payload to the message.
// To find out more please visit https://github.com/hyperledger/aries-rfcs/tree/master/concepts/0017-attachments
type Attachment struct {
	// ID is a JSON-LD construction that uniquely identifies attached content within the scope of a given message.
	ID string `json:"@id,omitempty"`
	// Description is an optional human-readable description of the content.
	Description string `json:"description,omitempty"`
	// MimeType describes the MIME type of the attached content. Optional but recommended.
	MimeType string `json:"mime-type,omitempty"`
	// Data is a JSON object that contains the actual attached content.
	Data AttachmentData `json:"data"`
}

// AttachmentData contains attachment payload.
type AttachmentData struct {
	// Base64 is a base64-encoded representation of the attached content.
	Base64 string `json:"base64,omitempty"`
	// JSON is a directly embedded JSON data, when representing content inline instead of via links.
	JSON interface{} `json:"json,omitempty"`
	// JWS is a JSON web signature over the content of the attachment.
	JWS *jose.JWS `json:"jws,omitempty"`
}

// Fetch this attachment's contents.
func (d *AttachmentData) Fetch() ([]byte, error) {
	if d.JSON != nil {
		bits, err := json.Marshal(d.JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal json contents : %w", err)
		}

		return bits, nil
	}

	if d.Base64 != "" {
		bits, err := decodeBase64(d.Base64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 contents : %w", err)
		}

		return bits, nil
	}

	return nil, errors.New("no contents in this attachment")
}

// Sign adds a JWS over the attachment contents, made with the key handle of pub.
func (d *AttachmentData) Sign(pub ed25519.PublicKey, kh interface{}, c crypto.Crypto) error {
	payload, err := d.Fetch()
	if err != nil {
		return err
	}

	jws, err := jose.Sign(payload, pub, kh, c)
	if err != nil {
		return fmt.Errorf("sign attachment : %w", err)
	}

	d.JWS = jws

	return nil
}

// Verify checks the attachment JWS and returns the signer's public key.
func (d *AttachmentData) Verify() (ed25519.PublicKey, error) {
	if d.JWS == nil {
		return nil, errors.New("attachment is not signed")
	}

	payload, err := d.Fetch()
	if err != nil {
		return nil, err
	}

	return jose.Verify(d.JWS, payload)
}

// NewBase64Attachment returns an attachment carrying data as base64.
func NewBase64Attachment(id, mimeType string, data []byte) *Attachment {
	return &Attachment{
		ID:       id,
		MimeType: mimeType,
		Data:     AttachmentData{Base64: base64.StdEncoding.EncodeToString(data)},
	}
}

// Service is the ~service decorator of connection-less messages
// https://github.com/hyperledger/aries-rfcs/tree/main/features/0056-service-decorator
type Service struct {
	RecipientKeys   []string `json:"recipientKeys"`
	RoutingKeys     []string `json:"routingKeys,omitempty"`
	ServiceEndpoint string   `json:"serviceEndpoint"`
}

// ResolvedService converts base58 or did:key recipient and routing keys to fingerprints.
func (s *Service) ResolvedService() (*did.DIDCommService, error) {
	recipientKeys, err := keyFingerprints(s.RecipientKeys)
	if err != nil {
		return nil, fmt.Errorf("service recipient keys : %w", err)
	}

	routingKeys, err := keyFingerprints(s.RoutingKeys)
	if err != nil {
		return nil, fmt.Errorf("service routing keys : %w", err)
	}

	return &did.DIDCommService{
		ServiceEndpoint: s.ServiceEndpoint,
		RecipientKeys:   recipientKeys,
		RoutingKeys:     routingKeys,
	}, nil
}

// NewService builds a ~service decorator with base58 keys from a resolved service.
func NewService(svc *did.DIDCommService) (*Service, error) {
	s := &Service{ServiceEndpoint: svc.ServiceEndpoint}

	for _, fp := range svc.RecipientKeys {
		verKey, err := fingerprint.ToVerKey(fp)
		if err != nil {
			return nil, err
		}

		s.RecipientKeys = append(s.RecipientKeys, verKey)
	}

	for _, fp := range svc.RoutingKeys {
		verKey, err := fingerprint.ToVerKey(fp)
		if err != nil {
			return nil, err
		}

		s.RoutingKeys = append(s.RoutingKeys, verKey)
	}

	return s, nil
}

func keyFingerprints(keys []string) ([]string, error) {
	var fps []string

	for _, k := range keys {
		if strings.HasPrefix(k, "did:key:") {
			pub, err := fingerprint.PubKeyFromDIDKey(k)
			if err != nil {
				return nil, err
			}

			fps = append(fps, fingerprint.Ed25519(pub))

			continue
		}

		raw := base58.Decode(k)
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("invalid verkey %q", k)
		}

		fps = append(fps, fingerprint.Ed25519(raw))
	}

	return fps, nil
}

func decodeBase64(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding} {
		if bits, err := enc.DecodeString(s); err == nil {
			return bits, nil
		}
	}

	return nil, errors.New("invalid base64 encoding")
}
