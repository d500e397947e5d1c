/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package did

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"

	"github.com/hyperledger/aries-connections-go/pkg/doc/util/fingerprint"
)

const (
	legacyKeyID             = "#1"
	legacyAuthenticationKey = "Ed25519SignatureAuthentication2018"
	indyDIDLength           = 16
)

// LegacyService is an endpoint used to build a legacy connection document.
type LegacyService struct {
	ServiceEndpoint string
	// RoutingKeys are fingerprints.
	RoutingKeys []string
}

// IndyDIDFromVerKey returns the unqualified indy DID for a raw Ed25519 verkey.
func IndyDIDFromVerKey(verKey []byte) string {
	if len(verKey) < indyDIDLength {
		return base58.Encode(verKey)
	}

	return base58.Encode(verKey[:indyDIDLength])
}

// BuildLegacyDoc builds a Connections 1.0 document: an unqualified indy DID, one Ed25519 key with id "#1"
// and one IndyAgent service per endpoint with the endpoint order as priority.
func BuildLegacyDoc(verKey []byte, services []LegacyService) (*Doc, error) {
	if len(verKey) == 0 {
		return nil, errors.New("build legacy doc: missing verkey")
	}

	id := IndyDIDFromVerKey(verKey)
	verKeyB58 := base58.Encode(verKey)

	vm := NewVerificationMethodFromBytes(id+legacyKeyID, Ed25519VerificationKey2018, id, verKey)

	doc := &Doc{
		Context:            []string{ContextV1Old},
		ID:                 id,
		VerificationMethod: []VerificationMethod{*vm},
		Authentication:     []Verification{*NewReferencedVerification(vm, Authentication)},
	}

	for i, s := range services {
		routingKeys := make([]string, 0, len(s.RoutingKeys))

		for _, fp := range s.RoutingKeys {
			routingVerKey, err := fingerprint.ToVerKey(fp)
			if err != nil {
				return nil, fmt.Errorf("build legacy doc: routing key: %w", err)
			}

			routingKeys = append(routingKeys, routingVerKey)
		}

		doc.Service = append(doc.Service, Service{
			ID:              fmt.Sprintf("%s#IndyAgentService-%d", id, i+1),
			Type:            IndyAgentServiceType,
			Priority:        i,
			RecipientKeys:   []string{verKeyB58},
			RoutingKeys:     routingKeys,
			ServiceEndpoint: s.ServiceEndpoint,
		})
	}

	return doc, nil
}

// ToLegacyJSON serializes the document the way Connections 1.0 agents expect it: keys under "publicKey" and
// authentication entries referencing them by id.
func (doc *Doc) ToLegacyJSON() ([]byte, error) {
	keys := make([]map[string]interface{}, 0, len(doc.VerificationMethod))
	for i := range doc.VerificationMethod {
		keys = append(keys, populateRawVerificationMethod(&doc.VerificationMethod[i]))
	}

	auths := make([]interface{}, 0, len(doc.Authentication))
	for i := range doc.Authentication {
		auths = append(auths, map[string]interface{}{
			jsonldType:      legacyAuthenticationKey,
			jsonldPublicKey: doc.Authentication[i].VerificationMethod.ID,
		})
	}

	raw := map[string]interface{}{
		"@context":       ContextV1Old,
		jsonldID:         doc.ID,
		jsonldPublicKey:  keys,
		"authentication": auths,
		"service":        populateRawServices(doc.Service),
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal legacy did doc: %w", err)
	}

	return b, nil
}

// ConvertToPeerDoc converts a legacy document into a did:peer style genesis document without an id. Keys get
// relative ids "#key-N" and every DIDComm service references its keys as did:key values.
func ConvertToPeerDoc(legacy *Doc) (*Doc, error) {
	doc := &Doc{Context: []string{ContextV1}}

	keyIDs := map[string]string{}

	addKey := func(value []byte) string {
		fp := fingerprint.Ed25519(value)
		if id, ok := keyIDs[fp]; ok {
			return id
		}

		id := fmt.Sprintf("#key-%d", len(keyIDs)+1)
		keyIDs[fp] = id

		vm := NewVerificationMethodFromBytes(id, Ed25519VerificationKey2018, "", value)
		doc.VerificationMethod = append(doc.VerificationMethod, *vm)
		doc.Authentication = append(doc.Authentication, *NewReferencedVerification(vm, Authentication))

		return id
	}

	for i := range legacy.VerificationMethod {
		if isEd25519(legacy.VerificationMethod[i].Type) {
			addKey(legacy.VerificationMethod[i].Value)
		}
	}

	services, err := legacy.DIDCommServices()
	if err != nil {
		return nil, fmt.Errorf("convert legacy doc: %w", err)
	}

	for i, s := range services {
		recipientKeys := make([]string, 0, len(s.RecipientKeys))

		for _, fp := range s.RecipientKeys {
			pub, _, err := fingerprint.PubKeyFromFingerprint(fp)
			if err != nil {
				return nil, fmt.Errorf("convert legacy doc: %w", err)
			}

			addKey(pub)

			recipientKeys = append(recipientKeys, didKeyRef(fp))
		}

		routingKeys := make([]string, 0, len(s.RoutingKeys))
		for _, fp := range s.RoutingKeys {
			routingKeys = append(routingKeys, didKeyRef(fp))
		}

		doc.Service = append(doc.Service, Service{
			ID:              fmt.Sprintf("#service-%d", i),
			Type:            DIDCommServiceType,
			Priority:        i,
			RecipientKeys:   recipientKeys,
			RoutingKeys:     routingKeys,
			ServiceEndpoint: s.ServiceEndpoint,
		})
	}

	return doc, nil
}

func didKeyRef(fp string) string {
	return "did:key:" + fp + "#" + fp
}
