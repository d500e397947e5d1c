/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package did

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hyperledger/aries-connections-go/pkg/doc/util/fingerprint"
)

// DIDCommService is a DIDComm service of a document with every key reference resolved to an
// Ed25519 multicodec fingerprint.
type DIDCommService struct {
	ID              string   `json:"id,omitempty"`
	ServiceEndpoint string   `json:"serviceEndpoint"`
	RecipientKeys   []string `json:"recipientKeys"`
	RoutingKeys     []string `json:"routingKeys,omitempty"`
}

// IsDIDCommService reports whether the service type can carry DIDComm messages.
func IsDIDCommService(serviceType string) bool {
	switch serviceType {
	case DIDCommServiceType, IndyAgentServiceType, DIDCommV2ServiceType:
		return true
	}

	return false
}

// LookupService returns the service from the given DIDDoc matching the given service type.
func LookupService(didDoc *Doc, serviceType string) (*Service, bool) {
	const notFound = -1
	index := notFound

	for i := range didDoc.Service {
		if didDoc.Service[i].Type == serviceType {
			if index == notFound || didDoc.Service[index].Priority > didDoc.Service[i].Priority {
				index = i
			}
		}
	}

	if index == notFound {
		return nil, false
	}

	return &didDoc.Service[index], true
}

// VerificationMethodByID returns the verification method of the document with the given id. The id may be
// absolute, relative to the document ("#key-1") or a bare fragment ("key-1").
func (doc *Doc) VerificationMethodByID(id string) (*VerificationMethod, bool) {
	vm, ok := lookupVerificationMethod(doc.ID, id, doc.VerificationMethod)
	if ok {
		return vm, true
	}

	for i := range doc.Authentication {
		if doc.Authentication[i].Embedded && matchesKeyID(doc.ID, id, doc.Authentication[i].VerificationMethod.ID) {
			return &doc.Authentication[i].VerificationMethod, true
		}
	}

	return nil, false
}

// AuthenticationFingerprints returns the fingerprints of every Ed25519 authentication key of the document.
func (doc *Doc) AuthenticationFingerprints() []string {
	var fps []string

	for i := range doc.Authentication {
		vm := doc.Authentication[i].VerificationMethod
		if isEd25519(vm.Type) && len(vm.Value) > 0 {
			fps = append(fps, fingerprint.Ed25519(vm.Value))
		}
	}

	return fps
}

// DIDCommServices returns the DIDComm services of the document sorted by priority with key references
// resolved to fingerprints.
func (doc *Doc) DIDCommServices() ([]DIDCommService, error) {
	services := make([]Service, 0, len(doc.Service))

	for i := range doc.Service {
		if IsDIDCommService(doc.Service[i].Type) {
			services = append(services, doc.Service[i])
		}
	}

	sort.SliceStable(services, func(i, j int) bool { return services[i].Priority < services[j].Priority })

	result := make([]DIDCommService, 0, len(services))

	for i := range services {
		recipientKeys, err := doc.resolveKeyReferences(services[i].RecipientKeys)
		if err != nil {
			return nil, fmt.Errorf("service %s recipient keys: %w", services[i].ID, err)
		}

		if len(recipientKeys) == 0 {
			recipientKeys = doc.AuthenticationFingerprints()
		}

		routingKeys, err := doc.resolveKeyReferences(services[i].RoutingKeys)
		if err != nil {
			return nil, fmt.Errorf("service %s routing keys: %w", services[i].ID, err)
		}

		result = append(result, DIDCommService{
			ID:              services[i].ID,
			ServiceEndpoint: services[i].ServiceEndpoint,
			RecipientKeys:   recipientKeys,
			RoutingKeys:     routingKeys,
		})
	}

	return result, nil
}

// RecipientKeyFingerprints returns the recipient key fingerprints of every DIDComm service of the document.
func (doc *Doc) RecipientKeyFingerprints() ([]string, error) {
	services, err := doc.DIDCommServices()
	if err != nil {
		return nil, err
	}

	var fps []string

	for _, s := range services {
		for _, fp := range s.RecipientKeys {
			if !contains(fps, fp) {
				fps = append(fps, fp)
			}
		}
	}

	return fps, nil
}

// HasKeyFingerprint reports whether any key of the document (verification methods or DIDComm recipient keys)
// has the given fingerprint.
func (doc *Doc) HasKeyFingerprint(fp string) bool {
	for i := range doc.VerificationMethod {
		if len(doc.VerificationMethod[i].Value) > 0 && fingerprint.Ed25519(doc.VerificationMethod[i].Value) == fp {
			return true
		}
	}

	if contains(doc.AuthenticationFingerprints(), fp) {
		return true
	}

	fps, err := doc.RecipientKeyFingerprints()
	if err != nil {
		return false
	}

	return contains(fps, fp)
}

func (doc *Doc) resolveKeyReferences(refs []string) ([]string, error) {
	var fps []string

	for _, ref := range refs {
		fp, err := doc.resolveKeyReference(ref)
		if err != nil {
			return nil, err
		}

		fps = append(fps, fp)
	}

	return fps, nil
}

func (doc *Doc) resolveKeyReference(ref string) (string, error) {
	if strings.HasPrefix(ref, "#") || (doc.ID != "" && strings.HasPrefix(ref, doc.ID+"#")) {
		vm, ok := doc.VerificationMethodByID(ref)
		if !ok {
			return "", fmt.Errorf("key reference %s: %w", ref, ErrKeyNotFound)
		}

		return fingerprint.Ed25519(vm.Value), nil
	}

	return fingerprint.FromKeyReference(ref)
}

func lookupVerificationMethod(didID, id string, vms []VerificationMethod) (*VerificationMethod, bool) {
	for i := range vms {
		if matchesKeyID(didID, id, vms[i].ID) {
			return &vms[i], true
		}
	}

	return nil, false
}

func matchesKeyID(didID, want, have string) bool {
	if want == have {
		return true
	}

	return fragment(didID, want) == fragment(didID, have)
}

func fragment(didID, id string) string {
	id = strings.TrimPrefix(id, didID)

	if i := strings.LastIndex(id, "#"); i >= 0 {
		return id[i+1:]
	}

	return id
}

func isEd25519(keyType string) bool {
	switch keyType {
	case Ed25519VerificationKey2018, Ed25519VerificationKey2020, Multikey, JSONWebKey2020:
		return true
	}

	return false
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}

	return false
}
