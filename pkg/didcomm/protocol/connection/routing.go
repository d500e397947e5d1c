/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/outofband"
	"github.com/hyperledger/aries-connections-go/pkg/doc/did"
	"github.com/hyperledger/aries-connections-go/pkg/doc/util/fingerprint"
	vdrapi "github.com/hyperledger/aries-connections-go/pkg/framework/aries/api/vdr"
	"github.com/hyperledger/aries-connections-go/pkg/kms"
	didstore "github.com/hyperledger/aries-connections-go/pkg/store/did"
	"github.com/hyperledger/aries-connections-go/pkg/vdr/peer"
)

const keyIDPrefix = "#key-"

// Routing is the key and endpoints our side of a connection is reached at.
type Routing struct {
	Endpoints []string
	// RecipientKey is the fingerprint of our key, RecipientKeyHandle its KMS key id.
	RecipientKey       string
	RecipientKeyHandle string
	// RoutingKeys are fingerprints of mediator keys.
	RoutingKeys []string
	MediatorID  string
}

// CreateRouting creates a new key in the KMS reachable at the configured endpoints.
func (s *Service) CreateRouting() (*Routing, error) {
	kid, pub, err := s.kms.CreateAndExportPubKeyBytes(kms.ED25519Type)
	if err != nil {
		return nil, fmt.Errorf("create routing key: %w", err)
	}

	return &Routing{
		Endpoints:          append([]string(nil), s.config.Endpoints...),
		RecipientKey:       fingerprint.Ed25519(pub),
		RecipientKeyHandle: kid,
	}, nil
}

// BuildPeerDoc builds a genesis document with the routing key as its only authentication key and one DIDComm
// service per endpoint.
func BuildPeerDoc(routing *Routing) (*did.Doc, error) {
	if routing == nil || routing.RecipientKey == "" {
		return nil, ErrMissingRouting
	}

	pub, _, err := fingerprint.PubKeyFromFingerprint(routing.RecipientKey)
	if err != nil {
		return nil, fmt.Errorf("routing recipient key: %w", err)
	}

	vm := did.NewVerificationMethodFromBytes(keyIDPrefix+"1", did.Ed25519VerificationKey2018, "", pub)

	doc := &did.Doc{
		Context:            []string{did.ContextV1},
		VerificationMethod: []did.VerificationMethod{*vm},
		Authentication:     []did.Verification{*did.NewReferencedVerification(vm, did.Authentication)},
	}

	routingKeys := make([]string, 0, len(routing.RoutingKeys))
	for _, fp := range routing.RoutingKeys {
		routingKeys = append(routingKeys, didKeyRef(fp))
	}

	for i, endpoint := range routing.Endpoints {
		doc.Service = append(doc.Service, did.Service{
			ID:              fmt.Sprintf("#service-%d", i),
			Type:            did.DIDCommServiceType,
			Priority:        i,
			RecipientKeys:   []string{didKeyRef(routing.RecipientKey)},
			RoutingKeys:     routingKeys,
			ServiceEndpoint: endpoint,
		})
	}

	return doc, nil
}

// CreatePeerDID registers a did:peer with the given numalgo for the routing and stores it as a created DID.
func (s *Service) CreatePeerDID(routing *Routing, numAlgo peer.NumAlgo) (*didstore.Record, error) {
	doc, err := BuildPeerDoc(routing)
	if err != nil {
		return nil, err
	}

	return s.CreateDID(doc, routing.RecipientKeyHandle, numAlgo)
}

// CreateDID registers a genesis document as a did:peer and stores it as a created DID. keyHandle is the KMS
// key id of the document's authentication key.
func (s *Service) CreateDID(doc *did.Doc, keyHandle string, numAlgo peer.NumAlgo) (*didstore.Record, error) {
	if len(doc.Authentication) == 0 {
		return nil, errors.New("create did: document has no authentication key")
	}

	pub := doc.Authentication[0].VerificationMethod.Value

	res, err := s.vdr.Create(peer.DIDMethod, doc, vdrapi.WithOption(vdrapi.NumAlgoOption, numAlgo))
	if err != nil {
		return nil, fmt.Errorf("create did: %w", err)
	}

	relativeKeyID, err := relativeKeyIDOf(res.DIDDocument, pub)
	if err != nil {
		return nil, fmt.Errorf("create did: %w", err)
	}

	rec := &didstore.Record{
		DID:  res.DIDDocument.ID,
		Role: didstore.RoleCreated,
		Doc:  res.DIDDocument,
		Keys: []didstore.DocumentKey{{RelativeKeyID: relativeKeyID, KeyHandle: keyHandle}},
	}

	if res.DocumentMetadata != nil {
		rec.AlternativeDIDs = append(rec.AlternativeDIDs, res.DocumentMetadata.EquivalentID...)
	}

	if err = s.dids.Save(rec); err != nil {
		return nil, fmt.Errorf("create did: %w", err)
	}

	logger.Debugf("created %s", rec.DID)

	return rec, nil
}

// StoreReceivedDID stores the document of another party, registering did:peer documents with the VDR so they
// resolve later. Storing the same DID again replaces its document.
func (s *Service) StoreReceivedDID(doc *did.Doc, alternativeDIDs ...string) (*didstore.Record, error) {
	if doc == nil || doc.ID == "" {
		return nil, errors.New("store received did: missing document id")
	}

	if strings.HasPrefix(doc.ID, "did:"+peer.DIDMethod+":") {
		res, err := s.vdr.Create(peer.DIDMethod, doc, vdrapi.WithOption(peer.StoreOption, true))
		if err != nil {
			return nil, fmt.Errorf("store received did: %w", err)
		}

		doc = res.DIDDocument

		if res.DocumentMetadata != nil {
			alternativeDIDs = append(alternativeDIDs, res.DocumentMetadata.EquivalentID...)
		}
	}

	existing, err := s.dids.GetReceived(doc.ID)

	switch {
	case err == nil:
		existing.Doc = doc
		existing.AlternativeDIDs = mergeUnique(existing.AlternativeDIDs, alternativeDIDs)

		existing.RecipientKeyFingerprints, err = doc.RecipientKeyFingerprints()
		if err != nil {
			return nil, fmt.Errorf("store received did: %w", err)
		}

		if err = s.dids.Update(existing); err != nil {
			return nil, fmt.Errorf("store received did: %w", err)
		}

		return existing, nil
	case errors.Is(err, didstore.ErrNotFound):
		rec := &didstore.Record{
			DID:             doc.ID,
			Role:            didstore.RoleReceived,
			Doc:             doc,
			AlternativeDIDs: mergeUnique(nil, alternativeDIDs),
		}

		if err = s.dids.Save(rec); err != nil {
			return nil, fmt.Errorf("store received did: %w", err)
		}

		return rec, nil
	default:
		return nil, fmt.Errorf("store received did: %w", err)
	}
}

// InvitationKey returns the first recipient key fingerprint of an invitation we sent and the KMS key id that
// signs with it. Keys of inline services are kept on the record, keys of invitation DIDs on our created DIDs.
func (s *Service) InvitationKey(oob *outofband.Record) (string, string, error) {
	fps := oob.RecipientKeyFingerprints
	if len(fps) == 0 && len(oob.Services) > 0 {
		fps = oob.Services[0].RecipientKeys
	}

	if len(fps) == 0 {
		return "", "", fmt.Errorf("out-of-band record %s has no recipient key", oob.ID)
	}

	fp := fps[0]

	if kid, ok := oob.KeyHandle(fp); ok {
		return fp, kid, nil
	}

	created, err := s.dids.FindCreatedByRecipientKey(fp)
	if err != nil {
		return "", "", fmt.Errorf("invitation key %s: %w", fp, err)
	}

	for _, k := range created.Keys {
		vm, ok := created.Doc.VerificationMethodByID(k.RelativeKeyID)
		if ok && fingerprint.Ed25519(vm.Value) == fp {
			return fp, k.KeyHandle, nil
		}
	}

	return "", "", fmt.Errorf("invitation key %s of %s: %w", fp, created.DID, did.ErrKeyNotFound)
}

// ResolveDIDDoc resolves a DID through the registry.
func (s *Service) ResolveDIDDoc(didID string) (*did.Doc, error) {
	res, err := s.vdr.Resolve(didID)
	if err != nil {
		return nil, err
	}

	return res.DIDDocument, nil
}

// SigningKey returns the public key and KMS key id of the first key of a created DID.
func SigningKey(rec *didstore.Record) (ed25519.PublicKey, string, error) {
	if len(rec.Keys) == 0 || rec.Doc == nil {
		return nil, "", fmt.Errorf("did %s has no keys", rec.DID)
	}

	vm, ok := rec.Doc.VerificationMethodByID(rec.Keys[0].RelativeKeyID)
	if !ok {
		return nil, "", fmt.Errorf("key %s of %s: %w", rec.Keys[0].RelativeKeyID, rec.DID, did.ErrKeyNotFound)
	}

	return ed25519.PublicKey(vm.Value), rec.Keys[0].KeyHandle, nil
}

func relativeKeyIDOf(doc *did.Doc, pub []byte) (string, error) {
	for i := range doc.VerificationMethod {
		if bytes.Equal(doc.VerificationMethod[i].Value, pub) {
			id := doc.VerificationMethod[i].ID
			if j := strings.LastIndex(id, "#"); j >= 0 {
				return id[j:], nil
			}

			return "#" + id, nil
		}
	}

	return "", fmt.Errorf("authentication key of %s: %w", doc.ID, did.ErrKeyNotFound)
}

func didKeyRef(fp string) string {
	return "did:key:" + fp + "#" + fp
}

func mergeUnique(values, more []string) []string {
	for _, v := range more {
		if v != "" && !contains(values, v) {
			values = append(values, v)
		}
	}

	return values
}
