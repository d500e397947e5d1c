/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package did

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/go-jose/go-jose/v3"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-varint"
	"github.com/xeipuuv/gojsonschema"
)

const (
	// ContextV1 of the DID document.
	ContextV1 = "https://www.w3.org/ns/did/v1"
	// ContextV1Old of the DID document, used by legacy connection documents.
	ContextV1Old = "https://w3id.org/did/v1"

	// Ed25519VerificationKey2018 verification method type.
	Ed25519VerificationKey2018 = "Ed25519VerificationKey2018"
	// Ed25519VerificationKey2020 verification method type.
	Ed25519VerificationKey2020 = "Ed25519VerificationKey2020"
	// X25519KeyAgreementKey2019 verification method type.
	X25519KeyAgreementKey2019 = "X25519KeyAgreementKey2019"
	// JSONWebKey2020 verification method type.
	JSONWebKey2020 = "JsonWebKey2020"
	// Multikey verification method type.
	Multikey = "Multikey"

	// DIDCommServiceType default DID Communication V1 service endpoint type.
	DIDCommServiceType = "did-communication"
	// IndyAgentServiceType is the service type of legacy connection documents.
	IndyAgentServiceType = "IndyAgent"
	// DIDCommV2ServiceType is the DID Communication V2 service type.
	DIDCommV2ServiceType = "DIDCommMessaging"

	jsonldType          = "type"
	jsonldID            = "id"
	jsonldServicePoint  = "serviceEndpoint"
	jsonldRecipientKeys = "recipientKeys"
	jsonldRoutingKeys   = "routingKeys"
	jsonldPriority      = "priority"
	jsonldAccept        = "accept"
	jsonldController    = "controller"
	jsonldPublicKey     = "publicKey"

	jsonldPublicKeyBase58    = "publicKeyBase58"
	jsonldPublicKeyMultibase = "publicKeyMultibase"
	jsonldPublicKeyjwk       = "publicKeyJwk"

	ed25519PubKeyMultiCodec = 0xed
	x25519PubKeyMultiCodec  = 0xec
)

var (
	schemaLoader = gojsonschema.NewStringLoader(schemaDoc) //nolint:gochecknoglobals
	didRegex     = regexp.MustCompile(`^did:[a-z0-9]+:(:+|[:a-zA-Z0-9-_\.%]+)*[a-zA-Z0-9-_\.%]+$`)
)

// ErrKeyNotFound is returned when a key reference cannot be resolved within a DID document.
var ErrKeyNotFound = errors.New("key not found in did document")

// DID is parsed according to the generic syntax: https://w3c.github.io/did-core/#generic-did-syntax
type DID struct {
	Scheme           string // Scheme is always "did"
	Method           string // Method is the specific DID methods
	MethodSpecificID string // MethodSpecificID is the unique ID computed or assigned by the DID method
}

// String returns a string representation of this DID.
func (d *DID) String() string {
	return fmt.Sprintf("%s:%s:%s", d.Scheme, d.Method, d.MethodSpecificID)
}

// Parse parses the string according to the generic DID syntax.
// See https://w3c.github.io/did-core/#generic-did-syntax.
func Parse(did string) (*DID, error) {
	if !didRegex.MatchString(did) {
		return nil, fmt.Errorf("invalid did: %s. Make sure it conforms to the generic DID syntax", did)
	}

	parts := strings.SplitN(did, ":", 3)

	return &DID{
		Scheme:           "did",
		Method:           parts[1],
		MethodSpecificID: parts[2],
	}, nil
}

// IsDID reports whether s is a DID (without path, query or fragment).
func IsDID(s string) bool {
	return didRegex.MatchString(s)
}

// Doc DID Document definition.
type Doc struct {
	Context            []string
	ID                 string
	AlsoKnownAs        []string
	VerificationMethod []VerificationMethod
	Authentication     []Verification
	KeyAgreement       []Verification
	Service            []Service
}

// VerificationMethod DID doc verification method.
type VerificationMethod struct {
	ID         string
	Type       string
	Controller string

	Value []byte

	jsonWebKey *jose.JSONWebKey
}

// NewVerificationMethodFromBytes creates a new VerificationMethod based on raw public key bytes.
func NewVerificationMethodFromBytes(id, kType, controller string, value []byte) *VerificationMethod {
	return &VerificationMethod{
		ID:         id,
		Type:       kType,
		Controller: controller,
		Value:      value,
	}
}

// NewVerificationMethodFromJWK creates a new JsonWebKey2020 VerificationMethod.
func NewVerificationMethodFromJWK(id, controller string, jwk *jose.JSONWebKey) (*VerificationMethod, error) {
	value, err := jwkPublicKeyBytes(jwk)
	if err != nil {
		return nil, err
	}

	return &VerificationMethod{
		ID:         id,
		Type:       JSONWebKey2020,
		Controller: controller,
		Value:      value,
		jsonWebKey: jwk,
	}, nil
}

// JSONWebKey returns JSON Web key if verification method public key is JWK.
func (pk *VerificationMethod) JSONWebKey() *jose.JSONWebKey {
	return pk.jsonWebKey
}

// VerificationRelationship defines a verification relationship between DID subject and a verification method.
type VerificationRelationship int

const (
	// VerificationRelationshipGeneral is a special case of verification relationship: when a verification method
	// defined in Verification is not used by any Verification.
	VerificationRelationshipGeneral VerificationRelationship = iota

	// Authentication defines verification relationship.
	Authentication

	// KeyAgreement defines verification relationship.
	KeyAgreement
)

// Verification authentication verification.
type Verification struct {
	VerificationMethod VerificationMethod
	Relationship       VerificationRelationship
	Embedded           bool
}

// NewReferencedVerification creates a new verification which references a verification method of the document.
func NewReferencedVerification(vm *VerificationMethod, r VerificationRelationship) *Verification {
	return &Verification{
		VerificationMethod: *vm,
		Relationship:       r,
	}
}

// NewEmbeddedVerification creates a new verification with an embedded verification method.
func NewEmbeddedVerification(vm *VerificationMethod, r VerificationRelationship) *Verification {
	return &Verification{
		VerificationMethod: *vm,
		Relationship:       r,
		Embedded:           true,
	}
}

// Service DID doc service.
type Service struct {
	ID              string
	Type            string
	Priority        int
	RecipientKeys   []string
	RoutingKeys     []string
	ServiceEndpoint string
	Accept          []string
}

type rawDoc struct {
	Context            interface{}              `json:"@context,omitempty"`
	ID                 string                   `json:"id,omitempty"`
	AlsoKnownAs        []string                 `json:"alsoKnownAs,omitempty"`
	VerificationMethod []map[string]interface{} `json:"verificationMethod,omitempty"`
	PublicKey          []map[string]interface{} `json:"publicKey,omitempty"`
	Service            []map[string]interface{} `json:"service,omitempty"`
	Authentication     []interface{}            `json:"authentication,omitempty"`
	KeyAgreement       []interface{}            `json:"keyAgreement,omitempty"`
}

// ParseDocument creates an instance of DIDDocument by reading a JSON document from bytes.
func ParseDocument(data []byte) (*Doc, error) {
	raw := &rawDoc{}

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("JSON marshalling of did doc bytes bytes failed: %w", err)
	} else if raw == nil {
		return nil, errors.New("document payload is not provided")
	}

	err = validate(data)
	if err != nil {
		return nil, err
	}

	rawVMs := raw.VerificationMethod
	if len(rawVMs) == 0 {
		rawVMs = raw.PublicKey
	}

	vms, err := populateVerificationMethods(raw.ID, rawVMs)
	if err != nil {
		return nil, fmt.Errorf("populate verification methods failed: %w", err)
	}

	auths, err := populateVerifications(raw.ID, raw.Authentication, vms, Authentication)
	if err != nil {
		return nil, fmt.Errorf("populate authentications failed: %w", err)
	}

	keyAgreements, err := populateVerifications(raw.ID, raw.KeyAgreement, vms, KeyAgreement)
	if err != nil {
		return nil, fmt.Errorf("populate key agreements failed: %w", err)
	}

	return &Doc{
		Context:            raw.parseContext(),
		ID:                 raw.ID,
		AlsoKnownAs:        raw.AlsoKnownAs,
		VerificationMethod: vms,
		Authentication:     auths,
		KeyAgreement:       keyAgreements,
		Service:            populateServices(raw.Service),
	}, nil
}

// UnmarshalJSON unmarshals a DID Document.
func (doc *Doc) UnmarshalJSON(data []byte) error {
	parsed, err := ParseDocument(data)
	if err != nil {
		return err
	}

	*doc = *parsed

	return nil
}

// MarshalJSON marshals the DID Document.
func (doc *Doc) MarshalJSON() ([]byte, error) {
	return doc.JSONBytes()
}

// JSONBytes converts document to json bytes.
func (doc *Doc) JSONBytes() ([]byte, error) {
	vms := make([]map[string]interface{}, 0, len(doc.VerificationMethod))
	for i := range doc.VerificationMethod {
		vms = append(vms, populateRawVerificationMethod(&doc.VerificationMethod[i]))
	}

	raw := &rawDoc{
		Context:            doc.contextValue(),
		ID:                 doc.ID,
		AlsoKnownAs:        doc.AlsoKnownAs,
		VerificationMethod: vms,
		Service:            populateRawServices(doc.Service),
		Authentication:     populateRawVerifications(doc.Authentication),
		KeyAgreement:       populateRawVerifications(doc.KeyAgreement),
	}

	byteDoc, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("JSON marshalling of document failed: %w", err)
	}

	return byteDoc, nil
}

func (doc *Doc) contextValue() interface{} {
	switch len(doc.Context) {
	case 0:
		return nil
	case 1:
		return doc.Context[0]
	default:
		return doc.Context
	}
}

func validate(data []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validation of DID doc failed: %w", err)
	}

	if !result.Valid() {
		errMsg := "did document not valid:\n"
		for _, desc := range result.Errors() {
			errMsg += fmt.Sprintf("- %s\n", desc)
		}

		return errors.New(errMsg)
	}

	return nil
}

func (r *rawDoc) parseContext() []string {
	switch ctx := r.Context.(type) {
	case []interface{}:
		var context []string

		for _, v := range ctx {
			if s, ok := v.(string); ok {
				context = append(context, s)
			}
		}

		return context
	case string:
		return []string{ctx}
	}

	return nil
}

func populateVerificationMethods(didID string, rawVMs []map[string]interface{}) ([]VerificationMethod, error) {
	var vms []VerificationMethod

	for _, rawVM := range rawVMs {
		vm, err := populateVerificationMethod(didID, rawVM)
		if err != nil {
			return nil, err
		}

		vms = append(vms, *vm)
	}

	return vms, nil
}

func populateVerificationMethod(didID string, rawVM map[string]interface{}) (*VerificationMethod, error) {
	controller := stringEntry(rawVM[jsonldController])
	if controller == "" {
		controller = didID
	}

	vm := &VerificationMethod{
		ID:         stringEntry(rawVM[jsonldID]),
		Type:       stringEntry(rawVM[jsonldType]),
		Controller: controller,
	}

	err := decodeVM(vm, rawVM)
	if err != nil {
		return nil, err
	}

	return vm, nil
}

func decodeVM(vm *VerificationMethod, rawVM map[string]interface{}) error {
	if b58 := stringEntry(rawVM[jsonldPublicKeyBase58]); b58 != "" {
		vm.Value = base58.Decode(b58)

		return nil
	}

	if mb := stringEntry(rawVM[jsonldPublicKeyMultibase]); mb != "" {
		value, err := decodeMultibaseKey(mb)
		if err != nil {
			return err
		}

		vm.Value = value

		return nil
	}

	if jwkMap := mapEntry(rawVM[jsonldPublicKeyjwk]); jwkMap != nil {
		return decodeVMJwk(jwkMap, vm)
	}

	return fmt.Errorf("verification method %s: public key encoding not supported", vm.ID)
}

func decodeMultibaseKey(value string) ([]byte, error) {
	_, decoded, err := multibase.Decode(value)
	if err != nil {
		return nil, fmt.Errorf("decode publicKeyMultibase: %w", err)
	}

	if len(decoded) == ed25519.PublicKeySize {
		return decoded, nil
	}

	code, n, err := varint.FromUvarint(decoded)
	if err != nil {
		return nil, fmt.Errorf("decode publicKeyMultibase multicodec: %w", err)
	}

	if code != ed25519PubKeyMultiCodec && code != x25519PubKeyMultiCodec {
		return nil, fmt.Errorf("unsupported publicKeyMultibase multicodec %#x", code)
	}

	return decoded[n:], nil
}

func decodeVMJwk(jwkMap map[string]interface{}, vm *VerificationMethod) error {
	jwkBytes, err := json.Marshal(jwkMap)
	if err != nil {
		return fmt.Errorf("failed to marshal '%s', cause: %w ", jsonldPublicKeyjwk, err)
	}

	var jwk jose.JSONWebKey

	err = json.Unmarshal(jwkBytes, &jwk)
	if err != nil {
		return fmt.Errorf("unmarshal JWK: %w", err)
	}

	value, err := jwkPublicKeyBytes(&jwk)
	if err != nil {
		return err
	}

	vm.Value = value
	vm.jsonWebKey = &jwk

	return nil
}

func jwkPublicKeyBytes(jwk *jose.JSONWebKey) ([]byte, error) {
	switch key := jwk.Key.(type) {
	case ed25519.PublicKey:
		return key, nil
	case ed25519.PrivateKey:
		return nil, errors.New("JWK must hold a public key")
	default:
		return nil, fmt.Errorf("unsupported JWK key type %T", jwk.Key)
	}
}

func populateVerifications(didID string, rawVerifications []interface{}, vms []VerificationMethod,
	relationship VerificationRelationship) ([]Verification, error) {
	var verifications []Verification

	for _, rawVerification := range rawVerifications {
		v, err := getVerification(didID, rawVerification, vms, relationship)
		if err != nil {
			return nil, err
		}

		verifications = append(verifications, *v)
	}

	return verifications, nil
}

func getVerification(didID string, rawVerification interface{}, vms []VerificationMethod,
	relationship VerificationRelationship) (*Verification, error) {
	if keyID, ok := rawVerification.(string); ok {
		return referencedVerification(didID, keyID, vms, relationship)
	}

	m, ok := rawVerification.(map[string]interface{})
	if !ok {
		return nil, errors.New("verification is not map[string]interface{}")
	}

	// legacy form: {"type": "...", "publicKey": "<key id>"}
	if keyID, ok := m[jsonldPublicKey].(string); ok {
		return referencedVerification(didID, keyID, vms, relationship)
	}

	vm, err := populateVerificationMethod(didID, m)
	if err != nil {
		return nil, err
	}

	return NewEmbeddedVerification(vm, relationship), nil
}

func referencedVerification(didID, keyID string, vms []VerificationMethod,
	relationship VerificationRelationship) (*Verification, error) {
	vm, ok := lookupVerificationMethod(didID, keyID, vms)
	if !ok {
		return nil, fmt.Errorf("verification method %s not exist in did doc: %w", keyID, ErrKeyNotFound)
	}

	return NewReferencedVerification(vm, relationship), nil
}

func populateServices(rawServices []map[string]interface{}) []Service {
	services := make([]Service, 0, len(rawServices))

	for _, rawService := range rawServices {
		service := Service{
			ID:              stringEntry(rawService[jsonldID]),
			Type:            stringEntry(rawService[jsonldType]),
			ServiceEndpoint: serviceEndpointEntry(rawService[jsonldServicePoint]),
			RecipientKeys:   stringArray(rawService[jsonldRecipientKeys]),
			RoutingKeys:     stringArray(rawService[jsonldRoutingKeys]),
			Accept:          stringArray(rawService[jsonldAccept]),
			Priority:        intEntry(rawService[jsonldPriority]),
		}

		if len(service.RoutingKeys) == 0 {
			// DIDComm v2 keeps routing keys inside the endpoint object.
			if endpoint := mapEntry(rawService[jsonldServicePoint]); endpoint != nil {
				service.RoutingKeys = stringArray(endpoint[jsonldRoutingKeys])
				service.Accept = stringArray(endpoint[jsonldAccept])
			}
		}

		services = append(services, service)
	}

	return services
}

func populateRawVerificationMethod(vm *VerificationMethod) map[string]interface{} {
	rawVM := map[string]interface{}{
		jsonldID:   vm.ID,
		jsonldType: vm.Type,
	}

	if vm.Controller != "" {
		rawVM[jsonldController] = vm.Controller
	}

	switch {
	case vm.jsonWebKey != nil:
		rawVM[jsonldPublicKeyjwk] = vm.jsonWebKey
	case vm.Type == Ed25519VerificationKey2020 || vm.Type == Multikey:
		prefixed := append(varint.ToUvarint(ed25519PubKeyMultiCodec), vm.Value...)
		// base58btc never fails to encode.
		mb, _ := multibase.Encode(multibase.Base58BTC, prefixed) //nolint:errcheck
		rawVM[jsonldPublicKeyMultibase] = mb
	default:
		rawVM[jsonldPublicKeyBase58] = base58.Encode(vm.Value)
	}

	return rawVM
}

func populateRawVerifications(verifications []Verification) []interface{} {
	var rawVerifications []interface{}

	for i := range verifications {
		if verifications[i].Embedded {
			rawVerifications = append(rawVerifications,
				populateRawVerificationMethod(&verifications[i].VerificationMethod))

			continue
		}

		rawVerifications = append(rawVerifications, verifications[i].VerificationMethod.ID)
	}

	return rawVerifications
}

func populateRawServices(services []Service) []map[string]interface{} {
	var rawServices []map[string]interface{}

	for i := range services {
		rawService := map[string]interface{}{
			jsonldID:           services[i].ID,
			jsonldType:         services[i].Type,
			jsonldServicePoint: services[i].ServiceEndpoint,
		}

		if services[i].Type != DIDCommV2ServiceType {
			rawService[jsonldPriority] = services[i].Priority
			rawService[jsonldRecipientKeys] = nonNil(services[i].RecipientKeys)
		}

		if len(services[i].RoutingKeys) > 0 || services[i].Type != DIDCommV2ServiceType {
			rawService[jsonldRoutingKeys] = nonNil(services[i].RoutingKeys)
		}

		if len(services[i].Accept) > 0 {
			rawService[jsonldAccept] = services[i].Accept
		}

		rawServices = append(rawServices, rawService)
	}

	return rawServices
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}

	return values
}

func stringEntry(entry interface{}) string {
	s, _ := entry.(string) //nolint:errcheck

	return s
}

func intEntry(entry interface{}) int {
	switch v := entry.(type) {
	case float64:
		return int(v)
	case int:
		return v
	}

	return 0
}

func serviceEndpointEntry(entry interface{}) string {
	switch v := entry.(type) {
	case string:
		return v
	case map[string]interface{}:
		return stringEntry(v["uri"])
	case []interface{}:
		if len(v) > 0 {
			return serviceEndpointEntry(v[0])
		}
	}

	return ""
}

func stringArray(entry interface{}) []string {
	entries, ok := entry.([]interface{})
	if !ok {
		return nil
	}

	var result []string

	for _, e := range entries {
		if s, ok := e.(string); ok {
			result = append(result, s)
		}
	}

	return result
}

func mapEntry(entry interface{}) map[string]interface{} {
	m, _ := entry.(map[string]interface{}) //nolint:errcheck

	return m
}
