/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package did

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-connections-go/pkg/doc/did"
	"github.com/hyperledger/aries-connections-go/pkg/internal/storeutil"
)

const (
	// NameSpace for did store.
	NameSpace = "didstore"

	recordKeyPrefix = "didrecord_"

	roleTag           = "role"
	didTag            = "did"
	recipientKeyTag   = "recipientKey"
	alternativeDIDTag = "alternativeDid"
)

// Role of a DID record.
type Role string

const (
	// RoleCreated is a DID this agent created and holds the keys of.
	RoleCreated Role = "created"
	// RoleReceived is a DID of another party.
	RoleReceived Role = "received"
)

var logger = log.New("aries-framework/store/did")

var (
	// ErrNotFound is returned when no DID record matches.
	ErrNotFound = errors.New("did record not found")
	// ErrKeysInUse is returned when a created DID reuses a recipient key of another created DID.
	ErrKeysInUse = errors.New("recipient key already used by a created did")
	// ErrAmbiguous is returned when more than one record matches a single record query.
	ErrAmbiguous = errors.New("more than one did record found")
)

// DocumentKey links a key id relative to the DID document to the key handle in the KMS.
type DocumentKey struct {
	RelativeKeyID string `json:"relativeKeyId"`
	KeyHandle     string `json:"keyHandle"`
}

// Record is a DID with its document, created by this agent or received from another party.
type Record struct {
	ID                       string        `json:"id"`
	DID                      string        `json:"did"`
	Role                     Role          `json:"role"`
	Doc                      *did.Doc      `json:"didDocument,omitempty"`
	Keys                     []DocumentKey `json:"keys,omitempty"`
	RecipientKeyFingerprints []string      `json:"recipientKeyFingerprints,omitempty"`
	AlternativeDIDs          []string      `json:"alternativeDids,omitempty"`
	CreatedAt                time.Time     `json:"createdAt"`
}

// KeyHandle returns the KMS key handle of the document key with the given relative id.
func (r *Record) KeyHandle(relativeKeyID string) (string, bool) {
	for _, k := range r.Keys {
		if k.RelativeKeyID == relativeKeyID {
			return k.KeyHandle, true
		}
	}

	return "", false
}

// Store stores did records.
type Store struct {
	store storage.Store
}

type provider interface {
	StorageProvider() storage.Provider
}

// New returns a new did store.
func New(ctx provider) (*Store, error) {
	store, err := ctx.StorageProvider().OpenStore(NameSpace)
	if err != nil {
		return nil, fmt.Errorf("failed to open did store: %w", err)
	}

	err = ctx.StorageProvider().SetStoreConfig(NameSpace, storage.StoreConfiguration{
		TagNames: []string{roleTag, didTag, recipientKeyTag, alternativeDIDTag},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set store configuration: %w", err)
	}

	return &Store{store: store}, nil
}

// Save saves a new did record. Recipient key fingerprints are derived from the document when not set.
func (s *Store) Save(rec *Record) error {
	if rec.DID == "" {
		return errors.New("did is mandatory")
	}

	if rec.Role != RoleCreated && rec.Role != RoleReceived {
		return fmt.Errorf("invalid did record role %q", rec.Role)
	}

	if len(rec.Keys) > 0 && rec.Role != RoleCreated {
		return fmt.Errorf("keys can only be provided for did records with role %s", RoleCreated)
	}

	if len(rec.RecipientKeyFingerprints) == 0 && rec.Doc != nil {
		fps, err := rec.Doc.RecipientKeyFingerprints()
		if err != nil {
			return fmt.Errorf("recipient keys of %s: %w", rec.DID, err)
		}

		rec.RecipientKeyFingerprints = fps
	}

	if rec.Role == RoleCreated {
		if err := s.assertNoCreatedDIDForKeys(rec.DID, rec.RecipientKeyFingerprints); err != nil {
			return err
		}
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	return s.put(rec)
}

// Update overwrites an existing did record.
func (s *Store) Update(rec *Record) error {
	if _, err := s.GetByID(rec.ID); err != nil {
		return err
	}

	return s.put(rec)
}

// Delete removes a did record.
func (s *Store) Delete(id string) error {
	return s.store.Delete(recordKeyPrefix + id)
}

// GetByID returns the record with the given id.
func (s *Store) GetByID(id string) (*Record, error) {
	var rec Record

	err := storeutil.GetAndUnmarshal(s.store, recordKeyPrefix+id, &rec)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, fmt.Errorf("did record %s: %w", id, ErrNotFound)
		}

		return nil, fmt.Errorf("get did record: %w", err)
	}

	return &rec, nil
}

// GetCreated returns the created record of a DID (or of one of its alternative DIDs).
func (s *Store) GetCreated(didID string) (*Record, error) {
	return s.getByDID(didID, RoleCreated)
}

// GetReceived returns the received record of a DID (or of one of its alternative DIDs).
func (s *Store) GetReceived(didID string) (*Record, error) {
	return s.getByDID(didID, RoleReceived)
}

// FindCreatedByRecipientKey returns the created DID record that owns the recipient key fingerprint.
func (s *Store) FindCreatedByRecipientKey(fp string) (*Record, error) {
	return s.findSingle(storeutil.Expression(recipientKeyTag, fp), RoleCreated, fp)
}

// FindReceivedByRecipientKey returns the received DID record with the recipient key fingerprint.
func (s *Store) FindReceivedByRecipientKey(fp string) (*Record, error) {
	return s.findSingle(storeutil.Expression(recipientKeyTag, fp), RoleReceived, fp)
}

// FindAllByRecipientKey returns every DID record with the recipient key fingerprint.
func (s *Store) FindAllByRecipientKey(fp string) ([]*Record, error) {
	return s.query(storeutil.Expression(recipientKeyTag, fp), "")
}

// GetAll returns every did record with the given role, or all of them when role is empty.
func (s *Store) GetAll(role Role) ([]*Record, error) {
	if role == "" {
		return s.query(roleTag, "")
	}

	return s.query(storeutil.Expression(roleTag, string(role)), "")
}

func (s *Store) getByDID(didID string, role Role) (*Record, error) {
	rec, err := s.findSingle(storeutil.Expression(didTag, storeutil.HashTag(didID)), role, didID)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return rec, err
	}

	return s.findSingle(storeutil.Expression(alternativeDIDTag, storeutil.HashTag(didID)), role, didID)
}

func (s *Store) findSingle(expression string, role Role, what string) (*Record, error) {
	records, err := s.query(expression, role)
	if err != nil {
		return nil, err
	}

	switch len(records) {
	case 0:
		return nil, fmt.Errorf("%s did %s: %w", role, what, ErrNotFound)
	case 1:
		return records[0], nil
	default:
		return nil, fmt.Errorf("%s did %s: %w", role, what, ErrAmbiguous)
	}
}

func (s *Store) query(expression string, role Role) ([]*Record, error) {
	values, err := storeutil.QueryValues(s.store, expression)
	if err != nil {
		return nil, fmt.Errorf("query did records: %w", err)
	}

	var records []*Record

	for _, v := range values {
		var rec Record

		if err := json.Unmarshal(v, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal did record: %w", err)
		}

		if role == "" || rec.Role == role {
			records = append(records, &rec)
		}
	}

	return records, nil
}

func (s *Store) assertNoCreatedDIDForKeys(didID string, fps []string) error {
	for _, fp := range fps {
		records, err := s.query(storeutil.Expression(recipientKeyTag, fp), RoleCreated)
		if err != nil {
			return err
		}

		for _, r := range records {
			if r.DID != didID {
				return fmt.Errorf("%w: %s is used by %s", ErrKeysInUse, fp, r.DID)
			}
		}
	}

	return nil
}

func (s *Store) put(rec *Record) error {
	tags := []storage.Tag{
		{Name: roleTag, Value: string(rec.Role)},
		{Name: didTag, Value: storeutil.HashTag(rec.DID)},
	}

	for _, fp := range rec.RecipientKeyFingerprints {
		tags = append(tags, storage.Tag{Name: recipientKeyTag, Value: fp})
	}

	for _, alt := range rec.AlternativeDIDs {
		tags = append(tags, storage.Tag{Name: alternativeDIDTag, Value: storeutil.HashTag(alt)})
	}

	if err := storeutil.MarshalAndSave(s.store, recordKeyPrefix+rec.ID, rec, tags...); err != nil {
		return fmt.Errorf("failed to save did record: %w", err)
	}

	logger.Debugf("saved %s did record %s", rec.Role, rec.DID)

	return nil
}
