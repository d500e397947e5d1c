/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-connections-go/pkg/internal/storeutil"
)

const (
	// Namespace of the connection store.
	Namespace = "connections"

	connKeyPrefix = "conn_"

	roleTag             = "role"
	stateTag            = "state"
	threadIDTag         = "threadId"
	theirDIDTag         = "theirDid"
	didTag              = "did"
	outOfBandIDTag      = "outOfBandId"
	invitationDIDTag    = "invitationDid"
	connectionTypeTag   = "connectionType"
	previousDIDTag      = "previousDid"
	previousTheirDIDTag = "previousTheirDid"
)

var logger = log.New("aries-framework/store/connection")

var (
	// ErrNotFound is returned when no connection record matches.
	ErrNotFound = errors.New("connection record not found")
	// ErrVersionConflict is returned when the stored record changed since the caller read it.
	ErrVersionConflict = errors.New("connection record was modified concurrently")
	// ErrAlreadyExists is returned by Save for an existing connection id.
	ErrAlreadyExists = errors.New("connection record already exists")
	// ErrThreadIDChanged is returned when an update tries to change an assigned thread id.
	ErrThreadIDChanged = errors.New("connection thread id cannot be changed")
	// ErrAmbiguous is returned when a single record query matches more than one record.
	ErrAmbiguous = errors.New("more than one connection record found")
)

// Query selects connection records. Empty fields are not constrained; every
// listed connection type must be present.
type Query struct {
	Role             Role
	State            State
	ThreadID         string
	TheirDID         string
	DID              string
	OutOfBandID      string
	InvitationDID    string
	ConnectionTypes  []string
	PreviousDID      string
	PreviousTheirDID string
}

type provider interface {
	StorageProvider() storage.Provider
}

// Store persists connection records.
type Store struct {
	store storage.Store
	locks sync.Map
}

// New returns a new connection store.
func New(p provider) (*Store, error) {
	store, err := p.StorageProvider().OpenStore(Namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection store: %w", err)
	}

	err = p.StorageProvider().SetStoreConfig(Namespace, storage.StoreConfiguration{TagNames: []string{
		roleTag, stateTag, threadIDTag, theirDIDTag, didTag, outOfBandIDTag, invitationDIDTag,
		connectionTypeTag, previousDIDTag, previousTheirDIDTag,
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to set store config in connection store: %w", err)
	}

	return &Store{store: store}, nil
}

// Save persists a new record. An empty connection id is assigned.
func (s *Store) Save(rec *Record) error {
	if rec.ConnectionID == "" {
		rec.ConnectionID = uuid.New().String()
	}

	unlock := s.lock(rec.ConnectionID)
	defer unlock()

	_, err := s.store.Get(connKeyPrefix + rec.ConnectionID)
	if err == nil {
		return fmt.Errorf("save %s: %w", rec.ConnectionID, ErrAlreadyExists)
	}

	if !errors.Is(err, storage.ErrDataNotFound) {
		return fmt.Errorf("save %s: %w", rec.ConnectionID, err)
	}

	now := time.Now().UTC()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}

	rec.UpdatedAt = now
	rec.Version = 1

	return s.put(rec)
}

// Update overwrites a stored record. The caller's Version must match the stored version; on
// success Version is incremented.
func (s *Store) Update(rec *Record) error {
	unlock := s.lock(rec.ConnectionID)
	defer unlock()

	stored, err := s.GetByID(rec.ConnectionID)
	if err != nil {
		return err
	}

	if stored.Version != rec.Version {
		return fmt.Errorf("update %s (version %d, stored %d): %w",
			rec.ConnectionID, rec.Version, stored.Version, ErrVersionConflict)
	}

	if stored.ThreadID != "" && stored.ThreadID != rec.ThreadID {
		return fmt.Errorf("update %s: %w", rec.ConnectionID, ErrThreadIDChanged)
	}

	rec.Version++
	rec.UpdatedAt = time.Now().UTC()

	if err := s.put(rec); err != nil {
		rec.Version--

		return err
	}

	return nil
}

// GetByID returns the record or an error wrapping ErrNotFound.
func (s *Store) GetByID(id string) (*Record, error) {
	var rec Record

	err := storeutil.GetAndUnmarshal(s.store, connKeyPrefix+id, &rec)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, fmt.Errorf("connection %s: %w", id, ErrNotFound)
		}

		return nil, fmt.Errorf("get connection %s: %w", id, err)
	}

	return &rec, nil
}

// FindByID returns the record, or nil when it does not exist.
func (s *Store) FindByID(id string) (*Record, error) {
	rec, err := s.GetByID(id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}

	return rec, err
}

// Delete removes a record.
func (s *Store) Delete(id string) error {
	unlock := s.lock(id)
	defer unlock()

	if err := s.store.Delete(connKeyPrefix + id); err != nil {
		return fmt.Errorf("delete connection %s: %w", id, err)
	}

	s.locks.Delete(id)

	return nil
}

// GetAll returns every record.
func (s *Store) GetAll() ([]*Record, error) {
	return s.query(roleTag, &Query{})
}

// FindByQuery returns the records matching q.
func (s *Store) FindByQuery(q *Query) ([]*Record, error) {
	return s.query(q.expression(), q)
}

// FindSingleByQuery returns the single matching record, nil when none match, or ErrAmbiguous.
func (s *Store) FindSingleByQuery(q *Query) (*Record, error) {
	records, err := s.FindByQuery(q)
	if err != nil {
		return nil, err
	}

	switch len(records) {
	case 0:
		return nil, nil
	case 1:
		return records[0], nil
	default:
		return nil, fmt.Errorf("%d records: %w", len(records), ErrAmbiguous)
	}
}

// GetSingleByQuery is FindSingleByQuery that fails with ErrNotFound when nothing matches.
func (s *Store) GetSingleByQuery(q *Query) (*Record, error) {
	rec, err := s.FindSingleByQuery(q)
	if err != nil {
		return nil, err
	}

	if rec == nil {
		return nil, ErrNotFound
	}

	return rec, nil
}

func (s *Store) query(expression string, q *Query) ([]*Record, error) {
	values, err := storeutil.QueryValues(s.store, expression)
	if err != nil {
		return nil, fmt.Errorf("query connections: %w", err)
	}

	var records []*Record

	for _, v := range values {
		var rec Record

		if err := json.Unmarshal(v, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal connection record: %w", err)
		}

		if q.matches(&rec) {
			records = append(records, &rec)
		}
	}

	return records, nil
}

func (s *Store) put(rec *Record) error {
	if err := storeutil.MarshalAndSave(s.store, connKeyPrefix+rec.ConnectionID, rec, tags(rec)...); err != nil {
		return fmt.Errorf("failed to save connection record: %w", err)
	}

	logger.Debugf("stored connection %s state=%s version=%d", rec.ConnectionID, rec.State, rec.Version)

	return nil
}

func (s *Store) lock(id string) func() {
	m, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := m.(*sync.Mutex) //nolint:forcetypeassert

	mu.Lock()

	return mu.Unlock
}

func tags(rec *Record) []storage.Tag {
	t := []storage.Tag{
		{Name: roleTag, Value: string(rec.Role)},
		{Name: stateTag, Value: string(rec.State)},
	}

	add := func(name, value string) {
		if value != "" {
			t = append(t, storage.Tag{Name: name, Value: storeutil.HashTag(value)})
		}
	}

	add(threadIDTag, rec.ThreadID)
	add(theirDIDTag, rec.TheirDID)
	add(didTag, rec.DID)
	add(outOfBandIDTag, rec.OutOfBandID)
	add(invitationDIDTag, rec.InvitationDID)

	for _, v := range rec.ConnectionTypes {
		add(connectionTypeTag, v)
	}

	for _, v := range rec.PreviousDIDs {
		add(previousDIDTag, v)
	}

	for _, v := range rec.PreviousTheirDIDs {
		add(previousTheirDIDTag, v)
	}

	return t
}

// expression picks the most selective indexed tag; the remaining fields are matched in memory.
func (q *Query) expression() string {
	hashed := func(name, value string) string {
		return storeutil.Expression(name, storeutil.HashTag(value))
	}

	switch {
	case q.ThreadID != "":
		return hashed(threadIDTag, q.ThreadID)
	case q.TheirDID != "":
		return hashed(theirDIDTag, q.TheirDID)
	case q.DID != "":
		return hashed(didTag, q.DID)
	case q.OutOfBandID != "":
		return hashed(outOfBandIDTag, q.OutOfBandID)
	case q.InvitationDID != "":
		return hashed(invitationDIDTag, q.InvitationDID)
	case q.PreviousTheirDID != "":
		return hashed(previousTheirDIDTag, q.PreviousTheirDID)
	case q.PreviousDID != "":
		return hashed(previousDIDTag, q.PreviousDID)
	case len(q.ConnectionTypes) > 0:
		return hashed(connectionTypeTag, q.ConnectionTypes[0])
	case q.State != "":
		return storeutil.Expression(stateTag, string(q.State))
	case q.Role != "":
		return storeutil.Expression(roleTag, string(q.Role))
	default:
		return roleTag
	}
}

func (q *Query) matches(rec *Record) bool {
	if q.Role != "" && rec.Role != q.Role ||
		q.State != "" && rec.State != q.State ||
		q.ThreadID != "" && rec.ThreadID != q.ThreadID ||
		q.TheirDID != "" && rec.TheirDID != q.TheirDID ||
		q.DID != "" && rec.DID != q.DID ||
		q.OutOfBandID != "" && rec.OutOfBandID != q.OutOfBandID ||
		q.InvitationDID != "" && rec.InvitationDID != q.InvitationDID {
		return false
	}

	if q.PreviousDID != "" && !contains(rec.PreviousDIDs, q.PreviousDID) ||
		q.PreviousTheirDID != "" && !contains(rec.PreviousTheirDIDs, q.PreviousTheirDID) {
		return false
	}

	for _, ct := range q.ConnectionTypes {
		if !rec.HasConnectionType(ct) {
			return false
		}
	}

	return true
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}

	return false
}
