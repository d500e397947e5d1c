/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package outofband

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-connections-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-connections-go/pkg/internal/storeutil"
)

const (
	// Namespace of the out-of-band store.
	Namespace = "outofband"

	recordKeyPrefix = "oob_"

	roleTag            = "role"
	stateTag           = "state"
	invitationIDTag    = "invitationId"
	recipientKeyTag    = "recipientKey"
	requestThreadIDTag = "requestThreadId"
	invitationDIDTag   = "invitationDid"
)

var logger = log.New("aries-framework/out-of-band/service")

// ErrNotFound is returned when no out-of-band record matches.
var ErrNotFound = errors.New("out-of-band record not found")

// Provider provides this service's dependencies.
type Provider interface {
	StorageProvider() storage.Provider
	EventBus() *event.Bus
	ContextID() string
}

// Service stores out-of-band records and emits their state changes.
type Service struct {
	store     storage.Store
	bus       *event.Bus
	contextID string
}

// New creates a new instance of the out-of-band service.
func New(p Provider) (*Service, error) {
	store, err := p.StorageProvider().OpenStore(Namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to open the store : %w", err)
	}

	err = p.StorageProvider().SetStoreConfig(Namespace, storage.StoreConfiguration{TagNames: []string{
		roleTag, stateTag, invitationIDTag, recipientKeyTag, requestThreadIDTag, invitationDIDTag,
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to set store configuration : %w", err)
	}

	return &Service{store: store, bus: p.EventBus(), contextID: p.ContextID()}, nil
}

// Save stores a new record.
func (s *Service) Save(rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	if rec.InvitationID == "" {
		return errors.New("invitation id is mandatory")
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	return s.put(rec)
}

// Update overwrites a stored record without emitting an event.
func (s *Service) Update(rec *Record) error {
	if _, err := s.GetByID(rec.ID); err != nil {
		return err
	}

	return s.put(rec)
}

// UpdateState persists the new state then emits event.OutOfBandStateChanged.
func (s *Service) UpdateState(rec *Record, next State) error {
	previous := rec.State
	rec.State = next

	if err := s.Update(rec); err != nil {
		rec.State = previous

		return fmt.Errorf("update out-of-band state : %w", err)
	}

	s.bus.Emit(s.contextID, event.OutOfBandStateChanged, &StateChanged{Record: rec.clone(), PreviousState: previous})

	return nil
}

// GetByID returns the record or an error wrapping ErrNotFound.
func (s *Service) GetByID(id string) (*Record, error) {
	var rec Record

	err := storeutil.GetAndUnmarshal(s.store, recordKeyPrefix+id, &rec)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, fmt.Errorf("out-of-band record %s : %w", id, ErrNotFound)
		}

		return nil, fmt.Errorf("get out-of-band record : %w", err)
	}

	return &rec, nil
}

// FindByID returns the record, or nil when it does not exist.
func (s *Service) FindByID(id string) (*Record, error) {
	rec, err := s.GetByID(id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}

	return rec, err
}

// DeleteByID removes a record.
func (s *Service) DeleteByID(id string) error {
	return s.store.Delete(recordKeyPrefix + id)
}

// GetAll returns every record.
func (s *Service) GetAll() ([]*Record, error) {
	return s.query(roleTag, nil)
}

// FindByInvitationID returns the record of the given role created for an invitation, or nil.
func (s *Service) FindByInvitationID(invitationID string, role Role) (*Record, error) {
	return s.single(storeutil.Expression(invitationIDTag, storeutil.HashTag(invitationID)), func(r *Record) bool {
		return role == "" || r.Role == role
	})
}

// FindByRecipientKey returns the record whose invitation advertised the recipient key, or nil.
func (s *Service) FindByRecipientKey(fp string) (*Record, error) {
	return s.single(storeutil.Expression(recipientKeyTag, fp), nil)
}

// FindByInvitationDID returns the record whose invitation used the given DID, or nil.
func (s *Service) FindByInvitationDID(didID string) (*Record, error) {
	return s.single(storeutil.Expression(invitationDIDTag, storeutil.HashTag(didID)), nil)
}

// FindByRequestThreadID returns the record whose invitation carried a request with the thread id, or nil.
// A non-empty invitation id and role further narrow the match.
func (s *Service) FindByRequestThreadID(threadID, invitationID string, role Role) (*Record, error) {
	return s.single(storeutil.Expression(requestThreadIDTag, storeutil.HashTag(threadID)), func(r *Record) bool {
		return (invitationID == "" || r.InvitationID == invitationID) && (role == "" || r.Role == role)
	})
}

func (s *Service) single(expression string, filter func(*Record) bool) (*Record, error) {
	records, err := s.query(expression, filter)
	if err != nil {
		return nil, err
	}

	switch len(records) {
	case 0:
		return nil, nil
	case 1:
		return records[0], nil
	default:
		return nil, fmt.Errorf("%d out-of-band records match %s", len(records), expression)
	}
}

func (s *Service) query(expression string, filter func(*Record) bool) ([]*Record, error) {
	values, err := storeutil.QueryValues(s.store, expression)
	if err != nil {
		return nil, fmt.Errorf("query out-of-band records : %w", err)
	}

	var records []*Record

	for _, v := range values {
		var rec Record

		if err := json.Unmarshal(v, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal out-of-band record : %w", err)
		}

		if filter == nil || filter(&rec) {
			records = append(records, &rec)
		}
	}

	return records, nil
}

func (s *Service) put(rec *Record) error {
	tags := []storage.Tag{
		{Name: roleTag, Value: string(rec.Role)},
		{Name: stateTag, Value: string(rec.State)},
		{Name: invitationIDTag, Value: storeutil.HashTag(rec.InvitationID)},
	}

	for _, fp := range rec.RecipientKeyFingerprints {
		tags = append(tags, storage.Tag{Name: recipientKeyTag, Value: fp})
	}

	for _, thid := range rec.InvitationRequestsThreadIDs {
		tags = append(tags, storage.Tag{Name: requestThreadIDTag, Value: storeutil.HashTag(thid)})
	}

	for _, d := range rec.InvitationDIDs {
		tags = append(tags, storage.Tag{Name: invitationDIDTag, Value: storeutil.HashTag(d)})
	}

	if err := storeutil.MarshalAndSave(s.store, recordKeyPrefix+rec.ID, rec, tags...); err != nil {
		return fmt.Errorf("failed to save out-of-band record : %w", err)
	}

	logger.Debugf("stored out-of-band record %s role=%s state=%s", rec.ID, rec.Role, rec.State)

	return nil
}
