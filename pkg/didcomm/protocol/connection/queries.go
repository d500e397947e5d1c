/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"errors"
	"fmt"

	connectionstore "github.com/hyperledger/aries-connections-go/pkg/store/connection"
	didstore "github.com/hyperledger/aries-connections-go/pkg/store/did"
)

// GetAll returns every connection.
func (s *Service) GetAll() ([]*connectionstore.Record, error) {
	return s.connections.GetAll()
}

// GetByID returns the connection or an error wrapping connectionstore.ErrNotFound.
func (s *Service) GetByID(id string) (*connectionstore.Record, error) {
	return s.connections.GetByID(id)
}

// FindByID returns the connection, or nil.
func (s *Service) FindByID(id string) (*connectionstore.Record, error) {
	return s.connections.FindByID(id)
}

// DeleteByID deletes a connection.
func (s *Service) DeleteByID(id string) error {
	return s.connections.Delete(id)
}

// FindAllByQuery returns the connections matching q.
func (s *Service) FindAllByQuery(q *connectionstore.Query) ([]*connectionstore.Record, error) {
	return s.connections.FindByQuery(q)
}

// FindByDIDs returns the connection between our DID and their DID. A connection whose counterparty rotated
// away from theirDID also matches.
func (s *Service) FindByDIDs(ourDID, theirDID string) (*connectionstore.Record, error) {
	rec, err := s.connections.FindSingleByQuery(&connectionstore.Query{DID: ourDID, TheirDID: theirDID})
	if err != nil || rec != nil {
		return rec, err
	}

	return s.connections.FindSingleByQuery(&connectionstore.Query{DID: ourDID, PreviousTheirDID: theirDID})
}

// GetByThreadID returns the connection of a handshake thread.
func (s *Service) GetByThreadID(threadID string) (*connectionstore.Record, error) {
	return s.connections.GetSingleByQuery(&connectionstore.Query{ThreadID: threadID})
}

// GetByRoleAndThreadID returns the connection with the given role in a handshake thread.
func (s *Service) GetByRoleAndThreadID(role connectionstore.Role, threadID string) (*connectionstore.Record,
	error) {
	return s.connections.GetSingleByQuery(&connectionstore.Query{Role: role, ThreadID: threadID})
}

// FindByTheirDID returns the connection with the other party's DID, or nil.
func (s *Service) FindByTheirDID(theirDID string) (*connectionstore.Record, error) {
	return s.connections.FindSingleByQuery(&connectionstore.Query{TheirDID: theirDID})
}

// FindByOurDID returns the connection using our DID, or nil.
func (s *Service) FindByOurDID(ourDID string) (*connectionstore.Record, error) {
	return s.connections.FindSingleByQuery(&connectionstore.Query{DID: ourDID})
}

// FindAllByOutOfBandID returns the connections created from an out-of-band record.
func (s *Service) FindAllByOutOfBandID(outOfBandID string) ([]*connectionstore.Record, error) {
	return s.connections.FindByQuery(&connectionstore.Query{OutOfBandID: outOfBandID})
}

// FindAllByConnectionTypes returns the connections carrying every given type.
func (s *Service) FindAllByConnectionTypes(types ...string) ([]*connectionstore.Record, error) {
	return s.connections.FindByQuery(&connectionstore.Query{ConnectionTypes: types})
}

// FindByInvitationDID returns the connections created from an invitation with the given DID.
func (s *Service) FindByInvitationDID(invitationDID string) ([]*connectionstore.Record, error) {
	return s.connections.FindByQuery(&connectionstore.Query{InvitationDID: invitationDID})
}

// FindByKeys returns the ready connection an authcrypted message belongs to, from its sender and recipient key
// fingerprints, or nil.
func (s *Service) FindByKeys(senderKey, recipientKey string) (*connectionstore.Record, error) {
	theirs, err := s.dids.FindReceivedByRecipientKey(senderKey)
	if errors.Is(err, didstore.ErrNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("find connection by keys: %w", err)
	}

	ours, err := s.dids.FindCreatedByRecipientKey(recipientKey)
	if errors.Is(err, didstore.ErrNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("find connection by keys: %w", err)
	}

	rec, err := s.FindByDIDs(ours.DID, theirs.DID)
	if err != nil {
		return nil, fmt.Errorf("find connection by keys: %w", err)
	}

	if rec == nil || !rec.IsReady() {
		logger.Debugf("no ready connection for recipient key %s and sender key %s", recipientKey, senderKey)

		return nil, nil
	}

	return rec, nil
}

// AddConnectionType adds a label to the connection and persists it.
func (s *Service) AddConnectionType(rec *connectionstore.Record, t string) error {
	if rec.HasConnectionType(t) {
		return nil
	}

	rec.ConnectionTypes = append(rec.ConnectionTypes, t)

	if err := s.connections.Update(rec); err != nil {
		rec.ConnectionTypes = rec.ConnectionTypes[:len(rec.ConnectionTypes)-1]

		return err
	}

	return nil
}

// RemoveConnectionType removes a label from the connection and persists it.
func (s *Service) RemoveConnectionType(rec *connectionstore.Record, t string) error {
	if !rec.HasConnectionType(t) {
		return nil
	}

	previous := rec.ConnectionTypes
	types := make([]string, 0, len(previous))

	for _, ct := range previous {
		if ct != t {
			types = append(types, ct)
		}
	}

	rec.ConnectionTypes = types

	if err := s.connections.Update(rec); err != nil {
		rec.ConnectionTypes = previous

		return err
	}

	return nil
}

// GetConnectionTypes returns the labels of a connection.
func (s *Service) GetConnectionTypes(rec *connectionstore.Record) []string {
	return append([]string(nil), rec.ConnectionTypes...)
}

// RemovePreviousDIDs forgets the DIDs both sides used before rotating and persists the connection.
func (s *Service) RemovePreviousDIDs(rec *connectionstore.Record) error {
	previousDIDs, previousTheirDIDs := rec.PreviousDIDs, rec.PreviousTheirDIDs
	rec.PreviousDIDs, rec.PreviousTheirDIDs = nil, nil

	if err := s.connections.Update(rec); err != nil {
		rec.PreviousDIDs, rec.PreviousTheirDIDs = previousDIDs, previousTheirDIDs

		return err
	}

	return nil
}
