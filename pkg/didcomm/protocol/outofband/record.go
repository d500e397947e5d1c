/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package outofband

import (
	"time"

	"github.com/hyperledger/aries-connections-go/pkg/doc/did"
)

// Role of this agent in an out-of-band exchange.
type Role string

// Out-of-band roles.
const (
	RoleSender   Role = "sender"
	RoleReceiver Role = "receiver"
)

// State of an out-of-band record.
type State string

// Out-of-band states.
const (
	StateInitial         State = "initial"
	StatePrepareResponse State = "prepare-response"
	StateAwaitResponse   State = "await-response"
	StateDone            State = "done"
)

// InvitationTypeConnectionless marks an out-of-band record created from a legacy connectionless invitation.
const InvitationTypeConnectionless = "connectionless"

// InlineServiceKey links an inline invitation service recipient key to its key handle.
type InlineServiceKey struct {
	RecipientKeyFingerprint string `json:"recipientKeyFingerprint"`
	KeyHandle               string `json:"keyHandle"`
}

// Record is the local view of an out-of-band invitation.
type Record struct {
	ID                          string               `json:"id"`
	Role                        Role                 `json:"role"`
	State                       State                `json:"state"`
	Reusable                    bool                 `json:"reusable,omitempty"`
	InvitationID                string               `json:"invitationId"`
	Label                       string               `json:"label,omitempty"`
	Alias                       string               `json:"alias,omitempty"`
	Services                    []did.DIDCommService `json:"services,omitempty"`
	InvitationDIDs              []string             `json:"invitationDids,omitempty"`
	RecipientKeyFingerprints    []string             `json:"recipientKeyFingerprints,omitempty"`
	InlineServiceKeys           []InlineServiceKey   `json:"inlineServiceKeys,omitempty"`
	InvitationRequestsThreadIDs []string             `json:"invitationRequestsThreadIds,omitempty"`
	LegacyInvitationType        string               `json:"legacyInvitationType,omitempty"`
	HandshakeProtocols          []string             `json:"handshakeProtocols,omitempty"`
	MediatorID                  string               `json:"mediatorId,omitempty"`
	CreatedAt                   time.Time            `json:"createdAt"`
}

// KeyHandle returns the key handle of an inline service recipient key.
func (r *Record) KeyHandle(fp string) (string, bool) {
	for _, k := range r.InlineServiceKeys {
		if k.RecipientKeyFingerprint == fp {
			return k.KeyHandle, true
		}
	}

	return "", false
}

// ResolvedService returns the first resolved invitation service, if any.
func (r *Record) ResolvedService() *did.DIDCommService {
	if len(r.Services) == 0 {
		return nil
	}

	s := r.Services[0]

	return &s
}

// IsConnectionless reports whether the record comes from a legacy connectionless invitation.
func (r *Record) IsConnectionless() bool {
	return r.LegacyInvitationType == InvitationTypeConnectionless
}

// StateChanged is the payload of event.OutOfBandStateChanged.
type StateChanged struct {
	Record        *Record
	PreviousState State
}

func (r *Record) clone() *Record {
	c := *r

	c.Services = append([]did.DIDCommService(nil), r.Services...)
	c.InvitationDIDs = append([]string(nil), r.InvitationDIDs...)
	c.RecipientKeyFingerprints = append([]string(nil), r.RecipientKeyFingerprints...)
	c.InlineServiceKeys = append([]InlineServiceKey(nil), r.InlineServiceKeys...)
	c.InvitationRequestsThreadIDs = append([]string(nil), r.InvitationRequestsThreadIDs...)
	c.HandshakeProtocols = append([]string(nil), r.HandshakeProtocols...)

	return &c
}
