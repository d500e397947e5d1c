/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"encoding/json"
	"time"
)

// HandshakeProtocol identifies the handshake that created a connection.
type HandshakeProtocol string

const (
	// ProtocolConnections is the legacy RFC 0160 connection protocol.
	ProtocolConnections HandshakeProtocol = "https://didcomm.org/connections/1.0"
	// ProtocolDIDExchange is the RFC 0023 did-exchange protocol.
	ProtocolDIDExchange HandshakeProtocol = "https://didcomm.org/didexchange/1.1"
)

// Record is a pairwise connection and its handshake state.
type Record struct {
	ConnectionID      string                 `json:"connectionId"`
	State             State                  `json:"state"`
	Role              Role                   `json:"role"`
	Protocol          HandshakeProtocol      `json:"protocol,omitempty"`
	DID               string                 `json:"did,omitempty"`
	TheirDID          string                 `json:"theirDid,omitempty"`
	TheirLabel        string                 `json:"theirLabel,omitempty"`
	Alias             string                 `json:"alias,omitempty"`
	PreviousDIDs      []string               `json:"previousDids,omitempty"`
	PreviousTheirDIDs []string               `json:"previousTheirDids,omitempty"`
	ThreadID          string                 `json:"threadId,omitempty"`
	OutOfBandID       string                 `json:"outOfBandId,omitempty"`
	InvitationDID     string                 `json:"invitationDid,omitempty"`
	MediatorID        string                 `json:"mediatorId,omitempty"`
	ErrorMessage      string                 `json:"errorMessage,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	ConnectionTypes   []string               `json:"connectionTypes,omitempty"`
	CreatedAt         time.Time              `json:"createdAt"`
	UpdatedAt         time.Time              `json:"updatedAt,omitempty"`
	Version           int                    `json:"version"`
}

// IsReady reports whether the connection can carry messages.
func (r *Record) IsReady() bool {
	return r.State == StateCompleted || r.State == StateResponseSent
}

// IsRequester reports whether this agent started the handshake.
func (r *Record) IsRequester() bool {
	return r.Role == RoleRequester
}

// GetMetadata returns a metadata value.
func (r *Record) GetMetadata(key string) (interface{}, bool) {
	v, ok := r.Metadata[key]

	return v, ok
}

// SetMetadata sets a metadata value.
func (r *Record) SetMetadata(key string, value interface{}) {
	if r.Metadata == nil {
		r.Metadata = map[string]interface{}{}
	}

	r.Metadata[key] = value
}

// DeleteMetadata removes a metadata value.
func (r *Record) DeleteMetadata(key string) {
	delete(r.Metadata, key)
}

// HasConnectionType reports whether the record carries the label.
func (r *Record) HasConnectionType(t string) bool {
	for _, ct := range r.ConnectionTypes {
		if ct == t {
			return true
		}
	}

	return false
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r

	c.PreviousDIDs = append([]string(nil), r.PreviousDIDs...)
	c.PreviousTheirDIDs = append([]string(nil), r.PreviousTheirDIDs...)
	c.ConnectionTypes = append([]string(nil), r.ConnectionTypes...)

	if r.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(r.Metadata))
		for k, v := range r.Metadata {
			c.Metadata[k] = v
		}

		// metadata values are JSON values, a round trip detaches nested maps
		if raw, err := json.Marshal(r.Metadata); err == nil {
			var md map[string]interface{}
			if json.Unmarshal(raw, &md) == nil {
				c.Metadata = md
			}
		}
	}

	return &c
}
