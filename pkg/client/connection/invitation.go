/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/outofband"
	"github.com/hyperledger/aries-connections-go/pkg/doc/did"
)

// ErrInvalidInvitation is returned by ReceiveInvitation for invitations without a usable service.
var ErrInvalidInvitation = errors.New("invalid invitation")

// Invitation is the minimal out-of-band invitation agents of this module exchange. Keys are fingerprints.
type Invitation struct {
	ID                 string               `json:"@id"`
	Label              string               `json:"label,omitempty"`
	Services           []did.DIDCommService `json:"services"`
	HandshakeProtocols []string             `json:"handshake_protocols,omitempty"`
	Goal               string               `json:"goal,omitempty"`
	GoalCode           string               `json:"goal_code,omitempty"`
}

// InvitationOptions for CreateInvitation.
type InvitationOptions struct {
	Label string
	// HandshakeProtocols in order of preference, didexchange or legacyconnection.
	HandshakeProtocols []string
	Goal               string
	GoalCode           string
}

// CreateInvitation creates an invitation on a fresh key and stores it as sent, ready to receive requests.
func (c *Client) CreateInvitation(opts InvitationOptions) (*Invitation, error) {
	r, err := c.conn.CreateRouting()
	if err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	if len(r.Endpoints) == 0 {
		return nil, fmt.Errorf("create invitation: no endpoint configured")
	}

	inv := &Invitation{
		ID:    uuid.New().String(),
		Label: opts.Label,
		Services: []did.DIDCommService{{
			ID:              "#inline-0",
			ServiceEndpoint: r.Endpoints[0],
			RecipientKeys:   []string{r.RecipientKey},
			RoutingKeys:     r.RoutingKeys,
		}},
		HandshakeProtocols: opts.HandshakeProtocols,
		Goal:               opts.Goal,
		GoalCode:           opts.GoalCode,
	}

	err = c.oob.Save(&outofband.Record{
		Role:                     outofband.RoleSender,
		State:                    outofband.StateAwaitResponse,
		InvitationID:             inv.ID,
		Label:                    inv.Label,
		Services:                 inv.Services,
		RecipientKeyFingerprints: []string{r.RecipientKey},
		InlineServiceKeys: []outofband.InlineServiceKey{
			{RecipientKeyFingerprint: r.RecipientKey, KeyHandle: r.RecipientKeyHandle},
		},
		HandshakeProtocols: inv.HandshakeProtocols,
		MediatorID:         r.MediatorID,
	})
	if err != nil {
		return nil, fmt.Errorf("save invitation: %w", err)
	}

	logger.Debugf("created invitation %s", inv.ID)

	return inv, nil
}

// ReceiveInvitation stores an invitation of another agent and returns the out-of-band id to Connect with.
func (c *Client) ReceiveInvitation(inv *Invitation) (string, error) {
	if inv == nil || inv.ID == "" {
		return "", fmt.Errorf("missing invitation id: %w", ErrInvalidInvitation)
	}

	if len(inv.Services) == 0 || len(inv.Services[0].RecipientKeys) == 0 {
		return "", fmt.Errorf("invitation %s has no recipient keys: %w", inv.ID, ErrInvalidInvitation)
	}

	rec := &outofband.Record{
		Role:                     outofband.RoleReceiver,
		State:                    outofband.StatePrepareResponse,
		InvitationID:             inv.ID,
		Label:                    inv.Label,
		Services:                 inv.Services,
		RecipientKeyFingerprints: inv.Services[0].RecipientKeys,
		HandshakeProtocols:       inv.HandshakeProtocols,
	}

	if err := c.oob.Save(rec); err != nil {
		return "", fmt.Errorf("save received invitation: %w", err)
	}

	return rec.ID, nil
}
