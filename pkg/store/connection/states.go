/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"fmt"
	"sort"
	"strings"
)

// State of a connection record.
type State string

// Connection states.
const (
	StateStart              State = "start"
	StateInvitationReceived State = "invitation-received"
	StateRequestSent        State = "request-sent"
	StateRequestReceived    State = "request-received"
	StateResponseSent       State = "response-sent"
	StateResponseReceived   State = "response-received"
	StateCompleted          State = "completed"
	StateAbandoned          State = "abandoned"
)

// Role of this agent in the handshake that created the connection.
type Role string

// Connection roles.
const (
	RoleRequester Role = "requester"
	RoleResponder Role = "responder"
)

var transitions = map[Role]map[State][]State{
	RoleRequester: {
		StateStart:              {StateInvitationReceived, StateRequestSent},
		StateInvitationReceived: {StateRequestSent},
		StateRequestSent:        {StateResponseReceived},
		StateResponseReceived:   {StateCompleted},
	},
	RoleResponder: {
		StateStart:           {StateRequestReceived},
		StateRequestReceived: {StateResponseSent},
		StateResponseSent:    {StateCompleted},
	},
}

// IsTerminal reports whether no transition leaves the state.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateAbandoned
}

// CanTransition reports whether a record with the given role may move from one state to another.
// Abandoned is reachable from every non-terminal state of the role.
func CanTransition(role Role, from, to State) bool {
	if from.IsTerminal() {
		return false
	}

	if to == StateAbandoned {
		_, ok := transitions[role][from]

		return ok
	}

	for _, next := range transitions[role][from] {
		if next == to {
			return true
		}
	}

	return false
}

// StateError is returned when a record is not in the role or state an operation requires.
type StateError struct {
	ConnectionID   string
	CurrentState   State
	ExpectedStates []State
	CurrentRole    Role
	ExpectedRole   Role
}

func (e *StateError) Error() string {
	if e.ExpectedRole != "" {
		return fmt.Sprintf("connection %s has role %s, expected %s", e.ConnectionID, e.CurrentRole, e.ExpectedRole)
	}

	expected := make([]string, len(e.ExpectedStates))
	for i, s := range e.ExpectedStates {
		expected[i] = string(s)
	}

	return fmt.Sprintf("connection %s is in state %s, expected %s",
		e.ConnectionID, e.CurrentState, strings.Join(expected, " or "))
}

// AssertState fails with a *StateError unless the record is in one of the expected states.
func AssertState(rec *Record, expected ...State) error {
	for _, s := range expected {
		if rec.State == s {
			return nil
		}
	}

	return &StateError{ConnectionID: rec.ConnectionID, CurrentState: rec.State, ExpectedStates: expected}
}

// AssertRole fails with a *StateError unless the record has the expected role.
func AssertRole(rec *Record, expected Role) error {
	if rec.Role == expected {
		return nil
	}

	return &StateError{
		ConnectionID: rec.ConnectionID,
		CurrentState: rec.State,
		CurrentRole:  rec.Role,
		ExpectedRole: expected,
	}
}

// AssertTransition fails with a *StateError when the record may not move to the next state.
func AssertTransition(rec *Record, next State) error {
	if CanTransition(rec.Role, rec.State, next) {
		return nil
	}

	var allowed []State

	for s := range transitions[rec.Role] {
		if CanTransition(rec.Role, s, next) {
			allowed = append(allowed, s)
		}
	}

	sort.Slice(allowed, func(i, j int) bool { return allowed[i] < allowed[j] })

	return &StateError{ConnectionID: rec.ConnectionID, CurrentState: rec.State, ExpectedStates: allowed}
}
