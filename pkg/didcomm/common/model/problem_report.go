/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package model

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hyperledger/aries-connections-go/pkg/didcomm/protocol/decorator"
)

// ProblemReport problem report definition
// https://github.com/hyperledger/aries-rfcs/tree/main/features/0035-report-problem
type ProblemReport struct {
	Type        string            `json:"@type"`
	ID          string            `json:"@id"`
	Description Code              `json:"description"`
	Thread      *decorator.Thread `json:"~thread,omitempty"`
	WebRedirect interface{}       `json:"~web-redirect,omitempty"`
}

// Code represents a problem report code.
type Code struct {
	Code string `json:"code"`
	En   string `json:"en,omitempty"`
}

// ProblemReportError is a protocol failure that is reported to the other party.
type ProblemReportError struct {
	Code string
	Err  error
}

// NewProblemReportError returns a protocol failure with the given code.
func NewProblemReportError(code, format string, args ...interface{}) *ProblemReportError {
	return &ProblemReportError{Code: code, Err: fmt.Errorf(format, args...)}
}

func (e *ProblemReportError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Err)
}

func (e *ProblemReportError) Unwrap() error {
	return e.Err
}

// ToProblemReport builds the wire problem report for the error, threaded to thid.
// The thread's parent is set instead when parent is true.
func (e *ProblemReportError) ToProblemReport(msgType, thid string, parent bool) *ProblemReport {
	thread := &decorator.Thread{ID: thid}
	if parent {
		thread = &decorator.Thread{PID: thid}
	}

	return &ProblemReport{
		Type:        msgType,
		ID:          uuid.New().String(),
		Description: Code{Code: e.Code, En: e.Err.Error()},
		Thread:      thread,
	}
}

// AsProblemReportError returns the *ProblemReportError in err's chain.
func AsProblemReportError(err error) (*ProblemReportError, bool) {
	var prErr *ProblemReportError

	if errors.As(err, &prErr) {
		return prErr, true
	}

	return nil, false
}

// ErrorMessage formats the problem report description as stored on a connection record.
func (p *ProblemReport) ErrorMessage() string {
	return fmt.Sprintf("%s : %s", p.Description.Code, p.Description.En)
}
