/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package command holds the transport independent controller API: every operation is an Exec reading
// JSON arguments and writing a JSON result.
package command

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperledger/aries-framework-go/component/log"
)

// Exec runs one command with the JSON arguments read from req, writing its JSON result to rw.
type Exec func(rw io.Writer, req io.Reader) Error

// Handler names an Exec.
type Handler interface {
	Name() string
	Method() string
	Handle() Exec
}

// Notifier publishes a message on a topic.
type Notifier interface {
	Notify(topic string, message []byte) error
}

// NewHandler binds exec to the method of the named command.
func NewHandler(name, method string, exec Exec) Handler {
	return &handler{name: name, method: method, exec: exec}
}

type handler struct {
	name, method string
	exec         Exec
}

func (h *handler) Name() string { return h.name }

func (h *handler) Method() string { return h.method }

func (h *handler) Handle() Exec { return h.exec }

// WriteResponse encodes v as JSON into w. A nil v is written as an empty object.
func WriteResponse(w io.Writer, v interface{}) error {
	if v == nil {
		v = struct{}{}
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("write command response: %w", err)
	}

	return nil
}

// Logger logs command outcomes in the form command=[name] method=[method] key=[value]...
type Logger struct {
	log  *log.Log
	name string
}

// NewLogger returns a Logger of the named command writing to module.
func NewLogger(module, name string) *Logger {
	return &Logger{log: log.New(module), name: name}
}

// Invalid logs rejected arguments.
func (l *Logger) Invalid(method string, err error) {
	l.log.Infof("%s invalid request: %s", l.prefix(method), err)
}

// Failure logs a failed execution.
func (l *Logger) Failure(method string, err error, kv ...string) {
	l.log.Errorf("%s%s failed: %s", l.prefix(method), fields(kv), err)
}

// Success logs a completed execution.
func (l *Logger) Success(method string, kv ...string) {
	l.log.Debugf("%s%s success", l.prefix(method), fields(kv))
}

func (l *Logger) prefix(method string) string {
	return fmt.Sprintf("command=[%s] method=[%s]", l.name, method)
}

// fields formats alternating keys and values.
func fields(kv []string) string {
	var b strings.Builder

	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %s=[%s]", kv[i], kv[i+1])
	}

	return b.String()
}
