/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package rest

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-connections-go/pkg/controller/command"
)

var logger = log.New("aries-framework/rest")

// Handler http handler for each controller API endpoint.
type Handler interface {
	Path() string
	Method() string
	Handle() http.HandlerFunc
}

// NewHandler returns a Handler serving handle on method and path.
func NewHandler(path, method string, handle http.HandlerFunc) Handler {
	return &handler{path: path, method: method, handle: handle}
}

type handler struct {
	path, method string
	handle       http.HandlerFunc
}

func (h *handler) Path() string { return h.path }

func (h *handler) Method() string { return h.method }

func (h *handler) Handle() http.HandlerFunc { return h.handle }

// genericErrorBody is the error body of every failed REST call.
type genericErrorBody struct {
	Code    command.Code `json:"code"`
	Message string       `json:"message"`
}

// Execute executes given command with args provided and writes the result to the response writer.
func Execute(exec command.Exec, rw http.ResponseWriter, req io.Reader) {
	rw.Header().Set("Content-Type", "application/json")

	err := exec(rw, req)
	if err != nil {
		SendError(rw, err)
	}
}

// SendError sends a command error as http response in generic error body.
// Validation errors map to 400, everything else to 500.
func SendError(rw http.ResponseWriter, err command.Error) {
	var status int

	switch err.Type() {
	case command.ValidationError:
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
	}

	SendHTTPStatusError(rw, status, err.Code(), err)
}

// SendHTTPStatusError sends given http status code to response with error body.
func SendHTTPStatusError(rw http.ResponseWriter, httpStatus int, code command.Code, err error) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(httpStatus)

	e := json.NewEncoder(rw).Encode(genericErrorBody{
		Code:    code,
		Message: err.Error(),
	})
	if e != nil {
		logger.Errorf("Unable to send error response, %s", e)
	}
}
