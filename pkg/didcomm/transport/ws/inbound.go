/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/hyperledger/aries-framework-go/component/log"
	"nhooyr.io/websocket"

	"github.com/hyperledger/aries-connections-go/pkg/didcomm/transport"
)

var logger = log.New("aries-framework/ws")

const processFailureErrMsg = "failed to process the message"

type provider interface {
	InboundMessageHandler() transport.InboundMessageHandler
}

// Inbound http(ws) type.
type Inbound struct {
	externalAddr string
	server       *http.Server
}

// NewInbound creates a new WebSocket inbound transport instance.
func NewInbound(internalAddr, externalAddr string) (*Inbound, error) {
	if internalAddr == "" {
		return nil, errors.New("websocket address is mandatory")
	}

	if externalAddr == "" {
		externalAddr = internalAddr
	}

	return &Inbound{
		externalAddr: externalAddr,
		server:       &http.Server{Addr: internalAddr}, //nolint:gosec
	}, nil
}

// Start the http(ws) server.
func (i *Inbound) Start(prov provider) error {
	handler, err := NewInboundHandler(prov)
	if err != nil {
		return fmt.Errorf("websocket server start failed: %w", err)
	}

	i.server.Handler = handler

	go func() {
		if err := i.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("websocket server start with address [%s] failed, cause:  %s", i.server.Addr, err)
		}
	}()

	return nil
}

// Stop the http(ws) server.
func (i *Inbound) Stop() error {
	if err := i.server.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("websocket server shutdown failed: %w", err)
	}

	return nil
}

// Endpoint provides the http(ws) connection details.
func (i *Inbound) Endpoint() string {
	return i.externalAddr
}

// NewInboundHandler returns the handler reading envelopes from websocket connections. Every envelope is
// answered with an empty text message, or an error text when it could not be processed.
func NewInboundHandler(prov provider) (http.Handler, error) {
	if prov == nil || prov.InboundMessageHandler() == nil {
		logger.Errorf("Error creating a new inbound handler: message handler function is nil")

		return nil, errors.New("creation of inbound handler failed")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		processRequest(w, r, prov.InboundMessageHandler())
	}), nil
}

func processRequest(w http.ResponseWriter, r *http.Request, messageHandler transport.InboundMessageHandler) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		logger.Errorf("failed to upgrade the connection : %v", err)

		return
	}

	defer func() {
		if err := c.Close(websocket.StatusNormalClosure, "closing the connection"); err != nil &&
			websocket.CloseStatus(err) != websocket.StatusNormalClosure {
			logger.Errorf("failed to close connection: %v", err)
		}
	}()

	ctx := r.Context()

	for {
		_, message, err := c.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				logger.Errorf("Error reading request message: %v", err)
			}

			return
		}

		resp := ""

		var envelope transport.Envelope

		if err = json.Unmarshal(message, &envelope); err != nil {
			logger.Errorf("failed to parse envelope: %v", err)

			resp = processFailureErrMsg
		} else if err = messageHandler(&envelope); err != nil {
			logger.Errorf("incoming msg processing failed: %v", err)

			resp = processFailureErrMsg
		}

		if err = c.Write(ctx, websocket.MessageText, []byte(resp)); err != nil {
			logger.Errorf("error writing the message: %v", err)

			return
		}
	}
}
