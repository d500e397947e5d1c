/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ws

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"github.com/hyperledger/aries-connections-go/pkg/didcomm/transport"
)

const (
	webSocketScheme = "ws"
	defaultTimeout  = 30 * time.Second
)

// OutboundClient websocket outbound.
type OutboundClient struct {
	timeout time.Duration
}

// NewOutbound creates a client for Outbound WS transport.
func NewOutbound() *OutboundClient {
	return &OutboundClient{timeout: defaultTimeout}
}

// Send sends a2a data via WS and waits for the receiver to acknowledge it.
func (cs *OutboundClient) Send(data []byte, destination *transport.Destination) error {
	if destination == nil || destination.ServiceEndpoint == "" {
		return errors.New("url is mandatory")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cs.timeout)
	defer cancel()

	client, _, err := websocket.Dial(ctx, destination.ServiceEndpoint, nil) //nolint:bodyclose
	if err != nil {
		return fmt.Errorf("websocket client : %w", err)
	}

	defer func() {
		err = client.Close(websocket.StatusNormalClosure, "closing the connection")
		if err != nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
			logger.Errorf("failed to close connection: %v", err)
		}
	}()

	if err = client.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("websocket write message : %w", err)
	}

	messageType, message, err := client.Read(ctx)
	if err != nil {
		return fmt.Errorf("websocket read message : %w", err)
	}

	if messageType != websocket.MessageText {
		return errors.New("message type is not text message")
	}

	if len(message) != 0 {
		return fmt.Errorf("websocket receiver : %s", message)
	}

	return nil
}

// Accept checks for the url scheme.
func (cs *OutboundClient) Accept(url string) bool {
	return strings.HasPrefix(url, webSocketScheme)
}
