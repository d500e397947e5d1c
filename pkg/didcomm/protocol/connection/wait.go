/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperledger/aries-connections-go/pkg/didcomm/event"
	connectionstore "github.com/hyperledger/aries-connections-go/pkg/store/connection"
)

var (
	// ErrTimeout is returned when a connection did not complete in time. The handshake may still finish later.
	ErrTimeout = errors.New("timed out waiting for connection")
	// ErrEventStreamClosed is returned when the event bus shut down while waiting.
	ErrEventStreamClosed = errors.New("event stream closed")
)

// ReturnWhenIsConnected waits until the connection is completed. A timeout of zero uses the configured
// default.
func (s *Service) ReturnWhenIsConnected(ctx context.Context, id string,
	timeout time.Duration) (*connectionstore.Record, error) {
	if timeout <= 0 {
		timeout = s.config.ReturnWhenConnectedTimeout
	}

	// subscribe first so a completion between the read and the wait is not missed
	sub := s.bus.Subscribe(s.contextID, event.ConnectionStateChanged)
	defer sub.Unsubscribe()

	rec, err := s.connections.GetByID(id)
	if err != nil {
		return nil, err
	}

	if rec.State == connectionstore.StateCompleted {
		return rec, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case e, ok := <-sub.C:
			if !ok {
				return nil, fmt.Errorf("connection %s: %w", id, ErrEventStreamClosed)
			}

			changed, ok := e.Payload.(*StateChanged)
			if ok && changed.Record.ConnectionID == id && changed.Record.State == connectionstore.StateCompleted {
				return changed.Record, nil
			}
		case <-timer.C:
			return nil, fmt.Errorf("connection %s not completed after %s: %w", id, timeout, ErrTimeout)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
