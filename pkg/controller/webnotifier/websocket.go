/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webnotifier

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"nhooyr.io/websocket"

	"github.com/hyperledger/aries-connections-go/pkg/controller/rest"
)

// WSNotifier pushes topic messages to the websocket clients connected on its path.
// Clients only listen, a client sending a data message is disconnected.
type WSNotifier struct {
	path    string
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewWSNotifier returns a WSNotifier accepting clients on path.
func NewWSNotifier(path string) *WSNotifier {
	return &WSNotifier{
		path:    path,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Notify writes the topic message to every connected client. A client the message cannot be
// written to is dropped, and its error is part of the returned error.
func (n *WSNotifier) Notify(topic string, message []byte) error {
	if topic == "" {
		return fmt.Errorf(emptyTopicErrMsg)
	}

	if len(message) == 0 {
		return fmt.Errorf(emptyMessageErrMsg)
	}

	topicMsg, err := PrepareTopicMessage(topic, message)
	if err != nil {
		return fmt.Errorf(failedToCreateErrMsg, err)
	}

	var allErrs error

	for _, conn := range n.snapshot() {
		ctx, cancel := context.WithTimeout(context.Background(), notificationSendTimeout)
		err := conn.Write(ctx, websocket.MessageText, topicMsg)

		cancel()

		if err != nil {
			logger.Warnf("dropping websocket notification client: %v", err)

			n.remove(conn)
			conn.Close(websocket.StatusInternalError, "notification failed") //nolint:errcheck,gosec

			allErrs = appendError(allErrs, err)
		}
	}

	return allErrs
}

// GetRESTHandlers returns the handler upgrading clients on the notifier path.
func (n *WSNotifier) GetRESTHandlers() []rest.Handler {
	return []rest.Handler{rest.NewHandler(n.path, http.MethodGet, n.serve)}
}

func (n *WSNotifier) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		logger.Infof("failed to upgrade the websocket notification connection : %v", err)

		return
	}

	n.add(conn)
	defer n.remove(conn)

	// done once the client closes or sends data
	<-conn.CloseRead(context.Background()).Done()
}

func (n *WSNotifier) add(conn *websocket.Conn) {
	n.mu.Lock()
	n.clients[conn] = struct{}{}
	n.mu.Unlock()

	logger.Debugf("websocket notification client connected")
}

func (n *WSNotifier) remove(conn *websocket.Conn) {
	n.mu.Lock()
	_, ok := n.clients[conn]
	delete(n.clients, conn)
	n.mu.Unlock()

	if ok {
		logger.Debugf("websocket notification client dropped")
	}
}

func (n *WSNotifier) snapshot() []*websocket.Conn {
	n.mu.Lock()
	defer n.mu.Unlock()

	conns := make([]*websocket.Conn, 0, len(n.clients))
	for conn := range n.clients {
		conns = append(conns, conn)
	}

	return conns
}

func (n *WSNotifier) clientCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.clients)
}
