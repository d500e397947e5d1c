/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webnotifier

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-connections-go/pkg/controller/command"
	"github.com/hyperledger/aries-connections-go/pkg/controller/rest"
)

var logger = log.New("aries-framework/webnotifier")

const (
	notificationSendTimeout = 10 * time.Second
	emptyTopicErrMsg        = "cannot notify with an empty topic"
	emptyMessageErrMsg      = "cannot notify with an empty message"
	failedToCreateErrMsg    = "failed to create topic message : %w"
)

// WebNotifier is a dispatcher capable of notifying multiple subscribers via HTTP (Webhooks) and WebSockets.
type WebNotifier struct {
	notifiers []command.Notifier
	handlers  []rest.Handler
}

// New returns a new instance of a WebNotifier.
func New(wsPath string, webhookURLs []string) *WebNotifier {
	wsNotifier := NewWSNotifier(wsPath)

	return &WebNotifier{
		notifiers: []command.Notifier{wsNotifier, NewHTTPNotifier(webhookURLs)},
		handlers:  wsNotifier.GetRESTHandlers(),
	}
}

// Notify sends the given message to all of the subscribers.
// If multiple errors are encountered, then the first one is returned.
func (n *WebNotifier) Notify(topic string, message []byte) error {
	var allErrs error

	for _, notifier := range n.notifiers {
		err := notifier.Notify(topic, message)
		allErrs = appendError(allErrs, err)
	}

	return allErrs
}

// GetRESTHandlers returns all REST handlers provided by notifier.
func (n *WebNotifier) GetRESTHandlers() []rest.Handler {
	return n.handlers
}

type topicMessage struct {
	ID      string          `json:"id"`
	Topic   string          `json:"topic"`
	Message json.RawMessage `json:"message"`
}

// PrepareTopicMessage wraps the message in a notification envelope with a new id and the topic.
func PrepareTopicMessage(topic string, message []byte) ([]byte, error) {
	return json.Marshal(&topicMessage{
		ID:      uuid.New().String(),
		Topic:   topic,
		Message: message,
	})
}

func appendError(errToAppendTo, err error) error {
	if errToAppendTo == nil {
		return err
	}

	if err == nil {
		return errToAppendTo
	}

	return fmt.Errorf("%v;%w", errToAppendTo, err)
}
