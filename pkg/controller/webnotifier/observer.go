/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webnotifier

import (
	"encoding/json"

	"github.com/hyperledger/aries-connections-go/pkg/controller/command"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/event"
)

// Notification topics.
const (
	ConnectionsTopic = "connections"
	OutOfBandTopic   = "out-of-band"
	DIDRotateTopic   = "did-rotate"
	TrustPingTopic   = "trust-ping"
)

var topics = map[event.Type]string{
	event.ConnectionStateChanged:    ConnectionsTopic,
	event.OutOfBandStateChanged:     OutOfBandTopic,
	event.DidRotated:                DIDRotateTopic,
	event.TrustPingReceived:         TrustPingTopic,
	event.TrustPingResponseReceived: TrustPingTopic,
}

// Event is the message of every notification.
type Event struct {
	Type    event.Type  `json:"type"`
	Payload interface{} `json:"payload"`
}

// Observer forwards agent events to a notifier.
type Observer struct {
	notifier command.Notifier
}

// NewObserver returns a new instance of an Observer.
func NewObserver(notifier command.Notifier) *Observer {
	return &Observer{notifier: notifier}
}

// Observe notifies the events of sub until it is closed.
func (o *Observer) Observe(sub *event.Subscription) {
	go func() {
		for e := range sub.C {
			o.notify(e)
		}
	}()
}

func (o *Observer) notify(e event.Event) {
	topic, ok := topics[e.Type]
	if !ok {
		logger.Debugf("no topic for event %s", e.Type)

		return
	}

	msg, err := json.Marshal(Event{Type: e.Type, Payload: e.Payload})
	if err != nil {
		logger.Errorf("marshal %s event: %v", e.Type, err)

		return
	}

	if err = o.notifier.Notify(topic, msg); err != nil {
		logger.Warnf("notify %s: %v", topic, err)
	}
}
