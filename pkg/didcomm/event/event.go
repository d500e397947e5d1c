/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package event

import (
	"sync"

	"github.com/hyperledger/aries-framework-go/component/log"
)

var logger = log.New("aries-framework/didcomm/event")

// Type of an event.
type Type string

// Event types emitted by the protocol services.
const (
	ConnectionStateChanged    Type = "ConnectionStateChanged"
	OutOfBandStateChanged     Type = "OutOfBandStateChanged"
	DidRotated                Type = "DidRotated"
	TrustPingReceived         Type = "TrustPingReceived"
	TrustPingResponseReceived Type = "TrustPingResponseReceived"
)

const defaultBufferSize = 16

// Event is a notification emitted by an agent context. Payload is owned by the emitting service.
type Event struct {
	Type      Type
	ContextID string
	Payload   interface{}
}

// Bus delivers events to subscribers of the same context.
type Bus struct {
	mu         sync.RWMutex
	nextID     uint64
	subs       map[uint64]*Subscription
	bufferSize int
	closed     bool
}

// Opt configures a Bus.
type Opt func(*Bus)

// WithBufferSize sets the channel buffer of each subscription.
func WithBufferSize(size int) Opt {
	return func(b *Bus) {
		b.bufferSize = size
	}
}

// NewBus returns an event bus.
func NewBus(opts ...Opt) *Bus {
	b := &Bus{
		subs:       map[uint64]*Subscription{},
		bufferSize: defaultBufferSize,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Subscription receives the events of one context. C is closed on Unsubscribe or bus Shutdown.
type Subscription struct {
	C <-chan Event

	id        uint64
	contextID string
	types     map[Type]struct{}
	ch        chan Event
	done      chan struct{}
	once      sync.Once
	mu        sync.RWMutex
	closed    bool
	bus       *Bus
}

// Subscribe returns a subscription to the given event types of contextID. No types means all types.
// Subscribing to a shut down bus returns an already closed subscription.
func (b *Bus) Subscribe(contextID string, types ...Type) *Subscription {
	ch := make(chan Event, b.bufferSize)

	s := &Subscription{
		C:         ch,
		contextID: contextID,
		types:     map[Type]struct{}{},
		ch:        ch,
		done:      make(chan struct{}),
		bus:       b,
	}

	for _, t := range types {
		s.types[t] = struct{}{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		s.close()

		return s
	}

	b.nextID++
	s.id = b.nextID
	b.subs[s.id] = s

	return s
}

// Emit delivers an event to every matching subscriber. It blocks while a subscriber buffer is full,
// until the subscriber reads or unsubscribes.
func (b *Bus) Emit(contextID string, t Type, payload interface{}) {
	e := Event{Type: t, ContextID: contextID, Payload: payload}

	b.mu.RLock()

	targets := make([]*Subscription, 0, len(b.subs))

	for _, s := range b.subs {
		if s.accepts(e) {
			targets = append(targets, s)
		}
	}

	b.mu.RUnlock()

	for _, s := range targets {
		s.deliver(e)
	}

	logger.Debugf("emitted %s for context %q to %d subscribers", t, contextID, len(targets))
}

// Shutdown closes every subscription. Later subscriptions are closed immediately.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	subs := b.subs
	b.subs = map[uint64]*Subscription{}
	b.closed = true
	b.mu.Unlock()

	for _, s := range subs {
		s.close()
	}
}

// Unsubscribe stops delivery and closes C.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()

	s.close()
}

func (s *Subscription) accepts(e Event) bool {
	if s.contextID != e.ContextID {
		return false
	}

	if len(s.types) == 0 {
		return true
	}

	_, ok := s.types[e.Type]

	return ok
}

func (s *Subscription) deliver(e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}

	select {
	case s.ch <- e:
	case <-s.done:
	}
}

func (s *Subscription) close() {
	s.once.Do(func() {
		close(s.done)

		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}
