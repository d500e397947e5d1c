/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package event

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEmitFiltersByContextAndType(t *testing.T) {
	bus := NewBus()

	tenantA := bus.Subscribe("a", ConnectionStateChanged)
	tenantB := bus.Subscribe("b")

	bus.Emit("a", ConnectionStateChanged, "first")
	bus.Emit("a", DidRotated, "second")
	bus.Emit("b", DidRotated, "third")

	e := <-tenantA.C
	require.Equal(t, ConnectionStateChanged, e.Type)
	require.Equal(t, "a", e.ContextID)
	require.Equal(t, "first", e.Payload)

	e = <-tenantB.C
	require.Equal(t, "third", e.Payload)

	select {
	case e := <-tenantA.C:
		require.Failf(t, "unexpected event", "%v", e)
	case e := <-tenantB.C:
		require.Failf(t, "unexpected event", "%v", e)
	default:
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()

	sub := bus.Subscribe("a")
	sub.Unsubscribe()
	sub.Unsubscribe()

	_, ok := <-sub.C
	require.False(t, ok)

	bus.Emit("a", DidRotated, nil)
}

func TestShutdown(t *testing.T) {
	bus := NewBus(WithBufferSize(1))

	sub := bus.Subscribe("a")

	bus.Emit("a", DidRotated, 1)

	emitted := make(chan struct{})

	go func() {
		// blocks on the full buffer until shutdown
		bus.Emit("a", DidRotated, 2)
		close(emitted)
	}()

	time.Sleep(10 * time.Millisecond)
	bus.Shutdown()

	select {
	case <-emitted:
	case <-time.After(time.Second):
		require.Fail(t, "emit did not return after shutdown")
	}

	e, ok := <-sub.C
	require.True(t, ok)
	require.Equal(t, 1, e.Payload)

	_, ok = <-sub.C
	require.False(t, ok)

	late := bus.Subscribe("a")

	_, ok = <-late.C
	require.False(t, ok)
}

func TestConcurrentEmit(t *testing.T) {
	bus := NewBus(WithBufferSize(100))
	sub := bus.Subscribe("a")

	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			bus.Emit("a", TrustPingReceived, i)
		}(i)
	}

	wg.Wait()

	seen := map[interface{}]bool{}

	for i := 0; i < 10; i++ {
		seen[(<-sub.C).Payload] = true
	}

	require.Len(t, seen, 10)
}
