package event

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_DeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus()

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		bus.Subscribe(DataReceived, func(e Event) {
			order = append(order, i)
		})
	}
	bus.Subscribe(DataSent, func(Event) { t.Fatal("wrong kind delivered") })

	bus.Publish(Event{Kind: DataReceived, Data: []byte{1}})

	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	calls := 0
	first := bus.Subscribe(ClientConnected, func(Event) { calls++ })
	bus.Subscribe(ClientConnected, func(Event) { calls += 10 })

	assert.True(t, bus.Unsubscribe(ClientConnected, first))
	assert.False(t, bus.Unsubscribe(ClientConnected, first))
	assert.False(t, bus.Unsubscribe(ClientDisconnected, 999))
	assert.Equal(t, 1, bus.Count(ClientConnected))

	bus.Publish(Event{Kind: ClientConnected})
	assert.Equal(t, 10, calls)
}

func TestBus_UnsubscribeDuringPublish(t *testing.T) {
	bus := NewBus()

	var second Token
	calls := 0
	bus.Subscribe(DataReceived, func(Event) {
		calls++
		bus.Unsubscribe(DataReceived, second)
	})
	second = bus.Subscribe(DataReceived, func(Event) { calls++ })

	// The in-flight publish still sees its snapshot.
	bus.Publish(Event{Kind: DataReceived})
	assert.Equal(t, 2, calls)

	bus.Publish(Event{Kind: DataReceived})
	assert.Equal(t, 3, calls)
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	total := 0
	bus.Subscribe(DataSent, func(e Event) {
		mu.Lock()
		total += len(e.Data)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(Event{Kind: DataSent, Data: []byte{1, 2}})
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, total)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "data-received", DataReceived.String())
	assert.Equal(t, "client-disconnected", ClientDisconnected.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
