// Package event implements the server's publish/subscribe registry.
//
// Subscribers of one kind are invoked synchronously, in subscription order,
// on the goroutine that publishes the event.
package event

import (
	"sync"

	"github.com/marmos91/validay/pkg/client"
)

// Kind identifies one of the server's event streams.
type Kind int

const (
	DataReceived Kind = iota
	DataSent
	ClientConnected
	ClientDisconnected
)

func (k Kind) String() string {
	switch k {
	case DataReceived:
		return "data-received"
	case DataSent:
		return "data-sent"
	case ClientConnected:
		return "client-connected"
	case ClientDisconnected:
		return "client-disconnected"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers. Data is set for DataReceived (one
// reassembled packet) and DataSent (the bytes written).
type Event struct {
	Kind   Kind
	Client *client.Client
	Data   []byte
}

// Handler receives events. Handlers must not retain Data past the call
// unless they copy it.
type Handler func(Event)

// Token identifies a subscription for Unsubscribe.
type Token uint64

type subscription struct {
	token   Token
	handler Handler
}

// Bus is safe for concurrent use.
type Bus struct {
	mu   sync.RWMutex
	next Token
	subs map[Kind][]subscription
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Kind][]subscription)}
}

// Subscribe appends h to the subscribers of kind.
func (b *Bus) Subscribe(kind Kind, h Handler) Token {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	b.subs[kind] = append(b.subs[kind], subscription{token: b.next, handler: h})
	return b.next
}

// Unsubscribe removes a subscription. It reports whether the token was found.
func (b *Bus) Unsubscribe(kind Kind, token Token) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[kind]
	for i, s := range subs {
		if s.token != token {
			continue
		}
		// Copy so snapshots held by in-flight publishes stay intact.
		updated := make([]subscription, 0, len(subs)-1)
		updated = append(updated, subs[:i]...)
		updated = append(updated, subs[i+1:]...)
		b.subs[kind] = updated
		return true
	}
	return false
}

// Publish delivers e to every subscriber of e.Kind.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := b.subs[e.Kind]
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(e)
	}
}

// Count returns the number of subscribers of kind.
func (b *Bus) Count(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[kind])
}
