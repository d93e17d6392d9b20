// Package realtime provides in-process change notification for entity tables.
// Writers publish insert/update/delete events; SSE handlers subscribe to the
// stream for one table scoped to one owner.
package realtime

import "sync"

// subscriberBufferSize is the channel buffer for each subscriber.
// Events are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// Change event types.
const (
	EventInsert = "insert"
	EventUpdate = "update"
	EventDelete = "delete"
)

// Event is a single change notification for one row.
type Event struct {
	Type  string `json:"type"`
	Table string `json:"table"`
	Row   any    `json:"row"`
}

// Broker fans change events out to per-owner, per-table subscribers.
// It is safe for concurrent use.
type Broker struct {
	mu     sync.Mutex
	topics map[string]*topic
	closed bool
}

type topic struct {
	subs   map[int]chan Event
	nextID int
}

// NewBroker creates a new change-event broker.
func NewBroker() *Broker {
	return &Broker{topics: make(map[string]*topic)}
}

// Subscribe returns a channel receiving change events for the given table and
// owner, and an unsubscribe function. After Shutdown, the returned channel is
// immediately closed.
func (b *Broker) Subscribe(table, userID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBufferSize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	key := table + ":" + userID
	t, ok := b.topics[key]
	if !ok {
		t = &topic{subs: make(map[int]chan Event)}
		b.topics[key] = t
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish sends an event to every subscriber of the table/owner pair.
// Events are dropped for subscribers whose buffers are full.
func (b *Broker) Publish(table, userID string, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	t, ok := b.topics[table+":"+userID]
	if !ok {
		return
	}
	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
			// Drop for slow subscribers to avoid blocking writers.
		}
	}
}

// Shutdown closes every subscriber channel. Subsequent Subscribe calls return
// a closed channel and Publish becomes a no-op.
func (b *Broker) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, t := range b.topics {
		for id, ch := range t.subs {
			close(ch)
			delete(t.subs, id)
		}
	}
}
