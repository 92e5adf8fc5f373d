package events

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"gigchain/core/types"
)

// Record is a committed event together with its position in the event log.
type Record struct {
	Seq   uint64       `json:"seq"`
	Time  int64        `json:"time"`
	Event *types.Event `json:"event"`
}

// Bus fans committed records out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the record and can catch up from the
// persisted log using the sequence numbers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	buffer int
	onDrop func()
}

// NewBus creates a bus whose subscriptions buffer up to buffer records.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{subs: make(map[string]*Subscription), buffer: buffer}
}

// OnDrop installs a hook invoked every time a record is dropped for a slow
// subscriber.
func (b *Bus) OnDrop(fn func()) {
	b.mu.Lock()
	b.onDrop = fn
	b.mu.Unlock()
}

// Subscription is a live feed of committed records.
type Subscription struct {
	ID      string
	ch      chan Record
	bus     *Bus
	once    sync.Once
	dropped atomic.Uint64
}

// C returns the channel records are delivered on. It is closed by Close.
func (s *Subscription) C() <-chan Record { return s.ch }

// Dropped reports how many records this subscriber missed.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Close detaches the subscription from the bus.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.ID)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}

// Subscribe registers a new subscriber.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{ID: uuid.NewString(), ch: make(chan Record, b.buffer), bus: b}
	b.mu.Lock()
	b.subs[sub.ID] = sub
	b.mu.Unlock()
	return sub
}

// Publish delivers rec to every subscriber without blocking.
func (b *Bus) Publish(rec Record) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		out := rec
		out.Event = rec.Event.Clone()
		select {
		case sub.ch <- out:
		default:
			sub.dropped.Add(1)
			if b.onDrop != nil {
				b.onDrop()
			}
		}
	}
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
