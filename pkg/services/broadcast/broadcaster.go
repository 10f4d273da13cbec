// Package broadcast fans pre-rendered snapshot messages out to streaming
// subscribers. Each subscriber owns an independent bounded queue with a
// drop-oldest overflow policy, so a slow or dead consumer can never stall
// the scrape loop or its peers.
package broadcast

import "sync"

// defaultBuffer bounds each subscriber queue. A consumer more than this many
// snapshots behind starts losing the oldest ones.
const defaultBuffer = 8

// Subscription is one subscriber's receive side. Close releases it; after
// Close the channel is drained and closed.
type Subscription struct {
	ch   chan []byte
	b    *Broadcaster
	once sync.Once
}

// C returns the subscriber's message channel. Messages arrive in publish
// order.
func (s *Subscription) C() <-chan []byte {
	return s.ch
}

// Close removes the subscription from the fan-out set. Safe to call more
// than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.b.remove(s)
	})
}

// Broadcaster distributes each published message to all current subscribers
// exactly once.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	latest []byte
	buffer int
}

func New() *Broadcaster {
	return &Broadcaster{
		subs:   make(map[*Subscription]struct{}),
		buffer: defaultBuffer,
	}
}

// Subscribe registers a new subscriber. A late joiner does not receive
// missed messages, but the most recently published one is queued immediately
// as a catch-up so new clients never start empty.
func (b *Broadcaster) Subscribe() *Subscription {
	sub := &Subscription{ch: make(chan []byte, b.buffer), b: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.latest != nil {
		sub.ch <- b.latest
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Publish queues msg on every subscriber without blocking. When a queue is
// full its oldest message is dropped to make room.
func (b *Broadcaster) Publish(msg []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest = msg
	for sub := range b.subs {
		select {
		case sub.ch <- msg:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- msg:
			default:
			}
		}
	}
}

// Count returns the number of active subscribers.
func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}
