// Package events is the in-process operation event bus and the
// short-lived ticket store that gates subscriptions to it. Both are
// plain instance state, injected where needed, and reset on restart.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Channel groups events by origin.
type Channel string

const (
	ChannelSystem    Channel = "system"
	ChannelOperation Channel = "operation"
	ChannelSource    Channel = "source"
)

// Event is one bus message. Events are never persisted; a subscriber
// that is not attached when an event fires misses it.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Channel   Channel   `json:"channel"`
	Type      string    `json:"type"`
	OpID      string    `json:"opId,omitempty"`
	Payload   any       `json:"payload,omitempty"`
}

// Subscribers below this heartbeat interval would mostly receive
// liveness frames.
const minHeartbeat = 5 * time.Second

// subscriberBuffer bounds how far a slow subscriber may lag before
// events are dropped; delivery is best-effort by design.
const subscriberBuffer = 64

// Subscription is one attached subscriber. Events arrive on a single
// buffered channel, so per-subscriber order is preserved.
type Subscription struct {
	id   string
	ch   chan Event
	stop chan struct{}
}

// Events returns the subscriber's delivery channel.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Bus broadcasts events to all attached subscribers, best-effort: no
// retry, no history, and cross-subscriber ordering is not guaranteed.
type Bus struct {
	heartbeat time.Duration
	log       zerolog.Logger

	mu   sync.Mutex
	subs map[string]*Subscription
}

// NewBus creates a bus with the given heartbeat interval (floored at
// 5s).
func NewBus(heartbeat time.Duration, log zerolog.Logger) *Bus {
	if heartbeat < minHeartbeat {
		heartbeat = minHeartbeat
	}
	return &Bus{
		heartbeat: heartbeat,
		log:       log.With().Str("component", "bus").Logger(),
		subs:      map[string]*Subscription{},
	}
}

// Emit broadcasts an event, assigning a fresh id and timestamp.
func (b *Bus) Emit(channel Channel, eventType string, payload any, opID string) Event {
	ev := Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Channel:   channel,
		Type:      eventType,
		OpID:      opID,
		Payload:   payload,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		b.deliverLocked(sub, ev)
	}
	return ev
}

// Attach registers a subscriber, delivers a hello event first and
// starts its heartbeat.
func (b *Bus) Attach() *Subscription {
	sub := &Subscription{
		id:   uuid.NewString(),
		ch:   make(chan Event, subscriberBuffer),
		stop: make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.deliverLocked(sub, Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Channel:   ChannelSystem,
		Type:      "system.hello",
		Payload:   map[string]any{"subscriberId": sub.id, "heartbeatSeconds": int(b.heartbeat.Seconds())},
	})
	b.mu.Unlock()

	go b.heartbeatLoop(sub)
	return sub
}

// Detach stops a subscriber's heartbeat and removes it. Safe to call
// more than once.
func (b *Bus) Detach(sub *Subscription) {
	b.mu.Lock()
	_, attached := b.subs[sub.id]
	delete(b.subs, sub.id)
	b.mu.Unlock()

	if attached {
		close(sub.stop)
	}
}

func (b *Bus) heartbeatLoop(sub *Subscription) {
	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-sub.stop:
			return
		case t := <-ticker.C:
			b.mu.Lock()
			if _, ok := b.subs[sub.id]; ok {
				b.deliverLocked(sub, Event{
					ID:        uuid.NewString(),
					Timestamp: t,
					Channel:   ChannelSystem,
					Type:      "system.heartbeat",
				})
			}
			b.mu.Unlock()
		}
	}
}

func (b *Bus) deliverLocked(sub *Subscription, ev Event) {
	select {
	case sub.ch <- ev:
	default:
		b.log.Debug().Str("subscriber", sub.id).Str("type", ev.Type).Msg("subscriber lagging, event dropped")
	}
}
