package events

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func recvEvent(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestAttachDeliversHelloFirst(t *testing.T) {
	b := NewBus(15*time.Second, zerolog.Nop())
	sub := b.Attach()
	defer b.Detach(sub)

	ev := recvEvent(t, sub)
	if ev.Type != "system.hello" {
		t.Fatalf("first event type = %q, want system.hello", ev.Type)
	}
	if ev.Channel != ChannelSystem {
		t.Errorf("hello channel = %q, want system", ev.Channel)
	}
	payload, ok := ev.Payload.(map[string]any)
	if !ok {
		t.Fatalf("hello payload = %T, want map", ev.Payload)
	}
	if payload["subscriberId"] == "" {
		t.Error("hello payload missing subscriberId")
	}
	if payload["heartbeatSeconds"] != 15 {
		t.Errorf("heartbeatSeconds = %v, want 15", payload["heartbeatSeconds"])
	}
}

func TestEmitReachesAllSubscribers(t *testing.T) {
	b := NewBus(time.Hour, zerolog.Nop())
	a := b.Attach()
	c := b.Attach()
	defer b.Detach(a)
	defer b.Detach(c)
	recvEvent(t, a) // hello
	recvEvent(t, c)

	emitted := b.Emit(ChannelOperation, "operation.started", map[string]string{"op": "install"}, "op-1")
	if emitted.ID == "" || emitted.Timestamp.IsZero() {
		t.Error("Emit did not assign id/timestamp")
	}

	for _, sub := range []*Subscription{a, c} {
		ev := recvEvent(t, sub)
		if ev.Type != "operation.started" || ev.OpID != "op-1" {
			t.Errorf("got event %+v, want operation.started op-1", ev)
		}
	}
}

func TestPerSubscriberOrderPreserved(t *testing.T) {
	b := NewBus(time.Hour, zerolog.Nop())
	sub := b.Attach()
	defer b.Detach(sub)
	recvEvent(t, sub) // hello

	types := []string{"operation.started", "operation.target", "operation.completed"}
	for _, typ := range types {
		b.Emit(ChannelOperation, typ, nil, "op-1")
	}
	for _, want := range types {
		if ev := recvEvent(t, sub); ev.Type != want {
			t.Fatalf("event out of order: got %q, want %q", ev.Type, want)
		}
	}
}

func TestSlowSubscriberDropsNotBlocks(t *testing.T) {
	b := NewBus(time.Hour, zerolog.Nop())
	sub := b.Attach()
	defer b.Detach(sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// hello occupies one slot; overfill the rest without reading.
		for i := 0; i < subscriberBuffer*2; i++ {
			b.Emit(ChannelOperation, "operation.target", nil, "")
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a full subscriber")
	}
}

func TestHeartbeatArrives(t *testing.T) {
	b := NewBus(time.Second, zerolog.Nop())
	// NewBus floors the interval, so drive the loop directly.
	b.heartbeat = 20 * time.Millisecond

	sub := b.Attach()
	defer b.Detach(sub)
	recvEvent(t, sub) // hello

	ev := recvEvent(t, sub)
	if ev.Type != "system.heartbeat" {
		t.Errorf("event type = %q, want system.heartbeat", ev.Type)
	}
}

func TestDetachIsIdempotent(t *testing.T) {
	b := NewBus(time.Hour, zerolog.Nop())
	sub := b.Attach()
	b.Detach(sub)
	b.Detach(sub) // must not panic on a closed stop channel

	b.Emit(ChannelOperation, "operation.started", nil, "")
}

func TestHeartbeatFloor(t *testing.T) {
	b := NewBus(time.Second, zerolog.Nop())
	if b.heartbeat != minHeartbeat {
		t.Errorf("heartbeat = %v, want floored to %v", b.heartbeat, minHeartbeat)
	}
}
