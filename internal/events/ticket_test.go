package events

import (
	"testing"
	"time"
)

func TestTicketSingleUse(t *testing.T) {
	ts := NewTicketStore(30 * time.Second)
	tk := ts.Create("session-1")

	ok, reason := ts.Consume(tk.ID, "session-1")
	if !ok {
		t.Fatalf("first Consume failed: %s", reason)
	}
	ok, reason = ts.Consume(tk.ID, "session-1")
	if ok {
		t.Fatal("second Consume succeeded, ticket replayed")
	}
	if reason != ReasonMissing {
		t.Errorf("replay reason = %q, want missing", reason)
	}
}

func TestTicketExpiry(t *testing.T) {
	ts := NewTicketStore(30 * time.Second)
	now := time.Now()
	ts.now = func() time.Time { return now }

	tk := ts.Create("session-1")
	now = now.Add(31 * time.Second)

	ok, reason := ts.Consume(tk.ID, "session-1")
	if ok {
		t.Fatal("expired ticket accepted")
	}
	if reason != ReasonExpired {
		t.Errorf("reason = %q, want expired", reason)
	}

	// The expired attempt burned the record: a retry reports missing.
	if _, reason := ts.Consume(tk.ID, "session-1"); reason != ReasonMissing {
		t.Errorf("retry reason = %q, want missing", reason)
	}
}

func TestTicketSessionMismatch(t *testing.T) {
	ts := NewTicketStore(30 * time.Second)
	tk := ts.Create("session-1")

	ok, reason := ts.Consume(tk.ID, "session-2")
	if ok {
		t.Fatal("ticket accepted for wrong session")
	}
	if reason != ReasonSessionMismatch {
		t.Errorf("reason = %q, want session-mismatch", reason)
	}

	// The mismatch burned it: the right session cannot use it either.
	if ok, _ := ts.Consume(tk.ID, "session-1"); ok {
		t.Error("ticket survived a mismatched Consume")
	}
}

func TestTicketUnknown(t *testing.T) {
	ts := NewTicketStore(30 * time.Second)
	if ok, reason := ts.Consume("nope", "session-1"); ok || reason != ReasonMissing {
		t.Errorf("Consume(unknown) = %v %q, want false missing", ok, reason)
	}
}

func TestSweepDropsExpiredTickets(t *testing.T) {
	ts := NewTicketStore(30 * time.Second)
	now := time.Now()
	ts.now = func() time.Time { return now }

	ts.Create("a")
	ts.Create("b")
	now = now.Add(time.Minute)
	ts.Create("c")

	ts.mu.Lock()
	n := len(ts.tickets)
	ts.mu.Unlock()
	if n != 1 {
		t.Errorf("store holds %d tickets after sweep, want 1", n)
	}
}
