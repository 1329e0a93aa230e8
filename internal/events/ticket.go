package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Consume outcomes.
const (
	ReasonMissing         = "missing"
	ReasonExpired         = "expired"
	ReasonSessionMismatch = "session-mismatch"
)

// Ticket is a single-use token proving a subscriber was recently
// authorized, for channels that cannot carry the shared secret header.
type Ticket struct {
	ID        string    `json:"ticket"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type ticketRecord struct {
	sessionID string
	expiresAt time.Time
}

// TicketStore mints and consumes tickets. In-memory, per-process.
type TicketStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	tickets map[string]ticketRecord
}

// NewTicketStore creates a store whose tickets live for ttl.
func NewTicketStore(ttl time.Duration) *TicketStore {
	return &TicketStore{
		ttl:     ttl,
		now:     time.Now,
		tickets: map[string]ticketRecord{},
	}
}

// Create mints a ticket bound to a session.
func (t *TicketStore) Create(sessionID string) Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweepLocked()

	tk := Ticket{ID: uuid.NewString(), ExpiresAt: t.now().Add(t.ttl)}
	t.tickets[tk.ID] = ticketRecord{sessionID: sessionID, expiresAt: tk.ExpiresAt}
	return tk
}

// Consume validates and deletes a ticket. The record is removed
// regardless of the outcome, so a ticket can never be replayed. The
// lookup runs before the sweep so an expired ticket reports expired,
// not missing.
func (t *TicketStore) Consume(ticketID, sessionID string) (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.tickets[ticketID]
	delete(t.tickets, ticketID)
	t.sweepLocked()
	if !ok {
		return false, ReasonMissing
	}

	if t.now().After(rec.expiresAt) {
		return false, ReasonExpired
	}
	if rec.sessionID != sessionID {
		return false, ReasonSessionMismatch
	}
	return true, ""
}

func (t *TicketStore) sweepLocked() {
	now := t.now()
	for id, rec := range t.tickets {
		if now.After(rec.expiresAt) {
			delete(t.tickets, id)
		}
	}
}
