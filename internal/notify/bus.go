package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Bus delivers best-effort, at-most-once notifications to connected clients.
//
// Publish failures never affect the operation that produced the event;
// callers use Emit, which logs and drops errors.
type Bus interface {
	Publish(ctx context.Context, e Event) error
}

type EventType string

const (
	EventAssignmentCreated    EventType = "assignment.created"
	EventAssignmentReassigned EventType = "assignment.reassigned"
	EventCallStatusChanged    EventType = "call.statusChanged"
)

// Event is the envelope carried on the bus.
type Event struct {
	Type EventType `json:"type"`
	// Recipient is the worker the event is addressed to; empty means broadcast.
	Recipient  string    `json:"recipient,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

type AssignmentCreated struct {
	LeadID     string    `json:"leadId"`
	WorkerID   string    `json:"workerId"`
	AssignedAt time.Time `json:"assignedAt"`
}

type AssignmentReassigned struct {
	LeadID       string `json:"leadId"`
	FromWorkerID string `json:"fromWorkerId"`
	ToWorkerID   string `json:"toWorkerId"`
}

type CallStatusChanged struct {
	CallID   string `json:"callId"`
	Status   string `json:"status"`
	Duration int    `json:"duration"`
}

// Emit publishes e and logs any failure.
func Emit(ctx context.Context, bus Bus, log *slog.Logger, e Event) {
	if bus == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	if err := bus.Publish(ctx, e); err != nil {
		if log == nil {
			log = slog.Default()
		}
		log.Warn("notification publish failed", "type", e.Type, "recipient", e.Recipient, "err", err)
	}
}

// MemoryBus records published events. Useful for tests.
type MemoryBus struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func NewMemoryBus() *MemoryBus { return &MemoryBus{} }

func (b *MemoryBus) Publish(ctx context.Context, e Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return b.Err
	}
	b.events = append(b.events, e)
	return nil
}

func (b *MemoryBus) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// OfType filters recorded events by type.
func (b *MemoryBus) OfType(t EventType) []Event {
	var out []Event
	for _, e := range b.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
