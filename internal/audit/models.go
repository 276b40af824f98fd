package audit

import "time"

// Event is an immutable, append-only record of an assignment decision.
//
// Invariants:
// - Events are never updated or deleted.
// - Recording is best-effort; assignment never blocks on audit failures.
//
// Storage (Postgres): table assignment_events, INSERT-only.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	LeadID       string `json:"lead_id" db:"lead_id"`
	FromWorkerID string `json:"from_worker_id,omitempty" db:"from_worker_id"`
	ToWorkerID   string `json:"to_worker_id,omitempty" db:"to_worker_id"`

	// ActorID is the user causing the event, or "system" for automatic decisions.
	ActorID string `json:"actor_id,omitempty" db:"actor_id"`

	Message string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeAutoAssign EventType = "assignment.auto"
	EventTypeManual     EventType = "assignment.manual"
	EventTypeReassign   EventType = "assignment.reassign"
	EventTypeCapReached EventType = "assignment.cap_reached"
)
