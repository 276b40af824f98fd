package leads

import (
	"errors"
	"time"
)

// Lead is a sales prospect routed to telecallers.
//
// Invariants:
// - AssignedTo, when set, references a worker with role telecaller.
// - ReassignmentCount never exceeds the configured cap.
// - Leads are never hard-deleted; Archived is informational only.
// - converted and closed are terminal for assignment purposes.
type Lead struct {
	ID    string `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Phone string `json:"phone" db:"phone"`
	Email string `json:"email,omitempty" db:"email"`

	Status   Status   `json:"status" db:"status"`
	Priority Priority `json:"priority" db:"priority"`
	Quality  Quality  `json:"quality" db:"quality"`

	AssignedTo        *string    `json:"assigned_to,omitempty" db:"assigned_to"`
	AssignedBy        string     `json:"assigned_by,omitempty" db:"assigned_by"`
	AssignedAt        *time.Time `json:"assigned_at,omitempty" db:"assigned_at"`
	AutoAssigned      bool       `json:"auto_assigned" db:"auto_assigned"`
	ReassignmentCount int        `json:"reassignment_count" db:"reassignment_count"`

	LastContactDate  *time.Time `json:"last_contact_date,omitempty" db:"last_contact_date"`
	NextFollowupDate *time.Time `json:"next_followup_date,omitempty" db:"next_followup_date"`
	FollowupCount    int        `json:"followup_count" db:"followup_count"`

	Score int `json:"score" db:"score"`

	Archived bool `json:"archived" db:"archived"`

	// LastFeedbackCallID is the last call whose completion was applied to this lead.
	LastFeedbackCallID string `json:"-" db:"last_feedback_call_id"`

	// Version is bumped on every successful update (optimistic locking).
	Version int64 `json:"-" db:"version"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusNew           Status = "new"
	StatusContacted     Status = "contacted"
	StatusQualified     Status = "qualified"
	StatusInterested    Status = "interested"
	StatusNotInterested Status = "not_interested"
	StatusCallback      Status = "callback"
	StatusConverted     Status = "converted"
	StatusClosed        Status = "closed"
)

// IsTerminal reports whether no further assignment may target a lead in this status.
func (s Status) IsTerminal() bool {
	return s == StatusConverted || s == StatusClosed
}

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusQualified, StatusInterested,
		StatusNotInterested, StatusCallback, StatusConverted, StatusClosed:
		return true
	default:
		return false
	}
}

// PendingStatuses count towards a worker's open workload.
var PendingStatuses = []Status{StatusNew, StatusContacted, StatusCallback}

// IsPending reports whether a lead in this status counts as open work.
func (s Status) IsPending() bool {
	for _, p := range PendingStatuses {
		if s == p {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Quality string

const (
	QualityHot     Quality = "hot"
	QualityWarm    Quality = "warm"
	QualityCold    Quality = "cold"
	QualityUnknown Quality = "unknown"
)

// AssignedBySystem marks automatic assignments and reassignments.
const AssignedBySystem = "system"

// IsAssignedTo reports whether the lead is currently bound to workerID.
func (l Lead) IsAssignedTo(workerID string) bool {
	return l.AssignedTo != nil && *l.AssignedTo == workerID
}

// CurrentAssignee returns the assignee id or "".
func (l Lead) CurrentAssignee() string {
	if l.AssignedTo == nil {
		return ""
	}
	return *l.AssignedTo
}

// StaleQuery selects leads eligible for periodic reassignment.
type StaleQuery struct {
	// AssignedBefore is the staleness cutoff (now minus staleness threshold).
	AssignedBefore time.Time
	// MaxReassignments excludes leads whose count already reached the cap.
	MaxReassignments int
	Limit            int
}

// Matches applies the staleness predicate to a single lead.
// A lead is stale when it is still new/contacted, was assigned before the cutoff,
// has had no contact since that assignment, is under the cap and not archived.
func (q StaleQuery) Matches(l Lead) bool {
	if l.Archived || l.AssignedTo == nil || l.AssignedAt == nil {
		return false
	}
	if l.Status != StatusNew && l.Status != StatusContacted {
		return false
	}
	if !l.AssignedAt.Before(q.AssignedBefore) {
		return false
	}
	if l.ReassignmentCount >= q.MaxReassignments {
		return false
	}
	if l.LastContactDate != nil && !l.LastContactDate.Before(*l.AssignedAt) {
		return false
	}
	return true
}

var (
	ErrNotFound = errors.New("leads: not found")
	// ErrConflict is returned when an update lost an optimistic-lock race.
	ErrConflict = errors.New("leads: version conflict")
)
