package calls

import (
	"errors"
	"time"

	"telecaller-platform/internal/leads"
)

// Call is one attempted phone contact between a telecaller and a lead.
//
// Duration and IsSuccessful are derived by Normalize and must never be set by hand.
// Once Status is terminal the call is immutable except for recording metadata
// and the telecaller's disposition.
//
// ProviderCallID is the telephony provider's identifier (Twilio CallSid); it is
// unique when non-empty and is the lookup key for webhooks.
type Call struct {
	ID             string   `json:"id" db:"id"`
	TelecallerID   string   `json:"telecaller_id" db:"telecaller_id"`
	LeadID         string   `json:"lead_id" db:"lead_id"`
	ProviderCallID string   `json:"provider_call_id,omitempty" db:"provider_call_id"`
	CallType       CallType `json:"call_type" db:"call_type"`

	Status    Status     `json:"status" db:"status"`
	StartTime time.Time  `json:"start_time" db:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty" db:"end_time"`

	// Duration is the call duration in whole seconds.
	Duration int `json:"duration" db:"duration"`

	Outcome Outcome `json:"outcome,omitempty" db:"outcome"`

	RecordingURL      string `json:"recording_url,omitempty" db:"recording_url"`
	RecordingDuration int    `json:"recording_duration,omitempty" db:"recording_duration"`

	LeadStatusBefore leads.Status `json:"lead_status_before,omitempty" db:"lead_status_before"`
	LeadStatusAfter  leads.Status `json:"lead_status_after,omitempty" db:"lead_status_after"`
	NextFollowupDate *time.Time   `json:"next_followup_date,omitempty" db:"next_followup_date"`
	Notes            string       `json:"notes,omitempty" db:"notes"`

	IsSuccessful bool `json:"is_successful" db:"is_successful"`

	// FeedbackApplied is set once the completion has been applied to the lead.
	FeedbackApplied bool `json:"-" db:"feedback_applied"`

	// FailureReason holds the telephony error when establishment failed.
	FailureReason string `json:"failure_reason,omitempty" db:"failure_reason"`

	Version int64 `json:"-" db:"version"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CallType string

const (
	CallTypeOutbound CallType = "outbound"
	CallTypeInbound  CallType = "inbound"
)

type Status string

const (
	StatusInitiated Status = "initiated"
	StatusRinging   Status = "ringing"
	StatusAnswered  Status = "answered"
	StatusCompleted Status = "completed"
	StatusBusy      Status = "busy"
	StatusFailed    Status = "failed"
	StatusNoAnswer  Status = "no-answer"
	StatusCancelled Status = "cancelled"
)

func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusBusy, StatusFailed, StatusNoAnswer, StatusCancelled:
		return true
	default:
		return false
	}
}

func (s Status) Valid() bool {
	return s == StatusInitiated || s == StatusRinging || s == StatusAnswered || s.IsTerminal()
}

// Rank orders states for out-of-order webhook reconciliation.
// A reported status is applied only when its rank exceeds the current one.
func (s Status) Rank() int {
	switch s {
	case StatusInitiated:
		return 0
	case StatusRinging:
		return 1
	case StatusAnswered:
		return 2
	default:
		if s.IsTerminal() {
			return 3
		}
		return -1
	}
}

type Outcome string

const (
	OutcomeConnected    Outcome = "connected"
	OutcomeNoAnswer     Outcome = "no_answer"
	OutcomeBusy         Outcome = "busy"
	OutcomeVoicemail    Outcome = "voicemail"
	OutcomeWrongNumber  Outcome = "wrong_number"
	OutcomeDisconnected Outcome = "disconnected"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeConnected, OutcomeNoAnswer, OutcomeBusy, OutcomeVoicemail, OutcomeWrongNumber, OutcomeDisconnected:
		return true
	default:
		return false
	}
}

var (
	ErrNotFound = errors.New("calls: not found")
	ErrConflict = errors.New("calls: version conflict")
	// ErrDuplicateProviderID is returned when a provider call id is already bound to another call.
	ErrDuplicateProviderID = errors.New("calls: duplicate provider call id")

	ErrWorkerUnavailable  = errors.New("calls: worker is busy or offline")
	ErrAccessDenied       = errors.New("calls: lead is not assigned to this telecaller")
	ErrTelephony          = errors.New("calls: telephony provider error")
	ErrUnknownCall        = errors.New("calls: unknown provider call id")
	ErrInvalidPhone       = errors.New("calls: lead phone number is not dialable")
	ErrInvalidDisposition = errors.New("calls: invalid disposition")
)
