package workers

import (
	"errors"
	"time"

	"telecaller-platform/internal/scoring"
)

// Worker is a platform user who may handle leads.
//
// Counters are maintained by the call session manager (calls) and the
// assignment engine (leads); scoring only reads them.
type Worker struct {
	ID    string `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Phone string `json:"phone,omitempty" db:"phone"` // E.164 number or sip: URI used to bridge calls

	Role          Role   `json:"role" db:"role"`
	IsActive      bool   `json:"is_active" db:"is_active"`
	CurrentStatus Status `json:"current_status" db:"current_status"`

	LastActive time.Time `json:"last_active" db:"last_active"`

	TotalCalls      int `json:"total_calls" db:"total_calls"`
	SuccessfulCalls int `json:"successful_calls" db:"successful_calls"`
	TotalLeads      int `json:"total_leads" db:"total_leads"`
	ConvertedLeads  int `json:"converted_leads" db:"converted_leads"`

	// Period counters are reset by the daily housekeeping job.
	PeriodCalls           int `json:"period_calls" db:"period_calls"`
	PeriodSuccessfulCalls int `json:"period_successful_calls" db:"period_successful_calls"`

	SupervisorID string   `json:"supervisor_id,omitempty" db:"supervisor_id"`
	TeamMembers  []string `json:"team_members,omitempty" db:"team_members"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Role string

const (
	RoleTelecaller Role = "telecaller"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusOnline    Status = "online" // legacy alias of available
	StatusBusy      Status = "busy"
	StatusBreak     Status = "break"
	StatusOffline   Status = "offline"
)

// IsTelecaller reports whether the worker can own leads at all.
func (w Worker) IsTelecaller() bool {
	return w.Role == RoleTelecaller && w.IsActive
}

// Eligible reports whether the worker may receive automatic assignments right now.
func (w Worker) Eligible() bool {
	if !w.IsTelecaller() {
		return false
	}
	return w.CurrentStatus == StatusAvailable || w.CurrentStatus == StatusOnline
}

// CanTakeCall reports whether the worker may start a call.
// break is tolerated; busy and offline are not.
func (w Worker) CanTakeCall() bool {
	return w.IsActive && w.CurrentStatus != StatusBusy && w.CurrentStatus != StatusOffline
}

// Supervises reports whether target is on w's team.
func (w Worker) Supervises(target Worker) bool {
	if target.SupervisorID != "" && target.SupervisorID == w.ID {
		return true
	}
	for _, id := range w.TeamMembers {
		if id == target.ID {
			return true
		}
	}
	return false
}

// Metrics projects the counters used by the scorer.
func (w Worker) Metrics() scoring.Metrics {
	return scoring.Metrics{
		TotalLeads:      w.TotalLeads,
		ConvertedLeads:  w.ConvertedLeads,
		TotalCalls:      w.TotalCalls,
		SuccessfulCalls: w.SuccessfulCalls,
		LastActive:      w.LastActive,
	}
}

var ErrNotFound = errors.New("workers: not found")
