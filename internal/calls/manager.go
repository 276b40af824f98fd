package calls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"telecaller-platform/internal/leads"
	"telecaller-platform/internal/metrics"
	"telecaller-platform/internal/notify"
	"telecaller-platform/internal/workers"
	"telecaller-platform/pkg/logger"
	"telecaller-platform/pkg/utils"

	"github.com/google/uuid"
)

// Dialer establishes outbound calls with the telephony provider.
type Dialer interface {
	Dial(ctx context.Context, req DialRequest) (DialResult, error)
}

type DialRequest struct {
	CallID string
	// To is the lead's number in E.164.
	To string
	// AgentEndpoint is where the answered call is bridged (worker phone or sip: URI).
	AgentEndpoint string
	Record        bool
}

type DialResult struct {
	ProviderCallID string
}

const defaultMaxAttempts = 3

// Manager drives the call session state machine.
//
// Per-call writes are optimistic (Call.Version) with bounded retries; a lost
// race re-reads the call and re-evaluates the transition, so duplicate webhook
// deliveries collapse into one applied transition.
type Manager struct {
	Calls   Repository
	Leads   leads.Repository
	Workers workers.Repository
	Dialer  Dialer

	Bus     notify.Bus
	Metrics *metrics.Metrics
	Log     *slog.Logger

	// PhoneRegion is assumed for lead numbers stored without a country prefix.
	PhoneRegion string
	MaxAttempts int

	Now func() time.Time
}

func NewManager(callRepo Repository, leadRepo leads.Repository, workerRepo workers.Repository, dialer Dialer) *Manager {
	return &Manager{
		Calls:       callRepo,
		Leads:       leadRepo,
		Workers:     workerRepo,
		Dialer:      dialer,
		MaxAttempts: defaultMaxAttempts,
		Now:         time.Now,
	}
}

type InitiateRequest struct {
	WorkerID string
	LeadID   string
	CallType CallType
}

// Initiate creates a call record and asks the provider to establish it.
//
// On a provider failure the persisted call is returned together with an error
// wrapping ErrTelephony; the record stays initiated with FailureReason set.
func (m *Manager) Initiate(ctx context.Context, req InitiateRequest) (Call, error) {
	log := m.log(ctx).With("worker_id", req.WorkerID, "lead_id", req.LeadID)

	w, err := m.Workers.Get(ctx, req.WorkerID)
	if err != nil {
		return Call{}, err
	}
	if !w.CanTakeCall() {
		return Call{}, ErrWorkerUnavailable
	}
	l, err := m.Leads.Get(ctx, req.LeadID)
	if err != nil {
		return Call{}, err
	}
	if w.Role == workers.RoleTelecaller && !l.IsAssignedTo(w.ID) {
		return Call{}, ErrAccessDenied
	}
	to, err := utils.NormalizeE164(l.Phone, m.PhoneRegion)
	if err != nil {
		return Call{}, fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}

	callType := req.CallType
	if callType == "" {
		callType = CallTypeOutbound
	}
	c := Call{
		ID:               uuid.NewString(),
		TelecallerID:     w.ID,
		LeadID:           l.ID,
		CallType:         callType,
		Status:           StatusInitiated,
		StartTime:        m.now().UTC(),
		LeadStatusBefore: l.Status,
	}
	Normalize(&c)
	c, err = m.Calls.Create(ctx, c)
	if err != nil {
		return Call{}, fmt.Errorf("calls: create: %w", err)
	}

	res, dialErr := m.Dialer.Dial(ctx, DialRequest{CallID: c.ID, To: to, AgentEndpoint: w.Phone, Record: true})
	if dialErr != nil {
		m.Metrics.DialFailed()
		log.Error("call establishment failed", "call_id", c.ID, "err", dialErr)
		failed, err := m.mutate(ctx, func(ctx context.Context) (Call, error) { return m.Calls.Get(ctx, c.ID) },
			func(c *Call) (bool, error) {
				c.FailureReason = dialErr.Error()
				return true, nil
			})
		if err != nil {
			log.Warn("recording call failure reason failed", "call_id", c.ID, "err", err)
		} else {
			c = failed
		}
		return c, fmt.Errorf("%w: %w", ErrTelephony, dialErr)
	}

	c, err = m.mutate(ctx, func(ctx context.Context) (Call, error) { return m.Calls.Get(ctx, c.ID) },
		func(c *Call) (bool, error) {
			c.ProviderCallID = res.ProviderCallID
			return true, nil
		})
	if err != nil {
		return Call{}, fmt.Errorf("calls: record provider id: %w", err)
	}
	log.Info("call initiated", "call_id", c.ID, "provider_call_id", c.ProviderCallID)
	return c, nil
}

// StatusUpdate is a typed provider status report.
type StatusUpdate struct {
	ProviderCallID  string
	Status          Status
	DurationSeconds *int
	RecordingURL    string
}

// ApplyStatus reconciles a provider status report with the stored call.
//
// Reports whose rank does not exceed the current state are no-ops, as is any
// report for a call that is already terminal; late recording URLs are still kept.
// Lead feedback runs once, on the transition into completed with a positive duration.
// The call row claims the feedback (FeedbackApplied) in the same versioned write
// as the transition, and only the writer that wins that claim touches the lead.
func (m *Manager) ApplyStatus(ctx context.Context, u StatusUpdate) (Call, error) {
	if !u.Status.Valid() {
		return Call{}, fmt.Errorf("calls: invalid status %q", u.Status)
	}
	log := m.log(ctx).With("provider_call_id", u.ProviderCallID, "status", u.Status)

	for i := 0; i < m.attempts(); i++ {
		c, err := m.byProvider(ctx, u.ProviderCallID)
		if err != nil {
			return Call{}, err
		}
		Normalize(&c)

		changed := false
		if u.RecordingURL != "" && u.RecordingURL != c.RecordingURL {
			c.RecordingURL = u.RecordingURL
			changed = true
		}

		transitioned := !c.Status.IsTerminal() && u.Status.Rank() > c.Status.Rank()
		if transitioned {
			c.Status = u.Status
			if u.Status.IsTerminal() {
				m.close(&c, u.DurationSeconds)
			}
		}
		Normalize(&c)

		// A released claim (lead write failed) is picked up again by a redelivered report.
		claim := c.Status == StatusCompleted && c.Duration > 0 && !c.FeedbackApplied
		if !changed && !transitioned && !claim {
			log.Debug("stale or duplicate status ignored", "call_id", c.ID, "current", c.Status)
			return c, nil
		}
		if claim {
			c.FeedbackApplied = true
		}

		updated, err := m.Calls.Update(ctx, c)
		if errors.Is(err, ErrConflict) {
			log.Debug("call update conflict, retrying", "call_id", c.ID, "attempt", i+1)
			continue
		}
		if err != nil {
			return Call{}, fmt.Errorf("calls: persist: %w", err)
		}

		if transitioned {
			m.afterTransition(ctx, updated)
		}
		if claim {
			return m.finishFeedback(ctx, updated)
		}
		return updated, nil
	}
	return Call{}, ErrConflict
}

// finishFeedback applies the claimed feedback to the lead and records the
// resulting lead status on the call. When the lead cannot be written the claim
// is released so a redelivered completion can try again.
func (m *Manager) finishFeedback(ctx context.Context, c Call) (Call, error) {
	log := m.log(ctx).With("call_id", c.ID, "lead_id", c.LeadID)
	byID := func(ctx context.Context) (Call, error) { return m.Calls.Get(ctx, c.ID) }

	// Re-read so a disposition stored after the claim is reflected on the lead.
	if cur, err := byID(ctx); err == nil {
		Normalize(&cur)
		c = cur
	}

	st, err := m.applyFeedback(ctx, c)
	if err != nil {
		if _, rerr := m.mutate(ctx, byID, func(c *Call) (bool, error) {
			if !c.FeedbackApplied {
				return false, nil
			}
			c.FeedbackApplied = false
			return true, nil
		}); rerr != nil {
			log.Error("feedback claim release failed", "err", rerr)
		}
		return c, fmt.Errorf("calls: apply lead feedback: %w", err)
	}
	if c.LeadStatusAfter != "" || st == "" {
		return c, nil
	}

	updated, err := m.mutate(ctx, byID, func(c *Call) (bool, error) {
		if c.LeadStatusAfter != "" {
			return false, nil
		}
		c.LeadStatusAfter = st
		return true, nil
	})
	if err != nil {
		log.Warn("recording lead status on call failed", "err", err)
		return c, nil
	}
	return updated, nil
}

// close stamps the end of a call that just reached a terminal state.
func (m *Manager) close(c *Call, durationSeconds *int) {
	end := m.now().UTC()
	if durationSeconds != nil && *durationSeconds >= 0 && !c.StartTime.IsZero() {
		end = c.StartTime.Add(time.Duration(*durationSeconds) * time.Second)
	}
	c.EndTime = &end
	if c.Outcome == "" {
		d := 0
		if durationSeconds != nil {
			d = *durationSeconds
		} else if end.After(c.StartTime) {
			d = int(end.Sub(c.StartTime).Seconds())
		}
		c.Outcome = defaultOutcome(c.Status, d)
	}
}

func (m *Manager) afterTransition(ctx context.Context, c Call) {
	log := m.log(ctx)
	m.Metrics.CallTransition(string(c.Status))

	if c.Status.IsTerminal() {
		if err := m.Workers.RecordCallOutcome(ctx, c.TelecallerID, c.IsSuccessful); err != nil {
			log.Warn("worker call counters update failed", "worker_id", c.TelecallerID, "call_id", c.ID, "err", err)
		}
	}
	log.Info("call status applied", "call_id", c.ID, "status", c.Status, "duration", c.Duration, "outcome", c.Outcome)

	notify.Emit(ctx, m.Bus, log, notify.Event{
		Type:      notify.EventCallStatusChanged,
		Recipient: c.TelecallerID,
		Payload:   notify.CallStatusChanged{CallID: c.ID, Status: string(c.Status), Duration: c.Duration},
	})
}

// applyFeedback updates the lead from a completed call exactly once per call.
func (m *Manager) applyFeedback(ctx context.Context, c Call) (leads.Status, error) {
	for i := 0; i < m.attempts(); i++ {
		l, err := m.Leads.Get(ctx, c.LeadID)
		if err != nil {
			return "", err
		}
		if l.LastFeedbackCallID == c.ID {
			return l.Status, nil
		}
		ApplyFeedback(&l, c)
		updated, err := m.Leads.Update(ctx, l)
		if errors.Is(err, leads.ErrConflict) {
			continue
		}
		if err != nil {
			return "", err
		}
		m.log(ctx).Info("lead updated from call", "lead_id", l.ID, "call_id", c.ID, "lead_status", updated.Status)
		return updated.Status, nil
	}
	return "", leads.ErrConflict
}

// RecordingUpdate is a typed provider recording report.
type RecordingUpdate struct {
	ProviderCallID    string
	RecordingURL      string
	RecordingDuration int
}

// ApplyRecording stores recording metadata regardless of call state.
// It never changes the call status.
func (m *Manager) ApplyRecording(ctx context.Context, u RecordingUpdate) (Call, error) {
	c, err := m.mutate(ctx, func(ctx context.Context) (Call, error) { return m.byProvider(ctx, u.ProviderCallID) },
		func(c *Call) (bool, error) {
			if c.RecordingURL == u.RecordingURL && c.RecordingDuration == u.RecordingDuration {
				return false, nil
			}
			c.RecordingURL = u.RecordingURL
			c.RecordingDuration = u.RecordingDuration
			return true, nil
		})
	if err != nil {
		return Call{}, err
	}
	m.log(ctx).Info("call recording stored", "call_id", c.ID, "recording_duration", c.RecordingDuration)
	return c, nil
}

// Disposition is the telecaller's record of how a call went.
type Disposition struct {
	CallID string
	// WorkerID must own the call; empty skips the ownership check (privileged callers).
	WorkerID string

	Outcome          Outcome
	LeadStatusAfter  leads.Status
	Notes            string
	NextFollowupDate *time.Time
}

// RecordDisposition stores the telecaller's outcome for a call.
//
// Before the call is terminal the values are kept for the feedback step. Once
// terminal the outcome is fixed, and with it IsSuccessful and the worker
// counters; only notes, lead status and next follow-up may still change. After
// feedback has been applied the lead status and next follow-up are amended on
// the lead; contact date and follow-up count are not touched again.
func (m *Manager) RecordDisposition(ctx context.Context, d Disposition) (Call, error) {
	if d.Outcome != "" && !d.Outcome.Valid() {
		return Call{}, fmt.Errorf("%w: outcome %q", ErrInvalidDisposition, d.Outcome)
	}
	if d.LeadStatusAfter != "" && !d.LeadStatusAfter.Valid() {
		return Call{}, fmt.Errorf("%w: lead status %q", ErrInvalidDisposition, d.LeadStatusAfter)
	}

	var outcomeIgnored bool
	c, err := m.mutate(ctx, func(ctx context.Context) (Call, error) { return m.Calls.Get(ctx, d.CallID) },
		func(c *Call) (bool, error) {
			if d.WorkerID != "" && c.TelecallerID != d.WorkerID {
				return false, ErrAccessDenied
			}
			outcomeIgnored = false
			if d.Outcome != "" && d.Outcome != c.Outcome {
				if c.Status.IsTerminal() {
					outcomeIgnored = true
				} else {
					c.Outcome = d.Outcome
				}
			}
			if d.LeadStatusAfter != "" {
				c.LeadStatusAfter = d.LeadStatusAfter
			}
			if d.Notes != "" {
				c.Notes = d.Notes
			}
			if d.NextFollowupDate != nil {
				next := d.NextFollowupDate.UTC()
				c.NextFollowupDate = &next
			}
			return true, nil
		})
	if err != nil {
		return Call{}, err
	}

	log := m.log(ctx).With("call_id", c.ID)
	if outcomeIgnored {
		log.Info("outcome of a finished call is fixed, kept", "outcome", c.Outcome, "requested", d.Outcome)
	}
	if c.FeedbackApplied {
		if err := m.amendLead(ctx, c); err != nil {
			return c, fmt.Errorf("calls: amend lead: %w", err)
		}
	}
	log.Info("call disposition recorded", "outcome", c.Outcome, "lead_status_after", c.LeadStatusAfter)
	return c, nil
}

func (m *Manager) amendLead(ctx context.Context, c Call) error {
	for i := 0; i < m.attempts(); i++ {
		l, err := m.Leads.Get(ctx, c.LeadID)
		if err != nil {
			return err
		}
		if !amendLeadStatus(&l, c) {
			return nil
		}
		_, err = m.Leads.Update(ctx, l)
		if errors.Is(err, leads.ErrConflict) {
			continue
		}
		return err
	}
	return leads.ErrConflict
}

// Get returns a call by id.
func (m *Manager) Get(ctx context.Context, id string) (Call, error) {
	c, err := m.Calls.Get(ctx, id)
	if err != nil {
		return Call{}, err
	}
	Normalize(&c)
	return c, nil
}

// mutate runs a normalized read-modify-write on one call with optimistic retries.
// fn reports whether anything changed; unchanged calls are not written.
func (m *Manager) mutate(ctx context.Context, load func(context.Context) (Call, error), fn func(c *Call) (bool, error)) (Call, error) {
	for i := 0; i < m.attempts(); i++ {
		c, err := load(ctx)
		if err != nil {
			return Call{}, err
		}
		Normalize(&c)
		changed, err := fn(&c)
		if err != nil {
			return Call{}, err
		}
		if !changed {
			return c, nil
		}
		Normalize(&c)
		updated, err := m.Calls.Update(ctx, c)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return Call{}, err
		}
		return updated, nil
	}
	return Call{}, ErrConflict
}

func (m *Manager) byProvider(ctx context.Context, providerCallID string) (Call, error) {
	if providerCallID == "" {
		return Call{}, ErrUnknownCall
	}
	c, err := m.Calls.GetByProviderID(ctx, providerCallID)
	if errors.Is(err, ErrNotFound) {
		return Call{}, ErrUnknownCall
	}
	return c, err
}

func (m *Manager) attempts() int {
	if m.MaxAttempts <= 0 {
		return defaultMaxAttempts
	}
	return m.MaxAttempts
}

func (m *Manager) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

func (m *Manager) log(ctx context.Context) *slog.Logger {
	if m.Log != nil {
		return m.Log
	}
	return logger.From(ctx)
}
