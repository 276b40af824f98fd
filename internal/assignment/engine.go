package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"telecaller-platform/internal/audit"
	"telecaller-platform/internal/leads"
	"telecaller-platform/internal/metrics"
	"telecaller-platform/internal/notify"
	"telecaller-platform/internal/workers"
	"telecaller-platform/pkg/logger"
)

var (
	ErrNoEligibleWorker = errors.New("assignment: no eligible worker")
	ErrInvalidTarget    = errors.New("assignment: target is not an active telecaller")
	ErrForbidden        = errors.New("assignment: actor may not assign to this worker")
	ErrLeadClosed       = errors.New("assignment: lead is converted or closed")
)

const (
	// DefaultMaxReassignments caps automated reassignments per lead.
	DefaultMaxReassignments = 3

	defaultMaxAttempts = 3
)

// Selector enumerates eligible workers with their live workload.
type Selector interface {
	Eligible(ctx context.Context, exclude string) ([]workers.Candidate, error)
}

// Engine binds leads to telecallers.
//
// Every mutation is a read-modify-write guarded by the lead version; on a lost
// race the engine re-reads and retries up to MaxAttempts times.
//
// Side effects after a successful write (notification, audit, counters) are
// best-effort and never fail the assignment.
type Engine struct {
	Leads     leads.Repository
	Workers   workers.Repository
	Directory Selector

	Audit   *audit.Service
	Bus     notify.Bus
	Metrics *metrics.Metrics
	Log     *slog.Logger

	MaxReassignments int
	MaxAttempts      int

	Now func() time.Time
}

func NewEngine(leadRepo leads.Repository, workerRepo workers.Repository, dir Selector) *Engine {
	return &Engine{
		Leads:            leadRepo,
		Workers:          workerRepo,
		Directory:        dir,
		MaxReassignments: DefaultMaxReassignments,
		MaxAttempts:      defaultMaxAttempts,
		Now:              time.Now,
	}
}

// AutoAssign binds the lead to the eligible worker with the lowest selection cost.
func (e *Engine) AutoAssign(ctx context.Context, leadID string) (leads.Lead, error) {
	var (
		chosen workers.Candidate
		cost   int
	)
	updated, err := e.mutate(ctx, leadID, func(l *leads.Lead, now time.Time) error {
		cands, err := e.Directory.Eligible(ctx, "")
		if err != nil {
			return err
		}
		best, ok := PickLeastCost(cands, now)
		if !ok {
			return ErrNoEligibleWorker
		}
		chosen, cost = best, Cost(best, now)
		bind(l, best.Worker.ID, leads.AssignedBySystem, true, now)
		return nil
	})
	if err != nil {
		e.failed("auto", err)
		return leads.Lead{}, err
	}

	e.log(ctx).Info("lead auto-assigned",
		"lead_id", updated.ID,
		"worker_id", chosen.Worker.ID,
		"pending_leads", chosen.PendingLeads,
		"cost", cost,
	)
	e.afterBind(ctx, updated, "", audit.EventTypeAutoAssign, leads.AssignedBySystem)
	e.Metrics.Assignment("auto")
	return updated, nil
}

// ManualAssignment is an operator-driven assignment request.
type ManualAssignment struct {
	LeadID   string
	WorkerID string
	ActorID  string

	// Authorized is the caller's authorization pre-check (see CanAssign).
	Authorized bool
}

// ManualAssign binds the lead to an explicitly chosen telecaller.
// It does not count as a reassignment.
func (e *Engine) ManualAssign(ctx context.Context, in ManualAssignment) (leads.Lead, error) {
	if !in.Authorized {
		e.failed("manual", ErrForbidden)
		return leads.Lead{}, ErrForbidden
	}
	target, err := e.Workers.Get(ctx, in.WorkerID)
	if errors.Is(err, workers.ErrNotFound) {
		e.failed("manual", ErrInvalidTarget)
		return leads.Lead{}, ErrInvalidTarget
	}
	if err != nil {
		return leads.Lead{}, fmt.Errorf("assignment: load worker: %w", err)
	}
	if !target.IsTelecaller() {
		e.failed("manual", ErrInvalidTarget)
		return leads.Lead{}, ErrInvalidTarget
	}

	var prev string
	updated, err := e.mutate(ctx, in.LeadID, func(l *leads.Lead, now time.Time) error {
		prev = l.CurrentAssignee()
		bind(l, target.ID, in.ActorID, false, now)
		return nil
	})
	if err != nil {
		e.failed("manual", err)
		return leads.Lead{}, err
	}

	e.log(ctx).Info("lead manually assigned", "lead_id", updated.ID, "worker_id", target.ID, "actor_id", in.ActorID)
	e.afterBind(ctx, updated, prev, audit.EventTypeManual, in.ActorID)
	e.Metrics.Assignment("manual")
	return updated, nil
}

// Reassign moves a stalled lead to a different eligible worker.
//
// still is the staleness predicate the lead was selected by; it is evaluated
// again on the freshly read lead, so a lead that was contacted or manually
// reassigned in the meantime is left alone. Leads converted or closed since
// selection are skipped the same way.
//
// It returns nil without changes when no other worker is eligible or when the
// lead already reached the reassignment cap; both are logged.
func (e *Engine) Reassign(ctx context.Context, leadID string, still leads.StaleQuery) error {
	if still.MaxReassignments <= 0 {
		still.MaxReassignments = e.maxReassignments()
	}
	var (
		from    string
		to      workers.Candidate
		skipped string
	)
	updated, err := e.mutate(ctx, leadID, func(l *leads.Lead, now time.Time) error {
		skipped = ""
		from = l.CurrentAssignee()
		if l.ReassignmentCount >= e.maxReassignments() {
			skipped = "cap"
			return errSkip
		}
		if !still.Matches(*l) {
			skipped = "not_stale"
			return errSkip
		}
		cands, err := e.Directory.Eligible(ctx, from)
		if err != nil {
			return err
		}
		best, ok := PickLeastCost(cands, now)
		if !ok {
			skipped = "no_other_worker"
			return errSkip
		}
		to = best
		bind(l, best.Worker.ID, leads.AssignedBySystem, true, now)
		l.ReassignmentCount++
		return nil
	})

	log := e.log(ctx).With("lead_id", leadID)
	if errors.Is(err, errSkip) {
		switch skipped {
		case "cap":
			log.Warn("reassignment cap reached, lead needs manual action", "worker_id", from, "cap", e.maxReassignments())
			e.Metrics.CapReached()
			if e.Audit != nil {
				if aerr := e.Audit.LogCapReached(ctx, leadID, from, e.maxReassignments()); aerr != nil {
					log.Warn("assignment event append failed", "err", aerr)
				}
			}
		case "not_stale":
			log.Debug("lead no longer stale, left in place", "worker_id", from)
		default:
			log.Info("no other eligible worker, lead left in place", "worker_id", from)
			e.Metrics.AssignmentFailed("reassign:" + skipped)
		}
		return nil
	}
	if errors.Is(err, ErrLeadClosed) {
		log.Debug("lead closed since selection, left in place")
		return nil
	}
	if err != nil {
		e.failed("reassign", err)
		return err
	}

	log.Info("lead reassigned",
		"from_worker_id", from,
		"to_worker_id", to.Worker.ID,
		"reassignment_count", updated.ReassignmentCount,
	)
	e.afterBind(ctx, updated, from, audit.EventTypeReassign, leads.AssignedBySystem)
	e.Metrics.Assignment("reassign")
	return nil
}

var errSkip = errors.New("assignment: skipped")

// mutate loads the lead, applies fn and persists it with an optimistic version check.
func (e *Engine) mutate(ctx context.Context, leadID string, fn func(l *leads.Lead, now time.Time) error) (leads.Lead, error) {
	attempts := e.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		l, err := e.Leads.Get(ctx, leadID)
		if err != nil {
			return leads.Lead{}, err
		}
		if l.Status.IsTerminal() {
			return leads.Lead{}, ErrLeadClosed
		}
		if err := fn(&l, e.now()); err != nil {
			return leads.Lead{}, err
		}
		updated, err := e.Leads.Update(ctx, l)
		if errors.Is(err, leads.ErrConflict) {
			lastErr = err
			e.log(ctx).Debug("lead update conflict, retrying", "lead_id", leadID, "attempt", i+1)
			continue
		}
		if err != nil {
			return leads.Lead{}, fmt.Errorf("assignment: persist lead: %w", err)
		}
		return updated, nil
	}
	return leads.Lead{}, lastErr
}

func (e *Engine) afterBind(ctx context.Context, l leads.Lead, from string, kind audit.EventType, actor string) {
	log := e.log(ctx)
	to := l.CurrentAssignee()

	if err := e.Workers.RecordAssignment(ctx, to); err != nil {
		log.Warn("worker lead counter update failed", "worker_id", to, "err", err)
	}
	if e.Audit != nil {
		if err := e.Audit.LogAssignment(ctx, kind, l.ID, from, to, actor); err != nil {
			log.Warn("assignment event append failed", "lead_id", l.ID, "err", err)
		}
	}

	ev := notify.Event{
		Type:       notify.EventAssignmentCreated,
		Recipient:  to,
		OccurredAt: *l.AssignedAt,
		Payload:    notify.AssignmentCreated{LeadID: l.ID, WorkerID: to, AssignedAt: *l.AssignedAt},
	}
	if kind == audit.EventTypeReassign {
		ev.Type = notify.EventAssignmentReassigned
		ev.Payload = notify.AssignmentReassigned{LeadID: l.ID, FromWorkerID: from, ToWorkerID: to}
	}
	notify.Emit(ctx, e.Bus, log, ev)
}

func (e *Engine) failed(kind string, err error) {
	reason := "store_error"
	switch {
	case errors.Is(err, ErrNoEligibleWorker):
		reason = "no_eligible_worker"
	case errors.Is(err, ErrInvalidTarget):
		reason = "invalid_target"
	case errors.Is(err, ErrForbidden):
		reason = "forbidden"
	case errors.Is(err, ErrLeadClosed):
		reason = "lead_closed"
	case errors.Is(err, leads.ErrNotFound):
		reason = "not_found"
	case errors.Is(err, leads.ErrConflict):
		reason = "conflict"
	}
	e.Metrics.AssignmentFailed(kind + ":" + reason)
}

func bind(l *leads.Lead, workerID, by string, auto bool, now time.Time) {
	id := workerID
	at := now.UTC()
	l.AssignedTo = &id
	l.AssignedBy = by
	l.AssignedAt = &at
	l.AutoAssigned = auto
}

func (e *Engine) maxReassignments() int {
	if e.MaxReassignments <= 0 {
		return DefaultMaxReassignments
	}
	return e.MaxReassignments
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Engine) log(ctx context.Context) *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return logger.From(ctx)
}
