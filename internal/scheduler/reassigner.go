package scheduler

import (
	"context"
	"log/slog"
	"time"

	"telecaller-platform/internal/leads"
	"telecaller-platform/internal/metrics"
)

const (
	DefaultReassignInterval = 30 * time.Minute
	DefaultStaleness        = time.Hour
	defaultBatchSize        = 500
)

// StaleLister selects reassignment candidates.
type StaleLister interface {
	ListStale(ctx context.Context, q leads.StaleQuery) ([]leads.Lead, error)
}

// LeadMover moves one lead to another telecaller (assignment.Engine).
// The lead is moved only if it still matches q when re-read.
type LeadMover interface {
	Reassign(ctx context.Context, leadID string, q leads.StaleQuery) error
}

// Summary describes one reassignment pass.
type Summary struct {
	Candidates int
	Failed     int
	// Skipped is true when another replica held the lock.
	Skipped bool
}

// Reassigner periodically hands stale leads to a different telecaller.
type Reassigner struct {
	Leads   StaleLister
	Engine  LeadMover
	Locker  Locker // optional
	Metrics *metrics.Metrics
	Log     *slog.Logger

	Interval         time.Duration
	Staleness        time.Duration
	MaxReassignments int
	BatchSize        int

	Now func() time.Time
}

func NewReassigner(stale StaleLister, engine LeadMover, maxReassignments int) *Reassigner {
	return &Reassigner{
		Leads:            stale,
		Engine:           engine,
		Interval:         DefaultReassignInterval,
		Staleness:        DefaultStaleness,
		MaxReassignments: maxReassignments,
		BatchSize:        defaultBatchSize,
		Now:              time.Now,
	}
}

// Run executes one pass immediately, then one per Interval until ctx is done.
// Pass errors are logged; the loop never exits on them.
func (r *Reassigner) Run(ctx context.Context) {
	if r == nil || r.Leads == nil || r.Engine == nil {
		return
	}
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultReassignInterval
	}

	r.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reassigner) tick(ctx context.Context) {
	if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
		r.log().Warn("reassignment pass failed", "err", err)
	}
}

// RunOnce performs a single pass. Candidates are processed sequentially;
// a failure on one lead is logged and counted, never aborting the batch.
func (r *Reassigner) RunOnce(ctx context.Context) (Summary, error) {
	log := r.log()

	if r.Locker != nil {
		release, ok, err := r.Locker.TryLock(ctx)
		if err != nil {
			r.Metrics.JobRun("reassign", err)
			return Summary{}, err
		}
		if !ok {
			log.Debug("reassignment pass skipped, lock held elsewhere")
			return Summary{Skipped: true}, nil
		}
		defer release()
	}

	now := r.now()
	staleness := r.Staleness
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	q := leads.StaleQuery{
		AssignedBefore:   now.Add(-staleness),
		MaxReassignments: r.MaxReassignments,
		Limit:            r.BatchSize,
	}
	cands, err := r.Leads.ListStale(ctx, q)
	if err != nil {
		r.Metrics.JobRun("reassign", err)
		return Summary{}, err
	}

	sum := Summary{Candidates: len(cands)}
	for _, l := range cands {
		if ctx.Err() != nil {
			break
		}
		if err := r.Engine.Reassign(ctx, l.ID, q); err != nil {
			sum.Failed++
			log.Warn("lead reassignment failed", "lead_id", l.ID, "err", err)
		}
	}

	r.Metrics.ReassignmentPass(sum.Candidates, sum.Failed, now)
	if sum.Candidates > 0 {
		log.Info("reassignment pass done", "candidates", sum.Candidates, "failed", sum.Failed)
	}
	return sum, ctx.Err()
}

func (r *Reassigner) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}

func (r *Reassigner) log() *slog.Logger {
	if r.Log == nil {
		return slog.Default()
	}
	return r.Log
}
