package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"telecaller-platform/internal/metrics"

	"github.com/robfig/cron/v3"
)

const (
	DefaultHousekeepingSpec = "@daily"
	DefaultArchiveAfter     = 30 * 24 * time.Hour
	housekeepingTimeout     = 10 * time.Minute
)

type PeriodResetter interface {
	ResetPeriodCounters(ctx context.Context) (int, error)
}

type ClosedArchiver interface {
	ArchiveClosed(ctx context.Context, before time.Time) (int, error)
}

// Housekeeper runs the daily maintenance: period counter reset and
// archival flagging of long-closed leads.
type Housekeeper struct {
	Workers PeriodResetter
	Leads   ClosedArchiver
	Metrics *metrics.Metrics
	Log     *slog.Logger

	ArchiveAfter time.Duration
	Now          func() time.Time
}

func NewHousekeeper(w PeriodResetter, l ClosedArchiver) *Housekeeper {
	return &Housekeeper{Workers: w, Leads: l, ArchiveAfter: DefaultArchiveAfter, Now: time.Now}
}

// RunOnce performs both steps; a failing step does not prevent the other.
func (h *Housekeeper) RunOnce(ctx context.Context) error {
	log := h.log()

	reset, resetErr := h.Workers.ResetPeriodCounters(ctx)
	if resetErr != nil {
		log.Warn("period counter reset failed", "err", resetErr)
	}

	after := h.ArchiveAfter
	if after <= 0 {
		after = DefaultArchiveAfter
	}
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	archived, archErr := h.Leads.ArchiveClosed(ctx, now().UTC().Add(-after))
	if archErr != nil {
		log.Warn("closed lead archival failed", "err", archErr)
	}

	err := errors.Join(resetErr, archErr)
	h.Metrics.JobRun("housekeeping", err)
	log.Info("housekeeping done", "workers_reset", reset, "leads_archived", archived)
	return err
}

// Schedule registers the job on c under spec (robfig/cron syntax, e.g. "@daily").
func (h *Housekeeper) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	if spec == "" {
		spec = DefaultHousekeepingSpec
	}
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), housekeepingTimeout)
		defer cancel()
		_ = h.RunOnce(ctx)
	})
}

// RunCron starts c and blocks until ctx is done, then waits for running jobs.
func RunCron(ctx context.Context, c *cron.Cron) {
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
}

func (h *Housekeeper) log() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}
