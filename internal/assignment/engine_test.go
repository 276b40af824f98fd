package assignment

import (
	"context"
	"errors"
	"testing"
	"time"

	"telecaller-platform/internal/audit"
	"telecaller-platform/internal/leads"
	"telecaller-platform/internal/notify"
	"telecaller-platform/internal/workers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	leads   *leads.MemoryRepo
	workers *workers.MemoryRepo
	audit   *audit.MemoryRepo
	bus     *notify.MemoryBus
	engine  *Engine
}

func newFixture(ws ...workers.Worker) *fixture {
	f := &fixture{
		leads:   leads.NewMemoryRepo(),
		workers: workers.NewMemoryRepo(ws...),
		audit:   audit.NewMemoryRepo(),
		bus:     notify.NewMemoryBus(),
	}
	f.engine = NewEngine(f.leads, f.workers, workers.NewDirectory(f.workers, f.leads))
	f.engine.Audit = audit.NewService(f.audit)
	f.engine.Bus = f.bus
	f.engine.Now = func() time.Time { return testNow }
	return f
}

func telecaller(id string) workers.Worker {
	return workers.Worker{ID: id, Role: workers.RoleTelecaller, IsActive: true, CurrentStatus: workers.StatusAvailable}
}

func ptr[T any](v T) *T { return &v }

var staleHour = leads.StaleQuery{AssignedBefore: testNow.Add(-time.Hour), MaxReassignments: DefaultMaxReassignments}

func TestAutoAssign_SingleFreshWorker(t *testing.T) {
	f := newFixture(telecaller("w1"))
	f.leads.Put(leads.Lead{ID: "l1", Status: leads.StatusNew})

	cand := workers.Candidate{Worker: telecaller("w1")}
	assert.Equal(t, 50, Cost(cand, testNow))

	got, err := f.engine.AutoAssign(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, "w1", got.CurrentAssignee())
	assert.True(t, got.AutoAssigned)
	assert.Equal(t, leads.AssignedBySystem, got.AssignedBy)
	assert.Equal(t, testNow, *got.AssignedAt)

	evs := f.bus.OfType(notify.EventAssignmentCreated)
	require.Len(t, evs, 1)
	assert.Equal(t, "w1", evs[0].Recipient)
	assert.Equal(t, notify.AssignmentCreated{LeadID: "l1", WorkerID: "w1", AssignedAt: testNow}, evs[0].Payload)

	w, _ := f.workers.Get(context.Background(), "w1")
	assert.Equal(t, 1, w.TotalLeads)

	hist, err := f.audit.ForLead(context.Background(), "l1")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, audit.EventTypeAutoAssign, hist[0].Type)
}

func TestAutoAssign_PicksLowestCost(t *testing.T) {
	busy := telecaller("w1")
	busy.TotalCalls, busy.SuccessfulCalls = 10, 10 // score 80
	idle := telecaller("w2")                       // score 50

	f := newFixture(busy, idle)
	// w1 has two open leads: cost 20 + 20 = 40; w2: 0 + 50 = 50
	f.leads.Put(leads.Lead{ID: "a", Status: leads.StatusNew, AssignedTo: ptr("w1")})
	f.leads.Put(leads.Lead{ID: "b", Status: leads.StatusCallback, AssignedTo: ptr("w1")})
	f.leads.Put(leads.Lead{ID: "l1", Status: leads.StatusNew})

	got, err := f.engine.AutoAssign(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, "w1", got.CurrentAssignee())

	// one more open lead flips it: w1 = 30 + 20 = 50 ties w2, earliest (w1) still wins
	f.leads.Put(leads.Lead{ID: "l2", Status: leads.StatusNew})
	got, err = f.engine.AutoAssign(context.Background(), "l2")
	require.NoError(t, err)
	assert.Equal(t, "w1", got.CurrentAssignee())

	// and the next one goes to w2 (w1 = 60)
	f.leads.Put(leads.Lead{ID: "l3", Status: leads.StatusNew})
	got, err = f.engine.AutoAssign(context.Background(), "l3")
	require.NoError(t, err)
	assert.Equal(t, "w2", got.CurrentAssignee())
}

func TestPickLeastCost_TieGoesToFirst(t *testing.T) {
	cands := []workers.Candidate{
		{Worker: telecaller("b")},
		{Worker: telecaller("a")},
	}
	best, ok := PickLeastCost(cands, testNow)
	require.True(t, ok)
	assert.Equal(t, "b", best.Worker.ID)

	_, ok = PickLeastCost(nil, testNow)
	assert.False(t, ok)
}

func TestAutoAssign_Errors(t *testing.T) {
	offline := telecaller("w1")
	offline.CurrentStatus = workers.StatusOffline
	f := newFixture(offline)
	f.leads.Put(leads.Lead{ID: "l1", Status: leads.StatusNew})
	f.leads.Put(leads.Lead{ID: "done", Status: leads.StatusConverted})

	_, err := f.engine.AutoAssign(context.Background(), "missing")
	assert.ErrorIs(t, err, leads.ErrNotFound)

	_, err = f.engine.AutoAssign(context.Background(), "l1")
	assert.ErrorIs(t, err, ErrNoEligibleWorker)

	_, err = f.engine.AutoAssign(context.Background(), "done")
	assert.ErrorIs(t, err, ErrLeadClosed)

	assert.Empty(t, f.bus.Events())
}

func TestManualAssign(t *testing.T) {
	sup := workers.Worker{ID: "s1", Role: workers.RoleSupervisor, IsActive: true}
	f := newFixture(telecaller("w1"), telecaller("w2"), sup)
	f.leads.Put(leads.Lead{ID: "l1", Status: leads.StatusNew, AssignedTo: ptr("w1"), ReassignmentCount: 1})

	ctx := context.Background()

	_, err := f.engine.ManualAssign(ctx, ManualAssignment{LeadID: "l1", WorkerID: "w2", ActorID: "s1"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.engine.ManualAssign(ctx, ManualAssignment{LeadID: "l1", WorkerID: "s1", ActorID: "admin", Authorized: true})
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = f.engine.ManualAssign(ctx, ManualAssignment{LeadID: "l1", WorkerID: "ghost", ActorID: "admin", Authorized: true})
	assert.ErrorIs(t, err, ErrInvalidTarget)

	got, err := f.engine.ManualAssign(ctx, ManualAssignment{LeadID: "l1", WorkerID: "w2", ActorID: "admin", Authorized: true})
	require.NoError(t, err)
	assert.Equal(t, "w2", got.CurrentAssignee())
	assert.False(t, got.AutoAssigned)
	assert.Equal(t, "admin", got.AssignedBy)
	assert.Equal(t, 1, got.ReassignmentCount)

	hist, err := f.audit.ForLead(context.Background(), "l1")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, audit.EventTypeManual, hist[0].Type)
	assert.Equal(t, "w1", hist[0].FromWorkerID)
	assert.Equal(t, "w2", hist[0].ToWorkerID)
}

func TestReassign_MovesToOtherWorkerAndCounts(t *testing.T) {
	f := newFixture(telecaller("w1"), telecaller("w2"))
	old := testNow.Add(-2 * time.Hour)
	f.leads.Put(leads.Lead{ID: "l1", Status: leads.StatusNew, AssignedTo: ptr("w1"), AssignedAt: &old, ReassignmentCount: 2})

	require.NoError(t, f.engine.Reassign(context.Background(), "l1", staleHour))

	got, _ := f.leads.Get(context.Background(), "l1")
	assert.Equal(t, "w2", got.CurrentAssignee())
	assert.Equal(t, 3, got.ReassignmentCount)
	assert.Equal(t, testNow, *got.AssignedAt)
	assert.True(t, got.AutoAssigned)

	evs := f.bus.OfType(notify.EventAssignmentReassigned)
	require.Len(t, evs, 1)
	assert.Equal(t, notify.AssignmentReassigned{LeadID: "l1", FromWorkerID: "w1", ToWorkerID: "w2"}, evs[0].Payload)

	// at the cap: nothing moves, a cap event is recorded
	require.NoError(t, f.engine.Reassign(context.Background(), "l1", staleHour))
	again, _ := f.leads.Get(context.Background(), "l1")
	assert.Equal(t, "w2", again.CurrentAssignee())
	assert.Equal(t, 3, again.ReassignmentCount)
	assert.Equal(t, got.Version, again.Version)

	hist, err := f.audit.ForLead(context.Background(), "l1")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, audit.EventTypeCapReached, hist[1].Type)
}

func TestReassign_NoOtherWorkerIsSilent(t *testing.T) {
	f := newFixture(telecaller("w1"))
	f.leads.Put(leads.Lead{ID: "l1", Status: leads.StatusContacted, AssignedTo: ptr("w1"), AssignedAt: ptr(testNow.Add(-3 * time.Hour))})

	require.NoError(t, f.engine.Reassign(context.Background(), "l1", staleHour))

	got, _ := f.leads.Get(context.Background(), "l1")
	assert.Equal(t, "w1", got.CurrentAssignee())
	assert.Zero(t, got.ReassignmentCount)
	assert.Empty(t, f.bus.Events())
}

// conflictOnce fails the first Update with a version conflict after
// bumping the stored lead, like a concurrent writer would.
type conflictOnce struct {
	*leads.MemoryRepo
	fired bool
}

func (c *conflictOnce) Update(ctx context.Context, l leads.Lead) (leads.Lead, error) {
	if !c.fired {
		c.fired = true
		cur, err := c.MemoryRepo.Get(ctx, l.ID)
		if err != nil {
			return leads.Lead{}, err
		}
		if _, err := c.MemoryRepo.Update(ctx, cur); err != nil {
			return leads.Lead{}, err
		}
		return leads.Lead{}, leads.ErrConflict
	}
	return c.MemoryRepo.Update(ctx, l)
}

func TestAutoAssign_RetriesOnConflict(t *testing.T) {
	f := newFixture(telecaller("w1"))
	f.leads.Put(leads.Lead{ID: "l1", Status: leads.StatusNew})
	repo := &conflictOnce{MemoryRepo: f.leads}
	f.engine.Leads = repo

	got, err := f.engine.AutoAssign(context.Background(), "l1")
	require.NoError(t, err)
	assert.True(t, repo.fired)
	assert.Equal(t, int64(2), got.Version)
}

type failingLeads struct{ *leads.MemoryRepo }

func (failingLeads) Update(ctx context.Context, l leads.Lead) (leads.Lead, error) {
	return leads.Lead{}, errors.New("db down")
}

func TestReassign_StoreErrorPropagates(t *testing.T) {
	f := newFixture(telecaller("w1"), telecaller("w2"))
	f.leads.Put(leads.Lead{ID: "l1", Status: leads.StatusNew, AssignedTo: ptr("w1"), AssignedAt: ptr(testNow.Add(-2 * time.Hour))})
	f.engine.Leads = failingLeads{f.leads}

	assert.Error(t, f.engine.Reassign(context.Background(), "l1", staleHour))
}

func TestReassign_LeadThatStoppedMatchingIsLeftAlone(t *testing.T) {
	old := testNow.Add(-2 * time.Hour)
	tests := []struct {
		name string
		lead leads.Lead
	}{
		{"contacted after assignment", leads.Lead{Status: leads.StatusContacted, AssignedTo: ptr("w1"), AssignedAt: &old, LastContactDate: ptr(testNow.Add(-10 * time.Minute))}},
		{"manually reassigned", leads.Lead{Status: leads.StatusNew, AssignedTo: ptr("w3"), AssignedAt: ptr(testNow.Add(-time.Minute)), AssignedBy: "s1"}},
		{"qualified", leads.Lead{Status: leads.StatusQualified, AssignedTo: ptr("w1"), AssignedAt: &old}},
		{"converted", leads.Lead{Status: leads.StatusConverted, AssignedTo: ptr("w1"), AssignedAt: &old}},
		{"closed", leads.Lead{Status: leads.StatusClosed, AssignedTo: ptr("w1"), AssignedAt: &old}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(telecaller("w1"), telecaller("w2"), telecaller("w3"))
			tt.lead.ID = "l1"
			f.leads.Put(tt.lead)
			before, _ := f.leads.Get(context.Background(), "l1")

			require.NoError(t, f.engine.Reassign(context.Background(), "l1", staleHour))

			got, _ := f.leads.Get(context.Background(), "l1")
			assert.Equal(t, before, got)
			assert.Empty(t, f.bus.Events())
		})
	}
}

func TestCanAssign(t *testing.T) {
	admin := workers.Worker{ID: "a", Role: workers.RoleAdmin}
	sup := workers.Worker{ID: "s", Role: workers.RoleSupervisor, TeamMembers: []string{"w1"}}
	tc := telecaller("w9")

	assert.True(t, CanAssign(admin, telecaller("w2")))
	assert.True(t, CanAssign(sup, telecaller("w1")))
	assert.False(t, CanAssign(sup, telecaller("w2")))
	assert.False(t, CanAssign(tc, telecaller("w1")))
}
