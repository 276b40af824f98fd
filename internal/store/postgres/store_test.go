package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"telecaller-platform/internal/audit"
	"telecaller-platform/internal/calls"
	"telecaller-platform/internal/leads"
	"telecaller-platform/internal/workers"
	"telecaller-platform/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to TEST_DATABASE_URL, migrates it and wipes the tables.
// Tests are skipped when the variable is unset.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := utils.OpenPostgres(ctx, dsn, utils.PostgresPoolConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(ctx, db))
	_, err = db.ExecContext(ctx, `TRUNCATE assignment_events, calls, leads, workers`)
	require.NoError(t, err)
	return db
}

func seedWorker(t *testing.T, db *sql.DB, id string, role workers.Role) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO workers (id, name, role, current_status, team_members) VALUES ($1, $1, $2, 'available', $3)`,
		id, role, []string{"w9"})
	require.NoError(t, err)
}

func TestLeadRepo_VersionedUpdateAndStale(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedWorker(t, db, "w1", workers.RoleTelecaller)

	repo := NewLeadRepo(db)
	assignedAt := time.Now().Add(-48 * time.Hour).UTC().Truncate(time.Microsecond)
	w1 := "w1"
	l, err := repo.Create(ctx, leads.Lead{
		ID: "l1", Name: "Asha", Phone: "+14155552671", Status: leads.StatusNew,
		Priority: leads.PriorityMedium, Quality: leads.QualityUnknown,
		AssignedTo: &w1, AssignedAt: &assignedAt,
	})
	require.NoError(t, err)

	n, err := repo.CountPending(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stale, err := repo.ListStale(ctx, leads.StaleQuery{AssignedBefore: time.Now().Add(-24 * time.Hour), MaxReassignments: 3})
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "l1", stale[0].ID)

	l.Score = 10
	updated, err := repo.Update(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Version)

	_, err = repo.Update(ctx, l)
	assert.ErrorIs(t, err, leads.ErrConflict)

	l.ID = "nope"
	_, err = repo.Update(ctx, l)
	assert.ErrorIs(t, err, leads.ErrNotFound)
}

func TestWorkerRepo_Counters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedWorker(t, db, "w1", workers.RoleTelecaller)
	seedWorker(t, db, "s1", workers.RoleSupervisor)

	repo := NewWorkerRepo(db)
	require.NoError(t, repo.RecordCallOutcome(ctx, "w1", true))
	require.NoError(t, repo.RecordCallOutcome(ctx, "w1", false))
	require.NoError(t, repo.RecordAssignment(ctx, "w1"))
	assert.ErrorIs(t, repo.RecordAssignment(ctx, "ghost"), workers.ErrNotFound)

	w, err := repo.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 2, w.TotalCalls)
	assert.Equal(t, 1, w.SuccessfulCalls)
	assert.Equal(t, 1, w.TotalLeads)
	assert.Equal(t, []string{"w9"}, w.TeamMembers)

	tcs, err := repo.ListTelecallers(ctx)
	require.NoError(t, err)
	require.Len(t, tcs, 1)

	reset, err := repo.ResetPeriodCounters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reset)
}

func TestCallRepo_ProviderIDUnique(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedWorker(t, db, "w1", workers.RoleTelecaller)
	_, err := NewLeadRepo(db).Create(ctx, leads.Lead{ID: "l1", Name: "A", Phone: "+14155552671", Status: leads.StatusNew})
	require.NoError(t, err)

	repo := NewCallRepo(db)
	start := time.Now().UTC().Truncate(time.Microsecond)
	c1, err := repo.Create(ctx, calls.Call{ID: uuid.NewString(), TelecallerID: "w1", LeadID: "l1", CallType: calls.CallTypeOutbound, Status: calls.StatusInitiated, StartTime: start})
	require.NoError(t, err)
	_, err = repo.Create(ctx, calls.Call{ID: uuid.NewString(), TelecallerID: "w1", LeadID: "l1", CallType: calls.CallTypeOutbound, Status: calls.StatusInitiated, StartTime: start})
	require.NoError(t, err, "empty provider ids do not collide")

	c1.ProviderCallID = "CA1"
	c1, err = repo.Update(ctx, c1)
	require.NoError(t, err)

	got, err := repo.GetByProviderID(ctx, "CA1")
	require.NoError(t, err)
	assert.Equal(t, c1.ID, got.ID)

	_, err = repo.Create(ctx, calls.Call{ID: uuid.NewString(), TelecallerID: "w1", LeadID: "l1", ProviderCallID: "CA1", CallType: calls.CallTypeOutbound, Status: calls.StatusInitiated, StartTime: start})
	assert.ErrorIs(t, err, calls.ErrDuplicateProviderID)

	_, err = repo.GetByProviderID(ctx, "CA404")
	assert.ErrorIs(t, err, calls.ErrNotFound)
}

func TestAuditRepo_AppendAndList(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	svc := audit.NewService(NewAuditRepo(db))

	require.NoError(t, svc.LogAssignment(ctx, audit.EventTypeAutoAssign, "l1", "", "w1", "system"))
	require.NoError(t, svc.LogCapReached(ctx, "l1", "w1", 3))

	evs, err := NewAuditRepo(db).ForLead(ctx, "l1")
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, audit.EventTypeAutoAssign, evs[0].Type)
}
