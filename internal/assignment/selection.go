package assignment

import (
	"time"

	"telecaller-platform/internal/scoring"
	"telecaller-platform/internal/workers"
)

// pendingWeight is the cost of one open lead in score points.
const pendingWeight = 10

// Cost is the selection cost of a candidate; lower is better.
// Queue depth dominates so low scorers are not starved and high scorers not flooded.
func Cost(c workers.Candidate, now time.Time) int {
	return c.PendingLeads*pendingWeight + (100 - scoring.Score(c.Worker.Metrics(), now))
}

// PickLeastCost returns the candidate with the strictly lowest cost.
// On ties the earliest candidate in cands wins.
func PickLeastCost(cands []workers.Candidate, now time.Time) (workers.Candidate, bool) {
	var (
		best     workers.Candidate
		bestCost int
		found    bool
	)
	for _, c := range cands {
		cost := Cost(c, now)
		if !found || cost < bestCost {
			best, bestCost, found = c, cost, true
		}
	}
	return best, found
}

// CanAssign is the authorization pre-check for manual assignment.
// Admins may assign to anyone, supervisors only within their team.
func CanAssign(actor, target workers.Worker) bool {
	switch actor.Role {
	case workers.RoleAdmin:
		return true
	case workers.RoleSupervisor:
		return actor.Supervises(target)
	default:
		return false
	}
}
