package scoring

import (
	"math"
	"time"
)

// Metrics is the subset of worker performance counters used for scoring.
type Metrics struct {
	TotalLeads      int
	ConvertedLeads  int
	TotalCalls      int
	SuccessfulCalls int

	// LastActive is the last time the worker was seen. Zero means never.
	LastActive time.Time
}

const (
	baseScore = 50.0

	conversionWeight = 0.5
	successWeight    = 0.3

	day = 24 * time.Hour
)

// Score computes a performance score in [0, 100].
//
// Pure and total: no I/O, any input yields a value.
func Score(m Metrics, now time.Time) int {
	s := baseScore
	s += conversionWeight * ratePct(m.ConvertedLeads, m.TotalLeads)
	s += successWeight * ratePct(m.SuccessfulCalls, m.TotalCalls)
	s += recencyBonus(m.LastActive, now)

	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return int(math.Round(s))
}

func ratePct(num, den int) float64 {
	if den <= 0 || num <= 0 {
		return 0
	}
	return float64(num) / float64(den) * 100
}

func recencyBonus(lastActive, now time.Time) float64 {
	// no activity recorded yet: no signal either way
	if lastActive.IsZero() {
		return 0
	}
	since := now.Sub(lastActive)
	switch {
	case since <= day:
		return 20
	case since <= 3*day:
		return 10
	case since > 7*day:
		return -20
	default:
		return 0
	}
}
