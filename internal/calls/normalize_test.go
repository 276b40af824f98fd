package calls

import (
	"testing"
	"time"

	"telecaller-platform/internal/leads"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_Duration(t *testing.T) {
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	c := Call{StartTime: start}
	Normalize(&c)
	assert.Zero(t, c.Duration, "no end time")

	end := start.Add(185*time.Second + 900*time.Millisecond)
	c.EndTime = &end
	Normalize(&c)
	assert.Equal(t, 185, c.Duration, "whole seconds")

	before := start.Add(-time.Minute)
	c.EndTime = &before
	Normalize(&c)
	assert.Zero(t, c.Duration, "never negative")

	c = Call{EndTime: &end}
	Normalize(&c)
	assert.Zero(t, c.Duration, "no start time")
}

func TestNormalize_IsSuccessfulIsDerived(t *testing.T) {
	tests := []struct {
		status  Status
		outcome Outcome
		want    bool
	}{
		{StatusCompleted, OutcomeConnected, true},
		{StatusCompleted, OutcomeVoicemail, true},
		{StatusAnswered, OutcomeConnected, true},
		{StatusCompleted, OutcomeNoAnswer, false},
		{StatusBusy, OutcomeConnected, false},
		{StatusRinging, OutcomeVoicemail, false},
	}
	for _, tt := range tests {
		c := Call{Status: tt.status, Outcome: tt.outcome, IsSuccessful: !tt.want}
		Normalize(&c)
		assert.Equal(t, tt.want, c.IsSuccessful, "%s/%s", tt.status, tt.outcome)
	}
}

func TestStatusRank(t *testing.T) {
	assert.Less(t, StatusInitiated.Rank(), StatusRinging.Rank())
	assert.Less(t, StatusRinging.Rank(), StatusAnswered.Rank())
	for _, s := range []Status{StatusCompleted, StatusBusy, StatusFailed, StatusNoAnswer, StatusCancelled} {
		assert.True(t, s.IsTerminal())
		assert.Greater(t, s.Rank(), StatusAnswered.Rank())
	}
	assert.False(t, Status("queued").Valid())
}

func TestLeadStatusFor(t *testing.T) {
	tests := []struct {
		outcome Outcome
		chosen  leads.Status
		want    leads.Status
	}{
		{OutcomeConnected, leads.StatusInterested, leads.StatusInterested},
		{OutcomeConnected, leads.StatusQualified, leads.StatusQualified},
		{OutcomeConnected, leads.StatusConverted, leads.StatusContacted},
		{OutcomeConnected, "", leads.StatusContacted},
		{OutcomeNoAnswer, leads.StatusInterested, leads.StatusContacted},
		{OutcomeBusy, "", leads.StatusContacted},
		{OutcomeVoicemail, "", leads.StatusContacted},
		{OutcomeWrongNumber, "", leads.StatusNotInterested},
	}
	for _, tt := range tests {
		got, ok := LeadStatusFor(tt.outcome, tt.chosen)
		assert.True(t, ok)
		assert.Equal(t, tt.want, got, "%s/%s", tt.outcome, tt.chosen)
	}

	_, ok := LeadStatusFor("", "")
	assert.False(t, ok)
}

func TestApplyFeedback_TerminalLeadKeepsStatus(t *testing.T) {
	end := time.Date(2025, 3, 10, 12, 5, 0, 0, time.UTC)
	next := end.Add(48 * time.Hour)
	l := leads.Lead{ID: "l1", Status: leads.StatusConverted, FollowupCount: 2}

	ApplyFeedback(&l, Call{ID: "c1", Outcome: OutcomeWrongNumber, EndTime: &end, NextFollowupDate: &next})

	assert.Equal(t, leads.StatusConverted, l.Status)
	assert.Equal(t, 3, l.FollowupCount)
	assert.Equal(t, end, *l.LastContactDate)
	assert.Equal(t, next, *l.NextFollowupDate)
	assert.Equal(t, "c1", l.LastFeedbackCallID)
}
