package calls

import "telecaller-platform/internal/leads"

// LeadStatusFor maps a call outcome to the lead status it implies.
// chosen is the telecaller's pick and only matters for connected calls.
func LeadStatusFor(o Outcome, chosen leads.Status) (leads.Status, bool) {
	switch o {
	case OutcomeConnected:
		if chosen == leads.StatusInterested || chosen == leads.StatusQualified {
			return chosen, true
		}
		return leads.StatusContacted, true
	case OutcomeNoAnswer, OutcomeBusy, OutcomeVoicemail, OutcomeDisconnected:
		return leads.StatusContacted, true
	case OutcomeWrongNumber:
		return leads.StatusNotInterested, true
	default:
		return "", false
	}
}

// ApplyFeedback applies a completed call to its lead.
// Converted and closed leads keep their status but still record the contact.
// LastContactDate only moves forward.
func ApplyFeedback(l *leads.Lead, c Call) {
	if st, ok := LeadStatusFor(c.Outcome, c.LeadStatusAfter); ok && !l.Status.IsTerminal() {
		l.Status = st
	}
	if c.EndTime != nil && (l.LastContactDate == nil || c.EndTime.After(*l.LastContactDate)) {
		end := *c.EndTime
		l.LastContactDate = &end
	}
	l.FollowupCount++
	if c.NextFollowupDate != nil {
		next := *c.NextFollowupDate
		l.NextFollowupDate = &next
	}
	l.LastFeedbackCallID = c.ID
}

// amendLeadStatus re-derives the lead status from a disposition recorded after feedback.
func amendLeadStatus(l *leads.Lead, c Call) bool {
	changed := false
	if st, ok := LeadStatusFor(c.Outcome, c.LeadStatusAfter); ok && !l.Status.IsTerminal() && l.Status != st {
		l.Status = st
		changed = true
	}
	if c.NextFollowupDate != nil && (l.NextFollowupDate == nil || !l.NextFollowupDate.Equal(*c.NextFollowupDate)) {
		next := *c.NextFollowupDate
		l.NextFollowupDate = &next
		changed = true
	}
	return changed
}
