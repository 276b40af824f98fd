package calls

// Normalize recomputes the derived fields of c.
// It is called at the start of every mutating operation and before every write.
func Normalize(c *Call) {
	c.Duration = 0
	if !c.StartTime.IsZero() && c.EndTime != nil {
		if d := c.EndTime.Sub(c.StartTime); d > 0 {
			c.Duration = int(d.Seconds())
		}
	}
	c.IsSuccessful = (c.Status == StatusCompleted || c.Status == StatusAnswered) &&
		(c.Outcome == OutcomeConnected || c.Outcome == OutcomeVoicemail)
}

// defaultOutcome infers an outcome from the terminal status when none was recorded.
func defaultOutcome(s Status, durationSeconds int) Outcome {
	switch s {
	case StatusCompleted:
		if durationSeconds > 0 {
			return OutcomeConnected
		}
		return OutcomeDisconnected
	case StatusBusy:
		return OutcomeBusy
	case StatusNoAnswer:
		return OutcomeNoAnswer
	case StatusFailed, StatusCancelled:
		return OutcomeDisconnected
	default:
		return ""
	}
}
