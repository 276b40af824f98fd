package telephony

import (
	"errors"
	"fmt"
	"strings"

	"telecaller-platform/internal/calls"
)

// Provider-specific values never leave this package: adapters translate
// them into calls.StatusUpdate / calls.RecordingUpdate before the call
// session manager sees them.

var (
	// ErrInvalidPayload marks webhook bodies that fail strict parsing.
	ErrInvalidPayload = errors.New("telephony: invalid webhook payload")
	// ErrRecordingNotReady marks recording callbacks for recordings that are not finished.
	ErrRecordingNotReady = errors.New("telephony: recording not completed")
)

// twilioStatuses maps Twilio CallStatus values onto call session states.
var twilioStatuses = map[string]calls.Status{
	"queued":      calls.StatusInitiated,
	"initiated":   calls.StatusInitiated,
	"ringing":     calls.StatusRinging,
	"in-progress": calls.StatusAnswered,
	"answered":    calls.StatusAnswered,
	"completed":   calls.StatusCompleted,
	"busy":        calls.StatusBusy,
	"failed":      calls.StatusFailed,
	"no-answer":   calls.StatusNoAnswer,
	"canceled":    calls.StatusCancelled,
	"cancelled":   calls.StatusCancelled,
}

// MapTwilioStatus converts a Twilio CallStatus; unknown values are rejected.
func MapTwilioStatus(v string) (calls.Status, error) {
	s, ok := twilioStatuses[strings.ToLower(strings.TrimSpace(v))]
	if !ok {
		return "", fmt.Errorf("%w: unknown call status %q", ErrInvalidPayload, v)
	}
	return s, nil
}
