package telephony

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"telecaller-platform/internal/calls"
)

// TwilioStatusForm captures the status callback fields we care about.
// Twilio sends application/x-www-form-urlencoded by default.
// Ref: https://www.twilio.com/docs/voice/api/call-resource#statuscallback
type TwilioStatusForm struct {
	CallSid        string
	AccountSid     string
	CallStatus     string
	CallDuration   string
	RecordingURL   string
	SequenceNumber string
}

// TwilioRecordingForm captures the recording status callback fields.
type TwilioRecordingForm struct {
	CallSid           string
	AccountSid        string
	RecordingSid      string
	RecordingURL      string
	RecordingStatus   string
	RecordingDuration string
}

func ParseTwilioStatusCallback(r *http.Request) (TwilioStatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioStatusForm{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return TwilioStatusForm{
		CallSid:        strings.TrimSpace(r.PostFormValue("CallSid")),
		AccountSid:     strings.TrimSpace(r.PostFormValue("AccountSid")),
		CallStatus:     strings.TrimSpace(r.PostFormValue("CallStatus")),
		CallDuration:   strings.TrimSpace(r.PostFormValue("CallDuration")),
		RecordingURL:   strings.TrimSpace(r.PostFormValue("RecordingUrl")),
		SequenceNumber: strings.TrimSpace(r.PostFormValue("SequenceNumber")),
	}, nil
}

func ParseTwilioRecordingCallback(r *http.Request) (TwilioRecordingForm, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioRecordingForm{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return TwilioRecordingForm{
		CallSid:           strings.TrimSpace(r.PostFormValue("CallSid")),
		AccountSid:        strings.TrimSpace(r.PostFormValue("AccountSid")),
		RecordingSid:      strings.TrimSpace(r.PostFormValue("RecordingSid")),
		RecordingURL:      strings.TrimSpace(r.PostFormValue("RecordingUrl")),
		RecordingStatus:   strings.TrimSpace(r.PostFormValue("RecordingStatus")),
		RecordingDuration: strings.TrimSpace(r.PostFormValue("RecordingDuration")),
	}, nil
}

// ToStatusUpdate strictly converts the form into a typed update.
func (f TwilioStatusForm) ToStatusUpdate() (calls.StatusUpdate, error) {
	if f.CallSid == "" {
		return calls.StatusUpdate{}, fmt.Errorf("%w: CallSid required", ErrInvalidPayload)
	}
	st, err := MapTwilioStatus(f.CallStatus)
	if err != nil {
		return calls.StatusUpdate{}, err
	}
	u := calls.StatusUpdate{ProviderCallID: f.CallSid, Status: st, RecordingURL: f.RecordingURL}
	if f.CallDuration != "" {
		d, err := nonNegativeInt("CallDuration", f.CallDuration)
		if err != nil {
			return calls.StatusUpdate{}, err
		}
		u.DurationSeconds = &d
	}
	return u, nil
}

// ToRecordingUpdate strictly converts the form into a typed update.
// Callbacks for recordings that did not complete yield ErrRecordingNotReady.
func (f TwilioRecordingForm) ToRecordingUpdate() (calls.RecordingUpdate, error) {
	if f.CallSid == "" {
		return calls.RecordingUpdate{}, fmt.Errorf("%w: CallSid required", ErrInvalidPayload)
	}
	if f.RecordingStatus != "" && f.RecordingStatus != "completed" {
		return calls.RecordingUpdate{}, ErrRecordingNotReady
	}
	if f.RecordingURL == "" {
		return calls.RecordingUpdate{}, fmt.Errorf("%w: RecordingUrl required", ErrInvalidPayload)
	}
	u := calls.RecordingUpdate{ProviderCallID: f.CallSid, RecordingURL: f.RecordingURL}
	if f.RecordingDuration != "" {
		d, err := nonNegativeInt("RecordingDuration", f.RecordingDuration)
		if err != nil {
			return calls.RecordingUpdate{}, err
		}
		u.RecordingDuration = d
	}
	return u, nil
}

func nonNegativeInt(field, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer, got %q", ErrInvalidPayload, field, v)
	}
	return n, nil
}
