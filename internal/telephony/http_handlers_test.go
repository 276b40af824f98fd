package telephony

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"telecaller-platform/internal/calls"
	"telecaller-platform/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCallEvents struct {
	statuses   []calls.StatusUpdate
	recordings []calls.RecordingUpdate
	err        error
}

func (f *fakeCallEvents) ApplyStatus(_ context.Context, u calls.StatusUpdate) (calls.Call, error) {
	f.statuses = append(f.statuses, u)
	return calls.Call{ID: "c1", Status: u.Status}, f.err
}

func (f *fakeCallEvents) ApplyRecording(_ context.Context, u calls.RecordingUpdate) (calls.Call, error) {
	f.recordings = append(f.recordings, u)
	return calls.Call{ID: "c1"}, f.err
}

func newWebhookRouter(ev CallEvents, m *metrics.Metrics) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := TwilioWebhookHandler{Calls: ev, Metrics: m}
	r := gin.New()
	r.POST(StatusCallbackPath, h.HandleStatus)
	r.POST(RecordingCallbackPath, h.HandleRecording)
	return r
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, formRequest(path, body))
	return w
}

func TestHandleStatus(t *testing.T) {
	ev := &fakeCallEvents{}
	m := metrics.New(prometheus.NewRegistry())
	r := newWebhookRouter(ev, m)

	w := post(r, StatusCallbackPath, "CallSid=CA1&CallStatus=in-progress")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, ev.statuses, 1)
	assert.Equal(t, calls.StatusAnswered, ev.statuses[0].Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhooksTotal.WithLabelValues("status", "applied")))

	w = post(r, StatusCallbackPath, "CallSid=CA1&CallStatus=teleported")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, ev.statuses, 1, "malformed payload never reaches the manager")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhooksTotal.WithLabelValues("status", "invalid")))
}

func TestHandleStatus_UnknownCallIsAcknowledged(t *testing.T) {
	r := newWebhookRouter(&fakeCallEvents{err: calls.ErrUnknownCall}, nil)
	w := post(r, StatusCallbackPath, "CallSid=CA404&CallStatus=completed&CallDuration=3")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleStatus_StoreFailureAsksForRetry(t *testing.T) {
	r := newWebhookRouter(&fakeCallEvents{err: errors.New("db down")}, nil)
	w := post(r, StatusCallbackPath, "CallSid=CA1&CallStatus=completed")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, strings.Contains(w.Body.String(), "db down"))
}

func TestHandleRecording(t *testing.T) {
	ev := &fakeCallEvents{}
	r := newWebhookRouter(ev, nil)

	w := post(r, RecordingCallbackPath, "CallSid=CA1&RecordingUrl=https%3A%2F%2Fx%2FRE1&RecordingStatus=completed&RecordingDuration=30")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, ev.recordings, 1)
	assert.Equal(t, 30, ev.recordings[0].RecordingDuration)

	w = post(r, RecordingCallbackPath, "CallSid=CA1&RecordingStatus=absent")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, ev.recordings, 1, "unfinished recordings are acknowledged and skipped")

	w = post(r, RecordingCallbackPath, "RecordingUrl=https%3A%2F%2Fx%2FRE1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
