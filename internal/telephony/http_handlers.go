package telephony

import (
	"context"
	"errors"
	"net/http"

	"telecaller-platform/internal/calls"
	"telecaller-platform/internal/metrics"
	"telecaller-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// CallEvents is the slice of the call session manager the webhooks drive.
type CallEvents interface {
	ApplyStatus(ctx context.Context, u calls.StatusUpdate) (calls.Call, error)
	ApplyRecording(ctx context.Context, u calls.RecordingUpdate) (calls.Call, error)
}

// TwilioWebhookHandler converts Twilio callbacks to typed updates and
// hands them to the call session manager.
//
// No business logic here. Signature verification runs as middleware
// ahead of these handlers.
type TwilioWebhookHandler struct {
	Calls   CallEvents
	Metrics *metrics.Metrics
}

func (h TwilioWebhookHandler) HandleStatus(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseTwilioStatusCallback(c.Request)
	if err != nil {
		h.reject(c, "status", err)
		return
	}
	u, err := form.ToStatusUpdate()
	if err != nil {
		h.reject(c, "status", err)
		return
	}

	call, err := h.Calls.ApplyStatus(c.Request.Context(), u)
	if !h.finish(c, "status", err) {
		return
	}
	log.Info("call status applied", "call_id", call.ID, "provider_call_id", u.ProviderCallID, "reported", u.Status, "status", call.Status)
}

func (h TwilioWebhookHandler) HandleRecording(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseTwilioRecordingCallback(c.Request)
	if err != nil {
		h.reject(c, "recording", err)
		return
	}
	u, err := form.ToRecordingUpdate()
	if errors.Is(err, ErrRecordingNotReady) {
		h.Metrics.Webhook("recording", "ignored")
		log.Info("recording callback ignored", "provider_call_id", form.CallSid, "recording_status", form.RecordingStatus)
		c.Status(http.StatusOK)
		return
	}
	if err != nil {
		h.reject(c, "recording", err)
		return
	}

	call, err := h.Calls.ApplyRecording(c.Request.Context(), u)
	if !h.finish(c, "recording", err) {
		return
	}
	log.Info("call recording attached", "call_id", call.ID, "provider_call_id", u.ProviderCallID)
}

func (h TwilioWebhookHandler) reject(c *gin.Context, kind string, err error) {
	logger.FromGin(c).Warn("twilio webhook rejected", "kind", kind, "err", err)
	h.Metrics.Webhook(kind, "invalid")
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// finish writes the acknowledgment. Unknown calls are acknowledged so the
// provider stops retrying; other failures return 500 so it retries.
func (h TwilioWebhookHandler) finish(c *gin.Context, kind string, err error) bool {
	log := logger.FromGin(c)
	switch {
	case err == nil:
		h.Metrics.Webhook(kind, "applied")
		c.Status(http.StatusOK)
		return true
	case errors.Is(err, calls.ErrUnknownCall):
		log.Warn("twilio webhook for unknown call", "kind", kind, "err", err)
		h.Metrics.Webhook(kind, "unknown_call")
		c.Status(http.StatusOK)
		return false
	default:
		log.Error("twilio webhook failed", "kind", kind, "err", err)
		h.Metrics.Webhook(kind, "error")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return false
	}
}
