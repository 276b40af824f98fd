package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"telecaller-platform/internal/assignment"
	"telecaller-platform/internal/audit"
	"telecaller-platform/internal/auth"
	"telecaller-platform/internal/calls"
	"telecaller-platform/internal/leads"
	"telecaller-platform/internal/rbac"
	"telecaller-platform/internal/workers"
	"telecaller-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Assigner is the slice of the assignment engine the API drives.
type Assigner interface {
	AutoAssign(ctx context.Context, leadID string) (leads.Lead, error)
	ManualAssign(ctx context.Context, in assignment.ManualAssignment) (leads.Lead, error)
}

// CallSessions is the slice of the call session manager the API drives.
type CallSessions interface {
	Initiate(ctx context.Context, req calls.InitiateRequest) (calls.Call, error)
	RecordDisposition(ctx context.Context, d calls.Disposition) (calls.Call, error)
	Get(ctx context.Context, id string) (calls.Call, error)
}

// WorkerLookup resolves the acting user and assignment targets.
type WorkerLookup interface {
	Get(ctx context.Context, id string) (workers.Worker, error)
}

// History lists audit events for a lead.
type History interface {
	ForLead(ctx context.Context, leadID string) ([]audit.Event, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Assign  Assigner
	Calls   CallSessions
	Workers WorkerLookup
	History History

	validate *validator.Validate
}

func NewHandlers(assign Assigner, sessions CallSessions, ws WorkerLookup, history History) *Handlers {
	return &Handlers{
		Assign:   assign,
		Calls:    sessions,
		Workers:  ws,
		History:  history,
		validate: validator.New(),
	}
}

// --- Leads ---

type manualAssignRequest struct {
	WorkerID string `json:"worker_id" validate:"required"`
}

func (h *Handlers) AutoAssign(c *gin.Context) {
	l, err := h.Assign.AutoAssign(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// ManualAssign binds a lead to an operator-chosen telecaller.
// The acting user must be an admin or the target's supervisor.
func (h *Handlers) ManualAssign(c *gin.Context) {
	ctx := c.Request.Context()
	var req manualAssignRequest
	if !h.bind(c, &req) {
		return
	}

	actorID, err := auth.UserID(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return
	}
	actor, err := h.Workers.Get(ctx, actorID)
	if errors.Is(err, workers.ErrNotFound) {
		writeError(c, assignment.ErrForbidden)
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	target, err := h.Workers.Get(ctx, req.WorkerID)
	if errors.Is(err, workers.ErrNotFound) {
		writeError(c, assignment.ErrInvalidTarget)
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}

	l, err := h.Assign.ManualAssign(ctx, assignment.ManualAssignment{
		LeadID:     c.Param("id"),
		WorkerID:   target.ID,
		ActorID:    actor.ID,
		Authorized: assignment.CanAssign(actor, target),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *Handlers) LeadHistory(c *gin.Context) {
	events, err := h.History.ForLead(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// --- Calls ---

type initiateCallRequest struct {
	LeadID   string `json:"lead_id" validate:"required"`
	CallType string `json:"call_type" validate:"omitempty,oneof=outbound inbound"`
}

type dispositionRequest struct {
	Outcome          string     `json:"outcome" validate:"omitempty,oneof=connected no_answer busy voicemail wrong_number disconnected"`
	LeadStatusAfter  string     `json:"lead_status_after" validate:"omitempty,oneof=new contacted qualified interested not_interested callback converted closed"`
	Notes            string     `json:"notes" validate:"max=4000"`
	NextFollowupDate *time.Time `json:"next_followup_date"`
}

// InitiateCall dials the lead on behalf of the authenticated worker.
func (h *Handlers) InitiateCall(c *gin.Context) {
	var req initiateCallRequest
	if !h.bind(c, &req) {
		return
	}
	workerID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return
	}

	call, err := h.Calls.Initiate(c.Request.Context(), calls.InitiateRequest{
		WorkerID: workerID,
		LeadID:   req.LeadID,
		CallType: calls.CallType(req.CallType),
	})
	if err != nil {
		if errors.Is(err, calls.ErrTelephony) && call.ID != "" {
			// The record exists; surface it so the client can show the failure.
			c.JSON(http.StatusBadGateway, gin.H{"error": "telephony provider error", "call": call})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, call)
}

// RecordDisposition stores the outcome a telecaller chose for a call.
// Admins and supervisors may amend any call.
func (h *Handlers) RecordDisposition(c *gin.Context) {
	var req dispositionRequest
	if !h.bind(c, &req) {
		return
	}
	ownerID, ok := ownerScope(c)
	if !ok {
		return
	}

	call, err := h.Calls.RecordDisposition(c.Request.Context(), calls.Disposition{
		CallID:           c.Param("id"),
		WorkerID:         ownerID,
		Outcome:          calls.Outcome(req.Outcome),
		LeadStatusAfter:  leads.Status(req.LeadStatusAfter),
		Notes:            req.Notes,
		NextFollowupDate: req.NextFollowupDate,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, call)
}

func (h *Handlers) GetCall(c *gin.Context) {
	ownerID, ok := ownerScope(c)
	if !ok {
		return
	}
	call, err := h.Calls.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if ownerID != "" && call.TelecallerID != ownerID {
		writeError(c, calls.ErrAccessDenied)
		return
	}
	c.JSON(http.StatusOK, call)
}

// ownerScope returns the worker id calls must belong to, or "" for privileged roles.
func ownerScope(c *gin.Context) (string, bool) {
	id, err := auth.FromContext(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return "", false
	}
	if rbac.SeesAllCalls(id.Role) {
		return "", true
	}
	return id.UserID, true
}

func (h *Handlers) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+": "+fe.Tag())
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
			return false
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "validation failed"})
		return false
	}
	return true
}

// writeError maps domain errors onto HTTP responses.
func writeError(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, leads.ErrNotFound), errors.Is(err, calls.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, assignment.ErrNoEligibleWorker):
		status, msg = http.StatusConflict, "no eligible worker"
	case errors.Is(err, assignment.ErrLeadClosed):
		status, msg = http.StatusConflict, "lead is converted or closed"
	case errors.Is(err, leads.ErrConflict), errors.Is(err, calls.ErrConflict):
		status, msg = http.StatusConflict, "concurrent update, retry"
	case errors.Is(err, assignment.ErrInvalidTarget):
		status, msg = http.StatusBadRequest, "target is not an active telecaller"
	case errors.Is(err, calls.ErrInvalidPhone):
		status, msg = http.StatusUnprocessableEntity, "lead phone number is not dialable"
	case errors.Is(err, calls.ErrInvalidDisposition):
		status, msg = http.StatusBadRequest, "invalid disposition"
	case errors.Is(err, assignment.ErrForbidden), errors.Is(err, calls.ErrAccessDenied):
		status, msg = http.StatusForbidden, "forbidden"
	case errors.Is(err, calls.ErrWorkerUnavailable):
		status, msg = http.StatusPreconditionFailed, "worker is busy or offline"
	case errors.Is(err, workers.ErrNotFound):
		status, msg = http.StatusNotFound, "worker not found"
	case errors.Is(err, calls.ErrTelephony):
		status, msg = http.StatusBadGateway, "telephony provider error"
	}
	if status >= http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", "path", c.FullPath(), "err", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
