package main

import (
	"database/sql"
	"net/http"
	"time"

	"telecaller-platform/internal/httpapi"
	"telecaller-platform/internal/rbac"
	"telecaller-platform/internal/telephony"
	"telecaller-platform/pkg/logger"
	"telecaller-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Provider callbacks arrive in bursts per call; this only stops floods.
const (
	webhookRate  = rate.Limit(50)
	webhookBurst = 100
)

// registerPublicRoutes mounts health and metrics endpoints.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerPublicRoutes(r *gin.Engine, db *sql.DB, reg *prometheus.Registry) {
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			logger.FromGin(c).Warn("health check failed", "err", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
}

type webhookDeps struct {
	Handler   telephony.TwilioWebhookHandler
	Limiter   *httpapi.IPRateLimiter
	AuthToken string
	BaseURL   string
}

// registerWebhookRoutes mounts the telephony provider callbacks.
// Signatures are verified whenever an auth token is configured; config
// validation makes one mandatory in production.
func registerWebhookRoutes(r *gin.Engine, d webhookDeps) {
	wh := r.Group("")
	wh.Use(d.Limiter.Middleware())
	if d.AuthToken != "" {
		wh.Use(telephony.RequireTwilioSignature(d.AuthToken, d.BaseURL))
	}
	wh.POST(telephony.StatusCallbackPath, d.Handler.HandleStatus)
	wh.POST(telephony.RecordingCallbackPath, d.Handler.HandleRecording)
}

func registerProtectedRoutes(r *gin.Engine, authMW gin.HandlerFunc, h *httpapi.Handlers) {
	v1 := r.Group("/v1")
	v1.Use(authMW)

	// LEADS routes
	leadsGroup := v1.Group("/leads")
	{
		managers := leadsGroup.Group("")
		managers.Use(rbac.RequireAnyRole(rbac.RoleSupervisor))
		managers.POST("/:id/assign/auto", h.AutoAssign)
		managers.POST("/:id/assign", h.ManualAssign)
		managers.GET("/:id/history", h.LeadHistory)
	}

	// CALLS routes
	callsGroup := v1.Group("/calls")
	callsGroup.Use(rbac.RequireAnyRole(rbac.RoleTelecaller, rbac.RoleSupervisor))
	{
		callsGroup.POST("", h.InitiateCall)
		callsGroup.GET("/:id", h.GetCall)
		callsGroup.POST("/:id/disposition", h.RecordDisposition)
	}
}
