package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.Assignment("auto")
	m.CapReached()
	m.ReassignmentPass(3, 1, time.Now())
	m.JobRun("housekeeping", errors.New("x"))
}

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Assignment("auto")
	m.Assignment("auto")
	m.Assignment("reassign")
	m.CallTransition("completed")
	m.ReassignmentPass(4, 1, time.Unix(1700000000, 0))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AssignmentsTotal.WithLabelValues("auto")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AssignmentsTotal.WithLabelValues("reassign")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallTransitions.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SchedulerRuns.WithLabelValues("reassign", "partial")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.SchedulerLastRun))
}

func TestMetrics_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(prometheus.NewRegistry())

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/healthz", "200")))
}
