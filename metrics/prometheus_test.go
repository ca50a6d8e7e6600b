package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	p.ObserveOperation("pull_next", "ok", 0.01)
	p.ObserveOperation("pull_next", "counselor unavailable", 0.02)
	p.IncAssignment("pull")
	p.IncAssignment("pull")
	p.IncCapacityRejection()
	p.SetQueueSize("inst-1", 4)
	p.SetQueueInSync("inst-1", false)
	p.IncDeadLetter("leads.audit")

	assert.Equal(t, 1.0, testutil.ToFloat64(p.operations.WithLabelValues("pull_next", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.assignments.WithLabelValues("pull")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.capacityRejections))
	assert.Equal(t, 4.0, testutil.ToFloat64(p.queueSize.WithLabelValues("inst-1")))
	assert.Equal(t, 0.0, testutil.ToFloat64(p.queueInSync.WithLabelValues("inst-1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.deadLetters.WithLabelValues("leads.audit")))
}

func TestPrometheusCollector_Handler(t *testing.T) {
	p := NewPrometheus(nil, "")
	p.SetQueueSize("inst-9", 2)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `leadqueue_queue_size{institution="inst-9"} 2`)
}

func TestNop(t *testing.T) {
	var c Collector = Nop{}
	c.ObserveOperation("x", "ok", 1)
	c.SetQueueInSync("i", true)
}
