package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpdate("message")
	c.RecordUpdate("message")
	c.RecordUpdate("callback")
	c.RecordGeneration("workout_plan", ResultOK)
	c.RecordBroadcastMessage(ResultError)
	c.RecordSchedulerRun("auto_charge", ResultOK)
	c.RecordCharge(ResultOK)
	c.RecordBusyRefusal()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.updates.WithLabelValues("message")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.updates.WithLabelValues("callback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.generations.WithLabelValues("workout_plan", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.broadcastMessages.WithLabelValues(ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.schedulerRuns.WithLabelValues("auto_charge", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.charges.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.busyRefusals))
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordBusyRefusal()

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "fitness_bot_busy_refusals_total 1")
}
