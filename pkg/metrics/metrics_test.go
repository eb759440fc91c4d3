package metrics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvester/pkg/metrics"
)

func TestRecordJob(t *testing.T) {
	before := testutil.ToFloat64(metrics.ItemsFound.WithLabelValues("metrics-test"))

	metrics.RecordJob("metrics-test", "SUCCEEDED", 0.5, 4, 3)

	assert.Equal(t, before+4, testutil.ToFloat64(metrics.ItemsFound.WithLabelValues("metrics-test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.JobExecutionsTotal.WithLabelValues("metrics-test", "SUCCEEDED")))
}

func TestRecordNotification(t *testing.T) {
	metrics.RecordNotification("metrics-test", false)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("metrics-test", "failed")))
}

func TestPush_NoGatewayIsNoop(t *testing.T) {
	assert.NoError(t, metrics.Push(context.Background(), "", "harvester"))
}

func TestPush_SendsToGateway(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, metrics.Push(context.Background(), srv.URL, "harvester"))
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/harvester", path)
}
