package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/book-rental/metrics"
	"github.com/warp/book-rental/rental"
)

func TestCollector_EngineMetrics(t *testing.T) {
	c := metrics.NewCollector()
	labels := map[string]string{rental.LogAttrOperation: "direct_rent", rental.LogAttrOutcome: "success"}

	c.IncrementCounter(rental.MetricOperations, labels)
	c.IncrementCounter(rental.MetricOperations, labels)
	c.IncrementCounter(rental.MetricRetries, map[string]string{rental.LogAttrOperation: "direct_rent"})
	c.RecordDuration(rental.MetricOperationDuration, 3*time.Millisecond, labels)
	c.RecordValue(rental.MetricInvariantDrift, 2, nil)

	// Unknown names and mismatched labels are ignored.
	c.IncrementCounter("unknown_total", nil)
	c.IncrementCounter(rental.MetricContention, map[string]string{"bogus": "x"})

	families, err := c.Registry().Gather()
	require.NoError(t, err)
	byName := map[string]*dto.MetricFamily{}
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}

	ops := byName[rental.MetricOperations]
	require.NotNil(t, ops)
	require.Len(t, ops.GetMetric(), 1)
	assert.Equal(t, 2.0, ops.GetMetric()[0].GetCounter().GetValue())

	require.NotNil(t, byName[rental.MetricOperationDuration])
	assert.Equal(t, uint64(1), byName[rental.MetricOperationDuration].GetMetric()[0].GetHistogram().GetSampleCount())
	assert.Equal(t, 2.0, byName[rental.MetricInvariantDrift].GetMetric()[0].GetGauge().GetValue())
	assert.Nil(t, byName[rental.MetricContention], "no series was created")
}

func TestCollector_InstrumentUsesRoutePattern(t *testing.T) {
	c := metrics.NewCollector()
	r := chi.NewRouter()
	r.Use(c.Instrument)
	r.Get("/books/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) })
	r.Handle("/metrics", c.Handler())

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/books/"+id, nil))
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/books/{id}",status="404"} 3`)
}
