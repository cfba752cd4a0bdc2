package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveScrape(t *testing.T) {
	m := New()

	m.ObserveScrape("store-a", OutcomeSuccess, time.Second)
	m.ObserveScrape("store-a", OutcomeSuccess, time.Second)
	m.ObserveScrape("store-b", OutcomeFailure, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ScrapesTotal.WithLabelValues("store-a", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScrapesTotal.WithLabelValues("store-b", OutcomeFailure)))
}

func TestObserveListingsAndAlerts(t *testing.T) {
	m := New()

	m.ObserveListings("store-a", "fetched", 10)
	m.ObserveListings("store-a", "fetched", 5)
	m.AlertFired()
	m.ObserveEvaluation(OutcomeSuccess, time.Minute)

	assert.Equal(t, 15.0, testutil.ToFloat64(m.ListingsTotal.WithLabelValues("store-a", "fetched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsFired))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues(OutcomeSuccess)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveScrape("x", OutcomeSuccess, time.Second)
		m.ObserveListings("x", "fetched", 1)
		m.ObserveEvaluation(OutcomeSkipped, 0)
		m.AlertFired()
	})
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.ObserveScrape("store-a", OutcomeSuccess, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `price_comb_scrapes_total{outcome="success",source="store-a"} 1`))
}
