package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveAnswer(t *testing.T) {
	r := New()
	r.ObserveAnswer("answered", 0.8, 250*time.Millisecond)
	r.ObserveAnswer("answered", 0.6, time.Second)
	r.ObserveAnswer("no_results", 0.1, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.questions.WithLabelValues("answered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.questions.WithLabelValues("no_results")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.confidence))
}

func TestObserveCounters(t *testing.T) {
	r := New()
	r.ObserveStrategy("faq_focus")
	r.ObserveStrategy("faq_focus")
	r.ObserveSource("manual", "failed")
	r.ObserveEvent(nil)
	r.ObserveEvent(errors.New("nats down"))
	r.ObserveConfigUpdate(errors.New("bad"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.strategies.WithLabelValues("faq_focus")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sourceOutcomes.WithLabelValues("manual", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.events.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.events.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.configUpdates.WithLabelValues("error")))
}

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.ObserveAnswer("answered", 1, time.Second)
		r.ObserveStrategy("balanced")
		r.ObserveSource("faq", "ok")
		r.ObserveHTTP("GET", "/health", 200, time.Millisecond)
		r.ObserveEvent(nil)
		r.ObserveConfigUpdate(nil)
	})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler(t *testing.T) {
	r := New()
	r.ObserveHTTP("POST", "/ask", 200, 30*time.Millisecond)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `supportbot_http_requests_total{code="200",method="POST",route="/ask"} 1`)
	assert.Contains(t, string(body), "supportbot_http_request_duration_seconds_bucket")
	assert.Contains(t, string(body), "go_goroutines")
}
