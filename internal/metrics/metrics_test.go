package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsObserve(t *testing.T) {
	m := New()
	m.Observe("login", nil)
	m.Observe("login", nil)
	m.Observe("login", errors.New("bad password"))

	if got := testutil.ToFloat64(m.events.WithLabelValues("login", ResultSuccess)); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(m.events.WithLabelValues("login", ResultFailure)); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Observe("login", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 from nil metrics handler, got %d", rec.Code)
	}
}

func TestMetricsHandlerExposesCounters(t *testing.T) {
	m := New()
	m.Observe("register", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `credential_events_total{event="register",result="success"} 1`) {
		t.Fatalf("expected register counter in exposition")
	}
}
