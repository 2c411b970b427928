package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusMiddlewareCollapsesUnknownPaths(t *testing.T) {
	h := PrometheusMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
		}
	}), "/health")

	other := httpRequestsTotal.WithLabelValues(http.MethodGet, OtherPath, "404")
	health := httpRequestsTotal.WithLabelValues(http.MethodGet, "/health", "200")
	otherBefore, healthBefore := testutil.ToFloat64(other), testutil.ToFloat64(health)

	for _, path := range []string{"/wp-login.php", "/a/b/c", "/random-123", "/health"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, otherBefore+3, testutil.ToFloat64(other))
	assert.Equal(t, healthBefore+1, testutil.ToFloat64(health))
	assert.Zero(t, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/wp-login.php", "404")))
}
