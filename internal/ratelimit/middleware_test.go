package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRejectsWith429(t *testing.T) {
	l, _ := newTestLimiter()
	tier := Tier{Name: "tiny", Window: time.Minute, Max: 2}
	var rejected []string

	h := Middleware(l, tier, func(r *http.Request) string { return ClientIP(r, false) }, zerolog.Nop(),
		func(name string) { rejected = append(rejected, name) },
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, MsgTooManyRequests, body["error"])
	assert.Equal(t, float64(60), body["retryAfter"])
	assert.Equal(t, []string{"tiny"}, rejected)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.10:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	assert.Equal(t, "192.0.2.10", ClientIP(r, false))
	assert.Equal(t, "203.0.113.7", ClientIP(r, true))

	r.Header.Del("X-Forwarded-For")
	r.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", ClientIP(r, true))

	r.RemoteAddr = "not-an-addr"
	assert.Equal(t, "not-an-addr", ClientIP(r, false))
}

type staticChecker struct {
	flagged map[string]bool
	err     error
}

func (c staticChecker) IsSuspicious(_ context.Context, ip string) (bool, error) {
	return c.flagged[ip], c.err
}

func submissionHandler(l *Limiter, checker SuspicionChecker, trusted func(string) bool) http.Handler {
	return SubmissionMiddleware(l, checker, trusted, func(r *http.Request) string { return ClientIP(r, false) }, zerolog.Nop(), nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
	)
}

func postFrom(h http.Handler, ip string) int {
	r := httptest.NewRequest(http.MethodPost, "/api/send-email", nil)
	r.RemoteAddr = ip + ":40000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec.Code
}

func TestSubmissionMiddlewareEmailTier(t *testing.T) {
	l, _ := newTestLimiter()
	h := submissionHandler(l, staticChecker{}, nil)

	for i := int64(0); i < Email.Max; i++ {
		assert.Equal(t, http.StatusOK, postFrom(h, "198.51.100.1"))
	}
	assert.Equal(t, http.StatusTooManyRequests, postFrom(h, "198.51.100.1"))
	assert.Equal(t, http.StatusOK, postFrom(h, "198.51.100.2"))
}

func TestSubmissionMiddlewareSuspiciousTier(t *testing.T) {
	l, _ := newTestLimiter()
	h := submissionHandler(l, staticChecker{flagged: map[string]bool{"198.51.100.9": true}}, nil)

	assert.Equal(t, http.StatusOK, postFrom(h, "198.51.100.9"))
	assert.Equal(t, http.StatusTooManyRequests, postFrom(h, "198.51.100.9"))
}

func TestSubmissionMiddlewareTrustedBypass(t *testing.T) {
	l, _ := newTestLimiter()
	trusted := func(ip string) bool { return ip == "10.0.0.5" }
	h := submissionHandler(l, staticChecker{flagged: map[string]bool{"10.0.0.5": true}}, trusted)

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, postFrom(h, "10.0.0.5"))
	}
}

func TestSubmissionMiddlewareReputationErrorUsesEmailTier(t *testing.T) {
	l, _ := newTestLimiter()
	h := submissionHandler(l, staticChecker{err: errors.New("redis down")}, nil)

	for i := int64(0); i < Email.Max; i++ {
		assert.Equal(t, http.StatusOK, postFrom(h, "198.51.100.3"))
	}
	assert.Equal(t, http.StatusTooManyRequests, postFrom(h, "198.51.100.3"))
}
