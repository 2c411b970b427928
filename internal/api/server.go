// Package api exposes the contact endpoints over HTTP on a goa muxer.
package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	goahttp "goa.design/goa/v3/http"
	"goa.design/goa/v3/http/middleware"

	"contactgate/internal/config"
	"contactgate/internal/delivery"
	"contactgate/internal/domain"
	"contactgate/internal/metrics"
	"contactgate/internal/ratelimit"
	"contactgate/internal/services"
)

const (
	pathSendEmail = "/api/send-email"
	pathContacts  = "/api/contacts"
	pathTestEmail = "/api/admin/test-email"
	pathStats     = "/api/admin/stats"
	pathHealth    = "/health"
)

// routes are the paths reported as-is in HTTP metrics.
var routes = []string{pathSendEmail, pathContacts, pathTestEmail, pathStats, pathHealth}

// Submitter runs the submission pipeline.
type Submitter interface {
	Submit(ctx context.Context, in services.SubmitInput) (*services.SubmitResult, error)
	ListRecent(ctx context.Context, limit int) ([]domain.ContactRecord, error)
}

// DeliveryAdmin is the admin view of the delivery service.
type DeliveryAdmin interface {
	Statistics() delivery.Statistics
	TestConfiguration(ctx context.Context, to string) delivery.TestReport
}

// Authenticator checks admin bearer tokens.
type Authenticator interface {
	Authenticate(header string) (string, error)
}

// Reputation is the IP reputation tracker.
type Reputation interface {
	IsSuspicious(ctx context.Context, ip string) (bool, error)
	RecordFailure(ctx context.Context, ip, purpose string) (int64, bool, error)
}

// Deps are the collaborators of the HTTP surface.
type Deps struct {
	Contacts   Submitter
	Delivery   DeliveryAdmin
	Auth       Authenticator
	Reputation Reputation
	Limiter    *ratelimit.Limiter
	Ping       func(ctx context.Context) error
	DBStats    func() (*sql.DBStats, error)
	Log        zerolog.Logger
}

// Server holds the handlers and their dependencies.
type Server struct {
	cfg  *config.Config
	deps Deps
	log  zerolog.Logger
	now  func() time.Time
}

// New creates the HTTP server handlers
func New(cfg *config.Config, deps Deps) *Server {
	return &Server{cfg: cfg, deps: deps, log: deps.Log, now: time.Now}
}

func (s *Server) clientIP(r *http.Request) string {
	return ratelimit.ClientIP(r, s.cfg.Security.TrustProxy)
}

// Handler builds the full middleware chain around the muxer:
// security headers, CORS, request id, logging, prometheus, general limit, routes.
func (s *Server) Handler() http.Handler {
	mux := goahttp.NewMuxer()

	submissionLimit := ratelimit.SubmissionMiddleware(
		s.deps.Limiter, s.deps.Reputation, s.cfg.Security.IsTrusted, s.clientIP, s.log, metrics.RecordRateLimitRejection,
	)

	mux.Handle(http.MethodPost, pathSendEmail, submissionLimit(http.HandlerFunc(s.handleSendEmail)).ServeHTTP)
	mux.Handle(http.MethodGet, pathContacts, s.requireAdmin(s.handleListContacts))
	mux.Handle(http.MethodPost, pathTestEmail, s.requireAdmin(s.handleTestEmail))
	mux.Handle(http.MethodGet, pathStats, s.requireAdmin(s.handleStats))
	mux.Handle(http.MethodGet, pathHealth, s.handleHealth)

	var app http.Handler = middleware.PopulateRequestContext()(mux)
	app = limitBody(app)

	generalLimit := ratelimit.Middleware(s.deps.Limiter, ratelimit.General, s.clientIP, s.log, metrics.RecordRateLimitRejection)
	limited := generalLimit(app)

	// Route /metrics to Prometheus and everything else to the goa mux
	metricsHandler := promhttp.Handler()
	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			metricsHandler.ServeHTTP(w, r)
			return
		}
		limited.ServeHTTP(w, r)
	})

	var handler http.Handler = metrics.PrometheusMiddleware(root, routes...)
	handler = requestLogging(handler, s.log)
	handler = middleware.RequestID(middleware.UseXRequestIDHeaderOption(true))(handler)
	handler = cors(handler, s.cfg)
	return securityHeaders(handler, s.cfg)
}
