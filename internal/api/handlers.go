package api

import (
	"errors"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	goahttp "goa.design/goa/v3/http"

	"contactgate/internal/domain"
	"contactgate/internal/metrics"
	"contactgate/internal/services"
	apperrors "contactgate/pkg/errors"
)

const (
	defaultListLimit = 100
	timestampLayout  = "2006-01-02T15:04:05.000Z07:00"
)

type sendEmailResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ContactID uint   `json:"contactId"`
	Warning   string `json:"warning,omitempty"`
}

type testEmailRequest struct {
	To string `json:"to"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`
}

func (s *Server) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var sub domain.Submission
	if err := goahttp.RequestDecoder(r).Decode(&sub); err != nil {
		s.writeError(ctx, w, decodeError(err))
		return
	}

	res, err := s.deps.Contacts.Submit(ctx, services.SubmitInput{
		Submission: sub,
		IP:         s.clientIP(r),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	if err := writeJSON(ctx, w, http.StatusOK, sendEmailResponse{
		Success:   true,
		Message:   res.Message,
		ContactID: res.ContactID,
		Warning:   res.Warning,
	}); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(ctx, w, apperrors.New(apperrors.ErrCodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = min(n, defaultListLimit)
	}

	records, err := s.deps.Contacts.ListRecent(ctx, limit)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	_ = writeJSON(ctx, w, http.StatusOK, records)
}

func (s *Server) handleTestEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req testEmailRequest
	if err := goahttp.RequestDecoder(r).Decode(&req); err != nil {
		s.writeError(ctx, w, decodeError(err))
		return
	}
	to := strings.TrimSpace(req.To)
	if to == "" {
		to = s.cfg.Email.RecipientEmail
	}
	if _, err := mail.ParseAddress(to); err != nil {
		s.writeError(ctx, w, apperrors.Validation("Por favor, forneça um email válido.", "to: invalid address"))
		return
	}

	report := s.deps.Delivery.TestConfiguration(ctx, to)
	status := http.StatusOK
	if !report.Success {
		status = http.StatusBadGateway
	}
	_ = writeJSON(ctx, w, status, report)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(r.Context(), w, http.StatusOK, s.deps.Delivery.Statistics())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := healthResponse{
		Status:    "OK",
		Timestamp: s.now().UTC().Format(timestampLayout),
		Database:  "connected",
	}
	status := http.StatusOK

	if s.deps.Ping != nil {
		if err := s.deps.Ping(ctx); err != nil {
			s.log.Error().Err(err).Msg("health check: database unreachable")
			resp.Status = "ERROR"
			resp.Database = "disconnected"
			status = http.StatusServiceUnavailable
		}
	}
	if s.deps.DBStats != nil {
		if stats, err := s.deps.DBStats(); err == nil {
			metrics.UpdateDBConnections(stats.InUse, stats.Idle)
		}
	}

	_ = writeJSON(ctx, w, status, resp)
}

// requireAdmin rejects requests without a valid admin bearer token. Failed
// attempts count toward the caller's reputation.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if _, err := s.deps.Auth.Authenticate(r.Header.Get("Authorization")); err != nil {
			ip := s.clientIP(r)
			s.log.Warn().Err(err).Str("ip", ip).Str("path", r.URL.Path).Msg("admin authentication failed")
			if _, _, recErr := s.deps.Reputation.RecordFailure(ctx, ip, "admin"); recErr != nil {
				s.log.Error().Err(recErr).Str("ip", ip).Msg("failed to record admin failure")
			}
			s.writeUnauthorized(ctx, w)
			return
		}
		next(w, r)
	}
}

func decodeError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.Wrap(apperrors.ErrCodeBadRequest, "Requisição muito grande.", err)
	}
	return apperrors.Wrap(apperrors.ErrCodeBadRequest, "Requisição inválida.", err)
}
