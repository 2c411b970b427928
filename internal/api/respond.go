package api

import (
	"context"
	"net/http"
	"strconv"

	goahttp "goa.design/goa/v3/http"

	"contactgate/internal/services"
	apperrors "contactgate/pkg/errors"
)

type errorBody struct {
	Error      string   `json:"error"`
	Details    []string `json:"details,omitempty"`
	RetryAfter *int64   `json:"retryAfter,omitempty"`
}

// writeJSON encodes v through the goa response encoder. Responses are always
// JSON whatever the Accept header says.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) error {
	ctx = context.WithValue(ctx, goahttp.ContentTypeKey, "application/json")
	enc := goahttp.ResponseEncoder(ctx, w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return enc.Encode(v)
}

// writeError maps err to its status code and visitor facing body. Details
// and wrapped causes are only exposed in development.
func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Wrap(apperrors.ErrCodeInternalError, services.MsgInternal, err)
	}
	status := apperrors.HTTPStatus(appErr.Code)
	body := errorBody{Error: appErr.Message}
	dev := s.cfg.App.IsDevelopment()

	switch {
	case status == http.StatusTooManyRequests:
		secs := int64(appErr.RetryAfter.Seconds())
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
		body.RetryAfter = &secs
	case status >= http.StatusInternalServerError:
		s.log.Error().Err(err).Str("code", string(appErr.Code)).Msg("request failed")
		body.Error = services.MsgInternal
		if dev && appErr.Err != nil {
			body.Details = append(body.Details, appErr.Err.Error())
		}
	}
	if dev {
		body.Details = append(body.Details, appErr.Details...)
	}

	if encErr := writeJSON(ctx, w, status, body); encErr != nil {
		s.log.Error().Err(encErr).Msg("failed to encode error response")
	}
}

func (s *Server) writeUnauthorized(ctx context.Context, w http.ResponseWriter) {
	_ = writeJSON(ctx, w, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
}
