package ratelimit

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
)

// MsgTooManyRequests is the visitor facing rejection message.
const MsgTooManyRequests = "Muitas requisições. Por favor, aguarde alguns minutos e tente novamente."

// KeyFunc extracts the limiter key from a request.
type KeyFunc func(*http.Request) string

// Middleware applies tier to every request passing through it. Store errors
// fail open and are logged.
func Middleware(l *Limiter, tier Tier, key KeyFunc, log zerolog.Logger, onReject func(tier string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := l.Allow(r.Context(), tier, key(r))
			if err != nil {
				log.Error().Err(err).Str("tier", tier.Name).Msg("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}
			if !d.Allowed {
				if onReject != nil {
					onReject(tier.Name)
				}
				WriteRejection(w, d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SuspicionChecker reports whether an IP is currently flagged.
type SuspicionChecker interface {
	IsSuspicious(ctx context.Context, ip string) (bool, error)
}

// SubmissionMiddleware applies the tier chosen by SubmissionTier for the
// caller IP. A failed reputation lookup treats the caller as not flagged.
func SubmissionMiddleware(l *Limiter, checker SuspicionChecker, trusted func(ip string) bool, key KeyFunc, log zerolog.Logger, onReject func(tier string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := key(r)

			suspicious, err := checker.IsSuspicious(r.Context(), ip)
			if err != nil {
				log.Error().Err(err).Str("ip", ip).Msg("reputation lookup failed")
			}

			tier, apply := SubmissionTier(trusted != nil && trusted(ip), suspicious)
			if !apply {
				next.ServeHTTP(w, r)
				return
			}

			d, err := l.Allow(r.Context(), tier, ip)
			if err != nil {
				log.Error().Err(err).Str("tier", tier.Name).Msg("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}
			if !d.Allowed {
				log.Warn().Str("ip", ip).Str("tier", tier.Name).Int64("count", d.Count).Msg("submission rate limited")
				if onReject != nil {
					onReject(tier.Name)
				}
				WriteRejection(w, d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteRejection writes the 429 body shared by every tier.
func WriteRejection(w http.ResponseWriter, d Decision) {
	secs := int64(d.RetryAfter.Seconds())
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":      MsgTooManyRequests,
		"retryAfter": secs,
	})
}
