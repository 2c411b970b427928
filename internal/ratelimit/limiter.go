// Package ratelimit implements fixed-window request limits per caller IP.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"contactgate/internal/store"
)

// Tier is one independently configured fixed window.
type Tier struct {
	Name   string
	Window time.Duration
	Max    int64
}

var (
	General    = Tier{Name: "general", Window: 15 * time.Minute, Max: 100}
	Email      = Tier{Name: "email", Window: 15 * time.Minute, Max: 3}
	Suspicious = Tier{Name: "suspicious", Window: 60 * time.Minute, Max: 1}
)

// Decision is the outcome of one admission check.
type Decision struct {
	Tier       string
	Allowed    bool
	Count      int64
	Limit      int64
	RetryAfter time.Duration
}

// Limiter counts requests in fixed windows. The window opens with the first
// request for a key and closes Window later; the counter then starts over.
type Limiter struct {
	store  store.Store
	prefix string
}

// New creates a limiter keeping its windows in s
func New(s store.Store) *Limiter {
	return &Limiter{store: s, prefix: "ratelimit"}
}

// Allow counts one request for key under tier. Rejected requests still count.
func (l *Limiter) Allow(ctx context.Context, tier Tier, key string) (Decision, error) {
	count, err := l.store.Incr(ctx, fmt.Sprintf("%s:%s:%s", l.prefix, tier.Name, key), tier.Window)
	if err != nil {
		return Decision{Tier: tier.Name, Allowed: true}, fmt.Errorf("rate limit %s: %w", tier.Name, err)
	}

	d := Decision{
		Tier:    tier.Name,
		Allowed: count <= tier.Max,
		Count:   count,
		Limit:   tier.Max,
	}
	if !d.Allowed {
		d.RetryAfter = tier.Window
	}
	return d, nil
}

// SubmissionTier picks the tier governing the submission endpoint for one
// caller. Trusted callers are exempt, flagged callers get the suspicious tier
// in place of the email tier.
func SubmissionTier(trusted, suspicious bool) (Tier, bool) {
	switch {
	case trusted:
		return Tier{}, false
	case suspicious:
		return Suspicious, true
	default:
		return Email, true
	}
}
