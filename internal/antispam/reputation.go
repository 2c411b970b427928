package antispam

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"contactgate/internal/store"
)

const (
	ReputationTTL    = time.Hour
	AttemptTTL       = 15 * time.Minute
	AttemptThreshold = 3
)

// Entry is the suspicion state recorded for one IP.
type Entry struct {
	IP       string    `json:"ip"`
	Reason   string    `json:"reason"`
	MarkedAt time.Time `json:"markedAt"`
}

// Reputation tracks suspicious IPs and per-IP validation failures.
type Reputation struct {
	store store.Store
	now   func() time.Time

	// onMarked is called after an IP is flagged, used for metrics.
	onMarked func(ip, reason string)
}

// ReputationOption configures a Reputation tracker
type ReputationOption func(*Reputation)

// WithReputationClock replaces time.Now for markedAt stamps
func WithReputationClock(now func() time.Time) ReputationOption {
	return func(r *Reputation) { r.now = now }
}

// OnMarked registers a hook run whenever an IP is flagged.
func OnMarked(fn func(ip, reason string)) ReputationOption {
	return func(r *Reputation) { r.onMarked = fn }
}

// NewReputation creates a tracker on top of s
func NewReputation(s store.Store, opts ...ReputationOption) *Reputation {
	r := &Reputation{store: s, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func reputationKey(ip string) string { return "reputation:" + ip }

func attemptKey(ip, purpose string) string { return "attempts:" + purpose + ":" + ip }

// IsSuspicious reports whether ip is currently flagged.
func (r *Reputation) IsSuspicious(ctx context.Context, ip string) (bool, error) {
	_, found, err := r.store.Get(ctx, reputationKey(ip))
	if err != nil {
		return false, fmt.Errorf("reputation lookup: %w", err)
	}
	return found, nil
}

// Entry returns the flag for ip, or nil when it is not flagged.
func (r *Reputation) Entry(ctx context.Context, ip string) (*Entry, error) {
	raw, found, err := r.store.Get(ctx, reputationKey(ip))
	if err != nil {
		return nil, fmt.Errorf("reputation lookup: %w", err)
	}
	if !found {
		return nil, nil
	}
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("decode reputation entry: %w", err)
	}
	return &e, nil
}

// MarkSuspicious flags ip for an hour. Marking again overwrites the reason
// and restarts the hour.
func (r *Reputation) MarkSuspicious(ctx context.Context, ip, reason string) error {
	raw, err := json.Marshal(Entry{IP: ip, Reason: reason, MarkedAt: r.now().UTC()})
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, reputationKey(ip), string(raw), ReputationTTL); err != nil {
		return fmt.Errorf("mark suspicious: %w", err)
	}
	if r.onMarked != nil {
		r.onMarked(ip, reason)
	}
	return nil
}

// RecordFailure counts a failed attempt for ip. From the third failure inside
// the counter's window on, the IP is flagged.
func (r *Reputation) RecordFailure(ctx context.Context, ip, purpose string) (count int64, promoted bool, err error) {
	count, err = r.store.Incr(ctx, attemptKey(ip, purpose), AttemptTTL)
	if err != nil {
		return 0, false, fmt.Errorf("record failure: %w", err)
	}
	if count < AttemptThreshold {
		return count, false, nil
	}
	reason := fmt.Sprintf("%d failed %s attempts", count, purpose)
	if err := r.MarkSuspicious(ctx, ip, reason); err != nil {
		return count, false, err
	}
	return count, true, nil
}
