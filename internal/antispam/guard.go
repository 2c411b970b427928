package antispam

import (
	"fmt"
	"strings"
	"time"

	apperrors "contactgate/pkg/errors"
)

const (
	DefaultMinElapsed = 3 * time.Second
	DefaultMaxElapsed = 30 * time.Minute
)

// MsgGuardFailed is shown to the visitor for any guard failure.
const MsgGuardFailed = "Não foi possível validar o envio do formulário. Recarregue a página e tente novamente."

// Guard runs the honeypot and timing checks. It holds no per-request state.
type Guard struct {
	now        func() time.Time
	minElapsed time.Duration
	maxElapsed time.Duration
}

// GuardOption configures a Guard
type GuardOption func(*Guard)

// WithGuardClock replaces time.Now
func WithGuardClock(now func() time.Time) GuardOption {
	return func(g *Guard) { g.now = now }
}

// NewGuard returns a guard accepting submissions between 3 seconds and 30
// minutes after the form was rendered.
func NewGuard(opts ...GuardOption) *Guard {
	g := &Guard{
		now:        time.Now,
		minElapsed: DefaultMinElapsed,
		maxElapsed: DefaultMaxElapsed,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckHoneypot fails when the hidden field carries anything but whitespace.
func (g *Guard) CheckHoneypot(value string) error {
	if strings.TrimSpace(value) != "" {
		return apperrors.Validation(MsgGuardFailed, "honeypot: hidden field was filled")
	}
	return nil
}

// CheckTiming validates the render timestamp, in unix milliseconds.
// A missing timestamp is not an error.
func (g *Guard) CheckTiming(renderedAtMs *int64) error {
	if renderedAtMs == nil {
		return nil
	}
	now := g.now().UnixMilli()
	ts := *renderedAtMs
	if ts > now {
		return apperrors.Validation(MsgGuardFailed, fmt.Sprintf("timestamp: in the future (%dms ahead)", ts-now))
	}
	// ts <= now, so a negative difference can only come from overflow.
	elapsedMs := now - ts
	switch {
	case elapsedMs < 0 || elapsedMs > g.maxElapsed.Milliseconds():
		return apperrors.Validation(MsgGuardFailed, "timestamp: form expired")
	case elapsedMs < g.minElapsed.Milliseconds():
		return apperrors.Validation(MsgGuardFailed, fmt.Sprintf("timestamp: submitted too fast (%dms)", elapsedMs))
	}
	return nil
}

// Check runs both checks, honeypot first.
func (g *Guard) Check(honeypot string, renderedAtMs *int64) error {
	if err := g.CheckHoneypot(honeypot); err != nil {
		return err
	}
	return g.CheckTiming(renderedAtMs)
}
