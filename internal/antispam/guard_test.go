package antispam

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apperrors "contactgate/pkg/errors"
)

func fixedNow() time.Time { return time.UnixMilli(1_700_000_000_000) }

func ms(v int64) *int64 { return &v }

func TestCheckHoneypot(t *testing.T) {
	g := NewGuard()

	assert.NoError(t, g.CheckHoneypot(""))
	assert.NoError(t, g.CheckHoneypot("   \t\n"))

	err := g.CheckHoneypot("http://spam.com")
	assert.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestCheckTiming(t *testing.T) {
	g := NewGuard(WithGuardClock(fixedNow))
	now := fixedNow().UnixMilli()

	tests := []struct {
		name    string
		ts      *int64
		wantErr bool
	}{
		{"absent", nil, false},
		{"too fast", ms(now - 2999), true},
		{"lower bound", ms(now - 3000), false},
		{"five seconds", ms(now - 5000), false},
		{"upper bound", ms(now - 1_800_000), false},
		{"stale", ms(now - 1_800_001), true},
		{"from the future", ms(now + 10_000), true},
		{"far past wraps duration", ms(now - 18_446_744_078_710), true},
		{"far past 2^44", ms(now - 1<<44), true},
		{"far future 2^44", ms(now + 1<<44), true},
		{"min int64", ms(math.MinInt64), true},
		{"max int64", ms(math.MaxInt64), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.CheckTiming(tt.ts)
			if tt.wantErr {
				assert.True(t, apperrors.IsValidation(err), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCheckHoneypotWins(t *testing.T) {
	g := NewGuard(WithGuardClock(fixedNow))
	now := fixedNow().UnixMilli()

	err := g.Check("bot", ms(now-5000))
	appErr, ok := apperrors.As(err)
	assert.True(t, ok)
	assert.Equal(t, MsgGuardFailed, appErr.Message)
	assert.Contains(t, appErr.Details[0], "honeypot")
}
