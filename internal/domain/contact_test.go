package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderedAtMs(t *testing.T) {
	ts := func(v float64) *float64 { return &v }

	assert.Nil(t, (&Submission{}).RenderedAtMs())

	got := (&Submission{Timestamp: ts(1_700_000_000_123.9)}).RenderedAtMs()
	require.NotNil(t, got)
	assert.Equal(t, int64(1_700_000_000_123), *got)

	got = (&Submission{Timestamp: ts(1e30)}).RenderedAtMs()
	require.NotNil(t, got)
	assert.Equal(t, int64(math.MaxInt64), *got)

	got = (&Submission{Timestamp: ts(-1e30)}).RenderedAtMs()
	require.NotNil(t, got)
	assert.Equal(t, int64(math.MinInt64), *got)
}
