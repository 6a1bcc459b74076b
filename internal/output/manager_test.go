package output

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManagerCounters(t *testing.T) {
	m := NewManager()
	m.Begin(100)
	m.StartSegment(0, 25)
	m.StartSegment(1, 25)
	m.Advance(0, 10)
	m.Advance(1, 25)
	m.EndSegment(1)

	require.Equal(t, int64(35), m.aggregate)
	require.Equal(t, int64(10), m.segments[0].current)
	require.True(t, m.segments[1].done)
	require.False(t, m.segments[0].done)

	// A failed attempt rolls its bytes back out.
	m.Advance(0, -10)
	require.Equal(t, int64(25), m.aggregate)
	require.Equal(t, int64(0), m.segments[0].current)
}

func TestProgressBarBounds(t *testing.T) {
	empty := ProgressBar(0, 100, 10)
	require.Contains(t, empty, "0.0%")
	require.NotContains(t, empty, StyleSymbols["hline"])

	full := ProgressBar(100, 100, 10)
	require.Contains(t, full, "100.0%")
	require.Contains(t, full, strings.Repeat(StyleSymbols["hline"], 10))

	// Overshoot and negative values are clamped.
	require.Contains(t, ProgressBar(150, 100, 10), "100.0%")
	require.Contains(t, ProgressBar(-5, 100, 10), "0.0%")
	// Unknown totals never divide by zero.
	require.NotEmpty(t, ProgressBar(5, 0, 10))
}
