package gen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClock(t *testing.T) Clock {
	c, err := NewClock(DefaultStart, DefaultHorizon)
	require.NoError(t, err)
	return c
}

func TestNewClockRejectsEmptyWindow(t *testing.T) {
	_, err := NewClock(DefaultHorizon, DefaultStart)
	assert.Error(t, err)
	_, err = NewClock(DefaultStart, DefaultStart)
	assert.Error(t, err)
}

func TestNextNeverPrecedesPredecessor(t *testing.T) {
	c := testClock(t)
	s := NewSampler(5)
	for i := 0; i < 10000; i++ {
		pred := c.Between(s, c.Start, c.Horizon)
		next := c.Next(s, pred, 0, 180*Day)
		assert.False(t, next.Before(pred))
		assert.False(t, next.After(c.Horizon))
	}
}

func TestNextClipsToHorizon(t *testing.T) {
	c := testClock(t)
	s := NewSampler(5)
	pred := c.Horizon.Add(-Day)
	next, clipped := c.Successor(s, pred, 30*Day, 60*Day)
	assert.True(t, clipped)
	assert.Equal(t, c.Horizon, next)

	// A predecessor beyond the horizon keeps the ordering.
	late := c.Horizon.Add(Day)
	assert.Equal(t, late, c.Next(s, late, 0, Day))
}

func TestUnclippedReportsLateResults(t *testing.T) {
	c := testClock(t)
	s := NewSampler(5)
	_, ok := c.Unclipped(s, c.Horizon.Add(-time.Hour), 2*time.Hour, 3*time.Hour)
	assert.False(t, ok)
	got, ok := c.Unclipped(s, c.Start, time.Hour, time.Hour)
	assert.True(t, ok)
	assert.Equal(t, c.Start.Add(time.Hour), got)
}

func TestAnchorInsideWindow(t *testing.T) {
	c := testClock(t)
	s := NewSampler(11)
	var sum time.Duration
	const n = 5000
	for i := 0; i < n; i++ {
		a := c.Anchor(s, 2, 5)
		require.True(t, c.Contains(a))
		sum += a.Sub(c.Start) / n
	}
	// Beta(2, 5) has mean 2/7.
	assert.InDelta(t, 2.0/7.0, float64(sum)/float64(c.Window()), 0.02)
}

func TestAnchorKeepsFractionalStart(t *testing.T) {
	start := DefaultStart.Add(750 * time.Millisecond)
	c, err := NewClock(start, start.Add(time.Hour))
	require.NoError(t, err)
	s := NewSampler(4)
	for i := 0; i < 1000; i++ {
		a := c.Anchor(s, 1, 5)
		assert.False(t, a.Before(start))
		assert.Equal(t, start.Nanosecond(), a.Nanosecond())
	}
}

func TestBetweenAndClamp(t *testing.T) {
	c := testClock(t)
	s := NewSampler(2)
	lo := c.Start.Add(-Year)
	hi := c.Start.Add(10 * Day)
	for i := 0; i < 1000; i++ {
		got := c.Between(s, lo, hi)
		assert.False(t, got.Before(c.Start))
		assert.False(t, got.After(hi))
	}
	// Inverted bounds collapse to the lower one.
	assert.Equal(t, hi, c.Between(s, hi, lo.Add(-Day)))
	assert.Equal(t, c.Horizon, c.Clamp(c.Horizon.Add(Day)))
}

func TestParseTime(t *testing.T) {
	got, err := ParseTime("2023-06-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), got)
	got, err = ParseTime("2023-06-01T10:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 6, 1, 8, 0, 0, 0, time.UTC), got)
	_, err = ParseTime("June 1st")
	assert.Error(t, err)
}
