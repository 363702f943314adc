package gen

import (
	"fmt"
	"time"
)

// Clock produces timestamps inside the simulated window [Start, Horizon]
// that never precede their causal predecessor.
type Clock struct {
	Start   time.Time
	Horizon time.Time
}

func NewClock(start, horizon time.Time) (Clock, error) {
	if !horizon.After(start) {
		return Clock{}, fmt.Errorf("horizon %s must be after start %s", horizon, start)
	}
	return Clock{Start: start.UTC(), Horizon: horizon.UTC()}, nil
}

func (c Clock) Window() time.Duration {
	return c.Horizon.Sub(c.Start)
}

// Next returns pred plus a uniform offset in [min, max], clipped to the
// horizon. A predecessor already past the horizon is returned unchanged:
// ordering wins over the bound, and callers keep anchors inside the window.
func (c Clock) Next(s *Sampler, pred time.Time, min, max time.Duration) time.Time {
	t, _ := c.Successor(s, pred, min, max)
	return t
}

// Successor is Next that also reports whether the result was clipped.
func (c Clock) Successor(s *Sampler, pred time.Time, min, max time.Duration) (time.Time, bool) {
	t := pred.Add(s.Duration(min, max))
	if !t.After(c.Horizon) {
		return t, false
	}
	if pred.After(c.Horizon) {
		return pred, true
	}
	return c.Horizon, true
}

// Unclipped returns pred plus a uniform offset in [min, max] and whether it
// is still strictly before the horizon. Generators that drop late records
// use it instead of Next.
func (c Clock) Unclipped(s *Sampler, pred time.Time, min, max time.Duration) (time.Time, bool) {
	t := pred.Add(s.Duration(min, max))
	return t, t.Before(c.Horizon)
}

// Anchor maps a Beta(alpha, beta) sample onto the window. Beta(2, 5) gives
// the accelerating-adoption curve used for signup dates.
func (c Clock) Anchor(s *Sampler, alpha, beta float64) time.Time {
	frac := s.Beta(alpha, beta)
	offset := time.Duration(frac * float64(c.Window()))
	return c.Start.Add(offset.Truncate(time.Second))
}

// Between returns a uniform timestamp in [lo, hi], both bounded by the window.
func (c Clock) Between(s *Sampler, lo, hi time.Time) time.Time {
	lo, hi = c.Clamp(lo), c.Clamp(hi)
	if !hi.After(lo) {
		return lo
	}
	return lo.Add(s.Duration(0, hi.Sub(lo)))
}

// Clamp bounds t to [Start, Horizon].
func (c Clock) Clamp(t time.Time) time.Time {
	if t.Before(c.Start) {
		return c.Start
	}
	if t.After(c.Horizon) {
		return c.Horizon
	}
	return t
}

// Contains reports whether t lies in [Start, Horizon].
func (c Clock) Contains(t time.Time) bool {
	return !t.Before(c.Start) && !t.After(c.Horizon)
}
