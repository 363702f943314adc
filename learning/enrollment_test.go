package learning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learngen/gen"
)

func testClock(t *testing.T) gen.Clock {
	c, err := gen.NewClock(gen.DefaultStart, gen.DefaultHorizon)
	require.NoError(t, err)
	return c
}

func testCourses(n int) []gen.CourseRef {
	courses := make([]gen.CourseRef, n)
	for i := range courses {
		courses[i] = gen.CourseRef{ID: int64(i + 1), InstructorID: 1, DurationMinutes: 600}
	}
	return courses
}

func drain(g *EnrollmentGen) []Enrollment {
	var out []Enrollment
	for batch := g.Next(100); len(batch) > 0; batch = g.Next(100) {
		out = append(out, batch...)
	}
	return out
}

func TestEnrollmentsAreUniqueAndCausal(t *testing.T) {
	clock := testClock(t)
	s := gen.NewSampler(8)
	users := make([]gen.UserRef, 100)
	signup := map[int64]time.Time{}
	for i := range users {
		users[i] = gen.UserRef{ID: int64(i + 1), SignupDate: clock.Anchor(s, 2, 5)}
		signup[users[i].ID] = users[i].SignupDate
	}

	g, err := NewEnrollmentGen(gen.NewSampler(42), clock, users, testCourses(20), 3000)
	require.NoError(t, err)
	enrollments := drain(g)
	assert.Equal(t, 3000, len(enrollments)+g.Dropped+g.Duplicates)
	assert.Positive(t, g.Duplicates)

	pairs := map[[2]int64]bool{}
	for _, e := range enrollments {
		key := [2]int64{e.UserID, e.CourseID}
		assert.False(t, pairs[key])
		pairs[key] = true

		assert.False(t, e.EnrolledAt.Before(signup[e.UserID]))
		assert.True(t, e.EnrolledAt.Before(clock.Horizon))
		assert.Contains(t, Progress.Labels(), e.ProgressPercentage)
		assert.Equal(t, 600*e.ProgressPercentage/100, e.WatchTimeMinutes)
		if e.ProgressPercentage == 100 {
			require.NotNil(t, e.CompletedAt)
			assert.True(t, e.CompletedAt.After(e.EnrolledAt))
			assert.False(t, e.CompletedAt.After(clock.Horizon))
		} else {
			assert.Nil(t, e.CompletedAt)
		}
	}
}

func TestLateCandidatesAreDropped(t *testing.T) {
	clock := testClock(t)
	users := []gen.UserRef{{ID: 1, SignupDate: clock.Horizon.Add(-gen.Day)}}

	g, err := NewEnrollmentGen(gen.NewSampler(1), clock, users, testCourses(500), 500)
	require.NoError(t, err)
	enrollments := drain(g)
	for _, e := range enrollments {
		assert.True(t, e.EnrolledAt.Before(clock.Horizon))
	}
	// Only a day of the year-long window is left.
	assert.Greater(t, g.Dropped, 450)
}

func TestEnrollmentGenNeedsPools(t *testing.T) {
	_, err := NewEnrollmentGen(gen.NewSampler(1), testClock(t), nil, testCourses(1), 1)
	assert.ErrorIs(t, err, gen.ErrDependencyPoolEmpty)
	_, err = NewEnrollmentGen(gen.NewSampler(1), testClock(t), []gen.UserRef{{ID: 1}}, nil, 1)
	assert.ErrorIs(t, err, gen.ErrDependencyPoolEmpty)
}
