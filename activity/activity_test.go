package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learngen/gen"
)

type pools struct {
	clock   gen.Clock
	users   []gen.UserRef
	courses []gen.CourseRef
	signup  map[int64]time.Time
	course  map[int64]gen.CourseRef
}

func testPools(t *testing.T) pools {
	clock, err := gen.NewClock(gen.DefaultStart, gen.DefaultHorizon)
	require.NoError(t, err)
	s := gen.NewSampler(77)
	p := pools{clock: clock, signup: map[int64]time.Time{}, course: map[int64]gen.CourseRef{}}
	for i := 0; i < 50; i++ {
		u := gen.UserRef{ID: int64(1000 + i), SignupDate: clock.Anchor(s, 2, 5)}
		p.users = append(p.users, u)
		p.signup[u.ID] = u.SignupDate
	}
	// One user signs up on the last day.
	last := gen.UserRef{ID: 2000, SignupDate: clock.Horizon.Add(-time.Hour)}
	p.users = append(p.users, last)
	p.signup[last.ID] = last.SignupDate
	for i := 0; i < 10; i++ {
		c := gen.CourseRef{ID: int64(500 + i), InstructorID: int64(90 + i), DurationMinutes: 120}
		p.courses = append(p.courses, c)
		p.course[c.ID] = c
	}
	return p
}

func courseOf(props Properties) (int64, bool) {
	switch p := props.(type) {
	case VideoProperties:
		return p.CourseID, true
	case EnrollProperties:
		return p.CourseID, true
	case CourseProperties:
		return p.CourseID, true
	}
	return 0, false
}

func TestUserEventsReferencePools(t *testing.T) {
	p := testPools(t)
	g, err := NewUserEventGen(gen.NewSampler(1), p.clock, p.users, p.courses, 3000)
	require.NoError(t, err)

	var events []UserEvent
	for batch := g.Next(256); len(batch) > 0; batch = g.Next(256) {
		events = append(events, batch...)
	}
	require.Len(t, events, 3000)
	assert.Equal(t, "evt_1", events[0].Key())
	assert.Equal(t, "evt_3000", events[2999].Key())

	types := map[string]bool{}
	for _, e := range events {
		signup, ok := p.signup[e.UserID]
		require.True(t, ok, "unknown user %d", e.UserID)
		assert.False(t, e.Timestamp.Before(signup))
		assert.False(t, e.Timestamp.After(p.clock.Horizon))
		if id, ok := courseOf(e.Properties); ok {
			assert.Contains(t, p.course, id)
		}
		switch e.EventType {
		case VideoProgress:
			props := e.Properties.(VideoProperties)
			require.NotNil(t, props.CompletionRate)
		case VideoStart, VideoComplete:
			assert.Nil(t, e.Properties.(VideoProperties).CompletionRate)
		case Login, Logout, PageView, Download:
			assert.Equal(t, NoProperties{}, e.Properties)
		}
		types[e.EventType] = true
	}
	assert.Len(t, types, len(EventTypes))
}

func TestReviews(t *testing.T) {
	p := testPools(t)
	g, err := NewCourseReviewGen(gen.NewSampler(2), p.clock, p.users, p.courses, 2000)
	require.NoError(t, err)
	reviews := g.Next(2000)
	require.Len(t, reviews, 2000)

	replied := 0
	for _, r := range reviews {
		assert.Contains(t, p.signup, r.UserID)
		course, ok := p.course[r.CourseID]
		require.True(t, ok)
		assert.True(t, r.Rating >= 1 && r.Rating <= 5)
		assert.False(t, r.CreatedAt.Before(p.signup[r.UserID]))
		assert.NotEmpty(t, r.Tags)
		assert.LessOrEqual(t, len(r.Tags), 3)
		assert.NotNil(t, r.Replies)
		for _, reply := range r.Replies {
			replied++
			assert.Equal(t, course.InstructorID, reply.UserID)
			assert.True(t, reply.CreatedAt.After(r.CreatedAt))
			assert.False(t, reply.CreatedAt.After(p.clock.Horizon))
		}
	}
	assert.InDelta(t, replyRate, float64(replied)/2000, 0.03)
}

func TestNoRepliesInTheLastDay(t *testing.T) {
	horizon := gen.DefaultHorizon
	clock, err := gen.NewClock(horizon.Add(-36*time.Hour), horizon)
	require.NoError(t, err)
	users := []gen.UserRef{{ID: 1, SignupDate: clock.Start}}
	courses := []gen.CourseRef{{ID: 7, InstructorID: 3, DurationMinutes: 60}}
	g, err := NewCourseReviewGen(gen.NewSampler(5), clock, users, courses, 3000)
	require.NoError(t, err)

	replied := 0
	for _, r := range g.Next(3000) {
		for _, reply := range r.Replies {
			replied++
			assert.False(t, r.CreatedAt.After(horizon.Add(-gen.Day)))
			assert.True(t, reply.CreatedAt.After(r.CreatedAt))
		}
	}
	assert.NotZero(t, replied)
}

func TestRatingsSkewPositive(t *testing.T) {
	s := gen.NewSampler(3)
	positive := 0
	for i := 0; i < 5000; i++ {
		if Rating(s) >= positiveRating {
			positive++
		}
	}
	assert.Greater(t, positive, 2500)
}

func TestTickets(t *testing.T) {
	p := testPools(t)
	g, err := NewSupportTicketGen(gen.NewSampler(4), p.clock, p.users, 1500)
	require.NoError(t, err)
	tickets := g.Next(1500)
	require.Len(t, tickets, 1500)

	for _, tk := range tickets {
		assert.Contains(t, p.signup, tk.UserID)
		assert.Contains(t, IssueTypes, tk.IssueType)
		require.GreaterOrEqual(t, len(tk.Messages), 2)
		assert.LessOrEqual(t, len(tk.Messages), 8)
		assert.Equal(t, tk.CreatedAt, tk.Messages[0].Timestamp)
		assert.Equal(t, tk.Messages[len(tk.Messages)-1].Timestamp, tk.UpdatedAt)
		for i, m := range tk.Messages {
			if i%2 == 0 {
				assert.Equal(t, "user", m.Sender)
			} else {
				assert.Equal(t, "agent", m.Sender)
				assert.Equal(t, "Support Agent", m.SenderName)
			}
			if i > 0 {
				assert.False(t, m.Timestamp.Before(tk.Messages[i-1].Timestamp))
			}
			assert.False(t, m.Timestamp.After(p.clock.Horizon))
		}

		done := tk.Status == TicketResolved || tk.Status == TicketClosed
		if done {
			require.NotNil(t, tk.ResolvedAt)
			assert.False(t, tk.ResolvedAt.Before(tk.UpdatedAt))
			assert.False(t, tk.ResolvedAt.After(p.clock.Horizon))
		} else {
			assert.Nil(t, tk.ResolvedAt)
		}
	}
}

func TestDocumentGeneratorsNeedPools(t *testing.T) {
	p := testPools(t)
	_, err := NewUserEventGen(gen.NewSampler(1), p.clock, nil, p.courses, 1)
	assert.ErrorIs(t, err, gen.ErrReferenceIntegrityGap)
	_, err = NewCourseReviewGen(gen.NewSampler(1), p.clock, p.users, nil, 1)
	assert.ErrorIs(t, err, gen.ErrReferenceIntegrityGap)
	_, err = NewSupportTicketGen(gen.NewSampler(1), p.clock, nil, 1)
	assert.ErrorIs(t, err, gen.ErrReferenceIntegrityGap)
}
