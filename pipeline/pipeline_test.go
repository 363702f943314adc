package pipeline

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learngen/account"
	"learngen/activity"
	"learngen/billing"
	"learngen/catalog"
	"learngen/gen"
	"learngen/learning"
	"learngen/sink"
	"learngen/sink/memory"
)

func testConfig(t *testing.T) Config {
	clock, err := gen.NewClock(gen.DefaultStart, gen.DefaultHorizon)
	require.NoError(t, err)
	return Config{
		Seed:      42,
		Clock:     clock,
		BatchSize: 16,
		Counts: gen.Counts{
			Instructors:   5,
			Courses:       20,
			Users:         50,
			Subscriptions: 80,
			Enrollments:   200,
			UserEvents:    300,
			Reviews:       60,
			Tickets:       25,
		},
	}
}

func newRelational(t *testing.T) *memory.MemorySink {
	m := memory.NewMemorySink()
	m.Define(Tables()...)
	m.Unique("courses", "slug")
	m.Unique("users", "email")
	m.Unique("users", "username")
	require.NoError(t, SeedPlans(context.Background(), m, billing.DefaultPlans()))
	return m
}

func ids(rows []map[string]any, column string) map[int64]bool {
	out := make(map[int64]bool, len(rows))
	for _, r := range rows {
		out[r[column].(int64)] = true
	}
	return out
}

func TestRunKeepsReferencesIntact(t *testing.T) {
	rel, docs := newRelational(t), memory.NewMemorySink()
	report, err := New(testConfig(t), rel, docs).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Failed())

	categories := ids(rel.Rows(catalog.CategoryTable.Name), "category_id")
	instructors := ids(rel.Rows(catalog.InstructorTable.Name), "instructor_id")
	courses := ids(rel.Rows(catalog.CourseTable.Name), "course_id")
	users := ids(rel.Rows(account.UserTable.Name), "user_id")
	subs := ids(rel.Rows(billing.SubscriptionTable.Name), "subscription_id")
	assert.Len(t, categories, 15)
	assert.Len(t, instructors, 5)
	assert.Len(t, courses, 20)
	assert.Len(t, users, 50)
	assert.Len(t, subs, 80)

	for _, c := range rel.Rows(catalog.CourseTable.Name) {
		assert.True(t, instructors[c["instructor_id"].(int64)])
		assert.True(t, categories[c["category_id"].(int64)])
	}
	for _, s := range rel.Rows(billing.SubscriptionTable.Name) {
		assert.True(t, users[s["user_id"].(int64)])
		assert.Contains(t, []int64{1, 2, 3}, s["plan_id"].(int64))
	}
	payments := rel.Rows(billing.PaymentTable.Name)
	assert.NotEmpty(t, payments)
	for _, p := range payments {
		assert.True(t, subs[p["subscription_id"].(int64)])
		assert.True(t, users[p["user_id"].(int64)])
	}
	enrollments := rel.Rows(learning.EnrollmentTable.Name)
	assert.NotEmpty(t, enrollments)
	for _, e := range enrollments {
		assert.True(t, users[e["user_id"].(int64)])
		assert.True(t, courses[e["course_id"].(int64)])
	}

	events := docs.Documents(activity.UserEventCollection)
	assert.Len(t, events, 300)
	for _, d := range events {
		assert.True(t, users[d.(activity.UserEvent).UserID])
	}
	reviews := docs.Documents(activity.CourseReviewCollection)
	assert.Len(t, reviews, 60)
	for _, d := range reviews {
		r := d.(activity.CourseReview)
		assert.True(t, users[r.UserID])
		assert.True(t, courses[r.CourseID])
	}
	assert.Len(t, docs.Documents(activity.SupportTicketCollection), 25)

	res, ok := report.Lookup(learning.EnrollmentTable.Name)
	require.True(t, ok)
	assert.Equal(t, int64(len(enrollments)), res.Rows)
	assert.Contains(t, res.Detail, "candidates=200")

	var out bytes.Buffer
	require.NoError(t, report.Print(&out))
	assert.Contains(t, out.String(), "course_enrollments")
}

func TestRunIsDeterministic(t *testing.T) {
	relA, docsA := newRelational(t), memory.NewMemorySink()
	relB, docsB := newRelational(t), memory.NewMemorySink()
	_, err := New(testConfig(t), relA, docsA).Run(context.Background())
	require.NoError(t, err)
	_, err = New(testConfig(t), relB, docsB).Run(context.Background())
	require.NoError(t, err)

	for _, table := range []string{"courses", "users", "subscriptions", "payments", "course_enrollments"} {
		assert.Equal(t, relA.Rows(table), relB.Rows(table), table)
	}
	for _, c := range activity.Collections() {
		assert.Equal(t, docsA.Documents(c), docsB.Documents(c), c)
	}
}

func TestFailedStageHaltsDependents(t *testing.T) {
	rel := newRelational(t)
	rel.FailAfter(catalog.CourseTable.Name, 0)
	report, err := New(testConfig(t), rel, memory.NewMemorySink()).Run(context.Background())

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, catalog.CourseTable.Name, stageErr.Stage)
	assert.True(t, report.Failed())
	assert.Empty(t, rel.Rows(account.UserTable.Name))
	_, ran := report.Lookup(account.UserTable.Name)
	assert.False(t, ran)
}

func TestStageTimeoutAbortsRun(t *testing.T) {
	cfg := testConfig(t)
	cfg.Qps = 2
	cfg.StageTimeout = 300 * time.Millisecond
	rel := newRelational(t)
	started := time.Now()
	report, err := New(cfg, rel, nil).Run(context.Background())

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, catalog.InstructorTable.Name, stageErr.Stage)
	var chunkErr *sink.ChunkError
	assert.True(t, errors.As(err, &chunkErr))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(started), 450*time.Millisecond)
	assert.True(t, report.Failed())
	assert.Empty(t, rel.Rows(catalog.CourseTable.Name))
}

func TestEmptyDependencyPool(t *testing.T) {
	cfg := testConfig(t)
	cfg.Counts.Instructors = 0
	_, err := New(cfg, newRelational(t), nil).Run(context.Background())
	assert.ErrorIs(t, err, gen.ErrDependencyPoolEmpty)
}

func TestResetAllowsRerun(t *testing.T) {
	rel := newRelational(t)
	cfg := testConfig(t)
	_, err := New(cfg, rel, nil).Run(context.Background())
	require.NoError(t, err)

	cfg.Reset = true
	_, err = New(cfg, rel, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, rel.Rows(catalog.CategoryTable.Name), 15)
	assert.Len(t, rel.Rows(account.UserTable.Name), 50)
	assert.Len(t, rel.Rows(billing.PlanTable.Name), 3)
}

func TestRerunWithoutResetIsRejected(t *testing.T) {
	rel := newRelational(t)
	cfg := testConfig(t)
	_, err := New(cfg, rel, nil).Run(context.Background())
	require.NoError(t, err)

	report, err := New(cfg, rel, nil).Run(context.Background())
	require.ErrorIs(t, err, ErrStoreNotReset)
	assert.NotErrorIs(t, err, sink.ErrConstraintViolation)
	assert.Empty(t, report.Results())
	assert.Len(t, rel.Rows(catalog.CourseTable.Name), 20)
	assert.Len(t, rel.Rows(account.UserTable.Name), 50)
}

func TestRunDocumentsReadsPoolsBack(t *testing.T) {
	rel := newRelational(t)
	cfg := testConfig(t)
	_, err := New(cfg, rel, nil).Run(context.Background())
	require.NoError(t, err)

	docs := memory.NewMemorySink()
	cfg.DocUserLimit = 10
	report, err := New(cfg, rel, docs).RunDocuments(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Failed())

	firstTen := map[int64]bool{}
	for _, u := range rel.Rows(account.UserTable.Name)[:10] {
		firstTen[u["user_id"].(int64)] = true
	}
	for _, d := range docs.Documents(activity.SupportTicketCollection) {
		assert.True(t, firstTen[d.(activity.SupportTicket).UserID])
	}
	assert.Len(t, docs.Documents(activity.UserEventCollection), 300)
}

func TestRunDocumentsNeedsUsers(t *testing.T) {
	_, err := New(testConfig(t), newRelational(t), nil).RunDocuments(context.Background())
	assert.Error(t, err)

	rel := memory.NewMemorySink()
	_, err = New(testConfig(t), rel, memory.NewMemorySink()).RunDocuments(context.Background())
	assert.Error(t, err)
}
