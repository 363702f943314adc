// Package learning generates course enrollments.
package learning

import (
	"time"

	"learngen/gen"
	"learngen/sink"
)

type Enrollment struct {
	ID                 int64      `gorm:"column:enrollment_id;primaryKey;autoIncrement" json:"enrollment_id"`
	UserID             int64      `gorm:"column:user_id;not null;uniqueIndex:idx_enrollment_user_course" json:"user_id"`
	CourseID           int64      `gorm:"column:course_id;not null;uniqueIndex:idx_enrollment_user_course;index" json:"course_id"`
	EnrolledAt         time.Time  `gorm:"column:enrolled_at;not null" json:"enrolled_at"`
	ProgressPercentage int        `gorm:"column:progress_percentage;default:0" json:"progress_percentage"`
	CompletedAt        *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	WatchTimeMinutes   int        `gorm:"column:total_watch_time_minutes;default:0" json:"total_watch_time_minutes"`
}

func (Enrollment) TableName() string {
	return "course_enrollments"
}

var EnrollmentTable = sink.Table{
	Name: "course_enrollments",
	Columns: []string{
		"user_id", "course_id", "enrolled_at", "progress_percentage", "completed_at", "total_watch_time_minutes",
	},
	IDColumn:        "enrollment_id",
	ConflictColumns: []string{"user_id", "course_id"},
}

func (e Enrollment) Values() []any {
	return []any{e.UserID, e.CourseID, e.EnrolledAt, e.ProgressPercentage, e.CompletedAt, e.WatchTimeMinutes}
}

var Progress = gen.NewWeights(map[int]float64{
	0: 0.3, 25: 0.2, 50: 0.2, 75: 0.15, 100: 0.15,
})

const (
	enrollWindow  = 365 * gen.Day
	completionMin = 7 * gen.Day
	completionMax = 60 * gen.Day
)

type pair struct {
	user, course int64
}

// EnrollmentGen samples (user, course) candidates. Candidates that would be
// enrolled at or after the horizon are dropped, as are repeated pairs.
type EnrollmentGen struct {
	s       *gen.Sampler
	clock   gen.Clock
	users   []gen.UserRef
	courses []gen.CourseRef
	count   int
	done    int
	seen    map[pair]struct{}

	Dropped    int
	Duplicates int
}

func NewEnrollmentGen(s *gen.Sampler, clock gen.Clock, users []gen.UserRef, courses []gen.CourseRef, count int) (*EnrollmentGen, error) {
	if err := gen.RequirePool("users", len(users)); err != nil {
		return nil, err
	}
	if err := gen.RequirePool("courses", len(courses)); err != nil {
		return nil, err
	}
	return &EnrollmentGen{
		s:       s,
		clock:   clock,
		users:   users,
		courses: courses,
		count:   count,
		seen:    make(map[pair]struct{}),
	}, nil
}

// Next consumes candidates until n enrollments are ready or the candidate
// budget is spent.
func (g *EnrollmentGen) Next(n int) []Enrollment {
	out := make([]Enrollment, 0, n)
	for len(out) < n && g.done < g.count {
		g.done++
		if e, ok := g.candidate(); ok {
			out = append(out, e)
		}
	}
	return out
}

func (g *EnrollmentGen) candidate() (Enrollment, bool) {
	user := gen.Pick(g.s, g.users)
	course := gen.Pick(g.s, g.courses)
	enrolled, ok := g.clock.Unclipped(g.s, user.SignupDate, 0, enrollWindow)
	if !ok {
		g.Dropped++
		return Enrollment{}, false
	}
	key := pair{user.ID, course.ID}
	if _, dup := g.seen[key]; dup {
		g.Duplicates++
		return Enrollment{}, false
	}
	g.seen[key] = struct{}{}

	e := Enrollment{
		UserID:             user.ID,
		CourseID:           course.ID,
		EnrolledAt:         enrolled,
		ProgressPercentage: gen.Weighted(g.s, Progress),
	}
	if e.ProgressPercentage == 100 {
		completed := g.clock.Next(g.s, enrolled, completionMin, completionMax)
		e.CompletedAt = &completed
	}
	e.WatchTimeMinutes = course.DurationMinutes * e.ProgressPercentage / 100
	return e, true
}
