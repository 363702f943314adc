package activity

import (
	"fmt"
	"math"
	"time"

	"learngen/gen"
)

type Reply struct {
	ReplyID   string    `bson:"reply_id" json:"reply_id"`
	UserID    int64     `bson:"user_id" json:"user_id"`
	UserName  string    `bson:"user_name" json:"user_name"`
	Comment   string    `bson:"comment" json:"comment"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type CourseReview struct {
	ReviewID     string    `bson:"review_id" json:"review_id"`
	UserID       int64     `bson:"user_id" json:"user_id"`
	CourseID     int64     `bson:"course_id" json:"course_id"`
	Rating       float64   `bson:"rating" json:"rating"`
	Title        string    `bson:"title" json:"title"`
	Comment      string    `bson:"comment" json:"comment"`
	Tags         []string  `bson:"tags" json:"tags"`
	HelpfulCount int       `bson:"helpful_count" json:"helpful_count"`
	Replies      []Reply   `bson:"replies" json:"replies"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

func (r CourseReview) Key() string {
	return r.ReviewID
}

var (
	PositiveComments = []string{
		"Very practical course!",
		"Clear explanations and plenty of examples.",
		"Learned a lot of hands-on techniques.",
		"Well structured and easy to follow.",
		"Great value, highly recommended.",
	}
	NegativeComments = []string{
		"Some of the content is outdated.",
		"The pace is too slow.",
		"Not enough examples.",
		"The audio is hard to follow.",
		"Looking forward to an update.",
	}
	ReviewTags = []string{
		"beginner-friendly", "practical", "well-structured", "outdated",
		"advanced", "interactive", "comprehensive",
	}
)

const (
	// A rating at or above this reads as positive.
	positiveRating = 4.0
	replyRate      = 0.1
)

// Rating draws a 1.0 to 5.0 star rating skewed toward high values.
func Rating(s *gen.Sampler) float64 {
	return math.Round((s.Beta(8, 2)*4+1)*10) / 10
}

// HelpfulCount is larger on average for positive reviews.
func HelpfulCount(s *gen.Sampler, rating float64) int {
	mean := 3.0
	if rating >= positiveRating {
		mean = 10
	}
	return int(s.Exponential(mean))
}

type CourseReviewGen struct {
	s       *gen.Sampler
	clock   gen.Clock
	users   []gen.UserRef
	courses []gen.CourseRef
	count   int
	done    int
}

func NewCourseReviewGen(s *gen.Sampler, clock gen.Clock, users []gen.UserRef, courses []gen.CourseRef, count int) (*CourseReviewGen, error) {
	if err := gen.RequireRefs("users", len(users)); err != nil {
		return nil, err
	}
	if err := gen.RequireRefs("courses", len(courses)); err != nil {
		return nil, err
	}
	return &CourseReviewGen{s: s, clock: clock, users: users, courses: courses, count: count}, nil
}

func (g *CourseReviewGen) Next(n int) []CourseReview {
	n = min(n, g.count-g.done)
	out := make([]CourseReview, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.review(g.done+i+1))
	}
	g.done += n
	return out
}

func (g *CourseReviewGen) review(seq int) CourseReview {
	faker := g.s.Faker()
	user := gen.Pick(g.s, g.users)
	course := gen.Pick(g.s, g.courses)
	rating := Rating(g.s)

	comments := NegativeComments
	if rating >= positiveRating {
		comments = PositiveComments
	}
	lo, hi := docSpan(g.clock, user)
	created := g.clock.Between(g.s, lo, hi)
	r := CourseReview{
		ReviewID:     fmt.Sprintf("rev_%d", seq),
		UserID:       user.ID,
		CourseID:     course.ID,
		Rating:       rating,
		Title:        faker.Sentence(5),
		Comment:      gen.Pick(g.s, comments) + " " + faker.Sentence(10),
		Tags:         gen.SampleN(g.s, ReviewTags, g.s.IntRange(1, 3)),
		HelpfulCount: HelpfulCount(g.s, rating),
		Replies:      []Reply{},
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	// A reply needs at least a day before the horizon.
	if g.s.Chance(replyRate) && !created.Add(gen.Day).After(g.clock.Horizon) {
		r.Replies = append(r.Replies, Reply{
			ReplyID:   "rep_" + g.s.UUID(),
			UserID:    course.InstructorID,
			UserName:  "Instructor",
			Comment:   "Thank you for the feedback! " + faker.Sentence(8),
			CreatedAt: g.clock.Next(g.s, created, gen.Day, 7*gen.Day),
		})
	}
	return r
}
