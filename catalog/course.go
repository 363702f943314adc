package catalog

import (
	"fmt"
	"math"
	"strings"
	"time"

	"learngen/gen"
	"learngen/sink"
)

type Course struct {
	ID              int64      `gorm:"column:course_id;primaryKey;autoIncrement" json:"course_id"`
	Title           string     `gorm:"column:title;size:300;not null" json:"title"`
	Slug            string     `gorm:"column:slug;size:300;uniqueIndex;not null" json:"slug"`
	Description     string     `gorm:"column:description;type:text" json:"description"`
	InstructorID    int64      `gorm:"column:instructor_id;not null;index" json:"instructor_id"`
	CategoryID      int64      `gorm:"column:category_id;not null;index" json:"category_id"`
	DifficultyLevel string     `gorm:"column:difficulty_level;size:20" json:"difficulty_level"`
	DurationMinutes int        `gorm:"column:duration_minutes" json:"duration_minutes"`
	TotalLectures   int        `gorm:"column:total_lectures" json:"total_lectures"`
	Language        string     `gorm:"column:language;size:10" json:"language"`
	PriceUSD        float64    `gorm:"column:price_usd;type:decimal(10,2)" json:"price_usd"`
	IsPublished     bool       `gorm:"column:is_published;default:false" json:"is_published"`
	PublishedDate   *time.Time `gorm:"column:published_date" json:"published_date,omitempty"`

	Instructor *Instructor `gorm:"foreignKey:InstructorID;references:ID" json:"-"`
	Category   *Category   `gorm:"foreignKey:CategoryID;references:ID" json:"-"`
}

func (Course) TableName() string {
	return "courses"
}

var CourseTable = sink.Table{
	Name: "courses",
	Columns: []string{
		"title", "slug", "description", "instructor_id", "category_id", "difficulty_level",
		"duration_minutes", "total_lectures", "language", "price_usd", "is_published", "published_date",
	},
	IDColumn: "course_id",
}

func (c Course) Values() []any {
	return []any{
		c.Title, c.Slug, c.Description, c.InstructorID, c.CategoryID, c.DifficultyLevel,
		c.DurationMinutes, c.TotalLectures, c.Language, c.PriceUSD, c.IsPublished, c.PublishedDate,
	}
}

var (
	Difficulties = []string{"beginner", "intermediate", "advanced", "all_levels"}
	Languages    = []string{"zh-TW", "en-US", "zh-CN"}
)

const (
	publishRate = 0.9
	// Courses are published at least this long before the horizon.
	publishLeadTime = 30 * gen.Day
)

type CourseGen struct {
	s           *gen.Sampler
	clock       gen.Clock
	instructors []int64
	categories  []int64
	count       int
	done        int
	// Local copies of the emitted courses, paired with store IDs by Refs.
	pending []Course
}

// NewCourseGen needs at least one instructor and one category.
func NewCourseGen(s *gen.Sampler, clock gen.Clock, instructors, categories []int64, count int) (*CourseGen, error) {
	if err := gen.RequirePool("instructors", len(instructors)); err != nil {
		return nil, err
	}
	if err := gen.RequirePool("categories", len(categories)); err != nil {
		return nil, err
	}
	return &CourseGen{s: s, clock: clock, instructors: instructors, categories: categories, count: count}, nil
}

func (g *CourseGen) Next(n int) []Course {
	n = min(n, g.count-g.done)
	out := make([]Course, 0, n)
	faker := g.s.Faker()
	for i := 0; i < n; i++ {
		seq := g.done + i + 1
		words := faker.HipsterSentence(g.s.IntRange(3, 6))
		title := strings.TrimSuffix(words, ".")
		c := Course{
			Title:           title,
			Slug:            fmt.Sprintf("course-%d-%s", seq, slugify(title)),
			Description:     faker.Paragraph(2, 4, 15, " "),
			InstructorID:    gen.Pick(g.s, g.instructors),
			CategoryID:      gen.Pick(g.s, g.categories),
			DifficultyLevel: gen.Pick(g.s, Difficulties),
			DurationMinutes: g.s.IntRange(30, 2400),
			TotalLectures:   g.s.IntRange(5, 200),
			Language:        gen.Pick(g.s, Languages),
			PriceUSD:        math.Round(g.s.Float64Range(9.99, 199.99)*100) / 100,
			IsPublished:     g.s.Chance(publishRate),
		}
		if c.IsPublished {
			t := g.clock.Between(g.s, g.clock.Start, g.clock.Horizon.Add(-publishLeadTime))
			c.PublishedDate = &t
		}
		out = append(out, c)
	}
	g.done += n
	g.pending = append(g.pending, out...)
	return out
}

// Refs pairs the store-assigned IDs with the courses emitted so far, in
// emission order.
func (g *CourseGen) Refs(ids []int64) ([]gen.CourseRef, error) {
	if err := gen.PairIDs("courses", ids, len(g.pending)); err != nil {
		return nil, err
	}
	refs := make([]gen.CourseRef, len(ids))
	for i, c := range g.pending {
		refs[i] = gen.CourseRef{ID: ids[i], InstructorID: c.InstructorID, DurationMinutes: c.DurationMinutes}
	}
	g.pending = nil
	return refs, nil
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
