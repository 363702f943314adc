package catalog

import (
	"time"

	"learngen/gen"
	"learngen/sink"
)

type Instructor struct {
	ID         int64     `gorm:"column:instructor_id;primaryKey;autoIncrement" json:"instructor_id"`
	FullName   string    `gorm:"column:full_name;size:200;not null" json:"full_name"`
	Email      string    `gorm:"column:email;size:255" json:"email"`
	Bio        string    `gorm:"column:bio;type:text" json:"bio"`
	JoinedDate time.Time `gorm:"column:joined_date;not null" json:"joined_date"`
	IsActive   bool      `gorm:"column:is_active;default:true" json:"is_active"`
}

func (Instructor) TableName() string {
	return "instructors"
}

var InstructorTable = sink.Table{
	Name:     "instructors",
	Columns:  []string{"full_name", "email", "bio", "joined_date", "is_active"},
	IDColumn: "instructor_id",
}

func (i Instructor) Values() []any {
	return []any{i.FullName, i.Email, i.Bio, i.JoinedDate, i.IsActive}
}

// Instructors join at least 180 days before the horizon.
const instructorLeadTime = 180 * gen.Day

type InstructorGen struct {
	s     *gen.Sampler
	clock gen.Clock
	count int
	done  int
}

func NewInstructorGen(s *gen.Sampler, clock gen.Clock, count int) *InstructorGen {
	return &InstructorGen{s: s, clock: clock, count: count}
}

func (g *InstructorGen) Next(n int) []Instructor {
	n = min(n, g.count-g.done)
	out := make([]Instructor, 0, n)
	faker := g.s.Faker()
	for i := 0; i < n; i++ {
		out = append(out, Instructor{
			FullName:   faker.Name(),
			Email:      faker.Email(),
			Bio:        faker.Paragraph(1, 3, 12, " "),
			JoinedDate: g.clock.Between(g.s, g.clock.Start, g.clock.Horizon.Add(-instructorLeadTime)),
			IsActive:   true,
		})
	}
	g.done += n
	return out
}
