// Package activity generates the document-store records: user events,
// course reviews and support tickets. They reference relational IDs by
// value, so the generators only draw from pools of stored records.
package activity

import (
	"fmt"
	"math"
	"time"

	"learngen/gen"
)

const (
	UserEventCollection     = "user_events"
	CourseReviewCollection  = "course_reviews"
	SupportTicketCollection = "support_tickets"
)

// Collections lists the document collections in generation order.
func Collections() []string {
	return []string{UserEventCollection, CourseReviewCollection, SupportTicketCollection}
}

// Documents are dated within two years of the window start.
const docWindow = 2 * gen.Year

// docSpan is the range a user's documents may be dated in.
func docSpan(clock gen.Clock, user gen.UserRef) (time.Time, time.Time) {
	lo := clock.Start
	if user.SignupDate.After(lo) {
		lo = user.SignupDate
	}
	hi := clock.Start.Add(docWindow)
	if hi.After(clock.Horizon) {
		hi = clock.Horizon
	}
	return lo, hi
}

const (
	PageView            = "page_view"
	VideoStart          = "video_start"
	VideoProgress       = "video_progress"
	VideoComplete       = "video_complete"
	CourseEnroll        = "course_enroll"
	CourseComplete      = "course_complete"
	Search              = "search"
	Download            = "download"
	CertificateDownload = "certificate_download"
	Login               = "login"
	Logout              = "logout"
)

var EventTypes = []string{
	PageView, VideoStart, VideoProgress, VideoComplete, CourseEnroll, CourseComplete,
	Search, Download, CertificateDownload, Login, Logout,
}

// Properties is the type-specific part of an event. Its concrete type
// depends on the event type.
type Properties interface {
	eventProperties()
}

type VideoProperties struct {
	CourseID       int64    `bson:"course_id" json:"course_id"`
	VideoID        string   `bson:"video_id" json:"video_id"`
	WatchDuration  int      `bson:"watch_duration" json:"watch_duration"`
	Quality        string   `bson:"quality" json:"quality"`
	CompletionRate *float64 `bson:"completion_rate,omitempty" json:"completion_rate,omitempty"`
}

type SearchProperties struct {
	Query        string `bson:"query" json:"query"`
	ResultsCount int    `bson:"results_count" json:"results_count"`
}

type EnrollProperties struct {
	CourseID int64  `bson:"course_id" json:"course_id"`
	Source   string `bson:"source" json:"source"`
}

type CourseProperties struct {
	CourseID int64 `bson:"course_id" json:"course_id"`
}

type NoProperties struct{}

func (VideoProperties) eventProperties()  {}
func (SearchProperties) eventProperties() {}
func (EnrollProperties) eventProperties() {}
func (CourseProperties) eventProperties() {}
func (NoProperties) eventProperties()     {}

type Device struct {
	Type    string `bson:"type" json:"type"`
	OS      string `bson:"os" json:"os"`
	Browser string `bson:"browser" json:"browser"`
}

type Location struct {
	Country   string `bson:"country" json:"country"`
	City      string `bson:"city" json:"city"`
	IPAddress string `bson:"ip_address" json:"ip_address"`
}

type UserEvent struct {
	EventID    string     `bson:"event_id" json:"event_id"`
	UserID     int64      `bson:"user_id" json:"user_id"`
	SessionID  string     `bson:"session_id" json:"session_id"`
	EventType  string     `bson:"event_type" json:"event_type"`
	Timestamp  time.Time  `bson:"timestamp" json:"timestamp"`
	Properties Properties `bson:"properties" json:"properties"`
	Device     Device     `bson:"device" json:"device"`
	Location   Location   `bson:"location" json:"location"`
}

func (e UserEvent) Key() string {
	return e.EventID
}

var (
	Devices = []Device{
		{Type: "desktop", OS: "Windows", Browser: "Chrome"},
		{Type: "desktop", OS: "MacOS", Browser: "Safari"},
		{Type: "mobile", OS: "iOS", Browser: "Safari"},
		{Type: "mobile", OS: "Android", Browser: "Chrome"},
		{Type: "tablet", OS: "iOS", Browser: "Safari"},
	}
	EventCountries = []string{"TW", "SG", "HK", "MY", "VN"}
	VideoQualities = []string{"360p", "720p", "1080p"}
	EnrollSources  = []string{"search", "recommendation", "direct"}
)

type UserEventGen struct {
	s       *gen.Sampler
	clock   gen.Clock
	users   []gen.UserRef
	courses []gen.CourseRef
	count   int
	done    int
}

func NewUserEventGen(s *gen.Sampler, clock gen.Clock, users []gen.UserRef, courses []gen.CourseRef, count int) (*UserEventGen, error) {
	if err := gen.RequireRefs("users", len(users)); err != nil {
		return nil, err
	}
	if err := gen.RequireRefs("courses", len(courses)); err != nil {
		return nil, err
	}
	return &UserEventGen{s: s, clock: clock, users: users, courses: courses, count: count}, nil
}

func (g *UserEventGen) Next(n int) []UserEvent {
	n = min(n, g.count-g.done)
	out := make([]UserEvent, 0, n)
	faker := g.s.Faker()
	for i := 0; i < n; i++ {
		user := gen.Pick(g.s, g.users)
		eventType := gen.Pick(g.s, EventTypes)
		lo, hi := docSpan(g.clock, user)
		out = append(out, UserEvent{
			EventID:    fmt.Sprintf("evt_%d", g.done+i+1),
			UserID:     user.ID,
			SessionID:  g.s.UUID(),
			EventType:  eventType,
			Timestamp:  g.clock.Between(g.s, lo, hi),
			Properties: g.properties(eventType),
			Device:     gen.Pick(g.s, Devices),
			Location: Location{
				Country:   gen.Pick(g.s, EventCountries),
				City:      faker.City(),
				IPAddress: faker.IPv4Address(),
			},
		})
	}
	g.done += n
	return out
}

func (g *UserEventGen) properties(eventType string) Properties {
	switch eventType {
	case VideoStart, VideoProgress, VideoComplete:
		p := VideoProperties{
			CourseID:      gen.Pick(g.s, g.courses).ID,
			VideoID:       fmt.Sprintf("vid_%d", g.s.IntRange(1, 50)),
			WatchDuration: g.s.IntRange(10, 3600),
			Quality:       gen.Pick(g.s, VideoQualities),
		}
		if eventType == VideoProgress {
			rate := math.Round(g.s.Float64Range(0.1, 0.9)*100) / 100
			p.CompletionRate = &rate
		}
		return p
	case Search:
		return SearchProperties{
			Query:        g.s.Faker().Sentence(3),
			ResultsCount: g.s.IntRange(0, 100),
		}
	case CourseEnroll:
		return EnrollProperties{
			CourseID: gen.Pick(g.s, g.courses).ID,
			Source:   gen.Pick(g.s, EnrollSources),
		}
	case CourseComplete, CertificateDownload:
		return CourseProperties{CourseID: gen.Pick(g.s, g.courses).ID}
	default:
		return NoProperties{}
	}
}
