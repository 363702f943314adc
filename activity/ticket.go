package activity

import (
	"fmt"
	"time"

	"learngen/gen"
)

const (
	TicketOpen        = "open"
	TicketInProgress  = "in_progress"
	TicketWaitingUser = "waiting_user"
	TicketResolved    = "resolved"
	TicketClosed      = "closed"
)

type Message struct {
	MessageID   string    `bson:"message_id" json:"message_id"`
	Sender      string    `bson:"sender" json:"sender"`
	SenderName  string    `bson:"sender_name" json:"sender_name"`
	Text        string    `bson:"text" json:"text"`
	Timestamp   time.Time `bson:"timestamp" json:"timestamp"`
	Attachments []string  `bson:"attachments" json:"attachments"`
}

type SupportTicket struct {
	TicketID      string     `bson:"ticket_id" json:"ticket_id"`
	UserID        int64      `bson:"user_id" json:"user_id"`
	Subject       string     `bson:"subject" json:"subject"`
	IssueType     string     `bson:"issue_type" json:"issue_type"`
	Priority      string     `bson:"priority" json:"priority"`
	Status        string     `bson:"status" json:"status"`
	Messages      []Message  `bson:"messages" json:"messages"`
	AssignedAgent string     `bson:"assigned_agent" json:"assigned_agent"`
	Tags          []string   `bson:"tags" json:"tags"`
	Attachments   []string   `bson:"attachments" json:"attachments"`
	CreatedAt     time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at" json:"updated_at"`
	ResolvedAt    *time.Time `bson:"resolved_at" json:"resolved_at"`
}

func (t SupportTicket) Key() string {
	return t.TicketID
}

var (
	IssueTypes = []string{
		"login_issue", "payment_issue", "technical_issue", "course_content", "refund_request", "other",
	}
	TicketTags = []string{"login", "billing", "technical", "content"}
	Priorities = gen.NewWeights(map[string]float64{
		"low": 0.4, "medium": 0.3, "high": 0.2, "urgent": 0.1,
	})
	TicketStatuses = gen.NewWeights(map[string]float64{
		TicketOpen: 0.1, TicketInProgress: 0.15, TicketWaitingUser: 0.1, TicketResolved: 0.4, TicketClosed: 0.25,
	})
)

const (
	messageGap = 2 * time.Hour
	agentCount = 20
)

type SupportTicketGen struct {
	s     *gen.Sampler
	clock gen.Clock
	users []gen.UserRef
	count int
	done  int
}

func NewSupportTicketGen(s *gen.Sampler, clock gen.Clock, users []gen.UserRef, count int) (*SupportTicketGen, error) {
	if err := gen.RequireRefs("users", len(users)); err != nil {
		return nil, err
	}
	return &SupportTicketGen{s: s, clock: clock, users: users, count: count}, nil
}

func (g *SupportTicketGen) Next(n int) []SupportTicket {
	n = min(n, g.count-g.done)
	out := make([]SupportTicket, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.ticket(g.done+i+1))
	}
	g.done += n
	return out
}

func (g *SupportTicketGen) ticket(seq int) SupportTicket {
	faker := g.s.Faker()
	user := gen.Pick(g.s, g.users)
	t := SupportTicket{
		TicketID:  fmt.Sprintf("tick_%d", seq),
		UserID:    user.ID,
		IssueType: gen.Pick(g.s, IssueTypes),
		Priority:  gen.Weighted(g.s, Priorities),
		Status:    gen.Weighted(g.s, TicketStatuses),
	}
	n := g.s.IntRange(2, 8)

	// The thread and its resolution must end by the horizon.
	lo, hi := docSpan(g.clock, user)
	created := g.clock.Between(g.s, lo, hi.Add(-time.Duration(n)*messageGap))
	gap := messageGap
	if room := g.clock.Horizon.Sub(created) / time.Duration(n); room < gap {
		gap = room
	}

	t.CreatedAt = created
	t.Messages = make([]Message, n)
	for j := range t.Messages {
		sender, name := "agent", "Support Agent"
		if j%2 == 0 {
			sender, name = "user", faker.Name()
		}
		t.Messages[j] = Message{
			MessageID:   "msg_" + g.s.UUID(),
			Sender:      sender,
			SenderName:  name,
			Text:        faker.Sentence(15),
			Timestamp:   created.Add(time.Duration(j) * gap),
			Attachments: []string{},
		}
	}
	t.UpdatedAt = t.Messages[n-1].Timestamp
	if t.Status == TicketResolved || t.Status == TicketClosed {
		resolved := created.Add(time.Duration(n) * gap)
		t.ResolvedAt = &resolved
	}
	t.Subject = faker.Sentence(6)
	t.AssignedAgent = fmt.Sprintf("agent_%d", g.s.IntRange(1, agentCount))
	t.Tags = gen.SampleN(g.s, TicketTags, g.s.IntRange(1, 2))
	t.Attachments = []string{}
	return t
}
