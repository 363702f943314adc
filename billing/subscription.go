package billing

import (
	"time"

	"learngen/gen"
	"learngen/sink"
)

const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

type Subscription struct {
	ID           int64      `gorm:"column:subscription_id;primaryKey;autoIncrement" json:"subscription_id"`
	UserID       int64      `gorm:"column:user_id;not null;index" json:"user_id"`
	PlanID       int64      `gorm:"column:plan_id;not null" json:"plan_id"`
	Status       string     `gorm:"column:status;size:20;not null;index" json:"status"`
	BillingCycle string     `gorm:"column:billing_cycle;size:20;not null" json:"billing_cycle"`
	StartDate    time.Time  `gorm:"column:start_date;not null" json:"start_date"`
	EndDate      *time.Time `gorm:"column:end_date" json:"end_date,omitempty"`
	CancelledAt  *time.Time `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	AutoRenew    bool       `gorm:"column:auto_renew;default:true" json:"auto_renew"`

	Plan *Plan `gorm:"foreignKey:PlanID;references:ID" json:"-"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

var SubscriptionTable = sink.Table{
	Name: "subscriptions",
	Columns: []string{
		"user_id", "plan_id", "status", "billing_cycle", "start_date", "end_date", "cancelled_at", "auto_renew",
	},
	IDColumn: "subscription_id",
}

func (s Subscription) Values() []any {
	return []any{s.UserID, s.PlanID, s.Status, s.BillingCycle, s.StartDate, s.EndDate, s.CancelledAt, s.AutoRenew}
}

var (
	PlanWeights = gen.NewWeights(map[string]float64{
		"basic": 0.45, "professional": 0.40, "enterprise": 0.15,
	})
	CycleWeights = gen.NewWeights(map[string]float64{
		Monthly: 0.8, Annual: 0.2,
	})
)

const (
	activeRate = 0.8
	// Offsets relative to the causal predecessor.
	startDelayMax = 30 * gen.Day
	cancelMin     = 30 * gen.Day
	cancelMax     = 180 * gen.Day
)

// SubscriptionRef carries what the payment generator needs about a stored
// subscription.
type SubscriptionRef struct {
	ID           int64
	UserID       int64
	PlanID       int64
	Status       string
	BillingCycle string
	StartDate    time.Time
	EndDate      *time.Time
}

type SubscriptionGen struct {
	s       *gen.Sampler
	clock   gen.Clock
	users   []gen.UserRef
	plans   *Catalog
	count   int
	done    int
	pending []Subscription
}

func NewSubscriptionGen(s *gen.Sampler, clock gen.Clock, users []gen.UserRef, plans *Catalog, count int) (*SubscriptionGen, error) {
	if err := gen.RequirePool("users", len(users)); err != nil {
		return nil, err
	}
	for _, planType := range PlanWeights.Labels() {
		if _, err := plans.ByType(planType); err != nil {
			return nil, err
		}
	}
	return &SubscriptionGen{s: s, clock: clock, users: users, plans: plans, count: count}, nil
}

func (g *SubscriptionGen) Next(n int) []Subscription {
	n = min(n, g.count-g.done)
	out := make([]Subscription, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.one())
	}
	g.done += n
	g.pending = append(g.pending, out...)
	return out
}

func (g *SubscriptionGen) one() Subscription {
	user := gen.Pick(g.s, g.users)
	plan, _ := g.plans.ByType(gen.Weighted(g.s, PlanWeights))
	sub := Subscription{
		UserID:       user.ID,
		PlanID:       plan.ID,
		BillingCycle: gen.Weighted(g.s, CycleWeights),
		StartDate:    g.clock.Next(g.s, user.SignupDate, 0, startDelayMax),
		Status:       StatusActive,
	}
	if !g.s.Chance(activeRate) {
		sub.Status = gen.Pick(g.s, []string{StatusCancelled, StatusExpired})
		// Clipped to the horizon, so it never precedes the start date.
		cancelled := g.clock.Next(g.s, sub.StartDate, cancelMin, cancelMax)
		end := cancelled
		sub.CancelledAt = &cancelled
		sub.EndDate = &end
	}
	sub.AutoRenew = sub.Status == StatusActive
	return sub
}

// Refs pairs the store-assigned IDs with the subscriptions emitted so far.
func (g *SubscriptionGen) Refs(ids []int64) ([]SubscriptionRef, error) {
	if err := gen.PairIDs("subscriptions", ids, len(g.pending)); err != nil {
		return nil, err
	}
	refs := make([]SubscriptionRef, len(ids))
	for i, sub := range g.pending {
		refs[i] = SubscriptionRef{
			ID:           ids[i],
			UserID:       sub.UserID,
			PlanID:       sub.PlanID,
			Status:       sub.Status,
			BillingCycle: sub.BillingCycle,
			StartDate:    sub.StartDate,
			EndDate:      sub.EndDate,
		}
	}
	g.pending = nil
	return refs, nil
}
