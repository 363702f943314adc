package billing

import (
	"fmt"
	"time"

	"learngen/gen"
	"learngen/sink"
)

const (
	PaymentSucceeded = "succeeded"
	PaymentFailed    = "failed"
)

type Payment struct {
	ID             int64      `gorm:"column:payment_id;primaryKey;autoIncrement" json:"payment_id"`
	SubscriptionID int64      `gorm:"column:subscription_id;not null;index" json:"subscription_id"`
	UserID         int64      `gorm:"column:user_id;not null;index" json:"user_id"`
	Amount         float64    `gorm:"column:amount;type:decimal(10,2);not null" json:"amount"`
	Currency       string     `gorm:"column:currency;size:3;default:USD" json:"currency"`
	PaymentMethod  string     `gorm:"column:payment_method;size:50" json:"payment_method"`
	PaymentStatus  string     `gorm:"column:payment_status;size:20;not null;index" json:"payment_status"`
	TransactionID  string     `gorm:"column:transaction_id;size:255;uniqueIndex" json:"transaction_id"`
	PaymentGateway string     `gorm:"column:payment_gateway;size:50" json:"payment_gateway"`
	PaidAt         *time.Time `gorm:"column:paid_at" json:"paid_at,omitempty"`

	Subscription *Subscription `gorm:"foreignKey:SubscriptionID;references:ID" json:"-"`
}

func (Payment) TableName() string {
	return "payments"
}

var PaymentTable = sink.Table{
	Name: "payments",
	Columns: []string{
		"subscription_id", "user_id", "amount", "currency", "payment_method",
		"payment_status", "transaction_id", "payment_gateway", "paid_at",
	},
	IDColumn: "payment_id",
}

func (p Payment) Values() []any {
	return []any{
		p.SubscriptionID, p.UserID, p.Amount, p.Currency, p.PaymentMethod,
		p.PaymentStatus, p.TransactionID, p.PaymentGateway, p.PaidAt,
	}
}

var (
	PaymentMethods  = []string{"credit_card", "paypal", "bank_transfer"}
	PaymentGateways = []string{"stripe", "paypal", "ecpay"}
)

const (
	successRate     = 0.95
	maxMonthlyCount = 24
)

// PaymentCount is the number of payments scheduled for a subscription.
// Active monthly subscriptions pay once per elapsed 30 days up to 24 times,
// active annual ones once per elapsed year and at least once. Inactive ones
// pay one to three times.
func PaymentCount(s *gen.Sampler, sub SubscriptionRef, horizon time.Time) int {
	if sub.Status != StatusActive {
		return s.IntRange(1, 3)
	}
	months := int(horizon.Sub(sub.StartDate) / (30 * gen.Day))
	if months < 0 {
		months = 0
	}
	if sub.BillingCycle == Annual {
		return max(1, months/12)
	}
	return min(months, maxMonthlyCount)
}

// PaymentGen walks the subscriptions in order and emits their payments.
type PaymentGen struct {
	s     *gen.Sampler
	clock gen.Clock
	subs  []SubscriptionRef
	plans *Catalog

	sub       int // current subscription
	scheduled int // payments scheduled for it, -1 until sampled
	emitted   int // payments emitted for it
}

func NewPaymentGen(s *gen.Sampler, clock gen.Clock, subs []SubscriptionRef, plans *Catalog) (*PaymentGen, error) {
	if err := gen.RequirePool("subscriptions", len(subs)); err != nil {
		return nil, err
	}
	for _, sub := range subs {
		if _, ok := plans.ByID(sub.PlanID); !ok {
			return nil, fmt.Errorf("subscription %d: unknown plan %d", sub.ID, sub.PlanID)
		}
	}
	return &PaymentGen{s: s, clock: clock, subs: subs, plans: plans, scheduled: -1}, nil
}

func (g *PaymentGen) Next(n int) []Payment {
	out := make([]Payment, 0, n)
	for len(out) < n && g.sub < len(g.subs) {
		sub := g.subs[g.sub]
		if g.scheduled < 0 {
			g.scheduled = PaymentCount(g.s, sub, g.clock.Horizon)
		}
		due := sub.StartDate.Add(time.Duration(g.emitted) * Period(sub.BillingCycle))
		if g.emitted >= g.scheduled || !g.billable(sub, due) {
			g.sub++
			g.scheduled, g.emitted = -1, 0
			continue
		}
		out = append(out, g.payment(sub, due))
		g.emitted++
	}
	return out
}

// billable stops the schedule at the horizon, and at the end date for
// subscriptions that are no longer active.
func (g *PaymentGen) billable(sub SubscriptionRef, due time.Time) bool {
	if due.After(g.clock.Horizon) {
		return false
	}
	return sub.EndDate == nil || !due.After(*sub.EndDate)
}

func (g *PaymentGen) payment(sub SubscriptionRef, due time.Time) Payment {
	plan, _ := g.plans.ByID(sub.PlanID)
	p := Payment{
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		Amount:         plan.Price(sub.BillingCycle),
		Currency:       "USD",
		PaymentMethod:  gen.Pick(g.s, PaymentMethods),
		PaymentStatus:  PaymentFailed,
		TransactionID:  "txn_" + g.s.UUID(),
		PaymentGateway: gen.Pick(g.s, PaymentGateways),
	}
	if g.s.Chance(successRate) {
		paid := due
		p.PaymentStatus = PaymentSucceeded
		p.PaidAt = &paid
	}
	return p
}
