// Package billing generates subscriptions and the payments they produce.
package billing

import (
	"fmt"
	"time"

	"learngen/gen"
	"learngen/sink"
)

const (
	Monthly = "monthly"
	Annual  = "annual"
)

type Plan struct {
	ID           int64   `gorm:"column:plan_id;primaryKey" json:"plan_id"`
	PlanName     string  `gorm:"column:plan_name;size:100;not null" json:"plan_name"`
	PlanType     string  `gorm:"column:plan_type;size:20;uniqueIndex;not null" json:"plan_type"`
	PriceMonthly float64 `gorm:"column:price_monthly;type:decimal(10,2)" json:"price_monthly"`
	PriceAnnual  float64 `gorm:"column:price_annual;type:decimal(10,2)" json:"price_annual"`
	IsActive     bool    `gorm:"column:is_active;default:true" json:"is_active"`
}

func (Plan) TableName() string {
	return "subscription_plans"
}

// Price returns the amount charged per billing period.
func (p Plan) Price(cycle string) float64 {
	if cycle == Annual {
		return p.PriceAnnual
	}
	return p.PriceMonthly
}

// Period is the spacing between two payments of a cycle.
func Period(cycle string) time.Duration {
	if cycle == Annual {
		return gen.Year
	}
	return 30 * gen.Day
}

// DefaultPlans is the fixed plan catalog seeded by the migration.
func DefaultPlans() []Plan {
	return []Plan{
		{ID: 1, PlanName: "Basic", PlanType: "basic", PriceMonthly: 9.99, PriceAnnual: 99.99, IsActive: true},
		{ID: 2, PlanName: "Professional", PlanType: "professional", PriceMonthly: 29.99, PriceAnnual: 299.99, IsActive: true},
		{ID: 3, PlanName: "Enterprise", PlanType: "enterprise", PriceMonthly: 99.99, PriceAnnual: 999.99, IsActive: true},
	}
}

// Catalog looks plans up by type and by id.
type Catalog struct {
	byType map[string]Plan
	byID   map[int64]Plan
}

func NewCatalog(plans []Plan) (*Catalog, error) {
	if err := gen.RequirePool("subscription_plans", len(plans)); err != nil {
		return nil, err
	}
	c := &Catalog{byType: make(map[string]Plan), byID: make(map[int64]Plan)}
	for _, p := range plans {
		c.byType[p.PlanType] = p
		c.byID[p.ID] = p
	}
	return c, nil
}

func (c *Catalog) ByType(planType string) (Plan, error) {
	p, ok := c.byType[planType]
	if !ok {
		return Plan{}, fmt.Errorf("unknown plan type %q", planType)
	}
	return p, nil
}

func (c *Catalog) ByID(id int64) (Plan, bool) {
	p, ok := c.byID[id]
	return p, ok
}

var PlanTable = sink.Table{
	Name:            "subscription_plans",
	Columns:         []string{"plan_name", "plan_type", "price_monthly", "price_annual", "is_active"},
	IDColumn:        "plan_id",
	ConflictColumns: []string{"plan_type"},
}

func (p Plan) Values() []any {
	return []any{p.PlanName, p.PlanType, p.PriceMonthly, p.PriceAnnual, p.IsActive}
}
