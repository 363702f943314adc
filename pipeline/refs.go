package pipeline

import (
	"context"
	"fmt"

	"learngen/account"
	"learngen/billing"
	"learngen/catalog"
	"learngen/gen"
	"learngen/sink"
)

// SeedPlans writes the plan catalog into stores that were not migrated,
// such as the in-memory one. Existing plans keep their IDs.
func SeedPlans(ctx context.Context, store sink.RelationalStore, plans []billing.Plan) error {
	rows := make([][]any, len(plans))
	for i, plan := range plans {
		rows[i] = plan.Values()
	}
	if _, err := store.InsertReturning(ctx, billing.PlanTable, rows); err != nil {
		return fmt.Errorf("seed plans: %w", err)
	}
	return nil
}

// LoadPlans reads the plan catalog the subscriptions reference.
func LoadPlans(ctx context.Context, store sink.RelationalStore) (*billing.Catalog, error) {
	ds, err := store.ReadTable(ctx, billing.PlanTable.Name,
		[]string{"plan_id", "plan_name", "plan_type", "price_monthly", "price_annual"}, 0)
	if err != nil {
		return nil, fmt.Errorf("load plan catalog (is the schema migrated?): %w", err)
	}
	plans := make([]billing.Plan, 0, len(ds.Rows))
	for _, row := range ds.Rows {
		var p billing.Plan
		if p.ID, err = sink.AsInt64(row[0]); err != nil {
			return nil, fmt.Errorf("plan_id: %w", err)
		}
		if p.PlanName, err = sink.AsString(row[1]); err != nil {
			return nil, fmt.Errorf("plan_name: %w", err)
		}
		if p.PlanType, err = sink.AsString(row[2]); err != nil {
			return nil, fmt.Errorf("plan_type: %w", err)
		}
		if p.PriceMonthly, err = sink.AsFloat64(row[3]); err != nil {
			return nil, fmt.Errorf("price_monthly: %w", err)
		}
		if p.PriceAnnual, err = sink.AsFloat64(row[4]); err != nil {
			return nil, fmt.Errorf("price_annual: %w", err)
		}
		p.IsActive = true
		plans = append(plans, p)
	}
	return billing.NewCatalog(plans)
}

// LoadUserRefs reads up to limit users with their signup dates.
func LoadUserRefs(ctx context.Context, store sink.RelationalStore, limit int) ([]gen.UserRef, error) {
	ds, err := store.ReadTable(ctx, account.UserTable.Name, []string{"user_id", "signup_date"}, limit)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	refs := make([]gen.UserRef, len(ds.Rows))
	for i, row := range ds.Rows {
		if refs[i].ID, err = sink.AsInt64(row[0]); err != nil {
			return nil, fmt.Errorf("user_id: %w", err)
		}
		if refs[i].SignupDate, err = sink.AsTime(row[1]); err != nil {
			return nil, fmt.Errorf("signup_date: %w", err)
		}
	}
	if err := gen.RequireRefs("users", len(refs)); err != nil {
		return nil, err
	}
	return refs, nil
}

// LoadCourseRefs reads every course with its instructor and duration.
func LoadCourseRefs(ctx context.Context, store sink.RelationalStore) ([]gen.CourseRef, error) {
	ds, err := store.ReadTable(ctx, catalog.CourseTable.Name,
		[]string{"course_id", "instructor_id", "duration_minutes"}, 0)
	if err != nil {
		return nil, fmt.Errorf("load courses: %w", err)
	}
	refs := make([]gen.CourseRef, len(ds.Rows))
	for i, row := range ds.Rows {
		if refs[i].ID, err = sink.AsInt64(row[0]); err != nil {
			return nil, fmt.Errorf("course_id: %w", err)
		}
		if refs[i].InstructorID, err = sink.AsInt64(row[1]); err != nil {
			return nil, fmt.Errorf("instructor_id: %w", err)
		}
		minutes, err := sink.AsInt64(row[2])
		if err != nil {
			return nil, fmt.Errorf("duration_minutes: %w", err)
		}
		refs[i].DurationMinutes = int(minutes)
	}
	if err := gen.RequireRefs("courses", len(refs)); err != nil {
		return nil, err
	}
	return refs, nil
}
