// Package schema creates the relational tables and seeds the plan catalog.
package schema

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"learngen/account"
	"learngen/billing"
	"learngen/catalog"
	"learngen/learning"
)

// Models in dependency order.
func Models() []any {
	return []any{
		&catalog.Category{},
		&catalog.Instructor{},
		&catalog.Course{},
		&account.User{},
		&billing.Plan{},
		&billing.Subscription{},
		&billing.Payment{},
		&learning.Enrollment{},
	}
}

func Open(dialect, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch dialect {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("no migrations for %q stores", dialect)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	return db, nil
}

// Migrate creates or updates the tables and their unique indexes, then seeds
// the plan catalog. Existing plans are left untouched.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	plans := billing.DefaultPlans()
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&plans).Error; err != nil {
		return fmt.Errorf("seed subscription plans: %w", err)
	}
	log.WithField("plans", len(plans)).Info("Migrated schema")
	return nil
}
