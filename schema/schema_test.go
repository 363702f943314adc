package schema

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"learngen/account"
	"learngen/billing"
	"learngen/catalog"
	"learngen/learning"
)

func TestMigrateIsRepeatable(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "learngen.db")), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	var plans []billing.Plan
	require.NoError(t, db.Order("plan_id").Find(&plans).Error)
	require.Len(t, plans, 3)
	assert.Equal(t, "basic", plans[0].PlanType)
	assert.Equal(t, 999.99, plans[2].PriceAnnual)

	for _, model := range Models() {
		assert.True(t, db.Migrator().HasTable(model))
	}
	assert.True(t, db.Migrator().HasIndex(&learning.Enrollment{}, "idx_enrollment_user_course"))
}

func TestUniqueIndexes(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "learngen.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	require.NoError(t, db.Create(&catalog.Category{Name: "Programming", Slug: "programming"}).Error)
	assert.Error(t, db.Create(&catalog.Category{Name: "Coding", Slug: "programming"}).Error)

	require.NoError(t, db.Create(&account.User{Email: "a@x", Username: "a"}).Error)
	assert.Error(t, db.Create(&account.User{Email: "a@x", Username: "b"}).Error)
}

func TestOpenRejectsUnknownDialect(t *testing.T) {
	_, err := Open("oracle", "")
	assert.Error(t, err)
}
