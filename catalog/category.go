package catalog

import (
	"learngen/sink"
)

type Category struct {
	ID          int64  `gorm:"column:category_id;primaryKey;autoIncrement" json:"category_id"`
	Name        string `gorm:"column:category_name;size:100;not null" json:"category_name"`
	Slug        string `gorm:"column:category_slug;size:100;uniqueIndex;not null" json:"category_slug"`
	Description string `gorm:"column:description;type:text" json:"description"`
}

func (Category) TableName() string {
	return "course_categories"
}

var CategoryTable = sink.Table{
	Name:            "course_categories",
	Columns:         []string{"category_name", "category_slug", "description"},
	IDColumn:        "category_id",
	ConflictColumns: []string{"category_slug"},
}

func (c Category) Values() []any {
	return []any{c.Name, c.Slug, c.Description}
}

var categories = []Category{
	{Name: "Programming", Slug: "programming", Description: "Programming languages and software development skills"},
	{Name: "Data Science", Slug: "data-science", Description: "Data analysis, machine learning and AI"},
	{Name: "UI/UX Design", Slug: "design", Description: "UI/UX, graphic design and user experience"},
	{Name: "Digital Marketing", Slug: "marketing", Description: "SEO, social media and content marketing"},
	{Name: "Business Management", Slug: "business", Description: "Project management, leadership and strategy"},
	{Name: "Languages", Slug: "languages", Description: "English, Japanese and other language courses"},
	{Name: "Personal Development", Slug: "personal-development", Description: "Time management and communication skills"},
	{Name: "Finance", Slug: "finance", Description: "Investing, accounting and financial analysis"},
	{Name: "Office Skills", Slug: "office-skills", Description: "Excel, PowerPoint and office tooling"},
	{Name: "Photography", Slug: "photography", Description: "Photography technique and video editing"},
	{Name: "Music & Art", Slug: "music-art", Description: "Music production, painting and art"},
	{Name: "Health & Fitness", Slug: "health-fitness", Description: "Yoga, fitness and nutrition"},
	{Name: "Lifestyle", Slug: "lifestyle", Description: "Cooking, gardening and crafts"},
	{Name: "Teaching", Slug: "teaching", Description: "Teaching methods and course design"},
	{Name: "Cybersecurity", Slug: "cybersecurity", Description: "Network security and defensive practice"},
}

// Categories returns the fixed category catalog.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}
