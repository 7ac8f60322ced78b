package database

import (
	"log"

	"github.com/mkrogh/tidende/internal/models"
	"gorm.io/gorm"
)

// defaultCategories is the editorial vocabulary the synthesis pipeline links
// against. The metadata stage only matches existing names, so the set must
// exist before the first discovery run.
var defaultCategories = []models.Category{
	{Name: "Investering", Slug: "investering", Description: "Investering og kapitalmarkeder"},
	{Name: "Bolig", Slug: "bolig", Description: "Boligmarkedet og ejendomshandler"},
	{Name: "Erhverv", Slug: "erhverv", Description: "Erhvervslivet og virksomheder"},
	{Name: "Økonomi", Slug: "okonomi", Description: "Dansk og international økonomi"},
	{Name: "Nyheder", Slug: "nyheder", Description: "Øvrige nyheder"},
}

// SeedCategories ensures the default category vocabulary exists.
// Idempotent: existing names are left untouched.
func SeedCategories(db *gorm.DB) error {
	for _, c := range defaultCategories {
		category := c
		if err := db.Where("name = ?", category.Name).FirstOrCreate(&category).Error; err != nil {
			return err
		}
	}
	return nil
}

// SeedDevData populates the database with development test data.
// Idempotent: skips if data already exists.
func SeedDevData(db *gorm.DB) error {
	var existing models.Subscriber
	result := db.Where("email = ?", "dev@tidende.local").First(&existing)
	if result.Error == nil {
		log.Println("Seed data already exists, skipping")
		return nil
	}

	if err := SeedCategories(db); err != nil {
		return err
	}

	// Immediate subscriber interested in everything
	allNews := models.Subscriber{
		Email:          "dev@tidende.local",
		Name:           "Dev Subscriber",
		EmailFrequency: models.FrequencyImmediate,
		AllCategories:  true,
	}
	if err := db.Create(&allNews).Error; err != nil {
		return err
	}

	// Weekly subscriber following two categories
	var invest, bolig models.Category
	if err := db.Where("name = ?", "Investering").First(&invest).Error; err != nil {
		return err
	}
	if err := db.Where("name = ?", "Bolig").First(&bolig).Error; err != nil {
		return err
	}

	weekly := models.Subscriber{
		Email:          "weekly@tidende.local",
		Name:           "Weekly Subscriber",
		EmailFrequency: models.FrequencyWeekly,
		AllCategories:  false,
		Categories:     []models.Category{invest, bolig},
	}
	if err := db.Create(&weekly).Error; err != nil {
		return err
	}

	log.Println("Seeded dev data: 5 categories, 2 subscribers")
	return nil
}
