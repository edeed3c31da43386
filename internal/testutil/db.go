// Package testutil holds helpers shared by the package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/localnerve/memebase/internal/database"
	"github.com/localnerve/memebase/internal/models"
	"gorm.io/gorm"
)

// SetupTestDB creates a migrated in-memory SQLite database
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(sqlite.Open(":memory:"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	// every connection to :memory: is a separate database
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get test database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// CreateTestCollection creates a collection schema directly via GORM
func CreateTestCollection(t *testing.T, db *gorm.DB, slug string, fields ...models.Field) *models.CollectionSchema {
	t.Helper()

	coll := &models.CollectionSchema{
		ID:     uuid.NewString(),
		Name:   slug,
		Slug:   slug,
		Fields: fields,
	}
	if err := db.Create(coll).Error; err != nil {
		t.Fatalf("Failed to create collection %s: %v", slug, err)
	}
	return coll
}

// CreateTestDocument creates a document directly via GORM.
// A zero createdAt keeps the database default.
func CreateTestDocument(t *testing.T, db *gorm.DB, coll *models.CollectionSchema, slug string, data map[string]interface{}, createdAt time.Time) *models.Document {
	t.Helper()

	doc := &models.Document{
		ID:           uuid.NewString(),
		CollectionID: coll.ID,
		Data:         data,
		CreatedAt:    createdAt,
	}
	if slug != "" {
		doc.Slug = &slug
	}
	if err := db.Create(doc).Error; err != nil {
		t.Fatalf("Failed to create document: %v", err)
	}
	return doc
}

// CreateTestUsage inserts a usage record at the given time
func CreateTestUsage(t *testing.T, db *gorm.DB, entityID string, at time.Time) {
	t.Helper()

	rec := &models.UsageRecord{
		ID:        uuid.NewString(),
		EntityID:  entityID,
		EventType: "view",
		CreatedAt: at,
	}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("Failed to create usage record: %v", err)
	}
}
