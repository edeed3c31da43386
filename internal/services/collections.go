package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/localnerve/memebase/internal/database"
	"github.com/localnerve/memebase/internal/logging"
	"github.com/localnerve/memebase/internal/models"
	"github.com/localnerve/memebase/internal/types"
	"github.com/localnerve/memebase/internal/utils"
	"gorm.io/gorm"
)

// CollectionInput is the body for creating a collection
type CollectionInput struct {
	Name   string         `json:"name" validate:"required,max=255"`
	Slug   string         `json:"slug" validate:"required,slug"`
	Fields []models.Field `json:"fields" validate:"dive"`
}

// CollectionUpdateInput is the body for updating a collection.
// Fields, when given, replaces the whole field list.
type CollectionUpdateInput struct {
	Name   *string         `json:"name" validate:"omitempty,max=255"`
	Fields *[]models.Field `json:"fields" validate:"omitempty,dive"`
}

// CollectionService manages collection schemas
type CollectionService struct {
	DB *gorm.DB
}

// Create stores a new collection schema
func (s *CollectionService) Create(ctx context.Context, in CollectionInput) (*models.CollectionSchema, error) {
	if err := utils.ValidateStruct(in, "collection.validation"); err != nil {
		return nil, err
	}
	if err := checkFields(in.Fields); err != nil {
		return nil, err
	}

	coll := &models.CollectionSchema{
		ID:     uuid.NewString(),
		Name:   in.Name,
		Slug:   in.Slug,
		Fields: in.Fields,
	}
	if err := s.DB.WithContext(ctx).Create(coll).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return nil, types.Conflict(fmt.Sprintf("Collection '%s' already exists", in.Slug), "collection.duplicate")
		}
		return nil, fmt.Errorf("create collection %s: %w", in.Slug, err)
	}

	logging.Ctx(ctx).Info().Str("collection", coll.Slug).Int("fields", len(coll.Fields)).Msg("Collection created")
	return coll, nil
}

// List returns all collections ordered by name
func (s *CollectionService) List(ctx context.Context) ([]models.CollectionSchema, error) {
	var colls []models.CollectionSchema
	if err := s.DB.WithContext(ctx).Order("name ASC").Find(&colls).Error; err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return colls, nil
}

// Get loads a collection by slug or id
func (s *CollectionService) Get(ctx context.Context, slugOrID string) (*models.CollectionSchema, error) {
	return findCollection(s.DB.WithContext(ctx), slugOrID)
}

// Update renames a collection and/or replaces its fields.
// Existing documents are not rewritten.
func (s *CollectionService) Update(ctx context.Context, slugOrID string, in CollectionUpdateInput) (*models.CollectionSchema, error) {
	if err := utils.ValidateStruct(in, "collection.validation"); err != nil {
		return nil, err
	}

	coll, err := s.Get(ctx, slugOrID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		if *in.Name == "" {
			return nil, types.BadRequest("name must not be empty", "collection.validation")
		}
		coll.Name = *in.Name
		updates["name"] = coll.Name
	}
	if in.Fields != nil {
		if err := checkFields(*in.Fields); err != nil {
			return nil, err
		}
		coll.Fields = *in.Fields
		updates["fields"] = coll.Fields
	}
	if len(updates) == 0 {
		return coll, nil
	}

	if err := s.DB.WithContext(ctx).Model(coll).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update collection %s: %w", coll.Slug, err)
	}
	return coll, nil
}

// Delete removes a collection and all of its documents.
// It returns the number of documents removed.
func (s *CollectionService) Delete(ctx context.Context, slugOrID string) (int64, error) {
	coll, err := s.Get(ctx, slugOrID)
	if err != nil {
		return 0, err
	}

	var removed int64
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("collection_id = ?", coll.ID).Delete(&models.Document{})
		if result.Error != nil {
			return result.Error
		}
		removed = result.RowsAffected
		return tx.Delete(coll).Error
	})
	if err != nil {
		return 0, fmt.Errorf("delete collection %s: %w", coll.Slug, err)
	}

	logging.Ctx(ctx).Info().Str("collection", coll.Slug).Int64("documents", removed).Msg("Collection deleted")
	return removed, nil
}

// EnsureCollections creates any of the given schemas that do not exist yet
func (s *CollectionService) EnsureCollections(ctx context.Context, inputs []CollectionInput) error {
	for _, in := range inputs {
		var count int64
		if err := s.DB.WithContext(ctx).Model(&models.CollectionSchema{}).Where("slug = ?", in.Slug).Count(&count).Error; err != nil {
			return fmt.Errorf("check collection %s: %w", in.Slug, err)
		}
		if count > 0 {
			continue
		}
		if _, err := s.Create(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

func findCollection(db *gorm.DB, slugOrID string) (*models.CollectionSchema, error) {
	var coll models.CollectionSchema
	err := db.Where("slug = ? OR id = ?", slugOrID, slugOrID).First(&coll).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, types.NotFound(fmt.Sprintf("Collection '%s' not found", slugOrID))
		}
		return nil, fmt.Errorf("find collection %s: %w", slugOrID, err)
	}
	return &coll, nil
}

// checkFields enforces what struct tags cannot: unique names, a reserved
// "slug" key, and defaults that satisfy their own field
func checkFields(fields []models.Field) error {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, dup := seen[f.Name]; dup {
			return types.BadRequest(fmt.Sprintf("field '%s' is defined twice", f.Name), "collection.validation")
		}
		seen[f.Name] = struct{}{}

		if _, reserved := systemKeys[f.Name]; reserved {
			return types.BadRequest(fmt.Sprintf("field name '%s' is reserved", f.Name), "collection.validation")
		}
		if f.Default != nil {
			if err := checkValue(f, f.Default); err != nil {
				return types.BadRequest(fmt.Sprintf("default of field '%s': %v", f.Name, err), "collection.validation")
			}
		}
	}
	return nil
}
