package services

import "github.com/localnerve/memebase/internal/models"

// DefaultCollections are the schemas the platform needs to run: memes and
// the entities they reference
func DefaultCollections() []CollectionInput {
	entity := func(slug, name string) CollectionInput {
		return CollectionInput{
			Name: name,
			Slug: slug,
			Fields: []models.Field{
				{Name: "title_en", Type: models.FieldString, Required: true},
				{Name: "title_vi", Type: models.FieldString},
				{Name: models.KeyUsageCount, Type: models.FieldInteger, Default: float64(0)},
				{Name: models.KeyTrendingScore, Type: models.FieldFloat, Default: float64(0)},
			},
		}
	}

	return []CollectionInput{
		{
			Name: "Memes",
			Slug: models.CollectionMemes,
			Fields: []models.Field{
				{Name: "title_en", Type: models.FieldString, Required: true},
				{Name: "title_vi", Type: models.FieldString},
				{Name: "description_en", Type: models.FieldString},
				{Name: "description_vi", Type: models.FieldString},
				{Name: "type", Type: models.FieldEnum, Required: true, Enum: []string{"image", "gif", "video"}},
				{Name: "tags", Type: models.FieldRelationship, IsArray: true, Relation: models.CollectionTags},
				{Name: "objects", Type: models.FieldRelationship, IsArray: true, Relation: models.CollectionObjects},
				{Name: "moods", Type: models.FieldRelationship, IsArray: true, Relation: models.CollectionMoods},
				{Name: "fileId", Type: models.FieldString},
				{Name: "platform", Type: models.FieldEnum, Enum: []string{"appwrite", "imagekit"}, Default: "appwrite"},
				{Name: models.KeyUsageCount, Type: models.FieldInteger, Default: float64(0)},
				{Name: models.KeyTrendingScore, Type: models.FieldFloat, Default: float64(0)},
			},
		},
		entity(models.CollectionTags, "Tags"),
		entity(models.CollectionObjects, "Objects"),
		entity(models.CollectionMoods, "Moods"),
	}
}
