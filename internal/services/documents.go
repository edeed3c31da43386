// documents.go
//
// memebase, a meme management platform backend
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of memebase.
// memebase is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// memebase is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with memebase.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/localnerve/memebase/internal/database"
	"github.com/localnerve/memebase/internal/events"
	"github.com/localnerve/memebase/internal/logging"
	"github.com/localnerve/memebase/internal/models"
	"github.com/localnerve/memebase/internal/query"
	"github.com/localnerve/memebase/internal/types"
	"github.com/localnerve/memebase/internal/utils"
	"gorm.io/gorm"
)

// DocumentDTO is the API shape of a document: the data bag flattened with
// the system fields id, collectionId, slug, createdAt and updatedAt
type DocumentDTO map[string]interface{}

// DocumentList is one page of documents
type DocumentList struct {
	Total     int64         `json:"total"`
	Documents []DocumentDTO `json:"documents"`
}

// DocumentService manages the documents of all collections
type DocumentService struct {
	DB          *gorm.DB
	Collections *CollectionService
	Events      events.Publisher
	// ChunkSize is the default batch chunk size
	ChunkSize int
}

// ToDocumentDTO converts a stored document to its API shape
func ToDocumentDTO(doc *models.Document) DocumentDTO {
	dto := make(DocumentDTO, len(doc.Data)+5)
	for k, v := range doc.Data {
		dto[k] = v
	}
	dto["id"] = doc.ID
	dto["collectionId"] = doc.CollectionID
	if doc.Slug != nil {
		dto["slug"] = *doc.Slug
	}
	dto["createdAt"] = doc.CreatedAt.UTC()
	dto["updatedAt"] = doc.UpdatedAt.UTC()
	return dto
}

// Create validates data against the collection and stores a new document.
// A "slug" key, when present, becomes the document slug.
func (s *DocumentService) Create(ctx context.Context, collection string, data map[string]interface{}) (DocumentDTO, error) {
	coll, err := s.Collections.Get(ctx, collection)
	if err != nil {
		return nil, err
	}

	doc, err := s.create(ctx, coll, data)
	if err != nil {
		return nil, err
	}
	return ToDocumentDTO(doc), nil
}

func (s *DocumentService) create(ctx context.Context, coll *models.CollectionSchema, data map[string]interface{}) (*models.Document, error) {
	slug, err := slugFrom(data)
	if err != nil {
		return nil, err
	}
	bag, err := validateDocumentData(coll, data, false)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:           uuid.NewString(),
		CollectionID: coll.ID,
		Slug:         slug,
		Data:         bag,
	}
	if err := s.DB.WithContext(ctx).Create(doc).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return nil, duplicateSlug(*slug)
		}
		return nil, fmt.Errorf("create document in %s: %w", coll.Slug, err)
	}

	s.publish(ctx, events.TopicDocumentCreated, coll, doc)
	return doc, nil
}

// Get loads one document of a collection
func (s *DocumentService) Get(ctx context.Context, collection, id string) (DocumentDTO, error) {
	coll, err := s.Collections.Get(ctx, collection)
	if err != nil {
		return nil, err
	}
	doc, err := findDocument(s.DB.WithContext(ctx), coll, id)
	if err != nil {
		return nil, err
	}
	return ToDocumentDTO(doc), nil
}

// List returns a filtered, ordered page of a collection
func (s *DocumentService) List(ctx context.Context, collection string, opts query.Options) (*DocumentList, error) {
	coll, err := s.Collections.Get(ctx, collection)
	if err != nil {
		return nil, err
	}

	scope := func() *gorm.DB {
		return opts.ApplySQL(s.DB.WithContext(ctx).Model(&models.Document{}).Where("collection_id = ?", coll.ID))
	}

	if opts.InMemory() {
		var docs []models.Document
		if err := scope().Order(opts.OrderSQL()).Find(&docs).Error; err != nil {
			return nil, fmt.Errorf("list %s: %w", coll.Slug, err)
		}
		all := make([]map[string]interface{}, len(docs))
		for i := range docs {
			all[i] = ToDocumentDTO(&docs[i])
		}
		page, total := opts.Apply(all)
		out := make([]DocumentDTO, len(page))
		for i, d := range page {
			out[i] = d
		}
		return &DocumentList{Total: total, Documents: out}, nil
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count %s: %w", coll.Slug, err)
	}

	var docs []models.Document
	if err := scope().Order(opts.OrderSQL()).Limit(opts.Limit).Offset(opts.Offset).Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", coll.Slug, err)
	}

	out := make([]DocumentDTO, len(docs))
	for i := range docs {
		out[i] = ToDocumentDTO(&docs[i])
	}
	return &DocumentList{Total: total, Documents: out}, nil
}

// Update merges data into an existing document. A "slug" key renames the
// document; an empty slug clears it.
func (s *DocumentService) Update(ctx context.Context, collection, id string, data map[string]interface{}) (DocumentDTO, error) {
	coll, err := s.Collections.Get(ctx, collection)
	if err != nil {
		return nil, err
	}

	patch, err := validateDocumentData(coll, data, true)
	if err != nil {
		return nil, err
	}
	_, slugGiven := data["slug"]
	slug, err := slugFrom(data)
	if err != nil {
		return nil, err
	}

	var doc *models.Document
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		doc, err = findDocument(lockForUpdate(tx), coll, id)
		if err != nil {
			return err
		}

		for k, v := range patch {
			doc.Data[k] = v
		}
		updates := map[string]interface{}{"data": doc.Data}
		if slugGiven {
			doc.Slug = slug
			updates["slug"] = slug
		}
		return tx.Model(doc).Updates(updates).Error
	})
	if err != nil {
		if database.IsDuplicateKey(err) && slug != nil {
			return nil, duplicateSlug(*slug)
		}
		return nil, err
	}

	s.publish(ctx, events.TopicDocumentUpdated, coll, doc)
	return ToDocumentDTO(doc), nil
}

// Delete removes one document
func (s *DocumentService) Delete(ctx context.Context, collection, id string) error {
	coll, err := s.Collections.Get(ctx, collection)
	if err != nil {
		return err
	}
	doc, err := findDocument(s.DB.WithContext(ctx), coll, id)
	if err != nil {
		return err
	}
	if err := s.DB.WithContext(ctx).Delete(doc).Error; err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}

	s.publish(ctx, events.TopicDocumentDeleted, coll, doc)
	return nil
}

// DeleteMany removes the listed documents of a collection and returns how
// many existed
func (s *DocumentService) DeleteMany(ctx context.Context, collection string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, types.BadRequest("ids must not be empty", "document.validation")
	}
	coll, err := s.Collections.Get(ctx, collection)
	if err != nil {
		return 0, err
	}

	var docs []models.Document
	if err := s.DB.WithContext(ctx).Where("collection_id = ? AND id IN ?", coll.ID, ids).Find(&docs).Error; err != nil {
		return 0, fmt.Errorf("find documents to delete: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	result := s.DB.WithContext(ctx).Where("collection_id = ? AND id IN ?", coll.ID, ids).Delete(&models.Document{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete documents: %w", result.Error)
	}

	for i := range docs {
		s.publish(ctx, events.TopicDocumentDeleted, coll, &docs[i])
	}
	return result.RowsAffected, nil
}

func (s *DocumentService) publish(ctx context.Context, topic string, coll *models.CollectionSchema, doc *models.Document) {
	if s.Events == nil {
		return
	}
	evt := events.DocumentEvent{
		Collection: coll.Slug,
		DocumentID: doc.ID,
		Data:       doc.Data,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.Events.Publish(ctx, topic, evt); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("topic", topic).Str("document", doc.ID).Msg("Failed to publish document event")
	}
}

func findDocument(db *gorm.DB, coll *models.CollectionSchema, id string) (*models.Document, error) {
	var doc models.Document
	err := db.Where("collection_id = ? AND id = ?", coll.ID, id).First(&doc).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, types.NotFound(fmt.Sprintf("Document '%s' not found in '%s'", id, coll.Slug))
		}
		return nil, fmt.Errorf("find document %s: %w", id, err)
	}
	if doc.Data == nil {
		doc.Data = models.DataMap{}
	}
	return &doc, nil
}

// slugFrom extracts and checks the optional slug of a document body
func slugFrom(data map[string]interface{}) (*string, error) {
	raw, ok := data["slug"]
	if !ok || raw == nil {
		return nil, nil
	}
	slug, ok := raw.(string)
	if !ok {
		return nil, invalidDocument("slug must be a string")
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, nil
	}
	if !utils.IsSlug(slug) {
		return nil, invalidDocument("slug '%s' must be lowercase letters, digits, '-' or '_'", slug)
	}
	return &slug, nil
}

func duplicateSlug(slug string) error {
	return types.Conflict(fmt.Sprintf("A document with slug '%s' already exists", slug), "document.slug.duplicate")
}
