// usage.go
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
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/localnerve/memebase/internal/logging"
	"github.com/localnerve/memebase/internal/metrics"
	"github.com/localnerve/memebase/internal/models"
	"github.com/localnerve/memebase/internal/types"
	"gorm.io/gorm"
)

// Usage event types
const (
	EventView        = "view"
	EventDownload    = "download"
	EventShare       = "share"
	EventCopy        = "copy"
	EventMemeCreated = "meme_created"
)

var usageEvents = []string{EventView, EventDownload, EventShare, EventCopy, EventMemeCreated}

// UsageInput is the body of a usage request
type UsageInput struct {
	EventType string `json:"eventType" validate:"required,oneof=view download share copy meme_created"`
}

// EntityUsage is the outcome of one counter increment
type EntityUsage struct {
	ID         string `json:"id"`
	Collection string `json:"collection"`
	UsageCount int64  `json:"usageCount,omitempty"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// UsageResult reports every counter touched by one usage event
type UsageResult struct {
	MemeID    string        `json:"memeId"`
	EventType string        `json:"eventType"`
	Entities  []EntityUsage `json:"entities"`
}

// UsageService records usage events and keeps usageCount current
type UsageService struct {
	DB          *gorm.DB
	Collections *CollectionService
	now         func() time.Time
}

// NewUsageService creates a UsageService
func NewUsageService(db *gorm.DB, collections *CollectionService) *UsageService {
	return &UsageService{DB: db, Collections: collections, now: time.Now}
}

// RecordUsage stores a usage record for the meme and for every tag, object
// and mood it references, and increments their usageCount. Failures of
// single entities are reported in the result; only a missing meme fails
// the call.
func (s *UsageService) RecordUsage(ctx context.Context, memeID, eventType, userID string) (*UsageResult, error) {
	if !slices.Contains(usageEvents, eventType) {
		return nil, types.BadRequest(fmt.Sprintf("unknown usage event '%s'", eventType), "usage.validation")
	}
	return s.record(ctx, memeID, eventType, userID, true)
}

// RecordMemeCreated counts a new meme against every entity it references.
// The meme itself is not counted.
func (s *UsageService) RecordMemeCreated(ctx context.Context, memeID string) (*UsageResult, error) {
	return s.record(ctx, memeID, EventMemeCreated, "", false)
}

func (s *UsageService) record(ctx context.Context, memeID, eventType, userID string, includeMeme bool) (*UsageResult, error) {
	memes, err := s.Collections.Get(ctx, models.CollectionMemes)
	if err != nil {
		return nil, err
	}
	doc, err := findDocument(s.DB.WithContext(ctx), memes, memeID)
	if err != nil {
		return nil, err
	}
	meme := models.MemeFromDocument(doc)

	result := &UsageResult{MemeID: meme.ID, EventType: eventType, Entities: []EntityUsage{}}

	if includeMeme {
		result.Entities = append(result.Entities, s.increment(ctx, memes, meme.ID, meme.ID, eventType, userID))
	}

	refs := meme.EntityRefs()
	for _, slug := range []string{models.CollectionTags, models.CollectionObjects, models.CollectionMoods} {
		ids := refs[slug]
		if len(ids) == 0 {
			continue
		}
		coll, err := s.Collections.Get(ctx, slug)
		if err != nil {
			for _, id := range ids {
				result.Entities = append(result.Entities, EntityUsage{ID: id, Collection: slug, Error: err.Error()})
			}
			continue
		}
		for _, id := range ids {
			result.Entities = append(result.Entities, s.increment(ctx, coll, id, meme.ID, eventType, userID))
		}
	}

	failed := 0
	for _, e := range result.Entities {
		if !e.Success {
			failed++
		}
	}
	logger := logging.Ctx(ctx)
	event := logger.Info()
	if failed > 0 {
		event = logger.Warn()
	}
	event.Str("meme", meme.ID).
		Str("event", eventType).
		Int("entities", len(result.Entities)).
		Int("failed", failed).
		Msg("Usage recorded")

	return result, nil
}

// increment writes one usage record and bumps usageCount in one transaction
func (s *UsageService) increment(ctx context.Context, coll *models.CollectionSchema, entityID, memeID, eventType, userID string) EntityUsage {
	out := EntityUsage{ID: entityID, Collection: coll.Slug}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := findDocument(lockForUpdate(tx), coll, entityID)
		if err != nil {
			return err
		}

		rec := &models.UsageRecord{
			ID:        uuid.NewString(),
			EntityID:  entityID,
			MemeID:    memeID,
			EventType: eventType,
			UserID:    userID,
			CreatedAt: s.now().UTC(),
		}
		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("store usage record: %w", err)
		}

		out.UsageCount = models.Int64(doc.Data[models.KeyUsageCount]) + 1
		doc.Data[models.KeyUsageCount] = float64(out.UsageCount)
		// UpdateColumn keeps updated_at, counters are not content edits
		return tx.Model(doc).UpdateColumn("data", doc.Data).Error
	})
	metrics.RecordUsageIncrement(coll.Slug, err)
	if err != nil {
		out.UsageCount = 0
		out.Error = batchErrorMessage(err)
		return out
	}

	out.Success = true
	return out
}
