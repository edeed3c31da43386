// trending.go
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
	"math"
	"sort"
	"sync"
	"time"

	"github.com/localnerve/memebase/internal/logging"
	"github.com/localnerve/memebase/internal/models"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/hints"
)

// TrendingWindow is how far back recent usage is counted
const TrendingWindow = 24 * time.Hour

// TrendingResult is the outcome for one entity
type TrendingResult struct {
	ID         string  `json:"id"`
	Collection string  `json:"collection"`
	Score      float64 `json:"trendingScore"`
	Success    bool    `json:"success"`
	Error      string  `json:"error,omitempty"`
}

// TrendingSummary reports one trending run
type TrendingSummary struct {
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
	Processed  int              `json:"processed"`
	Failed     int              `json:"failed"`
	Results    []TrendingResult `json:"results"`
}

// TrendingScore rates how much faster an entity is used now than over its
// lifetime. velocity is the usage per hour in the last 24 hours; the spike
// factor divides it by the lifetime average per hour.
func TrendingScore(totalUsages, recentUsages int64, createdAt, now time.Time) float64 {
	hoursAlive := math.Max(1, now.Sub(createdAt).Hours())
	velocity := float64(recentUsages) / TrendingWindow.Hours()
	average := float64(totalUsages) / hoursAlive

	var spike float64
	switch {
	case average > 0:
		spike = velocity / average
	case velocity > 0:
		spike = 1
	}
	return velocity * spike
}

// TrendingService recalculates trendingScore of the tracked collections
type TrendingService struct {
	DB          *gorm.DB
	Collections *CollectionService
	Tracked     []string
	Concurrency int
	now         func() time.Time
}

// NewTrendingService creates a TrendingService for the given collections
func NewTrendingService(db *gorm.DB, collections *CollectionService, tracked []string, concurrency int) *TrendingService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &TrendingService{
		DB:          db,
		Collections: collections,
		Tracked:     tracked,
		Concurrency: concurrency,
		now:         time.Now,
	}
}

// Calculate scores every document of the tracked collections. Errors are
// recorded per document and never abort the run; nothing is rolled back, so
// running again is always safe.
func (s *TrendingService) Calculate(ctx context.Context) (*TrendingSummary, error) {
	now := s.now().UTC()
	summary := &TrendingSummary{StartedAt: now, Results: []TrendingResult{}}
	var mu sync.Mutex
	add := func(r TrendingResult) {
		mu.Lock()
		summary.Results = append(summary.Results, r)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Concurrency)

	for _, slug := range s.Tracked {
		coll, err := s.Collections.Get(ctx, slug)
		if err != nil {
			add(TrendingResult{Collection: slug, Error: err.Error()})
			continue
		}

		var docs []models.Document
		if err := s.DB.WithContext(ctx).Where("collection_id = ?", coll.ID).Find(&docs).Error; err != nil {
			add(TrendingResult{Collection: slug, Error: fmt.Sprintf("load documents: %v", err)})
			continue
		}

		for i := range docs {
			doc := &docs[i]
			g.Go(func() error {
				add(s.scoreDocument(gctx, coll, doc, now))
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(summary.Results, func(a, b int) bool {
		ra, rb := summary.Results[a], summary.Results[b]
		if ra.Collection != rb.Collection {
			return ra.Collection < rb.Collection
		}
		return ra.ID < rb.ID
	})
	for _, r := range summary.Results {
		if r.Success {
			summary.Processed++
		} else {
			summary.Failed++
		}
	}
	summary.FinishedAt = s.now().UTC()

	logging.Ctx(ctx).Info().
		Int("processed", summary.Processed).
		Int("failed", summary.Failed).
		Dur("took", summary.FinishedAt.Sub(summary.StartedAt)).
		Msg("Trending scores calculated")

	return summary, nil
}

func (s *TrendingService) scoreDocument(ctx context.Context, coll *models.CollectionSchema, doc *models.Document, now time.Time) TrendingResult {
	result := TrendingResult{ID: doc.ID, Collection: coll.Slug}

	recent, err := s.recentUsage(ctx, doc.ID, now.Add(-TrendingWindow))
	if err != nil {
		result.Error = err.Error()
		return result
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := findDocument(lockForUpdate(tx), coll, doc.ID)
		if err != nil {
			return err
		}
		result.Score = TrendingScore(models.Int64(current.Data[models.KeyUsageCount]), recent, current.CreatedAt, now)
		current.Data[models.KeyTrendingScore] = result.Score
		return tx.Model(current).UpdateColumn("data", current.Data).Error
	})
	if err != nil {
		result.Score = 0
		result.Error = batchErrorMessage(err)
		return result
	}

	result.Success = true
	return result
}

// recentUsage counts the usage records of an entity since the given time
func (s *TrendingService) recentUsage(ctx context.Context, entityID string, since time.Time) (int64, error) {
	db := s.DB.WithContext(ctx).Model(&models.UsageRecord{})
	if db.Dialector.Name() == "mysql" {
		db = db.Clauses(hints.UseIndex("idx_usage_entity_created"))
	}
	var count int64
	if err := db.Where("entity_id = ? AND created_at >= ?", entityID, since).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count recent usage of %s: %w", entityID, err)
	}
	return count, nil
}
