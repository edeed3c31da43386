// batch.go
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
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/localnerve/memebase/internal/logging"
	"github.com/localnerve/memebase/internal/metrics"
	"github.com/localnerve/memebase/internal/models"
	"github.com/localnerve/memebase/internal/types"
	"golang.org/x/sync/errgroup"
)

const defaultChunkSize = 25

// BatchOptions controls CreateBatch
type BatchOptions struct {
	SkipDuplicateSlugs bool
	ChunkSize          int
}

// BatchFailure is one document of a batch that was not created
type BatchFailure struct {
	Index int    `json:"index"`
	Slug  string `json:"slug,omitempty"`
	Error string `json:"error"`
}

// BatchResult reports the outcome of every document of a batch
type BatchResult struct {
	Successful []DocumentDTO  `json:"successful"`
	Failed     []BatchFailure `json:"failed"`
}

// CreateBatch creates many documents in one call. The input is processed in
// chunks, in order; documents within a chunk are created concurrently. A slug
// that already exists in the collection, or that appears earlier in the same
// batch, is a duplicate: with SkipDuplicateSlugs it is reported as failed,
// otherwise the whole batch is rejected before anything is written.
func (s *DocumentService) CreateBatch(ctx context.Context, collection string, docs []map[string]interface{}, opts BatchOptions) (*BatchResult, error) {
	if len(docs) == 0 {
		return nil, types.BadRequest("documents must not be empty", "document.validation")
	}
	coll, err := s.Collections.Get(ctx, collection)
	if err != nil {
		return nil, err
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = s.ChunkSize
	}
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	duplicates, err := s.duplicateSlugs(ctx, coll, docs)
	if err != nil {
		return nil, err
	}
	if len(duplicates) > 0 && !opts.SkipDuplicateSlugs {
		slugs := make([]string, 0, len(duplicates))
		seen := map[string]struct{}{}
		for _, slug := range duplicates {
			if _, ok := seen[slug]; !ok {
				seen[slug] = struct{}{}
				slugs = append(slugs, slug)
			}
		}
		sort.Strings(slugs)
		return nil, types.Conflict(fmt.Sprintf("Duplicate slugs in batch: %s", strings.Join(slugs, ", ")), "document.slug.duplicate")
	}

	result := &BatchResult{
		Successful: []DocumentDTO{},
		Failed:     []BatchFailure{},
	}
	// one slot per index; goroutines never share a slot
	created := make([]DocumentDTO, len(docs))
	failed := make([]*BatchFailure, len(docs))

	for start := 0; start < len(docs); start += chunkSize {
		end := min(start+chunkSize, len(docs))

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			if slug, dup := duplicates[i]; dup {
				failed[i] = &BatchFailure{
					Index: i,
					Slug:  slug,
					Error: fmt.Sprintf("duplicate slug '%s'", slug),
				}
				continue
			}

			g.Go(func() error {
				doc, err := s.create(gctx, coll, docs[i])
				if err != nil {
					failed[i] = &BatchFailure{
						Index: i,
						Slug:  models.String(docs[i]["slug"]),
						Error: batchErrorMessage(err),
					}
					return nil
				}
				created[i] = ToDocumentDTO(doc)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	for i := range docs {
		if created[i] != nil {
			result.Successful = append(result.Successful, created[i])
		}
		if failed[i] != nil {
			result.Failed = append(result.Failed, *failed[i])
		}
	}

	metrics.RecordBatch(coll.Slug, len(result.Successful), len(result.Failed))
	logging.Ctx(ctx).Info().
		Str("collection", coll.Slug).
		Int("successful", len(result.Successful)).
		Int("failed", len(result.Failed)).
		Msg("Batch create finished")

	return result, nil
}

// duplicateSlugs maps the index of every duplicate document to its slug
func (s *DocumentService) duplicateSlugs(ctx context.Context, coll *models.CollectionSchema, docs []map[string]interface{}) (map[int]string, error) {
	slugs := make([]string, len(docs))
	var all []string
	for i, data := range docs {
		slug, err := slugFrom(data)
		if err != nil || slug == nil {
			continue
		}
		slugs[i] = *slug
		all = append(all, *slug)
	}

	duplicates := map[int]string{}
	if len(all) == 0 {
		return duplicates, nil
	}

	var existing []string
	err := s.DB.WithContext(ctx).
		Model(&models.Document{}).
		Where("collection_id = ? AND slug IN ?", coll.ID, all).
		Pluck("slug", &existing).Error
	if err != nil {
		return nil, fmt.Errorf("check batch slugs: %w", err)
	}

	taken := make(map[string]struct{}, len(existing)+len(all))
	for _, slug := range existing {
		taken[slug] = struct{}{}
	}
	for i, slug := range slugs {
		if slug == "" {
			continue
		}
		if _, ok := taken[slug]; ok {
			duplicates[i] = slug
			continue
		}
		taken[slug] = struct{}{}
	}
	return duplicates, nil
}

func batchErrorMessage(err error) string {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
