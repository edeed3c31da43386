package services

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/localnerve/memebase/internal/events"
	"github.com/localnerve/memebase/internal/models"
	"github.com/localnerve/memebase/internal/query"
	"github.com/localnerve/memebase/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ events.DocumentEvent) error {
	p.topics = append(p.topics, topic)
	return nil
}

func TestDocumentCreateAndGet(t *testing.T) {
	stack := newTestStack(t)
	pub := &recordingPublisher{}
	stack.documents.Events = pub
	ctx := context.Background()

	dto, err := stack.documents.Create(ctx, models.CollectionTags, map[string]interface{}{
		"slug":     "funny",
		"title_en": "Funny",
	})
	require.NoError(t, err)
	assert.Equal(t, "funny", dto["slug"])
	assert.Equal(t, "Funny", dto["title_en"])
	assert.Equal(t, float64(0), dto[models.KeyUsageCount], "defaults are filled")
	assert.NotEmpty(t, dto["id"])

	got, err := stack.documents.Get(ctx, models.CollectionTags, dto["id"].(string))
	require.NoError(t, err)
	assert.Equal(t, "Funny", got["title_en"])
	assert.Equal(t, []string{events.TopicDocumentCreated}, pub.topics)
}

func TestDocumentCreateValidation(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	tests := []struct {
		name string
		data map[string]interface{}
	}{
		{name: "missing required", data: map[string]interface{}{"title_vi": "Vui"}},
		{name: "unknown field", data: map[string]interface{}{"title_en": "Cat", "colour": "red"}},
		{name: "wrong type", data: map[string]interface{}{"title_en": 42}},
		{name: "bad slug", data: map[string]interface{}{"title_en": "Cat", "slug": "Not A Slug"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := stack.documents.Create(ctx, models.CollectionTags, tt.data)
			requireStatus(t, err, http.StatusBadRequest)
		})
	}

	_, err := stack.documents.Create(ctx, models.CollectionMemes, map[string]interface{}{
		"title_en": "Meme",
		"type":     "audio",
	})
	requireStatus(t, err, http.StatusBadRequest)
}

func TestDocumentCreateDuplicateSlug(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	_, err := stack.documents.Create(ctx, models.CollectionTags, map[string]interface{}{"slug": "cat", "title_en": "Cat"})
	require.NoError(t, err)

	_, err = stack.documents.Create(ctx, models.CollectionTags, map[string]interface{}{"slug": "cat", "title_en": "Cat again"})
	requireStatus(t, err, http.StatusConflict)

	// slugs are unique per collection only
	_, err = stack.documents.Create(ctx, models.CollectionMoods, map[string]interface{}{"slug": "cat", "title_en": "Cat mood"})
	require.NoError(t, err)
}

func TestDocumentList(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	for _, title := range []string{"Alpha", "Beta", "Gamma"} {
		_, err := stack.documents.Create(ctx, models.CollectionTags, map[string]interface{}{"title_en": title})
		require.NoError(t, err)
	}

	opts, err := query.Parse(nil, 2, 0, "", "", "")
	require.NoError(t, err)
	list, err := stack.documents.List(ctx, models.CollectionTags, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(3), list.Total)
	assert.Len(t, list.Documents, 2)

	opts, err = query.Parse([]string{"title_en,startsWith,G"}, 0, 0, "title_en", "asc", "")
	require.NoError(t, err)
	list, err = stack.documents.List(ctx, models.CollectionTags, opts)
	require.NoError(t, err)
	require.Equal(t, int64(1), list.Total)
	assert.Equal(t, "Gamma", list.Documents[0]["title_en"])

	_, err = stack.documents.List(ctx, "nope", opts)
	requireStatus(t, err, http.StatusNotFound)
}

func TestDocumentUpdate(t *testing.T) {
	stack := newTestStack(t)
	pub := &recordingPublisher{}
	stack.documents.Events = pub
	ctx := context.Background()

	dto, err := stack.documents.Create(ctx, models.CollectionTags, map[string]interface{}{"title_en": "Cat", "title_vi": "Meo"})
	require.NoError(t, err)
	id := dto["id"].(string)

	updated, err := stack.documents.Update(ctx, models.CollectionTags, id, map[string]interface{}{"title_en": "Cats", "slug": "cats"})
	require.NoError(t, err)
	assert.Equal(t, "Cats", updated["title_en"])
	assert.Equal(t, "Meo", updated["title_vi"], "untouched keys survive a partial update")
	assert.Equal(t, "cats", updated["slug"])

	_, err = stack.documents.Update(ctx, models.CollectionTags, id, map[string]interface{}{"title_en": nil})
	requireStatus(t, err, http.StatusBadRequest)

	_, err = stack.documents.Update(ctx, models.CollectionTags, "missing", map[string]interface{}{"title_en": "x"})
	requireStatus(t, err, http.StatusNotFound)

	assert.Equal(t, []string{events.TopicDocumentCreated, events.TopicDocumentUpdated}, pub.topics)
}

func TestDocumentDelete(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	var ids []string
	for _, title := range []string{"A", "B", "C"} {
		dto, err := stack.documents.Create(ctx, models.CollectionTags, map[string]interface{}{"title_en": title})
		require.NoError(t, err)
		ids = append(ids, dto["id"].(string))
	}

	require.NoError(t, stack.documents.Delete(ctx, models.CollectionTags, ids[0]))
	requireStatus(t, stack.documents.Delete(ctx, models.CollectionTags, ids[0]), http.StatusNotFound)

	removed, err := stack.documents.DeleteMany(ctx, models.CollectionTags, []string{ids[1], ids[2], "unknown"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	_, err = stack.documents.DeleteMany(ctx, models.CollectionTags, nil)
	requireStatus(t, err, http.StatusBadRequest)
}

func TestCreateBatchSkipsDuplicateSlugs(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	_, err := stack.documents.Create(ctx, models.CollectionTags, map[string]interface{}{"slug": "cat", "title_en": "Cat"})
	require.NoError(t, err)

	batch := []map[string]interface{}{
		{"slug": "dog", "title_en": "Dog"},
		{"slug": "cat", "title_en": "Cat"}, // exists already
		{"slug": "dog", "title_en": "Dog"}, // earlier in the batch, other chunk
		{"slug": "bird", "title_en": "Bird"},
		{"slug": "fish"}, // missing title
	}

	result, err := stack.documents.CreateBatch(ctx, models.CollectionTags, batch, BatchOptions{SkipDuplicateSlugs: true})
	require.NoError(t, err)

	var created []string
	for _, dto := range result.Successful {
		created = append(created, dto["slug"].(string))
	}
	assert.Equal(t, []string{"dog", "bird"}, created)

	require.Len(t, result.Failed, 3)
	assert.Equal(t, 1, result.Failed[0].Index)
	assert.Equal(t, "cat", result.Failed[0].Slug)
	assert.Equal(t, 2, result.Failed[1].Index)
	assert.Equal(t, "dog", result.Failed[1].Slug)
	assert.Equal(t, 4, result.Failed[2].Index)
	assert.Contains(t, result.Failed[2].Error, "title_en")

	list, err := stack.documents.List(ctx, models.CollectionTags, query.Options{Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(3), list.Total)
}

func TestCreateBatchMixedFailuresInOneChunk(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	// even indexes fail validation, odd indexes repeat the slug before them
	batch := make([]map[string]interface{}, 0, 80)
	for n := 0; n < 40; n++ {
		slug := fmt.Sprintf("s%d", n)
		batch = append(batch,
			map[string]interface{}{"slug": slug},
			map[string]interface{}{"slug": slug, "title_en": "Title"},
		)
	}

	result, err := stack.documents.CreateBatch(ctx, models.CollectionTags, batch, BatchOptions{SkipDuplicateSlugs: true, ChunkSize: 80})
	require.NoError(t, err)
	assert.Empty(t, result.Successful)

	require.Len(t, result.Failed, 80)
	for i, failure := range result.Failed {
		assert.Equal(t, i, failure.Index)
		assert.Equal(t, fmt.Sprintf("s%d", i/2), failure.Slug)
		if i%2 == 1 {
			assert.Contains(t, failure.Error, "duplicate slug")
		} else {
			assert.Contains(t, failure.Error, "title_en")
		}
	}
}

func TestCreateBatchRejectsDuplicateSlugs(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	batch := []map[string]interface{}{
		{"slug": "dog", "title_en": "Dog"},
		{"slug": "dog", "title_en": "Dog"},
	}
	_, err := stack.documents.CreateBatch(ctx, models.CollectionTags, batch, BatchOptions{})
	requireStatus(t, err, http.StatusConflict)
	assert.Contains(t, err.Error(), "dog")

	list, err := stack.documents.List(ctx, models.CollectionTags, query.Options{Limit: 100})
	require.NoError(t, err)
	assert.Zero(t, list.Total, "nothing is written when the batch is rejected")
}

func TestIncreaseOverTime(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	coll := stack.collection(t, models.CollectionTags)

	today := periodStart(time.Now().UTC(), DurationDay)
	for _, at := range []time.Time{
		today.AddDate(0, 0, -10),
		today.AddDate(0, 0, -2).Add(time.Minute),
		today.AddDate(0, 0, -1).Add(time.Minute),
		today.Add(time.Minute),
		today.Add(2 * time.Minute),
	} {
		testutil.CreateTestDocument(t, stack.db, coll, "", map[string]interface{}{"title_en": "tag"}, at)
	}

	periods, err := stack.documents.IncreaseOverTime(ctx, models.CollectionTags, DurationDay, 3)
	require.NoError(t, err)
	require.Len(t, periods, 3)

	assert.Equal(t, today.AddDate(0, 0, -2).Format("2006-01-02"), periods[0].Period)
	assert.Equal(t, today.Format("2006-01-02"), periods[2].Period)
	for i := 1; i < len(periods); i++ {
		assert.True(t, periods[i-1].Start.Before(periods[i].Start), "periods are chronological")
		assert.Equal(t, periods[i-1].End, periods[i].Start)
	}

	assert.Equal(t, []int64{1, 1, 2}, []int64{periods[0].Count, periods[1].Count, periods[2].Count})
	assert.Equal(t, []int64{2, 3, 5}, []int64{periods[0].Total, periods[1].Total, periods[2].Total})
}

func TestIncreaseOverTimeArguments(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	periods, err := stack.documents.IncreaseOverTime(ctx, models.CollectionTags, "", 0)
	require.NoError(t, err)
	assert.Len(t, periods, DefaultPeriods)

	_, err = stack.documents.IncreaseOverTime(ctx, models.CollectionTags, "decade", 3)
	requireStatus(t, err, http.StatusBadRequest)

	_, err = stack.documents.IncreaseOverTime(ctx, models.CollectionTags, DurationDay, MaxPeriods+1)
	requireStatus(t, err, http.StatusBadRequest)
}

func TestBuildPeriods(t *testing.T) {
	now := time.Date(2024, time.March, 6, 15, 0, 0, 0, time.UTC) // a Wednesday

	weeks := buildPeriods(now, DurationWeek, 2)
	assert.Equal(t, "2024-W09", weeks[0].Period)
	assert.Equal(t, "2024-W10", weeks[1].Period)
	assert.Equal(t, time.Monday, weeks[1].Start.Weekday())

	months := buildPeriods(now, DurationMonth, 3)
	assert.Equal(t, []string{"2024-01", "2024-02", "2024-03"}, []string{months[0].Period, months[1].Period, months[2].Period})

	years := buildPeriods(now, DurationYear, 2)
	assert.Equal(t, "2023", years[0].Period)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), years[1].End)
}
