package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/localnerve/memebase/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestMeme(t *testing.T, stack *testStack) (meme, tag, mood string) {
	t.Helper()
	ctx := context.Background()

	tagDoc, err := stack.documents.Create(ctx, models.CollectionTags, map[string]interface{}{"title_en": "Cat"})
	require.NoError(t, err)
	moodDoc, err := stack.documents.Create(ctx, models.CollectionMoods, map[string]interface{}{"title_en": "Happy", models.KeyUsageCount: 4})
	require.NoError(t, err)

	memeDoc, err := stack.documents.Create(ctx, models.CollectionMemes, map[string]interface{}{
		"title_en": "Grumpy",
		"type":     "image",
		"tags":     []interface{}{tagDoc["id"]},
		"moods":    []interface{}{moodDoc["id"]},
		"objects":  []interface{}{"does-not-exist"},
	})
	require.NoError(t, err)

	return memeDoc["id"].(string), tagDoc["id"].(string), moodDoc["id"].(string)
}

func usageCount(t *testing.T, stack *testStack, collection, id string) int64 {
	t.Helper()
	doc, err := stack.documents.Get(context.Background(), collection, id)
	require.NoError(t, err)
	return models.Int64(doc[models.KeyUsageCount])
}

func TestRecordUsage(t *testing.T) {
	stack := newTestStack(t)
	usage := NewUsageService(stack.db, stack.collections)
	memeID, tagID, moodID := createTestMeme(t, stack)
	ctx := context.Background()

	result, err := usage.RecordUsage(ctx, memeID, EventView, "user-1")
	require.NoError(t, err)
	require.Len(t, result.Entities, 4)

	byID := map[string]EntityUsage{}
	for _, e := range result.Entities {
		byID[e.ID] = e
	}
	assert.True(t, byID[memeID].Success)
	assert.True(t, byID[tagID].Success)
	assert.Equal(t, int64(5), byID[moodID].UsageCount)
	assert.False(t, byID["does-not-exist"].Success, "a missing entity is reported, not fatal")
	assert.NotEmpty(t, byID["does-not-exist"].Error)

	assert.Equal(t, int64(1), usageCount(t, stack, models.CollectionMemes, memeID))
	assert.Equal(t, int64(1), usageCount(t, stack, models.CollectionTags, tagID))
	assert.Equal(t, int64(5), usageCount(t, stack, models.CollectionMoods, moodID))

	var records int64
	require.NoError(t, stack.db.Model(&models.UsageRecord{}).Where("meme_id = ?", memeID).Count(&records).Error)
	assert.Equal(t, int64(3), records)
}

func TestRecordUsageErrors(t *testing.T) {
	stack := newTestStack(t)
	usage := NewUsageService(stack.db, stack.collections)
	memeID, _, _ := createTestMeme(t, stack)
	ctx := context.Background()

	_, err := usage.RecordUsage(ctx, memeID, "like", "")
	requireStatus(t, err, http.StatusBadRequest)

	_, err = usage.RecordUsage(ctx, "missing", EventView, "")
	requireStatus(t, err, http.StatusNotFound)
}

func TestRecordMemeCreated(t *testing.T) {
	stack := newTestStack(t)
	usage := NewUsageService(stack.db, stack.collections)
	memeID, tagID, _ := createTestMeme(t, stack)

	result, err := usage.RecordMemeCreated(context.Background(), memeID)
	require.NoError(t, err)
	assert.Equal(t, EventMemeCreated, result.EventType)
	for _, e := range result.Entities {
		assert.NotEqual(t, memeID, e.ID, "the meme itself is not counted")
	}

	assert.Equal(t, int64(1), usageCount(t, stack, models.CollectionTags, tagID))
	assert.Equal(t, int64(0), usageCount(t, stack, models.CollectionMemes, memeID))
}
