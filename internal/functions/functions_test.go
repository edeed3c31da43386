package functions

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/localnerve/memebase/internal/events"
	"github.com/localnerve/memebase/internal/models"
	"github.com/localnerve/memebase/internal/services"
	"github.com/localnerve/memebase/internal/testutil"
	"github.com/localnerve/memebase/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCalculator struct {
	calls   atomic.Int32
	release chan struct{}
}

func (f *fakeCalculator) Calculate(ctx context.Context) (*services.TrendingSummary, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &services.TrendingSummary{Processed: 1}, nil
}

func TestTriggerRejectsOverlappingRuns(t *testing.T) {
	calc := &fakeCalculator{release: make(chan struct{})}
	scheduler := NewTrendingScheduler(calc, time.Hour, false)

	done := make(chan error, 1)
	go func() {
		_, err := scheduler.Trigger(context.Background())
		done <- err
	}()
	require.Eventually(t, scheduler.Running, time.Second, 5*time.Millisecond)

	_, err := scheduler.Trigger(context.Background())
	se, ok := types.AsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, se.HTTPStatus())

	close(calc.release)
	require.NoError(t, <-done)
	assert.False(t, scheduler.Running())

	summary, err := scheduler.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
}

func TestSchedulerRunsOnStartAndStops(t *testing.T) {
	calc := &fakeCalculator{}
	scheduler := NewTrendingScheduler(calc, 20*time.Millisecond, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scheduler.Run(ctx) }()

	require.Eventually(t, func() bool { return calc.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

type fakeRecorder struct {
	ids []string
}

func (f *fakeRecorder) RecordMemeCreated(_ context.Context, memeID string) (*services.UsageResult, error) {
	f.ids = append(f.ids, memeID)
	return &services.UsageResult{MemeID: memeID}, nil
}

func TestMemeCreatedHandlerIgnoresOtherCollections(t *testing.T) {
	rec := &fakeRecorder{}
	handler := MemeCreatedHandler(rec)

	require.NoError(t, handler(context.Background(), events.DocumentEvent{Collection: models.CollectionTags, DocumentID: "t1"}))
	require.NoError(t, handler(context.Background(), events.DocumentEvent{Collection: models.CollectionMemes, DocumentID: "m1"}))
	assert.Equal(t, []string{"m1"}, rec.ids)
}

func TestMemeCreatedThroughBus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	collections := &services.CollectionService{DB: db}
	require.NoError(t, collections.EnsureCollections(ctx, services.DefaultCollections()))

	bus, err := events.NewBus()
	require.NoError(t, err)
	Register(bus, services.NewUsageService(db, collections))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = bus.Run(runCtx) }()
	<-bus.Running()
	t.Cleanup(func() { _ = bus.Close() })

	documents := &services.DocumentService{DB: db, Collections: collections, Events: bus}
	tag, err := documents.Create(ctx, models.CollectionTags, map[string]interface{}{"title_en": "Cat"})
	require.NoError(t, err)
	_, err = documents.Create(ctx, models.CollectionMemes, map[string]interface{}{
		"title_en": "Grumpy",
		"type":     "gif",
		"tags":     []interface{}{tag["id"]},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		doc, err := documents.Get(ctx, models.CollectionTags, tag["id"].(string))
		return err == nil && models.Int64(doc[models.KeyUsageCount]) == 1
	}, 5*time.Second, 20*time.Millisecond)
}
