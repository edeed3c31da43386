package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversDocumentEvents(t *testing.T) {
	bus, err := NewBus()
	require.NoError(t, err)

	received := make(chan DocumentEvent, 1)
	bus.Handle("test-created", TopicDocumentCreated, func(_ context.Context, evt DocumentEvent) error {
		received <- evt
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = bus.Run(ctx)
	}()

	select {
	case <-bus.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}

	err = bus.Publish(context.Background(), TopicDocumentCreated, DocumentEvent{
		Collection: "memes",
		DocumentID: "m1",
		Data:       map[string]interface{}{"type": "gif"},
	})
	require.NoError(t, err)

	select {
	case evt := <-received:
		assert.Equal(t, "memes", evt.Collection)
		assert.Equal(t, "m1", evt.DocumentID)
		assert.Equal(t, "gif", evt.Data["type"])
		assert.False(t, evt.OccurredAt.IsZero())
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}

	require.NoError(t, bus.Close())
}
