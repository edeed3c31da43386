package functions

import (
	"context"

	"github.com/localnerve/memebase/internal/events"
	"github.com/localnerve/memebase/internal/logging"
	"github.com/localnerve/memebase/internal/models"
	"github.com/localnerve/memebase/internal/services"
)

// MemeCreatedRecorder counts a new meme against the entities it references
type MemeCreatedRecorder interface {
	RecordMemeCreated(ctx context.Context, memeID string) (*services.UsageResult, error)
}

// MemeCreatedHandler returns the consumer of document.created events that
// keeps usageCount of tags, objects and moods current for new memes. Events
// of other collections are ignored.
func MemeCreatedHandler(recorder MemeCreatedRecorder) events.HandlerFunc {
	return func(ctx context.Context, evt events.DocumentEvent) error {
		if evt.Collection != models.CollectionMemes {
			return nil
		}
		result, err := recorder.RecordMemeCreated(ctx, evt.DocumentID)
		if err != nil {
			return err
		}
		logging.Ctx(ctx).Debug().
			Str("meme", evt.DocumentID).
			Int("entities", len(result.Entities)).
			Msg("Meme creation counted")
		return nil
	}
}

// Register wires the event consumers into the bus
func Register(bus *events.Bus, recorder MemeCreatedRecorder) {
	bus.Handle("meme-created", events.TopicDocumentCreated, MemeCreatedHandler(recorder))
}
