// Package events carries document lifecycle events from the services to the
// background functions over an in-process watermill pub/sub.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/localnerve/memebase/internal/logging"
)

// Topics
const (
	TopicDocumentCreated = "document.created"
	TopicDocumentUpdated = "document.updated"
	TopicDocumentDeleted = "document.deleted"
)

// DocumentEvent describes a change to one document
type DocumentEvent struct {
	Collection string                 `json:"collection"`
	DocumentID string                 `json:"documentId"`
	Data       map[string]interface{} `json:"data,omitempty"`
	OccurredAt time.Time              `json:"occurredAt"`
}

// Publisher is what the services need to announce changes
type Publisher interface {
	Publish(ctx context.Context, topic string, evt DocumentEvent) error
}

// HandlerFunc consumes one decoded event
type HandlerFunc func(ctx context.Context, evt DocumentEvent) error

// Bus is a gochannel pub/sub plus a router with recover and retry middleware
type Bus struct {
	pubsub *gochannel.GoChannel
	router *message.Router
	logger watermill.LoggerAdapter
}

// NewBus creates the pub/sub and router. Handlers are added with Handle and
// start consuming once Run is called.
func NewBus() (*Bus, error) {
	logger := logging.NewWatermillAdapter()

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, logger)
	if err != nil {
		return nil, fmt.Errorf("create event router: %w", err)
	}

	router.AddMiddleware(
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			Multiplier:      2,
			Logger:          logger,
		}.Middleware,
	)

	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger),
		router: router,
		logger: logger,
	}, nil
}

// Publish sends evt on topic
func (b *Bus) Publish(ctx context.Context, topic string, evt DocumentEvent) error {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if id := logging.RequestIDFromContext(ctx); id != "" {
		msg.Metadata.Set("request_id", id)
	}

	return b.pubsub.Publish(topic, msg)
}

// Handle registers fn for topic under a unique handler name
func (b *Bus) Handle(name, topic string, fn HandlerFunc) {
	b.router.AddConsumerHandler(name, topic, b.pubsub, func(msg *message.Message) error {
		var evt DocumentEvent
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			// malformed payloads would fail every retry
			logging.Error().Err(err).Str("handler", name).Msg("Dropping malformed event")
			return nil
		}

		ctx := msg.Context()
		if id := msg.Metadata.Get("request_id"); id != "" {
			ctx = logging.ContextWithRequestID(ctx, id)
		}
		return fn(ctx, evt)
	})
}

// Run blocks processing events until ctx is cancelled or Close is called
func (b *Bus) Run(ctx context.Context) error {
	return b.router.Run(ctx)
}

// Running is closed once all handlers are subscribed
func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

// Close stops the router and the pub/sub
func (b *Bus) Close() error {
	if err := b.router.Close(); err != nil {
		return err
	}
	return b.pubsub.Close()
}
