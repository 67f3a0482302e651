package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/scholarstream/paper-feed-service/internal/config"
)

// Writer is the subset of kafka.Writer the publisher needs. This interface
// allows for easy mocking in tests.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ Writer = (*kafka.Writer)(nil)

// Publisher writes feed activity events to a Kafka topic. Messages are
// keyed by user ID so one user's events stay ordered within a partition.
// A Publisher built from a disabled configuration is a no-op.
type Publisher struct {
	writer Writer
	logger zerolog.Logger
}

// NewPublisher creates a Publisher from Kafka configuration. When the
// configuration disables Kafka the returned publisher drops all events.
func NewPublisher(cfg config.KafkaConfig, logger zerolog.Logger) *Publisher {
	log := logger.With().Str("component", "events").Logger()
	if !cfg.Enabled {
		return &Publisher{logger: log}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
		// The feed path never waits on delivery.
		Async: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Warn().Err(err).Int("messages", len(messages)).Msg("event delivery failed")
			}
		},
	}
	return &Publisher{writer: writer, logger: log}
}

// NewPublisherWithWriter creates a Publisher over an existing writer.
func NewPublisherWithWriter(writer Writer, logger zerolog.Logger) *Publisher {
	return &Publisher{
		writer: writer,
		logger: logger.With().Str("component", "events").Logger(),
	}
}

// Enabled reports whether the publisher is wired to a writer.
func (p *Publisher) Enabled() bool {
	return p.writer != nil
}

// Publish serializes the event and hands it to the writer. Write failures
// only log; the caller's operation already succeeded.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	if p.writer == nil {
		return nil
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn().Err(err).Str("event_type", event.EventType).Msg("event publish failed")
	}
	return nil
}

// PublishPageServed emits a feed.page_served event.
func (p *Publisher) PublishPageServed(ctx context.Context, userID, queryKey string, paperCount int, partial, fromCache bool) {
	p.publish(ctx, EventTypePageServed, userID, PageServedPayload{
		QueryKey:   queryKey,
		PaperCount: paperCount,
		Partial:    partial,
		FromCache:  fromCache,
	})
}

// PublishFeedbackSaved emits a feed.feedback_saved event.
func (p *Publisher) PublishFeedbackSaved(ctx context.Context, userID, paperID, action string) {
	p.publish(ctx, EventTypeFeedbackSaved, userID, FeedbackSavedPayload{
		PaperID: paperID,
		Action:  action,
	})
}

// PublishProfileUpdated emits a feed.profile_updated event.
func (p *Publisher) PublishProfileUpdated(ctx context.Context, userID string, topicCount, authorCount int, cleared bool) {
	p.publish(ctx, EventTypeProfileUpdated, userID, ProfileUpdatedPayload{
		TopicCount:  topicCount,
		AuthorCount: authorCount,
		Cleared:     cleared,
	})
}

// PublishFolderPaperAdded emits a feed.folder_paper_added event.
func (p *Publisher) PublishFolderPaperAdded(ctx context.Context, userID, folderID, paperID string) {
	p.publish(ctx, EventTypeFolderPaperAdded, userID, FolderPaperAddedPayload{
		FolderID: folderID,
		PaperID:  paperID,
	})
}

func (p *Publisher) publish(ctx context.Context, eventType, userID string, payload interface{}) {
	if p.writer == nil {
		return
	}
	event, err := NewEvent(eventType, userID, payload)
	if err != nil {
		p.logger.Warn().Err(err).Str("event_type", eventType).Msg("event build failed")
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		p.logger.Warn().Err(err).Str("event_type", eventType).Msg("event publish failed")
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
