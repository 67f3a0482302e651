package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types published by the feed service.
const (
	// EventTypePageServed is emitted when a feed page is served.
	EventTypePageServed = "feed.page_served"

	// EventTypeFeedbackSaved is emitted when a user rates a paper.
	EventTypeFeedbackSaved = "feed.feedback_saved"

	// EventTypeProfileUpdated is emitted when a user saves or clears their profile.
	EventTypeProfileUpdated = "feed.profile_updated"

	// EventTypeFolderPaperAdded is emitted when a user files a paper into a folder.
	EventTypeFolderPaperAdded = "feed.folder_paper_added"
)

// Event is one feed activity event as it appears on the wire.
type Event struct {
	// EventID uniquely identifies the event.
	EventID string `json:"event_id"`

	// EventType is one of the EventType constants.
	EventType string `json:"event_type"`

	// UserID is the acting user (or the anonymous sentinel).
	UserID string `json:"user_id"`

	// OccurredAt is when the event happened, in UTC.
	OccurredAt time.Time `json:"occurred_at"`

	// Payload is the event-type-specific body.
	Payload json.RawMessage `json:"payload"`
}

// PageServedPayload is the body of a feed.page_served event.
type PageServedPayload struct {
	QueryKey   string `json:"query_key"`
	PaperCount int    `json:"paper_count"`
	Partial    bool   `json:"partial"`
	FromCache  bool   `json:"from_cache"`
}

// FeedbackSavedPayload is the body of a feed.feedback_saved event.
type FeedbackSavedPayload struct {
	PaperID string `json:"paper_id"`
	Action  string `json:"action"`
}

// ProfileUpdatedPayload is the body of a feed.profile_updated event.
type ProfileUpdatedPayload struct {
	TopicCount  int  `json:"topic_count"`
	AuthorCount int  `json:"author_count"`
	Cleared     bool `json:"cleared"`
}

// FolderPaperAddedPayload is the body of a feed.folder_paper_added event.
type FolderPaperAddedPayload struct {
	FolderID string `json:"folder_id"`
	PaperID  string `json:"paper_id"`
}

// NewEvent builds an Event with a fresh ID and timestamp. The payload is
// JSON-serialized.
func NewEvent(eventType, userID string, payload interface{}) (Event, error) {
	if eventType == "" {
		return Event{}, fmt.Errorf("event_type is required")
	}
	if userID == "" {
		return Event{}, fmt.Errorf("user_id is required")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal payload: %w", err)
	}

	return Event{
		EventID:    uuid.New().String(),
		EventType:  eventType,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
		Payload:    body,
	}, nil
}
