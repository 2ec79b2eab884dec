// Package eventbus carries job events between the API and the workers
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxAttempts bounds how often a failing event is handled before it is
// parked on the dead-letter topic
const MaxAttempts = 3

// EventType names the job an event requests
type EventType string

const (
	CollectionRequested EventType = "collection.requested"
	RefreshRequested    EventType = "engagement.refresh_requested"
	EnrichmentRequested EventType = "enrichment.requested"
)

// Topic manages the base and dead-letter topic names
type Topic struct {
	base string
}

func NewTopic(base string) Topic {
	return Topic{base: base}
}

func (t Topic) Base() string {
	return t.base
}

// DLQ returns the dead-letter topic name, e.g. my_topic.dlq
func (t Topic) DLQ() string {
	return t.base + ".dlq"
}

// Event is the JSON envelope of every message
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	LastError string          `json:"last_error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// EventHandler processes one event
type EventHandler func(ctx context.Context, event Event) error

// EventBus publishes events and runs a subscription loop
type EventBus interface {
	Publish(ctx context.Context, topic string, event Event) error
	// Subscribe blocks handling events of topic until ctx is done
	Subscribe(ctx context.Context, groupID string, topic Topic, handler EventHandler) error
	Close()
}

// ErrUnknownEvent is returned by handlers for an event type they do not serve
var ErrUnknownEvent = errors.New("unknown event type")

// NewJSONEvent encodes payload into a new event with a random id
func NewJSONEvent(eventType EventType, payload any) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   b,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// DecodeJSON unmarshals the payload of evt into T
func DecodeJSON[T any](evt Event) (T, error) {
	var out T
	if err := json.Unmarshal(evt.Payload, &out); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to unmarshal %s payload: %w", evt.Type, err)
	}
	return out, nil
}

// redeliver decides where a failed event goes next: back onto the base
// topic while attempts remain, else the dead-letter topic
func redeliver(topic Topic, evt Event, handlerErr error) (string, Event) {
	evt.LastError = handlerErr.Error()
	evt.Attempt++
	if evt.Attempt >= MaxAttempts {
		return topic.DLQ(), evt
	}
	return topic.Base(), evt
}
