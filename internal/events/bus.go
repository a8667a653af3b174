// Package events fans pricing configuration changes out to in-process
// listeners, so admin writes can trigger cache invalidation and audit
// enqueues without coupling the services to each other.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Event is one configuration change notification.
type Event struct {
	Topic       string
	AggregateID string
	Payload     json.RawMessage
}

// Notifier reacts to emitted events.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, event Event) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus dispatches events to all configured notifiers. Notifier failures are
// joined and returned but do not stop the fan-out.
type Bus struct {
	Notifiers []Notifier
}

// Subscribe appends a notifier to the fan-out list. Not safe for concurrent
// use with Emit; wire subscribers during startup.
func (b *Bus) Subscribe(n Notifier) {
	if n == nil {
		return
	}
	b.Notifiers = append(b.Notifiers, n)
}

// Emit dispatches the event to every notifier.
func (b *Bus) Emit(ctx context.Context, topic, aggregateID string, payload any) error {
	if b == nil {
		return nil
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return errors.New("events: topic is required")
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("events: encode payload: %w", err)
	}
	ev := Event{Topic: topic, AggregateID: aggregateID, Payload: encoded}
	var joined error
	for _, notifier := range b.Notifiers {
		if notifier == nil {
			continue
		}
		if notifyErr := notifier.Notify(ctx, ev); notifyErr != nil {
			joined = errors.Join(joined, fmt.Errorf("events: notifier: %w", notifyErr))
		}
	}
	return joined
}

func encodePayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage("{}"), nil
	}
	switch v := payload.(type) {
	case []byte:
		if len(v) == 0 {
			return json.RawMessage("{}"), nil
		}
		if !json.Valid(v) {
			return nil, errors.New("payload is not valid json")
		}
		return append(json.RawMessage(nil), v...), nil
	case json.RawMessage:
		if len(v) == 0 {
			return json.RawMessage("{}"), nil
		}
		if !json.Valid(v) {
			return nil, errors.New("payload is not valid json")
		}
		return append(json.RawMessage(nil), v...), nil
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		return encoded, nil
	}
}
