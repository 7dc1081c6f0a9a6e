package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"
)

// EventSource is the EventBridge source of every published update.
const EventSource = "social-graph-bridge"

// PutEventsAPI is the subset of the EventBridge client the dispatcher needs.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridge publishes updates to an event bus. The detail-type is the
// event name; the detail is the raw body when it is a JSON object, otherwise
// the body wrapped as {"content": "..."}.
type EventBridge struct {
	client  PutEventsAPI
	busName string
}

// Compile-time interface check.
var _ Dispatcher = (*EventBridge)(nil)

// NewEventBridge creates a dispatcher for busName ("" = default bus).
func NewEventBridge(client PutEventsAPI, busName string) *EventBridge {
	return &EventBridge{client: client, busName: busName}
}

// Dispatch implements Dispatcher.
func (d *EventBridge) Dispatch(ctx context.Context, name string, ev *UpdateReceived) error {
	detail := ev.Content()
	if !isJSONObject(detail) {
		wrapped, err := json.Marshal(map[string]string{"content": detail})
		if err != nil {
			return fmt.Errorf("marshal %s: %w", name, err)
		}
		detail = string(wrapped)
	}

	entry := eventbridgetypes.PutEventsRequestEntry{
		Source:     aws.String(EventSource),
		DetailType: aws.String(name),
		Detail:     aws.String(detail),
	}
	if d.busName != "" {
		entry.EventBusName = aws.String(d.busName)
	}

	result, err := d.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{entry},
	})
	if err != nil {
		log.Error().Err(err).Str("event", name).Msg("EventBridge PutEvents failed")
		return fmt.Errorf("PutEvents: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, e := range result.Entries {
			if e.ErrorCode != nil || e.ErrorMessage != nil {
				log.Error().
					Int("index", i).
					Str("errorCode", aws.ToString(e.ErrorCode)).
					Str("errorMessage", aws.ToString(e.ErrorMessage)).
					Str("event", name).
					Msg("EventBridge PutEvents entry failed")
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(e.ErrorCode), aws.ToString(e.ErrorMessage))
			}
		}
	}

	log.Debug().Str("event", name).Str("bus", d.busName).Msg("Update published to EventBridge")
	return nil
}

// isJSONObject reports whether s decodes to a JSON object, the only detail
// shape PutEvents accepts.
func isJSONObject(s string) bool {
	var m map[string]any
	return json.Unmarshal([]byte(s), &m) == nil && m != nil
}
