// Package event carries verified webhook notifications to the rest of the
// application.
//
// UpdateReceived wraps the raw notification body. Dispatchers deliver it
// synchronously: Local calls in-process listeners, EventBridge forwards it
// to an AWS event bus.
package event

import (
	"context"
	"encoding/json"
	"fmt"
)

// UpdateReceivedName is the name every verified update is dispatched under.
const UpdateReceivedName = "social_graph_bridge.update.received"

// UpdateReceived is an immutable verified webhook notification.
type UpdateReceived struct {
	content string
}

// NewUpdateReceived wraps a raw notification body.
func NewUpdateReceived(content string) *UpdateReceived {
	return &UpdateReceived{content: content}
}

// Content returns the raw body exactly as received.
func (e *UpdateReceived) Content() string {
	return e.content
}

// Decode parses the body into v. The body is parsed on every call.
func (e *UpdateReceived) Decode(v any) error {
	if err := json.Unmarshal([]byte(e.content), v); err != nil {
		return fmt.Errorf("decode update: %w", err)
	}
	return nil
}

// ContentAsMap parses the body into a generic map.
func (e *UpdateReceived) ContentAsMap() (map[string]any, error) {
	var m map[string]any
	if err := e.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// Dispatcher delivers an event under a name. Errors are returned to the
// caller, not swallowed.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, ev *UpdateReceived) error
}

// Notification is the typed form of a Graph webhook body.
type Notification struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one object's batch of changes within a notification.
type Entry struct {
	ID      string   `json:"id"`
	Time    int64    `json:"time"`
	Changes []Change `json:"changes"`
}

// Change is a single field change.
type Change struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}
