package models

import "time"

// Well-known input sources.
const (
	InputSourceAPI      = "api"
	InputSourceWebhook  = "webhook"
	InputSourceEventBus = "event_bus"
)

// Input is an incoming event evaluated against the live trigger set.
type Input struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"                validate:"required"`
	Source    string         `json:"source,omitempty"`
	Data      map[string]any `json:"data"`
	Context   map[string]any `json:"context,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Payload is the flat view used as an execution's input snapshot.
func (i Input) Payload() map[string]any {
	payload := make(map[string]any, len(i.Data)+3)
	for k, v := range i.Data {
		payload[k] = v
	}

	payload["event_type"] = i.Type
	if i.Source != "" {
		payload["event_source"] = i.Source
	}

	if i.ID != "" {
		payload["event_id"] = i.ID
	}

	return payload
}
