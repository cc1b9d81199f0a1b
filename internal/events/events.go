// Package events publishes dialer and reconciler domain events for
// downstream consumers such as CRM sync.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Event types, also used as AMQP routing keys.
const (
	TypeCallDispatched      = "call.dispatched"
	TypeConversationOutcome = "conversation.outcome"
)

// Event is a single published fact.
type Event struct {
	Type           string                 `json:"type"`
	OccurredAt     time.Time              `json:"occurred_at"`
	CampaignID     string                 `json:"campaign_id"`
	LeadID         string                 `json:"lead_id,omitempty"`
	ConversationID string                 `json:"conversation_id,omitempty"`
	Data           map[string]interface{} `json:"data,omitempty"`
}

// Encode serializes the event body.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events. Publishing is best effort: callers log
// failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher drops every event. It is the default when no broker is
// configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
