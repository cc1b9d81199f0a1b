package domain

import "time"

// ConversationStatus enumerates call states. Initiated, in_progress and
// completed form a forward-only chain; the rest are set by other writers.
type ConversationStatus string

const (
	ConversationInitiated  ConversationStatus = "initiated"
	ConversationInProgress ConversationStatus = "in_progress"
	ConversationCompleted  ConversationStatus = "completed"
	ConversationFailed     ConversationStatus = "failed"
	ConversationNoAnswer   ConversationStatus = "no_answer"
	ConversationBusy       ConversationStatus = "busy"
	ConversationVoicemail  ConversationStatus = "voicemail"
)

// Rank orders the forward-only statuses. Statuses outside the chain return -1.
func (s ConversationStatus) Rank() int {
	switch s {
	case "", ConversationInitiated:
		return 0
	case ConversationInProgress:
		return 1
	case ConversationCompleted:
		return 2
	default:
		return -1
	}
}

// Outcome is the terminal classification of a conversation.
type Outcome string

const (
	OutcomeNone          Outcome = ""
	OutcomePledged       Outcome = "pledged"
	OutcomeDonated       Outcome = "donated"
	OutcomeNotInterested Outcome = "not_interested"
)

// Conversation is one dialed call and everything learned about it afterwards.
type Conversation struct {
	ID                     string             `json:"id" db:"id"`
	CampaignID             string             `json:"campaign_id" db:"campaign_id"`
	AgentID                string             `json:"agent_id" db:"agent_id"`
	LeadID                 string             `json:"lead_id" db:"lead_id"`
	ExternalConversationID *string            `json:"external_conversation_id" db:"external_conversation_id"`
	CallSID                *string            `json:"call_sid" db:"call_sid"`
	Status                 ConversationStatus `json:"status" db:"status"`
	Outcome                *Outcome           `json:"outcome" db:"outcome"`
	Transcript             *string            `json:"transcript" db:"transcript"`
	SentimentScore         *float64           `json:"sentiment_score" db:"sentiment_score"`
	KeyPoints              []string           `json:"key_points" db:"key_points"`
	StartedAt              *time.Time         `json:"started_at" db:"started_at"`
	EndedAt                *time.Time         `json:"ended_at" db:"ended_at"`
	DurationSeconds        *int               `json:"duration_seconds" db:"duration_seconds"`
	CreatedAt              time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at" db:"updated_at"`
}

// EventType distinguishes agent from donor turns in the event log.
type EventType string

const (
	EventAgentMessage EventType = "agent_message"
	EventUserMessage  EventType = "user_message"
)

// ConversationEvent is an immutable entry of a conversation's message log.
// SequenceNumber starts at 1 and increases strictly per conversation.
type ConversationEvent struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	SequenceNumber int       `json:"sequence_number" db:"sequence_number"`
	EventType      EventType `json:"event_type" db:"event_type"`
	AgentText      *string   `json:"agent_text" db:"agent_text"`
	UserResponse   *string   `json:"user_response" db:"user_response"`
	StartedAt      time.Time `json:"started_at" db:"started_at"`
}

// CallLog is the fallback audit row for a dispatched call whose conversation
// row could not be written.
type CallLog struct {
	ID                     string    `json:"id" db:"id"`
	CampaignID             string    `json:"campaign_id" db:"campaign_id"`
	AgentID                string    `json:"agent_id" db:"agent_id"`
	LeadID                 string    `json:"lead_id" db:"lead_id"`
	ExternalConversationID string    `json:"external_conversation_id" db:"external_conversation_id"`
	CallSID                string    `json:"call_sid" db:"call_sid"`
	ToNumber               string    `json:"to_number" db:"to_number"`
	Status                 string    `json:"status" db:"status"`
	Error                  string    `json:"error" db:"error"`
	CreatedAt              time.Time `json:"created_at" db:"created_at"`
}
