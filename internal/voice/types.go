package voice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// DynamicVariables are the per-call values the agent prompt interpolates.
type DynamicVariables struct {
	DonorName      string `json:"donor_name"`
	CampaignName   string `json:"campaign_name"`
	DisclosureLine string `json:"disclosure_line"`
	GoalMetric     string `json:"goal_metric"`
	CampaignID     string `json:"campaign_id"`
	AgentID        string `json:"agent_id"`
	LeadID         string `json:"lead_id"`
	AttemptNo      int    `json:"attempt_no"`
	CallerID       string `json:"caller_id"`
	Name           string `json:"name"`
	Company        string `json:"company"`
}

// ClientData wraps the dynamic variables in the provider's envelope.
type ClientData struct {
	DynamicVariables DynamicVariables `json:"dynamic_variables"`
}

// OutboundCallRequest is the body of the outbound-call API.
type OutboundCallRequest struct {
	AgentID            string     `json:"agent_id"`
	AgentPhoneNumberID string     `json:"agent_phone_number_id"`
	ToNumber           string     `json:"to_number"`
	ClientData         ClientData `json:"conversation_initiation_client_data"`
}

// OutboundCallResult identifies a placed call at the provider.
type OutboundCallResult struct {
	ConversationID string
	CallSID        string
}

// outboundCallResponse accepts both spellings of the call SID.
type outboundCallResponse struct {
	ConversationID string `json:"conversation_id"`
	CallSID        string `json:"callSid"`
	CallSIDSnake   string `json:"call_sid"`
}

// Message is a single turn of a conversation.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp Timestamp `json:"timestamp"`
}

// IsUser reports whether the donor spoke this turn.
func (m Message) IsUser() bool { return m.Role == "user" }

// History is the provider's full message history for a conversation.
// DemoMode marks canned content served when the provider was unreachable.
type History struct {
	ConversationID string    `json:"conversation_id"`
	Messages       []Message `json:"messages"`
	DemoMode       bool      `json:"demo_mode,omitempty"`
}

// Timestamp decodes either RFC3339 strings or unix epoch numbers
// (seconds, or milliseconds when the value is too large for seconds).
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", s, err)
		}
		t.Time = parsed.UTC()
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("parse timestamp %s: %w", data, err)
	}
	if f > 1e12 {
		t.Time = time.UnixMilli(int64(f)).UTC()
		return nil
	}
	sec := int64(f)
	t.Time = time.Unix(sec, int64((f-float64(sec))*1e9)).UTC()
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
}

// APIError is returned for non-2xx provider responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("voice API error (status %d): %s", e.StatusCode, e.Body)
}
