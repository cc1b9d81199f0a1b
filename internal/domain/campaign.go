package domain

import (
	"time"
)

// CampaignStatus enumerates the lifecycle states of a calling campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
)

// Campaign is an outbound fundraising calling campaign.
type Campaign struct {
	ID              string         `json:"id" db:"id"`
	Name            string         `json:"name" db:"name"`
	Status          CampaignStatus `json:"status" db:"status"`
	AgentID         string         `json:"agent_id" db:"agent_id"`
	StartDate       *time.Time     `json:"start_date" db:"start_date"`
	EndDate         *time.Time     `json:"end_date" db:"end_date"`
	DailyCallCap    int            `json:"daily_call_cap" db:"daily_call_cap"`
	MaxAttempts     int            `json:"max_attempts" db:"max_attempts"`
	CallWindowStart *string        `json:"call_window_start" db:"call_window_start"` // local "HH:MM"
	CallWindowEnd   *string        `json:"call_window_end" db:"call_window_end"`
	ExcludeDNC      bool           `json:"exclude_dnc" db:"exclude_dnc"`
	DisclosureLine  string         `json:"disclosure_line" db:"disclosure_line"`
	GoalMetric      string         `json:"goal_metric" db:"goal_metric"`
}

// IsTickable reports whether the dialer may work on the campaign at now.
func (c *Campaign) IsTickable(now time.Time) bool {
	if c.Status != CampaignActive {
		return false
	}
	if c.StartDate != nil && c.StartDate.After(now) {
		return false
	}
	if c.EndDate != nil && c.EndDate.Before(now) {
		return false
	}
	return true
}

// HasCallWindow reports whether both window bounds are configured.
func (c *Campaign) HasCallWindow() bool {
	return c.CallWindowStart != nil && *c.CallWindowStart != "" &&
		c.CallWindowEnd != nil && *c.CallWindowEnd != ""
}

// Agent is the voice agent a campaign dials through.
type Agent struct {
	ID              string `json:"id" db:"id"`
	Name            string `json:"name" db:"name"`
	ExternalAgentID string `json:"external_agent_id" db:"external_agent_id"`
	PhoneNumberID   string `json:"phone_number_id" db:"phone_number_id"`
	CallerID        string `json:"caller_id" db:"caller_id"`
}
