package domain

import (
	"strings"
	"time"
)

// CampaignLeadStatus enumerates the per-campaign state of a lead.
type CampaignLeadStatus string

const (
	LeadPending       CampaignLeadStatus = "pending"
	LeadContacted     CampaignLeadStatus = "contacted"
	LeadPledged       CampaignLeadStatus = "pledged"
	LeadDonated       CampaignLeadStatus = "donated"
	LeadNotInterested CampaignLeadStatus = "not_interested"
)

// Lead is a prospective donor.
type Lead struct {
	ID             string     `json:"id" db:"id"`
	Phone          string     `json:"phone" db:"phone"`
	Timezone       string     `json:"timezone" db:"timezone"`
	DoNotCall      bool       `json:"do_not_call" db:"do_not_call"`
	QualityRating  int        `json:"quality_rating" db:"quality_rating"`
	LeadScore      *int       `json:"lead_score" db:"lead_score"`
	Company        string     `json:"company" db:"company"`
	FirstName      string     `json:"first_name" db:"first_name"`
	LastName       string     `json:"last_name" db:"last_name"`
	LastActivityAt *time.Time `json:"last_activity_at" db:"last_activity_at"`
}

// FullName joins the non-empty name parts.
func (l *Lead) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(l.FirstName) + " " + strings.TrimSpace(l.LastName))
}

// CampaignLead is the join row between a campaign and a lead. Attempts is
// only ever written by the attempt recorder.
type CampaignLead struct {
	CampaignID    string             `json:"campaign_id" db:"campaign_id"`
	LeadID        string             `json:"lead_id" db:"lead_id"`
	Status        CampaignLeadStatus `json:"status" db:"status"`
	Attempts      int                `json:"attempts" db:"attempts"`
	LastAttemptAt *time.Time         `json:"last_attempt_at" db:"last_attempt_at"`
	PledgedAmount *float64           `json:"pledged_amount" db:"pledged_amount"`
	DonatedAmount *float64           `json:"donated_amount" db:"donated_amount"`
}

// EnrichedLead is a campaign lead joined with its lead row.
type EnrichedLead struct {
	CampaignLead
	Lead Lead `json:"lead"`
}
