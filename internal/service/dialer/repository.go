package dialer

import (
	"context"
	"time"

	"github.com/ignite/fundraise-dialer/internal/domain"
)

// Repository defines the data access contract for the dialer.
// Implementations must be safe for concurrent use.
type Repository interface {
	ConversationCounter
	CandidateSource
	AttemptStore

	// ListTickableCampaigns returns up to limit active campaigns whose date
	// range contains now, least-recently-dialed first.
	ListTickableCampaigns(ctx context.Context, now time.Time, limit int) ([]domain.Campaign, error)

	// GetAgent returns the agent. Returns ErrAgentNotFound if it doesn't exist.
	GetAgent(ctx context.Context, agentID string) (*domain.Agent, error)
}

// ConversationCounter counts dispatched conversations for quota purposes.
type ConversationCounter interface {
	// CountConversationsSince counts conversations of the campaign created
	// at or after since.
	CountConversationsSince(ctx context.Context, campaignID string, since time.Time) (int, error)
}

// CandidateSource fetches ranked candidate leads for a campaign.
type CandidateSource interface {
	// ListCandidateLeads returns at most q.Limit campaign leads that are not
	// pledged, have fewer than q.MaxAttempts attempts and were last attempted
	// at or before q.AttemptedBefore (or never), ordered by quality_rating
	// DESC, lead_score DESC NULLS FIRST, last_attempt_at ASC NULLS FIRST.
	ListCandidateLeads(ctx context.Context, q CandidateQuery) ([]domain.EnrichedLead, error)
}

// AttemptStore persists the side effects of a dispatched call.
type AttemptStore interface {
	InsertConversation(ctx context.Context, c *domain.Conversation) error
	InsertCallLog(ctx context.Context, l *domain.CallLog) error

	// MarkAttempted increments attempts, sets last_attempt_at and moves the
	// campaign lead to contacted.
	MarkAttempted(ctx context.Context, campaignID, leadID string, at time.Time) error

	// TouchLead sets the lead's last_activity_at.
	TouchLead(ctx context.Context, leadID string, at time.Time) error
}

// CandidateQuery selects candidate leads for one campaign.
type CandidateQuery struct {
	CampaignID      string
	MaxAttempts     int
	AttemptedBefore time.Time
	Limit           int
}
