package reconciler

import (
	"context"
	"time"

	"github.com/ignite/fundraise-dialer/internal/domain"
)

// Repository defines the data access contract for the reconciler.
type Repository interface {
	// ListPending returns up to limit conversations created at or after
	// since whose status is initiated or in_progress, or whose transcript or
	// outcome is still null, least recently updated first.
	ListPending(ctx context.Context, since time.Time, limit int) ([]domain.Conversation, error)

	// CountEvents returns how many events the conversation already has.
	CountEvents(ctx context.Context, conversationID string) (int, error)

	// AppendEvents inserts events. Sequence numbers are assigned by the
	// caller and are unique per conversation.
	AppendEvents(ctx context.Context, events []domain.ConversationEvent) error

	// UpdateConversation writes the non-nil fields of u and always refreshes
	// updated_at. Returns ErrConversationNotFound if the row is gone.
	UpdateConversation(ctx context.Context, id string, u ConversationUpdate) error

	// SetCampaignLeadStatus records the conversation outcome on the campaign
	// lead so pledged donors drop out of selection.
	SetCampaignLeadStatus(ctx context.Context, campaignID, leadID string, status domain.CampaignLeadStatus) error
}

// ConversationUpdate is a partial update; nil fields are left untouched.
type ConversationUpdate struct {
	Status          *domain.ConversationStatus
	Outcome         *domain.Outcome
	Transcript      *string
	SentimentScore  *float64
	KeyPoints       []string
	EndedAt         *time.Time
	DurationSeconds *int
}

// Fields lists the column names the update writes, for logging.
func (u ConversationUpdate) Fields() []string {
	var f []string
	if u.Status != nil {
		f = append(f, "status")
	}
	if u.Outcome != nil {
		f = append(f, "outcome")
	}
	if u.Transcript != nil {
		f = append(f, "transcript")
	}
	if u.SentimentScore != nil {
		f = append(f, "sentiment_score")
	}
	if u.KeyPoints != nil {
		f = append(f, "key_points")
	}
	if u.EndedAt != nil {
		f = append(f, "ended_at")
	}
	if u.DurationSeconds != nil {
		f = append(f, "duration_seconds")
	}
	return f
}
