package dialer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/fundraise-dialer/internal/domain"
	"github.com/ignite/fundraise-dialer/internal/pkg/logger"
	"github.com/ignite/fundraise-dialer/internal/voice"
)

// RecordOutcome reports what the recorder managed to persist.
type RecordOutcome struct {
	ConversationID string
	CallLogID      string
	// Errors holds every write failure. None of them are fatal: the call has
	// already been placed and must not be placed again.
	Errors []error
}

// Durable reports whether the dispatch left a conversation or call log row.
func (o RecordOutcome) Durable() bool {
	return o.ConversationID != "" || o.CallLogID != ""
}

// Recorder persists a dispatched call and its attempt bookkeeping.
type Recorder struct {
	store AttemptStore
	newID func() string
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store AttemptStore) *Recorder {
	return &Recorder{store: store, newID: func() string { return uuid.New().String() }}
}

// Record runs two independent steps after a successful dispatch:
//
//  1. insert the conversation (status initiated), or a call log carrying the
//     same metadata if that insert fails;
//  2. bump the campaign lead's attempts/last_attempt_at/status and the
//     lead's last_activity_at, whatever happened in step 1.
//
// Failures are logged and collected, never returned.
func (r *Recorder) Record(ctx context.Context, c *domain.Campaign, agent *domain.Agent,
	lead domain.EnrichedLead, call *voice.OutboundCallResult, now time.Time) RecordOutcome {

	var out RecordOutcome

	conv := &domain.Conversation{
		ID:         r.newID(),
		CampaignID: c.ID,
		AgentID:    agent.ID,
		LeadID:     lead.LeadID,
		Status:     domain.ConversationInitiated,
		StartedAt:  &now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if call.ConversationID != "" {
		conv.ExternalConversationID = &call.ConversationID
	}
	if call.CallSID != "" {
		conv.CallSID = &call.CallSID
	}

	if err := r.store.InsertConversation(ctx, conv); err != nil {
		out.Errors = append(out.Errors, err)
		logger.Error("conversation insert failed, writing call log",
			"campaign_id", c.ID, "lead_id", lead.LeadID,
			"external_conversation_id", call.ConversationID, "error", err)

		callLog := &domain.CallLog{
			ID:                     r.newID(),
			CampaignID:             c.ID,
			AgentID:                agent.ID,
			LeadID:                 lead.LeadID,
			ExternalConversationID: call.ConversationID,
			CallSID:                call.CallSID,
			ToNumber:               lead.Lead.Phone,
			Status:                 string(domain.ConversationInitiated),
			Error:                  err.Error(),
			CreatedAt:              now,
		}
		if logErr := r.store.InsertCallLog(ctx, callLog); logErr != nil {
			out.Errors = append(out.Errors, logErr)
			logger.Error("call log insert failed, dispatched call has no durable trace",
				"campaign_id", c.ID, "lead_id", lead.LeadID,
				"external_conversation_id", call.ConversationID, "call_sid", call.CallSID,
				"error", logErr)
		} else {
			out.CallLogID = callLog.ID
		}
	} else {
		out.ConversationID = conv.ID
	}

	if err := r.store.MarkAttempted(ctx, c.ID, lead.LeadID, now); err != nil {
		out.Errors = append(out.Errors, err)
		logger.Error("campaign lead bookkeeping failed after dispatch",
			"campaign_id", c.ID, "lead_id", lead.LeadID, "error", err)
	}
	if err := r.store.TouchLead(ctx, lead.LeadID, now); err != nil {
		out.Errors = append(out.Errors, err)
		logger.Error("lead activity update failed after dispatch",
			"lead_id", lead.LeadID, "error", err)
	}

	return out
}
