package reconciler

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/fundraise-dialer/internal/domain"
	"github.com/ignite/fundraise-dialer/internal/events"
	"github.com/ignite/fundraise-dialer/internal/pkg/logger"
	"github.com/ignite/fundraise-dialer/internal/voice"
)

// Defaults applied when Options leave a field at zero.
const (
	DefaultLookbackHours = 48
	DefaultBatchLimit    = 10
)

// HistoryFetcher returns a conversation's provider message history.
// *voice.Client satisfies it.
type HistoryFetcher interface {
	GetConversationHistory(ctx context.Context, conversationID string) (*voice.History, error)
}

// TranscriptArchiver stores the raw history of a reconciled conversation.
type TranscriptArchiver interface {
	ArchiveTranscript(ctx context.Context, conv *domain.Conversation, h *voice.History) error
}

// Options tunes a single tick.
type Options struct {
	LookbackHours int `json:"lookbackHours,omitempty"`
	BatchLimit    int `json:"batchLimit,omitempty"`
	// AcceptDemoHistory lets canned provider content be persisted. Off by
	// default so a provider outage never writes fake transcripts.
	AcceptDemoHistory bool `json:"-"`
}

func (o Options) withDefaults() Options {
	if o.LookbackHours <= 0 {
		o.LookbackHours = DefaultLookbackHours
	}
	if o.BatchLimit <= 0 {
		o.BatchLimit = DefaultBatchLimit
	}
	return o
}

// TickResult summarizes one reconciler tick.
type TickResult struct {
	StartedAt      time.Time            `json:"started_at"`
	Selected       int                  `json:"selected"`
	Reconciled     int                  `json:"reconciled"`
	NoExternalID   int                  `json:"no_external_id"`
	DemoSkipped    int                  `json:"demo_skipped"`
	Failed         int                  `json:"failed"`
	EventsAppended int                  `json:"events_appended"`
	OutcomesSet    int                  `json:"outcomes_set"`
	Conversations  []ConversationResult `json:"conversations"`
}

// ConversationResult summarizes one conversation within a tick.
type ConversationResult struct {
	ConversationID string                    `json:"conversation_id"`
	EventsAppended int                       `json:"events_appended"`
	Status         domain.ConversationStatus `json:"status"`
	Outcome        domain.Outcome            `json:"outcome,omitempty"`
	Updated        []string                  `json:"updated,omitempty"`
	Skipped        string                    `json:"skipped,omitempty"`
	Error          string                    `json:"error,omitempty"`
}

// Conversation skip reasons reported in ConversationResult.Skipped.
const (
	SkipNoExternalID = "no_external_id"
	SkipDemoHistory  = "demo_history"
)

// Reconciler drives the conversation state machine from provider histories.
type Reconciler struct {
	repo      Repository
	history   HistoryFetcher
	archiver  TranscriptArchiver
	publisher events.Publisher
	newID     func() string
}

// NewReconciler creates a reconciler.
func NewReconciler(repo Repository, history HistoryFetcher) *Reconciler {
	return &Reconciler{
		repo:      repo,
		history:   history,
		publisher: events.NopPublisher{},
		newID:     func() string { return uuid.New().String() },
	}
}

// SetArchiver enables transcript archiving.
func (r *Reconciler) SetArchiver(a TranscriptArchiver) { r.archiver = a }

// SetPublisher sets the publisher for conversation.outcome events.
func (r *Reconciler) SetPublisher(p events.Publisher) {
	if p == nil {
		p = events.NopPublisher{}
	}
	r.publisher = p
}

// Tick reconciles one batch of pending conversations at now. Only a failure
// to list conversations is returned as an error.
func (r *Reconciler) Tick(ctx context.Context, now time.Time, opts Options) (*TickResult, error) {
	opts = opts.withDefaults()
	result := &TickResult{StartedAt: now}

	since := now.Add(-time.Duration(opts.LookbackHours) * time.Hour)
	convs, err := r.repo.ListPending(ctx, since, opts.BatchLimit)
	if err != nil {
		logger.Error("reconciler tick aborted: cannot list conversations", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	result.Selected = len(convs)

	for i := range convs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		cr := r.reconcile(ctx, &convs[i], opts, now)
		switch {
		case cr.Error != "":
			result.Failed++
		case cr.Skipped == SkipNoExternalID:
			result.NoExternalID++
		case cr.Skipped == SkipDemoHistory:
			result.DemoSkipped++
		default:
			result.Reconciled++
		}
		result.EventsAppended += cr.EventsAppended
		if cr.Outcome != domain.OutcomeNone && convs[i].Outcome == nil {
			result.OutcomesSet++
		}
		result.Conversations = append(result.Conversations, cr)
	}

	logger.Info("reconciler tick complete",
		"selected", result.Selected,
		"reconciled", result.Reconciled,
		"events_appended", result.EventsAppended,
		"outcomes_set", result.OutcomesSet,
		"failed", result.Failed)
	return result, nil
}

func (r *Reconciler) reconcile(ctx context.Context, conv *domain.Conversation, opts Options, now time.Time) ConversationResult {
	cr := ConversationResult{ConversationID: conv.ID, Status: conv.Status}
	if conv.Outcome != nil {
		cr.Outcome = *conv.Outcome
	}

	if conv.ExternalConversationID == nil || *conv.ExternalConversationID == "" {
		cr.Skipped = SkipNoExternalID
		r.touch(ctx, conv.ID)
		return cr
	}

	h, err := r.history.GetConversationHistory(ctx, *conv.ExternalConversationID)
	if err != nil {
		logger.Error("history fetch failed", "conversation_id", conv.ID, "error", err)
		cr.Error = err.Error()
		return cr
	}
	if h.DemoMode && !opts.AcceptDemoHistory {
		logger.Warn("provider served canned demo history; degraded sync is off, deferring conversation",
			"conversation_id", conv.ID, "external_conversation_id", *conv.ExternalConversationID,
			"accept_demo_history", false,
			"hint", "set reconciler.accept_demo_history to persist canned content")
		cr.Skipped = SkipDemoHistory
		r.touch(ctx, conv.ID)
		return cr
	}

	appended, err := r.appendNewEvents(ctx, conv.ID, h.Messages, now)
	if err != nil {
		logger.Error("event append failed", "conversation_id", conv.ID, "error", err)
		cr.Error = err.Error()
		return cr
	}
	cr.EventsAppended = appended

	update, inferred := Plan(conv, h.Messages)
	if err := r.repo.UpdateConversation(ctx, conv.ID, update); err != nil {
		logger.Error("conversation update failed", "conversation_id", conv.ID, "error", err)
		cr.Error = err.Error()
		return cr
	}
	cr.Updated = update.Fields()
	if update.Status != nil {
		cr.Status = *update.Status
	}
	if inferred != domain.OutcomeNone {
		cr.Outcome = inferred
		r.onOutcome(ctx, conv, inferred, now)
	}

	if r.archiver != nil && update.Transcript != nil {
		if err := r.archiver.ArchiveTranscript(ctx, conv, h); err != nil {
			logger.Warn("transcript archive failed", "conversation_id", conv.ID, "error", err)
		}
	}
	return cr
}

// appendNewEvents writes events only for messages beyond the stored event
// count, so replaying the same history never duplicates events.
func (r *Reconciler) appendNewEvents(ctx context.Context, conversationID string, messages []voice.Message, now time.Time) (int, error) {
	existing, err := r.repo.CountEvents(ctx, conversationID)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	if existing >= len(messages) {
		return 0, nil
	}

	batch := make([]domain.ConversationEvent, 0, len(messages)-existing)
	for i := existing; i < len(messages); i++ {
		batch = append(batch, newEvent(r.newID(), conversationID, i+1, messages[i], now))
	}
	if err := r.repo.AppendEvents(ctx, batch); err != nil {
		return 0, fmt.Errorf("append events: %w", err)
	}
	return len(batch), nil
}

func newEvent(id, conversationID string, seq int, m voice.Message, now time.Time) domain.ConversationEvent {
	ev := domain.ConversationEvent{
		ID:             id,
		ConversationID: conversationID,
		SequenceNumber: seq,
		StartedAt:      m.Timestamp.Time,
	}
	if ev.StartedAt.IsZero() {
		ev.StartedAt = now
	}
	content := m.Content
	if m.IsUser() {
		ev.EventType = domain.EventUserMessage
		ev.UserResponse = &content
	} else {
		ev.EventType = domain.EventAgentMessage
		ev.AgentText = &content
	}
	return ev
}

// Plan computes the partial update for conv given its full message history.
// It also returns the newly inferred outcome, or OutcomeNone when the
// outcome was already set or nothing matched.
func Plan(conv *domain.Conversation, messages []voice.Message) (ConversationUpdate, domain.Outcome) {
	var u ConversationUpdate

	outcome := domain.OutcomeNone
	if conv.Outcome != nil {
		outcome = *conv.Outcome
	}
	inferred := domain.OutcomeNone
	if outcome == domain.OutcomeNone {
		if o := InferOutcome(messages); o != domain.OutcomeNone {
			inferred = o
			outcome = o
			u.Outcome = &o
		}
	}

	if next, ok := nextStatus(conv.Status, outcome, messages); ok {
		u.Status = &next
	}

	transcript := BuildTranscript(messages)
	if conv.Transcript == nil || *conv.Transcript != transcript {
		u.Transcript = &transcript
	}

	if s := SentimentFor(outcome); s != nil {
		if conv.SentimentScore == nil || *conv.SentimentScore != *s {
			u.SentimentScore = s
		}
	}

	if kp := KeyPoints(messages); kp != nil && !reflect.DeepEqual(kp, conv.KeyPoints) {
		u.KeyPoints = kp
	}

	if last, ok := lastMessageTime(messages); ok {
		start := conv.CreatedAt
		if conv.StartedAt != nil {
			start = *conv.StartedAt
		}
		d := durationSeconds(start, last)
		if conv.DurationSeconds == nil || *conv.DurationSeconds != d {
			u.DurationSeconds = &d
		}
		completed := conv.Status == domain.ConversationCompleted || (u.Status != nil && *u.Status == domain.ConversationCompleted)
		if completed && (conv.EndedAt == nil || !conv.EndedAt.Equal(last)) {
			u.EndedAt = &last
		}
	}

	return u, inferred
}

// nextStatus advances along initiated, in_progress, completed. It never
// moves backwards and leaves statuses outside that chain alone.
func nextStatus(current domain.ConversationStatus, outcome domain.Outcome, messages []voice.Message) (domain.ConversationStatus, bool) {
	rank := current.Rank()
	if rank < 0 {
		return current, false
	}

	target := current
	switch {
	case outcome != domain.OutcomeNone:
		target = domain.ConversationCompleted
	case rank == 0 && userMessageCount(messages) > 0:
		target = domain.ConversationInProgress
	}
	if target.Rank() > rank {
		return target, true
	}
	return current, false
}

// touch refreshes updated_at so a conversation that cannot progress yet
// rotates to the back of the oldest-updated-first queue.
func (r *Reconciler) touch(ctx context.Context, id string) {
	if err := r.repo.UpdateConversation(ctx, id, ConversationUpdate{}); err != nil && !errors.Is(err, ErrConversationNotFound) {
		logger.Warn("conversation touch failed", "conversation_id", id, "error", err)
	}
}

func (r *Reconciler) onOutcome(ctx context.Context, conv *domain.Conversation, o domain.Outcome, now time.Time) {
	logger.Info("conversation outcome inferred",
		"conversation_id", conv.ID, "campaign_id", conv.CampaignID, "lead_id", conv.LeadID, "outcome", string(o))

	if status, ok := leadStatusFor(o); ok && conv.CampaignID != "" && conv.LeadID != "" {
		if err := r.repo.SetCampaignLeadStatus(ctx, conv.CampaignID, conv.LeadID, status); err != nil {
			logger.Error("campaign lead status update failed",
				"campaign_id", conv.CampaignID, "lead_id", conv.LeadID, "error", err)
		}
	}

	ev := events.Event{
		Type:           events.TypeConversationOutcome,
		OccurredAt:     now,
		CampaignID:     conv.CampaignID,
		LeadID:         conv.LeadID,
		ConversationID: conv.ID,
		Data:           map[string]interface{}{"outcome": string(o)},
	}
	if s := SentimentFor(o); s != nil {
		ev.Data["sentiment_score"] = *s
	}
	if err := r.publisher.Publish(ctx, ev); err != nil {
		logger.Warn("publish conversation.outcome failed", "conversation_id", conv.ID, "error", err)
	}
}
