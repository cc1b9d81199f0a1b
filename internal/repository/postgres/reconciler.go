package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/fundraise-dialer/internal/domain"
	"github.com/ignite/fundraise-dialer/internal/service/reconciler"
)

// ConversationRepo implements reconciler.Repository against PostgreSQL.
type ConversationRepo struct{ db *sql.DB }

// NewConversationRepo creates a Postgres-backed conversation repository.
func NewConversationRepo(db *sql.DB) *ConversationRepo { return &ConversationRepo{db: db} }

var _ reconciler.Repository = (*ConversationRepo)(nil)

func (r *ConversationRepo) ListPending(ctx context.Context, since time.Time, limit int) ([]domain.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, campaign_id, COALESCE(agent_id::text, ''), lead_id,
		       external_conversation_id, call_sid, COALESCE(status, ''), outcome,
		       transcript, sentiment_score, key_points,
		       started_at, ended_at, duration_seconds, created_at, updated_at
		FROM conversations
		WHERE (status IN ('initiated', 'in_progress') OR status IS NULL
		       OR transcript IS NULL OR outcome IS NULL)
		  AND created_at >= $1
		ORDER BY updated_at ASC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending conversations: %w", err)
	}
	defer rows.Close()

	var out []domain.Conversation
	for rows.Next() {
		var (
			c                        domain.Conversation
			extID, sid, outcome, trx sql.NullString
			sentiment                sql.NullFloat64
			keyPoints                []string
			started, ended           sql.NullTime
			duration                 sql.NullInt64
		)
		if err := rows.Scan(
			&c.ID, &c.CampaignID, &c.AgentID, &c.LeadID,
			&extID, &sid, &c.Status, &outcome,
			&trx, &sentiment, pq.Array(&keyPoints),
			&started, &ended, &duration, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.ExternalConversationID = stringPtr(extID)
		c.CallSID = stringPtr(sid)
		c.Transcript = stringPtr(trx)
		c.KeyPoints = keyPoints
		c.StartedAt = timePtr(started)
		c.EndedAt = timePtr(ended)
		if outcome.Valid && outcome.String != "" {
			o := domain.Outcome(outcome.String)
			c.Outcome = &o
		}
		if sentiment.Valid {
			v := sentiment.Float64
			c.SentimentScore = &v
		}
		if duration.Valid {
			v := int(duration.Int64)
			c.DurationSeconds = &v
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ConversationRepo) CountEvents(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversation_events WHERE conversation_id = $1`, conversationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// AppendEvents inserts the batch in one statement. A sequence number that
// already exists is left alone, so a replayed batch is a no-op.
func (r *ConversationRepo) AppendEvents(ctx context.Context, events []domain.ConversationEvent) error {
	if len(events) == 0 {
		return nil
	}

	const cols = 7
	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*cols)
	for i, ev := range events {
		base := i * cols
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7))
		args = append(args, ev.ID, ev.ConversationID, ev.SequenceNumber, string(ev.EventType),
			nullString(ev.AgentText), nullString(ev.UserResponse), ev.StartedAt)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversation_events
			(id, conversation_id, sequence_number, event_type, agent_text, user_response, started_at)
		VALUES `+strings.Join(values, ", ")+`
		ON CONFLICT (conversation_id, sequence_number) DO NOTHING
	`, args...)
	if err != nil {
		return fmt.Errorf("append events: %w", err)
	}
	return nil
}

func (r *ConversationRepo) UpdateConversation(ctx context.Context, id string, u reconciler.ConversationUpdate) error {
	sets := []string{}
	args := []interface{}{}
	idx := 1
	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if u.Status != nil {
		add("status", string(*u.Status))
	}
	if u.Outcome != nil {
		// Outcome is write-once even if two writers race.
		sets = append(sets, fmt.Sprintf("outcome = COALESCE(outcome, $%d)", idx))
		args = append(args, string(*u.Outcome))
		idx++
	}
	if u.Transcript != nil {
		add("transcript", *u.Transcript)
	}
	if u.SentimentScore != nil {
		add("sentiment_score", *u.SentimentScore)
	}
	if u.KeyPoints != nil {
		add("key_points", pq.Array(u.KeyPoints))
	}
	if u.EndedAt != nil {
		add("ended_at", *u.EndedAt)
	}
	if u.DurationSeconds != nil {
		add("duration_seconds", *u.DurationSeconds)
	}
	sets = append(sets, "updated_at = NOW()")

	q := fmt.Sprintf("UPDATE conversations SET %s WHERE id = $%d", strings.Join(sets, ", "), idx)
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return reconciler.ErrConversationNotFound
	}
	return nil
}

func (r *ConversationRepo) SetCampaignLeadStatus(ctx context.Context, campaignID, leadID string, status domain.CampaignLeadStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaign_leads SET status = $3
		WHERE campaign_id = $1 AND lead_id = $2
	`, campaignID, leadID, string(status))
	if err != nil {
		return fmt.Errorf("set campaign lead status: %w", err)
	}
	return nil
}
