package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/fundraise-dialer/internal/domain"
	"github.com/ignite/fundraise-dialer/internal/service/dialer"
)

// DialerRepo implements dialer.Repository against PostgreSQL.
type DialerRepo struct{ db *sql.DB }

// NewDialerRepo creates a Postgres-backed dialer repository.
func NewDialerRepo(db *sql.DB) *DialerRepo { return &DialerRepo{db: db} }

var _ dialer.Repository = (*DialerRepo)(nil)

// ListTickableCampaigns orders campaigns by their most recent conversation,
// never-dialed first, so a small batch limit still rotates through every
// active campaign.
func (r *DialerRepo) ListTickableCampaigns(ctx context.Context, now time.Time, limit int) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.status, COALESCE(c.agent_id::text, ''),
		       c.start_date, c.end_date,
		       COALESCE(c.daily_call_cap, 0), COALESCE(c.max_attempts, 0),
		       c.call_window_start::text, c.call_window_end::text,
		       COALESCE(c.exclude_dnc, false),
		       COALESCE(c.disclosure_line, ''), COALESCE(c.goal_metric, '')
		FROM campaigns c
		LEFT JOIN LATERAL (
			SELECT MAX(cv.created_at) AS last_dialed_at
			FROM conversations cv
			WHERE cv.campaign_id = c.id
		) d ON TRUE
		WHERE c.status = 'active'
		  AND (c.start_date IS NULL OR c.start_date <= $1)
		  AND (c.end_date IS NULL OR c.end_date >= $1)
		ORDER BY d.last_dialed_at ASC NULLS FIRST, c.id
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list tickable campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		var (
			c                      domain.Campaign
			start, end             sql.NullTime
			windowStart, windowEnd sql.NullString
		)
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Status, &c.AgentID,
			&start, &end,
			&c.DailyCallCap, &c.MaxAttempts,
			&windowStart, &windowEnd,
			&c.ExcludeDNC,
			&c.DisclosureLine, &c.GoalMetric,
		); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		c.StartDate = timePtr(start)
		c.EndDate = timePtr(end)
		c.CallWindowStart = stringPtr(windowStart)
		c.CallWindowEnd = stringPtr(windowEnd)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *DialerRepo) GetAgent(ctx context.Context, agentID string) (*domain.Agent, error) {
	a := &domain.Agent{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(name, ''), COALESCE(external_agent_id, ''),
		       COALESCE(phone_number_id, ''), COALESCE(caller_id, '')
		FROM agents
		WHERE id = $1
	`, agentID).Scan(&a.ID, &a.Name, &a.ExternalAgentID, &a.PhoneNumberID, &a.CallerID)
	if err == sql.ErrNoRows {
		return nil, dialer.ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

func (r *DialerRepo) CountConversationsSince(ctx context.Context, campaignID string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM conversations
		WHERE campaign_id = $1 AND created_at >= $2
	`, campaignID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count conversations: %w", err)
	}
	return n, nil
}

// ListCandidateLeads pushes every filter except DNC into SQL. The DNC filter
// stays in process because it depends on the campaign's exclude_dnc flag.
func (r *DialerRepo) ListCandidateLeads(ctx context.Context, q dialer.CandidateQuery) ([]domain.EnrichedLead, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT cl.campaign_id, cl.lead_id, COALESCE(cl.status, 'pending'),
		       COALESCE(cl.attempts, 0), cl.last_attempt_at,
		       cl.pledged_amount, cl.donated_amount,
		       l.id, COALESCE(l.phone, ''), COALESCE(l.timezone, ''),
		       COALESCE(l.do_not_call, false), COALESCE(l.quality_rating, 0),
		       l.lead_score, COALESCE(l.company, ''),
		       COALESCE(l.first_name, ''), COALESCE(l.last_name, ''),
		       l.last_activity_at
		FROM campaign_leads cl
		JOIN leads l ON l.id = cl.lead_id
		WHERE cl.campaign_id = $1
		  AND COALESCE(cl.status, 'pending') <> 'pledged'
		  AND COALESCE(cl.attempts, 0) < $2
		  AND (cl.last_attempt_at IS NULL OR cl.last_attempt_at <= $3)
		ORDER BY COALESCE(l.quality_rating, 0) DESC,
		         l.lead_score DESC NULLS FIRST,
		         cl.last_attempt_at ASC NULLS FIRST
		LIMIT $4
	`, q.CampaignID, q.MaxAttempts, q.AttemptedBefore, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("list candidate leads: %w", err)
	}
	defer rows.Close()

	var out []domain.EnrichedLead
	for rows.Next() {
		var (
			el                    domain.EnrichedLead
			lastAttempt, activity sql.NullTime
			pledged, donated      sql.NullFloat64
			score                 sql.NullInt64
		)
		if err := rows.Scan(
			&el.CampaignID, &el.LeadID, &el.Status,
			&el.Attempts, &lastAttempt,
			&pledged, &donated,
			&el.Lead.ID, &el.Lead.Phone, &el.Lead.Timezone,
			&el.Lead.DoNotCall, &el.Lead.QualityRating,
			&score, &el.Lead.Company,
			&el.Lead.FirstName, &el.Lead.LastName,
			&activity,
		); err != nil {
			return nil, fmt.Errorf("scan candidate lead: %w", err)
		}
		el.LastAttemptAt = timePtr(lastAttempt)
		el.Lead.LastActivityAt = timePtr(activity)
		if pledged.Valid {
			v := pledged.Float64
			el.PledgedAmount = &v
		}
		if donated.Valid {
			v := donated.Float64
			el.DonatedAmount = &v
		}
		if score.Valid {
			v := int(score.Int64)
			el.Lead.LeadScore = &v
		}
		out = append(out, el)
	}
	return out, rows.Err()
}

func (r *DialerRepo) InsertConversation(ctx context.Context, c *domain.Conversation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations
			(id, campaign_id, agent_id, lead_id, external_conversation_id, call_sid,
			 status, started_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.ID, c.CampaignID, c.AgentID, c.LeadID,
		nullString(c.ExternalConversationID), nullString(c.CallSID),
		string(c.Status), c.StartedAt, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (r *DialerRepo) InsertCallLog(ctx context.Context, l *domain.CallLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO call_logs
			(id, campaign_id, agent_id, lead_id, external_conversation_id, call_sid,
			 to_number, status, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, l.ID, l.CampaignID, l.AgentID, l.LeadID, l.ExternalConversationID, l.CallSID,
		l.ToNumber, l.Status, l.Error, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert call log: %w", err)
	}
	return nil
}

func (r *DialerRepo) MarkAttempted(ctx context.Context, campaignID, leadID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_leads
		SET attempts = COALESCE(attempts, 0) + 1,
		    last_attempt_at = $3,
		    status = 'contacted'
		WHERE campaign_id = $1 AND lead_id = $2
	`, campaignID, leadID, at)
	if err != nil {
		return fmt.Errorf("mark attempted: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark attempted: campaign lead %s/%s not found", campaignID, leadID)
	}
	return nil
}

func (r *DialerRepo) TouchLead(ctx context.Context, leadID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE leads SET last_activity_at = $2 WHERE id = $1`, leadID, at)
	if err != nil {
		return fmt.Errorf("touch lead: %w", err)
	}
	return nil
}
