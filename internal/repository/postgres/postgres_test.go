package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/fundraise-dialer/internal/domain"
	"github.com/ignite/fundraise-dialer/internal/service/dialer"
	"github.com/ignite/fundraise-dialer/internal/service/reconciler"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return db, mock, func() { db.Close() }
}

var testNow = time.Date(2025, 1, 15, 15, 0, 0, 0, time.UTC)

func TestListTickableCampaigns(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	start := testNow.Add(-72 * time.Hour)
	rows := sqlmock.NewRows([]string{
		"id", "name", "status", "agent_id", "start_date", "end_date",
		"daily_call_cap", "max_attempts", "call_window_start", "call_window_end",
		"exclude_dnc", "disclosure_line", "goal_metric",
	}).
		AddRow("c1", "Spring Appeal", "active", "agent-1", start, nil, 50, 3, "09:00:00", "17:00:00", true, "Hi {{ donor_name }}", "pledges").
		AddRow("c2", "Gala", "active", "", nil, nil, 0, 1, nil, nil, false, "", "")

	mock.ExpectQuery(`FROM campaigns c\s+LEFT JOIN LATERAL .* ORDER BY d.last_dialed_at ASC NULLS FIRST, c.id\s+LIMIT \$2`).
		WithArgs(testNow, 10).
		WillReturnRows(rows)

	got, err := NewDialerRepo(db).ListTickableCampaigns(context.Background(), testNow, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domain.CampaignActive, got[0].Status)
	require.NotNil(t, got[0].StartDate)
	assert.Equal(t, start, *got[0].StartDate)
	assert.Nil(t, got[0].EndDate)
	require.NotNil(t, got[0].CallWindowStart)
	assert.Equal(t, "09:00:00", *got[0].CallWindowStart)
	assert.True(t, got[0].ExcludeDNC)
	assert.Nil(t, got[1].CallWindowStart)
	assert.False(t, got[1].HasCallWindow())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAgentNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("FROM agents").WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := NewDialerRepo(db).GetAgent(context.Background(), "ghost")
	assert.ErrorIs(t, err, dialer.ErrAgentNotFound)
}

func TestGetAgent(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("FROM agents").WithArgs("agent-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "external_agent_id", "phone_number_id", "caller_id"}).
			AddRow("agent-1", "Ava", "ext-1", "pn-1", "+15550001111"))

	a, err := NewDialerRepo(db).GetAgent(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "+15550001111", a.CallerID)
	assert.Equal(t, "ext-1", a.ExternalAgentID)
}

func TestCountConversationsSince(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	since := dialer.StartOfUTCDay(testNow)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM conversations`).
		WithArgs("c1", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := NewDialerRepo(db).CountConversationsSince(context.Background(), "c1", since)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestListCandidateLeads(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	attempted := testNow.Add(-30 * time.Hour)
	cols := []string{
		"campaign_id", "lead_id", "status", "attempts", "last_attempt_at",
		"pledged_amount", "donated_amount",
		"id", "phone", "timezone", "do_not_call", "quality_rating",
		"lead_score", "company", "first_name", "last_name", "last_activity_at",
	}
	rows := sqlmock.NewRows(cols).
		AddRow("c1", "l1", "pending", 0, nil, nil, nil, "l1", "+15551230001", "America/New_York", false, 5, nil, "Acme", "Sam", "Lee", nil).
		AddRow("c1", "l2", "contacted", 1, attempted, nil, 25.5, "l2", "+15551230002", "", true, 5, 80, "", "Ana", "", attempted)

	q := dialer.CandidateQuery{CampaignID: "c1", MaxAttempts: 3, AttemptedBefore: testNow.Add(-dialer.RetryBackoff), Limit: 4}
	mock.ExpectQuery(`<> 'pledged'.*l.lead_score DESC NULLS FIRST,\s+cl.last_attempt_at ASC NULLS FIRST\s+LIMIT \$4`).
		WithArgs("c1", 3, q.AttemptedBefore, 4).
		WillReturnRows(rows)

	got, err := NewDialerRepo(db).ListCandidateLeads(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Nil(t, got[0].Lead.LeadScore)
	assert.Nil(t, got[0].LastAttemptAt)
	assert.Equal(t, "America/New_York", got[0].Lead.Timezone)
	require.NotNil(t, got[1].Lead.LeadScore)
	assert.Equal(t, 80, *got[1].Lead.LeadScore)
	assert.True(t, got[1].Lead.DoNotCall)
	require.NotNil(t, got[1].DonatedAmount)
	assert.Equal(t, 25.5, *got[1].DonatedAmount)
	assert.Equal(t, domain.LeadContacted, got[1].Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertConversation(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	ext := "conv_1"
	c := &domain.Conversation{
		ID: "id-1", CampaignID: "c1", AgentID: "agent-1", LeadID: "l1",
		ExternalConversationID: &ext, Status: domain.ConversationInitiated,
		StartedAt: &testNow, CreatedAt: testNow, UpdatedAt: testNow,
	}
	mock.ExpectExec("INSERT INTO conversations").
		WithArgs("id-1", "c1", "agent-1", "l1", sqlmock.AnyArg(), sqlmock.AnyArg(), "initiated", sqlmock.AnyArg(), testNow, testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewDialerRepo(db).InsertConversation(context.Background(), c))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertConversationError(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO conversations").WillReturnError(errors.New("duplicate key"))

	err := NewDialerRepo(db).InsertConversation(context.Background(), &domain.Conversation{ID: "x"})
	assert.ErrorContains(t, err, "insert conversation")
}

func TestInsertCallLog(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO call_logs").
		WithArgs("log-1", "c1", "agent-1", "l1", "conv_1", "CA1", "+15551230001", "initiated", "boom", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewDialerRepo(db).InsertCallLog(context.Background(), &domain.CallLog{
		ID: "log-1", CampaignID: "c1", AgentID: "agent-1", LeadID: "l1",
		ExternalConversationID: "conv_1", CallSID: "CA1", ToNumber: "+15551230001",
		Status: "initiated", Error: "boom", CreatedAt: testNow,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkAttempted(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE campaign_leads\s+SET attempts = COALESCE\(attempts, 0\) \+ 1`).
		WithArgs("c1", "l1", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE campaign_leads`).
		WithArgs("c1", "missing", testNow).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewDialerRepo(db)
	require.NoError(t, repo.MarkAttempted(context.Background(), "c1", "l1", testNow))
	assert.Error(t, repo.MarkAttempted(context.Background(), "c1", "missing", testNow))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTouchLead(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE leads SET last_activity_at`).
		WithArgs("l1", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewDialerRepo(db).TouchLead(context.Background(), "l1", testNow))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPending(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	since := testNow.Add(-48 * time.Hour)
	cols := []string{
		"id", "campaign_id", "agent_id", "lead_id", "external_conversation_id", "call_sid",
		"status", "outcome", "transcript", "sentiment_score", "key_points",
		"started_at", "ended_at", "duration_seconds", "created_at", "updated_at",
	}
	rows := sqlmock.NewRows(cols).
		AddRow("conv-1", "c1", "agent-1", "l1", "ext-1", "CA1", "initiated", nil, nil, nil, nil,
			testNow, nil, nil, testNow, testNow).
		AddRow("conv-2", "c1", "agent-1", "l2", "ext-2", nil, "completed", "pledged", "agent: hi", 0.5, "{hi,\"thanks, bye\"}",
			testNow, testNow, 42, testNow, testNow)

	mock.ExpectQuery(`FROM conversations\s+WHERE \(status IN \('initiated', 'in_progress'\).*ORDER BY updated_at ASC\s+LIMIT \$2`).
		WithArgs(since, 10).
		WillReturnRows(rows)

	got, err := NewConversationRepo(db).ListPending(context.Background(), since, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Nil(t, got[0].Outcome)
	assert.Nil(t, got[0].Transcript)
	assert.Nil(t, got[0].KeyPoints)
	require.NotNil(t, got[0].ExternalConversationID)
	assert.Equal(t, "ext-1", *got[0].ExternalConversationID)

	require.NotNil(t, got[1].Outcome)
	assert.Equal(t, domain.OutcomePledged, *got[1].Outcome)
	assert.Nil(t, got[1].CallSID)
	assert.Equal(t, []string{"hi", "thanks, bye"}, got[1].KeyPoints)
	require.NotNil(t, got[1].DurationSeconds)
	assert.Equal(t, 42, *got[1].DurationSeconds)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendEvents(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	agentText, userText := "Hello", "Hi"
	evs := []domain.ConversationEvent{
		{ID: "e1", ConversationID: "conv-1", SequenceNumber: 1, EventType: domain.EventAgentMessage, AgentText: &agentText, StartedAt: testNow},
		{ID: "e2", ConversationID: "conv-1", SequenceNumber: 2, EventType: domain.EventUserMessage, UserResponse: &userText, StartedAt: testNow},
	}
	mock.ExpectExec(`INSERT INTO conversation_events .* VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7\), \(\$8, .*\$14\)\s+ON CONFLICT \(conversation_id, sequence_number\) DO NOTHING`).
		WithArgs("e1", "conv-1", 1, "agent_message", sqlmock.AnyArg(), sqlmock.AnyArg(), testNow,
			"e2", "conv-1", 2, "user_message", sqlmock.AnyArg(), sqlmock.AnyArg(), testNow).
		WillReturnResult(sqlmock.NewResult(0, 2))

	repo := NewConversationRepo(db)
	require.NoError(t, repo.AppendEvents(context.Background(), evs))
	require.NoError(t, repo.AppendEvents(context.Background(), nil), "empty batch skips the store")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountEvents(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM conversation_events`).
		WithArgs("conv-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	n, err := NewConversationRepo(db).CountEvents(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestUpdateConversationPartial(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	status := domain.ConversationCompleted
	outcome := domain.OutcomePledged
	kp := []string{"I'll pledge $50"}
	mock.ExpectExec(`UPDATE conversations SET status = \$1, outcome = COALESCE\(outcome, \$2\), key_points = \$3, updated_at = NOW\(\) WHERE id = \$4`).
		WithArgs("completed", "pledged", pq.Array(kp), "conv-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewConversationRepo(db).UpdateConversation(context.Background(), "conv-1", reconciler.ConversationUpdate{
		Status: &status, Outcome: &outcome, KeyPoints: kp,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateConversationTouchOnly(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE conversations SET updated_at = NOW\(\) WHERE id = \$1`).
		WithArgs("conv-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE conversations SET updated_at = NOW\(\) WHERE id = \$1`).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewConversationRepo(db)
	require.NoError(t, repo.UpdateConversation(context.Background(), "conv-1", reconciler.ConversationUpdate{}))
	assert.ErrorIs(t, repo.UpdateConversation(context.Background(), "gone", reconciler.ConversationUpdate{}),
		reconciler.ErrConversationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetCampaignLeadStatus(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE campaign_leads SET status = \$3`).
		WithArgs("c1", "l1", "pledged").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewConversationRepo(db).SetCampaignLeadStatus(context.Background(), "c1", "l1", domain.LeadPledged))
	assert.NoError(t, mock.ExpectationsWereMet())
}
