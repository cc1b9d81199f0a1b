package dialer

import (
	"context"
	"fmt"
	"time"
)

// QuotaTracker computes the remaining daily dial allowance of a campaign.
type QuotaTracker struct {
	counter ConversationCounter
}

// NewQuotaTracker creates a quota tracker over the given counter.
func NewQuotaTracker(counter ConversationCounter) *QuotaTracker {
	return &QuotaTracker{counter: counter}
}

// Remaining returns max(0, dailyCap - conversations created since the start
// of the UTC day containing now). A cap of zero or less means the campaign is
// fully throttled, not unlimited, and the store is not consulted.
func (q *QuotaTracker) Remaining(ctx context.Context, campaignID string, dailyCap int, now time.Time) (int, error) {
	if dailyCap <= 0 {
		return 0, nil
	}

	used, err := q.counter.CountConversationsSince(ctx, campaignID, StartOfUTCDay(now))
	if err != nil {
		return 0, fmt.Errorf("count conversations today: %w", err)
	}

	if remaining := dailyCap - used; remaining > 0 {
		return remaining, nil
	}
	return 0, nil
}

// StartOfUTCDay truncates t to midnight UTC.
func StartOfUTCDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
