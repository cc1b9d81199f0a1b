package dialer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ignite/fundraise-dialer/internal/domain"
)

const (
	// RetryBackoff is the fixed minimum gap between attempts on one lead.
	RetryBackoff = 24 * time.Hour

	// overFetchFactor pads the candidate fetch so the in-process DNC filter
	// can still fill the limit in the common case.
	overFetchFactor = 2
)

// Selection is the outcome of an eligibility pass for one campaign.
type Selection struct {
	// Eligible leads in dial order, all inside the call window.
	Eligible []domain.EnrichedLead
	// OutsideWindow counts ranked survivors skipped for this tick only.
	OutsideWindow int
}

// Selector filters, ranks and window-checks candidate leads.
type Selector struct {
	source CandidateSource
}

// NewSelector creates a selector reading candidates from source.
func NewSelector(source CandidateSource) *Selector {
	return &Selector{source: source}
}

// Select returns at most limit leads that may be dialed for the campaign now.
//
// The store is asked for 2*limit ranked candidates. The DNC filter runs in
// process after the fetch, so a campaign with many DNC leads can come back
// short of limit; that shortfall is accepted rather than re-fetched. The
// store predicates and ranking are re-applied here so every CandidateSource
// honors the same contract.
func (s *Selector) Select(ctx context.Context, c *domain.Campaign, limit int, now time.Time) (*Selection, error) {
	sel := &Selection{}
	if limit <= 0 {
		return sel, nil
	}

	candidates, err := s.source.ListCandidateLeads(ctx, CandidateQuery{
		CampaignID:      c.ID,
		MaxAttempts:     c.MaxAttempts,
		AttemptedBefore: now.Add(-RetryBackoff),
		Limit:           limit * overFetchFactor,
	})
	if err != nil {
		return nil, fmt.Errorf("list candidate leads: %w", err)
	}

	filtered := make([]domain.EnrichedLead, 0, len(candidates))
	for _, cand := range candidates {
		if isEligible(c, cand, now) {
			filtered = append(filtered, cand)
		}
	}
	RankLeads(filtered)
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	for _, cand := range filtered {
		if !InCallWindow(c, cand.Lead.Timezone, now) {
			sel.OutsideWindow++
			continue
		}
		sel.Eligible = append(sel.Eligible, cand)
	}
	return sel, nil
}

// isEligible applies the status, attempt budget, backoff and DNC filters.
func isEligible(c *domain.Campaign, l domain.EnrichedLead, now time.Time) bool {
	if l.Status == domain.LeadPledged {
		return false
	}
	if l.Attempts >= c.MaxAttempts {
		return false
	}
	if l.LastAttemptAt != nil && l.LastAttemptAt.After(now.Add(-RetryBackoff)) {
		return false
	}
	if c.ExcludeDNC && l.Lead.DoNotCall {
		return false
	}
	return true
}

// RankLeads sorts leads in dial order: quality_rating desc, lead_score desc
// with unscored leads first, then last_attempt_at asc with never-attempted
// leads first.
func RankLeads(leads []domain.EnrichedLead) {
	sort.SliceStable(leads, func(i, j int) bool {
		return rankLess(leads[i], leads[j])
	})
}

func rankLess(a, b domain.EnrichedLead) bool {
	if a.Lead.QualityRating != b.Lead.QualityRating {
		return a.Lead.QualityRating > b.Lead.QualityRating
	}

	as, bs := a.Lead.LeadScore, b.Lead.LeadScore
	if (as == nil) != (bs == nil) {
		return as == nil
	}
	if as != nil && *as != *bs {
		return *as > *bs
	}

	at, bt := a.LastAttemptAt, b.LastAttemptAt
	if (at == nil) != (bt == nil) {
		return at == nil
	}
	if at != nil && !at.Equal(*bt) {
		return at.Before(*bt)
	}
	return false
}
