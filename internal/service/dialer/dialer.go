package dialer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/fundraise-dialer/internal/domain"
	"github.com/ignite/fundraise-dialer/internal/events"
	"github.com/ignite/fundraise-dialer/internal/pkg/logger"
	"github.com/ignite/fundraise-dialer/internal/voice"
)

// DefaultCampaignBatchLimit bounds how many campaigns one tick visits.
const DefaultCampaignBatchLimit = 10

// Campaign skip reasons reported in CampaignResult.Skipped.
const (
	SkipNotTickable    = "not_tickable"
	SkipQuotaError     = "quota_error"
	SkipQuotaExhausted = "quota_exhausted"
	SkipNoAgent        = "no_agent"
	SkipNoCallerID     = "no_caller_id"
	SkipBadWindow      = "invalid_call_window"
	SkipSelectError    = "select_error"
)

// CallPlacer places one outbound call. *voice.Client satisfies it.
type CallPlacer interface {
	PlaceOutboundCall(ctx context.Context, in voice.OutboundCallRequest) (*voice.OutboundCallResult, error)
}

// Options configures a Dialer.
type Options struct {
	CampaignBatchLimit int
	// DefaultPhoneNumberID is used for agents without their own provider
	// phone number id.
	DefaultPhoneNumberID string
}

// TickResult summarizes one dialer tick.
type TickResult struct {
	StartedAt          time.Time        `json:"started_at"`
	CampaignsProcessed int              `json:"campaigns_processed"`
	CampaignsSkipped   int              `json:"campaigns_skipped"`
	CallsPlaced        int              `json:"calls_placed"`
	DispatchFailures   int              `json:"dispatch_failures"`
	OutsideWindow      int              `json:"outside_window"`
	BookkeepingErrors  int              `json:"bookkeeping_errors"`
	Unrecorded         int              `json:"unrecorded"`
	Campaigns          []CampaignResult `json:"campaigns"`
}

// CampaignResult summarizes one campaign within a tick.
type CampaignResult struct {
	CampaignID       string `json:"campaign_id"`
	Skipped          string `json:"skipped,omitempty"`
	Quota            int    `json:"quota"`
	Selected         int    `json:"selected"`
	OutsideWindow    int    `json:"outside_window"`
	CallsPlaced      int    `json:"calls_placed"`
	DispatchFailures int    `json:"dispatch_failures"`
}

// Dialer runs the per-tick campaign dialing pass. It holds no state between
// ticks.
type Dialer struct {
	repo       Repository
	quota      *QuotaTracker
	selector   *Selector
	recorder   *Recorder
	caller     CallPlacer
	disclosure *DisclosureRenderer
	publisher  events.Publisher
	opts       Options
}

// NewDialer creates a dialer over the repository and call placer.
func NewDialer(repo Repository, caller CallPlacer, opts Options) *Dialer {
	if opts.CampaignBatchLimit <= 0 {
		opts.CampaignBatchLimit = DefaultCampaignBatchLimit
	}
	return &Dialer{
		repo:       repo,
		quota:      NewQuotaTracker(repo),
		selector:   NewSelector(repo),
		recorder:   NewRecorder(repo),
		caller:     caller,
		disclosure: NewDisclosureRenderer(),
		publisher:  events.NopPublisher{},
		opts:       opts,
	}
}

// SetPublisher sets the event publisher for dispatched calls.
func (d *Dialer) SetPublisher(p events.Publisher) {
	if p == nil {
		p = events.NopPublisher{}
	}
	d.publisher = p
}

// Tick runs one dialing pass at now. Only a failure to list campaigns is
// returned as an error; campaign and lead level problems are logged and
// reported in the result.
func (d *Dialer) Tick(ctx context.Context, now time.Time) (*TickResult, error) {
	result := &TickResult{StartedAt: now}

	campaigns, err := d.repo.ListTickableCampaigns(ctx, now, d.opts.CampaignBatchLimit)
	if err != nil {
		logger.Error("dialer tick aborted: cannot list campaigns", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	for i := range campaigns {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		c := &campaigns[i]
		cr := d.processCampaign(ctx, c, now, result)
		result.Campaigns = append(result.Campaigns, cr)
		if cr.Skipped != "" {
			result.CampaignsSkipped++
		} else {
			result.CampaignsProcessed++
		}
	}

	logger.Info("dialer tick complete",
		"campaigns", len(campaigns),
		"skipped", result.CampaignsSkipped,
		"calls_placed", result.CallsPlaced,
		"dispatch_failures", result.DispatchFailures,
		"outside_window", result.OutsideWindow)
	return result, nil
}

func (d *Dialer) processCampaign(ctx context.Context, c *domain.Campaign, now time.Time, tick *TickResult) CampaignResult {
	cr := CampaignResult{CampaignID: c.ID}

	if !c.IsTickable(now) {
		cr.Skipped = SkipNotTickable
		return cr
	}

	quota, err := d.quota.Remaining(ctx, c.ID, c.DailyCallCap, now)
	if err != nil {
		logger.Error("quota check failed, skipping campaign", "campaign_id", c.ID, "error", err)
		cr.Skipped = SkipQuotaError
		return cr
	}
	cr.Quota = quota
	if quota == 0 {
		logger.Info("daily cap reached, skipping campaign", "campaign_id", c.ID, "daily_call_cap", c.DailyCallCap)
		cr.Skipped = SkipQuotaExhausted
		return cr
	}

	agent, phoneNumberID, err := d.resolveAgent(ctx, c)
	if err != nil {
		logger.Warn("campaign has no dialable agent, skipping", "campaign_id", c.ID, "agent_id", c.AgentID, "error", err)
		if errors.Is(err, ErrNoCallerID) || errors.Is(err, ErrNoPhoneNumberID) {
			cr.Skipped = SkipNoCallerID
		} else {
			cr.Skipped = SkipNoAgent
		}
		return cr
	}

	if err := ValidateCallWindow(c); err != nil {
		logger.Warn("campaign call window rejected, skipping", "campaign_id", c.ID, "error", err)
		cr.Skipped = SkipBadWindow
		return cr
	}

	sel, err := d.selector.Select(ctx, c, quota, now)
	if err != nil {
		logger.Error("lead selection failed, skipping campaign", "campaign_id", c.ID, "error", err)
		cr.Skipped = SkipSelectError
		return cr
	}
	cr.Selected = len(sel.Eligible)
	cr.OutsideWindow = sel.OutsideWindow
	tick.OutsideWindow += sel.OutsideWindow

	for _, lead := range sel.Eligible {
		if ctx.Err() != nil {
			break
		}
		if d.dialLead(ctx, c, agent, phoneNumberID, lead, now, tick) {
			cr.CallsPlaced++
		} else {
			cr.DispatchFailures++
		}
	}
	return cr
}

func (d *Dialer) resolveAgent(ctx context.Context, c *domain.Campaign) (*domain.Agent, string, error) {
	if c.AgentID == "" {
		return nil, "", ErrAgentNotFound
	}
	agent, err := d.repo.GetAgent(ctx, c.AgentID)
	if err != nil {
		return nil, "", err
	}
	if agent.CallerID == "" {
		return nil, "", ErrNoCallerID
	}
	phoneNumberID := agent.PhoneNumberID
	if phoneNumberID == "" {
		phoneNumberID = d.opts.DefaultPhoneNumberID
	}
	if phoneNumberID == "" {
		return nil, "", ErrNoPhoneNumberID
	}
	return agent, phoneNumberID, nil
}

// dialLead places one call and records it. It reports whether the dispatch
// succeeded; bookkeeping problems after a successful dispatch still count as
// a placed call.
func (d *Dialer) dialLead(ctx context.Context, c *domain.Campaign, agent *domain.Agent,
	phoneNumberID string, lead domain.EnrichedLead, now time.Time, tick *TickResult) bool {

	req := d.buildCallRequest(c, agent, phoneNumberID, lead)
	call, err := d.caller.PlaceOutboundCall(ctx, req)
	if err != nil {
		tick.DispatchFailures++
		var apiErr *voice.APIError
		if errors.As(err, &apiErr) {
			logger.Error("outbound call rejected", "campaign_id", c.ID, "lead_id", lead.LeadID,
				"status", apiErr.StatusCode, "body", apiErr.Body)
		} else {
			logger.Error("outbound call failed", "campaign_id", c.ID, "lead_id", lead.LeadID, "error", err)
		}
		return false
	}

	tick.CallsPlaced++
	rec := d.recorder.Record(ctx, c, agent, lead, call, now)
	tick.BookkeepingErrors += len(rec.Errors)
	if !rec.Durable() {
		tick.Unrecorded++
	}

	logger.Info("call dispatched", "campaign_id", c.ID, "lead_id", lead.LeadID,
		"to", lead.Lead.Phone, "attempt_no", req.ClientData.DynamicVariables.AttemptNo,
		"external_conversation_id", call.ConversationID, "conversation_id", rec.ConversationID)

	ev := events.Event{
		Type:           events.TypeCallDispatched,
		OccurredAt:     now,
		CampaignID:     c.ID,
		LeadID:         lead.LeadID,
		ConversationID: rec.ConversationID,
		Data: map[string]interface{}{
			"external_conversation_id": call.ConversationID,
			"call_sid":                 call.CallSID,
			"attempt_no":               req.ClientData.DynamicVariables.AttemptNo,
		},
	}
	if err := d.publisher.Publish(ctx, ev); err != nil {
		logger.Warn("publish call.dispatched failed", "campaign_id", c.ID, "lead_id", lead.LeadID, "error", err)
	}
	return true
}

func (d *Dialer) buildCallRequest(c *domain.Campaign, agent *domain.Agent, phoneNumberID string, lead domain.EnrichedLead) voice.OutboundCallRequest {
	name := lead.Lead.FullName()
	donor := lead.Lead.FirstName
	if donor == "" {
		donor = name
	}

	disclosure := d.disclosure.Render(c.DisclosureLine, map[string]interface{}{
		"donor_name":    donor,
		"name":          name,
		"company":       lead.Lead.Company,
		"campaign_name": c.Name,
		"goal_metric":   c.GoalMetric,
		"caller_id":     agent.CallerID,
	})

	externalAgent := agent.ExternalAgentID
	if externalAgent == "" {
		externalAgent = agent.ID
	}

	return voice.OutboundCallRequest{
		AgentID:            externalAgent,
		AgentPhoneNumberID: phoneNumberID,
		ToNumber:           lead.Lead.Phone,
		ClientData: voice.ClientData{DynamicVariables: voice.DynamicVariables{
			DonorName:      donor,
			CampaignName:   c.Name,
			DisclosureLine: disclosure,
			GoalMetric:     c.GoalMetric,
			CampaignID:     c.ID,
			AgentID:        agent.ID,
			LeadID:         lead.LeadID,
			AttemptNo:      lead.Attempts + 1,
			CallerID:       agent.CallerID,
			Name:           name,
			Company:        lead.Lead.Company,
		}},
	}
}
