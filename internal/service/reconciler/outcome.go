package reconciler

import (
	"regexp"
	"strings"

	"github.com/ignite/fundraise-dialer/internal/domain"
	"github.com/ignite/fundraise-dialer/internal/voice"
)

// outcomeRule maps donor phrasing to an outcome. Rules are tried in order and
// the first match wins, so a donor who both pledges and mentions a past
// donation is classified as pledged. Commitment rules are negatable: a match
// preceded by a negation in the same clause does not count.
type outcomeRule struct {
	outcome   domain.Outcome
	negatable bool
	patterns  []*regexp.Regexp
}

// commit is the first-person commitment lead-in shared by pledge and
// donation phrasing.
const commit = `(i'll|i will|i can|i'd like to|i would like to|i want to|i'm going to|i am going to|let me|happy to|glad to|go ahead and)`

var outcomeRules = []outcomeRule{
	{
		outcome:   domain.OutcomePledged,
		negatable: true,
		patterns: compile(
			`\b`+commit+` (make a |go ahead and )?pledge\b`,
			`\bi pledge\b`,
			`\b(i'll|i will|i can|i'd like to|i would like to) (commit|give|put in)\b`,
			`\bput me down for\b`,
			`\bcount me in\b`,
			`\bsign me up\b`,
			`\bi promise\b`,
		),
	},
	{
		outcome:   domain.OutcomeDonated,
		negatable: true,
		patterns: compile(
			`\b`+commit+` (make a |go ahead and )?donat(e|ion)\b`,
			`\bi('ve| have)? (already |just )?(donated|contributed)\b`,
			`\b(already|just) (made|sent|gave) (a |my )?donation\b`,
			`\b(i'll|i will|i can|i want to) (contribute|chip in)\b`,
			`\b(already|just) (gave|paid|sent)\b`,
			`\bcharge my card\b`,
		),
	},
	{
		outcome: domain.OutcomeNotInterested,
		patterns: compile(
			`\bnot interested\b`,
			`\bno,? thank(s| you)\b`,
			`\b(don't|do not|stop) call(ing)?\b`,
			`\bremove me\b`,
			`\btake me off\b`,
			`\b(can't|cannot|can not) afford\b`,
			`\bnot (right )?now,? (thanks|thank you)\b`,
		),
	},
}

var negation = regexp.MustCompile(`\b(no|not|never|won't|can't|cannot|don't|doesn't|didn't|wouldn't|isn't|unable)\b`)

// negationWindow is how many words before a commitment phrase are checked
// for a negation.
const negationWindow = 4

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// negated reports whether a negation appears within negationWindow words
// before offset start, without crossing a clause boundary.
func negated(text string, start int) bool {
	prefix := text[:start]
	if i := strings.LastIndexAny(prefix, ".!?;,\n"); i >= 0 {
		prefix = prefix[i+1:]
	}
	words := strings.Fields(prefix)
	if len(words) > negationWindow {
		words = words[len(words)-negationWindow:]
	}
	return negation.MatchString(strings.Join(words, " "))
}

func (r outcomeRule) matches(text string) bool {
	for _, re := range r.patterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if !r.negatable || !negated(text, loc[0]) {
				return true
			}
		}
	}
	return false
}

// InferOutcome classifies a conversation from the donor's messages only.
// It returns OutcomeNone when nothing matches.
func InferOutcome(messages []voice.Message) domain.Outcome {
	var b strings.Builder
	for _, m := range messages {
		if !m.IsUser() {
			continue
		}
		b.WriteString(normalize(m.Content))
		b.WriteByte('\n')
	}
	text := b.String()
	if strings.TrimSpace(text) == "" {
		return domain.OutcomeNone
	}

	for _, rule := range outcomeRules {
		if rule.matches(text) {
			return rule.outcome
		}
	}
	return domain.OutcomeNone
}

// normalize lowercases and folds typographic apostrophes so "I’ll" matches.
func normalize(s string) string {
	s = strings.ToLower(s)
	return strings.NewReplacer("’", "'", "‘", "'").Replace(s)
}

// SentimentFor maps an outcome to a fixed sentiment score. Unknown outcomes
// have no score.
func SentimentFor(o domain.Outcome) *float64 {
	var v float64
	switch o {
	case domain.OutcomeDonated:
		v = 0.8
	case domain.OutcomePledged:
		v = 0.5
	case domain.OutcomeNotInterested:
		v = -0.5
	default:
		return nil
	}
	return &v
}

// leadStatusFor maps a conversation outcome onto the campaign lead status.
func leadStatusFor(o domain.Outcome) (domain.CampaignLeadStatus, bool) {
	switch o {
	case domain.OutcomePledged:
		return domain.LeadPledged, true
	case domain.OutcomeDonated:
		return domain.LeadDonated, true
	case domain.OutcomeNotInterested:
		return domain.LeadNotInterested, true
	}
	return "", false
}
