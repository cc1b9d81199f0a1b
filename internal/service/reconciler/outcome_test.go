package reconciler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/fundraise-dialer/internal/domain"
	"github.com/ignite/fundraise-dialer/internal/voice"
)

func userSays(lines ...string) []voice.Message {
	msgs := []voice.Message{{Role: "agent", Content: "Would you like to pledge or donate today? If not interested just say so."}}
	for _, l := range lines {
		msgs = append(msgs, voice.Message{Role: "user", Content: l})
	}
	return msgs
}

func TestInferOutcome(t *testing.T) {
	tests := []struct {
		reply string
		want  domain.Outcome
	}{
		{"Yes, I'll pledge $50", domain.OutcomePledged},
		{"I’ll commit to twenty a month", domain.OutcomePledged},
		{"Sure, count me in.", domain.OutcomePledged},
		{"I can donate 100 dollars", domain.OutcomeDonated},
		{"I already gave last week", domain.OutcomeDonated},
		{"not interested, thanks", domain.OutcomeNotInterested},
		{"No thank you.", domain.OutcomeNotInterested},
		{"Please stop calling me", domain.OutcomeNotInterested},
		{"maybe later", domain.OutcomeNone},
		{"", domain.OutcomeNone},
	}
	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			assert.Equal(t, tt.want, InferOutcome(userSays(tt.reply)))
		})
	}
}

func TestInferOutcomeNegatedCommitments(t *testing.T) {
	tests := []struct {
		reply string
		want  domain.Outcome
	}{
		{"No, I'm not interested in pledging anything.", domain.OutcomeNotInterested},
		{"I won't donate, please stop calling me.", domain.OutcomeNotInterested},
		{"What exactly is a pledge?", domain.OutcomeNone},
		{"I can't afford to donate right now.", domain.OutcomeNotInterested},
		{"I don't think I'll pledge this year", domain.OutcomeNone},
		{"Not sure I want to donate", domain.OutcomeNone},
		{"I never said I would like to give anything", domain.OutcomeNone},
		{"Tell me more about donations first", domain.OutcomeNone},
		{"No, I'll donate online instead", domain.OutcomeDonated},
		{"Put me down for $40", domain.OutcomePledged},
		{"I'd like to make a donation, not a pledge", domain.OutcomeDonated},
	}
	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			assert.Equal(t, tt.want, InferOutcome(userSays(tt.reply)))
		})
	}
}

func TestNegated(t *testing.T) {
	text := "i don't think i'll pledge. yes, i'll pledge"
	first := strings.Index(text, "i'll pledge")
	last := strings.LastIndex(text, "i'll pledge")
	assert.True(t, negated(text, first))
	assert.False(t, negated(text, last))
	assert.Equal(t, domain.OutcomePledged, InferOutcome(userSays("I don't think I'll pledge. Yes, I'll pledge")))
}

func TestInferOutcomeIgnoresAgentText(t *testing.T) {
	assert.Equal(t, domain.OutcomeNone, InferOutcome(userSays("who is this?")))
}

func TestInferOutcomeRuleOrder(t *testing.T) {
	got := InferOutcome(userSays("I donated before and I'll pledge again"))
	assert.Equal(t, domain.OutcomePledged, got)
}

func TestKeyPoints(t *testing.T) {
	msgs := []voice.Message{
		{Role: "agent", Content: "a1"},
		{Role: "user", Content: "u1"},
		{Role: "agent", Content: "  "},
		{Role: "user", Content: "u2"},
		{Role: "user", Content: "u3"},
		{Role: "user", Content: "u4"},
		{Role: "agent", Content: "a2"},
		{Role: "agent", Content: "a3"},
	}
	assert.Equal(t, []string{"u1", "u2", "u3", "a1", "u4"}, KeyPoints(msgs))

	long := strings.Repeat("x", 250)
	kp := KeyPoints([]voice.Message{{Role: "user", Content: long}})
	assert.Len(t, kp[0], 200)

	assert.Equal(t, []string{""}, KeyPoints([]voice.Message{{Role: "agent", Content: ""}}))
	assert.Nil(t, KeyPoints(nil))
}

func TestBuildTranscript(t *testing.T) {
	got := BuildTranscript([]voice.Message{
		{Role: "agent", Content: "Hello"},
		{Role: "user", Content: "Hi"},
	})
	assert.Equal(t, "agent: Hello\nuser: Hi", got)
}

func TestNextStatus(t *testing.T) {
	withUser := userSays("hi")

	s, ok := nextStatus(domain.ConversationInitiated, domain.OutcomeNone, withUser)
	assert.True(t, ok)
	assert.Equal(t, domain.ConversationInProgress, s)

	s, ok = nextStatus("", domain.OutcomeNone, withUser)
	assert.True(t, ok)
	assert.Equal(t, domain.ConversationInProgress, s)

	_, ok = nextStatus(domain.ConversationInitiated, domain.OutcomeNone, []voice.Message{{Role: "agent", Content: "hello?"}})
	assert.False(t, ok)

	s, ok = nextStatus(domain.ConversationInProgress, domain.OutcomePledged, withUser)
	assert.True(t, ok)
	assert.Equal(t, domain.ConversationCompleted, s)

	_, ok = nextStatus(domain.ConversationCompleted, domain.OutcomeNone, withUser)
	assert.False(t, ok)

	_, ok = nextStatus(domain.ConversationVoicemail, domain.OutcomePledged, withUser)
	assert.False(t, ok)
}

func TestSentimentFor(t *testing.T) {
	assert.Equal(t, 0.8, *SentimentFor(domain.OutcomeDonated))
	assert.Equal(t, 0.5, *SentimentFor(domain.OutcomePledged))
	assert.Equal(t, -0.5, *SentimentFor(domain.OutcomeNotInterested))
	assert.Nil(t, SentimentFor(domain.OutcomeNone))
}
