package reconciler

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ignite/fundraise-dialer/internal/voice"
)

const (
	// MaxTranscriptChars caps the stored transcript length.
	MaxTranscriptChars = 15000

	maxKeyPoints     = 5
	maxUserKeyPoints = 3
	maxKeyPointChars = 200
)

// BuildTranscript joins messages as "role: content" lines, truncated to
// MaxTranscriptChars characters.
func BuildTranscript(messages []voice.Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, m.Role+": "+m.Content)
	}
	return truncateChars(strings.Join(lines, "\n"), MaxTranscriptChars)
}

// KeyPoints picks up to five non-empty messages, up to three of them from
// the donor first, then the remaining messages in order. Each point is
// truncated to 200 characters. With no non-empty message it falls back to
// the first message.
func KeyPoints(messages []voice.Message) []string {
	if len(messages) == 0 {
		return nil
	}

	picked := make(map[int]bool)
	var points []string
	add := func(i int) {
		picked[i] = true
		points = append(points, truncateChars(strings.TrimSpace(messages[i].Content), maxKeyPointChars))
	}

	for i, m := range messages {
		if len(points) == maxUserKeyPoints {
			break
		}
		if m.IsUser() && strings.TrimSpace(m.Content) != "" {
			add(i)
		}
	}
	for i, m := range messages {
		if len(points) == maxKeyPoints {
			break
		}
		if !picked[i] && strings.TrimSpace(m.Content) != "" {
			add(i)
		}
	}

	if len(points) == 0 {
		return []string{truncateChars(messages[0].Content, maxKeyPointChars)}
	}
	return points
}

// lastMessageTime returns the latest non-zero message timestamp.
func lastMessageTime(messages []voice.Message) (time.Time, bool) {
	var last time.Time
	for _, m := range messages {
		if m.Timestamp.After(last) {
			last = m.Timestamp.Time
		}
	}
	return last, !last.IsZero()
}

// durationSeconds measures from start to the last message, floored at zero.
func durationSeconds(start, last time.Time) int {
	d := int(last.Sub(start) / time.Second)
	if d < 0 {
		return 0
	}
	return d
}

func userMessageCount(messages []voice.Message) int {
	n := 0
	for _, m := range messages {
		if m.IsUser() {
			n++
		}
	}
	return n
}

func truncateChars(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
