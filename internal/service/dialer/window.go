package dialer

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ignite/fundraise-dialer/internal/domain"
)

var locationCache sync.Map // map[string]*time.Location

// leadLocation resolves an IANA zone name, falling back to UTC for empty or
// unknown names.
func leadLocation(tz string) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.UTC
	}
	if loc, ok := locationCache.Load(tz); ok {
		return loc.(*time.Location)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	locationCache.Store(tz, loc)
	return loc
}

// ParseClock parses "HH:MM" or "HH:MM:SS" into minutes after midnight.
// Seconds are accepted for TIME columns and ignored.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCallWindow, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: bad hour in %q", ErrInvalidCallWindow, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: bad minute in %q", ErrInvalidCallWindow, s)
	}
	return h*60 + m, nil
}

// callWindow returns the campaign window bounds in minutes after midnight.
// ok is false when the campaign has no window.
func callWindow(c *domain.Campaign) (start, end int, ok bool, err error) {
	if !c.HasCallWindow() {
		return 0, 0, false, nil
	}
	if start, err = ParseClock(*c.CallWindowStart); err != nil {
		return 0, 0, false, err
	}
	if end, err = ParseClock(*c.CallWindowEnd); err != nil {
		return 0, 0, false, err
	}
	return start, end, true, nil
}

// ValidateCallWindow rejects unparsable windows and windows that wrap past
// midnight (start after end).
func ValidateCallWindow(c *domain.Campaign) error {
	start, end, ok, err := callWindow(c)
	if err != nil || !ok {
		return err
	}
	if start > end {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidCallWindow,
			*c.CallWindowStart, *c.CallWindowEnd)
	}
	return nil
}

// InCallWindow reports whether now, seen in the lead's timezone, falls inside
// the campaign's call window on the same calendar day. Both bounds are
// inclusive at minute resolution. Campaigns without a window always pass;
// invalid windows never do.
func InCallWindow(c *domain.Campaign, timezone string, now time.Time) bool {
	start, end, ok, err := callWindow(c)
	if err != nil {
		return false
	}
	if !ok {
		return true
	}
	if start > end {
		return false
	}

	local := now.In(leadLocation(timezone))
	minute := local.Hour()*60 + local.Minute()
	return minute >= start && minute <= end
}
