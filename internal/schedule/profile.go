package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var clockRe = regexp.MustCompile(`^([0-1][0-9]|2[0-3]):[0-5][0-9]$`)

// Window is a same-day quiet range [Start, End) in local "HH:MM".
type Window struct {
	Start string
	End   string
}

// Profile is the read-only scheduling view of a user's preferences.
// Validation happens at the preference-update boundary; the calculator
// assumes well-formed values and falls back to UTC for bad timezones.
type Profile struct {
	Timezone   string
	SleepStart string // "HH:MM", may wrap past midnight relative to SleepEnd
	SleepEnd   string
	QuietHours []Window
	Frequency  time.Duration
}

func (p Profile) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParseClock converts "HH:MM" into minutes since local midnight.
func ParseClock(s string) (int, error) {
	if !clockRe.MatchString(s) {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	parts := strings.SplitN(s, ":", 2)
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	return h*60 + m, nil
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
