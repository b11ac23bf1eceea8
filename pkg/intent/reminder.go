package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var clockRe = regexp.MustCompile(`(?i)^(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)

// UnclearReminderTime is the reply for a reminder whose time cannot be parsed. It takes the
// spoken time.
const UnclearReminderTime = "I couldn't understand the time '%s'. Please say something like 5pm or 7:30 am."

// ParseReminderTime turns "5pm", "7:30 am" or "17:00" into the next occurrence of that
// time of day at or after now, in now's location.
func ParseReminderTime(s string, now time.Time) (time.Time, bool) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	minute := 0
	if m[2] != "" {
		if minute, err = strconv.Atoi(m[2]); err != nil {
			return time.Time{}, false
		}
	}

	switch strings.ToLower(m[3]) {
	case "pm":
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return time.Time{}, false
	}

	at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if at.Before(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at, true
}
