package intent

import (
	"testing"
	"time"
)

func TestParseReminderTime(t *testing.T) {
	morning := time.Date(2026, time.October, 14, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		in   string
		now  time.Time
		want time.Time
		ok   bool
	}{
		{"5pm", sixPM, time.Date(2026, time.October, 15, 17, 0, 0, 0, time.UTC), true},
		{"7:30 am", sixPM, time.Date(2026, time.October, 15, 7, 30, 0, 0, time.UTC), true},
		{"9", morning, time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC), true},
		{"12 am", morning, time.Date(2026, time.October, 15, 0, 0, 0, 0, time.UTC), true},
		{"12pm", morning, time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC), true},
		{"18:00", sixPM, sixPM, true},
		{"25", morning, time.Time{}, false},
		{"7:75", morning, time.Time{}, false},
		{"noon", morning, time.Time{}, false},
	}

	for _, tt := range tests {
		got, ok := ParseReminderTime(tt.in, tt.now)
		if ok != tt.ok {
			t.Errorf("ParseReminderTime(%q): expected ok=%v, got %v", tt.in, tt.ok, ok)
			continue
		}
		if ok && !got.Equal(tt.want) {
			t.Errorf("ParseReminderTime(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}
