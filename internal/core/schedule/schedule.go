// Package schedule decides on which calendar dates a schema field is active.
//
// A field may carry a schedule descriptor restricting it to certain weekdays,
// a fixed-interval cadence, or an explicit date list. Absent descriptors mean
// "every day". Malformed descriptors fail open (treated as every day) with
// one exception: a weekdays schedule without its day set fails closed, since
// guessing days would silently count goals the user never picked.
package schedule

import (
	"fmt"
	"strings"
	"time"
)

const (
	KindEveryday = "everyday"
	KindWeekdays = "weekdays"
	KindInterval = "interval"
	KindDates    = "dates"
)

// Schedule is the tagged descriptor stored inside schema documents. Only the
// fields relevant to Kind are set; the rest stay at their zero values.
type Schedule struct {
	Kind  string   `json:"type"`
	Days  []int    `json:"days,omitempty"`       // 0=Sunday .. 6=Saturday
	Start string   `json:"start_date,omitempty"` // YYYY-MM-DD
	Every int      `json:"every,omitempty"`
	Dates []string `json:"dates,omitempty"` // YYYY-MM-DD keys
}

var dayAbbrev = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// ActiveOn reports whether the schedule covers the given civil date.
// A nil receiver is an absent descriptor and covers every date.
func (s *Schedule) ActiveOn(year int, month time.Month, day int) bool {
	if s == nil {
		return true
	}

	switch s.Kind {
	case KindWeekdays:
		// time.Weekday already numbers Sunday as 0.
		weekday := int(time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Weekday())
		for _, d := range s.Days {
			if d == weekday {
				return true
			}
		}
		return false

	case KindInterval:
		if s.Every < 1 {
			return true
		}
		startYear, startMonth, startDay, ok := ParseDateKey(s.Start)
		if !ok {
			return true
		}
		start := time.Date(startYear, startMonth, startDay, 0, 0, 0, 0, time.UTC)
		target := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		diff := int(target.Sub(start) / (24 * time.Hour))
		return diff >= 0 && diff%s.Every == 0

	case KindDates:
		if s.Dates == nil {
			return true
		}
		key := DateKey(year, month, day)
		for _, d := range s.Dates {
			if d == key {
				return true
			}
		}
		return false

	default:
		// everyday, empty or unrecognized kinds all cover every date.
		return true
	}
}

// Describe renders the schedule for display in the schema editor.
func (s *Schedule) Describe() string {
	if s == nil {
		return "Every day"
	}

	switch s.Kind {
	case KindWeekdays:
		var picked [7]bool
		count := 0
		for _, d := range s.Days {
			if d >= 0 && d <= 6 && !picked[d] {
				picked[d] = true
				count++
			}
		}
		if count == 0 {
			return "No days selected"
		}
		if count == 7 {
			return "Every day"
		}
		parts := make([]string, 0, count)
		for i, on := range picked {
			if on {
				parts = append(parts, dayAbbrev[i])
			}
		}
		return strings.Join(parts, ", ")

	case KindInterval:
		if s.Every <= 1 {
			return "Every day"
		}
		return fmt.Sprintf("Every %d days", s.Every)

	case KindDates:
		switch n := len(s.Dates); n {
		case 0:
			return "No dates"
		case 1:
			return "1 specific date"
		default:
			return fmt.Sprintf("%d specific dates", n)
		}

	default:
		return "Every day"
	}
}

// DateKey formats a civil date as the canonical zero-padded YYYY-MM-DD
// identifier used at every storage and sync boundary.
func DateKey(year int, month time.Month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, int(month), day)
}

// ParseDateKey is the inverse of DateKey. ok is false for anything that is
// not a valid zero-padded calendar date.
func ParseDateKey(key string) (year int, month time.Month, day int, ok bool) {
	t, err := time.Parse("2006-01-02", key)
	if err != nil {
		return 0, 0, 0, false
	}
	return t.Year(), t.Month(), t.Day(), true
}
