package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var clockRegex = regexp.MustCompile(`^([0-1][0-9]|2[0-3]):([0-5][0-9])$`)

// NumericValue converts a raw cell value into the number the formula engine
// consumes. Clock strings ("HH:MM", 24h) become minutes since midnight, other
// numeric strings parse as floats, finite float64 passes through. Checkboxes,
// free text and nil have no numeric reading.
func NumericValue(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	case int:
		return float64(v), true
	case string:
		return numericString(v)
	default:
		return 0, false
	}
}

func numericString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if m := clockRegex.FindStringSubmatch(s); m != nil {
		hours, _ := strconv.Atoi(m[1])
		minutes, _ := strconv.Atoi(m[2])
		return float64(hours*60 + minutes), true
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Snapshot builds the formula engine's value map for one section of a day.
// Every time and number field of the section appears as a key, so formulas
// always see their dependencies as known names; fields without a numeric
// reading map to nil and poison any formula referencing them. A nil record
// (nothing entered that day) yields an all-nil snapshot.
func Snapshot(rec *DayRecord, sec Section) map[string]*float64 {
	values := make(map[string]*float64, len(sec.Fields))

	for _, f := range sec.Fields {
		if f.Type != FieldTypeTime && f.Type != FieldTypeNumber {
			continue
		}
		values[f.Name] = nil
		if rec == nil {
			continue
		}
		raw, ok := rec.FieldValue(sec.Name, f.Name)
		if !ok {
			continue
		}
		if n, ok := NumericValue(raw); ok {
			v := n
			values[f.Name] = &v
		}
	}

	return values
}

// GoalChecks extracts a section's checkbox states. Every checkbox field
// appears as a key; only a stored boolean true counts as checked.
func GoalChecks(rec *DayRecord, sec Section) map[string]bool {
	checks := make(map[string]bool, len(sec.Fields))

	for _, f := range sec.Fields {
		if f.Type != FieldTypeCheckbox {
			continue
		}
		checked := false
		if rec != nil {
			if raw, ok := rec.FieldValue(sec.Name, f.Name); ok {
				checked, _ = raw.(bool)
			}
		}
		checks[f.Name] = checked
	}

	return checks
}

// MonthGoalStates merges the schema's monthly goal list with a month's
// stored state. Every goal defined by the schema appears as a key, so an
// untouched goal still counts against the monthly ratio; stored names no
// longer in the schema are kept, they reflect what the user actually checked
// under an older layout.
func MonthGoalStates(m *MonthRecord, sec Section) map[string]bool {
	states := make(map[string]bool, len(sec.Fields))

	for _, f := range sec.Fields {
		if f.Type == FieldTypeCheckbox {
			states[f.Name] = false
		}
	}
	if m != nil {
		for name, done := range m.Goals {
			states[name] = done
		}
	}

	return states
}
