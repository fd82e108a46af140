// Package calendar provides the date arithmetic behind schedule generation:
// day sequences, study-day classification, full-length exam placement, phase
// boundaries and per-phase time targets.
package calendar

import (
	"fmt"
	"time"
)

// DayMinutes is the daily resource budget in minutes (written review excluded).
const DayMinutes = 240

// FullLengthCount is the number of full-length exams placed per plan.
const FullLengthCount = 6

var weekdayNames = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// ParseDate parses a YYYY-MM-DD date string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders a date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// WeekdayName returns the three-letter weekday name (Sun..Sat) for a date.
func WeekdayName(t time.Time) string {
	return weekdayNames[int(t.Weekday())]
}

// ValidWeekday reports whether s is a recognized three-letter weekday name.
func ValidWeekday(s string) bool {
	for _, name := range weekdayNames {
		if name == s {
			return true
		}
	}
	return false
}

// DateRange returns every date in [start, end), one day apart.
func DateRange(start, end time.Time) []time.Time {
	var dates []time.Time
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// IsWeekday reports whether the date falls on the named weekday.
func IsWeekday(t time.Time, weekday string) bool {
	return WeekdayName(t) == weekday
}

// IsStudyDay reports whether the date's weekday is in the availability list.
func IsStudyDay(t time.Time, availability []string) bool {
	name := WeekdayName(t)
	for _, a := range availability {
		if a == name {
			return true
		}
	}
	return false
}

// PhaseSplit divides study days into three near-equal phases. A remainder of
// one goes to phase 1; a remainder of two adds a day to phases 1 and 2, so
// phase 3 is never the largest.
type PhaseSplit struct {
	Phase1 int
	Phase2 int
	Phase3 int
}

// SplitPhases computes the phase day counts for a total number of study days.
func SplitPhases(totalStudyDays int) PhaseSplit {
	size := totalStudyDays / 3
	rem := totalStudyDays % 3

	split := PhaseSplit{Phase1: size, Phase2: size, Phase3: size}
	if rem > 0 {
		split.Phase1++
	}
	if rem > 1 {
		split.Phase2++
	}
	return split
}

// PhaseForIndex maps a zero-based study-day ordinal to its phase (1..3).
func PhaseForIndex(dayIndex int, split PhaseSplit) int {
	switch {
	case dayIndex < split.Phase1:
		return 1
	case dayIndex < split.Phase1+split.Phase2:
		return 2
	default:
		return 3
	}
}

// TimeTargets holds the per-phase daily minute targets the planner fills
// toward. Targets are goals, not ceilings; DayMinutes stays the hard cap.
type TimeTargets struct {
	Phase1Target int
	Phase2Target int
	Phase3Target int
	Strategy     string
}

// TargetsFor derives time targets from plan length. Short plans push close to
// the full daily budget; long plans leave more slack.
func TargetsFor(totalStudyDays int) TimeTargets {
	switch {
	case totalStudyDays <= 42:
		return TimeTargets{Phase1Target: 230, Phase2Target: 235, Phase3Target: 240, Strategy: "aggressive"}
	case totalStudyDays <= 84:
		return TimeTargets{Phase1Target: 220, Phase2Target: 230, Phase3Target: 235, Strategy: "balanced"}
	default:
		return TimeTargets{Phase1Target: 210, Phase2Target: 220, Phase3Target: 230, Strategy: "conservative"}
	}
}

// TargetForPhase returns the minute target for a phase number.
func (t TimeTargets) TargetForPhase(phase int) int {
	switch phase {
	case 1:
		return t.Phase1Target
	case 2:
		return t.Phase2Target
	default:
		return t.Phase3Target
	}
}

// DistributeFullLengths places count full-length exam dates on the requested
// weekday within [start, exam-7d). Indices are spaced floor(pool/count) apart
// starting at 0, which can cluster exams early when the pool is not an exact
// multiple of count; downstream consumers were tuned against this spacing, so
// it is kept as-is. If too few matching weekdays exist the weekday constraint
// is dropped; if the unrestricted window is still too small, the plan is not
// viable and an error is returned.
func DistributeFullLengths(start, examDate time.Time, weekday string, count int) ([]time.Time, error) {
	end := examDate.AddDate(0, 0, -7)

	var pool []time.Time
	for _, d := range DateRange(start, end) {
		if IsWeekday(d, weekday) {
			pool = append(pool, d)
		}
	}

	if len(pool) < count {
		pool = DateRange(start, end)
		if len(pool) < count {
			return nil, fmt.Errorf("not enough days for %d full lengths (only %d days available)", count, len(pool))
		}
	}

	interval := len(pool) / count
	var dates []time.Time
	for i := 0; i < count; i++ {
		idx := i * interval
		if idx < len(pool) {
			dates = append(dates, pool[idx])
		}
	}
	return dates, nil
}
