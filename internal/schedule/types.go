package schedule

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/prepworks/mcat-scheduler/internal/planner"
)

// Request is a pre-validated schedule generation request. The API layer is
// responsible for date parsing, start-before-exam ordering and weekday-name
// checks before the engine sees it.
type Request struct {
	StartDate    time.Time
	TestDate     time.Time
	Priorities   []string // content category prefixes, in priority order
	Availability []string // three-letter weekday names
	FLWeekday    string   // weekday for full-length exams
}

// Metadata summarizes a generated plan.
type Metadata struct {
	TotalDays      int `json:"total_days"`
	StudyDays      int `json:"study_days"`
	BreakDays      int `json:"break_days"`
	Phase1Days     int `json:"phase_1_days"`
	Phase2Days     int `json:"phase_2_days"`
	Phase3Days     int `json:"phase_3_days"`
	FullLengthDays int `json:"full_length_days"`
}

// Response is the full generated plan.
type Response struct {
	Schedule []planner.Day `json:"schedule"`
	Metadata Metadata      `json:"metadata"`
}

// DayObserver receives each day as it is committed to the schedule. Used to
// stream long generation runs.
type DayObserver func(planner.Day)

// NewScheduleID mints a fresh opaque schedule identifier. Reusing an
// identifier would corrupt never-repeat tracking for it, so IDs are random
// per invocation.
func NewScheduleID() string {
	b := make([]byte, 12)
	rand.Read(b)
	return fmt.Sprintf("schedule_%x", b)
}
