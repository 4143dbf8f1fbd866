package domain

import "time"

// WorkingTimeMode selects between a weekly schedule and 24x7 operation.
type WorkingTimeMode string

const (
	WorkingTimeStandard   WorkingTimeMode = "standard"
	WorkingTimeRoundClock WorkingTimeMode = "round-clock"
)

// ScheduleType controls where a working day takes its hours from.
type ScheduleType string

const (
	ScheduleStandard ScheduleType = "standard"
	ScheduleCustom   ScheduleType = "custom"
	ScheduleNotSet   ScheduleType = "not-set"
)

// BreakHour is a non-working interval inside a working day, "HH:MM" local time.
type BreakHour struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// WorkingDay configures one weekday. DayOfWeek is 0 (Sunday) to 6 (Saturday).
type WorkingDay struct {
	DayOfWeek       int          `json:"dayOfWeek"`
	Enabled         bool         `json:"isEnabled"`
	ScheduleType    ScheduleType `json:"scheduleType"`
	CustomStartTime string       `json:"customStartTime,omitempty"`
	CustomEndTime   string       `json:"customEndTime,omitempty"`
	BreakHours      []BreakHour  `json:"breakHours,omitempty"`
}

// OperationalHours is the active working-time configuration.
type OperationalHours struct {
	ID                 int64           `json:"id"`
	Mode               WorkingTimeMode `json:"workingTimeType"`
	StandardStartTime  string          `json:"standardStartTime,omitempty"`
	StandardEndTime    string          `json:"standardEndTime,omitempty"`
	StandardBreakStart string          `json:"standardBreakStart,omitempty"`
	StandardBreakEnd   string          `json:"standardBreakEnd,omitempty"`
	WorkingDays        []WorkingDay    `json:"workingDays"`
}

// HolidayDateLayout is the key format of a HolidaySet.
const HolidayDateLayout = "2006-01-02"

// HolidaySet holds local calendar dates on which no work happens.
type HolidaySet map[string]struct{}

// NewHolidaySet builds a set from YYYY-MM-DD strings.
func NewHolidaySet(dates ...string) HolidaySet {
	set := make(HolidaySet, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}
	return set
}

// Contains reports whether the local date of t is a holiday.
func (h HolidaySet) Contains(t time.Time) bool {
	if len(h) == 0 {
		return false
	}
	_, ok := h[t.Format(HolidayDateLayout)]
	return ok
}

// Dates returns the holiday keys.
func (h HolidaySet) Dates() []string {
	out := make([]string, 0, len(h))
	for d := range h {
		out = append(out, d)
	}
	return out
}
