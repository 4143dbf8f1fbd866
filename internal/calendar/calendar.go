// Package calendar answers working-time questions against the operational
// hours configuration and computes SLA due dates from them.
package calendar

import (
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

const (
	minutesPerDay = 24 * 60

	defaultStart = 8 * 60
	defaultEnd   = 18 * 60

	// searchHorizon bounds NextWorkingInstant so a calendar with no working
	// time at all still terminates. It is not a business rule.
	searchHorizon = 14 * minutesPerDay
)

// Calendar is an immutable view over one operational hours configuration.
type Calendar struct {
	hours      domain.OperationalHours
	holidays   domain.HolidaySet
	loc        *time.Location
	configured bool
	days       [7]*daySchedule
}

type interval struct {
	start int
	end   int
}

type daySchedule struct {
	start  int
	end    int
	breaks []interval
}

// New builds a calendar. A nil hours value yields the fallback 08:00-18:00
// Monday to Friday calendar and marks the calendar as unconfigured.
func New(hours *domain.OperationalHours, holidays domain.HolidaySet, loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	c := &Calendar{holidays: holidays, loc: loc}
	if hours != nil {
		c.hours = *hours
		c.configured = true
	} else {
		c.hours = FallbackHours()
	}
	if c.hours.Mode == "" {
		c.hours.Mode = domain.WorkingTimeStandard
	}
	c.compile()
	return c
}

// FallbackHours is used when no operational hours record is active.
func FallbackHours() domain.OperationalHours {
	days := make([]domain.WorkingDay, 0, 7)
	for d := 0; d < 7; d++ {
		days = append(days, domain.WorkingDay{
			DayOfWeek:    d,
			Enabled:      d >= int(time.Monday) && d <= int(time.Friday),
			ScheduleType: domain.ScheduleStandard,
		})
	}
	return domain.OperationalHours{
		Mode:              domain.WorkingTimeStandard,
		StandardStartTime: "08:00",
		StandardEndTime:   "18:00",
		WorkingDays:       days,
	}
}

func (c *Calendar) compile() {
	for _, wd := range c.hours.WorkingDays {
		if wd.DayOfWeek < 0 || wd.DayOfWeek > 6 {
			continue
		}
		if !wd.Enabled || wd.ScheduleType == domain.ScheduleNotSet {
			continue
		}
		sched := &daySchedule{}
		if wd.ScheduleType == domain.ScheduleCustom {
			sched.start = parseClock(wd.CustomStartTime, defaultStart)
			sched.end = parseClock(wd.CustomEndTime, defaultEnd)
		} else {
			sched.start = parseClock(c.hours.StandardStartTime, defaultStart)
			sched.end = parseClock(c.hours.StandardEndTime, defaultEnd)
		}
		for _, br := range wd.BreakHours {
			sched.breaks = append(sched.breaks, interval{
				start: parseClock(br.StartTime, -1),
				end:   parseClock(br.EndTime, -1),
			})
		}
		if len(wd.BreakHours) == 0 && wd.ScheduleType != domain.ScheduleCustom &&
			c.hours.StandardBreakStart != "" && c.hours.StandardBreakEnd != "" {
			sched.breaks = append(sched.breaks, interval{
				start: parseClock(c.hours.StandardBreakStart, -1),
				end:   parseClock(c.hours.StandardBreakEnd, -1),
			})
		}
		c.days[wd.DayOfWeek] = sched
	}
}

// Location returns the zone working hours are expressed in.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Configured reports whether an operational hours record backs the calendar.
func (c *Calendar) Configured() bool {
	return c != nil && c.configured
}

// RoundClock reports whether every instant is working time.
func (c *Calendar) RoundClock() bool {
	return c.hours.Mode == domain.WorkingTimeRoundClock
}

// IsHoliday reports whether t falls on a configured holiday (local date).
func (c *Calendar) IsHoliday(t time.Time) bool {
	return c.holidays.Contains(t.In(c.loc))
}

// IsWorkingInstant reports whether t is inside working hours.
func (c *Calendar) IsWorkingInstant(t time.Time) bool {
	if c.RoundClock() {
		return true
	}
	local := t.In(c.loc)
	if c.holidays.Contains(local) {
		return false
	}
	sched := c.days[int(local.Weekday())]
	if sched == nil {
		return false
	}
	m := local.Hour()*60 + local.Minute()
	if m < sched.start || m >= sched.end {
		return false
	}
	for _, br := range sched.breaks {
		if m >= br.start && m < br.end {
			return false
		}
	}
	return true
}

// NextWorkingInstant returns t when it is working time, otherwise the first
// working minute after it. The search stops after 14 days and returns the
// instant reached, which is then not a working instant.
func (c *Calendar) NextWorkingInstant(t time.Time) time.Time {
	if c.RoundClock() {
		return t
	}
	cursor := t
	for i := 0; i < searchHorizon && !c.IsWorkingInstant(cursor); i++ {
		cursor = cursor.Add(time.Minute)
	}
	return cursor
}

// DailyWorkingMinutes is the mean working minutes over enabled days.
func (c *Calendar) DailyWorkingMinutes() int {
	if c.RoundClock() {
		return minutesPerDay
	}
	total, count := 0, 0
	for _, sched := range c.days {
		if sched == nil {
			continue
		}
		minutes := sched.end - sched.start
		for _, br := range sched.breaks {
			minutes -= overlap(br, interval{sched.start, sched.end})
		}
		if minutes < 0 {
			minutes = 0
		}
		total += minutes
		count++
	}
	if count == 0 {
		return defaultEnd - defaultStart
	}
	return (total + count/2) / count
}

func overlap(a, b interval) int {
	lo, hi := a.start, a.end
	if b.start > lo {
		lo = b.start
	}
	if b.end < hi {
		hi = b.end
	}
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// parseClock converts "HH:MM" to minutes after midnight.
func parseClock(value string, fallback int) int {
	value = strings.TrimSpace(value)
	parts := strings.SplitN(value, ":", 3)
	if len(parts) < 2 {
		return fallback
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return fallback
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return fallback
	}
	return h*60 + m
}
