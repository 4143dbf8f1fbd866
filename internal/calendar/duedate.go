package calendar

import (
	"math"
	"time"
)

// DueDate adds durationHours of SLA time to start. Working time is walked
// minute by minute unless the calendar is nil, round-clock, unconfigured or
// useOperationalHours is false, in which case wall-clock hours are added.
func (c *Calendar) DueDate(start time.Time, durationHours float64, useOperationalHours bool) time.Time {
	if c == nil || !useOperationalHours || !c.configured || c.RoundClock() {
		return wallClock(start, durationHours)
	}

	remaining := wholeMinutes(durationHours)
	cursor := c.NextWorkingInstant(start.Truncate(time.Minute))
	if !c.IsWorkingInstant(cursor) {
		// no working time within the search horizon
		return wallClock(start, durationHours)
	}

	for remaining > 0 {
		if c.IsWorkingInstant(cursor) {
			remaining--
		}
		cursor = cursor.Add(time.Minute)
		if !c.IsWorkingInstant(cursor) {
			next := c.NextWorkingInstant(cursor)
			if !c.IsWorkingInstant(next) {
				return cursor
			}
			cursor = next
		}
	}
	return cursor
}

// ComponentsToWorkingHours flattens an SLA given in days, hours and minutes
// into hours, counting each day as DailyWorkingMinutes of work.
func (c *Calendar) ComponentsToWorkingHours(days, hours, minutes int) float64 {
	daily := defaultEnd - defaultStart
	if c != nil {
		daily = c.DailyWorkingMinutes()
	}
	return float64(days)*float64(daily)/60 + float64(hours) + float64(minutes)/60
}

// WorkingHoursBetween counts working time between start and end at minute resolution.
func (c *Calendar) WorkingHoursBetween(start, end time.Time) float64 {
	if !end.After(start) {
		return 0
	}
	if c == nil || c.RoundClock() {
		return end.Sub(start).Hours()
	}
	minutes := 0
	for cursor := start; cursor.Before(end); cursor = cursor.Add(time.Minute) {
		if c.IsWorkingInstant(cursor) {
			minutes++
		}
	}
	return float64(minutes) / 60
}

func wallClock(start time.Time, hours float64) time.Time {
	return start.Add(time.Duration(math.Round(hours * float64(time.Hour))))
}

func wholeMinutes(hours float64) int {
	if hours <= 0 {
		return 0
	}
	return int(math.Ceil(hours*60 - 1e-9))
}
