package scheduler

import (
	"fmt"
	"time"
)

// Cadence decides when a job is next due after a reference time.
type Cadence interface {
	Next(after time.Time) time.Time
	Describe() string
}

type intervalCadence struct {
	every time.Duration
}

// Every runs a job at a fixed interval, measured from the previous run.
func Every(d time.Duration) Cadence {
	return intervalCadence{every: d}
}

func (c intervalCadence) Next(after time.Time) time.Time {
	return after.Add(c.every)
}

func (c intervalCadence) Describe() string {
	return fmt.Sprintf("every %s", c.every)
}

type dailyCadence struct {
	hour   int
	minute int
}

// DailyAt runs a job once a day at the given clock time (UTC).
func DailyAt(hour, minute int) Cadence {
	return dailyCadence{hour: hour, minute: minute}
}

func (c dailyCadence) Next(after time.Time) time.Time {
	after = after.UTC()
	candidate := time.Date(after.Year(), after.Month(), after.Day(), c.hour, c.minute, 0, 0, time.UTC)
	if !candidate.After(after) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

func (c dailyCadence) Describe() string {
	return fmt.Sprintf("daily at %02d:%02d", c.hour, c.minute)
}

type weeklyCadence struct {
	weekday time.Weekday
	hour    int
	minute  int
}

// WeeklyAt runs a job once a week on the given weekday and clock time (UTC).
func WeeklyAt(weekday time.Weekday, hour, minute int) Cadence {
	return weeklyCadence{weekday: weekday, hour: hour, minute: minute}
}

func (c weeklyCadence) Next(after time.Time) time.Time {
	after = after.UTC()
	candidate := time.Date(after.Year(), after.Month(), after.Day(), c.hour, c.minute, 0, 0, time.UTC)
	for candidate.Weekday() != c.weekday || !candidate.After(after) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

func (c weeklyCadence) Describe() string {
	return fmt.Sprintf("weekly on %s at %02d:%02d", c.weekday, c.hour, c.minute)
}
