package models

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// StartDate is the moment the goal was created.
func (g *Goal) StartDate() time.Time {
	return g.CreatedAt
}

// TargetDate is the start date plus Duration days.
func (g *Goal) TargetDate() time.Time {
	return g.CreatedAt.AddDate(0, 0, g.Duration)
}

// DaysSinceStart is the number of whole days elapsed since the goal started.
func (g *Goal) DaysSinceStart(now time.Time) int {
	return int(math.Floor(float64(now.Sub(g.CreatedAt)) / float64(day)))
}

// DaysUntilCompletion rounds the remaining time up to whole days and never
// goes below zero.
func (g *Goal) DaysUntilCompletion(now time.Time) int {
	if g.Duration <= 0 {
		return 0
	}
	left := int(math.Ceil(float64(g.TargetDate().Sub(now)) / float64(day)))
	if left < 0 {
		return 0
	}
	return left
}

// ElapsedPercent is the share of the duration already elapsed, 0..100. It is
// informational and never written to Progress.
func (g *Goal) ElapsedPercent(now time.Time) int {
	if g.Duration <= 0 {
		return 0
	}
	pct := g.DaysSinceStart(now) * 100 / g.Duration
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

// Advance moves t forward by one period of the frequency.
func (f Frequency) Advance(t time.Time) (time.Time, bool) {
	switch f {
	case FrequencyDaily:
		return t.AddDate(0, 0, 1), true
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7), true
	case FrequencyMonthly:
		return t.AddDate(0, 1, 0), true
	}
	return time.Time{}, false
}

// NextCheckInDate is one period after the last check-in, or after the start
// date when the goal has never been checked in. ok is false when neither
// date is usable.
func (g *Goal) NextCheckInDate() (next time.Time, ok bool) {
	base := g.CreatedAt
	if g.LastCheckIn != nil && !g.LastCheckIn.IsZero() {
		base = *g.LastCheckIn
	}
	if base.IsZero() {
		return time.Time{}, false
	}
	return g.Frequency.Advance(base)
}

// CheckInDue reports whether the next check-in date has been reached.
func (g *Goal) CheckInDue(now time.Time) bool {
	next, ok := g.NextCheckInDate()
	return ok && !next.After(now)
}

func (g *Goal) View(now time.Time) GoalView {
	v := GoalView{
		Goal:                *g,
		StartDate:           g.StartDate(),
		TargetDate:          g.TargetDate(),
		DaysSinceStart:      g.DaysSinceStart(now),
		DaysUntilCompletion: g.DaysUntilCompletion(now),
		ElapsedPercent:      g.ElapsedPercent(now),
	}
	if next, ok := g.NextCheckInDate(); ok {
		v.NextCheckIn = &next
		v.CheckInDue = g.IsActive && !next.After(now)
	}
	return v
}
