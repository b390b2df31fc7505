// Package calendar selects the appointments visible in a day, week or month
// window and produces the human-readable label for that window.
package calendar

import (
	"time"

	"github.com/starford/agenda/internal/models"
)

// Window is an inclusive time range.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls within [Start, End].
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b share year, month and day in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// SameMonth reports whether a and b share year and month in a's location.
func SameMonth(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// StartOfWeek returns midnight of the weekStart day on or before t.
func StartOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	day := StartOfDay(t)
	diff := (int(day.Weekday()) - int(weekStart) + 7) % 7
	return day.AddDate(0, 0, -diff)
}

// StartOfMonth returns midnight of the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// WindowFor computes the window a view covers around anchor.
func WindowFor(anchor time.Time, view models.ViewType, weekStart time.Weekday) Window {
	switch view {
	case models.ViewWeekly:
		start := StartOfWeek(anchor, weekStart)
		return Window{Start: start, End: start.AddDate(0, 0, 7).Add(-time.Nanosecond)}
	case models.ViewMonthly:
		start := StartOfMonth(anchor)
		return Window{Start: start, End: start.AddDate(0, 1, 0).Add(-time.Nanosecond)}
	default:
		start := StartOfDay(anchor)
		return Window{Start: start, End: start.AddDate(0, 0, 1).Add(-time.Nanosecond)}
	}
}

// Filter returns, in input order, the appointments whose start falls in the
// window of view around anchor. The input slice is never modified.
func Filter(apps []models.Appointment, anchor time.Time, view models.ViewType, weekStart time.Weekday) []models.Appointment {
	out := make([]models.Appointment, 0, len(apps))
	switch view {
	case models.ViewWeekly:
		w := WindowFor(anchor, view, weekStart)
		for _, a := range apps {
			if w.Contains(a.Start) {
				out = append(out, a)
			}
		}
	case models.ViewMonthly:
		w := WindowFor(anchor, view, weekStart)
		for _, a := range apps {
			// Both clauses are kept so month-boundary instants behave like the range check.
			if SameMonth(anchor, a.Start) || w.Contains(a.Start) {
				out = append(out, a)
			}
		}
	default:
		for _, a := range apps {
			if SameDay(anchor, a.Start) {
				out = append(out, a)
			}
		}
	}
	return out
}

// OnDay returns the appointments starting on day's calendar date.
func OnDay(apps []models.Appointment, day time.Time) []models.Appointment {
	return Filter(apps, day, models.ViewDaily, time.Monday)
}

// Previous moves anchor one window back.
func Previous(anchor time.Time, view models.ViewType) time.Time {
	switch view {
	case models.ViewWeekly:
		return anchor.AddDate(0, 0, -7)
	case models.ViewMonthly:
		return time.Date(anchor.Year(), anchor.Month()-1, 1, 0, 0, 0, 0, anchor.Location())
	default:
		return anchor.AddDate(0, 0, -1)
	}
}

// Next moves anchor one window forward.
func Next(anchor time.Time, view models.ViewType) time.Time {
	switch view {
	case models.ViewWeekly:
		return anchor.AddDate(0, 0, 7)
	case models.ViewMonthly:
		return time.Date(anchor.Year(), anchor.Month()+1, 1, 0, 0, 0, 0, anchor.Location())
	default:
		return anchor.AddDate(0, 0, 1)
	}
}
