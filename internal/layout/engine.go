// Package layout packs a day's appointments into side-by-side columns so
// that no two overlapping appointments share a column.
package layout

import (
	"slices"
	"time"

	"github.com/starford/agenda/internal/calendar"
	"github.com/starford/agenda/internal/models"
)

// Grouping selects how overlap groups are delimited.
type Grouping int

const (
	// GroupChain starts a new group when an appointment starts at or after
	// the end of the appointment sorted immediately before it.
	GroupChain Grouping = iota
	// GroupRunning compares against the latest end seen in the current group.
	GroupRunning
)

func (g Grouping) String() string {
	if g == GroupRunning {
		return "running"
	}
	return "chain"
}

// MarshalText encodes the grouping by name.
func (g Grouping) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// Option configures an Engine.
type Option func(*Engine)

// WithGrouping overrides the grouping strategy.
func WithGrouping(g Grouping) Option {
	return func(e *Engine) { e.grouping = g }
}

// Engine computes positioned appointments for a grid.
type Engine struct {
	grid     Grid
	grouping Grouping
}

// New creates an Engine for grid.
func New(grid Grid, opts ...Option) *Engine {
	e := &Engine{grid: grid, grouping: GroupChain}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Grid returns the engine geometry.
func (e *Engine) Grid() Grid { return e.grid }

// Day lays out appointments that belong to one day. The result is ordered by
// start time, ties in input order. The input is not modified.
func (e *Engine) Day(apps []models.Appointment) []models.PositionedAppointment {
	if len(apps) == 0 {
		return []models.PositionedAppointment{}
	}

	sorted := slices.Clone(apps)
	slices.SortStableFunc(sorted, func(a, b models.Appointment) int {
		return a.Start.Compare(b.Start)
	})

	out := make([]models.PositionedAppointment, 0, len(sorted))
	group := 0
	for _, g := range e.groups(sorted) {
		out = append(out, e.pack(g, group)...)
		group++
	}
	return out
}

// Week lays out each day of days with the appointments starting on that
// calendar day.
func (e *Engine) Week(days []time.Time, apps []models.Appointment) [][]models.PositionedAppointment {
	out := make([][]models.PositionedAppointment, len(days))
	for i, d := range days {
		out[i] = e.Day(calendar.OnDay(apps, d))
	}
	return out
}

func (e *Engine) groups(sorted []models.Appointment) [][]models.Appointment {
	var (
		groups  [][]models.Appointment
		current []models.Appointment
		end     time.Time
	)
	for i, a := range sorted {
		if i > 0 && a.Start.Before(end) {
			current = append(current, a)
		} else {
			if len(current) > 0 {
				groups = append(groups, current)
			}
			current = []models.Appointment{a}
			end = a.End
			continue
		}
		if e.grouping == GroupChain || a.End.After(end) {
			end = a.End
		}
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

// pack assigns columns first-fit and gives every member the group's column count.
func (e *Engine) pack(group []models.Appointment, index int) []models.PositionedAppointment {
	var lastEnd []time.Time
	cols := make([]int, len(group))
	for i, a := range group {
		placed := false
		for c, end := range lastEnd {
			if !a.Start.Before(end) {
				cols[i] = c
				lastEnd[c] = a.End
				placed = true
				break
			}
		}
		if !placed {
			cols[i] = len(lastEnd)
			lastEnd = append(lastEnd, a.End)
		}
	}

	out := make([]models.PositionedAppointment, len(group))
	for i, a := range group {
		length := e.grid.Length(a.Duration())
		out[i] = models.PositionedAppointment{
			Appointment:   a,
			Group:         index,
			Column:        cols[i],
			ColumnCount:   len(lastEnd),
			StartPosition: e.grid.Position(a.Start),
			Duration:      length,
			Height:        e.grid.BlockHeight(length),
		}
	}
	return out
}
