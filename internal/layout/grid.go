package layout

import (
	"fmt"
	"time"
)

// Grid holds the geometry of a day column.
type Grid struct {
	StartHour      int     `json:"start_hour"`
	EndHour        int     `json:"end_hour"`
	HourHeight     float64 `json:"hour_height"`
	SlotMinutes    int     `json:"slot_minutes"`
	MinBlockHeight float64 `json:"min_block_height"`
}

// DefaultGrid spans 08:00-20:00 at 80 units per hour with 15-minute slots.
func DefaultGrid() Grid {
	return Grid{
		StartHour:      8,
		EndHour:        20,
		HourHeight:     80,
		SlotMinutes:    15,
		MinBlockHeight: 20,
	}
}

// Check reports geometry that would make rendering meaningless.
func (g Grid) Check() error {
	switch {
	case g.StartHour < 0 || g.EndHour > 24 || g.StartHour >= g.EndHour:
		return fmt.Errorf("layout: invalid hour range %d-%d", g.StartHour, g.EndHour)
	case g.HourHeight <= 0:
		return fmt.Errorf("layout: hour height must be positive")
	case g.SlotMinutes <= 0 || 60%g.SlotMinutes != 0:
		return fmt.Errorf("layout: slot minutes %d must divide an hour", g.SlotMinutes)
	case g.MinBlockHeight < 0:
		return fmt.Errorf("layout: negative min block height")
	}
	return nil
}

// Position is the vertical offset of t's time of day from the top of the grid.
func (g Grid) Position(t time.Time) float64 {
	return float64(t.Hour()-g.StartHour)*g.HourHeight + float64(t.Minute())/60*g.HourHeight
}

// Length converts an elapsed duration into grid units.
func (g Grid) Length(d time.Duration) float64 {
	return d.Minutes() / 60 * g.HourHeight
}

// BlockHeight floors a length to the minimum renderable height.
func (g Grid) BlockHeight(length float64) float64 {
	if length < g.MinBlockHeight {
		return g.MinBlockHeight
	}
	return length
}

// Hours lists the hour rows shown by the grid.
func (g Grid) Hours() []int {
	hours := make([]int, 0, g.EndHour-g.StartHour)
	for h := g.StartHour; h < g.EndHour; h++ {
		hours = append(hours, h)
	}
	return hours
}

// Minutes lists the slot offsets within one hour.
func (g Grid) Minutes() []int {
	step := g.SlotMinutes
	if step <= 0 {
		step = 15
	}
	out := make([]int, 0, 60/step)
	for m := 0; m < 60; m += step {
		out = append(out, m)
	}
	return out
}

// Height is the total height of the grid.
func (g Grid) Height() float64 {
	return float64(g.EndHour-g.StartHour) * g.HourHeight
}
