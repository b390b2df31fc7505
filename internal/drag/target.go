package drag

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/starford/agenda/internal/calendar"
	"github.com/starford/agenda/internal/models"
)

// ErrMalformedTarget is returned for drop-target ids that do not decode.
var ErrMalformedTarget = errors.New("malformed drop target")

// Target is a decoded drop-target cell. Day is 0 on the daily surface.
type Target struct {
	Day    int
	Hour   int
	Minute int
}

// DailyTargetID encodes a daily slot as "H:M".
func DailyTargetID(hour, minute int) string {
	return fmt.Sprintf("%d:%d", hour, minute)
}

// WeeklyTargetID encodes a weekly slot as "D-H-M".
func WeeklyTargetID(day, hour, minute int) string {
	return fmt.Sprintf("%d-%d-%d", day, hour, minute)
}

// ParseDailyTarget decodes "H:M".
func ParseDailyTarget(id string) (Target, error) {
	parts := strings.Split(id, ":")
	if len(parts) != 2 {
		return Target{}, fmt.Errorf("%w: %q", ErrMalformedTarget, id)
	}
	nums, err := atois(id, parts)
	if err != nil {
		return Target{}, err
	}
	return check(id, Target{Hour: nums[0], Minute: nums[1]})
}

// ParseWeeklyTarget decodes "D-H-M".
func ParseWeeklyTarget(id string) (Target, error) {
	parts := strings.Split(id, "-")
	if len(parts) != 3 {
		return Target{}, fmt.Errorf("%w: %q", ErrMalformedTarget, id)
	}
	nums, err := atois(id, parts)
	if err != nil {
		return Target{}, err
	}
	return check(id, Target{Day: nums[0], Hour: nums[1], Minute: nums[2]})
}

// ParseTarget decodes id in the format used by view.
func ParseTarget(view models.ViewType, id string) (Target, error) {
	switch view {
	case models.ViewDaily:
		return ParseDailyTarget(id)
	case models.ViewWeekly:
		return ParseWeeklyTarget(id)
	default:
		return Target{}, fmt.Errorf("%w: view %q has no drop targets", ErrMalformedTarget, view)
	}
}

func atois(id string, parts []string) ([]int, error) {
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformedTarget, id)
		}
		out[i] = n
	}
	return out, nil
}

func check(id string, t Target) (Target, error) {
	if t.Day < 0 || t.Day > 6 || t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
		return Target{}, fmt.Errorf("%w: %q out of range", ErrMalformedTarget, id)
	}
	return t, nil
}

// Start returns the slot start on the surface whose first day is origin,
// with seconds and nanoseconds zeroed.
func (t Target) Start(origin time.Time) time.Time {
	y, m, d := origin.Date()
	return time.Date(y, m, d+t.Day, t.Hour, t.Minute, 0, 0, origin.Location())
}

// Origin returns the first day of the drag surface for view around anchor:
// the anchor day for daily, the week start for weekly.
func Origin(view models.ViewType, anchor time.Time, weekStart time.Weekday) time.Time {
	if view == models.ViewWeekly {
		return calendar.StartOfWeek(anchor, weekStart)
	}
	return calendar.StartOfDay(anchor)
}

// Reschedule moves a to start, preserving its duration.
func Reschedule(a models.Appointment, start time.Time) (time.Time, time.Time) {
	return start, start.Add(a.Duration())
}
