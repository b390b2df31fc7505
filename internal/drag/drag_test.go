package drag

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/starford/agenda/internal/models"
)

var t0 = time.Date(2026, 10, 14, 7, 0, 0, 0, time.Local)

func sample() map[string]models.Appointment {
	return map[string]models.Appointment{
		"a": {ID: "a", Title: "Checkup", Start: time.Date(2026, 10, 14, 14, 0, 0, 0, time.Local), End: time.Date(2026, 10, 14, 14, 30, 0, 0, time.Local)},
	}
}

func lookupIn(m map[string]models.Appointment) Lookup {
	return func(id string) (models.Appointment, bool) {
		a, ok := m[id]
		return a, ok
	}
}

func daily() Surface {
	return Surface{View: models.ViewDaily, Origin: Origin(models.ViewDaily, t0, time.Monday)}
}

func TestParseDailyTarget(t *testing.T) {
	cases := []struct {
		id   string
		want Target
		ok   bool
	}{
		{"16:30", Target{Hour: 16, Minute: 30}, true},
		{"8:0", Target{Hour: 8}, true},
		{"16", Target{}, false},
		{"a:b", Target{}, false},
		{"16:30:00", Target{}, false},
		{"24:00", Target{}, false},
		{"", Target{}, false},
	}
	for _, tc := range cases {
		got, err := ParseDailyTarget(tc.id)
		if (err == nil) != tc.ok {
			t.Errorf("%q: err = %v", tc.id, err)
			continue
		}
		if err != nil && !errors.Is(err, ErrMalformedTarget) {
			t.Errorf("%q: error not ErrMalformedTarget: %v", tc.id, err)
		}
		if got != tc.want {
			t.Errorf("%q = %+v", tc.id, got)
		}
	}
}

func TestParseWeeklyTarget(t *testing.T) {
	got, err := ParseWeeklyTarget("2-9-45")
	if err != nil || got != (Target{Day: 2, Hour: 9, Minute: 45}) {
		t.Errorf("got %+v, %v", got, err)
	}
	for _, bad := range []string{"7-9-0", "1-9", "x-9-0", "1:9:0"} {
		if _, err := ParseWeeklyTarget(bad); err == nil {
			t.Errorf("%q should fail", bad)
		}
	}
	if id := WeeklyTargetID(2, 9, 45); id != "2-9-45" {
		t.Errorf("id = %q", id)
	}
	if id := DailyTargetID(16, 30); id != "16:30" {
		t.Errorf("id = %q", id)
	}
}

func TestDrop_DailyPreservesDuration(t *testing.T) {
	c, err := Drop(daily(), lookupIn(sample()), "a", "16:30")
	if err != nil {
		t.Fatal(err)
	}
	wantStart := time.Date(2026, 10, 14, 16, 30, 0, 0, time.Local)
	if !c.NewStart.Equal(wantStart) || !c.NewEnd.Equal(wantStart.Add(30*time.Minute)) {
		t.Errorf("got %v - %v", c.NewStart, c.NewEnd)
	}
}

func TestDrop_WeeklyUsesDayOffset(t *testing.T) {
	s := Surface{View: models.ViewWeekly, Origin: Origin(models.ViewWeekly, t0, time.Monday)}
	c, err := Drop(s, lookupIn(sample()), "a", "4-10-15")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 10, 16, 10, 15, 0, 0, time.Local)
	if !c.NewStart.Equal(want) {
		t.Errorf("start = %v, want %v", c.NewStart, want)
	}
	if c.NewEnd.Sub(c.NewStart) != 30*time.Minute {
		t.Errorf("duration = %v", c.NewEnd.Sub(c.NewStart))
	}
}

func TestDrop_ZeroesSeconds(t *testing.T) {
	apps := map[string]models.Appointment{
		"s": {ID: "s", Start: time.Date(2026, 10, 14, 9, 0, 17, 500, time.Local), End: time.Date(2026, 10, 14, 9, 45, 17, 500, time.Local)},
	}
	c, err := Drop(daily(), lookupIn(apps), "s", "11:15")
	if err != nil {
		t.Fatal(err)
	}
	if c.NewStart.Second() != 0 || c.NewStart.Nanosecond() != 0 {
		t.Errorf("start not truncated: %v", c.NewStart)
	}
	if c.NewEnd.Sub(c.NewStart) != 45*time.Minute {
		t.Errorf("duration = %v", c.NewEnd.Sub(c.NewStart))
	}
}

func TestDrop_Missing(t *testing.T) {
	if _, err := Drop(daily(), lookupIn(sample()), "gone", "9:00"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestController_MouseDelayThenDrop(t *testing.T) {
	c := NewController(daily(), lookupIn(sample()))
	if s := c.Press("a", Mouse, Point{X: 10, Y: 10}, t0); s != Pending {
		t.Fatalf("state = %s", s)
	}
	if s := c.Move(Point{X: 12, Y: 12}, t0.Add(100*time.Millisecond)); s != Pending {
		t.Fatalf("within tolerance before delay: state = %s", s)
	}
	if s := c.Tick(t0.Add(150 * time.Millisecond)); s != Dragging {
		t.Fatalf("after delay: state = %s", s)
	}
	if !c.Dimmed("a") || c.Dimmed("b") {
		t.Error("dimmed flag wrong")
	}
	c.Move(Point{X: 40, Y: 200}, t0.Add(300*time.Millisecond))
	off, ok := c.Overlay()
	if !ok || off.X != 0 || off.Y != 190 {
		t.Errorf("overlay = %+v %v, want vertical-only offset", off, ok)
	}

	res := c.Release("16:30", t0.Add(400*time.Millisecond))
	if res.Outcome != OutcomeCommit {
		t.Fatalf("outcome = %v", res.Outcome)
	}
	if got := res.Commit.NewEnd.Sub(res.Commit.NewStart); got != 30*time.Minute {
		t.Errorf("duration = %v", got)
	}
	if c.State() != Idle || c.ActiveID() != "" {
		t.Error("controller not reset")
	}
}

func TestController_QuickReleaseIsClick(t *testing.T) {
	c := NewController(daily(), lookupIn(sample()))
	c.Press("a", Touch, Point{}, t0)
	res := c.Release("16:30", t0.Add(100*time.Millisecond))
	if res.Outcome != OutcomeClick || res.ID != "a" {
		t.Errorf("result = %+v", res)
	}
}

func TestController_MovePastToleranceAborts(t *testing.T) {
	c := NewController(daily(), lookupIn(sample()))
	c.Press("a", Touch, Point{}, t0)
	if s := c.Move(Point{Y: 20}, t0.Add(50*time.Millisecond)); s != Idle {
		t.Fatalf("state = %s", s)
	}
	if res := c.Release("16:30", t0.Add(400*time.Millisecond)); res.Outcome != OutcomeNone {
		t.Errorf("outcome = %v", res.Outcome)
	}
}

func TestController_PointerDistance(t *testing.T) {
	s := Surface{
		View:   models.ViewWeekly,
		Origin: Origin(models.ViewWeekly, t0, time.Monday),
		Bounds: Bounds{Min: Point{X: -50, Y: -50}, Max: Point{X: 50, Y: 50}},
	}
	c := NewController(s, lookupIn(sample()))
	c.Press("a", Pointer, Point{}, t0)
	if st := c.Move(Point{X: 3, Y: 4}, t0); st != Pending {
		t.Fatalf("5 units should not activate, state = %s", st)
	}
	if st := c.Move(Point{X: 200, Y: 6}, t0); st != Dragging {
		t.Fatalf("state = %s", st)
	}
	off, _ := c.Overlay()
	if off.X != 50 || off.Y != 6 {
		t.Errorf("offset = %+v, want clamped X", off)
	}
}

func TestController_ReleaseOutsideCancels(t *testing.T) {
	apps := sample()
	c := NewController(daily(), lookupIn(apps))
	c.Press("a", Pointer, Point{}, t0)
	c.Move(Point{Y: 30}, t0)
	if res := c.Release("", t0); res.Outcome != OutcomeCancel {
		t.Errorf("outcome = %v", res.Outcome)
	}
	if !apps["a"].Start.Equal(sample()["a"].Start) {
		t.Error("appointment mutated")
	}
}

func TestController_MalformedTargetLogsAndCancels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	c := NewController(daily(), lookupIn(sample()), WithLogger(logger))
	c.Press("a", Pointer, Point{}, t0)
	c.Move(Point{Y: 30}, t0)
	if res := c.Release("sixteen:thirty", t0); res.Outcome != OutcomeCancel {
		t.Errorf("outcome = %v", res.Outcome)
	}
	if !strings.Contains(buf.String(), "drop cancelled") {
		t.Errorf("expected warn log, got %q", buf.String())
	}
}

func TestController_MissingAppointmentSilent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	apps := sample()
	c := NewController(daily(), lookupIn(apps), WithLogger(logger))
	c.Press("a", Pointer, Point{}, t0)
	c.Move(Point{Y: 30}, t0)
	delete(apps, "a")
	if res := c.Release("10:00", t0); res.Outcome != OutcomeCancel {
		t.Errorf("outcome = %v", res.Outcome)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no log output, got %q", buf.String())
	}
}

func TestController_CancelAndIgnoredPress(t *testing.T) {
	c := NewController(daily(), lookupIn(sample()))
	c.Press("a", Pointer, Point{}, t0)
	c.Move(Point{Y: 30}, t0)
	if st := c.Press("b", Pointer, Point{}, t0); st != Dragging || c.ActiveID() != "a" {
		t.Errorf("second press should be ignored")
	}
	c.Cancel()
	if c.State() != Idle {
		t.Errorf("state = %s", c.State())
	}
	if _, ok := c.Overlay(); ok {
		t.Error("overlay after cancel")
	}
}

func TestController_DurationPreservedAcrossTargets(t *testing.T) {
	apps := map[string]models.Appointment{
		"x": {ID: "x", Start: time.Date(2026, 10, 13, 9, 10, 0, 0, time.Local), End: time.Date(2026, 10, 13, 10, 35, 0, 0, time.Local)},
	}
	s := Surface{View: models.ViewWeekly, Origin: Origin(models.ViewWeekly, t0, time.Monday)}
	for d := 0; d < 7; d++ {
		for h := 8; h < 20; h++ {
			for m := 0; m < 60; m += 15 {
				c, err := Drop(s, lookupIn(apps), "x", WeeklyTargetID(d, h, m))
				if err != nil {
					t.Fatal(err)
				}
				if c.NewEnd.Sub(c.NewStart) != 85*time.Minute {
					t.Fatalf("%d-%d-%d: duration %v", d, h, m, c.NewEnd.Sub(c.NewStart))
				}
			}
		}
	}
}
