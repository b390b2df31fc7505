package grid

import (
	"testing"
	"time"

	"github.com/starford/agenda/internal/calendar"
	"github.com/starford/agenda/internal/layout"
	"github.com/starford/agenda/internal/models"
)

var now = time.Date(2026, 10, 14, 12, 0, 0, 0, time.Local)

func renderer(opts ...Option) *Renderer {
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	return NewRenderer(layout.New(layout.DefaultGrid()), opts...)
}

func appts() []models.Appointment {
	d := func(day, h, m int) time.Time { return time.Date(2026, 10, day, h, m, 0, 0, time.Local) }
	return []models.Appointment{
		{ID: "a", Title: "Checkup", PatientName: "John", Start: d(14, 9, 0), End: d(14, 9, 30), Color: "#10b981"},
		{ID: "b", Title: "Review", PatientName: "Emma", Start: d(14, 9, 15), End: d(14, 10, 0)},
		{ID: "c", Start: d(15, 11, 0), End: d(15, 12, 0)},
		{ID: "d", Start: d(1, 11, 0), End: d(1, 12, 0)},
	}
}

func TestDaily(t *testing.T) {
	v := renderer().Daily(now, appts(), "b")
	if v.Label != "14/outubro/2026" {
		t.Errorf("label = %q", v.Label)
	}
	if len(v.Slots) != 48 || v.Slots[0].ID != "8:0" || v.Slots[47].ID != "19:45" {
		t.Errorf("slots = %d first=%v", len(v.Slots), v.Slots[0])
	}
	if len(v.Blocks) != 2 {
		t.Fatalf("blocks = %d", len(v.Blocks))
	}
	a, b := v.Blocks[0], v.Blocks[1]
	if a.Width != 50 || a.Left != 0 || b.Left != 50 {
		t.Errorf("geometry a=%v/%v b=%v", a.Left, a.Width, b.Left)
	}
	if a.Dimmed || !b.Dimmed {
		t.Error("dimmed flags wrong")
	}
	if a.Caption != "09:00 - 09:30" {
		t.Errorf("caption = %q", a.Caption)
	}
	if a.Label != "Appointment: Checkup with John at 09:00" {
		t.Errorf("aria = %q", a.Label)
	}
	if a.Category != models.CategoryGreen || b.Category != models.CategoryCustom {
		t.Errorf("categories = %v %v", a.Category, b.Category)
	}
}

func TestWeekly(t *testing.T) {
	v := renderer().Weekly(now, appts(), "")
	if len(v.Days) != 7 {
		t.Fatalf("days = %d", len(v.Days))
	}
	if v.Days[0].Header != "seg" || v.Days[0].Number != 12 {
		t.Errorf("first header = %q %d", v.Days[0].Header, v.Days[0].Number)
	}
	if !v.Days[2].IsToday || v.Days[3].IsToday {
		t.Error("today flag wrong")
	}
	if len(v.Days[2].Blocks) != 2 || len(v.Days[3].Blocks) != 1 {
		t.Errorf("blocks = %d, %d", len(v.Days[2].Blocks), len(v.Days[3].Blocks))
	}
	if v.Days[3].Slots[5].ID != "3-9-15" {
		t.Errorf("slot id = %q", v.Days[3].Slots[5].ID)
	}
}

func TestMonthly(t *testing.T) {
	v := renderer().Monthly(now, appts())
	if len(v.Cells) != MonthCells {
		t.Fatalf("cells = %d", len(v.Cells))
	}
	want := []string{"Seg", "Ter", "Qua", "Qui", "Sex", "Sáb", "Dom"}
	for i, w := range want {
		if v.Weekdays[i] != w {
			t.Errorf("weekday %d = %q, want %q", i, v.Weekdays[i], w)
		}
	}
	// October 2026 starts on a Thursday; the grid starts Monday 28 September.
	first := v.Cells[0]
	if !first.Date.Equal(time.Date(2026, 9, 28, 0, 0, 0, 0, time.Local)) || first.InMonth {
		t.Errorf("first cell = %v in=%v", first.Date, first.InMonth)
	}
	oct1 := v.Cells[3]
	if !oct1.InMonth || len(oct1.Appointments) != 1 || oct1.Appointments[0].ID != "d" {
		t.Errorf("oct 1 = %+v", oct1)
	}
	if !v.Cells[16].IsToday || len(v.Cells[16].Appointments) != 2 {
		t.Errorf("oct 14 = %+v", v.Cells[16])
	}
}

func TestMonthly_SundayStart(t *testing.T) {
	v := renderer(WithWeekStart(time.Sunday), WithLocale(calendar.EnUS)).Monthly(now, nil)
	if v.Weekdays[0] != "Sun" || v.Label != "October 2026" {
		t.Errorf("weekdays[0] = %q label %q", v.Weekdays[0], v.Label)
	}
	if !v.Cells[0].Date.Equal(time.Date(2026, 9, 27, 0, 0, 0, 0, time.Local)) {
		t.Errorf("first = %v", v.Cells[0].Date)
	}
}

func TestMonthClick(t *testing.T) {
	v := renderer().Monthly(now, appts())
	draft, ok := v.Click(5, "")
	if !ok || !draft.IsNew() || draft.Color != models.DefaultColor {
		t.Fatalf("draft = %+v", draft)
	}
	if draft.Start.Hour() != 9 || draft.End.Hour() != 10 || draft.Start.Day() != 3 {
		t.Errorf("draft times = %v - %v", draft.Start, draft.End)
	}
	if a, ok := v.Click(16, "a"); !ok || a.ID != "a" {
		t.Errorf("chip click = %+v %v", a, ok)
	}
	if _, ok := v.Click(16, "zzz"); ok {
		t.Error("unknown id should not resolve")
	}
	if _, ok := v.Click(42, ""); ok {
		t.Error("out of range cell")
	}
}
