// Package grid renders the daily, weekly and monthly calendar surfaces as
// plain data: hour rows, drop-target slots and positioned blocks.
package grid

import (
	"fmt"
	"time"

	"golang.org/x/text/cases"

	"github.com/starford/agenda/internal/calendar"
	"github.com/starford/agenda/internal/drag"
	"github.com/starford/agenda/internal/layout"
	"github.com/starford/agenda/internal/models"
)

// Block is an appointment placed on a day column.
type Block struct {
	models.PositionedAppointment
	Category models.Category `json:"category"`
	// Left and Width are percentages of the day column.
	Left    float64 `json:"left"`
	Width   float64 `json:"width"`
	Dimmed  bool    `json:"dimmed"`
	Caption string  `json:"caption"`
	Label   string  `json:"aria_label"`
}

// Slot is a drop-target cell.
type Slot struct {
	ID     string  `json:"id"`
	Hour   int     `json:"hour"`
	Minute int     `json:"minute"`
	Top    float64 `json:"top"`
}

// DayView is the single-day surface.
type DayView struct {
	Date   time.Time `json:"date"`
	Label  string    `json:"label"`
	Hours  []int     `json:"hours"`
	Height float64   `json:"height"`
	Slots  []Slot    `json:"slots"`
	Blocks []Block   `json:"blocks"`
}

// WeekDay is one column of the weekly surface.
type WeekDay struct {
	Date    time.Time `json:"date"`
	Header  string    `json:"header"`
	Number  int       `json:"number"`
	IsToday bool      `json:"is_today"`
	Slots   []Slot    `json:"slots"`
	Blocks  []Block   `json:"blocks"`
}

// WeekView is the seven-day surface.
type WeekView struct {
	Start  time.Time `json:"start"`
	Label  string    `json:"label"`
	Hours  []int     `json:"hours"`
	Height float64   `json:"height"`
	Days   []WeekDay `json:"days"`
}

// MonthCell is one day of the 6x7 month grid.
type MonthCell struct {
	Date         time.Time            `json:"date"`
	InMonth      bool                 `json:"in_month"`
	IsToday      bool                 `json:"is_today"`
	Appointments []models.Appointment `json:"appointments"`
}

// MonthView is the creation-oriented month grid.
type MonthView struct {
	Label    string      `json:"label"`
	Weekdays []string    `json:"weekdays"`
	Cells    []MonthCell `json:"cells"`
}

// MonthCells is the fixed number of cells in a month grid.
const MonthCells = 42

// Renderer builds surfaces from a snapshot of the collection.
type Renderer struct {
	engine    *layout.Engine
	weekStart time.Weekday
	locale    calendar.Locale
	now       func() time.Time
}

// Option configures a Renderer.
type Option func(*Renderer)

func WithWeekStart(d time.Weekday) Option { return func(r *Renderer) { r.weekStart = d } }

func WithLocale(l calendar.Locale) Option { return func(r *Renderer) { r.locale = l } }

// WithClock replaces time.Now for today highlighting.
func WithClock(now func() time.Time) Option { return func(r *Renderer) { r.now = now } }

// NewRenderer creates a Renderer over engine.
func NewRenderer(engine *layout.Engine, opts ...Option) *Renderer {
	r := &Renderer{
		engine:    engine,
		weekStart: time.Monday,
		locale:    calendar.PtBR,
		now:       time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Daily renders the day around anchor. active is the id being dragged, if any.
func (r *Renderer) Daily(anchor time.Time, apps []models.Appointment, active string) DayView {
	g := r.engine.Grid()
	day := calendar.StartOfDay(anchor)
	return DayView{
		Date:   day,
		Label:  calendar.Label(anchor, models.ViewDaily, r.weekStart, r.locale),
		Hours:  g.Hours(),
		Height: g.Height(),
		Slots:  slots(g, func(h, m int) string { return drag.DailyTargetID(h, m) }),
		Blocks: blocks(r.engine.Day(calendar.OnDay(apps, day)), active),
	}
}

// Weekly renders the week containing anchor.
func (r *Renderer) Weekly(anchor time.Time, apps []models.Appointment, active string) WeekView {
	g := r.engine.Grid()
	start := calendar.StartOfWeek(anchor, r.weekStart)
	days := make([]time.Time, 7)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	laid := r.engine.Week(days, apps)
	today := r.now()

	out := WeekView{
		Start:  start,
		Label:  calendar.Label(anchor, models.ViewWeekly, r.weekStart, r.locale),
		Hours:  g.Hours(),
		Height: g.Height(),
		Days:   make([]WeekDay, 7),
	}
	for i, d := range days {
		out.Days[i] = WeekDay{
			Date:    d,
			Header:  r.locale.WeekdayAbbrev(d.Weekday()),
			Number:  d.Day(),
			IsToday: calendar.SameDay(d, today),
			Slots:   slots(g, func(h, m int) string { return drag.WeeklyTargetID(i, h, m) }),
			Blocks:  blocks(laid[i], active),
		}
	}
	return out
}

// Monthly renders the 42-day grid starting on the week-start day on or
// before the first of anchor's month.
func (r *Renderer) Monthly(anchor time.Time, apps []models.Appointment) MonthView {
	first := calendar.StartOfMonth(anchor)
	start := calendar.StartOfWeek(first, r.weekStart)
	today := r.now()
	title := cases.Title(r.locale.Tag())

	out := MonthView{
		Label:    calendar.Label(anchor, models.ViewMonthly, r.weekStart, r.locale),
		Weekdays: make([]string, 7),
		Cells:    make([]MonthCell, MonthCells),
	}
	for i := range out.Weekdays {
		out.Weekdays[i] = title.String(r.locale.WeekdayAbbrev((r.weekStart + time.Weekday(i)) % 7))
	}
	for i := range out.Cells {
		d := start.AddDate(0, 0, i)
		out.Cells[i] = MonthCell{
			Date:         d,
			InMonth:      d.Month() == first.Month(),
			IsToday:      calendar.SameDay(d, today),
			Appointments: calendar.OnDay(apps, d),
		}
	}
	return out
}

// Draft returns the unsaved appointment offered when an empty day is
// clicked: 09:00-10:00 on that day in the default colour.
func Draft(day time.Time) models.Appointment {
	y, m, d := day.Date()
	return models.Appointment{
		Start: time.Date(y, m, d, 9, 0, 0, 0, day.Location()),
		End:   time.Date(y, m, d, 10, 0, 0, 0, day.Location()),
		Color: models.DefaultColor,
	}
}

// Click resolves a click on cell i: an existing appointment when apptID is
// set, otherwise a draft for an empty cell. ok is false for an out of range
// cell or an unknown id.
func (v MonthView) Click(i int, apptID string) (a models.Appointment, ok bool) {
	if i < 0 || i >= len(v.Cells) {
		return models.Appointment{}, false
	}
	cell := v.Cells[i]
	if apptID == "" {
		return Draft(cell.Date), true
	}
	for _, a := range cell.Appointments {
		if a.ID == apptID {
			return a, true
		}
	}
	return models.Appointment{}, false
}

func slots(g layout.Grid, id func(h, m int) string) []Slot {
	var out []Slot
	for _, h := range g.Hours() {
		for _, m := range g.Minutes() {
			out = append(out, Slot{
				ID:     id(h, m),
				Hour:   h,
				Minute: m,
				Top:    float64(h-g.StartHour)*g.HourHeight + float64(m)/60*g.HourHeight,
			})
		}
	}
	return out
}

func blocks(ps []models.PositionedAppointment, active string) []Block {
	out := make([]Block, 0, len(ps))
	for _, p := range ps {
		width := 100 / float64(p.ColumnCount)
		a := p.Appointment
		out = append(out, Block{
			PositionedAppointment: p,
			Category:              a.Category(),
			Left:                  float64(p.Column) * width,
			Width:                 width,
			Dimmed:                active != "" && a.ID == active,
			Caption:               fmt.Sprintf("%s - %s", a.Start.Format("15:04"), a.End.Format("15:04")),
			Label:                 fmt.Sprintf("Appointment: %s with %s at %s", a.Title, a.PatientName, a.Start.Format("15:04")),
		})
	}
	return out
}
