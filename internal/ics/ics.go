// Package ics converts appointments to and from iCalendar documents.
package ics

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/starford/agenda/internal/models"
)

const (
	productID = "-//starford//agenda//EN"

	propPatient      = ical.ComponentProperty("X-AGENDA-PATIENT")
	propColor        = ical.ComponentProperty("COLOR")
	propRecurrenceID = ical.ComponentProperty("RECURRENCE-ID")
	propRDate        = ical.ComponentProperty("RDATE")
)

// Encode renders apps as a VCALENDAR with one VEVENT per appointment.
func Encode(w io.Writer, apps []models.Appointment, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, a := range apps {
		ev := cal.AddEvent(a.ID)
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(a.Start)
		ev.SetEndAt(a.End)
		ev.SetSummary(a.Title)
		if a.Notes != "" {
			ev.SetDescription(a.Notes)
		}
		if a.PatientName != "" {
			ev.SetProperty(propPatient, a.PatientName)
		}
		if a.Color != "" {
			ev.SetProperty(propColor, a.Color)
		}
	}

	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return fmt.Errorf("ics: write: %w", err)
	}
	return nil
}

// Options controls Decode.
type Options struct {
	// Location receives every decoded time; nil means time.Local.
	Location *time.Location
	// From and Until bound the instances generated for recurring events.
	// A zero From starts at each event's DTSTART; a zero Until stops
	// DefaultHorizon after From.
	From, Until time.Time
	// MaxOccurrences caps the instances of one recurring event.
	MaxOccurrences int
}

// DefaultHorizon is the expansion window used when Options.Until is zero.
const DefaultHorizon = 366 * 24 * time.Hour

const defaultMaxOccurrences = 1000

// Decode parses a VCALENDAR. Events without DTSTART are skipped and logged;
// a missing DTEND makes a zero-length appointment. Recurring events become
// one appointment per instance, keyed by OccurrenceID; RECURRENCE-ID
// overrides replace the matching instance.
func Decode(r io.Reader, opts Options) ([]models.Appointment, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxOccurrences <= 0 {
		opts.MaxOccurrences = defaultMaxOccurrences
	}
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("ics: parse: %w", err)
	}

	events := cal.Events()
	overrides := make(map[string]models.Appointment)
	var order []string
	for _, ve := range events {
		rid := ve.GetProperty(propRecurrenceID)
		if rid == nil {
			continue
		}
		a, err := decodeEvent(ve)
		if err != nil {
			slog.Warn("ics: skipping override", slog.String("uid", a.ID), slog.String("error", err.Error()))
			continue
		}
		t, err := parseICSTime(rid.Value, param(rid, "TZID"), a.Start.Location())
		if err != nil {
			slog.Warn("ics: bad RECURRENCE-ID", slog.String("uid", a.ID), slog.String("error", err.Error()))
			continue
		}
		a.ID = OccurrenceID(a.ID, t)
		overrides[a.ID] = in(a, opts.Location)
		order = append(order, a.ID)
	}

	var out []models.Appointment
	for _, ve := range events {
		if ve.GetProperty(propRecurrenceID) != nil {
			continue
		}
		a, err := decodeEvent(ve)
		if err != nil {
			slog.Warn("ics: skipping event", slog.String("uid", a.ID), slog.String("error", err.Error()))
			continue
		}
		if ve.GetProperty(ical.ComponentPropertyRrule) == nil {
			out = append(out, in(a, opts.Location))
			continue
		}
		instances, err := expand(ve, a, opts, overrides)
		if err != nil {
			slog.Warn("ics: skipping recurrence", slog.String("uid", a.ID), slog.String("error", err.Error()))
			continue
		}
		out = append(out, instances...)
	}
	// Overrides whose master is missing or outside the window are kept as
	// standalone appointments.
	for _, id := range order {
		if a, ok := overrides[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func in(a models.Appointment, loc *time.Location) models.Appointment {
	a.Start = a.Start.In(loc)
	a.End = a.End.In(loc)
	return a
}

var errNoStart = errors.New("missing DTSTART")

// decodeEvent returns the event with its times in the event's own zone.
func decodeEvent(ve *ical.VEvent) (models.Appointment, error) {
	var a models.Appointment
	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		a.ID = p.Value
	}
	if ve.GetProperty(ical.ComponentPropertyDtStart) == nil {
		return a, errNoStart
	}
	start, err := ve.GetStartAt()
	if err != nil {
		return a, fmt.Errorf("DTSTART: %w", err)
	}
	a.Start = start
	a.End = start
	if ve.GetProperty(ical.ComponentPropertyDtEnd) != nil {
		if end, err := ve.GetEndAt(); err == nil {
			a.End = end
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		a.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		a.Notes = p.Value
	}
	if p := ve.GetProperty(propPatient); p != nil {
		a.PatientName = p.Value
	}
	if p := ve.GetProperty(propColor); p != nil {
		a.Color = p.Value
	}
	if a.ID == "" {
		a.ID = derivedID(a.Start, a.Title)
	}
	return a, nil
}

// derivedID names an event without a UID after its start and summary, so
// importing the same document again replaces rather than duplicates it.
func derivedID(start time.Time, summary string) string {
	sum := sha256.Sum256([]byte(start.UTC().Format("20060102T150405Z") + "\x00" + summary))
	return "ics-" + hex.EncodeToString(sum[:8])
}
