package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/starford/agenda/internal/models"
)

// OccurrenceID identifies one instance of a recurring event. It is stable
// across imports, so re-importing a feed updates instances in place.
func OccurrenceID(uid string, start time.Time) string {
	if uid == "" {
		uid = "recurring"
	}
	return uid + "@" + start.UTC().Format("20060102T150405Z")
}

// expand turns a master VEVENT into its instances inside the window.
// Matching overrides are consumed from overrides.
func expand(ve *ical.VEvent, master models.Appointment, opts Options, overrides map[string]models.Appointment) ([]models.Appointment, error) {
	prop := ve.GetProperty(ical.ComponentPropertyRrule)
	rule, err := rrule.StrToRRule(prop.Value)
	if err != nil {
		return nil, fmt.Errorf("RRULE %q: %w", prop.Value, err)
	}
	// Instances follow DTSTART's zone, so DST shifts keep the wall-clock time.
	rule.DTStart(master.Start)

	var set rrule.Set
	set.RRule(rule)
	zone := master.Start.Location()
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, t := range parseTimeList(p, zone) {
			set.ExDate(t)
		}
	}
	for _, p := range ve.GetProperties(propRDate) {
		for _, t := range parseTimeList(p, zone) {
			set.RDate(t)
		}
	}

	from, until := opts.From, opts.Until
	if from.IsZero() {
		from = master.Start
	}
	if until.IsZero() {
		until = from.Add(DefaultHorizon)
	}
	if !until.After(from) {
		return nil, errors.New("empty expansion window")
	}

	starts := set.Between(from, until, true)
	if len(starts) > opts.MaxOccurrences {
		starts = starts[:opts.MaxOccurrences]
	}

	duration := master.End.Sub(master.Start)
	out := make([]models.Appointment, 0, len(starts))
	for _, s := range starts {
		id := OccurrenceID(master.ID, s)
		if o, ok := overrides[id]; ok {
			out = append(out, o)
			delete(overrides, id)
			continue
		}
		a := master
		a.ID = id
		a.Start = s.In(opts.Location)
		a.End = s.Add(duration).In(opts.Location)
		out = append(out, a)
	}
	return out, nil
}

func param(p *ical.IANAProperty, name string) string {
	if v := p.ICalParameters[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// parseTimeList reads a comma-separated EXDATE/RDATE value. Unparseable
// entries are dropped.
func parseTimeList(p *ical.IANAProperty, zone *time.Location) []time.Time {
	var out []time.Time
	tzid := param(p, "TZID")
	for _, v := range strings.Split(p.Value, ",") {
		if t, err := parseICSTime(v, tzid, zone); err == nil {
			out = append(out, t)
		}
	}
	return out
}

// parseICSTime parses DATE, floating DATE-TIME and UTC DATE-TIME values.
// Floating values use tzid when it names a known zone, else zone.
func parseICSTime(v, tzid string, zone *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if tzid != "" {
		if loc, err := time.LoadLocation(tzid); err == nil {
			zone = loc
		}
	}
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, zone)
	default:
		return time.ParseInLocation("20060102", v, zone)
	}
}
