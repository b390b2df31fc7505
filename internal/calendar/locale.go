package calendar

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/starford/agenda/internal/models"
)

// Locale supplies the month and weekday names used in labels.
type Locale interface {
	Tag() language.Tag
	MonthName(m time.Month) string
	MonthAbbrev(m time.Month) string
	WeekdayAbbrev(d time.Weekday) string
}

type tableLocale struct {
	tag      language.Tag
	months   [12]string
	mAbbrev  [12]string
	weekdays [7]string
}

func (l tableLocale) Tag() language.Tag                   { return l.tag }
func (l tableLocale) MonthName(m time.Month) string       { return l.months[m-1] }
func (l tableLocale) MonthAbbrev(m time.Month) string     { return l.mAbbrev[m-1] }
func (l tableLocale) WeekdayAbbrev(d time.Weekday) string { return l.weekdays[d] }

// PtBR is the reference locale.
var PtBR Locale = tableLocale{
	tag: language.BrazilianPortuguese,
	months: [12]string{"janeiro", "fevereiro", "março", "abril", "maio", "junho",
		"julho", "agosto", "setembro", "outubro", "novembro", "dezembro"},
	mAbbrev:  [12]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"},
	weekdays: [7]string{"dom", "seg", "ter", "qua", "qui", "sex", "sáb"},
}

// EnUS is the English locale.
var EnUS Locale = tableLocale{
	tag: language.AmericanEnglish,
	months: [12]string{"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December"},
	mAbbrev:  [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
	weekdays: [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
}

var (
	supported = []Locale{PtBR, EnUS}
	matcher   = language.NewMatcher([]language.Tag{PtBR.Tag(), EnUS.Tag()})
)

// LookupLocale returns the supported locale closest to the given BCP 47 tag.
func LookupLocale(tag string) (Locale, error) {
	t, err := language.Parse(tag)
	if err != nil {
		return nil, fmt.Errorf("calendar: parse locale %q: %w", tag, err)
	}
	_, idx, conf := matcher.Match(t)
	if conf == language.No {
		return nil, fmt.Errorf("calendar: unsupported locale %q", tag)
	}
	return supported[idx], nil
}

// MatchLocale picks a locale from an Accept-Language header value, falling
// back to def when nothing matches.
func MatchLocale(acceptLanguage string, def Locale) Locale {
	if strings.TrimSpace(acceptLanguage) == "" {
		return def
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return def
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return def
	}
	return supported[idx]
}

// Label renders the display text of the window around anchor:
//
//	daily    d/MMMM/yyyy
//	weekly   d MMM - d/MMM/yyyy
//	monthly  MMMM yyyy
func Label(anchor time.Time, view models.ViewType, weekStart time.Weekday, loc Locale) string {
	if loc == nil {
		loc = PtBR
	}
	switch view {
	case models.ViewWeekly:
		w := WindowFor(anchor, view, weekStart)
		return fmt.Sprintf("%d %s - %d/%s/%d",
			w.Start.Day(), loc.MonthAbbrev(w.Start.Month()),
			w.End.Day(), loc.MonthAbbrev(w.End.Month()), w.End.Year())
	case models.ViewMonthly:
		return fmt.Sprintf("%s %d", loc.MonthName(anchor.Month()), anchor.Year())
	default:
		return fmt.Sprintf("%d/%s/%d", anchor.Day(), loc.MonthName(anchor.Month()), anchor.Year())
	}
}
