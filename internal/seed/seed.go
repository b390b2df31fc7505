// Package seed provides the sample appointments loaded into an empty store.
package seed

import (
	"time"

	"github.com/starford/agenda/internal/models"
)

type sample struct {
	day            int
	sh, sm, eh, em int
	title, patient string
	notes          string
	color          int
}

var samples = []sample{
	{0, 9, 0, 10, 30, "Annual Checkup", "John Smith", "Regular annual physical examination", 0},
	{0, 11, 0, 11, 45, "Follow-up Consultation", "Emma Johnson", "Follow-up on medication adjustment", 1},
	{0, 14, 0, 14, 15, "Vaccination", "Michael Brown", "Flu shot", 2},
	{1, 10, 10, 11, 0, "Therapy Session", "Sarah Wilson", "Weekly therapy session", 3},
	{1, 13, 15, 13, 45, "Lab Results Review", "David Lee", "Review recent blood work results", 4},
	{2, 9, 0, 10, 0, "New Patient Consultation", "Jennifer Garcia", "Initial consultation for new patient", 0},
	{2, 11, 30, 12, 0, "Prescription Renewal", "Robert Martinez", "Medication review and prescription renewal", 1},
	{3, 15, 0, 16, 0, "Physical Therapy", "Lisa Anderson", "Shoulder rehabilitation session", 2},
	{4, 10, 30, 11, 0, "Dermatology Consultation", "Thomas White", "Skin condition assessment", 3},
	{4, 14, 0, 14, 30, "Pediatric Checkup", "Olivia Harris", "Regular growth and development checkup", 4},
}

// Appointments returns ten appointments spread over the five days starting
// at today. They carry no id; saving them assigns one.
func Appointments(today time.Time) []models.Appointment {
	y, m, d := today.Date()
	loc := today.Location()
	out := make([]models.Appointment, 0, len(samples))
	for _, s := range samples {
		out = append(out, models.Appointment{
			Title:       s.title,
			PatientName: s.patient,
			Start:       time.Date(y, m, d+s.day, s.sh, s.sm, 0, 0, loc),
			End:         time.Date(y, m, d+s.day, s.eh, s.em, 0, 0, loc),
			Notes:       s.notes,
			Color:       models.Palette[s.color],
		})
	}
	return out
}
