// Package models defines the domain types for the appointment scheduler.
package models

import "time"

// DefaultColor is the colour token given to appointments created without one.
const DefaultColor = "#3b82f6"

// Appointment is a single booked slot in the calendar.
// An empty ID means the appointment has not been created yet.
type Appointment struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	PatientName string    `json:"patient_name"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Notes       string    `json:"notes"`
	Color       string    `json:"color"`
}

// IsNew reports whether the appointment still lacks an identifier.
func (a Appointment) IsNew() bool {
	return a.ID == ""
}

// Duration returns End - Start. It may be zero or negative for malformed input.
func (a Appointment) Duration() time.Duration {
	return a.End.Sub(a.Start)
}

// Overlaps reports whether the half-open intervals [Start, End) intersect.
func (a Appointment) Overlaps(b Appointment) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Category returns the closed colour category of the appointment.
func (a Appointment) Category() Category {
	return CategoryOf(a.Color)
}

// PositionedAppointment is an appointment placed on a day grid.
// It is derived on every render and never stored.
type PositionedAppointment struct {
	Appointment   Appointment `json:"appointment"`
	Group         int         `json:"group"`
	Column        int         `json:"column"`
	ColumnCount   int         `json:"column_count"`
	StartPosition float64     `json:"start_position"`
	Duration      float64     `json:"duration"`
	// Height is Duration floored to the grid's minimum block height.
	Height float64 `json:"height"`
}
