package api

import (
	"time"

	"github.com/starford/agenda/internal/apptservice"
	"github.com/starford/agenda/internal/drag"
	"github.com/starford/agenda/internal/layout"
	"github.com/starford/agenda/internal/models"
	"github.com/starford/agenda/internal/store"
)

// AppointmentRequest is the request body for creating or replacing an appointment.
type AppointmentRequest = apptservice.Input

// MoveRequest is the request body for setting explicit times.
type MoveRequest = apptservice.MoveInput

// DropRequest is the request body for dropping on a grid cell.
type DropRequest = apptservice.DropInput

// AppointmentDetail is the full appointment response type (aliased from the domain layer).
type AppointmentDetail = apptservice.Detail

// ViewResponse is a filtered calendar window.
type ViewResponse = apptservice.ViewResult

// StateResponse is the shared view state.
type StateResponse = apptservice.StateResult

// StateRequest changes the shared view and anchor date.
type StateRequest struct {
	View string `json:"view" example:"weekly"`
	Date string `json:"date" example:"2026-10-14"`
}

// ImportResponse reports how many appointments an ICS import saved.
type ImportResponse struct {
	Imported int `json:"imported" example:"3" validate:"required"`
}

// GridConfigResponse describes the current calendar tunables.
type GridConfigResponse struct {
	Grid      layout.Grid     `json:"grid"`
	Grouping  layout.Grouping `json:"grouping"`
	WeekStart string          `json:"week_start" example:"monday"`
	Locale    string          `json:"locale" example:"pt-BR"`
	Timezone  string          `json:"timezone" example:"Local"`
	Drag      drag.Thresholds `json:"drag"`
}

func gridConfig(st apptservice.Settings) GridConfigResponse {
	return GridConfigResponse{
		Grid:      st.Grid,
		Grouping:  st.Grouping,
		WeekStart: weekdayName(st.WeekStart),
		Locale:    st.Locale.Tag().String(),
		Timezone:  st.Location.String(),
		Drag:      st.Thresholds,
	}
}

func weekdayName(d time.Weekday) string {
	if d == time.Sunday {
		return "sunday"
	}
	return "monday"
}

// SearchResult is a single search hit.
type SearchResult = store.SearchResult

// SearchResponse is the result of GET /api/search.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// DraftResponse is the prefilled appointment for a create form.
type DraftResponse struct {
	Draft models.Appointment `json:"draft"`
}
