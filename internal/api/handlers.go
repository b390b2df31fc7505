package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/agenda/internal/apptservice"
	"github.com/starford/agenda/internal/calendar"
	"github.com/starford/agenda/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *apptservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *apptservice.Service) *Handler {
	return &Handler{svc: svc}
}

// locale picks the label locale from ?locale= or Accept-Language.
func (h *Handler) locale(r *http.Request) calendar.Locale {
	def := h.svc.Settings().Locale
	if tag := r.URL.Query().Get("locale"); tag != "" {
		if loc, err := calendar.LookupLocale(tag); err == nil {
			return loc
		}
	}
	return calendar.MatchLocale(r.Header.Get("Accept-Language"), def)
}

// ListAppointments handles GET /api/appointments.
//
//	@Summary		List the appointments visible in a calendar window
//	@Tags			appointments
//	@Produce		json
//	@Param			view	query		string	false	"Window granularity"	Enums(daily, weekly, monthly)
//	@Param			date	query		string	false	"Anchor date (YYYY-MM-DD), default today"
//	@Param			locale	query		string	false	"Label locale (BCP 47)"
//	@Success		200		{object}	ViewResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/appointments [get]
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view, err := models.ParseViewType(q.Get("view"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	date, err := h.svc.ParseDate(q.Get("date"))
	if err != nil {
		writeServiceError(w, "list appointments", err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.List(r.Context(), view, date, h.locale(r)))
}

// GetAppointment handles GET /api/appointments/{id}.
//
//	@Summary		Get a single appointment
//	@Tags			appointments
//	@Produce		json
//	@Param			id	path		string	true	"Appointment id"
//	@Success		200	{object}	AppointmentDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/appointments/{id} [get]
func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get appointment", err, slog.String("id", id))
		return
	}
	w.Header().Set("ETag", `"`+a.Checksum+`"`)
	writeJSON(w, http.StatusOK, a)
}

// CreateAppointment handles POST /api/appointments.
//
//	@Summary		Create an appointment
//	@Tags			appointments
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AppointmentRequest	true	"Appointment to create"
//	@Success		201		{object}	AppointmentDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/appointments [post]
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req AppointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, "create appointment", err, slog.String("title", req.Title))
		return
	}
	w.Header().Set("ETag", `"`+a.Checksum+`"`)
	writeJSON(w, http.StatusCreated, a)
}

// UpdateAppointment handles PUT /api/appointments/{id}.
//
//	@Summary		Replace an appointment with optimistic concurrency
//	@Tags			appointments
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string				true	"Appointment id"
//	@Param			If-Match	header		string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body		AppointmentRequest	true	"Replacement"
//	@Success		200			{object}	AppointmentDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/appointments/{id} [put]
func (h *Handler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req AppointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	a, err := h.svc.Update(r.Context(), id, req, ifMatch)
	if err != nil {
		writeServiceError(w, "update appointment", err, slog.String("id", id))
		return
	}
	w.Header().Set("ETag", `"`+a.Checksum+`"`)
	writeJSON(w, http.StatusOK, a)
}

// DeleteAppointment handles DELETE /api/appointments/{id}.
//
//	@Summary		Delete an appointment
//	@Tags			appointments
//	@Param			id	path	string	true	"Appointment id"
//	@Success		204	"Appointment deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/appointments/{id} [delete]
func (h *Handler) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, "delete appointment", err, slog.String("id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveAppointment handles POST /api/appointments/{id}/move.
//
//	@Summary		Set explicit start and end times
//	@Tags			appointments
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Appointment id"
//	@Param			body	body		MoveRequest	true	"New times"
//	@Success		200		{object}	AppointmentDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/appointments/{id}/move [post]
func (h *Handler) MoveAppointment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req MoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.svc.Move(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, "move appointment", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// DropAppointment handles POST /api/appointments/{id}/drop.
//
//	@Summary		Drop an appointment on a grid cell, keeping its duration
//	@Tags			appointments
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Appointment id"
//	@Param			body	body		DropRequest	true	"Drop target"
//	@Success		200		{object}	AppointmentDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/appointments/{id}/drop [post]
func (h *Handler) DropAppointment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req DropRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.svc.Drop(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, "drop appointment", err, slog.String("id", id), slog.String("target", req.Target))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Search handles GET /api/search?q=...&limit=...
//
//	@Summary		Full-text search over title, patient and notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results (default 20)"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeServiceError(w, "search", err, slog.String("q", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: q, Results: results})
}
