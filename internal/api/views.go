package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/agenda/internal/models"
)

// RenderView handles GET /api/views/{view}.
//
//	@Summary		Render a daily, weekly or monthly grid
//	@Tags			views
//	@Produce		json
//	@Param			view	path		string	true	"Grid"	Enums(daily, weekly, monthly)
//	@Param			date	query		string	false	"Anchor date (YYYY-MM-DD)"
//	@Param			active	query		string	false	"Id of the appointment being dragged"
//	@Success		200		{object}	object
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/views/{view} [get]
func (h *Handler) RenderView(w http.ResponseWriter, r *http.Request) {
	view, err := models.ParseViewType(chi.URLParam(r, "view"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	q := r.URL.Query()
	date, err := h.svc.ParseDate(q.Get("date"))
	if err != nil {
		writeServiceError(w, "render view", err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Render(r.Context(), view, date, q.Get("active"), h.locale(r)))
}

// Draft handles GET /api/drafts.
//
//	@Summary		Prefilled 09:00-10:00 appointment for a day
//	@Tags			views
//	@Produce		json
//	@Param			date	query		string	false	"Day (YYYY-MM-DD), default today"
//	@Success		200		{object}	DraftResponse
//	@Security		BearerAuth
//	@Router			/drafts [get]
func (h *Handler) Draft(w http.ResponseWriter, r *http.Request) {
	date, err := h.svc.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeServiceError(w, "draft", err)
		return
	}
	writeJSON(w, http.StatusOK, DraftResponse{Draft: h.svc.Draft(date)})
}

// GetState handles GET /api/state.
//
//	@Summary		Shared view state
//	@Tags			state
//	@Produce		json
//	@Success		200	{object}	StateResponse
//	@Security		BearerAuth
//	@Router			/state [get]
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.State(r.Context()))
}

// SetState handles PUT /api/state.
//
//	@Summary		Change the shared view and anchor date
//	@Tags			state
//	@Accept			json
//	@Produce		json
//	@Param			body	body		StateRequest	true	"View and date"
//	@Success		200		{object}	StateResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/state [put]
func (h *Handler) SetState(w http.ResponseWriter, r *http.Request) {
	var req StateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := models.ParseViewType(req.View)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	var date time.Time
	if req.Date != "" {
		if date, err = h.svc.ParseDate(req.Date); err != nil {
			writeServiceError(w, "set state", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, h.svc.SetView(r.Context(), view, date))
}

// Navigate handles POST /api/state/{action}.
//
//	@Summary		Move the shared view to the previous, next or current window
//	@Tags			state
//	@Produce		json
//	@Param			action	path		string	true	"Navigation"	Enums(previous, next, today)
//	@Success		200		{object}	StateResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/state/{action} [post]
func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Navigate(r.Context(), chi.URLParam(r, "action"))
	if err != nil {
		writeServiceError(w, "navigate", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GridConfig handles GET /api/config/grid.
//
//	@Summary		Current calendar tunables
//	@Tags			config
//	@Produce		json
//	@Success		200	{object}	GridConfigResponse
//	@Security		BearerAuth
//	@Router			/config/grid [get]
func (h *Handler) GridConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, gridConfig(h.svc.Settings()))
}
