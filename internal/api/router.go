package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/agenda/internal/apptservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *apptservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Appointments CRUD.
	r.Get("/appointments", h.ListAppointments)
	r.Post("/appointments", h.CreateAppointment)
	r.Get("/appointments/{id}", h.GetAppointment)
	r.Put("/appointments/{id}", h.UpdateAppointment)
	r.Delete("/appointments/{id}", h.DeleteAppointment)

	r.Get("/search", h.Search)

	// Rescheduling.
	r.Post("/appointments/{id}/move", h.MoveAppointment)
	r.Post("/appointments/{id}/drop", h.DropAppointment)

	// Rendered grids and drafts.
	r.Get("/views/{view}", h.RenderView)
	r.Get("/drafts", h.Draft)

	// Shared view state.
	r.Get("/state", h.GetState)
	r.Put("/state", h.SetState)
	r.Post("/state/{action}", h.Navigate)

	// iCalendar.
	r.Get("/calendar.ics", h.ExportICS)
	r.Post("/import", h.ImportICS)

	r.Get("/config/grid", h.GridConfig)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
