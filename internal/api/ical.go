package api

import (
	"bytes"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
)

const maxImportBytes = 10 << 20 // 10 MB

// ExportICS handles GET /api/calendar.ics.
//
//	@Summary		Export all appointments as iCalendar
//	@Tags			ical
//	@Produce		text/calendar
//	@Success		200	{string}	string
//	@Security		BearerAuth
//	@Router			/calendar.ics [get]
func (h *Handler) ExportICS(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.svc.Export(r.Context(), &buf); err != nil {
		slog.Error("export ics failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="agenda.ics"`)
	_, _ = w.Write(buf.Bytes())
}

// ImportICS handles POST /api/import. The calendar is either the raw body
// or the "file" field of a multipart form.
//
//	@Summary		Import appointments from iCalendar
//	@Tags			ical
//	@Accept			text/calendar
//	@Produce		json
//	@Success		200	{object}	ImportResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *Handler) ImportICS(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	var src io.Reader = r.Body
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mt, "multipart/") {
		if err := r.ParseMultipartForm(maxImportBytes); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
			return
		}
		defer file.Close()
		src = file
	}

	n, err := h.svc.Import(r.Context(), src)
	if err != nil {
		writeServiceError(w, "import ics", err)
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{Imported: n})
}
