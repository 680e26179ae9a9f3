package api

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/starford/daybook/internal/apperr"
	"github.com/starford/daybook/internal/icalexport"
)

// Week handles GET /api/weeks/{date}.
//
//	@Summary		Monday-start week around a day with quote totals
//	@Tags			weeks
//	@Produce		json
//	@Param			date	path		string	true	"Anchor day: date key or natural language"
//	@Param			kind	query		string	false	"Record kind"	Enums(notes, jobs)
//	@Success		200		{object}	object
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/weeks/{date} [get]
func (h *Handler) Week(w http.ResponseWriter, r *http.Request) {
	anchor, ok := h.dayParam(w, r)
	if !ok {
		return
	}
	owner := IdentityFrom(r.Context()).ID

	switch kind := r.URL.Query().Get("kind"); kind {
	case "", "jobs", "job":
		week, err := h.svc.JobsWeek(r.Context(), owner, anchor)
		if err != nil {
			ownerError(w, owner, err)
			return
		}
		writeETagJSON(w, r, week)
	case "notes", "note":
		week, err := h.svc.NotesWeek(r.Context(), owner, anchor)
		if err != nil {
			ownerError(w, owner, err)
			return
		}
		writeETagJSON(w, r, week)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody(fmt.Sprintf("unknown kind %q", kind)))
	}
}

// WeekCalendar handles GET /api/weeks/{date}/jobs.ics.
//
//	@Summary		Week of jobs as an iCalendar feed
//	@Tags			weeks
//	@Produce		text/calendar
//	@Param			date	path		string	true	"Anchor day: date key or natural language"
//	@Success		200		{string}	string
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/weeks/{date}/jobs.ics [get]
func (h *Handler) WeekCalendar(w http.ResponseWriter, r *http.Request) {
	anchor, ok := h.dayParam(w, r)
	if !ok {
		return
	}
	owner := IdentityFrom(r.Context()).ID
	week, err := h.svc.JobsWeek(r.Context(), owner, anchor)
	if err != nil {
		ownerError(w, owner, err)
		return
	}

	var buf bytes.Buffer
	if err := icalexport.Encode(&buf, owner, week, time.Now()); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("no jobs this week"))
			return
		}
		slog.Error("encode calendar failed", slog.String("owner", owner), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.Header().Set("Content-Type", icalexport.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="jobs-%s.ics"`, week.Start()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
