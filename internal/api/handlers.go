package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/starford/daybook/internal/apperr"
	"github.com/starford/daybook/internal/datekey"
	"github.com/starford/daybook/internal/models"
	"github.com/starford/daybook/internal/planner"
)

// Handler holds the day, week and event route handlers.
type Handler struct {
	svc *planner.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *planner.Service) *Handler {
	return &Handler{svc: svc}
}

// dayParam resolves the {date} URL parameter. It accepts a date key or a
// natural-language day such as "next friday".
func (h *Handler) dayParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := chi.URLParam(r, "date")
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	day, err := h.svc.ParseDay(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid date"))
		return time.Time{}, false
	}
	return day, true
}

func recordID(r *http.Request) models.ID {
	return models.ID(chi.URLParam(r, "id"))
}

// ownerError answers a failure to open the caller's stores.
func ownerError(w http.ResponseWriter, owner string, err error) {
	if errors.Is(err, apperr.ErrValidation) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid owner"))
		return
	}
	slog.Error("open stores failed", slog.String("owner", owner), slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}

// ListDays handles GET /api/days.
//
//	@Summary		Navigation range and the days holding records
//	@Tags			days
//	@Produce		json
//	@Success		200	{object}	DaysResponse
//	@Security		BearerAuth
//	@Router			/days [get]
func (h *Handler) ListDays(w http.ResponseWriter, r *http.Request) {
	owner := IdentityFrom(r.Context()).ID
	notes, err := h.svc.Notes(owner)
	if err != nil {
		ownerError(w, owner, err)
		return
	}
	jobs, err := h.svc.Jobs(r.Context(), owner)
	if err != nil {
		ownerError(w, owner, err)
		return
	}

	noteDays, err := notes.Days(r.Context())
	if err != nil {
		slog.Error("list note days failed", slog.String("owner", owner), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	jobDays, err := jobs.Days(r.Context())
	if err != nil {
		slog.Error("list job days failed", slog.String("owner", owner), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	window := h.svc.Days()
	writeJSON(w, http.StatusOK, DaysResponse{
		Today:     datekey.Format(h.svc.Today()),
		Start:     datekey.Format(window.Start),
		End:       datekey.Format(window.End),
		NoteDays:  noteDays,
		JobDays:   jobDays,
		RangeSize: window.Len(),
	})
}

// ListNotes handles GET /api/days/{date}/notes.
//
//	@Summary		Notes of one day
//	@Tags			notes
//	@Produce		json
//	@Param			date	path		string	true	"Date key or natural-language day"
//	@Success		200		{object}	NotesDay
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/days/{date}/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dayParam(w, r)
	if !ok {
		return
	}
	owner := IdentityFrom(r.Context()).ID
	st, err := h.svc.Notes(owner)
	if err != nil {
		ownerError(w, owner, err)
		return
	}
	key := datekey.Format(day)
	writeETagJSON(w, r, NotesDay{Key: key, Label: datekey.Label(day), Records: st.Load(r.Context(), key)})
}

// AddNote handles POST /api/days/{date}/notes.
//
//	@Summary		Append a note to a day
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			date	path		string		true	"Date key or natural-language day"
//	@Param			body	body		NoteRequest	true	"Note text"
//	@Success		201		{object}	NotesDay
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/days/{date}/notes [post]
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dayParam(w, r)
	if !ok {
		return
	}
	var req NoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note := h.svc.NewNote(req.Text)
	if err := note.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("text is required"))
		return
	}

	owner := IdentityFrom(r.Context()).ID
	st, err := h.svc.Notes(owner)
	if err != nil {
		ownerError(w, owner, err)
		return
	}
	key := datekey.Format(day)
	records := st.Append(r.Context(), key, note)
	writeJSON(w, http.StatusCreated, NotesDay{Key: key, Label: datekey.Label(day), Records: records})
}

// RemoveNote handles DELETE /api/days/{date}/notes/{id}.
//
//	@Summary		Remove a note; unknown ids are ignored
//	@Tags			notes
//	@Produce		json
//	@Param			date	path		string	true	"Date key or natural-language day"
//	@Param			id		path		string	true	"Note id"
//	@Success		200		{object}	NotesDay
//	@Security		BearerAuth
//	@Router			/days/{date}/notes/{id} [delete]
func (h *Handler) RemoveNote(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dayParam(w, r)
	if !ok {
		return
	}
	owner := IdentityFrom(r.Context()).ID
	st, err := h.svc.Notes(owner)
	if err != nil {
		ownerError(w, owner, err)
		return
	}
	key := datekey.Format(day)
	records := st.Remove(r.Context(), key, recordID(r))
	writeJSON(w, http.StatusOK, NotesDay{Key: key, Label: datekey.Label(day), Records: records})
}

// ListJobs handles GET /api/days/{date}/jobs.
//
//	@Summary		Jobs of one day with the day's quote total
//	@Tags			jobs
//	@Produce		json
//	@Param			date	path		string	true	"Date key or natural-language day"
//	@Success		200		{object}	JobsDay
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/days/{date}/jobs [get]
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dayParam(w, r)
	if !ok {
		return
	}
	owner := IdentityFrom(r.Context()).ID
	book, err := h.svc.Jobs(r.Context(), owner)
	if err != nil {
		ownerError(w, owner, err)
		return
	}
	key := datekey.Format(day)
	writeETagJSON(w, r, jobsDay(key, datekey.Label(day), book.Load(r.Context(), key)))
}

// AddJob handles POST /api/days/{date}/jobs.
//
//	@Summary		Append a job to a day
//	@Tags			jobs
//	@Accept			json
//	@Produce		json
//	@Param			date	path		string		true	"Date key or natural-language day"
//	@Param			body	body		JobRequest	true	"Job fields; quote is free text"
//	@Success		201		{object}	JobsDay
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/days/{date}/jobs [post]
func (h *Handler) AddJob(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dayParam(w, r)
	if !ok {
		return
	}
	var req JobRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	key := datekey.Format(day)
	job, err := h.svc.NewJob(key, req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("title is required"))
		return
	}

	owner := IdentityFrom(r.Context()).ID
	book, err := h.svc.Jobs(r.Context(), owner)
	if err != nil {
		ownerError(w, owner, err)
		return
	}
	records := book.Append(r.Context(), key, job)
	writeJSON(w, http.StatusCreated, jobsDay(key, datekey.Label(day), records))
}

// RemoveJob handles DELETE /api/days/{date}/jobs/{id}.
//
//	@Summary		Remove a job; unknown ids are ignored
//	@Tags			jobs
//	@Produce		json
//	@Param			date	path		string	true	"Date key or natural-language day"
//	@Param			id		path		string	true	"Job id"
//	@Success		200		{object}	JobsDay
//	@Security		BearerAuth
//	@Router			/days/{date}/jobs/{id} [delete]
func (h *Handler) RemoveJob(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dayParam(w, r)
	if !ok {
		return
	}
	owner := IdentityFrom(r.Context()).ID
	book, err := h.svc.Jobs(r.Context(), owner)
	if err != nil {
		ownerError(w, owner, err)
		return
	}
	key := datekey.Format(day)
	records := book.Remove(r.Context(), key, recordID(r))
	writeJSON(w, http.StatusOK, jobsDay(key, datekey.Label(day), records))
}

// AdvanceJob handles POST /api/days/{date}/jobs/{id}/advance.
//
//	@Summary		Move a job to the next status in the cycle
//	@Tags			jobs
//	@Produce		json
//	@Param			date	path		string	true	"Date key or natural-language day"
//	@Param			id		path		string	true	"Job id"
//	@Success		200		{object}	JobsDay
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/days/{date}/jobs/{id}/advance [post]
func (h *Handler) AdvanceJob(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dayParam(w, r)
	if !ok {
		return
	}
	owner := IdentityFrom(r.Context()).ID
	book, err := h.svc.Jobs(r.Context(), owner)
	if err != nil {
		ownerError(w, owner, err)
		return
	}
	key := datekey.Format(day)
	id := recordID(r)
	if !slices.ContainsFunc(book.Load(r.Context(), key), func(j models.Job) bool { return j.ID == id }) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	records := book.AdvanceStatus(r.Context(), key, id)
	writeJSON(w, http.StatusOK, jobsDay(key, datekey.Label(day), records))
}

// Events handles GET /api/events.
//
//	@Summary		Live bucket and collection updates for the caller
//	@Tags			events
//	@Produce		text/event-stream
//	@Success		200
//	@Security		BearerAuth
//	@Router			/events [get]
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	broker := h.svc.Broker()
	if broker == nil {
		writeJSON(w, http.StatusNotFound, errorBody("live events disabled"))
		return
	}
	broker.Serve(w, r, IdentityFrom(r.Context()).ID)
}
