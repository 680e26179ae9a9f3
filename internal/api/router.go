package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/starford/daybook/internal/identity"
	"github.com/starford/daybook/internal/planner"
)

// NewRouter creates a chi router with all API routes mounted.
// A nil dir disables sign-in: every request then acts as identity.Local.
// Otherwise everything except sign-in and sign-up needs a bearer token.
func NewRouter(svc *planner.Service, dir *identity.Directory) chi.Router {
	h := NewHandler(svc)
	ah := NewAuthHandler(dir)

	var resolver Resolver
	if dir != nil {
		resolver = dir
	}

	r := chi.NewRouter()

	// Public.
	r.Post("/auth/signin", ah.SignIn)
	r.Post("/auth/signup", ah.SignUp)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(resolver))

		r.Post("/auth/signout", ah.SignOut)
		r.Get("/auth/me", ah.Me)

		// Days.
		r.Get("/days", h.ListDays)
		r.Get("/days/{date}/notes", h.ListNotes)
		r.Post("/days/{date}/notes", h.AddNote)
		r.Delete("/days/{date}/notes/{id}", h.RemoveNote)
		r.Get("/days/{date}/jobs", h.ListJobs)
		r.Post("/days/{date}/jobs", h.AddJob)
		r.Delete("/days/{date}/jobs/{id}", h.RemoveJob)
		r.Post("/days/{date}/jobs/{id}/advance", h.AdvanceJob)

		// Weeks.
		r.Get("/weeks/{date}", h.Week)
		r.Get("/weeks/{date}/jobs.ics", h.WeekCalendar)

		// SSE.
		r.Get("/events", h.Events)
	})

	return r
}
