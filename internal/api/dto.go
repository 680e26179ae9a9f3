package api

import (
	"github.com/starford/daybook/internal/identity"
	"github.com/starford/daybook/internal/models"
	"github.com/starford/daybook/internal/planner"
)

// SignInRequest is the request body for POST /auth/signin.
type SignInRequest struct {
	Method   string `json:"method" example:"email" validate:"required"`
	Email    string `json:"email,omitempty" example:"sam@example.com"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
}

// SignUpRequest is the request body for POST /auth/signup.
type SignUpRequest struct {
	Email    string `json:"email" example:"sam@example.com" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// SessionResponse is returned after a successful sign-in.
type SessionResponse struct {
	Identity identity.Identity `json:"identity" validate:"required"`
	Token    string            `json:"token" validate:"required"`
}

// DaysResponse describes the navigation range and the days holding records.
type DaysResponse struct {
	Today     string   `json:"today" example:"2025-11-19" validate:"required"`
	Start     string   `json:"start" example:"2025-11-19" validate:"required"`
	End       string   `json:"end" example:"2026-11-19" validate:"required"`
	NoteDays  []string `json:"noteDays" validate:"required"`
	JobDays   []string `json:"jobDays" validate:"required"`
	RangeSize int      `json:"rangeSize" example:"366" validate:"required"`
}

// NoteRequest is the request body for adding a note.
type NoteRequest struct {
	Text string `json:"text" example:"Order timber" validate:"required"`
}

// JobRequest is the request body for adding a job. Quote is free text.
type JobRequest = planner.JobInput

// NotesDay is the notes of one day.
type NotesDay struct {
	Key     string        `json:"key" example:"2025-11-19" validate:"required"`
	Label   string        `json:"label" example:"Wednesday, November 19, 2025" validate:"required"`
	Records []models.Note `json:"records" validate:"required"`
}

// JobsDay is the jobs of one day with their quote total.
type JobsDay struct {
	Key      string       `json:"key" example:"2025-11-19" validate:"required"`
	Label    string       `json:"label" example:"Wednesday, November 19, 2025" validate:"required"`
	Records  []models.Job `json:"records" validate:"required"`
	DayTotal models.Money `json:"dayTotal" example:"125.50" validate:"required"`
}

func jobsDay(key, label string, jobs []models.Job) JobsDay {
	var total models.Money
	for _, j := range jobs {
		total = total.Add(j.Quote)
	}
	return JobsDay{Key: key, Label: label, Records: jobs, DayTotal: total}
}
