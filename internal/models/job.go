package models

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/daybook/internal/datekey"
)

// Job is a scheduled piece of work with a quoted price.
type Job struct {
	ID        ID        `json:"id"`
	Title     string    `json:"title"`
	Location  string    `json:"location,omitempty"`
	Quote     Money     `json:"quote"`
	Tools     string    `json:"tools,omitempty"`
	Status    Status    `json:"status"`
	DateKey   string    `json:"dateKey"`
	CreatedAt time.Time `json:"createdAt"`
}

func (j Job) RecordID() ID  { return j.ID }
func (j Job) Kind() Kind    { return KindJob }
func (j Job) Amount() Money { return j.Quote }
func (Job) isRecord()       {}

// Validate checks the fields a job cannot be stored without.
func (j Job) Validate() error {
	return validation.ValidateStruct(&j,
		validation.Field(&j.Title, notBlank),
		validation.Field(&j.Quote, validation.Min(int64(0))),
		validation.Field(&j.DateKey, validation.Required, validation.By(func(v interface{}) error {
			if !datekey.Valid(v.(string)) {
				return validation.NewError("validation_date_key", "must be a YYYY-MM-DD date key")
			}
			return nil
		})),
	)
}

// Status is a job's position in its workflow.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusComplete   Status = "Complete"

	StatusScheduled         Status = "Scheduled"
	StatusInProgressTracked Status = "In-Progress"
	StatusInvoiced          Status = "Invoiced"
	StatusPaid              Status = "Paid"
)

// StatusCycle is the fixed order a job's status advances through.
type StatusCycle []Status

var (
	BasicStatuses    = StatusCycle{StatusPending, StatusInProgress, StatusComplete}
	ExtendedStatuses = StatusCycle{StatusScheduled, StatusInProgressTracked, StatusComplete, StatusInvoiced, StatusPaid}
)

// StatusCycleByName resolves a configured cycle name.
func StatusCycleByName(name string) (StatusCycle, error) {
	switch strings.ToLower(name) {
	case "", "basic":
		return BasicStatuses, nil
	case "extended":
		return ExtendedStatuses, nil
	}
	return nil, fmt.Errorf("models: unknown status cycle %q", name)
}

// First is the status new jobs start in.
func (c StatusCycle) First() Status {
	return c[0]
}

// Next returns the status after s, wrapping from the last back to the first.
// A status outside the cycle restarts it.
func (c StatusCycle) Next(s Status) Status {
	for i, st := range c {
		if st == s {
			return c[(i+1)%len(c)]
		}
	}
	return c.First()
}

// Contains reports whether s belongs to the cycle.
func (c StatusCycle) Contains(s Status) bool {
	for _, st := range c {
		if st == s {
			return true
		}
	}
	return false
}
