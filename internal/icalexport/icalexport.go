// Package icalexport renders a week of jobs as an iCalendar feed.
package icalexport

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/emersion/go-ical"

	"github.com/starford/daybook/internal/apperr"
	"github.com/starford/daybook/internal/datekey"
	"github.com/starford/daybook/internal/models"
	"github.com/starford/daybook/internal/weekly"
)

// ProductID identifies the generator in PRODID.
const ProductID = "-//starford//daybook//EN"

// ContentType is the MIME type of the encoded feed.
const ContentType = "text/calendar; charset=utf-8"

// Encode writes one all-day VEVENT per job in week to w. owner scopes the
// event UIDs so feeds from different users never collide. A week without
// jobs has nothing to encode and yields apperr.ErrNotFound.
func Encode(w io.Writer, owner string, week weekly.Week[models.Job], now time.Time) error {
	jobs := 0
	for _, day := range week.Days {
		jobs += len(day.Records)
	}
	if jobs == 0 {
		return fmt.Errorf("icalexport: week of %s has no jobs: %w", week.Start(), apperr.ErrNotFound)
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)

	for _, day := range week.Days {
		start, err := datekey.Parse(day.Key, time.UTC)
		if err != nil {
			return fmt.Errorf("icalexport: %w", err)
		}
		for _, job := range day.Records {
			cal.Children = append(cal.Children, jobEvent(owner, job, start, now).Component)
		}
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("icalexport: encode: %w", err)
	}
	return nil
}

func jobEvent(owner string, job models.Job, day, now time.Time) *ical.Event {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, fmt.Sprintf("%s-%s@daybook", job.ID, owner))
	event.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	event.Props.SetDate(ical.PropDateTimeStart, day)
	event.Props.SetDate(ical.PropDateTimeEnd, datekey.AddDays(day, 1))
	event.Props.SetText(ical.PropSummary, job.Title)
	if job.Location != "" {
		event.Props.SetText(ical.PropLocation, job.Location)
	}
	event.Props.SetText(ical.PropDescription, description(job))
	if job.Status != "" {
		event.Props.SetText(ical.PropCategories, string(job.Status))
	}
	return event
}

func description(job models.Job) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Quote: %s", job.Quote)
	if job.Status != "" {
		fmt.Fprintf(&b, "\nStatus: %s", job.Status)
	}
	if job.Tools != "" {
		fmt.Fprintf(&b, "\nTools: %s", job.Tools)
	}
	return b.String()
}
