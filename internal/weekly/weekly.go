// Package weekly summarizes the Monday-start week around an anchor date.
package weekly

import (
	"context"
	"time"

	"github.com/starford/daybook/internal/datekey"
	"github.com/starford/daybook/internal/models"
)

// Loader reads the bucket for a date key. daystore.Store and
// collection.Session both satisfy it.
type Loader[R models.Record] interface {
	Load(ctx context.Context, key string) []R
}

// DaySummary is one day of a week.
type DaySummary[R models.Record] struct {
	Label       string       `json:"label"`
	Key         string       `json:"key"`
	Records     []R          `json:"records"`
	DayTotal    models.Money `json:"dayTotal"`
	IsAnchorDay bool         `json:"isAnchorDay"`
}

// Week is seven day summaries, Monday first, with the summed quotes.
type Week[R models.Record] struct {
	Days      []DaySummary[R] `json:"days"`
	WeekTotal models.Money    `json:"weekTotal"`
}

// Start returns the Monday key of the week.
func (w Week[R]) Start() string {
	if len(w.Days) == 0 {
		return ""
	}
	return w.Days[0].Key
}

// ComputeWeek reads every bucket of anchor's week and totals the quotes.
// Buckets are read fresh on every call.
func ComputeWeek[R models.Record](ctx context.Context, loader Loader[R], anchor time.Time) Week[R] {
	anchorKey := datekey.Format(anchor)
	week := Week[R]{Days: make([]DaySummary[R], 0, datekey.DaysPerWeek)}

	for _, d := range datekey.WeekWindow(anchor) {
		key := datekey.Format(d)
		records := loader.Load(ctx, key)

		var total models.Money
		for _, r := range records {
			total = total.Add(r.Amount())
		}

		week.Days = append(week.Days, DaySummary[R]{
			Label:       datekey.Label(d),
			Key:         key,
			Records:     records,
			DayTotal:    total,
			IsAnchorDay: key == anchorKey,
		})
		week.WeekTotal = week.WeekTotal.Add(total)
	}
	return week
}
