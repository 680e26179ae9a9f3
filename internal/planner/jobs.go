package planner

import (
	"context"

	"github.com/starford/daybook/internal/collection"
	"github.com/starford/daybook/internal/daystore"
	"github.com/starford/daybook/internal/models"
)

// JobBook is the set of day operations on jobs, whichever store holds them.
type JobBook interface {
	Load(ctx context.Context, key string) []models.Job
	Append(ctx context.Context, key string, job models.Job) []models.Job
	Remove(ctx context.Context, key string, id models.ID) []models.Job
	AdvanceStatus(ctx context.Context, key string, id models.ID) []models.Job
	Days(ctx context.Context) ([]string, error)
}

var (
	_ JobBook = (*bucketJobs)(nil)
	_ JobBook = (*collection.Session)(nil)
)

// bucketJobs stores jobs as day buckets.
type bucketJobs struct {
	store *daystore.Store[models.Job]
	cycle models.StatusCycle
}

func (b *bucketJobs) Load(ctx context.Context, key string) []models.Job {
	return b.store.Load(ctx, key)
}

func (b *bucketJobs) Append(ctx context.Context, key string, job models.Job) []models.Job {
	job.DateKey = key
	return b.store.Append(ctx, key, job)
}

func (b *bucketJobs) Remove(ctx context.Context, key string, id models.ID) []models.Job {
	return b.store.Remove(ctx, key, id)
}

func (b *bucketJobs) AdvanceStatus(ctx context.Context, key string, id models.ID) []models.Job {
	return daystore.AdvanceStatus(ctx, b.store, b.cycle, key, id)
}

func (b *bucketJobs) Days(ctx context.Context) ([]string, error) {
	return b.store.Days(ctx)
}
