package collection

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/starford/daybook/internal/models"
)

// Session is the live view of one owner's collection. It holds exactly one
// subscription and replaces its cache with every pushed snapshot.
//
// Mutations are not applied locally: a write returns once the subscription
// has delivered a snapshot at or after the write's version, so the cache
// never shows state the store has not accepted.
type Session struct {
	owner  string
	svc    *Service
	logger *slog.Logger
	cycle  models.StatusCycle

	mu      sync.RWMutex
	snap    Snapshot
	changed chan struct{} // closed and replaced on every snapshot

	cancel func()
	done   chan struct{}
}

// OpenSession subscribes to owner's collection and waits for the first
// snapshot. onSnapshot, if non-nil, runs after each snapshot is applied.
func OpenSession(ctx context.Context, svc *Service, owner string, cycle models.StatusCycle, logger *slog.Logger, onSnapshot func(Snapshot)) (*Session, error) {
	updates, cancel, err := svc.SubscribeCollection(context.WithoutCancel(ctx), owner)
	if err != nil {
		return nil, err
	}

	s := &Session{
		owner:   owner,
		svc:     svc,
		logger:  logger.With(slog.String("owner", owner)),
		cycle:   cycle,
		changed: make(chan struct{}),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	first, ok := <-updates
	if !ok {
		cancel()
		close(s.done)
		return s, nil
	}
	s.snap = first

	go s.run(updates, onSnapshot)
	return s, nil
}

func (s *Session) run(updates <-chan Snapshot, onSnapshot func(Snapshot)) {
	defer close(s.done)
	for snap := range updates {
		s.mu.Lock()
		s.snap = snap
		close(s.changed)
		s.changed = make(chan struct{})
		s.mu.Unlock()

		if onSnapshot != nil {
			onSnapshot(snap)
		}
	}
}

// Owner returns the identity the session belongs to.
func (s *Session) Owner() string {
	return s.owner
}

// Snapshot returns the most recent pushed snapshot.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Close ends the subscription and waits for the session loop to exit.
func (s *Session) Close() {
	s.cancel()
	<-s.done
}

// waitFor blocks until the cache reaches version v.
func (s *Session) waitFor(ctx context.Context, v int64) error {
	for {
		s.mu.RLock()
		reached := s.snap.Version >= v
		ch := s.changed
		s.mu.RUnlock()
		if reached {
			return nil
		}
		select {
		case <-ch:
		case <-s.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Load returns the cached jobs dated key, in collection order.
func (s *Session) Load(_ context.Context, key string) []models.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Job{}
	for _, j := range s.snap.Jobs {
		if j.DateKey == key {
			out = append(out, j)
		}
	}
	return out
}

// Days lists the date keys that have at least one job, oldest first.
func (s *Session) Days(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, j := range s.snap.Jobs {
		if !seen[j.DateKey] {
			seen[j.DateKey] = true
			out = append(out, j.DateKey)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Session) find(key string, id models.ID) (models.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, j := range s.snap.Jobs {
		if j.ID == id && j.DateKey == key {
			return j, true
		}
	}
	return models.Job{}, false
}

// commit waits for the write's version and returns the refreshed day.
func (s *Session) commit(ctx context.Context, key string, version int64, err error) []models.Job {
	if err != nil {
		s.logger.Error("collection: write failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return s.Load(ctx, key)
	}
	if err := s.waitFor(ctx, version); err != nil {
		s.logger.Warn("collection: snapshot wait interrupted",
			slog.Int64("version", version),
			slog.String("error", err.Error()))
	}
	return s.Load(ctx, key)
}

// Append stores job on day key. A job that fails validation is ignored.
func (s *Session) Append(ctx context.Context, key string, job models.Job) []models.Job {
	job.DateKey = key
	if err := job.Validate(); err != nil {
		s.logger.Debug("collection: append rejected",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return s.Load(ctx, key)
	}
	v, err := s.svc.UpsertDocument(ctx, s.owner, job.ID, job)
	return s.commit(ctx, key, v, err)
}

// Remove deletes job id from day key. An id not on that day is a no-op.
func (s *Session) Remove(ctx context.Context, key string, id models.ID) []models.Job {
	if _, ok := s.find(key, id); !ok {
		return s.Load(ctx, key)
	}
	v, err := s.svc.DeleteDocument(ctx, s.owner, id)
	return s.commit(ctx, key, v, err)
}

// AdvanceStatus moves job id on day key to its next status.
func (s *Session) AdvanceStatus(ctx context.Context, key string, id models.ID) []models.Job {
	job, ok := s.find(key, id)
	if !ok {
		return s.Load(ctx, key)
	}
	job.Status = s.cycle.Next(job.Status)
	v, err := s.svc.UpsertDocument(ctx, s.owner, id, job)
	return s.commit(ctx, key, v, err)
}
