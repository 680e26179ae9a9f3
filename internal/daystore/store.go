// Package daystore keeps the ordered records of each calendar day as one
// JSON array per date key.
//
// Reads never fail: a missing or unreadable bucket is an empty day. Writes go
// through the retry policy; a write that still fails is logged and the
// previously stored bucket stays authoritative.
package daystore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/starford/daybook/internal/apperr"
	"github.com/starford/daybook/internal/datekey"
	"github.com/starford/daybook/internal/models"
	"github.com/starford/daybook/internal/retry"
	"github.com/starford/daybook/internal/storage"
)

// Listener receives the full bucket after every successful save.
type Listener[R models.Record] func(key string, records []R)

// Store holds one record kind for one owner.
type Store[R models.Record] struct {
	provider storage.Provider
	logger   *slog.Logger
	policy   retry.Policy
	op       string

	// mu serializes read-modify-write cycles on this store.
	mu sync.Mutex

	lmu       sync.Mutex
	listeners map[int]Listener[R]
	nextID    int
}

// Option configures a Store.
type Option func(*options)

type options struct {
	logger *slog.Logger
	policy retry.Policy
}

// WithLogger sets the logger used for load and save failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRetry sets the write retry policy.
func WithRetry(p retry.Policy) Option {
	return func(o *options) { o.policy = p }
}

// New returns a store reading and writing buckets in p. Keys given to the
// store are bare date keys; callers namespace p per owner and kind.
func New[R models.Record](p storage.Provider, opts ...Option) *Store[R] {
	o := options{logger: slog.Default(), policy: retry.DefaultPolicy()}
	for _, opt := range opts {
		opt(&o)
	}
	var zero R
	return &Store[R]{
		provider:  p,
		logger:    o.logger.With(slog.String("kind", string(zero.Kind()))),
		policy:    o.policy,
		op:        "daystore.save." + string(zero.Kind()),
		listeners: make(map[int]Listener[R]),
	}
}

// Subscribe registers fn for bucket changes and returns a function that
// removes it.
func (s *Store[R]) Subscribe(fn Listener[R]) (unsubscribe func()) {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Store[R]) notify(key string, records []R) {
	s.lmu.Lock()
	fns := make([]Listener[R], 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()

	for _, fn := range fns {
		fn(key, records)
	}
}

// Load returns the records stored under key, or an empty slice when the
// bucket is absent or cannot be decoded.
func (s *Store[R]) Load(ctx context.Context, key string) []R {
	blob, err := s.provider.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			s.logger.Warn("daystore: load failed",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
		return []R{}
	}

	var records []R
	if err := json.Unmarshal(blob, &records); err != nil {
		s.logger.Warn("daystore: malformed bucket, treating as empty",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return []R{}
	}
	if records == nil {
		records = []R{}
	}
	return records
}

// Save replaces the bucket under key with records. The error is returned
// for callers inside the module; it has already been logged.
func (s *Store[R]) Save(ctx context.Context, key string, records []R) error {
	if records == nil {
		records = []R{}
	}
	blob, err := json.Marshal(records)
	if err != nil {
		s.logger.Error("daystore: encode bucket",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return err
	}

	err = s.policy.Do(ctx, s.logger.With(slog.String("key", key)), s.op, func(ctx context.Context) error {
		return s.provider.Set(ctx, key, blob)
	})
	if err != nil {
		return err
	}
	s.notify(key, records)
	return nil
}

// Mutate loads the bucket under key, applies fn and saves the result when
// fn reports a change. It returns the bucket as it is stored afterwards.
func (s *Store[R]) Mutate(ctx context.Context, key string, fn func([]R) ([]R, bool)) []R {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.Load(ctx, key)
	next, changed := fn(current)
	if !changed {
		return current
	}
	if err := s.Save(ctx, key, next); err != nil {
		return current
	}
	return next
}

// Append adds r to the end of the bucket under key. A record that fails
// validation (for example blank text) is ignored and the current bucket is
// returned unchanged.
func (s *Store[R]) Append(ctx context.Context, key string, r R) []R {
	if err := r.Validate(); err != nil {
		s.logger.Debug("daystore: append rejected",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return s.Load(ctx, key)
	}
	return s.Mutate(ctx, key, func(records []R) ([]R, bool) {
		return append(records, r), true
	})
}

// Remove drops every record with the given id. Removing an id that is not
// present leaves the bucket untouched.
func (s *Store[R]) Remove(ctx context.Context, key string, id models.ID) []R {
	return s.Mutate(ctx, key, func(records []R) ([]R, bool) {
		out := make([]R, 0, len(records))
		for _, r := range records {
			if r.RecordID() != id {
				out = append(out, r)
			}
		}
		return out, len(out) != len(records)
	})
}

// Days lists the date keys that currently hold a bucket, oldest first.
func (s *Store[R]) Days(ctx context.Context) ([]string, error) {
	keys, err := s.provider.Keys(ctx, "")
	if err != nil {
		return nil, err
	}
	out := keys[:0]
	for _, k := range keys {
		if datekey.Valid(k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// AdvanceStatus moves the job with the given id to the next status in cycle,
// wrapping from the last status back to the first.
func AdvanceStatus(ctx context.Context, s *Store[models.Job], cycle models.StatusCycle, key string, id models.ID) []models.Job {
	return s.Mutate(ctx, key, func(jobs []models.Job) ([]models.Job, bool) {
		out := make([]models.Job, len(jobs))
		copy(out, jobs)
		changed := false
		for i := range out {
			if out[i].ID == id {
				out[i].Status = cycle.Next(out[i].Status)
				changed = true
			}
		}
		return out, changed
	})
}
