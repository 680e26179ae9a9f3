// Package planner ties the day stores, the remote job collection and the
// live event channels together for one running server.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/daybook/internal/amqp"
	"github.com/starford/daybook/internal/apperr"
	"github.com/starford/daybook/internal/checksum"
	"github.com/starford/daybook/internal/collection"
	"github.com/starford/daybook/internal/datekey"
	"github.com/starford/daybook/internal/daystore"
	"github.com/starford/daybook/internal/models"
	"github.com/starford/daybook/internal/retry"
	"github.com/starford/daybook/internal/sse"
	"github.com/starford/daybook/internal/storage"
	"github.com/starford/daybook/internal/weekly"
)

// Jobs storage modes.
const (
	JobsModeBucket     = "bucket"
	JobsModeCollection = "collection"
)

// EventSink receives change notifications for fan-out beyond this process.
type EventSink interface {
	Publish(ctx context.Context, msg *amqp.ChangeMessage) error
}

// Options configures a Service.
type Options struct {
	JobsMode  string
	Statuses  models.StatusCycle
	Quotes    *models.QuoteParser
	RangeDays int // 0 means one year from today
	Retry     retry.Policy

	Broker   *sse.Broker
	Sink     EventSink
	Sessions *collection.Sessions // required in collection mode
	Logger   *slog.Logger
	Now      func() time.Time
}

// Service is the planner facade used by the HTTP and MCP shells.
type Service struct {
	provider storage.Provider
	opts     Options
	logger   *slog.Logger
	ids      *models.IDGenerator

	mu        sync.Mutex
	notes     map[string]*daystore.Store[models.Note]
	jobs      map[string]*daystore.Store[models.Job]
	published map[string]string // full storage key -> checksum of last published bucket

	fanout sync.WaitGroup
}

// NewService returns a planner over provider.
func NewService(provider storage.Provider, opts Options) (*Service, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Statuses == nil {
		opts.Statuses = models.BasicStatuses
	}
	if opts.Quotes == nil {
		opts.Quotes = models.DefaultQuoteParser
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultPolicy()
	}
	switch opts.JobsMode {
	case "":
		opts.JobsMode = JobsModeBucket
	case JobsModeBucket:
	case JobsModeCollection:
		if opts.Sessions == nil {
			return nil, fmt.Errorf("planner: collection mode needs a session registry")
		}
	default:
		return nil, fmt.Errorf("planner: unknown jobs mode %q", opts.JobsMode)
	}

	return &Service{
		provider:  provider,
		opts:      opts,
		logger:    opts.Logger,
		ids:       models.NewIDGenerator(),
		notes:     make(map[string]*daystore.Store[models.Note]),
		jobs:      make(map[string]*daystore.Store[models.Job]),
		published: make(map[string]string),
	}, nil
}

// Statuses returns the configured status cycle.
func (s *Service) Statuses() models.StatusCycle {
	return s.opts.Statuses
}

// Broker returns the live event broker, nil when live events are off.
func (s *Service) Broker() *sse.Broker {
	return s.opts.Broker
}

// Today returns the current local day.
func (s *Service) Today() time.Time {
	return datekey.Midnight(s.opts.Now())
}

// Days returns the navigation window starting today.
func (s *Service) Days() datekey.Window {
	if s.opts.RangeDays > 0 {
		return datekey.NewWindow(s.opts.Now(), s.opts.RangeDays)
	}
	return datekey.YearFrom(s.opts.Now())
}

// ParseDay resolves a date key or natural-language day relative to today.
func (s *Service) ParseDay(input string) (time.Time, error) {
	return datekey.ParseAnchor(input, s.opts.Now())
}

func checkOwner(owner string) error {
	if owner == "" || strings.ContainsAny(owner, `/\`) || strings.Contains(owner, "..") {
		return fmt.Errorf("planner: invalid owner %q: %w", owner, apperr.ErrValidation)
	}
	return nil
}

// Notes returns owner's note store.
func (s *Service) Notes(owner string) (*daystore.Store[models.Note], error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.notes[owner]; ok {
		return st, nil
	}
	st := daystore.New[models.Note](
		storage.Namespace(s.provider, owner, string(models.KindNote)),
		daystore.WithLogger(s.logger.With(slog.String("owner", owner))),
		daystore.WithRetry(s.opts.Retry),
	)
	st.Subscribe(func(key string, records []models.Note) {
		s.bucketChanged(owner, models.KindNote, key, records)
	})
	s.notes[owner] = st
	return st, nil
}

func (s *Service) jobStore(owner string) *daystore.Store[models.Job] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.jobs[owner]; ok {
		return st
	}
	st := daystore.New[models.Job](
		storage.Namespace(s.provider, owner, string(models.KindJob)),
		daystore.WithLogger(s.logger.With(slog.String("owner", owner))),
		daystore.WithRetry(s.opts.Retry),
	)
	st.Subscribe(func(key string, records []models.Job) {
		s.bucketChanged(owner, models.KindJob, key, records)
	})
	s.jobs[owner] = st
	return st
}

// Jobs returns owner's job book in the configured mode.
func (s *Service) Jobs(ctx context.Context, owner string) (JobBook, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	if s.opts.JobsMode == JobsModeCollection {
		sess, err := s.opts.Sessions.Get(ctx, owner)
		if err != nil {
			return nil, fmt.Errorf("planner: open session: %w", err)
		}
		return sess, nil
	}
	return &bucketJobs{store: s.jobStore(owner), cycle: s.opts.Statuses}, nil
}

// NewNote builds a note with a fresh id.
func (s *Service) NewNote(text string) models.Note {
	return models.NewNote(s.ids.Next(), text)
}

// JobInput is the user-editable part of a job. Quote is free text.
type JobInput struct {
	Title    string `json:"title"`
	Location string `json:"location"`
	Quote    string `json:"quote"`
	Tools    string `json:"tools"`
}

// NewJob builds a job dated key from input. Validation errors wrap
// apperr.ErrValidation.
func (s *Service) NewJob(key string, in JobInput) (models.Job, error) {
	job := models.Job{
		ID:        s.ids.Next(),
		Title:     strings.TrimSpace(in.Title),
		Location:  strings.TrimSpace(in.Location),
		Quote:     s.opts.Quotes.Parse(in.Quote),
		Tools:     strings.TrimSpace(in.Tools),
		Status:    s.opts.Statuses.First(),
		DateKey:   key,
		CreatedAt: s.opts.Now().UTC(),
	}
	if err := job.Validate(); err != nil {
		return models.Job{}, fmt.Errorf("planner: %w: %w", apperr.ErrValidation, err)
	}
	return job, nil
}

// NotesWeek summarizes owner's notes for anchor's week.
func (s *Service) NotesWeek(ctx context.Context, owner string, anchor time.Time) (weekly.Week[models.Note], error) {
	st, err := s.Notes(owner)
	if err != nil {
		return weekly.Week[models.Note]{}, err
	}
	return weekly.ComputeWeek[models.Note](ctx, st, anchor), nil
}

// JobsWeek summarizes owner's jobs and quote totals for anchor's week.
func (s *Service) JobsWeek(ctx context.Context, owner string, anchor time.Time) (weekly.Week[models.Job], error) {
	book, err := s.Jobs(ctx, owner)
	if err != nil {
		return weekly.Week[models.Job]{}, err
	}
	return weekly.ComputeWeek[models.Job](ctx, book, anchor), nil
}

// IdentityEnded releases owner's live collection session.
func (s *Service) IdentityEnded(owner string) {
	if s.opts.Sessions != nil {
		s.opts.Sessions.Drop(owner)
	}
}

// ExternalChange handles a bucket file changed outside this process. key is
// the full storage key "<owner>/<kind>/<date>".
func (s *Service) ExternalChange(ctx context.Context, key string, removed bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || !datekey.Valid(parts[2]) {
		return
	}
	owner, date := parts[0], parts[2]
	kind, err := models.ParseKind(parts[1])
	if err != nil || parts[1] != string(kind) {
		return
	}

	if !removed {
		blob, err := s.provider.Get(ctx, key)
		if err != nil {
			return
		}
		if !s.markPublished(key, blob) {
			return
		}
	} else {
		s.forget(key)
	}

	switch kind {
	case models.KindNote:
		st, err := s.Notes(owner)
		if err != nil {
			return
		}
		s.publish(owner, kind, date, st.Load(ctx, date))
	case models.KindJob:
		if s.opts.JobsMode == JobsModeCollection {
			return
		}
		s.publish(owner, kind, date, s.jobStore(owner).Load(ctx, date))
	}
}

// bucketChanged runs after a store saved a bucket.
func (s *Service) bucketChanged(owner string, kind models.Kind, key string, records any) {
	blob, err := json.Marshal(records)
	if err == nil {
		s.markPublished(owner+"/"+string(kind)+"/"+key, blob)
	}
	s.publish(owner, kind, key, records)
}

// markPublished records blob's checksum and reports whether it differs from
// the last one published for key.
func (s *Service) markPublished(key string, blob []byte) bool {
	sum := checksum.Sum(blob)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.published[key] == sum {
		return false
	}
	s.published[key] = sum
	return true
}

func (s *Service) forget(key string) {
	s.mu.Lock()
	delete(s.published, key)
	s.mu.Unlock()
}

func (s *Service) publish(owner string, kind models.Kind, key string, records any) {
	if s.opts.Broker != nil {
		s.opts.Broker.PublishBucketEvent(owner, sse.BucketUpdate{Kind: string(kind), Key: key, Records: records})
	}
	s.sink(amqp.NewChangeMessage(owner, string(kind), key, 0))
}

// CollectionChanged forwards a pushed collection snapshot to live clients.
func (s *Service) CollectionChanged(snap collection.Snapshot) {
	if s.opts.Broker != nil {
		s.opts.Broker.Publish(sse.Event{Owner: snap.Owner, Type: sse.TypeCollectionSnapshot, Data: snap})
	}
	s.sink(amqp.NewChangeMessage(snap.Owner, string(models.KindJob), "", snap.Version))
}

func (s *Service) sink(msg *amqp.ChangeMessage) {
	if s.opts.Sink == nil {
		return
	}
	s.fanout.Add(1)
	go func() {
		defer s.fanout.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.opts.Sink.Publish(ctx, msg); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("planner: event fan-out failed",
				slog.String("owner", msg.Owner),
				slog.String("kind", msg.Kind),
				slog.String("error", err.Error()))
		}
	}()
}

// Close waits for pending event fan-out.
func (s *Service) Close() {
	s.fanout.Wait()
}
