// Package collection keeps each owner's jobs as individual documents and
// pushes the owner's whole collection to subscribers after every change.
package collection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/daybook/internal/models"
	"github.com/starford/daybook/internal/retry"
	"github.com/starford/daybook/internal/sqlitedb"
)

// Snapshot is an owner's complete collection at a version. Versions only
// grow; a snapshot at version v reflects every write that returned v or less.
type Snapshot struct {
	Owner   string       `json:"owner"`
	Version int64        `json:"version"`
	Jobs    []models.Job `json:"jobs"`
}

// Service stores documents in the shared database.
//
// Version bumps and snapshot pushes happen under one lock so that every
// subscriber sees snapshots in version order. The database writes themselves
// run outside it.
type Service struct {
	conn   *sql.DB
	logger *slog.Logger
	policy retry.Policy

	mu       sync.Mutex
	closed   bool
	versions map[string]int64
	subs     map[string]map[int]chan Snapshot
	nextSub  int
}

// NewService returns a document service on db.
func NewService(db *sqlitedb.DB, logger *slog.Logger, policy retry.Policy) *Service {
	return &Service{
		conn:     db.Conn(),
		logger:   logger,
		policy:   policy,
		versions: make(map[string]int64),
		subs:     make(map[string]map[int]chan Snapshot),
	}
}

// SubscribeCollection returns a channel that receives owner's full collection
// now and after every change. Only the latest snapshot is buffered; a slow
// reader skips intermediate ones. The channel is closed by cancel, by ctx
// being done or by Close.
func (s *Service) SubscribeCollection(ctx context.Context, owner string) (<-chan Snapshot, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, nil, fmt.Errorf("collection: service closed")
	}

	snap, err := s.snapshotLocked(ctx, owner)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan Snapshot, 1)
	ch <- snap

	id := s.nextSub
	s.nextSub++
	if s.subs[owner] == nil {
		s.subs[owner] = make(map[int]chan Snapshot)
	}
	s.subs[owner][id] = ch

	var once sync.Once
	unsub := func() {
		once.Do(func() { s.unsubscribe(owner, id) })
	}
	stop := context.AfterFunc(ctx, unsub)

	return ch, func() {
		stop()
		unsub()
	}, nil
}

func (s *Service) unsubscribe(owner string, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[owner][id]; ok {
		delete(s.subs[owner], id)
		close(ch)
	}
	if len(s.subs[owner]) == 0 {
		delete(s.subs, owner)
	}
}

// UpsertDocument creates or replaces job id for owner and returns the
// collection version that includes the write. Last write wins.
func (s *Service) UpsertDocument(ctx context.Context, owner string, id models.ID, job models.Job) (int64, error) {
	job.ID = id
	body, err := json.Marshal(job)
	if err != nil {
		return 0, fmt.Errorf("collection: encode %s: %w", id, err)
	}

	return s.write(ctx, owner, "collection.upsert", func(ctx context.Context) error {
		_, err := s.conn.ExecContext(ctx, `
			INSERT INTO documents (owner, id, date_key, body, updated_at)
			VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(owner, id) DO UPDATE SET
				date_key   = excluded.date_key,
				body       = excluded.body,
				updated_at = excluded.updated_at
		`, owner, string(id), job.DateKey, string(body))
		return sqlitedb.Classify(err)
	})
}

// DeleteDocument removes job id for owner. Deleting a missing document still
// produces a new version.
func (s *Service) DeleteDocument(ctx context.Context, owner string, id models.ID) (int64, error) {
	return s.write(ctx, owner, "collection.delete", func(ctx context.Context) error {
		_, err := s.conn.ExecContext(ctx, `DELETE FROM documents WHERE owner = ? AND id = ?`, owner, string(id))
		return sqlitedb.Classify(err)
	})
}

// write runs fn through the retry policy without holding the lock, so one
// owner's backoff never stalls another owner. The version bump, snapshot and
// push happen under the lock once fn has succeeded.
func (s *Service) write(ctx context.Context, owner, op string, fn func(context.Context) error) (int64, error) {
	if s.isClosed() {
		return 0, fmt.Errorf("collection: service closed")
	}

	logger := s.logger.With(slog.String("owner", owner))
	if err := s.policy.Do(ctx, logger, op, fn); err != nil {
		return 0, fmt.Errorf("collection: %s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("collection: service closed")
	}

	s.versions[owner]++
	snap, err := s.snapshotLocked(ctx, owner)
	if err != nil {
		return snap.Version, err
	}
	s.pushLocked(snap)
	return snap.Version, nil
}

func (s *Service) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Snapshot reads owner's current collection without subscribing.
func (s *Service) Snapshot(ctx context.Context, owner string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(ctx, owner)
}

func (s *Service) snapshotLocked(ctx context.Context, owner string) (Snapshot, error) {
	snap := Snapshot{Owner: owner, Version: s.versions[owner], Jobs: []models.Job{}}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, body FROM documents WHERE owner = ? ORDER BY rowid`, owner)
	if err != nil {
		return snap, fmt.Errorf("collection: load %s: %w", owner, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return snap, fmt.Errorf("collection: scan: %w", err)
		}
		var job models.Job
		if err := json.Unmarshal([]byte(body), &job); err != nil {
			s.logger.Warn("collection: skipping malformed document",
				slog.String("owner", owner),
				slog.String("id", id),
				slog.String("error", err.Error()))
			continue
		}
		job.ID = models.ID(id)
		snap.Jobs = append(snap.Jobs, job)
	}
	return snap, rows.Err()
}

// pushLocked replaces whatever snapshot a subscriber has not read yet.
func (s *Service) pushLocked(snap Snapshot) {
	for _, ch := range s.subs[snap.Owner] {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// Close closes every subscription. Later calls fail.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for owner, subs := range s.subs {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(s.subs, owner)
	}
}
