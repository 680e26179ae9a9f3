package collection

import (
	"context"
	"log/slog"
	"sync"

	"github.com/starford/daybook/internal/models"
)

// Sessions opens at most one Session per owner and tears sessions down on
// identity change or shutdown.
type Sessions struct {
	svc        *Service
	cycle      models.StatusCycle
	logger     *slog.Logger
	onSnapshot func(Snapshot)

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessions returns an empty registry. onSnapshot is passed to each session.
func NewSessions(svc *Service, cycle models.StatusCycle, logger *slog.Logger, onSnapshot func(Snapshot)) *Sessions {
	return &Sessions{
		svc:        svc,
		cycle:      cycle,
		logger:     logger,
		onSnapshot: onSnapshot,
		sessions:   make(map[string]*Session),
	}
}

// Get returns owner's session, opening it on first use.
func (r *Sessions) Get(ctx context.Context, owner string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[owner]; ok {
		return s, nil
	}
	s, err := OpenSession(ctx, r.svc, owner, r.cycle, r.logger, r.onSnapshot)
	if err != nil {
		return nil, err
	}
	r.sessions[owner] = s
	r.logger.Debug("collection: session opened", slog.String("owner", owner))
	return s, nil
}

// Drop closes owner's session if one is open.
func (r *Sessions) Drop(owner string) {
	r.mu.Lock()
	s, ok := r.sessions[owner]
	delete(r.sessions, owner)
	r.mu.Unlock()
	if ok {
		s.Close()
		r.logger.Debug("collection: session closed", slog.String("owner", owner))
	}
}

// Len reports the number of open sessions.
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close closes every session.
func (r *Sessions) Close() {
	r.mu.Lock()
	open := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range open {
		s.Close()
	}
}
