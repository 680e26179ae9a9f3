package internal

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/starford/daybook/internal/amqp"
	"github.com/starford/daybook/internal/collection"
	"github.com/starford/daybook/internal/identity"
	"github.com/starford/daybook/internal/models"
	"github.com/starford/daybook/internal/planner"
	"github.com/starford/daybook/internal/sqlitedb"
	"github.com/starford/daybook/internal/sse"
	"github.com/starford/daybook/internal/storage"
)

// stack is every long-lived component one process runs.
type stack struct {
	db       *sqlitedb.DB
	fs       *storage.FS // nil unless the fs driver is configured
	broker   *sse.Broker
	pub      *amqp.Publisher
	docs     *collection.Service
	sessions *collection.Sessions
	dir      *identity.Directory // nil when sign-in is disabled
	planner  *planner.Service
}

// newStack opens storage and wires the planner. live adds the event broker
// and the optional AMQP fan-out.
func newStack(cfg *Config, logger *slog.Logger, live bool) (_ *stack, err error) {
	st := &stack{}
	defer func() {
		if err != nil {
			st.close()
		}
	}()

	st.db, err = sqlitedb.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	var provider storage.Provider
	switch cfg.Storage.Driver {
	case StorageDriverSQLite:
		provider = storage.NewSQLite(st.db)
	default:
		if err := os.MkdirAll(cfg.Storage.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		st.fs, err = storage.NewFS(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		provider = st.fs
	}

	quotes, err := models.NewQuoteParser(cfg.Planner.QuoteStripPattern)
	if err != nil {
		return nil, fmt.Errorf("quote pattern: %w", err)
	}
	policy := cfg.Retry.Policy()
	statuses := cfg.Planner.Statuses()

	opts := planner.Options{
		JobsMode:  cfg.Planner.JobsMode,
		Statuses:  statuses,
		Quotes:    quotes,
		RangeDays: cfg.Planner.RangeDays,
		Retry:     policy,
		Logger:    logger,
	}

	if live {
		st.broker = sse.NewBroker(2 * time.Second)
		opts.Broker = st.broker
		if cfg.Events.AMQP.Enabled() {
			st.pub, err = amqp.NewPublisher(cfg.Events.AMQP.URL, cfg.Events.AMQP.Exchange, policy, logger)
			if err != nil {
				return nil, fmt.Errorf("init amqp: %w", err)
			}
			opts.Sink = st.pub
		}
	}

	// Sessions call back into the planner, which does not exist yet.
	var plan *planner.Service
	if cfg.Planner.JobsMode == planner.JobsModeCollection {
		st.docs = collection.NewService(st.db, logger, policy)
		st.sessions = collection.NewSessions(st.docs, statuses, logger, func(snap collection.Snapshot) {
			plan.CollectionChanged(snap)
		})
		opts.Sessions = st.sessions
	}

	plan, err = planner.NewService(provider, opts)
	if err != nil {
		return nil, fmt.Errorf("init planner: %w", err)
	}
	st.planner = plan

	if cfg.Auth.AuthEnabled() {
		dirOpts := []identity.DirectoryOption{}
		if cfg.Auth.Token != "" {
			dirOpts = append(dirOpts, identity.WithStaticToken(cfg.Auth.Token, cfg.Auth.TokenOwner))
		}
		if cfg.Auth.Mode == AuthModeToken {
			dirOpts = append(dirOpts, identity.WithMethods(identity.MethodToken))
		}
		st.dir = identity.NewDirectory(st.db, logger, dirOpts...)
		st.dir.OnIdentityChange(func(ev identity.Event) {
			if !ev.SignedIn {
				plan.IdentityEnded(ev.Identity.ID)
			}
		})
	}

	return st, nil
}

// close releases components in reverse dependency order.
func (st *stack) close() {
	if st.sessions != nil {
		st.sessions.Close()
	}
	if st.docs != nil {
		st.docs.Close()
	}
	if st.planner != nil {
		st.planner.Close()
	}
	if st.broker != nil {
		st.broker.Close()
	}
	if st.pub != nil {
		st.pub.Close()
	}
	if st.db != nil {
		st.db.Close()
	}
}
