// Package engine ties the pieces together: it resolves servers from the
// metadata cache, authenticates with the credential store, executes SQL
// through per-server connection pools, and keeps the cached schema
// snapshots fresh.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sqldeck/sqldeck/internal/credential"
	"github.com/sqldeck/sqldeck/internal/notify"
	"github.com/sqldeck/sqldeck/internal/pgclient"
	"github.com/sqldeck/sqldeck/internal/state"
)

// Config controls engine construction.
type Config struct {
	// StatePath is the SQLite metadata cache location. ":memory:" is
	// accepted for ephemeral runs.
	StatePath string

	// CredentialsPath is the credential file location. Empty selects an
	// in-memory store.
	CredentialsPath string

	// PoolMaxConns bounds each per-server pool. <= 0 selects the default.
	PoolMaxConns int32

	// SweepInterval is how often idle pools are evicted. <= 0 selects the
	// default. Negative disables the sweeper.
	SweepInterval time.Duration
}

// Engine is the long-lived execution core shared by all frontends.
type Engine struct {
	log      *slog.Logger
	store    *state.Store
	creds    credential.Store
	pools    *pgclient.PoolManager
	cancels  *pgclient.CancelRegistry
	notifier *notify.Notifier
}

// New opens the metadata cache and assembles an engine. If logger is
// nil, a discard logger is used.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	store := state.NewStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}

	var creds credential.Store
	if cfg.CredentialsPath != "" {
		creds = credential.NewFileStore(cfg.CredentialsPath)
	} else {
		creds = credential.NewMemStore()
	}

	e := &Engine{
		log:      logger,
		store:    store,
		creds:    creds,
		pools:    pgclient.NewPoolManager(logger, cfg.PoolMaxConns),
		cancels:  pgclient.NewCancelRegistry(logger),
		notifier: notify.New(),
	}
	if cfg.SweepInterval >= 0 {
		e.pools.StartSweeper(cfg.SweepInterval)
	}
	return e, nil
}

// Close shuts the pools down and closes the metadata cache.
func (e *Engine) Close() error {
	e.pools.Close()
	return e.store.Close()
}

// Store exposes the metadata cache for read-side frontends.
func (e *Engine) Store() *state.Store { return e.store }

// Notifier exposes the event broadcaster.
func (e *Engine) Notifier() *notify.Notifier { return e.notifier }

// Credentials exposes the credential store.
func (e *Engine) Credentials() credential.Store { return e.creds }

func newID() string {
	return uuid.New().String()
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
