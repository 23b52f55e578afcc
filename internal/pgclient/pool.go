package pgclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultMaxConns bounds each per-server pool.
const DefaultMaxConns = 2

// DefaultSweepInterval is how often fully idle pools are evicted.
const DefaultSweepInterval = 5 * time.Minute

// ConnConfig identifies a remote server and how to authenticate to it.
type ConnConfig struct {
	Host     string
	Port     uint16
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN renders the config in key=value form understood by pgx.
func (c ConnConfig) DSN() string {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "prefer"
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, c.Database, sslmode)
	if c.User != "" {
		dsn += fmt.Sprintf(" user=%s", c.User)
	}
	if c.Password != "" {
		dsn += fmt.Sprintf(" password=%s", c.Password)
	}
	return dsn
}

// PoolManager caches one bounded connection pool per server identity.
// Creation is lazy and idempotent under concurrent requests: the first
// writer wins and every other caller observes the same pool instance.
type PoolManager struct {
	log      *slog.Logger
	maxConns int32

	mu    sync.Mutex
	pools map[string]*pgxpool.Pool

	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
}

// NewPoolManager creates a pool manager. maxConns <= 0 selects
// DefaultMaxConns. If logger is nil, a discard logger is used.
func NewPoolManager(logger *slog.Logger, maxConns int32) *PoolManager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if maxConns <= 0 {
		maxConns = DefaultMaxConns
	}
	return &PoolManager{
		log:      logger,
		maxConns: maxConns,
		pools:    make(map[string]*pgxpool.Pool),
	}
}

// Get returns the pool for serverID, constructing it on first use.
// Construction parses the config and registers the pool without dialing;
// connections are established lazily on first acquire, so no connection
// storm happens on a cold start with many concurrent callers.
func (m *PoolManager) Get(ctx context.Context, serverID string, cfg ConnConfig) (*pgxpool.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pool, ok := m.pools[serverID]; ok {
		return pool, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("%w: parse connection config for %q: %v", ErrConnect, serverID, err)
	}
	poolCfg.MaxConns = m.maxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: create pool for %q: %v", ErrConnect, serverID, err)
	}

	m.log.Debug("created connection pool",
		"server_id", serverID,
		"host", cfg.Host,
		"database", cfg.Database,
		"max_conns", m.maxConns)

	m.pools[serverID] = pool
	return pool, nil
}

// EvictIdle closes and drops every pool with no connection currently
// checked out. Pools with outstanding connections are left alone. It
// returns the number of pools evicted.
func (m *PoolManager) EvictIdle() int {
	m.mu.Lock()
	var idle []*pgxpool.Pool
	for id, pool := range m.pools {
		if pool.Stat().AcquiredConns() == 0 {
			idle = append(idle, pool)
			delete(m.pools, id)
			m.log.Debug("evicting idle pool", "server_id", id)
		}
	}
	m.mu.Unlock()

	// Close outside the lock: Close waits for released connections.
	for _, pool := range idle {
		pool.Close()
	}
	return len(idle)
}

// StartSweeper launches a background goroutine that periodically evicts
// idle pools until Close is called. interval <= 0 selects
// DefaultSweepInterval.
func (m *PoolManager) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.sweepCancel = cancel
	m.sweepDone = make(chan struct{})

	go func() {
		defer close(m.sweepDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.EvictIdle(); n > 0 {
					m.log.Debug("idle pool sweep", "evicted", n)
				}
			}
		}
	}()
}

// Close stops the sweeper and closes every cached pool.
func (m *PoolManager) Close() {
	if m.sweepCancel != nil {
		m.sweepCancel()
		<-m.sweepDone
	}

	m.mu.Lock()
	pools := m.pools
	m.pools = make(map[string]*pgxpool.Pool)
	m.mu.Unlock()

	for _, pool := range pools {
		pool.Close()
	}
}
