package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sqldeck/sqldeck/internal/credential"
	"github.com/sqldeck/sqldeck/internal/pgclient"
	"github.com/sqldeck/sqldeck/internal/state"
)

// AddServerInput describes a server to register.
type AddServerInput struct {
	Name     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Group    string
}

// AddServer registers a server and stores its password under a fresh
// credential key. It returns the stored server record.
func (e *Engine) AddServer(input AddServerInput) (*state.Server, error) {
	if input.Name == "" {
		return nil, errors.New("server name is required")
	}
	if input.Database == "" {
		return nil, errors.New("database name is required")
	}
	if input.Port == 0 {
		input.Port = 5432
	}

	srv := state.Server{
		ID:            newID(),
		Name:          input.Name,
		Host:          input.Host,
		Port:          input.Port,
		Database:      input.Database,
		Username:      input.Username,
		CredentialKey: "sqldeck-" + newID(),
	}
	if input.Group != "" {
		srv.GroupName = &input.Group
	}

	if err := e.creds.Save(srv.CredentialKey, input.Password); err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}
	if err := e.store.AddServer(srv); err != nil {
		_ = e.creds.Delete(srv.CredentialKey)
		return nil, err
	}

	e.log.Info("server added", "server_id", srv.ID, "name", srv.Name)
	return &srv, nil
}

// Servers lists the registered servers.
func (e *Engine) Servers() ([]state.Server, error) {
	return e.store.Servers()
}

// RemoveServer deletes a server, its cached schema data, and its stored
// credential.
func (e *Engine) RemoveServer(serverID string) error {
	srv, err := e.store.ServerByID(serverID)
	if err != nil {
		return err
	}
	if err := e.store.DeleteServer(serverID); err != nil {
		return err
	}
	if err := e.creds.Delete(srv.CredentialKey); err != nil && !errors.Is(err, credential.ErrNotFound) {
		e.log.Warn("credential cleanup failed", "server_id", serverID, "error", err)
	}
	return nil
}

// TestConnection verifies that the server is reachable and stamps its
// last-connected time on success.
func (e *Engine) TestConnection(ctx context.Context, serverID string) error {
	conn, _, err := e.acquire(ctx, serverID, "")
	if err != nil {
		return err
	}
	defer conn.Release()

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", pgclient.ErrConnect, err)
	}
	return e.store.TouchServer(serverID, nowMillis())
}

// acquire resolves a server, looks up its credential, and checks a
// connection out of the server's pool. database, when non-empty,
// overrides the server's default database; each database gets its own
// pool.
func (e *Engine) acquire(ctx context.Context, serverID, database string) (*pgxpool.Conn, *state.Server, error) {
	srv, err := e.store.ServerByID(serverID)
	if err != nil {
		return nil, nil, err
	}

	password, err := e.creds.Retrieve(srv.CredentialKey)
	if err != nil && !errors.Is(err, credential.ErrNotFound) {
		return nil, nil, err
	}

	db := srv.Database
	poolKey := serverID
	if database != "" && database != srv.Database {
		db = database
		poolKey = serverID + "/" + database
	}

	pool, err := e.pools.Get(ctx, poolKey, pgclient.ConnConfig{
		Host:     srv.Host,
		Port:     uint16(srv.Port),
		User:     srv.Username,
		Password: password,
		Database: db,
	})
	if err != nil {
		return nil, nil, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: acquire connection to %q: %v", pgclient.ErrConnect, srv.Name, err)
	}
	return conn, srv, nil
}
