package state

import (
	"database/sql"
	"errors"
	"fmt"
)

const serverColumns = "id, name, host, port, database, username, credential_key, group_name, last_connected"

// Servers lists every known server, most recently connected first.
func (s *Store) Servers() ([]Server, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		"SELECT " + serverColumns + " FROM servers ORDER BY last_connected DESC NULLS LAST, name")
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var servers []Server
	for rows.Next() {
		srv, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, srv)
	}
	return servers, rows.Err()
}

// ServerByID looks up one server. Returns ErrNotFound when the id is
// unknown.
func (s *Store) ServerByID(serverID string) (*Server, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	row := s.db.QueryRow("SELECT "+serverColumns+" FROM servers WHERE id = ?", serverID)
	srv, err := scanServer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("server %q: %w", serverID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &srv, nil
}

// AddServer registers a new server.
func (s *Store) AddServer(srv Server) error {
	if err := s.ready(); err != nil {
		return err
	}

	_, err := s.db.Exec(
		"INSERT INTO servers ("+serverColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		srv.ID, srv.Name, srv.Host, srv.Port, srv.Database, srv.Username,
		srv.CredentialKey, srv.GroupName, srv.LastConnected)
	if err != nil {
		return fmt.Errorf("add server %q: %w", srv.ID, err)
	}
	return nil
}

// DeleteServer removes a server; cached schema data cascades away.
func (s *Store) DeleteServer(serverID string) error {
	if err := s.ready(); err != nil {
		return err
	}

	if _, err := s.db.Exec("DELETE FROM servers WHERE id = ?", serverID); err != nil {
		return fmt.Errorf("delete server %q: %w", serverID, err)
	}
	return nil
}

// TouchServer stamps the server's last successful connection time.
func (s *Store) TouchServer(serverID string, timestamp int64) error {
	if err := s.ready(); err != nil {
		return err
	}

	if _, err := s.db.Exec("UPDATE servers SET last_connected = ? WHERE id = ?", timestamp, serverID); err != nil {
		return fmt.Errorf("touch server %q: %w", serverID, err)
	}
	return nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanServer(sc scanner) (Server, error) {
	var (
		srv       Server
		group     sql.NullString
		connected sql.NullInt64
	)
	err := sc.Scan(&srv.ID, &srv.Name, &srv.Host, &srv.Port, &srv.Database,
		&srv.Username, &srv.CredentialKey, &group, &connected)
	if err != nil {
		return Server{}, err
	}
	if group.Valid {
		srv.GroupName = &group.String
	}
	if connected.Valid {
		srv.LastConnected = &connected.Int64
	}
	return srv, nil
}
