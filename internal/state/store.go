// Package state is sqldeck's local metadata cache: known servers, their
// cached schema trees, and query history, persisted in SQLite. The engine
// reads connection targets from it and writes refreshed introspection
// results back.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Server identifies a remote PostgreSQL server. The password is never
// stored here; CredentialKey points into the credential store.
type Server struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Host          string  `json:"host"`
	Port          int     `json:"port"`
	Database      string  `json:"database"`
	Username      string  `json:"username"`
	CredentialKey string  `json:"credentialKey"`
	GroupName     *string `json:"groupName,omitempty"`
	LastConnected *int64  `json:"lastConnected,omitempty"`
}

// Schema is one namespace on a server, as of the last refresh.
type Schema struct {
	ID          string `json:"id"`
	ServerID    string `json:"serverId"`
	Name        string `json:"name"`
	LastUpdated int64  `json:"lastUpdated"`
}

// Table is a table or view inside a cached schema.
type Table struct {
	ID       string `json:"id"`
	SchemaID string `json:"schemaId"`
	Name     string `json:"name"`
	Type     string `json:"type"` // information_schema table_type, e.g. BASE TABLE, VIEW
}

// Column is one column of a cached table.
type Column struct {
	ID       string `json:"id"`
	TableID  string `json:"tableId"`
	Name     string `json:"name"`
	DataType string `json:"dataType"`
	Nullable bool   `json:"nullable"`
}

// Index is one index of a cached table, with its full definition.
type Index struct {
	ID         string `json:"id"`
	TableID    string `json:"tableId"`
	Name       string `json:"name"`
	Definition string `json:"definition"`
}

// AutocompleteItems are the name lists served to editor completion.
type AutocompleteItems struct {
	Tables  []string `json:"tables"`
	Columns []string `json:"columns"`
	Indexes []string `json:"indexes"`
}

// Store is the SQLite-backed metadata cache.
type Store struct {
	log  *slog.Logger
	db   *sql.DB
	path string
}

// NewStore creates an unopened store. If logger is nil, a discard logger
// is used.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{log: logger}
}

// Open opens the SQLite database at path and runs pending migrations.
// Use ":memory:" for an in-memory cache.
func (s *Store) Open(path string) error {
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open metadata cache: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping metadata cache: %w", err)
	}

	s.db = db
	s.path = path

	if err := s.migrate(); err != nil {
		_ = db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ready() error {
	if s.db == nil {
		return errors.New("metadata cache not opened")
	}
	return nil
}

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}
