package state

import (
	"fmt"
	"strings"
	"unicode"
)

// HistoryEntry is one executed statement in the raw history log.
type HistoryEntry struct {
	ID         string `json:"id"`
	ServerID   string `json:"serverId"`
	SQL        string `json:"sql"`
	ExecutedAt int64  `json:"executedAt"`
	Success    bool   `json:"success"`
}

// DedupEntry is a deduplicated history row keyed by normalized SQL. It
// remembers the most recent raw text and how often it ran.
type DedupEntry struct {
	ID             string `json:"id"`
	ServerID       string `json:"serverId"`
	SQL            string `json:"sql"`
	NormalizedSQL  string `json:"normalizedSql"`
	LastExecutedAt int64  `json:"lastExecutedAt"`
	ExecutionCount int64  `json:"executionCount"`
}

// NormalizeSQL canonicalizes a statement for dedup matching: whitespace
// runs collapse to a single space, the text is trimmed and lowercased.
func NormalizeSQL(sql string) string {
	var b strings.Builder
	b.Grow(len(sql))
	space := false
	for _, r := range sql {
		if unicode.IsSpace(r) {
			space = b.Len() > 0
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// AddHistory records one executed statement and, on success, updates the
// deduplicated history.
func (s *Store) AddHistory(serverID, sqlText string, executedAt int64, success bool) error {
	if err := s.ready(); err != nil {
		return err
	}

	_, err := s.db.Exec(
		"INSERT INTO query_history (id, server_id, sql, executed_at, success) VALUES (?, ?, ?, ?, ?)",
		generateID(), serverID, sqlText, executedAt, boolInt(success))
	if err != nil {
		return fmt.Errorf("add history: %w", err)
	}

	if success {
		return s.upsertDedup(serverID, sqlText, executedAt)
	}
	return nil
}

func (s *Store) upsertDedup(serverID, sqlText string, executedAt int64) error {
	normalized := NormalizeSQL(sqlText)
	if normalized == "" {
		return nil
	}

	_, err := s.db.Exec(
		`INSERT INTO query_history_dedup
		   (id, server_id, sql, normalized_sql, last_executed_at, execution_count)
		 VALUES (?, ?, ?, ?, ?, 1)
		 ON CONFLICT (server_id, normalized_sql) DO UPDATE SET
		   sql = excluded.sql,
		   last_executed_at = excluded.last_executed_at,
		   execution_count = execution_count + 1`,
		generateID(), serverID, sqlText, normalized, executedAt)
	if err != nil {
		return fmt.Errorf("dedup history: %w", err)
	}
	return nil
}

// History returns the raw history for a server, newest first.
func (s *Store) History(serverID string, limit int) ([]HistoryEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(
		`SELECT id, server_id, sql, executed_at, success
		 FROM query_history WHERE server_id = ?
		 ORDER BY executed_at DESC LIMIT ?`, serverID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []HistoryEntry
	for rows.Next() {
		var (
			e       HistoryEntry
			success int
		)
		if err := rows.Scan(&e.ID, &e.ServerID, &e.SQL, &e.ExecutedAt, &success); err != nil {
			return nil, err
		}
		e.Success = success != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DedupHistory returns the deduplicated history for a server, most
// recently executed first.
func (s *Store) DedupHistory(serverID string, limit int) ([]DedupEntry, error) {
	return s.dedupWhere("server_id = ?", limit, serverID)
}

// SearchDedupHistory filters the deduplicated history with a substring
// match on the raw SQL.
func (s *Store) SearchDedupHistory(serverID, query string, limit int) ([]DedupEntry, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	return s.dedupWhere("server_id = ? AND lower(sql) LIKE ?", limit, serverID, pattern)
}

func (s *Store) dedupWhere(where string, limit int, args ...any) ([]DedupEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(
		`SELECT id, server_id, sql, normalized_sql, last_executed_at, execution_count
		 FROM query_history_dedup WHERE `+where+`
		 ORDER BY last_executed_at DESC LIMIT ?`, append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("list dedup history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []DedupEntry
	for rows.Next() {
		var e DedupEntry
		if err := rows.Scan(&e.ID, &e.ServerID, &e.SQL, &e.NormalizedSQL,
			&e.LastExecutedAt, &e.ExecutionCount); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteDedupEntry removes one deduplicated history row.
func (s *Store) DeleteDedupEntry(id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM query_history_dedup WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete dedup entry: %w", err)
	}
	return nil
}

// ClearDedupHistory drops all deduplicated history for a server.
func (s *Store) ClearDedupHistory(serverID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM query_history_dedup WHERE server_id = ?", serverID); err != nil {
		return fmt.Errorf("clear dedup history: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
