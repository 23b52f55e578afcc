package state

import (
	"database/sql"
	"errors"
	"fmt"
)

// SchemasForServer lists the cached schemas of a server.
func (s *Store) SchemasForServer(serverID string) ([]Schema, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		"SELECT id, server_id, name, last_updated FROM schemas WHERE server_id = ? ORDER BY name",
		serverID)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var schemas []Schema
	for rows.Next() {
		var sc Schema
		if err := rows.Scan(&sc.ID, &sc.ServerID, &sc.Name, &sc.LastUpdated); err != nil {
			return nil, err
		}
		schemas = append(schemas, sc)
	}
	return schemas, rows.Err()
}

// TablesForSchema lists cached tables and views of a schema.
func (s *Store) TablesForSchema(schemaID string) ([]Table, error) {
	return s.tablesWhere("schema_id = ?", schemaID)
}

// ViewsForSchema lists only the cached views of a schema.
func (s *Store) ViewsForSchema(schemaID string) ([]Table, error) {
	return s.tablesWhere("schema_id = ? AND type = 'VIEW'", schemaID)
}

func (s *Store) tablesWhere(where string, args ...any) ([]Table, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		"SELECT id, schema_id, name, type FROM tables WHERE "+where+" ORDER BY name", args...)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.ID, &t.SchemaID, &t.Name, &t.Type); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// ColumnsForTable lists the cached columns of a table.
func (s *Store) ColumnsForTable(tableID string) ([]Column, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		"SELECT id, table_id, name, data_type, nullable FROM columns WHERE table_id = ? ORDER BY name",
		tableID)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cols []Column
	for rows.Next() {
		var (
			c        Column
			nullable int
		)
		if err := rows.Scan(&c.ID, &c.TableID, &c.Name, &c.DataType, &nullable); err != nil {
			return nil, err
		}
		c.Nullable = nullable != 0
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// IndexesForTable lists the cached indexes of a table.
func (s *Store) IndexesForTable(tableID string) ([]Index, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		"SELECT id, table_id, name, definition FROM indexes WHERE table_id = ? ORDER BY name",
		tableID)
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var idxs []Index
	for rows.Next() {
		var ix Index
		if err := rows.Scan(&ix.ID, &ix.TableID, &ix.Name, &ix.Definition); err != nil {
			return nil, err
		}
		idxs = append(idxs, ix)
	}
	return idxs, rows.Err()
}

// ReplaceIndexesForTable swaps the cached indexes of one table.
func (s *Store) ReplaceIndexesForTable(tableID string, indexes []Index) error {
	if err := s.ready(); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("replace indexes: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM indexes WHERE table_id = ?", tableID); err != nil {
		return fmt.Errorf("replace indexes: %w", err)
	}
	for _, ix := range indexes {
		if _, err := tx.Exec(
			"INSERT INTO indexes (id, table_id, name, definition) VALUES (?, ?, ?, ?)",
			ix.ID, ix.TableID, ix.Name, ix.Definition); err != nil {
			return fmt.Errorf("replace indexes: %w", err)
		}
	}
	return tx.Commit()
}

// TableContext resolves a cached table id back to its table name, schema
// name, and server id.
func (s *Store) TableContext(tableID string) (tableName, schemaName, serverID string, err error) {
	if err := s.ready(); err != nil {
		return "", "", "", err
	}

	row := s.db.QueryRow(
		`SELECT t.name, sc.name, sc.server_id
		 FROM tables t
		 JOIN schemas sc ON sc.id = t.schema_id
		 WHERE t.id = ?`, tableID)
	err = row.Scan(&tableName, &schemaName, &serverID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", "", fmt.Errorf("table %q: %w", tableID, ErrNotFound)
	}
	if err != nil {
		return "", "", "", err
	}
	return tableName, schemaName, serverID, nil
}

// AutocompleteItems collects table, column, and index names for a server.
func (s *Store) AutocompleteItems(serverID string) (*AutocompleteItems, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	items := &AutocompleteItems{}

	queries := []struct {
		sql  string
		dest *[]string
	}{
		{`SELECT t.name FROM tables t
		  JOIN schemas sc ON sc.id = t.schema_id
		  WHERE sc.server_id = ? ORDER BY t.name`, &items.Tables},
		{`SELECT c.name FROM columns c
		  JOIN tables t ON t.id = c.table_id
		  JOIN schemas sc ON sc.id = t.schema_id
		  WHERE sc.server_id = ? ORDER BY c.name`, &items.Columns},
		{`SELECT i.name FROM indexes i
		  JOIN tables t ON t.id = i.table_id
		  JOIN schemas sc ON sc.id = t.schema_id
		  WHERE sc.server_id = ? ORDER BY i.name`, &items.Indexes},
	}

	for _, q := range queries {
		rows, err := s.db.Query(q.sql, serverID)
		if err != nil {
			return nil, fmt.Errorf("autocomplete items: %w", err)
		}
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				_ = rows.Close()
				return nil, err
			}
			*q.dest = append(*q.dest, name)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, err
		}
		_ = rows.Close()
	}
	return items, nil
}

// RefreshServerSchema atomically replaces all cached schema data for a
// server with a freshly introspected snapshot.
func (s *Store) RefreshServerSchema(serverID string, schemas []Schema, tables []Table, columns []Column, indexes []Index) error {
	if err := s.ready(); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("refresh schema cache: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Clear in reverse dependency order.
	clears := []string{
		`DELETE FROM indexes WHERE table_id IN
		 (SELECT id FROM tables WHERE schema_id IN
		  (SELECT id FROM schemas WHERE server_id = ?))`,
		`DELETE FROM columns WHERE table_id IN
		 (SELECT id FROM tables WHERE schema_id IN
		  (SELECT id FROM schemas WHERE server_id = ?))`,
		`DELETE FROM tables WHERE schema_id IN
		 (SELECT id FROM schemas WHERE server_id = ?)`,
		`DELETE FROM schemas WHERE server_id = ?`,
	}
	for _, q := range clears {
		if _, err := tx.Exec(q, serverID); err != nil {
			return fmt.Errorf("refresh schema cache: %w", err)
		}
	}

	for _, sc := range schemas {
		if _, err := tx.Exec(
			"INSERT INTO schemas (id, server_id, name, last_updated) VALUES (?, ?, ?, ?)",
			sc.ID, sc.ServerID, sc.Name, sc.LastUpdated); err != nil {
			return fmt.Errorf("refresh schema cache: %w", err)
		}
	}
	for _, t := range tables {
		if _, err := tx.Exec(
			"INSERT INTO tables (id, schema_id, name, type) VALUES (?, ?, ?, ?)",
			t.ID, t.SchemaID, t.Name, t.Type); err != nil {
			return fmt.Errorf("refresh schema cache: %w", err)
		}
	}
	for _, c := range columns {
		nullable := 0
		if c.Nullable {
			nullable = 1
		}
		if _, err := tx.Exec(
			"INSERT INTO columns (id, table_id, name, data_type, nullable) VALUES (?, ?, ?, ?, ?)",
			c.ID, c.TableID, c.Name, c.DataType, nullable); err != nil {
			return fmt.Errorf("refresh schema cache: %w", err)
		}
	}
	for _, ix := range indexes {
		if _, err := tx.Exec(
			"INSERT INTO indexes (id, table_id, name, definition) VALUES (?, ?, ?, ?)",
			ix.ID, ix.TableID, ix.Name, ix.Definition); err != nil {
			return fmt.Errorf("refresh schema cache: %w", err)
		}
	}

	return tx.Commit()
}
