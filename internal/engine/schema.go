package engine

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/sqldeck/sqldeck/internal/notify"
	"github.com/sqldeck/sqldeck/internal/state"
)

// refreshParallelism bounds concurrent server refreshes.
const refreshParallelism = 4

const (
	schemaQuery = `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN ('information_schema', 'pg_catalog', 'pg_toast')
		  AND schema_name NOT LIKE 'pg_temp_%'
		  AND schema_name NOT LIKE 'pg_toast_temp_%'
		ORDER BY schema_name`

	tableQuery = `
		SELECT table_schema, table_name, table_type
		FROM information_schema.tables
		WHERE table_schema = ANY($1)
		ORDER BY table_schema, table_name`

	columnQuery = `
		SELECT table_schema, table_name, column_name, data_type, is_nullable = 'YES'
		FROM information_schema.columns
		WHERE table_schema = ANY($1)
		ORDER BY table_schema, table_name, ordinal_position`

	indexQuery = `
		SELECT schemaname, tablename, indexname, indexdef
		FROM pg_indexes
		WHERE schemaname = ANY($1)
		ORDER BY schemaname, tablename, indexname`
)

// RefreshSchema introspects the server and atomically replaces its
// cached schema snapshot, then broadcasts a schema_updated event.
func (e *Engine) RefreshSchema(ctx context.Context, serverID string) error {
	conn, _, err := e.acquire(ctx, serverID, "")
	if err != nil {
		return err
	}
	defer conn.Release()

	snap, err := introspect(ctx, conn.Conn(), serverID)
	if err != nil {
		return fmt.Errorf("introspect server %q: %w", serverID, err)
	}

	if err := e.store.RefreshServerSchema(serverID, snap.schemas, snap.tables, snap.columns, snap.indexes); err != nil {
		return err
	}

	e.log.Info("schema refreshed",
		"server_id", serverID,
		"schemas", len(snap.schemas),
		"tables", len(snap.tables))
	e.notifier.Broadcast(notify.Event{
		Kind:     notify.KindSchemaUpdated,
		ServerID: serverID,
		Schemas:  snap.schemas,
	})
	return nil
}

// RefreshAllSchemas refreshes every registered server, a few at a time.
// The first failure cancels the remaining refreshes.
func (e *Engine) RefreshAllSchemas(ctx context.Context) error {
	servers, err := e.store.Servers()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshParallelism)
	for _, srv := range servers {
		g.Go(func() error {
			if err := e.RefreshSchema(ctx, srv.ID); err != nil {
				return fmt.Errorf("server %q: %w", srv.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

type snapshot struct {
	schemas []state.Schema
	tables  []state.Table
	columns []state.Column
	indexes []state.Index
}

// introspect walks information_schema and pg_indexes and builds a fully
// keyed snapshot ready for the cache swap.
func introspect(ctx context.Context, conn *pgx.Conn, serverID string) (*snapshot, error) {
	now := nowMillis()
	snap := &snapshot{}

	var names []string
	rows, err := conn.Query(ctx, schemaQuery)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}
		names = append(names, name)
		snap.schemas = append(snap.schemas, state.Schema{
			ID:          newID(),
			ServerID:    serverID,
			Name:        name,
			LastUpdated: now,
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return snap, nil
	}

	schemaIDs := make(map[string]string, len(snap.schemas))
	for _, sc := range snap.schemas {
		schemaIDs[sc.Name] = sc.ID
	}

	// schema.table -> table id
	tableIDs := make(map[string]string)

	rows, err = conn.Query(ctx, tableQuery, names)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var schemaName, tableName, tableType string
		if err := rows.Scan(&schemaName, &tableName, &tableType); err != nil {
			rows.Close()
			return nil, err
		}
		id := newID()
		tableIDs[schemaName+"."+tableName] = id
		snap.tables = append(snap.tables, state.Table{
			ID:       id,
			SchemaID: schemaIDs[schemaName],
			Name:     tableName,
			Type:     tableType,
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = conn.Query(ctx, columnQuery, names)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var schemaName, tableName, columnName, dataType string
		var nullable bool
		if err := rows.Scan(&schemaName, &tableName, &columnName, &dataType, &nullable); err != nil {
			rows.Close()
			return nil, err
		}
		tableID, ok := tableIDs[schemaName+"."+tableName]
		if !ok {
			continue
		}
		snap.columns = append(snap.columns, state.Column{
			ID:       newID(),
			TableID:  tableID,
			Name:     columnName,
			DataType: dataType,
			Nullable: nullable,
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = conn.Query(ctx, indexQuery, names)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var schemaName, tableName, indexName, indexDef string
		if err := rows.Scan(&schemaName, &tableName, &indexName, &indexDef); err != nil {
			rows.Close()
			return nil, err
		}
		tableID, ok := tableIDs[schemaName+"."+tableName]
		if !ok {
			continue
		}
		snap.indexes = append(snap.indexes, state.Index{
			ID:         newID(),
			TableID:    tableID,
			Name:       indexName,
			Definition: indexDef,
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return snap, nil
}
