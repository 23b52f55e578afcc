package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(nil)
	require.NoError(t, s.Open(":memory:"))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func addTestServer(t *testing.T, s *Store, id, name string) {
	t.Helper()
	require.NoError(t, s.AddServer(Server{
		ID:            id,
		Name:          name,
		Host:          "db.example.com",
		Port:          5432,
		Database:      "app",
		Username:      "deploy",
		CredentialKey: "cred-" + id,
	}))
}

func TestServerRoundTrip(t *testing.T) {
	s := openTestStore(t)
	addTestServer(t, s, "srv-1", "primary")

	srv, err := s.ServerByID("srv-1")
	require.NoError(t, err)
	assert.Equal(t, "primary", srv.Name)
	assert.Equal(t, 5432, srv.Port)
	assert.Nil(t, srv.GroupName)
	assert.Nil(t, srv.LastConnected)

	_, err = s.ServerByID("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServersOrderedByLastConnected(t *testing.T) {
	s := openTestStore(t)
	addTestServer(t, s, "srv-a", "alpha")
	addTestServer(t, s, "srv-b", "beta")
	addTestServer(t, s, "srv-c", "gamma")

	require.NoError(t, s.TouchServer("srv-b", 200))
	require.NoError(t, s.TouchServer("srv-c", 100))

	servers, err := s.Servers()
	require.NoError(t, err)
	require.Len(t, servers, 3)
	assert.Equal(t, "srv-b", servers[0].ID)
	assert.Equal(t, "srv-c", servers[1].ID)
	assert.Equal(t, "srv-a", servers[2].ID) // never connected sorts last
}

func TestDeleteServerCascades(t *testing.T) {
	s := openTestStore(t)
	addTestServer(t, s, "srv-1", "primary")
	seedSchemaSnapshot(t, s, "srv-1")

	require.NoError(t, s.DeleteServer("srv-1"))

	schemas, err := s.SchemasForServer("srv-1")
	require.NoError(t, err)
	assert.Empty(t, schemas)

	items, err := s.AutocompleteItems("srv-1")
	require.NoError(t, err)
	assert.Empty(t, items.Tables)
	assert.Empty(t, items.Columns)
	assert.Empty(t, items.Indexes)
}

func seedSchemaSnapshot(t *testing.T, s *Store, serverID string) {
	t.Helper()
	require.NoError(t, s.RefreshServerSchema(serverID,
		[]Schema{{ID: "sch-1", ServerID: serverID, Name: "public", LastUpdated: 1}},
		[]Table{
			{ID: "tbl-1", SchemaID: "sch-1", Name: "orders", Type: "BASE TABLE"},
			{ID: "tbl-2", SchemaID: "sch-1", Name: "orders_view", Type: "VIEW"},
		},
		[]Column{
			{ID: "col-1", TableID: "tbl-1", Name: "id", DataType: "bigint", Nullable: false},
			{ID: "col-2", TableID: "tbl-1", Name: "note", DataType: "text", Nullable: true},
		},
		[]Index{
			{ID: "idx-1", TableID: "tbl-1", Name: "orders_pkey", Definition: "CREATE UNIQUE INDEX orders_pkey ON public.orders USING btree (id)"},
		},
	))
}

func TestRefreshServerSchemaReplacesSnapshot(t *testing.T) {
	s := openTestStore(t)
	addTestServer(t, s, "srv-1", "primary")
	seedSchemaSnapshot(t, s, "srv-1")

	schemas, err := s.SchemasForServer("srv-1")
	require.NoError(t, err)
	require.Len(t, schemas, 1)

	tables, err := s.TablesForSchema("sch-1")
	require.NoError(t, err)
	require.Len(t, tables, 2)

	views, err := s.ViewsForSchema("sch-1")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "orders_view", views[0].Name)

	cols, err := s.ColumnsForTable("tbl-1")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.False(t, cols[0].Nullable)
	assert.True(t, cols[1].Nullable)

	// A second refresh fully replaces the previous snapshot.
	require.NoError(t, s.RefreshServerSchema("srv-1",
		[]Schema{{ID: "sch-2", ServerID: "srv-1", Name: "reporting", LastUpdated: 2}},
		[]Table{{ID: "tbl-9", SchemaID: "sch-2", Name: "facts", Type: "BASE TABLE"}},
		nil, nil,
	))

	schemas, err = s.SchemasForServer("srv-1")
	require.NoError(t, err)
	require.Len(t, schemas, 1)
	assert.Equal(t, "reporting", schemas[0].Name)

	old, err := s.TablesForSchema("sch-1")
	require.NoError(t, err)
	assert.Empty(t, old)

	cols, err = s.ColumnsForTable("tbl-1")
	require.NoError(t, err)
	assert.Empty(t, cols)
}

func TestTableContext(t *testing.T) {
	s := openTestStore(t)
	addTestServer(t, s, "srv-1", "primary")
	seedSchemaSnapshot(t, s, "srv-1")

	tableName, schemaName, serverID, err := s.TableContext("tbl-1")
	require.NoError(t, err)
	assert.Equal(t, "orders", tableName)
	assert.Equal(t, "public", schemaName)
	assert.Equal(t, "srv-1", serverID)

	_, _, _, err = s.TableContext("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReplaceIndexesForTable(t *testing.T) {
	s := openTestStore(t)
	addTestServer(t, s, "srv-1", "primary")
	seedSchemaSnapshot(t, s, "srv-1")

	require.NoError(t, s.ReplaceIndexesForTable("tbl-1", []Index{
		{ID: "idx-2", TableID: "tbl-1", Name: "orders_note_idx", Definition: "CREATE INDEX orders_note_idx ON public.orders USING btree (note)"},
	}))

	idxs, err := s.IndexesForTable("tbl-1")
	require.NoError(t, err)
	require.Len(t, idxs, 1)
	assert.Equal(t, "orders_note_idx", idxs[0].Name)
}

func TestAutocompleteItems(t *testing.T) {
	s := openTestStore(t)
	addTestServer(t, s, "srv-1", "primary")
	seedSchemaSnapshot(t, s, "srv-1")

	items, err := s.AutocompleteItems("srv-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "orders_view"}, items.Tables)
	assert.Equal(t, []string{"id", "note"}, items.Columns)
	assert.Equal(t, []string{"orders_pkey"}, items.Indexes)
}

func TestNormalizeSQL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"SELECT * FROM t", "select * from t"},
		{"  SELECT\n\t*   FROM t  ", "select * from t"},
		{"select * from T", "select * from t"},
		{"", ""},
		{"   \n\t  ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeSQL(tt.in), "input %q", tt.in)
	}
}

func TestHistoryAndDedup(t *testing.T) {
	s := openTestStore(t)
	addTestServer(t, s, "srv-1", "primary")

	require.NoError(t, s.AddHistory("srv-1", "SELECT * FROM t", 100, true))
	require.NoError(t, s.AddHistory("srv-1", "select  *  from t", 200, true))
	require.NoError(t, s.AddHistory("srv-1", "DROP TABLE t", 300, false))

	history, err := s.History("srv-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "DROP TABLE t", history[0].SQL)
	assert.False(t, history[0].Success)

	// The two successful runs collapse into one dedup row; the failed
	// statement never reaches the dedup table.
	dedup, err := s.DedupHistory("srv-1", 10)
	require.NoError(t, err)
	require.Len(t, dedup, 1)
	assert.Equal(t, "select  *  from t", dedup[0].SQL)
	assert.Equal(t, "select * from t", dedup[0].NormalizedSQL)
	assert.Equal(t, int64(200), dedup[0].LastExecutedAt)
	assert.Equal(t, int64(2), dedup[0].ExecutionCount)
}

func TestSearchDedupHistory(t *testing.T) {
	s := openTestStore(t)
	addTestServer(t, s, "srv-1", "primary")

	require.NoError(t, s.AddHistory("srv-1", "SELECT * FROM orders", 100, true))
	require.NoError(t, s.AddHistory("srv-1", "SELECT * FROM users", 200, true))

	hits, err := s.SearchDedupHistory("srv-1", "ORDERS", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "SELECT * FROM orders", hits[0].SQL)

	none, err := s.SearchDedupHistory("srv-1", "invoices", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteAndClearDedup(t *testing.T) {
	s := openTestStore(t)
	addTestServer(t, s, "srv-1", "primary")

	require.NoError(t, s.AddHistory("srv-1", "SELECT 1", 100, true))
	require.NoError(t, s.AddHistory("srv-1", "SELECT 2", 200, true))

	dedup, err := s.DedupHistory("srv-1", 10)
	require.NoError(t, err)
	require.Len(t, dedup, 2)

	require.NoError(t, s.DeleteDedupEntry(dedup[0].ID))
	dedup, err = s.DedupHistory("srv-1", 10)
	require.NoError(t, err)
	require.Len(t, dedup, 1)

	require.NoError(t, s.ClearDedupHistory("srv-1"))
	dedup, err = s.DedupHistory("srv-1", 10)
	require.NoError(t, err)
	assert.Empty(t, dedup)
}

func TestStoreNotOpened(t *testing.T) {
	s := NewStore(nil)
	_, err := s.Servers()
	assert.Error(t, err)
}
