package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldeck/sqldeck/internal/pgclient"
)

func queryResult() *pgclient.Result {
	return &pgclient.Result{
		IsQuery: true,
		Columns: []pgclient.Column{{Name: "id", Type: "int4"}, {Name: "name", Type: "text"}},
		Rows: []map[string]any{
			{"id": int32(1), "name": "alpha"},
			{"id": int32(2), "name": nil},
		},
	}
}

func TestRenderResultTable(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, renderResult(&buf, queryResult(), "table"))

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, "NULL")
	assert.Contains(t, out, "(2 rows)")
}

func TestRenderResultJSON(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, renderResult(&buf, queryResult(), "json"))

	out := buf.String()
	assert.Contains(t, out, `"name": "alpha"`)
	assert.Contains(t, out, `"name": null`)
}

func TestRenderResultCSV(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, renderResult(&buf, queryResult(), "csv"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,name", lines[0])
	assert.Equal(t, "1,alpha", lines[1])
	assert.Equal(t, "2,NULL", lines[2])
}

func TestRenderResultCommand(t *testing.T) {
	var buf strings.Builder
	res := &pgclient.Result{Message: "OK, 3 rows affected"}
	require.NoError(t, renderResult(&buf, res, "table"))
	assert.Equal(t, "OK, 3 rows affected\n", buf.String())
}

func TestRenderEmptyQuery(t *testing.T) {
	var buf strings.Builder
	res := &pgclient.Result{IsQuery: true, Columns: []pgclient.Column{{Name: "id"}}}
	require.NoError(t, renderResult(&buf, res, "table"))
	assert.Equal(t, "(0 rows)\n", buf.String())
}

func TestEscapeCSV(t *testing.T) {
	assert.Equal(t, "plain", escapeCSV("plain"))
	assert.Equal(t, `"a,b"`, escapeCSV("a,b"))
	assert.Equal(t, `"say ""hi"""`, escapeCSV(`say "hi"`))
	assert.Equal(t, "\"line\nbreak\"", escapeCSV("line\nbreak"))
}
