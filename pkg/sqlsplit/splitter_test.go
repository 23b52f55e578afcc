package sqlsplit

import (
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drain collects every statement and, for COPY statements, the relayed
// data payload keyed by statement ordinal.
func drain(t *testing.T, input string) ([]string, map[int]string) {
	t.Helper()

	s := New(strings.NewReader(input))
	var stmts []string
	payloads := make(map[int]string)

	for {
		stmt, err := s.Next()
		if err == io.EOF {
			return stmts, payloads
		}
		require.NoError(t, err)
		stmts = append(stmts, stmt)
		if IsCopyFromStdin(stmt) {
			data, err := io.ReadAll(s.CopyData())
			require.NoError(t, err)
			payloads[len(stmts)-1] = string(data)
		}
	}
}

func TestNext_SplitsOnTopLevelSemicolons(t *testing.T) {
	stmts, _ := drain(t, "SELECT 1;\nSELECT 2;\n\nSELECT 3")
	assert.Equal(t, []string{"SELECT 1", "SELECT 2", "SELECT 3"}, stmts)
}

func TestNext_EmptyStatementsAreSkipped(t *testing.T) {
	stmts, _ := drain(t, ";;  ;\nSELECT 1; ;")
	assert.Equal(t, []string{"SELECT 1"}, stmts)
}

func TestNext_EmptyInput(t *testing.T) {
	s := New(strings.NewReader("   \n\t"))
	_, err := s.Next()
	assert.Equal(t, io.EOF, err)
}

func TestNext_SemicolonInsideSingleQuote(t *testing.T) {
	stmts, _ := drain(t, "SELECT ';';SELECT 2;")
	assert.Equal(t, []string{"SELECT ';'", "SELECT 2"}, stmts)
}

func TestNext_SemicolonInsideDoubleQuote(t *testing.T) {
	stmts, _ := drain(t, `SELECT "a;b" FROM t;`)
	assert.Equal(t, []string{`SELECT "a;b" FROM t`}, stmts)
}

func TestNext_SemicolonInsideLineComment(t *testing.T) {
	stmts, _ := drain(t, "SELECT 1 -- not here ;\n;SELECT 2;")
	assert.Equal(t, []string{"SELECT 1", "SELECT 2"}, stmts)
}

func TestNext_SemicolonInsideBlockComment(t *testing.T) {
	stmts, _ := drain(t, "SELECT /* ; \n ; */ 1;")
	assert.Equal(t, []string{"SELECT  1"}, stmts)
}

func TestNext_CommentsAreDiscarded(t *testing.T) {
	stmts, _ := drain(t, "-- header\nSELECT 1;")
	assert.Equal(t, []string{"SELECT 1"}, stmts)
}

func TestNext_DoubledSingleQuoteStaysInside(t *testing.T) {
	stmts, _ := drain(t, "SELECT 'it''s;fine';SELECT 2;")
	assert.Equal(t, []string{"SELECT 'it''s;fine'", "SELECT 2"}, stmts)
}

func TestNext_DoubledDoubleQuoteStaysInside(t *testing.T) {
	stmts, _ := drain(t, `SELECT "we""ird;name";`)
	assert.Equal(t, []string{`SELECT "we""ird;name"`}, stmts)
}

func TestNext_QuoteClosedAtEndOfInput(t *testing.T) {
	// The closing quote is the final character; the pending doubled-quote
	// check must not report the literal as unterminated.
	stmts, _ := drain(t, "SELECT 'x'")
	assert.Equal(t, []string{"SELECT 'x'"}, stmts)
}

func TestNext_DollarQuotedBody(t *testing.T) {
	input := "CREATE FUNCTION f() RETURNS void AS $body$ SELECT 1; 'unclosed $$ /* */ $body$ LANGUAGE sql;SELECT 2;"
	stmts, _ := drain(t, input)
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "$body$ SELECT 1; 'unclosed $$ /* */ $body$")
	assert.Equal(t, "SELECT 2", stmts[1])
}

func TestNext_AnonymousDollarQuote(t *testing.T) {
	stmts, _ := drain(t, "DO $$ BEGIN; END $$;SELECT 1;")
	assert.Equal(t, []string{"DO $$ BEGIN; END $$", "SELECT 1"}, stmts)
}

func TestNext_DollarCandidateAbortKeepsContent(t *testing.T) {
	// '$1 ' is not a dollar quote; the consumed characters stay in the
	// statement text and scanning continues normally.
	stmts, _ := drain(t, "SELECT $1 + 1;SELECT 2;")
	assert.Equal(t, []string{"SELECT $1 + 1", "SELECT 2"}, stmts)
}

func TestNext_DollarCandidateAbortConsumesDelimiter(t *testing.T) {
	// A ';' that aborts a dollar-quote candidate is appended as content,
	// not treated as a statement boundary.
	stmts, _ := drain(t, "SELECT $x; SELECT 2;")
	assert.Equal(t, []string{"SELECT $x; SELECT 2"}, stmts)
}

func TestNext_TrailingStatementWithoutSemicolon(t *testing.T) {
	stmts, _ := drain(t, "SELECT 1;  SELECT 2 -- tail\n")
	assert.Equal(t, []string{"SELECT 1", "SELECT 2"}, stmts)
}

func TestNext_PreservesOriginalFormatting(t *testing.T) {
	stmts, _ := drain(t, "SELECT  a,\n\tb\nFROM t;")
	assert.Equal(t, []string{"SELECT  a,\n\tb\nFROM t"}, stmts)
}

func TestNext_UnterminatedRegions(t *testing.T) {
	cases := map[string]struct {
		input string
		want  error
	}{
		"single quote": {"SELECT 'abc", ErrUnterminatedQuote},
		"double quote": {`SELECT "abc`, ErrUnterminatedQuote},
		"block":        {"SELECT 1 /* open", ErrUnterminatedComment},
		"dollar":       {"SELECT $t$ body", ErrUnterminatedDollarQuote},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s := New(strings.NewReader(tc.input))
			_, err := s.Next()
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestNext_LineCommentOpenAtEOFIsFine(t *testing.T) {
	stmts, _ := drain(t, "SELECT 1; -- trailing comment")
	assert.Equal(t, []string{"SELECT 1"}, stmts)
}

func TestNext_SpecExample(t *testing.T) {
	input := "SELECT 1; -- comment ; \n SELECT ';' ; COPY t FROM STDIN;\na\tb\n\\.\n"
	stmts, payloads := drain(t, input)
	require.Equal(t, []string{"SELECT 1", "SELECT ';'", "COPY t FROM STDIN"}, stmts)
	assert.Equal(t, "a\tb\n", payloads[2])
}

func TestCopyData_RelaysLinesAndResumes(t *testing.T) {
	input := "COPY t FROM STDIN;\nrow1\n\nrow2\r\n\\.\nSELECT 1;"
	stmts, payloads := drain(t, input)
	require.Equal(t, []string{"COPY t FROM STDIN", "SELECT 1"}, stmts)
	// Blank line dropped, trailing \r stripped.
	assert.Equal(t, "row1\nrow2\n", payloads[0])
}

func TestCopyData_Unterminated(t *testing.T) {
	s := New(strings.NewReader("COPY t FROM STDIN;\nrow1\nrow2"))
	stmt, err := s.Next()
	require.NoError(t, err)
	require.True(t, IsCopyFromStdin(stmt))

	_, err = io.ReadAll(s.CopyData())
	assert.ErrorIs(t, err, ErrUnterminatedCopy)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestCopyData_MissingDataSection(t *testing.T) {
	s := New(strings.NewReader("COPY t FROM STDIN;"))
	_, err := s.Next()
	require.NoError(t, err)

	_, err = io.ReadAll(s.CopyData())
	assert.ErrorIs(t, err, ErrUnterminatedCopy)
}

func TestCopyData_SentinelAtEOFWithoutNewline(t *testing.T) {
	s := New(strings.NewReader("COPY t FROM STDIN;\na\n\\."))
	_, err := s.Next()
	require.NoError(t, err)

	data, err := io.ReadAll(s.CopyData())
	require.NoError(t, err)
	assert.Equal(t, "a\n", string(data))
}

func TestNext_PendingCopyDataGuard(t *testing.T) {
	s := New(strings.NewReader("COPY t FROM STDIN;\na\n\\.\nSELECT 1;"))
	_, err := s.Next()
	require.NoError(t, err)

	_, err = s.Next()
	assert.ErrorIs(t, err, ErrPendingCopyData)

	_, err = io.ReadAll(s.CopyData())
	require.NoError(t, err)

	stmt, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", stmt)
}

func TestNext_OneBytePerRead(t *testing.T) {
	// Boundary detection must not depend on chunk boundaries.
	input := "SELECT 'a;b';/*x;*/INSERT INTO t VALUES ($tag$;$tag$);"
	s := New(iotest.OneByteReader(strings.NewReader(input)))

	var stmts []string
	for {
		stmt, err := s.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		stmts = append(stmts, stmt)
	}
	assert.Equal(t, []string{"SELECT 'a;b'", "INSERT INTO t VALUES ($tag$;$tag$)"}, stmts)
}

func TestNext_StatementCountProperty(t *testing.T) {
	// For balanced input with no COPY blocks the number of statements is
	// the number of top-level ';' plus one for trailing text.
	input := "a;b;'x;y';\"q;\";/*;*/c -- ;\n;d"
	stmts, _ := drain(t, input)
	assert.Len(t, stmts, 6)
}
