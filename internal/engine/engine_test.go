package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adpulse/internal/csvio"
)

func openLoaded(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	tbl := &csvio.Table{
		Headers: []string{"Campaign", "Keyword", "Revenue"},
		Rows: [][]string{
			{"alpha", "car insurance", "$1,000.50"},
			{"alpha", "o'reilly auto", "20"},
			{"beta", "loans", "n/a"},
		},
	}
	n, err := db.Load(ctx, "src", tbl, []string{"Revenue"})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	return db
}

func TestLoadAndQueryWithBoundArgs(t *testing.T) {
	db := openLoaded(t)
	ctx := context.Background()
	var cols []string
	for _, name := range []string{"Campaign", "Keyword", "Revenue"} {
		id, err := db.Ident("src", name)
		require.NoError(t, err)
		cols = append(cols, id)
	}

	rows, err := db.Query(ctx,
		"SELECT "+cols[0]+" AS campaign, SUM("+cols[2]+") AS revenue FROM src WHERE "+cols[1]+" = ? GROUP BY 1",
		"o'reilly auto")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "alpha", rows[0].String("campaign"))
	assert.Equal(t, 20.0, rows[0].Float("revenue"))

	rows, err = db.Query(ctx, "SELECT "+cols[0]+" AS c, SUM("+cols[2]+") AS r, COUNT(*) AS n FROM src GROUP BY 1 ORDER BY 1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1020.5, rows[0].Float("r"))
	assert.Equal(t, int64(2), rows[0].Int("n"))
	assert.Equal(t, 0.0, rows[1].Float("r"), "unparseable numbers load as 0")
}

func TestInjectionAttemptIsJustAValue(t *testing.T) {
	db := openLoaded(t)
	rows, err := db.Query(context.Background(), `SELECT COUNT(*) AS n FROM src WHERE "Keyword" = ?`, "x' OR '1'='1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows[0].Int("n"))
}

func TestIdentRejectsUnknownColumns(t *testing.T) {
	db := openLoaded(t)
	_, err := db.Ident("src", `Revenue"; DROP TABLE src; --`)
	assert.True(t, errors.Is(err, ErrUnknownColumn))
	_, err = db.Ident("missing", "Revenue")
	assert.Error(t, err)
	id, err := db.Ident("src", "Revenue")
	require.NoError(t, err)
	assert.Equal(t, `"Revenue"`, id)
}

func TestLoadValidation(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx)
	require.NoError(t, err)
	defer db.Close()
	tbl := &csvio.Table{Headers: []string{"a"}}
	_, err = db.Load(ctx, "bad name", tbl, nil)
	assert.Error(t, err)
	_, err = db.Load(ctx, "ok", tbl, []string{"b"})
	assert.True(t, errors.Is(err, ErrUnknownColumn))
	_, err = db.Load(ctx, "ok", nil, nil)
	assert.Error(t, err)
}

func TestLoadValues(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.LoadValues(ctx, "pareto", "keyword", []string{"a", "b"}))
	rows, err := db.Query(ctx, "SELECT keyword FROM pareto ORDER BY keyword")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[1].String("keyword"))
}

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "%alpha%", ContainsPattern("alpha"))
	assert.Equal(t, `%50\%\_off%`, ContainsPattern("50%_off"))
	assert.Equal(t, `%a\\b%`, ContainsPattern(`a\b`))
}
