package executor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/badgie/migrator/internal/testdb"
	"github.com/badgie/migrator/migrate"
	"github.com/badgie/migrator/migrate/splitter"
)

func tableExists(t *testing.T, e *Executor, name string) bool {
	t.Helper()
	return testdb.Count(t, e.db, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name) > 0
}

func TestExecuteRunsAllBatches(t *testing.T) {
	db := testdb.Open(t)
	e := New(db, &migrate.Config{UseTransaction: true})

	err := e.Execute(context.Background(), Script{
		Name:   "001_init.sql",
		Source: []byte("CREATE TABLE t (id INTEGER)\nGO\nINSERT INTO t VALUES (1);\nINSERT INTO t VALUES (2);\nGO\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, testdb.Count(t, db, "SELECT COUNT(*) FROM t"))
}

func TestExecuteStopsAtFailingBatch(t *testing.T) {
	for _, useTx := range []bool{true, false} {
		name := "without transaction"
		if useTx {
			name = "with transaction"
		}

		t.Run(name, func(t *testing.T) {
			db := testdb.Open(t)
			e := New(db, &migrate.Config{UseTransaction: useTx})

			err := e.Execute(context.Background(), Script{
				Name: "002_broken.sql",
				Source: []byte("CREATE TABLE t (id INTEGER)\nGO\n" +
					"INSERT INTO t VALUES (1);\nINSERT INTO missing VALUES (1);\nGO\n" +
					"CREATE TABLE never (id INTEGER)"),
			})

			var execErr *migrate.ExecutionError
			require.True(t, errors.As(err, &execErr), "got %v", err)
			assert.Equal(t, "002_broken.sql", execErr.File)
			assert.Equal(t, 2, execErr.Batch)
			assert.Contains(t, execErr.SQL, "missing")
			assert.Equal(t, useTx, execErr.RolledBack)

			// the first batch stays committed, the third never runs
			assert.True(t, tableExists(t, e, "t"))
			assert.False(t, tableExists(t, e, "never"))

			// only the failing batch is rolled back
			rows := testdb.Count(t, db, "SELECT COUNT(*) FROM t")
			if useTx {
				assert.Equal(t, 0, rows)
			} else {
				assert.Equal(t, 1, rows)
			}
		})
	}
}

func TestExecuteStrictEncoding(t *testing.T) {
	db := testdb.Open(t)
	e := New(db, &migrate.Config{UseTransaction: true, StrictEncoding: true})

	err := e.Execute(context.Background(), Script{
		Name:   "003_latin1.sql",
		Source: []byte("CREATE TABLE ok (id INTEGER)\nGO\nINSERT INTO ok VALUES ('caf\xe9')"),
	})

	var encErr *migrate.EncodingError
	require.True(t, errors.As(err, &encErr), "got %v", err)
	assert.Equal(t, "003_latin1.sql", encErr.File)
	assert.Equal(t, "INSERT INTO ok VALUES ('caf�')", encErr.Line)
	assert.Equal(t, 28, encErr.Column)
	assert.Equal(t, 59, encErr.Offset)
	assert.False(t, tableExists(t, e, "ok"), "nothing may run before the encoding check")
}

func TestExecuteStrictEncodingOffsetCountsByteOrderMark(t *testing.T) {
	db := testdb.Open(t)
	e := New(db, &migrate.Config{UseTransaction: true, StrictEncoding: true})

	source := []byte("\xef\xbb\xbfSELECT 1\nSELECT 'caf\xe9'")
	err := e.Execute(context.Background(), Script{Name: "008_bom_latin1.sql", Source: source})

	var encErr *migrate.EncodingError
	require.True(t, errors.As(err, &encErr), "got %v", err)
	assert.Equal(t, bytes.IndexByte(source, 0xe9), encErr.Offset)
	assert.Equal(t, 23, encErr.Offset)
	assert.Equal(t, 12, encErr.Column)
}

func TestExecuteLenientEncoding(t *testing.T) {
	db := testdb.Open(t)
	e := New(db, &migrate.Config{UseTransaction: true})

	err := e.Execute(context.Background(), Script{
		Name:   "004_comment.sql",
		Source: []byte("-- caf\xe9\nCREATE TABLE ok (id INTEGER)"),
	})
	require.NoError(t, err)
	assert.True(t, tableExists(t, e, "ok"))
}

func TestExecuteStripsByteOrderMark(t *testing.T) {
	db := testdb.Open(t)
	e := New(db, &migrate.Config{UseTransaction: false, StrictEncoding: true})

	err := e.Execute(context.Background(), Script{
		Name:   "005_bom.sql",
		Source: []byte("\xef\xbb\xbfCREATE TABLE bom (id INTEGER)"),
	})
	require.NoError(t, err)
	assert.True(t, tableExists(t, e, "bom"))
}

func TestExecuteCustomSplitter(t *testing.T) {
	db := testdb.Open(t)
	e := New(db, &migrate.Config{UseTransaction: true}, WithSplitter(splitter.New("$$")))

	err := e.Execute(context.Background(), Script{
		Name:   "006_custom.sql",
		Source: []byte("CREATE TABLE a (id INTEGER)\n$$\nCREATE TABLE b (id INTEGER)"),
	})
	require.NoError(t, err)
	assert.True(t, tableExists(t, e, "a"))
	assert.True(t, tableExists(t, e, "b"))
}

func TestExecuteHonoursCancellation(t *testing.T) {
	db := testdb.Open(t)
	e := New(db, &migrate.Config{UseTransaction: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Execute(ctx, Script{Name: "007.sql", Source: []byte("CREATE TABLE c (id INTEGER)")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckEncoding(t *testing.T) {
	assert.NoError(t, CheckEncoding("a.sql", "SELECT 'Hello, World!' as greeting"))

	err := CheckEncoding("a.sql", "SELECT 1\nSELECT �2\nSELECT 3")
	var encErr *migrate.EncodingError
	require.True(t, errors.As(err, &encErr))
	assert.Equal(t, 16, encErr.Offset)
	assert.Equal(t, "SELECT �2", encErr.Line)
	assert.Equal(t, 8, encErr.Column)

	lines := strings.Split(encErr.Error(), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, lines[0], "offset 16")
	assert.Equal(t, "    | SELECT �2", lines[1])
	assert.Equal(t, "    |        ^", lines[2])

	err = CheckEncoding("b.sql", "SELECT 1�SELECT 2")
	require.True(t, errors.As(err, &encErr))
	assert.Equal(t, 8, encErr.Offset)
	assert.Equal(t, 9, encErr.Column)
}

func TestDecode(t *testing.T) {
	assert.Equal(t, "SELECT 1", Decode([]byte("\xef\xbb\xbfSELECT 1")))
	assert.Equal(t, "a�b", Decode([]byte("a\xffb")))
	assert.Equal(t, "plain", Decode([]byte("plain")))
}
