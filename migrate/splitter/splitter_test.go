package splitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitAcceptsWhitespaceAroundDelimiter(t *testing.T) {
	for _, delim := range []string{"\nGO\n", "\nGO \n", "\n  GO\n", "\n  GO  \n", "\n\tGO\t\n", "\r\nGO\r\n"} {
		parts := Split("SELECT 1" + delim + "SELECT 2")
		require.Len(t, parts, 2, "%q", delim)
		assert.Equal(t, "SELECT 1", parts[0])
		assert.Equal(t, "SELECT 2", parts[1])
	}
}

func TestSplitIsCaseInsensitive(t *testing.T) {
	for _, delim := range []string{"\ngo\n", "\nGo\n", "\ngO\n", "\nGO\n"} {
		assert.Len(t, Split("SELECT 1"+delim+"SELECT 2"), 2, "%q", delim)
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"two batches", "SELECT 1\nGO\nSELECT 2", []string{"SELECT 1", "SELECT 2"}},
		{"three batches", "SELECT 1\nGO\nSELECT 2\nGO\nSELECT 3", []string{"SELECT 1", "SELECT 2", "SELECT 3"}},
		{"mid line", "SELECT 1 GO SELECT 2", []string{"SELECT 1 GO SELECT 2"}},
		{"in literal on same line", "SELECT 'GO' as status", []string{"SELECT 'GO' as status"}},
		{"literal then delimiter", "INSERT INTO t VALUES ('GO')\nGO\nSELECT 1", []string{"INSERT INTO t VALUES ('GO')", "SELECT 1"}},
		{"literal spanning lines", "INSERT INTO t VALUES ('a\nGO\nb')", []string{"INSERT INTO t VALUES ('a\nGO\nb')"}},
		{"escaped quote", "INSERT INTO t VALUES ('it''s')\nGO\nSELECT 1", []string{"INSERT INTO t VALUES ('it''s')", "SELECT 1"}},
		{"block comment", "/* start\nGO\nend */ SELECT 1", []string{"/* start\nGO\nend */ SELECT 1"}},
		{"line comment with quote", "-- don't touch\nSELECT 1\nGO\nSELECT 2", []string{"-- don't touch\nSELECT 1", "SELECT 2"}},
		{"bracketed identifier", "SELECT [it's] FROM t\nGO\nSELECT 2", []string{"SELECT [it's] FROM t", "SELECT 2"}},
		{"backtick identifier", "SELECT `it's` FROM t\nGO\nSELECT 2", []string{"SELECT `it's` FROM t", "SELECT 2"}},
		{"backslash escape", "INSERT INTO t VALUES ('it\\'s')\nGO\nSELECT 1\nGO\nSELECT 2", []string{"INSERT INTO t VALUES ('it\\'s')", "SELECT 1", "SELECT 2"}},
		{"trailing backslash", "BACKUP DATABASE app TO DISK = 'C:\\backup\\'\nGO\nSELECT 1", []string{"BACKUP DATABASE app TO DISK = 'C:\\backup\\'", "SELECT 1"}},
		{"hash comment with quote", "# don't do this\nSELECT 1\nGO\nSELECT 2", []string{"# don't do this\nSELECT 1", "SELECT 2"}},
		{"bracket spanning lines", "SELECT [a\nGO\nb] FROM t", []string{"SELECT [a\nGO\nb] FROM t"}},
		{"first line is not bounded", "GO\nSELECT 1", []string{"GO\nSELECT 1"}},
		{"last line is not bounded", "SELECT 1\nGO", []string{"SELECT 1\nGO"}},
		{"consecutive delimiters", "SELECT 1\nGO\nGO\nSELECT 2", []string{"SELECT 1", "SELECT 2"}},
		{"token prefix", "SELECT 1\nGOTO\nSELECT 2", []string{"SELECT 1\nGOTO\nSELECT 2"}},
		{"empty", "", []string{}},
		{"only delimiters", "\nGO\n\nGO\n", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Split(tt.in))
		})
	}
}

func TestSplitKeepsEmptySegments(t *testing.T) {
	batches := New("").Split("SELECT 1\nGO\n")
	require.Len(t, batches, 2)
	assert.Equal(t, "SELECT 1", batches[0])
	assert.Equal(t, "", batches[1])
	assert.Equal(t, []string{"SELECT 1"}, batches.NonEmpty())

	batches = New("GO").Split("SELECT 1\nGO\nGO\nSELECT 2")
	assert.Equal(t, Batches{"SELECT 1", "", "SELECT 2"}, batches)

	var positions []int
	for i := range batches.All() {
		positions = append(positions, i)
	}
	assert.Equal(t, []int{1, 2, 3}, positions)
}

func TestSplitIsIdempotent(t *testing.T) {
	inputs := []string{
		"SELECT 1\nGO\nSELECT 2",
		"CREATE TABLE a (id int)\n  go  \nINSERT INTO a VALUES ('x\nGO\ny')\nGO",
		"GO\nSELECT 1\nGO\n\nGO\nSELECT 2\r\nGO\r\n",
		"/* c\nGO\n*/\nSELECT 1\nGO\n-- it's\nSELECT 2",
		"SELECT [it's] FROM t\nGO\nSELECT 2",
		"INSERT INTO t VALUES ('it\\'s')\nGO\nSELECT 1\nGO\nSELECT 2",
		"# don't do this\nSELECT 1\nGO\nSELECT 2",
		"SELECT 'C:\\data\\', 'x'\nGO\nSELECT 2",
	}

	for _, in := range inputs {
		for _, batch := range Split(in) {
			assert.Equal(t, []string{batch}, Split(batch), "re-splitting %q", batch)
		}
	}
}

func TestCustomDelimiter(t *testing.T) {
	s := New("$$")
	assert.Equal(t, []string{"SELECT 1", "SELECT 2"}, s.Split("SELECT 1\n$$\nSELECT 2").NonEmpty())
	assert.Equal(t, []string{"SELECT 1\nGO\nSELECT 2"}, s.Split("SELECT 1\nGO\nSELECT 2").NonEmpty())
}
