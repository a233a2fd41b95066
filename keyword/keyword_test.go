package keyword

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type sliceRows struct{ rows [][]byte }

func (s sliceRows) NRows() int { return len(s.rows) }
func (s sliceRows) Row(i int) ([]byte, error) { return s.rows[i], nil }

func TestBuildFromTextColumnAndSearch(t *testing.T) {
	rows := sliceRows{rows: [][]byte{[]byte("red blue"), []byte("blue green")}}
	ix, err := BuildFromTextColumn(rows, DefaultTokenizer{})
	require.NoError(t, err)

	require.Equal(t, []string{"red", "blue", "green"}, ix.Terms())

	hits, err := ix.Search("blue")
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 1}, hits.Positions())

	hits, err = ix.Search("red")
	require.NoError(t, err)
	require.Equal(t, []uint32{0}, hits.Positions())

	hits, err = ix.Search("yellow")
	require.NoError(t, err)
	require.Equal(t, 2, hits.Size())
	require.Equal(t, 0, hits.Cnt())

	// bits[0] is conventionally the union of every term's bitmap.
	require.Equal(t, []uint32{0, 1}, ix.NonNullMask().Positions())
}

func TestBuildFromTermDocument(t *testing.T) {
	doc := "red: 0\nblue: 0, 1\ngreen: 1\n"
	ix, err := BuildFromTermDocument(strings.NewReader(doc), 2)
	require.NoError(t, err)

	hits, err := ix.Search("BLUE") // case-insensitive lookup
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 1}, hits.Positions())
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rows := sliceRows{rows: [][]byte{[]byte("red blue"), []byte("blue green")}}
	ix, err := BuildFromTextColumn(rows, DefaultTokenizer{})
	require.NoError(t, err)
	require.NoError(t, ix.Write(dir, "tags"))

	loaded, err := Read(dir, "tags", 2)
	require.NoError(t, err)
	require.Equal(t, ix.Terms(), loaded.Terms())

	hits, err := loaded.Search("green")
	require.NoError(t, err)
	require.Equal(t, []uint32{1}, hits.Positions())
}

func TestReadDetectsStaleRowCount(t *testing.T) {
	dir := t.TempDir()
	rows := sliceRows{rows: [][]byte{[]byte("a")}}
	ix, err := BuildFromTextColumn(rows, DefaultTokenizer{})
	require.NoError(t, err)
	require.NoError(t, ix.Write(dir, "c"))

	_, err = Read(dir, "c", 99)
	require.ErrorIs(t, err, ErrStale)
}

func TestDelimiterTokenizer(t *testing.T) {
	tok := DelimiterTokenizer{Delimiters: ",;"}
	require.Equal(t, []string{"a", "b", "c"}, tok.Tokenize([]byte("a,b;c")))
}

func TestAppendAddsNewRows(t *testing.T) {
	rows := sliceRows{rows: [][]byte{[]byte("red")}}
	ix, err := BuildFromTextColumn(rows, DefaultTokenizer{})
	require.NoError(t, err)

	more := sliceRows{rows: [][]byte{[]byte("blue")}}
	require.NoError(t, ix.Append(more, DefaultTokenizer{}, 1))

	hits, err := ix.Search("blue")
	require.NoError(t, err)
	require.Equal(t, []uint32{1}, hits.Positions())
	require.Equal(t, 2, ix.GetNRows())
}
