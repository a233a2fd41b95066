package engine

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Priyanshu23/bitdb/bindex"
	"github.com/Priyanshu23/bitdb/bord"
	"github.com/Priyanshu23/bitdb/config"
	"github.com/Priyanshu23/bitdb/internal/sentinel"
	"github.com/Priyanshu23/bitdb/keyword"
)

func writeInt32Col(t *testing.T, dir, name string, vals []int32) {
	t.Helper()
	buf := make([]byte, 0, len(vals)*4)
	for _, v := range vals {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(v))
		buf = append(buf, b...)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf, 0o644))
}

func newTestPartition(t *testing.T, vals []int32) *Partition {
	t.Helper()
	dir := t.TempDir()
	writeInt32Col(t, dir, "x", vals)
	return NewPartition("p", dir, []ColumnSpec{{Name: "x", Type: sentinel.Int}}, len(vals), config.PartitionConfig{}, zerolog.Nop())
}

func TestSelectMaterializesColumn(t *testing.T) {
	p := newTestPartition(t, []int32{10, 20, 30})
	tbl, err := p.Select([]string{"x"}, nil)
	require.NoError(t, err)
	require.Equal(t, 3, tbl.NRows())

	cur := bord.NewCursor(tbl)
	require.Equal(t, 0, cur.Fetch())
	v, err := cur.GetColumnAsInt64("x")
	require.NoError(t, err)
	require.Equal(t, int64(10), v)
}

func TestSelectAppliesCond(t *testing.T) {
	p := newTestPartition(t, []int32{1, 2, 3, 4})
	tbl, err := p.Select([]string{"x"}, func(cur *bord.Cursor) bool {
		v, _ := cur.GetColumnAsInt64("x")
		return v >= 3
	})
	require.NoError(t, err)
	require.Equal(t, 2, tbl.NRows())
}

func TestBuildIndexAndEstimateRange(t *testing.T) {
	p := newTestPartition(t, []int32{1, 2, 3, 4, 5})
	require.NoError(t, p.BuildIndex("x"))

	lo, hi, ok := p.EstimateRange("x", bindex.Range{HasLow: true, Low: 3, LowOp: bindex.OpGE})
	require.True(t, ok)
	require.LessOrEqual(t, lo, 3)
	require.GreaterOrEqual(t, hi, 3)
}

func TestEstimateRangeWithoutIndexIsNotOK(t *testing.T) {
	p := newTestPartition(t, []int32{1, 2, 3})
	_, _, ok := p.EstimateRange("x", bindex.Range{})
	require.False(t, ok)
}

func TestDoScanMatchesRawValues(t *testing.T) {
	p := newTestPartition(t, []int32{1, 5, 9, 2})
	candidates, err := p.GetNullMask()
	require.NoError(t, err)

	hits, err := p.DoScan("x", bindex.Range{HasLow: true, Low: 5, LowOp: bindex.OpGE}, candidates)
	require.NoError(t, err)
	require.Equal(t, 2, hits.Cnt())
	require.True(t, hits.Get(1))
	require.True(t, hits.Get(2))
}

func writeTextCol(t *testing.T, dir, name string, vals []string) {
	t.Helper()
	var data []byte
	offsets := []int64{0}
	for _, v := range vals {
		data = append(data, v...)
		data = append(data, 0)
		offsets = append(offsets, int64(len(data)))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	sp := make([]byte, 0, len(offsets)*8)
	for _, o := range offsets {
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, uint64(o))
		sp = append(sp, b...)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".sp"), sp, 0o644))
}

func TestBuildKeywordIndexAndSearch(t *testing.T) {
	dir := t.TempDir()
	writeTextCol(t, dir, "tags", []string{"red blue", "blue green"})
	p := NewPartition("p", dir, []ColumnSpec{{Name: "tags", Type: sentinel.Text}}, 2, config.PartitionConfig{}, zerolog.Nop())
	require.NoError(t, p.BuildKeywordIndex("tags", keyword.DefaultTokenizer{}))

	hits, err := p.SearchKeyword("tags", "blue")
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 1}, hits.Positions())

	// a fresh partition over the same directory loads the persisted index
	p2 := NewPartition("p", dir, []ColumnSpec{{Name: "tags", Type: sentinel.Text}}, 2, config.PartitionConfig{}, zerolog.Nop())
	hits, err = p2.SearchKeyword("tags", "green")
	require.NoError(t, err)
	require.Equal(t, []uint32{1}, hits.Positions())
}

func TestBuildIndexDisableOnFailureMarksNoIndex(t *testing.T) {
	dir := t.TempDir()
	// a Text column has no numeric representation, so bindex.Create fails;
	// disableIndexOnFailure turns that into a warning instead of an error.
	p := NewPartition("p", dir, []ColumnSpec{{Name: "name", Type: sentinel.Text}}, 5,
		config.PartitionConfig{Columns: map[string]config.ColumnConfig{"name": {DisableIndexOnFailure: true}}}, zerolog.Nop())
	require.NoError(t, p.BuildIndex("name"))
}

func TestBuildIndexFailsWithoutDisableOnFailure(t *testing.T) {
	dir := t.TempDir()
	p := NewPartition("p", dir, []ColumnSpec{{Name: "name", Type: sentinel.Text}}, 5, config.PartitionConfig{}, zerolog.Nop())
	require.Error(t, p.BuildIndex("name"))
}
