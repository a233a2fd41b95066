package bord

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Priyanshu23/bitdb/colval"
	"github.com/Priyanshu23/bitdb/internal/sentinel"
)

func sampleTable(t *testing.T) *Table {
	t.Helper()
	k := NewNumeric[uint8]("k", sentinel.UByte, []uint8{1, 2, 1, 2, 3, 1}, []int{0, 1, 2, 3, 4, 5})
	v := NewNumeric[float64]("v", sentinel.Double, []float64{1, 2, 3, 4, 5, 6}, nil)
	tbl, err := NewTable([]string{"k", "v"}, []Vector{k, v})
	require.NoError(t, err)
	return tbl
}

func TestDescribeAndDumpNames(t *testing.T) {
	tbl := sampleTable(t)
	require.Equal(t, []string{"k", "v"}, tbl.DumpNames())
	desc := tbl.Describe()
	require.Equal(t, "k", desc[0].Name)
	require.Equal(t, sentinel.UByte, desc[0].Type)
	require.Equal(t, sentinel.Double, desc[1].Type)
}

func TestDump(t *testing.T) {
	tbl := sampleTable(t)
	var buf bytes.Buffer
	require.NoError(t, tbl.Dump(&buf, 0, tbl.NRows(), ","))
	lines := buf.String()
	require.Contains(t, lines, "1,1\n")
	require.Contains(t, lines, "3,5\n")
}

func TestSelectFiltersAndProjects(t *testing.T) {
	tbl := sampleTable(t)
	out, err := tbl.Select([]string{"v"}, func(cur *Cursor) bool {
		kv, err := cur.GetColumnAsUint64("k")
		require.NoError(t, err)
		return kv == 1
	})
	require.NoError(t, err)
	require.Equal(t, 3, out.NRows())
	vv, ok := out.cols[0].(*numVector[float64])
	require.True(t, ok)
	require.Equal(t, []float64{1, 3, 6}, vv.col.Values())
}

func TestGroupBySumCount(t *testing.T) {
	tbl := sampleTable(t)
	out, err := tbl.GroupBy([]string{"k"}, []Aggregation{
		{Column: "k", As: "k"},
		{Column: "v", Op: colval.SUM, As: "sum_v"},
		{Column: "v", Op: colval.CNT, As: "cnt"},
	})
	require.NoError(t, err)
	require.Equal(t, 3, out.NRows())

	kv := out.cols[0].(*numVector[uint8])
	require.Equal(t, []uint8{1, 2, 3}, kv.col.Values())

	sumv := out.cols[1].(*numVector[float64])
	require.Equal(t, []float64{10, 6, 5}, sumv.col.Values())

	cntv := out.cols[2].(*numVector[float64])
	require.Equal(t, []float64{3, 2, 1}, cntv.col.Values())
}

func TestGroupByTwoKeysSortsWithinSegments(t *testing.T) {
	a := NewNumeric[uint8]("a", sentinel.UByte, []uint8{1, 1, 2, 2, 1}, nil)
	b := NewNumeric[uint8]("b", sentinel.UByte, []uint8{2, 1, 1, 1, 2}, nil)
	v := NewNumeric[float64]("v", sentinel.Double, []float64{10, 20, 30, 40, 50}, nil)
	tbl, err := NewTable([]string{"a", "b", "v"}, []Vector{a, b, v})
	require.NoError(t, err)

	out, err := tbl.GroupBy([]string{"a", "b"}, []Aggregation{
		{Column: "a"},
		{Column: "b"},
		{Column: "v", Op: colval.SUM, As: "sum_v"},
	})
	require.NoError(t, err)
	require.Equal(t, 3, out.NRows())

	av := out.cols[0].(*numVector[uint8])
	bv := out.cols[1].(*numVector[uint8])
	sv := out.cols[2].(*numVector[float64])
	require.Equal(t, []uint8{1, 1, 2}, av.col.Values())
	require.Equal(t, []uint8{1, 2, 1}, bv.col.Values())
	require.Equal(t, []float64{20, 60, 70}, sv.col.Values())
}

func TestOrderByStable(t *testing.T) {
	tbl := sampleTable(t)
	require.NoError(t, tbl.OrderBy([]string{"k"}))
	kv := tbl.cols[0].(*numVector[uint8])
	require.Equal(t, []uint8{1, 1, 1, 2, 2, 3}, kv.col.Values())
	require.Equal(t, []int{0, 2, 5, 1, 3, 4}, kv.col.RowIDs())
}

func TestLimitTruncatesEveryColumn(t *testing.T) {
	tbl := sampleTable(t)
	tbl.Limit(2)
	require.Equal(t, 2, tbl.NRows())
}

func TestAppendPadsMissingColumns(t *testing.T) {
	a := sampleTable(t)
	w := NewNumeric[int32]("w", sentinel.Int, []int32{100}, nil)
	bTab, err := NewTable([]string{"k", "w"}, []Vector{
		NewNumeric[uint8]("k", sentinel.UByte, []uint8{9}, nil),
		w,
	})
	require.NoError(t, err)

	require.NoError(t, a.Append(bTab))
	require.Equal(t, 7, a.NRows())

	wCol, ok := a.cols[a.byName["w"]].(*numVector[int32])
	require.True(t, ok)
	vals := wCol.col.Values()
	require.Len(t, vals, 7)
	require.Equal(t, sentinel.SentinelInt, vals[0])
	require.Equal(t, int32(100), vals[6])
}

func TestRenameColumns(t *testing.T) {
	tbl := sampleTable(t)
	require.NoError(t, tbl.RenameColumns(map[string]string{"v": "value"}))
	require.Equal(t, []string{"k", "value"}, tbl.DumpNames())
}

func TestCursorFetchEOF(t *testing.T) {
	tbl := sampleTable(t)
	cur := NewCursor(tbl)
	for i := 0; i < tbl.NRows(); i++ {
		require.Equal(t, 0, cur.Fetch())
	}
	require.Equal(t, -1, cur.Fetch())
}
