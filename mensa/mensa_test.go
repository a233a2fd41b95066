package mensa

import (
	"io"
	"sort"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Priyanshu23/bitdb/bindex"
	"github.com/Priyanshu23/bitdb/bord"
	"github.com/Priyanshu23/bitdb/internal/sentinel"
)

type fakePartition struct {
	names   []string
	types   map[string]sentinel.Type
	tbl     *bord.Table
	noIndex bool
	failSel bool
}

func (p *fakePartition) NRows() int { return p.tbl.NRows() }
func (p *fakePartition) ColumnNames() []string { return p.names }
func (p *fakePartition) ColumnType(name string) (sentinel.Type, bool) {
	typ, ok := p.types[name]
	return typ, ok
}
func (p *fakePartition) Select(sel []string, cond func(cur *bord.Cursor) bool) (*bord.Table, error) {
	if p.failSel {
		return nil, io.ErrUnexpectedEOF
	}
	return p.tbl.Select(sel, cond)
}
func (p *fakePartition) EstimateRange(col string, r bindex.Range) (int, int, bool) {
	if p.noIndex {
		return 0, 0, false
	}
	return p.NRows(), p.NRows(), true
}
func (p *fakePartition) Distribution(col string) ([]float64, []int, bool) {
	out, err := p.tbl.Select([]string{col}, nil)
	if err != nil {
		return nil, nil, false
	}
	counts := map[float64]int{}
	cur := bord.NewCursor(out)
	for row := 0; row < out.NRows(); row++ {
		cur.FetchAt(row)
		v, err := cur.GetColumnAsFloat64(col)
		if err != nil {
			return nil, nil, false
		}
		counts[v]++
	}
	var keys []float64
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Float64s(keys)
	cs := make([]int, len(keys))
	for i, k := range keys {
		cs[i] = counts[k]
	}
	return keys, cs, true
}

func partitionFromValues(t *testing.T, k []uint8, v []float64) *fakePartition {
	t.Helper()
	kc := bord.NewNumeric[uint8]("k", sentinel.UByte, k, nil)
	vc := bord.NewNumeric[float64]("v", sentinel.Double, v, nil)
	tbl, err := bord.NewTable([]string{"k", "v"}, []bord.Vector{kc, vc})
	require.NoError(t, err)
	return &fakePartition{
		names: []string{"k", "v"},
		types: map[string]sentinel.Type{"k": sentinel.UByte, "v": sentinel.Double},
		tbl:   tbl,
	}
}

func TestNRowsAndColumnNamesUnion(t *testing.T) {
	p1 := partitionFromValues(t, []uint8{1, 2}, []float64{1, 2})
	p2 := partitionFromValues(t, []uint8{3}, []float64{3})
	mt := NewTable(zerolog.Nop(), []Partition{p1, p2})
	require.Equal(t, 3, mt.NRows())
	require.Equal(t, []string{"k", "v"}, mt.ColumnNames())
}

func TestEstimateSumsPartitionsNoIndexUsesNRows(t *testing.T) {
	p1 := partitionFromValues(t, []uint8{1, 2}, []float64{1, 2})
	p2 := partitionFromValues(t, []uint8{3}, []float64{3})
	p2.noIndex = true
	mt := NewTable(zerolog.Nop(), []Partition{p1, p2})
	lo, hi := mt.Estimate("k", bindex.Range{})
	require.Equal(t, 2, lo) // p1 contributes (nrows,nrows)=2,2; p2 contributes (0,1)
	require.Equal(t, 3, hi)
}

func TestSelectMergesAcrossPartitionsAndCollectsWarnings(t *testing.T) {
	p1 := partitionFromValues(t, []uint8{1, 2}, []float64{1, 2})
	p2 := partitionFromValues(t, []uint8{3}, []float64{3})
	p2.failSel = true
	p3 := partitionFromValues(t, []uint8{4}, []float64{4})
	mt := NewTable(zerolog.Nop(), []Partition{p1, p2, p3})

	merged, warnings := mt.Select([]string{"k", "v"}, nil)
	require.Len(t, warnings, 1)
	require.Equal(t, 3, merged.NRows())
}

func TestGetHistogramMergesCounts(t *testing.T) {
	p1 := partitionFromValues(t, []uint8{1, 1, 2}, []float64{1, 1, 2})
	p2 := partitionFromValues(t, []uint8{2, 3}, []float64{2, 3})
	mt := NewTable(zerolog.Nop(), []Partition{p1, p2})

	keys, counts := mt.GetHistogram("v")
	require.Equal(t, []float64{1, 2, 3}, keys)
	require.Equal(t, []int{2, 2, 1}, counts)
}

func TestGetHistogram2D(t *testing.T) {
	p1 := partitionFromValues(t, []uint8{1, 2}, []float64{10, 20})
	mt := NewTable(zerolog.Nop(), []Partition{p1})

	h, err := mt.GetHistogram2D("k", "v", 2, 2)
	require.NoError(t, err)
	total := 0
	for _, row := range h.Counts {
		for _, c := range row {
			total += c
		}
	}
	require.Equal(t, 2, total)
}
