package colval

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestGroupBySumCount walks the full sort/segment/reduce sequence behind
// SELECT k, SUM(v), COUNT(*) GROUP BY k.
func TestGroupBySumCount(t *testing.T) {
	k := New([]uint8{1, 2, 1, 2, 3, 1}, []int{0, 1, 2, 3, 4, 5})
	v := New([]float64{1, 2, 3, 4, 5, 6}, nil)

	// k carries row ids as its own companion sibling; v moves in lockstep
	// via a Permuter closure over its swap method.
	k.Sort(0, k.Len(), PermuterFunc(func(i, j int) { v.swap(i, j) }))

	require.Equal(t, []uint8{1, 1, 1, 2, 2, 3}, k.Values())
	require.Equal(t, []int{0, 2, 5, 1, 3, 4}, k.RowIDs())

	starts := k.Segment(nil)
	require.Equal(t, []int{0, 3, 5, 6}, starts)

	sums := v.ReduceOp(starts, SUM)
	require.Equal(t, []float64{10, 6, 5}, sums)

	counts := v.ReduceOp(starts, CNT)
	require.Equal(t, []float64{3, 2, 1}, counts)

	keys := k.Reduce(starts)
	require.Equal(t, []uint8{1, 2, 3}, keys)
}

func TestReduceAvgMinMax(t *testing.T) {
	c := New([]int32{1, 2, 3, 10, 20}, nil)
	starts := []int{0, 3, 5}
	require.Equal(t, []int32{2, 15}, c.ReduceOp(starts, AVG))
	require.Equal(t, []int32{1, 10}, c.ReduceOp(starts, MIN))
	require.Equal(t, []int32{3, 20}, c.ReduceOp(starts, MAX))
}

func TestReduceVarianceAndStd(t *testing.T) {
	c := New([]float64{2, 4, 4, 4, 5, 5, 7, 9}, nil)
	starts := []int{0, 8}
	pop := c.ReduceOp(starts, VARPOP)
	require.InDelta(t, 4.0, pop[0], 1e-9)
	std := c.ReduceOp(starts, STDPOP)
	require.InDelta(t, 2.0, std[0], 1e-9)
}

func TestMedianOddAndEven(t *testing.T) {
	odd := New([]int32{5, 1, 3}, nil)
	require.Equal(t, []int32{3}, odd.ReduceOp([]int{0, 3}, MEDIAN))

	even := New([]int32{1, 2, 3, 4}, nil)
	require.Equal(t, []int32{2}, even.ReduceOp([]int{0, 4}, MEDIAN)) // (2+3)/2 truncated to int32
}

func TestTopkBottomkWithTies(t *testing.T) {
	c := New([]int32{5, 1, 5, 3, 5, 2}, nil)
	top := c.Topk(2)
	require.ElementsMatch(t, []int32{5, 5, 5}, top) // ties at the boundary all included

	bottom := c.Bottomk(2)
	require.ElementsMatch(t, []int32{1, 2}, bottom)
}

func TestSortHandlesLargeRunsAboveCutoff(t *testing.T) {
	n := 200
	vals := make([]int32, n)
	for i := range vals {
		vals[i] = int32((i*37 + 11) % n)
	}
	c := New(vals, nil)
	c.Sort(0, n)
	for i := 1; i < n; i++ {
		require.LessOrEqual(t, c.Values()[i-1], c.Values()[i])
	}
}

func TestTruncate(t *testing.T) {
	c := New([]int32{1, 2, 3, 4, 5}, []int{0, 1, 2, 3, 4})
	c.Truncate(2, 1)
	require.Equal(t, []int32{2, 3}, c.Values())
	require.Equal(t, []int{1, 2}, c.RowIDs())
}

func TestStringColSortSegmentReduce(t *testing.T) {
	s := NewStringCol([]string{"b", "a", "a", "c"}, []int{0, 1, 2, 3})
	s.Sort(0, s.Len())
	require.Equal(t, []string{"a", "a", "b", "c"}, s.Values())

	starts := s.Segment(nil)
	require.Equal(t, []int{0, 2, 3, 4}, starts)

	require.Equal(t, []string{"a", "b", "c"}, s.ReduceOp(starts, MIN))
	require.Equal(t, []string{"2", "1", "1"}, s.ReduceOp(starts, CNT))
}
