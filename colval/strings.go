package colval

import (
	"sort"
	"strconv"
)

// StringCol is identical in shape to Col[T] but ordered with string
// comparison. Arithmetic aggregators (SUM/AVG/VAR*/STD*) are unsupported
// here and behave as NIL.
type StringCol struct {
	values []string
	rowIDs []int
}

func NewStringCol(values []string, rowIDs []int) *StringCol {
	return &StringCol{values: values, rowIDs: rowIDs}
}

func (c *StringCol) Len() int         { return len(c.values) }
func (c *StringCol) Values() []string { return c.values }
func (c *StringCol) RowIDs() []int    { return c.rowIDs }
func (c *StringCol) At(i int) string  { return c.values[i] }

func (c *StringCol) swap(i, j int) {
	c.values[i], c.values[j] = c.values[j], c.values[i]
	if c.rowIDs != nil {
		c.rowIDs[i], c.rowIDs[j] = c.rowIDs[j], c.rowIDs[i]
	}
}

// Swap exports the exchange as a colval.Permuter.
func (c *StringCol) Swap(i, j int) { c.swap(i, j) }

// Less reports whether values[i] < values[j] by string comparison.
func (c *StringCol) Less(i, j int) bool { return c.values[i] < c.values[j] }

// Sort orders [begin, end) by string comparison, swapping siblings in
// lockstep. Ordering is computed via a stable index sort first, then
// realized on values/siblings as explicit pairwise swaps (via permutation
// cycles) so every companion array sees the same exchanges.
func (c *StringCol) Sort(begin, end int, siblings ...Permuter) {
	n := end - begin
	perm := make([]int, n) // perm[i] = index (relative to begin) that should end up at position i
	for i := range perm {
		perm[i] = i
	}
	v := c.values
	sort.SliceStable(perm, func(i, j int) bool {
		return v[begin+perm[i]] < v[begin+perm[j]]
	})

	swap := func(i, j int) {
		c.swap(i, j)
		for _, s := range siblings {
			s.Swap(i, j)
		}
	}
	applyPermutationSwaps(begin, perm, swap)
}

// applyPermutationSwaps realizes "result[i] = original[perm[i]]" (relative
// to begin) via cycle decomposition, invoking swap(begin+i, begin+j) for
// each exchange needed, so callers needing a swap callback (rather than a
// full re-slice) can keep companions aligned.
func applyPermutationSwaps(begin int, perm []int, swap func(i, j int)) {
	n := len(perm)
	// cur[v] = the relative index currently holding original element v.
	cur := make([]int, n)
	for i := range cur {
		cur[i] = i
	}
	// inv[i] = which original element currently sits at relative index i.
	inv := make([]int, n)
	copy(inv, cur)

	for i := 0; i < n; i++ {
		want := perm[i]
		from := cur[want]
		if from == i {
			continue
		}
		swap(begin+i, begin+from)
		moved := inv[i]
		inv[i], inv[from] = inv[from], inv[i]
		cur[moved], cur[want] = from, i
	}
}

// Segment produces boundary offsets where the (sorted) value changes.
func (c *StringCol) Segment(prevStarts []int) []int {
	n := len(c.values)
	if n == 0 {
		return []int{0}
	}
	if prevStarts == nil {
		prevStarts = []int{0, n}
	}
	var starts []int
	for s := 0; s < len(prevStarts)-1; s++ {
		lo, hi := prevStarts[s], prevStarts[s+1]
		starts = append(starts, lo)
		for i := lo + 1; i < hi; i++ {
			if c.values[i] != c.values[i-1] {
				starts = append(starts, i)
			}
		}
	}
	starts = append(starts, n)
	return dedupSorted(starts)
}

// ReduceOp collapses each segment: only NIL, CNT, MIN, MAX, DISTINCT, and
// MEDIAN are meaningful for strings; any arithmetic aggregator behaves as
// NIL.
func (c *StringCol) ReduceOp(starts []int, op Aggregator) []string {
	out := make([]string, 0, len(starts)-1)
	for i := 0; i+1 < len(starts); i++ {
		out = append(out, c.reduceSegment(starts[i], starts[i+1], op))
	}
	return out
}

func (c *StringCol) reduceSegment(lo, hi int, op Aggregator) string {
	seg := c.values[lo:hi]
	switch op {
	case CNT:
		return strconv.Itoa(hi - lo)
	case MIN:
		m := seg[0]
		for _, v := range seg[1:] {
			if v < m {
				m = v
			}
		}
		return m
	case MAX:
		m := seg[0]
		for _, v := range seg[1:] {
			if v > m {
				m = v
			}
		}
		return m
	case DISTINCT:
		sorted := append([]string(nil), seg...)
		sort.Strings(sorted)
		n := 0
		for i, v := range sorted {
			if i == 0 || v != sorted[i-1] {
				n++
			}
		}
		return strconv.Itoa(n)
	case MEDIAN:
		sorted := append([]string(nil), seg...)
		sort.Strings(sorted)
		n := len(sorted)
		if n%2 == 1 {
			return sorted[n/2]
		}
		// upper of the two central elements: strings have no average.
		return sorted[n/2]
	default: // NIL and any arithmetic aggregator
		return seg[0]
	}
}

// Reorder applies perm: result[i] = values[perm[i]].
func (c *StringCol) Reorder(perm []uint32) {
	newValues := make([]string, len(perm))
	var newRowIDs []int
	if c.rowIDs != nil {
		newRowIDs = make([]int, len(perm))
	}
	for i, p := range perm {
		newValues[i] = c.values[p]
		if newRowIDs != nil {
			newRowIDs[i] = c.rowIDs[p]
		}
	}
	c.values = newValues
	c.rowIDs = newRowIDs
}

// Truncate retains the first keep elements, optionally skipping start.
func (c *StringCol) Truncate(keep int, start int) {
	if start+keep > len(c.values) {
		keep = len(c.values) - start
	}
	if keep < 0 {
		keep = 0
	}
	c.values = append([]string(nil), c.values[start:start+keep]...)
	if c.rowIDs != nil {
		c.rowIDs = append([]int(nil), c.rowIDs[start:start+keep]...)
	}
}
