package bord

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Priyanshu23/bitdb/colval"
	"github.com/Priyanshu23/bitdb/internal/sentinel"
)

// Table is the in-memory result table: a row count plus a vector of
// type-tagged in-memory columns, column order preserved from construction
// or the most recent RenameColumns/Select.
type Table struct {
	names   []string
	byName  map[string]int
	cols    []Vector
}

// NewTable builds a Table from parallel name/column slices. All columns
// must report the same Len(); a length mismatch is a caller bug, not a
// runtime condition to recover from.
func NewTable(names []string, cols []Vector) (*Table, error) {
	if len(names) != len(cols) {
		return nil, fmt.Errorf("bord: %d names but %d columns", len(names), len(cols))
	}
	byName := make(map[string]int, len(names))
	n := -1
	for i, name := range names {
		if n == -1 {
			n = cols[i].Len()
		} else if cols[i].Len() != n {
			return nil, fmt.Errorf("bord: column %q has %d rows, want %d", name, cols[i].Len(), n)
		}
		byName[name] = i
	}
	return &Table{names: names, byName: byName, cols: cols}, nil
}

// NRows reports the table's row count (0 for a table with no columns).
func (t *Table) NRows() int {
	if len(t.cols) == 0 {
		return 0
	}
	return t.cols[0].Len()
}

// DumpNames returns the column names in display order.
func (t *Table) DumpNames() []string { return append([]string(nil), t.names...) }

// ColumnDesc describes one column for Describe.
type ColumnDesc struct {
	Name string
	Type sentinel.Type
}

// Describe reports each column's name and type tag, in display order.
func (t *Table) Describe() []ColumnDesc {
	out := make([]ColumnDesc, len(t.cols))
	for i, c := range t.cols {
		out[i] = ColumnDesc{Name: t.names[i], Type: c.Type()}
	}
	return out
}

func (t *Table) column(name string) (Vector, error) {
	i, ok := t.byName[name]
	if !ok {
		return nil, fmt.Errorf("bord: no such column %q", name)
	}
	return t.cols[i], nil
}

// Dump emits rows [lo, hi) as delimiter-separated text through a Cursor,
// one line per row, in column order.
func (t *Table) Dump(w io.Writer, lo, hi int, delim string) error {
	cur := NewCursor(t)
	if lo < 0 {
		lo = 0
	}
	if hi > t.NRows() {
		hi = t.NRows()
	}
	for row := lo; row < hi; row++ {
		if err := cur.fetch(row); err != nil {
			return err
		}
		fields := make([]string, len(t.cols))
		for i, c := range t.cols {
			fields[i] = c.StringAt(row)
		}
		if _, err := io.WriteString(w, strings.Join(fields, delim)+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// Select projects sel (a subset of column names, in the order given) over
// the rows for which cond(row) is true. cond receives a Cursor already
// positioned (via fetch) at the row under test.
func (t *Table) Select(sel []string, cond func(cur *Cursor) bool) (*Table, error) {
	idx := make([]int, len(sel))
	for i, name := range sel {
		j, ok := t.byName[name]
		if !ok {
			return nil, fmt.Errorf("bord: select: no such column %q", name)
		}
		idx[i] = j
	}

	var keep []int
	cur := NewCursor(t)
	if cond != nil {
		for row := 0; row < t.NRows(); row++ {
			if err := cur.fetch(row); err != nil {
				return nil, err
			}
			if cond(cur) {
				keep = append(keep, row)
			}
		}
	} else {
		keep = make([]int, t.NRows())
		for i := range keep {
			keep[i] = i
		}
	}

	perm := make([]uint32, len(keep))
	for i, r := range keep {
		perm[i] = uint32(r)
	}

	outCols := make([]Vector, len(sel))
	for i, j := range idx {
		c := t.cols[j].Clone()
		c.Reorder(perm)
		outCols[i] = c
	}
	return NewTable(append([]string(nil), sel...), outCols)
}

// Aggregation names one output column of a GroupBy: Column is the source
// column, Op its aggregator (colval.NIL for a bare passthrough of a key
// column), As the output name.
type Aggregation struct {
	Column string
	Op     colval.Aggregator
	As     string
}

// GroupBy is a four-step groupby: evaluate the key columns,
// sort the first key (recording segment boundaries), refine the segments
// with each subsequent key, then reduce every output column per its
// aggregator (key columns always reduce with NIL, i.e. "first value of the
// segment").
func (t *Table) GroupBy(keys []string, aggs []Aggregation) (*Table, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("bord: groupby requires at least one key")
	}
	work := make([]Vector, len(t.cols))
	for i, c := range t.cols {
		work[i] = c.Clone()
	}
	working, err := NewTable(append([]string(nil), t.names...), work)
	if err != nil {
		return nil, err
	}

	keyIdx := make([]int, len(keys))
	for i, k := range keys {
		j, ok := working.byName[k]
		if !ok {
			return nil, fmt.Errorf("bord: groupby: no such key column %q", k)
		}
		keyIdx[i] = j
	}

	// Sort by the first key across the whole table, then by each subsequent
	// key within the segments the previous keys established, refining the
	// boundary set after each pass. Every other column rides along as a
	// lockstep sibling so rows stay intact.
	n := working.NRows()
	starts := []int{0, n}
	for _, ki := range keyIdx {
		driver := working.cols[ki]
		siblings := make([]colval.Permuter, 0, len(working.cols)-1)
		for i, c := range working.cols {
			if i == ki {
				continue
			}
			col := c
			siblings = append(siblings, colval.PermuterFunc(func(a, b int) { col.Swap(a, b) }))
		}
		for s := 0; s+1 < len(starts); s++ {
			driver.Sort(starts[s], starts[s+1], siblings...)
		}
		starts = refineSegments(driver, starts)
	}

	outNames := make([]string, len(aggs))
	outCols := make([]Vector, len(aggs))
	for i, a := range aggs {
		src, ok := working.byName[a.Column]
		if !ok {
			return nil, fmt.Errorf("bord: groupby: no such column %q", a.Column)
		}
		op := a.Op
		isKey := false
		for _, ki := range keyIdx {
			if ki == src {
				isKey = true
				break
			}
		}
		if isKey {
			op = colval.NIL
		}
		name := a.As
		if name == "" {
			name = a.Column
		}
		outNames[i] = name
		outCols[i] = reduceVector(working.cols[src], starts, op)
	}
	return NewTable(outNames, outCols)
}

// OrderBy sorts every column in lockstep by the given key column order,
// in place.
func (t *Table) OrderBy(names []string) error {
	if len(names) == 0 {
		return nil
	}
	idx := make([]int, len(names))
	for i, name := range names {
		j, ok := t.byName[name]
		if !ok {
			return fmt.Errorf("bord: orderby: no such column %q", name)
		}
		idx[i] = j
	}
	n := t.NRows()
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		for _, j := range idx {
			c := t.cols[j]
			if c.Less(perm[a], perm[b]) {
				return true
			}
			if c.Less(perm[b], perm[a]) {
				return false
			}
		}
		return false
	})
	u32 := make([]uint32, n)
	for i, p := range perm {
		u32[i] = uint32(p)
	}
	for _, c := range t.cols {
		c.Reorder(u32)
	}
	return nil
}

// Reorder is an alias of OrderBy: it sorts in place and, because OrderBy
// always uses a stable comparator, additionally guarantees rows tying on
// every key in names retain their relative order.
func (t *Table) Reorder(names []string) error { return t.OrderBy(names) }

// Limit truncates every column to its first n rows.
func (t *Table) Limit(n int) {
	for _, c := range t.cols {
		c.Truncate(n, 0)
	}
}

// Append concatenates other's rows onto t in place, matching columns by
// name; a column present in one table but not the other is padded with
// its type sentinel for the missing side's row span.
func (t *Table) Append(other *Table) error {
	selfRows := t.NRows()
	otherRows := other.NRows()

	seen := make(map[string]bool, len(t.names))
	for _, name := range t.names {
		seen[name] = true
		src, err := other.column(name)
		if err != nil {
			dst, _ := t.column(name)
			dst.PadSentinel(otherRows)
			continue
		}
		dst, _ := t.column(name)
		if err := dst.AppendFrom(src); err != nil {
			return err
		}
	}
	for _, name := range other.names {
		if seen[name] {
			continue
		}
		src, _ := other.column(name)
		lead := src.Clone()
		lead.Truncate(0, 0)
		lead.PadSentinel(selfRows)
		if err := lead.AppendFrom(src); err != nil {
			return err
		}
		t.names = append(t.names, name)
		t.byName[name] = len(t.cols)
		t.cols = append(t.cols, lead)
	}
	return nil
}

// RenameColumns rebinds output names per mapping (old name -> new name);
// columns not mentioned keep their existing name.
func (t *Table) RenameColumns(mapping map[string]string) error {
	newNames := make([]string, len(t.names))
	newByName := make(map[string]int, len(t.names))
	for i, old := range t.names {
		name := old
		if renamed, ok := mapping[old]; ok {
			name = renamed
		}
		newNames[i] = name
		if _, dup := newByName[name]; dup {
			return fmt.Errorf("bord: renameColumns: duplicate output name %q", name)
		}
		newByName[name] = i
	}
	t.names = newNames
	t.byName = newByName
	return nil
}

// refineSegments subdivides each existing segment wherever v's value
// changes, merging the new boundaries with the existing ones.
func refineSegments(v Vector, starts []int) []int {
	seen := make(map[int]bool, len(starts))
	var out []int
	for s := 0; s < len(starts)-1; s++ {
		lo, hi := starts[s], starts[s+1]
		if !seen[lo] {
			out = append(out, lo)
			seen[lo] = true
		}
		for i := lo + 1; i < hi; i++ {
			if v.Less(i-1, i) || v.Less(i, i-1) {
				if !seen[i] {
					out = append(out, i)
					seen[i] = true
				}
			}
		}
	}
	last := starts[len(starts)-1]
	if !seen[last] {
		out = append(out, last)
	}
	sort.Ints(out)
	return out
}

// reduceVector collapses v's segments per op, returning a fresh Vector of
// the same element type holding one value per segment.
func reduceVector(v Vector, starts []int, op colval.Aggregator) Vector {
	return v.ReduceOp(starts, op)
}
