// Package mensa implements the multi-partition table: a list of
// partitions plus an aggregated schema, fanning every operation out per
// partition and combining the results. A single partition failing turns
// into a logged warning rather than aborting the whole query; only an
// all-partition failure surfaces as an empty result.
package mensa

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/Priyanshu23/bitdb/bindex"
	"github.com/Priyanshu23/bitdb/bord"
	"github.com/Priyanshu23/bitdb/internal/sentinel"
)

// Partition is the minimal contract mensa needs from one partition: its
// schema, a query entry point returning an in-memory bord.Table, a range
// estimate for cost-aware planning, and its per-column value distribution
// for histograms.
type Partition interface {
	NRows() int
	ColumnNames() []string
	ColumnType(name string) (sentinel.Type, bool)
	Select(sel []string, cond func(cur *bord.Cursor) bool) (*bord.Table, error)
	EstimateRange(col string, r bindex.Range) (nmin, nmax int, ok bool)
	Distribution(col string) (keys []float64, counts []int, ok bool)
}

// Table is mensa's multi-partition view.
type Table struct {
	log        zerolog.Logger
	partitions []Partition
}

// NewTable builds a multi-partition view over partitions.
func NewTable(log zerolog.Logger, partitions []Partition) *Table {
	return &Table{log: log, partitions: partitions}
}

// NRows sums every partition's row count.
func (t *Table) NRows() int {
	n := 0
	for _, p := range t.partitions {
		n += p.NRows()
	}
	return n
}

// ColumnNames returns the union of every partition's column names, in
// first-seen order.
func (t *Table) ColumnNames() []string {
	seen := map[string]bool{}
	var names []string
	for _, p := range t.partitions {
		for _, n := range p.ColumnNames() {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	return names
}

// ColumnTypes returns the first-seen type for every column in the union
// schema; a later partition disagreeing on a column's type produces a
// warning log line and the first-seen type wins.
func (t *Table) ColumnTypes() map[string]sentinel.Type {
	types := map[string]sentinel.Type{}
	for _, p := range t.partitions {
		for _, n := range p.ColumnNames() {
			typ, ok := p.ColumnType(n)
			if !ok {
				continue
			}
			if existing, seen := types[n]; !seen {
				types[n] = typ
			} else if existing != typ {
				t.log.Warn().Str("column", n).Str("first_seen", existing.String()).
					Str("conflicting", typ.String()).Msg("mensa: column type conflict across partitions, keeping first-seen type")
			}
		}
	}
	return types
}

// Estimate sums each partition's index-backed range estimate for col; a
// partition with no usable index contributes (0, its own row count).
func (t *Table) Estimate(col string, r bindex.Range) (nmin, nmax int) {
	for _, p := range t.partitions {
		lo, hi, ok := p.EstimateRange(col, r)
		if !ok {
			hi = p.NRows()
			lo = 0
		}
		nmin += lo
		nmax += hi
	}
	return nmin, nmax
}

// Select runs sel/cond against every partition and appends the per-
// partition results into one bord.Table. A partition whose Select fails
// does not abort the overall query; its error is collected as a warning,
// logged, and returned alongside the (possibly partial) merged result.
func (t *Table) Select(sel []string, cond func(cur *bord.Cursor) bool) (*bord.Table, []error) {
	var merged *bord.Table
	var warnings []error
	for i, p := range t.partitions {
		tbl, err := p.Select(sel, cond)
		if err != nil {
			t.log.Warn().Err(err).Int("partition", i).Msg("mensa: partition select failed, skipping")
			warnings = append(warnings, fmt.Errorf("partition %d: %w", i, err))
			continue
		}
		if merged == nil {
			merged = tbl
			continue
		}
		if err := merged.Append(tbl); err != nil {
			t.log.Warn().Err(err).Int("partition", i).Msg("mensa: partition result could not be appended, skipping")
			warnings = append(warnings, fmt.Errorf("partition %d: append: %w", i, err))
		}
	}
	if merged == nil {
		merged, _ = bord.NewTable(nil, nil)
	}
	return merged, warnings
}

// GetColumnAsFloat64 concatenates the named column's values across every
// partition in order, aborting early if the running row count would
// overflow the offset arithmetic.
func (t *Table) GetColumnAsFloat64(name string) ([]float64, error) {
	var out []float64
	total := 0
	for i, p := range t.partitions {
		n := p.NRows()
		if total > math.MaxInt32-n {
			return nil, fmt.Errorf("mensa: %s: row count overflow while concatenating partition %d", name, i)
		}
		total += n

		tbl, err := p.Select([]string{name}, nil)
		if err != nil {
			return nil, fmt.Errorf("mensa: %s: partition %d: %w", name, i, err)
		}
		cur := bord.NewCursor(tbl)
		for row := 0; row < tbl.NRows(); row++ {
			if cur.FetchAt(row) != 0 {
				break
			}
			v, err := cur.GetColumnAsFloat64(name)
			if err != nil {
				return nil, fmt.Errorf("mensa: %s: partition %d row %d: %w", name, i, row, err)
			}
			out = append(out, v)
		}
	}
	return out, nil
}

// GetHistogram merges each partition's per-column distribution (as
// surfaced by Partition.Distribution) by summing counts for equal keys.
func (t *Table) GetHistogram(col string) (keys []float64, counts []int) {
	agg := map[float64]int{}
	var order []float64
	for _, p := range t.partitions {
		ks, cs, ok := p.Distribution(col)
		if !ok {
			continue
		}
		for i, k := range ks {
			if _, seen := agg[k]; !seen {
				order = append(order, k)
			}
			agg[k] += cs[i]
		}
	}
	sort.Float64s(order)
	keys = order
	counts = make([]int, len(order))
	for i, k := range order {
		counts[i] = agg[k]
	}
	return keys, counts
}
