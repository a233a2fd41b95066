// Package engine owns the ambient wiring around the core packages: Engine
// holds a config.Config and a zerolog.Logger and binds one Partition per
// on-disk partition directory, threading both through every constructor
// so no package reads global state at call sites.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Priyanshu23/bitdb/bindex"
	"github.com/Priyanshu23/bitdb/bitmap"
	"github.com/Priyanshu23/bitdb/bord"
	"github.com/Priyanshu23/bitdb/column"
	"github.com/Priyanshu23/bitdb/config"
	"github.com/Priyanshu23/bitdb/internal/sentinel"
	"github.com/Priyanshu23/bitdb/keyword"
	"github.com/Priyanshu23/bitdb/predicate"
	"github.com/Priyanshu23/bitdb/roster"
	"github.com/Priyanshu23/bitdb/typedarray"
)

// ColumnSpec names one column of a partition's schema: its name and
// element type, the minimum column.New needs and what the on-disk file
// layout is keyed by.
type ColumnSpec struct {
	Name string
	Type sentinel.Type
}

// Partition is one on-disk partition directory: a fixed row count and
// a set of typed columns sharing that directory, implementing both
// column.Partition (what a Column needs from its owner) and
// mensa.Partition (what the multi-partition view needs from a member).
type Partition struct {
	name  string
	dir   string
	nrows int
	cfg   config.PartitionConfig
	log   zerolog.Logger

	mu      sync.RWMutex
	columns map[string]*column.Column
	rosters map[string]*roster.Roster
	kwIndex map[string]*keyword.Index
}

// NewPartition builds a Partition bound to dir, with one column.Column per
// entry in specs, wiring in disableIndexOnFailure per-column from cfg.
func NewPartition(name, dir string, specs []ColumnSpec, nrows int, cfg config.PartitionConfig, log zerolog.Logger) *Partition {
	p := &Partition{
		name:    name,
		dir:     dir,
		nrows:   nrows,
		cfg:     cfg,
		log:     log.With().Str("partition", name).Logger(),
		columns: make(map[string]*column.Column, len(specs)),
		rosters: map[string]*roster.Roster{},
		kwIndex: map[string]*keyword.Index{},
	}
	for _, s := range specs {
		p.columns[s.Name] = column.New(s.Name, "", s.Type, p)
	}
	return p
}

func (p *Partition) NRows() int             { return p.nrows }
func (p *Partition) CurrentDataDir() string { return p.dir }

// GetColumn satisfies column.Partition's sibling lookup.
func (p *Partition) GetColumn(name string) (*column.Column, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.columns[name]
	return c, ok
}

// GetNullMask returns the partition-level validity mask. bitdb tracks
// validity per column, not per partition, so every row is partition-valid;
// callers combine this with a column's own null mask via And.
func (p *Partition) GetNullMask() (*bitmap.Bitmap, error) {
	return bitmap.Full(p.nrows), nil
}

// DoScan evaluates r directly against col's raw values, restricted to
// candidates, the scan-refinement callback column.EvaluateRange calls when
// the index narrows but does not decide a range.
func (p *Partition) DoScan(col string, r bindex.Range, candidates *bitmap.Bitmap) (*bitmap.Bitmap, error) {
	c, ok := p.GetColumn(col)
	if !ok {
		return nil, fmt.Errorf("engine: scan: unknown column %q", col)
	}
	hits := bitmap.New(candidates.Size())
	err := forEachCandidate(c, candidates, func(row int, v float64) {
		if inRange(v, r) {
			hits.Set(row)
		}
	})
	return hits, err
}

func inRange(v float64, r bindex.Range) bool {
	if r.HasLow {
		if r.LowOp == bindex.OpGT {
			if !(v > r.Low) {
				return false
			}
		} else if !(v >= r.Low) {
			return false
		}
	}
	if r.HasHigh {
		if r.HighOp == bindex.OpLT {
			if !(v < r.High) {
				return false
			}
		} else if !(v <= r.High) {
			return false
		}
	}
	return true
}

// forEachCandidate reads col's raw value file and invokes f for every set
// bit of candidates, widened to float64.
func forEachCandidate(c *column.Column, candidates *bitmap.Bitmap, f func(row int, v float64)) error {
	var read func(int) (float64, bool)
	switch c.Type {
	case sentinel.Byte:
		read = numericReader[int8](c)
	case sentinel.UByte:
		read = numericReader[uint8](c)
	case sentinel.Short:
		read = numericReader[int16](c)
	case sentinel.UShort:
		read = numericReader[uint16](c)
	case sentinel.Int, sentinel.Category:
		read = numericReader[int32](c)
	case sentinel.UInt:
		read = numericReader[uint32](c)
	case sentinel.Long:
		read = numericReader[int64](c)
	case sentinel.ULong:
		read = numericReader[uint64](c)
	case sentinel.Float:
		read = numericReader[float32](c)
	case sentinel.Double:
		read = numericReader[float64](c)
	default:
		return fmt.Errorf("%w: %s has no numeric scan representation", column.ErrTypeMismatch, c.Name)
	}

	candidates.IndexSet(func(run bitmap.Run) bool {
		for row := run.Begin; row < run.End; row++ {
			v, ok := read(row)
			if !ok {
				continue
			}
			f(row, v)
		}
		return true
	})
	return nil
}

// numericReader reads col's raw data file once and returns a closure
// reading row i widened to float64.
func numericReader[T typedarray.Numeric](c *column.Column) func(int) (float64, bool) {
	arr, err := typedarray.ReadFile[T](c.DataFileName())
	if err != nil {
		return func(int) (float64, bool) { return 0, false }
	}
	return func(i int) (float64, bool) {
		if i < 0 || i >= arr.Len() {
			return 0, false
		}
		return float64(arr.At(i)), true
	}
}

// EstimateRange satisfies mensa.Partition, driving the predicate package's
// EvaluateRange-adjacent index estimate without a full scan refinement.
func (p *Partition) EstimateRange(col string, r bindex.Range) (nmin, nmax int, ok bool) {
	c, found := p.GetColumn(col)
	if !found {
		return 0, 0, false
	}
	g := c.IndexHandle().Borrow()
	if g == nil {
		return 0, 0, false
	}
	defer g.Release()
	idx := g.Index()
	if idx == nil {
		return 0, 0, false
	}
	low, high, err := idx.Estimate(r)
	if err != nil {
		return 0, 0, false
	}
	return low.Cnt(), high.Cnt(), true
}

// Distribution satisfies mensa.Partition, surfacing a column's index-side
// histogram.
func (p *Partition) Distribution(col string) (keys []float64, counts []int, ok bool) {
	c, found := p.GetColumn(col)
	if !found {
		return nil, nil, false
	}
	g := c.IndexHandle().Borrow()
	if g == nil {
		return nil, nil, false
	}
	defer g.Release()
	idx := g.Index()
	if idx == nil {
		return nil, nil, false
	}
	keys, counts = idx.GetDistribution()
	return keys, counts, true
}

// ColumnNames returns the partition's column names. The order is that of
// map iteration, so it is not defined and need not match the specs order.
func (p *Partition) ColumnNames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.columns))
	for name := range p.columns {
		names = append(names, name)
	}
	return names
}

// ColumnType satisfies mensa.Partition's schema lookup.
func (p *Partition) ColumnType(name string) (sentinel.Type, bool) {
	c, ok := p.GetColumn(name)
	if !ok {
		return sentinel.Unknown, false
	}
	return c.Type, true
}

// Select materializes sel's columns for every row into a bord.Table, then
// filters/projects through bord.Table.Select, the cursor+cond contract
// mensa.Partition requires.
func (p *Partition) Select(sel []string, cond func(cur *bord.Cursor) bool) (*bord.Table, error) {
	if len(sel) == 0 {
		sel = p.ColumnNames()
	}
	vecs := make([]bord.Vector, 0, len(sel))
	for _, name := range sel {
		c, ok := p.GetColumn(name)
		if !ok {
			return nil, fmt.Errorf("engine: select: unknown column %q", name)
		}
		v, err := materializeVector(c)
		if err != nil {
			return nil, fmt.Errorf("engine: select: %s: %w", name, err)
		}
		vecs = append(vecs, v)
	}
	full, err := bord.NewTable(sel, vecs)
	if err != nil {
		return nil, err
	}
	return full.Select(sel, cond)
}

// materializeVector reads col's full column into a bord.Vector, the
// bridge between column's on-disk selectValues family and bord's
// in-memory result vectors. It reads under an all-rows mask rather than
// the column's null mask, so sibling columns with different null counts
// stay row-aligned in the resulting table; null rows surface their
// on-disk sentinel value.
func materializeVector(c *column.Column) (bord.Vector, error) {
	mask := bitmap.Full(c.NRows())
	switch c.Type {
	case sentinel.Byte:
		return materializeNumeric(c, mask, c.SelectBytes)
	case sentinel.UByte:
		return materializeNumeric(c, mask, c.SelectUBytes)
	case sentinel.Short:
		return materializeNumeric(c, mask, func(m *bitmap.Bitmap) ([]int16, error) {
			return column.SelectValues[int16](c, m)
		})
	case sentinel.UShort:
		return materializeNumeric(c, mask, func(m *bitmap.Bitmap) ([]uint16, error) {
			return column.SelectValues[uint16](c, m)
		})
	case sentinel.Int, sentinel.Category:
		return materializeNumeric(c, mask, c.SelectInts)
	case sentinel.UInt:
		return materializeNumeric(c, mask, c.SelectUInts)
	case sentinel.Long:
		return materializeNumeric(c, mask, c.SelectLongs)
	case sentinel.ULong:
		return materializeNumeric(c, mask, func(m *bitmap.Bitmap) ([]uint64, error) {
			return column.SelectValues[uint64](c, m)
		})
	case sentinel.Float:
		return materializeNumeric(c, mask, c.SelectFloats)
	case sentinel.Double:
		return materializeNumeric(c, mask, c.SelectDoubles)
	case sentinel.Text:
		vals, err := c.SelectStrings(mask)
		if err != nil {
			return nil, err
		}
		return bord.NewString(c.Name, vals, nil), nil
	default:
		return nil, fmt.Errorf("%w: %s: unsupported type %s", column.ErrTypeMismatch, c.Name, c.Type)
	}
}

func materializeNumeric[T typedarray.Numeric](c *column.Column, mask *bitmap.Bitmap, sel func(*bitmap.Bitmap) ([]T, error)) (bord.Vector, error) {
	vals, err := sel(mask)
	if err != nil {
		return nil, err
	}
	return bord.NewNumeric[T](c.Name, c.Type, vals, nil), nil
}

// BuildIndex builds and persists a fresh index for col, marking it "no
// index" instead of retrying when the column's disableIndexOnFailure
// setting says so.
func (p *Partition) BuildIndex(col string) error {
	c, ok := p.GetColumn(col)
	if !ok {
		return fmt.Errorf("engine: build-index: unknown column %q", col)
	}
	if err := c.BuildIndex(); err != nil {
		if p.cfg.Columns[col].DisableIndexOnFailure {
			p.log.Warn().Err(err).Str("column", col).Msg("engine: index build failed, marking no-index")
			return nil
		}
		return fmt.Errorf("engine: build-index %s: %w", col, err)
	}
	if err := c.WriteIndex(); err != nil {
		return fmt.Errorf("engine: write-index %s: %w", col, err)
	}
	p.log.Info().Str("column", col).Msg("engine: index built")
	return nil
}

// BuildRoster builds an external-memory sorted permutation over col,
// scratch files living under cfg's cacheDirectory when set.
func (p *Partition) BuildRoster(col string, budget int) error {
	c, ok := p.GetColumn(col)
	if !ok {
		return fmt.Errorf("engine: build-roster: unknown column %q", col)
	}
	// Read under an all-rows mask so the permutation indexes rows, not
	// positions within the non-null subset; Locate's hits must be row ids.
	vals, err := c.SelectDoubles(bitmap.Full(p.nrows))
	if err != nil {
		return fmt.Errorf("engine: build-roster %s: %w", col, err)
	}
	dir := p.dir
	if p.cfg.CacheDirectory != "" {
		if err := os.MkdirAll(p.cfg.CacheDirectory, 0o755); err != nil {
			return fmt.Errorf("engine: cache dir: %w", err)
		}
		dir = p.cfg.CacheDirectory
	}
	r, err := roster.Build(dir, col, vals, budget)
	if err != nil {
		return fmt.Errorf("engine: build-roster %s: %w", col, err)
	}
	p.mu.Lock()
	p.rosters[col] = r
	p.mu.Unlock()
	p.log.Info().Str("column", col).Int("rows", len(vals)).Msg("engine: roster built")
	return nil
}

// textRows adapts a materialized text column to keyword.RowReader.
type textRows struct{ rows []string }

func (r textRows) NRows() int                { return len(r.rows) }
func (r textRows) Row(i int) ([]byte, error) { return []byte(r.rows[i]), nil }

// BuildKeywordIndex tokenizes col (a Text column) with tok, builds a
// keyword index over it, and persists the .terms/.idx pair.
func (p *Partition) BuildKeywordIndex(col string, tok keyword.Tokenizer) error {
	c, ok := p.GetColumn(col)
	if !ok {
		return fmt.Errorf("engine: build-keyword: unknown column %q", col)
	}
	rows, err := c.SelectStrings(bitmap.Full(p.nrows))
	if err != nil {
		return fmt.Errorf("engine: build-keyword %s: %w", col, err)
	}
	for len(rows) < p.nrows {
		rows = append(rows, "") // short .sp file: absent rows carry no terms
	}
	ix, err := keyword.BuildFromTextColumn(textRows{rows}, tok)
	if err != nil {
		return fmt.Errorf("engine: build-keyword %s: %w", col, err)
	}
	if err := ix.Write(p.dir, col); err != nil {
		return fmt.Errorf("engine: build-keyword %s: %w", col, err)
	}
	p.mu.Lock()
	p.kwIndex[col] = ix
	p.mu.Unlock()
	p.log.Info().Str("column", col).Int("terms", len(ix.Terms())).Msg("engine: keyword index built")
	return nil
}

// SearchKeyword returns the hit bitmap for kw in col's keyword index,
// loading the persisted index on first use.
func (p *Partition) SearchKeyword(col, kw string) (*bitmap.Bitmap, error) {
	p.mu.RLock()
	ix, ok := p.kwIndex[col]
	p.mu.RUnlock()
	if !ok {
		loaded, err := keyword.Read(p.dir, col, p.nrows)
		if err != nil {
			return nil, fmt.Errorf("engine: keyword search %s: %w", col, err)
		}
		p.mu.Lock()
		p.kwIndex[col] = loaded
		p.mu.Unlock()
		ix = loaded
	}
	return ix.Search(kw)
}

// Roster exposes a built roster as predicate.Roster, nil if none is built.
func (p *Partition) Roster(col string) predicate.Roster {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.rosters[col]
	if !ok {
		return nil
	}
	return r
}

// ColumnFileSize stats the raw data file for col, used by the CLI's
// describe output.
func (p *Partition) ColumnFileSize(col string) (int64, error) {
	fi, err := os.Stat(filepath.Join(p.dir, col))
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
