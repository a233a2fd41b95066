// Package column implements the typed column abstraction: its on-disk
// layout, the null-mask protocol, and the SelectValues family that
// materializes query results.
package column

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Priyanshu23/bitdb/bindex"
	"github.com/Priyanshu23/bitdb/bitmap"
	"github.com/Priyanshu23/bitdb/internal/sentinel"
)

// Partition is the minimal contract a Column needs from its owning
// partition: row count, sibling column lookup, its data directory, its own
// null mask, and a scan callback used to refine index candidates.
type Partition interface {
	NRows() int
	GetColumn(name string) (*Column, bool)
	CurrentDataDir() string
	GetNullMask() (*bitmap.Bitmap, error)
	// DoScan evaluates r directly against column name's raw values,
	// restricted to candidates, returning the exact subset of candidates
	// that satisfy r.
	DoScan(name string, r bindex.Range, candidates *bitmap.Bitmap) (*bitmap.Bitmap, error)
}

// Column is one typed attribute of a partition.
type Column struct {
	Name        string
	Description string
	Type        sentinel.Type
	Sorted      bool // hint: the data file is already sorted (enables binary search)

	partition Partition

	statMu     sync.Mutex
	lower      float64
	upper      float64
	statsValid bool

	maskMu   sync.Mutex
	nullMask *bitmap.Bitmap

	index *bindex.Handle
}

// New constructs a column bound to its owning partition. lower > upper
// means the bounds are unknown.
func New(name, desc string, typ sentinel.Type, partition Partition) *Column {
	return &Column{
		Name:        name,
		Description: desc,
		Type:        typ,
		partition:   partition,
		lower:       1,
		upper:       0,
		index:       bindex.NewHandle(nil),
	}
}

// DataFileName composes the raw-values file path from the partition
// directory and column name.
func (c *Column) DataFileName() string {
	return filepath.Join(c.partition.CurrentDataDir(), c.Name)
}

// NullMaskName composes the "<col>.msk" null-mask file path.
func (c *Column) NullMaskName() string {
	return c.DataFileName() + ".msk"
}

// NRows returns the owning partition's row count.
func (c *Column) NRows() int { return c.partition.NRows() }

// LowerUpper returns the cached (possibly stale/unknown) bounds.
func (c *Column) LowerUpper() (lower, upper float64, valid bool) {
	c.statMu.Lock()
	defer c.statMu.Unlock()
	return c.lower, c.upper, c.statsValid && c.lower <= c.upper
}

// GetNullMask returns the column's null bitmap, lazily loading the .msk
// file on first call and caching the result. A missing or short file is
// treated as "all rows valid" for the absent tail.
func (c *Column) GetNullMask() (*bitmap.Bitmap, error) {
	c.maskMu.Lock()
	defer c.maskMu.Unlock()

	if c.nullMask != nil {
		return c.nullMask, nil
	}

	n := c.partition.NRows()
	mask, err := loadMask(c.NullMaskName(), n)
	if err != nil {
		return nil, err
	}
	c.nullMask = mask
	return mask, nil
}

func loadMask(path string, n int) (*bitmap.Bitmap, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return bitmap.Full(n), nil
	}
	if err != nil {
		return nil, fmt.Errorf("column: open null mask %s: %w", path, err)
	}
	defer f.Close()

	mask, err := bitmap.Deserialize(f)
	if err != nil {
		return nil, fmt.Errorf("column: decode null mask %s: %w", path, err)
	}
	if mask.Size() < n {
		mask.AdjustSize(true, n) // absent tail treated as all-valid
	} else if mask.Size() > n {
		mask.AdjustSize(false, n)
	}
	return mask, nil
}

// setNullMask rewrites the .msk file before the in-memory cache is
// replaced, so a reader never observes a cached mask the file does not
// yet reflect.
func (c *Column) setNullMask(m *bitmap.Bitmap) error {
	tmp := c.NullMaskName() + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("column: create null mask: %w", err)
	}
	if err := m.Serialize(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("column: write null mask: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("column: close null mask: %w", err)
	}
	if err := os.Rename(tmp, c.NullMaskName()); err != nil {
		return fmt.Errorf("column: rename null mask: %w", err)
	}

	c.maskMu.Lock()
	c.nullMask = m
	c.maskMu.Unlock()
	return nil
}

// ActualMinMax scans the column under mask and returns the true min/max as
// doubles, used when cached statistics are stale (lower > upper).
func (c *Column) ActualMinMax(mask *bitmap.Bitmap) (min, max float64, err error) {
	// the typed dispatch converts every numeric type; an 8-byte integer
	// column must not be read as raw float64 bits
	vals, err := selectAsFloat64(c, mask)
	if err != nil {
		return 0, 0, err
	}
	if len(vals) == 0 {
		return 1, 0, nil // lower > upper: unknown/empty
	}
	min, max = vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	c.statMu.Lock()
	c.lower, c.upper, c.statsValid = min, max, true
	c.statMu.Unlock()

	return min, max, nil
}

func selectAsFloat64(c *Column, mask *bitmap.Bitmap) ([]float64, error) {
	switch c.Type {
	case sentinel.Byte:
		raw, err := SelectValues[int8](c, mask)
		return widen(raw, func(v int8) float64 { return float64(v) }), err
	case sentinel.UByte:
		raw, err := SelectValues[uint8](c, mask)
		return widen(raw, func(v uint8) float64 { return float64(v) }), err
	case sentinel.Short:
		raw, err := SelectValues[int16](c, mask)
		return widen(raw, func(v int16) float64 { return float64(v) }), err
	case sentinel.UShort:
		raw, err := SelectValues[uint16](c, mask)
		return widen(raw, func(v uint16) float64 { return float64(v) }), err
	case sentinel.Int, sentinel.Category:
		raw, err := SelectValues[int32](c, mask)
		return widen(raw, func(v int32) float64 { return float64(v) }), err
	case sentinel.UInt:
		raw, err := SelectValues[uint32](c, mask)
		return widen(raw, func(v uint32) float64 { return float64(v) }), err
	case sentinel.Long:
		raw, err := SelectValues[int64](c, mask)
		return widen(raw, func(v int64) float64 { return float64(v) }), err
	case sentinel.ULong:
		raw, err := SelectValues[uint64](c, mask)
		return widen(raw, func(v uint64) float64 { return float64(v) }), err
	case sentinel.Float:
		raw, err := SelectValues[float32](c, mask)
		return widen(raw, func(v float32) float64 { return float64(v) }), err
	case sentinel.Double:
		return SelectValues[float64](c, mask)
	default:
		return nil, fmt.Errorf("column: %w: type %s has no numeric representation", ErrTypeMismatch, c.Type)
	}
}

func widen[S any, D any](in []S, f func(S) D) []D {
	out := make([]D, len(in))
	for i, v := range in {
		out[i] = f(v)
	}
	return out
}

// ErrTypeMismatch is returned when a typed operation is called on an
// incompatible column.
var ErrTypeMismatch = fmt.Errorf("column: type mismatch")

// valuesForIndex materializes every non-null (row, numeric value) pair, the
// shape bindex.Source.Values needs to build or append an index.
func (c *Column) valuesForIndex() ([]bindex.RowValue, error) {
	mask, err := c.GetNullMask()
	if err != nil {
		return nil, err
	}
	vals, rowIDs, err := selectAsFloat64WithRowIDs(c, mask)
	if err != nil {
		return nil, err
	}
	out := make([]bindex.RowValue, len(vals))
	for i := range vals {
		out[i] = bindex.RowValue{Row: rowIDs[i], Value: vals[i]}
	}
	return out, nil
}

func selectAsFloat64WithRowIDs(c *Column, mask *bitmap.Bitmap) ([]float64, []int, error) {
	vals, err := selectAsFloat64(c, mask)
	if err != nil {
		return nil, nil, err
	}
	rowIDs := make([]int, 0, len(vals))
	mask.IndexSet(func(r bitmap.Run) bool {
		for i := r.Begin; i < r.End; i++ {
			if len(rowIDs) == len(vals) {
				return false // short data file: the tail of the mask has no values
			}
			rowIDs = append(rowIDs, i)
		}
		return true
	})
	return vals, rowIDs, nil
}

// bindexSource adapts *Column to bindex.Source.
type bindexSource struct{ c *Column }

func (s bindexSource) NRows() int                         { return s.c.NRows() }
func (s bindexSource) NullMask() (*bitmap.Bitmap, error)  { return s.c.GetNullMask() }
func (s bindexSource) Values() ([]bindex.RowValue, error) { return s.c.valuesForIndex() }

// BuildIndex builds a fresh equality-bucket index over this column by
// reading every non-null value, and attaches it.
func (c *Column) BuildIndex() error {
	ix, err := bindex.Create(bindexSource{c})
	if err != nil {
		return err
	}
	c.index.Attach(ix)
	return nil
}

// WriteIndex persists the attached index, if any, to the partition's data
// directory.
func (c *Column) WriteIndex() error {
	g := c.index.Borrow()
	defer g.Release()
	if g.Index() == nil {
		return nil
	}
	return g.Index().Write(c.partition.CurrentDataDir(), c.Name)
}

// LoadIndex reads a previously persisted index from disk; a stale or
// corrupt index file is deleted and treated as "no index", leaving
// predicate evaluation to fall back to scans.
func (c *Column) LoadIndex() error {
	ix, err := bindex.Read(c.partition.CurrentDataDir(), c.Name, c.NRows())
	if err != nil {
		os.Remove(filepath.Join(c.partition.CurrentDataDir(), c.Name+".idx"))
		return err
	}
	c.index.Attach(ix)
	return nil
}

// IndexHandle exposes the lifecycle handle for predicate's driver.
func (c *Column) IndexHandle() *bindex.Handle { return c.index }
