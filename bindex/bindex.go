// Package bindex implements the bitmap index family. An index is an
// ordered sequence of bit vectors plus flavor-specific metadata (bin
// boundaries, key values, or a dictionary). This package implements the
// equality-bucket flavor: bucket i holds every row whose value equals (or,
// for the binned variant, falls in) key[i]; the union of all buckets
// equals the column's null mask and buckets are pairwise disjoint.
//
// The on-disk envelope is an 8-byte magic header, nrows/nobs, an offset
// table of 4- or 8-byte entries, the bit vectors packed back to back, then
// a flavor-specific trailer.
package bindex

import (
	"fmt"
	"sort"

	"github.com/Priyanshu23/bitdb/bitmap"
)

// Flavor identifies the on-disk index variant. Only the equality-bucket
// flavor ("range") is implemented by this package; the byte is reserved so
// additional flavors (keyword, interval-encoded) can share the envelope.
type Flavor uint8

const (
	FlavorRange Flavor = 1
)

const (
	magic0 = '#'
	magic1 = 'I'
	magic2 = 'B'
	magic3 = 'I'
	magic4 = 'S'
	magic5 = 0x07
)

// Op is a comparison operator used in a continuous range predicate.
type Op int

const (
	OpLT Op = iota
	OpLE
	OpGT
	OpGE
	OpEQ
)

// Range is a continuous predicate: values v such that LowOp(v, Low) and
// HighOp(v, High) both hold. Either bound may be disabled via HasLow/HasHigh.
type Range struct {
	HasLow  bool
	Low     float64
	LowOp   Op // OpGT or OpGE
	HasHigh bool
	High    float64
	HighOp  Op // OpLT or OpLE
}

// DiscreteSet is an explicit set of values (IN-list predicate).
type DiscreteSet struct {
	Values []float64
}

// Source is the minimal view of a column bindex.Create needs. column.Column
// satisfies this interface structurally; bindex does not import column,
// avoiding the cross-package cycle a direct dependency would create.
type Source interface {
	NRows() int
	NullMask() (*bitmap.Bitmap, error)
	// Values returns every non-null (row, value) pair, in row order, used
	// to bucket rows by distinct value at index-build time.
	Values() ([]RowValue, error)
}

// RowValue is one non-null observation used while building an index.
type RowValue struct {
	Row   int
	Value float64
}

// State is the index lifecycle:
// Unloaded -> Loading -> Loaded -> Unloading -> Unloaded.
type State int

const (
	Unloaded State = iota
	Loading
	Loaded
	Unloading
)

// Index is an equality-bucket bitmap index.
type Index struct {
	nrows   int
	keys    []float64        // sorted distinct values, keys[i] backs buckets[i]
	bits    []*bitmap.Bitmap // lazily activated; nil until touched
	path    string           // index file path once persisted, for lazy activation
	offsets []int64          // byte offsets into the index file, len == nobs+1
	state   State
}

// Create builds a fresh equality-bucket index over src by scanning every
// non-null value and bucketing by distinct value.
func Create(src Source) (*Index, error) {
	rows, err := src.Values()
	if err != nil {
		return nil, fmt.Errorf("bindex: create: %w", err)
	}

	distinct := map[float64][]int{}
	for _, rv := range rows {
		distinct[rv.Value] = append(distinct[rv.Value], rv.Row)
	}

	keys := make([]float64, 0, len(distinct))
	for k := range distinct {
		keys = append(keys, k)
	}
	sort.Float64s(keys)

	bits := make([]*bitmap.Bitmap, len(keys))
	for i, k := range keys {
		b := bitmap.New(src.NRows())
		for _, r := range distinct[k] {
			b.Set(r)
		}
		bits[i] = b
	}

	return &Index{
		nrows: src.NRows(),
		keys:  keys,
		bits:  bits,
		state: Loaded,
	}, nil
}

// GetNRows returns the row count this index was built against.
func (ix *Index) GetNRows() int { return ix.nrows }

// Nobs returns the number of buckets.
func (ix *Index) Nobs() int { return len(ix.keys) }

// BinBoundaries returns the sorted distinct key values backing each bucket.
func (ix *Index) BinBoundaries() []float64 { return ix.keys }

// BinWeights returns the cardinality of each bucket.
func (ix *Index) BinWeights() []int {
	w := make([]int, len(ix.bits))
	for i, b := range ix.bits {
		w[i] = b.Cnt()
	}
	return w
}

// GetMin returns the smallest indexed value; ok is false for an empty index.
func (ix *Index) GetMin() (float64, bool) {
	if len(ix.keys) == 0 {
		return 0, false
	}
	return ix.keys[0], true
}

// GetMax returns the largest indexed value; ok is false for an empty index.
func (ix *Index) GetMax() (float64, bool) {
	if len(ix.keys) == 0 {
		return 0, false
	}
	return ix.keys[len(ix.keys)-1], true
}

// GetSum returns the sum over every indexed row, each key weighted by its
// bucket's cardinality.
func (ix *Index) GetSum() (float64, error) {
	var sum float64
	for i, k := range ix.keys {
		b, err := ix.activate(i)
		if err != nil {
			return 0, err
		}
		sum += k * float64(b.Cnt())
	}
	return sum, nil
}

// GetDistribution returns (key, count) pairs, one per bucket, for histogram
// extraction; mensa.GetHistogram* aggregates these across partitions.
func (ix *Index) GetDistribution() (keys []float64, counts []int) {
	return append([]float64(nil), ix.keys...), ix.BinWeights()
}

// GetCumulativeDistribution returns, for each bucket boundary, the count of
// rows with value <= that boundary.
func (ix *Index) GetCumulativeDistribution() (keys []float64, cum []int) {
	keys = append([]float64(nil), ix.keys...)
	cum = make([]int, len(ix.keys))
	running := 0
	for i, b := range ix.bits {
		running += b.Cnt()
		cum[i] = running
	}
	return keys, cum
}

// lowerBound returns the first bucket index whose key is >= v.
func (ix *Index) lowerBound(v float64) int {
	return sort.Search(len(ix.keys), func(i int) bool { return ix.keys[i] >= v })
}

func inRange(v float64, r Range) bool {
	if r.HasLow {
		switch r.LowOp {
		case OpGT:
			if !(v > r.Low) {
				return false
			}
		default: // OpGE
			if !(v >= r.Low) {
				return false
			}
		}
	}
	if r.HasHigh {
		switch r.HighOp {
		case OpLT:
			if !(v < r.High) {
				return false
			}
		default: // OpLE
			if !(v <= r.High) {
				return false
			}
		}
	}
	return true
}

// Estimate returns a guaranteed-subset and a guaranteed-superset of the
// exact hits. Since every bucket in this flavor is a pure equality bucket
// with a known key, the index decides every row it covers exactly, so low
// and high carry the same bits.
// They are still distinct objects: callers pad low with zeros and high with
// ones when the index was built on a prefix of the partition, and that
// padding must not alias.
func (ix *Index) Estimate(r Range) (low, high *bitmap.Bitmap, err error) {
	out := bitmap.New(ix.nrows)
	for i, k := range ix.keys {
		if inRange(k, r) {
			b, err := ix.activate(i)
			if err != nil {
				return nil, nil, err
			}
			out.IOr(b)
		}
	}
	return out, out.Clone(), nil
}

// Evaluate answers an IN-list predicate exactly.
func (ix *Index) Evaluate(set DiscreteSet) (*bitmap.Bitmap, error) {
	out := bitmap.New(ix.nrows)
	for _, v := range set.Values {
		i := ix.lowerBound(v)
		if i < len(ix.keys) && ix.keys[i] == v {
			b, err := ix.activate(i)
			if err != nil {
				return nil, err
			}
			out.IOr(b)
		}
	}
	return out, nil
}

// EstimateCost returns a scalar proportional to the number of buckets this
// predicate must touch, in units comparable to a full-column scan (nrows).
func (ix *Index) EstimateCost(r Range) float64 {
	touched := 0
	for _, k := range ix.keys {
		if inRange(k, r) {
			touched++
		}
	}
	if touched == 0 {
		return 0
	}
	// Each touched bucket costs roughly nrows/nobs to decompress and OR in.
	return float64(touched) * float64(ix.nrows) / float64(max(1, len(ix.keys)))
}

// Undecidable returns rows the index alone cannot decide. The equality
// bucket flavor always decides every row exactly, so this is always empty.
func (ix *Index) Undecidable(r Range) *bitmap.Bitmap {
	return bitmap.New(ix.nrows)
}

// Append extends the index with nnew new rows sourced from src (whose
// Values() must report rows in [nrows, nrows+nnew)). It returns the number
// of rows appended, or an error.
func (ix *Index) Append(src Source, nnew int) (int, error) {
	rows, err := src.Values()
	if err != nil {
		return 0, fmt.Errorf("bindex: append: %w", err)
	}

	newNRows := ix.nrows + nnew
	for i, b := range ix.bits {
		b.AdjustSize(false, newNRows)
		ix.bits[i] = b
	}

	byKey := make(map[float64]int, len(ix.keys))
	for i, k := range ix.keys {
		byKey[k] = i
	}

	for _, rv := range rows {
		if rv.Row < ix.nrows {
			continue // already indexed
		}
		bi, ok := byKey[rv.Value]
		if !ok {
			b := bitmap.New(newNRows)
			ix.keys = append(ix.keys, rv.Value)
			ix.bits = append(ix.bits, b)
			bi = len(ix.keys) - 1
			byKey[rv.Value] = bi
			resortKeys(ix)
			// resortKeys invalidates byKey indices for keys after bi; rebuild.
			byKey = make(map[float64]int, len(ix.keys))
			for i, k := range ix.keys {
				byKey[k] = i
			}
			bi = byKey[rv.Value]
		}
		ix.bits[bi].Set(rv.Row)
	}

	ix.nrows = newNRows
	return nnew, nil
}

func resortKeys(ix *Index) {
	type kb struct {
		k float64
		b *bitmap.Bitmap
	}
	pairs := make([]kb, len(ix.keys))
	for i := range ix.keys {
		pairs[i] = kb{ix.keys[i], ix.bits[i]}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].k < pairs[j].k })
	for i, p := range pairs {
		ix.keys[i] = p.k
		ix.bits[i] = p.b
	}
}
