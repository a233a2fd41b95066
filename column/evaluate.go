package column

import (
	"fmt"
	"sort"

	"github.com/Priyanshu23/bitdb/bindex"
	"github.com/Priyanshu23/bitdb/bitmap"
)

// EvaluateRange answers a continuous range predicate exactly:
//  1. mymask = mask AND null_mask.
//  2. Acquire a read lock on the index. If present and its estimated cost
//     is cheaper than a full scan, call index.Estimate.
//  3. Align low/high to mymask's size if needed: low is padded with
//     zeros, high with ones, so uncovered rows become scan candidates.
//  4. low &= mymask; high &= mymask; candidates = high - low.
//  5. If candidates is non-empty, scan candidates and OR the refined hits
//     into low.
//  6. Return low as the exact hit set.
//
// Any index error drops the index and retries with a pure scan.
func (c *Column) EvaluateRange(r bindex.Range, mask *bitmap.Bitmap) (*bitmap.Bitmap, error) {
	if c.partition == nil {
		return nil, fmt.Errorf("column: %s has no owning partition", c.Name)
	}

	nullMask, err := c.GetNullMask()
	if err != nil {
		return nil, err
	}
	mymask := mask.And(nullMask)
	if mymask.Cnt() == 0 {
		return mymask, nil
	}

	low, high, err := c.estimateViaIndex(r)
	if err != nil {
		// index exception: drop the index, retry with a pure scan.
		_ = c.index.Unload()
		low, high = nil, nil
	}

	if low == nil {
		low = bitmap.New(mymask.Size())
		high = mymask.Clone()
	}

	if low.Size() != mymask.Size() {
		low.AdjustSize(false, mymask.Size())
	}
	if high.Size() != mymask.Size() {
		high.AdjustSize(true, mymask.Size())
	}

	low = low.And(mymask)
	high = high.And(mymask)
	candidates := high.AndNot(low)

	if candidates.Cnt() > 0 {
		refined, err := c.partition.DoScan(c.Name, r, candidates)
		if err != nil {
			return nil, fmt.Errorf("column: scan refinement: %w", err)
		}
		low.IOr(refined)
	}

	return low, nil
}

func (c *Column) estimateViaIndex(r bindex.Range) (low, high *bitmap.Bitmap, err error) {
	g := c.index.Borrow()
	defer g.Release()
	idx := g.Index()
	if idx == nil {
		return nil, nil, nil
	}
	if idx.EstimateCost(r) >= float64(c.NRows()) {
		return nil, nil, nil // index not cheaper than a scan: skip it
	}
	return idx.Estimate(r)
}

// EvaluateDiscrete answers an IN-list predicate: if the set is a dense
// contiguous integer interval, it is rewritten as a continuous range and
// dispatched there. Otherwise the index's direct Evaluate answers exactly;
// without an index (or on an index error, which drops the index) the
// column scans its own values under the mask. The roster-assisted path is
// the predicate package's responsibility and is layered above this, not
// here.
func (c *Column) EvaluateDiscrete(set bindex.DiscreteSet, mask *bitmap.Bitmap) (*bitmap.Bitmap, error) {
	if c.partition == nil {
		return nil, fmt.Errorf("column: %s has no owning partition", c.Name)
	}
	if r, ok := denseInterval(set); ok {
		return c.EvaluateRange(r, mask)
	}

	nullMask, err := c.GetNullMask()
	if err != nil {
		return nil, err
	}
	mymask := mask.And(nullMask)
	if mymask.Cnt() == 0 {
		return mymask, nil
	}

	g := c.index.Borrow()
	if idx := g.Index(); idx != nil {
		hits, err := idx.Evaluate(set)
		g.Release()
		if err == nil {
			if hits.Size() != mymask.Size() {
				hits.AdjustSize(false, mymask.Size())
			}
			return hits.And(mymask), nil
		}
		_ = c.index.Unload()
	} else {
		g.Release()
	}
	return c.scanDiscrete(set, mymask)
}

// scanDiscrete is the pure-scan fallback for a non-dense IN-list: read
// every value under mymask and test set membership directly.
func (c *Column) scanDiscrete(set bindex.DiscreteSet, mymask *bitmap.Bitmap) (*bitmap.Bitmap, error) {
	vals, rows, err := selectAsFloat64WithRowIDs(c, mymask)
	if err != nil {
		return nil, err
	}
	want := make(map[float64]struct{}, len(set.Values))
	for _, v := range set.Values {
		want[v] = struct{}{}
	}
	hits := bitmap.New(mymask.Size())
	for i, v := range vals {
		if _, ok := want[v]; ok {
			hits.Set(rows[i])
		}
	}
	return hits, nil
}

// denseInterval reports whether set is exactly the integers [lo, hi] with
// no gaps, rewriting it as a continuous range.
func denseInterval(set bindex.DiscreteSet) (bindex.Range, bool) {
	if len(set.Values) == 0 {
		return bindex.Range{}, false
	}
	vals := append([]float64(nil), set.Values...)
	sort.Float64s(vals)
	for i := range vals {
		if vals[i] != float64(int64(vals[i])) {
			return bindex.Range{}, false
		}
	}
	for i := 1; i < len(vals); i++ {
		if vals[i] != vals[i-1]+1 {
			return bindex.Range{}, false
		}
	}
	return bindex.Range{
		HasLow: true, Low: vals[0], LowOp: bindex.OpGE,
		HasHigh: true, High: vals[len(vals)-1], HighOp: bindex.OpLE,
	}, true
}
