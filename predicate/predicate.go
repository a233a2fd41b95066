// Package predicate is the driver orchestrating index-estimate,
// scan-refine, and (for discrete sets) roster-assisted lookup on top of
// column.Column's own EvaluateRange/EvaluateDiscrete, which already carry
// out the index-estimate-then-scan-refine sequence. This package adds
// what sits above that: the text/numeric type-compatibility check and the
// discrete-set decision between the index's direct evaluate and a
// roster-assisted locate-each-member union.
package predicate

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Priyanshu23/bitdb/bindex"
	"github.com/Priyanshu23/bitdb/bitmap"
	"github.com/Priyanshu23/bitdb/column"
	"github.com/Priyanshu23/bitdb/internal/sentinel"
)

// ErrTextColumn is returned when a numeric predicate (range or discrete
// set) is evaluated against a text-typed column.
var ErrTextColumn = errors.New("predicate: numeric predicate on a text column")

// Roster is the minimal roster.Roster contract the discrete-set path
// needs: locate the row (via its sorted index) of every value in a query
// set, against the column's sorted copy.
type Roster interface {
	Locate(values []float64) ([]uint32, error)
}

// EvaluateRange drives a continuous range predicate: validate the column
// is numeric, then delegate to column.Column's own index-estimate/scan
// sequence.
func EvaluateRange(col *column.Column, r bindex.Range, mask *bitmap.Bitmap) (*bitmap.Bitmap, error) {
	if col.Type == sentinel.Text {
		return nil, fmt.Errorf("%w: %s", ErrTextColumn, col.Name)
	}
	return col.EvaluateRange(r, mask)
}

// EvaluateDiscrete drives an IN-list predicate.
// A dense integer interval is rewritten as a continuous range by
// column.Column.EvaluateDiscrete itself; for a non-dense set, this layer
// chooses between the index's direct evaluate and a roster-assisted
// locate-each-member union, using the cost inequality
// idxCost·log(|set|) > (elementSize+4)·N.
func EvaluateDiscrete(col *column.Column, set bindex.DiscreteSet, mask *bitmap.Bitmap, ros Roster) (*bitmap.Bitmap, error) {
	if col.Type == sentinel.Text {
		return nil, fmt.Errorf("%w: %s", ErrTextColumn, col.Name)
	}
	if _, dense := denseInterval(set); dense || ros == nil || len(set.Values) == 0 {
		return col.EvaluateDiscrete(set, mask)
	}

	nullMask, err := col.GetNullMask()
	if err != nil {
		return nil, err
	}
	mymask := mask.And(nullMask)

	g := col.IndexHandle().Borrow()
	if g == nil {
		return col.EvaluateDiscrete(set, mask)
	}
	idx := g.Index()
	idxCost := idx.EstimateCost(boundingRange(set))
	g.Release()

	elementSize := sentinel.ElementSize(col.Type)
	n := float64(col.NRows())
	if idxCost*math.Log(float64(len(set.Values))) > float64(elementSize+4)*n {
		hits, err := rosterLocateUnion(ros, set.Values, mymask)
		if err == nil {
			return hits, nil
		}
		// roster exception: fall through to the index/scan path.
	}

	return col.EvaluateDiscrete(set, mask)
}

func rosterLocateUnion(ros Roster, values []float64, mymask *bitmap.Bitmap) (*bitmap.Bitmap, error) {
	rows, err := ros.Locate(values)
	if err != nil {
		return nil, fmt.Errorf("predicate: roster locate: %w", err)
	}
	out := bitmap.New(mymask.Size())
	for _, r := range rows {
		out.Set(int(r))
	}
	return out.And(mymask), nil
}

// boundingRange approximates a discrete set's index cost by the cost of
// the continuous range spanning its min and max, since bindex.Index only
// exposes EstimateCost for a continuous Range.
func boundingRange(set bindex.DiscreteSet) bindex.Range {
	lo, hi := set.Values[0], set.Values[0]
	for _, v := range set.Values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return bindex.Range{
		HasLow: true, Low: lo, LowOp: bindex.OpGE,
		HasHigh: true, High: hi, HighOp: bindex.OpLE,
	}
}

// denseInterval reports whether set is exactly the integers [lo, hi] with
// no gaps, mirroring column.denseInterval (unexported there) so this
// layer can decide the roster-vs-index choice without re-evaluating a
// range it would just hand back to column anyway.
func denseInterval(set bindex.DiscreteSet) (bindex.Range, bool) {
	if len(set.Values) == 0 {
		return bindex.Range{}, false
	}
	vals := append([]float64(nil), set.Values...)
	sort.Float64s(vals)
	for _, v := range vals {
		if v != float64(int64(v)) {
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
