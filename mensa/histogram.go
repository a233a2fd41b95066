package mensa

import (
	"fmt"
	"math"

	"github.com/Priyanshu23/bitdb/bord"
)

// Histogram2D is a joint 2D count grid over two columns' values, nbins[i]
// equal-width bins along each dimension spanning [min,max] for that
// dimension.
type Histogram2D struct {
	XMin, XMax float64
	YMin, YMax float64
	NX, NY     int
	Counts     [][]int // Counts[xi][yi]
}

// GetHistogram2D bins every partition's (colX, colY) pairs into a joint
// 2D grid, summed across partitions. Unlike GetHistogram (which reuses
// each bindex's marginal distribution), a cross-column joint distribution
// needs the raw paired values, so this materializes them via Select.
func (t *Table) GetHistogram2D(colX, colY string, nx, ny int) (*Histogram2D, error) {
	xs, ys, err := t.pairedColumns(colX, colY)
	if err != nil {
		return nil, err
	}
	xmin, xmax := minMax(xs)
	ymin, ymax := minMax(ys)
	h := &Histogram2D{XMin: xmin, XMax: xmax, YMin: ymin, YMax: ymax, NX: nx, NY: ny}
	h.Counts = make([][]int, nx)
	for i := range h.Counts {
		h.Counts[i] = make([]int, ny)
	}
	for i := range xs {
		xi := bucketIndex(xs[i], xmin, xmax, nx)
		yi := bucketIndex(ys[i], ymin, ymax, ny)
		h.Counts[xi][yi]++
	}
	return h, nil
}

// Histogram3D is the 3D analog of Histogram2D.
type Histogram3D struct {
	XMin, XMax float64
	YMin, YMax float64
	ZMin, ZMax float64
	NX, NY, NZ int
	Counts     [][][]int // Counts[xi][yi][zi]
}

// GetHistogram3D bins every partition's (colX, colY, colZ) triples into a
// joint 3D grid, summed across partitions.
func (t *Table) GetHistogram3D(colX, colY, colZ string, nx, ny, nz int) (*Histogram3D, error) {
	xs, err := t.GetColumnAsFloat64(colX)
	if err != nil {
		return nil, err
	}
	ys, err := t.GetColumnAsFloat64(colY)
	if err != nil {
		return nil, err
	}
	zs, err := t.GetColumnAsFloat64(colZ)
	if err != nil {
		return nil, err
	}
	if len(xs) != len(ys) || len(xs) != len(zs) {
		return nil, fmt.Errorf("mensa: histogram3d: column length mismatch (%d/%d/%d)", len(xs), len(ys), len(zs))
	}

	xmin, xmax := minMax(xs)
	ymin, ymax := minMax(ys)
	zmin, zmax := minMax(zs)
	h := &Histogram3D{XMin: xmin, XMax: xmax, YMin: ymin, YMax: ymax, ZMin: zmin, ZMax: zmax, NX: nx, NY: ny, NZ: nz}
	h.Counts = make([][][]int, nx)
	for i := range h.Counts {
		h.Counts[i] = make([][]int, ny)
		for j := range h.Counts[i] {
			h.Counts[i][j] = make([]int, nz)
		}
	}
	for i := range xs {
		xi := bucketIndex(xs[i], xmin, xmax, nx)
		yi := bucketIndex(ys[i], ymin, ymax, ny)
		zi := bucketIndex(zs[i], zmin, zmax, nz)
		h.Counts[xi][yi][zi]++
	}
	return h, nil
}

// pairedColumns fetches colX and colY row-aligned, one partition at a
// time, so a row's X and Y values never cross a partition boundary.
func (t *Table) pairedColumns(colX, colY string) ([]float64, []float64, error) {
	var xs, ys []float64
	for i, p := range t.partitions {
		tbl, err := p.Select([]string{colX, colY}, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("mensa: histogram2d: partition %d: %w", i, err)
		}
		cur := bord.NewCursor(tbl)
		for row := 0; row < tbl.NRows(); row++ {
			if cur.FetchAt(row) != 0 {
				break
			}
			x, err := cur.GetColumnAsFloat64(colX)
			if err != nil {
				return nil, nil, err
			}
			y, err := cur.GetColumnAsFloat64(colY)
			if err != nil {
				return nil, nil, err
			}
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	return xs, ys, nil
}

func minMax(vals []float64) (lo, hi float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	lo, hi = vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// bucketIndex maps v in [lo,hi] to a bin in [0,n), clamping the top edge
// into the last bin.
func bucketIndex(v, lo, hi float64, n int) int {
	if n <= 1 || hi <= lo {
		return 0
	}
	idx := int(math.Floor((v - lo) / (hi - lo) * float64(n)))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}
