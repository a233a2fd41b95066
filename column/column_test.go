package column

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/Priyanshu23/bitdb/bindex"
	"github.com/Priyanshu23/bitdb/bitmap"
	"github.com/Priyanshu23/bitdb/internal/sentinel"
	"github.com/stretchr/testify/require"
)

// fakePartition is a minimal single-column Partition for unit tests.
type fakePartition struct {
	dir    string
	n      int
	cols   map[string]*Column
	scanFn func(name string, r bindex.Range, candidates *bitmap.Bitmap) (*bitmap.Bitmap, error)
}

func newFakePartition(t *testing.T, n int) *fakePartition {
	return &fakePartition{dir: t.TempDir(), n: n, cols: map[string]*Column{}}
}

func (p *fakePartition) NRows() int { return p.n }
func (p *fakePartition) GetColumn(name string) (*Column, bool) {
	c, ok := p.cols[name]
	return c, ok
}
func (p *fakePartition) CurrentDataDir() string { return p.dir }
func (p *fakePartition) GetNullMask() (*bitmap.Bitmap, error) {
	return bitmap.Full(p.n), nil
}
func (p *fakePartition) DoScan(name string, r bindex.Range, candidates *bitmap.Bitmap) (*bitmap.Bitmap, error) {
	if p.scanFn != nil {
		return p.scanFn(name, r, candidates)
	}
	return bitmap.New(candidates.Size()), nil
}

func writeInt32Col(t *testing.T, dir, name string, vals []int32) {
	path := filepath.Join(dir, name)
	buf := make([]byte, 0, len(vals)*4)
	for _, v := range vals {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(v))
		buf = append(buf, b...)
	}
	require.NoError(t, os.WriteFile(path, buf, 0o644))
}

func TestGetNullMaskMissingFileAllValid(t *testing.T) {
	p := newFakePartition(t, 5)
	c := New("x", "", sentinel.Int, p)
	p.cols["x"] = c

	mask, err := c.GetNullMask()
	require.NoError(t, err)
	require.Equal(t, 5, mask.Cnt())
}

func TestSelectValuesBulkRead(t *testing.T) {
	p := newFakePartition(t, 4)
	c := New("x", "", sentinel.Int, p)
	p.cols["x"] = c
	writeInt32Col(t, p.dir, "x", []int32{10, 20, 30, 40})

	mask, _ := c.GetNullMask()
	vals, err := SelectValues[int32](c, mask)
	require.NoError(t, err)
	require.Equal(t, []int32{10, 20, 30, 40}, vals)
}

func TestSelectValuesPartialMask(t *testing.T) {
	p := newFakePartition(t, 4)
	c := New("x", "", sentinel.Int, p)
	p.cols["x"] = c
	writeInt32Col(t, p.dir, "x", []int32{10, 20, 30, 40})

	mask := bitmap.New(4)
	mask.Set(1)
	mask.Set(3)

	vals, rowIDs, err := SelectValuesWithRowIDs[int32](c, mask)
	require.NoError(t, err)
	require.Equal(t, []int32{20, 40}, vals)
	require.Equal(t, []int{1, 3}, rowIDs)
}

func TestSelectIntsWideningFromByte(t *testing.T) {
	p := newFakePartition(t, 3)
	c := New("b", "", sentinel.Byte, p)
	p.cols["b"] = c
	require.NoError(t, os.WriteFile(filepath.Join(p.dir, "b"), []byte{1, 2, 3}, 0o644))

	mask, _ := c.GetNullMask()
	vals, err := c.SelectInts(mask)
	require.NoError(t, err)
	require.Equal(t, []int32{1, 2, 3}, vals)
}

func TestSelectBytesRejectsNarrowing(t *testing.T) {
	p := newFakePartition(t, 3)
	c := New("i", "", sentinel.Int, p)
	p.cols["i"] = c
	writeInt32Col(t, p.dir, "i", []int32{1, 2, 3})

	mask, _ := c.GetNullMask()
	_, err := c.SelectBytes(mask)
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestAppendPadsMissingColumn(t *testing.T) {
	// Partition A has column z; appending partition B which lacks z.
	// Post-append mask: first nold bits unchanged, next nnew cleared;
	// data file padded with z's sentinel.
	p := newFakePartition(t, 3)
	c := New("z", "", sentinel.Int, p)
	p.cols["z"] = c
	writeInt32Col(t, p.dir, "z", []int32{1, 2, 3})

	srcDir := t.TempDir()
	// no "z" file in srcDir: column missing from appended partition

	p.n = 5 // simulate partition growth to 3+2 rows
	err := c.Append(filepath.Join(srcDir, "z"), filepath.Join(srcDir, "z.msk"), 3, 2)
	require.NoError(t, err)

	mask, err := c.GetNullMask()
	require.NoError(t, err)
	require.Equal(t, 3, mask.Cnt())
	require.True(t, mask.Get(0))
	require.False(t, mask.Get(3))
	require.False(t, mask.Get(4))
}

func TestEvaluateRangeScanOnly(t *testing.T) {
	p := newFakePartition(t, 8)
	c := New("x", "", sentinel.Int, p)
	p.cols["x"] = c
	xs := []int32{3, 1, 4, 1, 5, 9, 2, 6}
	writeInt32Col(t, p.dir, "x", xs)

	p.scanFn = func(name string, r bindex.Range, candidates *bitmap.Bitmap) (*bitmap.Bitmap, error) {
		out := bitmap.New(candidates.Size())
		candidates.IndexSet(func(run bitmap.Run) bool {
			for i := run.Begin; i < run.End; i++ {
				v := float64(xs[i])
				if r.HasHigh && v < r.High {
					out.Set(i)
				}
			}
			return true
		})
		return out, nil
	}

	mask, _ := c.GetNullMask()
	hits, err := c.EvaluateRange(bindex.Range{HasHigh: true, High: 4, HighOp: bindex.OpLT}, mask)
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 1, 3, 6}, hits.Positions())
}

func TestEvaluateRangeWithIndex(t *testing.T) {
	p := newFakePartition(t, 8)
	c := New("x", "", sentinel.Int, p)
	p.cols["x"] = c
	xs := []int32{3, 1, 4, 1, 5, 9, 2, 6}
	writeInt32Col(t, p.dir, "x", xs)
	require.NoError(t, c.BuildIndex())

	p.scanFn = func(name string, r bindex.Range, candidates *bitmap.Bitmap) (*bitmap.Bitmap, error) {
		t.Fatal("scan should not be needed: equality-bucket index decides exactly")
		return nil, nil
	}

	mask, _ := c.GetNullMask()
	hits, err := c.EvaluateRange(bindex.Range{HasHigh: true, High: 4, HighOp: bindex.OpLT}, mask)
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 1, 3, 6}, hits.Positions())
}
