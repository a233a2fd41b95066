package predicate

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Priyanshu23/bitdb/bindex"
	"github.com/Priyanshu23/bitdb/bitmap"
	"github.com/Priyanshu23/bitdb/column"
	"github.com/Priyanshu23/bitdb/internal/sentinel"
)

type fakePartition struct {
	dir string
	n   int
}

func (p *fakePartition) NRows() int { return p.n }
func (p *fakePartition) GetColumn(name string) (*column.Column, bool) { return nil, false }
func (p *fakePartition) CurrentDataDir() string                       { return p.dir }
func (p *fakePartition) GetNullMask() (*bitmap.Bitmap, error) {
	return bitmap.Full(p.n), nil
}
func (p *fakePartition) DoScan(name string, r bindex.Range, candidates *bitmap.Bitmap) (*bitmap.Bitmap, error) {
	return bitmap.New(candidates.Size()), nil
}

func writeInt32Col(t *testing.T, dir, name string, vals []int32) {
	t.Helper()
	buf := make([]byte, 0, len(vals)*4)
	for _, v := range vals {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(v))
		buf = append(buf, b...)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf, 0o644))
}

func newIndexedColumn(t *testing.T, vals []int32) (*column.Column, *fakePartition) {
	t.Helper()
	p := &fakePartition{dir: t.TempDir(), n: len(vals)}
	c := column.New("x", "", sentinel.Int, p)
	writeInt32Col(t, p.dir, "x", vals)
	require.NoError(t, c.BuildIndex())
	return c, p
}

func TestEvaluateRangeRejectsTextColumn(t *testing.T) {
	p := &fakePartition{dir: t.TempDir(), n: 3}
	c := column.New("name", "", sentinel.Text, p)
	mask := bitmap.Full(3)
	_, err := EvaluateRange(c, bindex.Range{HasLow: true, Low: 1, LowOp: bindex.OpGE}, mask)
	require.ErrorIs(t, err, ErrTextColumn)
}

func TestEvaluateRangeDelegatesToColumn(t *testing.T) {
	c, p := newIndexedColumn(t, []int32{1, 2, 3, 4, 5})
	mask := bitmap.Full(p.n)

	hits, err := EvaluateRange(c, bindex.Range{HasLow: true, Low: 3, LowOp: bindex.OpGE}, mask)
	require.NoError(t, err)
	require.Equal(t, 3, hits.Cnt())
}

// fakeRoster implements Roster by a brute-force linear scan; its purpose
// in tests is only to prove the plumbing reaches and uses it, not to
// reimplement roster.Roster.Locate.
type fakeRoster struct {
	vals []int32
}

func (r fakeRoster) Locate(query []float64) ([]uint32, error) {
	var out []uint32
	for _, q := range query {
		for i, v := range r.vals {
			if float64(v) == q {
				out = append(out, uint32(i))
			}
		}
	}
	return out, nil
}

func TestEvaluateDiscreteUsesRosterWhenCheaper(t *testing.T) {
	const n = 4000
	vals := make([]int32, n)
	for i := range vals {
		vals[i] = int32(i) // every value distinct: nobs == n, so the index's
		// bounding-range cost for a near-full set approaches a full scan.
	}
	c, p := newIndexedColumn(t, vals)
	mask := bitmap.Full(p.n)

	// Every value except one: spans [0, n-1] (so the bounding range touches
	// every bucket) but isn't a dense interval itself, so it takes the
	// non-dense branch; |set| = n-1 makes idxCost*log(|set|) exceed
	// (elementSize+4)*N for this n.
	values := make([]float64, 0, n-1)
	for i := 0; i < n; i++ {
		if i == n/2 {
			continue
		}
		values = append(values, float64(i))
	}
	set := bindex.DiscreteSet{Values: values}
	hits, err := EvaluateDiscrete(c, set, mask, fakeRoster{vals: vals})
	require.NoError(t, err)
	require.Equal(t, n-1, hits.Cnt())
	require.True(t, hits.Get(3))
	require.False(t, hits.Get(n/2))
}

func TestEvaluateDiscreteDenseIntervalGoesToIndex(t *testing.T) {
	c, p := newIndexedColumn(t, []int32{0, 1, 2, 3, 4})
	mask := bitmap.Full(p.n)

	set := bindex.DiscreteSet{Values: []float64{1, 2, 3}}
	hits, err := EvaluateDiscrete(c, set, mask, nil)
	require.NoError(t, err)
	require.Equal(t, 3, hits.Cnt())
}

func TestEvaluateDiscreteRejectsTextColumn(t *testing.T) {
	p := &fakePartition{dir: t.TempDir(), n: 3}
	c := column.New("name", "", sentinel.Text, p)
	mask := bitmap.Full(3)
	_, err := EvaluateDiscrete(c, bindex.DiscreteSet{Values: []float64{1}}, mask, nil)
	require.ErrorIs(t, err, ErrTextColumn)
}
