package bitmap

import (
	"bytes"
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/stretchr/testify/require"
)

func newTestBitSet(size uint, bits []uint) *bitset.BitSet {
	bs := bitset.New(size)
	for _, i := range bits {
		bs.Set(i)
	}
	return bs
}

func TestSetCntGet(t *testing.T) {
	b := New(8)
	b.Set(1)
	b.Set(3)
	b.Set(6)
	require.Equal(t, 3, b.Cnt())
	require.True(t, b.Get(3))
	require.False(t, b.Get(4))
}

func TestAndOrXor(t *testing.T) {
	a := New(8)
	a.Set(0)
	a.Set(1)
	a.Set(6)

	b := New(8)
	b.Set(1)
	b.Set(6)
	b.Set(2)

	and := a.And(b)
	require.Equal(t, []uint32{1, 6}, and.Positions())

	or := a.Or(b)
	require.Equal(t, []uint32{0, 1, 2, 6}, or.Positions())

	xor := a.Xor(b)
	require.Equal(t, []uint32{0, 2}, xor.Positions())
}

func TestNot(t *testing.T) {
	a := New(4)
	a.Set(1)
	not := a.Not()
	require.Equal(t, []uint32{0, 2, 3}, not.Positions())
}

func TestAdjustSize(t *testing.T) {
	a := New(4)
	a.Set(0)
	a.Set(3)

	a.AdjustSize(true, 6)
	require.Equal(t, 6, a.Size())
	require.True(t, a.Get(4))
	require.True(t, a.Get(5))

	a.AdjustSize(false, 2)
	require.Equal(t, 2, a.Size())
	require.Equal(t, 1, a.Cnt())
}

func TestIndexSetCoalescesRuns(t *testing.T) {
	a := New(10)
	for _, i := range []int{0, 1, 2, 5, 7, 8} {
		a.Set(i)
	}

	var runs []Run
	a.IndexSet(func(r Run) bool {
		runs = append(runs, r)
		return true
	})

	require.Equal(t, []Run{{0, 3}, {5, 6}, {7, 9}}, runs)
}

func TestSerializeRoundTrip(t *testing.T) {
	a := New(100)
	a.Set(0)
	a.Set(50)
	a.Set(99)

	var buf bytes.Buffer
	require.NoError(t, a.Serialize(&buf))

	got, err := Deserialize(&buf)
	require.NoError(t, err)
	require.Equal(t, a.Size(), got.Size())
	require.Equal(t, a.Positions(), got.Positions())
}

func TestFromLiteral(t *testing.T) {
	bs := newTestBitSet(5, []uint{0, 4})
	b := FromLiteral(bs, 5)
	require.Equal(t, []uint32{0, 4}, b.Positions())
}
