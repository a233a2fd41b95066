// Package bitmap implements the compressed bit vector underlying every
// mask and index bucket: a run-compressed bitmap supporting AND/OR/XOR/NOT,
// cardinality, adjust-size, and serialize/deserialize. All cost reasoning
// elsewhere in this module assumes these are O(compressed size) operations.
//
// Every Bitmap is backed by a github.com/RoaringBitmap/roaring bitmap;
// Set and the other mutators write to it directly. FromLiteral converts a
// github.com/bits-and-blooms/bitset.BitSet into a Bitmap by copying its
// set bits; no other part of the package uses a BitSet.
package bitmap

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/RoaringBitmap/roaring"
	"github.com/bits-and-blooms/bitset"
)

// Bitmap is a compressed bit vector over [0, size).
type Bitmap struct {
	size int
	rb   *roaring.Bitmap
}

// New returns an empty bitmap of the given bit length.
func New(size int) *Bitmap {
	return &Bitmap{size: size, rb: roaring.New()}
}

// Full returns a bitmap of the given bit length with every bit set, the
// "all rows valid" mask a column with no .msk file reports.
func Full(size int) *Bitmap {
	b := New(size)
	if size > 0 {
		b.rb.AddRange(0, uint64(size))
	}
	return b
}

// FromLiteral builds a Bitmap from a bits-and-blooms BitSet, copying every
// set bit below size.
func FromLiteral(bs *bitset.BitSet, size int) *Bitmap {
	b := New(size)
	for i, e := bs.NextSet(0); e; i, e = bs.NextSet(i + 1) {
		if int(i) >= size {
			break
		}
		b.rb.Add(uint32(i))
	}
	return b
}

// Size returns the number of bits this bitmap is declared over.
func (b *Bitmap) Size() int { return b.size }

// Cnt returns the number of set bits (cardinality).
func (b *Bitmap) Cnt() int { return int(b.rb.GetCardinality()) }

// Set sets bit i to 1.
func (b *Bitmap) Set(i int) {
	if i >= b.size {
		b.size = i + 1
	}
	b.rb.Add(uint32(i))
}

// Clear sets bit i to 0.
func (b *Bitmap) Clear(i int) {
	b.rb.Remove(uint32(i))
}

// Get returns the value of bit i.
func (b *Bitmap) Get(i int) bool {
	return b.rb.Contains(uint32(i))
}

// Clone returns an independent deep copy.
func (b *Bitmap) Clone() *Bitmap {
	return &Bitmap{size: b.size, rb: b.rb.Clone()}
}

// And returns the bitwise AND of b and other; the result's size is the
// larger of the two operand sizes.
func (b *Bitmap) And(other *Bitmap) *Bitmap {
	return &Bitmap{size: max(b.size, other.size), rb: roaring.And(b.rb, other.rb)}
}

// Or returns the bitwise OR of b and other.
func (b *Bitmap) Or(other *Bitmap) *Bitmap {
	return &Bitmap{size: max(b.size, other.size), rb: roaring.Or(b.rb, other.rb)}
}

// Xor returns the bitwise XOR of b and other.
func (b *Bitmap) Xor(other *Bitmap) *Bitmap {
	return &Bitmap{size: max(b.size, other.size), rb: roaring.Xor(b.rb, other.rb)}
}

// AndNot returns the set-difference b - other (bits set in b but not other).
func (b *Bitmap) AndNot(other *Bitmap) *Bitmap {
	return &Bitmap{size: max(b.size, other.size), rb: roaring.AndNot(b.rb, other.rb)}
}

// Not returns the complement of b over [0, size).
func (b *Bitmap) Not() *Bitmap {
	out := New(b.size)
	if b.size == 0 {
		return out
	}
	out.rb = roaring.Flip(b.rb, 0, uint64(b.size))
	return out
}

// IAnd intersects b with other in place.
func (b *Bitmap) IAnd(other *Bitmap) { b.rb.And(other.rb) }

// IOr unions other into b in place.
func (b *Bitmap) IOr(other *Bitmap) { b.rb.Or(other.rb) }

// IAndNot removes other's bits from b in place.
func (b *Bitmap) IAndNot(other *Bitmap) { b.rb.AndNot(other.rb) }

// AdjustSize pads or truncates b to exactly target bits, filling newly
// exposed bits with fill (true = all-ones pad, false = all-zeros pad).
func (b *Bitmap) AdjustSize(fill bool, target int) {
	if target < b.size {
		b.rb.RemoveRange(uint64(target), uint64(b.size))
		b.size = target
		return
	}
	if fill && target > b.size {
		r := roaring.New()
		r.AddRange(uint64(b.size), uint64(target))
		b.rb.Or(r)
	}
	b.size = target
}

// Run is a maximal contiguous range [Begin, End) of set bits.
type Run struct {
	Begin, End int
}

// IndexSet iterates the set bits of b as a sequence of runs. Contiguous
// runs are coalesced; an isolated set bit is reported as a run of length 1.
// Callers that want a pure index list can expand short runs themselves;
// callers that want I/O-efficient ranges use the runs directly.
func (b *Bitmap) IndexSet(yield func(Run) bool) {
	it := b.rb.Iterator()
	if !it.HasNext() {
		return
	}
	begin := it.Next()
	end := begin + 1
	for it.HasNext() {
		v := it.Next()
		if uint32(v) == end {
			end++
			continue
		}
		if !yield(Run{int(begin), int(end)}) {
			return
		}
		begin = v
		end = v + 1
	}
	yield(Run{int(begin), int(end)})
}

// Positions materializes every set bit as a slice of row indices. Prefer
// IndexSet for large bitmaps; this exists for callers needing random access
// (e.g. roster.Locate union-building).
func (b *Bitmap) Positions() []uint32 {
	return b.rb.ToArray()
}

const magic = "BMP1"

// Serialize writes b to w in a self-describing little-endian envelope:
// 4-byte magic, 8-byte size, roaring's native portable serialization.
func (b *Bitmap) Serialize(w io.Writer) error {
	if _, err := w.Write([]byte(magic)); err != nil {
		return fmt.Errorf("bitmap: write magic: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(b.size)); err != nil {
		return fmt.Errorf("bitmap: write size: %w", err)
	}
	if _, err := b.rb.WriteTo(w); err != nil {
		return fmt.Errorf("bitmap: write roaring payload: %w", err)
	}
	return nil
}

// Deserialize reads a bitmap previously written by Serialize.
func Deserialize(r io.Reader) (*Bitmap, error) {
	hdr := make([]byte, 4)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("bitmap: read magic: %w", err)
	}
	if !bytes.Equal(hdr, []byte(magic)) {
		return nil, fmt.Errorf("bitmap: bad magic %q", hdr)
	}
	var size uint64
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, fmt.Errorf("bitmap: read size: %w", err)
	}
	rb := roaring.New()
	if _, err := rb.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("bitmap: read roaring payload: %w", err)
	}
	return &Bitmap{size: int(size), rb: rb}, nil
}

// Bytes returns b serialized to a byte slice, used by callers that need to
// know the serialized length before writing (e.g. bindex's offset table).
func (b *Bitmap) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := b.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SizeInBytes returns the compressed byte size of the bitmap, the quantity
// column.SelectValues' seek-vs-gather cost heuristic is driven by.
func (b *Bitmap) SizeInBytes() int {
	return int(b.rb.GetSerializedSizeInBytes())
}
