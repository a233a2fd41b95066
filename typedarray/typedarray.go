// Package typedarray provides a typed view over a byte storage: reading a
// whole file into memory, reading a sub-range from an open descriptor,
// element access, sort-with-permutation, binary-search find under a
// permutation, truncate, swap, and nosharing (force an owned copy before
// mutation). All typed reads from disk in the column package go through
// this package.
//
// Numeric is parameterized once over every fixed-width element type rather
// than hand-duplicated per type; the only per-type code is the byte-order
// decode, where the algorithm genuinely differs.
package typedarray

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"unsafe"

	"golang.org/x/exp/mmap"
)

// Numeric is the set of fixed-width element types typedarray can hold.
type Numeric interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

// Array is a typed view over a byte storage. It keeps no reference count
// of that storage. An Array marked shared (as OpenMmap's are) gets a
// private copy from Nosharing before in-place mutation.
type Array[T Numeric] struct {
	data   []T
	shared bool   // true if data aliases storage this Array does not own
	ra     *mmap.ReaderAt
}

// Elem returns the fixed byte width of T.
func Elem[T Numeric]() int {
	var z T
	return int(unsafe.Sizeof(z))
}

// New wraps an in-memory slice directly, without copying it; the Array is
// not marked shared.
func New[T Numeric](data []T) *Array[T] {
	return &Array[T]{data: data}
}

// ReadFile loads the entire file at path into memory as a typed array.
func ReadFile[T Numeric](path string) (*Array[T], error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("typedarray: read %s: %w", path, err)
	}
	return &Array[T]{data: bytesToTyped[T](raw)}, nil
}

// OpenMmap memory-maps path read-only and decodes the whole mapping into a
// newly allocated slice; the Array is marked shared and keeps the mapping
// open until Close.
func OpenMmap[T Numeric](path string) (*Array[T], error) {
	ra, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("typedarray: mmap open %s: %w", path, err)
	}
	n := ra.Len() / Elem[T]()
	buf := make([]byte, n*Elem[T]())
	if _, err := ra.ReadAt(buf, 0); err != nil && err != io.EOF {
		ra.Close()
		return nil, fmt.Errorf("typedarray: mmap read %s: %w", path, err)
	}
	return &Array[T]{data: bytesToTyped[T](buf), shared: true, ra: ra}, nil
}

// ReadRange reads count elements starting at element offset start from an
// open file descriptor in one I/O, the shape of column.SelectValues'
// per-run reads.
func ReadRange[T Numeric](f *os.File, start, count int) (*Array[T], error) {
	width := Elem[T]()
	buf := make([]byte, count*width)
	n, err := f.ReadAt(buf, int64(start)*int64(width))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("typedarray: read range: %w", err)
	}
	// Short reads (column shorter than expected) are tolerated: the caller
	// treats missing tail values as absent via the null mask.
	buf = buf[:n-(n%width)]
	return &Array[T]{data: bytesToTyped[T](buf)}, nil
}

func bytesToTyped[T Numeric](raw []byte) []T {
	width := Elem[T]()
	n := len(raw) / width
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = decodeElem[T](raw[i*width : (i+1)*width])
	}
	return out
}

func decodeElem[T Numeric](b []byte) T {
	var z T
	switch any(z).(type) {
	case int8:
		return any(int8(b[0])).(T)
	case uint8:
		return any(b[0]).(T)
	case int16:
		return any(int16(binary.LittleEndian.Uint16(b))).(T)
	case uint16:
		return any(binary.LittleEndian.Uint16(b)).(T)
	case int32:
		return any(int32(binary.LittleEndian.Uint32(b))).(T)
	case uint32:
		return any(binary.LittleEndian.Uint32(b)).(T)
	case int64:
		return any(int64(binary.LittleEndian.Uint64(b))).(T)
	case uint64:
		return any(binary.LittleEndian.Uint64(b)).(T)
	case float32:
		return any(math.Float32frombits(binary.LittleEndian.Uint32(b))).(T)
	case float64:
		return any(math.Float64frombits(binary.LittleEndian.Uint64(b))).(T)
	}
	panic("typedarray: unsupported element type")
}

// Len returns the number of elements.
func (a *Array[T]) Len() int { return len(a.data) }

// At returns element i.
func (a *Array[T]) At(i int) T { return a.data[i] }

// Slice returns the underlying slice (read-only contract: callers must not
// mutate a shared array without first calling Nosharing).
func (a *Array[T]) Slice() []T { return a.data }

// Nosharing forces a private owned copy of the data if this array currently
// aliases shared storage (e.g. an mmap region).
func (a *Array[T]) Nosharing() {
	if !a.shared {
		return
	}
	cp := make([]T, len(a.data))
	copy(cp, a.data)
	a.data = cp
	a.shared = false
}

// Close releases the mmap handle, if any. It never closes a file descriptor
// the Array did not open itself.
func (a *Array[T]) Close() error {
	if a.ra != nil {
		return a.ra.Close()
	}
	return nil
}

// Swap exchanges elements i and j. Callers must call Nosharing first if the
// array may alias shared storage.
func (a *Array[T]) Swap(i, j int) { a.data[i], a.data[j] = a.data[j], a.data[i] }

// Truncate retains the first keep elements, optionally skipping the first
// start elements.
func (a *Array[T]) Truncate(keep int, start int) {
	a.Nosharing()
	end := start + keep
	if end > len(a.data) {
		end = len(a.data)
	}
	if start > end {
		start = end
	}
	a.data = a.data[start:end]
}

// Sort produces a permutation perm of [0, Len()) such that
// a.data[perm[i]] is non-decreasing, without reordering a.data itself.
func (a *Array[T]) Sort() []uint32 {
	perm := make([]uint32, len(a.data))
	for i := range perm {
		perm[i] = uint32(i)
	}
	sort.SliceStable(perm, func(i, j int) bool {
		return a.data[perm[i]] < a.data[perm[j]]
	})
	return perm
}

// Find performs a binary search for key within a.data as ordered by perm
// (perm must be a permutation produced by Sort or an equivalent ordering).
// It returns the index into perm of any matching element, or -1.
func (a *Array[T]) Find(perm []uint32, key T) int {
	lo, hi := 0, len(perm)
	for lo < hi {
		mid := (lo + hi) / 2
		v := a.data[perm[mid]]
		switch {
		case v < key:
			lo = mid + 1
		case v > key:
			hi = mid
		default:
			return mid
		}
	}
	return -1
}
