package column

import (
	"fmt"
	"os"

	"github.com/Priyanshu23/bitdb/bitmap"
	"github.com/Priyanshu23/bitdb/internal/sentinel"
	"github.com/Priyanshu23/bitdb/typedarray"
)

// pageSize approximates the OS page size used in the mmap-vs-seek cost
// heuristic below.
const pageSize = 4096

// SelectValues materializes the column's values under mask. T's width must
// equal c.Type's fixed element width; callers that need a widening
// conversion should use the typed Select* wrappers instead.
//
// Behavior:
//  1. mask.Cnt() == mask.Size(): bulk read the whole file.
//  2. Otherwise choose between an in-memory gather (mmap the whole file)
//     and seek+read per run, based on the estimated I/O volume of each.
//  3. Iterate the mask's index set; for a run, one read of (b-a)*sizeof(T)
//     bytes at a*sizeof(T); for not-yet-coalesced sparse indices, per-index
//     seek+read (IndexSet already coalesces runs, so this degenerates to
//     "per run" in this implementation, still O(compressed mask size)).
//  4. Short files are tolerated: missing tail rows are silently absent.
func SelectValues[T typedarray.Numeric](c *Column, mask *bitmap.Bitmap) ([]T, error) {
	vals, _, err := selectValuesImpl[T](c, mask, false)
	return vals, err
}

// SelectValuesWithRowIDs is SelectValues plus the row id each value came
// from.
func SelectValuesWithRowIDs[T typedarray.Numeric](c *Column, mask *bitmap.Bitmap) ([]T, []int, error) {
	return selectValuesImpl[T](c, mask, true)
}

func selectValuesImpl[T typedarray.Numeric](c *Column, mask *bitmap.Bitmap, wantRowIDs bool) ([]T, []int, error) {
	if sentinel.ElementSize(c.Type) != typedarray.Elem[T]() {
		return nil, nil, fmt.Errorf("%w: column %s is %s, width mismatch with requested type", ErrTypeMismatch, c.Name, c.Type)
	}

	if mask.Size() != c.NRows() {
		return nil, nil, fmt.Errorf("column: mask size %d does not match partition row count %d", mask.Size(), c.NRows())
	}

	path := c.DataFileName()

	if mask.Cnt() == mask.Size() {
		arr, err := typedarray.ReadFile[T](path)
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		if err != nil {
			return nil, nil, fmt.Errorf("column: select values: %w", err)
		}
		vals := arr.Slice()
		var rowIDs []int
		if wantRowIDs {
			rowIDs = make([]int, len(vals))
			for i := range rowIDs {
				rowIDs[i] = i
			}
		}
		return vals, rowIDs, nil
	}

	// Bytes touched by per-run seeks is roughly 2 * mask.bytes()/4 *
	// pagesize; when that exceeds the cost of gathering from a full
	// in-memory map of the file, the map is cheaper.
	width := typedarray.Elem[T]()
	useMmap := 2*(mask.SizeInBytes()/4)*pageSize > mask.Size()*width

	var vals []T
	var rowIDs []int

	if useMmap {
		arr, err := typedarray.OpenMmap[T](path)
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		if err != nil {
			return nil, nil, fmt.Errorf("column: select values (mmap): %w", err)
		}
		defer arr.Close()

		mask.IndexSet(func(r bitmap.Run) bool {
			for i := r.Begin; i < r.End; i++ {
				if i >= arr.Len() {
					return false // past EOF: treat remainder as absent
				}
				vals = append(vals, arr.At(i))
				if wantRowIDs {
					rowIDs = append(rowIDs, i)
				}
			}
			return true
		})
		return vals, rowIDs, nil
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("column: select values (seek): %w", err)
	}
	defer f.Close()

	mask.IndexSet(func(r bitmap.Run) bool {
		arr, rerr := typedarray.ReadRange[T](f, r.Begin, r.End-r.Begin)
		if rerr != nil {
			err = rerr
			return false
		}
		got := arr.Slice()
		vals = append(vals, got...)
		if wantRowIDs {
			for i := 0; i < len(got); i++ {
				rowIDs = append(rowIDs, r.Begin+i)
			}
		}
		return len(got) == r.End-r.Begin // stop at first short read (EOF)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("column: select values (seek): %w", err)
	}

	return vals, rowIDs, nil
}

// widenAllowed implements the narrowing/widening rule shared by the typed
// convenience wrappers: narrower signed to wider signed, narrower unsigned
// to wider unsigned or a signed type of at least twice the width. Same-type
// "widening" (identity) is always allowed. Narrowing is never allowed.
func widenAllowed(src, dst sentinel.Type) bool {
	if src == dst {
		return true
	}
	srcW, dstW := sentinel.ElementSize(src), sentinel.ElementSize(dst)
	srcSigned := isSigned(src)
	dstSigned := isSigned(dst)

	switch {
	case srcSigned && dstSigned:
		return dstW >= srcW
	case !srcSigned && !dstSigned:
		return dstW >= srcW
	case !srcSigned && dstSigned:
		return sentinel.CanWidenUnsignedToSigned(srcW, dstW)
	default: // signed -> unsigned is never a safe widening
		return false
	}
}

func isSigned(t sentinel.Type) bool {
	switch t {
	case sentinel.Byte, sentinel.Short, sentinel.Int, sentinel.Long:
		return true
	default:
		return false
	}
}

// SelectInts returns the column's values widened to int32. It returns
// ErrTypeMismatch if c.Type cannot be safely widened to Int. A Category
// column's 4-byte codes are returned as int32.
func (c *Column) SelectInts(mask *bitmap.Bitmap) ([]int32, error) {
	if c.Type != sentinel.Category && !widenAllowed(c.Type, sentinel.Int) {
		return nil, fmt.Errorf("%w: cannot widen %s to int", ErrTypeMismatch, c.Type)
	}
	switch c.Type {
	case sentinel.Int, sentinel.Category:
		return SelectValues[int32](c, mask)
	case sentinel.Byte:
		raw, err := SelectValues[int8](c, mask)
		return widen(raw, func(v int8) int32 { return int32(v) }), err
	case sentinel.UByte:
		raw, err := SelectValues[uint8](c, mask)
		return widen(raw, func(v uint8) int32 { return int32(v) }), err
	case sentinel.Short:
		raw, err := SelectValues[int16](c, mask)
		return widen(raw, func(v int16) int32 { return int32(v) }), err
	case sentinel.UShort:
		raw, err := SelectValues[uint16](c, mask)
		return widen(raw, func(v uint16) int32 { return int32(v) }), err
	default:
		return nil, fmt.Errorf("%w: cannot widen %s to int", ErrTypeMismatch, c.Type)
	}
}

// SelectLongs returns the column's values widened to int64.
func (c *Column) SelectLongs(mask *bitmap.Bitmap) ([]int64, error) {
	switch c.Type {
	case sentinel.Long:
		return SelectValues[int64](c, mask)
	case sentinel.Byte, sentinel.Short, sentinel.Int, sentinel.Category:
		ints, err := c.SelectInts(mask)
		return widen(ints, func(v int32) int64 { return int64(v) }), err
	case sentinel.UByte, sentinel.UShort, sentinel.UInt:
		us, err := c.SelectUInts(mask)
		return widen(us, func(v uint32) int64 { return int64(v) }), err
	default:
		return nil, fmt.Errorf("%w: cannot widen %s to long", ErrTypeMismatch, c.Type)
	}
}

// SelectUInts returns the column's values widened to uint32.
func (c *Column) SelectUInts(mask *bitmap.Bitmap) ([]uint32, error) {
	switch c.Type {
	case sentinel.UInt:
		return SelectValues[uint32](c, mask)
	case sentinel.UByte:
		raw, err := SelectValues[uint8](c, mask)
		return widen(raw, func(v uint8) uint32 { return uint32(v) }), err
	case sentinel.UShort:
		raw, err := SelectValues[uint16](c, mask)
		return widen(raw, func(v uint16) uint32 { return uint32(v) }), err
	default:
		return nil, fmt.Errorf("%w: cannot widen %s to uint", ErrTypeMismatch, c.Type)
	}
}

// SelectDoubles returns the column's values widened to float64. Integer
// columns are converted exactly (within float64's 53-bit mantissa for
// values up to 2^53); Float32 columns are widened per IEEE 754 rules.
func (c *Column) SelectDoubles(mask *bitmap.Bitmap) ([]float64, error) {
	return selectAsFloat64(c, mask)
}

// SelectBytes returns the column's raw bytes. Only valid on a Byte column:
// Byte is the narrowest signed type, so no widening is possible into it.
func (c *Column) SelectBytes(mask *bitmap.Bitmap) ([]int8, error) {
	if c.Type != sentinel.Byte {
		return nil, fmt.Errorf("%w: SelectBytes requires a Byte column, got %s", ErrTypeMismatch, c.Type)
	}
	return SelectValues[int8](c, mask)
}

// SelectUBytes returns the column's raw unsigned bytes.
func (c *Column) SelectUBytes(mask *bitmap.Bitmap) ([]uint8, error) {
	if c.Type != sentinel.UByte {
		return nil, fmt.Errorf("%w: SelectUBytes requires a UByte column, got %s", ErrTypeMismatch, c.Type)
	}
	return SelectValues[uint8](c, mask)
}

// SelectFloats returns the column's raw float32 values. Widening a
// Float into this is the identity; anything else is narrowing/unsupported.
func (c *Column) SelectFloats(mask *bitmap.Bitmap) ([]float32, error) {
	if c.Type != sentinel.Float {
		return nil, fmt.Errorf("%w: SelectFloats requires a Float column, got %s", ErrTypeMismatch, c.Type)
	}
	return SelectValues[float32](c, mask)
}
