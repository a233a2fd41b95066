// Package sentinel defines the closed set of element types a column can
// hold, their fixed byte widths, their append-time sentinel values, and the
// safe-widening conversion matrix shared by column.SelectBytes/... and
// bord's cursor getColumnAsX helpers.
package sentinel

import (
	"fmt"
	"math"
)

// Type is the closed enum of element types a Column may hold.
type Type uint8

const (
	Unknown Type = iota
	Byte
	UByte
	Short
	UShort
	Int
	UInt
	Long
	ULong
	Float
	Double
	Category
	Text
	Oid
)

func (t Type) String() string {
	switch t {
	case Byte:
		return "byte"
	case UByte:
		return "ubyte"
	case Short:
		return "short"
	case UShort:
		return "ushort"
	case Int:
		return "int"
	case UInt:
		return "uint"
	case Long:
		return "long"
	case ULong:
		return "ulong"
	case Float:
		return "float"
	case Double:
		return "double"
	case Category:
		return "category"
	case Text:
		return "text"
	case Oid:
		return "oid"
	default:
		return "unknown"
	}
}

// ElementSize returns the fixed on-disk width of t, or 0 for variable-length
// types (Text) where width is not meaningful.
func ElementSize(t Type) int {
	switch t {
	case Byte, UByte:
		return 1
	case Short, UShort:
		return 2
	case Int, UInt, Float, Category:
		return 4
	case Long, ULong, Double, Oid:
		return 8
	default:
		return 0
	}
}

// Sentinel values written into appended rows that have no source value.
// The null-mask bit is always cleared for these rows regardless; the
// sentinel only exists for readers that ignore masks.
var (
	SentinelByte   int8    = 0x7F
	SentinelUByte  uint8   = 0xFF
	SentinelShort  int16   = 0x7FFF
	SentinelUShort uint16  = 0xFFFF
	SentinelInt    int32   = 0x7FFFFFFF
	SentinelUInt   uint32  = 0xFFFFFFFF
	SentinelLong   int64   = 0x7FFFFFFFFFFFFFFF
	SentinelULong  uint64  = 0xFFFFFFFFFFFFFFFF
	SentinelFloat  float32 = float32(math.NaN())
	SentinelDouble float64 = math.NaN()
)

// ErrNarrowing is returned by widening helpers when the source type cannot
// be converted to the requested destination without loss, including a
// source whose signedness does not match the destination's.
var ErrNarrowing = fmt.Errorf("sentinel: narrowing conversion not permitted")

// WidenInt64 safely widens a signed integer of the given source width into
// an int64. It never loses information since int64 is the widest signed
// type in the closed enum.
func WidenInt64(t Type, raw int64) (int64, error) {
	switch t {
	case Byte, Short, Int, Long:
		return raw, nil
	default:
		return 0, fmt.Errorf("%w: %s is not signed", ErrNarrowing, t)
	}
}

// WidenUint64 safely widens an unsigned integer of the given source width
// into a uint64.
func WidenUint64(t Type, raw uint64) (uint64, error) {
	switch t {
	case UByte, UShort, UInt, ULong, Category:
		return raw, nil
	default:
		return 0, fmt.Errorf("%w: %s is not unsigned", ErrNarrowing, t)
	}
}

// CanWidenUnsignedToSigned reports whether an unsigned value of width
// srcBytes can always be represented exactly as a signed value of width
// dstBytes, i.e. dstBytes >= 2*srcBytes (the source's full unsigned range
// fits below the destination's signed max).
func CanWidenUnsignedToSigned(srcBytes, dstBytes int) bool {
	return dstBytes >= 2*srcBytes
}
