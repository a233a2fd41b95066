// Package bord implements the in-memory result table: a row count plus a
// list of in-memory columns, each a type tag over a typed colval.Col or
// string vector. Rather than a type-erased buffer pointer with a separate
// tag, each column is a Vector, one concrete implementation per element
// type (plus one for strings), so call sites dispatch through the
// interface instead of casting.
package bord

import (
	"fmt"
	"strconv"

	"github.com/Priyanshu23/bitdb/colval"
	"github.com/Priyanshu23/bitdb/internal/sentinel"
	"github.com/Priyanshu23/bitdb/typedarray"
)

// Vector is one in-memory column: a type tag plus the operations Table
// needs to drive groupby/orderby/limit/append without knowing the element
// type. Every concrete Vector also implements colval.Permuter, so a
// designated "driving" column's sort can carry every other column along in
// lockstep.
type Vector interface {
	Name() string
	Type() sentinel.Type
	Len() int
	Swap(i, j int)
	Less(i, j int) bool
	Truncate(keep, start int)
	Reorder(perm []uint32)
	PadSentinel(n int)
	AppendFrom(src Vector) error
	StringAt(i int) string
	Float64At(i int) (float64, bool)
	Clone() Vector
	ReduceOp(starts []int, op colval.Aggregator) Vector
	// Sort orders [begin, end) ascending, carrying any siblings along in
	// lockstep; it is the hook groupby's driving-key sort and any other
	// multi-column lockstep sort goes through.
	Sort(begin, end int, siblings ...colval.Permuter)
}

// numVector wraps a colval.Col[T] with its name/type tag.
type numVector[T typedarray.Numeric] struct {
	name string
	typ  sentinel.Type
	col  *colval.Col[T]
}

// NewNumeric wraps already-materialized values as a Vector.
func NewNumeric[T typedarray.Numeric](name string, typ sentinel.Type, values []T, rowIDs []int) Vector {
	return &numVector[T]{name: name, typ: typ, col: colval.New(values, rowIDs)}
}

func (v *numVector[T]) Name() string          { return v.name }
func (v *numVector[T]) Type() sentinel.Type   { return v.typ }
func (v *numVector[T]) Len() int              { return v.col.Len() }
func (v *numVector[T]) Swap(i, j int)         { v.col.Swap(i, j) }
func (v *numVector[T]) Less(i, j int) bool    { return v.col.Less(i, j) }
func (v *numVector[T]) Truncate(keep, s int)  { v.col.Truncate(keep, s) }
func (v *numVector[T]) Reorder(perm []uint32) { v.col.Reorder(perm) }

func (v *numVector[T]) PadSentinel(n int) {
	sentinelVal := numericSentinel[T](v.typ)
	vals := make([]T, n)
	for i := range vals {
		vals[i] = sentinelVal
	}
	padded := colval.New(append(append([]T(nil), v.col.Values()...), vals...), nil)
	v.col = padded
}

func (v *numVector[T]) AppendFrom(src Vector) error {
	other, ok := src.(*numVector[T])
	if !ok {
		return fmt.Errorf("bord: cannot append %s column onto %s column", src.Type(), v.typ)
	}
	merged := append(append([]T(nil), v.col.Values()...), other.col.Values()...)
	v.col = colval.New(merged, nil)
	return nil
}

func (v *numVector[T]) StringAt(i int) string {
	return strconv.FormatFloat(float64(v.col.At(i)), 'g', -1, 64)
}

func (v *numVector[T]) Float64At(i int) (float64, bool) { return float64(v.col.At(i)), true }

func (v *numVector[T]) Clone() Vector {
	return &numVector[T]{name: v.name, typ: v.typ, col: colval.New(append([]T(nil), v.col.Values()...), append([]int(nil), v.col.RowIDs()...))}
}

// Col exposes the underlying typed column for callers (e.g. groupby
// reduction) that know T statically.
func (v *numVector[T]) Col() *colval.Col[T] { return v.col }

func (v *numVector[T]) ReduceOp(starts []int, op colval.Aggregator) Vector {
	return &numVector[T]{name: v.name, typ: v.typ, col: colval.New(v.col.ReduceOp(starts, op), nil)}
}

func (v *numVector[T]) Sort(begin, end int, siblings ...colval.Permuter) {
	v.col.Sort(begin, end, siblings...)
}

func numericSentinel[T typedarray.Numeric](typ sentinel.Type) T {
	switch typ {
	case sentinel.Byte:
		return T(sentinel.SentinelByte)
	case sentinel.UByte:
		return T(sentinel.SentinelUByte)
	case sentinel.Short:
		return T(sentinel.SentinelShort)
	case sentinel.UShort:
		return T(sentinel.SentinelUShort)
	case sentinel.Int, sentinel.Category:
		return T(sentinel.SentinelInt)
	case sentinel.UInt:
		return T(sentinel.SentinelUInt)
	case sentinel.Long, sentinel.Oid:
		return T(sentinel.SentinelLong)
	case sentinel.ULong:
		return T(sentinel.SentinelULong)
	case sentinel.Float:
		return T(sentinel.SentinelFloat)
	case sentinel.Double:
		return T(sentinel.SentinelDouble)
	default:
		var zero T
		return zero
	}
}

// strVector wraps a colval.StringCol.
type strVector struct {
	name string
	col  *colval.StringCol
}

// NewString wraps already-materialized string values as a Vector.
func NewString(name string, values []string, rowIDs []int) Vector {
	return &strVector{name: name, col: colval.NewStringCol(values, rowIDs)}
}

func (v *strVector) Name() string          { return v.name }
func (v *strVector) Type() sentinel.Type   { return sentinel.Text }
func (v *strVector) Len() int              { return v.col.Len() }
func (v *strVector) Swap(i, j int)         { v.col.Swap(i, j) }
func (v *strVector) Less(i, j int) bool    { return v.col.Less(i, j) }
func (v *strVector) Truncate(keep, s int)  { v.col.Truncate(keep, s) }
func (v *strVector) Reorder(perm []uint32) { v.col.Reorder(perm) }

func (v *strVector) PadSentinel(n int) {
	blanks := make([]string, n)
	v.col = colval.NewStringCol(append(append([]string(nil), v.col.Values()...), blanks...), nil)
}

func (v *strVector) AppendFrom(src Vector) error {
	other, ok := src.(*strVector)
	if !ok {
		return fmt.Errorf("bord: cannot append %s column onto text column", src.Type())
	}
	merged := append(append([]string(nil), v.col.Values()...), other.col.Values()...)
	v.col = colval.NewStringCol(merged, nil)
	return nil
}

func (v *strVector) StringAt(i int) string           { return v.col.At(i) }
func (v *strVector) Float64At(i int) (float64, bool) { return 0, false }

func (v *strVector) Clone() Vector {
	return &strVector{name: v.name, col: colval.NewStringCol(append([]string(nil), v.col.Values()...), append([]int(nil), v.col.RowIDs()...))}
}

func (v *strVector) Col() *colval.StringCol { return v.col }

func (v *strVector) ReduceOp(starts []int, op colval.Aggregator) Vector {
	return &strVector{name: v.name, col: colval.NewStringCol(v.col.ReduceOp(starts, op), nil)}
}

func (v *strVector) Sort(begin, end int, siblings ...colval.Permuter) {
	v.col.Sort(begin, end, siblings...)
}
