package bord

import (
	"fmt"

	"github.com/Priyanshu23/bitdb/internal/sentinel"
)

// Cursor is bord's row cursor: curRow starts at -1 (before the first
// fetch) and walks the Table one row at a time. The GetColumnAsX family
// performs the safe widening conversions from internal/sentinel rather
// than a blind numeric cast, so a caller asking for a wider type than the
// column holds never silently truncates.
type Cursor struct {
	t      *Table
	curRow int64
}

// NewCursor returns a cursor positioned before the first row.
func NewCursor(t *Table) *Cursor {
	return &Cursor{t: t, curRow: -1}
}

// Fetch advances to the next row, returning 0 on success and -1 at EOF.
func (c *Cursor) Fetch() int {
	if c.curRow+1 >= int64(c.t.NRows()) {
		return -1
	}
	c.curRow++
	return 0
}

// FetchAt random-accesses row i, returning 0 on success and -1 if i is out
// of range.
func (c *Cursor) FetchAt(i int) int {
	if i < 0 || i >= c.t.NRows() {
		return -1
	}
	c.curRow = int64(i)
	return 0
}

// fetch is FetchAt with a Go-idiomatic error return, used internally by
// Table.Dump/Select which already know the row is in range.
func (c *Cursor) fetch(i int) error {
	if c.FetchAt(i) != 0 {
		return fmt.Errorf("bord: row %d out of range", i)
	}
	return nil
}

// CurRow reports the cursor's current row, or -1 before the first fetch.
func (c *Cursor) CurRow() int64 { return c.curRow }

func (c *Cursor) columnAt(name string) (Vector, error) {
	if c.curRow < 0 {
		return nil, fmt.Errorf("bord: cursor not positioned: call Fetch first")
	}
	return c.t.column(name)
}

// GetColumnAsInt64 widens the named column's current-row value into an
// int64, per the signed-widening matrix (byte/short/int/long -> int64).
// It returns sentinel.ErrNarrowing if the column is unsigned, text, or a
// float type.
func (c *Cursor) GetColumnAsInt64(name string) (int64, error) {
	v, err := c.columnAt(name)
	if err != nil {
		return 0, err
	}
	f, ok := v.Float64At(int(c.curRow))
	if !ok {
		return 0, fmt.Errorf("%w: %s is not numeric", sentinel.ErrNarrowing, name)
	}
	return sentinel.WidenInt64(v.Type(), int64(f))
}

// GetColumnAsUint64 widens the named column's current-row value into a
// uint64, per the unsigned-widening matrix (ubyte/ushort/uint/ulong/
// category -> uint64).
func (c *Cursor) GetColumnAsUint64(name string) (uint64, error) {
	v, err := c.columnAt(name)
	if err != nil {
		return 0, err
	}
	f, ok := v.Float64At(int(c.curRow))
	if !ok {
		return 0, fmt.Errorf("%w: %s is not numeric", sentinel.ErrNarrowing, name)
	}
	return sentinel.WidenUint64(v.Type(), uint64(f))
}

// GetColumnAsFloat64 widens the named column's current-row value into a
// float64; every numeric type (signed, unsigned, or floating) converts
// here since float64 is the widest type in the closed enum.
func (c *Cursor) GetColumnAsFloat64(name string) (float64, error) {
	v, err := c.columnAt(name)
	if err != nil {
		return 0, err
	}
	f, ok := v.Float64At(int(c.curRow))
	if !ok {
		return 0, fmt.Errorf("%w: %s is not numeric", sentinel.ErrNarrowing, name)
	}
	return f, nil
}

// GetColumnAsString returns the named column's current-row value rendered
// as text; for a Text column this is the value itself, for a numeric
// column its decimal rendering.
func (c *Cursor) GetColumnAsString(name string) (string, error) {
	v, err := c.columnAt(name)
	if err != nil {
		return "", err
	}
	return v.StringAt(int(c.curRow)), nil
}
