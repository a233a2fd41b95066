package column

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/Priyanshu23/bitdb/bindex"
	"github.com/Priyanshu23/bitdb/bitmap"
	"github.com/Priyanshu23/bitdb/internal/sentinel"
)

// Append copies srcDataFile and srcMaskFile onto this column's files,
// padding with this column's type-specific sentinel for any row in
// [nold, nold+nnew) not covered by the source. It updates the attached
// index if it can be safely extended, else removes any stale on-disk
// index and defers rebuild.
func (c *Column) Append(srcDataFile, srcMaskFile string, nold, nnew int) error {
	if err := appendDataFile(c.DataFileName(), srcDataFile, c.Type, nold, nnew); err != nil {
		return fmt.Errorf("column: append %s: %w", c.Name, err)
	}

	// Load the pre-append mask sized to nold explicitly, rather than via
	// GetNullMask's cache, since the caller may have already updated the
	// partition's row count by the time Append runs.
	oldMask, err := loadMask(c.NullMaskName(), nold)
	if err != nil {
		return err
	}

	var srcMask *bitmap.Bitmap
	if _, statErr := os.Stat(srcDataFile); os.IsNotExist(statErr) {
		// The source partition has no such column at all: every appended
		// row is absent, not merely unmasked.
		srcMask = bitmap.New(nnew)
	} else {
		srcMask, err = loadMask(srcMaskFile, nnew)
		if err != nil {
			return err
		}
	}

	merged := oldMask.Clone()
	merged.AdjustSize(false, nold+nnew)
	srcMask.IndexSet(func(r bitmap.Run) bool {
		for i := r.Begin; i < r.End; i++ {
			merged.Set(nold + i)
		}
		return true
	})
	if err := c.setNullMask(merged); err != nil {
		return err
	}

	appendErr := c.index.Mutate(func(idx *bindex.Index) error {
		_, err := idx.Append(bindexSource{c}, nnew)
		return err
	})
	if appendErr != nil {
		// best-effort: drop the stale index rather than propagate.
		_ = c.index.Unload()
		_ = os.Remove(filepath.Join(c.partition.CurrentDataDir(), c.Name+".idx"))
	}
	return nil
}

func appendDataFile(dstPath, srcPath string, typ sentinel.Type, nold, nnew int) error {
	width := sentinel.ElementSize(typ)
	if width == 0 {
		return fmt.Errorf("%w: Append does not support variable-length type %s", ErrTypeMismatch, typ)
	}

	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open dst: %w", err)
	}
	defer dst.Close()

	if _, err := dst.Seek(int64(nold)*int64(width), io.SeekStart); err != nil {
		return fmt.Errorf("seek dst: %w", err)
	}

	src, err := os.Open(srcPath)
	copied := 0
	if err == nil {
		defer src.Close()
		n, cerr := io.Copy(dst, io.LimitReader(src, int64(nnew)*int64(width)))
		if cerr != nil {
			return fmt.Errorf("copy: %w", cerr)
		}
		copied = int(n) / width
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("open src: %w", err)
	}

	if copied < nnew {
		pad, err := sentinelBytes(typ, nnew-copied)
		if err != nil {
			return err
		}
		if _, err := dst.Write(pad); err != nil {
			return fmt.Errorf("pad: %w", err)
		}
	}
	return dst.Sync()
}

// sentinelBytes returns count copies of typ's append-time sentinel value,
// little-endian encoded.
func sentinelBytes(typ sentinel.Type, count int) ([]byte, error) {
	width := sentinel.ElementSize(typ)
	out := make([]byte, 0, count*width)
	one := make([]byte, width)

	switch typ {
	case sentinel.Byte:
		one[0] = byte(sentinel.SentinelByte)
	case sentinel.UByte:
		one[0] = sentinel.SentinelUByte
	case sentinel.Short:
		putLE16(one, uint16(sentinel.SentinelShort))
	case sentinel.UShort:
		putLE16(one, sentinel.SentinelUShort)
	case sentinel.Int, sentinel.Category:
		putLE32(one, uint32(sentinel.SentinelInt))
	case sentinel.UInt:
		putLE32(one, sentinel.SentinelUInt)
	case sentinel.Long, sentinel.Oid:
		putLE64(one, uint64(sentinel.SentinelLong))
	case sentinel.ULong:
		putLE64(one, sentinel.SentinelULong)
	case sentinel.Float:
		putLE32(one, math.Float32bits(sentinel.SentinelFloat))
	case sentinel.Double:
		putLE64(one, math.Float64bits(sentinel.SentinelDouble))
	default:
		return nil, fmt.Errorf("%w: no append sentinel for type %s", ErrTypeMismatch, typ)
	}
	for i := 0; i < count; i++ {
		out = append(out, one...)
	}
	return out, nil
}

func putLE16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func putLE32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}
func putLE64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
