package column

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/Priyanshu23/bitdb/bitmap"
	"github.com/Priyanshu23/bitdb/internal/sentinel"
)

// SelectStrings materializes a Text column's values under mask. The raw
// file holds null-terminated strings concatenated; "<col>.sp" holds N+1
// 8-byte offsets into it.
func (c *Column) SelectStrings(mask *bitmap.Bitmap) ([]string, error) {
	if c.Type != sentinel.Text {
		return nil, fmt.Errorf("%w: SelectStrings requires a Text column, got %s", ErrTypeMismatch, c.Type)
	}
	if mask.Size() != c.NRows() {
		return nil, fmt.Errorf("column: mask size %d does not match partition row count %d", mask.Size(), c.NRows())
	}

	spPath := c.DataFileName() + ".sp"
	offsets, err := readOffsets(spPath, c.NRows())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(c.DataFileName())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("column: select strings: %w", err)
	}

	var out []string
	mask.IndexSet(func(r bitmap.Run) bool {
		for i := r.Begin; i < r.End; i++ {
			if i+1 >= len(offsets) {
				return false
			}
			start, end := offsets[i], offsets[i+1]
			if end > int64(len(data)) {
				return false
			}
			out = append(out, string(data[start:end-1])) // drop trailing NUL
		}
		return true
	})
	return out, nil
}

func readOffsets(path string, n int) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	offsets := make([]int64, n+1)
	if err := binary.Read(f, binary.LittleEndian, &offsets); err != nil {
		return nil, fmt.Errorf("column: read string offsets %s: %w", path, err)
	}
	return offsets, nil
}
