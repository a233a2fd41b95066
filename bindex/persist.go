package bindex

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Priyanshu23/bitdb/bitmap"
)

// offsetWidth64Threshold is the total expected file size at or above which
// the writer reserves 8-byte offsets instead of 4-byte ones.
const offsetWidth64Threshold = 2 << 30 // 2 GiB

// Write persists the index to <dir>/<name>.idx: 8-byte magic header,
// nrows, nobs, the offset table, the bit vectors packed back to back, then
// the sorted key trailer. Every bitmap is serialized up front so the
// offset width and the full table are known before any payload is
// streamed, avoiding a seek-back patch pass.
func (ix *Index) Write(dir, name string) error {
	path := filepath.Join(dir, name+".idx")
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("bindex: create %s: %w", tmp, err)
	}
	defer func() {
		f.Close()
		os.Remove(tmp) // no-op once renamed; cleans up on any early return
	}()

	nobs := len(ix.keys)

	// First serialize every bitmap to know the total size, so the offset
	// width can be decided up front.
	payloads := make([][]byte, nobs)
	total := 0
	for i, b := range ix.bits {
		if b == nil {
			b, err = ix.activate(i)
			if err != nil {
				return err
			}
		}
		raw, err := b.Bytes()
		if err != nil {
			return fmt.Errorf("bindex: serialize bucket %d: %w", i, err)
		}
		payloads[i] = raw
		total += len(raw)
	}

	offsetWidth := 4
	headerSize := 8 + 4 + 4 + (nobs+1)*offsetWidth
	if headerSize+total >= offsetWidth64Threshold {
		offsetWidth = 8
		headerSize = 8 + 4 + 4 + (nobs+1)*offsetWidth
	}

	if err := writeHeader(f, FlavorRange, offsetWidth, ix.nrows, nobs); err != nil {
		return err
	}

	offsets := make([]int64, nobs+1)
	offsets[0] = int64(headerSize)
	for i, raw := range payloads {
		offsets[i+1] = offsets[i] + int64(len(raw))
	}

	if err := writeOffsetTable(f, offsetWidth, offsets); err != nil {
		return err
	}

	for _, raw := range payloads {
		if _, err := f.Write(raw); err != nil {
			return fmt.Errorf("bindex: write bucket payload: %w", err)
		}
	}

	if err := writeTrailer(f, ix.keys); err != nil {
		return err
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("bindex: sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("bindex: close: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("bindex: rename into place: %w", err)
	}

	ix.path = path
	ix.offsets = offsets
	return nil
}

func writeHeader(f *os.File, flavor Flavor, offsetWidth, nrows, nobs int) error {
	hdr := []byte{magic0, magic1, magic2, magic3, magic4, magic5, byte(flavor), byte(offsetWidth)}
	if _, err := f.Write(hdr); err != nil {
		return fmt.Errorf("bindex: write header: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(nrows)); err != nil {
		return fmt.Errorf("bindex: write nrows: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(nobs)); err != nil {
		return fmt.Errorf("bindex: write nobs: %w", err)
	}
	return nil
}

func writeOffsetTable(f *os.File, width int, offsets []int64) error {
	for _, o := range offsets {
		if width == 4 {
			if err := binary.Write(f, binary.LittleEndian, uint32(o)); err != nil {
				return fmt.Errorf("bindex: write offset: %w", err)
			}
		} else {
			if err := binary.Write(f, binary.LittleEndian, uint64(o)); err != nil {
				return fmt.Errorf("bindex: write offset: %w", err)
			}
		}
	}
	return nil
}

func writeTrailer(f *os.File, keys []float64) error {
	if err := binary.Write(f, binary.LittleEndian, uint32(len(keys))); err != nil {
		return fmt.Errorf("bindex: write trailer count: %w", err)
	}
	for _, k := range keys {
		if err := binary.Write(f, binary.LittleEndian, k); err != nil {
			return fmt.Errorf("bindex: write trailer key: %w", err)
		}
	}
	return nil
}

// Read opens <dir>/<name>.idx, validates the header, and loads the offset
// table and key trailer. Bit vectors are NOT materialized here; they are
// lazily activated on first touch via activate.
func Read(dir, name string, expectedNRows int) (*Index, error) {
	path := filepath.Join(dir, name+".idx")

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bindex: open %s: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("bindex: stat %s: %w", path, err)
	}
	if fi.Size() == 0 {
		return nil, ErrNoIndex
	}

	hdr := make([]byte, 8)
	if _, err := f.ReadAt(hdr, 0); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrCorrupt, err)
	}
	if hdr[0] != magic0 || hdr[1] != magic1 || hdr[2] != magic2 || hdr[3] != magic3 || hdr[4] != magic4 || hdr[5] != magic5 {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	offsetWidth := int(hdr[7])
	if offsetWidth != 4 && offsetWidth != 8 {
		return nil, fmt.Errorf("%w: bad offset width %d", ErrCorrupt, offsetWidth)
	}

	var nrows, nobs uint32
	if err := readAt(f, 8, binary.LittleEndian, &nrows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := readAt(f, 12, binary.LittleEndian, &nobs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	if expectedNRows >= 0 && int(nrows) != expectedNRows {
		return nil, ErrStale
	}

	offsets := make([]int64, nobs+1)
	base := int64(16)
	for i := range offsets {
		if offsetWidth == 4 {
			var o uint32
			if err := readAt(f, base+int64(i)*4, binary.LittleEndian, &o); err != nil {
				return nil, fmt.Errorf("%w: offset table: %v", ErrCorrupt, err)
			}
			offsets[i] = int64(o)
		} else {
			var o uint64
			if err := readAt(f, base+int64(i)*8, binary.LittleEndian, &o); err != nil {
				return nil, fmt.Errorf("%w: offset table: %v", ErrCorrupt, err)
			}
			offsets[i] = int64(o)
		}
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] {
			return nil, fmt.Errorf("%w: offsets not non-decreasing", ErrCorrupt)
		}
	}

	trailerOff := offsets[len(offsets)-1]
	var nkeys uint32
	if err := readAt(f, trailerOff, binary.LittleEndian, &nkeys); err != nil {
		return nil, fmt.Errorf("%w: trailer: %v", ErrCorrupt, err)
	}
	keys := make([]float64, nkeys)
	keyBase := trailerOff + 4
	for i := range keys {
		if err := readAt(f, keyBase+int64(i)*8, binary.LittleEndian, &keys[i]); err != nil {
			return nil, fmt.Errorf("%w: trailer keys: %v", ErrCorrupt, err)
		}
	}
	if int(nobs) != len(keys) {
		return nil, fmt.Errorf("%w: nobs/trailer mismatch", ErrCorrupt)
	}

	return &Index{
		nrows:   int(nrows),
		keys:    keys,
		bits:    make([]*bitmap.Bitmap, nobs),
		path:    path,
		offsets: offsets,
		state:   Loaded,
	}, nil
}

func readAt[T any](f *os.File, off int64, order binary.ByteOrder, out *T) error {
	sr := &sectionReader{f: f, off: off}
	return binary.Read(sr, order, out)
}

// sectionReader is a tiny io.Reader over a fixed file offset, advancing as
// it is read; used instead of repeated Seek+Read pairs.
type sectionReader struct {
	f   *os.File
	off int64
}

func (s *sectionReader) Read(p []byte) (int, error) {
	n, err := s.f.ReadAt(p, s.off)
	s.off += int64(n)
	return n, err
}

// activate lazily materializes bucket i, seeking to offset[i] and reading
// offset[i+1]-offset[i] bytes.
func (ix *Index) activate(i int) (*bitmap.Bitmap, error) {
	if ix.bits[i] != nil {
		return ix.bits[i], nil
	}
	if ix.path == "" {
		return nil, fmt.Errorf("bindex: bucket %d not in memory and index not backed by a file", i)
	}

	f, err := os.Open(ix.path)
	if err != nil {
		return nil, fmt.Errorf("bindex: activate: open: %w", err)
	}
	defer f.Close()

	start, end := ix.offsets[i], ix.offsets[i+1]
	buf := make([]byte, end-start)
	if _, err := f.ReadAt(buf, start); err != nil {
		return nil, fmt.Errorf("bindex: activate: read: %w", err)
	}

	b, err := bitmap.Deserialize(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("bindex: activate: decode: %w", err)
	}
	ix.bits[i] = b
	return b, nil
}
