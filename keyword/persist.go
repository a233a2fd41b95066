package keyword

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Priyanshu23/bitdb/bitmap"
)

// flavorKeyword identifies this package's on-disk flavor byte in the
// shared index header; the range flavor (bindex.FlavorRange) uses 1, so
// keyword claims 2.
const flavorKeyword = 2

const (
	magic0 = '#'
	magic1 = 'I'
	magic2 = 'B'
	magic3 = 'I'
	magic4 = 'S'
	magic5 = 0x07
)

const offsetWidth64Threshold = 2 << 30

// Write persists the dictionary to <dir>/<name>.terms (length-prefixed
// records in insertion order) and the bitmaps to <dir>/<name>.idx using
// the same header+offset-table envelope as bindex, minus any key trailer
// (the dictionary carries the term identities instead).
func (ix *Index) Write(dir, name string) error {
	if err := ix.writeTerms(dir, name); err != nil {
		return err
	}
	return ix.writeBitmaps(dir, name)
}

func (ix *Index) writeTerms(dir, name string) error {
	path := filepath.Join(dir, name+".terms")
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("keyword: create %s: %w", tmp, err)
	}
	defer func() {
		f.Close()
		os.Remove(tmp)
	}()
	for _, term := range ix.dict.terms() {
		if err := binary.Write(f, binary.LittleEndian, uint32(len(term))); err != nil {
			return fmt.Errorf("keyword: write term length: %w", err)
		}
		if _, err := f.WriteString(term); err != nil {
			return fmt.Errorf("keyword: write term: %w", err)
		}
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("keyword: sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("keyword: close %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

func (ix *Index) writeBitmaps(dir, name string) error {
	path := filepath.Join(dir, name+".idx")
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("keyword: create %s: %w", tmp, err)
	}
	defer func() {
		f.Close()
		os.Remove(tmp)
	}()

	nobs := len(ix.bits)
	payloads := make([][]byte, nobs)
	total := 0
	for i, b := range ix.bits {
		raw, err := b.Bytes()
		if err != nil {
			return fmt.Errorf("keyword: serialize bucket %d: %w", i, err)
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

	hdr := []byte{magic0, magic1, magic2, magic3, magic4, magic5, flavorKeyword, byte(offsetWidth)}
	if _, err := f.Write(hdr); err != nil {
		return fmt.Errorf("keyword: write header: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(ix.nrows)); err != nil {
		return fmt.Errorf("keyword: write nrows: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(nobs)); err != nil {
		return fmt.Errorf("keyword: write nobs: %w", err)
	}

	offsets := make([]int64, nobs+1)
	offsets[0] = int64(headerSize)
	for i, raw := range payloads {
		offsets[i+1] = offsets[i] + int64(len(raw))
	}
	for _, o := range offsets {
		if offsetWidth == 4 {
			if err := binary.Write(f, binary.LittleEndian, uint32(o)); err != nil {
				return fmt.Errorf("keyword: write offset: %w", err)
			}
		} else {
			if err := binary.Write(f, binary.LittleEndian, uint64(o)); err != nil {
				return fmt.Errorf("keyword: write offset: %w", err)
			}
		}
	}

	for _, raw := range payloads {
		if _, err := f.Write(raw); err != nil {
			return fmt.Errorf("keyword: write bucket payload: %w", err)
		}
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("keyword: sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("keyword: close %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

// Read loads a keyword index previously written with Write, validating
// header and offsets identically to bindex.Read; a stale or corrupt file
// leaves the caller to rebuild from the text column.
func Read(dir, name string, expectedNRows int) (*Index, error) {
	dict, err := readTerms(dir, name)
	if err != nil {
		return nil, err
	}
	ix, err := readBitmaps(dir, name, expectedNRows)
	if err != nil {
		return nil, err
	}
	ix.dict = dict
	ix.buildFilter()
	return ix, nil
}

func readTerms(dir, name string) (*dictionary, error) {
	path := filepath.Join(dir, name+".terms")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keyword: read %s: %w", path, err)
	}
	d := newDictionary()
	pos := 0
	for pos < len(data) {
		if pos+4 > len(data) {
			return nil, fmt.Errorf("%w: truncated term length in %s", ErrCorrupt, path)
		}
		l := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if pos+l > len(data) {
			return nil, fmt.Errorf("%w: truncated term bytes in %s", ErrCorrupt, path)
		}
		term := string(data[pos : pos+l])
		pos += l
		d.intern(term)
	}
	return d, nil
}

func readBitmaps(dir, name string, expectedNRows int) (*Index, error) {
	path := filepath.Join(dir, name+".idx")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("keyword: open %s: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() == 0 {
		return nil, ErrNoIndex
	}

	hdr := make([]byte, 8)
	if _, err := f.ReadAt(hdr, 0); err != nil {
		return nil, fmt.Errorf("%w: short header in %s", ErrCorrupt, path)
	}
	if hdr[0] != magic0 || hdr[1] != magic1 || hdr[2] != magic2 || hdr[3] != magic3 || hdr[4] != magic4 || hdr[5] != magic5 {
		return nil, fmt.Errorf("%w: bad magic in %s", ErrCorrupt, path)
	}
	if hdr[6] != flavorKeyword {
		return nil, fmt.Errorf("%w: unexpected flavor byte in %s", ErrCorrupt, path)
	}
	offsetWidth := int(hdr[7])
	if offsetWidth != 4 && offsetWidth != 8 {
		return nil, fmt.Errorf("%w: bad offset width in %s", ErrCorrupt, path)
	}

	nrowsBuf := make([]byte, 4)
	if _, err := f.ReadAt(nrowsBuf, 8); err != nil {
		return nil, fmt.Errorf("%w: short nrows in %s", ErrCorrupt, path)
	}
	nrows := int(binary.LittleEndian.Uint32(nrowsBuf))

	nobsBuf := make([]byte, 4)
	if _, err := f.ReadAt(nobsBuf, 12); err != nil {
		return nil, fmt.Errorf("%w: short nobs in %s", ErrCorrupt, path)
	}
	nobs := int(binary.LittleEndian.Uint32(nobsBuf))

	if expectedNRows >= 0 && nrows != expectedNRows {
		return nil, ErrStale
	}

	offsetTableStart := int64(16)
	offsets := make([]int64, nobs+1)
	for i := range offsets {
		buf := make([]byte, offsetWidth)
		if _, err := f.ReadAt(buf, offsetTableStart+int64(i*offsetWidth)); err != nil {
			return nil, fmt.Errorf("%w: short offset table in %s", ErrCorrupt, path)
		}
		if offsetWidth == 4 {
			offsets[i] = int64(binary.LittleEndian.Uint32(buf))
		} else {
			offsets[i] = int64(binary.LittleEndian.Uint64(buf))
		}
		if i > 0 && offsets[i] < offsets[i-1] {
			return nil, fmt.Errorf("%w: decreasing offset in %s", ErrCorrupt, path)
		}
	}

	bits := make([]*bitmap.Bitmap, nobs)
	for i := 0; i < nobs; i++ {
		size := offsets[i+1] - offsets[i]
		buf := make([]byte, size)
		if _, err := f.ReadAt(buf, offsets[i]); err != nil {
			return nil, fmt.Errorf("%w: short bucket %d in %s", ErrCorrupt, i, path)
		}
		b, err := bitmap.Deserialize(bytes.NewReader(buf))
		if err != nil {
			return nil, fmt.Errorf("%w: bucket %d: %v", ErrCorrupt, i, err)
		}
		bits[i] = b
	}

	return &Index{nrows: nrows, bits: bits}, nil
}
