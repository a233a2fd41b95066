package keyword

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/Priyanshu23/bitdb/bitmap"
)

// Index is the keyword index: a dictionary mapping terms to ids, plus one
// bitmap per term recording which rows contain it. bits[0] is the union of
// every term's bitmap (the rows with any term at all); the term whose
// dictionary id is i owns bits[i+1], so on-disk term ids are 1-based,
// matching the .terms file's 1-based record positions.
type Index struct {
	nrows int
	dict  *dictionary
	bits  []*bitmap.Bitmap // bits[0] union, bits[id+1] per term

	// filter is an optional existence filter gating whether search even
	// attempts a dictionary lookup: a bloom test failing means the term is
	// definitely absent, skipping the lookup and returning empty directly.
	filter *bloom.BloomFilter
}

// NewIndex creates an empty index over nrows rows.
func NewIndex(nrows int) *Index {
	return &Index{nrows: nrows, dict: newDictionary()}
}

// GetNRows returns the number of rows the index was built over.
func (ix *Index) GetNRows() int { return ix.nrows }

// Terms returns the dictionary's terms in insertion (id) order.
func (ix *Index) Terms() []string { return ix.dict.terms() }

func (ix *Index) ensureBit(i int) *bitmap.Bitmap {
	for len(ix.bits) <= i {
		ix.bits = append(ix.bits, bitmap.New(ix.nrows))
	}
	return ix.bits[i]
}

func (ix *Index) set(id, row int) {
	ix.ensureBit(0).Set(row)
	ix.ensureBit(id + 1).Set(row)
}

// NonNullMask returns the union of every term's bitmap: the rows that
// contain at least one term.
func (ix *Index) NonNullMask() *bitmap.Bitmap {
	if len(ix.bits) == 0 {
		return bitmap.New(ix.nrows)
	}
	return ix.bits[0].Clone()
}

// BuildFromTermDocument parses lines of the form "term: id1, id2, ...",
// each yielding a bitmap over row ids. Terms are interned
// case-insensitively, preserving the first-seen spelling.
func BuildFromTermDocument(r io.Reader, nrows int) (*Index, error) {
	ix := NewIndex(nrows)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		term, rest, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("keyword: malformed term-document line %q", line)
		}
		term = strings.TrimSpace(term)
		id := ix.dict.intern(term)
		for _, field := range strings.Split(rest, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			row, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("keyword: bad row id %q for term %q: %w", field, term, err)
			}
			if row < 0 || row >= nrows {
				return nil, fmt.Errorf("keyword: row id %d out of range [0,%d) for term %q", row, nrows, term)
			}
			ix.set(id, row)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("keyword: scan term-document: %w", err)
	}
	ix.buildFilter()
	return ix, nil
}

// RowReader yields the byte range for row i of a text column;
// column.SelectStrings-backed callers typically implement this by reading
// <col>.sp-derived offsets.
type RowReader interface {
	NRows() int
	Row(i int) ([]byte, error)
}

// BuildFromTextColumn tokenizes each row with tok and interns every
// resulting term, setting the row's bit in that term's bitmap.
func BuildFromTextColumn(rows RowReader, tok Tokenizer) (*Index, error) {
	n := rows.NRows()
	ix := NewIndex(n)
	for i := 0; i < n; i++ {
		b, err := rows.Row(i)
		if err != nil {
			return nil, fmt.Errorf("keyword: read row %d: %w", i, err)
		}
		for _, term := range tok.Tokenize(b) {
			id := ix.dict.intern(term)
			ix.set(id, i)
		}
	}
	ix.buildFilter()
	return ix, nil
}

// buildFilter populates a bloom filter over every interned term, sized to
// the current dictionary with a 1% target false-positive rate.
func (ix *Index) buildFilter() {
	n := uint(ix.dict.len())
	if n == 0 {
		n = 1
	}
	f := bloom.NewWithEstimates(n, 0.01)
	for _, term := range ix.dict.terms() {
		f.Add([]byte(strings.ToLower(term)))
	}
	ix.filter = f
}

// Search returns the bitmap for the interned term, or an empty bitmap of
// size nrows if kw is unknown. When a bloom filter is present and reports
// kw definitely absent, the dictionary lookup is skipped entirely.
func (ix *Index) Search(kw string) (*bitmap.Bitmap, error) {
	if ix.filter != nil && !ix.filter.Test([]byte(strings.ToLower(kw))) {
		return bitmap.New(ix.nrows), nil
	}
	id, ok := ix.dict.lookup(kw)
	if !ok || id+1 >= len(ix.bits) {
		return bitmap.New(ix.nrows), nil
	}
	return ix.bits[id+1].Clone(), nil
}

// EstimateCost reads the size of the bitmap at kw's term id as a proxy for
// query cost.
func (ix *Index) EstimateCost(kw string) float64 {
	id, ok := ix.dict.lookup(kw)
	if !ok || id+1 >= len(ix.bits) {
		return 0
	}
	return float64(ix.bits[id+1].Cnt())
}

// Append extends the index with nnew new rows, tokenizing each via tok and
// interning/setting bits as BuildFromTextColumn does, then rebuilding the
// bloom filter (cheap relative to a full rescan, since only term presence
// needs to be re-sized, not the per-row bitmaps).
func (ix *Index) Append(rows RowReader, tok Tokenizer, nnew int) error {
	oldN := ix.nrows
	newN := oldN + nnew
	for i, b := range ix.bits {
		b.AdjustSize(false, newN)
		ix.bits[i] = b
	}
	ix.nrows = newN
	for i := 0; i < nnew; i++ {
		row := oldN + i
		b, err := rows.Row(i)
		if err != nil {
			return fmt.Errorf("keyword: read appended row %d: %w", i, err)
		}
		for _, term := range tok.Tokenize(b) {
			id := ix.dict.intern(term)
			ix.set(id, row)
		}
	}
	ix.buildFilter()
	return nil
}
