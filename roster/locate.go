package roster

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// locatePage is the number of sorted values Locate pages in at a time
// when the roster is file-backed.
const locatePage = 4096

// Locate is a two-cursor merge over the roster's sorted values and a
// sorted query vector,
// returning the row numbers (via ind) of every stored value equal to one
// of the query values. Query values are sorted internally; duplicates in
// either side are handled by advancing the roster cursor across every
// stored value matching the current query value before moving on. The
// sorted-values side is walked one page at a time, so a file-backed
// roster never needs the whole .srt file resident.
func (r *Roster) Locate(query []float64) ([]uint32, error) {
	q := append([]float64(nil), query...)
	sort.Float64s(q)

	var hits []uint32
	n := r.Len()
	i, j := 0, 0
	var page []float64
	pageStart := 0
	for i < n && j < len(q) {
		if page == nil || i >= pageStart+len(page) {
			var err error
			pageStart = i
			page, err = r.valuesPage(pageStart, min(locatePage, n-pageStart))
			if err != nil {
				return nil, err
			}
		}
		v := page[i-pageStart]
		switch {
		case v < q[j]:
			i++
		case v > q[j]:
			j++
		default:
			row, err := r.At(i)
			if err != nil {
				return nil, err
			}
			hits = append(hits, row)
			i++
		}
	}
	return hits, nil
}

// valuesPage returns count sorted values starting at start, sliced from
// the resident array or read from the open .srt descriptor in one I/O.
func (r *Roster) valuesPage(start, count int) ([]float64, error) {
	if r.values != nil {
		return r.values[start : start+count], nil
	}
	if r.srtFile == nil {
		return nil, fmt.Errorf("roster: not built")
	}
	out := make([]float64, count)
	if err := binary.Read(io.NewSectionReader(r.srtFile, int64(start)*8, int64(count)*8), binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("roster: read values page: %w", err)
	}
	return out, nil
}
