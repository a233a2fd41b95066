package roster

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// buildOutOfCore sorts budget-sized runs in memory
// and streams them to a scratch generation, then repeatedly merges adjacent
// runs pairwise, doubling the stride, alternating between two scratch
// generations, until the whole array is one sorted run. Each merge pass
// holds one page per input run plus one output page per side in memory,
// so memory stays O(budget) regardless of N.
//
// Any read/write error aborts the current pass; the pass deletes the
// generation it was writing, and the deferred cleanup below removes the
// remaining scratch, leaving no partial result visible.
func buildOutOfCore(dir, name string, values []float64, budget int) (r *Roster, err error) {
	genA := genName(dir, name, 0)
	genB := genName(dir, name, 1)
	defer func() {
		if err != nil {
			genA.remove()
			genB.remove()
		}
	}()

	lengths, err := writeInitialRuns(genA, values, budget)
	if err != nil {
		return nil, fmt.Errorf("roster: write initial runs: %w", err)
	}

	cur, other := genA, genB
	for len(lengths) > 1 {
		newLengths, mergeErr := mergePass(cur, other, lengths, budget)
		if mergeErr != nil {
			return nil, fmt.Errorf("roster: merge pass: %w", mergeErr)
		}
		cur.remove()
		cur, other = other, cur
		lengths = newLengths
	}

	finalInd := filepath.Join(dir, name+indSuffix)
	finalSrt := filepath.Join(dir, name+srtSuffix)
	os.Remove(finalInd)
	os.Remove(finalSrt)
	if err := os.Rename(cur.indPath(), finalInd); err != nil {
		return nil, fmt.Errorf("roster: finalize ind: %w", err)
	}
	if err := os.Rename(cur.srtPath(), finalSrt); err != nil {
		return nil, fmt.Errorf("roster: finalize srt: %w", err)
	}
	other.remove()

	return openFinal(dir, name, len(values))
}

// sortStable sorts values and ind in lockstep by value, stably.
func sortStable(values []float64, ind []uint32) {
	// insertion sort is adequate: runs are bounded by the caller's budget,
	// keeping memory (not CPU) the binding constraint for this phase.
	for i := 1; i < len(values); i++ {
		v, id := values[i], ind[i]
		j := i - 1
		for j >= 0 && values[j] > v {
			values[j+1] = values[j]
			ind[j+1] = ind[j]
			j--
		}
		values[j+1] = v
		ind[j+1] = id
	}
}

// generation names one ping-pong file pair.
type generation struct {
	dir, name string
	gen       int
}

func genName(dir, name string, gen int) generation { return generation{dir, name, gen} }

func (g generation) indPath() string {
	return filepath.Join(g.dir, fmt.Sprintf("%s.gen%d.ind", g.name, g.gen))
}
func (g generation) srtPath() string {
	return filepath.Join(g.dir, fmt.Sprintf("%s.gen%d.srt", g.name, g.gen))
}
func (g generation) remove() {
	os.Remove(g.indPath())
	os.Remove(g.srtPath())
}

// writeInitialRuns sorts values in budget-sized chunks and appends each
// sorted run (with its origin row numbers) to g's file pair, returning
// the run lengths. Only one run is resident at a time.
func writeInitialRuns(g generation, values []float64, budget int) ([]int, error) {
	srt, err := os.Create(g.srtPath())
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", g.srtPath(), err)
	}
	defer srt.Close()
	ind, err := os.Create(g.indPath())
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", g.indPath(), err)
	}
	defer ind.Close()

	var lengths []int
	for start := 0; start < len(values); start += budget {
		end := min(start+budget, len(values))
		chunk := append([]float64(nil), values[start:end]...)
		rows := make([]uint32, len(chunk))
		for i := range rows {
			rows[i] = uint32(start + i)
		}
		sortStable(chunk, rows)
		if err := binary.Write(srt, binary.LittleEndian, chunk); err != nil {
			return nil, fmt.Errorf("write run values: %w", err)
		}
		if err := binary.Write(ind, binary.LittleEndian, rows); err != nil {
			return nil, fmt.Errorf("write run indices: %w", err)
		}
		lengths = append(lengths, len(chunk))
	}
	if len(lengths) == 0 {
		lengths = append(lengths, 0)
	}
	if err := srt.Sync(); err != nil {
		return nil, err
	}
	return lengths, ind.Sync()
}

// runCursor streams one sorted run from a generation's file pair through a
// fixed-size page, one page per run. Reads use
// ReadAt so two cursors can share the same descriptors.
type runCursor struct {
	srt, ind *os.File
	next     int // element offset of the first element not yet paged in
	end      int
	vals     []float64
	rows     []uint32
	i        int // cursor within the current page
}

func newRunCursor(srt, ind *os.File, start, end, page int) *runCursor {
	return &runCursor{
		srt: srt, ind: ind,
		next: start, end: end,
		vals: make([]float64, 0, page),
		rows: make([]uint32, 0, page),
	}
}

func (c *runCursor) done() bool { return c.i >= len(c.vals) && c.next >= c.end }

// head returns the current element without consuming it, paging in the
// next window of the run when the current page is drained.
func (c *runCursor) head() (float64, uint32, error) {
	if c.i >= len(c.vals) {
		if err := c.fill(); err != nil {
			return 0, 0, err
		}
	}
	return c.vals[c.i], c.rows[c.i], nil
}

func (c *runCursor) advance() { c.i++ }

func (c *runCursor) fill() error {
	n := min(cap(c.vals), c.end-c.next)
	c.vals = c.vals[:n]
	c.rows = c.rows[:n]
	if err := binary.Read(io.NewSectionReader(c.srt, int64(c.next)*8, int64(n)*8), binary.LittleEndian, c.vals); err != nil {
		return fmt.Errorf("read value page: %w", err)
	}
	if err := binary.Read(io.NewSectionReader(c.ind, int64(c.next)*4, int64(n)*4), binary.LittleEndian, c.rows); err != nil {
		return fmt.Errorf("read index page: %w", err)
	}
	c.next += n
	c.i = 0
	return nil
}

// pageWriter buffers one output page per file, flushing when full.
type pageWriter struct {
	srt, ind *os.File
	vals     []float64
	rows     []uint32
	page     int
}

func newPageWriter(srt, ind *os.File, page int) *pageWriter {
	return &pageWriter{
		srt: srt, ind: ind, page: page,
		vals: make([]float64, 0, page),
		rows: make([]uint32, 0, page),
	}
}

func (w *pageWriter) push(v float64, row uint32) error {
	w.vals = append(w.vals, v)
	w.rows = append(w.rows, row)
	if len(w.vals) >= w.page {
		return w.flush()
	}
	return nil
}

func (w *pageWriter) flush() error {
	if len(w.vals) == 0 {
		return nil
	}
	if err := binary.Write(w.srt, binary.LittleEndian, w.vals); err != nil {
		return fmt.Errorf("write value page: %w", err)
	}
	if err := binary.Write(w.ind, binary.LittleEndian, w.rows); err != nil {
		return fmt.Errorf("write index page: %w", err)
	}
	w.vals = w.vals[:0]
	w.rows = w.rows[:0]
	return nil
}

// mergePass merges adjacent pairs of runs (described by lengths, summing
// to the generation's total element count) from src into dst, streaming
// both sides through page-sized buffers, and returns the lengths of the
// resulting (half as many, doubled-size) runs. On error the dst pair it
// was writing is removed; src is left intact.
func mergePass(src, dst generation, lengths []int, page int) (newLengths []int, err error) {
	srcSrt, err := os.Open(src.srtPath())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", src.srtPath(), err)
	}
	defer srcSrt.Close()
	srcInd, err := os.Open(src.indPath())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", src.indPath(), err)
	}
	defer srcInd.Close()

	dstSrt, err := os.Create(dst.srtPath())
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", dst.srtPath(), err)
	}
	dstInd, err := os.Create(dst.indPath())
	if err != nil {
		dstSrt.Close()
		os.Remove(dst.srtPath())
		return nil, fmt.Errorf("create %s: %w", dst.indPath(), err)
	}
	defer func() {
		dstSrt.Close()
		dstInd.Close()
		if err != nil {
			dst.remove()
		}
	}()

	w := newPageWriter(dstSrt, dstInd, page)

	pos := 0
	for i := 0; i < len(lengths); i += 2 {
		aStart, aEnd := pos, pos+lengths[i]
		pos = aEnd

		if i+1 >= len(lengths) {
			// odd run out this pass: carry it through unmerged.
			a := newRunCursor(srcSrt, srcInd, aStart, aEnd, page)
			if err = drain(a, w); err != nil {
				return nil, err
			}
			newLengths = append(newLengths, lengths[i])
			break
		}

		bStart, bEnd := pos, pos+lengths[i+1]
		pos = bEnd

		a := newRunCursor(srcSrt, srcInd, aStart, aEnd, page)
		b := newRunCursor(srcSrt, srcInd, bStart, bEnd, page)
		if err = mergeRuns(a, b, w); err != nil {
			return nil, err
		}
		newLengths = append(newLengths, lengths[i]+lengths[i+1])
	}

	if err = w.flush(); err != nil {
		return nil, err
	}
	if err = dstSrt.Sync(); err != nil {
		return nil, err
	}
	if err = dstInd.Sync(); err != nil {
		return nil, err
	}
	return newLengths, nil
}

func mergeRuns(a, b *runCursor, w *pageWriter) error {
	for !a.done() && !b.done() {
		av, ar, err := a.head()
		if err != nil {
			return err
		}
		bv, br, err := b.head()
		if err != nil {
			return err
		}
		// '<=' on the left keeps ties stable, favoring the earlier run.
		if av <= bv {
			if err := w.push(av, ar); err != nil {
				return err
			}
			a.advance()
		} else {
			if err := w.push(bv, br); err != nil {
				return err
			}
			b.advance()
		}
	}
	if err := drain(a, w); err != nil {
		return err
	}
	return drain(b, w)
}

func drain(c *runCursor, w *pageWriter) error {
	for !c.done() {
		v, row, err := c.head()
		if err != nil {
			return err
		}
		if err := w.push(v, row); err != nil {
			return err
		}
		c.advance()
	}
	return nil
}

// openFinal opens the finished .ind/.srt pair read-only without loading
// either into memory: the out-of-core roster stays file-backed, with
// At/ValueAt reading through the descriptors on demand.
func openFinal(dir, name string, n int) (*Roster, error) {
	indPath := filepath.Join(dir, name+indSuffix)
	srtPath := filepath.Join(dir, name+srtSuffix)
	indF, err := os.Open(indPath)
	if err != nil {
		return nil, fmt.Errorf("roster: open %s: %w", indPath, err)
	}
	srtF, err := os.Open(srtPath)
	if err != nil {
		indF.Close()
		return nil, fmt.Errorf("roster: open %s: %w", srtPath, err)
	}
	return &Roster{
		n:       n,
		indFile: indF,
		srtFile: srtF,
		indPath: indPath,
		srtPath: srtPath,
	}, nil
}
