// Package roster implements the external-memory two-way merge sort: it
// produces ind[0..N) such that value[ind[i]] is non-decreasing, plus a
// parallel .srt file holding the sorted values, using at most O(M) memory
// for a caller-specified block size M.
//
// Merge passes alternate between two on-disk generations of file pairs;
// only the finished generation is ever renamed into the final .ind/.srt
// names, so the swap is atomic from the caller's point of view and a
// failed pass never leaves a partial result visible.
package roster

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// Roster is a permutation over [0, N) plus the column's sorted values.
// A small (in-core) roster holds both arrays resident; an out-of-core
// roster is backed by open read-only descriptors on the .ind/.srt pair
// and reads elements on demand.
type Roster struct {
	n       int
	ind     []uint32  // resident permutation, nil when file-backed
	values  []float64 // resident sorted values, nil when file-backed
	indFile *os.File
	srtFile *os.File
	srtPath string
	indPath string
}

// Len returns N.
func (r *Roster) Len() int { return r.n }

// At returns ind[i], reading 4 bytes at offset 4*i from the open
// descriptor if the permutation is not resident in memory.
func (r *Roster) At(i int) (uint32, error) {
	if r.ind != nil {
		return r.ind[i], nil
	}
	if r.indFile == nil {
		return 0, fmt.Errorf("roster: not built")
	}
	var buf [4]byte
	if _, err := r.indFile.ReadAt(buf[:], int64(i)*4); err != nil {
		return 0, fmt.Errorf("roster: read ind[%d]: %w", i, err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ValueAt returns the i'th sorted value, reading 8 bytes from the open
// .srt descriptor if the values are not resident.
func (r *Roster) ValueAt(i int) (float64, error) {
	if r.values != nil {
		return r.values[i], nil
	}
	if r.srtFile == nil {
		return 0, fmt.Errorf("roster: not built")
	}
	var buf [8]byte
	if _, err := r.srtFile.ReadAt(buf[:], int64(i)*8); err != nil {
		return 0, fmt.Errorf("roster: read srt[%d]: %w", i, err)
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[:])), nil
}

// SortedValues returns every value in sorted order. For a file-backed
// roster this reads the whole .srt file into memory; prefer ValueAt (or
// Locate's paged walk) when only part of the roster is needed.
func (r *Roster) SortedValues() ([]float64, error) {
	if r.values != nil {
		return r.values, nil
	}
	if r.srtFile == nil {
		return nil, fmt.Errorf("roster: not built")
	}
	out := make([]float64, r.n)
	if err := binary.Read(io.NewSectionReader(r.srtFile, 0, int64(r.n)*8), binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("roster: read %s: %w", r.srtPath, err)
	}
	return out, nil
}

const (
	indSuffix = ".ind"
	srtSuffix = ".srt"
)

// Build produces a Roster for values, either in-core (if len(values) fits
// within budget elements) or via the out-of-core two-way merge.
// dir/name is the destination; an out-of-core build leaves both the
// .ind and .srt files open for read on return, an in-core build only the
// .ind file (its sorted values stay resident). budget is the block size M
// in elements.
func Build(dir, name string, values []float64, budget int) (*Roster, error) {
	if len(values) <= budget || budget <= 0 {
		return buildInCore(dir, name, values)
	}
	return buildOutOfCore(dir, name, values, budget)
}

func buildInCore(dir, name string, values []float64) (*Roster, error) {
	ind := make([]uint32, len(values))
	for i := range ind {
		ind[i] = uint32(i)
	}
	sort.SliceStable(ind, func(i, j int) bool { return values[ind[i]] < values[ind[j]] })

	sorted := make([]float64, len(values))
	for i, idx := range ind {
		sorted[i] = values[idx]
	}

	r := &Roster{n: len(values), ind: ind, values: sorted}
	if dir == "" {
		return r, nil
	}
	if err := r.persist(dir, name); err != nil {
		return nil, err
	}
	return r, nil
}

// persist writes the final .ind/.srt pair and reopens .ind for read,
// matching the "leave the permutation file open for read" contract.
func (r *Roster) persist(dir, name string) error {
	indPath := filepath.Join(dir, name+indSuffix)
	srtPath := filepath.Join(dir, name+srtSuffix)

	if err := writeIndFile(indPath, r.ind); err != nil {
		return err
	}
	if err := writeSrtFile(srtPath, r.values); err != nil {
		os.Remove(indPath)
		return err
	}

	f, err := os.Open(indPath)
	if err != nil {
		return fmt.Errorf("roster: reopen %s: %w", indPath, err)
	}
	r.indFile = f
	r.indPath = indPath
	r.srtPath = srtPath
	return nil
}

func writeIndFile(path string, ind []uint32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("roster: create %s: %w", path, err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, ind); err != nil {
		os.Remove(path)
		return fmt.Errorf("roster: write %s: %w", path, err)
	}
	return f.Sync()
}

func writeSrtFile(path string, values []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("roster: create %s: %w", path, err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, values); err != nil {
		os.Remove(path)
		return fmt.Errorf("roster: write %s: %w", path, err)
	}
	return f.Sync()
}

// Close releases the open file descriptors, if any.
func (r *Roster) Close() error {
	var firstErr error
	if r.indFile != nil {
		firstErr = r.indFile.Close()
		r.indFile = nil
	}
	if r.srtFile != nil {
		if err := r.srtFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.srtFile = nil
	}
	return firstErr
}
