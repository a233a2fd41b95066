package roster

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildInCore(t *testing.T) {
	r, err := Build("", "x", []float64{3, 1, 2}, 0)
	require.NoError(t, err)

	sorted, err := r.SortedValues()
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3}, sorted)

	v0, _ := r.At(0)
	v1, _ := r.At(1)
	v2, _ := r.At(2)
	require.Equal(t, []uint32{1, 2, 0}, []uint32{v0, v1, v2})
}

// TestBuildOutOfCoreMatchesExpected exercises N=10, M=3 (forcing 4 runs of
// sizes 3,3,3,1) and checks the exact merge result by hand.
func TestBuildOutOfCoreMatchesExpected(t *testing.T) {
	dir := t.TempDir()
	values := []float64{7, 2, 9, 4, 1, 8, 6, 3, 5, 0}

	r, err := Build(dir, "x", values, 3)
	require.NoError(t, err)
	defer r.Close()

	sorted, err := r.SortedValues()
	require.NoError(t, err)
	require.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, sorted)

	wantInd := []uint32{9, 4, 1, 7, 3, 8, 6, 0, 5, 2}
	for i, want := range wantInd {
		got, err := r.At(i)
		require.NoError(t, err)
		require.Equal(t, want, got, "ind[%d]", i)
	}
}

func TestBuildOutOfCoreIsPermutationAndSorted(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(1))
	n := 137
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(rng.Intn(1000))
	}

	r, err := Build(dir, "y", values, 10)
	require.NoError(t, err)
	defer r.Close()

	sorted, err := r.SortedValues()
	require.NoError(t, err)

	seen := make([]bool, n)
	for i := 0; i < n; i++ {
		row, err := r.At(i)
		require.NoError(t, err)
		require.False(t, seen[row], "row %d repeated", row)
		seen[row] = true
		require.Equal(t, values[row], sorted[i])
	}
	for i, s := range seen {
		require.True(t, s, "row %d missing from permutation", i)
	}

	for i := 1; i < len(sorted); i++ {
		require.LessOrEqual(t, sorted[i-1], sorted[i])
	}
}

// TestOutOfCoreRosterStaysFileBacked pins the contract that a roster built
// out of core reads through its open descriptors rather than holding the
// arrays resident.
func TestOutOfCoreRosterStaysFileBacked(t *testing.T) {
	dir := t.TempDir()
	values := []float64{5, 4, 3, 2, 1, 0}

	r, err := Build(dir, "f", values, 2)
	require.NoError(t, err)
	defer r.Close()

	require.Nil(t, r.ind)
	require.Nil(t, r.values)
	require.NotNil(t, r.indFile)
	require.NotNil(t, r.srtFile)

	v, err := r.ValueAt(3)
	require.NoError(t, err)
	require.Equal(t, 3.0, v)
	row, err := r.At(0)
	require.NoError(t, err)
	require.Equal(t, uint32(5), row)
}

func TestLocateFindsMatchingRows(t *testing.T) {
	dir := t.TempDir()
	values := []float64{7, 2, 9, 4, 1, 8, 6, 3, 5, 0}
	r, err := Build(dir, "z", values, 3)
	require.NoError(t, err)
	defer r.Close()

	hits, err := r.Locate([]float64{2, 5, 9})
	require.NoError(t, err)
	require.ElementsMatch(t, []uint32{1, 8, 2}, hits)
}

func TestLocateNoMatches(t *testing.T) {
	r, err := Build("", "w", []float64{1, 2, 3}, 0)
	require.NoError(t, err)

	hits, err := r.Locate([]float64{100})
	require.NoError(t, err)
	require.Empty(t, hits)
}
