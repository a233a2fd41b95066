package roster

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestBuildProducesSortedPermutation checks the core invariant for
// arbitrary N and block size M: ind is a permutation of [0, N) and
// value[ind[i]] is non-decreasing, covering both the in-core path and
// (whenever the drawn budget is below N) the out-of-core two-way merge.
func TestBuildProducesSortedPermutation(t *testing.T) {
	dir := t.TempDir()
	iter := 0
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 300).Draw(t, "n")
		budget := rapid.IntRange(1, 50).Draw(t, "budget")
		values := make([]float64, n)
		for i := range values {
			values[i] = float64(rapid.IntRange(-20, 20).Draw(t, "v"))
		}

		iter++
		r, err := Build(dir, fmt.Sprintf("col%d", iter), values, budget)
		require.NoError(t, err)
		defer r.Close()

		require.Equal(t, n, r.Len())
		seen := make([]bool, n)
		prev := math.Inf(-1)
		for i := 0; i < n; i++ {
			row, err := r.At(i)
			require.NoError(t, err)
			require.False(t, seen[row], "row %d repeated", row)
			seen[row] = true

			v, err := r.ValueAt(i)
			require.NoError(t, err)
			require.Equal(t, values[row], v, "srt[%d] disagrees with ind", i)
			require.GreaterOrEqual(t, v, prev)
			prev = v
		}
	})
}

// TestLocateMatchesBruteForce cross-checks Locate's two-cursor merge
// against a direct scan of the original values for arbitrary query sets.
func TestLocateMatchesBruteForce(t *testing.T) {
	dir := t.TempDir()
	iter := 0
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 200).Draw(t, "n")
		budget := rapid.IntRange(1, 40).Draw(t, "budget")
		values := make([]float64, n)
		for i := range values {
			values[i] = float64(rapid.IntRange(0, 30).Draw(t, "v"))
		}
		query := rapid.SliceOfN(rapid.Custom(func(t *rapid.T) float64 {
			return float64(rapid.IntRange(0, 30).Draw(t, "q"))
		}), 0, 10).Draw(t, "query")

		iter++
		r, err := Build(dir, fmt.Sprintf("loc%d", iter), values, budget)
		require.NoError(t, err)
		defer r.Close()

		hits, err := r.Locate(query)
		require.NoError(t, err)

		want := map[uint32]bool{}
		for i, v := range values {
			for _, q := range query {
				if v == q {
					want[uint32(i)] = true
				}
			}
		}
		got := map[uint32]bool{}
		for _, h := range hits {
			got[h] = true
		}
		require.Equal(t, want, got)
	})
}
