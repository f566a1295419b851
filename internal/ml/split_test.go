package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStratifiedSplit_PreservesProportions(t *testing.T) {
	strata := make([]int, 0, 1000)
	for i := 0; i < 700; i++ {
		strata = append(strata, 0)
	}
	for i := 0; i < 200; i++ {
		strata = append(strata, 1)
	}
	for i := 0; i < 100; i++ {
		strata = append(strata, 2)
	}

	train, test, err := StratifiedSplit(strata, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, test, 200)
	assert.Len(t, train, 800)

	counts := map[int]int{}
	for _, i := range test {
		counts[strata[i]]++
	}
	assert.Equal(t, map[int]int{0: 140, 1: 40, 2: 20}, counts)

	seen := make(map[int]bool, len(strata))
	for _, i := range append(append([]int(nil), train...), test...) {
		assert.False(t, seen[i], "index %d assigned twice", i)
		seen[i] = true
	}
	assert.Len(t, seen, len(strata))
}

func TestStratifiedSplit_Deterministic(t *testing.T) {
	strata := []int{0, 1, 0, 1, 2, 2, 0, 1, 2, 0, 1, 0}

	trainA, testA, err := StratifiedSplit(strata, 0.25, 7)
	require.NoError(t, err)
	trainB, testB, err := StratifiedSplit(strata, 0.25, 7)
	require.NoError(t, err)

	assert.Equal(t, trainA, trainB)
	assert.Equal(t, testA, testB)
}

func TestStratifiedSplit_SingletonStratumStaysInTrain(t *testing.T) {
	strata := []int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 9}
	train, _, err := StratifiedSplit(strata, 0.5, 1)
	require.NoError(t, err)
	assert.Contains(t, train, 10)
}

func TestStratifiedSplit_Errors(t *testing.T) {
	_, _, err := StratifiedSplit(nil, 0.2, 1)
	assert.Error(t, err)

	for _, frac := range []float64{0, 1, -0.1, 1.5} {
		_, _, err := StratifiedSplit([]int{0, 1, 0, 1}, frac, 1)
		assert.Error(t, err, "fraction %v", frac)
	}

	_, _, err = StratifiedSplit([]int{0}, 0.5, 1)
	assert.Error(t, err)
}
