package ml

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitLogistic_Separates(t *testing.T) {
	var x [][]float64
	var y []int
	for i := -30; i <= 30; i++ {
		if i == 0 {
			continue
		}
		v := float64(i) / 10
		x = append(x, []float64{v, 0.5})
		if v > 0 {
			y = append(y, 1)
		} else {
			y = append(y, 0)
		}
	}

	m, err := FitLogistic(x, y, 1, 100)
	require.NoError(t, err)

	assert.Greater(t, m.Coef[0], 0.0)
	assert.Greater(t, m.PredictProba([]float64{2, 0.5}), 0.9)
	assert.Less(t, m.PredictProba([]float64{-2, 0.5}), 0.1)
	assert.InDelta(t, 0.5, m.PredictProba([]float64{0, 0.5}), 0.05)
	assert.LessOrEqual(t, m.Iterations, 100)
}

func TestFitLogistic_StrongerPenaltyShrinks(t *testing.T) {
	x := [][]float64{{-1}, {-0.5}, {0.2}, {0.5}, {1}, {-0.2}}
	y := []int{0, 0, 1, 1, 1, 0}

	loose, err := FitLogistic(x, y, 10, 1000)
	require.NoError(t, err)
	tight, err := FitLogistic(x, y, 0.01, 1000)
	require.NoError(t, err)

	assert.Less(t, math.Abs(tight.Coef[0]), math.Abs(loose.Coef[0]))
}

func TestFitLogistic_Errors(t *testing.T) {
	x := [][]float64{{1}, {2}}

	_, err := FitLogistic(x, []int{1, 1}, 1, 10)
	assert.Error(t, err, "single class")

	_, err = FitLogistic(x, []int{0, 2}, 1, 10)
	assert.Error(t, err, "non-binary label")

	_, err = FitLogistic(x, []int{0, 1}, 0, 10)
	assert.Error(t, err, "non-positive C")

	_, err = FitLogistic(x, []int{0}, 1, 10)
	assert.Error(t, err, "length mismatch")
}

func TestSigmoid_Stable(t *testing.T) {
	assert.Equal(t, 0.5, sigmoid(0))
	assert.False(t, math.IsNaN(sigmoid(-1000)))
	assert.InDelta(t, 1.0, sigmoid(1000), 1e-12)
	assert.InDelta(t, 0.0, sigmoid(-1000), 1e-12)
}
