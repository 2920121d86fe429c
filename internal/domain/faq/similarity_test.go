package faq

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	require.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	require.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	require.InDelta(t, -1.0, CosineSimilarity([]float32{1, 1}, []float32{-1, -1}), 1e-9)
}

func TestCosineSimilarityDegenerateInputs(t *testing.T) {
	require.Zero(t, CosineSimilarity(nil, nil))
	require.Zero(t, CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
	require.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}

func TestClampConfidence(t *testing.T) {
	require.Equal(t, 0.0, clampConfidence(-0.4))
	require.Equal(t, 0.0, clampConfidence(math.NaN()))
	require.Equal(t, 1.0, clampConfidence(1.0000001))
	require.Equal(t, 0.75, clampConfidence(0.75))
}
