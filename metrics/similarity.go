package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	mlErrors "github.com/ezoic/marketlens/pkg/errors"
)

// CosineSimilarity returns a·b / (‖a‖·‖b‖), clamped to [-1, 1]. If either
// vector has zero norm the similarity is 0.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) == 0 {
		return 0, mlErrors.NewModelError("CosineSimilarity", "empty vector", mlErrors.ErrEmptyData)
	}
	if len(a) != len(b) {
		return 0, mlErrors.NewDimensionError("CosineSimilarity", len(a), len(b), 1)
	}
	return cosine(a, b, floats.Norm(a, 2), floats.Norm(b, 2)), nil
}

func cosine(a, b []float64, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := floats.Dot(a, b) / (normA * normB)
	return math.Max(-1, math.Min(1, sim))
}

// CosineSimilarityMatrix returns the (rows(X), rows(Y)) matrix of pairwise
// cosine similarities between the rows of X and the rows of Y.
func CosineSimilarityMatrix(X, Y mat.Matrix) (*mat.Dense, error) {
	rx, cx := X.Dims()
	ry, cy := Y.Dims()
	if rx == 0 || ry == 0 || cx == 0 {
		return nil, mlErrors.NewModelError("CosineSimilarityMatrix", "empty matrix", mlErrors.ErrEmptyData)
	}
	if cx != cy {
		return nil, mlErrors.NewDimensionError("CosineSimilarityMatrix", cx, cy, 1)
	}

	xRows := rowsOf(X)
	yRows := rowsOf(Y)
	yNorms := make([]float64, ry)
	for j, row := range yRows {
		yNorms[j] = floats.Norm(row, 2)
	}

	out := mat.NewDense(rx, ry, nil)
	for i, xr := range xRows {
		xNorm := floats.Norm(xr, 2)
		for j, yr := range yRows {
			out.Set(i, j, cosine(xr, yr, xNorm, yNorms[j]))
		}
	}
	return out, nil
}

func rowsOf(m mat.Matrix) [][]float64 {
	r, _ := m.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = mat.Row(nil, i, m)
	}
	return rows
}
