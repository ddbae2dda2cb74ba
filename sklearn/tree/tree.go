// Package tree provides the second-order regression tree used as the weak
// learner of the gradient boosting ensemble.
package tree

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/marketlens/core/model"
	mlErrors "github.com/ezoic/marketlens/pkg/errors"
)

// minSplitGain is the smallest loss reduction accepted for a split.
const minSplitGain = 1e-6

// Node is one node of a fitted tree. Nodes are stored flat in
// RegressionTree.Nodes; children are referenced by index, -1 for none.
type Node struct {
	IsLeaf       bool    // Whether this is a leaf node
	SplitFeature int     // Feature index for split (internal nodes)
	Threshold    float64 // Samples with value <= Threshold go left
	LeftChild    int
	RightChild   int
	LeafValue    float64 // Leaf weight -G/(H+lambda)
	Gain         float64 // Loss reduction of the split
	SumHess      float64 // Hessian mass that reached this node
	Depth        int
}

// SplitInfo describes a candidate split.
type SplitInfo struct {
	Feature   int
	Threshold float64
	Gain      float64
	LeftGrad  float64
	LeftHess  float64
	RightGrad float64
	RightHess float64
}

// RegressionTree is an exact-greedy regression tree grown on first and
// second order gradients of a loss, in the style of XGBoost.
//
// Fields are exported so a fitted tree round-trips through encoding/gob.
type RegressionTree struct {
	State *model.StateManager

	// Hyperparameters
	MaxDepth       int     // Maximum depth; the root is depth 0
	MinChildWeight float64 // Minimum hessian sum in each child
	Lambda         float64 // L2 regularization on leaf weights
	Gamma          float64 // Minimum gain required on top of minSplitGain

	// Tree structure
	Nodes     []Node
	NFeatures int

	// FeatureGain accumulates split gain per feature.
	FeatureGain []float64

	x    mat.Matrix
	grad []float64
	hess []float64
}

// Option configures a RegressionTree.
type Option func(*RegressionTree)

// NewRegressionTree creates a tree with XGBoost's default regularization.
func NewRegressionTree(opts ...Option) *RegressionTree {
	t := &RegressionTree{
		State:          model.NewStateManager(),
		MaxDepth:       6,
		MinChildWeight: 1,
		Lambda:         1,
		Gamma:          0,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// WithMaxDepth sets the maximum tree depth
func WithMaxDepth(depth int) Option {
	return func(t *RegressionTree) {
		t.MaxDepth = depth
	}
}

// WithMinChildWeight sets the minimum hessian sum per child
func WithMinChildWeight(w float64) Option {
	return func(t *RegressionTree) {
		t.MinChildWeight = w
	}
}

// WithLambda sets the L2 leaf regularization
func WithLambda(lambda float64) Option {
	return func(t *RegressionTree) {
		t.Lambda = lambda
	}
}

// WithGamma sets the minimum split gain
func WithGamma(gamma float64) Option {
	return func(t *RegressionTree) {
		t.Gamma = gamma
	}
}

// Fit grows the tree on squared error against y. With Lambda 0 the leaves
// are the mean target of the samples they hold.
func (t *RegressionTree) Fit(X mat.Matrix, y *mat.VecDense) (err error) {
	defer mlErrors.Recover(&err, "RegressionTree.Fit")

	rows, _ := X.Dims()
	if y.Len() != rows {
		return mlErrors.NewDimensionError("RegressionTree.Fit", rows, y.Len(), 0)
	}
	grad := make([]float64, rows)
	hess := make([]float64, rows)
	for i := 0; i < rows; i++ {
		grad[i] = -y.AtVec(i)
		hess[i] = 1
	}
	return t.FitGradients(X, grad, hess, nil)
}

// FitGradients grows the tree from per-sample gradients and hessians.
// rows restricts training to a subset of sample indices; nil uses all.
func (t *RegressionTree) FitGradients(X mat.Matrix, grad, hess []float64, rows []int) (err error) {
	defer mlErrors.Recover(&err, "RegressionTree.FitGradients")

	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return mlErrors.NewModelError("RegressionTree.FitGradients", "empty data", mlErrors.ErrEmptyData)
	}
	if len(grad) != nSamples {
		return mlErrors.NewDimensionError("RegressionTree.FitGradients", nSamples, len(grad), 0)
	}
	if len(hess) != nSamples {
		return mlErrors.NewDimensionError("RegressionTree.FitGradients", nSamples, len(hess), 0)
	}
	if rows == nil {
		rows = make([]int, nSamples)
		for i := range rows {
			rows[i] = i
		}
	}
	if len(rows) == 0 {
		return mlErrors.NewModelError("RegressionTree.FitGradients", "no rows selected", mlErrors.ErrEmptyData)
	}

	if t.State == nil {
		t.State = model.NewStateManager()
	}
	t.State.Reset()
	t.NFeatures = nFeatures
	t.Nodes = t.Nodes[:0]
	t.FeatureGain = make([]float64, nFeatures)
	t.x, t.grad, t.hess = X, grad, hess
	defer func() { t.x, t.grad, t.hess = nil, nil, nil }()

	t.buildNode(rows, 0)

	t.State.SetFitted()
	t.State.SetDimensions(nFeatures, len(rows))
	return nil
}

// buildNode recursively builds tree nodes and returns the index of the node
// created for indices.
func (t *RegressionTree) buildNode(indices []int, depth int) int {
	nodeIdx := len(t.Nodes)

	sumGrad, sumHess := 0.0, 0.0
	for _, idx := range indices {
		sumGrad += t.grad[idx]
		sumHess += t.hess[idx]
	}

	leaf := Node{
		IsLeaf:     true,
		LeftChild:  -1,
		RightChild: -1,
		LeafValue:  t.leafValue(sumGrad, sumHess),
		SumHess:    sumHess,
		Depth:      depth,
	}

	if depth >= t.MaxDepth || len(indices) < 2 {
		t.Nodes = append(t.Nodes, leaf)
		return nodeIdx
	}

	best := t.findBestSplit(indices, sumGrad, sumHess)
	if best.Feature == -1 || best.Gain <= math.Max(t.Gamma, minSplitGain) {
		t.Nodes = append(t.Nodes, leaf)
		return nodeIdx
	}

	t.Nodes = append(t.Nodes, Node{
		SplitFeature: best.Feature,
		Threshold:    best.Threshold,
		Gain:         best.Gain,
		SumHess:      sumHess,
		Depth:        depth,
	})
	t.FeatureGain[best.Feature] += best.Gain

	leftIndices, rightIndices := t.splitData(indices, best)
	left := t.buildNode(leftIndices, depth+1)
	right := t.buildNode(rightIndices, depth+1)

	t.Nodes[nodeIdx].LeftChild = left
	t.Nodes[nodeIdx].RightChild = right
	return nodeIdx
}

// findBestSplit scans every feature's sorted values and keeps the first
// split with the highest gain.
func (t *RegressionTree) findBestSplit(indices []int, sumGrad, sumHess float64) SplitInfo {
	best := SplitInfo{Feature: -1, Gain: math.Inf(-1)}
	parentScore := sumGrad * sumGrad / (sumHess + t.Lambda)

	sorted := make([]int, len(indices))
	for feature := 0; feature < t.NFeatures; feature++ {
		copy(sorted, indices)
		sort.SliceStable(sorted, func(i, j int) bool {
			return t.x.At(sorted[i], feature) < t.x.At(sorted[j], feature)
		})

		leftGrad, leftHess := 0.0, 0.0
		for i := 0; i < len(sorted)-1; i++ {
			idx := sorted[i]
			leftGrad += t.grad[idx]
			leftHess += t.hess[idx]

			v1 := t.x.At(idx, feature)
			v2 := t.x.At(sorted[i+1], feature)
			if v1 == v2 {
				continue
			}

			rightGrad := sumGrad - leftGrad
			rightHess := sumHess - leftHess
			if leftHess < t.MinChildWeight || rightHess < t.MinChildWeight {
				continue
			}

			gain := 0.5 * (leftGrad*leftGrad/(leftHess+t.Lambda) +
				rightGrad*rightGrad/(rightHess+t.Lambda) - parentScore)
			if gain > best.Gain {
				best = SplitInfo{
					Feature:   feature,
					Threshold: (v1 + v2) / 2,
					Gain:      gain,
					LeftGrad:  leftGrad,
					LeftHess:  leftHess,
					RightGrad: rightGrad,
					RightHess: rightHess,
				}
			}
		}
	}
	return best
}

func (t *RegressionTree) splitData(indices []int, split SplitInfo) ([]int, []int) {
	var leftIndices, rightIndices []int
	for _, idx := range indices {
		if t.x.At(idx, split.Feature) <= split.Threshold {
			leftIndices = append(leftIndices, idx)
		} else {
			rightIndices = append(rightIndices, idx)
		}
	}
	return leftIndices, rightIndices
}

func (t *RegressionTree) leafValue(sumGrad, sumHess float64) float64 {
	denom := sumHess + t.Lambda
	if denom == 0 {
		return 0
	}
	return -sumGrad / denom
}

// PredictRow returns the leaf value reached by x. It does not check the
// length of x; callers validate dimensions once per batch.
func (t *RegressionTree) PredictRow(x []float64) float64 {
	node := &t.Nodes[0]
	for !node.IsLeaf {
		if x[node.SplitFeature] <= node.Threshold {
			node = &t.Nodes[node.LeftChild]
		} else {
			node = &t.Nodes[node.RightChild]
		}
	}
	return node.LeafValue
}

// Predict returns the leaf value for every row of X.
func (t *RegressionTree) Predict(X mat.Matrix) (*mat.VecDense, error) {
	if !t.State.IsFitted() {
		return nil, mlErrors.NewNotFittedError("RegressionTree", "Predict")
	}
	rows, cols := X.Dims()
	if cols != t.NFeatures {
		return nil, mlErrors.NewDimensionError("RegressionTree.Predict", t.NFeatures, cols, 1)
	}

	out := mat.NewVecDense(rows, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		out.SetVec(i, t.PredictRow(row))
	}
	return out, nil
}

// GetDepth returns the depth of the deepest leaf.
func (t *RegressionTree) GetDepth() int {
	depth := 0
	for _, n := range t.Nodes {
		if n.IsLeaf && n.Depth > depth {
			depth = n.Depth
		}
	}
	return depth
}

// GetNLeaves returns the number of leaf nodes.
func (t *RegressionTree) GetNLeaves() int {
	n := 0
	for _, node := range t.Nodes {
		if node.IsLeaf {
			n++
		}
	}
	return n
}

// GetParams returns the tree hyperparameters
func (t *RegressionTree) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_depth":        t.MaxDepth,
		"min_child_weight": t.MinChildWeight,
		"reg_lambda":       t.Lambda,
		"gamma":            t.Gamma,
	}
}
