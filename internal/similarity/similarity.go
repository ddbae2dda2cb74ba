// Package similarity ranks catalog products by cosine similarity to a user
// product after standardizing price and the one-hot indicators with
// statistics fitted on the catalog.
package similarity

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/marketlens/internal/catalog"
	"github.com/ezoic/marketlens/internal/query"
	"github.com/ezoic/marketlens/metrics"
	mlErrors "github.com/ezoic/marketlens/pkg/errors"
	"github.com/ezoic/marketlens/pkg/log"
	"github.com/ezoic/marketlens/preprocessing"
)

// DefaultK is the number of matches returned when k <= 0.
const DefaultK = 5

// Match is one ranked catalog product joined to its detail row.
type Match struct {
	Product catalog.Product
	Detail  catalog.Detail
	Score   float64
}

// Engine holds the catalog in standardized form.
type Engine struct {
	cat    *catalog.Catalog
	scaler *preprocessing.StandardScaler
	scaled *mat.Dense
	logger log.Logger
}

func productVector(p catalog.Product) []float64 {
	return []float64{p.Price, p.Cotton, p.Polyester, p.RoundNeck, p.PoloNeck, p.ShortSleeve, p.LongSleeve}
}

// NewEngine fits the scaler on cat.
func NewEngine(cat *catalog.Catalog) (*Engine, error) {
	if cat == nil || cat.Len() == 0 {
		return nil, mlErrors.NewModelError("similarity.NewEngine", "catalog is empty", mlErrors.ErrEmptyData)
	}
	products := cat.Products()
	X := mat.NewDense(len(products), len(query.SimilarityFeatureNames), nil)
	for i, p := range products {
		X.SetRow(i, productVector(p))
	}

	scaler := preprocessing.NewStandardScalerDefault()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cat:    cat,
		scaler: scaler,
		scaled: scaled,
		logger: log.GetLoggerWithName("similarity"),
	}, nil
}

// Scores returns the cosine similarity of q to every catalog product, in
// catalog order.
func (e *Engine) Scores(q query.Product) ([]float64, error) {
	x, err := q.SimilarityFeatures()
	if err != nil {
		return nil, err
	}
	return e.ScoresVector(x)
}

// ScoresVector is Scores for a raw vector in query.SimilarityFeatureNames
// order.
func (e *Engine) ScoresVector(x []float64) ([]float64, error) {
	qx, err := e.scaler.Transform(mat.NewDense(1, len(x), append([]float64(nil), x...)))
	if err != nil {
		return nil, err
	}
	sims, err := metrics.CosineSimilarityMatrix(qx, e.scaled)
	if err != nil {
		return nil, err
	}
	return mat.Row(nil, 0, sims), nil
}

// TopK returns the k most similar products, most similar first. Equal
// scores keep catalog order. k <= 0 means DefaultK; a catalog smaller than k
// returns every product.
func (e *Engine) TopK(q query.Product, k int) ([]Match, error) {
	start := time.Now()
	scores, err := e.Scores(q)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = DefaultK
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })
	if k > len(order) {
		k = len(order)
	}

	matches := make([]Match, 0, k)
	for _, idx := range order[:k] {
		p, err := e.cat.Product(idx)
		if err != nil {
			return nil, err
		}
		d, err := e.cat.Detail(p.ProductIndex)
		if err != nil {
			return nil, err
		}
		matches = append(matches, Match{Product: p, Detail: d, Score: scores[idx]})
	}

	e.logger.Debug("Ranked catalog",
		log.OperationKey, log.OperationRank,
		log.SamplesKey, len(scores),
		"k", k,
		log.DurationMsKey, time.Since(start).Milliseconds())
	return matches, nil
}

// SortKey selects an ordering for SortMatches.
type SortKey string

const (
	BySimilarity SortKey = "similarity"
	ByReviews    SortKey = "reviews"
	ByRating     SortKey = "rating"
	ByPrice      SortKey = "price"
)

// SortMatches returns a reordered copy of matches. Similarity, reviews and
// rating sort descending; price sorts ascending. Ties keep the input order.
func SortMatches(matches []Match, by SortKey) ([]Match, error) {
	var less func(a, b Match) bool
	switch by {
	case BySimilarity, "":
		less = func(a, b Match) bool { return a.Score > b.Score }
	case ByReviews:
		less = func(a, b Match) bool { return a.Product.Reviews > b.Product.Reviews }
	case ByRating:
		less = func(a, b Match) bool { return a.Product.Rating > b.Product.Rating }
	case ByPrice:
		less = func(a, b Match) bool { return a.Product.Price < b.Product.Price }
	default:
		return nil, mlErrors.NewValueErrorf("similarity.SortMatches", "unknown sort key %q", by)
	}
	out := append([]Match(nil), matches...)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out, nil
}
