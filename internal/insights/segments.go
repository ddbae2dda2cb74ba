package insights

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/ezoic/marketlens/internal/catalog"
	mlErrors "github.com/ezoic/marketlens/pkg/errors"
)

// SegmentLabels names the five price bins from cheapest to most expensive.
var SegmentLabels = []string{"Budget", "Economy", "Mid-Range", "Premium", "Luxury"}

// Segment is one price bin with the means of the products inside it. Means
// are nil for an empty bin.
type Segment struct {
	Label      string   `json:"label"`
	Low        float64  `json:"low"`
	High       float64  `json:"high"`
	Count      int      `json:"count"`
	AvgPrice   *float64 `json:"avg_price"`
	AvgRating  *float64 `json:"avg_rating"`
	AvgReviews *float64 `json:"avg_reviews"`
	AvgGrowth  *float64 `json:"avg_growth"`
}

// Segments is the catalog split into equal-width price bins. Bins are closed
// on the right; the first bin also holds the minimum.
type Segments struct {
	Edges    []float64
	Segments []Segment
}

// binEdges returns len(SegmentLabels)+1 equally spaced edges over
// [lo, hi]. A zero-width range is widened by 0.1% on each side.
func binEdges(lo, hi float64) []float64 {
	if lo == hi {
		pad := 0.001 * math.Abs(lo)
		if pad == 0 {
			pad = 0.001
		}
		lo, hi = lo-pad, hi+pad
	}
	n := len(SegmentLabels)
	edges := make([]float64, n+1)
	width := (hi - lo) / float64(n)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	edges[n] = hi
	return edges
}

// PriceSegments bins the catalog by price and computes per-bin means.
func PriceSegments(cat *catalog.Catalog) (*Segments, error) {
	prices, err := cat.Column(catalog.ColPrice)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, mlErrors.NewModelError("insights.PriceSegments", "catalog is empty", mlErrors.ErrEmptyData)
	}
	s := &Segments{Edges: binEdges(floats.Min(prices), floats.Max(prices))}

	members := make([][]catalog.Product, len(SegmentLabels))
	for _, p := range cat.Products() {
		i := s.Index(p.Price)
		members[i] = append(members[i], p)
	}
	for i, label := range SegmentLabels {
		var price, rating, reviews, growth []float64
		for _, p := range members[i] {
			price = append(price, p.Price)
			rating = append(rating, p.Rating)
			reviews = append(reviews, float64(p.Reviews))
			growth = append(growth, p.ReviewGrowthRate)
		}
		s.Segments = append(s.Segments, Segment{
			Label:      label,
			Low:        s.Edges[i],
			High:       s.Edges[i+1],
			Count:      len(members[i]),
			AvgPrice:   meanOrNil(price),
			AvgRating:  meanOrNil(rating),
			AvgReviews: meanOrNil(reviews),
			AvgGrowth:  meanOrNil(growth),
		})
	}
	return s, nil
}

// Index returns the bin of price. Prices below the catalog minimum fall in
// the first bin, prices above the maximum in the last.
func (s *Segments) Index(price float64) int {
	last := len(s.Edges) - 2
	for i := 0; i < last; i++ {
		if price <= s.Edges[i+1] {
			return i
		}
	}
	return last
}

// Classify returns the label of the bin price falls in.
func (s *Segments) Classify(price float64) string {
	return SegmentLabels[s.Index(price)]
}
