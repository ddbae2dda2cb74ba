package insights

import (
	"sort"

	"github.com/ezoic/marketlens/internal/catalog"
)

// FeatureStat describes the products carrying one indicator. Means are nil
// when no product has the feature.
type FeatureStat struct {
	Feature    string   `json:"feature"`
	Count      int      `json:"count"`
	Popularity float64  `json:"popularity"` // percent of products
	AvgRating  *float64 `json:"avg_rating"`
	AvgReviews *float64 `json:"avg_reviews"`
	AvgGrowth  *float64 `json:"avg_growth"`
	AvgPrice   *float64 `json:"avg_price"`
}

// FeaturePerformance returns one FeatureStat per indicator column, in
// catalog.IndicatorColumns order.
func FeaturePerformance(products []catalog.Product) []FeatureStat {
	out := make([]FeatureStat, 0, len(catalog.IndicatorColumns))
	for _, name := range catalog.IndicatorColumns {
		var rating, reviews, growth, price []float64
		for _, p := range products {
			if !p.Has(name) {
				continue
			}
			rating = append(rating, p.Rating)
			reviews = append(reviews, float64(p.Reviews))
			growth = append(growth, p.ReviewGrowthRate)
			price = append(price, p.Price)
		}
		st := FeatureStat{
			Feature:    name,
			Count:      len(price),
			AvgRating:  meanOrNil(rating),
			AvgReviews: meanOrNil(reviews),
			AvgGrowth:  meanOrNil(growth),
			AvgPrice:   meanOrNil(price),
		}
		if len(products) > 0 {
			st.Popularity = float64(st.Count) / float64(len(products)) * 100
		}
		out = append(out, st)
	}
	return out
}

// sortByDesc orders stats by the value key returns, largest first. Nil values
// go last; ties keep their order.
func sortByDesc(stats []FeatureStat, key func(FeatureStat) *float64) {
	sort.SliceStable(stats, func(i, j int) bool {
		a, b := key(stats[i]), key(stats[j])
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return *a > *b
	})
}
